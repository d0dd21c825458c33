package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/model"
)

// Synthesize turns aggregated statistics and the bounded narrative sample
// into the final report. It never fails: when the service call or its
// output is unusable, the narrative sections come back as empty lists so
// the statistics still persist.
func (a *Analyzer) Synthesize(ctx context.Context, stats *Stats) model.AggregateReport {
	report := model.AggregateReport{
		Total:                  stats.Total,
		RootCauseDistribution:  stats.RootCauseCounts,
		SentimentDistribution:  stats.SentimentCounts,
		CommonTimelinePatterns: []string{},
		KeyFindings:            []string{},
		Recommendations:        []string{},
	}

	prompt := fmt.Sprintf(synthesizeUserPrompt,
		stats.Total,
		formatCounts(stats.RootCauseCounts),
		formatCounts(stats.SentimentCounts),
		strings.Join(stats.Samples, "\n"),
	)

	text, err := a.invoke(ctx, synthesizeSystemPrompt, prompt)
	if err != nil {
		zap.L().Warn("analysis: report synthesis call failed, keeping statistics only",
			zap.Error(err))
		return report
	}

	var parsed struct {
		CommonTimelinePatterns []string `json:"common_timeline_patterns"`
		KeyFindings            []string `json:"key_findings"`
		Recommendations        []string `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil {
		zap.L().Warn("analysis: report synthesis response was not valid JSON, keeping statistics only",
			zap.Error(err))
		return report
	}

	if parsed.CommonTimelinePatterns != nil {
		report.CommonTimelinePatterns = parsed.CommonTimelinePatterns
	}
	if parsed.KeyFindings != nil {
		report.KeyFindings = parsed.KeyFindings
	}
	if parsed.Recommendations != nil {
		report.Recommendations = parsed.Recommendations
	}

	return report
}

// formatCounts renders a count map as sorted "label: n" lines for prompts.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %d\n", k, counts[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
