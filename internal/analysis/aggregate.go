package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
	"github.com/dispatch-labs/rca-cli/internal/model"
)

// sampleTimelineSteps caps how many timeline descriptions go into one
// narrative sample line.
const sampleTimelineSteps = 3

// Aggregator streams the checkpoint log twice: once to collect the
// category universe, once to compute distributions and a bounded
// narrative sample. Neither pass materializes the full result set.
type Aggregator struct {
	path      string
	sampleCap int
}

// NewAggregator creates an aggregator over the checkpoint log at path.
// sampleCap bounds the retained narrative sample (<=0 uses 40).
func NewAggregator(path string, sampleCap int) *Aggregator {
	if sampleCap <= 0 {
		sampleCap = 40
	}
	return &Aggregator{path: path, sampleCap: sampleCap}
}

// CollectCategories is pass 1: stream the log, returning the distinct raw
// category set and the total record count. Corrupt lines are skipped with
// a warning.
func (ag *Aggregator) CollectCategories() ([]string, int, error) {
	seen := make(map[string]struct{})
	total := 0

	err := checkpoint.Scan(ag.path, func(line []byte) error {
		var record struct {
			RootCauseCategory string `json:"root_cause_category"`
		}
		if err := json.Unmarshal(line, &record); err != nil {
			zap.L().Warn("analysis: skipping corrupt checkpoint line during category scan",
				zap.String("path", ag.path))
			return nil
		}
		seen[record.RootCauseCategory] = struct{}{}
		total++
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	return categories, total, nil
}

// Stats holds the pass-2 output: distributions that each sum to Total,
// plus the first-N narrative sample.
type Stats struct {
	Total           int
	RootCauseCounts map[string]int
	SentimentCounts map[string]int
	Samples         []string
}

// Aggregate is pass 2: stream the log again, remap each record's category
// through mapping (unmapped categories pass through unchanged), and count.
// The narrative sample keeps the first records encountered in log order —
// a deliberate bias that exists only to bound the synthesis payload.
func (ag *Aggregator) Aggregate(mapping map[string]string) (*Stats, error) {
	stats := &Stats{
		RootCauseCounts: make(map[string]int),
		SentimentCounts: make(map[string]int),
	}

	err := checkpoint.Scan(ag.path, func(line []byte) error {
		var result model.AnalysisResult
		if err := json.Unmarshal(line, &result); err != nil {
			zap.L().Warn("analysis: skipping corrupt checkpoint line during aggregation",
				zap.String("path", ag.path))
			return nil
		}

		category := result.RootCauseCategory
		if canonical, ok := mapping[category]; ok {
			category = canonical
		}

		stats.RootCauseCounts[category]++
		stats.SentimentCounts[string(result.Sentiment)]++
		stats.Total++

		if len(stats.Samples) < ag.sampleCap {
			stats.Samples = append(stats.Samples, sampleLine(category, result))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// sampleLine formats one checkpointed result as a short narrative for
// report synthesis.
func sampleLine(category string, result model.AnalysisResult) string {
	steps := make([]string, 0, sampleTimelineSteps)
	for i, event := range result.Timeline {
		if i >= sampleTimelineSteps {
			break
		}
		steps = append(steps, event.Description)
	}
	return fmt.Sprintf("- [%s] %s. Sequence: %s...", category, result.RootCause, strings.Join(steps, " -> "))
}
