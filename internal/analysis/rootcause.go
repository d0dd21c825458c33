package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/model"
)

// AnalyzeRootCause derives the root-cause analysis for one transcript
// given its timeline. It never fails: a service error or malformed
// response yields the documented default record, so every item that
// survives timeline extraction produces a checkpointable result.
func (a *Analyzer) AnalyzeRootCause(ctx context.Context, t model.Transcript, timeline []model.TimelineEvent) *model.AnalysisResult {
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		// Unreachable for decoded events, but degrade rather than panic.
		return model.DefaultAnalysisResult(t.ID, timeline)
	}

	text, err := a.invoke(ctx, rootCauseSystemPrompt,
		fmt.Sprintf(rootCauseUserPrompt, t.Content, string(timelineJSON)))
	if err != nil {
		zap.L().Warn("analysis: root cause call failed, using default record",
			zap.String("transcript_id", t.ID),
			zap.Error(err),
		)
		return model.DefaultAnalysisResult(t.ID, timeline)
	}

	return parseRootCause(t.ID, timeline, text)
}

// parseRootCause decodes the model response into an AnalysisResult.
// The transcript ID and timeline always come from the pipeline, never
// from the response. Missing root cause means the payload is unusable
// and the whole default record is substituted.
func parseRootCause(transcriptID string, timeline []model.TimelineEvent, text string) *model.AnalysisResult {
	var parsed struct {
		RootCause         string  `json:"root_cause"`
		RootCauseCategory string  `json:"root_cause_category"`
		Sentiment         string  `json:"sentiment"`
		Summary           string  `json:"summary"`
		ActionableInsight *string `json:"actionable_insight"`
	}

	if err := json.Unmarshal([]byte(cleanJSON(text)), &parsed); err != nil || parsed.RootCause == "" {
		zap.L().Warn("analysis: unusable root cause response, using default record",
			zap.String("transcript_id", transcriptID),
		)
		return model.DefaultAnalysisResult(transcriptID, timeline)
	}

	result := &model.AnalysisResult{
		TranscriptID:      transcriptID,
		Timeline:          timeline,
		RootCause:         parsed.RootCause,
		RootCauseCategory: parsed.RootCauseCategory,
		Sentiment:         model.Sentiment(parsed.Sentiment),
		Summary:           parsed.Summary,
		ActionableInsight: parsed.ActionableInsight,
	}

	if result.RootCauseCategory == "" {
		result.RootCauseCategory = model.FallbackCategory
	}
	if !model.ValidSentiment(result.Sentiment) {
		result.Sentiment = model.SentimentNeutral
	}

	return result
}
