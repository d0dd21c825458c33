package model

// Sentiment is the customer sentiment label for one call.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

// ValidSentiment reports whether s is one of the known sentiment labels.
func ValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// AnalysisResult is the completed analysis for one transcript. It is
// written exactly once to the checkpoint log and never mutated; category
// remapping at aggregation time happens on the in-memory copy only.
type AnalysisResult struct {
	TranscriptID      string          `json:"transcript_id"`
	Timeline          []TimelineEvent `json:"timeline"`
	RootCause         string          `json:"root_cause"`
	RootCauseCategory string          `json:"root_cause_category"`
	Sentiment         Sentiment       `json:"sentiment"`
	Summary           string          `json:"summary"`
	ActionableInsight *string         `json:"actionable_insight"`
}

// Fallback values substituted when root-cause analysis cannot produce a
// usable record. Stage 2 never fails an item; it degrades to these.
const (
	FallbackRootCause = "Unknown"
	FallbackCategory  = "Other"
	FallbackSummary   = "Analysis failed"
)

// DefaultAnalysisResult returns the documented fail-soft record for a
// transcript whose root-cause stage produced no usable output.
func DefaultAnalysisResult(transcriptID string, timeline []TimelineEvent) *AnalysisResult {
	return &AnalysisResult{
		TranscriptID:      transcriptID,
		Timeline:          timeline,
		RootCause:         FallbackRootCause,
		RootCauseCategory: FallbackCategory,
		Sentiment:         SentimentNeutral,
		Summary:           FallbackSummary,
		ActionableInsight: nil,
	}
}

// FailureRecord is an append-only diagnostics entry for a transcript that
// could not be analyzed. A transcript may appear more than once across
// retried runs; readers must not assume uniqueness.
type FailureRecord struct {
	TranscriptID string `json:"transcript_id"`
	Error        string `json:"error"`
}
