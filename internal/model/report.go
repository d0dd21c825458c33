package model

// AggregateReport holds run-level statistics plus the synthesized
// narrative sections. Distribution counts each sum to Total.
type AggregateReport struct {
	Total                  int            `json:"total"`
	RootCauseDistribution  map[string]int `json:"root_cause_distribution"`
	SentimentDistribution  map[string]int `json:"sentiment_distribution"`
	CommonTimelinePatterns []string       `json:"common_timeline_patterns"`
	KeyFindings            []string       `json:"key_findings"`
	Recommendations        []string       `json:"recommendations"`
}

// FinalReport is the output artifact written at the end of a run.
// DetailedResults is empty in large-scale mode (detail stays in the
// checkpoint log) and holds every AnalysisResult in small-scale mode.
type FinalReport struct {
	SummaryReport   AggregateReport  `json:"summary_report"`
	DetailedResults []AnalysisResult `json:"detailed_results"`
}
