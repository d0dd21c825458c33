package analysis

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testStats() *Stats {
	return &Stats{
		Total: 3,
		RootCauseCounts: map[string]int{
			"ETA Exceeded":    2,
			"Billing Dispute": 1,
		},
		SentimentCounts: map[string]int{
			"Negative": 2,
			"Neutral":  1,
		},
		Samples: []string{
			"- [ETA Exceeded] Provider no-show. Sequence: Requested a tow -> Dispatched provider...",
		},
	}
}

func TestSynthesize_ValidResponse(t *testing.T) {
	ctx := context.Background()
	aiClient := &mockAnthropicClient{}

	aiClient.On("CreateMessage", ctx, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse(`{
			"common_timeline_patterns": ["Dispatch confirmed but provider never departs"],
			"key_findings": ["Most escalations follow a missed ETA"],
			"recommendations": ["Confirm provider departure within 10 minutes"]
		}`), nil).Once()

	analyzer := newTestAnalyzer(aiClient)
	report := analyzer.Synthesize(ctx, testStats())

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.RootCauseDistribution["ETA Exceeded"])
	assert.Equal(t, []string{"Dispatch confirmed but provider never departs"}, report.CommonTimelinePatterns)
	assert.Equal(t, []string{"Most escalations follow a missed ETA"}, report.KeyFindings)
	assert.Equal(t, []string{"Confirm provider departure within 10 minutes"}, report.Recommendations)
	aiClient.AssertExpectations(t)
}

func TestSynthesize_CallFailureKeepsStatistics(t *testing.T) {
	ctx := context.Background()
	aiClient := &mockAnthropicClient{}

	aiClient.On("CreateMessage", ctx, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(nil, eris.New("service unavailable")).Once()

	analyzer := newTestAnalyzer(aiClient)
	report := analyzer.Synthesize(ctx, testStats())

	// Statistics survive; narrative sections are empty but present.
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.SentimentDistribution["Negative"])
	assert.NotNil(t, report.CommonTimelinePatterns)
	assert.Empty(t, report.CommonTimelinePatterns)
	assert.NotNil(t, report.KeyFindings)
	assert.Empty(t, report.KeyFindings)
	assert.NotNil(t, report.Recommendations)
	assert.Empty(t, report.Recommendations)
}

func TestSynthesize_MalformedResponseKeepsStatistics(t *testing.T) {
	ctx := context.Background()
	aiClient := &mockAnthropicClient{}

	aiClient.On("CreateMessage", ctx, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse("the data suggests several interesting trends"), nil).Once()

	analyzer := newTestAnalyzer(aiClient)
	report := analyzer.Synthesize(ctx, testStats())

	assert.Equal(t, 3, report.Total)
	assert.Empty(t, report.KeyFindings)
}

func TestSynthesize_PartialResponse(t *testing.T) {
	ctx := context.Background()
	aiClient := &mockAnthropicClient{}

	aiClient.On("CreateMessage", ctx, mock.AnythingOfType("anthropic.MessageRequest")).
		Return(textResponse(`{"key_findings": ["one finding"]}`), nil).Once()

	analyzer := newTestAnalyzer(aiClient)
	report := analyzer.Synthesize(ctx, testStats())

	assert.Equal(t, []string{"one finding"}, report.KeyFindings)
	assert.Empty(t, report.CommonTimelinePatterns)
	assert.Empty(t, report.Recommendations)
}

func TestFormatCounts_SortedLines(t *testing.T) {
	out := formatCounts(map[string]int{"b": 2, "a": 1, "c": 3})
	assert.Equal(t, "a: 1\nb: 2\nc: 3", out)
}

func TestFormatCounts_Empty(t *testing.T) {
	assert.Equal(t, "", formatCounts(nil))
}
