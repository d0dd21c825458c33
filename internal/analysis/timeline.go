package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/model"
)

// ExtractTimeline reconstructs the ordered event timeline for one
// transcript. It never returns an error: any service or parse failure
// yields a nil slice, which the pipeline escalates to an item failure.
func (a *Analyzer) ExtractTimeline(ctx context.Context, t model.Transcript) []model.TimelineEvent {
	text, err := a.invoke(ctx, timelineSystemPrompt, fmt.Sprintf(timelineUserPrompt, t.Content))
	if err != nil {
		zap.L().Warn("analysis: timeline extraction call failed",
			zap.String("transcript_id", t.ID),
			zap.Error(err),
		)
		return nil
	}

	var events []model.TimelineEvent
	if err := json.Unmarshal([]byte(cleanJSONArray(text)), &events); err != nil {
		zap.L().Warn("analysis: timeline response was not a valid event array",
			zap.String("transcript_id", t.ID),
			zap.Error(err),
		)
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	return sequenceTimeline(events)
}

// sequenceTimeline enforces the ordering invariant: events sorted by the
// model-assigned order, then renumbered 1..n whenever the model emitted
// duplicate, zero, or out-of-order values. Well-formed orders (strictly
// increasing from 1, gaps allowed) pass through untouched.
func sequenceTimeline(events []model.TimelineEvent) []model.TimelineEvent {
	valid := events[0].Order >= 1
	for i := 1; valid && i < len(events); i++ {
		if events[i].Order <= events[i-1].Order {
			valid = false
		}
	}
	if valid {
		return events
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Order < events[j].Order
	})
	for i := range events {
		events[i].Order = i + 1
	}
	return events
}
