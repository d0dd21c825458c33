package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
	"github.com/dispatch-labs/rca-cli/internal/model"
)

type testLogs struct {
	checkpoints *checkpoint.Log
	failures    *checkpoint.Log
}

func newTestLogs(t *testing.T) testLogs {
	t.Helper()
	dir := t.TempDir()

	checkpoints, err := checkpoint.Open(filepath.Join(dir, "checkpoint.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = checkpoints.Close() })

	failures, err := checkpoint.Open(filepath.Join(dir, "failures.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = failures.Close() })

	return testLogs{checkpoints: checkpoints, failures: failures}
}

func makeTranscripts(n int) []model.Transcript {
	transcripts := make([]model.Transcript, n)
	for i := range transcripts {
		transcripts[i] = model.Transcript{
			ID:      fmt.Sprintf("t-%d", i),
			Content: "Customer: my tow never arrived.",
		}
	}
	return transcripts
}

func okResult(t model.Transcript) *model.AnalysisResult {
	return &model.AnalysisResult{
		TranscriptID:      t.ID,
		RootCause:         "Provider no-show",
		RootCauseCategory: "Service Delivery Failure",
		Sentiment:         model.SentimentNegative,
		Summary:           "Tow was dispatched but never arrived.",
		Timeline: []model.TimelineEvent{
			{Order: 1, Actor: model.ActorCustomer, Description: "Requested a tow."},
		},
	}
}

func TestScheduler_AllSucceed(t *testing.T) {
	logs := newTestLogs(t)
	scheduler := NewScheduler(logs.checkpoints, logs.failures, Options{MaxWorkers: 4})

	outcome, err := scheduler.Run(context.Background(), makeTranscripts(9),
		func(ctx context.Context, tr model.Transcript) (*model.AnalysisResult, error) {
			return okResult(tr), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 9, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)

	processed, err := checkpoint.ProcessedIDs(logs.checkpoints.Path())
	require.NoError(t, err)
	assert.Len(t, processed, 9)

	failures, err := checkpoint.ReadFailures(logs.failures.Path())
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func TestScheduler_FailureIsolation(t *testing.T) {
	logs := newTestLogs(t)
	scheduler := NewScheduler(logs.checkpoints, logs.failures, Options{MaxWorkers: 8})

	// Every third item fails; the rest must still settle as successes.
	outcome, err := scheduler.Run(context.Background(), makeTranscripts(30),
		func(ctx context.Context, tr model.Transcript) (*model.AnalysisResult, error) {
			var n int
			fmt.Sscanf(tr.ID, "t-%d", &n)
			if n%3 == 0 {
				return nil, eris.Errorf("analysis: no timeline extracted for transcript %s", tr.ID)
			}
			return okResult(tr), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 20, outcome.Succeeded)
	assert.Equal(t, 10, outcome.Failed)

	processed, err := checkpoint.ProcessedIDs(logs.checkpoints.Path())
	require.NoError(t, err)
	assert.Len(t, processed, 20)
	assert.NotContains(t, processed, "t-0")
	assert.Contains(t, processed, "t-1")

	failures, err := checkpoint.ReadFailures(logs.failures.Path())
	require.NoError(t, err)
	require.Len(t, failures, 10)
	for _, f := range failures {
		assert.Contains(t, f.Error, "no timeline extracted")
	}
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	logs := newTestLogs(t)

	const limit = 3
	scheduler := NewScheduler(logs.checkpoints, logs.failures, Options{MaxWorkers: limit})

	var inFlight, peak atomic.Int64
	_, err := scheduler.Run(context.Background(), makeTranscripts(24),
		func(ctx context.Context, tr model.Transcript) (*model.AnalysisResult, error) {
			now := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if now <= p || peak.CompareAndSwap(p, now) {
					break
				}
			}
			return okResult(tr), nil
		})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(limit))
}

func TestScheduler_EmptyInput(t *testing.T) {
	logs := newTestLogs(t)
	scheduler := NewScheduler(logs.checkpoints, logs.failures, Options{})

	outcome, err := scheduler.Run(context.Background(), nil,
		func(ctx context.Context, tr model.Transcript) (*model.AnalysisResult, error) {
			t.Fatal("process must not run for empty input")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Equal(t, Outcome{}, outcome)
}

// Two runs over the same checkpoint log: the second run only sees what the
// first left pending, and a transcript that failed before is retried.
func TestScheduler_ResumeSkipsProcessed(t *testing.T) {
	dir := t.TempDir()
	checkpointPath := filepath.Join(dir, "checkpoint.jsonl")
	failuresPath := filepath.Join(dir, "failures.jsonl")

	transcripts := makeTranscripts(6)

	// First run: t-4 fails.
	func() {
		checkpoints, err := checkpoint.Open(checkpointPath)
		require.NoError(t, err)
		defer checkpoints.Close()
		failures, err := checkpoint.Open(failuresPath)
		require.NoError(t, err)
		defer failures.Close()

		scheduler := NewScheduler(checkpoints, failures, Options{MaxWorkers: 2})
		outcome, err := scheduler.Run(context.Background(), transcripts,
			func(ctx context.Context, tr model.Transcript) (*model.AnalysisResult, error) {
				if tr.ID == "t-4" {
					return nil, eris.New("analysis: transient upstream failure")
				}
				return okResult(tr), nil
			})
		require.NoError(t, err)
		assert.Equal(t, 5, outcome.Succeeded)
		assert.Equal(t, 1, outcome.Failed)
	}()

	// Second run resumes: only t-4 is pending, and it succeeds this time.
	processed, err := checkpoint.ProcessedIDs(checkpointPath)
	require.NoError(t, err)
	pending := checkpoint.FilterPending(transcripts, processed)
	require.Len(t, pending, 1)
	require.Equal(t, "t-4", pending[0].ID)

	checkpoints, err := checkpoint.Open(checkpointPath)
	require.NoError(t, err)
	defer checkpoints.Close()
	failures, err := checkpoint.Open(failuresPath)
	require.NoError(t, err)
	defer failures.Close()

	scheduler := NewScheduler(checkpoints, failures, Options{MaxWorkers: 2})
	outcome, err := scheduler.Run(context.Background(), pending,
		func(ctx context.Context, tr model.Transcript) (*model.AnalysisResult, error) {
			return okResult(tr), nil
		})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Succeeded)

	processed, err = checkpoint.ProcessedIDs(checkpointPath)
	require.NoError(t, err)
	assert.Len(t, processed, 6)
}
