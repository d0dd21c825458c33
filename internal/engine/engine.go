// Package engine implements the bounded-concurrency work scheduler that
// drains the pending transcript set through the per-item pipeline,
// checkpointing each success and recording each failure without letting
// one item affect another.
package engine

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
	"github.com/dispatch-labs/rca-cli/internal/model"
)

// ProcessFunc analyzes a single transcript. Errors fail only that item.
type ProcessFunc func(ctx context.Context, t model.Transcript) (*model.AnalysisResult, error)

// Options tune the scheduler.
type Options struct {
	// MaxWorkers bounds concurrent pipeline invocations. Default 16.
	MaxWorkers int
	// ProgressEvery logs advisory progress after this many completions.
	// Default 10; <=0 uses the default.
	ProgressEvery int
}

// Outcome reports how the batch settled.
type Outcome struct {
	Succeeded int
	Failed    int
}

// Scheduler dispatches transcripts to the pipeline with bounded
// concurrency. Successes append to the checkpoint log, failures to the
// failure log; both logs serialize their own appends.
type Scheduler struct {
	checkpoints *checkpoint.Log
	failures    *checkpoint.Log
	opts        Options
}

// NewScheduler creates a scheduler writing outcomes to the given logs.
func NewScheduler(checkpoints, failures *checkpoint.Log, opts Options) *Scheduler {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 16
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 10
	}
	return &Scheduler{
		checkpoints: checkpoints,
		failures:    failures,
		opts:        opts,
	}
}

// Run processes every transcript exactly once, at most MaxWorkers at a
// time. Every item settles as either a checkpoint append or a failure
// append; no item's error propagates to the group or cancels other work.
func (s *Scheduler) Run(ctx context.Context, transcripts []model.Transcript, process ProcessFunc) (Outcome, error) {
	total := len(transcripts)
	if total == 0 {
		return Outcome{}, nil
	}

	zap.L().Info("engine: starting analysis",
		zap.Int("transcripts", total),
		zap.Int("max_workers", s.opts.MaxWorkers),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxWorkers)

	var succeeded, failed, completed atomic.Int64

	for _, t := range transcripts {
		g.Go(func() error {
			log := zap.L().With(zap.String("transcript_id", t.ID))

			result, err := process(gctx, t)
			if err == nil {
				if appendErr := s.checkpoints.Append(result); appendErr != nil {
					// An unrecorded success must not look done on resume.
					log.Error("engine: checkpoint append failed", zap.Error(appendErr))
					err = appendErr
				}
			}

			if err != nil {
				failed.Add(1)
				log.Warn("engine: transcript failed", zap.Error(err))
				record := model.FailureRecord{TranscriptID: t.ID, Error: err.Error()}
				if appendErr := s.failures.Append(record); appendErr != nil {
					log.Error("engine: failure append failed", zap.Error(appendErr))
				}
			} else {
				succeeded.Add(1)
			}

			done := completed.Add(1)
			if done%int64(s.opts.ProgressEvery) == 0 {
				zap.L().Info("engine: progress",
					zap.Int64("completed", done),
					zap.Int("total", total),
				)
			}
			return nil // one item's failure never aborts the batch
		})
	}

	if err := g.Wait(); err != nil {
		return Outcome{}, eris.Wrap(err, "engine: run batch")
	}

	outcome := Outcome{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}

	zap.L().Info("engine: batch settled",
		zap.Int("succeeded", outcome.Succeeded),
		zap.Int("failed", outcome.Failed),
	)

	return outcome, nil
}
