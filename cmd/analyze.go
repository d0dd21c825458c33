package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/analysis"
	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
	"github.com/dispatch-labs/rca-cli/internal/engine"
	"github.com/dispatch-labs/rca-cli/internal/model"
	"github.com/dispatch-labs/rca-cli/internal/store"
	anthropicpkg "github.com/dispatch-labs/rca-cli/pkg/anthropic"
)

var (
	analyzeInput  string
	analyzeOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a batch of transcripts, resuming from the checkpoint log",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Setup failures abort before any work is dispatched.
		if err := cfg.Validate(); err != nil {
			return err
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key,
			anthropicpkg.WithRateLimit(cfg.Anthropic.RateLimitRPS))
		analyzer := analysis.New(client, cfg.Anthropic)

		transcripts, err := model.LoadTranscripts(analyzeInput)
		if err != nil {
			return err
		}

		processed, err := checkpoint.ProcessedIDs(cfg.Analysis.CheckpointPath)
		if err != nil {
			return err
		}
		pending := checkpoint.FilterPending(transcripts, processed)

		zap.L().Info("resume filter applied",
			zap.Int("total", len(transcripts)),
			zap.Int("already_processed", len(processed)),
			zap.Int("remaining", len(pending)),
		)

		startedAt := time.Now()
		var outcome engine.Outcome

		if len(pending) > 0 {
			checkpoints, err := checkpoint.Open(cfg.Analysis.CheckpointPath)
			if err != nil {
				return err
			}
			failures, err := checkpoint.Open(cfg.Analysis.FailuresPath)
			if err != nil {
				_ = checkpoints.Close()
				return err
			}

			scheduler := engine.NewScheduler(checkpoints, failures, engine.Options{
				MaxWorkers:    cfg.Analysis.MaxWorkers,
				ProgressEvery: cfg.Analysis.ProgressEvery,
			})

			outcome, err = scheduler.Run(ctx, pending, analyzer.Process)

			if closeErr := checkpoints.Close(); closeErr != nil {
				zap.L().Warn("failed to close checkpoint log", zap.Error(closeErr))
			}
			if closeErr := failures.Close(); closeErr != nil {
				zap.L().Warn("failed to close failure log", zap.Error(closeErr))
			}
			if err != nil {
				return err
			}
		}

		if err := runAggregation(ctx, analyzer, analyzeOutput); err != nil {
			return err
		}

		analyzer.Usage().LogCost(cfg.Anthropic.Model, "analyze")

		if cfg.Store.Path != "" {
			recordRun(ctx, &store.Run{
				InputPath:        analyzeInput,
				Total:            len(transcripts),
				AlreadyProcessed: len(processed),
				NewlyProcessed:   outcome.Succeeded,
				Failed:           outcome.Failed,
				ReportPath:       analyzeOutput,
				StartedAt:        startedAt,
				FinishedAt:       time.Now(),
			})
		}

		zap.L().Info("analysis run complete",
			zap.Int("total", len(transcripts)),
			zap.Int("already_processed", len(processed)),
			zap.Int("newly_processed", outcome.Succeeded),
			zap.Int("failed", outcome.Failed),
			zap.String("report", analyzeOutput),
		)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "path to input transcripts JSON file")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "path to output report JSON file")
	_ = analyzeCmd.MarkFlagRequired("input")
	_ = analyzeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(analyzeCmd)
}

// recordRun writes the run to the registry; registry trouble never fails
// a run that already produced its artifacts.
func recordRun(ctx context.Context, run *store.Run) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		zap.L().Warn("run registry unavailable", zap.Error(err))
		return
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run registry migration failed", zap.Error(err))
		return
	}
	if err := st.RecordRun(ctx, run); err != nil {
		zap.L().Warn("failed to record run", zap.Error(err))
	}
}
