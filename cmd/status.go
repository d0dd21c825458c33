package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
	"github.com/dispatch-labs/rca-cli/internal/store"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoint progress, recorded failures, and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		processed, err := checkpoint.ProcessedIDs(cfg.Analysis.CheckpointPath)
		if err != nil {
			return err
		}
		failures, err := checkpoint.ReadFailures(cfg.Analysis.FailuresPath)
		if err != nil {
			return err
		}

		zap.L().Info("checkpoint status",
			zap.String("checkpoint_path", cfg.Analysis.CheckpointPath),
			zap.Int("checkpointed", len(processed)),
			zap.String("failures_path", cfg.Analysis.FailuresPath),
			zap.Int("failure_records", len(failures)),
		)

		for _, f := range failures {
			zap.L().Info("recorded failure",
				zap.String("transcript_id", f.TranscriptID),
				zap.String("error", f.Error),
			)
		}

		if cfg.Store.Path == "" {
			return nil
		}

		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			zap.L().Warn("run registry unavailable", zap.Error(err))
			return nil
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			zap.L().Warn("run registry migration failed", zap.Error(err))
			return nil
		}

		runs, err := st.ListRuns(ctx, statusLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			zap.L().Info("run",
				zap.String("id", r.ID),
				zap.String("input", r.InputPath),
				zap.Int("total", r.Total),
				zap.Int("already_processed", r.AlreadyProcessed),
				zap.Int("newly_processed", r.NewlyProcessed),
				zap.Int("failed", r.Failed),
				zap.Time("started_at", r.StartedAt),
				zap.Time("finished_at", r.FinishedAt),
			)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 20, "max number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}
