package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dispatch-labs/rca-cli/internal/analysis"
	"github.com/dispatch-labs/rca-cli/internal/checkpoint"
	"github.com/dispatch-labs/rca-cli/internal/model"
	anthropicpkg "github.com/dispatch-labs/rca-cli/pkg/anthropic"
)

var aggregateOutput string

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Rebuild the report from the existing checkpoint log without reprocessing",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		client := anthropicpkg.NewClient(cfg.Anthropic.Key,
			anthropicpkg.WithRateLimit(cfg.Anthropic.RateLimitRPS))
		analyzer := analysis.New(client, cfg.Anthropic)

		if err := runAggregation(ctx, analyzer, aggregateOutput); err != nil {
			return err
		}

		analyzer.Usage().LogCost(cfg.Anthropic.Model, "aggregate")
		return nil
	},
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateOutput, "output", "", "path to output report JSON file")
	_ = aggregateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(aggregateCmd)
}

// runAggregation performs the post-processing half of a run: two streaming
// passes over the checkpoint log with category normalization between them,
// report synthesis, and the final artifact write. Shared by analyze and
// aggregate so there is exactly one aggregation code path.
func runAggregation(ctx context.Context, analyzer *analysis.Analyzer, outputPath string) error {
	aggregator := analysis.NewAggregator(cfg.Analysis.CheckpointPath, cfg.Analysis.SampleCap)

	categories, total, err := aggregator.CollectCategories()
	if err != nil {
		return err
	}
	if total == 0 {
		zap.L().Info("nothing to aggregate")
		return nil
	}

	zap.L().Info("normalizing categories", zap.Int("distinct", len(categories)))
	mapping := analyzer.NormalizeCategories(ctx, categories)

	stats, err := aggregator.Aggregate(mapping)
	if err != nil {
		return err
	}

	report := analyzer.Synthesize(ctx, stats)

	final := model.FinalReport{
		SummaryReport:   report,
		DetailedResults: []model.AnalysisResult{},
	}
	if cfg.Analysis.IncludeDetails {
		results, err := checkpoint.ReadResults(cfg.Analysis.CheckpointPath)
		if err != nil {
			return err
		}
		final.DetailedResults = results
	}

	if err := writeReport(outputPath, final); err != nil {
		return err
	}

	zap.L().Info("report written",
		zap.String("path", outputPath),
		zap.Int("total", report.Total),
		zap.Int("categories", len(report.RootCauseDistribution)),
	)
	return nil
}

func writeReport(path string, report model.FinalReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "create report dir %s", dir)
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal report")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "write report %s", path)
	}
	return nil
}
