// Package analysis implements the per-transcript pipeline (timeline
// extraction, root-cause analysis), category normalization, the two-pass
// streaming aggregator over the checkpoint log, and report synthesis.
package analysis

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/dispatch-labs/rca-cli/internal/config"
	"github.com/dispatch-labs/rca-cli/internal/model"
	"github.com/dispatch-labs/rca-cli/internal/resilience"
	"github.com/dispatch-labs/rca-cli/pkg/anthropic"
)

// maxDirectConcurrency limits concurrent CreateMessage calls in no-batch mode.
const maxDirectConcurrency = 10

// Analyzer runs the LLM-backed analysis stages. Safe for concurrent use;
// token usage accumulation is the only shared state.
type Analyzer struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
	retry  resilience.RetryConfig

	mu    sync.Mutex
	usage anthropic.TokenUsage
}

// New creates an Analyzer using the given client and settings.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Analyzer {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", "create message")
	return &Analyzer{
		client: client,
		cfg:    cfg,
		retry:  retry,
	}
}

// Process runs the two-stage pipeline for one transcript. An empty
// timeline fails the item (stage 1 is the only hard failure point);
// stage 2 always yields a well-formed result.
func (a *Analyzer) Process(ctx context.Context, t model.Transcript) (*model.AnalysisResult, error) {
	timeline := a.ExtractTimeline(ctx, t)
	if len(timeline) == 0 {
		return nil, eris.Errorf("analysis: no timeline extracted for transcript %s", t.ID)
	}

	return a.AnalyzeRootCause(ctx, t, timeline), nil
}

// invoke sends one message with the stage system prompt and returns the
// concatenated response text. Transient failures are retried.
func (a *Analyzer) invoke(ctx context.Context, system, prompt string) (string, error) {
	req := anthropic.MessageRequest{
		Model:     a.cfg.Model,
		MaxTokens: int64(a.cfg.MaxTokens),
		System:    anthropic.BuildCachedSystemBlocks(system),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", err
	}

	a.addUsage(resp.Usage)
	return resp.Text(), nil
}

func (a *Analyzer) addUsage(u anthropic.TokenUsage) {
	a.mu.Lock()
	a.usage.Add(u)
	a.mu.Unlock()
}

// Usage returns the accumulated token usage across all calls so far.
func (a *Analyzer) Usage() anthropic.TokenUsage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usage
}
