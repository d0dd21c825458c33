package analysis

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dispatch-labs/rca-cli/internal/config"
	"github.com/dispatch-labs/rca-cli/pkg/anthropic"
)

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func (m *mockAnthropicClient) CreateBatch(ctx context.Context, req anthropic.BatchRequest) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatch(ctx context.Context, batchID string) (*anthropic.BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.BatchResponse), args.Error(1)
}

func (m *mockAnthropicClient) GetBatchResults(ctx context.Context, batchID string) (anthropic.BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(anthropic.BatchResultIterator), args.Error(1)
}

// --- Batch result iterator fake ---

type fakeBatchResultIterator struct {
	items []anthropic.BatchResultItem
	pos   int
	err   error
}

func (it *fakeBatchResultIterator) Next() bool {
	if it.err != nil || it.pos >= len(it.items) {
		return false
	}
	it.pos++
	return true
}

func (it *fakeBatchResultIterator) Item() anthropic.BatchResultItem {
	return it.items[it.pos-1]
}

func (it *fakeBatchResultIterator) Err() error { return it.err }

func (it *fakeBatchResultIterator) Close() error { return nil }

// --- Helpers ---

func textResponse(text string) *anthropic.MessageResponse {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: text}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}
}

func newTestAnalyzer(client anthropic.Client) *Analyzer {
	return New(client, config.AnthropicConfig{
		Model:               "claude-sonnet-4-5-20250929",
		MaxTokens:           2048,
		SmallBatchThreshold: 3,
		NormalizeBatchSize:  50,
	})
}
