package anthropic

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPollBatch_CompletesImmediately(t *testing.T) {
	mc := new(MockClient)

	mc.On("GetBatch", mock.Anything, "batch_123").Return(&BatchResponse{
		ID:               "batch_123",
		ProcessingStatus: "ended",
		RequestCounts:    RequestCounts{Succeeded: 5},
	}, nil)

	resp, err := PollBatch(context.Background(), mc, "batch_123",
		WithPollInterval(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int64(5), resp.RequestCounts.Succeeded)
	mc.AssertExpectations(t)
}

// pollFuncClient delegates GetBatch to a function; the other operations
// are unused in polling tests.
type pollFuncClient struct {
	fn func(context.Context, string) (*BatchResponse, error)
}

func (c *pollFuncClient) CreateMessage(context.Context, MessageRequest) (*MessageResponse, error) {
	return nil, nil
}
func (c *pollFuncClient) CreateBatch(context.Context, BatchRequest) (*BatchResponse, error) {
	return nil, nil
}
func (c *pollFuncClient) GetBatch(ctx context.Context, id string) (*BatchResponse, error) {
	return c.fn(ctx, id)
}
func (c *pollFuncClient) GetBatchResults(context.Context, string) (BatchResultIterator, error) {
	return nil, nil
}

func TestPollBatch_CompletesAfterPolls(t *testing.T) {
	var calls atomic.Int32
	client := &pollFuncClient{fn: func(_ context.Context, batchID string) (*BatchResponse, error) {
		if calls.Add(1) < 3 {
			return &BatchResponse{ID: batchID, ProcessingStatus: "in_progress"}, nil
		}
		return &BatchResponse{
			ID:               batchID,
			ProcessingStatus: "ended",
			RequestCounts:    RequestCounts{Succeeded: 10},
		}, nil
	}}

	resp, err := PollBatch(context.Background(), client, "batch_456",
		WithPollInterval(5*time.Millisecond),
		WithPollCap(10*time.Millisecond),
	)
	require.NoError(t, err)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPollBatch_Expired(t *testing.T) {
	mc := new(MockClient)

	mc.On("GetBatch", mock.Anything, "batch_exp").Return(&BatchResponse{
		ID:               "batch_exp",
		ProcessingStatus: "expired",
	}, nil)

	_, err := PollBatch(context.Background(), mc, "batch_exp",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestPollBatch_Canceled(t *testing.T) {
	mc := new(MockClient)

	mc.On("GetBatch", mock.Anything, "batch_can").Return(&BatchResponse{
		ID:               "batch_can",
		ProcessingStatus: "canceled",
	}, nil)

	_, err := PollBatch(context.Background(), mc, "batch_can",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceled")
}

func TestPollBatch_Timeout(t *testing.T) {
	mc := new(MockClient)

	mc.On("GetBatch", mock.Anything, "batch_slow").Return(&BatchResponse{
		ID:               "batch_slow",
		ProcessingStatus: "in_progress",
	}, nil)

	_, err := PollBatch(context.Background(), mc, "batch_slow",
		WithPollInterval(10*time.Millisecond),
		WithPollCap(15*time.Millisecond),
		WithPollTimeout(50*time.Millisecond),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollBatch_APIError(t *testing.T) {
	mc := new(MockClient)

	mc.On("GetBatch", mock.Anything, "batch_err").Return(nil, fmt.Errorf("api error: 500"))

	_, err := PollBatch(context.Background(), mc, "batch_err",
		WithPollInterval(10*time.Millisecond),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api error: 500")
}

func TestCollectBatchResults_AllSucceeded(t *testing.T) {
	iter := NewMockBatchResultIterator([]BatchResultItem{
		{CustomID: "normalize-0", Type: "succeeded", Message: &MessageResponse{
			Content: []ContentBlock{{Type: "text", Text: `{"a": "A"}`}},
		}},
		{CustomID: "normalize-1", Type: "succeeded", Message: &MessageResponse{
			Content: []ContentBlock{{Type: "text", Text: `{"b": "B"}`}},
		}},
	})

	results, err := CollectBatchResults(iter)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, `{"a": "A"}`, results["normalize-0"].Text())
}

func TestCollectBatchResultsDetailed_MixedOutcomes(t *testing.T) {
	iter := NewMockBatchResultIterator([]BatchResultItem{
		{CustomID: "normalize-0", Type: "succeeded", Message: &MessageResponse{
			Content: []ContentBlock{{Type: "text", Text: "ok"}},
		}},
		{CustomID: "normalize-1", Type: "errored"},
		{CustomID: "normalize-2", Type: "expired"},
	})

	result, err := CollectBatchResultsDetailed(iter)
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 1)
	require.Len(t, result.Failures, 2)
	assert.Equal(t, "normalize-1", result.Failures[0].CustomID)
	assert.Equal(t, "errored", result.Failures[0].Type)
	assert.Equal(t, "expired", result.Failures[1].Type)
}

func TestCollectBatchResults_IteratorError(t *testing.T) {
	iter := NewMockBatchResultIteratorWithError(
		[]BatchResultItem{
			{CustomID: "normalize-0", Type: "succeeded", Message: &MessageResponse{}},
		},
		fmt.Errorf("stream interrupted"),
	)

	_, err := CollectBatchResults(iter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream interrupted")
}

func TestCollectBatchResults_Empty(t *testing.T) {
	results, err := CollectBatchResults(NewMockBatchResultIterator(nil))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	text := "You reconstruct event timelines from roadside assistance call transcripts."

	blocks := BuildCachedSystemBlocks(text)

	require.Len(t, blocks, 1)
	assert.Equal(t, text, blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
