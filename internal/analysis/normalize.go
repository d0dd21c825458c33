package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dispatch-labs/rca-cli/pkg/anthropic"
)

// NormalizeCategories maps every distinct raw category label to a
// canonical representative, collapsing synonyms. The returned mapping is
// total over the input: a chunk that fails to normalize, and any label
// the model dropped from its response, falls back to identity. Labels are
// processed in fixed-size chunks to bound request size.
func (a *Analyzer) NormalizeCategories(ctx context.Context, categories []string) map[string]string {
	mapping := make(map[string]string, len(categories))
	if len(categories) == 0 {
		return mapping
	}

	// Sort for deterministic chunking and request payloads.
	sorted := make([]string, len(categories))
	copy(sorted, categories)
	sort.Strings(sorted)

	chunkSize := a.cfg.NormalizeBatchSize
	if chunkSize <= 0 {
		chunkSize = 50
	}
	var chunks [][]string
	for start := 0; start < len(sorted); start += chunkSize {
		end := min(start+chunkSize, len(sorted))
		chunks = append(chunks, sorted[start:end])
	}

	threshold := a.cfg.SmallBatchThreshold
	if threshold <= 0 {
		threshold = 3
	}

	var responses map[int]string
	if a.cfg.NoBatch || len(chunks) <= threshold {
		responses = a.normalizeDirect(ctx, chunks)
	} else {
		responses = a.normalizeBatch(ctx, chunks)
	}

	for i, chunk := range chunks {
		applyChunkMapping(mapping, chunk, responses[i])
	}

	zap.L().Info("analysis: categories normalized",
		zap.Int("categories", len(sorted)),
		zap.Int("chunks", len(chunks)),
	)

	return mapping
}

// normalizeDirect sends one message per chunk with bounded concurrency.
func (a *Analyzer) normalizeDirect(ctx context.Context, chunks [][]string) map[int]string {
	var mu sync.Mutex
	responses := make(map[int]string, len(chunks))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxDirectConcurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			prompt, err := chunkPrompt(chunk)
			if err != nil {
				return nil
			}
			text, err := a.invoke(gCtx, normalizeSystemPrompt, prompt)
			if err != nil {
				zap.L().Warn("analysis: normalization chunk failed, using identity mapping",
					zap.Int("chunk", i),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			responses[i] = text
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return responses
}

// normalizeBatch submits all chunks as one Message Batch and collects the
// per-chunk responses. Any batch-level failure degrades every chunk to
// identity mapping.
func (a *Analyzer) normalizeBatch(ctx context.Context, chunks [][]string) map[int]string {
	responses := make(map[int]string, len(chunks))

	var items []anthropic.BatchRequestItem
	for i, chunk := range chunks {
		prompt, err := chunkPrompt(chunk)
		if err != nil {
			continue
		}
		items = append(items, anthropic.BatchRequestItem{
			CustomID: fmt.Sprintf("normalize-%d", i),
			Params: anthropic.MessageRequest{
				Model:     a.cfg.Model,
				MaxTokens: int64(a.cfg.MaxTokens),
				System:    anthropic.BuildCachedSystemBlocks(normalizeSystemPrompt),
				Messages: []anthropic.Message{
					{Role: "user", Content: prompt},
				},
			},
		})
	}

	batch, err := a.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		zap.L().Warn("analysis: normalization batch create failed, using identity mapping",
			zap.Error(err))
		return responses
	}

	if _, err := anthropic.PollBatch(ctx, a.client, batch.ID); err != nil {
		zap.L().Warn("analysis: normalization batch did not complete, using identity mapping",
			zap.String("batch_id", batch.ID),
			zap.Error(err))
		return responses
	}

	iter, err := a.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		zap.L().Warn("analysis: normalization batch results unavailable, using identity mapping",
			zap.String("batch_id", batch.ID),
			zap.Error(err))
		return responses
	}

	results, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		zap.L().Warn("analysis: normalization batch collect failed, using identity mapping",
			zap.String("batch_id", batch.ID),
			zap.Error(err))
		return responses
	}

	for i := range chunks {
		resp, ok := results[fmt.Sprintf("normalize-%d", i)]
		if !ok || resp == nil {
			continue
		}
		a.addUsage(resp.Usage)
		responses[i] = resp.Text()
	}

	return responses
}

func chunkPrompt(chunk []string) (string, error) {
	labels, err := json.Marshal(chunk)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(normalizeUserPrompt, string(labels)), nil
}

// applyChunkMapping merges one chunk's response into the total mapping.
// Every label in the chunk ends up mapped: to the model's canonical form
// when present and non-empty, to itself otherwise. Labels the model
// invented are ignored.
func applyChunkMapping(mapping map[string]string, chunk []string, response string) {
	var parsed map[string]string
	if response != "" {
		if err := json.Unmarshal([]byte(cleanJSON(response)), &parsed); err != nil {
			zap.L().Warn("analysis: normalization response was not a valid mapping, using identity")
			parsed = nil
		}
	}

	for _, label := range chunk {
		canonical := parsed[label]
		if canonical == "" {
			canonical = label
		}
		mapping[label] = canonical
	}
}
