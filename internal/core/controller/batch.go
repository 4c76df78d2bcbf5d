package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/zeusync/objectsync/internal/core/command"
	"github.com/zeusync/objectsync/internal/core/observability/log"
	"github.com/zeusync/objectsync/pkg/concurrent"
)

// BatchResult is the outcome of one sub-request.
type BatchResult struct {
	Body map[string]any
	Err  error
}

// ExecuteBatch sends cmds as batch commands of at most MaxBatchSize
// sub-requests. Chunks run concurrently; results keep the order of cmds.
func (c *Controller) ExecuteBatch(ctx context.Context, cmds []*command.Command, session string) []BatchResult {
	results := make([]BatchResult, len(cmds))
	if len(cmds) == 0 {
		return results
	}

	size := c.config.MaxBatchSize
	chunks := make([][]*command.Command, 0, (len(cmds)+size-1)/size)
	for start := 0; start < len(cmds); start += size {
		end := min(start+size, len(cmds))
		chunks = append(chunks, cmds[start:end])
	}

	concurrent.Settle(ctx, chunks, c.config.MaxConcurrentBatches, func(ctx context.Context, idx int, chunk []*command.Command) error {
		out := c.executeChunk(ctx, chunk, session)
		copy(results[idx*size:], out)
		return nil
	})
	return results
}

func (c *Controller) executeChunk(ctx context.Context, chunk []*command.Command, session string) []BatchResult {
	results := make([]BatchResult, len(chunk))
	fail := func(err error) []BatchResult {
		for i := range results {
			results[i].Err = err
		}
		return results
	}

	requests := make([]any, len(chunk))
	for i, cmd := range chunk {
		req := map[string]any{
			"method": cmd.Method,
			"path":   c.subPath(cmd.Path),
		}
		if cmd.Body != nil {
			req["body"] = cmd.Body
		}
		requests[i] = req
	}
	c.metrics.ObserveBatch(len(chunk))

	resp, err := c.run(ctx, command.New(http.MethodPost, c.config.BatchPath, map[string]any{"requests": requests}), session)
	if err != nil {
		c.logger.Debug("Batch command failed", log.Int("size", len(chunk)), log.Error(err))
		return fail(err)
	}

	raw, _ := resp.Body["results"].([]any)
	if len(raw) != len(chunk) {
		err := fmt.Errorf("%w: expected %d but was %d", ErrBatchResultMismatch, len(chunk), len(raw))
		c.logger.Error("Batch result count mismatch",
			log.Int("expected", len(chunk)),
			log.Int("actual", len(raw)))
		return fail(err)
	}

	for i, item := range raw {
		entry, _ := item.(map[string]any)
		if success, ok := entry["success"]; ok {
			body, _ := success.(map[string]any)
			if body == nil {
				body = map[string]any{}
			}
			results[i].Body = body
			continue
		}
		if failure, ok := entry["error"].(map[string]any); ok {
			results[i].Err = command.ErrorFromBody(failure, 0)
			continue
		}
		results[i].Err = ErrInvalidBatchResult
	}
	return results
}
