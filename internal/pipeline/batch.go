package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds fan-out when the caller passes no limit.
const DefaultBatchConcurrency = 5

// EvaluateBatch scores independent snapshots concurrently. Evaluations are
// embarrassingly parallel and individually total, so results arrive in input
// order and the only error is context cancellation.
func (s *Scorer) EvaluateBatch(ctx context.Context, reqs []Request, maxConcurrent int) ([]Result, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultBatchConcurrency
	}

	results := make([]Result, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for i, req := range reqs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.Evaluate(ctx, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
