package evaluator

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mkoval/refinex/internal"
	"github.com/mkoval/refinex/internal/rubric"
)

// RetryGateway wraps a Gateway with a bounded constant-backoff retry.
// Only ExternalCallError is retried: a ParseError means the model answered
// and answered badly, so asking again with temperature 0 yields the same
// payload. Retries must stay bounded to keep voting-round latency bounded.
type RetryGateway struct {
	inner      Gateway
	maxRetries uint64
	delay      time.Duration
}

// NewRetryGateway wraps inner with at most maxRetries additional attempts.
func NewRetryGateway(inner Gateway, maxRetries uint64, delay time.Duration) *RetryGateway {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &RetryGateway{inner: inner, maxRetries: maxRetries, delay: delay}
}

func (g *RetryGateway) Name() string { return g.inner.Name() }

func (g *RetryGateway) Evaluate(ctx context.Context, content string, r *rubric.Rubric, cfg EvalConfig) ([]internal.CriterionEvaluation, error) {
	var evals []internal.CriterionEvaluation

	b := retry.WithMaxRetries(g.maxRetries, retry.NewConstant(g.delay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		res, err := g.inner.Evaluate(ctx, content, r, cfg)
		if err != nil {
			var extErr *internal.ExternalCallError
			if errors.As(err, &extErr) {
				return retry.RetryableError(err)
			}
			return err
		}
		evals = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return evals, nil
}
