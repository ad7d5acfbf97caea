package provider

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// RateLimited throttles every call to the wrapped provider.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

var _ Provider = (*RateLimited)(nil)

// WithRateLimit wraps p so that it makes at most rps calls per second. A
// non-positive rps returns p unchanged.
func WithRateLimit(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	burst := max(int(rps), 1)
	return &RateLimited{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

func (r *RateLimited) Complete(ctx context.Context, system, prompt string, temperature float32) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Complete(ctx, system, prompt, temperature)
}

func (r *RateLimited) Name() string {
	return r.inner.Name()
}

// Close releases the wrapped provider's resources when it holds any.
func (r *RateLimited) Close() error {
	if c, ok := r.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
