package llm

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ThrottledClient wraps a Client with a local token-bucket limiter and a
// single retry on transient failure. Provider quotas are per API key, so
// an in-process limiter is enough for a single-user CLI.
type ThrottledClient struct {
	inner   Client
	limiter *rate.Limiter
	backoff time.Duration
	logger  *logrus.Logger
}

// NewThrottledClient wraps inner at requestsPerMinute. Zero or negative
// disables throttling but keeps the retry.
func NewThrottledClient(inner Client, requestsPerMinute int, logger *logrus.Logger) *ThrottledClient {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1)
	}
	return &ThrottledClient{
		inner:   inner,
		limiter: limiter,
		backoff: 2 * time.Second,
		logger:  logger,
	}
}

func (c *ThrottledClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.inner.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	c.logger.WithError(err).Warn("llm request failed, retrying once")
	select {
	case <-time.After(c.backoff):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if werr := c.limiter.Wait(ctx); werr != nil {
		return nil, werr
	}
	return c.inner.Complete(ctx, req)
}

func (c *ThrottledClient) Close() error { return c.inner.Close() }
