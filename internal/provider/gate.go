package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
	"github.com/kursadbilgin/cadence-dispatch/internal/ratelimit"
)

const (
	defaultAttemptTimeout = 15 * time.Second
	rateLimitScope        = "email"
)

// Gate is the single entry point to the transport. Every attempt waits for
// the rate limiter, runs under its own timeout and fails as *domain.DeliveryError.
type Gate struct {
	provider Provider
	limiter  ratelimit.RateLimiter
	timeout  time.Duration
}

func NewGate(p Provider, limiter ratelimit.RateLimiter, timeout time.Duration) (*Gate, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}

	return &Gate{
		provider: p,
		limiter:  limiter,
		timeout:  timeout,
	}, nil
}

func (g *Gate) Deliver(ctx context.Context, recipientID string, msg Message) (*ProviderResponse, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, rateLimitScope); err != nil {
			return nil, &domain.DeliveryError{
				RecipientID: recipientID,
				Cause:       &ProviderError{Message: "rate limiter wait failed", Reason: ReasonRateLimit, Cause: err},
			}
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.provider.Deliver(attemptCtx, msg)
	if err != nil {
		return nil, &domain.DeliveryError{RecipientID: recipientID, Cause: err}
	}
	return resp, nil
}
