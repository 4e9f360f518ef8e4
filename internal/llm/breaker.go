package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerMaxFailures uint32 = 5
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval clears the failure counts while closed. Zero uses the default.
	Interval time.Duration
}

// BreakerGateway fails fast while the wrapped provider keeps failing. Calls
// rejected by an open circuit are still reported as *GatewayError, so the
// orchestrator treats them like any other failed request.
type BreakerGateway struct {
	inner    Gateway
	provider string
	breaker  *gobreaker.CircuitBreaker[Completion]
}

func NewBreakerGateway(inner Gateway, provider string, cfg BreakerConfig, logger *slog.Logger) *BreakerGateway {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[Completion](gobreaker.Settings{
		Name:        "llm:" + provider,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &BreakerGateway{inner: inner, provider: provider, breaker: cb}
}

func (g *BreakerGateway) Complete(ctx context.Context, turns []Turn, model string, opts Options) (Completion, error) {
	out, err := g.breaker.Execute(func() (Completion, error) {
		return g.inner.Complete(ctx, turns, model, opts)
	})
	if err == nil {
		return out, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Completion{}, &GatewayError{
			Provider: g.provider,
			Model:    model,
			Err:      fmt.Errorf("circuit open: %w", err),
		}
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return Completion{}, err
	}
	return Completion{}, &GatewayError{Provider: g.provider, Model: model, Err: err}
}

func (g *BreakerGateway) State() gobreaker.State {
	return g.breaker.State()
}

var _ Gateway = (*BreakerGateway)(nil)
