package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estate-market-backend/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryPolicy bounds the attempts made for a single gateway call.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	CallTimeout     time.Duration
}

// BreakerPolicy configures the circuit breaker shared by all calls.
type BreakerPolicy struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// ResilientGateway decorates a Gateway with bounded exponential retry and a
// circuit breaker. Exhausted retries and an open breaker both surface as
// ErrGatewayUnavailable.
type ResilientGateway struct {
	next    Gateway
	retry   RetryPolicy
	breaker *gobreaker.CircuitBreaker
}

func NewResilientGateway(next Gateway, retry RetryPolicy, bp BreakerPolicy) *ResilientGateway {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	threshold := bp.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: bp.MaxRequests,
		Interval:    bp.Interval,
		Timeout:     bp.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Declines and settled intents say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &ResilientGateway{
		next:    next,
		retry:   retry,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *ResilientGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	var intent *Intent
	err := g.do(ctx, "CreateIntent", func(callCtx context.Context) error {
		var err error
		intent, err = g.next.CreateIntent(callCtx, amountMinor, currency, metadata)
		return err
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

func (g *ResilientGateway) CancelIntent(ctx context.Context, id string) error {
	return g.do(ctx, "CancelIntent", func(callCtx context.Context) error {
		return g.next.CancelIntent(callCtx, id)
	})
}

func (g *ResilientGateway) do(ctx context.Context, op string, call func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	if g.retry.InitialInterval > 0 {
		b.InitialInterval = g.retry.InitialInterval
	}
	if g.retry.MaxInterval > 0 {
		b.MaxInterval = g.retry.MaxInterval
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.retry.MaxAttempts-1)), ctx)

	attempt := 0
	var lastErr error
	permanent := false

	err := backoff.Retry(func() error {
		attempt++
		_, err := g.breaker.Execute(func() (interface{}, error) {
			callCtx := ctx
			if g.retry.CallTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, g.retry.CallTimeout)
				defer cancel()
			}
			return nil, call(callCtx)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if !IsRetryable(err) {
			permanent = true
			return backoff.Permanent(err)
		}
		logger.Warn("Payment gateway call failed, will retry", "operation", op, "attempt", attempt, "error", err)
		return err
	}, policy)

	if err == nil {
		return nil
	}
	if permanent {
		return err
	}
	if lastErr == nil {
		lastErr = err
	}
	return fmt.Errorf("%w: %s after %d attempt(s): %v", ErrGatewayUnavailable, op, attempt, lastErr)
}

// State reports the breaker state for health checks.
func (g *ResilientGateway) State() gobreaker.State {
	return g.breaker.State()
}

// CheckHealth fails while the breaker is open and calls are being shed.
func (g *ResilientGateway) CheckHealth() error {
	if g.State() == gobreaker.StateOpen {
		return fmt.Errorf("%w: circuit breaker open", ErrGatewayUnavailable)
	}
	return nil
}
