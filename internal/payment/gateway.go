package payment

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrGatewayUnavailable is returned when retries are exhausted or the
	// circuit breaker is open.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrIntentSettled is returned by CancelIntent when the intent already
	// succeeded or was cancelled.
	ErrIntentSettled = errors.New("payment intent can no longer be cancelled")
)

// Intent is an in-progress charge at the payment provider.
type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway creates and cancels payment intents. Amounts are in the smallest
// currency unit.
type Gateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

// ProviderError describes a failed provider call.
type ProviderError struct {
	Op         string
	Code       string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment %s failed (status %d, code %q): %v", e.Op, e.StatusCode, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return !errors.Is(err, ErrIntentSettled) && !errors.Is(err, context.Canceled)
}
