package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// PermanentError marks an error that must not be retried.
type PermanentError interface {
	error
	IsPermanent() bool
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) IsPermanent() bool {
	return true
}

func (e *permanentError) Unwrap() error {
	return e.err
}

func NewPermanentError(err error) PermanentError {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// Errors implementing PermanentError stop the retries immediately.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	return DoWithCallback(ctx, policy, fn, nil)
}

// DoWithCallback is Do with an onRetry hook invoked before each backoff wait.
func DoWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	b := newBackoff(policy)
	b = backoff.WithContext(b, ctx)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()

		if err == nil {
			return nil
		}

		var permErr PermanentError
		if errors.As(err, &permErr) {
			return backoff.Permanent(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			nextDelay := NextDelay(attempt, policy.InitialInterval, policy.Multiplier, policy.MaxInterval)
			onRetry(attempt, err, nextDelay)
		}

		return err
	}

	return backoff.Retry(operation, b)
}
