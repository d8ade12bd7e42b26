package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy describes how often and how long to retry.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries   int
	Initial   time.Duration
	Max       time.Duration
	Factor    float64
	Retryable func(error) bool
	OnRetry   func(attempt int, delay time.Duration, err error)
}

// DefaultPolicy retries five times starting at one second, doubling up to
// thirty seconds.
func DefaultPolicy() Policy {
	return Policy{
		Retries: 5,
		Initial: time.Second,
		Max:     30 * time.Second,
		Factor:  2,
	}
}

// Backoff returns the delay before retry number attempt (starting at 1).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.Initial
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

// Option adjusts a Policy.
type Option func(*Policy)

// Do runs op until it succeeds, returns a permanent error, the retry budget
// is spent or ctx ends. Errors wrapped with Fatal, or rejected by the
// predicate set with If, are permanent.
func Do(ctx context.Context, op func() error, opts ...Option) error {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}

	for attempt := 0; ; attempt++ {
		err := op()
		switch {
		case err == nil:
			return nil
		case IsFatal(err):
			return fmt.Errorf("fatal error (not retrying): %w", err)
		case p.Retryable != nil && !p.Retryable(err):
			return err
		case attempt == p.Retries:
			return fmt.Errorf("operation failed after %d attempts: %w", attempt+1, err)
		}

		delay := p.Backoff(attempt + 1)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if werr := sleep(ctx, delay); werr != nil {
			return fmt.Errorf("context cancelled after %d attempts: %w", attempt+1, errors.Join(werr, err))
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(p *Policy) { p.Retries = n }
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) { p.Initial = d }
}

// WithMaxDelay caps the delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) { p.Max = d }
}

// WithMultiplier sets the backoff growth factor.
func WithMultiplier(m float64) Option {
	return func(p *Policy) { p.Factor = m }
}

// If restricts retries to errors for which retryable returns true.
func If(retryable func(error) bool) Option {
	return func(p *Policy) { p.Retryable = retryable }
}

// OnRetry registers a callback invoked before each backoff sleep.
func OnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// FatalError marks an error as permanent.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal marks err as permanent. Fatal(nil) is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
