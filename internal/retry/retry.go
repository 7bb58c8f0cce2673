// Package retry re-runs fallible operations under an exponential backoff
// policy, consulting the error taxonomy to decide what is worth retrying.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"relkit/internal/errors"
	"relkit/internal/procbridge"
	"relkit/internal/slogutil"
)

// Default retry policy.
const (
	DefaultMaxAttempts       = 3
	DefaultInitialDelay      = time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultMaxDelay          = 10 * time.Second
)

// Strategy is pure retry configuration.
type Strategy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// ShouldRetry decides whether a classified failure is retried. Nil
	// means Category.Retryable.
	ShouldRetry func(errors.Category) bool
}

// DefaultStrategy returns the default policy: 3 attempts, 1s doubling up
// to 10s, retrying transient and timeout failures.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:       DefaultMaxAttempts,
		InitialDelay:      DefaultInitialDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		ShouldRetry:       errors.Category.Retryable,
	}
}

// WithDefaults fills zero-valued fields from DefaultStrategy.
func (s Strategy) WithDefaults() Strategy {
	d := DefaultStrategy()
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = d.MaxAttempts
	}
	if s.InitialDelay <= 0 {
		s.InitialDelay = d.InitialDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = d.MaxDelay
	}
	if s.BackoffMultiplier <= 0 {
		s.BackoffMultiplier = d.BackoffMultiplier
	}
	if s.ShouldRetry == nil {
		s.ShouldRetry = d.ShouldRetry
	}
	return s
}

// Delay returns the wait before retry n (0-indexed):
// min(InitialDelay * BackoffMultiplier^n, MaxDelay).
func (s Strategy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	d := float64(s.InitialDelay) * math.Pow(s.BackoffMultiplier, float64(n))
	if s.MaxDelay > 0 && d > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(d)
}

func (s Strategy) retryable(err error) bool {
	ce, ok := errors.As(err)
	if !ok {
		// Unclassified failures are retried until attempts run out.
		return true
	}
	if s.ShouldRetry == nil {
		return ce.IsRetryable()
	}
	return s.ShouldRetry(ce.Category)
}

// Engine runs operations under a Strategy. The zero value is usable.
type Engine struct {
	// Sleep waits for d or until ctx is done. Nil means a real timer.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

// NewEngine creates an Engine that sleeps on a real timer.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{Logger: logger}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e != nil && e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}

func (e *Engine) logger() *slog.Logger {
	if e == nil {
		return slogutil.NewDiscardLogger()
	}
	return slogutil.OrDiscard(e.Logger)
}

// SleepContext waits for d, returning ctx.Err() if ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do calls op until it succeeds, fails with a non-retryable classified
// error, or the strategy's attempts are exhausted. A non-retryable error is
// returned unchanged. Exhaustion yields an Unknown-category error wrapping
// the last failure.
func Do[T any](ctx context.Context, e *Engine, s Strategy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 1
	}
	log := e.logger()

	var lastErr error
	for attempt := 0; attempt < s.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.Delay(attempt - 1)
			log.Debug("Retrying operation",
				"attempt", attempt+1,
				"maxAttempts", s.MaxAttempts,
				"delay", delay,
			)
			if err := e.sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempt, err)
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !s.retryable(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("retry aborted after %d attempts: %w", attempt+1, ctx.Err())
		}
		log.Warn("Attempt failed",
			"attempt", attempt+1,
			"maxAttempts", s.MaxAttempts,
			"category", string(errors.CategoryOf(err)),
			"error", err.Error(),
		)
	}

	return zero, errors.New(errors.Unknown,
		fmt.Sprintf("operation failed after %d attempts", s.MaxAttempts),
		lastErr, executionOf(lastErr), nil)
}

func executionOf(err error) *procbridge.ExecutionResult {
	if ce, ok := errors.As(err); ok {
		return ce.Execution
	}
	return nil
}
