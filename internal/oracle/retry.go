package oracle

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// backoffBase is the first retry delay; it doubles on every attempt. Tests
// override it to avoid real sleeps.
var backoffBase = time.Second

// DefaultMaxRetries is the retry budget for a single oracle call.
const DefaultMaxRetries = 3

// Retrying wraps an Oracle and retries calls that fail with a retriable
// error. Fatal errors are returned after the first attempt.
type Retrying struct {
	next       Oracle
	maxRetries int
	logger     *slog.Logger
}

var _ Oracle = (*Retrying)(nil)

// WithRetry returns next wrapped in a bounded exponential-backoff retry loop.
func WithRetry(next Oracle, maxRetries int, logger *slog.Logger) *Retrying {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, maxRetries: maxRetries, logger: logger}
}

func (r *Retrying) Analyze(ctx context.Context, content Content) (*Analysis, error) {
	return retry(ctx, r, "analyze", func() (*Analysis, error) {
		return r.next.Analyze(ctx, content)
	})
}

func (r *Retrying) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return retry(ctx, r, "transcribe", func() (string, error) {
		return r.next.Transcribe(ctx, audio, mimeType)
	})
}

func (r *Retrying) ExtractText(ctx context.Context, content Content) (string, error) {
	return retry(ctx, r, "extractText", func() (string, error) {
		return r.next.ExtractText(ctx, content)
	})
}

func retry[T any](ctx context.Context, r *Retrying, op string, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			r.logger.Warn("Oracle call failed, will retry.",
				"op", op,
				"attempt", attempt,
				"maxRetries", r.maxRetries,
				"backoff", backoff.String(),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return zero, Fatal(op, ctx.Err())
			case <-time.After(backoff):
			}
		}

		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = Classify(op, err)
		if !IsRetriable(lastErr) {
			return zero, lastErr
		}
	}
	r.logger.Error("Oracle call failed after all retries.", "op", op, "error", lastErr)
	return zero, lastErr
}
