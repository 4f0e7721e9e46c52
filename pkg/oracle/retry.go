package oracle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds how many times one question is asked.
const DefaultMaxAttempts = 3

// ErrExhausted wraps the last failure once every attempt has been used.
var ErrExhausted = errors.New("oracle attempts exhausted")

// Retry asks an Oracle the same question until an answer is accepted.
// Attempts are strictly sequential.
type Retry struct {
	MaxAttempts int
	// Backoff returns the pause after a failed attempt (1-based).
	// Defaults to 0.5s times the attempt number.
	Backoff func(attempt int) time.Duration
	// AttemptTimeout bounds each Complete call. Zero leaves it to the Oracle.
	AttemptTimeout time.Duration
	// Sleep waits between attempts; it must return early when ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	Log   *zap.Logger
}

func linearBackoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls o until accept returns nil for the raw answer. Configuration
// errors stop immediately; retryable errors are retried up to MaxAttempts.
// It returns the number of attempts made.
func (r Retry) Do(ctx context.Context, o Oracle, system, user string, accept func(raw string) error) (int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = linearBackoff
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, newError(ErrUnavailable, err, "abandoned before attempt %d", attempt)
		}

		err := r.once(ctx, o, system, user, accept)
		if err == nil {
			log.Debug("oracle answer accepted", zap.Int("attempt", attempt))
			return attempt, nil
		}
		lastErr = err
		log.Error("oracle attempt failed",
			zap.Int("attempt", attempt),
			zap.String("kind", KindOf(err)),
			zap.Bool("timeout", IsTimeout(err)),
			zap.Error(err),
		)
		if !Retryable(err) {
			return attempt, err
		}
		if attempt < maxAttempts {
			if err := sleep(ctx, backoff(attempt)); err != nil {
				return attempt, newError(ErrUnavailable, err, "abandoned after attempt %d", attempt)
			}
		}
	}

	log.Error("oracle retries exhausted", zap.Int("attempts", maxAttempts), zap.String("last_kind", KindOf(lastErr)))
	return maxAttempts, newError(ErrExhausted, lastErr, "%d attempts", maxAttempts)
}

func (r Retry) once(ctx context.Context, o Oracle, system, user string, accept func(string) error) error {
	if r.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.AttemptTimeout)
		defer cancel()
	}
	raw, err := o.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	return accept(raw)
}
