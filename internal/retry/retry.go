// File: internal/retry/retry.go

// Package retry wraps a fallible operation with bounded exponential-backoff
// retry. Failures are retried uniformly regardless of kind: a permanently
// missing element is retried just like a transient network stall. Callers
// opting into retry accept this.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voidhawk9/autoteller/api/schemas"
)

// Policy bounds the retry loop. Between attempt i and i+1 (0-indexed) the
// loop sleeps BaseDelay * 2^i. The backoff has no jitter and no cap, a
// known limitation.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches the documented command defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Do runs op up to p.MaxAttempts times. On exhaustion it surfaces the last
// observed failure (not the first) wrapped as a retry-exhausted error. A
// MaxAttempts of 1 or less runs op exactly once and propagates its failure
// untouched.
func Do(ctx context.Context, p Policy, log *zap.Logger, op func(context.Context) error) error {
	if p.MaxAttempts <= 1 {
		return op(ctx)
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			log.Debug("Backing off before retry attempt.",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay))
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		log.Warn("Attempt failed.",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.Error(lastErr))
	}

	return schemas.WrapError(schemas.KindRetryExhausted, lastErr,
		"operation failed after %d attempts", p.MaxAttempts)
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
