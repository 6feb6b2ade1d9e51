package sink

import (
	"context"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"
)

// sleep is a seam for tests
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffCeiling caps the doubling wait between attempts
const backoffCeiling = 5 * time.Second

// Retry re-emits on retryable failures with doubling backoff, capped at backoffCeiling
type Retry struct {
	inner    domain.Sink
	attempts int
	backoff  time.Duration
	log      logger.Logger
}

// WithRetry wraps inner; attempts below one means a single try
func WithRetry(inner domain.Sink, attempts int, backoff time.Duration, log logger.Logger) *Retry {
	if attempts < 1 {
		attempts = 1
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	backoff = min(backoff, backoffCeiling)
	return &Retry{inner: inner, attempts: attempts, backoff: backoff, log: log}
}

// Emit tries inner until it succeeds, fails permanently or attempts run out
func (r *Retry) Emit(ctx context.Context, s domain.Snapshot) error {
	wait := r.backoff
	var err error
	for i := 1; ; i++ {
		if err = r.inner.Emit(ctx, s); err == nil || !perr.Retryable(err) || i >= r.attempts {
			return err
		}
		r.log.Warn().Err(err).Int("attempt", i).Dur("backoff", wait).Msg("emit failed; retrying")
		if serr := sleep(ctx, wait); serr != nil {
			return err
		}
		wait = min(wait*2, backoffCeiling)
	}
}
