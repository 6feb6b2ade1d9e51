package service

import (
	"context"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"

	"golang.org/x/sys/unix"
)

// seams for tests
var (
	now       = time.Now
	sleep     = sleepCtx
	monotonic = clockMonotonic
	fatal     = exit
)

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

// clockMonotonic reads CLOCK_MONOTONIC, the clock evdev timestamps latency on
func clockMonotonic() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}

// exit logs a structural violation and terminates the process
func exit(log *logger.Logger, err error, msg string) {
	log.Fatal().Err(err).Str("kind", perr.CodeOf(err).String()).Msg(msg)
}
