package service

import (
	"context"
	"time"

	"keystat/internal/platform/logger"
	ptime "keystat/internal/platform/time"
	"keystat/internal/services/keystat/domain"
)

// Scheduler submits a flush marker at every wall clock interval boundary.
// Boundaries follow the wall clock, so a clock step during a sleep makes
// that flush early or late
type Scheduler struct {
	every  time.Duration
	submit func(domain.FlushMarker)
	log    logger.Logger
}

// NewScheduler builds a scheduler for interval every
func NewScheduler(every time.Duration, submit func(domain.FlushMarker), log logger.Logger) *Scheduler {
	return &Scheduler{every: every, submit: submit, log: log}
}

// Window returns the start of the interval containing t and the boundary that closes it
func (s *Scheduler) Window(t time.Time) (start, next time.Time) {
	return ptime.Floor(t, s.every), ptime.Next(t, s.every)
}

// Run sleeps to each boundary and submits the interval that just ended
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		t := now()
		start, next := s.Window(t)
		if err := sleep(ctx, next.Sub(t)); err != nil {
			return err
		}
		m := domain.NewFlushMarker(start)
		s.submit(m)
		s.log.Debug().Int64("t", m.Epoch).Str("tz", m.Local).Msg("flush requested")
	}
}
