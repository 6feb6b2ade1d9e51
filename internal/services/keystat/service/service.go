// Package service implements device discovery, per-device readers, the
// interval aggregator and the flush scheduler
package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"

	"golang.org/x/sync/errgroup"
)

// Config is the service configuration after validation
type Config struct {
	Interval  time.Duration
	Buckets   Buckets
	DeviceDir string
	Pattern   *regexp.Regexp
}

// Svc wires the collector parts around one queue
type Svc struct {
	Set       *DeviceSet
	Agg       *Aggregator
	Sched     *Scheduler
	Readers   *Reader
	Discovery *Discovery

	log logger.Logger
}

// New builds the collector; nothing runs until Run
func New(cfg Config, sink domain.Sink, open Opener, watch WatchFunc, log logger.Logger) *Svc {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Buckets.WidthMs <= 0 {
		cfg.Buckets = DefaultBuckets
	}
	if cfg.DeviceDir == "" {
		cfg.DeviceDir = "/dev/input"
	}

	s := &Svc{Set: NewDeviceSet(), log: log}
	s.Agg = NewAggregator(cfg.Buckets, sink, child(log, "aggregator"))
	s.Sched = NewScheduler(cfg.Interval, s.Agg.SubmitFlush, child(log, "scheduler"))
	s.Readers = NewReader(s.Set, open, s.Agg.SubmitSample, child(log, "reader"))
	s.Discovery = NewDiscovery(cfg.DeviceDir, cfg.Pattern, watch, s.Readers.Spawn, child(log, "discovery"))
	return s
}

// Run starts the aggregator, scheduler and discovery and blocks until ctx is
// done or one of them fails. It returns only after every goroutine it started,
// read loops included, has exited. Pending state is dropped on return
func (s *Svc) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Agg.Run(gctx) })
	g.Go(func() error { return s.Sched.Run(gctx) })
	g.Go(func() error { return s.Discovery.Run(gctx) })

	// discovery has returned, so no read loop can start after this point
	err := g.Wait()
	s.Readers.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.log.Error().Err(err).Msg("collector stopped")
	return err
}

// Devices lists the devices that currently have a reader
func (s *Svc) Devices() []domain.DeviceInfo { return s.Set.List() }

// LastSnapshot returns the most recently emitted interval
func (s *Svc) LastSnapshot() (domain.Snapshot, bool) { return s.Agg.LastSnapshot() }

// Pending is the number of queued aggregator events
func (s *Svc) Pending() int { return s.Agg.Pending() }

// Flushes counts intervals emitted since start
func (s *Svc) Flushes() uint64 { return s.Agg.Flushes() }

func child(log logger.Logger, component string) logger.Logger {
	return log.With().Str("component", component).Logger()
}
