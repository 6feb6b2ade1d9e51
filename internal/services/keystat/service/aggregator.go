package service

import (
	"context"
	"sync/atomic"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"
)

// Aggregator is the single consumer of the event queue.
// It owns the histogram; readers and the scheduler only ever Push
type Aggregator struct {
	q    *Queue
	h    *Histogram
	sink domain.Sink
	log  logger.Logger

	last    atomic.Pointer[domain.Snapshot]
	flushes atomic.Uint64
}

// NewAggregator builds an aggregator emitting to sink
func NewAggregator(b Buckets, sink domain.Sink, log logger.Logger) *Aggregator {
	return &Aggregator{q: NewQueue(), h: NewHistogram(b), sink: sink, log: log}
}

// SubmitSample queues one delay
func (a *Aggregator) SubmitSample(ms int64) {
	a.q.Push(domain.Event{Kind: domain.KindSample, Ms: ms})
}

// SubmitFlush queues an interval boundary
func (a *Aggregator) SubmitFlush(m domain.FlushMarker) {
	a.q.Push(domain.Event{Kind: domain.KindFlush, Flush: m})
}

// Run consumes events in arrival order until ctx is done
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.q.Ready():
		}
		// a wake-up can find the queue already drained
		for {
			batch := a.q.Drain()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				a.handle(ctx, ev)
			}
		}
	}
}

func (a *Aggregator) handle(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.KindSample:
		a.h.Add(ev.Ms)
	case domain.KindFlush:
		a.flush(ctx, ev.Flush)
	default:
		a.log.Warn().Uint8("kind", uint8(ev.Kind)).Msg("unknown aggregator event dropped")
	}
}

func (a *Aggregator) flush(ctx context.Context, m domain.FlushMarker) {
	snap := a.h.Snapshot(m)
	began := time.Now()
	err := a.sink.Emit(ctx, snap)
	a.h.Reset()
	a.last.Store(&snap)
	a.flushes.Add(1)

	if err != nil {
		a.log.Error().Err(err).Str("kind", perr.CodeOf(err).String()).
			Int64("t", snap.Epoch).Msg("interval emit failed")
	}
	a.log.Info().
		Int64("t", snap.Epoch).
		Str("tz", snap.Local).
		Uint64("total", snap.Total).
		Int64("p50_ms", snap.P50Ms).
		Int64("p90_ms", snap.P90Ms).
		Int64("p99_ms", snap.P99Ms).
		Int64("max_ms", snap.MaxMs).
		Dur("emit", time.Since(began)).
		Msg("interval flushed")
}

// LastSnapshot returns the most recently emitted snapshot
func (a *Aggregator) LastSnapshot() (domain.Snapshot, bool) {
	s := a.last.Load()
	if s == nil {
		return domain.Snapshot{}, false
	}
	return *s, true
}

// Flushes counts emitted intervals
func (a *Aggregator) Flushes() uint64 { return a.flushes.Load() }

// Pending is the current queue depth
func (a *Aggregator) Pending() int { return a.q.Len() }
