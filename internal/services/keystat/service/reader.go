package service

import (
	"context"
	"sync"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"
)

// Opener opens and verifies a device path
type Opener func(path domain.DeviceID) (domain.Device, error)

// Reader starts one goroutine per device turning key-down events into delays
type Reader struct {
	set    *DeviceSet
	open   Opener
	submit func(ms int64)
	log    logger.Logger
	wg     sync.WaitGroup
}

// NewReader builds a reader that claims in set and submits delays to submit
func NewReader(set *DeviceSet, open Opener, submit func(ms int64), log logger.Logger) *Reader {
	return &Reader{set: set, open: open, submit: submit, log: log}
}

// Spawn claims id, opens it and starts its read loop.
// It reports false when id is already handled or the device is rejected;
// a rejected device is released again and not retried. Nothing is spawned once ctx is done
func (r *Reader) Spawn(ctx context.Context, id domain.DeviceID) bool {
	if ctx.Err() != nil {
		return false
	}
	if !r.set.Claim(id) {
		return false
	}
	dev, err := r.open(id)
	if err != nil {
		r.set.Release(id)
		ev := r.log.Warn()
		if perr.IsCode(err, perr.ErrorCodeNotKeyboard) {
			ev = r.log.Debug()
		}
		ev.Err(err).Str("path", id).Msg("device skipped")
		return false
	}
	r.set.Describe(id, dev.Name())
	r.log.Info().Str("path", id).Str("name", dev.Name()).Msg("device attached")

	r.wg.Add(1)
	go r.loop(ctx, id, dev)
	return true
}

// Wait blocks until every read loop has exited
func (r *Reader) Wait() { r.wg.Wait() }

func (r *Reader) loop(ctx context.Context, id domain.DeviceID, dev domain.Device) {
	defer r.wg.Done()

	var once sync.Once
	closeDev := func() { once.Do(func() { _ = dev.Close() }) }
	stop := context.AfterFunc(ctx, closeDev)

	defer func() {
		stop()
		closeDev()
		// release after close: a node re-created before this point is not picked up
		r.set.Release(id)
		r.log.Info().Str("path", id).Msg("device detached")
	}()

	var prev time.Duration
	primed := false
	for {
		ev, err := dev.Next()
		if err != nil {
			if ctx.Err() == nil {
				r.log.Warn().Err(err).Str("path", id).Msg("device read ended")
			}
			return
		}
		if !ev.KeyDown() {
			continue
		}
		t := monotonic()
		if primed && t < prev {
			fatal(&r.log, perr.Newf(perr.ErrorCodeClockWarp, "monotonic clock went from %s to %s", prev, t), "clock went backwards")
			return
		}
		// the first key-down only starts the device timeline
		if primed {
			r.submit((t - prev).Milliseconds())
		}
		prev, primed = t, true
	}
}
