package service

import (
	"context"
	"sync"
	"time"

	"keystat/internal/adapters/evdev"
	perr "keystat/internal/platform/errors"
	"keystat/internal/services/keystat/domain"
)

var keyDown = domain.InputEvent{Type: evdev.TypeKey, Code: 30, Value: evdev.ValueDown}

// fakeDevice delivers events pushed on events; closing events ends the stream with an I/O error
type fakeDevice struct {
	name   string
	events chan domain.InputEvent
	closed chan struct{}
	once   sync.Once
}

func newFakeDevice(name string) *fakeDevice {
	return &fakeDevice{name: name, events: make(chan domain.InputEvent), closed: make(chan struct{})}
}

func (d *fakeDevice) Name() string { return d.name }

func (d *fakeDevice) Next() (domain.InputEvent, error) {
	select {
	case ev, ok := <-d.events:
		if !ok {
			return domain.InputEvent{}, perr.New(perr.ErrorCodeDeviceIO, "no such device")
		}
		return ev, nil
	case <-d.closed:
		return domain.InputEvent{}, perr.New(perr.ErrorCodeDeviceIO, "file already closed")
	}
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

func (d *fakeDevice) isClosed() bool {
	select {
	case <-d.closed:
		return true
	default:
		return false
	}
}

// fakeWatcher yields queued batches then blocks until closed
type fakeWatcher struct {
	batches chan []domain.DirRecord
	errs    chan error
	closed  chan struct{}
	once    sync.Once
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		batches: make(chan []domain.DirRecord, 8),
		errs:    make(chan error, 1),
		closed:  make(chan struct{}),
	}
}

func (w *fakeWatcher) Next() ([]domain.DirRecord, error) {
	select {
	case b := <-w.batches:
		return b, nil
	case err := <-w.errs:
		return nil, err
	case <-w.closed:
		return nil, perr.New(perr.ErrorCodeUnavailable, "closed")
	}
}

func (w *fakeWatcher) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

// recorder collects submitted delays
type recorder struct {
	mu  sync.Mutex
	got []int64
}

func (r *recorder) submit(ms int64) {
	r.mu.Lock()
	r.got = append(r.got, ms)
	r.mu.Unlock()
}

func (r *recorder) values() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.got...)
}

// sinkRec captures emitted snapshots
type sinkRec struct {
	ch  chan domain.Snapshot
	err error
}

func newSinkRec() *sinkRec { return &sinkRec{ch: make(chan domain.Snapshot, 16)} }

func (s *sinkRec) Emit(_ context.Context, snap domain.Snapshot) error {
	s.ch <- snap
	return s.err
}

func (s *sinkRec) next(within time.Duration) (domain.Snapshot, bool) {
	select {
	case snap := <-s.ch:
		return snap, true
	case <-time.After(within):
		return domain.Snapshot{}, false
	}
}

// clockSeq returns successive monotonic readings, repeating the last
func clockSeq(readings ...time.Duration) func() time.Duration {
	var mu sync.Mutex
	i := 0
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		v := readings[i]
		if i < len(readings)-1 {
			i++
		}
		return v
	}
}
