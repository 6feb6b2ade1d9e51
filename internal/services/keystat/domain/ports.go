package domain

import "context"

// Sink receives every interval snapshot
// Emit returns once the snapshot is handed off; the aggregator resets after it returns
type Sink interface {
	Emit(ctx context.Context, s Snapshot) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, s Snapshot) error

// Emit calls f
func (f SinkFunc) Emit(ctx context.Context, s Snapshot) error { return f(ctx, s) }

// Device is an opened key capable input device
type Device interface {
	Name() string
	// Next blocks for the next event; an error ends the device
	Next() (InputEvent, error)
	// Close releases the device and unblocks a pending Next
	Close() error
}

// DirWatcher is a live subscription to entries created in a directory
type DirWatcher interface {
	Next() ([]DirRecord, error)
	Close() error
}

// StatusPort is the read side exposed on the status server
type StatusPort interface {
	Devices() []DeviceInfo
	LastSnapshot() (Snapshot, bool)
	// Pending is the aggregator queue depth
	Pending() int
	// Flushes counts intervals emitted since start
	Flushes() uint64
}

// RunnerPort runs the collector until ctx is done or a fatal error
type RunnerPort interface {
	Run(ctx context.Context) error
}
