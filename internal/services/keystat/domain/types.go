// Package domain holds the keystat data model and the ports between its parts
package domain

import (
	"time"

	"keystat/internal/adapters/evdev"
	"keystat/internal/adapters/inotify"
	ptime "keystat/internal/platform/time"
)

// DeviceID names a device by its filesystem path
type DeviceID = string

// InputEvent is a normalized input event as delivered by a device
type InputEvent = evdev.Event

// DirRecord is one change notification from the device directory
type DirRecord = inotify.Record

// FlushMarker closes the interval that started at Start
type FlushMarker struct {
	Start time.Time
	Epoch int64  // Start in unix seconds
	Local string // Start as local calendar time, YYYY-MM-DD HH:MM:SS
}

// NewFlushMarker builds a marker for the interval starting at start
func NewFlushMarker(start time.Time) FlushMarker {
	return FlushMarker{Start: start, Epoch: start.Unix(), Local: ptime.Local(start)}
}

// EventKind tags an aggregator event
type EventKind uint8

const (
	// KindSample carries a delay in milliseconds
	KindSample EventKind = iota + 1
	// KindFlush carries a FlushMarker
	KindFlush
)

// Event is the only message readers and the scheduler send to the aggregator
type Event struct {
	Kind  EventKind
	Ms    int64
	Flush FlushMarker
}

// Bucket is one non-empty histogram slot in a snapshot
type Bucket struct {
	Label   string `json:"label"`
	LowerMs int64  `json:"lower_ms"`
	Count   uint64 `json:"count"`
}

// Snapshot is one interval's histogram as handed to sinks
type Snapshot struct {
	Start   time.Time `json:"start"`
	Epoch   int64     `json:"epoch"`
	Local   string    `json:"local"`
	Buckets []Bucket  `json:"buckets"` // ascending, zero counts omitted
	Total   uint64    `json:"total"`
	P50Ms   int64     `json:"p50_ms"`
	P90Ms   int64     `json:"p90_ms"`
	P99Ms   int64     `json:"p99_ms"`
	MaxMs   int64     `json:"max_ms"`
}

// Events returns bucket label to count
func (s Snapshot) Events() map[string]uint64 {
	out := make(map[string]uint64, len(s.Buckets))
	for _, b := range s.Buckets {
		out[b.Label] = b.Count
	}
	return out
}

// DeviceInfo describes a claimed device
type DeviceInfo struct {
	Path  DeviceID  `json:"path"`
	Name  string    `json:"name,omitempty"`
	Since time.Time `json:"since"`
}
