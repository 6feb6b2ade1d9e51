package service

import (
	"strconv"

	"keystat/internal/services/keystat/domain"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// OverflowLabel names the bucket for delays above the ceiling
const OverflowLabel = "inf"

// hdrMaxMs bounds the percentile tracker; longer delays are clamped
const hdrMaxMs = 24 * 60 * 60 * 1000

// Buckets is the fixed bucket layout: [0,W) [W,2W) ... up to and including MaxMs, then overflow
type Buckets struct {
	WidthMs int64
	MaxMs   int64
}

// DefaultBuckets is 10ms wide buckets up to two seconds
var DefaultBuckets = Buckets{WidthMs: 10, MaxMs: 2000}

// Len is the number of buckets including overflow
func (b Buckets) Len() int { return int(b.MaxMs/b.WidthMs) + 2 }

// Overflow is the index of the overflow bucket
func (b Buckets) Overflow() int { return b.Len() - 1 }

// Index classifies a delay. Negative delays clamp to the first bucket
func (b Buckets) Index(ms int64) int {
	switch {
	case ms < 0:
		return 0
	case ms > b.MaxMs:
		return b.Overflow()
	default:
		return int(ms / b.WidthMs)
	}
}

// Lower is the inclusive lower bound of bucket i in milliseconds
func (b Buckets) Lower(i int) int64 {
	if i >= b.Overflow() {
		return b.MaxMs + 1
	}
	return int64(i) * b.WidthMs
}

// Label names bucket i by its lower bound, or OverflowLabel
func (b Buckets) Label(i int) string {
	if i >= b.Overflow() {
		return OverflowLabel
	}
	return strconv.FormatInt(b.Lower(i), 10)
}

// Histogram accumulates one interval. It is not safe for concurrent use;
// only the aggregator goroutine touches it
type Histogram struct {
	b      Buckets
	counts []uint64
	total  uint64
	hdr    *hdrhistogram.Histogram
}

// NewHistogram returns an empty histogram for layout b
func NewHistogram(b Buckets) *Histogram {
	return &Histogram{
		b:      b,
		counts: make([]uint64, b.Len()),
		hdr:    hdrhistogram.New(1, hdrMaxMs, 2),
	}
}

// Add counts one delay
func (h *Histogram) Add(ms int64) {
	h.counts[h.b.Index(ms)]++
	h.total++
	_ = h.hdr.RecordValue(min(max(ms, 0), hdrMaxMs))
}

// Total is the number of delays counted since the last reset
func (h *Histogram) Total() uint64 { return h.total }

// Snapshot copies the current counts for the interval closed by m
func (h *Histogram) Snapshot(m domain.FlushMarker) domain.Snapshot {
	s := domain.Snapshot{
		Start:   m.Start,
		Epoch:   m.Epoch,
		Local:   m.Local,
		Buckets: []domain.Bucket{},
		Total:   h.total,
	}
	for i, c := range h.counts {
		if c == 0 {
			continue
		}
		s.Buckets = append(s.Buckets, domain.Bucket{Label: h.b.Label(i), LowerMs: h.b.Lower(i), Count: c})
	}
	if h.total > 0 {
		s.P50Ms = h.hdr.ValueAtQuantile(50)
		s.P90Ms = h.hdr.ValueAtQuantile(90)
		s.P99Ms = h.hdr.ValueAtQuantile(99)
		s.MaxMs = h.hdr.Max()
	}
	return s
}

// Reset zeroes every counter
func (h *Histogram) Reset() {
	clear(h.counts)
	h.total = 0
	h.hdr.Reset()
}
