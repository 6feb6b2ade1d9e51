package repo

import (
	"context"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/store"
	"keystat/internal/services/keystat/domain"
)

// ClickHouse tables written by CHSink, provisioned outside the collector:
//
//	CREATE TABLE keystat_intervals (
//	  run_id UUID, host LowCardinality(String), start_at DateTime, start_local String,
//	  total UInt64, p50_ms Int64, p90_ms Int64, p99_ms Int64, max_ms Int64
//	) ENGINE = ReplacingMergeTree ORDER BY (host, start_at, run_id);
//
//	CREATE TABLE keystat_buckets (
//	  run_id UUID, host LowCardinality(String), start_at DateTime,
//	  label LowCardinality(String), lower_ms Int64, count UInt64
//	) ENGINE = ReplacingMergeTree ORDER BY (host, start_at, run_id, label);
const (
	chIntervals = "keystat_intervals"
	chBuckets   = "keystat_buckets"
)

// CHSink appends intervals to ClickHouse as two batches
type CHSink struct {
	ch    store.Clickhouse
	runID string
	host  string
}

// NewCHSink writes through ch
func NewCHSink(ch store.Clickhouse, runID, host string) *CHSink {
	return &CHSink{ch: ch, runID: runID, host: host}
}

// Emit implements domain.Sink
func (s *CHSink) Emit(ctx context.Context, snap domain.Snapshot) error {
	r := RowFor(s.runID, s.host, snap)
	interval := [][]any{{r.RunID, r.Host, r.Start, r.Local, r.Total, r.P50Ms, r.P90Ms, r.P99Ms, r.MaxMs}}
	if err := s.ch.Insert(ctx, chIntervals, interval); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "clickhouse insert intervals")
	}

	if len(snap.Buckets) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(snap.Buckets))
	for _, b := range snap.Buckets {
		rows = append(rows, []any{s.runID, s.host, snap.Start, b.Label, b.LowerMs, b.Count})
	}
	if err := s.ch.Insert(ctx, chBuckets, rows); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "clickhouse insert buckets")
	}
	return nil
}
