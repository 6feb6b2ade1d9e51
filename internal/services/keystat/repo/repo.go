// Package repo persists interval snapshots to Postgres and ClickHouse
package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"keystat/internal/modkit/repokit"
	str "keystat/internal/platform/strings"
	"keystat/internal/services/keystat/domain"
)

// IntervalRow is one persisted interval summary
type IntervalRow struct {
	RunID string
	Host  string
	Start time.Time
	Local string
	Total uint64
	P50Ms int64
	P90Ms int64
	P99Ms int64
	MaxMs int64
}

// RowFor builds the summary row of s for this process
func RowFor(runID, host string, s domain.Snapshot) IntervalRow {
	return IntervalRow{
		RunID: runID,
		Host:  host,
		Start: s.Start,
		Local: s.Local,
		Total: s.Total,
		P50Ms: s.P50Ms,
		P90Ms: s.P90Ms,
		P99Ms: s.P99Ms,
		MaxMs: s.MaxMs,
	}
}

// Storage is the Postgres interval repository
type Storage interface {
	InsertInterval(ctx context.Context, r IntervalRow) error
	InsertBuckets(ctx context.Context, runID string, start time.Time, bs []domain.Bucket) error
}

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// schema is applied by Migrate; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS keystat_intervals (
		run_id     uuid        NOT NULL,
		host       text,
		start_at   timestamptz NOT NULL,
		start_local text       NOT NULL,
		total      bigint      NOT NULL,
		p50_ms     bigint      NOT NULL,
		p90_ms     bigint      NOT NULL,
		p99_ms     bigint      NOT NULL,
		max_ms     bigint      NOT NULL,
		PRIMARY KEY (run_id, start_at)
	)`,
	`CREATE TABLE IF NOT EXISTS keystat_buckets (
		run_id   uuid        NOT NULL,
		start_at timestamptz NOT NULL,
		label    text        NOT NULL,
		lower_ms bigint      NOT NULL,
		count    bigint      NOT NULL,
		PRIMARY KEY (run_id, start_at, label),
		FOREIGN KEY (run_id, start_at) REFERENCES keystat_intervals (run_id, start_at) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS keystat_intervals_start_idx ON keystat_intervals (start_at DESC)`,
}

// Migrate creates the interval tables when missing
func Migrate(ctx context.Context, q repokit.Queryer) error {
	for _, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertInterval implements Storage. A second insert for the same run and start is a unique violation
func (s *pg) InsertInterval(ctx context.Context, r IntervalRow) error {
	_, err := s.q.Exec(ctx, `INSERT INTO keystat_intervals
		(run_id, host, start_at, start_local, total, p50_ms, p90_ms, p99_ms, max_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.RunID, str.SQLNull(r.Host), r.Start, r.Local, int64(r.Total), r.P50Ms, r.P90Ms, r.P99Ms, r.MaxMs,
	)
	return err
}

// InsertBuckets implements Storage
func (s *pg) InsertBuckets(ctx context.Context, runID string, start time.Time, bs []domain.Bucket) error {
	if len(bs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO keystat_buckets (run_id, start_at, label, lower_ms, count) VALUES `)
	args := make([]any, 0, len(bs)*5)
	for i, b := range bs {
		if i > 0 {
			sb.WriteByte(',')
		}
		base := i*5 + 1
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,$%d)", base, base+1, base+2, base+3, base+4)
		args = append(args, runID, start, b.Label, b.LowerMs, int64(b.Count))
	}
	sb.WriteString(` ON CONFLICT (run_id, start_at, label) DO NOTHING`)
	_, err := s.q.Exec(ctx, sb.String(), args...)
	return err
}
