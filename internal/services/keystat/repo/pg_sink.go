package repo

import (
	"context"
	"time"

	"keystat/internal/modkit/repokit"
	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"
)

// PGSink writes each interval and its buckets in one transaction
type PGSink struct {
	db    repokit.TxRunner
	b     repokit.Binder[Storage]
	runID string
	host  string
	log   logger.Logger
}

// NewPGSink binds a sink to db; stmtTimeout bounds each statement when positive
func NewPGSink(db repokit.TxRunner, runID, host string, stmtTimeout time.Duration, log logger.Logger) *PGSink {
	return &PGSink{
		db:    repokit.WithBeginHooks(db, repokit.StatementTimeout(stmtTimeout)),
		b:     NewPG(),
		runID: runID,
		host:  host,
		log:   log,
	}
}

// Migrate creates the tables this sink writes
func (s *PGSink) Migrate(ctx context.Context) error {
	return perr.FromPostgres(Migrate(ctx, s.db), "migrate keystat tables")
}

// Emit implements domain.Sink. An interval already stored for this run is logged, not returned
func (s *PGSink) Emit(ctx context.Context, snap domain.Snapshot) error {
	row := RowFor(s.runID, s.host, snap)
	err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		st := repokit.MustBind(s.b, q)
		if err := st.InsertInterval(ctx, row); err != nil {
			return err
		}
		return st.InsertBuckets(ctx, s.runID, snap.Start, snap.Buckets)
	})
	if perr.IsDuplicateKey(err) {
		// the wall clock stepped back and closed this interval again; the stored row wins
		s.log.Warn().Int64("t", snap.Epoch).Uint64("dropped_total", snap.Total).
			Msg("interval already stored; later snapshot dropped")
		return nil
	}
	return perr.FromPostgres(err, "write interval")
}
