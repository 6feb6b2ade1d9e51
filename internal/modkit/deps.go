// Package modkit provides module wiring and core deps
package modkit

import (
	"keystat/internal/modkit/repokit"
	"keystat/internal/platform/config"
	"keystat/internal/platform/logger"
	"keystat/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	CH  store.Clickhouse

	// RunID identifies this process in persisted rows
	RunID string
}

// FromStore copies the optional backends of s into d
func (d Deps) FromStore(s *store.Store) Deps {
	if s == nil {
		return d
	}
	d.PG = s.PG
	d.CH = s.CH
	return d
}
