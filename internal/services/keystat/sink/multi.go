package sink

import (
	"context"
	"errors"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"
)

// Named pairs a sink with the name used in logs and errors
type Named struct {
	Name string
	Sink domain.Sink
}

// Multi emits to every sink in order; one failure does not skip the rest
type Multi struct {
	sinks []Named
	log   logger.Logger
}

// NewMulti fans out to sinks
func NewMulti(log logger.Logger, sinks ...Named) *Multi { return &Multi{sinks: sinks, log: log} }

// Add appends a sink
func (m *Multi) Add(name string, s domain.Sink) { m.sinks = append(m.sinks, Named{Name: name, Sink: s}) }

// Names lists the configured sinks
func (m *Multi) Names() []string {
	out := make([]string, 0, len(m.sinks))
	for _, s := range m.sinks {
		out = append(out, s.Name)
	}
	return out
}

// Emit delivers s to each sink and joins their failures
func (m *Multi) Emit(ctx context.Context, s domain.Snapshot) error {
	var errs []error
	for _, n := range m.sinks {
		began := time.Now()
		if err := n.Sink.Emit(ctx, s); err != nil {
			errs = append(errs, perr.Wrapf(err, perr.ErrorCodeSink, "sink %s", n.Name))
			continue
		}
		m.log.Debug().Str("sink", n.Name).Dur("took", time.Since(began)).Int64("t", s.Epoch).Msg("interval delivered")
	}
	return errors.Join(errs...)
}
