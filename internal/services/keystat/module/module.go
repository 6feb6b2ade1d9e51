// Package module wires the keystat collector: sinks, device collaborators and status routes
package module

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"keystat/internal/adapters/evdev"
	"keystat/internal/adapters/inotify"
	"keystat/internal/modkit"
	mod "keystat/internal/modkit/module"
	phttp "keystat/internal/platform/net/http"
	str "keystat/internal/platform/strings"
	"keystat/internal/services/keystat/domain"
	khttp "keystat/internal/services/keystat/http"
	"keystat/internal/services/keystat/repo"
	"keystat/internal/services/keystat/service"
	"keystat/internal/services/keystat/sink"

	"github.com/google/uuid"
)

// ServiceName names the collector in logs, rows and the status API
const ServiceName = "keystat-collector"

var _ mod.Runner = (*Module)(nil)

// seams for tests
var (
	openDevice = func(path domain.DeviceID) (domain.Device, error) {
		d, err := evdev.Open(path)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	watchDir = func(dir string) (domain.DirWatcher, error) {
		w, err := inotify.Watch(dir)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	hostname = os.Hostname
)

// Module implements the keystat collector module
type Module struct {
	deps  modkit.Deps
	opts  Options
	name  string
	runID string

	svc     *service.Svc
	sinks   *sink.Multi
	pg      *repo.PGSink
	closers []io.Closer
	ports   Ports

	startedAt time.Time
}

// New reads options from deps.Cfg, applies overrides and builds the sink chain.
// Postgres and ClickHouse sinks are added when deps carries those backends
func New(deps modkit.Deps, overrides ...func(*Options)) (*Module, error) {
	opts, err := FromConfig(deps.Cfg)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		for _, o := range overrides {
			o(&opts)
		}
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}

	m := &Module{
		deps:      deps,
		opts:      opts,
		name:      "keystat",
		runID:     str.Or(deps.RunID, uuid.NewString()),
		startedAt: time.Now(),
	}
	// an unknown host is stored as NULL
	host, _ := hostname()
	log := deps.Log.With().Str("run_id", m.runID).Logger()

	m.sinks = sink.NewMulti(log.With().Str("component", "sink").Logger())

	out, err := sink.OpenOutput(opts.Output)
	if err != nil {
		return nil, err
	}
	m.closers = append(m.closers, out)
	m.sinks.Add("jsonl", sink.NewWriter(out))

	if opts.WSURL != "" {
		ws := sink.NewWebSocket(opts.WSURL, log)
		m.closers = append(m.closers, ws)
		m.sinks.Add("websocket", sink.WithRetry(ws, opts.WriteRetries, 0, log))
	}
	if deps.PG != nil {
		m.pg = repo.NewPGSink(deps.PG, m.runID, host, opts.StatementTimeout, log)
		m.sinks.Add("postgres", sink.WithRetry(m.pg, opts.WriteRetries, 0, log))
	}
	if deps.CH != nil {
		m.sinks.Add("clickhouse", sink.WithRetry(repo.NewCHSink(deps.CH, m.runID, host), opts.WriteRetries, 0, log))
	}

	m.svc = service.New(opts.ServiceConfig(), m.sinks, openDevice, watchDir, log)
	m.ports = Ports{Status: m.svc, Runner: m}
	return m, nil
}

// Run migrates the Postgres tables when enabled, then runs the collector until ctx is done
func (m *Module) Run(ctx context.Context) error {
	log := m.deps.Log
	log.Info().
		Str("run_id", m.runID).
		Int("interval_secs", m.opts.IntervalSecs).
		Str("device_dir", m.opts.DeviceDir).
		Strs("sinks", m.sinks.Names()).
		Msg("collector starting")

	if m.pg != nil {
		if err := m.pg.Migrate(ctx); err != nil {
			return err
		}
	}
	return m.svc.Run(ctx)
}

// Close releases the output file and the websocket connection
func (m *Module) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}

// Options returns the effective options
func (m *Module) Options() Options { return m.opts }

// RunID identifies this process in persisted rows
func (m *Module) RunID() string { return m.runID }

// Sinks lists the configured sink names in emit order
func (m *Module) Sinks() []string { return m.sinks.Names() }

// MountRoutes satisfies modkit.Module
func (m *Module) MountRoutes(r phttp.Router) {
	khttp.Register(r, khttp.Deps{
		Status:      m.svc,
		ServiceName: ServiceName,
		StartedAt:   m.startedAt,
	})
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "keystat") }
