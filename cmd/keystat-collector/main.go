package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keystat/internal/core/version"
	"keystat/internal/modkit"
	"keystat/internal/modkit/module"
	"keystat/internal/platform/config"
	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	phttp "keystat/internal/platform/net/http"
	"keystat/internal/platform/net/middleware"
	"keystat/internal/platform/store"
	str "keystat/internal/platform/strings"

	kmod "keystat/internal/services/keystat/module"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func main() {
	fVersion := flag.Bool("version", false, "print build info and exit")
	flag.Parse()

	if *fVersion {
		fmt.Println(version.Info(kmod.ServiceName))
		return
	}
	os.Exit(run())
}

func run() int {
	lopts, err := logOptions(config.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", kmod.ServiceName, err)
		return 1
	}
	// diagnostics go to $LOGS_DIRECTORY/keystat.log when set
	dest, err := logger.OpenDestination(lopts.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: open log destination: %v\n", kmod.ServiceName, err)
		return 1
	}
	defer dest.Close()
	lopts.Writer = dest
	lopts.Service = str.Or(lopts.Service, kmod.ServiceName)
	logger.Init(lopts)
	l := logger.Get()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	root := config.New()
	st, err := openStore(ctx, root, *l)
	if err != nil {
		l.Error().Err(err).Str("kind", perr.CodeOf(err).String()).Msg("store open failed")
		return 1
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	deps := modkit.Deps{
		Log:   *l,
		Cfg:   root,
		RunID: uuid.NewString(),
	}.FromStore(st)

	km, err := kmod.New(deps)
	if err != nil {
		l.Error().Err(err).Str("kind", perr.CodeOf(err).String()).Msg("invalid configuration")
		return 1
	}
	defer km.Close()

	module.Register(km.Name(), km.Ports())
	ports := module.MustPortsOf[kmod.Ports](km)

	srvErr := make(chan error, 1)
	if opts := km.Options(); opts.StatusAddr != "" {
		srv := phttp.NewServer(opts.StatusAddr, func(m *chi.Mux) {
			for _, mw := range middleware.Defaults() {
				m.Use(mw)
			}
			if len(opts.StatusCORSOrigins) > 0 {
				m.Use(middleware.CORS(opts.StatusCORSOrigins))
			}
		})
		r := srv.Router()
		phttp.MountProfiler(r, "/debug", opts.StatusPprof)
		km.MountRoutes(r)

		go func() {
			if err := srv.Run(ctx); err != nil {
				srvErr <- err
				cancel()
			}
		}()
	}

	err = ports.Runner.Run(ctx)
	select {
	case e := <-srvErr:
		l.Error().Err(e).Msg("status server failed")
		return 1
	default:
	}
	if err == nil || errors.Is(err, context.Canceled) {
		l.Info().Msg("collector stopped")
		return 0
	}
	l.Error().Err(err).Str("kind", perr.CodeOf(err).String()).Msg("collector failed")
	return 1
}

// logOptions reads LOG_* and rejects unknown formats and levels instead of
// falling back to defaults
func logOptions(root config.Conf) (logger.Options, error) {
	o := logger.FromEnv()
	lc := root.Prefix("LOG_")

	var err error
	if o.Format, err = lc.Enum("FORMAT", "console", "console", "json"); err != nil {
		return o, err
	}
	if o.Level, err = lc.Enum("LEVEL", "info", "trace", "debug", "info", "warn", "error"); err != nil {
		return o, err
	}
	return o, nil
}

// openStore opens the optional Postgres and ClickHouse backends
func openStore(ctx context.Context, root config.Conf, l logger.Logger) (*store.Store, error) {
	kf := root.Prefix("KEYSTAT_")
	sf := root.Prefix("SERVICE_")

	pgOn, err := kf.Bool("PG_ENABLED", false)
	if err != nil {
		return nil, err
	}
	chOn, err := kf.Bool("CH_ENABLED", false)
	if err != nil {
		return nil, err
	}
	logSQL, err := kf.Bool("PG_LOG_SQL", false)
	if err != nil {
		return nil, err
	}

	cfg := store.Config{
		AppName: kmod.ServiceName,
		PG: store.PGConfig{
			Enabled:     pgOn,
			URL:         sf.MayString("PGSQL_DBURL", ""),
			MaxConns:    2,
			LogSQL:      logSQL,
			SlowQueryMs: 500,
		},
		CH: store.CHConfig{
			Enabled:     chOn,
			URL:         sf.MayString("CH_URL", ""),
			DialTimeout: 5 * time.Second,
		},
	}
	if cfg.PG.Enabled && cfg.PG.URL == "" {
		return nil, perr.Configf("SERVICE_PGSQL_DBURL", "required when KEYSTAT_PG_ENABLED is set")
	}
	if cfg.CH.Enabled && cfg.CH.URL == "" {
		return nil, perr.Configf("SERVICE_CH_URL", "required when KEYSTAT_CH_ENABLED is set")
	}

	st, err := store.Open(ctx, cfg, store.WithLogger(l))
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "open store")
	}
	return st, nil
}
