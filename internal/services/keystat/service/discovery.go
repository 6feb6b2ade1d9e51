package service

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	"keystat/internal/services/keystat/domain"
)

// DefaultPattern matches evdev event nodes
const DefaultPattern = `^event[0-9]+$`

// WatchFunc subscribes to entries created in dir
type WatchFunc func(dir string) (domain.DirWatcher, error)

// Discovery finds device nodes by scan and by change notification and
// spawns one reader per node
type Discovery struct {
	dir     string
	pattern *regexp.Regexp
	watch   WatchFunc
	spawn   func(ctx context.Context, id domain.DeviceID) bool
	log     logger.Logger
}

// NewDiscovery builds discovery for dir; a nil pattern means DefaultPattern
func NewDiscovery(dir string, pattern *regexp.Regexp, watch WatchFunc, spawn func(context.Context, domain.DeviceID) bool, log logger.Logger) *Discovery {
	if pattern == nil {
		pattern = regexp.MustCompile(DefaultPattern)
	}
	return &Discovery{dir: dir, pattern: pattern, watch: watch, spawn: spawn, log: log}
}

// Match reports whether a directory entry name is a device node
func (d *Discovery) Match(name string) bool { return d.pattern.MatchString(name) }

// Run subscribes, scans the existing entries, then follows notifications until
// ctx is done. Failing to subscribe or scan is returned; a malformed
// notification terminates the process
func (d *Discovery) Run(ctx context.Context) error {
	// subscribe first so nodes created during the scan are still announced
	w, err := d.watch(d.dir)
	if err != nil {
		return perr.Wrapf(err, perr.CodeOf(err), "watch %s", d.dir)
	}
	stop := context.AfterFunc(ctx, func() { _ = w.Close() })
	defer func() {
		if stop() {
			_ = w.Close()
		}
	}()

	if err := d.scan(ctx); err != nil {
		return err
	}

	for {
		recs, err := w.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if perr.IsCode(err, perr.ErrorCodeProtocol) {
				fatal(&d.log, err, "malformed directory notification")
			}
			return err
		}
		for _, r := range recs {
			switch {
			case r.Overflow():
				d.log.Warn().Str("dir", d.dir).Msg("notification queue overflowed; rescanning")
				if err := d.scan(ctx); err != nil {
					return err
				}
			case r.Created() && d.Match(r.Name):
				d.spawn(ctx, filepath.Join(d.dir, r.Name))
			}
		}
	}
}

func (d *Discovery) scan(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "scan %s", d.dir)
	}
	n := 0
	for _, e := range entries {
		if !d.Match(e.Name()) {
			continue
		}
		if d.spawn(ctx, filepath.Join(d.dir, e.Name())) {
			n++
		}
	}
	d.log.Debug().Str("dir", d.dir).Int("entries", len(entries)).Int("spawned", n).Msg("device scan")
	return nil
}
