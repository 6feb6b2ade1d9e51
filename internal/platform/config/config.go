// Package config handles collector configuration via environment variables
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
)

// Conf is a namespaced view over environment variables (e.g., "KEYSTAT_", "SERVICE_PGSQL_")
// Use New() for global access, or Prefix("KEYSTAT_") for module scopes.
type Conf struct{ prefix string }

// New creates a root Conf (no prefix)
func New() Conf { return Conf{} }

// Prefix creates a child Conf with an additional prefix, e.g. cfg.Prefix("KEYSTAT_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

// key composes the fully-qualified env var name
func (c Conf) key(k string) string { return c.prefix + k }

// value returns the trimmed env value for key
func (c Conf) value(key string) string { return strings.TrimSpace(os.Getenv(c.key(key))) }

// MustString panics if the given key is missing or empty
func (c Conf) MustString(key string) string {
	v := c.value(key)
	if v == "" {
		logger.Get().Panic().Str("key", c.key(key)).Msg("missing required env")
	}
	return v
}

// MayString returns the value or def if missing/empty
func (c Conf) MayString(key, def string) string {
	v := c.value(key)
	if v == "" {
		return def
	}
	return v
}

// MayInt returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayInt(key string, def int) int {
	v, err := c.Int(key, def)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Int("default", def).Msg("invalid int; using default")
		return def
	}
	return v
}

// MayBool returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayBool(key string, def bool) bool {
	s := c.value(key)
	if s == "" {
		return def
	}
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Bool("default", def).Msg("invalid bool; using default")
	return def
}

// MayDuration returns the value or def if missing/empty; logs and returns def if invalid
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	s := c.value(key)
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Dur("default", def).Msg("invalid duration; using default")
	return def
}

// Strict parsers
//
// These never fall back on malformed input. The collector uses them for
// values where a silent default would change what gets measured.

// Int returns def when key is missing/empty and a Config error when the value is not an int
func (c Conf) Int(key string, def int) (int, error) {
	s := c.value(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, perr.Wrapf(err, perr.ErrorCodeConfig, "%s: invalid int %q", c.key(key), s)
	}
	return v, nil
}

// Bool returns def when key is missing/empty and a Config error when the value is not a bool
func (c Conf) Bool(key string, def bool) (bool, error) {
	s := c.value(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def, perr.Wrapf(err, perr.ErrorCodeConfig, "%s: invalid bool %q", c.key(key), s)
	}
	return v, nil
}

// Enum returns def when key is missing/empty and a Config error when the value is not one of allowed
func (c Conf) Enum(key, def string, allowed ...string) (string, error) {
	v := c.MayString(key, def)
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return strings.ToLower(a), nil
		}
	}
	return def, perr.Newf(perr.ErrorCodeConfig, "%s: %q is not one of %s", c.key(key), v, strings.Join(allowed, "|"))
}

// List splits a comma-separated value, dropping blanks; missing/empty gives nil
func (c Conf) List(key string) []string {
	s := c.value(key)
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
