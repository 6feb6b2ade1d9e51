package module

import (
	"regexp"
	"time"

	"keystat/internal/platform/config"
	"keystat/internal/platform/validate"
	"keystat/internal/services/keystat/service"
)

// Options holds configuration settings for the keystat module
type Options struct {
	IntervalSecs  int    `env:"INTERVAL" validate:"min=1,max=86400,minute_aligned"`
	DeviceDir     string `env:"KEYSTAT_DEVICE_DIR" validate:"required,startswith=/"`
	DevicePattern string `env:"KEYSTAT_DEVICE_PATTERN" validate:"required,regexp"`
	BucketWidthMs int    `env:"KEYSTAT_BUCKET_WIDTH_MS" validate:"min=1"`
	BucketMaxMs   int    `env:"KEYSTAT_BUCKET_MAX_MS" validate:"gtefield=BucketWidthMs"`
	Output        string `env:"KEYSTAT_OUTPUT" validate:"required"`
	WSURL         string `env:"KEYSTAT_WS_URL" validate:"omitempty,url,ws_url"`
	WriteRetries  int    `env:"KEYSTAT_WRITE_RETRIES" validate:"min=1,max=20"`

	StatusAddr        string   `env:"KEYSTAT_STATUS_ADDR" validate:"omitempty,hostname_port"`
	StatusCORSOrigins []string `env:"KEYSTAT_STATUS_CORS_ORIGINS" validate:"dive,required"`
	StatusPprof       bool     `env:"KEYSTAT_STATUS_PPROF"`

	// StatementTimeout bounds each Postgres statement of one interval write
	StatementTimeout time.Duration `env:"-"`
}

// Defaults returns the options used when nothing is configured
func Defaults() Options {
	return Options{
		IntervalSecs:     300,
		DeviceDir:        "/dev/input",
		DevicePattern:    service.DefaultPattern,
		BucketWidthMs:    int(service.DefaultBuckets.WidthMs),
		BucketMaxMs:      int(service.DefaultBuckets.MaxMs),
		Output:           "-",
		WriteRetries:     3,
		StatementTimeout: 5 * time.Second,
	}
}

// FromConfig reads and validates module options.
// Malformed or out of range values are Config errors, never defaults
func FromConfig(cfg config.Conf) (Options, error) {
	o := Defaults()
	kf := cfg.Prefix("KEYSTAT_")

	var err error
	if o.IntervalSecs, err = cfg.Int("INTERVAL", o.IntervalSecs); err != nil {
		return o, err
	}
	if o.BucketWidthMs, err = kf.Int("BUCKET_WIDTH_MS", o.BucketWidthMs); err != nil {
		return o, err
	}
	if o.BucketMaxMs, err = kf.Int("BUCKET_MAX_MS", o.BucketMaxMs); err != nil {
		return o, err
	}
	if o.WriteRetries, err = kf.Int("WRITE_RETRIES", o.WriteRetries); err != nil {
		return o, err
	}
	if o.StatusPprof, err = kf.Bool("STATUS_PPROF", o.StatusPprof); err != nil {
		return o, err
	}
	o.DeviceDir = kf.MayString("DEVICE_DIR", o.DeviceDir)
	o.DevicePattern = kf.MayString("DEVICE_PATTERN", o.DevicePattern)
	o.Output = kf.MayString("OUTPUT", o.Output)
	o.WSURL = kf.MayString("WS_URL", "")
	o.StatusAddr = kf.MayString("STATUS_ADDR", "")
	o.StatusCORSOrigins = kf.List("STATUS_CORS_ORIGINS")

	if err := o.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

// Validate checks o against its struct rules
func (o Options) Validate() error { return validate.Struct(o) }

// ServiceConfig converts validated options to the collector configuration
func (o Options) ServiceConfig() service.Config {
	return service.Config{
		Interval:  time.Duration(o.IntervalSecs) * time.Second,
		Buckets:   service.Buckets{WidthMs: int64(o.BucketWidthMs), MaxMs: int64(o.BucketMaxMs)},
		DeviceDir: o.DeviceDir,
		Pattern:   regexp.MustCompile(o.DevicePattern),
	}
}
