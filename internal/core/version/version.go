// Package version provides information about the build version of the collector.
package version

import (
	"fmt"
	"runtime/debug"
)

// BuildInfo holds version information about the build.
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Info returns the build information for service. The version, commit, and date
// variables are set at build time using -ldflags:
//
//	-X 'keystat/internal/core/version.version=v0.1.0'
//	-X 'keystat/internal/core/version.commit=abcd'
//	-X 'keystat/internal/core/version.date=2026-01-01'
func Info(service string) BuildInfo {
	bi := BuildInfo{
		Service: service,
		Version: version,
		Commit:  commit,
		Date:    date,
	}
	if bi.Commit == "none" {
		if info, ok := debug.ReadBuildInfo(); ok && info != nil {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					bi.Commit = s.Value
				}
			}
		}
	}
	return bi
}

// String renders a one-line banner
func (b BuildInfo) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", b.Service, b.Version, b.Commit, b.Date)
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
