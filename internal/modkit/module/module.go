// Package module defines the minimal contract for a modkit module
package module

import (
	"context"

	phttp "keystat/internal/platform/net/http"
)

// Module defines the minimal contract used by modkit
// keep this sibling to avoid import knots when a module also exports its own ports type
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}

// Runner is a module with a long-lived loop; Run blocks until ctx is done or a fatal error
type Runner interface {
	Module
	Run(ctx context.Context) error
}
