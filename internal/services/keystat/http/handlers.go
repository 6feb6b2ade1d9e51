// Package http exposes the collector status endpoints
package http

import (
	stdhttp "net/http"
	"time"

	"keystat/internal/core/version"
	perr "keystat/internal/platform/errors"
	phttp "keystat/internal/platform/net/http"
	"keystat/internal/services/keystat/domain"
	"keystat/internal/services/keystat/sink"
)

// Deps are the handler dependencies
type Deps struct {
	Status      domain.StatusPort
	ServiceName string
	StartedAt   time.Time
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// Register mounts the status routes
func Register(r phttp.Router, d Deps) {
	h := &handlers{deps: d, now: time.Now}

	phttp.GetJSON(r, "/healthz", h.health)
	phttp.GetJSON(r, "/v1/devices", h.devices)
	phttp.GetJSON(r, "/v1/intervals/last", h.lastInterval)
	phttp.GetJSON(r, "/v1/version", h.version)
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Devices int    `json:"devices"`
	Pending int    `json:"pending"`
	Flushes uint64 `json:"flushes"`
	Started string `json:"started"`
	Uptime  int64  `json:"uptime"`
}

// IntervalResponse is the last emitted interval with its wire record
type IntervalResponse struct {
	Record   sink.Record     `json:"record"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

func (h *handlers) health(_ *stdhttp.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Devices: len(h.deps.Status.Devices()),
		Pending: h.deps.Status.Pending(),
		Flushes: h.deps.Status.Flushes(),
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Uptime:  int64(h.now().Sub(h.deps.StartedAt) / time.Second),
	}, nil
}

func (h *handlers) devices(_ *stdhttp.Request) (any, error) {
	return h.deps.Status.Devices(), nil
}

func (h *handlers) lastInterval(_ *stdhttp.Request) (any, error) {
	s, ok := h.deps.Status.LastSnapshot()
	if !ok {
		return nil, perr.New(perr.ErrorCodeNotFound, "no interval emitted yet")
	}
	return IntervalResponse{Record: sink.NewRecord(s), Snapshot: s}, nil
}

func (h *handlers) version(_ *stdhttp.Request) (any, error) {
	return version.Info(h.deps.ServiceName), nil
}
