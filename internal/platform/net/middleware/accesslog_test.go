package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"keystat/internal/platform/net/middleware"
	kit "keystat/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestAccessLog_PassThroughStatusAndBody(t *testing.T) {
	buf := &kit.SyncBuffer{}
	log := zerolog.New(buf).Level(zerolog.DebugLevel)
	mw := middleware.AccessLog(middleware.AccessLogOptions{Log: &log})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "ok")
	})

	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/devices", nil))

	if rr.Code != http.StatusAccepted || rr.Body.String() != "ok" {
		t.Fatalf("unexpected response %d %q", rr.Code, rr.Body.String())
	}
	out := buf.String()
	kit.MustContain(t, out, `"level":"debug"`)
	kit.MustContain(t, out, `"status":202`)
	kit.MustContain(t, out, `"path":"/v1/devices"`)
	kit.MustContain(t, out, `"bytes":2`)
}

func TestAccessLog_SlowAndServerErrorsWarn(t *testing.T) {
	buf := &kit.SyncBuffer{}
	log := zerolog.New(buf)
	mw := middleware.AccessLog(middleware.AccessLogOptions{Slow: time.Nanosecond, Log: &log})

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Microsecond)
		_, _ = io.WriteString(w, "slow")
	})
	mw(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
	kit.MustContain(t, buf.String(), `"level":"warn"`)

	buf2 := &kit.SyncBuffer{}
	log2 := zerolog.New(buf2)
	mw2 := middleware.AccessLog(middleware.AccessLogOptions{Log: &log2})
	fail := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mw2(fail).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	kit.MustContain(t, buf2.String(), `"level":"warn"`)
	kit.MustContain(t, buf2.String(), `"status":503`)
}
