package module

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"keystat/internal/modkit"
	mod "keystat/internal/modkit/module"
	"keystat/internal/modkit/repokit"
	"keystat/internal/platform/config"
	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	kit "keystat/internal/platform/testkit"
	"keystat/internal/services/keystat/domain"
)

type tag struct{}

func (tag) String() string      { return "OK" }
func (tag) RowsAffected() int64 { return 1 }

// fakeDB records statements from any goroutine
type fakeDB struct {
	mu   sync.Mutex
	sqls []string
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (repokit.CommandTag, error) {
	f.mu.Lock()
	f.sqls = append(f.sqls, sql)
	f.mu.Unlock()
	return tag{}, nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (repokit.Rows, error) {
	return nil, errors.New("query not supported")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) repokit.Row { return nil }

func (f *fakeDB) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(f) }

func (f *fakeDB) count(sub string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sqls {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

type fakeCH struct{}

func (fakeCH) Insert(context.Context, string, [][]any) error                { return nil }
func (fakeCH) Query(context.Context, string, ...any) (repokit.Rows, error) { return nil, nil }
func (fakeCH) Close() error                                                { return nil }

// idleWatcher reports nothing until closed
type idleWatcher struct {
	once   sync.Once
	closed chan struct{}
}

func (w *idleWatcher) Next() ([]domain.DirRecord, error) {
	<-w.closed
	return nil, perr.New(perr.ErrorCodeUnavailable, "closed")
}

func (w *idleWatcher) Close() error {
	w.once.Do(func() { close(w.closed) })
	return nil
}

func testDeps(t *testing.T) (modkit.Deps, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "intervals.jsonl")
	t.Setenv("KEYSTAT_OUTPUT", out)
	t.Setenv("KEYSTAT_DEVICE_DIR", t.TempDir())
	return modkit.Deps{Log: logger.Nop(), Cfg: config.New(), RunID: "e3f1c9a4-5b7d-4c2e-9a61-0d8f2b4c6e10"}, out
}

func TestFromConfig_Defaults(t *testing.T) {
	o, err := FromConfig(config.New())
	if err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	if o.IntervalSecs != 300 || o.DeviceDir != "/dev/input" || o.Output != "-" || o.WriteRetries != 3 {
		t.Fatalf("defaults = %+v", o)
	}
	sc := o.ServiceConfig()
	if sc.Interval != 5*time.Minute || sc.Buckets.WidthMs != 10 || sc.Buckets.MaxMs != 2000 {
		t.Fatalf("service config = %+v", sc)
	}
	if !sc.Pattern.MatchString("event12") || sc.Pattern.MatchString("mouse0") {
		t.Fatalf("pattern = %v", sc.Pattern)
	}
}

func TestFromConfig_RejectsBadValues(t *testing.T) {
	cases := []struct {
		key, val, field string
	}{
		{"INTERVAL", "45", "INTERVAL"},
		{"INTERVAL", "0", "INTERVAL"},
		{"INTERVAL", "five", ""},
		{"KEYSTAT_BUCKET_WIDTH_MS", "abc", ""},
		{"KEYSTAT_BUCKET_MAX_MS", "5", "KEYSTAT_BUCKET_MAX_MS"},
		{"KEYSTAT_DEVICE_PATTERN", "event[", "KEYSTAT_DEVICE_PATTERN"},
		{"KEYSTAT_WS_URL", "http://collector.local/in", "KEYSTAT_WS_URL"},
		{"KEYSTAT_STATUS_ADDR", "not an addr", "KEYSTAT_STATUS_ADDR"},
		{"KEYSTAT_STATUS_PPROF", "maybe", ""},
	}
	for _, c := range cases {
		t.Run(c.key+"="+c.val, func(t *testing.T) {
			t.Setenv(c.key, c.val)
			_, err := FromConfig(config.New())
			if !perr.IsCode(err, perr.ErrorCodeConfig) {
				t.Fatalf("code = %v, want config (err=%v)", perr.CodeOf(err), err)
			}
			if c.field != "" {
				e, _ := perr.As(err)
				if e.Field() != c.field {
					t.Fatalf("field = %q, want %q", e.Field(), c.field)
				}
			}
		})
	}
}

func TestFromConfig_ReadsOverrides(t *testing.T) {
	t.Setenv("INTERVAL", "30")
	t.Setenv("KEYSTAT_BUCKET_WIDTH_MS", "5")
	t.Setenv("KEYSTAT_BUCKET_MAX_MS", "500")
	t.Setenv("KEYSTAT_WS_URL", "wss://collector.local/in")
	t.Setenv("KEYSTAT_STATUS_ADDR", "127.0.0.1:9108")
	t.Setenv("KEYSTAT_STATUS_CORS_ORIGINS", "http://localhost:3000, https://dash.local")

	o, err := FromConfig(config.New())
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if o.IntervalSecs != 30 || o.BucketWidthMs != 5 || o.BucketMaxMs != 500 {
		t.Fatalf("numbers = %+v", o)
	}
	if o.WSURL != "wss://collector.local/in" || o.StatusAddr != "127.0.0.1:9108" || len(o.StatusCORSOrigins) != 2 {
		t.Fatalf("strings = %+v", o)
	}
}

func TestNew_SinkChainFollowsDeps(t *testing.T) {
	deps, _ := testDeps(t)

	m, err := New(deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()
	if got := strings.Join(m.Sinks(), ","); got != "jsonl" {
		t.Fatalf("sinks = %s", got)
	}
	if m.RunID() != deps.RunID || m.Name() != "keystat" {
		t.Fatalf("identity = %s %s", m.RunID(), m.Name())
	}

	deps.PG = &fakeDB{}
	deps.CH = fakeCH{}
	m2, err := New(deps, func(o *Options) { o.WSURL = "ws://127.0.0.1:1/in" })
	if err != nil {
		t.Fatalf("new with backends: %v", err)
	}
	defer m2.Close()
	if got := strings.Join(m2.Sinks(), ","); got != "jsonl,websocket,postgres,clickhouse" {
		t.Fatalf("sinks = %s", got)
	}
}

func TestNew_OverridesAreValidated(t *testing.T) {
	deps, _ := testDeps(t)
	_, err := New(deps, func(o *Options) { o.IntervalSecs = 7 })
	if !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("code = %v, want config", perr.CodeOf(err))
	}
}

func TestNew_GeneratesRunID(t *testing.T) {
	deps, _ := testDeps(t)
	deps.RunID = ""
	m, err := New(deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()
	if len(m.RunID()) != 36 {
		t.Fatalf("run id = %q", m.RunID())
	}
}

func TestPorts_ExposeStatusAndRunner(t *testing.T) {
	deps, _ := testDeps(t)
	m, err := New(deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	ports := mod.MustPortsOf[Ports](m)
	if ports.Status == nil || ports.Runner == nil {
		t.Fatalf("ports = %+v", ports)
	}
	if _, ok := mod.PortsOf[domain.StatusPort](m); !ok {
		t.Fatalf("status port not found")
	}
}

func TestRun_MigratesAndEmitsEveryInterval(t *testing.T) {
	kit.Serial(t)
	kit.Swap(t, &watchDir, func(string) (domain.DirWatcher, error) {
		return &idleWatcher{closed: make(chan struct{})}, nil
	})

	deps, out := testDeps(t)
	db := &fakeDB{}
	deps.PG = db
	m, err := New(deps, func(o *Options) { o.IntervalSecs = 1 })
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	kit.Eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		b, _ := os.ReadFile(out)
		return strings.Contains(string(b), `"events":{}`) && db.count("INSERT INTO keystat_intervals") > 0
	}, "an empty interval reaches the file and postgres")

	if db.count("CREATE TABLE IF NOT EXISTS keystat_intervals") != 1 {
		t.Fatalf("migrate not run once")
	}
	if _, ok := m.svc.LastSnapshot(); !ok {
		t.Fatalf("last snapshot not recorded")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run = %v, want canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestRun_WatchFailureStops(t *testing.T) {
	kit.Serial(t)
	kit.Swap(t, &watchDir, func(string) (domain.DirWatcher, error) {
		return nil, perr.New(perr.ErrorCodeUnavailable, "inotify unavailable")
	})

	deps, _ := testDeps(t)
	m, err := New(deps)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()

	err = m.Run(context.Background())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("code = %v, want unavailable", perr.CodeOf(err))
	}
}
