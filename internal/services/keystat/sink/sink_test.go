package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	perr "keystat/internal/platform/errors"
	"keystat/internal/platform/logger"
	ptime "keystat/internal/platform/time"
	"keystat/internal/platform/testkit"
	"keystat/internal/services/keystat/domain"
)

func snapshot() domain.Snapshot {
	start := time.Date(2026, 3, 14, 12, 5, 0, 0, time.UTC)
	return domain.Snapshot{
		Start: start,
		Epoch: start.Unix(),
		Local: ptime.Local(start),
		Buckets: []domain.Bucket{
			{Label: "0", LowerMs: 0, Count: 1},
			{Label: "10", LowerMs: 10, Count: 2},
			{Label: "100", LowerMs: 100, Count: 7},
			{Label: "inf", LowerMs: 2001, Count: 1},
		},
		Total: 11,
	}
}

func TestEncode_StableRecord(t *testing.T) {
	t.Parallel()

	s := snapshot()
	b, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"t":"1773489900","tz":"` + s.Local + `","events":{"0":1,"10":2,"100":7,"inf":1}}`
	if string(b) != want {
		t.Fatalf("record\n got %s\nwant %s", b, want)
	}
}

func TestEncode_EmptyInterval(t *testing.T) {
	t.Parallel()

	s := snapshot()
	s.Buckets = nil
	b, _ := Encode(s)
	testkit.MustContain(t, string(b), `"events":{}`)
}

func TestWriter_OneLinePerInterval(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for i := 0; i < 3; i++ {
		if err := w.Emit(context.Background(), snapshot()); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d", len(lines))
	}
	var rec struct {
		T      string            `json:"t"`
		Events map[string]uint64 `json:"events"`
	}
	if err := json.Unmarshal([]byte(lines[2]), &rec); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if rec.T != "1773489900" || rec.Events["inf"] != 1 {
		t.Fatalf("decoded %+v", rec)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, os.ErrClosed }

func TestWriter_WriteErrorIsSink(t *testing.T) {
	t.Parallel()

	err := NewWriter(failWriter{}).Emit(context.Background(), snapshot())
	if !perr.IsCode(err, perr.ErrorCodeSink) || !errors.Is(err, os.ErrClosed) {
		t.Fatalf("err = %v", err)
	}
}

func TestOpenOutput(t *testing.T) {
	t.Parallel()

	for _, dest := range []string{"", "-", " - "} {
		w, err := OpenOutput(dest)
		if err != nil {
			t.Fatalf("%q: %v", dest, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("closing stdout wrapper: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "intervals.jsonl")
	for i := 0; i < 2; i++ {
		w, err := OpenOutput(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		_ = NewWriter(w).Emit(context.Background(), snapshot())
		_ = w.Close()
	}
	b, _ := os.ReadFile(path)
	if strings.Count(string(b), "\n") != 2 {
		t.Fatalf("file not appended: %q", b)
	}

	if _, err := OpenOutput(filepath.Join(t.TempDir(), "nope", "x")); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("bad path code = %v", perr.CodeOf(err))
	}
}

func TestMulti_FailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	boom := errors.New("boom")
	m := NewMulti(logger.Nop(),
		Named{Name: "broken", Sink: domain.SinkFunc(func(context.Context, domain.Snapshot) error { return boom })},
		Named{Name: "stdout", Sink: NewWriter(&buf)},
	)
	m.Add("noop", domain.SinkFunc(func(context.Context, domain.Snapshot) error { return nil }))

	err := m.Emit(context.Background(), snapshot())
	if !errors.Is(err, boom) || !perr.IsCode(err, perr.ErrorCodeSink) {
		t.Fatalf("err = %v", err)
	}
	testkit.MustContain(t, err.Error(), "sink broken")
	if buf.Len() == 0 {
		t.Fatalf("healthy sink skipped after failure")
	}
	if got := strings.Join(m.Names(), ","); got != "broken,stdout,noop" {
		t.Fatalf("names = %s", got)
	}
}

func TestRetry_RetriesOnlyRetryable(t *testing.T) {
	testkit.Serial(t)
	var waits []time.Duration
	testkit.Swap(t, &sleep, func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	calls := 0
	flaky := domain.SinkFunc(func(context.Context, domain.Snapshot) error {
		calls++
		if calls < 3 {
			return perr.New(perr.ErrorCodeUnavailable, "collector restarting")
		}
		return nil
	})
	if err := WithRetry(flaky, 5, 10*time.Millisecond, logger.Nop()).Emit(context.Background(), snapshot()); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if calls != 3 || len(waits) != 2 || waits[0] != 10*time.Millisecond || waits[1] != 20*time.Millisecond {
		t.Fatalf("calls=%d waits=%v", calls, waits)
	}

	calls = 0
	permanent := domain.SinkFunc(func(context.Context, domain.Snapshot) error {
		calls++
		return perr.New(perr.ErrorCodeConfig, "bad table")
	})
	if err := WithRetry(permanent, 5, 0, logger.Nop()).Emit(context.Background(), snapshot()); err == nil || calls != 1 {
		t.Fatalf("permanent failure retried: calls=%d err=%v", calls, err)
	}
}

func TestRetry_GivesUpAfterAttempts(t *testing.T) {
	testkit.Serial(t)
	testkit.Swap(t, &sleep, func(context.Context, time.Duration) error { return nil })

	calls := 0
	down := domain.SinkFunc(func(context.Context, domain.Snapshot) error {
		calls++
		return perr.New(perr.ErrorCodeUnavailable, "down")
	})
	err := WithRetry(down, 3, time.Millisecond, logger.Nop()).Emit(context.Background(), snapshot())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestRetry_BackoffCapped(t *testing.T) {
	testkit.Serial(t)
	var waits []time.Duration
	testkit.Swap(t, &sleep, func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	})

	down := domain.SinkFunc(func(context.Context, domain.Snapshot) error {
		return perr.New(perr.ErrorCodeUnavailable, "down")
	})
	_ = WithRetry(down, 10, time.Second, logger.Nop()).Emit(context.Background(), snapshot())

	want := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second,
		backoffCeiling, backoffCeiling, backoffCeiling, backoffCeiling, backoffCeiling, backoffCeiling,
	}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Fatalf("wait[%d] = %v, want %v (all %v)", i, waits[i], want[i], waits)
		}
	}
}
