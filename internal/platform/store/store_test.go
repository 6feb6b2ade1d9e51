package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	kit "keystat/internal/platform/testkit"
)

type fakeCH struct {
	inserted map[string][][]any
	pingErr  error
	closeErr error
	closed   bool
}

func (f *fakeCH) Insert(_ context.Context, table string, rows [][]any) error {
	if f.inserted == nil {
		f.inserted = map[string][][]any{}
	}
	f.inserted[table] = append(f.inserted[table], rows...)
	return nil
}
func (f *fakeCH) Query(context.Context, string, ...any) (Rows, error) { return nil, nil }
func (f *fakeCH) Ping(context.Context) error                          { return f.pingErr }
func (f *fakeCH) Close() error                                        { f.closed = true; return f.closeErr }

type fakePG struct {
	TxRunner
	pingErr error
	closed  bool
}

func (f *fakePG) Ping(context.Context) error { return f.pingErr }
func (f *fakePG) Close() error               { f.closed = true; return nil }

func TestOpen_NothingEnabled(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Enabled() || s.PG != nil || s.CH != nil {
		t.Fatalf("expected empty store, got %+v", s)
	}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("Guard on empty store: %v", err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close on empty store: %v", err)
	}
}

func TestOpen_UsesOpeners(t *testing.T) {
	kit.Serial(t)

	fc := &fakeCH{}
	fp := &fakePG{}
	kit.Swap(t, &openCHFn, func(context.Context, Config, *Store) (Clickhouse, error) { return fc, nil })
	kit.Swap(t, &openPGFn, func(context.Context, Config, *Store) (TxRunner, error) { return fp, nil })

	s, err := Open(context.Background(), Config{
		PG: PGConfig{Enabled: true},
		CH: CHConfig{Enabled: true},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !s.Enabled() || s.CH != fc || s.PG != fp {
		t.Fatalf("seams not installed: %+v", s)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fc.closed || !fp.closed {
		t.Fatalf("backends not closed ch=%v pg=%v", fc.closed, fp.closed)
	}
}

func TestOpen_CHFailureClosesPG(t *testing.T) {
	kit.Serial(t)

	fp := &fakePG{}
	kit.Swap(t, &openPGFn, func(context.Context, Config, *Store) (TxRunner, error) { return fp, nil })
	kit.Swap(t, &openCHFn, func(context.Context, Config, *Store) (Clickhouse, error) {
		return nil, errors.New("dial refused")
	})

	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true}, CH: CHConfig{Enabled: true}})
	if err == nil || !strings.Contains(err.Error(), "store: ch: dial refused") {
		t.Fatalf("expected wrapped ch error, got %v", err)
	}
	if !fp.closed {
		t.Fatalf("pg should be closed after ch open failure")
	}
}

func TestOpen_PGEnabled_BadURL_BubblesError(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "://bad"}})
	if err == nil {
		t.Fatalf("expected error from pg parse")
	}
}

func TestOpen_OptionError(t *testing.T) {
	t.Parallel()

	bad := func(*Store) error { return errors.New("nope") }
	if _, err := Open(context.Background(), Config{}, bad); err == nil {
		t.Fatalf("expected option error")
	}
}

func TestGuard_JoinsErrors(t *testing.T) {
	t.Parallel()

	s := &Store{
		PG: &fakePG{pingErr: errors.New("pg down")},
		CH: &fakeCH{pingErr: errors.New("ch down")},
	}
	err := s.Guard(context.Background())
	if err == nil {
		t.Fatalf("expected guard error")
	}
	kit.MustContain(t, err.Error(), "pg: pg down")
	kit.MustContain(t, err.Error(), "ch: ch down")

	var nilStore *Store
	if nilStore.Guard(context.Background()) == nil {
		t.Fatalf("nil store guard should error")
	}
}
