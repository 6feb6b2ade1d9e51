package sink

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	perr "keystat/internal/platform/errors"
	"keystat/internal/services/keystat/domain"
)

// Writer emits one JSON line per interval
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter writes records to w
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// Emit writes the record for s as a single write
func (w *Writer) Emit(_ context.Context, s domain.Snapshot) error {
	b, err := Encode(s)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeSink, "encode record")
	}
	b = append(b, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(b); err != nil {
		return perr.Wrap(err, perr.ErrorCodeSink, "write record")
	}
	return nil
}

// OpenOutput opens the record destination. "-" or empty is stdout,
// anything else is a file opened for append
func OpenOutput(dest string) (io.WriteCloser, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" || dest == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeConfig, "open output %s", dest)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
