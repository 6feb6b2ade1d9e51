// Package inotify watches a directory for created entries using Linux inotify
package inotify

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	perr "keystat/internal/platform/errors"

	"golang.org/x/sys/unix"
)

// HeaderSize is the fixed part of struct inotify_event
const HeaderSize = unix.SizeofInotifyEvent

// bufSize holds a batch of events with maximal names
const bufSize = 16 * (HeaderSize + unix.NAME_MAX + 1)

// Record is one decoded inotify event
type Record struct {
	Wd     int32
	Mask   uint32
	Cookie uint32
	Name   string
}

// Created reports whether the record announces a new directory entry with a name
func (r Record) Created() bool { return r.Mask&unix.IN_CREATE != 0 && r.Name != "" }

// Overflow reports whether the kernel dropped events
func (r Record) Overflow() bool { return r.Mask&unix.IN_Q_OVERFLOW != 0 }

// Parse decodes a read buffer into records.
// A header or name running past the end of buf is a Protocol error
func Parse(buf []byte) ([]Record, error) {
	var out []Record
	for off := 0; off < len(buf); {
		if len(buf)-off < HeaderSize {
			return out, perr.Protocolf("inotify: truncated header at offset %d (%d bytes left)", off, len(buf)-off)
		}
		h := buf[off : off+HeaderSize]
		rec := Record{
			Wd:     int32(binary.NativeEndian.Uint32(h[0:4])),
			Mask:   binary.NativeEndian.Uint32(h[4:8]),
			Cookie: binary.NativeEndian.Uint32(h[8:12]),
		}
		n := int(binary.NativeEndian.Uint32(h[12:16]))
		off += HeaderSize
		if n < 0 || n > len(buf)-off {
			return out, perr.Protocolf("inotify: name length %d overruns buffer at offset %d", n, off)
		}
		if n > 0 {
			name := buf[off : off+n]
			if i := bytes.IndexByte(name, 0); i >= 0 {
				name = name[:i]
			}
			rec.Name = string(name)
		}
		off += n
		out = append(out, rec)
	}
	return out, nil
}

// Watcher is an inotify instance with a single IN_CREATE watch
type Watcher struct {
	f   *os.File
	buf []byte
}

// initFn is a seam for tests
var initFn = unix.InotifyInit1

// Watch subscribes to entries created in dir.
// The subscription is live when Watch returns so a later scan cannot miss entries
func Watch(dir string) (*Watcher, error) {
	fd, err := initFn(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "inotify init")
	}
	if _, err := unix.InotifyAddWatch(fd, dir, unix.IN_CREATE); err != nil {
		_ = unix.Close(fd)
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "inotify watch %s", dir)
	}
	// non-blocking fd goes through the runtime poller so Close unblocks Next
	return &Watcher{f: os.NewFile(uintptr(fd), "inotify:"+dir), buf: make([]byte, bufSize)}, nil
}

// Next blocks until the kernel delivers at least one record.
// End of stream and read failures are Unavailable; malformed data is Protocol
func (w *Watcher) Next() ([]Record, error) {
	n, err := w.f.Read(w.buf)
	switch {
	case errors.Is(err, io.EOF) || (err == nil && n == 0):
		return nil, perr.New(perr.ErrorCodeUnavailable, "inotify: end of stream")
	case err != nil:
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "inotify read")
	}
	return Parse(w.buf[:n])
}

// Close releases the inotify instance
func (w *Watcher) Close() error { return w.f.Close() }
