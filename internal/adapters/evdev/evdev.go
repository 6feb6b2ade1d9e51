// Package evdev opens Linux input event devices and yields normalized events
package evdev

import (
	"slices"

	perr "keystat/internal/platform/errors"

	"github.com/holoplot/go-evdev"
)

// Key event classification
const (
	TypeKey   = uint16(evdev.EV_KEY)
	ValueUp   = int32(0)
	ValueDown = int32(1)
	ValueRep  = int32(2)
)

// Event is a normalized input event. The kernel timestamp is dropped;
// callers time presses on CLOCK_MONOTONIC when Next returns
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// KeyDown reports a released to pressed transition
func (e Event) KeyDown() bool { return e.Type == TypeKey && e.Value == ValueDown }

// inputDevice is the subset of *evdev.InputDevice we use
type inputDevice interface {
	Name() (string, error)
	CapableTypes() []evdev.EvType
	CapableEvents(t evdev.EvType) []evdev.EvCode
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// seams for tests
var (
	openDevice = func(path string) (inputDevice, error) {
		d, err := evdev.Open(path)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	listPaths = evdev.ListDevicePaths
)

// Device is an opened input device that reports key events
type Device struct {
	path string
	name string
	dev  inputDevice
}

// Open opens path and verifies the device reports key events.
// The handle is closed again on any verification failure
func Open(path string) (*Device, error) {
	d, err := openDevice(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeDeviceOpen, "open %s", path)
	}
	if !slices.Contains(d.CapableTypes(), evdev.EV_KEY) {
		_ = d.Close()
		return nil, perr.Newf(perr.ErrorCodeNotKeyboard, "%s does not report key events", path)
	}
	// an unnamed keyboard still counts
	name, _ := d.Name()
	return &Device{path: path, name: name, dev: d}, nil
}

// Path returns the device node path
func (d *Device) Path() string { return d.path }

// Name returns the kernel reported device name, possibly empty
func (d *Device) Name() string { return d.name }

// HasLetters reports whether the device exposes typing keys, not just media or power buttons
func (d *Device) HasLetters() bool { return hasLetters(d.dev) }

// Next blocks for the next event.
// Any read error is a DeviceIO error; the device is unusable after it
func (d *Device) Next() (Event, error) {
	ev, err := d.dev.ReadOne()
	if err != nil {
		return Event{}, perr.Wrapf(err, perr.ErrorCodeDeviceIO, "read %s", d.path)
	}
	return Event{
		Type:  uint16(ev.Type),
		Code:  uint16(ev.Code),
		Value: ev.Value,
	}, nil
}

// Close releases the device handle and unblocks a pending Next
func (d *Device) Close() error { return d.dev.Close() }

// Info describes a key capable device found on the host
type Info struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Letters bool   `json:"letters"`
}

// ListKeyboards opens every input device node and returns those reporting key events.
// Devices that cannot be opened are skipped
func ListKeyboards() ([]Info, error) {
	paths, err := listPaths()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "list input devices")
	}
	out := make([]Info, 0, len(paths))
	for _, p := range paths {
		d, err := Open(p.Path)
		if err != nil {
			continue
		}
		name := d.Name()
		if name == "" {
			name = p.Name
		}
		out = append(out, Info{Path: p.Path, Name: name, Letters: d.HasLetters()})
		_ = d.Close()
	}
	return out, nil
}

func hasLetters(d inputDevice) bool {
	codes := d.CapableEvents(evdev.EV_KEY)
	return slices.Contains(codes, evdev.KEY_A) && slices.Contains(codes, evdev.KEY_ENTER)
}
