package service

import (
	"sort"
	"sync"
	"time"

	"keystat/internal/services/keystat/domain"
)

// DeviceSet tracks devices that currently have a reader.
// A path is present from a successful Claim until its reader calls Release
type DeviceSet struct {
	mu sync.Mutex
	m  map[domain.DeviceID]domain.DeviceInfo
}

// NewDeviceSet returns an empty set
func NewDeviceSet() *DeviceSet {
	return &DeviceSet{m: make(map[domain.DeviceID]domain.DeviceInfo)}
}

// Claim inserts id if absent and reports whether this call inserted it
func (s *DeviceSet) Claim(id domain.DeviceID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; ok {
		return false
	}
	s.m[id] = domain.DeviceInfo{Path: id, Since: time.Now()}
	return true
}

// Describe records the device name for a claimed id; unknown ids are ignored
func (s *DeviceSet) Describe(id domain.DeviceID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.m[id]; ok {
		info.Name = name
		s.m[id] = info
	}
}

// Release removes id; releasing an absent id is a no-op
func (s *DeviceSet) Release(id domain.DeviceID) {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

// Len returns the number of claimed devices
func (s *DeviceSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// List returns the claimed devices ordered by path
func (s *DeviceSet) List() []domain.DeviceInfo {
	s.mu.Lock()
	out := make([]domain.DeviceInfo, 0, len(s.m))
	for _, info := range s.m {
		out = append(out, info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
