package session

import (
	"sync"
	"time"
)

// DefaultSaveInterval is the minimum gap between debounced saves.
const DefaultSaveInterval = 500 * time.Millisecond

// DebouncedSaver coalesces non-critical saves. A call within the minimum
// interval records pending work; the next call after the interval, or an
// explicit Flush, performs the save. Critical saves go through
// Store.SaveMessage directly and never pass here.
type DebouncedSaver struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	pending  bool
	save     func() error
}

// NewDebouncedSaver wraps save with a minimum interval. A non-positive
// interval falls back to the default.
func NewDebouncedSaver(interval time.Duration, save func() error) *DebouncedSaver {
	if interval <= 0 {
		interval = DefaultSaveInterval
	}
	return &DebouncedSaver{interval: interval, save: save}
}

// Request asks for a save. It runs immediately when the interval has
// passed since the last save, otherwise it marks the work pending.
func (s *DebouncedSaver) Request() error {
	s.mu.Lock()
	if time.Since(s.last) < s.interval {
		s.pending = true
		s.mu.Unlock()
		return nil
	}
	s.last = time.Now()
	s.pending = false
	s.mu.Unlock()
	return s.save()
}

// Flush performs any pending save.
func (s *DebouncedSaver) Flush() error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	s.pending = false
	s.last = time.Now()
	s.mu.Unlock()
	return s.save()
}

// Pending reports whether a save request is waiting for the interval.
func (s *DebouncedSaver) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}
