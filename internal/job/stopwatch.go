package job

import (
	"sync"
	"time"
)

// stopwatch accumulates processing time and freezes while paused, so
// the reported elapsed value is wall-clock independent: pausing for an
// hour adds nothing.
type stopwatch struct {
	mu          sync.Mutex
	accumulated time.Duration
	startedAt   time.Time
	running     bool
}

// newStopwatch returns a running stopwatch.
func newStopwatch() *stopwatch {
	return &stopwatch{startedAt: time.Now(), running: true}
}

// pause folds the current segment into the accumulator and stops accruing.
// No-op if already paused.
func (s *stopwatch) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.accumulated += time.Since(s.startedAt)
	s.running = false
}

// resume restarts accrual. No-op if already running.
func (s *stopwatch) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.startedAt = time.Now()
	s.running = true
}

// elapsed returns the accumulated processing time.
func (s *stopwatch) elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.accumulated + time.Since(s.startedAt)
	}
	return s.accumulated
}
