package playback

import (
	"sync"
	"time"
)

// Scheduler runs fn once at the next frame boundary. The returned function
// cancels the request if it has not fired yet.
type Scheduler interface {
	Request(fn func()) (cancel func())
}

// TickerScheduler fires at a fixed refresh rate. Callbacks are handed to
// dispatch so they run on the goroutine that owns the engine, e.g. fyne.Do.
type TickerScheduler struct {
	interval time.Duration
	dispatch func(func())
}

// NewTickerScheduler creates a scheduler firing fps times per second. A nil
// dispatch calls fn directly on the timer goroutine.
func NewTickerScheduler(fps float64, dispatch func(func())) *TickerScheduler {
	if fps <= 0 {
		fps = 60
	}
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &TickerScheduler{
		interval: time.Duration(float64(time.Second) / fps),
		dispatch: dispatch,
	}
}

// Interval returns the time between frames
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

func (s *TickerScheduler) Request(fn func()) func() {
	var (
		mu        sync.Mutex
		cancelled bool
	)
	timer := time.AfterFunc(s.interval, func() {
		s.dispatch(func() {
			mu.Lock()
			skip := cancelled
			mu.Unlock()
			if !skip {
				fn()
			}
		})
	})
	return func() {
		mu.Lock()
		cancelled = true
		mu.Unlock()
		timer.Stop()
	}
}

// ManualScheduler holds requests until Step is called. It drives the
// engine deterministically in tests and in headless tools.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualRequest
}

type manualRequest struct {
	fn        func()
	cancelled bool
}

func (s *ManualScheduler) Request(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := &manualRequest{fn: fn}
	s.pending = append(s.pending, req)
	return func() {
		s.mu.Lock()
		req.cancelled = true
		s.mu.Unlock()
	}
}

// Pending reports how many live requests are queued
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.pending {
		if !r.cancelled {
			n++
		}
	}
	return n
}

// Step fires every request queued before the call and returns how many ran
func (s *ManualScheduler) Step() int {
	s.mu.Lock()
	batch := s.pending
	s.pending = nil
	s.mu.Unlock()

	ran := 0
	for _, r := range batch {
		s.mu.Lock()
		cancelled := r.cancelled
		s.mu.Unlock()
		if cancelled {
			continue
		}
		r.fn()
		ran++
	}
	return ran
}
