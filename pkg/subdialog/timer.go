package subdialog

import (
	"sync"
	"time"
)

// timerCause distinguishes which of a Sub's two timers fired, mirroring the
// reference implementation's SubscriptionTimer, which binds a timer_id
// enum to the shared onTimer callback so a single dispatch point can log
// and account for both timers without duplicating the callback body.
type timerCause int

const (
	timerCauseN timerCause = iota
	timerCauseExpires
)

func (c timerCause) String() string {
	if c == timerCauseExpires {
		return "expires"
	}
	return "timer_n"
}

type timerEntry struct {
	timer *time.Timer
	done  chan struct{}
}

// RealTimerService is a TimerService backed by time.AfterFunc, suitable for
// production use. Arming the same handle twice replaces the prior timer.
// RemoveTimer stops the underlying timer and, if it had already begun
// firing, blocks until that in-flight callback returns, so a caller that
// tears down a Sub right after RemoveTimer never races its own callback.
type RealTimerService struct {
	mu     sync.Mutex
	timers map[TimerHandle]*timerEntry
}

// NewRealTimerService constructs an empty RealTimerService.
func NewRealTimerService() *RealTimerService {
	return &RealTimerService{timers: make(map[TimerHandle]*timerEntry)}
}

// SetTimer implements TimerService.
func (s *RealTimerService) SetTimer(handle TimerHandle, d time.Duration, cb TimerCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[handle]; ok {
		existing.timer.Stop()
	}

	entry := &timerEntry{done: make(chan struct{})}
	entry.timer = time.AfterFunc(d, func() {
		defer close(entry.done)

		// The entry stays registered while cb runs, so a concurrent
		// RemoveTimer finds it and waits on done.
		cb()

		s.mu.Lock()
		if s.timers[handle] == entry {
			delete(s.timers, handle)
		}
		s.mu.Unlock()
	})
	s.timers[handle] = entry
}

// RemoveTimer implements TimerService. Called for a handle from inside that
// handle's own callback, it blocks forever waiting for the callback to end.
func (s *RealTimerService) RemoveTimer(handle TimerHandle) {
	s.mu.Lock()
	entry, ok := s.timers[handle]
	if ok {
		delete(s.timers, handle)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if !entry.timer.Stop() {
		// Already fired, or firing concurrently: wait for the callback
		// to finish rather than return while it may still be running.
		<-entry.done
	}
}
