package browse

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Token identifies one issued request. Tokens increase monotonically per scheduler.
type Token uint64

// Scheduler debounces one request stream. It holds at most one pending timer;
// restarting it supersedes the previous timer so that callback never runs.
// When a timer fires the scheduler issues a fresh token, and only the most
// recently issued token is current.
type Scheduler struct {
	clock clockwork.Clock

	mu         sync.Mutex
	timer      clockwork.Timer
	generation uint64
	issued     Token
	current    Token
	closed     bool
}

// NewScheduler creates a scheduler driven by clock (the real clock when nil).
func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock}
}

// Reset starts or restarts the timer. When it fires without being superseded,
// fn is called with a newly issued token. Reset is ignored after Close.
func (s *Scheduler) Reset(delay time.Duration, fn func(Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopLocked()

	gen := s.generation
	s.timer = s.clock.AfterFunc(delay, func() {
		s.fire(gen, fn)
	})
}

func (s *Scheduler) fire(gen uint64, fn func(Token)) {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.issued++
	s.current = s.issued
	token := s.current
	s.mu.Unlock()

	fn(token)
}

// Cancel stops the pending timer, if any. Issued tokens stay current.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Invalidate makes every issued token stale without issuing a new one.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
}

// Close cancels the pending timer and permanently invalidates all tokens.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.current = 0
	s.closed = true
}

// Current reports whether token is the most recently issued one and still valid.
func (s *Scheduler) Current(token Token) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token != 0 && token == s.current
}

// Pending reports whether a timer is waiting to fire.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Issued returns the number of tokens issued so far.
func (s *Scheduler) Issued() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// stopLocked must be called with s.mu held.
func (s *Scheduler) stopLocked() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
