// Package debounce coalesces bursts of structural changes into a single
// trigger that fires once the burst has been quiet for a fixed window.
package debounce

import (
	"sync"
	"time"
)

// State is the scheduler's position in its two-state machine.
type State int

const (
	// Idle means no regeneration is pending.
	Idle State = iota
	// Armed means a timer is running and will fire at Deadline.
	Armed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	default:
		return "unknown"
	}
}

// Token identifies one arming of the scheduler. A token delivered on C is only
// honoured by Fire if no Arm, Disarm or Stop happened after it was issued.
type Token uint64

// Scheduler is a resettable one-shot timer. Every Arm cancels the previous
// timer and starts a new one, so N calls within the window produce exactly
// one accepted fire, wait after the last call.
//
// The consumer reads tokens from C and passes each to Fire; a false result
// means the token is stale and must be ignored.
type Scheduler struct {
	wait time.Duration

	mutex    sync.Mutex
	timer    *time.Timer
	current  Token
	state    State
	deadline time.Time
	stopped  bool

	fired chan Token
	done  chan struct{}
}

// New creates an idle scheduler with the given window.
func New(wait time.Duration) *Scheduler {
	return &Scheduler{
		wait:  wait,
		fired: make(chan Token, 1),
		done:  make(chan struct{}),
	}
}

// Arm cancels any running timer and starts a new one. It returns the token the
// new timer will deliver. Arm after Stop is a no-op.
func (s *Scheduler) Arm() Token {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stopped {
		return s.current
	}
	if s.timer != nil {
		s.timer.Stop()
	}

	s.current++
	tok := s.current
	s.state = Armed
	s.deadline = time.Now().Add(s.wait)
	s.timer = time.AfterFunc(s.wait, func() {
		select {
		case s.fired <- tok:
		case <-s.done:
		}
	})
	return tok
}

// C delivers tokens from expired timers.
func (s *Scheduler) C() <-chan Token {
	return s.fired
}

// Fire accepts tok if it belongs to the current arming and moves the
// scheduler back to Idle. Stale tokens return false and change nothing.
func (s *Scheduler) Fire(tok Token) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != Armed || tok != s.current {
		return false
	}
	s.state = Idle
	s.deadline = time.Time{}
	s.timer = nil
	return true
}

// Disarm cancels a pending fire without triggering it.
func (s *Scheduler) Disarm() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.disarmLocked()
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	// Invalidate any token already in flight.
	s.current++
	s.state = Idle
	s.deadline = time.Time{}
}

// State returns Idle or Armed.
func (s *Scheduler) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Armed reports whether a fire is pending.
func (s *Scheduler) Armed() bool {
	return s.State() == Armed
}

// Deadline returns when the pending fire is due, or the zero time when idle.
func (s *Scheduler) Deadline() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.deadline
}

// Wait returns the debounce window.
func (s *Scheduler) Wait() time.Duration {
	return s.wait
}

// Stop cancels any pending fire and releases timer callbacks blocked on C.
// Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.stopped {
		return
	}
	s.disarmLocked()
	s.stopped = true
	close(s.done)
}
