package sched

import "time"

// Host is the environment that owns the thread of control. The scheduler
// never blocks; it asks the host to call it back instead.
//
// All methods are called from, and all posted functions must be run on,
// the goroutine that drives the scheduler.
type Host interface {
	// Now returns a monotonic timestamp.
	Now() time.Duration
	// PostMessage runs fn on a later turn of the host loop, after anything
	// the host already has queued. It must not run fn synchronously.
	PostMessage(fn func())
	// SetTimeout runs fn once after delay, replacing any timeout that is
	// still outstanding.
	SetTimeout(fn func(), delay time.Duration)
	// ClearTimeout cancels the outstanding timeout, if any.
	ClearTimeout()
}

// InputPendingHost is a Host that can tell whether user input is waiting.
// The scheduler then keeps running past its small budget until input
// arrives, paint is requested, or the max yield interval elapses.
type InputPendingHost interface {
	Host
	InputPending() bool
}

type hostCallback func(hasTimeRemaining bool, now time.Duration) (bool, error)

// requestHostCallback records cb and posts a wake-up unless one is already
// in flight. The in-flight cycle re-checks the queues, so one is enough.
func (s *Scheduler) requestHostCallback(cb hostCallback) {
	s.scheduledCallback = cb
	if !s.messageLoopRunning {
		s.messageLoopRunning = true
		s.host.PostMessage(s.performWorkUntilDeadline)
	}
}

func (s *Scheduler) performWorkUntilDeadline() {
	cb := s.scheduledCallback
	if cb == nil {
		s.messageLoopRunning = false
		return
	}

	now := s.host.Now()
	s.sliceStart = now
	s.needsPaint = false

	// Stays true if cb fails or panics, so the rest of the queue is drained
	// on a later turn.
	hasMoreWork := true
	defer func() {
		if hasMoreWork {
			s.host.PostMessage(s.performWorkUntilDeadline)
			return
		}
		s.messageLoopRunning = false
		s.scheduledCallback = nil
	}()

	more, err := cb(true, now)
	if err != nil {
		s.reportError(err)
		return
	}
	hasMoreWork = more
}

func (s *Scheduler) requestHostTimeout(fn func(now time.Duration), delay time.Duration) {
	s.host.SetTimeout(func() {
		fn(s.host.Now())
	}, delay)
}

func (s *Scheduler) cancelHostTimeout() {
	s.host.ClearTimeout()
}

// ShouldYield reports whether the current time slice is used up and a
// running task should return a continuation.
func (s *Scheduler) ShouldYield() bool {
	elapsed := s.host.Now() - s.sliceStart
	if elapsed < s.yieldBudget {
		return false
	}
	if s.inputPending == nil {
		return true
	}
	if s.needsPaint || s.inputPending() {
		return true
	}
	return elapsed >= s.maxYieldInterval
}

// RequestPaint asks the scheduler to yield at the next check past the
// small budget, even if the host reports no pending input.
func (s *Scheduler) RequestPaint() {
	s.needsPaint = true
}
