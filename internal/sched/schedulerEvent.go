// internal/sched/schedulerEvent.go

package sched

import (
	"time"
)

// EventKind represents the type of scheduler event
type EventKind int

const (
	EventEnqueue  EventKind = iota // task placed in the ready queue
	EventDelay                     // task placed in the delayed queue
	EventPromote                   // delayed task moved to the ready queue
	EventDispatch                  // callback about to run
	EventContinue                  // callback returned a continuation
	EventFinish                    // callback completed the task
	EventFail                      // callback returned an error
	EventCancel                    // CancelTask tombstoned the task
	EventDiscard                   // tombstone removed from a queue
	EventYield                     // work loop gave control back to the host
)

// Event is emitted on every task lifecycle transition and on every yield.
// Task is nil for EventYield.
type Event struct {
	Time       time.Duration
	Kind       EventKind
	Task       *Task
	DidTimeout bool
	Elapsed    time.Duration // callback run time, for Continue/Finish/Fail
	Err        error
}

// Observer receives scheduler events synchronously on the scheduler's
// goroutine. It must not block.
type Observer func(Event)

func (k EventKind) String() string {
	switch k {
	case EventEnqueue:
		return "Enqueue"
	case EventDelay:
		return "Delay"
	case EventPromote:
		return "Promote"
	case EventDispatch:
		return "Dispatch"
	case EventContinue:
		return "Continue"
	case EventFinish:
		return "Finish"
	case EventFail:
		return "Fail"
	case EventCancel:
		return "Cancel"
	case EventDiscard:
		return "Discard"
	case EventYield:
		return "Yield"
	default:
		return "Unknown"
	}
}
