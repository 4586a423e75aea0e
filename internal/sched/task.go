package sched

import "time"

// TaskID uniquely identifies a task within one scheduler. IDs are never
// reused and increase with creation order.
type TaskID uint64

// Callback is one slice of a task's work. didTimeout is true when the task
// ran because its expiration time had passed.
type Callback func(didTimeout bool) (Result, error)

// Result tells the work loop whether a task finished or has more to do.
type Result struct {
	next Callback
}

// Done reports that the task is complete.
func Done() Result { return Result{} }

// Continue reports that the task has more work, represented by next. The
// task keeps its place in the queue and next runs on a later iteration.
// Continue(nil) is the same as Done().
func Continue(next Callback) Result { return Result{next: next} }

// Continuation returns the follow-up callback, if any.
func (r Result) Continuation() (Callback, bool) {
	return r.next, r.next != nil
}

// Task represents one schedulable unit of work. It doubles as the handle
// returned by ScheduleTask.
type Task struct {
	ID             TaskID
	Priority       Priority
	StartTime      time.Duration // eligible at or after this time
	ExpirationTime time.Duration // StartTime + Priority.Timeout()

	callback  Callback // nil when cancelled, finished, or running
	canceled  bool
	settled   bool // finished or failed; a leftover tombstone is not a discard
	sortIndex time.Duration
}

// Cancelled reports whether CancelTask was called on the task.
func (t *Task) Cancelled() bool { return t.canceled }

func taskKey(t *Task) HeapKey {
	return HeapKey{SortIndex: t.sortIndex, ID: uint64(t.ID)}
}

// TaskOption configures a single ScheduleTask call.
type TaskOption func(*taskOptions)

type taskOptions struct {
	delay time.Duration
}

// WithDelay postpones eligibility by d. Non-positive values mean no delay.
func WithDelay(d time.Duration) TaskOption {
	return func(o *taskOptions) {
		o.delay = d
	}
}
