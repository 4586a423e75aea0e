package job

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"coopsched/internal/sched"
)

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Recurring runs fn on a cron schedule through the scheduler's delayed
// queue. Each run schedules the next one, so at most one task is pending.
//
// Like the scheduler, a Recurring must only be used from the scheduler's
// goroutine.
type Recurring struct {
	s        *sched.Scheduler
	schedule cron.Schedule
	priority sched.Priority
	fn       func(at time.Time) error
	now      func() time.Time

	task    *sched.Task
	runs    int
	stopped bool
}

// RecurringOption configures a [Recurring].
type RecurringOption func(*Recurring)

// WithWallClock sets the wall clock cron schedules are evaluated against.
func WithWallClock(now func() time.Time) RecurringOption {
	return func(r *Recurring) {
		r.now = now
	}
}

// NewRecurring parses spec, e.g. "*/5 * * * *", "@every 2s" or a
// six-field expression with seconds.
func NewRecurring(s *sched.Scheduler, spec string, priority sched.Priority, fn func(at time.Time) error, opts ...RecurringOption) (*Recurring, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	r := &Recurring{
		s:        s,
		schedule: schedule,
		priority: priority,
		fn:       fn,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start schedules the first run. It does nothing while a run is pending.
func (r *Recurring) Start() {
	if !r.stopped && r.task != nil && !r.task.Cancelled() {
		return
	}
	r.stopped = false
	r.scheduleNext()
}

// Stop cancels the pending run.
func (r *Recurring) Stop() {
	r.stopped = true
	r.s.CancelTask(r.task)
}

// Runs returns how many times fn has been called.
func (r *Recurring) Runs() int { return r.runs }

// Next returns the pending task, or nil when stopped.
func (r *Recurring) Next() *sched.Task {
	if r.stopped {
		return nil
	}
	return r.task
}

func (r *Recurring) scheduleNext() {
	now := r.now()
	next := r.schedule.Next(now)
	if next.IsZero() {
		// the schedule has no further activations
		r.task = nil
		return
	}
	r.task = r.s.ScheduleTask(r.priority, r.run, sched.WithDelay(next.Sub(now)))
}

func (r *Recurring) run(bool) (sched.Result, error) {
	if r.stopped {
		return sched.Done(), nil
	}
	r.task = nil
	r.runs++
	err := r.fn(r.now())
	// fn may have called Stop or Start itself
	if !r.stopped && r.task == nil {
		r.scheduleNext()
	}
	return sched.Done(), err
}
