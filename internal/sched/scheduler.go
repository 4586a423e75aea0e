// internal/sched/scheduler.go

package sched

import (
	"time"

	"github.com/rs/zerolog"
)

const maxFrameRate = 125

// Scheduler is a cooperative, priority-based task scheduler.
//
// Ready tasks run in order of expiration time, then creation order. The work
// loop runs inside host callbacks and hands control back to the host once
// its time slice is used up, unless the next task has already expired.
//
// A Scheduler is not safe for concurrent use. Every method must be called
// from the goroutine that runs the host's callbacks.
type Scheduler struct {
	host         Host
	inputPending func() bool // nil if the host cannot report pending input
	log          zerolog.Logger
	observer     Observer
	onError      func(error)

	readyQueue   *MinHeap[*Task] // by expiration time
	delayedQueue *MinHeap[*Task] // by start time
	lastID       TaskID

	currentTask             *Task
	currentPriority         Priority
	isPerformingWork        bool
	isHostCallbackScheduled bool
	isHostTimeoutScheduled  bool
	paused                  bool

	// host callback bridge
	scheduledCallback  hostCallback
	messageLoopRunning bool
	sliceStart         time.Duration
	needsPaint         bool
	yieldBudget        time.Duration
	defaultYieldBudget time.Duration
	maxYieldInterval   time.Duration

	stats Stats
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Scheduled     uint64 // ScheduleTask calls
	Invocations   uint64 // callbacks run, continuations included
	Continuations uint64
	Finished      uint64
	Failed        uint64
	Cancelled     uint64
	Discarded     uint64 // tombstones dropped from a queue
	Yields        uint64
	Ready         int
	Delayed       int
}

// New creates a scheduler driven by host.
func New(host Host, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.YieldBudget <= 0 {
		o.YieldBudget = defaultOptions().YieldBudget
	}
	if o.MaxYieldInterval < o.YieldBudget {
		o.MaxYieldInterval = o.YieldBudget
	}

	s := &Scheduler{
		host:               host,
		log:                o.Logger,
		observer:           o.Observer,
		onError:            o.ErrorHandler,
		readyQueue:         NewMinHeap(taskKey),
		delayedQueue:       NewMinHeap(taskKey),
		currentPriority:    Normal,
		yieldBudget:        o.YieldBudget,
		defaultYieldBudget: o.YieldBudget,
		maxYieldInterval:   o.MaxYieldInterval,
	}
	if ih, ok := host.(InputPendingHost); ok {
		s.inputPending = ih.InputPending
	}
	if o.FrameRate != 0 {
		// invalid rates are logged and ignored
		_ = s.ForceFrameRate(o.FrameRate)
	}
	return s
}

// Now returns the host's monotonic time.
func (s *Scheduler) Now() time.Duration { return s.host.Now() }

// ScheduleTask queues callback at priority and returns the task, which
// can be passed to CancelTask. Unknown priorities are treated as Normal.
func (s *Scheduler) ScheduleTask(priority Priority, callback Callback, opts ...TaskOption) *Task {
	var o taskOptions
	for _, opt := range opts {
		opt(&o)
	}

	priority = priority.Normalize()
	now := s.host.Now()
	startTime := now
	if o.delay > 0 {
		startTime = now + o.delay
	}

	s.lastID++
	task := &Task{
		ID:             s.lastID,
		Priority:       priority,
		StartTime:      startTime,
		ExpirationTime: startTime + priority.Timeout(),
		callback:       callback,
	}
	s.stats.Scheduled++

	if startTime > now {
		task.sortIndex = startTime
		s.delayedQueue.Push(task)
		s.emit(Event{Kind: EventDelay, Task: task})

		// Only the earliest delayed task needs a timer, and only while
		// nothing is ready; the work loop re-arms it otherwise.
		if s.readyQueue.Len() == 0 {
			if first, _ := s.delayedQueue.Peek(); first == task {
				if s.isHostTimeoutScheduled {
					s.cancelHostTimeout()
				} else {
					s.isHostTimeoutScheduled = true
				}
				s.requestHostTimeout(s.handleTimeout, startTime-now)
			}
		}
		return task
	}

	task.sortIndex = task.ExpirationTime
	s.readyQueue.Push(task)
	s.emit(Event{Kind: EventEnqueue, Task: task})
	s.ensureHostCallback()
	return task
}

// CancelTask stops a task from running again. It is safe to call more than
// once, on a finished task, or on the task that is currently running, in
// which case a continuation it returns is dropped.
func (s *Scheduler) CancelTask(task *Task) {
	if task == nil || task.canceled {
		return
	}
	if task.callback == nil && task != s.currentTask {
		// already finished or failed
		return
	}
	task.canceled = true
	task.callback = nil
	s.stats.Cancelled++
	s.emit(Event{Kind: EventCancel, Task: task})
}

// CurrentPriority returns the priority of the running task or of the
// innermost RunWithPriority scope.
func (s *Scheduler) CurrentPriority() Priority { return s.currentPriority }

// CurrentTask returns the task whose callback is running, or nil.
func (s *Scheduler) CurrentTask() *Task { return s.currentTask }

// RunWithPriority runs fn with the current priority set to priority. The
// previous priority is restored however fn exits.
func (s *Scheduler) RunWithPriority(priority Priority, fn func()) {
	previous := s.currentPriority
	s.currentPriority = priority.Normalize()
	defer func() {
		s.currentPriority = previous
	}()
	fn()
}

// RunWithPriorityValue is RunWithPriority for functions returning a value.
func RunWithPriorityValue[R any](s *Scheduler, priority Priority, fn func() R) R {
	var r R
	s.RunWithPriority(priority, func() {
		r = fn()
	})
	return r
}

// RunNext runs fn at Normal priority, or at the current priority when that
// is already Low or Idle.
func (s *Scheduler) RunNext(fn func()) {
	priority := Normal
	switch s.currentPriority {
	case Low, Idle:
		priority = s.currentPriority
	}
	s.RunWithPriority(priority, fn)
}

// WrapCallback returns fn bound to the priority that is current now. Each
// call of the result runs fn at that priority.
func (s *Scheduler) WrapCallback(fn func()) func() {
	priority := s.currentPriority
	return func() {
		s.RunWithPriority(priority, fn)
	}
}

// Wrap is WrapCallback for single-argument functions.
func Wrap[A, R any](s *Scheduler, fn func(A) R) func(A) R {
	priority := s.currentPriority
	return func(a A) R {
		return RunWithPriorityValue(s, priority, func() R {
			return fn(a)
		})
	}
}

// FirstTask returns the task at the head of the ready queue, or nil.
func (s *Scheduler) FirstTask() *Task {
	task, _ := s.readyQueue.Peek()
	return task
}

// Pause stops the work loop at the next task boundary. Queued tasks are kept.
func (s *Scheduler) Pause() {
	s.paused = true
}

// Resume undoes Pause and schedules a pass if tasks are ready, or re-arms
// the timer for the earliest delayed task.
func (s *Scheduler) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	now := s.host.Now()
	s.advanceTimers(now)
	if s.readyQueue.Len() > 0 {
		s.ensureHostCallback()
		return
	}
	if !s.isHostTimeoutScheduled {
		s.armFirstTimer(now)
	}
}

// ForceFrameRate sizes the time slice to one frame at fps. Zero restores
// the configured budget.
func (s *Scheduler) ForceFrameRate(fps int) error {
	if fps < 0 || fps > maxFrameRate {
		s.log.Error().Int("fps", fps).Msg("forceFrameRate takes a positive int between 0 and 125, forcing frame rates higher than 125 fps is not supported")
		return ErrInvalidFrameRate
	}
	if fps > 0 {
		s.yieldBudget = time.Duration(1000/fps) * time.Millisecond
	} else {
		s.yieldBudget = s.defaultYieldBudget
	}
	s.log.Debug().Int("fps", fps).Dur("yield_budget", s.yieldBudget).Msg("frame rate changed")
	return nil
}

// SetYieldBudget replaces the configured time slice, e.g. after a config
// reload. Non-positive values are ignored.
func (s *Scheduler) SetYieldBudget(d time.Duration) {
	if d <= 0 {
		return
	}
	s.defaultYieldBudget = d
	s.yieldBudget = d
	if s.maxYieldInterval < d {
		s.maxYieldInterval = d
	}
}

// YieldBudget returns the current time slice.
func (s *Scheduler) YieldBudget() time.Duration { return s.yieldBudget }

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Ready = s.readyQueue.Len()
	st.Delayed = s.delayedQueue.Len()
	return st
}

func (s *Scheduler) ensureHostCallback() {
	if s.isHostCallbackScheduled || s.isPerformingWork || s.paused {
		return
	}
	s.isHostCallbackScheduled = true
	s.requestHostCallback(s.flushWork)
}

// advanceTimers moves every delayed task whose start time has passed into
// the ready queue and drops cancelled ones on the way.
func (s *Scheduler) advanceTimers(now time.Duration) {
	for {
		task, ok := s.delayedQueue.Peek()
		if !ok {
			return
		}
		switch {
		case task.callback == nil:
			s.delayedQueue.Pop()
			s.stats.Discarded++
			s.emit(Event{Kind: EventDiscard, Task: task})
		case task.StartTime <= now:
			s.delayedQueue.Pop()
			task.sortIndex = task.ExpirationTime
			s.readyQueue.Push(task)
			s.emit(Event{Kind: EventPromote, Task: task})
		default:
			return
		}
	}
}

func (s *Scheduler) handleTimeout(now time.Duration) {
	s.isHostTimeoutScheduled = false
	s.advanceTimers(now)

	if s.isHostCallbackScheduled {
		return
	}
	if s.readyQueue.Len() > 0 && !s.paused {
		s.ensureHostCallback()
		return
	}
	// while paused, keep promoting delayed tasks as they come due
	s.armFirstTimer(now)
}

func (s *Scheduler) armFirstTimer(now time.Duration) {
	if first, ok := s.delayedQueue.Peek(); ok {
		s.isHostTimeoutScheduled = true
		s.requestHostTimeout(s.handleTimeout, first.StartTime-now)
	}
}

func (s *Scheduler) flushWork(hasTimeRemaining bool, initialTime time.Duration) (bool, error) {
	// A new pass has to be requested for anything scheduled from here on.
	s.isHostCallbackScheduled = false
	if s.isHostTimeoutScheduled {
		// The loop promotes delayed tasks itself.
		s.isHostTimeoutScheduled = false
		s.cancelHostTimeout()
	}

	s.isPerformingWork = true
	previousPriority := s.currentPriority
	defer func() {
		s.currentTask = nil
		s.currentPriority = previousPriority
		s.isPerformingWork = false
	}()
	return s.workLoop(hasTimeRemaining, initialTime)
}

func (s *Scheduler) workLoop(hasTimeRemaining bool, initialTime time.Duration) (bool, error) {
	now := initialTime
	s.advanceTimers(now)

	for !s.paused {
		task, ok := s.readyQueue.Peek()
		if !ok {
			break
		}
		s.currentTask = task

		callback := task.callback
		if callback == nil {
			s.readyQueue.Pop()
			if !task.settled {
				s.stats.Discarded++
				s.emit(Event{Time: now, Kind: EventDiscard, Task: task})
			}
			continue
		}

		if task.ExpirationTime > now && (!hasTimeRemaining || s.ShouldYield()) {
			// Not expired and out of time: hand control back to the host.
			s.stats.Yields++
			s.log.Debug().
				Uint64("task", uint64(task.ID)).
				Dur("slice", now-s.sliceStart).
				Int("ready", s.readyQueue.Len()).
				Msg("yield to host")
			s.emit(Event{Time: now, Kind: EventYield})
			break
		}

		task.callback = nil
		s.currentPriority = task.Priority
		didTimeout := task.ExpirationTime <= now
		s.stats.Invocations++
		s.emit(Event{Time: now, Kind: EventDispatch, Task: task, DidTimeout: didTimeout})

		started := now
		result, err := callback(didTimeout)
		now = s.host.Now()

		if err != nil {
			s.stats.Failed++
			task.settled = true
			s.removeIfHead(task)
			s.emit(Event{Time: now, Kind: EventFail, Task: task, DidTimeout: didTimeout, Elapsed: now - started, Err: err})
			return false, &TaskError{ID: task.ID, Priority: task.Priority, Err: err}
		}

		if next, ok := result.Continuation(); ok && !task.canceled {
			// The task stays at the head with its expiration time unchanged.
			task.callback = next
			s.stats.Continuations++
			s.emit(Event{Time: now, Kind: EventContinue, Task: task, DidTimeout: didTimeout, Elapsed: now - started})
		} else {
			s.removeIfHead(task)
			if !task.canceled {
				task.settled = true
				s.stats.Finished++
				s.emit(Event{Time: now, Kind: EventFinish, Task: task, DidTimeout: didTimeout, Elapsed: now - started})
			}
		}
		s.advanceTimers(now)
	}

	if s.paused {
		s.armFirstTimer(now)
		return false, nil
	}
	if s.readyQueue.Len() > 0 {
		return true, nil
	}
	s.armFirstTimer(now)
	return false, nil
}

// removeIfHead pops task if it is still at the head of the ready queue. A
// task scheduled from inside the callback may have taken its place, in
// which case the finished task stays behind as a tombstone and is dropped
// silently when it reaches the head.
func (s *Scheduler) removeIfHead(task *Task) {
	if head, ok := s.readyQueue.Peek(); ok && head == task {
		s.readyQueue.Pop()
	}
}

func (s *Scheduler) reportError(err error) {
	s.log.Error().Err(err).Msg("task failed")
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Scheduler) emit(ev Event) {
	if s.observer == nil {
		return
	}
	if ev.Time == 0 {
		ev.Time = s.host.Now()
	}
	s.observer(ev)
}
