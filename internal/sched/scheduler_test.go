package sched

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopsched/internal/host"
)

func newTestScheduler(t *testing.T, opts ...Option) (*Scheduler, *host.Virtual) {
	t.Helper()
	v := host.NewVirtual()
	return New(v, opts...), v
}

// record returns a callback that appends name to log and finishes.
func record(log *[]string, name string) Callback {
	return func(bool) (Result, error) {
		*log = append(*log, name)
		return Done(), nil
	}
}

func TestScheduler_ExecutionOrder(t *testing.T) {
	type scheduled struct {
		name     string
		priority Priority
	}
	tests := map[string]struct {
		tasks []scheduled
		want  []string
	}{
		"expiration order across priorities": {
			tasks: []scheduled{{"A", Idle}, {"B", UserBlocking}, {"C", Normal}},
			want:  []string{"B", "C", "A"},
		},
		"immediate runs before idle": {
			tasks: []scheduled{{"A", Idle}, {"B", Immediate}},
			want:  []string{"B", "A"},
		},
		"equal priorities keep FIFO order": {
			tasks: []scheduled{{"first", Low}, {"second", Low}, {"third", Low}},
			want:  []string{"first", "second", "third"},
		},
		"all levels": {
			tasks: []scheduled{{"idle", Idle}, {"low", Low}, {"normal", Normal}, {"ub", UserBlocking}, {"imm", Immediate}},
			want:  []string{"imm", "ub", "normal", "low", "idle"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s, v := newTestScheduler(t)
			var got []string
			for _, task := range tt.tasks {
				s.ScheduleTask(task.priority, record(&got, task.name))
			}

			assert.Empty(t, got, "tasks must not run synchronously")
			v.RunUntilIdle()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScheduler_InvalidPriorityFallsBackToNormal(t *testing.T) {
	s, _ := newTestScheduler(t)

	task := s.ScheduleTask(Priority(42), func(bool) (Result, error) { return Done(), nil })
	assert.Equal(t, Normal, task.Priority)
	assert.Equal(t, NormalTimeout, task.ExpirationTime)
}

func TestScheduler_TaskIDsIncrease(t *testing.T) {
	s, _ := newTestScheduler(t)
	noop := func(bool) (Result, error) { return Done(), nil }

	a := s.ScheduleTask(Normal, noop)
	b := s.ScheduleTask(Idle, noop, WithDelay(time.Second))
	c := s.ScheduleTask(Immediate, noop)
	assert.Less(t, a.ID, b.ID)
	assert.Less(t, b.ID, c.ID)
}

func TestScheduler_OnlyOneWakeUpInFlight(t *testing.T) {
	s, v := newTestScheduler(t)
	noop := func(bool) (Result, error) { return Done(), nil }

	for i := 0; i < 10; i++ {
		s.ScheduleTask(Normal, noop)
	}
	assert.Equal(t, 1, v.Pending())

	v.RunUntilIdle()
	assert.Equal(t, uint64(10), s.Stats().Finished)
	assert.Equal(t, 0, v.Pending())
}

func TestScheduler_ExpiredTaskRunsWithoutTimeRemaining(t *testing.T) {
	s, v := newTestScheduler(t)
	var timedOut []bool
	s.ScheduleTask(Normal, func(didTimeout bool) (Result, error) {
		timedOut = append(timedOut, didTimeout)
		return Done(), nil
	})

	more, err := s.flushWork(false, v.Now())
	require.NoError(t, err)
	assert.True(t, more)
	assert.Empty(t, timedOut)

	v.Elapse(NormalTimeout - time.Millisecond)
	more, err = s.flushWork(false, v.Now())
	require.NoError(t, err)
	assert.True(t, more)
	assert.Empty(t, timedOut)

	v.Elapse(time.Millisecond)
	more, err = s.flushWork(false, v.Now())
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []bool{true}, timedOut)
}

func TestScheduler_ExpiredTasksIgnoreYieldBudget(t *testing.T) {
	s, v := newTestScheduler(t, WithYieldBudget(5*time.Millisecond))
	var got []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		s.ScheduleTask(Immediate, func(didTimeout bool) (Result, error) {
			assert.True(t, didTimeout)
			v.Elapse(20 * time.Millisecond)
			got = append(got, name)
			return Done(), nil
		})
	}

	require.True(t, v.RunNext())
	assert.Equal(t, []string{"a", "b", "c"}, got, "expired tasks share one pass")
	assert.Zero(t, s.Stats().Yields)
}

func TestScheduler_YieldThenResume(t *testing.T) {
	s, v := newTestScheduler(t, WithYieldBudget(5*time.Millisecond))
	var kinds []EventKind
	s.observer = func(ev Event) { kinds = append(kinds, ev.Kind) }

	calls := 0
	var first Callback
	first = func(didTimeout bool) (Result, error) {
		calls++
		v.Elapse(10 * time.Millisecond)
		if calls == 1 {
			return Continue(first), nil
		}
		return Done(), nil
	}
	task := s.ScheduleTask(Normal, first)

	require.True(t, v.RunNext())
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), s.Stats().Yields)
	assert.Same(t, task, s.FirstTask())

	v.RunUntilIdle()
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(1), s.Stats().Yields)
	assert.Nil(t, s.FirstTask())
	assert.Equal(t, []EventKind{
		EventEnqueue, EventDispatch, EventContinue, EventYield, EventDispatch, EventFinish,
	}, kinds)
}

func TestScheduler_ContinuationKeepsItsPlace(t *testing.T) {
	s, v := newTestScheduler(t, WithYieldBudget(5*time.Millisecond))
	var got []string

	calls := 0
	var a Callback
	a = func(bool) (Result, error) {
		calls++
		got = append(got, "A"+string(rune('0'+calls)))
		v.Elapse(10 * time.Millisecond)
		if calls == 1 {
			// earlier expiration than A, so it overtakes A's continuation
			s.ScheduleTask(UserBlocking, record(&got, "C"))
		}
		if calls < 3 {
			return Continue(a), nil
		}
		return Done(), nil
	}
	taskA := s.ScheduleTask(Normal, a)
	s.ScheduleTask(Normal, record(&got, "B"))
	expiration := taskA.ExpirationTime

	v.RunUntilIdle()
	assert.Equal(t, []string{"A1", "C", "A2", "A3", "B"}, got)
	assert.Equal(t, expiration, taskA.ExpirationTime)
	assert.Equal(t, uint64(2), s.Stats().Continuations)
}

func TestScheduler_ContinuationRunsBeforeLaterTasksWithoutYield(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string

	remaining := 3
	var a Callback
	a = func(bool) (Result, error) {
		got = append(got, "A")
		remaining--
		if remaining > 0 {
			return Continue(a), nil
		}
		return Done(), nil
	}
	s.ScheduleTask(Normal, a)
	s.ScheduleTask(Normal, record(&got, "B"))

	require.True(t, v.RunNext())
	assert.Equal(t, []string{"A", "A", "A", "B"}, got)
}

func TestScheduler_CancelTask(t *testing.T) {
	t.Run("cancelled task never runs", func(t *testing.T) {
		s, v := newTestScheduler(t)
		var got []string
		a := s.ScheduleTask(Normal, record(&got, "A"))
		s.ScheduleTask(Normal, record(&got, "B"))

		s.CancelTask(a)
		assert.True(t, a.Cancelled())
		v.RunUntilIdle()

		assert.Equal(t, []string{"B"}, got)
		st := s.Stats()
		assert.Equal(t, uint64(1), st.Cancelled)
		assert.Equal(t, uint64(1), st.Discarded)
		assert.Zero(t, st.Ready)
	})

	t.Run("idempotent", func(t *testing.T) {
		s, v := newTestScheduler(t)
		var got []string
		a := s.ScheduleTask(Normal, record(&got, "A"))

		assert.NotPanics(t, func() {
			s.CancelTask(a)
			s.CancelTask(a)
			s.CancelTask(nil)
		})
		v.RunUntilIdle()
		assert.Empty(t, got)
		assert.Equal(t, uint64(1), s.Stats().Cancelled)
	})

	t.Run("completed task", func(t *testing.T) {
		s, v := newTestScheduler(t)
		var got []string
		a := s.ScheduleTask(Normal, record(&got, "A"))
		v.RunUntilIdle()

		assert.NotPanics(t, func() { s.CancelTask(a) })
		v.RunUntilIdle()
		assert.Equal(t, []string{"A"}, got)
		assert.False(t, a.Cancelled())
		st := s.Stats()
		assert.Zero(t, st.Ready)
		assert.Zero(t, st.Cancelled)
	})

	t.Run("running task drops its continuation", func(t *testing.T) {
		s, v := newTestScheduler(t)
		calls := 0
		var task *Task
		task = s.ScheduleTask(Normal, func(bool) (Result, error) {
			calls++
			s.CancelTask(task)
			return Continue(func(bool) (Result, error) {
				calls++
				return Done(), nil
			}), nil
		})

		v.RunUntilIdle()
		assert.Equal(t, 1, calls)
		assert.Nil(t, s.FirstTask())
	})

	t.Run("delayed task", func(t *testing.T) {
		s, v := newTestScheduler(t)
		var got []string
		a := s.ScheduleTask(Normal, record(&got, "A"), WithDelay(50*time.Millisecond))
		s.CancelTask(a)

		v.Advance(time.Second)
		assert.Empty(t, got)
		st := s.Stats()
		assert.Zero(t, st.Delayed)
		assert.Equal(t, uint64(1), st.Discarded)
	})
}

func TestScheduler_DelayPromotion(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string
	task := s.ScheduleTask(Normal, record(&got, "delayed"), WithDelay(100*time.Millisecond))

	assert.Equal(t, 100*time.Millisecond, task.StartTime)
	assert.Equal(t, 100*time.Millisecond+NormalTimeout, task.ExpirationTime)
	st := s.Stats()
	assert.Equal(t, 1, st.Delayed)
	assert.Zero(t, st.Ready)
	due, ok := v.TimeoutPending()
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, due)

	s.advanceTimers(99 * time.Millisecond)
	assert.Zero(t, s.Stats().Ready)

	s.advanceTimers(100 * time.Millisecond)
	st = s.Stats()
	assert.Equal(t, 1, st.Ready)
	assert.Zero(t, st.Delayed)
	assert.Same(t, task, s.FirstTask())
}

func TestScheduler_DelayedTaskRunsWhenDue(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string
	s.ScheduleTask(Normal, record(&got, "delayed"), WithDelay(100*time.Millisecond))

	v.Advance(99 * time.Millisecond)
	assert.Empty(t, got)

	v.Advance(time.Millisecond)
	v.RunUntilIdle()
	assert.Equal(t, []string{"delayed"}, got)
}

func TestScheduler_NegativeDelayMeansNow(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string
	task := s.ScheduleTask(Low, record(&got, "x"), WithDelay(-time.Second))

	assert.Equal(t, time.Duration(0), task.StartTime)
	assert.Equal(t, 1, s.Stats().Ready)
	v.RunUntilIdle()
	assert.Equal(t, []string{"x"}, got)
}

func TestScheduler_EarlierDelayedTaskReplacesTimeout(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string
	s.ScheduleTask(Normal, record(&got, "late"), WithDelay(500*time.Millisecond))
	s.ScheduleTask(Normal, record(&got, "early"), WithDelay(100*time.Millisecond))

	due, ok := v.TimeoutPending()
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, due)

	v.Advance(200 * time.Millisecond)
	assert.Equal(t, []string{"early"}, got)
	due, ok = v.TimeoutPending()
	require.True(t, ok, "timer re-armed for the next delayed task")
	assert.Equal(t, 500*time.Millisecond, due)

	v.Advance(300 * time.Millisecond)
	assert.Equal(t, []string{"early", "late"}, got)
	_, ok = v.TimeoutPending()
	assert.False(t, ok)
}

func TestScheduler_DelayedTaskPromotedDuringPass(t *testing.T) {
	s, v := newTestScheduler(t, WithYieldBudget(time.Second))
	var got []string
	s.ScheduleTask(Normal, func(bool) (Result, error) {
		got = append(got, "long")
		v.Elapse(150 * time.Millisecond)
		return Done(), nil
	})
	s.ScheduleTask(UserBlocking, record(&got, "delayed"), WithDelay(100*time.Millisecond))
	s.ScheduleTask(Low, record(&got, "low"))

	require.True(t, v.RunNext())
	assert.Equal(t, []string{"long", "delayed", "low"}, got)
}

func TestScheduler_ReentrantScheduling(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string
	s.ScheduleTask(Normal, func(bool) (Result, error) {
		got = append(got, "outer:start")
		s.ScheduleTask(Immediate, record(&got, "inner"))
		got = append(got, "outer:end")
		return Done(), nil
	})

	v.RunUntilIdle()
	assert.Equal(t, []string{"outer:start", "outer:end", "inner"}, got)

	st := s.Stats()
	assert.Equal(t, uint64(2), st.Finished)
	assert.Zero(t, st.Discarded, "a finished task left behind the new head is not a discard")
	assert.Zero(t, st.Ready)
}

func TestScheduler_CurrentPriorityInsideTask(t *testing.T) {
	s, v := newTestScheduler(t)
	var seen []Priority
	for _, p := range []Priority{Low, UserBlocking, Idle} {
		s.ScheduleTask(p, func(bool) (Result, error) {
			seen = append(seen, s.CurrentPriority())
			return Done(), nil
		})
	}

	v.RunUntilIdle()
	assert.Equal(t, []Priority{UserBlocking, Low, Idle}, seen)
	assert.Equal(t, Normal, s.CurrentPriority())
	assert.Nil(t, s.CurrentTask())
}

var errBoom = errors.New("boom")

func TestScheduler_TaskErrorDoesNotWedge(t *testing.T) {
	var reported []error
	s, v := newTestScheduler(t, WithErrorHandler(func(err error) {
		reported = append(reported, err)
	}))
	var got []string

	calls := 0
	failing := s.ScheduleTask(UserBlocking, func(bool) (Result, error) {
		calls++
		return Continue(func(bool) (Result, error) {
			calls++
			return Done(), nil
		}), errBoom
	})
	s.ScheduleTask(Normal, record(&got, "after"))

	v.RunUntilIdle()

	assert.Equal(t, 1, calls, "continuation of a failed task is lost")
	assert.Equal(t, []string{"after"}, got)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], errBoom)
	var taskErr *TaskError
	require.ErrorAs(t, reported[0], &taskErr)
	assert.Equal(t, failing.ID, taskErr.ID)
	assert.Equal(t, uint64(1), s.Stats().Failed)

	assert.False(t, s.isPerformingWork)
	assert.Nil(t, s.currentTask)
	assert.Equal(t, Normal, s.CurrentPriority())
}

func TestScheduler_PanicDoesNotWedge(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string
	s.ScheduleTask(UserBlocking, func(bool) (Result, error) {
		panic(errBoom)
	})
	s.ScheduleTask(Normal, record(&got, "after"))

	require.True(t, v.RunNext())
	require.Len(t, v.Errors(), 1)
	assert.ErrorIs(t, v.Errors()[0], errBoom)
	var pe host.PanicError
	assert.ErrorAs(t, v.Errors()[0], &pe)

	assert.False(t, s.isPerformingWork)
	assert.Nil(t, s.currentTask)
	assert.Equal(t, Normal, s.CurrentPriority())

	v.RunUntilIdle()
	assert.Equal(t, []string{"after"}, got)
	assert.Equal(t, uint64(1), s.Stats().Discarded)
}

func TestScheduler_RunWithPriority(t *testing.T) {
	s, _ := newTestScheduler(t)

	var inner, nested Priority
	s.RunWithPriority(Idle, func() {
		inner = s.CurrentPriority()
		s.RunWithPriority(Immediate, func() {
			nested = s.CurrentPriority()
		})
		assert.Equal(t, Idle, s.CurrentPriority())
	})
	assert.Equal(t, Idle, inner)
	assert.Equal(t, Immediate, nested)
	assert.Equal(t, Normal, s.CurrentPriority())

	got := RunWithPriorityValue(s, Low, func() string {
		return s.CurrentPriority().String()
	})
	assert.Equal(t, "low", got)

	s.RunWithPriority(Priority(99), func() {
		assert.Equal(t, Normal, s.CurrentPriority())
	})
}

func TestScheduler_RunWithPriorityRestoresOnPanic(t *testing.T) {
	s, _ := newTestScheduler(t)

	assert.PanicsWithValue(t, "escape", func() {
		s.RunWithPriority(UserBlocking, func() {
			panic("escape")
		})
	})
	assert.Equal(t, Normal, s.CurrentPriority())
}

func TestScheduler_WrapCallback(t *testing.T) {
	s, v := newTestScheduler(t)

	var seen []Priority
	var wrapped func()
	s.RunWithPriority(UserBlocking, func() {
		wrapped = s.WrapCallback(func() {
			seen = append(seen, s.CurrentPriority())
		})
	})

	wrapped()
	s.RunWithPriority(Idle, func() {
		wrapped()
		assert.Equal(t, Idle, s.CurrentPriority())
	})
	s.ScheduleTask(Low, func(bool) (Result, error) {
		wrapped()
		return Done(), nil
	})
	v.RunUntilIdle()

	assert.Equal(t, []Priority{UserBlocking, UserBlocking, UserBlocking}, seen)
	assert.Equal(t, Normal, s.CurrentPriority())

	var double func(int) int
	s.RunWithPriority(Low, func() {
		double = Wrap(s, func(n int) int {
			assert.Equal(t, Low, s.CurrentPriority())
			return n * 2
		})
	})
	assert.Equal(t, 8, double(4))
}

func TestScheduler_RunNext(t *testing.T) {
	tests := map[Priority]Priority{
		Immediate:    Normal,
		UserBlocking: Normal,
		Normal:       Normal,
		Low:          Low,
		Idle:         Idle,
	}
	for current, want := range tests {
		t.Run(current.String(), func(t *testing.T) {
			s, _ := newTestScheduler(t)
			var got Priority
			s.RunWithPriority(current, func() {
				s.RunNext(func() {
					got = s.CurrentPriority()
				})
			})
			assert.Equal(t, want, got)
		})
	}
}

func TestScheduler_ShouldYield(t *testing.T) {
	t.Run("without input pending support", func(t *testing.T) {
		s, v := newTestScheduler(t, WithYieldBudget(5*time.Millisecond))
		var got []bool
		s.ScheduleTask(Normal, func(bool) (Result, error) {
			v.Elapse(4 * time.Millisecond)
			got = append(got, s.ShouldYield())
			v.Elapse(time.Millisecond)
			got = append(got, s.ShouldYield())
			return Done(), nil
		})
		v.RunUntilIdle()
		assert.Equal(t, []bool{false, true}, got)
	})

	t.Run("with input pending support", func(t *testing.T) {
		v := host.NewVirtual().WithInput()
		s := New(v, WithYieldBudget(5*time.Millisecond), WithMaxYieldInterval(300*time.Millisecond))
		var got []bool
		s.ScheduleTask(Normal, func(bool) (Result, error) {
			v.SetInputPending(true)
			got = append(got, s.ShouldYield()) // inside the small budget
			v.SetInputPending(false)

			v.Elapse(6 * time.Millisecond)
			got = append(got, s.ShouldYield())
			v.SetInputPending(true)
			got = append(got, s.ShouldYield())
			v.SetInputPending(false)

			v.Elapse(300 * time.Millisecond)
			got = append(got, s.ShouldYield())
			return Done(), nil
		})
		v.RunUntilIdle()
		assert.Equal(t, []bool{false, false, true, true}, got)
	})

	t.Run("paint request", func(t *testing.T) {
		v := host.NewVirtual().WithInput()
		s := New(v, WithYieldBudget(5*time.Millisecond))
		var got []bool
		s.ScheduleTask(Normal, func(bool) (Result, error) {
			v.Elapse(6 * time.Millisecond)
			got = append(got, s.ShouldYield())
			s.RequestPaint()
			got = append(got, s.ShouldYield())
			return Continue(func(bool) (Result, error) {
				// new slice: the paint request is cleared
				v.Elapse(6 * time.Millisecond)
				got = append(got, s.ShouldYield())
				return Done(), nil
			}), nil
		})
		v.RunUntilIdle()
		assert.Equal(t, []bool{false, true, false}, got)
	})
}

func TestScheduler_ForceFrameRate(t *testing.T) {
	s, _ := newTestScheduler(t, WithYieldBudget(5*time.Millisecond))

	require.NoError(t, s.ForceFrameRate(60))
	assert.Equal(t, 16*time.Millisecond, s.YieldBudget())

	require.NoError(t, s.ForceFrameRate(125))
	assert.Equal(t, 8*time.Millisecond, s.YieldBudget())

	assert.ErrorIs(t, s.ForceFrameRate(126), ErrInvalidFrameRate)
	assert.ErrorIs(t, s.ForceFrameRate(-1), ErrInvalidFrameRate)
	assert.Equal(t, 8*time.Millisecond, s.YieldBudget())

	require.NoError(t, s.ForceFrameRate(0))
	assert.Equal(t, 5*time.Millisecond, s.YieldBudget())
}

func TestScheduler_FrameRateOption(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameRate = 50
	s, _ := newTestScheduler(t, WithConfig(cfg))
	assert.Equal(t, 20*time.Millisecond, s.YieldBudget())

	s.SetYieldBudget(0)
	assert.Equal(t, 20*time.Millisecond, s.YieldBudget())
	s.SetYieldBudget(7 * time.Millisecond)
	assert.Equal(t, 7*time.Millisecond, s.YieldBudget())
}

func TestScheduler_PauseResume(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string

	s.Pause()
	s.ScheduleTask(Normal, record(&got, "A"))
	v.RunUntilIdle()
	assert.Empty(t, got)
	assert.Equal(t, 1, s.Stats().Ready)

	s.Resume()
	v.RunUntilIdle()
	assert.Equal(t, []string{"A"}, got)

	s.ScheduleTask(Normal, func(bool) (Result, error) {
		got = append(got, "B")
		s.Pause()
		return Done(), nil
	})
	s.ScheduleTask(Normal, record(&got, "C"))
	v.RunUntilIdle()
	assert.Equal(t, []string{"A", "B"}, got)

	s.Resume()
	v.RunUntilIdle()
	assert.Equal(t, []string{"A", "B", "C"}, got)
}

func TestScheduler_PauseKeepsDelayedTasks(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string

	s.ScheduleTask(Normal, record(&got, "delayed"), WithDelay(100*time.Millisecond))
	s.ScheduleTask(Normal, func(bool) (Result, error) {
		got = append(got, "pausing")
		s.Pause()
		return Done(), nil
	})

	v.RunUntilIdle()
	assert.Equal(t, []string{"pausing"}, got)
	st := s.Stats()
	assert.Zero(t, st.Delayed, "promoted while paused")
	assert.Equal(t, 1, st.Ready)

	s.Resume()
	v.Advance(time.Second)
	v.RunUntilIdle()
	assert.Equal(t, []string{"pausing", "delayed"}, got)
}

func TestScheduler_DelayedTaskDueWhilePaused(t *testing.T) {
	s, v := newTestScheduler(t)
	var got []string

	s.Pause()
	s.ScheduleTask(Normal, record(&got, "first"), WithDelay(50*time.Millisecond))
	s.ScheduleTask(Normal, record(&got, "second"), WithDelay(80*time.Millisecond))

	v.Advance(100 * time.Millisecond)
	assert.Empty(t, got)
	st := s.Stats()
	assert.Equal(t, 2, st.Ready)
	assert.Zero(t, st.Delayed)

	s.Resume()
	v.RunUntilIdle()
	assert.Equal(t, []string{"first", "second"}, got)
}

func TestScheduler_Observer(t *testing.T) {
	var events []Event
	s, v := newTestScheduler(t, WithObserver(func(ev Event) {
		events = append(events, ev)
	}))

	a := s.ScheduleTask(Normal, func(bool) (Result, error) {
		v.Elapse(3 * time.Millisecond)
		return Done(), nil
	})
	b := s.ScheduleTask(Low, func(bool) (Result, error) { return Done(), nil }, WithDelay(time.Second))
	s.CancelTask(b)
	v.RunUntilIdle()

	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{
		EventEnqueue, EventDelay, EventCancel, EventDiscard, EventDispatch, EventFinish,
	}, kinds)
	assert.Same(t, b, events[3].Task)
	assert.Same(t, a, events[5].Task)
	assert.Equal(t, 3*time.Millisecond, events[5].Elapsed)
	assert.Equal(t, "Finish", events[5].Kind.String())
}
