package job

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"coopsched/internal/sched"
)

// Submitter runs a function on the scheduler's goroutine.
type Submitter interface {
	Submit(fn func()) error
}

// MakeTask builds the i-th generated task.
type MakeTask func(i int) (sched.Priority, sched.Callback)

// Generator feeds tasks into a scheduler from another goroutine at a
// bounded rate.
type Generator struct {
	sub     Submitter
	s       *sched.Scheduler
	limiter *rate.Limiter
	newTask MakeTask
	count   int
}

// NewGenerator creates a generator producing count tasks (0 = until the
// context ends) at perSecond tasks per second with the given burst.
func NewGenerator(sub Submitter, s *sched.Scheduler, perSecond float64, burst, count int, newTask MakeTask) *Generator {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Generator{
		sub:     sub,
		s:       s,
		limiter: rate.NewLimiter(limit, burst),
		newTask: newTask,
		count:   count,
	}
}

// Run produces tasks until count is reached or ctx ends. It returns the
// number of tasks handed to the scheduler.
func (g *Generator) Run(ctx context.Context) (int, error) {
	n := 0
	for g.count <= 0 || n < g.count {
		if err := g.limiter.Wait(ctx); err != nil {
			return n, err
		}
		priority, cb := g.newTask(n)
		if err := g.sub.Submit(func() {
			g.s.ScheduleTask(priority, cb)
		}); err != nil {
			return n, fmt.Errorf("submit task %d: %w", n, err)
		}
		n++
	}
	return n, nil
}
