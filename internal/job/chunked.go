package job

import (
	"fmt"
	"time"

	"coopsched/internal/sched"
)

// Yielder reports whether a running task should hand control back.
type Yielder interface {
	ShouldYield() bool
}

// Chunked returns a callback that runs unit(0) .. unit(n-1), returning a
// continuation whenever y asks it to yield. A timed-out task runs the
// remaining units without checking.
func Chunked(y Yielder, n int, unit func(i int) error) sched.Callback {
	next := 0
	var step sched.Callback
	step = func(didTimeout bool) (sched.Result, error) {
		for next < n {
			if err := unit(next); err != nil {
				return sched.Done(), fmt.Errorf("unit %d of %d: %w", next, n, err)
			}
			next++
			if next < n && !didTimeout && y.ShouldYield() {
				return sched.Continue(step), nil
			}
		}
		return sched.Done(), nil
	}
	return step
}

// Spin burns CPU for d, standing in for real work in demos.
func Spin(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
