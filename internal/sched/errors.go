package sched

import (
	"errors"
	"fmt"
)

var ErrInvalidFrameRate = errors.New("frame rate must be between 0 and 125 fps")

// TaskError wraps an error returned by a task callback.
type TaskError struct {
	ID       TaskID
	Priority Priority
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d (%s): %v", e.ID, e.Priority, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
