package host

import (
	"errors"
	"fmt"
)

var (
	ErrLoopClosed  = errors.New("host loop closed")
	ErrLoopRunning = errors.New("host loop already running")
)

// PanicError wraps a value recovered from a panicking macrotask.
type PanicError struct {
	Value any
	Stack []byte
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic in host callback: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, so errors.Is and
// errors.As see through the panic.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
