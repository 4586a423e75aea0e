package sched

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task. Lower values are more urgent.
type Priority int

const (
	// NoPriority is the zero value. It is treated as Normal.
	NoPriority Priority = iota
	Immediate
	UserBlocking
	Normal
	Low
	Idle
)

// maxSigned31BitInt is the Idle timeout in milliseconds, large enough that
// an Idle task never expires in practice.
const maxSigned31BitInt = 1<<30 - 1

// Timeouts per priority. A task's expiration time is its start time plus
// the timeout of its priority.
const (
	ImmediateTimeout    = -1 * time.Millisecond
	UserBlockingTimeout = 250 * time.Millisecond
	NormalTimeout       = 5000 * time.Millisecond
	LowTimeout          = 10000 * time.Millisecond
	IdleTimeout         = maxSigned31BitInt * time.Millisecond
)

var priorityNames = map[Priority]string{
	Immediate:    "immediate",
	UserBlocking: "user-blocking",
	Normal:       "normal",
	Low:          "low",
	Idle:         "idle",
}

// Normalize maps anything outside the known levels to Normal.
func (p Priority) Normalize() Priority {
	if _, ok := priorityNames[p]; ok {
		return p
	}
	return Normal
}

// Timeout returns the timeout of the (normalized) priority.
func (p Priority) Timeout() time.Duration {
	switch p.Normalize() {
	case Immediate:
		return ImmediateTimeout
	case UserBlocking:
		return UserBlockingTimeout
	case Low:
		return LowTimeout
	case Idle:
		return IdleTimeout
	default:
		return NormalTimeout
	}
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses a priority name such as "user-blocking" or "idle".
// Names are case-insensitive and "_" is accepted in place of "-".
func ParsePriority(s string) (Priority, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if name == "userblocking" {
		name = "user-blocking"
	}
	for p, n := range priorityNames {
		if n == name {
			return p, nil
		}
	}
	return NoPriority, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.Normalize().String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
