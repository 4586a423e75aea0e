package host

import (
	"runtime/debug"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
)

// maxTurns bounds RunUntilIdle so a task that never finishes cannot hang a
// test.
const maxTurns = 100_000

// Virtual is a deterministic host driven by virtual time. Nothing happens
// until the owner calls RunNext, Advance or RunUntilIdle.
//
// Posted messages and the timeout share one queue ordered by due time, then
// by posting order.
type Virtual struct {
	now     time.Duration
	seq     uint64
	pending *redblacktree.Tree // dueKey -> func()
	timer   *dueKey
	errs    []error
}

// VirtualWithInput is a Virtual that also reports pending input.
type VirtualWithInput struct {
	*Virtual
	inputPending bool
}

// dueKey is used as a key in the red-black tree.
type dueKey struct {
	at  time.Duration
	seq uint64
}

// cmpDue implements the Comparable interface for red-black tree ordering.
func cmpDue(a, b any) int {
	ka, kb := a.(dueKey), b.(dueKey)
	switch {
	case ka.at < kb.at:
		return -1
	case ka.at > kb.at:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}

// NewVirtual creates a virtual host at time zero.
func NewVirtual() *Virtual {
	return &Virtual{pending: redblacktree.NewWith(cmpDue)}
}

// WithInput wraps v so the scheduler sees an input-pending source.
func (v *Virtual) WithInput() *VirtualWithInput {
	return &VirtualWithInput{Virtual: v}
}

// SetInputPending sets what InputPending reports.
func (v *VirtualWithInput) SetInputPending(pending bool) {
	v.inputPending = pending
}

// InputPending reports the value last set by SetInputPending.
func (v *VirtualWithInput) InputPending() bool { return v.inputPending }

// Now returns the virtual time.
func (v *Virtual) Now() time.Duration { return v.now }

// Elapse moves the clock forward without running anything. Use it inside
// a callback to simulate work that takes d.
func (v *Virtual) Elapse(d time.Duration) {
	if d > 0 {
		v.now += d
	}
}

func (v *Virtual) PostMessage(fn func()) {
	v.put(v.now, fn)
}

func (v *Virtual) SetTimeout(fn func(), delay time.Duration) {
	v.ClearTimeout()
	if delay < 0 {
		delay = 0
	}
	k := v.put(v.now+delay, fn)
	v.timer = &k
}

func (v *Virtual) ClearTimeout() {
	if v.timer != nil {
		v.pending.Remove(*v.timer)
		v.timer = nil
	}
}

// TimeoutPending reports whether a timeout is outstanding, and when it is
// due.
func (v *Virtual) TimeoutPending() (time.Duration, bool) {
	if v.timer == nil {
		return 0, false
	}
	return v.timer.at, true
}

// Pending returns the number of queued messages and timeouts.
func (v *Virtual) Pending() int { return v.pending.Size() }

// Errors returns the panics recovered from callbacks so far.
func (v *Virtual) Errors() []error { return v.errs }

// RunNext runs the earliest queued callback, jumping the clock forward to
// its due time if needed. It reports false if nothing was queued.
func (v *Virtual) RunNext() bool {
	node := v.pending.Left()
	if node == nil {
		return false
	}
	k := node.Key.(dueKey)
	fn := node.Value.(func())
	v.pending.Remove(k)
	if v.timer != nil && *v.timer == k {
		v.timer = nil
	}
	if k.at > v.now {
		v.now = k.at
	}
	v.safeExecute(fn)
	return true
}

// Advance runs every callback due within d, in order, and then sets the
// clock to now+d (or later, if callbacks elapsed past it).
func (v *Virtual) Advance(d time.Duration) int {
	target := v.now + d
	turns := 0
	for turns < maxTurns {
		node := v.pending.Left()
		if node == nil || node.Key.(dueKey).at > target {
			break
		}
		v.RunNext()
		turns++
	}
	if v.now < target {
		v.now = target
	}
	return turns
}

// RunUntilIdle runs callbacks until nothing is queued and returns how many
// ran. It stops after maxTurns.
func (v *Virtual) RunUntilIdle() int {
	turns := 0
	for turns < maxTurns && v.RunNext() {
		turns++
	}
	return turns
}

func (v *Virtual) put(at time.Duration, fn func()) dueKey {
	v.seq++
	k := dueKey{at: at, seq: v.seq}
	v.pending.Put(k, fn)
	return k
}

func (v *Virtual) safeExecute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			v.errs = append(v.errs, PanicError{Value: r, Stack: debug.Stack()})
		}
	}()
	fn()
}
