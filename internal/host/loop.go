package host

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Loop is a single-goroutine event loop. Run owns the goroutine; everything
// posted to the loop runs there, one macrotask at a time.
//
// PostMessage, SetTimeout and ClearTimeout may only be called from inside
// the loop. Other goroutines use Submit.
type Loop struct {
	clock   *Clock
	log     zerolog.Logger
	onError func(error)

	messages []func()

	submit chan func()
	fired  chan uint64
	stop   chan struct{}
	done   chan struct{}

	timer    *time.Timer
	timerFn  func()
	timerGen uint64

	running  atomic.Bool
	stopOnce sync.Once
}

// LoopOption configures a [Loop].
type LoopOption func(*Loop)

// WithLoopLogger sets the logger used for lifecycle and panic reports.
func WithLoopLogger(l zerolog.Logger) LoopOption {
	return func(lp *Loop) {
		lp.log = l
	}
}

// WithPanicHandler is called with a PanicError whenever a macrotask panics.
func WithPanicHandler(fn func(error)) LoopOption {
	return func(lp *Loop) {
		lp.onError = fn
	}
}

// NewLoop creates a loop. Call Run to start it.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		clock:  NewClock(),
		log:    zerolog.Nop(),
		submit: make(chan func(), 256),
		fired:  make(chan uint64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the time elapsed since the loop was created.
func (l *Loop) Now() time.Duration { return l.clock.Now() }

// PostMessage queues fn behind the messages already posted. Submitted
// functions and due timers get a turn between posted messages.
func (l *Loop) PostMessage(fn func()) {
	l.messages = append(l.messages, fn)
}

// SetTimeout runs fn on the loop after delay, replacing the outstanding
// timeout.
func (l *Loop) SetTimeout(fn func(), delay time.Duration) {
	l.ClearTimeout()
	if delay < 0 {
		delay = 0
	}
	gen := l.timerGen
	l.timerFn = fn
	l.timer = time.AfterFunc(delay, func() {
		select {
		case l.fired <- gen:
		case <-l.done:
		}
	})
}

// ClearTimeout cancels the outstanding timeout. A timer that already fired
// but has not been delivered yet is ignored when it arrives.
func (l *Loop) ClearTimeout() {
	l.timerGen++
	l.timerFn = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

// Submit runs fn on the loop goroutine. It is safe to call from any
// goroutine and blocks only while the submit buffer is full.
func (l *Loop) Submit(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}
	select {
	case l.submit <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Shutdown asks Run to return after the current macrotask.
func (l *Loop) Shutdown() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run processes macrotasks until ctx is cancelled or Shutdown is called.
// Queued messages that have not run yet are dropped.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer func() {
		l.ClearTimeout()
		close(l.done)
	}()

	l.log.Info().Msg("host loop started")
	for {
		if len(l.messages) == 0 {
			// nothing posted: sleep until something arrives
			select {
			case <-ctx.Done():
				l.log.Info().Msg("host loop stopping (context cancelled)")
				return ctx.Err()
			case <-l.stop:
				l.log.Info().Msg("host loop stopping (shutdown)")
				return nil
			case fn := <-l.submit:
				l.safeExecute(fn)
			case gen := <-l.fired:
				l.fire(gen)
			}
			continue
		}

		select {
		case <-ctx.Done():
			l.log.Info().Int("dropped", len(l.messages)).Msg("host loop stopping (context cancelled)")
			return ctx.Err()
		case <-l.stop:
			l.log.Info().Int("dropped", len(l.messages)).Msg("host loop stopping (shutdown)")
			return nil
		case fn := <-l.submit:
			l.safeExecute(fn)
		case gen := <-l.fired:
			l.fire(gen)
		default:
		}

		fn := l.messages[0]
		l.messages[0] = nil
		l.messages = l.messages[1:]
		l.safeExecute(fn)
	}
}

func (l *Loop) fire(gen uint64) {
	if gen != l.timerGen || l.timerFn == nil {
		return // stale
	}
	fn := l.timerFn
	l.timerFn = nil
	l.timer = nil
	l.safeExecute(fn)
}

// safeExecute runs fn with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := PanicError{Value: r, Stack: debug.Stack()}
			l.log.Error().Err(err).Bytes("stack", err.Stack).Msg("host callback panicked")
			if l.onError != nil {
				l.onError(err)
			}
		}
	}()
	fn()
}
