package sched

import (
	"time"

	"github.com/rs/zerolog"
)

// Options holds configuration options for the [Scheduler].
type Options struct {
	YieldBudget      time.Duration
	MaxYieldInterval time.Duration
	FrameRate        int
	Logger           zerolog.Logger
	Observer         Observer
	ErrorHandler     func(error)
}

// Option is a function that configures [Options].
type Option func(*Options)

// WithConfig applies the scheduling fields of a loaded [Config].
func WithConfig(cfg Config) Option {
	return func(o *Options) {
		o.YieldBudget = cfg.YieldBudget()
		o.MaxYieldInterval = cfg.MaxYieldInterval()
		o.FrameRate = cfg.FrameRate
	}
}

// WithYieldBudget sets the time slice after which ShouldYield reports true.
func WithYieldBudget(d time.Duration) Option {
	return func(o *Options) {
		o.YieldBudget = d
	}
}

// WithMaxYieldInterval sets the upper bound of a slice on hosts that report
// pending input.
func WithMaxYieldInterval(d time.Duration) Option {
	return func(o *Options) {
		o.MaxYieldInterval = d
	}
}

// WithLogger sets the logger for the [Scheduler].
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithObserver registers a hook that receives every scheduler [Event].
func WithObserver(fn Observer) Option {
	return func(o *Options) {
		o.Observer = fn
	}
}

// WithErrorHandler sets a handler for task errors. Errors are logged
// whether or not a handler is set.
func WithErrorHandler(fn func(error)) Option {
	return func(o *Options) {
		o.ErrorHandler = fn
	}
}

func defaultOptions() Options {
	cfg := DefaultConfig()
	return Options{
		YieldBudget:      cfg.YieldBudget(),
		MaxYieldInterval: cfg.MaxYieldInterval(),
		Logger:           zerolog.Nop(),
	}
}
