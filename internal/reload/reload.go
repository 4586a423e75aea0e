// Package reload watches the scheduler config file and hands every
// successfully parsed change to a callback.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"coopsched/internal/sched"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a YAML config file when it changes on disk.
type Watcher struct {
	path     string
	apply    func(sched.Config)
	log      zerolog.Logger
	debounce time.Duration
	last     sched.Config
	haveLast bool
}

// Option configures a [Watcher].
type Option func(*Watcher)

// WithLogger sets the watcher's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// WithDebounce sets how long the file must stay quiet before it is read.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for path. apply runs on the watcher's goroutine.
func New(path string, apply func(sched.Config), opts ...Option) *Watcher {
	w := &Watcher{
		path:     path,
		apply:    apply,
		log:      zerolog.Nop(),
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch blocks until ctx ends. Editors often replace files instead of
// writing them, so the parent directory is watched and events are matched
// by base name.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.log.Debug().Str("dir", dir).Str("file", file).Msg("config watcher started")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug().Str("op", ev.Op.String()).Msg("config change detected")
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Str("dir", dir).Msg("config watch error")
		case <-timer.C:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := sched.Load(w.path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", w.path).Msg("config reload failed")
		return
	}
	if w.haveLast && cfg == w.last {
		w.log.Debug().Msg("config unchanged")
		return
	}
	w.last, w.haveLast = cfg, true
	w.log.Info().
		Int("yield_budget_ms", cfg.YieldBudgetMS).
		Int("frame_rate", cfg.FrameRate).
		Msg("config reloaded")
	w.apply(cfg)
}

// Watch is a shorthand for New(path, apply).Watch(ctx).
func Watch(ctx context.Context, path string, apply func(sched.Config), opts ...Option) error {
	return New(path, apply, opts...).Watch(ctx)
}
