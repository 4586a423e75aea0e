package trace

import (
	"github.com/rs/zerolog"

	"coopsched/internal/sched"
)

// LogObserver returns an observer that logs every event. Failures are
// logged at warn, yields and dispatches at trace, everything else at debug.
func LogObserver(log zerolog.Logger) sched.Observer {
	return func(ev sched.Event) {
		var e *zerolog.Event
		switch ev.Kind {
		case sched.EventFail:
			e = log.Warn().Err(ev.Err)
		case sched.EventYield, sched.EventDispatch:
			e = log.Trace()
		default:
			e = log.Debug()
		}
		if !e.Enabled() {
			return
		}
		e = e.Dur("at", ev.Time)
		if ev.Task != nil {
			e = e.Uint64("task", uint64(ev.Task.ID)).Stringer("priority", ev.Task.Priority)
		}
		switch ev.Kind {
		case sched.EventContinue, sched.EventFinish, sched.EventFail:
			e = e.Bool("did_timeout", ev.DidTimeout).Dur("elapsed", ev.Elapsed)
		}
		e.Msg(ev.Kind.String())
	}
}

// Multi fans one event out to several observers. Nil observers are skipped.
func Multi(observers ...sched.Observer) sched.Observer {
	var list []sched.Observer
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return func(ev sched.Event) {
		for _, o := range list {
			o(ev)
		}
	}
}
