// Package trace turns scheduler events into CSV rows and log lines.
package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"coopsched/internal/sched"
)

var csvHeader = []string{"time_ms", "event", "task_id", "priority", "did_timeout", "elapsed_ms", "error"}

// CSVRecorder writes one row per scheduler event.
type CSVRecorder struct {
	w      *csv.Writer
	closer io.Closer
	err    error
}

// NewCSVRecorder writes the header to w and returns a recorder.
func NewCSVRecorder(w io.Writer) (*CSVRecorder, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVRecorder{w: cw}, nil
}

// CreateCSV opens path for CSV logging of events, truncating it.
func CreateCSV(path string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file: %w", err)
	}
	r, err := NewCSVRecorder(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Observe is a sched.Observer. Write errors are kept and reported by Close.
func (r *CSVRecorder) Observe(ev sched.Event) {
	if r.err != nil {
		return
	}
	rec := []string{
		formatMS(ev.Time),
		ev.Kind.String(),
		"",
		"",
		"",
		"",
		"",
	}
	if ev.Task != nil {
		rec[2] = strconv.FormatUint(uint64(ev.Task.ID), 10)
		rec[3] = ev.Task.Priority.String()
	}
	switch ev.Kind {
	case sched.EventDispatch:
		rec[4] = strconv.FormatBool(ev.DidTimeout)
	case sched.EventContinue, sched.EventFinish, sched.EventFail:
		rec[4] = strconv.FormatBool(ev.DidTimeout)
		rec[5] = formatMS(ev.Elapsed)
	}
	if ev.Err != nil {
		rec[6] = ev.Err.Error()
	}
	r.err = r.w.Write(rec)
}

// Flush writes buffered rows.
func (r *CSVRecorder) Flush() error {
	r.w.Flush()
	if r.err != nil {
		return r.err
	}
	return r.w.Error()
}

// Close flushes and closes the underlying file, if the recorder opened it.
func (r *CSVRecorder) Close() error {
	err := r.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func formatMS(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}
