package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coopsched/internal/host"
	"coopsched/internal/job"
	"coopsched/internal/logging"
	"coopsched/internal/reload"
	"coopsched/internal/sched"
	"coopsched/internal/trace"
)

// runOptions are the knobs of the synthetic workload.
type runOptions struct {
	tasks     int
	rate      float64
	burst     int
	units     int
	unitCost  time.Duration
	failEvery int
	duration  time.Duration
	csv       string
	cron      string
	watch     bool
	seed      int64
}

var errUnitFailed = errors.New("synthetic unit failure")

// workloadMix is sampled uniformly, so Normal shows up twice as often.
var workloadMix = []sched.Priority{
	sched.Immediate,
	sched.UserBlocking,
	sched.Normal,
	sched.Normal,
	sched.Low,
	sched.Idle,
}

func newRunCmd() *cobra.Command {
	var o runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a synthetic workload through the scheduler",
		Long: `run generates tasks of random priority at a bounded rate. Each task is a
chain of CPU-bound units that hands control back whenever its time slice is
used up. Events are logged at debug/trace level and can be written to CSV.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if o.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, o.duration)
				defer cancel()
			}
			return runWorkload(ctx, o, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.IntVar(&o.tasks, "tasks", 100, "Number of tasks to generate")
	f.Float64Var(&o.rate, "rate", 500, "Tasks generated per second (0 = unlimited)")
	f.IntVar(&o.burst, "burst", 10, "Generator burst size")
	f.IntVar(&o.units, "units", 20, "Work units per task")
	f.DurationVar(&o.unitCost, "unit-cost", 200*time.Microsecond, "CPU time burned per unit")
	f.IntVar(&o.failEvery, "fail-every", 0, "Make every n-th task fail halfway (0 = never)")
	f.DurationVar(&o.duration, "duration", 0, "Stop after this long (0 = when all tasks settle)")
	f.StringVar(&o.csv, "csv", "", "Write scheduler events to this CSV file (overrides events_csv)")
	f.StringVar(&o.cron, "cron", "", "Also run a recurring low-priority job on this cron schedule, e.g. \"@every 1s\"")
	f.BoolVar(&o.watch, "watch", false, "Reload yield_budget_ms and frame_rate when the config file changes")
	f.Int64Var(&o.seed, "seed", 1, "Seed for the priority mix")

	return cmd
}

func runWorkload(ctx context.Context, o runOptions, out io.Writer) error {
	loop := host.NewLoop(host.WithLoopLogger(logging.Component(logger, "loop")))

	observers := []sched.Observer{trace.LogObserver(logging.Component(logger, "events"))}
	csvPath := o.csv
	if csvPath == "" {
		csvPath = cfg.EventsCSV
	}
	var rec *trace.CSVRecorder
	if csvPath != "" {
		var err error
		if rec, err = trace.CreateCSV(csvPath); err != nil {
			return err
		}
		observers = append(observers, rec.Observe)
	}

	s := sched.New(loop,
		sched.WithConfig(cfg),
		sched.WithLogger(logging.Component(logger, "sched")),
		sched.WithObserver(trace.Multi(observers...)),
	)

	var recurring *job.Recurring
	if o.cron != "" {
		var err error
		recurring, err = job.NewRecurring(s, o.cron, sched.Low, func(at time.Time) error {
			logger.Info().Time("at", at).Msg("recurring job")
			return nil
		})
		if err != nil {
			_ = closeRecorder(rec)
			return err
		}
	}

	// the loop outlives ctx so the final stats can still be read on it
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(context.WithoutCancel(ctx)) }()
	defer loop.Shutdown()

	// settled is only touched on the loop goroutine
	settled := 0
	allSettled := make(chan struct{})
	onSettled := func() {
		settled++
		if settled == o.tasks {
			close(allSettled)
		}
	}

	if recurring != nil {
		if err := loop.Submit(recurring.Start); err != nil {
			return err
		}
	}

	if o.watch && flagConfig != "" {
		go func() {
			err := reload.Watch(ctx, flagConfig, func(c sched.Config) {
				_ = loop.Submit(func() {
					s.SetYieldBudget(c.YieldBudget())
					_ = s.ForceFrameRate(c.FrameRate)
				})
			}, reload.WithLogger(logging.Component(logger, "reload")))
			if err != nil {
				logger.Warn().Err(err).Msg("config watch stopped")
			}
		}()
	}

	rng := rand.New(rand.NewSource(o.seed))
	gen := job.NewGenerator(loop, s, o.rate, o.burst, o.tasks, func(i int) (sched.Priority, sched.Callback) {
		p := workloadMix[rng.Intn(len(workloadMix))]
		failAt := -1
		if o.failEvery > 0 && (i+1)%o.failEvery == 0 {
			failAt = o.units / 2
		}
		cb := job.Chunked(s, o.units, func(u int) error {
			if u == failAt {
				return errUnitFailed
			}
			job.Spin(o.unitCost)
			return nil
		})
		return p, settle(cb, onSettled)
	})

	start := time.Now()
	generated, genErr := gen.Run(ctx)
	if genErr != nil && ctx.Err() == nil {
		logger.Error().Err(genErr).Msg("task generator stopped")
	}
	logger.Info().Int("generated", generated).Msg("generator finished")

	if o.tasks > 0 && generated == o.tasks && recurring == nil {
		select {
		case <-allSettled:
		case <-ctx.Done():
		}
	} else {
		<-ctx.Done()
	}
	elapsed := time.Since(start)

	stats := make(chan sched.Stats, 1)
	if err := loop.Submit(func() {
		if recurring != nil {
			recurring.Stop()
		}
		stats <- s.Stats()
	}); err == nil {
		select {
		case st := <-stats:
			printStats(out, st, elapsed)
		case <-loop.Done():
		}
	}

	loop.Shutdown()
	err := <-loopErr
	if cerr := closeRecorder(rec); err == nil {
		err = cerr
	}
	return err
}

// settle calls done once cb has finished, with or without an error.
func settle(cb sched.Callback, done func()) sched.Callback {
	return func(didTimeout bool) (sched.Result, error) {
		res, err := cb(didTimeout)
		if next, ok := res.Continuation(); ok && err == nil {
			return sched.Continue(settle(next, done)), nil
		}
		done()
		return res, err
	}
}

func closeRecorder(rec *trace.CSVRecorder) error {
	if rec == nil {
		return nil
	}
	return rec.Close()
}

func printStats(w io.Writer, st sched.Stats, elapsed time.Duration) {
	fmt.Fprintf(w, "elapsed        %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "scheduled      %d\n", st.Scheduled)
	fmt.Fprintf(w, "finished       %d\n", st.Finished)
	fmt.Fprintf(w, "failed         %d\n", st.Failed)
	fmt.Fprintf(w, "cancelled      %d\n", st.Cancelled)
	fmt.Fprintf(w, "invocations    %d\n", st.Invocations)
	fmt.Fprintf(w, "continuations  %d\n", st.Continuations)
	fmt.Fprintf(w, "yields         %d\n", st.Yields)
	fmt.Fprintf(w, "ready          %d\n", st.Ready)
	fmt.Fprintf(w, "delayed        %d\n", st.Delayed)
}
