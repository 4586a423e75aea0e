package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"coopsched/internal/logging"
	"coopsched/internal/sched"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    sched.Config
	logger zerolog.Logger
)

// NewRootCmd creates the root cobra command for the coopsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coopsched",
		Short: "Cooperative priority scheduler demo",
		Long: `coopsched drives a cooperative, time-sliced priority scheduler on a
single-goroutine event loop and reports how the work was interleaved.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := sched.Load(flagConfig)
			if err != nil {
				return err
			}
			cfg = loaded
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			logger.Debug().Str("config", flagConfig).Msg("configuration loaded")
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "config.yml", "Path to the YAML config file (missing file = defaults)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(
		newRunCmd(),
		newConfigCmd(),
		newPrioritiesCmd(),
	)

	return root
}

func newPrioritiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priorities",
		Short: "List priority levels and their timeouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for p := sched.Immediate; p <= sched.Idle; p++ {
				timeout := p.Timeout().String()
				if p == sched.Idle {
					timeout = "never"
				}
				if _, err := fmt.Fprintf(out, "%-14s %s\n", p, timeout); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
