package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/psantana5/trohook/internal/config"
	"github.com/psantana5/trohook/internal/hook"
	"github.com/psantana5/trohook/internal/logging"
	"github.com/psantana5/trohook/internal/report"
	"github.com/psantana5/trohook/internal/slurm"
	"github.com/psantana5/trohook/internal/tracing"
	"github.com/psantana5/trohook/internal/wrapper"
)

// Version is stamped at build time.
var Version = "dev"

var (
	runGenerateTRO bool
	runPluginArgs  []string
	runContext     string
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- COMMAND [ARGS...]",
	Short: "Run a job body with the provenance hook around it",
	Long: `Drive the hook callbacks around a job body on this node.

init and init_post_opt run first, then user_init prepares the job environment
(XALT tracing, signing home) and opens the TRO. The job body runs with that
environment, and exit closes, correlates and signs the TRO.

Provenance failures are logged and never change the job's exit status.

Examples:
  # Inside a batch script
  trohook run --generate-tro -- ./simulate --steps 1000

  # Override plugin arguments from the config file
  trohook run --generate-tro --plugin-arg xalt_dir=/opt/xalt -- python train.py`,
	Args: cobra.MinimumNArgs(1),
	RunE: runJob,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runGenerateTRO, hook.OptGenerateTRO.Name, false, hook.OptGenerateTRO.Usage)
	runCmd.Flags().StringArrayVar(&runPluginArgs, "plugin-arg", nil, "plugin argument as key=value (repeatable, overrides the config file)")
	runCmd.Flags().StringVar(&runContext, "context", hook.ContextExecution.String(), "execution context: submission, allocation, execution or other")
}

func runJob(cmd *cobra.Command, args []string) error {
	hctx, err := hook.ParseContext(runContext)
	if err != nil {
		return err
	}

	fileArgs, err := config.Load(GetConfigFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "trohook: config file not loaded: %v\n", err)
	}
	pluginArgs := config.Merge(fileArgs, runPluginArgs)

	// Logging settings are needed before the dispatcher validates the rest.
	ambient, ambientErr := config.Parse(pluginArgs)
	if ambient == nil {
		ambient = &config.PluginConfig{}
	}

	node := nodeName()
	base := newLogger(cmd.ErrOrStderr(), ambient.LogLevel, ambient.LogJSON)
	defer base.Close()
	logger := base.WithFields(logging.Fields{
		"invocation": uuid.NewString(),
		"node":       node,
	})

	if ambientErr != nil {
		logger.Debug("Logging settings fall back to defaults", logging.Fields{"error": ambientErr})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "trohook",
		ServiceVersion: Version,
		OTLPEndpoint:   ambient.OTLPEndpoint,
	})
	if err != nil {
		logger.Warn("Tracing disabled", logging.Fields{"error": err})
	} else {
		defer tp.Shutdown(context.Background())
	}

	metrics := report.NewMetrics()
	handle := slurm.NewEnvHandle(hctx, pluginArgs, os.Environ(), map[string]bool{
		hook.OptGenerateTRO.Name: runGenerateTRO,
	})
	d := hook.New(hook.Deps{
		Logger:  logger,
		Metrics: metrics,
		Node:    node,
	})

	if err := startHook(ctx, d, handle); err != nil {
		logger.Error("Hook callbacks failed before the job body, running it without provenance",
			logging.Fields{"error": err})
	}

	// The job body outlives signal delivery to the wrapper; Run forwards them.
	outcome, runErr := wrapper.Run(context.Background(), wrapper.Spec{
		Command: args[0],
		Args:    args[1:],
		Env:     handle.Environ(),
	})

	if err := d.Exit(context.Background(), handle); err != nil {
		logger.Error("Exit callback failed", logging.Fields{"error": err})
	}

	exitCode := 1
	if outcome != nil {
		exitCode = outcome.ExitCode
	}
	if result := d.Result(); result != nil {
		result.JobExitCode = exitCode
		result.LogSummary(logger)
		if ambient.MetricsDir != "" && result.JobID != 0 {
			path, err := metrics.WriteTextfile(ambient.MetricsDir, result.JobID)
			if err != nil {
				logger.Warn("Could not write metrics textfile", logging.Fields{"error": err})
			} else {
				logger.Debug("Metrics textfile written", logging.Fields{"path": path})
			}
		}
	}

	if runErr != nil {
		return fmt.Errorf("job body failed to start: %w", runErr)
	}
	if exitCode != 0 {
		return &ExitError{Code: exitCode}
	}
	return nil
}

// startHook runs the callbacks that precede the job body.
func startHook(ctx context.Context, d *hook.Dispatcher, h hook.Handle) error {
	if err := d.Init(ctx, h); err != nil {
		return err
	}
	if err := d.InitPostOpt(ctx, h); err != nil {
		return err
	}
	if h.Context() != hook.ContextExecution {
		return nil
	}
	return d.UserInit(ctx, h)
}

func nodeName() string {
	info, err := host.Info()
	if err == nil && info.Hostname != "" {
		return info.Hostname
	}
	name, _ := os.Hostname()
	return name
}
