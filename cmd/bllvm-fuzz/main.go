package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/BTCDecoded/bllvm-fuzz/config"
	"github.com/BTCDecoded/bllvm-fuzz/internal/builder"
	"github.com/BTCDecoded/bllvm-fuzz/internal/corpus"
	"github.com/BTCDecoded/bllvm-fuzz/internal/results"
	"github.com/BTCDecoded/bllvm-fuzz/internal/runner"
	"github.com/BTCDecoded/bllvm-fuzz/internal/sanitizer"
	"github.com/BTCDecoded/bllvm-fuzz/internal/scheduler"
	"github.com/BTCDecoded/bllvm-fuzz/pkg/logger"
	"github.com/BTCDecoded/bllvm-fuzz/pkg/telemetry"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bllvm-fuzz [flags] <corpus-dir> [target ...]",
		Short: "Build and run the consensus validation fuzz targets",
		Long: `bllvm-fuzz drives cargo +nightly fuzz over the consensus validation
fuzz targets. Each target is built, then run against its own corpus
directory under <corpus-dir>. With no target arguments the full catalog
is fuzzed. The process exits 0 only when every target completes
successfully.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runRoot,
	}

	cmd.Flags().Int("max-time", 0, "stop each target after this many seconds (0 = run until done)")
	cmd.Flags().Int("max-runs", 0, "stop each target after this many engine runs (0 = no limit)")
	cmd.Flags().IntP("jobs", "j", 1, "fuzz jobs per target, or concurrent targets with --parallel")
	cmd.Flags().String("sanitizer", "", "sanitizer instrumentation (address|undefined|memory|all)")
	cmd.Flags().Bool("parallel", false, "fuzz targets concurrently instead of one at a time")
	cmd.Flags().String("loglevel", "", "log verbosity (DEBUG|INFO|WARNING|ERROR)")

	return cmd
}

func optionsFromArgs(cmd *cobra.Command, args []string) (*config.Options, error) {
	maxTime, err := cmd.Flags().GetInt("max-time")
	if err != nil {
		return nil, fmt.Errorf("failed to get max-time flag: %w", err)
	}
	maxRuns, err := cmd.Flags().GetInt("max-runs")
	if err != nil {
		return nil, fmt.Errorf("failed to get max-runs flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return nil, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	sanitizerName, err := cmd.Flags().GetString("sanitizer")
	if err != nil {
		return nil, fmt.Errorf("failed to get sanitizer flag: %w", err)
	}
	parallel, err := cmd.Flags().GetBool("parallel")
	if err != nil {
		return nil, fmt.Errorf("failed to get parallel flag: %w", err)
	}
	logLevel, err := cmd.Flags().GetString("loglevel")
	if err != nil {
		return nil, fmt.Errorf("failed to get loglevel flag: %w", err)
	}

	if maxTime < 0 {
		return nil, fmt.Errorf("max-time must not be negative, got %d", maxTime)
	}
	if maxRuns < 0 {
		return nil, fmt.Errorf("max-runs must not be negative, got %d", maxRuns)
	}
	if jobs < 1 {
		return nil, fmt.Errorf("jobs must be at least 1, got %d", jobs)
	}

	selector, err := sanitizer.Parse(sanitizerName)
	if err != nil {
		return nil, err
	}

	logLevel = strings.ToLower(logLevel)
	switch logLevel {
	case "", "debug", "info", "warning", "error":
	default:
		return nil, fmt.Errorf("unknown loglevel %q (choose DEBUG, INFO, WARNING or ERROR)", logLevel)
	}

	return &config.Options{
		CorpusRoot: args[0],
		Targets:    args[1:],
		MaxTime:    time.Duration(maxTime) * time.Second,
		MaxRuns:    maxRuns,
		Jobs:       jobs,
		Sanitizer:  selector,
		Parallel:   parallel,
		LogLevel:   logLevel,
	}, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	opts, err := optionsFromArgs(cmd, args)
	if err != nil {
		return err
	}

	app := fx.New(
		fx.Provide(
			func() *config.Options { return opts }, // inject parsed CLI options
			config.LoadConfig,                      // inject config
			logger.NewLogger,                       // inject logger
			telemetry.NewTelemetry,                 // inject telemetry
			telemetry.NewTracerFactory,             // inject telemetry tracer factory
			corpus.NewMonitorFactory,               // inject corpus monitor factory
			results.NewSessionID,                   // inject session id
			results.NewArtifactStore,               // inject failure artifact store
			fx.Annotate(builder.New, fx.As(new(scheduler.Builder))),
			fx.Annotate(runner.New, fx.As(new(scheduler.Runner))),
			fx.Annotate(results.NewAggregator, fx.As(new(scheduler.Reporter))),
		),
		fx.Invoke(scheduler.New),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)

	// Run blocks until the scheduler shuts the app down and exits the
	// process with the session's exit code.
	app.Run()
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(2)
	}
}
