package scheduler

import (
	"context"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BTCDecoded/bllvm-fuzz/config"
	"github.com/BTCDecoded/bllvm-fuzz/internal/corpus"
	"github.com/BTCDecoded/bllvm-fuzz/internal/registry"
	"github.com/BTCDecoded/bllvm-fuzz/internal/results"
	"github.com/BTCDecoded/bllvm-fuzz/internal/sanitizer"
	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
	"github.com/BTCDecoded/bllvm-fuzz/pkg/telemetry"
)

// Builder compiles one fuzz target.
type Builder interface {
	Build(ctx context.Context, target string, env []string) types.BuildOutcome
}

// Runner executes one built fuzz target.
type Runner interface {
	Run(ctx context.Context, req types.RunRequest) types.RunOutcome
}

// Reporter collects finished target results and renders the session summary.
type Reporter interface {
	Record(res types.TargetResult)
	Summarize() types.Summary
	Report(w io.Writer) types.Summary
}

// Scheduler drives one whole session: validate the selection, pipeline every
// target through build and run, then turn the summary into the process exit
// code.
type Scheduler struct {
	logger        *zap.Logger
	opts          *config.Options
	builder       Builder
	runner        Runner
	reporter      Reporter
	tracerFactory *telemetry.TracerFactory
	sessionID     results.SessionID
	shutdowner    fx.Shutdowner

	targets []string
	done    chan struct{}
}

type Params struct {
	fx.In

	Lc            fx.Lifecycle
	Logger        *zap.Logger
	Options       *config.Options
	Builder       Builder
	Runner        Runner
	Reporter      Reporter
	TracerFactory *telemetry.TracerFactory
	SessionID     results.SessionID
	Shutdowner    fx.Shutdowner
}

// New validates the requested targets and wires the session into the app
// lifecycle. An invalid selection aborts startup before any build or run
// work happens.
func New(params Params) (*Scheduler, error) {
	targets := params.Options.Targets
	if len(targets) == 0 {
		targets = registry.Names()
	}

	if err := registry.Validate(targets); err != nil {
		params.Logger.Error("Invalid targets", zap.Error(err))
		params.Logger.Info("Available targets", zap.Strings("targets", registry.Names()))
		return nil, err
	}

	scheduler := &Scheduler{
		params.Logger,
		params.Options,
		params.Builder,
		params.Runner,
		params.Reporter,
		params.TracerFactory,
		params.SessionID,
		params.Shutdowner,
		targets,
		make(chan struct{}),
	}

	schedulerCtx, cancel := context.WithCancel(context.Background())

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go scheduler.run(schedulerCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-scheduler.done
			return nil
		},
	})
	return scheduler, nil
}

// run drives the session to completion and hands the exit code to the
// Shutdowner.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("Running fuzz targets",
		zap.Int("count", len(s.targets)),
		zap.Strings("targets", s.targets),
		zap.String("session_id", string(s.sessionID)))

	if s.opts.Sanitizer == sanitizer.Memory {
		s.logger.Warn("Memory sanitizer is accepted but not wired to the toolchain; targets run uninstrumented")
	}

	sessionMetadata := map[string]any{
		"fuzz.session.id":       string(s.sessionID),
		"fuzz.session.targets":  len(s.targets),
		"fuzz.session.parallel": s.opts.Parallel,
	}
	tracer := s.tracerFactory.NewTracer(ctx, "fuzzing session").WithAttributes(
		telemetry.NewSpanAttributes(telemetry.Fuzzing).
			WithSanitizer(string(s.opts.Sanitizer)).
			WithCorpusDir(s.opts.CorpusRoot).
			WithExtraAttributes(sessionMetadata))
	tracer.Start()
	defer tracer.End()

	sessionCtx := context.WithValue(ctx, telemetry.TracerKey{}, tracer)

	if s.opts.Parallel {
		s.runParallel(sessionCtx)
	} else {
		s.runSequential(sessionCtx)
	}

	reportTracer := tracer.Spawn("rendering summary").WithAttributes(
		telemetry.NewSpanAttributes(telemetry.Reporting))
	reportTracer.Start()
	summary := s.reporter.Report(os.Stdout)
	reportTracer.End()

	code := exitCode(summary)
	if code == 0 {
		tracer.SetStatus(codes.Ok, "all targets completed successfully")
	} else {
		tracer.SetStatus(codes.Error, "some targets failed")
	}

	if err := s.shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
		s.logger.Error("Failed to shut down", zap.Error(err))
	}
}

// runSequential pipelines targets one at a time in request order; the engine
// keeps the full --jobs parallelism to itself.
func (s *Scheduler) runSequential(ctx context.Context) {
	for _, target := range s.targets {
		if ctx.Err() != nil {
			return
		}
		s.reporter.Record(s.pipeline(ctx, target, s.opts.Jobs))
	}
}

// runParallel fans targets out to a bounded pool. A worker owns its target's
// whole pipeline, and engine-internal parallelism is pinned to one so the
// pool limit caps total load.
func (s *Scheduler) runParallel(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(s.opts.Jobs, len(s.targets)))

	for _, target := range s.targets {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			s.reporter.Record(s.pipeline(gctx, target, 1))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("Fuzzing session interrupted", zap.Error(err))
	}
}

// pipeline runs one target's build then run phases to a terminal result. A
// build failure short-circuits; the run phase is never attempted for it.
func (s *Scheduler) pipeline(ctx context.Context, target string, jobs int) types.TargetResult {
	start := time.Now()

	targetTracer := telemetry.FromContext(ctx).Spawn("fuzzing " + target).WithAttributes(
		telemetry.EmptySpanAttributes().WithTargetHarness(target))
	targetTracer.Start()
	defer targetTracer.End()

	targetCtx := context.WithValue(ctx, telemetry.TracerKey{}, targetTracer)

	env := sanitizer.EnvSlice(s.opts.Sanitizer.Overlay())

	build := s.builder.Build(targetCtx, target, env)
	if !build.Succeeded {
		targetTracer.WithAttributes(telemetry.EmptySpanAttributes().WithExtraAttribute("fuzz.failed.phase", types.PhaseBuild))
		targetTracer.SetStatus(codes.Error, "build failed")
		return types.TargetResult{
			Target:    target,
			Succeeded: false,
			Output:    build.Output,
			Phase:     types.PhaseBuild,
			Duration:  time.Since(start),
		}
	}

	run := s.runner.Run(targetCtx, types.RunRequest{
		Target:    target,
		CorpusDir: corpus.Dir(s.opts.CorpusRoot, target),
		MaxTime:   s.opts.MaxTime,
		MaxRuns:   s.opts.MaxRuns,
		Jobs:      jobs,
		Env:       env,
	})
	if run.Succeeded {
		targetTracer.SetStatus(codes.Ok, "target completed")
	} else {
		targetTracer.SetStatus(codes.Error, "target failed")
	}

	return types.TargetResult{
		Target:    target,
		Succeeded: run.Succeeded,
		Output:    run.Output,
		Phase:     types.PhaseRun,
		Duration:  time.Since(start),
	}
}

func exitCode(summary types.Summary) int {
	if summary.AllPassed() {
		return 0
	}
	return 1
}
