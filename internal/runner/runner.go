package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/BTCDecoded/bllvm-fuzz/config"
	"github.com/BTCDecoded/bllvm-fuzz/internal/corpus"
	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
	"github.com/BTCDecoded/bllvm-fuzz/pkg/telemetry"
)

// grace window added on top of MaxTime before the engine is killed; the
// advisory -max_total_time flag should have stopped it well before that
const defaultGrace = 60 * time.Second

// Runner executes built fuzz targets and classifies their outcome.
type Runner struct {
	logger         *zap.Logger
	appConfig      *config.AppConfig
	monitorFactory *corpus.MonitorFactory

	grace time.Duration
}

type Params struct {
	fx.In
	Logger         *zap.Logger
	AppConfig      *config.AppConfig
	MonitorFactory *corpus.MonitorFactory
}

func New(p Params) *Runner {
	return &Runner{
		p.Logger,
		p.AppConfig,
		p.MonitorFactory,
		defaultGrace,
	}
}

// Run executes one built fuzz target against its corpus and classifies the
// result. MaxTime is handed to the engine as an advisory budget; a hard
// deadline of MaxTime plus the grace window backstops engines that ignore
// it. Hitting the hard deadline is a successful outcome: the engine found
// nothing before it was cut off.
func (r *Runner) Run(ctx context.Context, req types.RunRequest) types.RunOutcome {
	runTracer := telemetry.FromContext(ctx).Spawn("running " + req.Target)
	runTracer.Start()
	defer runTracer.End()

	r.logger.Info("Running fuzz target", zap.String("target", req.Target))

	if size, err := corpus.Count(req.CorpusDir); err == nil {
		runTracer.WithAttributes(telemetry.EmptySpanAttributes().WithCorpusSize(size))
		r.logger.Debug("Corpus entries at start", zap.String("target", req.Target), zap.Int("entries", size))
	}

	// the monitor lives on the session context, not the deadline context, so
	// entries written right before the kill are still counted
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	newInputs := r.watchCorpus(monitorCtx, req.CorpusDir)

	runCtx := ctx
	if req.MaxTime > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.MaxTime+r.grace)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, r.appConfig.CargoBin, buildArgs(req)...)
	cmd.Dir = r.appConfig.ProjectRoot
	cmd.Env = append(os.Environ(), req.Env...)
	// engine children inherit the output pipes; without a WaitDelay a kill
	// would leave Run blocked on them
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("Running fuzz command", zap.String("command", cmd.String()))

	err := cmd.Run()
	stopMonitor()
	count := <-newInputs
	if count > 0 {
		r.logger.Info("Corpus grew during run",
			zap.String("target", req.Target),
			zap.Int("new_inputs", count))
		runTracer.WithAttributes(telemetry.EmptySpanAttributes().WithCorpusAdditions(count))
	}

	output := stdout.String() + stderr.String()

	if runCtx.Err() == context.DeadlineExceeded {
		r.logger.Info("Fuzz target hit the hard deadline", zap.String("target", req.Target))
		runTracer.AddEvent("hard_deadline_hit", telemetry.EventAttributes{})
		runTracer.SetStatus(codes.Ok, "completed by timeout")
		return types.RunOutcome{Succeeded: true, Output: "Fuzzing completed (timeout)", NewInputs: count}
	}

	if err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			runTracer.SetStatus(codes.Error, "failed to run fuzzer")
			return types.RunOutcome{Succeeded: false, Output: "Error running fuzzer: " + err.Error(), NewInputs: count}
		}
	}

	exitCode := cmd.ProcessState.ExitCode()
	succeeded := Classify(exitCode, output)
	if succeeded {
		runTracer.SetStatus(codes.Ok, "run finished")
	} else {
		runTracer.AddEvent("crash_reported",
			telemetry.NewEventAttributes(map[string]string{
				"exit_code": strconv.Itoa(exitCode),
			}))
		runTracer.SetStatus(codes.Error, "run reported a crash")
	}
	return types.RunOutcome{Succeeded: succeeded, Output: output, NewInputs: count}
}

// buildArgs assembles the cargo-fuzz argv for one run request.
func buildArgs(req types.RunRequest) []string {
	args := []string{
		"+nightly", "fuzz", "run", req.Target,
		req.CorpusDir,
		"--",
		"-max_len=100000", // input size cap
		"-timeout=60",     // per-input engine budget, distinct from MaxTime
	}

	if req.MaxTime > 0 {
		args = append(args, fmt.Sprintf("-max_total_time=%d", int(req.MaxTime.Seconds())))
	}
	if req.MaxRuns > 0 {
		args = append(args, fmt.Sprintf("-runs=%d", req.MaxRuns))
	}
	if req.Jobs > 1 {
		args = append(args, fmt.Sprintf("-jobs=%d", req.Jobs))
	}
	return args
}

// watchCorpus counts corpus entries created under dir until ctx is cancelled.
// The returned channel yields the final count exactly once. A broken monitor
// only costs the count, never the run.
func (r *Runner) watchCorpus(ctx context.Context, dir string) <-chan int {
	result := make(chan int, 1)

	notifyChan := make(chan string, 64)
	monitor, err := r.monitorFactory.New(ctx, notifyChan, nil)
	if err != nil {
		r.logger.Warn("Corpus monitor unavailable", zap.String("dir", dir), zap.Error(err))
		result <- 0
		return result
	}
	monitor.AddDir(dir)

	go func() {
		count := 0
		for range notifyChan {
			count++
		}
		result <- count
	}()

	return result
}
