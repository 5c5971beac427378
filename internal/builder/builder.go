package builder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/BTCDecoded/bllvm-fuzz/config"
	"github.com/BTCDecoded/bllvm-fuzz/internal/corpus"
	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
	"github.com/BTCDecoded/bllvm-fuzz/pkg/telemetry"
)

// Builder compiles fuzz targets through the external cargo-fuzz toolchain.
type Builder struct {
	logger    *zap.Logger
	appConfig *config.AppConfig
	opts      *config.Options
}

type Params struct {
	fx.In
	Logger    *zap.Logger
	AppConfig *config.AppConfig
	Options   *config.Options
}

func New(p Params) *Builder {
	return &Builder{
		p.Logger,
		p.AppConfig,
		p.Options,
	}
}

// Build compiles one fuzz target with the sanitizer overlay applied and makes
// sure its corpus directory exists. A failed compile is an outcome, not an
// error; the toolchain's stderr is the diagnostic. Builds have no benign
// timeout: hitting BUILD_TIMEOUT is a failure.
func (b *Builder) Build(ctx context.Context, target string, env []string) types.BuildOutcome {
	buildTracer := telemetry.FromContext(ctx).Spawn("building " + target).WithAttributes(
		telemetry.NewSpanAttributes(telemetry.Building).WithTargetHarness(target))
	buildTracer.Start()
	defer buildTracer.End()

	b.logger.Info("Building fuzz target", zap.String("target", target))

	if _, err := corpus.Ensure(b.opts.CorpusRoot, target); err != nil {
		b.logger.Error("Failed to create corpus directory", zap.String("target", target), zap.Error(err))
		buildTracer.SetStatus(codes.Error, "corpus directory unavailable")
		return types.BuildOutcome{Succeeded: false, Output: "Build failed: " + err.Error()}
	}

	buildCtx := ctx
	if b.appConfig.BuildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, b.appConfig.BuildTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(buildCtx, b.appConfig.CargoBin, "+nightly", "fuzz", "build", target)
	cmd.Dir = b.appConfig.ProjectRoot
	cmd.Env = append(os.Environ(), env...)
	// compiler children inherit the output pipes; without a WaitDelay a kill
	// at BuildTimeout would leave Build blocked on them
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	b.logger.Debug("Running build command", zap.String("command", cmd.String()))

	if err := cmd.Run(); err != nil && !errors.Is(err, exec.ErrWaitDelay) {
		buildTracer.AddEvent("build_failed", telemetry.EventAttributes{})
		buildTracer.SetStatus(codes.Error, "build failed")
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return types.BuildOutcome{Succeeded: false, Output: "Build failed: " + stderr.String()}
		}
		return types.BuildOutcome{Succeeded: false, Output: "Build failed: " + err.Error()}
	}

	buildTracer.SetStatus(codes.Ok, "build successful")
	return types.BuildOutcome{Succeeded: true, Output: stdout.String()}
}
