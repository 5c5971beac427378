package results

import (
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
)

// log lines carry at most this much captured output; the artifact store
// keeps the rest
const maxLoggedOutput = 500

// Aggregator collects per-target results as pipelines finish. Safe for
// concurrent use; parallel sessions record from many workers at once.
type Aggregator struct {
	logger    *zap.Logger
	artifacts *ArtifactStore

	mu      sync.Mutex
	results []types.TargetResult
}

type Params struct {
	fx.In
	Logger    *zap.Logger
	Artifacts *ArtifactStore
}

func NewAggregator(p Params) *Aggregator {
	return &Aggregator{
		logger:    p.Logger,
		artifacts: p.Artifacts,
	}
}

// Record stores one result and logs it immediately, in completion order.
// Failed targets also get their full output saved as an artifact.
func (a *Aggregator) Record(res types.TargetResult) {
	a.mu.Lock()
	a.results = append(a.results, res)
	a.mu.Unlock()

	if res.Succeeded {
		a.logger.Info("Fuzz target completed successfully",
			zap.String("target", res.Target),
			zap.Duration("duration", res.Duration))
		return
	}

	a.logger.Error("Fuzz target failed",
		zap.String("target", res.Target),
		zap.String("phase", res.Phase),
		zap.Duration("duration", res.Duration),
		zap.String("output", truncate(res.Output, maxLoggedOutput)))

	if path, err := a.artifacts.Save(res); err != nil {
		a.logger.Warn("Failed to save failure artifact", zap.String("target", res.Target), zap.Error(err))
	} else {
		a.logger.Info("Failure output saved", zap.String("target", res.Target), zap.String("path", path))
	}
}

// Results returns a snapshot of recorded results in completion order.
func (a *Aggregator) Results() []types.TargetResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]types.TargetResult, len(a.results))
	copy(out, a.results)
	return out
}

func (a *Aggregator) Summarize() types.Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := types.Summary{Total: len(a.results)}
	for _, res := range a.results {
		if res.Succeeded {
			summary.Succeeded++
		}
	}
	return summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
