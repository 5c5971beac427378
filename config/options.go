package config

import (
	"time"

	"github.com/BTCDecoded/bllvm-fuzz/internal/sanitizer"
)

// Options carries one invocation's command-line selections, resolved and
// validated by the CLI before the session starts.
type Options struct {
	CorpusRoot string             // root under which each target gets a corpus subdir
	Targets    []string           // requested targets; empty means the full catalog
	MaxTime    time.Duration      // per-target fuzzing budget; zero means unbounded
	MaxRuns    int                // per-target iteration cap; zero means no cap
	Jobs       int                // engine workers (sequential) or pool size (parallel)
	Sanitizer  sanitizer.Selector // instrumentation for the whole session
	Parallel   bool               // run targets concurrently instead of in order
	LogLevel   string             // overrides LOG_LEVEL when set
}
