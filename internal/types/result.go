package types

import "time"

// pipeline phases, recorded on TargetResult
const (
	PhaseBuild = "build"
	PhaseRun   = "run"
)

type BuildOutcome struct {
	Succeeded bool
	Output    string // compiler stdout on success, diagnostic on failure
}

type RunOutcome struct {
	Succeeded bool
	Output    string // combined stdout+stderr of the engine, or a diagnostic
	NewInputs int    // corpus entries created while the target ran
}

// TargetResult is the terminal state of one target's build-then-run pipeline.
type TargetResult struct {
	Target    string
	Succeeded bool
	Output    string
	Phase     string // phase that produced the outcome
	Duration  time.Duration
}

type Summary struct {
	Total     int
	Succeeded int
}

func (s Summary) AllPassed() bool {
	return s.Succeeded == s.Total
}
