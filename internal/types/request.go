package types

import "time"

// RunRequest describes one execution of a built fuzz target.
type RunRequest struct {
	Target    string        // catalog name of the target
	CorpusDir string        // per-target corpus directory
	MaxTime   time.Duration // fuzzing budget handed to the engine; zero means unbounded
	MaxRuns   int           // iteration cap handed to the engine; zero means no cap
	Jobs      int           // engine worker processes
	Env       []string      // sanitizer overlay as KEY=VALUE pairs
}
