package runner

import "strings"

// Classify maps an engine exit to pass or fail: exit code zero passes, and a
// non-zero exit still passes unless the combined output mentions a crash.
// The match is a plain case-insensitive substring search, so engine noise
// containing the word will fail a run and a silent abort will pass one.
func Classify(exitCode int, output string) bool {
	return exitCode == 0 || !strings.Contains(strings.ToLower(output), "crash")
}
