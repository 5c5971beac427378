package runner

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/BTCDecoded/bllvm-fuzz/config"
	"github.com/BTCDecoded/bllvm-fuzz/internal/corpus"
	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		req  types.RunRequest
		want []string
	}{
		{
			name: "baseline flags only",
			req:  types.RunRequest{Target: "script_execution", CorpusDir: "corpus/script_execution", Jobs: 1},
			want: []string{
				"+nightly", "fuzz", "run", "script_execution", "corpus/script_execution",
				"--", "-max_len=100000", "-timeout=60",
			},
		},
		{
			name: "max time in seconds",
			req:  types.RunRequest{Target: "serialization", CorpusDir: "c/serialization", MaxTime: 24 * time.Hour, Jobs: 1},
			want: []string{
				"+nightly", "fuzz", "run", "serialization", "c/serialization",
				"--", "-max_len=100000", "-timeout=60", "-max_total_time=86400",
			},
		},
		{
			name: "max runs",
			req:  types.RunRequest{Target: "serialization", CorpusDir: "c/serialization", MaxRuns: 1, Jobs: 1},
			want: []string{
				"+nightly", "fuzz", "run", "serialization", "c/serialization",
				"--", "-max_len=100000", "-timeout=60", "-runs=1",
			},
		},
		{
			name: "jobs only above one",
			req:  types.RunRequest{Target: "serialization", CorpusDir: "c/serialization", Jobs: 4},
			want: []string{
				"+nightly", "fuzz", "run", "serialization", "c/serialization",
				"--", "-max_len=100000", "-timeout=60", "-jobs=4",
			},
		},
		{
			name: "everything",
			req: types.RunRequest{
				Target: "pow_validation", CorpusDir: "c/pow_validation",
				MaxTime: 300 * time.Second, MaxRuns: 5000, Jobs: 2,
			},
			want: []string{
				"+nightly", "fuzz", "run", "pow_validation", "c/pow_validation",
				"--", "-max_len=100000", "-timeout=60", "-max_total_time=300", "-runs=5000", "-jobs=2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildArgs(tt.req); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildArgs() = %v\nwant %v", got, tt.want)
			}
		})
	}
}

// writeScript installs an executable stand-in for the cargo binary.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "cargo")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(t *testing.T, cargoBin string) *Runner {
	t.Helper()
	return New(Params{
		Logger: zap.NewNop(),
		AppConfig: &config.AppConfig{
			ProjectRoot: t.TempDir(),
			CargoBin:    cargoBin,
		},
		MonitorFactory: corpus.NewMonitorFactory(zap.NewNop()),
	})
}

func newTestCorpusDir(t *testing.T) string {
	t.Helper()
	dir, err := corpus.Ensure(t.TempDir(), "serialization")
	if err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "#1024 pulse cov: 512"
echo "Done 1000 runs in 2 second(s)"
exit 0
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
	})

	if !outcome.Succeeded {
		t.Fatalf("run should succeed, got %q", outcome.Output)
	}
	if !strings.Contains(outcome.Output, "Done 1000 runs") {
		t.Errorf("engine output not captured: %q", outcome.Output)
	}
}

func TestRunCombinesStdoutThenStderr(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "OUT-MARKER"
echo "ERR-MARKER" >&2
exit 0
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
	})

	outIdx := strings.Index(outcome.Output, "OUT-MARKER")
	errIdx := strings.Index(outcome.Output, "ERR-MARKER")
	if outIdx < 0 || errIdx < 0 {
		t.Fatalf("missing streams in output: %q", outcome.Output)
	}
	if outIdx > errIdx {
		t.Errorf("stdout must come before stderr in combined output: %q", outcome.Output)
	}
}

func TestRunCrashFails(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "==ERROR: AddressSanitizer: heap-buffer-overflow" >&2
echo "Test unit written to ./crash-deadbeef" >&2
exit 77
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
	})

	if outcome.Succeeded {
		t.Fatal("crash output with non-zero exit must fail")
	}
	if !strings.Contains(outcome.Output, "crash-deadbeef") {
		t.Errorf("crash diagnostic missing: %q", outcome.Output)
	}
}

func TestRunNonZeroExitWithoutCrashSucceeds(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "flag parsing error" >&2
exit 1
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
	})

	if !outcome.Succeeded {
		t.Fatalf("non-zero exit without a crash marker should pass, got %q", outcome.Output)
	}
}

func TestRunSpawnFault(t *testing.T) {
	r := newTestRunner(t, filepath.Join(t.TempDir(), "does-not-exist"))

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
	})

	if outcome.Succeeded {
		t.Fatal("spawn fault must fail the run")
	}
	if !strings.HasPrefix(outcome.Output, "Error running fuzzer: ") {
		t.Errorf("output = %q, want Error running fuzzer: prefix", outcome.Output)
	}
}

func TestRunHardDeadlineIsSuccess(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `sleep 5
exit 0
`)
	r := newTestRunner(t, script)
	r.grace = 100 * time.Millisecond

	start := time.Now()
	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		MaxTime:   50 * time.Millisecond,
		Jobs:      1,
	})

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("hard deadline did not cut the run off, took %v", elapsed)
	}
	if !outcome.Succeeded {
		t.Fatal("a run stopped by the hard deadline counts as success")
	}
	if outcome.Output != "Fuzzing completed (timeout)" {
		t.Errorf("output = %q, want Fuzzing completed (timeout)", outcome.Output)
	}
}

func TestRunFinishingBeforeDeadlineKeepsOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "Done 10 runs in 0 second(s)"
exit 0
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		MaxTime:   10 * time.Second,
		Jobs:      1,
	})

	if !outcome.Succeeded {
		t.Fatalf("run should succeed, got %q", outcome.Output)
	}
	if outcome.Output == "Fuzzing completed (timeout)" {
		t.Error("fast run must not be reported as a timeout")
	}
}

func TestRunCountsNewCorpusEntries(t *testing.T) {
	dir := t.TempDir()
	// $5 is the corpus directory in the run argv
	script := writeScript(t, dir, `echo "seed one" > "$5/gen-1"
echo "seed two" > "$5/gen-2"
sleep 0.3
exit 0
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
	})

	if !outcome.Succeeded {
		t.Fatalf("run failed: %q", outcome.Output)
	}
	if outcome.NewInputs != 2 {
		t.Errorf("NewInputs = %d, want 2", outcome.NewInputs)
	}
}

func TestRunAppliesEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `echo "ASAN_OPTIONS=$ASAN_OPTIONS"
exit 0
`)
	r := newTestRunner(t, script)

	outcome := r.Run(context.Background(), types.RunRequest{
		Target:    "serialization",
		CorpusDir: newTestCorpusDir(t),
		Jobs:      1,
		Env:       []string{"ASAN_OPTIONS=detect_leaks=1"},
	})

	if !strings.Contains(outcome.Output, "ASAN_OPTIONS=detect_leaks=1") {
		t.Errorf("overlay not visible to the child, got %q", outcome.Output)
	}
}
