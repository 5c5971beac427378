package runner

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		output   string
		want     bool
	}{
		{
			name:     "clean exit",
			exitCode: 0,
			output:   "Done 1000 runs in 10 second(s)",
			want:     true,
		},
		{
			name:     "clean exit mentioning crash still passes",
			exitCode: 0,
			output:   "0 crash(es) found",
			want:     true,
		},
		{
			name:     "non-zero exit without crash marker",
			exitCode: 1,
			output:   "invalid corpus entry skipped",
			want:     true,
		},
		{
			name:     "non-zero exit with lowercase marker",
			exitCode: 77,
			output:   "test unit written to ./crash-4f2a",
			want:     false,
		},
		{
			name:     "non-zero exit with uppercase marker",
			exitCode: 1,
			output:   "== CRASH DETECTED ==",
			want:     false,
		},
		{
			name:     "killed by signal with empty output",
			exitCode: -1,
			output:   "",
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.exitCode, tt.output); got != tt.want {
				t.Errorf("Classify(%d, %q) = %v, want %v", tt.exitCode, tt.output, got, tt.want)
			}
		})
	}
}

func FuzzClassify(f *testing.F) {
	f.Add(0, "==ERROR: AddressSanitizer: heap-buffer-overflow")
	f.Add(1, "Done 1000 runs in 1 second(s)")
	f.Add(77, "SUMMARY: libFuzzer: deadly signal; artifact written to ./crash-1a2b")
	f.Add(-1, "")

	f.Fuzz(func(t *testing.T, exitCode int, output string) {
		got := Classify(exitCode, output)

		if exitCode == 0 && !got {
			t.Errorf("exit code 0 must always pass, output %q", output)
		}
		if exitCode != 0 && strings.Contains(strings.ToLower(output), "crash") && got {
			t.Errorf("non-zero exit with crash marker must fail, output %q", output)
		}
		if Classify(exitCode, strings.ToUpper(output)) != Classify(exitCode, strings.ToLower(output)) {
			t.Errorf("classification must be case insensitive, output %q", output)
		}
	})
}
