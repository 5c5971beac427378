package main

// mockcargo stands in for the cargo +nightly fuzz toolchain so the
// orchestrator can be exercised on machines without a Rust nightly and
// without burning CPU on real fuzzing. Point CARGO_BIN at the built
// binary and steer it with MOCKCARGO_* variables:
//
//	MOCKCARGO_BUILD_FAIL  comma-separated targets whose build fails
//	MOCKCARGO_CRASH       comma-separated targets whose run finds a crash
//	MOCKCARGO_HANG        comma-separated targets whose run never returns
//	MOCKCARGO_NEW_INPUTS  number of corpus files each run discovers

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && strings.HasPrefix(args[0], "+") {
		// toolchain override, e.g. +nightly
		args = args[1:]
	}
	if len(args) < 2 || args[0] != "fuzz" {
		usage()
	}

	switch args[1] {
	case "build":
		os.Exit(build(args[2:]))
	case "run":
		os.Exit(run(args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "error: unrecognized subcommand %q\n", args[1])
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mockcargo [+toolchain] fuzz build <target>")
	fmt.Fprintln(os.Stderr, "       mockcargo [+toolchain] fuzz run <target> <corpus> [-- <engine args>]")
	os.Exit(64)
}

func build(args []string) int {
	if len(args) != 1 {
		usage()
	}
	target := args[0]

	if listed(os.Getenv("MOCKCARGO_BUILD_FAIL"), target) {
		fmt.Fprintf(os.Stderr, "   Compiling bllvm-consensus-fuzz v0.1.0\n")
		fmt.Fprintf(os.Stderr, "error[E0308]: mismatched types\n")
		fmt.Fprintf(os.Stderr, "  --> fuzz_targets/%s.rs:14:9\n", target)
		fmt.Fprintf(os.Stderr, "error: could not compile `bllvm-consensus-fuzz` (bin \"%s\") due to 1 previous error\n", target)
		return 101
	}

	fmt.Printf("   Compiling bllvm-consensus-fuzz v0.1.0\n")
	fmt.Printf("    Finished `release` profile [optimized + debuginfo] target(s) in 0.31s\n")
	return 0
}

func run(args []string) int {
	start := time.Now()
	if len(args) < 2 {
		usage()
	}
	target, corpus := args[0], args[1]
	engineArgs := args[2:]
	if len(engineArgs) > 0 && engineArgs[0] == "--" {
		engineArgs = engineArgs[1:]
	}

	if listed(os.Getenv("MOCKCARGO_HANG"), target) {
		select {}
	}

	fmt.Fprintf(os.Stderr, "INFO: Running with entropic power schedule (0xFF, 100).\n")
	fmt.Fprintf(os.Stderr, "INFO: Seed: 1917370167\n")
	fmt.Fprintf(os.Stderr, "INFO: seed corpus: files: 7 min: 1b max: 832b total: 2101b rss: 38Mb\n")

	if err := plantInputs(corpus); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if listed(os.Getenv("MOCKCARGO_CRASH"), target) {
		fmt.Fprintf(os.Stderr, "==4242== ERROR: AddressSanitizer: heap-buffer-overflow on address 0x602000000078\n")
		fmt.Fprintf(os.Stderr, "SUMMARY: AddressSanitizer: heap-buffer-overflow\n")
		fmt.Fprintf(os.Stderr, "artifact_prefix='./'; Test unit written to ./crash-da39a3ee5e6b4b0d\n")
		return 77
	}

	// libFuzzer stops itself at -max_total_time; emulate the wall time
	if secs, ok := engineInt(engineArgs, "-max_total_time"); ok {
		time.Sleep(time.Duration(secs) * time.Second)
	}

	fmt.Fprintf(os.Stderr, "#131072\tDONE   cov: 517 ft: 1189 corp: 94/12Kb lim: 4096 exec/s: 43690 rss: 412Mb\n")
	fmt.Fprintf(os.Stderr, "Done 131072 runs in %d second(s)\n", int(time.Since(start).Seconds()))
	return 0
}

// plantInputs writes MOCKCARGO_NEW_INPUTS fresh files into the corpus dir,
// the way a real run grows its corpus.
func plantInputs(corpus string) error {
	n, err := strconv.Atoi(os.Getenv("MOCKCARGO_NEW_INPUTS"))
	if err != nil || n <= 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		name := filepath.Join(corpus, fmt.Sprintf("mock-%d-%d", os.Getpid(), i))
		if err := os.WriteFile(name, []byte{byte(i)}, 0o644); err != nil {
			return fmt.Errorf("failed to write corpus input: %w", err)
		}
	}
	return nil
}

func listed(csv, target string) bool {
	for _, name := range strings.Split(csv, ",") {
		if strings.TrimSpace(name) == target {
			return true
		}
	}
	return false
}

func engineInt(args []string, key string) (int, bool) {
	for _, arg := range args {
		if rest, ok := strings.CutPrefix(arg, key+"="); ok {
			if v, err := strconv.Atoi(rest); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}
