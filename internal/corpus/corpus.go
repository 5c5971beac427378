package corpus

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir returns the corpus directory for a target under root. Contents of the
// directory are opaque engine state and never inspected.
func Dir(root, target string) string {
	return filepath.Join(root, target)
}

// Ensure creates the target's corpus directory, parents included, and
// returns its path.
func Ensure(root, target string) (string, error) {
	dir := Dir(root, target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create corpus directory: %w", err)
	}
	return dir, nil
}

// Count returns the number of regular files in dir.
func Count(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read corpus directory: %w", err)
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}
