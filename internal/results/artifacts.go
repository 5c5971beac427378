package results

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BTCDecoded/bllvm-fuzz/internal/types"
)

// ArtifactStore persists the full output of failed targets, one file per
// target under a per-session directory in the system temp dir. Log lines
// truncate output; the store keeps all of it.
type ArtifactStore struct {
	dir string
}

func NewArtifactStore(id SessionID) *ArtifactStore {
	return &ArtifactStore{
		dir: filepath.Join(os.TempDir(), "bllvm-fuzz", string(id)),
	}
}

// Dir returns the session's artifact directory.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Save writes the untruncated output of a failed target and returns the file
// path.
func (s *ArtifactStore) Save(res types.TargetResult) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(s.dir, res.Target+".log")
	if err := os.WriteFile(path, []byte(res.Output), 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}
