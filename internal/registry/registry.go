package registry

import (
	"fmt"
	"strings"
)

// the fuzz targets of the consensus codebase, in run order
var targets = []string{
	"transaction_validation",
	"block_validation",
	"script_execution",
	"segwit_validation",
	"mempool_operations",
	"utxo_commitments",
	"compact_block_reconstruction",
	"pow_validation",
	"economic_validation",
	"serialization",
	"script_opcodes",
	"differential_fuzzing",
}

// Names returns the full target catalog in run order.
func Names() []string {
	out := make([]string, len(targets))
	copy(out, targets)
	return out
}

// Contains reports whether name is a known fuzz target.
func Contains(name string) bool {
	for _, t := range targets {
		if t == name {
			return true
		}
	}
	return false
}

// InvalidTargetError lists requested names that are not in the catalog.
type InvalidTargetError struct {
	Unknown []string
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid targets: %s", strings.Join(e.Unknown, ", "))
}

// Validate checks every requested name against the catalog. It returns an
// *InvalidTargetError naming all unknown targets, so a session never starts
// with a partially valid selection.
func Validate(requested []string) error {
	var unknown []string
	for _, name := range requested {
		if !Contains(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return &InvalidTargetError{Unknown: unknown}
	}
	return nil
}
