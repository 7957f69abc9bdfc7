package store

import (
	"os"

	"github.com/akr81/CounterExample2Sequence/internal/digest"
)

// VerifyResult contains the result of run verification.
type VerifyResult struct {
	Valid          bool   `json:"valid"`
	DigestMismatch bool   `json:"digestMismatch"`         // Stored rows no longer hash to the stored digest
	SourceChanged  bool   `json:"sourceChanged"`          // Trace file is gone
	SourceMessage  string `json:"sourceMessage,omitempty"` // Details about the source
}

// Verify recomputes the digest of a loaded run and checks that its trace
// file still exists. A missing source is reported but does not invalidate
// the run.
func Verify(run Run) VerifyResult {
	result := VerifyResult{Valid: true}

	if digest.Compute(run.Table) != run.Digest {
		result.Valid = false
		result.DigestMismatch = true
	}

	switch run.Source {
	case "", "sample", "stdin":
	default:
		if _, err := os.Stat(run.Source); os.IsNotExist(err) {
			result.SourceChanged = true
			result.SourceMessage = "trace file no longer exists"
		}
	}
	return result
}
