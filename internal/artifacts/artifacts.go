// Package artifacts provides keyed persistence for per-unit evaluation
// artifacts. Keys are collision-free across concurrent writers because every
// (cohort, variant, split) pair maps to a distinct entry.
package artifacts

import (
	"fmt"

	"github.com/clinstat/survcv/internal/results"
)

// Key identifies one evaluation unit's artifact.
type Key struct {
	Cohort  string
	Variant results.Variant
	SplitID int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/split-%04d", k.Cohort, k.Variant, k.SplitID)
}

// Repository stores and retrieves artifact blobs. Implementations must be
// safe for concurrent use; distinct keys never contend.
type Repository interface {
	// Put stores the blob under the key, replacing any previous entry.
	Put(key Key, data []byte) error

	// Get retrieves the blob stored under the key. The boolean reports
	// whether an entry existed; a missing entry is not an error.
	Get(key Key) ([]byte, bool, error)
}
