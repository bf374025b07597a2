package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SequentialUUIDs generates predictable version 4 uuids:
// 00000000-0000-4000-8000-000000000001, ...-000000000002 and so on.
//
// Pass Next to marshal.WithUUIDSource so generated ids can be asserted.
//
// Thread-safety: safe for concurrent use.
type SequentialUUIDs struct {
	mu sync.Mutex
	n  int
}

// NewSequentialUUIDs creates a generator whose first uuid ends in 1.
func NewSequentialUUIDs() *SequentialUUIDs {
	return &SequentialUUIDs{}
}

// Next returns the next uuid.
func (g *SequentialUUIDs) Next() (uuid.UUID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return uuid.Parse(UUIDString(g.n))
}

// Reset restarts the sequence at 1.
func (g *SequentialUUIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// UUIDString returns the canonical text of the n-th sequential uuid.
func UUIDString(n int) string {
	return fmt.Sprintf("00000000-0000-4000-8000-%012d", n)
}
