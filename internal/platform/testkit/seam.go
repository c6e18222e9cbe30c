package testkit

import (
	"sync"
	"testing"
)

var seamMu sync.Mutex

// Swap replaces a package-level variable (usually a func seam) for the test and restores it on cleanup
func Swap[T any](t *testing.T, target *T, replacement T) {
	t.Helper()
	orig := *target
	*target = replacement
	t.Cleanup(func() { *target = orig })
}

// Serial holds a process-wide lock for the rest of the test so tests that
// touch shared seams or process env do not interleave
func Serial(t *testing.T) {
	t.Helper()
	seamMu.Lock()
	t.Cleanup(seamMu.Unlock)
}
