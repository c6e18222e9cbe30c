// Package dedup tracks primary keys already persisted so a resumed run skips them
package dedup

import (
	"sync"

	"repoharvest/internal/platform/ndjson"
)

// Index is a set of int64 keys. Safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	seen map[int64]struct{}
}

// New returns an empty Index
func New() *Index { return &Index{seen: make(map[int64]struct{})} }

// Has reports whether id was added
func (x *Index) Has(id int64) bool {
	x.mu.RLock()
	_, ok := x.seen[id]
	x.mu.RUnlock()
	return ok
}

// Add inserts id and reports whether it was new
func (x *Index) Add(id int64) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.seen[id]; ok {
		return false
	}
	x.seen[id] = struct{}{}
	return true
}

// Len returns the number of keys
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.seen)
}

// Stats describes a log load
type Stats struct {
	Records    int
	Duplicates int
	Skipped    int
}

// LoadFile adds the key of every decodable line of an NDJSON log to x.
// key extracts the primary key; records where it returns 0 are ignored.
// A missing file is an empty log; corrupt lines are skipped.
func LoadFile[T any](x *Index, path string, key func(T) int64) (Stats, error) {
	var st Stats
	scan, err := ndjson.ScanFile(path, func(v T) error {
		id := key(v)
		if id == 0 {
			return nil
		}
		st.Records++
		if !x.Add(id) {
			st.Duplicates++
		}
		return nil
	})
	st.Skipped = scan.Skipped
	return st, err
}
