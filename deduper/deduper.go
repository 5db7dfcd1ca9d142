// Package deduper drops duplicate vendor records within a single sync
// run. Vendors occasionally return the same entity on two pages; the
// store must only see the first occurrence per mapper key tuple.
package deduper

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

// Deduper records identity tuples scoped to an object type and reports
// whether a tuple was seen before.
type Deduper interface {
	AddIfNotExists(ctx context.Context, objectTypeID uuid.UUID, keyValues ...string) bool
}

func New() Deduper {
	return &tupleSet{seen: make(map[uint64]struct{})}
}

type tupleSet struct {
	mu   sync.Mutex
	seen map[uint64]struct{}
}

func (d *tupleSet) AddIfNotExists(_ context.Context, objectTypeID uuid.UUID, keyValues ...string) bool {
	sum := hashTuple(objectTypeID, keyValues)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[sum]; ok {
		return false
	}

	d.seen[sum] = struct{}{}
	return true
}

// hashTuple separates values with 0x1f so ("ab","c") and ("a","bc")
// hash differently.
func hashTuple(objectTypeID uuid.UUID, keyValues []string) uint64 {
	h := fnv.New64a()
	h.Write(objectTypeID[:])
	for _, v := range keyValues {
		h.Write([]byte{0x1f})
		h.Write([]byte(v))
	}
	return h.Sum64()
}
