// Package blockcache bounds the memory cost of repeatedly decompressing
// the same archive entry. It is a narrow descendant of the teacher's
// internal/spinner multiplexer: that package solved concurrent random
// access into sequential-only files, which this toolkit's single-cursor
// invariant (spec §5) makes unnecessary. What's left is just the
// admission/eviction policy, so this package keeps only that: a
// size-bounded memoization of decompressed payload bytes keyed by
// (archive identity, entry index).
package blockcache

import (
	"hash/maphash"

	"github.com/dgryski/go-tinylfu"
)

// Key identifies one cached block: a particular entry of a particular
// archive instance.
type Key struct {
	Archive any // typically the *Reader pointer, used only for identity
	Entry   int
}

// Cache is a bounded cache of decompressed entry payloads.
type Cache struct {
	c    *tinylfu.T[Key, []byte]
	seed maphash.Seed
}

// New creates a cache that holds roughly capacity entries.
func New(capacity int) *Cache {
	c := &Cache{seed: maphash.MakeSeed()}
	c.c = tinylfu.New[Key, []byte](capacity, capacity*10, c.hash)
	return c
}

func (c *Cache) hash(k Key) uint64 {
	type hashable struct {
		archive any
		entry   int
	}
	return maphash.Comparable(c.seed, hashable{k.Archive, k.Entry})
}

// Get returns a previously-stored block for key, if present.
func (c *Cache) Get(key Key) ([]byte, bool) { return c.c.Get(key) }

// Add stores a decompressed block for key.
func (c *Cache) Add(key Key, data []byte) { c.c.Add(key, data) }
