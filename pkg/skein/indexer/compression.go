package indexer

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/wayneeseguin/skein/pkg/skein"
)

// CompressionRegistry assigns reference-counted simple compression
// values to (type, key) pairs. String keys are flagged as needing full
// compression: their quick value may collide.
type CompressionRegistry struct {
	byKey  map[string]*compressionEntry
	byVal  map[int]*compressionEntry
	nextID int
}

type compressionEntry struct {
	key      string
	value    int
	needFull bool
	refCount int
}

// NewCompressionRegistry ...
func NewCompressionRegistry() *CompressionRegistry {
	return &CompressionRegistry{
		byKey:  make(map[string]*compressionEntry),
		byVal:  make(map[int]*compressionEntry),
		nextID: 1,
	}
}

func compressionKey(typ string, key interface{}) string {
	return typ + "\x00" + fmt.Sprintf("%v", normalizeKey(typ, key))
}

// Get returns the simple compression value for a (type, key) pair,
// taking a reference. needFull is true when the value alone cannot
// disambiguate (string keys).
func (c *CompressionRegistry) Get(typ string, key interface{}) (value int, needFull bool) {
	k := compressionKey(typ, key)
	entry, ok := c.byKey[k]
	if !ok {
		entry = &compressionEntry{
			key:      k,
			value:    c.nextID,
			needFull: typ == TypeString,
		}
		c.nextID++
		c.byKey[k] = entry
		c.byVal[entry.value] = entry
	}
	entry.refCount++
	return entry.value, entry.needFull
}

// Release drops one reference on a simple compression value. Releasing
// an unknown or unreferenced value is a programming invariant
// violation.
func (c *CompressionRegistry) Release(value int) {
	entry, ok := c.byVal[value]
	if !ok {
		panic(skein.NewInvariantError("release of unknown compression value %d", value))
	}
	entry.refCount--
	if entry.refCount < 0 {
		panic(skein.NewInvariantError("double release of compression value %d", value))
	}
	if entry.refCount == 0 {
		delete(c.byKey, entry.key)
		delete(c.byVal, value)
	}
}

// RefCount returns the current reference count of a value, for tests.
func (c *CompressionRegistry) RefCount(value int) int {
	if entry, ok := c.byVal[value]; ok {
		return entry.refCount
	}
	return 0
}

// QuickCompression folds a set of simple values into an
// order-independent compressed identity. It may collide; FullCompression
// disambiguates.
func QuickCompression(values []int) int {
	sum := 0
	for _, v := range values {
		sum += v*v + v
	}
	return sum
}

// FullCompression hashes the sorted terminal descriptions into a
// collision-resistant identity.
func FullCompression(terminals []string) uint64 {
	sorted := make([]string, len(terminals))
	copy(sorted, terminals)
	sort.Strings(sorted)

	h := fnv.New64a()
	for _, t := range sorted {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return h.Sum64()
}
