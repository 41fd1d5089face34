// Package idpool manages the bounded pool of 65536 DNS transaction IDs
// that a single generator may have in flight at once.
package idpool

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
	"time"
)

// Universe is the size of the 16-bit transaction ID space.
const Universe = 1 << 16

// Allocator is a LIFO pool of uint16 transaction IDs. It starts holding
// every ID in [0, 65535] in a uniformly random order (Fisher-Yates) and
// hands them out with Take/Release. It is not safe for concurrent use;
// each generator owns its own allocator and runs on a single goroutine.
type Allocator struct {
	ids []uint16
}

// New builds an allocator pre-loaded with every transaction ID, shuffled
// with a non-deterministic seed.
func New() *Allocator {
	ids := make([]uint16, Universe)
	for i := range ids {
		ids[i] = uint16(i)
	}

	var seedBytes [8]byte
	if _, err := rand.Read(seedBytes[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable on any
		// real target; fall back to a time-seeded source so the
		// allocator still comes up.
		mrand.New(mrand.NewSource(time.Now().UnixNano())).Shuffle(len(ids), func(i, j int) {
			ids[i], ids[j] = ids[j], ids[i]
		})
		return &Allocator{ids: ids}
	}
	seed := int64(binary.LittleEndian.Uint64(seedBytes[:]))
	mrand.New(mrand.NewSource(seed)).Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	return &Allocator{ids: ids}
}

// Take pops an ID off the pool. The second return is false when the pool
// is empty (every ID is currently in flight).
func (a *Allocator) Take() (uint16, bool) {
	if len(a.ids) == 0 {
		return 0, false
	}
	n := len(a.ids) - 1
	id := a.ids[n]
	a.ids = a.ids[:n]
	return id, true
}

// Release returns an id to the pool. Releasing an id that is still
// present in the pool is a programming error.
func (a *Allocator) Release(id uint16) {
	a.ids = append(a.ids, id)
}

// Len reports how many ids are currently free.
func (a *Allocator) Len() int {
	return len(a.ids)
}
