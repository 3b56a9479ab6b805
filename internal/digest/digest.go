// Package digest folds integer multisets into order-independent fingerprints.
package digest

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Multiset is a commutative fingerprint of a multiset of int32 values. Two
// sequences holding the same values in any order produce equal Multisets.
// The zero value is the fingerprint of the empty multiset.
type Multiset struct {
	Count uint64
	Sum   uint64 // wrapping sum of per-value hashes
	Xor   uint64 // xor of rotated per-value hashes; guards against sum collisions
}

// Add folds one value into the fingerprint.
func (m *Multiset) Add(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	h := xxh3.Hash(b[:])
	m.Count++
	m.Sum += h
	m.Xor ^= h<<17 | h>>47
}

// Merge folds another fingerprint into m.
func (m *Multiset) Merge(o Multiset) {
	m.Count += o.Count
	m.Sum += o.Sum
	m.Xor ^= o.Xor
}
