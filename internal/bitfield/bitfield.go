// Package bitfield implements a fixed-length bit array indexed by piece
// number, with the BitTorrent wire byte order (big-endian bit order within
// each byte, trailing bits in the last byte zero-padded).
package bitfield

import (
	"github.com/willf/bitset"
)

// Bitfield is a fixed-length array of bits indexed by piece number.
type Bitfield struct {
	set    *bitset.BitSet
	length uint32
}

// New returns a new Bitfield of the given length, all bits unset.
func New(length uint32) *Bitfield {
	return &Bitfield{set: bitset.New(uint(length)), length: length}
}

// NewBytes builds a Bitfield of the given length from wire-order bytes, as
// received in a BITFIELD peer message.
func NewBytes(b []byte, length uint32) *Bitfield {
	bf := New(length)
	for i := uint32(0); i < length; i++ {
		byteIndex := i / 8
		if int(byteIndex) >= len(b) {
			break
		}
		bitIndex := 7 - (i % 8)
		if b[byteIndex]&(1<<bitIndex) != 0 {
			bf.Set(i)
		}
	}
	return bf
}

// Len returns the number of bits in the bitfield.
func (b *Bitfield) Len() uint32 { return b.length }

// Set sets bit i.
func (b *Bitfield) Set(i uint32) { b.set.Set(uint(i)) }

// Unset clears bit i.
func (b *Bitfield) Unset(i uint32) { b.set.Clear(uint(i)) }

// Test returns whether bit i is set.
func (b *Bitfield) Test(i uint32) bool { return b.set.Test(uint(i)) }

// Count returns the number of set bits.
func (b *Bitfield) Count() uint32 { return uint32(b.set.Count()) }

// All returns true if every bit is set.
func (b *Bitfield) All() bool { return b.Count() == b.length }

// Copy returns an independent copy of the bitfield.
func (b *Bitfield) Copy() *Bitfield {
	return &Bitfield{set: b.set.Clone(), length: b.length}
}

// And returns a new bitfield that is the bitwise AND of b and other.
func (b *Bitfield) And(other *Bitfield) *Bitfield {
	return &Bitfield{set: b.set.Intersection(other.set), length: b.length}
}

// Or returns a new bitfield that is the bitwise OR of b and other.
func (b *Bitfield) Or(other *Bitfield) *Bitfield {
	return &Bitfield{set: b.set.Union(other.set), length: b.length}
}

// Xor returns a new bitfield that is the bitwise XOR of b and other.
func (b *Bitfield) Xor(other *Bitfield) *Bitfield {
	return &Bitfield{set: b.set.SymmetricDifference(other.set), length: b.length}
}

// AndNot returns a new bitfield with the bits of other cleared from b
// (set difference, b \ other).
func (b *Bitfield) AndNot(other *Bitfield) *Bitfield {
	return &Bitfield{set: b.set.Difference(other.set), length: b.length}
}

// SetIndices returns the ordered list of set bit positions.
func (b *Bitfield) SetIndices() []uint32 {
	indices := make([]uint32, 0, b.Count())
	for i, e := b.set.NextSet(0); e; i, e = b.set.NextSet(i + 1) {
		if uint32(i) >= b.length {
			break
		}
		indices = append(indices, uint32(i))
	}
	return indices
}

// Bytes serializes the bitfield in BitTorrent wire order: big-endian bit
// order within each byte, with any leftover bits in the final byte
// zero-padded.
func (b *Bitfield) Bytes() []byte {
	numBytes := (b.length + 7) / 8
	out := make([]byte, numBytes)
	for _, i := range b.SetIndices() {
		byteIndex := i / 8
		bitIndex := 7 - (i % 8)
		out[byteIndex] |= 1 << bitIndex
	}
	return out
}
