// Copyright 2023 Sneller, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package bitset implements fixed-length
// bit sets used to track live documents.
package bitset

import (
	"fmt"
	"math/bits"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// TestBit checks if the k-th bit is set in in.
func TestBit[T, K constraints.Integer](in []T, k K) bool {
	w := unsafe.Sizeof(in[0]) * 8
	return in[uintptr(k)/w]&(T(1)<<(uintptr(k)%w)) != 0
}

// SetBit sets the k-th bit in in.
func SetBit[T, K constraints.Integer](in []T, k K) {
	w := unsafe.Sizeof(in[0]) * 8
	in[uintptr(k)/w] |= T(1) << (uintptr(k) % w)
}

// ClearBit clears the k-th bit in in.
func ClearBit[T, K constraints.Integer](in []T, k K) {
	w := unsafe.Sizeof(in[0]) * 8
	in[uintptr(k)/w] &^= T(1) << (uintptr(k) % w)
}

// Words returns the number of 64-bit
// words needed to hold n bits.
func Words(n int) int {
	return (n + 63) >> 6
}

// Bits is a read-only view of a
// fixed-length bit set.
type Bits interface {
	// Get reports whether bit i is set.
	// Get panics if i is out of range.
	Get(i int) bool
	// Len is the number of bits.
	Len() int
}

// FixedBitSet is a mutable, fixed-length
// bit set backed by 64-bit words.
type FixedBitSet struct {
	words []uint64
	n     int
}

// New returns a FixedBitSet of n clear bits.
func New(n int) *FixedBitSet {
	return &FixedBitSet{words: make([]uint64, Words(n)), n: n}
}

// NewSet returns a FixedBitSet of n set bits.
func NewSet(n int) *FixedBitSet {
	b := New(n)
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	b.clearGhosts()
	return b
}

// FromWords returns a FixedBitSet of n bits
// backed by words (which is not copied).
// It returns an error if the length of words
// does not match n, or if any bit at or
// beyond n is set.
func FromWords(words []uint64, n int) (*FixedBitSet, error) {
	if len(words) != Words(n) {
		return nil, fmt.Errorf("bitset: %d words cannot hold exactly %d bits", len(words), n)
	}
	b := &FixedBitSet{words: words, n: n}
	if n&63 != 0 && words[len(words)-1]>>(uint(n)&63) != 0 {
		return nil, fmt.Errorf("bitset: bits set beyond length %d", n)
	}
	return b, nil
}

// clearGhosts clears the bits past n
// in the last word.
func (b *FixedBitSet) clearGhosts() {
	if b.n&63 != 0 {
		b.words[len(b.words)-1] &= (uint64(1) << (uint(b.n) & 63)) - 1
	}
}

func (b *FixedBitSet) check(i int) {
	if i < 0 || i >= b.n {
		panic(fmt.Sprintf("bitset: index %d out of range [0, %d)", i, b.n))
	}
}

// Get implements Bits.Get.
func (b *FixedBitSet) Get(i int) bool {
	b.check(i)
	return TestBit(b.words, i)
}

// Set sets bit i.
func (b *FixedBitSet) Set(i int) {
	b.check(i)
	SetBit(b.words, i)
}

// Clear clears bit i.
func (b *FixedBitSet) Clear(i int) {
	b.check(i)
	ClearBit(b.words, i)
}

// Len implements Bits.Len.
func (b *FixedBitSet) Len() int { return b.n }

// Cardinality counts the set bits.
func (b *FixedBitSet) Cardinality() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Words returns the backing words.
// The slice aliases the bit set.
func (b *FixedBitSet) Words() []uint64 { return b.words }

// Clone returns a deep copy of b.
func (b *FixedBitSet) Clone() *FixedBitSet {
	w := make([]uint64, len(b.words))
	copy(w, b.words)
	return &FixedBitSet{words: w, n: b.n}
}

// Freeze returns an immutable view of a copy
// of b with a precomputed cardinality.
func (b *FixedBitSet) Freeze() *Frozen {
	c := b.Clone()
	return &Frozen{set: c, count: c.Cardinality()}
}

// FreezeOwned returns an immutable view of b
// itself. The caller must not modify b afterwards.
func FreezeOwned(b *FixedBitSet) *Frozen {
	return &Frozen{set: b, count: b.Cardinality()}
}

// Frozen is an immutable Bits with a cached
// count of set bits. It is safe for
// concurrent use.
type Frozen struct {
	set   *FixedBitSet
	count int
}

// Get implements Bits.Get.
func (f *Frozen) Get(i int) bool { return f.set.Get(i) }

// Len implements Bits.Len.
func (f *Frozen) Len() int { return f.set.n }

// Cardinality returns the cached
// number of set bits.
func (f *Frozen) Cardinality() int { return f.count }

// Mutable returns a mutable copy.
func (f *Frozen) Mutable() *FixedBitSet { return f.set.Clone() }

// Copy returns a FixedBitSet with the same bits as b.
func Copy(b Bits) *FixedBitSet {
	switch t := b.(type) {
	case *FixedBitSet:
		return t.Clone()
	case *Frozen:
		return t.Mutable()
	case MatchAll:
		return NewSet(int(t))
	}
	out := New(b.Len())
	for i := 0; i < b.Len(); i++ {
		if b.Get(i) {
			out.Set(i)
		}
	}
	return out
}

// MatchAll is a Bits with every bit set.
type MatchAll int

// Get implements Bits.Get.
func (m MatchAll) Get(i int) bool {
	if i < 0 || i >= int(m) {
		panic(fmt.Sprintf("bitset: index %d out of range [0, %d)", i, int(m)))
	}
	return true
}

// Len implements Bits.Len.
func (m MatchAll) Len() int { return int(m) }
