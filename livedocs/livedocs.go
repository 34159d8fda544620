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

// Package livedocs implements the live-docs codec,
// which persists one bit per document of a segment
// (set when the document is live). Each application
// of deletions is written as a new generation:
//
//	<segment>_<gen>.liv
//
// where gen is written in base 36. A file holds
//
//	header (suffix = gen in base 36)
//	docCount int32
//	words    int64 (ceil(docCount/64) of them)
//	footer
package livedocs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/SnellerInc/segcodec/bitset"
	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/store"

	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
)

// ErrLengthMismatch is returned by Write when
// the length of the bit set is not the number
// of documents in the segment.
var ErrLengthMismatch = errors.New("livedocs: bit set length does not match document count")

const (
	// Codec is the codec name written in headers.
	Codec     = "SegcodecLiveDocs"
	Extension = "liv"

	// VersionBigEndian wrote words big-endian.
	VersionBigEndian = int32(1)
	// VersionLittleEndian is the version written by Write.
	VersionLittleEndian = int32(2)

	VersionCurrent = VersionLittleEndian
)

var versions = codec.NewVersions(Codec, VersionLittleEndian, map[int32]binary.ByteOrder{
	VersionBigEndian:    binary.BigEndian,
	VersionLittleEndian: binary.LittleEndian,
})

// Segment identifies the segment
// a live-docs file belongs to.
type Segment struct {
	Name     string
	ID       uuid.UUID
	DocCount int
}

// FileName returns the name of the
// live-docs file of generation gen.
func FileName(segment string, gen int64) string {
	return segment + "_" + Suffix(gen) + "." + Extension
}

// Suffix returns the header suffix
// for generation gen.
func Suffix(gen int64) string { return strconv.FormatInt(gen, 36) }

// Write persists bits as generation gen of the
// live documents of seg. The length of bits
// must equal seg.DocCount.
func Write(dir store.Directory, seg Segment, bits bitset.Bits, gen int64) error {
	if bits.Len() != seg.DocCount {
		return fmt.Errorf("%w: %d bits for %d documents in %s", ErrLengthMismatch, bits.Len(), seg.DocCount, seg.Name)
	}
	if gen < 1 {
		return fmt.Errorf("livedocs: invalid generation %d", gen)
	}
	var words []uint64
	if fb, ok := bits.(*bitset.FixedBitSet); ok {
		words = fb.Words()
	} else {
		words = bitset.Copy(bits).Words()
	}
	out, err := dir.CreateOutput(FileName(seg.Name, gen))
	if err != nil {
		return err
	}
	err = write(out, seg, words, gen)
	if err2 := out.Close(); err == nil {
		err = err2
	}
	return err
}

func write(out store.IndexOutput, seg Segment, words []uint64, gen int64) error {
	if err := codec.WriteHeader(out, Codec, VersionCurrent, seg.ID, Suffix(gen)); err != nil {
		return err
	}
	if err := out.WriteInt(int32(seg.DocCount)); err != nil {
		return err
	}
	for _, w := range words {
		if err := out.WriteLong(int64(w)); err != nil {
			return err
		}
	}
	return codec.WriteFooter(out)
}

// Read reads generation gen of the live documents
// of seg. The number of clear bits must equal
// delCount. The returned bits are immutable
// and carry a precomputed cardinality.
func Read(dir store.Directory, seg Segment, gen int64, delCount int, opts *codec.ReadOptions) (*bitset.Frozen, error) {
	f, _, err := ReadVersion(dir, seg, gen, delCount, opts)
	return f, err
}

// ReadVersion is like Read, but it
// also returns the format version.
func ReadVersion(dir store.Directory, seg Segment, gen int64, delCount int, opts *codec.ReadOptions) (*bitset.Frozen, int32, error) {
	raw, err := dir.OpenInput(FileName(seg.Name, gen))
	if err != nil {
		return nil, 0, err
	}
	defer raw.Close()
	res := raw.Name()
	ci := store.NewChecksumInput(raw)
	order, version, err := versions.Open(ci, seg.ID, Suffix(gen), opts)
	if err != nil {
		return nil, 0, err
	}
	in := store.WrapInput(ci, order)
	n, err := in.ReadInt()
	if err != nil {
		return nil, 0, codec.AsCorrupt(res, err)
	}
	if int(n) != seg.DocCount {
		return nil, 0, codec.Corrupt(res, "file holds %d documents, segment has %d", n, seg.DocCount)
	}
	words := make([]uint64, bitset.Words(seg.DocCount))
	for i := range words {
		v, err := in.ReadLong()
		if err != nil {
			return nil, 0, codec.AsCorrupt(res, err)
		}
		words[i] = uint64(v)
	}
	if err := codec.CheckFooter(ci); err != nil {
		return nil, 0, err
	}
	set, err := bitset.FromWords(words, seg.DocCount)
	if err != nil {
		return nil, 0, &codec.CorruptError{Resource: res, Msg: "invalid bit set", Err: err}
	}
	live := bitset.FreezeOwned(set)
	if del := seg.DocCount - live.Cardinality(); del != delCount {
		return nil, 0, codec.Corrupt(res, "%d deleted documents, expected %d", del, delCount)
	}
	return live, version, nil
}

// ApplyDeletes returns a new bit set holding the
// live documents of prev minus the documents in
// deleted, along with the number of documents that
// were live in prev and are not in the result.
// prev is never modified.
func ApplyDeletes(prev bitset.Bits, deleted *roaring.Bitmap) (*bitset.FixedBitSet, int, error) {
	n := prev.Len()
	if !deleted.IsEmpty() && int64(deleted.Maximum()) >= int64(n) {
		return nil, 0, fmt.Errorf("livedocs: deleted document %d out of range [0, %d)", deleted.Maximum(), n)
	}
	next := bitset.Copy(prev)
	count := 0
	it := deleted.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		if next.Get(id) {
			next.Clear(id)
			count++
		}
	}
	return next, count, nil
}
