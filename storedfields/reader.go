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

package storedfields

import (
	"fmt"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/compr"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
)

// Reader reads the stored fields of one segment.
// A Reader is safe for concurrent use.
type Reader struct {
	version  int32
	mode     Mode
	layout   layout
	docCount int
	blocks   int

	// raw inputs, which own the files
	dataRaw, indexRaw store.IndexInput
	// data in the byte order of the layout
	data    store.IndexInput
	entries store.RandomAccessInput

	dataStart  int64
	maxPointer int64
	dec        compr.Decompressor
	cache      *blockCache
}

// Open opens the stored-fields files of segment,
// which must hold docCount documents. The version
// of each file is determined from its header.
func Open(dir store.Directory, segment string, id uuid.UUID, docCount int, opts *codec.ReadOptions) (*Reader, error) {
	r := &Reader{docCount: docCount}
	var err error
	r.dataRaw, err = dir.OpenInput(DataFile(segment))
	if err != nil {
		return nil, err
	}
	if err := r.openData(id, opts); err != nil {
		r.dataRaw.Close()
		return nil, err
	}
	r.indexRaw, err = dir.OpenInput(IndexFile(segment))
	if err != nil {
		r.dataRaw.Close()
		return nil, err
	}
	if err := r.openIndex(id, opts); err != nil {
		r.Close()
		return nil, err
	}
	r.cache = newBlockCache(opts.CacheBytes())
	return r, nil
}

func (r *Reader) openData(id uuid.UUID, opts *codec.ReadOptions) error {
	in := r.dataRaw
	lay, version, err := dataVersions.Open(in, id, "", opts)
	if err != nil {
		return err
	}
	r.layout = lay
	r.version = version
	tag, err := in.ReadByte()
	if err != nil {
		return codec.AsCorrupt(in.Name(), err)
	}
	r.mode = Mode(tag)
	if !r.mode.Valid() {
		return codec.Corrupt(in.Name(), "invalid compression mode %d", tag)
	}
	r.dec = compr.Decompression(r.mode.Algorithm())
	r.dataStart = in.Position()
	if _, err := codec.RetrieveChecksum(in); err != nil {
		return err
	}
	r.data = store.WrapInput(in, lay.order)
	return nil
}

func (r *Reader) openIndex(id uuid.UUID, opts *codec.ReadOptions) error {
	raw := r.indexRaw
	res := raw.Name()
	_, version, err := indexVersions.Open(raw, id, "", opts)
	if err != nil {
		return err
	}
	if version != r.version {
		return codec.Corrupt(res, "index version %d does not match data version %d", version, r.version)
	}
	in := store.WrapInput(raw, r.layout.order)
	n, err := in.ReadVInt()
	if err != nil {
		return codec.AsCorrupt(res, err)
	}
	if int(n) != r.docCount {
		return codec.Corrupt(res, "index holds %d documents, segment has %d", n, r.docCount)
	}
	blocks, err := in.ReadVInt()
	if err != nil {
		return codec.AsCorrupt(res, err)
	}
	if blocks < 0 || int(blocks) > r.docCount || (blocks == 0) != (r.docCount == 0) {
		return codec.Corrupt(res, "invalid block count %d for %d documents", blocks, r.docCount)
	}
	r.blocks = int(blocks)
	start := in.Position()
	size := int64(r.docCount) * indexEntrySize
	if start+size+8+codec.FooterLength != in.Length() {
		return codec.Corrupt(res, "index length %d does not match %d entries", in.Length(), r.docCount)
	}
	r.entries, err = in.RandomAccessSlice(start, size)
	if err != nil {
		return err
	}
	if err := in.SeekTo(start + size); err != nil {
		return codec.AsCorrupt(res, err)
	}
	r.maxPointer, err = in.ReadLong()
	if err != nil {
		return codec.AsCorrupt(res, err)
	}
	if want := codec.FooterStart(r.dataRaw.Length()); r.maxPointer != want {
		return codec.Corrupt(res, "max pointer %d does not match data length (want %d)", r.maxPointer, want)
	}
	_, err = codec.RetrieveChecksum(raw)
	return err
}

// Version returns the format version of the segment.
func (r *Reader) Version() int32 { return r.version }

// Mode returns the compression mode of the segment.
func (r *Reader) Mode() Mode { return r.mode }

// NumDocs returns the number of documents.
func (r *Reader) NumDocs() int { return r.docCount }

// NumBlocks returns the number of compressed blocks.
func (r *Reader) NumBlocks() int { return r.blocks }

// CacheStats returns the number of block cache
// hits and misses so far.
func (r *Reader) CacheStats() (hits, misses int64) { return r.cache.stats() }

// Document returns the stored fields of document id.
func (r *Reader) Document(id int) (*document.Document, error) {
	if id < 0 || id >= r.docCount {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfBounds, id, r.docCount)
	}
	res := r.dataRaw.Name()
	off, err := r.entries.ReadLongAt(int64(id) * indexEntrySize)
	if err != nil {
		return nil, codec.AsCorrupt(r.indexRaw.Name(), err)
	}
	ord, err := r.entries.ReadIntAt(int64(id)*indexEntrySize + 8)
	if err != nil {
		return nil, codec.AsCorrupt(r.indexRaw.Name(), err)
	}
	b, err := r.block(off)
	if err != nil {
		return nil, err
	}
	if ord < 0 || int(ord) >= len(b.ends) || b.docBase+int(ord) != id {
		return nil, codec.Corrupt(res, "document %d: index entry (%d, %d) does not match block at %d", id, off, ord, off)
	}
	start := 0
	if ord > 0 {
		start = b.ends[ord-1]
	}
	in := store.WrapInput(store.NewBytesInput(res, b.data[start:b.ends[ord]]), r.layout.order)
	d, err := document.Decode(in)
	if err != nil {
		return nil, &codec.CorruptError{Resource: res, Msg: fmt.Sprintf("decoding document %d", id), Err: err}
	}
	if in.Position() != in.Length() {
		return nil, codec.Corrupt(res, "document %d: %d trailing bytes", id, in.Length()-in.Position())
	}
	return d, nil
}

func (r *Reader) block(off int64) (*block, error) {
	if b, ok := r.cache.get(off); ok {
		return b, nil
	}
	b, err := r.readBlock(off)
	if err != nil {
		return nil, err
	}
	r.cache.put(b)
	return b, nil
}

// readBlock reads, verifies and decompresses
// the block at off through a private clone
// of the data input.
func (r *Reader) readBlock(off int64) (*block, error) {
	res := r.dataRaw.Name()
	if off < r.dataStart || off >= r.maxPointer {
		return nil, codec.Corrupt(res, "block offset %d outside of [%d, %d)", off, r.dataStart, r.maxPointer)
	}
	in := r.data.Clone()
	if err := in.SeekTo(off); err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	docBase, err := in.ReadVInt()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	n, err := in.ReadVInt()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if docBase < 0 || n <= 0 || int(docBase)+int(n) > r.docCount {
		return nil, codec.Corrupt(res, "block at %d: invalid documents [%d, %d+%d)", off, docBase, docBase, n)
	}
	b := &block{offset: off, docBase: int(docBase), ends: make([]int, n)}
	lengths := make([]int, n)
	total := 0
	for i := range lengths {
		l, err := in.ReadVInt()
		if err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
		if l < 0 {
			return nil, codec.Corrupt(res, "block at %d: negative document length %d", off, l)
		}
		lengths[i] = int(l)
		total += int(l)
		b.ends[i] = total
	}
	var sum uint64
	if r.layout.checksums {
		v, err := in.ReadLong()
		if err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
		sum = uint64(v)
	}
	size, err := in.ReadVInt()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if size < 0 || in.Position()+int64(size) > r.maxPointer {
		return nil, codec.Corrupt(res, "block at %d: invalid compressed size %d", off, size)
	}
	payload := make([]byte, size)
	if err := in.ReadBytes(payload); err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if r.layout.checksums {
		hdr := encodeBlockHeader(store.NewByteBuffer(), b.docBase, lengths)
		if got := codec.BlockChecksum(hdr, payload); got != sum {
			return nil, codec.Corrupt(res, "block at %d: checksum %#x != stored %#x", off, got, sum)
		}
	}
	b.data, err = compr.Decompress(r.dec, payload, total)
	if err != nil {
		return nil, &codec.CorruptError{Resource: res, Msg: fmt.Sprintf("block at %d", off), Err: err}
	}
	return b, nil
}

// CheckIntegrity verifies the footer
// checksums of both files by reading
// them in their entirety.
func (r *Reader) CheckIntegrity() error {
	if err := codec.ChecksumEntireFile(r.dataRaw); err != nil {
		return err
	}
	return codec.ChecksumEntireFile(r.indexRaw)
}

// Close closes the underlying files.
func (r *Reader) Close() error {
	err := r.dataRaw.Close()
	if r.indexRaw != nil {
		if err2 := r.indexRaw.Close(); err == nil {
			err = err2
		}
	}
	return err
}
