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

// Package backcompat writes files in historical
// formats so that tests can verify that current
// readers still decode them. Production code
// must never import this package.
package backcompat

import (
	"encoding/binary"
	"fmt"

	"github.com/SnellerInc/segcodec/bitset"
	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/compr"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/livedocs"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"

	"github.com/google/uuid"
)

// StoredFields writes docs as the stored fields of
// segment using a historical version, which must be
// storedfields.VersionBigEndian or
// storedfields.VersionChecksum.
func StoredFields(dir store.Directory, segment string, id uuid.UUID, mode storedfields.Mode, version int32, docs []*document.Document) error {
	var checksums bool
	switch version {
	case storedfields.VersionBigEndian:
	case storedfields.VersionChecksum:
		checksums = true
	default:
		return fmt.Errorf("backcompat: stored fields version %d is not historical", version)
	}
	if !mode.Valid() {
		return storedfields.ErrInvalidMode
	}
	w := &legacyStored{
		mode:      mode,
		comp:      compr.Compression(mode.Algorithm()),
		checksums: checksums,
		pending:   store.NewByteBuffer(),
	}
	data, err := dir.CreateOutput(storedfields.DataFile(segment))
	if err != nil {
		return err
	}
	defer data.Close()
	index, err := dir.CreateOutput(storedfields.IndexFile(segment))
	if err != nil {
		return err
	}
	defer index.Close()
	// headers and footers are byte-order independent
	if err := codec.WriteHeader(data, storedfields.DataCodec, version, id, ""); err != nil {
		return err
	}
	if err := data.WriteByte(byte(mode)); err != nil {
		return err
	}
	if err := codec.WriteHeader(index, storedfields.IndexCodec, version, id, ""); err != nil {
		return err
	}
	w.data = store.WrapOutput(data, binary.BigEndian)
	for _, d := range docs {
		if err := w.add(d); err != nil {
			return err
		}
	}
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.writeIndex(store.WrapOutput(index, binary.BigEndian), len(docs), data.FilePointer()); err != nil {
		return err
	}
	if err := codec.WriteFooter(index); err != nil {
		return err
	}
	if err := codec.WriteFooter(data); err != nil {
		return err
	}
	if err := index.Close(); err != nil {
		return err
	}
	return data.Close()
}

type legacyStored struct {
	mode      storedfields.Mode
	comp      compr.Compressor
	checksums bool
	data      store.IndexOutput

	pending *store.ByteBuffer
	lengths []int
	docBase int
	starts  []int64
	counts  []int
}

func (w *legacyStored) add(d *document.Document) error {
	start := w.pending.Len()
	if err := document.Encode(store.WrapDataOutput(w.pending, binary.BigEndian), d); err != nil {
		return err
	}
	w.lengths = append(w.lengths, w.pending.Len()-start)
	if w.pending.Len() >= w.mode.BlockBytes() || len(w.lengths) >= w.mode.BlockDocs() {
		return w.flush()
	}
	return nil
}

func (w *legacyStored) flush() error {
	if len(w.lengths) == 0 {
		return nil
	}
	hdr := store.NewByteBuffer()
	hdr.WriteVInt(int32(w.docBase))
	hdr.WriteVInt(int32(len(w.lengths)))
	for _, n := range w.lengths {
		hdr.WriteVInt(int32(n))
	}
	payload := w.comp.Compress(w.pending.Bytes(), nil)
	w.starts = append(w.starts, w.data.FilePointer())
	w.counts = append(w.counts, len(w.lengths))
	if err := w.data.WriteBytes(hdr.Bytes()); err != nil {
		return err
	}
	if w.checksums {
		if err := w.data.WriteLong(int64(codec.BlockChecksum(hdr.Bytes(), payload))); err != nil {
			return err
		}
	}
	if err := w.data.WriteVInt(int32(len(payload))); err != nil {
		return err
	}
	if err := w.data.WriteBytes(payload); err != nil {
		return err
	}
	w.docBase += len(w.lengths)
	w.lengths = w.lengths[:0]
	w.pending.Reset()
	return nil
}

func (w *legacyStored) writeIndex(out store.IndexOutput, numDocs int, maxPointer int64) error {
	if err := out.WriteVInt(int32(numDocs)); err != nil {
		return err
	}
	if err := out.WriteVInt(int32(len(w.starts))); err != nil {
		return err
	}
	for i, start := range w.starts {
		for ord := 0; ord < w.counts[i]; ord++ {
			if err := out.WriteLong(start); err != nil {
				return err
			}
			if err := out.WriteInt(int32(ord)); err != nil {
				return err
			}
		}
	}
	return out.WriteLong(maxPointer)
}

// LiveDocs writes bits as generation gen of the
// live documents of seg using the big-endian
// version 1 layout.
func LiveDocs(dir store.Directory, seg livedocs.Segment, bits bitset.Bits, gen int64) error {
	if bits.Len() != seg.DocCount {
		return livedocs.ErrLengthMismatch
	}
	out, err := dir.CreateOutput(livedocs.FileName(seg.Name, gen))
	if err != nil {
		return err
	}
	defer out.Close()
	if err := codec.WriteHeader(out, livedocs.Codec, livedocs.VersionBigEndian, seg.ID, livedocs.Suffix(gen)); err != nil {
		return err
	}
	be := store.WrapOutput(out, binary.BigEndian)
	if err := be.WriteInt(int32(seg.DocCount)); err != nil {
		return err
	}
	for _, w := range bitset.Copy(bits).Words() {
		if err := be.WriteLong(int64(w)); err != nil {
			return err
		}
	}
	if err := codec.WriteFooter(out); err != nil {
		return err
	}
	return out.Close()
}
