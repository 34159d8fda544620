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

// Writer appends documents to the stored-fields
// files of one segment. A Writer must only be
// used from one goroutine at a time.
type Writer struct {
	mode  Mode
	comp  compr.Compressor
	data  store.IndexOutput
	index store.IndexOutput

	id      uuid.UUID
	pending *store.ByteBuffer
	lengths []int
	hdr     *store.ByteBuffer
	cbuf    []byte

	docBase int
	numDocs int
	// offset of each flushed block and
	// the number of documents it holds
	starts []int64
	counts []int

	err    error
	closed bool
}

func newWriter(dir store.Directory, segment string, id uuid.UUID, mode Mode) (*Writer, error) {
	comp := compr.Compression(mode.Algorithm())
	if comp == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	data, err := dir.CreateOutput(DataFile(segment))
	if err != nil {
		return nil, err
	}
	index, err := dir.CreateOutput(IndexFile(segment))
	if err != nil {
		data.Close()
		return nil, err
	}
	w := &Writer{
		mode:    mode,
		comp:    comp,
		data:    data,
		index:   index,
		id:      id,
		pending: store.NewByteBuffer(),
		hdr:     store.NewByteBuffer(),
	}
	if err := codec.WriteHeader(data, DataCodec, VersionCurrent, id, ""); err != nil {
		w.Close()
		return nil, err
	}
	if err := data.WriteByte(byte(mode)); err != nil {
		w.Close()
		return nil, err
	}
	if err := codec.WriteHeader(index, IndexCodec, VersionCurrent, id, ""); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Mode returns the compression mode of w.
func (w *Writer) Mode() Mode { return w.mode }

// NumDocs returns the number of
// documents added so far.
func (w *Writer) NumDocs() int { return w.numDocs }

// AddDocument appends d to the pending block,
// flushing the block if it has reached the
// size or document count threshold of the mode.
// The document is assigned the next document id.
func (w *Writer) AddDocument(d *document.Document) error {
	if w.err != nil {
		return w.err
	}
	start := w.pending.Len()
	if err := document.Encode(w.pending, d); err != nil {
		// drop the partial encoding
		w.pending.Truncate(start)
		return err
	}
	w.lengths = append(w.lengths, w.pending.Len()-start)
	w.numDocs++
	if w.pending.Len() >= w.mode.BlockBytes() || len(w.lengths) >= w.mode.BlockDocs() {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.lengths) == 0 {
		return nil
	}
	hdr := encodeBlockHeader(w.hdr, w.docBase, w.lengths)
	w.cbuf = w.comp.Compress(w.pending.Bytes(), w.cbuf[:0])
	start := w.data.FilePointer()
	err := w.data.WriteBytes(hdr)
	if err == nil {
		err = w.data.WriteLong(int64(codec.BlockChecksum(hdr, w.cbuf)))
	}
	if err == nil {
		err = w.data.WriteVInt(int32(len(w.cbuf)))
	}
	if err == nil {
		err = w.data.WriteBytes(w.cbuf)
	}
	if err != nil {
		w.err = err
		return err
	}
	w.starts = append(w.starts, start)
	w.counts = append(w.counts, len(w.lengths))
	w.docBase += len(w.lengths)
	w.lengths = w.lengths[:0]
	w.pending.Reset()
	return nil
}

// encodeBlockHeader encodes the part of a block
// preceding the checksum into buf and returns it.
func encodeBlockHeader(buf *store.ByteBuffer, docBase int, lengths []int) []byte {
	buf.Reset()
	buf.WriteVInt(int32(docBase))
	buf.WriteVInt(int32(len(lengths)))
	for _, n := range lengths {
		buf.WriteVInt(int32(n))
	}
	return buf.Bytes()
}

// Finish flushes the trailing block and writes the
// index file. numDocs must equal the number of
// documents added to w. Finish closes w.
func (w *Writer) Finish(numDocs int) error {
	if w.err != nil {
		w.Close()
		return w.err
	}
	if numDocs != w.numDocs {
		w.Close()
		return fmt.Errorf("storedfields: Finish(%d) called after %d documents were added", numDocs, w.numDocs)
	}
	if err := w.flush(); err != nil {
		w.Close()
		return err
	}
	maxPointer := w.data.FilePointer()
	if err := w.writeIndex(maxPointer); err != nil {
		w.Close()
		return err
	}
	if err := codec.WriteFooter(w.data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (w *Writer) writeIndex(maxPointer int64) error {
	out := w.index
	if err := out.WriteVInt(int32(w.numDocs)); err != nil {
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
	if err := out.WriteLong(maxPointer); err != nil {
		return err
	}
	return codec.WriteFooter(out)
}

// Close releases the outputs of w. Calling Close
// without a successful Finish leaves incomplete
// files behind, which the caller must delete.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.err == nil {
		w.err = store.ErrClosed
	}
	err := w.data.Close()
	if err2 := w.index.Close(); err == nil {
		err = err2
	}
	return err
}
