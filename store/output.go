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

package store

import (
	"bufio"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// IndexOutput is a sequential, append-only
// writer to a named resource.
type IndexOutput interface {
	DataOutput
	io.Closer

	// Name describes the resource.
	Name() string
	// FilePointer is the number of bytes
	// written so far.
	FilePointer() int64
	// Checksum returns the blake2b-256
	// digest of every byte written so far.
	Checksum() []byte
}

const writeBufferSize = 8192

// streamOutput is an IndexOutput over an
// io.Writer that tracks the running checksum
// of its contents.
type streamOutput struct {
	dataWriter

	name    string
	w       *bufio.Writer
	h       hash.Hash
	pos     int64
	onClose func() error
	closed  bool
}

func newStreamOutput(name string, w io.Writer, onClose func() error) *streamOutput {
	o := &streamOutput{
		name:    name,
		w:       bufio.NewWriterSize(w, writeBufferSize),
		h:       newChecksum(),
		onClose: onClose,
	}
	o.dataWriter.write = o.writeRaw
	return o
}

func newChecksum() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only possible with an oversized key
		panic(err)
	}
	return h
}

func (o *streamOutput) writeRaw(p []byte) error {
	if o.closed {
		return ErrClosed
	}
	o.h.Write(p)
	n, err := o.w.Write(p)
	o.pos += int64(n)
	return err
}

func (o *streamOutput) Name() string { return o.name }

func (o *streamOutput) FilePointer() int64 { return o.pos }

func (o *streamOutput) Checksum() []byte { return o.h.Sum(nil) }

func (o *streamOutput) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	err := o.w.Flush()
	if o.onClose != nil {
		if cerr := o.onClose(); err == nil {
			err = cerr
		}
	}
	return err
}

// ByteBuffer is an in-memory DataOutput.
// The zero value is not usable; call NewByteBuffer.
type ByteBuffer struct {
	dataWriter
	buf []byte
}

// NewByteBuffer returns an empty ByteBuffer.
func NewByteBuffer() *ByteBuffer {
	b := &ByteBuffer{}
	b.dataWriter.write = b.append
	return b
}

func (b *ByteBuffer) append(p []byte) error {
	b.buf = append(b.buf, p...)
	return nil
}

// Bytes returns the buffered bytes.
// The slice is only valid until the
// next write or Reset.
func (b *ByteBuffer) Bytes() []byte { return b.buf }

// Len is the number of buffered bytes.
func (b *ByteBuffer) Len() int { return len(b.buf) }

// Truncate discards all but the
// first n buffered bytes.
func (b *ByteBuffer) Truncate(n int) { b.buf = b.buf[:n] }

// Reset discards the buffered bytes
// but keeps the allocated memory.
func (b *ByteBuffer) Reset() { b.buf = b.buf[:0] }
