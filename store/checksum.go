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
	"encoding"
	"fmt"
	"hash"
)

// ChecksumInput is a sequential IndexInput that
// computes the blake2b-256 digest of every
// byte read through it.
//
// A ChecksumInput can only move forward, and
// it does not support slicing. It must wrap a
// native-order input; to read a reversed format
// through a ChecksumInput, wrap the ChecksumInput
// with WrapInput.
type ChecksumInput struct {
	dataReader

	in IndexInput
	h  hash.Hash
}

// NewChecksumInput wraps in, which should be
// positioned at the beginning of the resource.
func NewChecksumInput(in IndexInput) *ChecksumInput {
	c := &ChecksumInput{
		in: in,
		h:  newChecksum(),
	}
	c.dataReader.read = c.readFull
	c.dataReader.remain = c.remaining
	return c
}

func (c *ChecksumInput) readFull(p []byte) error {
	if err := c.in.ReadBytes(p); err != nil {
		return err
	}
	c.h.Write(p)
	return nil
}

// Checksum returns the digest of the
// bytes read so far.
func (c *ChecksumInput) Checksum() []byte { return c.h.Sum(nil) }

func (c *ChecksumInput) Name() string { return c.in.Name() }

func (c *ChecksumInput) Position() int64 { return c.in.Position() }

func (c *ChecksumInput) Length() int64 { return c.in.Length() }

func (c *ChecksumInput) remaining() int64 { return c.in.Length() - c.in.Position() }

// SeekTo only supports moving forward;
// the skipped bytes are read and
// included in the checksum.
func (c *ChecksumInput) SeekTo(pos int64) error {
	cur := c.in.Position()
	if pos < cur {
		return fmt.Errorf("%s: cannot seek backwards from %d to %d: %w", c.Name(), cur, pos, ErrUnsupported)
	}
	var skip [512]byte
	for cur < pos {
		n := int64(len(skip))
		if pos-cur < n {
			n = pos - cur
		}
		if err := c.readFull(skip[:n]); err != nil {
			return err
		}
		cur += n
	}
	return nil
}

// Clone returns an independent ChecksumInput
// with the same digest state.
func (c *ChecksumInput) Clone() IndexInput {
	state, err := c.h.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("ChecksumInput.Clone: %s", err))
	}
	h := newChecksum()
	if err := h.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		panic(fmt.Sprintf("ChecksumInput.Clone: %s", err))
	}
	n := &ChecksumInput{in: c.in.Clone(), h: h}
	n.dataReader.read = n.readFull
	n.dataReader.remain = n.remaining
	return n
}

func (c *ChecksumInput) SupportsSlice() bool { return false }

func (c *ChecksumInput) Slice(name string, offset, length int64) (IndexInput, error) {
	return nil, fmt.Errorf("%s: slice %q: %w", c.Name(), name, ErrUnsupported)
}

func (c *ChecksumInput) RandomAccessSlice(offset, length int64) (RandomAccessInput, error) {
	return nil, fmt.Errorf("%s: random access: %w", c.Name(), ErrUnsupported)
}

func (c *ChecksumInput) Close() error { return c.in.Close() }
