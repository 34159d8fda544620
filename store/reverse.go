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
	"encoding/binary"
	"math/bits"

	"golang.org/x/sys/cpu"
)

// HostOrder returns the byte order of
// the machine we are running on.
func HostOrder() binary.ByteOrder {
	if cpu.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// WrapInput returns an input that decodes
// fixed-width integers written in order.
// If order is NativeOrder, in is returned as-is.
func WrapInput(in IndexInput, order binary.ByteOrder) IndexInput {
	if order == NativeOrder {
		return in
	}
	return &ReverseInput{IndexInput: in}
}

// WrapOutput returns an output that encodes
// fixed-width integers in order.
// If order is NativeOrder, out is returned as-is.
func WrapOutput(out IndexOutput, order binary.ByteOrder) IndexOutput {
	if order == NativeOrder {
		return out
	}
	return &ReverseOutput{IndexOutput: out}
}

// WrapDataOutput is WrapOutput for
// a plain DataOutput.
func WrapDataOutput(out DataOutput, order binary.ByteOrder) DataOutput {
	if order == NativeOrder {
		return out
	}
	return &reverseDataOutput{DataOutput: out}
}

// ReverseInput is an IndexInput that reverses
// the bytes of every 16, 32 and 64-bit value
// read from the wrapped input.
// Single bytes, byte arrays, variable-length
// integers and strings are passed through.
type ReverseInput struct {
	IndexInput
}

func (r *ReverseInput) ReadShort() (int16, error) {
	v, err := r.IndexInput.ReadShort()
	return int16(bits.ReverseBytes16(uint16(v))), err
}

func (r *ReverseInput) ReadInt() (int32, error) {
	v, err := r.IndexInput.ReadInt()
	return int32(bits.ReverseBytes32(uint32(v))), err
}

func (r *ReverseInput) ReadLong() (int64, error) {
	v, err := r.IndexInput.ReadLong()
	return int64(bits.ReverseBytes64(uint64(v))), err
}

// Clone returns a reversing clone
// of the wrapped input.
func (r *ReverseInput) Clone() IndexInput {
	return &ReverseInput{IndexInput: r.IndexInput.Clone()}
}

// Slice returns a reversing slice
// of the wrapped input.
func (r *ReverseInput) Slice(name string, offset, length int64) (IndexInput, error) {
	if !r.IndexInput.SupportsSlice() {
		return nil, ErrUnsupported
	}
	s, err := r.IndexInput.Slice(name, offset, length)
	if err != nil {
		return nil, err
	}
	return &ReverseInput{IndexInput: s}, nil
}

// RandomAccessSlice returns a reversing
// random-access slice of the wrapped input.
func (r *ReverseInput) RandomAccessSlice(offset, length int64) (RandomAccessInput, error) {
	if !r.IndexInput.SupportsSlice() {
		return nil, ErrUnsupported
	}
	s, err := r.IndexInput.RandomAccessSlice(offset, length)
	if err != nil {
		return nil, err
	}
	return &ReverseRandomAccess{RandomAccessInput: s}, nil
}

// ReverseRandomAccess is the RandomAccessInput
// counterpart of ReverseInput.
type ReverseRandomAccess struct {
	RandomAccessInput
}

func (r *ReverseRandomAccess) ReadShortAt(pos int64) (int16, error) {
	v, err := r.RandomAccessInput.ReadShortAt(pos)
	return int16(bits.ReverseBytes16(uint16(v))), err
}

func (r *ReverseRandomAccess) ReadIntAt(pos int64) (int32, error) {
	v, err := r.RandomAccessInput.ReadIntAt(pos)
	return int32(bits.ReverseBytes32(uint32(v))), err
}

func (r *ReverseRandomAccess) ReadLongAt(pos int64) (int64, error) {
	v, err := r.RandomAccessInput.ReadLongAt(pos)
	return int64(bits.ReverseBytes64(uint64(v))), err
}

// ReverseOutput is the IndexOutput
// counterpart of ReverseInput.
type ReverseOutput struct {
	IndexOutput
}

func (r *ReverseOutput) WriteShort(v int16) error {
	return r.IndexOutput.WriteShort(int16(bits.ReverseBytes16(uint16(v))))
}

func (r *ReverseOutput) WriteInt(v int32) error {
	return r.IndexOutput.WriteInt(int32(bits.ReverseBytes32(uint32(v))))
}

func (r *ReverseOutput) WriteLong(v int64) error {
	return r.IndexOutput.WriteLong(int64(bits.ReverseBytes64(uint64(v))))
}

type reverseDataOutput struct {
	DataOutput
}

func (r *reverseDataOutput) WriteShort(v int16) error {
	return r.DataOutput.WriteShort(int16(bits.ReverseBytes16(uint16(v))))
}

func (r *reverseDataOutput) WriteInt(v int32) error {
	return r.DataOutput.WriteInt(int32(bits.ReverseBytes32(uint32(v))))
}

func (r *reverseDataOutput) WriteLong(v int64) error {
	return r.DataOutput.WriteLong(int64(bits.ReverseBytes64(uint64(v))))
}
