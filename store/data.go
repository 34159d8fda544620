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
	"fmt"
)

// NativeOrder is the byte order in which
// every input and output produced by this
// package encodes multi-byte integers.
// Formats that were written in the opposite
// order are read through ReverseInput.
var NativeOrder binary.ByteOrder = binary.LittleEndian

// DataInput is a sequential source of
// primitive values.
//
// Variable-length integers and strings are
// byte-granular and therefore independent
// of byte order; fixed-width integers are
// decoded in the order of the implementation.
type DataInput interface {
	ReadByte() (byte, error)
	// ReadBytes fills p completely or fails.
	ReadBytes(p []byte) error
	ReadShort() (int16, error)
	ReadInt() (int32, error)
	ReadLong() (int64, error)
	ReadVInt() (int32, error)
	ReadVLong() (int64, error)
	ReadString() (string, error)
}

// DataOutput is a sequential sink of
// primitive values; see DataInput.
type DataOutput interface {
	WriteByte(b byte) error
	WriteBytes(p []byte) error
	WriteShort(v int16) error
	WriteInt(v int32) error
	WriteLong(v int64) error
	WriteVInt(v int32) error
	WriteVLong(v int64) error
	WriteString(s string) error
}

// dataReader implements the DataInput
// decoding on top of a function that
// reads exactly len(p) bytes.
type dataReader struct {
	read func(p []byte) error
	// remain, if set, returns the number
	// of bytes left to read
	remain  func() int64
	scratch [8]byte
}

func (d *dataReader) ReadByte() (byte, error) {
	if err := d.read(d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

func (d *dataReader) ReadBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return d.read(p)
}

func (d *dataReader) ReadShort() (int16, error) {
	if err := d.read(d.scratch[:2]); err != nil {
		return 0, err
	}
	return int16(NativeOrder.Uint16(d.scratch[:2])), nil
}

func (d *dataReader) ReadInt() (int32, error) {
	if err := d.read(d.scratch[:4]); err != nil {
		return 0, err
	}
	return int32(NativeOrder.Uint32(d.scratch[:4])), nil
}

func (d *dataReader) ReadLong() (int64, error) {
	if err := d.read(d.scratch[:8]); err != nil {
		return 0, err
	}
	return int64(NativeOrder.Uint64(d.scratch[:8])), nil
}

func (d *dataReader) ReadVInt() (int32, error) {
	return readVInt(d)
}

func (d *dataReader) ReadVLong() (int64, error) {
	return readVLong(d)
}

func (d *dataReader) ReadString() (string, error) {
	return readString(d, d.remain)
}

func readVInt(in DataInput) (int32, error) {
	var v uint32
	for shift := uint(0); shift < 35; shift += 7 {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << shift
		if b < 0x80 {
			return int32(v), nil
		}
	}
	return 0, fmt.Errorf("invalid vint: %w", ErrMalformed)
}

func readVLong(in DataInput) (int64, error) {
	var v uint64
	for shift := uint(0); shift < 70; shift += 7 {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return int64(v), nil
		}
	}
	return 0, fmt.Errorf("invalid vlong: %w", ErrMalformed)
}

func readString(in DataInput, remain func() int64) (string, error) {
	n, err := in.ReadVInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("negative string length %d: %w", n, ErrMalformed)
	}
	if remain != nil && int64(n) > remain() {
		return "", fmt.Errorf("string length %d exceeds %d remaining bytes: %w", n, remain(), ErrMalformed)
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := in.ReadBytes(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// dataWriter implements the DataOutput
// encoding on top of a raw write function.
type dataWriter struct {
	write   func(p []byte) error
	scratch [binary.MaxVarintLen64]byte
}

func (d *dataWriter) WriteByte(b byte) error {
	d.scratch[0] = b
	return d.write(d.scratch[:1])
}

func (d *dataWriter) WriteBytes(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	return d.write(p)
}

func (d *dataWriter) WriteShort(v int16) error {
	NativeOrder.PutUint16(d.scratch[:2], uint16(v))
	return d.write(d.scratch[:2])
}

func (d *dataWriter) WriteInt(v int32) error {
	NativeOrder.PutUint32(d.scratch[:4], uint32(v))
	return d.write(d.scratch[:4])
}

func (d *dataWriter) WriteLong(v int64) error {
	NativeOrder.PutUint64(d.scratch[:8], uint64(v))
	return d.write(d.scratch[:8])
}

func (d *dataWriter) WriteVInt(v int32) error {
	n := binary.PutUvarint(d.scratch[:], uint64(uint32(v)))
	return d.write(d.scratch[:n])
}

func (d *dataWriter) WriteVLong(v int64) error {
	if v < 0 {
		return fmt.Errorf("cannot write negative vlong %d", v)
	}
	n := binary.PutUvarint(d.scratch[:], uint64(v))
	return d.write(d.scratch[:n])
}

func (d *dataWriter) WriteString(s string) error {
	if err := d.WriteVInt(int32(len(s))); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	return d.write([]byte(s))
}
