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

// Package codec implements the pieces shared
// by every segment file format: the versioned
// file header, the checksummed footer, block
// checksums, and the dispatch from an on-disk
// version number to the decoder for that version.
//
// Every file starts with
//
//	magic     uint32, big-endian
//	name      string
//	version   int32, big-endian
//	id        [16]byte
//	suffix    byte length + bytes
//
// and ends with
//
//	^magic    uint32, big-endian
//	algorithm int32, big-endian
//	checksum  [32]byte (blake2b-256 of everything before it)
//
// The magic number and version are always
// big-endian so that a reader can determine
// the version (and therefore the byte order
// of the body) of any file before decoding it.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
)

const (
	// Magic starts every file header.
	Magic = uint32(0x3fd76c17)
	// FooterMagic starts every file footer.
	FooterMagic = ^Magic

	// ChecksumAlgorithm identifies blake2b-256.
	ChecksumAlgorithm = int32(1)
	// ChecksumLength is the size of a footer checksum.
	ChecksumLength = 32
	// FooterLength is the size of a footer.
	FooterLength = 4 + 4 + ChecksumLength

	maxSuffixLength = 255
)

// HeaderLength returns the length in bytes of a
// header written by WriteHeader with the given
// codec name and suffix.
func HeaderLength(name, suffix string) int64 {
	return 4 + int64(uvarintLen(uint64(len(name)))) + int64(len(name)) + 4 + 16 + 1 + int64(len(suffix))
}

func uvarintLen(v uint64) int {
	var tmp [binary.MaxVarintLen64]byte
	return binary.PutUvarint(tmp[:], v)
}

func writeBEInt(out store.DataOutput, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return out.WriteBytes(b[:])
}

func readBEInt(in store.DataInput) (uint32, error) {
	var b [4]byte
	if err := in.ReadBytes(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// WriteHeader writes a file header.
func WriteHeader(out store.DataOutput, name string, version int32, id uuid.UUID, suffix string) error {
	if len(suffix) > maxSuffixLength {
		return fmt.Errorf("header suffix %q too long", suffix)
	}
	if err := writeBEInt(out, Magic); err != nil {
		return err
	}
	if err := out.WriteString(name); err != nil {
		return err
	}
	if err := writeBEInt(out, uint32(version)); err != nil {
		return err
	}
	if err := out.WriteBytes(id[:]); err != nil {
		return err
	}
	if err := out.WriteByte(byte(len(suffix))); err != nil {
		return err
	}
	return out.WriteBytes([]byte(suffix))
}

// Header is a decoded file header.
type Header struct {
	Name    string
	Version int32
	ID      uuid.UUID
	Suffix  string
}

// ReadHeader reads a file header without
// validating it against expectations.
func ReadHeader(in store.IndexInput) (Header, error) {
	var h Header
	res := in.Name()
	magic, err := readBEInt(in)
	if err != nil {
		return h, AsCorrupt(res, err)
	}
	if magic != Magic {
		return h, Corrupt(res, "header magic %#x != expected %#x", magic, Magic)
	}
	if h.Name, err = in.ReadString(); err != nil {
		return h, AsCorrupt(res, err)
	}
	v, err := readBEInt(in)
	if err != nil {
		return h, AsCorrupt(res, err)
	}
	h.Version = int32(v)
	if err := in.ReadBytes(h.ID[:]); err != nil {
		return h, AsCorrupt(res, err)
	}
	n, err := in.ReadByte()
	if err != nil {
		return h, AsCorrupt(res, err)
	}
	suffix := make([]byte, n)
	if err := in.ReadBytes(suffix); err != nil {
		return h, AsCorrupt(res, err)
	}
	h.Suffix = string(suffix)
	return h, nil
}

// CheckHeader reads a file header and validates
// the codec name, the segment id and the suffix.
// It returns the version, which is guaranteed to
// be within [min, max].
func CheckHeader(in store.IndexInput, name string, min, max int32, id uuid.UUID, suffix string) (int32, error) {
	h, err := ReadHeader(in)
	if err != nil {
		return 0, err
	}
	res := in.Name()
	if h.Name != name {
		return 0, Corrupt(res, "codec mismatch: actual %q vs expected %q", h.Name, name)
	}
	if h.Version < min {
		return 0, fmt.Errorf("%s: version %d < min %d: %w", res, h.Version, min, ErrFormatTooOld)
	}
	if h.Version > max {
		return 0, fmt.Errorf("%s: version %d > max %d: %w", res, h.Version, max, ErrFormatTooNew)
	}
	if !bytes.Equal(h.ID[:], id[:]) {
		return 0, Corrupt(res, "file mismatch: expected id %s, got %s", id, h.ID)
	}
	if h.Suffix != suffix {
		return 0, Corrupt(res, "file mismatch: expected suffix %q, got %q", suffix, h.Suffix)
	}
	return h.Version, nil
}
