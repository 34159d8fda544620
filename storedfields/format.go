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

// Package storedfields implements the stored-fields
// codec: documents are grouped into compressed
// blocks in a data file (.fdt), and a separate
// index file (.fdx) maps each document id to the
// offset of its block and its ordinal within it.
//
// The data file is laid out as
//
//	header
//	mode   byte
//	block...
//	footer
//
// where each block is
//
//	docBase  vint
//	docCount vint
//	length   vint (one per document)
//	checksum uint64 (versions >= 2)
//	size     vint
//	payload  [size]byte, compressed
//
// The index file is laid out as
//
//	header
//	docCount   vint
//	blockCount vint
//	entry      int64 offset, int32 ordinal (one per document)
//	maxPointer int64
//	footer
package storedfields

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
)

var (
	// ErrInvalidMode is returned when a Format
	// is constructed with an invalid Mode.
	ErrInvalidMode = errors.New("storedfields: invalid compression mode")
	// ErrOutOfBounds is returned by Reader.Document
	// for a document id outside of [0, docCount).
	ErrOutOfBounds = errors.New("storedfields: document id out of bounds")
)

const (
	// DataCodec and IndexCodec are the codec
	// names written in file headers.
	DataCodec  = "SegcodecStoredFieldsData"
	IndexCodec = "SegcodecStoredFieldsIndex"

	DataExtension  = "fdt"
	IndexExtension = "fdx"

	// VersionBigEndian is the original layout:
	// big-endian fixed-width values and no
	// per-block checksum.
	VersionBigEndian = int32(1)
	// VersionChecksum added per-block checksums.
	VersionChecksum = int32(2)
	// VersionLittleEndian switched the body
	// to little-endian. This is the version
	// written by Writer.
	VersionLittleEndian = int32(3)

	VersionCurrent = VersionLittleEndian

	indexEntrySize = 8 + 4
)

// layout is the decoding of one version.
type layout struct {
	order     binary.ByteOrder
	checksums bool
}

var layouts = map[int32]layout{
	VersionBigEndian:    {order: binary.BigEndian, checksums: false},
	VersionChecksum:     {order: binary.BigEndian, checksums: true},
	VersionLittleEndian: {order: binary.LittleEndian, checksums: true},
}

var (
	dataVersions  = codec.NewVersions(DataCodec, VersionChecksum, layouts)
	indexVersions = codec.NewVersions(IndexCodec, VersionChecksum, layouts)
)

// DataFile returns the name of the data
// file for the given segment.
func DataFile(segment string) string { return segment + "." + DataExtension }

// IndexFile returns the name of the index
// file for the given segment.
func IndexFile(segment string) string { return segment + "." + IndexExtension }

// Format is a stored-fields format
// bound to a compression Mode.
type Format struct {
	mode Mode
}

// NewFormat returns a Format using mode.
// It returns ErrInvalidMode if mode is not valid.
func NewFormat(mode Mode) (*Format, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	return &Format{mode: mode}, nil
}

// Mode returns the mode of f.
func (f *Format) Mode() Mode { return f.mode }

// NewWriter creates the stored-fields files for
// segment in dir and returns a Writer for them.
func (f *Format) NewWriter(dir store.Directory, segment string, id uuid.UUID) (*Writer, error) {
	return newWriter(dir, segment, id, f.mode)
}
