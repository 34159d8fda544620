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
	"bytes"
	"fmt"
	"io"
)

// IndexInput is a positioned, sequential
// reader over a named resource.
//
// An IndexInput is not safe for concurrent
// use; goroutines that need to read the same
// resource should each call Clone.
type IndexInput interface {
	DataInput
	io.Closer

	// Name describes the resource.
	Name() string
	// Position is the current read offset.
	Position() int64
	// SeekTo moves the read offset to pos.
	SeekTo(pos int64) error
	// Length is the length of the resource
	// (or of the slice) in bytes.
	Length() int64
	// Clone returns an input over the same
	// bytes, positioned identically, with
	// an independent cursor.
	// Clones must not be closed.
	Clone() IndexInput

	// SupportsSlice reports whether Slice
	// and RandomAccessSlice are available.
	SupportsSlice() bool
	// Slice returns an input over
	// [offset, offset+length) of this input.
	Slice(name string, offset, length int64) (IndexInput, error)
	// RandomAccessSlice returns a positional
	// reader over [offset, offset+length)
	// of this input.
	RandomAccessSlice(offset, length int64) (RandomAccessInput, error)
}

// RandomAccessInput reads fixed-width values
// at absolute positions relative to the start
// of the slice it was created from.
//
// A RandomAccessInput has no cursor, so it
// is safe for concurrent use.
type RandomAccessInput interface {
	Length() int64
	ReadByteAt(pos int64) (byte, error)
	ReadShortAt(pos int64) (int16, error)
	ReadIntAt(pos int64) (int32, error)
	ReadLongAt(pos int64) (int64, error)
}

const readBufferSize = 4096

// sectionInput is an IndexInput over a
// section of an io.ReaderAt. All inputs
// opened by the directories in this package
// are sectionInputs, since every io.ReaderAt
// can be read concurrently without
// coordination.
type sectionInput struct {
	dataReader

	name   string
	r      io.ReaderAt
	off    int64 // absolute offset of the section in r
	length int64
	pos    int64 // relative to off

	buf    []byte
	bufPos int64 // relative position of buf[0]
	bufLen int

	closer io.Closer // nil for slices and clones
}

func newSectionInput(name string, r io.ReaderAt, off, length int64, closer io.Closer) *sectionInput {
	s := &sectionInput{
		name:   name,
		r:      r,
		off:    off,
		length: length,
		closer: closer,
	}
	s.dataReader.read = s.readFull
	s.dataReader.remain = func() int64 { return s.length - s.pos }
	return s
}

// NewBytesInput returns a sliceable
// IndexInput over buf.
func NewBytesInput(name string, buf []byte) IndexInput {
	return newSectionInput(name, bytes.NewReader(buf), 0, int64(len(buf)), nil)
}

func (s *sectionInput) Name() string { return s.name }

func (s *sectionInput) Position() int64 { return s.pos }

func (s *sectionInput) Length() int64 { return s.length }

func (s *sectionInput) SeekTo(pos int64) error {
	if pos < 0 || pos > s.length {
		return fmt.Errorf("%s: seek to %d outside [0, %d]", s.name, pos, s.length)
	}
	s.pos = pos
	return nil
}

func (s *sectionInput) Clone() IndexInput {
	c := newSectionInput(s.name, s.r, s.off, s.length, nil)
	c.pos = s.pos
	return c
}

func (s *sectionInput) SupportsSlice() bool { return true }

func (s *sectionInput) Slice(name string, offset, length int64) (IndexInput, error) {
	if err := s.checkRange(offset, length); err != nil {
		return nil, err
	}
	return newSectionInput(s.name+" [slice="+name+"]", s.r, s.off+offset, length, nil), nil
}

func (s *sectionInput) RandomAccessSlice(offset, length int64) (RandomAccessInput, error) {
	if err := s.checkRange(offset, length); err != nil {
		return nil, err
	}
	return &sectionRandomAccess{
		name:   s.name,
		r:      s.r,
		off:    s.off + offset,
		length: length,
	}, nil
}

func (s *sectionInput) checkRange(offset, length int64) error {
	if offset < 0 || length < 0 || offset+length > s.length {
		return fmt.Errorf("%s: slice [%d, %d) out of bounds (length %d)", s.name, offset, offset+length, s.length)
	}
	return nil
}

func (s *sectionInput) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}

func (s *sectionInput) readFull(p []byte) error {
	n := int64(len(p))
	if s.pos+n > s.length {
		return eof(s.name, s.pos, n, s.length)
	}
	for len(p) > 0 {
		if s.bufLen > 0 && s.pos >= s.bufPos && s.pos < s.bufPos+int64(s.bufLen) {
			c := copy(p, s.buf[s.pos-s.bufPos:s.bufLen])
			p = p[c:]
			s.pos += int64(c)
			continue
		}
		if len(p) >= readBufferSize {
			// large reads bypass the buffer
			if err := readFullAt(s.r, p, s.off+s.pos); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			s.pos += int64(len(p))
			return nil
		}
		if s.buf == nil {
			s.buf = make([]byte, readBufferSize)
		}
		want := int64(len(s.buf))
		if rem := s.length - s.pos; rem < want {
			want = rem
		}
		if err := readFullAt(s.r, s.buf[:want], s.off+s.pos); err != nil {
			s.bufLen = 0
			return fmt.Errorf("%s: %w", s.name, err)
		}
		s.bufPos = s.pos
		s.bufLen = int(want)
	}
	return nil
}

func readFullAt(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

type sectionRandomAccess struct {
	name   string
	r      io.ReaderAt
	off    int64
	length int64
}

func (s *sectionRandomAccess) Length() int64 { return s.length }

func (s *sectionRandomAccess) read(pos int64, p []byte) error {
	if pos < 0 || pos+int64(len(p)) > s.length {
		return eof(s.name, pos, int64(len(p)), s.length)
	}
	if err := readFullAt(s.r, p, s.off+pos); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

func (s *sectionRandomAccess) ReadByteAt(pos int64) (byte, error) {
	var b [1]byte
	if err := s.read(pos, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *sectionRandomAccess) ReadShortAt(pos int64) (int16, error) {
	var b [2]byte
	if err := s.read(pos, b[:]); err != nil {
		return 0, err
	}
	return int16(NativeOrder.Uint16(b[:])), nil
}

func (s *sectionRandomAccess) ReadIntAt(pos int64) (int32, error) {
	var b [4]byte
	if err := s.read(pos, b[:]); err != nil {
		return 0, err
	}
	return int32(NativeOrder.Uint32(b[:])), nil
}

func (s *sectionRandomAccess) ReadLongAt(pos int64) (int64, error) {
	var b [8]byte
	if err := s.read(pos, b[:]); err != nil {
		return 0, err
	}
	return int64(NativeOrder.Uint64(b[:])), nil
}
