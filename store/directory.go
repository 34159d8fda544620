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

// Package store implements the byte-level
// storage primitives used by the segment
// codecs: directories of named files,
// sequential and random-access inputs,
// checksummed outputs, and the byte-order
// transcoding wrappers that allow formats
// written in either byte order to be read
// by the same code.
package store

import (
	"bytes"
	"fmt"
	"io/fs"
	"sync"

	"golang.org/x/exp/slices"
)

// Directory is a flat collection of
// write-once files.
//
// A Directory does not coordinate writers;
// callers must ensure that at most one
// writer produces a given file.
type Directory interface {
	// ListAll returns the sorted names
	// of all files in the directory.
	ListAll() ([]string, error)
	// FileLength returns the length of the named file.
	FileLength(name string) (int64, error)
	// CreateOutput creates a new file.
	// It fails with ErrFileExists if the
	// file is already present.
	CreateOutput(name string) (IndexOutput, error)
	// OpenInput opens an existing file.
	OpenInput(name string) (IndexInput, error)
	// DeleteFile removes the named file.
	DeleteFile(name string) error
	// Rename atomically renames a file,
	// replacing dest if it exists.
	Rename(src, dest string) error
	// Sync makes the named files durable.
	Sync(names []string) error
	Close() error
}

// RAMDirectory is a Directory that
// keeps its files in memory.
type RAMDirectory struct {
	lock   sync.Mutex
	files  map[string][]byte
	closed bool
}

// NewRAMDirectory returns an empty RAMDirectory.
func NewRAMDirectory() *RAMDirectory {
	return &RAMDirectory{files: make(map[string][]byte)}
}

func (d *RAMDirectory) ListAll() ([]string, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	names := make([]string, 0, len(d.files))
	for name := range d.files {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (d *RAMDirectory) FileLength(name string) (int64, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	buf, ok := d.files[name]
	if !ok {
		return 0, notExist("length", name)
	}
	return int64(len(buf)), nil
}

// CreateOutput implements Directory.CreateOutput.
// The file becomes visible (empty) immediately
// and receives its contents when the output is closed.
func (d *RAMDirectory) CreateOutput(name string) (IndexOutput, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	if _, ok := d.files[name]; ok {
		return nil, fmt.Errorf("create %s: %w", name, ErrFileExists)
	}
	d.files[name] = nil
	buf := new(bytes.Buffer)
	return newStreamOutput(name, buf, func() error {
		d.lock.Lock()
		defer d.lock.Unlock()
		d.files[name] = buf.Bytes()
		return nil
	}), nil
}

func (d *RAMDirectory) OpenInput(name string) (IndexInput, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	buf, ok := d.files[name]
	if !ok {
		return nil, notExist("open", name)
	}
	return NewBytesInput(name, buf), nil
}

func (d *RAMDirectory) DeleteFile(name string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if _, ok := d.files[name]; !ok {
		return notExist("delete", name)
	}
	delete(d.files, name)
	return nil
}

func (d *RAMDirectory) Rename(src, dest string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	buf, ok := d.files[src]
	if !ok {
		return notExist("rename", src)
	}
	delete(d.files, src)
	d.files[dest] = buf
	return nil
}

func (d *RAMDirectory) Sync(names []string) error { return nil }

func (d *RAMDirectory) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.closed = true
	return nil
}

// Corrupt overwrites the byte at off in the
// named file by xoring it with mask.
// It exists so that tests can exercise
// corruption detection.
func (d *RAMDirectory) Corrupt(name string, off int64, mask byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	buf, ok := d.files[name]
	if !ok {
		return notExist("corrupt", name)
	}
	if off < 0 || off >= int64(len(buf)) {
		return fmt.Errorf("corrupt %s: offset %d out of range", name, off)
	}
	cp := slices.Clone(buf)
	cp[off] ^= mask
	d.files[name] = cp
	return nil
}

func notExist(op, name string) error {
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
}
