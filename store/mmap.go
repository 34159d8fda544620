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
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
)

// MmapDirectory is an FSDirectory that
// memory-maps files opened for reading.
type MmapDirectory struct {
	FSDirectory
}

// NewMmapDirectory creates root if necessary
// and returns an MmapDirectory rooted there.
func NewMmapDirectory(root string) (*MmapDirectory, error) {
	d, err := NewFSDirectory(root)
	if err != nil {
		return nil, err
	}
	return &MmapDirectory{FSDirectory: *d}, nil
}

type unmapper struct {
	mem mmap.MMap
}

func (u *unmapper) Close() error {
	return u.mem.Unmap()
}

func (d *MmapDirectory) OpenInput(name string) (IndexInput, error) {
	fp, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() > math.MaxInt {
		return nil, fmt.Errorf("mapped file size %d exceeds max integer", info.Size())
	}
	if info.Size() == 0 {
		// zero-length mappings are not permitted
		return NewBytesInput(name, nil), nil
	}
	mem, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", name, err)
	}
	return newSectionInput(name, bytes.NewReader(mem), 0, int64(len(mem)), &unmapper{mem: mem}), nil
}
