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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"
)

// FSDirectory is a Directory rooted
// in a directory of the local filesystem.
// Inputs are read with positional reads
// (see os.File.ReadAt), so clones and
// slices never share a file offset.
type FSDirectory struct {
	Root string
	// Log, if non-nil, is used to
	// log file operations.
	Log func(f string, args ...interface{})
}

// NewFSDirectory creates root if necessary
// and returns an FSDirectory rooted there.
func NewFSDirectory(root string) (*FSDirectory, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, err
	}
	return &FSDirectory{Root: root}, nil
}

func (d *FSDirectory) path(name string) (string, error) {
	if !fs.ValidPath(name) || filepath.Base(name) != name {
		return "", fmt.Errorf("%s: %w", name, fs.ErrInvalid)
	}
	return filepath.Join(d.Root, name), nil
}

func (d *FSDirectory) logf(f string, args ...interface{}) {
	if d.Log != nil {
		d.Log(f, args...)
	}
}

func (d *FSDirectory) ListAll() ([]string, error) {
	ents, err := os.ReadDir(d.Root)
	if err != nil {
		return nil, err
	}
	var names []string
	for i := range ents {
		if ents[i].Type().IsRegular() {
			names = append(names, ents[i].Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (d *FSDirectory) FileLength(name string) (int64, error) {
	fp, err := d.path(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(fp)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (d *FSDirectory) CreateOutput(name string) (IndexOutput, error) {
	fp, err := d.path(name)
	if err != nil {
		return nil, err
	}
	d.logf("CreateOutput %s", name)
	f, err := os.OpenFile(fp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create %s: %w", name, ErrFileExists)
		}
		return nil, err
	}
	return newStreamOutput(name, f, f.Close), nil
}

func (d *FSDirectory) OpenInput(name string) (IndexInput, error) {
	fp, err := d.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return newSectionInput(name, f, 0, info.Size(), f), nil
}

func (d *FSDirectory) DeleteFile(name string) error {
	fp, err := d.path(name)
	if err != nil {
		return err
	}
	d.logf("DeleteFile %s", name)
	return os.Remove(fp)
}

func (d *FSDirectory) Rename(src, dest string) error {
	sp, err := d.path(src)
	if err != nil {
		return err
	}
	dp, err := d.path(dest)
	if err != nil {
		return err
	}
	d.logf("Rename %s -> %s", src, dest)
	return os.Rename(sp, dp)
}

func (d *FSDirectory) Sync(names []string) error {
	for _, name := range names {
		fp, err := d.path(name)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(fp, os.O_RDWR, 0)
		if err != nil {
			return err
		}
		err = f.Sync()
		f.Close()
		if err != nil {
			return fmt.Errorf("sync %s: %w", name, err)
		}
	}
	return nil
}

func (d *FSDirectory) Close() error { return nil }
