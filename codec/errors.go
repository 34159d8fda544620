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

package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/SnellerInc/segcodec/store"
)

var (
	// ErrCorrupt is matched (see errors.Is) by
	// every error caused by data that fails an
	// integrity check: checksum mismatches,
	// bad magic numbers, truncated files and
	// internally inconsistent metadata.
	ErrCorrupt = errors.New("index corrupt")

	// ErrFormatTooOld is returned when a file
	// header carries a version older than the
	// oldest version the reader knows about.
	ErrFormatTooOld = errors.New("format version too old")

	// ErrFormatTooNew is returned when a file
	// header carries a version newer than the
	// newest version the reader knows about.
	ErrFormatTooNew = errors.New("format version too new")

	// ErrUnsupportedVersion is returned when a
	// file header carries a known version that
	// is outside of the production retention
	// window and compatibility reads have not
	// been enabled (see ReadOptions.Compat).
	ErrUnsupportedVersion = errors.New("format version requires compatibility mode")
)

// CorruptError describes an integrity failure
// in a particular resource. It matches ErrCorrupt
// and unwraps to its cause, if any.
type CorruptError struct {
	Resource string
	Msg      string
	Err      error
}

func (c *CorruptError) Error() string {
	s := fmt.Sprintf("%s: %s (resource=%s)", ErrCorrupt, c.Msg, c.Resource)
	if c.Err != nil {
		s += ": " + c.Err.Error()
	}
	return s
}

// Is implements errors.Is.
func (c *CorruptError) Is(target error) bool { return target == ErrCorrupt }

func (c *CorruptError) Unwrap() error { return c.Err }

// Corrupt returns a *CorruptError for resource.
func Corrupt(resource, f string, args ...interface{}) error {
	return &CorruptError{Resource: resource, Msg: fmt.Sprintf(f, args...)}
}

// AsCorrupt converts err into a *CorruptError
// if it indicates that resource is truncated or
// malformed; other errors are returned unchanged.
func AsCorrupt(resource string, err error) error {
	if err == nil || errors.Is(err, ErrCorrupt) {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &CorruptError{Resource: resource, Msg: "truncated", Err: err}
	}
	if errors.Is(err, store.ErrMalformed) {
		return &CorruptError{Resource: resource, Msg: "malformed", Err: err}
	}
	return err
}
