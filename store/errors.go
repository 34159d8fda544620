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
	"io"
)

var (
	// ErrUnsupported is returned when an
	// operation is requested from a resource
	// that lacks the capability, for example
	// Slice on an input whose SupportsSlice
	// method returns false.
	ErrUnsupported = errors.New("store: unsupported operation")

	// ErrClosed is returned from operations
	// on a closed Directory or writer.
	ErrClosed = errors.New("store: closed")

	// ErrFileExists is returned by CreateOutput
	// when the named file already exists.
	ErrFileExists = errors.New("store: file already exists")

	// ErrMalformed is returned when a variable-length
	// value or string length cannot be decoded.
	ErrMalformed = errors.New("store: malformed data")
)

func eof(name string, pos, n, length int64) error {
	return fmt.Errorf("%s: read %d bytes at %d past length %d: %w", name, n, pos, length, io.ErrUnexpectedEOF)
}
