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

package storedfields

import (
	"fmt"
	"strings"
)

// Mode selects the trade-off between random
// access speed and compression ratio.
// The zero Mode is invalid.
type Mode uint8

const (
	// SpeedOptimized uses small blocks
	// and a fast compressor.
	SpeedOptimized Mode = iota + 1
	// RatioOptimized uses large blocks
	// and a slower, denser compressor.
	RatioOptimized
)

// Modes lists every valid Mode.
var Modes = []Mode{SpeedOptimized, RatioOptimized}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == SpeedOptimized || m == RatioOptimized
}

func (m Mode) String() string {
	switch m {
	case SpeedOptimized:
		return "speed"
	case RatioOptimized:
		return "ratio"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

// ParseMode parses the result of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "speed", "best_speed":
		return SpeedOptimized, nil
	case "ratio", "best_compression":
		return RatioOptimized, nil
	}
	return 0, fmt.Errorf("mode %q: %w", s, ErrInvalidMode)
}

// BlockBytes is the number of uncompressed bytes
// at which a pending block is flushed.
func (m Mode) BlockBytes() int {
	switch m {
	case SpeedOptimized:
		return 16 << 10
	case RatioOptimized:
		return 60 << 10
	}
	return 0
}

// BlockDocs is the number of documents at
// which a pending block is flushed.
func (m Mode) BlockDocs() int {
	switch m {
	case SpeedOptimized:
		return 128
	case RatioOptimized:
		return 1024
	}
	return 0
}

// Algorithm is the name of the compression
// algorithm (see compr.Compression) for m.
func (m Mode) Algorithm() string {
	switch m {
	case SpeedOptimized:
		return "s2"
	case RatioOptimized:
		return "zstd-better"
	}
	return ""
}
