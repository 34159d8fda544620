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

// Package compr wraps the block compressors
// used by the segment codecs.
//
// A block is compressed as one unit and is
// always decompressed into a buffer of exactly
// its recorded length; any other outcome is
// an error.
package compr

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/slices"
)

// Compressor is implemented by every
// block compression algorithm.
type Compressor interface {
	// Name is the name of the algorithm.
	Name() string
	// Compress appends the compressed
	// form of src to dst.
	Compress(src, dst []byte) []byte
}

// Decompressor is implemented by every
// block decompression algorithm.
//
// Decompress must be safe to call from
// multiple goroutines at once.
type Decompressor interface {
	Name() string
	// Decompress decodes src into dst and fails
	// unless exactly len(dst) bytes were produced.
	Decompress(src, dst []byte) error
}

type algorithm struct {
	compressor   func() Compressor
	decompressor Decompressor
}

var algorithms = map[string]algorithm{
	"none": {
		compressor:   func() Compressor { return identity{} },
		decompressor: identity{},
	},
	"s2": {
		compressor:   func() Compressor { return snappy2{} },
		decompressor: snappy2{},
	},
	"zstd": {
		compressor:   func() Compressor { return newZstd("zstd", zstd.SpeedDefault) },
		decompressor: zstdDecompressor{"zstd"},
	},
	"zstd-better": {
		compressor:   func() Compressor { return newZstd("zstd-better", zstd.SpeedBetterCompression) },
		decompressor: zstdDecompressor{"zstd-better"},
	},
}

// Names returns the names of every
// supported algorithm in sorted order.
func Names() []string {
	out := make([]string, 0, len(algorithms))
	for name := range algorithms {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Compression returns a new Compressor for
// the named algorithm, or nil if the name is
// not one of Names. A Compressor should not be
// shared between goroutines.
func Compression(name string) Compressor {
	a, ok := algorithms[name]
	if !ok {
		return nil
	}
	return a.compressor()
}

// Decompression returns the Decompressor
// for data produced by the named algorithm,
// or nil if the name is unknown.
func Decompression(name string) Decompressor {
	a, ok := algorithms[name]
	if !ok {
		return nil
	}
	return a.decompressor
}

// Decompress decodes src, which must
// expand to exactly n bytes, into a
// newly allocated buffer.
func Decompress(d Decompressor, src []byte, n int) ([]byte, error) {
	dst := make([]byte, n)
	if err := d.Decompress(src, dst); err != nil {
		return nil, fmt.Errorf("%s: %w", d.Name(), err)
	}
	return dst, nil
}

func lengthError(want, got int) error {
	return fmt.Errorf("decompressed %d bytes, block records %d", got, want)
}

type identity struct{}

func (identity) Name() string { return "none" }

func (identity) Compress(src, dst []byte) []byte { return append(dst, src...) }

func (identity) Decompress(src, dst []byte) error {
	if len(src) != len(dst) {
		return lengthError(len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

type snappy2 struct{}

func (snappy2) Name() string { return "s2" }

func (snappy2) Compress(src, dst []byte) []byte {
	return append(dst, s2.Encode(nil, src)...)
}

func (snappy2) Decompress(src, dst []byte) error {
	n, err := s2.DecodedLen(src)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return lengthError(len(dst), n)
	}
	_, err = s2.Decode(dst, src)
	return err
}

type zstdCompressor struct {
	name string
	enc  *zstd.Encoder
}

func newZstd(name string, level zstd.EncoderLevel) Compressor {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1))
	if err != nil {
		panic(err)
	}
	return &zstdCompressor{name: name, enc: enc}
}

func (z *zstdCompressor) Name() string { return z.name }

func (z *zstdCompressor) Compress(src, dst []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
)

// sharedDecoder returns the process-wide
// zstd decoder; DecodeAll is safe for
// concurrent use.
func sharedDecoder() *zstd.Decoder {
	decoderOnce.Do(func() {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
		if err != nil {
			panic(err)
		}
		decoder = d
	})
	return decoder
}

type zstdDecompressor struct {
	name string
}

func (z zstdDecompressor) Name() string { return z.name }

func (z zstdDecompressor) Decompress(src, dst []byte) error {
	out, err := sharedDecoder().DecodeAll(src, dst[:0:len(dst)])
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return lengthError(len(dst), len(out))
	}
	// a larger frame than recorded makes the
	// decoder reallocate instead of filling dst
	if len(out) > 0 && &out[0] != &dst[0] {
		return lengthError(len(dst), len(out))
	}
	return nil
}
