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
	"fmt"
	"log"

	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// ReadOptions are the options shared by
// every codec reader.
type ReadOptions struct {
	// Compat enables reads of versions older
	// than the production retention window.
	// It should only be set by compatibility
	// tests and offline tooling.
	Compat bool
	// BlockCacheBytes bounds the memory used
	// to cache decompressed blocks per reader.
	// Zero means DefaultBlockCacheBytes; a
	// negative value disables caching.
	BlockCacheBytes int
	// Logger, if non-nil, receives diagnostics
	// such as compatibility-mode reads.
	Logger *log.Logger
}

// DefaultBlockCacheBytes is the default
// value of ReadOptions.BlockCacheBytes.
const DefaultBlockCacheBytes = 1 << 20

func (o *ReadOptions) logf(f string, args ...interface{}) {
	if o != nil && o.Logger != nil {
		o.Logger.Printf(f, args...)
	}
}

// CacheBytes returns the effective
// block cache budget.
func (o *ReadOptions) CacheBytes() int {
	if o == nil || o.BlockCacheBytes == 0 {
		return DefaultBlockCacheBytes
	}
	if o.BlockCacheBytes < 0 {
		return 0
	}
	return o.BlockCacheBytes
}

// Versions maps the on-disk versions of one
// codec to the decoder for each version.
//
// The table is closed: every version between
// Min and Max must have a decoder. Versions
// below MinProduction are only decoded when
// ReadOptions.Compat is set.
type Versions[T any] struct {
	name          string
	minProduction int32
	versions      []int32
	decoders      map[int32]T
}

// NewVersions constructs a version table for
// the codec called name. It panics if table
// has gaps or minProduction is not present,
// since either is a programming error.
func NewVersions[T any](name string, minProduction int32, table map[int32]T) *Versions[T] {
	v := &Versions[T]{
		name:          name,
		minProduction: minProduction,
		decoders:      table,
	}
	for k := range table {
		v.versions = append(v.versions, k)
	}
	slices.Sort(v.versions)
	if len(v.versions) == 0 {
		panic("codec.NewVersions: empty table for " + name)
	}
	for i := 1; i < len(v.versions); i++ {
		if v.versions[i] != v.versions[i-1]+1 {
			panic(fmt.Sprintf("codec.NewVersions: %s: gap between versions %d and %d", name, v.versions[i-1], v.versions[i]))
		}
	}
	if _, ok := table[minProduction]; !ok {
		panic(fmt.Sprintf("codec.NewVersions: %s: unknown production version %d", name, minProduction))
	}
	return v
}

// Name is the codec name written in headers.
func (v *Versions[T]) Name() string { return v.name }

// Min is the oldest known version.
func (v *Versions[T]) Min() int32 { return v.versions[0] }

// Max is the newest known version;
// it is the only version ever written.
func (v *Versions[T]) Max() int32 { return v.versions[len(v.versions)-1] }

// MinProduction is the oldest version
// decoded without ReadOptions.Compat.
func (v *Versions[T]) MinProduction() int32 { return v.minProduction }

// Lookup returns the decoder for version.
func (v *Versions[T]) Lookup(resource string, version int32, opts *ReadOptions) (T, error) {
	var zero T
	if version < v.Min() {
		return zero, fmt.Errorf("%s: %s version %d < min %d: %w", resource, v.name, version, v.Min(), ErrFormatTooOld)
	}
	if version > v.Max() {
		return zero, fmt.Errorf("%s: %s version %d > max %d: %w", resource, v.name, version, v.Max(), ErrFormatTooNew)
	}
	if version < v.minProduction {
		if opts == nil || !opts.Compat {
			return zero, fmt.Errorf("%s: %s version %d (production minimum %d): %w", resource, v.name, version, v.minProduction, ErrUnsupportedVersion)
		}
		opts.logf("%s: reading %s version %d in compatibility mode", resource, v.name, version)
	}
	return v.decoders[version], nil
}

// Open reads and validates the header of in and
// returns the decoder for the version it carries.
func (v *Versions[T]) Open(in store.IndexInput, id uuid.UUID, suffix string, opts *ReadOptions) (T, int32, error) {
	var zero T
	version, err := CheckHeader(in, v.name, v.Min(), v.Max(), id, suffix)
	if err != nil {
		return zero, 0, err
	}
	dec, err := v.Lookup(in.Name(), version, opts)
	if err != nil {
		return zero, 0, err
	}
	return dec, version, nil
}
