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

package backcompat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/SnellerInc/segcodec/bitset"
	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/livedocs"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"

	"github.com/google/uuid"
)

func seeded(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	t.Logf("seed: %d", seed)
	return rand.New(rand.NewSource(seed))
}

func docs(rnd *rand.Rand, n int) []*document.Document {
	out := make([]*document.Document, n)
	for i := range out {
		out[i] = document.New(
			document.String("field1", "value1"),
			document.String("field2", fmt.Sprintf("value%d", i)),
			document.Int("i", int32(i)),
			document.Long("l", rnd.Int63()),
			document.Double("d", rnd.Float64()),
			document.Float("f", float32(math.Inf(-1))),
		)
	}
	return out
}

func TestStoredFieldsVersions(t *testing.T) {
	rnd := seeded(t)
	for _, version := range []int32{storedfields.VersionBigEndian, storedfields.VersionChecksum} {
		for _, mode := range storedfields.Modes {
			dir := store.NewRAMDirectory()
			id := uuid.New()
			want := docs(rnd, 300)
			if err := StoredFields(dir, "_0", id, mode, version, want); err != nil {
				t.Fatal(err)
			}
			opts := &codec.ReadOptions{}
			if version < storedfields.VersionChecksum {
				_, err := storedfields.Open(dir, "_0", id, len(want), opts)
				if !errors.Is(err, codec.ErrUnsupportedVersion) {
					t.Fatalf("v%d without compat: got %v", version, err)
				}
				var logged strings.Builder
				opts = &codec.ReadOptions{Compat: true, Logger: log.New(&logged, "", 0)}
				defer func() {
					if logged.Len() == 0 {
						t.Error("compatibility read was not logged")
					}
				}()
			}
			r, err := storedfields.Open(dir, "_0", id, len(want), opts)
			if err != nil {
				t.Fatalf("v%d %s: %s", version, mode, err)
			}
			if r.Version() != version || r.Mode() != mode {
				t.Fatalf("version %d mode %s", r.Version(), r.Mode())
			}
			for i := range want {
				got, err := r.Document(i)
				if err != nil {
					t.Fatal(err)
				}
				if !got.Equal(want[i]) {
					t.Fatalf("v%d %s: document %d: got %v, want %v", version, mode, i, got.Fields, want[i].Fields)
				}
			}
			if err := r.CheckIntegrity(); err != nil {
				t.Fatal(err)
			}
			r.Close()
		}
	}
	if err := StoredFields(store.NewRAMDirectory(), "_0", uuid.New(), storedfields.SpeedOptimized, storedfields.VersionCurrent, nil); err == nil {
		t.Fatal("the current version must not be written here")
	}
}

// The legacy layout must really be big-endian:
// read without transcoding, a fixed-width value
// comes back byte-reversed.
func TestStoredFieldsByteOrder(t *testing.T) {
	dir := store.NewRAMDirectory()
	id := uuid.New()
	d := document.New(document.Long("l", 0x0102030405060708))
	if err := StoredFields(dir, "_0", id, storedfields.SpeedOptimized, storedfields.VersionBigEndian, []*document.Document{d}); err != nil {
		t.Fatal(err)
	}
	in, err := dir.OpenInput(storedfields.IndexFile("_0"))
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	// header, docCount=1, blockCount=1, then the first entry
	if err := in.SeekTo(codec.HeaderLength(storedfields.IndexCodec, "") + 2); err != nil {
		t.Fatal(err)
	}
	raw, err := in.ReadLong()
	if err != nil {
		t.Fatal(err)
	}
	want := codec.HeaderLength(storedfields.DataCodec, "") + 1
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(want))
	if uint64(raw) != binary.LittleEndian.Uint64(buf[:]) {
		t.Fatalf("raw offset %#x is not the big-endian encoding of %d", raw, want)
	}
	rev := store.WrapInput(in, binary.BigEndian)
	if err := rev.SeekTo(codec.HeaderLength(storedfields.IndexCodec, "") + 2); err != nil {
		t.Fatal(err)
	}
	if got, _ := rev.ReadLong(); got != want {
		t.Fatalf("reversed read %d, want %d", got, want)
	}
}

func TestLegacyCorruption(t *testing.T) {
	rnd := seeded(t)
	dir := store.NewRAMDirectory()
	id := uuid.New()
	want := docs(rnd, 50)
	if err := StoredFields(dir, "_0", id, storedfields.RatioOptimized, storedfields.VersionChecksum, want); err != nil {
		t.Fatal(err)
	}
	// flip a bit in the compressed payload of the only block
	size, _ := dir.FileLength(storedfields.DataFile("_0"))
	if err := dir.Corrupt(storedfields.DataFile("_0"), codec.FooterStart(size)-3, 0x20); err != nil {
		t.Fatal(err)
	}
	r, err := storedfields.Open(dir, "_0", id, len(want), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if _, err := r.Document(0); !errors.Is(err, codec.ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
}

func TestLiveDocsVersion1(t *testing.T) {
	rnd := seeded(t)
	seg := livedocs.Segment{Name: "_0", ID: uuid.New(), DocCount: 777}
	set := bitset.NewSet(seg.DocCount)
	for i := 0; i < seg.DocCount; i++ {
		if rnd.Intn(4) == 0 {
			set.Clear(i)
		}
	}
	del := seg.DocCount - set.Cardinality()
	dir := store.NewRAMDirectory()
	if err := LiveDocs(dir, seg, set, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := livedocs.Read(dir, seg, 1, del, nil); !errors.Is(err, codec.ErrUnsupportedVersion) {
		t.Fatalf("without compat: got %v", err)
	}
	got, version, err := livedocs.ReadVersion(dir, seg, 1, del, &codec.ReadOptions{Compat: true})
	if err != nil {
		t.Fatal(err)
	}
	if version != livedocs.VersionBigEndian {
		t.Fatalf("version %d", version)
	}
	if got.Cardinality() != set.Cardinality() {
		t.Fatalf("cardinality %d, want %d", got.Cardinality(), set.Cardinality())
	}
	for i := 0; i < seg.DocCount; i++ {
		if got.Get(i) != set.Get(i) {
			t.Fatalf("bit %d mismatch", i)
		}
	}
	// the legacy file and a current file hold the
	// same bits but different bytes
	if err := livedocs.Write(dir, seg, set, 2); err != nil {
		t.Fatal(err)
	}
	a := readAll(t, dir, livedocs.FileName("_0", 1))
	b := readAll(t, dir, livedocs.FileName("_0", 2))
	if bytes.Equal(a, b) {
		t.Fatal("legacy and current encodings should differ")
	}
	if err := LiveDocs(dir, seg, bitset.MatchAll(1), 3); !errors.Is(err, livedocs.ErrLengthMismatch) {
		t.Fatalf("got %v", err)
	}
}

func readAll(t *testing.T, dir store.Directory, name string) []byte {
	in, err := dir.OpenInput(name)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	buf := make([]byte, in.Length())
	if err := in.ReadBytes(buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

// Segments written in different versions and
// modes coexist in one directory; each file
// is decoded according to its own header.
func TestMixedVersions(t *testing.T) {
	rnd := seeded(t)
	dir := store.NewRAMDirectory()
	type seg struct {
		name    string
		id      uuid.UUID
		version int32
		docs    []*document.Document
	}
	var segs []seg
	for i, version := range []int32{storedfields.VersionBigEndian, storedfields.VersionChecksum, storedfields.VersionCurrent} {
		s := seg{name: fmt.Sprintf("_%d", i), id: uuid.New(), version: version, docs: docs(rnd, 10+rnd.Intn(200))}
		mode := storedfields.Modes[rnd.Intn(len(storedfields.Modes))]
		if version == storedfields.VersionCurrent {
			f, err := storedfields.NewFormat(mode)
			if err != nil {
				t.Fatal(err)
			}
			w, err := f.NewWriter(dir, s.name, s.id)
			if err != nil {
				t.Fatal(err)
			}
			for _, d := range s.docs {
				if err := w.AddDocument(d); err != nil {
					t.Fatal(err)
				}
			}
			if err := w.Finish(len(s.docs)); err != nil {
				t.Fatal(err)
			}
		} else if err := StoredFields(dir, s.name, s.id, mode, version, s.docs); err != nil {
			t.Fatal(err)
		}
		segs = append(segs, s)
	}
	opts := &codec.ReadOptions{Compat: true}
	for _, s := range segs {
		r, err := storedfields.Open(dir, s.name, s.id, len(s.docs), opts)
		if err != nil {
			t.Fatal(err)
		}
		if r.Version() != s.version {
			t.Errorf("%s: version %d, want %d", s.name, r.Version(), s.version)
		}
		for i, d := range s.docs {
			got, err := r.Document(i)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(d) {
				t.Fatalf("%s: document %d mismatch", s.name, i)
			}
		}
		r.Close()
	}
}
