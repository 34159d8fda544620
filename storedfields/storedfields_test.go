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
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
)

func seeded(t *testing.T) *rand.Rand {
	seed := time.Now().UnixNano()
	t.Logf("seed: %d", seed)
	return rand.New(rand.NewSource(seed))
}

func randomDoc(rnd *rand.Rand, i int) *document.Document {
	d := document.New(
		document.String("id", fmt.Sprint(i)),
		document.Long("n", rnd.Int63()-rnd.Int63()),
	)
	switch rnd.Intn(4) {
	case 0:
		d.Add(document.String("body", strings.Repeat("lorem ipsum ", rnd.Intn(200))))
	case 1:
		b := make([]byte, rnd.Intn(3000))
		rnd.Read(b)
		d.Add(document.Binary("blob", b))
	case 2:
		d.Add(document.Double("d", rnd.NormFloat64()))
		d.Add(document.Float("f", rnd.Float32()))
	case 3:
		d.Add(document.Int("i", rnd.Int31()))
	}
	return d
}

func writeSegment(t *testing.T, dir store.Directory, name string, mode Mode, docs []*document.Document) uuid.UUID {
	t.Helper()
	f, err := NewFormat(mode)
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.New()
	w, err := f.NewWriter(dir, name, id)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range docs {
		if err := w.AddDocument(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Finish(len(docs)); err != nil {
		t.Fatal(err)
	}
	return id
}

func checkSegment(t *testing.T, r *Reader, docs []*document.Document) {
	t.Helper()
	for i := range docs {
		got, err := r.Document(i)
		if err != nil {
			t.Fatalf("document %d: %s", i, err)
		}
		if !got.Equal(docs[i]) {
			t.Fatalf("document %d: got %v, want %v", i, got.Fields, docs[i].Fields)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rnd := seeded(t)
	for _, mode := range Modes {
		for _, n := range []int{0, 1, 127, 128, 129, 2500} {
			dir := store.NewRAMDirectory()
			docs := make([]*document.Document, n)
			for i := range docs {
				docs[i] = randomDoc(rnd, i)
			}
			id := writeSegment(t, dir, "_0", mode, docs)
			r, err := Open(dir, "_0", id, n, nil)
			if err != nil {
				t.Fatalf("%s/%d: %s", mode, n, err)
			}
			if r.Mode() != mode || r.Version() != VersionCurrent {
				t.Fatalf("mode %s version %d", r.Mode(), r.Version())
			}
			if n > 0 && r.NumBlocks() == 0 {
				t.Fatal("no blocks")
			}
			checkSegment(t, r, docs)
			// and once more in reverse, through the cache
			for i := n - 1; i >= 0; i-- {
				got, err := r.Document(i)
				if err != nil {
					t.Fatal(err)
				}
				if !got.Equal(docs[i]) {
					t.Fatalf("document %d mismatch on second read", i)
				}
			}
			if err := r.CheckIntegrity(); err != nil {
				t.Fatal(err)
			}
			r.Close()
		}
	}
}

func TestBlockThresholds(t *testing.T) {
	small := func(i int) *document.Document {
		return document.New(document.String("field1", "value1"))
	}
	for _, mode := range Modes {
		dir := store.NewRAMDirectory()
		n := 3*mode.BlockDocs() + 1
		docs := make([]*document.Document, n)
		for i := range docs {
			docs[i] = small(i)
		}
		id := writeSegment(t, dir, "_0", mode, docs)
		r, err := Open(dir, "_0", id, n, nil)
		if err != nil {
			t.Fatal(err)
		}
		if r.NumBlocks() != 4 {
			t.Errorf("%s: %d blocks, want 4", mode, r.NumBlocks())
		}
		r.Close()

		// large documents flush on bytes
		dir = store.NewRAMDirectory()
		big := document.New(document.Binary("b", make([]byte, mode.BlockBytes())))
		id = writeSegment(t, dir, "_1", mode, []*document.Document{big, big, big})
		r, err = Open(dir, "_1", id, 3, nil)
		if err != nil {
			t.Fatal(err)
		}
		if r.NumBlocks() != 3 {
			t.Errorf("%s: %d blocks, want 3", mode, r.NumBlocks())
		}
		checkSegment(t, r, []*document.Document{big, big, big})
		r.Close()
	}
}

func TestInvalidMode(t *testing.T) {
	for _, m := range []Mode{0, 3, 255} {
		f, err := NewFormat(m)
		if !errors.Is(err, ErrInvalidMode) {
			t.Errorf("mode %d: got %v", m, err)
		}
		if f != nil {
			t.Errorf("mode %d: got a format", m)
		}
	}
	if _, err := ParseMode("fast"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode: got %v", err)
	}
	for _, m := range Modes {
		got, err := ParseMode(m.String())
		if err != nil || got != m {
			t.Errorf("ParseMode(%q) = %v, %v", m.String(), got, err)
		}
	}
}

func TestOutOfBounds(t *testing.T) {
	dir := store.NewRAMDirectory()
	docs := []*document.Document{document.New(document.String("a", "b"))}
	id := writeSegment(t, dir, "_0", SpeedOptimized, docs)
	r, err := Open(dir, "_0", id, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for _, i := range []int{-1, 1, 1 << 30} {
		if _, err := r.Document(i); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("document %d: got %v", i, err)
		}
	}
}

func TestFinishMismatch(t *testing.T) {
	dir := store.NewRAMDirectory()
	f, _ := NewFormat(RatioOptimized)
	w, err := f.NewWriter(dir, "_0", uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddDocument(document.New(document.String("a", "b"))); err != nil {
		t.Fatal(err)
	}
	if err := w.Finish(2); err == nil {
		t.Fatal("expected error")
	}
	if err := w.AddDocument(document.New()); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("add after close: %v", err)
	}
}

func TestDocCountMismatch(t *testing.T) {
	dir := store.NewRAMDirectory()
	docs := []*document.Document{document.New(document.String("a", "b"))}
	id := writeSegment(t, dir, "_0", SpeedOptimized, docs)
	if _, err := Open(dir, "_0", id, 2, nil); !errors.Is(err, codec.ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
	if _, err := Open(dir, "_0", uuid.New(), 1, nil); !errors.Is(err, codec.ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
}

func TestBlockCorruption(t *testing.T) {
	rnd := seeded(t)
	for _, mode := range Modes {
		docs := make([]*document.Document, 300)
		for i := range docs {
			docs[i] = randomDoc(rnd, i)
		}
		dir := store.NewRAMDirectory()
		id := writeSegment(t, dir, "_0", mode, docs)
		size, err := dir.FileLength(DataFile("_0"))
		if err != nil {
			t.Fatal(err)
		}
		start := codec.HeaderLength(DataCodec, "") + 1
		off := start + rnd.Int63n(codec.FooterStart(size)-start)
		if err := dir.Corrupt(DataFile("_0"), off, 0x10); err != nil {
			t.Fatal(err)
		}
		r, err := Open(dir, "_0", id, len(docs), nil)
		if err != nil {
			t.Fatal(err)
		}
		var failed int
		for i := range docs {
			got, err := r.Document(i)
			if err != nil {
				if !errors.Is(err, codec.ErrCorrupt) {
					t.Fatalf("document %d: unexpected error %v", i, err)
				}
				failed++
				continue
			}
			if !got.Equal(docs[i]) {
				t.Fatalf("%s: corruption at %d went undetected for document %d", mode, off, i)
			}
		}
		if failed == 0 {
			t.Errorf("%s: corruption at %d not reported by any document", mode, off)
		}
		if err := r.CheckIntegrity(); !errors.Is(err, codec.ErrCorrupt) {
			t.Errorf("CheckIntegrity: %v", err)
		}
		r.Close()
	}
}

func TestTruncatedIndex(t *testing.T) {
	dir := store.NewRAMDirectory()
	id := writeSegment(t, dir, "_0", SpeedOptimized, []*document.Document{document.New()})
	in, err := dir.OpenInput(IndexFile("_0"))
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, in.Length()-3)
	if err := in.ReadBytes(buf); err != nil {
		t.Fatal(err)
	}
	in.Close()
	dir.DeleteFile(IndexFile("_0"))
	out, err := dir.CreateOutput(IndexFile("_0"))
	if err != nil {
		t.Fatal(err)
	}
	out.WriteBytes(buf)
	out.Close()
	if _, err := Open(dir, "_0", id, 1, nil); !errors.Is(err, codec.ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
}

func TestMixedModes(t *testing.T) {
	rnd := seeded(t)
	dir := store.NewRAMDirectory()
	type seg struct {
		id   uuid.UUID
		mode Mode
		docs []*document.Document
	}
	segs := make([]seg, 6)
	for i := range segs {
		s := &segs[i]
		s.mode = Modes[rnd.Intn(len(Modes))]
		s.docs = make([]*document.Document, 1+rnd.Intn(400))
		for j := range s.docs {
			s.docs[j] = randomDoc(rnd, j)
		}
		s.id = writeSegment(t, dir, fmt.Sprintf("_%d", i), s.mode, s.docs)
	}
	for i := range segs {
		s := &segs[i]
		r, err := Open(dir, fmt.Sprintf("_%d", i), s.id, len(s.docs), nil)
		if err != nil {
			t.Fatal(err)
		}
		if r.Mode() != s.mode {
			t.Errorf("segment %d: mode %s, want %s", i, r.Mode(), s.mode)
		}
		checkSegment(t, r, s.docs)
		r.Close()
	}
}

func TestConcurrentReads(t *testing.T) {
	rnd := seeded(t)
	docs := make([]*document.Document, 1000)
	for i := range docs {
		docs[i] = randomDoc(rnd, i)
	}
	dir := store.NewRAMDirectory()
	id := writeSegment(t, dir, "_0", SpeedOptimized, docs)
	// a small cache forces evictions
	r, err := Open(dir, "_0", id, len(docs), &codec.ReadOptions{BlockCacheBytes: 64 << 10})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(seed))
			for k := 0; k < 500; k++ {
				i := rnd.Intn(len(docs))
				got, err := r.Document(i)
				if err != nil {
					errs <- err
					return
				}
				if !got.Equal(docs[i]) {
					errs <- fmt.Errorf("document %d mismatch", i)
					return
				}
			}
		}(rnd.Int63())
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if hits, _ := r.CacheStats(); hits == 0 {
		t.Error("expected some cache hits")
	}
}

func TestCacheDisabled(t *testing.T) {
	docs := []*document.Document{
		document.New(document.String("field1", "value1")),
		document.New(document.String("field2", "value2")),
	}
	dir := store.NewRAMDirectory()
	id := writeSegment(t, dir, "_0", RatioOptimized, docs)
	r, err := Open(dir, "_0", id, 2, &codec.ReadOptions{BlockCacheBytes: -1})
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	checkSegment(t, r, docs)
	checkSegment(t, r, docs)
	if hits, misses := r.CacheStats(); hits != 0 || misses != 4 {
		t.Errorf("hits=%d misses=%d", hits, misses)
	}
}

func TestFileDirectories(t *testing.T) {
	rnd := seeded(t)
	docs := make([]*document.Document, 200)
	for i := range docs {
		docs[i] = randomDoc(rnd, i)
	}
	fs, err := store.NewFSDirectory(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	id := writeSegment(t, fs, "_0", RatioOptimized, docs)
	mm, err := store.NewMmapDirectory(fs.Root)
	if err != nil {
		t.Fatal(err)
	}
	for _, dir := range []store.Directory{fs, mm} {
		r, err := Open(dir, "_0", id, len(docs), nil)
		if err != nil {
			t.Fatal(err)
		}
		checkSegment(t, r, docs)
		if err := r.CheckIntegrity(); err != nil {
			t.Fatal(err)
		}
		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
	}
}
