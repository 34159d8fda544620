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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/index"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
mode: ratio
compat_reads: true
block_cache_bytes: 4096
max_buffered_docs: 2
`))
	if err != nil {
		t.Fatal(err)
	}
	mode, err := c.StoredFieldsMode()
	if err != nil || mode != storedfields.RatioOptimized {
		t.Fatalf("mode %v, %v", mode, err)
	}
	ro := c.ReadOptions(nil)
	if !ro.Compat || ro.BlockCacheBytes != 4096 {
		t.Fatalf("read options %+v", ro)
	}
	if c.MaxBufferedDocs != 2 {
		t.Fatalf("max buffered docs %d", c.MaxBufferedDocs)
	}
}

func TestDefaults(t *testing.T) {
	c, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if mode, _ := c.StoredFieldsMode(); mode != storedfields.SpeedOptimized {
		t.Fatalf("mode %s", mode)
	}
	if ro := c.ReadOptions(nil); ro.Compat || ro.BlockCacheBytes != 0 {
		t.Fatalf("read options %+v", ro)
	}
}

func TestInvalid(t *testing.T) {
	for _, text := range []string{
		"mode: fastest\n",
		"block_cache_bytes: -2\n",
		"max_buffered_docs: -1\n",
		"unknown_field: 1\n",
		"mode: [1, 2]\n",
	} {
		if _, err := Parse([]byte(text)); err == nil {
			t.Errorf("%q: expected an error", text)
		}
	}
}

func TestLoadAndWrite(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "segcodec.yaml")
	if err := os.WriteFile(path, []byte("mode: speed\nmax_buffered_docs: 2\n"), 0640); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	opts, err := c.WriterOptions(nil)
	if err != nil {
		t.Fatal(err)
	}
	dir := store.NewRAMDirectory()
	w, err := index.NewWriter(dir, opts...)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if err := w.AddDocument(document.New(document.Int("i", int32(i)))); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatal(err)
	}
	segs := w.Segments()
	if len(segs) != 3 {
		t.Fatalf("%d segments", len(segs))
	}
	for _, s := range segs {
		if s.Info.Mode != storedfields.SpeedOptimized {
			t.Fatalf("segment %s", s)
		}
	}
	if _, err := Load(filepath.Join(tmp, "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
