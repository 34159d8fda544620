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
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
)

func writeFile(t *testing.T, dir store.Directory, name string, version int32, id uuid.UUID, suffix string, body []byte) {
	t.Helper()
	out, err := dir.CreateOutput(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteHeader(out, "TestCodec", version, id, suffix); err != nil {
		t.Fatal(err)
	}
	if got, want := out.FilePointer(), HeaderLength("TestCodec", suffix); got != want {
		t.Fatalf("header length %d, HeaderLength says %d", got, want)
	}
	if err := out.WriteBytes(body); err != nil {
		t.Fatal(err)
	}
	if err := WriteFooter(out); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHeaderFooter(t *testing.T) {
	dir := store.NewRAMDirectory()
	id := uuid.New()
	body := []byte("hello, segment")
	writeFile(t, dir, "a", 3, id, "1z", body)

	in, err := dir.OpenInput("a")
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()
	ci := store.NewChecksumInput(in)
	v, err := CheckHeader(ci, "TestCodec", 1, 3, id, "1z")
	if err != nil {
		t.Fatal(err)
	}
	if v != 3 {
		t.Fatalf("version %d", v)
	}
	got := make([]byte, len(body))
	if err := ci.ReadBytes(got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("body %q", got)
	}
	if err := CheckFooter(ci); err != nil {
		t.Fatal(err)
	}
	if err := ChecksumEntireFile(in); err != nil {
		t.Fatal(err)
	}
	if _, err := RetrieveChecksum(in); err != nil {
		t.Fatal(err)
	}
}

func TestHeaderMismatch(t *testing.T) {
	dir := store.NewRAMDirectory()
	id := uuid.New()
	writeFile(t, dir, "a", 2, id, "", nil)

	check := func(name string, min, max int32, id uuid.UUID, suffix string) error {
		in, err := dir.OpenInput("a")
		if err != nil {
			t.Fatal(err)
		}
		defer in.Close()
		_, err = CheckHeader(in, name, min, max, id, suffix)
		return err
	}
	cases := []struct {
		name     string
		min, max int32
		id       uuid.UUID
		suffix   string
		want     error
	}{
		{"TestCodec", 1, 3, id, "", nil},
		{"Other", 1, 3, id, "", ErrCorrupt},
		{"TestCodec", 3, 4, id, "", ErrFormatTooOld},
		{"TestCodec", 0, 1, id, "", ErrFormatTooNew},
		{"TestCodec", 1, 3, uuid.New(), "", ErrCorrupt},
		{"TestCodec", 1, 3, id, "x", ErrCorrupt},
	}
	for i := range cases {
		c := &cases[i]
		err := check(c.name, c.min, c.max, c.id, c.suffix)
		if c.want == nil {
			if err != nil {
				t.Errorf("case %d: %s", i, err)
			}
			continue
		}
		if !errors.Is(err, c.want) {
			t.Errorf("case %d: got %v, want %v", i, err, c.want)
		}
	}
	// the format errors must be distinguishable from corruption
	if err := check("TestCodec", 0, 1, id, ""); errors.Is(err, ErrCorrupt) {
		t.Errorf("version error %v should not be corruption", err)
	}
}

func TestBadMagic(t *testing.T) {
	in := store.NewBytesInput("junk", []byte("not an index file at all"))
	_, err := CheckHeader(in, "TestCodec", 1, 1, uuid.Nil, "")
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("got %v", err)
	}
	// truncated header
	in = store.NewBytesInput("short", []byte{0x3f, 0xd7})
	_, err = CheckHeader(in, "TestCodec", 1, 1, uuid.Nil, "")
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("got %v", err)
	}
}

func TestFooterCorruption(t *testing.T) {
	dir := store.NewRAMDirectory()
	id := uuid.New()
	writeFile(t, dir, "a", 1, id, "", bytes.Repeat([]byte{0xaa}, 100))
	size, err := dir.FileLength("a")
	if err != nil {
		t.Fatal(err)
	}
	// flip one bit in the body and one in the stored checksum
	for _, off := range []int64{HeaderLength("TestCodec", "") + 50, size - 1} {
		d := store.NewRAMDirectory()
		writeFile(t, d, "a", 1, id, "", bytes.Repeat([]byte{0xaa}, 100))
		if err := d.Corrupt("a", off, 0x01); err != nil {
			t.Fatal(err)
		}
		in, err := d.OpenInput("a")
		if err != nil {
			t.Fatal(err)
		}
		err = ChecksumEntireFile(in)
		in.Close()
		if !errors.Is(err, ErrCorrupt) {
			t.Errorf("offset %d: got %v", off, err)
		}
	}
	// truncation
	in := store.NewBytesInput("tiny", []byte{1, 2, 3})
	if err := ChecksumEntireFile(in); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v", err)
	}
	if _, err := RetrieveChecksum(in); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v", err)
	}
}

func TestBlockChecksum(t *testing.T) {
	a := BlockChecksum([]byte{1, 2}, []byte("payload"))
	if a != BlockChecksum([]byte{1, 2}, []byte("payload")) {
		t.Fatal("checksum not deterministic")
	}
	if a == BlockChecksum([]byte{1, 3}, []byte("payload")) {
		t.Fatal("checksum ignores header")
	}
	if a == BlockChecksum([]byte{1, 2}, []byte("paylaod")) {
		t.Fatal("checksum ignores payload")
	}
}

func TestVersions(t *testing.T) {
	v := NewVersions("TestCodec", 2, map[int32]string{
		1: "one",
		2: "two",
		3: "three",
	})
	if v.Min() != 1 || v.Max() != 3 || v.MinProduction() != 2 {
		t.Fatalf("min=%d max=%d prod=%d", v.Min(), v.Max(), v.MinProduction())
	}
	var logged strings.Builder
	compat := &ReadOptions{Compat: true, Logger: log.New(&logged, "", 0)}
	cases := []struct {
		version int32
		opts    *ReadOptions
		want    string
		err     error
	}{
		{3, nil, "three", nil},
		{2, nil, "two", nil},
		{1, nil, "", ErrUnsupportedVersion},
		{1, &ReadOptions{}, "", ErrUnsupportedVersion},
		{1, compat, "one", nil},
		{0, compat, "", ErrFormatTooOld},
		{4, compat, "", ErrFormatTooNew},
	}
	for _, c := range cases {
		got, err := v.Lookup("res", c.version, c.opts)
		if !errors.Is(err, c.err) || (err == nil) != (c.err == nil) {
			t.Errorf("version %d: error %v, want %v", c.version, err, c.err)
		}
		if got != c.want {
			t.Errorf("version %d: got %q, want %q", c.version, got, c.want)
		}
	}
	if !strings.Contains(logged.String(), "compatibility") {
		t.Errorf("expected compatibility read to be logged; got %q", logged.String())
	}
}

func TestVersionsGap(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewVersions("TestCodec", 1, map[int32]int{1: 1, 3: 3})
}

func TestCacheBytes(t *testing.T) {
	var o *ReadOptions
	if o.CacheBytes() != DefaultBlockCacheBytes {
		t.Error("nil options should use the default")
	}
	if (&ReadOptions{BlockCacheBytes: -1}).CacheBytes() != 0 {
		t.Error("negative should disable")
	}
	if (&ReadOptions{BlockCacheBytes: 10}).CacheBytes() != 10 {
		t.Error("explicit value ignored")
	}
}
