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

package compr

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
)

func blockData() []byte {
	var buf bytes.Buffer
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&buf, "doc%d:field=value%d;", i, i%17)
	}
	return buf.Bytes()
}

func TestNames(t *testing.T) {
	want := []string{"none", "s2", "zstd", "zstd-better"}
	got := Names()
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if Compression("lz4") != nil || Decompression("lz4") != nil {
		t.Fatal("unknown algorithm should yield nil")
	}
}

func TestRoundTrip(t *testing.T) {
	ctl := blockData()
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			comp := Compression(name)
			if n := comp.Name(); n != name {
				t.Fatalf("bad compressor name %q", n)
			}
			dec := Decompression(name)
			if dec.Name() != name {
				t.Fatalf("bad decompressor name %q", dec.Name())
			}
			// Compress appends
			prefix := []byte("hdr")
			cmp := comp.Compress(ctl, append([]byte(nil), prefix...))
			if !bytes.HasPrefix(cmp, prefix) {
				t.Fatal("prefix clobbered")
			}
			cmp = cmp[len(prefix):]
			got, err := Decompress(dec, cmp, len(ctl))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, ctl) {
				t.Fatal("mismatch")
			}
			if _, err := Decompress(dec, cmp, len(ctl)-1); err == nil {
				t.Fatal("expected error for short length")
			}
			if _, err := Decompress(dec, cmp, len(ctl)+1); err == nil {
				t.Fatal("expected error for long length")
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	for _, name := range Names() {
		cmp := Compression(name).Compress(nil, nil)
		got, err := Decompress(Decompression(name), cmp, 0)
		if err != nil {
			t.Fatalf("%s: %s", name, err)
		}
		if len(got) != 0 {
			t.Fatalf("%s: got %d bytes", name, len(got))
		}
	}
}

func TestGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xfe, 0x01}, 64)
	for _, name := range []string{"s2", "zstd"} {
		if _, err := Decompress(Decompression(name), garbage, 1000); err == nil {
			t.Errorf("%s: decoded garbage", name)
		}
	}
}

func TestConcurrentDecompress(t *testing.T) {
	ctl := blockData()
	cmp := Compression("zstd-better").Compress(ctl, nil)
	dec := Decompression("zstd-better")
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				got, err := Decompress(dec, cmp, len(ctl))
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(got, ctl) {
					errs <- fmt.Errorf("mismatch")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
