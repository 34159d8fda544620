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

package main

import (
	"fmt"
	"io"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/index"
	"github.com/SnellerInc/segcodec/store"
)

var hsizes = []byte{'K', 'M', 'G', 'T', 'P', 'E'}

func human(size int64) string {
	dec := int64(0)
	trail := -1
	for size >= 1024 {
		trail++
		// parts-per-1024 to parts-per-1000
		dec = ((size%1024)*1000 + 512) / 1024
		size /= 1024
	}
	if trail < 0 {
		return fmt.Sprintf("%d", size)
	}
	return fmt.Sprintf("%d.%03d %ciB", size, dec, hsizes[trail])
}

func fileSize(dir store.Directory, names []string) int64 {
	total := int64(0)
	for _, name := range names {
		if n, err := dir.FileLength(name); err == nil {
			total += n
		}
	}
	return total
}

// check writes a description of the newest
// commit in dir to w. If verify is set, the
// checksums of the stored-fields files are
// verified too; the first failure is returned.
func check(w io.Writer, dir store.Directory, opts *codec.ReadOptions, verify bool) error {
	r, err := index.OpenDirectory(dir, opts)
	if err != nil {
		return err
	}
	defer r.Close()
	fmt.Fprintf(w, "commit %d: %d segments, %d live of %d documents (host order %s)\n",
		r.Generation(), len(r.Segments()), r.NumDocs(), r.MaxDoc(), store.HostOrder())
	var failed error
	for _, s := range r.Segments() {
		c := s.Commit()
		sf := s.StoredFields()
		fmt.Fprintf(w, "\t%s: %d/%d live, stored fields v%d (%s, %d blocks), %s on disk",
			c.Info.Name, s.NumDocs(), s.MaxDoc(), sf.Version(), sf.Mode(), sf.NumBlocks(), human(fileSize(dir, c.Files())))
		if c.DelGen > 0 {
			fmt.Fprintf(w, ", live docs v%d gen %d", s.LiveDocsVersion(), c.DelGen)
		}
		if !verify {
			fmt.Fprintln(w)
			continue
		}
		if err := s.CheckIntegrity(); err != nil {
			fmt.Fprintf(w, ", CORRUPT: %s\n", err)
			if failed == nil {
				failed = fmt.Errorf("segment %s: %w", c.Info.Name, err)
			}
			continue
		}
		fmt.Fprintln(w, ", ok")
	}
	return failed
}
