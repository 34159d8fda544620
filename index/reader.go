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

package index

import (
	"fmt"
	"sort"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"
)

// DirectoryReader is a point-in-time view of
// every segment of one commit. Document ids are
// global: the documents of each segment follow
// those of the segments before it.
//
// A DirectoryReader is safe for concurrent use.
type DirectoryReader struct {
	infos    *SegmentInfos
	segments []*SegmentReader
	// starts[i] is the global id of
	// the first document of segments[i]
	starts  []int
	maxDoc  int
	numDocs int
}

// OpenDirectory opens the newest commit in dir.
func OpenDirectory(dir store.Directory, opts *codec.ReadOptions) (*DirectoryReader, error) {
	infos, err := ReadCommit(dir, opts)
	if err != nil {
		return nil, err
	}
	return OpenCommit(dir, infos, opts)
}

// OpenCommit opens the segments of infos.
// Each segment is decoded according to the
// versions recorded in its own files.
func OpenCommit(dir store.Directory, infos *SegmentInfos, opts *codec.ReadOptions) (*DirectoryReader, error) {
	r := &DirectoryReader{infos: infos}
	for _, c := range infos.Segments {
		s, err := OpenSegment(dir, c, opts)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("segment %s: %w", c.Info.Name, err)
		}
		r.segments = append(r.segments, s)
		r.starts = append(r.starts, r.maxDoc)
		r.maxDoc += s.MaxDoc()
		r.numDocs += s.NumDocs()
	}
	return r, nil
}

// Generation is the generation of the commit.
func (r *DirectoryReader) Generation() int64 { return r.infos.Generation }

// Segments returns the segment readers in order.
func (r *DirectoryReader) Segments() []*SegmentReader { return r.segments }

// MaxDoc is the number of documents,
// including deleted documents.
func (r *DirectoryReader) MaxDoc() int { return r.maxDoc }

// NumDocs is the number of live documents.
func (r *DirectoryReader) NumDocs() int { return r.numDocs }

func (r *DirectoryReader) locate(id int) (*SegmentReader, int, error) {
	if id < 0 || id >= r.maxDoc {
		return nil, 0, fmt.Errorf("%w: %d not in [0, %d)", storedfields.ErrOutOfBounds, id, r.maxDoc)
	}
	i := sort.Search(len(r.starts), func(i int) bool { return r.starts[i] > id }) - 1
	return r.segments[i], id - r.starts[i], nil
}

// Document returns the stored fields
// of the document with global id.
func (r *DirectoryReader) Document(id int) (*document.Document, error) {
	s, local, err := r.locate(id)
	if err != nil {
		return nil, err
	}
	return s.Document(local)
}

// IsDeleted reports whether the document
// with global id is deleted.
func (r *DirectoryReader) IsDeleted(id int) (bool, error) {
	s, local, err := r.locate(id)
	if err != nil {
		return false, err
	}
	return s.IsDeleted(local)
}

// Close closes every segment.
func (r *DirectoryReader) Close() error {
	var err error
	for _, s := range r.segments {
		if e := s.Close(); err == nil {
			err = e
		}
	}
	return err
}
