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
	"errors"
	"fmt"
	"io/fs"

	"github.com/SnellerInc/segcodec/bitset"
	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/livedocs"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"

	"github.com/google/uuid"
)

// SegmentWriter writes one new segment.
type SegmentWriter struct {
	dir    store.Directory
	info   SegmentInfo
	stored *storedfields.Writer
	done   bool
}

// NewSegmentWriter starts a segment called name
// in dir whose stored fields use mode. It fails
// with storedfields.ErrInvalidMode before creating
// any file if mode is not valid.
func NewSegmentWriter(dir store.Directory, name string, mode storedfields.Mode) (*SegmentWriter, error) {
	f, err := storedfields.NewFormat(mode)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	sw, err := f.NewWriter(dir, name, id)
	if err != nil {
		return nil, err
	}
	return &SegmentWriter{
		dir: dir,
		info: SegmentInfo{
			Name: name,
			ID:   id,
			Mode: mode,
		},
		stored: sw,
	}, nil
}

// Name returns the segment name.
func (w *SegmentWriter) Name() string { return w.info.Name }

// NumDocs returns the number of documents added.
func (w *SegmentWriter) NumDocs() int { return w.stored.NumDocs() }

// AddDocument adds d as the next document.
func (w *SegmentWriter) AddDocument(d *document.Document) error {
	return w.stored.AddDocument(d)
}

// Seal finishes the segment, making it immutable,
// and returns its SegmentInfo.
func (w *SegmentWriter) Seal() (*SegmentInfo, error) {
	w.done = true
	n := w.stored.NumDocs()
	if err := w.stored.Finish(n); err != nil {
		w.deleteFiles()
		return nil, err
	}
	si := w.info
	si.DocCount = n
	si.Files = []string{
		storedfields.DataFile(si.Name),
		storedfields.IndexFile(si.Name),
		SegmentInfoFile(si.Name),
	}
	if err := writeSegmentInfo(w.dir, &si); err != nil {
		w.deleteFiles()
		return nil, err
	}
	if err := w.dir.Sync(si.Files); err != nil {
		w.deleteFiles()
		return nil, err
	}
	return &si, nil
}

// Abort discards the segment.
func (w *SegmentWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.stored.Close()
	return w.deleteFiles()
}

func (w *SegmentWriter) deleteFiles() error {
	var err error
	for _, name := range []string{
		storedfields.DataFile(w.info.Name),
		storedfields.IndexFile(w.info.Name),
		SegmentInfoFile(w.info.Name),
	} {
		if e := w.dir.DeleteFile(name); e != nil && !errors.Is(e, fs.ErrNotExist) && err == nil {
			err = e
		}
	}
	return err
}

// WriteLiveDocs persists live as the next live-docs
// generation of the segment described by c and
// returns the resulting state of the segment.
// c itself is not modified, so readers holding
// it keep seeing the previous generation.
func WriteLiveDocs(dir store.Directory, c *SegmentCommitInfo, live bitset.Bits) (*SegmentCommitInfo, error) {
	gen, err := nextLiveGen(dir, c)
	if err != nil {
		return nil, err
	}
	name := livedocs.FileName(c.Info.Name, gen)
	if err := livedocs.Write(dir, c.Info.liveDocs(), live, gen); err != nil {
		return nil, err
	}
	if err := dir.Sync([]string{name}); err != nil {
		return nil, err
	}
	var count int
	if f, ok := live.(interface{ Cardinality() int }); ok {
		count = f.Cardinality()
	} else {
		count = bitset.Copy(live).Cardinality()
	}
	return &SegmentCommitInfo{
		Info:     c.Info,
		DelGen:   gen,
		DelCount: c.Info.DocCount - count,
	}, nil
}

// nextLiveGen returns the first generation after
// c.DelGen that has no file yet. Files left by a
// write that failed are skipped rather than
// reused; they are deleted at the next commit.
func nextLiveGen(dir store.Directory, c *SegmentCommitInfo) (int64, error) {
	for gen := c.DelGen + 1; ; gen++ {
		_, err := dir.FileLength(livedocs.FileName(c.Info.Name, gen))
		if errors.Is(err, fs.ErrNotExist) {
			return gen, nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// SegmentReader reads one segment
// as of one SegmentCommitInfo.
type SegmentReader struct {
	commit      *SegmentCommitInfo
	stored      *storedfields.Reader
	live        bitset.Bits
	liveVersion int32
}

// OpenSegment opens the segment described by c.
func OpenSegment(dir store.Directory, c *SegmentCommitInfo, opts *codec.ReadOptions) (*SegmentReader, error) {
	si := c.Info
	stored, err := storedfields.Open(dir, si.Name, si.ID, si.DocCount, opts)
	if err != nil {
		return nil, err
	}
	r := &SegmentReader{commit: c, stored: stored}
	if stored.Mode() != si.Mode {
		stored.Close()
		return nil, codec.Corrupt(si.Name, "stored fields mode %s does not match segment info mode %s", stored.Mode(), si.Mode)
	}
	if c.DelGen == 0 {
		if c.DelCount != 0 {
			stored.Close()
			return nil, codec.Corrupt(si.Name, "%d deletions without a live-docs generation", c.DelCount)
		}
		r.live = bitset.MatchAll(si.DocCount)
		return r, nil
	}
	live, version, err := livedocs.ReadVersion(dir, si.liveDocs(), c.DelGen, c.DelCount, opts)
	if err != nil {
		stored.Close()
		return nil, err
	}
	r.live = live
	r.liveVersion = version
	return r, nil
}

// Commit returns the state of the
// segment that r was opened with.
func (r *SegmentReader) Commit() *SegmentCommitInfo { return r.commit }

// Document returns the stored fields of document id.
// Deleted documents can still be retrieved.
func (r *SegmentReader) Document(id int) (*document.Document, error) {
	return r.stored.Document(id)
}

// LiveDocs returns the live documents.
// The result must not be modified.
func (r *SegmentReader) LiveDocs() bitset.Bits { return r.live }

// IsDeleted reports whether document id is deleted.
func (r *SegmentReader) IsDeleted(id int) (bool, error) {
	if id < 0 || id >= r.MaxDoc() {
		return false, fmt.Errorf("%w: %d not in [0, %d)", storedfields.ErrOutOfBounds, id, r.MaxDoc())
	}
	return !r.live.Get(id), nil
}

// MaxDoc is the number of documents,
// including deleted documents.
func (r *SegmentReader) MaxDoc() int { return r.commit.Info.DocCount }

// NumDocs is the number of live documents.
func (r *SegmentReader) NumDocs() int { return r.commit.LiveCount() }

// StoredFields returns the stored-fields reader.
func (r *SegmentReader) StoredFields() *storedfields.Reader { return r.stored }

// LiveDocsVersion is the format version of the
// live-docs file, or zero if there is none.
func (r *SegmentReader) LiveDocsVersion() int32 { return r.liveVersion }

// CheckIntegrity verifies the checksums
// of the stored-fields files.
func (r *SegmentReader) CheckIntegrity() error { return r.stored.CheckIntegrity() }

func (r *SegmentReader) Close() error { return r.stored.Close() }
