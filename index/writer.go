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
	"log"
	"path"
	"strconv"
	"strings"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/document"
	"github.com/SnellerInc/segcodec/livedocs"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"

	"github.com/RoaringBitmap/roaring"
)

// Option is an optional argument
// to NewWriter.
type Option func(w *Writer)

// WithLogger is an option that
// can be passed to NewWriter to
// have it log flushes, merges, commits
// and file deletions. If no logger is
// set, nothing is logged.
func WithLogger(l *log.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// WithMode sets the compression mode of new
// segments. The default is SpeedOptimized.
func WithMode(m storedfields.Mode) Option {
	return func(w *Writer) {
		w.mode = m
	}
}

// WithReadOptions sets the options used
// when the writer reads existing segments.
func WithReadOptions(o codec.ReadOptions) Option {
	return func(w *Writer) {
		w.ropts = o
	}
}

// WithMaxBufferedDocs makes the writer seal
// the segment being written once it holds n
// documents. Zero (the default) means that
// segments are only sealed by Flush, Commit,
// DeleteByTerm and ForceMerge.
func WithMaxBufferedDocs(n int) Option {
	return func(w *Writer) {
		w.maxBuffered = n
	}
}

// Writer adds documents to an index as a series
// of segments, applies deletions as new live-docs
// generations, and publishes commit points.
//
// A Writer is the only writer of its directory,
// and it must only be used from one goroutine
// at a time.
type Writer struct {
	dir         store.Directory
	mode        storedfields.Mode
	maxBuffered int
	logger      *log.Logger
	ropts       codec.ReadOptions

	committed *SegmentInfos
	infos     *SegmentInfos
	pending   *SegmentWriter
	changed   bool
}

// NewWriter opens a Writer on dir, starting from
// the newest commit in dir (if any). Files in dir
// that do not belong to that commit are deleted.
func NewWriter(dir store.Directory, opts ...Option) (*Writer, error) {
	w := &Writer{
		dir:  dir,
		mode: storedfields.SpeedOptimized,
	}
	for _, o := range opts {
		o(w)
	}
	if _, err := storedfields.NewFormat(w.mode); err != nil {
		return nil, err
	}
	if w.maxBuffered < 0 {
		return nil, fmt.Errorf("index: invalid max buffered docs %d", w.maxBuffered)
	}
	infos, err := ReadCommit(dir, &w.ropts)
	if errors.Is(err, ErrNoCommit) {
		infos = &SegmentInfos{}
	} else if err != nil {
		return nil, err
	} else {
		w.committed = infos
	}
	w.infos = infos.clone()
	w.logf("opened index at generation %d with %d segments", infos.Generation, len(infos.Segments))
	if err := w.deleteUnused(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) logf(f string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Printf(f, args...)
	}
}

// SetMode sets the compression mode of segments
// started after the call. Segments already
// written keep their own mode.
func (w *Writer) SetMode(m storedfields.Mode) error {
	if _, err := storedfields.NewFormat(m); err != nil {
		return err
	}
	w.mode = m
	return nil
}

// Segments returns the current (possibly
// uncommitted) state of every sealed segment.
func (w *Writer) Segments() []*SegmentCommitInfo {
	return append([]*SegmentCommitInfo(nil), w.infos.Segments...)
}

// AddDocument adds d to the segment being written,
// starting a new segment if necessary.
func (w *Writer) AddDocument(d *document.Document) error {
	if w.pending == nil {
		name := "_" + strconv.FormatInt(w.infos.Counter, 36)
		sw, err := NewSegmentWriter(w.dir, name, w.mode)
		if err != nil {
			return err
		}
		w.infos.Counter++
		w.pending = sw
	}
	if err := w.pending.AddDocument(d); err != nil {
		return err
	}
	w.changed = true
	if w.maxBuffered > 0 && w.pending.NumDocs() >= w.maxBuffered {
		return w.Flush()
	}
	return nil
}

// Flush seals the segment being written, if any.
// The segment becomes part of the index at the
// next Commit.
func (w *Writer) Flush() error {
	sw := w.pending
	if sw == nil {
		return nil
	}
	w.pending = nil
	if sw.NumDocs() == 0 {
		return sw.Abort()
	}
	si, err := sw.Seal()
	if err != nil {
		return err
	}
	w.logf("flushed segment %s: %d docs, mode %s", si.Name, si.DocCount, si.Mode)
	w.infos.Segments = append(w.infos.Segments, &SegmentCommitInfo{Info: si})
	return nil
}

// DeleteByTerm marks every live document whose
// field called field has the string value value
// as deleted, and returns how many documents
// were deleted. Each affected segment gets a new
// live-docs generation; readers that are already
// open keep seeing the previous one.
func (w *Writer) DeleteByTerm(field, value string) (int, error) {
	if err := w.Flush(); err != nil {
		return 0, err
	}
	total := 0
	var keep []*SegmentCommitInfo
	segments := w.infos.Segments
	for i, c := range segments {
		next, n, err := w.deleteFrom(c, func(d *document.Document) bool {
			f := d.Field(field)
			return f != nil && f.StringValue() == value
		})
		if err != nil {
			// keep the generations already written so
			// that a retry starts after them
			w.infos.Segments = append(keep, segments[i:]...)
			if total > 0 {
				w.changed = true
			}
			return total, err
		}
		total += n
		if next.LiveCount() == 0 {
			w.logf("dropping fully deleted segment %s", next.Info.Name)
			continue
		}
		keep = append(keep, next)
	}
	w.infos.Segments = keep
	if total > 0 {
		w.changed = true
	}
	return total, nil
}

func (w *Writer) deleteFrom(c *SegmentCommitInfo, match func(*document.Document) bool) (*SegmentCommitInfo, int, error) {
	r, err := OpenSegment(w.dir, c, &w.ropts)
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()
	hits := roaring.New()
	prev := r.LiveDocs()
	for id := 0; id < r.MaxDoc(); id++ {
		if !prev.Get(id) {
			continue
		}
		d, err := r.Document(id)
		if err != nil {
			return nil, 0, err
		}
		if match(d) {
			hits.Add(uint32(id))
		}
	}
	if hits.IsEmpty() {
		return c, 0, nil
	}
	live, n, err := livedocs.ApplyDeletes(prev, hits)
	if err != nil {
		return nil, 0, err
	}
	next, err := WriteLiveDocs(w.dir, c, live)
	if err != nil {
		return nil, 0, err
	}
	w.logf("deleted %d docs from %s (live-docs generation %d)", n, c.Info.Name, next.DelGen)
	return next, n, nil
}

// ForceMerge merges segments until at most
// maxSegments remain. The newest segments are
// merged together, so document order is preserved.
// Deleted documents are not copied.
func (w *Writer) ForceMerge(maxSegments int) error {
	if maxSegments < 1 {
		return fmt.Errorf("index: invalid max segments %d", maxSegments)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	segs := w.infos.Segments
	if len(segs) <= maxSegments {
		return nil
	}
	split := maxSegments - 1
	merged, err := w.merge(segs[split:])
	if err != nil {
		return err
	}
	next := append([]*SegmentCommitInfo(nil), segs[:split]...)
	if merged != nil {
		next = append(next, merged)
	}
	w.infos.Segments = next
	w.changed = true
	return nil
}

func (w *Writer) merge(src []*SegmentCommitInfo) (*SegmentCommitInfo, error) {
	name := "_" + strconv.FormatInt(w.infos.Counter, 36)
	w.infos.Counter++
	sw, err := NewSegmentWriter(w.dir, name, w.mode)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, c := range src {
		names = append(names, c.Info.Name)
		if err := w.copyLive(sw, c); err != nil {
			sw.Abort()
			return nil, err
		}
	}
	if sw.NumDocs() == 0 {
		w.logf("merge of %s produced no documents", strings.Join(names, ","))
		return nil, sw.Abort()
	}
	si, err := sw.Seal()
	if err != nil {
		return nil, err
	}
	w.logf("merged %s into %s: %d docs, mode %s", strings.Join(names, ","), si.Name, si.DocCount, si.Mode)
	return &SegmentCommitInfo{Info: si}, nil
}

func (w *Writer) copyLive(dst *SegmentWriter, c *SegmentCommitInfo) error {
	r, err := OpenSegment(w.dir, c, &w.ropts)
	if err != nil {
		return err
	}
	defer r.Close()
	live := r.LiveDocs()
	for id := 0; id < r.MaxDoc(); id++ {
		if !live.Get(id) {
			continue
		}
		d, err := r.Document(id)
		if err != nil {
			return err
		}
		if err := dst.AddDocument(d); err != nil {
			return err
		}
	}
	return nil
}

// Commit flushes the segment being written and
// publishes a new commit point. Files that are
// no longer referenced are deleted.
func (w *Writer) Commit() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if !w.changed && w.committed != nil {
		return nil
	}
	infos := w.infos.clone()
	infos.Generation++
	if err := writeCommit(w.dir, infos); err != nil {
		return err
	}
	w.logf("committed generation %d: %d segments, %d live docs", infos.Generation, len(infos.Segments), infos.NumDocs())
	w.committed = infos
	w.infos = infos.clone()
	w.changed = false
	return w.deleteUnused()
}

// Close discards every change made since the
// last Commit and releases the writer.
func (w *Writer) Close() error {
	if w.pending != nil {
		w.pending.Abort()
		w.pending = nil
	}
	if w.committed != nil {
		w.infos = w.committed.clone()
	} else {
		w.infos = &SegmentInfos{Counter: w.infos.Counter}
	}
	return w.deleteUnused()
}

// isIndexFile reports whether name
// is a file managed by a Writer.
func isIndexFile(name string) bool {
	if _, ok := ParseCommitFile(name); ok {
		return true
	}
	if strings.HasPrefix(name, pendingPrefix+CommitPrefix) {
		return true
	}
	switch strings.TrimPrefix(path.Ext(name), ".") {
	case storedfields.DataExtension, storedfields.IndexExtension, SegmentInfoExt, livedocs.Extension:
		return strings.HasPrefix(name, "_")
	}
	return false
}

// deleteUnused deletes the index files that are
// referenced neither by the last commit nor by
// the current state of the writer.
func (w *Writer) deleteUnused() error {
	keep := make(map[string]bool)
	if w.committed != nil {
		for _, f := range w.committed.Files() {
			keep[f] = true
		}
	}
	for _, c := range w.infos.Segments {
		for _, f := range c.Files() {
			keep[f] = true
		}
	}
	if w.pending != nil {
		keep[storedfields.DataFile(w.pending.Name())] = true
		keep[storedfields.IndexFile(w.pending.Name())] = true
	}
	names, err := w.dir.ListAll()
	if err != nil {
		return err
	}
	for _, name := range names {
		if keep[name] || !isIndexFile(name) {
			continue
		}
		if err := w.dir.DeleteFile(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		w.logf("deleted unreferenced file %s", name)
	}
	return nil
}
