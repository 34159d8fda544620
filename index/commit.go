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
	"strconv"
	"strings"

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/store"

	"github.com/google/uuid"
)

const (
	// CommitCodec is the codec name
	// of segments_N files.
	CommitCodec   = "SegcodecCommit"
	CommitPrefix  = "segments_"
	pendingPrefix = "pending_"

	commitVersion = int32(1)
)

var commitVersions = codec.NewVersions(CommitCodec, commitVersion, map[int32]struct{}{
	commitVersion: {},
})

// ErrNoCommit is returned when a
// directory holds no commit point.
var ErrNoCommit = errors.New("index: no commit found")

// CommitFile returns the name of
// the commit file of generation gen.
func CommitFile(gen int64) string {
	return CommitPrefix + strconv.FormatInt(gen, 36)
}

// ParseCommitFile returns the generation
// of a commit file name.
func ParseCommitFile(name string) (int64, bool) {
	if !strings.HasPrefix(name, CommitPrefix) {
		return 0, false
	}
	gen, err := strconv.ParseInt(name[len(CommitPrefix):], 36, 64)
	if err != nil || gen < 1 {
		return 0, false
	}
	return gen, true
}

// SegmentInfos is a commit point: the list of
// segments, and their live-docs generations,
// that make up the index.
type SegmentInfos struct {
	// Generation of the commit file
	// this was read from or written to.
	Generation int64
	// Counter names new segments.
	Counter  int64
	Segments []*SegmentCommitInfo
}

// LatestCommit returns the generation of the
// newest commit file in dir, or ErrNoCommit.
func LatestCommit(dir store.Directory) (int64, error) {
	names, err := dir.ListAll()
	if err != nil {
		return 0, err
	}
	var max int64
	for _, name := range names {
		if gen, ok := ParseCommitFile(name); ok && gen > max {
			max = gen
		}
	}
	if max == 0 {
		return 0, ErrNoCommit
	}
	return max, nil
}

// ReadCommit reads the newest commit point in dir.
func ReadCommit(dir store.Directory, opts *codec.ReadOptions) (*SegmentInfos, error) {
	gen, err := LatestCommit(dir)
	if err != nil {
		return nil, err
	}
	return ReadCommitGeneration(dir, gen, opts)
}

// ReadCommitGeneration reads commit generation gen,
// along with the SegmentInfo of every segment.
func ReadCommitGeneration(dir store.Directory, gen int64, opts *codec.ReadOptions) (*SegmentInfos, error) {
	raw, err := dir.OpenInput(CommitFile(gen))
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	res := raw.Name()
	in := store.NewChecksumInput(raw)
	h, err := codec.ReadHeader(in)
	if err != nil {
		return nil, err
	}
	if h.Name != CommitCodec {
		return nil, codec.Corrupt(res, "codec mismatch: actual %q vs expected %q", h.Name, CommitCodec)
	}
	if _, err := commitVersions.Lookup(res, h.Version, opts); err != nil {
		return nil, err
	}
	if h.Suffix != strconv.FormatInt(gen, 36) {
		return nil, codec.Corrupt(res, "suffix %q does not match generation %d", h.Suffix, gen)
	}
	infos := &SegmentInfos{}
	if infos.Generation, err = in.ReadLong(); err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if infos.Generation != gen {
		return nil, codec.Corrupt(res, "generation %d stored in commit %d", infos.Generation, gen)
	}
	if infos.Counter, err = in.ReadLong(); err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	n, err := in.ReadInt()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if n < 0 || int64(n) > in.Length() {
		return nil, codec.Corrupt(res, "invalid segment count %d", n)
	}
	type entry struct {
		name     string
		id       uuid.UUID
		delGen   int64
		delCount int32
	}
	entries := make([]entry, n)
	for i := range entries {
		e := &entries[i]
		if e.name, err = in.ReadString(); err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
		if err := in.ReadBytes(e.id[:]); err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
		if e.delGen, err = in.ReadLong(); err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
		if e.delCount, err = in.ReadInt(); err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
	}
	if err := codec.CheckFooter(in); err != nil {
		return nil, err
	}
	for i := range entries {
		e := &entries[i]
		si, err := ReadSegmentInfo(dir, e.name, e.id, opts)
		if err != nil {
			return nil, fmt.Errorf("commit %d: segment %s: %w", gen, e.name, err)
		}
		if e.delGen < 0 || e.delCount < 0 || int(e.delCount) > si.DocCount {
			return nil, codec.Corrupt(res, "segment %s: invalid deletions (gen=%d, count=%d)", e.name, e.delGen, e.delCount)
		}
		infos.Segments = append(infos.Segments, &SegmentCommitInfo{
			Info:     si,
			DelGen:   e.delGen,
			DelCount: int(e.delCount),
		})
	}
	return infos, nil
}

// writeCommit writes infos as commit generation
// infos.Generation. The file is written under a
// temporary name, synced, and then renamed, so
// that a partially written commit is never
// visible to ReadCommit.
func writeCommit(dir store.Directory, infos *SegmentInfos) error {
	name := CommitFile(infos.Generation)
	tmp := pendingPrefix + name
	out, err := dir.CreateOutput(tmp)
	if err != nil {
		return err
	}
	err = func() error {
		if err := codec.WriteHeader(out, CommitCodec, commitVersion, uuid.New(), strconv.FormatInt(infos.Generation, 36)); err != nil {
			return err
		}
		if err := out.WriteLong(infos.Generation); err != nil {
			return err
		}
		if err := out.WriteLong(infos.Counter); err != nil {
			return err
		}
		if err := out.WriteInt(int32(len(infos.Segments))); err != nil {
			return err
		}
		for _, s := range infos.Segments {
			if err := out.WriteString(s.Info.Name); err != nil {
				return err
			}
			if err := out.WriteBytes(s.Info.ID[:]); err != nil {
				return err
			}
			if err := out.WriteLong(s.DelGen); err != nil {
				return err
			}
			if err := out.WriteInt(int32(s.DelCount)); err != nil {
				return err
			}
		}
		return codec.WriteFooter(out)
	}()
	if err2 := out.Close(); err == nil {
		err = err2
	}
	if err == nil {
		err = dir.Sync([]string{tmp})
	}
	if err == nil {
		err = dir.Rename(tmp, name)
	}
	if err != nil {
		dir.DeleteFile(tmp)
		return err
	}
	return nil
}

// Files returns every file referenced by infos,
// including the commit file itself.
func (s *SegmentInfos) Files() []string {
	files := []string{CommitFile(s.Generation)}
	for _, c := range s.Segments {
		files = append(files, c.Files()...)
	}
	return files
}

// NumDocs is the number of live documents.
func (s *SegmentInfos) NumDocs() int {
	n := 0
	for _, c := range s.Segments {
		n += c.LiveCount()
	}
	return n
}

func (s *SegmentInfos) clone() *SegmentInfos {
	return &SegmentInfos{
		Generation: s.Generation,
		Counter:    s.Counter,
		Segments:   append([]*SegmentCommitInfo(nil), s.Segments...),
	}
}
