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

	"github.com/SnellerInc/segcodec/codec"
	"github.com/SnellerInc/segcodec/livedocs"
	"github.com/SnellerInc/segcodec/store"
	"github.com/SnellerInc/segcodec/storedfields"

	"github.com/google/uuid"
)

const (
	// SegmentInfoCodec is the codec name
	// of segment info (.si) files.
	SegmentInfoCodec = "SegcodecSegmentInfo"
	SegmentInfoExt   = "si"

	segmentInfoVersion = int32(1)
)

var infoVersions = codec.NewVersions(SegmentInfoCodec, segmentInfoVersion, map[int32]struct{}{
	segmentInfoVersion: {},
})

// SegmentInfo describes a sealed segment.
// It never changes once the segment is sealed.
type SegmentInfo struct {
	Name     string
	ID       uuid.UUID
	DocCount int
	Mode     storedfields.Mode
	// Files are the files written
	// when the segment was sealed.
	Files []string
}

func (si *SegmentInfo) liveDocs() livedocs.Segment {
	return livedocs.Segment{Name: si.Name, ID: si.ID, DocCount: si.DocCount}
}

// SegmentInfoFile returns the name
// of the .si file of segment.
func SegmentInfoFile(segment string) string {
	return segment + "." + SegmentInfoExt
}

func writeSegmentInfo(dir store.Directory, si *SegmentInfo) error {
	out, err := dir.CreateOutput(SegmentInfoFile(si.Name))
	if err != nil {
		return err
	}
	err = func() error {
		if err := codec.WriteHeader(out, SegmentInfoCodec, segmentInfoVersion, si.ID, ""); err != nil {
			return err
		}
		if err := out.WriteInt(int32(si.DocCount)); err != nil {
			return err
		}
		if err := out.WriteByte(byte(si.Mode)); err != nil {
			return err
		}
		if err := out.WriteVInt(int32(len(si.Files))); err != nil {
			return err
		}
		for _, f := range si.Files {
			if err := out.WriteString(f); err != nil {
				return err
			}
		}
		return codec.WriteFooter(out)
	}()
	if err2 := out.Close(); err == nil {
		err = err2
	}
	return err
}

// ReadSegmentInfo reads the .si file of the
// segment with the given name and id.
func ReadSegmentInfo(dir store.Directory, name string, id uuid.UUID, opts *codec.ReadOptions) (*SegmentInfo, error) {
	raw, err := dir.OpenInput(SegmentInfoFile(name))
	if err != nil {
		return nil, err
	}
	defer raw.Close()
	res := raw.Name()
	in := store.NewChecksumInput(raw)
	if _, _, err := infoVersions.Open(in, id, "", opts); err != nil {
		return nil, err
	}
	si := &SegmentInfo{Name: name, ID: id}
	n, err := in.ReadInt()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if n < 0 {
		return nil, codec.Corrupt(res, "invalid document count %d", n)
	}
	si.DocCount = int(n)
	mode, err := in.ReadByte()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	si.Mode = storedfields.Mode(mode)
	if !si.Mode.Valid() {
		return nil, codec.Corrupt(res, "invalid compression mode %d", mode)
	}
	files, err := in.ReadVInt()
	if err != nil {
		return nil, codec.AsCorrupt(res, err)
	}
	if files < 0 || int64(files) > in.Length() {
		return nil, codec.Corrupt(res, "invalid file count %d", files)
	}
	si.Files = make([]string, files)
	for i := range si.Files {
		if si.Files[i], err = in.ReadString(); err != nil {
			return nil, codec.AsCorrupt(res, err)
		}
	}
	if err := codec.CheckFooter(in); err != nil {
		return nil, err
	}
	return si, nil
}

// SegmentCommitInfo is the state of a segment
// as of a commit: its immutable SegmentInfo and
// the generation of its live documents.
//
// A SegmentCommitInfo is a value; applying
// deletions produces a new one.
type SegmentCommitInfo struct {
	Info *SegmentInfo
	// DelGen is the live-docs generation,
	// or zero if no document was ever deleted.
	DelGen   int64
	DelCount int
}

// LiveCount is the number of live documents.
func (c *SegmentCommitInfo) LiveCount() int { return c.Info.DocCount - c.DelCount }

// Files returns every file referenced
// by this state of the segment.
func (c *SegmentCommitInfo) Files() []string {
	files := append([]string(nil), c.Info.Files...)
	if c.DelGen > 0 {
		files = append(files, livedocs.FileName(c.Info.Name, c.DelGen))
	}
	return files
}

func (c *SegmentCommitInfo) String() string {
	return fmt.Sprintf("%s(docs=%d, del=%d, gen=%d, mode=%s)", c.Info.Name, c.Info.DocCount, c.DelCount, c.DelGen, c.Info.Mode)
}
