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

	"github.com/SnellerInc/segcodec/store"
)

// WriteFooter writes a footer holding the
// checksum of everything written to out so far.
// The magic number and algorithm are covered
// by the checksum.
func WriteFooter(out store.IndexOutput) error {
	if err := writeBEInt(out, FooterMagic); err != nil {
		return err
	}
	if err := writeBEInt(out, uint32(ChecksumAlgorithm)); err != nil {
		return err
	}
	return out.WriteBytes(out.Checksum())
}

func readFooterPrefix(in store.DataInput, res string) error {
	magic, err := readBEInt(in)
	if err != nil {
		return AsCorrupt(res, err)
	}
	if magic != FooterMagic {
		return Corrupt(res, "footer magic %#x != expected %#x", magic, FooterMagic)
	}
	algo, err := readBEInt(in)
	if err != nil {
		return AsCorrupt(res, err)
	}
	if int32(algo) != ChecksumAlgorithm {
		return Corrupt(res, "unknown checksum algorithm %d", int32(algo))
	}
	return nil
}

// CheckFooter reads the footer from in, which
// must be positioned exactly at the start of
// the footer, and compares the stored checksum
// against the digest of the bytes read so far.
func CheckFooter(in *store.ChecksumInput) error {
	res := in.Name()
	if remain := in.Length() - in.Position(); remain != FooterLength {
		return Corrupt(res, "%d bytes remaining, expected footer of %d bytes", remain, FooterLength)
	}
	if err := readFooterPrefix(in, res); err != nil {
		return err
	}
	// the digest covers the magic and algorithm
	want := in.Checksum()
	got := make([]byte, ChecksumLength)
	if err := in.ReadBytes(got); err != nil {
		return AsCorrupt(res, err)
	}
	if !bytes.Equal(got, want) {
		return Corrupt(res, "checksum mismatch: stored %x, computed %x", got, want)
	}
	return nil
}

// RetrieveChecksum validates the structure of the
// footer of in without reading the whole file and
// returns the stored checksum. The position of in
// is left at the end of the file.
func RetrieveChecksum(in store.IndexInput) ([]byte, error) {
	res := in.Name()
	if in.Length() < FooterLength {
		return nil, Corrupt(res, "file too short (%d bytes) to hold a footer", in.Length())
	}
	if err := in.SeekTo(in.Length() - FooterLength); err != nil {
		return nil, AsCorrupt(res, err)
	}
	if err := readFooterPrefix(in, res); err != nil {
		return nil, err
	}
	sum := make([]byte, ChecksumLength)
	if err := in.ReadBytes(sum); err != nil {
		return nil, AsCorrupt(res, err)
	}
	return sum, nil
}

// ChecksumEntireFile reads all of in (through a
// clone, from the beginning) and verifies the
// footer checksum.
func ChecksumEntireFile(in store.IndexInput) error {
	if in.Length() < FooterLength {
		return Corrupt(in.Name(), "file too short (%d bytes) to hold a footer", in.Length())
	}
	c := in.Clone()
	if err := c.SeekTo(0); err != nil {
		return err
	}
	ci := store.NewChecksumInput(c)
	if err := ci.SeekTo(in.Length() - FooterLength); err != nil {
		return AsCorrupt(in.Name(), err)
	}
	return CheckFooter(ci)
}

// FooterStart returns the offset of the footer
// of a file of the given length.
func FooterStart(length int64) int64 { return length - FooterLength }
