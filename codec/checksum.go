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
	"github.com/dchest/siphash"
)

// fixed keys; block checksums detect
// corruption, they do not authenticate
const (
	blockKey0 = uint64(0x736e656c6c657231)
	blockKey1 = uint64(0x626c6f636b73756d)
)

// BlockChecksum returns the checksum stored
// alongside a compressed block. It covers the
// block header (counts and lengths) and the
// compressed payload, in that order.
func BlockChecksum(header, payload []byte) uint64 {
	h := siphash.New(blockKeyBytes[:])
	h.Write(header)
	h.Write(payload)
	return h.Sum64()
}

var blockKeyBytes = func() (k [16]byte) {
	for i := 0; i < 8; i++ {
		k[i] = byte(blockKey0 >> (8 * i))
		k[8+i] = byte(blockKey1 >> (8 * i))
	}
	return k
}()
