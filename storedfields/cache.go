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

package storedfields

import (
	"container/list"
	"sync"
)

// block is a decompressed block
type block struct {
	offset  int64
	docBase int
	// ends[i] is the end offset of
	// document docBase+i within data
	ends []int
	data []byte
}

func (b *block) size() int { return len(b.data) + 8*len(b.ends) }

// blockCache is an LRU cache of
// decompressed blocks keyed by offset.
type blockCache struct {
	lock  sync.Mutex
	ll    *list.List
	table map[int64]*list.Element
	max   int
	used  int

	hits, misses int64
}

func newBlockCache(max int) *blockCache {
	return &blockCache{
		ll:    list.New(),
		table: make(map[int64]*list.Element),
		max:   max,
	}
}

func (c *blockCache) get(off int64) (*block, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.table[off]; ok {
		c.ll.MoveToFront(e)
		c.hits++
		return e.Value.(*block), true
	}
	c.misses++
	return nil, false
}

func (c *blockCache) put(b *block) {
	n := b.size()
	if n > c.max {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if e, ok := c.table[b.offset]; ok {
		// raced with another reader
		c.ll.MoveToFront(e)
		return
	}
	c.table[b.offset] = c.ll.PushFront(b)
	c.used += n
	for c.used > c.max {
		e := c.ll.Back()
		old := e.Value.(*block)
		c.ll.Remove(e)
		delete(c.table, old.offset)
		c.used -= old.size()
	}
}

func (c *blockCache) stats() (hits, misses int64) {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.hits, c.misses
}
