// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sectorcache implements the fixed-capacity, write-back sector
// cache from spec.md §4.1: lookup, insertion, clock-style eviction, dirty
// tracking and a scannable drain operation. It is a pure associative
// structure — it never calls the block device itself; callers wrap it with
// a read path that queries the cache, falls back to the device on a miss,
// inserts the fresh sector, and writes back anything the insert evicted.
//
// Grounded on pintos/src/filesys/sector_cache.c's clock_hand/valid/dirty/
// recently_accessed slot array, translated from a fixed global struct into
// an instance with its own mutex (spec.md §5: "The sector cache has its own
// independent mutex").
package sectorcache

import (
	"sync"

	"github.com/kernellab/blockfs/internal/blockdevice"
)

// Capacity is the number of slots in the cache (C = 64 per spec.md §3).
const Capacity = 64

type slot struct {
	id        blockdevice.SectorID
	valid     bool
	dirty     bool
	accessed  bool
	buf       blockdevice.Sector
}

// Cache is a fixed-capacity, write-back cache of sectors with clock
// replacement. The zero value is an empty cache, the same as New returns.
type Cache struct {
	mu        sync.Mutex
	slots     [Capacity]slot
	clockHand int
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{}
}

// Read returns a copy of the cached buffer for sector and reports whether
// it was present. A hit marks the slot recently-accessed.
func (c *Cache) Read(sector blockdevice.SectorID) (data blockdevice.Sector, hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(sector)
	if i < 0 {
		cacheMisses.Inc()
		return blockdevice.Sector{}, false
	}
	cacheHits.Inc()
	c.slots[i].accessed = true
	return c.slots[i].buf, true
}

// Write copies in into the cached slot for sector, marking it dirty and
// recently-accessed, and reports whether the sector was present.
func (c *Cache) Write(sector blockdevice.SectorID, in blockdevice.Sector) (hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(sector)
	if i < 0 {
		return false
	}
	c.slots[i].buf = in
	c.slots[i].accessed = true
	c.slots[i].dirty = true
	return true
}

// Eviction describes a slot's contents after it has been forced out of the
// cache so the caller can write it back to the device if dirty.
type Eviction struct {
	Sector blockdevice.SectorID
	Dirty  bool
	Data   blockdevice.Sector
}

// Insert installs (sector, in) into the slot chosen by the clock algorithm.
// If that slot held a valid sector, its prior contents are returned so the
// caller can write them back.
func (c *Cache) Insert(in blockdevice.Sector, sector blockdevice.SectorID, dirty bool) (evicted *Eviction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted = c.evictNolock()
	i := c.clockHand
	c.slots[i] = slot{id: sector, valid: true, dirty: dirty, buf: in}
	c.advanceClock()
	cacheInsertions.Inc()
	return evicted
}

// EvictAny forces one valid slot's eviction even if the cache is not full,
// choosing the victim by the clock among valid slots, and returns its
// prior contents. Returns nil only if the cache holds no valid sector.
func (c *Cache) EvictAny() *Eviction {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Two sweeps suffice: the first clears every accessed bit.
	for i := 0; i < 2*Capacity; i++ {
		s := &c.slots[c.clockHand]
		if s.valid && !s.accessed {
			return c.evictNolock()
		}
		s.accessed = false
		c.advanceClock()
	}
	return nil
}

// TakeOneDirty picks any dirty slot, invalidates it in place, and returns
// its contents. Used at shutdown to drain the cache. Returns nil if no slot
// is dirty.
func (c *Cache) TakeOneDirty() *Eviction {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].dirty {
			ev := &Eviction{Sector: c.slots[i].id, Dirty: true, Data: c.slots[i].buf}
			c.slots[i] = slot{}
			return ev
		}
	}
	return nil
}

// indexOf returns the slot index holding sector, or -1. Caller must hold mu.
func (c *Cache) indexOf(sector blockdevice.SectorID) int {
	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].id == sector {
			return i
		}
	}
	return -1
}

// evictNolock runs the clock algorithm: starting at clockHand, skip valid
// and recently-accessed slots (clearing the bit as we go), stop at the
// first slot that is either invalid or not recently accessed, and return
// that slot's prior contents (if any) without advancing past it — Insert
// and EvictAny are responsible for what happens to the now-empty slot.
// Caller must hold mu.
func (c *Cache) evictNolock() *Eviction {
	for c.slots[c.clockHand].valid && c.slots[c.clockHand].accessed {
		c.slots[c.clockHand].accessed = false
		c.advanceClock()
	}

	s := &c.slots[c.clockHand]
	var evicted *Eviction
	if s.valid {
		evicted = &Eviction{Sector: s.id, Dirty: s.dirty, Data: s.buf}
		cacheEvictions.Inc()
	}
	*s = slot{}
	return evicted
}

func (c *Cache) advanceClock() {
	c.clockHand++
	if c.clockHand == Capacity {
		c.clockHand = 0
	}
}
