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

// Package inode implements the inode layer from spec.md §4.2: turning a
// sector index into an in-memory file handle with byte-addressable
// read/write and on-demand growth, via direct/single-indirect/
// double-indirect addressing.
//
// Grounded on pintos/src/filesys/inode.c (byte_to_sector, inode_extend,
// inode_read_at, inode_write_at, the open_inodes list and open_cnt/
// deny_write_cnt/removed fields) and on the teacher's fs/inode/
// lookup_count.go for the open-count/destroy-on-zero pattern. Unlike the
// teacher's per-inode inode.Mu, every exported method here assumes the
// caller already holds the facade's single coarse lock (spec.md §5) —
// there is no lock in this package, matching the "single coarse-grained
// filesystem mutex ... is the consistency boundary for directory and
// inode state" rule.
package inode

import (
	"fmt"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/freemap"
	"github.com/kernellab/blockfs/internal/fserrors"
	"github.com/kernellab/blockfs/internal/sectorcache"
)

// Inode is the in-memory handle for one on-disk inode (spec.md §3). All
// fields are GUARDED_BY the facade lock.
type Inode struct {
	sector         blockdevice.SectorID
	openCount      int
	removed        bool
	denyWriteCount int

	direct         blockdevice.SectorID
	singleIndirect blockdevice.SectorID
	doubleIndirect blockdevice.SectorID
	length         int32
	isDir          bool
}

// Sector returns the inode's own on-disk sector (its inode number).
func (in *Inode) Sector() blockdevice.SectorID { return in.sector }

// Length returns the inode's current byte length.
func (in *Inode) Length() int64 { return int64(in.length) }

// IsDir reports whether the inode is marked as a directory.
func (in *Inode) IsDir() bool { return in.isDir }

// OpenCount returns the number of live openers sharing in, exposed for
// invariant checking (spec.md §8 property 1).
func (in *Inode) OpenCount() int { return in.openCount }

// Layer owns the open-inode registry: at most one in-memory Inode per
// sector across the process (spec.md §3 invariant), keyed by sector
// exactly as pintos's open_inodes list is keyed, but via a map instead of
// a linear list since nothing here requires list order.
type Layer struct {
	dev  *sectorcache.CachedDevice
	fm   *freemap.Map
	open map[blockdevice.SectorID]*Inode
}

// NewLayer constructs an inode layer over dev (for sector I/O) and fm (for
// allocating/releasing data and indirect sectors).
func NewLayer(dev *sectorcache.CachedDevice, fm *freemap.Map) *Layer {
	return &Layer{dev: dev, fm: fm, open: make(map[blockdevice.SectorID]*Inode)}
}

// OpenSectors returns the sectors currently registered as open, for
// invariant checking by the facade.
func (l *Layer) OpenSectors() []blockdevice.SectorID {
	sectors := make([]blockdevice.SectorID, 0, len(l.open))
	for sector := range l.open {
		sectors = append(sectors, sector)
	}
	return sectors
}

// Create writes a fresh on-disk inode at sector with length 0, then
// extends it to length, per spec.md §4.2.
func (l *Layer) Create(sector blockdevice.SectorID, length int64, isDir bool) error {
	fresh := onDisk{magic: magic, isDir: isDir}
	if err := l.dev.WriteSector(sector, fresh.encode()); err != nil {
		return fmt.Errorf("inode: create %d: %w", sector, err)
	}
	if err := l.growTo(sector, length); err != nil {
		return fmt.Errorf("inode: create %d: extend: %w", sector, err)
	}
	return nil
}

// Open returns the shared in-memory handle for sector, incrementing its
// open count. It lazily constructs the handle on first open by reading the
// on-disk inode.
func (l *Layer) Open(sector blockdevice.SectorID) (*Inode, error) {
	if in, ok := l.open[sector]; ok {
		in.openCount++
		return in, nil
	}

	raw, err := l.dev.ReadSector(sector)
	if err != nil {
		return nil, fmt.Errorf("inode: open %d: %w", sector, err)
	}
	d := decodeOnDisk(raw)
	if d.magic != magic {
		return nil, fmt.Errorf("inode: open %d: %w (bad magic)", sector, fserrors.ErrIO)
	}

	in := &Inode{
		sector:         sector,
		openCount:      1,
		direct:         d.direct,
		singleIndirect: d.singleIndirect,
		doubleIndirect: d.doubleIndirect,
		length:         d.length,
		isDir:          d.isDir,
	}
	l.open[sector] = in
	return in, nil
}

// Reopen increments in's open count and returns it, for a second caller
// sharing the same handle.
func (l *Layer) Reopen(in *Inode) *Inode {
	in.openCount++
	return in
}

// Close decrements in's open count. On reaching zero it is removed from
// the registry, and if it was marked removed, its inode sector and all
// data sectors it transitively referenced are released to the free-map.
func (l *Layer) Close(in *Inode) error {
	in.openCount--
	if in.openCount > 0 {
		return nil
	}

	delete(l.open, in.sector)
	if !in.removed {
		return nil
	}
	return l.reclaim(in)
}

// Remove marks in to be deleted once its last opener closes it.
// Deallocation is deferred, matching spec.md §4.2.
func (l *Layer) Remove(in *Inode) {
	in.removed = true
}

// DenyWrite increments in's deny-write count. Writes fail silently while
// the count is above zero. The count may never exceed the open count.
func (l *Layer) DenyWrite(in *Inode) {
	in.denyWriteCount++
	if in.denyWriteCount > in.openCount {
		panic(fmt.Sprintf("inode: deny_write_count %d exceeds open_count %d", in.denyWriteCount, in.openCount))
	}
}

// AllowWrite decrements in's deny-write count. Must be balanced with a
// prior DenyWrite.
func (l *Layer) AllowWrite(in *Inode) {
	if in.denyWriteCount == 0 {
		panic("inode: allow_write without matching deny_write")
	}
	in.denyWriteCount--
}
