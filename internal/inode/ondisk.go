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

package inode

import (
	"encoding/binary"

	"github.com/kernellab/blockfs/internal/blockdevice"
)

// magic is the fixed sanity-check constant stored in every on-disk inode,
// matching pintos/src/filesys/inode.c's INODE_MAGIC.
const magic uint32 = 0x494e4f44

// pointersPerSector is how many SectorIDs fit in one indirect sector:
// 128 entries of 4 bytes each (spec.md §3).
const pointersPerSector = blockdevice.SectorSize / 4

const (
	directBytes       = blockdevice.SectorSize
	singleIndirectMax = directBytes + pointersPerSector*blockdevice.SectorSize
	doubleIndirectMax = singleIndirectMax + pointersPerSector*pointersPerSector*blockdevice.SectorSize
)

// onDisk is the exactly-one-sector on-disk inode layout from spec.md §6:
// direct(4B) | length(4B) | single_indirect(4B) | double_indirect(4B) |
// is_dir(4B) | magic(4B), zero-padded to blockdevice.SectorSize.
type onDisk struct {
	direct         blockdevice.SectorID
	length         int32
	singleIndirect blockdevice.SectorID
	doubleIndirect blockdevice.SectorID
	isDir          bool
	magic          uint32
}

func decodeOnDisk(s blockdevice.Sector) onDisk {
	return onDisk{
		direct:         blockdevice.SectorID(binary.LittleEndian.Uint32(s[0:4])),
		length:         int32(binary.LittleEndian.Uint32(s[4:8])),
		singleIndirect: blockdevice.SectorID(binary.LittleEndian.Uint32(s[8:12])),
		doubleIndirect: blockdevice.SectorID(binary.LittleEndian.Uint32(s[12:16])),
		isDir:          binary.LittleEndian.Uint32(s[16:20]) != 0,
		magic:          binary.LittleEndian.Uint32(s[20:24]),
	}
}

func (d onDisk) encode() blockdevice.Sector {
	var s blockdevice.Sector
	binary.LittleEndian.PutUint32(s[0:4], uint32(d.direct))
	binary.LittleEndian.PutUint32(s[4:8], uint32(d.length))
	binary.LittleEndian.PutUint32(s[8:12], uint32(d.singleIndirect))
	binary.LittleEndian.PutUint32(s[12:16], uint32(d.doubleIndirect))
	isDir := uint32(0)
	if d.isDir {
		isDir = 1
	}
	binary.LittleEndian.PutUint32(s[16:20], isDir)
	binary.LittleEndian.PutUint32(s[20:24], d.magic)
	return s
}

// indirectSector is a sector holding pointersPerSector SectorIDs, used for
// both the single-indirect block (pointing at data sectors) and the
// double-indirect block (pointing at single-indirect sectors).
type indirectSector [pointersPerSector]blockdevice.SectorID

func decodeIndirect(s blockdevice.Sector) indirectSector {
	var out indirectSector
	for i := range out {
		out[i] = blockdevice.SectorID(binary.LittleEndian.Uint32(s[i*4 : i*4+4]))
	}
	return out
}

func (ind indirectSector) encode() blockdevice.Sector {
	var s blockdevice.Sector
	for i, id := range ind {
		binary.LittleEndian.PutUint32(s[i*4:i*4+4], uint32(id))
	}
	return s
}
