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

// Package directory implements the hierarchical directory layer from
// spec.md §4.3: a directory is the byte-content of a directory-flagged
// inode, holding a flat array of fixed-size entries, with path resolution
// that mixes absolute and working-directory-relative names.
//
// Grounded on pintos/src/filesys/directory.c (dir_create, dir_lookup,
// the recursive component-at-a-time lookup, dir_add's free-slot scan,
// dir_remove's in_use clear, mkdir) and on the teacher's fs/inode/dir.go
// for the Go idiom of treating a directory as a specialized wrapper
// around a regular inode rather than a distinct on-disk structure.
package directory

import "encoding/binary"

// NameMax is the longest a single path component may be, matching
// spec.md §4.3 and §6 ("per-component length limit 14").
const NameMax = 14

// entrySize is the on-disk size of one directory entry: inode_sector
// (4B) | name (15B, null-terminated) | in_use (1B) | is_dir (1B),
// padded to a 4-byte boundary to match the packed layout in spec.md §6.
const entrySize = 24

const (
	offSector = 0
	offName   = 4
	nameBuf   = NameMax + 1
	offInUse  = offName + nameBuf
	offIsDir  = offInUse + 1
)

// entry is one directory entry: a name mapped to the sector of its
// inode, plus the in-use and is-directory flags.
type entry struct {
	sector uint32
	name   string
	inUse  bool
	isDir  bool
}

func decodeEntry(b []byte) entry {
	sector := binary.LittleEndian.Uint32(b[offSector : offSector+4])
	nameBytes := b[offName : offName+nameBuf]
	n := 0
	for n < len(nameBytes) && nameBytes[n] != 0 {
		n++
	}
	return entry{
		sector: sector,
		name:   string(nameBytes[:n]),
		inUse:  b[offInUse] != 0,
		isDir:  b[offIsDir] != 0,
	}
}

func (e entry) encode() [entrySize]byte {
	var b [entrySize]byte
	binary.LittleEndian.PutUint32(b[offSector:offSector+4], e.sector)
	copy(b[offName:offName+nameBuf], e.name)
	if e.inUse {
		b[offInUse] = 1
	}
	if e.isDir {
		b[offIsDir] = 1
	}
	return b
}
