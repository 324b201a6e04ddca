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

package directory

import (
	"fmt"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/freemap"
	"github.com/kernellab/blockfs/internal/fserrors"
	"github.com/kernellab/blockfs/internal/inode"
)

// Directory is an open directory handle: an in-memory inode paired with
// a byte cursor for enumeration (spec.md §3 "Open directory handle").
type Directory struct {
	in  *inode.Inode
	pos int64
}

// Inode returns the directory's backing inode, e.g. so the facade can
// fold it into the open-inode registry's ownership.
func (d *Directory) Inode() *inode.Inode { return d.in }

// Layer manages directories as a file of entries over an inode.Layer and
// allocates directory sectors via a freemap.Map. It holds no lock of its
// own: every exported method assumes the caller already holds the
// facade's single coarse lock, matching internal/inode.
type Layer struct {
	inodes *inode.Layer
	fm     *freemap.Map
}

// NewLayer constructs a directory layer over inodes (for entry I/O) and
// fm (for allocating a new directory's sector in Mkdir).
func NewLayer(inodes *inode.Layer, fm *freemap.Map) *Layer {
	return &Layer{inodes: inodes, fm: fm}
}

// Create creates an empty directory inode at sector sized for entryCnt+2
// entries, then adds "." (pointing to sector) and ".." (pointing to
// parentSector), per spec.md §4.3's dir_create.
func (l *Layer) Create(sector blockdevice.SectorID, entryCnt int, parentSector blockdevice.SectorID) error {
	size := int64(entryCnt+2) * entrySize
	if err := l.inodes.Create(sector, size, true); err != nil {
		return fmt.Errorf("directory: create %d: %w", sector, err)
	}

	dir, err := l.Open(sector)
	if err != nil {
		return fmt.Errorf("directory: create %d: open: %w", sector, err)
	}
	defer l.Close(dir)

	if err := l.Add(dir, ".", sector, true); err != nil {
		return fmt.Errorf("directory: create %d: add .: %w", sector, err)
	}
	if err := l.Add(dir, "..", parentSector, true); err != nil {
		return fmt.Errorf("directory: create %d: add ..: %w", sector, err)
	}
	return nil
}

// OpenRoot opens the directory at the reserved root sector.
func (l *Layer) OpenRoot() (*Directory, error) {
	return l.Open(blockdevice.RootDirSector)
}

// Open wraps the inode at sector with a position-0 cursor. The caller
// must eventually Close the returned Directory.
func (l *Layer) Open(sector blockdevice.SectorID) (*Directory, error) {
	in, err := l.inodes.Open(sector)
	if err != nil {
		return nil, err
	}
	if !in.IsDir() {
		l.inodes.Close(in)
		return nil, fserrors.ErrNotDirectory
	}
	return &Directory{in: in}, nil
}

// Wrap builds a Directory cursor around an already-open inode handle,
// without registering an additional opener. Used when a caller obtained
// the inode through inode.Layer.Open directly (e.g. to decide whether a
// resolved path is a file or a directory before choosing how to open it)
// and now knows it is a directory.
func Wrap(in *inode.Inode) *Directory {
	return &Directory{in: in}
}

// Reopen returns a second handle sharing dir's underlying inode, with its
// own independent cursor.
func (l *Layer) Reopen(dir *Directory) *Directory {
	return &Directory{in: l.inodes.Reopen(dir.in)}
}

// Close releases dir's handle on its inode. If this was the last opener
// and the directory was removed, its sector and data sectors are
// reclaimed by the inode layer.
func (l *Layer) Close(dir *Directory) error {
	return l.inodes.Close(dir.in)
}

// readEntryAt reads the entry at byte offset ofs in dir, returning
// (entry, true) or (zero, false) at or past end-of-file.
func (l *Layer) readEntryAt(dir *Directory, ofs int64) (entry, bool, error) {
	var buf [entrySize]byte
	n, err := l.inodes.ReadAt(dir.in, buf[:], ofs)
	if err != nil {
		return entry{}, false, err
	}
	if n != entrySize {
		return entry{}, false, nil
	}
	return decodeEntry(buf[:]), true, nil
}

func (l *Layer) writeEntryAt(dir *Directory, ofs int64, e entry) error {
	buf := e.encode()
	n, err := l.inodes.WriteAt(dir.in, buf[:], ofs)
	if err != nil {
		return err
	}
	if n != entrySize {
		return fmt.Errorf("directory: short entry write at offset %d", ofs)
	}
	return nil
}
