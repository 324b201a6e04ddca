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
	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/fserrors"
	"github.com/kernellab/blockfs/internal/inode"
)

// Add inserts an entry named name pointing at sector into dir, per
// spec.md §4.3's entry write policy: fail if name is invalid or already
// present, otherwise reuse the first free slot or append at end-of-file.
func (l *Layer) Add(dir *Directory, name string, sector blockdevice.SectorID, isDir bool) error {
	if name == "" {
		return fserrors.ErrInvalidArgument
	}
	if len(name) > NameMax {
		return fserrors.ErrNameTooLong
	}
	if _, _, found, err := l.Lookup(dir, name); err != nil {
		return err
	} else if found {
		return fserrors.ErrAlreadyExists
	}

	ofs := int64(0)
	for {
		e, ok, err := l.readEntryAt(dir, ofs)
		if err != nil {
			return err
		}
		if !ok || !e.inUse {
			break
		}
		ofs += entrySize
	}

	return l.writeEntryAt(dir, ofs, entry{
		sector: uint32(sector),
		name:   name,
		inUse:  true,
		isDir:  isDir,
	})
}

// Remove clears the entry named name in dir. It fails if no such entry
// exists, if the entry is a non-empty directory (spec.md §4.3's
// not-empty guard: any entry besides "." and ".."), or if its sector
// equals protectedSector (the calling task's working-directory sector).
// The entry's inode is marked for deferred reclamation via the inode
// layer's removed flag; its data sectors are released only once its last
// opener closes it.
func (l *Layer) Remove(dir *Directory, name string, protectedSector blockdevice.SectorID) error {
	sector, isDir, found, err := l.Lookup(dir, name)
	if err != nil {
		return err
	}
	if !found {
		return fserrors.ErrNotFound
	}
	if sector == protectedSector {
		return fserrors.ErrBusy
	}

	target, err := l.inodes.Open(sector)
	if err != nil {
		return err
	}
	defer l.inodes.Close(target)

	if isDir {
		empty, err := l.dirIsEmpty(target)
		if err != nil {
			return err
		}
		if !empty {
			return fserrors.ErrNotEmpty
		}
	}

	if err := l.clearEntry(dir, name); err != nil {
		return err
	}
	l.inodes.Remove(target)
	return nil
}

func (l *Layer) dirIsEmpty(in *inode.Inode) (bool, error) {
	d := &Directory{in: in}
	for ofs := int64(0); ; ofs += entrySize {
		e, ok, err := l.readEntryAt(d, ofs)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		if e.inUse && e.name != "." && e.name != ".." {
			return false, nil
		}
	}
}

func (l *Layer) clearEntry(dir *Directory, name string) error {
	for ofs := int64(0); ; ofs += entrySize {
		e, ok, err := l.readEntryAt(dir, ofs)
		if err != nil {
			return err
		}
		if !ok {
			return fserrors.ErrNotFound
		}
		if e.inUse && e.name == name {
			e.inUse = false
			return l.writeEntryAt(dir, ofs, e)
		}
	}
}

// Mkdir resolves the parent of path, allocates a fresh sector, creates a
// directory there, and adds the final path component to the parent, per
// spec.md §4.3's mkdir.
func (l *Layer) Mkdir(start *Directory, path string) error {
	parent, name, err := l.ResolveParent(start, path)
	if err != nil {
		return err
	}
	defer l.Close(parent)

	if _, _, found, err := l.Lookup(parent, name); err != nil {
		return err
	} else if found {
		return fserrors.ErrAlreadyExists
	}

	sector, err := l.fm.Allocate(1)
	if err != nil {
		return err
	}

	if err := l.Create(sector, 0, parent.in.Sector()); err != nil {
		return err
	}
	return l.Add(parent, name, sector, true)
}

// ResolveChdir resolves path to a directory sector, failing with
// NotDirectory if the target is a regular file. Assigning the result to
// a task's working-directory field is the caller's responsibility.
func (l *Layer) ResolveChdir(start *Directory, path string) (blockdevice.SectorID, error) {
	sector, isDir, err := l.Resolve(start, path)
	if err != nil {
		return 0, err
	}
	if !isDir {
		return 0, fserrors.ErrNotDirectory
	}
	return sector, nil
}
