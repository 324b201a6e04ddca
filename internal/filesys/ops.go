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

package filesys

import (
	"fmt"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/directory"
	"github.com/kernellab/blockfs/internal/fserrors"
	"github.com/kernellab/blockfs/internal/inode"
)

// Create implements spec.md §4.4's filesys_create: resolve path's parent
// directory, allocate a sector, create a regular-file inode sized to
// size, and add the final name as a non-directory entry.
func (fs *Filesystem) Create(path string, size int64, cwd blockdevice.SectorID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	start, err := fs.startDir(path, cwd)
	if err != nil {
		return err
	}
	defer fs.dirs.Close(start)

	parent, name, err := fs.dirs.ResolveParent(start, path)
	if err != nil {
		return err
	}
	defer fs.dirs.Close(parent)

	if _, _, found, err := fs.dirs.Lookup(parent, name); err != nil {
		return err
	} else if found {
		return fserrors.ErrAlreadyExists
	}

	sector, err := fs.fm.Allocate(1)
	if err != nil {
		return err
	}
	if err := fs.inodes.Create(sector, size, false); err != nil {
		return fmt.Errorf("filesys: create %q: %w", path, err)
	}
	return fs.dirs.Add(parent, name, sector, false)
}

// Open implements spec.md §4.4's filesys_open: resolve path and return an
// open inode handle for it (the caller decides, via in.IsDir(), whether
// to wrap it with directory.Wrap before installing it in a task's
// file-descriptor table).
func (fs *Filesystem) Open(path string, cwd blockdevice.SectorID) (*inode.Inode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	start, err := fs.startDir(path, cwd)
	if err != nil {
		return nil, err
	}
	defer fs.dirs.Close(start)

	sector, _, err := fs.dirs.Resolve(start, path)
	if err != nil {
		return nil, err
	}
	return fs.inodes.Open(sector)
}

// Close releases an inode handle obtained from Open, Create's caller
// reopening it, or a directory's underlying inode.
func (fs *Filesystem) Close(in *inode.Inode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inodes.Close(in)
}

// ReadAt and WriteAt expose the inode layer's byte-addressable I/O under
// the facade lock, per spec.md §4.2/§5.
func (fs *Filesystem) ReadAt(in *inode.Inode, buf []byte, off int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inodes.ReadAt(in, buf, off)
}

func (fs *Filesystem) WriteAt(in *inode.Inode, buf []byte, off int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.inodes.WriteAt(in, buf, off)
}

// Remove implements spec.md §4.4's filesys_remove: resolve the parent,
// call dir_remove on the final name. cwd is the calling task's working
// directory sector, used to enforce the current-working-directory
// removal guard (spec.md §8 property 8).
func (fs *Filesystem) Remove(path string, cwd blockdevice.SectorID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	start, err := fs.startDir(path, cwd)
	if err != nil {
		return err
	}
	defer fs.dirs.Close(start)

	parent, name, err := fs.dirs.ResolveParent(start, path)
	if err != nil {
		return err
	}
	defer fs.dirs.Close(parent)

	return fs.dirs.Remove(parent, name, cwd)
}

// Mkdir implements spec.md §4.3's mkdir(path): resolve the parent of
// path, allocate a fresh sector, create a directory there, and add the
// final name to the parent.
func (fs *Filesystem) Mkdir(path string, cwd blockdevice.SectorID) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	start, err := fs.startDir(path, cwd)
	if err != nil {
		return err
	}
	defer fs.dirs.Close(start)

	return fs.dirs.Mkdir(start, path)
}

// Chdir implements spec.md §4.3's chdir(path): resolve path and, if it
// names a directory, return its sector. Assigning the result to the
// calling task's working-directory field is the caller's responsibility
// (internal/task), matching spec.md §5's "current-working-directory
// sector is a per-task scalar" shared-resource policy.
func (fs *Filesystem) Chdir(path string, cwd blockdevice.SectorID) (blockdevice.SectorID, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	start, err := fs.startDir(path, cwd)
	if err != nil {
		return 0, err
	}
	defer fs.dirs.Close(start)

	return fs.dirs.ResolveChdir(start, path)
}

// Readdir advances dir's cursor and returns the next entry's name,
// excluding "." and "..", per spec.md §8 property 4.
func (fs *Filesystem) Readdir(dir *directory.Directory) (name string, ok bool, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.dirs.Readdir(dir)
}

// WrapDir builds a directory cursor around an inode already known to be
// a directory, without taking an additional reference on it.
func (fs *Filesystem) WrapDir(in *inode.Inode) *directory.Directory {
	return directory.Wrap(in)
}
