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
	"strings"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/fserrors"
)

// Lookup scans dir's entries linearly for an in-use entry named name,
// per spec.md §4.3 step 3 ("scan the current directory's entries
// linearly; match against an in-use entry with the same name").
func (l *Layer) Lookup(dir *Directory, name string) (sector blockdevice.SectorID, isDir bool, found bool, err error) {
	for ofs := int64(0); ; ofs += entrySize {
		e, ok, err := l.readEntryAt(dir, ofs)
		if err != nil {
			return 0, false, false, err
		}
		if !ok {
			return 0, false, false, nil
		}
		if e.inUse && e.name == name {
			return blockdevice.SectorID(e.sector), e.isDir, true, nil
		}
	}
}

// Readdir returns the next in-use entry's name after dir's cursor,
// skipping "." and "..", advancing the cursor. found is false once the
// directory is exhausted, per spec.md §4.3's dir_readdir.
func (l *Layer) Readdir(dir *Directory) (name string, found bool, err error) {
	for {
		e, ok, err := l.readEntryAt(dir, dir.pos)
		if err != nil {
			return "", false, err
		}
		if !ok {
			return "", false, nil
		}
		dir.pos += entrySize
		if e.inUse && e.name != "." && e.name != ".." {
			return e.name, true, nil
		}
	}
}

// splitPath breaks a '/'-separated path into its non-empty components,
// rejecting any component longer than NameMax.
func splitPath(path string) ([]string, error) {
	var comps []string
	for _, c := range strings.Split(path, "/") {
		if c == "" {
			continue
		}
		if len(c) > NameMax {
			return nil, fserrors.ErrNameTooLong
		}
		comps = append(comps, c)
	}
	return comps, nil
}

// Resolve walks path component by component starting from start (spec.md
// §4.3 steps 3-4), opening and closing intermediate directories as it
// descends but never taking ownership of start itself. An empty path (or
// one consisting only of slashes) resolves to start's own sector, i.e.
// ".".
func (l *Layer) Resolve(start *Directory, path string) (sector blockdevice.SectorID, isDir bool, err error) {
	comps, err := splitPath(path)
	if err != nil {
		return 0, false, err
	}
	if len(comps) == 0 {
		return start.in.Sector(), true, nil
	}

	cur := start
	owned := false
	defer func() {
		if owned {
			l.Close(cur)
		}
	}()

	for i, comp := range comps {
		sec, dirFlag, found, err := l.Lookup(cur, comp)
		if err != nil {
			return 0, false, err
		}
		if !found {
			return 0, false, fserrors.ErrNotFound
		}
		if i == len(comps)-1 {
			return sec, dirFlag, nil
		}
		if !dirFlag {
			return 0, false, fserrors.ErrNotDirectory
		}

		next, err := l.Open(sec)
		if err != nil {
			return 0, false, err
		}
		if owned {
			l.Close(cur)
		}
		cur = next
		owned = true
	}
	panic("unreachable")
}

// ResolveParent walks every component of path but the last, returning an
// open handle on the parent directory plus the final component's name.
// The caller owns the returned Directory and must Close it. Used by
// Add-driven operations (create, mkdir) and by Remove, which both need
// the parent directory handle rather than the final sector.
func (l *Layer) ResolveParent(start *Directory, path string) (parent *Directory, finalName string, err error) {
	comps, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}
	if len(comps) == 0 {
		return nil, "", fserrors.ErrInvalidArgument
	}

	cur := start
	owned := false
	for _, comp := range comps[:len(comps)-1] {
		sec, dirFlag, found, err := l.Lookup(cur, comp)
		if err != nil {
			if owned {
				l.Close(cur)
			}
			return nil, "", err
		}
		if !found {
			if owned {
				l.Close(cur)
			}
			return nil, "", fserrors.ErrNotFound
		}
		if !dirFlag {
			if owned {
				l.Close(cur)
			}
			return nil, "", fserrors.ErrNotDirectory
		}

		next, err := l.Open(sec)
		if err != nil {
			if owned {
				l.Close(cur)
			}
			return nil, "", err
		}
		if owned {
			l.Close(cur)
		}
		cur = next
		owned = true
	}

	if !owned {
		cur = l.Reopen(start)
	}
	return cur, comps[len(comps)-1], nil
}
