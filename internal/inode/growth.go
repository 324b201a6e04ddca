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
	"fmt"

	"github.com/kernellab/blockfs/internal/blockdevice"
)

// growTo extends the on-disk inode at sector from its current length to
// newLen, per spec.md §4.2. Calling with newLen <= the current length is a
// no-op (growth is idempotent). On success the on-disk inode's length
// field is updated last, after every sector it now claims has been
// allocated and zero-filled.
//
// A free-map exhaustion partway through leaves the file's length
// unchanged on disk but may have allocated sectors that are now
// unreachable from any inode — spec.md §4.2/§9 accepts this as a known
// limitation rather than staging allocations behind a commit.
func (l *Layer) growTo(sector blockdevice.SectorID, newLen int64) error {
	raw, err := l.dev.ReadSector(sector)
	if err != nil {
		return fmt.Errorf("inode: growTo %d: %w", sector, err)
	}
	d := decodeOnDisk(raw)
	oldLen := int64(d.length)
	if newLen <= oldLen {
		return nil
	}

	if oldLen == 0 {
		sec, err := l.allocateZeroed()
		if err != nil {
			return err
		}
		d.direct = sec
	}

	if newLen > directBytes {
		if err := l.growSingleIndirect(&d.singleIndirect, oldLen, newLen, directBytes); err != nil {
			return err
		}
	}

	if newLen > singleIndirectMax {
		if err := l.growDoubleIndirect(&d.doubleIndirect, oldLen, newLen); err != nil {
			return err
		}
	}

	d.length = int32(newLen)
	d.magic = magic
	if err := l.dev.WriteSector(sector, d.encode()); err != nil {
		return fmt.Errorf("inode: growTo %d: write inode: %w", sector, err)
	}
	return nil
}

// growSingleIndirect allocates or updates the single-indirect sector
// referenced by *indSector so it covers byte range
// [tierStart, tierStart+pointersPerSector*SectorSize) up to newLen.
func (l *Layer) growSingleIndirect(indSector *blockdevice.SectorID, oldLen, newLen, tierStart int64) error {
	var ind indirectSector
	needsAlloc := oldLen <= tierStart
	if needsAlloc {
		sec, err := l.fm.Allocate(1)
		if err != nil {
			return err
		}
		*indSector = sec
	} else {
		var err error
		ind, err = l.readIndirect(*indSector)
		if err != nil {
			return err
		}
	}

	for i := 0; i < pointersPerSector; i++ {
		entryStart := tierStart + int64(i)*blockdevice.SectorSize
		if entryStart >= newLen {
			break
		}
		if entryStart >= oldLen {
			sec, err := l.allocateZeroed()
			if err != nil {
				return err
			}
			ind[i] = sec
		}
	}

	if err := l.writeIndirect(*indSector, ind); err != nil {
		return err
	}
	return nil
}

// growDoubleIndirect allocates or updates the double-indirect sector so
// that each single-indirect child it points to is grown in turn.
func (l *Layer) growDoubleIndirect(indSector *blockdevice.SectorID, oldLen, newLen int64) error {
	var outer indirectSector
	needsAlloc := oldLen <= singleIndirectMax
	if needsAlloc {
		sec, err := l.fm.Allocate(1)
		if err != nil {
			return err
		}
		*indSector = sec
	} else {
		var err error
		outer, err = l.readIndirect(*indSector)
		if err != nil {
			return err
		}
	}

	tierSpan := int64(pointersPerSector) * blockdevice.SectorSize
	for i := 0; i < pointersPerSector; i++ {
		tierStart := singleIndirectMax + int64(i)*tierSpan
		if tierStart >= newLen {
			break
		}
		if err := l.growSingleIndirect(&outer[i], oldLen, newLen, tierStart); err != nil {
			return err
		}
	}

	return l.writeIndirect(*indSector, outer)
}

func (l *Layer) writeIndirect(sector blockdevice.SectorID, ind indirectSector) error {
	if err := l.dev.WriteSector(sector, ind.encode()); err != nil {
		return fmt.Errorf("inode: write indirect sector %d: %w", sector, err)
	}
	return nil
}

// allocateZeroed allocates one fresh data sector and zero-fills it on
// disk, per spec.md §4.2 step 1.
func (l *Layer) allocateZeroed() (blockdevice.SectorID, error) {
	sec, err := l.fm.Allocate(1)
	if err != nil {
		return 0, err
	}
	if err := l.dev.WriteSector(sec, blockdevice.Sector{}); err != nil {
		return 0, fmt.Errorf("inode: zero-fill sector %d: %w", sec, err)
	}
	return sec, nil
}
