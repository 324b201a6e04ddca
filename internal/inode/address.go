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

// byteToSector translates a byte offset within in into the data sector
// that holds it, per spec.md §4.2's three-tier address translation. pos
// must be less than in.Length(); callers extend first via growTo.
func (l *Layer) byteToSector(in *Inode, pos int64) (blockdevice.SectorID, error) {
	if pos < directBytes {
		return in.direct, nil
	}
	pos -= directBytes

	if pos < int64(pointersPerSector)*blockdevice.SectorSize {
		ind, err := l.readIndirect(in.singleIndirect)
		if err != nil {
			return 0, err
		}
		return ind[pos/blockdevice.SectorSize], nil
	}
	pos -= int64(pointersPerSector) * blockdevice.SectorSize

	outer := pos / (int64(pointersPerSector) * blockdevice.SectorSize)
	outerInd, err := l.readIndirect(in.doubleIndirect)
	if err != nil {
		return 0, err
	}
	if int(outer) >= len(outerInd) {
		return 0, fmt.Errorf("inode: offset beyond maximum file size")
	}
	singleIndirectSector := outerInd[outer]

	inner := (pos % (int64(pointersPerSector) * blockdevice.SectorSize)) / blockdevice.SectorSize
	innerInd, err := l.readIndirect(singleIndirectSector)
	if err != nil {
		return 0, err
	}
	return innerInd[inner], nil
}

func (l *Layer) readIndirect(sector blockdevice.SectorID) (indirectSector, error) {
	raw, err := l.dev.ReadSector(sector)
	if err != nil {
		return indirectSector{}, fmt.Errorf("inode: read indirect sector %d: %w", sector, err)
	}
	return decodeIndirect(raw), nil
}
