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

// reclaim releases in's own sector and every data/indirect sector it
// transitively references back to the free-map, per spec.md §3/§8
// property 5 ("removing and closing a file releases its inode sector and
// every data sector it owns back to the free-map"). It re-reads the
// inode sector through the sector cache rather than using in's cached
// fields.
func (l *Layer) reclaim(in *Inode) error {
	raw, err := l.dev.ReadSector(in.sector)
	if err != nil {
		return fmt.Errorf("inode: reclaim %d: %w", in.sector, err)
	}
	d := decodeOnDisk(raw)

	if d.length > 0 {
		l.fm.Release(d.direct, 1)
	}

	if int64(d.length) > directBytes {
		if err := l.reclaimSingleIndirect(d.singleIndirect); err != nil {
			return err
		}
	}

	if int64(d.length) > singleIndirectMax {
		if err := l.reclaimDoubleIndirect(d.doubleIndirect); err != nil {
			return err
		}
	}

	l.fm.Release(in.sector, 1)
	return nil
}

func (l *Layer) reclaimSingleIndirect(sector blockdevice.SectorID) error {
	ind, err := l.readIndirect(sector)
	if err != nil {
		return err
	}
	for _, sec := range ind {
		if sec != 0 {
			l.fm.Release(sec, 1)
		}
	}
	l.fm.Release(sector, 1)
	return nil
}

func (l *Layer) reclaimDoubleIndirect(sector blockdevice.SectorID) error {
	outer, err := l.readIndirect(sector)
	if err != nil {
		return err
	}
	for _, sec := range outer {
		if sec != 0 {
			if err := l.reclaimSingleIndirect(sec); err != nil {
				return err
			}
		}
	}
	l.fm.Release(sector, 1)
	return nil
}
