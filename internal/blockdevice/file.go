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

package blockdevice

import (
	"fmt"
	"os"
	"sync"
)

// FileDevice backs a Device with a single regular file, sized to an exact
// multiple of SectorSize when it is created. Reads and writes go through
// os.File's ReadAt/WriteAt, which the runtime synchronizes internally, so
// the mutex here is taken only by Close, never by ordinary read/write
// traffic.
type FileDevice struct {
	mu   sync.Mutex
	f    *os.File
	size uint32 // sector count
}

// OpenFileDevice opens (creating if necessary) path as a block device backed
// by sectorCount sectors. If the file already exists and is shorter than
// sectorCount*SectorSize, it is extended and the new sectors are zeroed by
// the filesystem's sparse-file semantics.
func OpenFileDevice(path string, sectorCount uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdevice: open %q: %w", path, err)
	}

	wantSize := int64(sectorCount) * SectorSize
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdevice: stat %q: %w", path, err)
	}
	if info.Size() < wantSize {
		if err := f.Truncate(wantSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("blockdevice: truncate %q: %w", path, err)
		}
	}

	return &FileDevice{f: f, size: sectorCount}, nil
}

// OpenExisting opens path as a block device, deriving its sector count
// from the file's current size. Used when attaching to a disk image
// that was already formatted by a prior run.
func OpenExisting(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blockdevice: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("blockdevice: stat %q: %w", path, err)
	}
	return &FileDevice{f: f, size: uint32(info.Size() / SectorSize)}, nil
}

func (d *FileDevice) SectorCount() uint32 { return d.size }

func (d *FileDevice) ReadSector(id SectorID) (Sector, error) {
	var sector Sector
	if uint32(id) >= d.size {
		return sector, &ErrOutOfRange{Sector: id, Count: d.size}
	}
	_, err := d.f.ReadAt(sector[:], int64(id)*SectorSize)
	if err != nil {
		return sector, fmt.Errorf("blockdevice: read sector %d: %w", id, err)
	}
	return sector, nil
}

func (d *FileDevice) WriteSector(id SectorID, data Sector) error {
	if uint32(id) >= d.size {
		return &ErrOutOfRange{Sector: id, Count: d.size}
	}
	if _, err := d.f.WriteAt(data[:], int64(id)*SectorSize); err != nil {
		return fmt.Errorf("blockdevice: write sector %d: %w", id, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
