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

import "sync"

// MemoryDevice is an in-memory Device, used by tests that want
// deterministic, allocation-free storage without touching the filesystem.
type MemoryDevice struct {
	mu      sync.Mutex
	sectors []Sector
}

// NewMemoryDevice returns a MemoryDevice with sectorCount zeroed sectors.
func NewMemoryDevice(sectorCount uint32) *MemoryDevice {
	return &MemoryDevice{sectors: make([]Sector, sectorCount)}
}

func (d *MemoryDevice) SectorCount() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint32(len(d.sectors))
}

func (d *MemoryDevice) ReadSector(id SectorID) (Sector, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if uint32(id) >= uint32(len(d.sectors)) {
		return Sector{}, &ErrOutOfRange{Sector: id, Count: uint32(len(d.sectors))}
	}
	return d.sectors[id], nil
}

func (d *MemoryDevice) WriteSector(id SectorID, data Sector) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if uint32(id) >= uint32(len(d.sectors)) {
		return &ErrOutOfRange{Sector: id, Count: uint32(len(d.sectors))}
	}
	d.sectors[id] = data
	return nil
}
