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

package sectorcache

import "github.com/kernellab/blockfs/internal/blockdevice"

// CachedDevice wraps a Cache around a blockdevice.Device, implementing the
// read/write path described in spec.md §4.1: query the cache, fall back to
// the device on miss, insert the fresh sector, and write back anything the
// insert evicted. It is the only thing the inode layer talks to.
type CachedDevice struct {
	cache  *Cache
	device blockdevice.Device
}

// NewCachedDevice pairs a fresh Cache with device.
func NewCachedDevice(device blockdevice.Device) *CachedDevice {
	return &CachedDevice{cache: New(), device: device}
}

// Cache exposes the underlying Cache, e.g. for registering metrics.
func (cd *CachedDevice) Cache() *Cache { return cd.cache }

// ReadSector returns the current contents of sector, pulling it into the
// cache on a miss.
func (cd *CachedDevice) ReadSector(id blockdevice.SectorID) (blockdevice.Sector, error) {
	if data, hit := cd.cache.Read(id); hit {
		return data, nil
	}

	data, err := cd.device.ReadSector(id)
	if err != nil {
		return blockdevice.Sector{}, err
	}
	if err := cd.installAndWriteBack(data, id, false); err != nil {
		return blockdevice.Sector{}, err
	}
	return data, nil
}

// WriteSector updates sector's contents, marking the cache slot dirty
// without issuing a device write. The write reaches the device only when
// the slot is evicted or Flush is called.
func (cd *CachedDevice) WriteSector(id blockdevice.SectorID, data blockdevice.Sector) error {
	if cd.cache.Write(id, data) {
		return nil
	}
	return cd.installAndWriteBack(data, id, true)
}

func (cd *CachedDevice) installAndWriteBack(data blockdevice.Sector, id blockdevice.SectorID, dirty bool) error {
	evicted := cd.cache.Insert(data, id, dirty)
	if evicted == nil || !evicted.Dirty {
		return nil
	}
	return cd.device.WriteSector(evicted.Sector, evicted.Data)
}

// Flush drains every dirty slot to the device. Used at shutdown
// (spec.md §4.4: "drain the cache by repeatedly calling take_one_dirty").
func (cd *CachedDevice) Flush() error {
	for {
		ev := cd.cache.TakeOneDirty()
		if ev == nil {
			return nil
		}
		if err := cd.device.WriteSector(ev.Sector, ev.Data); err != nil {
			return err
		}
	}
}
