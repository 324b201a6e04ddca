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
	"github.com/kernellab/blockfs/internal/blockdevice"
)

// ReadAt copies min(len(buf), in.Length()-off) bytes starting at byte
// offset off in in into buf, returning the number of bytes copied. Reads
// past end-of-file return 0 with no error, per spec.md §4.2.
func (l *Layer) ReadAt(in *Inode, buf []byte, off int64) (int, error) {
	if off >= in.Length() {
		return 0, nil
	}
	remaining := in.Length() - off
	if int64(len(buf)) > remaining {
		buf = buf[:remaining]
	}

	read := 0
	for read < len(buf) {
		pos := off + int64(read)
		sector, err := l.byteToSector(in, pos)
		if err != nil {
			return read, err
		}
		raw, err := l.dev.ReadSector(sector)
		if err != nil {
			return read, err
		}

		sectorOff := int(pos % blockdevice.SectorSize)
		n := copy(buf[read:], raw[sectorOff:])
		read += n
	}
	return read, nil
}

// WriteAt writes buf to in starting at byte offset off, growing the file
// on demand when off+len(buf) exceeds the current length. Writes are
// silently dropped, returning (0, nil), while in has a nonzero deny-write
// count (spec.md §4.2's "open for deny write" rule, mirroring pintos's
// inode_write_at early return when deny_write_cnt is set).
func (l *Layer) WriteAt(in *Inode, buf []byte, off int64) (int, error) {
	if in.denyWriteCount > 0 {
		return 0, nil
	}

	end := off + int64(len(buf))
	if end > in.Length() {
		if err := l.growTo(in.sector, end); err != nil {
			return 0, err
		}
		if err := l.refresh(in); err != nil {
			return 0, err
		}
	}

	written := 0
	for written < len(buf) {
		pos := off + int64(written)
		sector, err := l.byteToSector(in, pos)
		if err != nil {
			return written, err
		}
		raw, err := l.dev.ReadSector(sector)
		if err != nil {
			return written, err
		}

		sectorOff := int(pos % blockdevice.SectorSize)
		n := copy(raw[sectorOff:], buf[written:])
		if err := l.dev.WriteSector(sector, raw); err != nil {
			return written, err
		}
		written += n
	}
	return written, nil
}

// refresh reloads in's cached direct/indirect pointers and length from
// its on-disk inode, which growTo just updated. Every growth path writes
// the inode sector first, then refreshes the in-memory copy, so no other
// caller can observe a half-grown in-memory Inode.
func (l *Layer) refresh(in *Inode) error {
	raw, err := l.dev.ReadSector(in.sector)
	if err != nil {
		return err
	}
	d := decodeOnDisk(raw)
	in.direct = d.direct
	in.singleIndirect = d.singleIndirect
	in.doubleIndirect = d.doubleIndirect
	in.length = d.length
	return nil
}
