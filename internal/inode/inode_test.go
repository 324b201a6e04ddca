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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/freemap"
	"github.com/kernellab/blockfs/internal/sectorcache"
)

func newTestLayer(t *testing.T, sectors uint32) *Layer {
	t.Helper()
	dev := blockdevice.NewMemoryDevice(sectors)
	cache := sectorcache.NewCachedDevice(dev)
	fm := freemap.New(sectors)
	// Every test creates its inode at sector 2; mark it in use, as the
	// facade does before calling Create, so growth never hands it out as
	// a data sector.
	sec, err := fm.Allocate(1)
	require.NoError(t, err)
	require.Equal(t, blockdevice.SectorID(2), sec)
	return NewLayer(cache, fm)
}

func TestCreateAndOpenRoundTrip(t *testing.T) {
	l := newTestLayer(t, 64)

	require.NoError(t, l.Create(2, 100, false))

	in, err := l.Open(2)
	require.NoError(t, err)
	assert.Equal(t, int64(100), in.Length())
	assert.False(t, in.IsDir())
	assert.Equal(t, blockdevice.SectorID(2), in.Sector())
}

func TestOpenSharesHandleAndTracksOpenCount(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 10, false))

	a, err := l.Open(2)
	require.NoError(t, err)
	b, err := l.Open(2)
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.Equal(t, 2, a.OpenCount())
}

func TestReadWriteRoundTrip(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 0, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	payload := []byte("hello, blockfs")
	n, err := l.WriteAt(in, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = l.ReadAt(in, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestWriteAtExtendsLengthAndZeroFillsHole(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 0, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	n, err := l.WriteAt(in, []byte("tail"), 100)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(104), in.Length())

	hole := make([]byte, 100)
	n, err = l.ReadAt(in, hole, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	for _, b := range hole {
		assert.Equal(t, byte(0), b)
	}
}

func TestReadPastEOFReturnsZero(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 10, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := l.ReadAt(in, buf, 50)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRepeatedSmallGrowthPreservesDirectSectorContents(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 0, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	n, err := l.WriteAt(in, []byte("abc"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	direct := in.direct

	// A second write still under directBytes (512) must grow in place,
	// not reallocate the direct sector out from under existing data.
	n, err = l.WriteAt(in, []byte("xyz"), 50)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, direct, in.direct)

	buf := make([]byte, 3)
	n, err = l.ReadAt(in, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), buf)
}

func TestGrowthCrossesSingleIndirectBoundary(t *testing.T) {
	l := newTestLayer(t, 400)
	require.NoError(t, l.Create(2, 0, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	// directBytes is 512; write well past it to force single-indirect
	// allocation, then read back across the whole range.
	payload := make([]byte, 2000)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := l.WriteAt(in, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = l.ReadAt(in, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func TestRemovalReclaimsSectorsOnLastClose(t *testing.T) {
	l := newTestLayer(t, 400)
	require.NoError(t, l.Create(2, 0, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	_, err = l.WriteAt(in, make([]byte, 2000), 0)
	require.NoError(t, err)

	direct := in.direct
	single := in.singleIndirect
	assert.True(t, l.fm.InUse(direct))
	assert.True(t, l.fm.InUse(single))

	l.Remove(in)
	require.NoError(t, l.Close(in))

	assert.False(t, l.fm.InUse(2))
	assert.False(t, l.fm.InUse(direct))
	assert.False(t, l.fm.InUse(single))
}

func TestCloseDoesNotReclaimWhileStillOpen(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 10, false))

	a, err := l.Open(2)
	require.NoError(t, err)
	_, err = l.Open(2)
	require.NoError(t, err)

	l.Remove(a)
	require.NoError(t, l.Close(a))
	assert.True(t, l.fm.InUse(2))

	require.NoError(t, l.Close(a))
	assert.False(t, l.fm.InUse(2))
}

func TestDenyWriteBlocksWriteAt(t *testing.T) {
	l := newTestLayer(t, 64)
	require.NoError(t, l.Create(2, 0, false))
	in, err := l.Open(2)
	require.NoError(t, err)

	l.DenyWrite(in)
	n, err := l.WriteAt(in, []byte("nope"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int64(0), in.Length())

	l.AllowWrite(in)
	n, err = l.WriteAt(in, []byte("now"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
