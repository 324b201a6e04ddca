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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/freemap"
	"github.com/kernellab/blockfs/internal/fserrors"
	"github.com/kernellab/blockfs/internal/inode"
	"github.com/kernellab/blockfs/internal/sectorcache"
)

func newTestLayer(t *testing.T, sectors uint32) *Layer {
	t.Helper()
	dev := blockdevice.NewMemoryDevice(sectors)
	cache := sectorcache.NewCachedDevice(dev)
	fm := freemap.New(sectors)
	inodes := inode.NewLayer(cache, fm)
	return NewLayer(inodes, fm)
}

func newTestRoot(t *testing.T, l *Layer) *Directory {
	t.Helper()
	require.NoError(t, l.Create(blockdevice.RootDirSector, 0, blockdevice.RootDirSector))
	root, err := l.OpenRoot()
	require.NoError(t, err)
	return root
}

func TestCreateSeedsDotAndDotDot(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	sec, isDir, found, err := l.Lookup(root, ".")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, isDir)
	assert.Equal(t, blockdevice.RootDirSector, sec)

	sec, isDir, found, err = l.Lookup(root, "..")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, isDir)
	assert.Equal(t, blockdevice.RootDirSector, sec)
}

func TestAddThenLookup(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Add(root, "a", 5, false))

	sec, isDir, found, err := l.Lookup(root, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, isDir)
	assert.Equal(t, blockdevice.SectorID(5), sec)
}

func TestAddDuplicateNameFails(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Add(root, "x", 5, false))
	err := l.Add(root, "x", 6, false)
	assert.Error(t, err)

	var names []string
	for {
		name, ok, err := l.Readdir(root)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{"x"}, names)
}

func TestAddRejectsEmptyAndTooLongNames(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	assert.ErrorIs(t, l.Add(root, "", 5, false), fserrors.ErrInvalidArgument)
	assert.ErrorIs(t, l.Add(root, "this-name-is-too-long", 5, false), fserrors.ErrNameTooLong)
}

func TestDotAndDotDotSurviveGrowthPastTwoEntries(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Mkdir(root, "d"))
	dSec, _, found, err := l.Lookup(root, "d")
	require.NoError(t, err)
	require.True(t, found)

	d, err := l.Open(dSec)
	require.NoError(t, err)
	defer l.Close(d)

	// "." and ".." already occupy the first two entries (48 bytes); add
	// enough more to grow the directory's backing file well past that
	// while staying under the 512-byte direct-sector threshold.
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Add(d, fmt.Sprintf("f%d", i), blockdevice.SectorID(10+i), false))
	}

	sec, isDir, found, err := l.Lookup(d, ".")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, isDir)
	assert.Equal(t, dSec, sec)

	sec, isDir, found, err = l.Lookup(d, "..")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, isDir)
	assert.Equal(t, blockdevice.RootDirSector, sec)
}

func TestReaddirSkipsDotAndDotDot(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Add(root, "f1", 5, false))
	require.NoError(t, l.Add(root, "f2", 6, false))

	var names []string
	for {
		name, ok, err := l.Readdir(root)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.ElementsMatch(t, []string{"f1", "f2"}, names)
}

func TestRemoveClearsEntry(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	sec, err := l.fm.Allocate(1)
	require.NoError(t, err)
	require.NoError(t, l.inodes.Create(sec, 0, false))
	require.NoError(t, l.Add(root, "f1", sec, false))
	require.NoError(t, l.Remove(root, "f1", 0))

	_, _, found, err := l.Lookup(root, "f1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveNonexistentFails(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	assert.Error(t, l.Remove(root, "nope", 0))
}

func TestRemoveNonEmptyDirectoryFails(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Mkdir(root, "d"))
	sec, _, found, err := l.Lookup(root, "d")
	require.NoError(t, err)
	require.True(t, found)

	sub, err := l.Open(sec)
	require.NoError(t, err)
	require.NoError(t, l.Add(sub, "f", 10, false))
	require.NoError(t, l.Close(sub))

	err = l.Remove(root, "d", 0)
	assert.Error(t, err)

	// still present
	_, _, found, err = l.Lookup(root, "d")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRemoveEmptyDirectorySucceeds(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Mkdir(root, "d"))
	require.NoError(t, l.Remove(root, "d", 0))

	_, _, found, err := l.Lookup(root, "d")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveCwdFails(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Mkdir(root, "d"))
	sec, _, found, err := l.Lookup(root, "d")
	require.NoError(t, err)
	require.True(t, found)

	err = l.Remove(root, "d", sec)
	assert.ErrorIs(t, err, fserrors.ErrBusy)
}

func TestMkdirNestedThenChdirDotDot(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Mkdir(root, "d"))
	dSec, _, found, err := l.Lookup(root, "d")
	require.NoError(t, err)
	require.True(t, found)

	d, err := l.Open(dSec)
	require.NoError(t, err)
	defer l.Close(d)

	require.NoError(t, l.Mkdir(d, "sub"))
	subSec, _, found, err := l.Lookup(d, "sub")
	require.NoError(t, err)
	require.True(t, found)

	sub, err := l.Open(subSec)
	require.NoError(t, err)
	defer l.Close(sub)

	parentSec, isDir, found, err := l.Lookup(sub, "..")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, isDir)
	assert.Equal(t, dSec, parentSec)
}

func TestResolveMultiComponentPath(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Mkdir(root, "a"))
	aSec, _, _, err := l.Lookup(root, "a")
	require.NoError(t, err)
	a, err := l.Open(aSec)
	require.NoError(t, err)
	require.NoError(t, l.Add(a, "b", 9, false))
	require.NoError(t, l.Close(a))

	sec, isDir, err := l.Resolve(root, "a/b")
	require.NoError(t, err)
	assert.False(t, isDir)
	assert.Equal(t, blockdevice.SectorID(9), sec)
}

func TestResolveThroughNonDirectoryFails(t *testing.T) {
	l := newTestLayer(t, 64)
	root := newTestRoot(t, l)
	defer l.Close(root)

	require.NoError(t, l.Add(root, "f", 5, false))
	_, _, err := l.Resolve(root, "f/x")
	assert.Error(t, err)
}
