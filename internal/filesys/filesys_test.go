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

package filesys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/fserrors"
)

func newTestFS(t *testing.T, sectors uint32) *Filesystem {
	t.Helper()
	dev := blockdevice.NewMemoryDevice(sectors)
	fs, err := Format(dev)
	require.NoError(t, err)
	return fs
}

// TestBasicCreateWriteReadClose exercises spec.md §8 scenario S1: create,
// write "hello", close, reopen, read it back.
func TestBasicCreateWriteReadClose(t *testing.T) {
	fs := newTestFS(t, 64)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Create("/a", 0, root))

	in, err := fs.Open("/a", root)
	require.NoError(t, err)
	n, err := fs.WriteAt(in, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, fs.Close(in))

	in2, err := fs.Open("/a", root)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err = fs.ReadAt(in2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, fs.Close(in2))
}

// TestGrowthPastSingleIndirect exercises S2: a 100,000-byte write forces
// single-indirect (and well within double-indirect) growth.
func TestGrowthPastSingleIndirect(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Create("/big", 0, root))
	in, err := fs.Open("/big", root)
	require.NoError(t, err)

	payload := make([]byte, 100000)
	n, err := fs.WriteAt(in, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, 100000, n)
	assert.Equal(t, int64(100000), in.Length())

	buf := make([]byte, 1)
	n, err = fs.ReadAt(in, buf, 99999)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0), buf[0])

	n, err = fs.ReadAt(in, buf, 512)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0), buf[0])

	require.NoError(t, fs.Close(in))

	// length persists across close/reopen
	in2, err := fs.Open("/big", root)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), in2.Length())
	require.NoError(t, fs.Close(in2))
}

// TestSparseWrite exercises S3: writing past end-of-file leaves a
// zero-filled hole.
func TestSparseWrite(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Create("/sparse", 0, root))
	in, err := fs.Open("/sparse", root)
	require.NoError(t, err)

	n, err := fs.WriteAt(in, []byte("X"), 10000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(10001), in.Length())

	buf := make([]byte, 1)
	n, err = fs.ReadAt(in, buf, 5000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0), buf[0])

	n, err = fs.ReadAt(in, buf, 10000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte('X'), buf[0])

	require.NoError(t, fs.Close(in))
}

// TestNestedMkdirChdir exercises S4: nested mkdir/chdir, then verifies the
// new file's directory's ".." resolves back to its parent's sector.
func TestNestedMkdirChdir(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Mkdir("/d", root))
	dSector, err := fs.Chdir("/d", root)
	require.NoError(t, err)

	require.NoError(t, fs.Mkdir("sub", dSector))
	subSector, err := fs.Chdir("sub", dSector)
	require.NoError(t, err)

	require.NoError(t, fs.Create("f", 0, subSector))

	fs.mu.Lock()
	sub, err := fs.dirs.Open(subSector)
	require.NoError(t, err)
	parentSector, _, found, err := fs.dirs.Lookup(sub, "..")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, fs.dirs.Close(sub))
	fs.mu.Unlock()

	assert.Equal(t, dSector, parentSector)
}

// TestRemoveBusyCwd exercises S5: removing the calling task's own working
// directory fails with Busy; removing it from elsewhere (a different
// task's cwd) succeeds, and a subsequent open fails.
func TestRemoveBusyCwd(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Mkdir("/d", root))
	dSector, err := fs.Chdir("/d", root)
	require.NoError(t, err)

	// This call is made as the task that cd'ed into /d (cwd == dSector),
	// so removing its own working directory must fail with Busy.
	err = fs.Remove("/d", dSector)
	assert.ErrorIs(t, err, fserrors.ErrBusy)

	// Switch back to root and remove succeeds.
	require.NoError(t, fs.Remove("/d", root))

	_, err = fs.Open("/d", root)
	assert.Error(t, err)
}

// TestDupAddViaCreate exercises S6: creating the same name twice fails,
// and the directory lists it exactly once.
func TestDupAddViaCreate(t *testing.T) {
	fs := newTestFS(t, 4096)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Create("/x", 0, root))
	err := fs.Create("/x", 0, root)
	assert.ErrorIs(t, err, fserrors.ErrAlreadyExists)

	rootDir, err := fs.OpenRootDir()
	require.NoError(t, err)
	defer fs.CloseDir(rootDir)

	var names []string
	for {
		name, ok, err := fs.Readdir(rootDir)
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{"x"}, names)
}

func TestDenyWriteBlocksWrite(t *testing.T) {
	fs := newTestFS(t, 64)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Create("/a", 0, root))
	in, err := fs.Open("/a", root)
	require.NoError(t, err)

	fs.inodes.DenyWrite(in)
	n, err := fs.WriteAt(in, []byte("nope"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	fs.inodes.AllowWrite(in)
	require.NoError(t, fs.Close(in))
}

func TestShutdownFlushesDirtySectors(t *testing.T) {
	dev := blockdevice.NewMemoryDevice(64)
	fs, err := Format(dev)
	require.NoError(t, err)
	root := blockdevice.RootDirSector

	require.NoError(t, fs.Create("/a", 0, root))
	in, err := fs.Open("/a", root)
	require.NoError(t, err)
	_, err = fs.WriteAt(in, []byte("hello"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Close(in))

	require.NoError(t, fs.Shutdown())

	// Attach a fresh filesystem view over the same device and confirm the
	// write survived the flush.
	fs2, err := Open(dev)
	require.NoError(t, err)
	in2, err := fs2.Open("/a", root)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err := fs2.ReadAt(in2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))
	require.NoError(t, fs2.Close(in2))
}
