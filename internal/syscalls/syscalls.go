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

// Package syscalls implements the system-call surface from spec.md §6,
// translating the facade's (value, error) returns into the raw
// register-style results a real syscall dispatcher would hand back to
// user code: -1 on any failure, per spec.md §7 ("system-call wrappers
// translate false into -1 return codes"). User-memory validation and
// the actual trap/dispatch mechanism are out of scope collaborators
// (spec.md §1); this package is what a dispatcher would call into once
// arguments are already validated and copied into kernel space.
package syscalls

import (
	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/filesys"
	"github.com/kernellab/blockfs/internal/task"
)

const consoleFD = task.FD(1)

// Dispatcher binds the filesystem facade to a task table, exposing one
// method per row of spec.md §6's syscall table.
type Dispatcher struct {
	fs    *filesys.Filesystem
	tasks *task.Table
}

// New constructs a Dispatcher over fs and tasks.
func New(fs *filesys.Filesystem, tasks *task.Table) *Dispatcher {
	return &Dispatcher{fs: fs, tasks: tasks}
}

func (d *Dispatcher) mustTask(id task.ID) *task.Task {
	t, ok := d.tasks.Get(id)
	if !ok {
		panic("syscalls: unknown task id")
	}
	return t
}

// Create implements the "create" syscall: path, size -> ok.
func (d *Dispatcher) Create(id task.ID, path string, size int64) bool {
	t := d.mustTask(id)
	return d.fs.Create(path, size, t.Cwd) == nil
}

// Remove implements the "remove" syscall: path -> ok.
func (d *Dispatcher) Remove(id task.ID, path string) bool {
	t := d.mustTask(id)
	return d.fs.Remove(path, t.Cwd) == nil
}

// Open implements the "open" syscall: path -> fd or -1.
func (d *Dispatcher) Open(id task.ID, path string) int {
	t := d.mustTask(id)
	in, err := d.fs.Open(path, t.Cwd)
	if err != nil {
		return -1
	}

	h := &task.Handle{In: in}
	if in.IsDir() {
		h.Dir = d.fs.WrapDir(in)
	}
	return int(t.Install(h))
}

// Filesize implements the "filesize" syscall: fd -> bytes.
func (d *Dispatcher) Filesize(id task.ID, fd int) int64 {
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	if !ok {
		return -1
	}
	return h.In.Length()
}

// Read implements the "read" syscall: fd, buf, n -> bytes read.
// fd 1 (the console output fd) is not a readable stream in this module
// and always returns -1, matching the reserved console fd in spec.md §6.
func (d *Dispatcher) Read(id task.ID, fd int, buf []byte) int {
	if task.FD(fd) == consoleFD {
		return -1
	}
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	if !ok {
		return -1
	}

	n, err := d.fs.ReadAt(h.In, buf, h.Pos())
	if err != nil {
		return -1
	}
	h.Advance(n)
	return n
}

// Write implements the "write" syscall: fd, buf, n -> bytes written.
// fd 1 is the console: this module has no console collaborator wired
// in, so writes to it are accepted and discarded, returning len(buf).
func (d *Dispatcher) Write(id task.ID, fd int, buf []byte) int {
	if task.FD(fd) == consoleFD {
		return len(buf)
	}
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	if !ok {
		return -1
	}

	n, err := d.fs.WriteAt(h.In, buf, h.Pos())
	if err != nil {
		return -1
	}
	h.Advance(n)
	return n
}

// Seek implements the "seek" syscall: fd, pos -> (none; repositions fd).
func (d *Dispatcher) Seek(id task.ID, fd int, pos int64) {
	t := d.mustTask(id)
	if h, ok := t.Lookup(task.FD(fd)); ok {
		h.Seek(pos)
	}
}

// Tell implements the "tell" syscall: fd -> pos.
func (d *Dispatcher) Tell(id task.ID, fd int) int64 {
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	if !ok {
		return -1
	}
	return h.Pos()
}

// Close implements the "close" syscall: fd -> (none; releases fd).
func (d *Dispatcher) Close(id task.ID, fd int) {
	t := d.mustTask(id)
	h, ok := t.Release(task.FD(fd))
	if !ok {
		return
	}
	if h.Dir != nil {
		d.fs.CloseDir(h.Dir)
		return
	}
	d.fs.Close(h.In)
}

// Inumber implements the "inumber" syscall: fd -> inode sector.
func (d *Dispatcher) Inumber(id task.ID, fd int) int64 {
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	if !ok {
		return -1
	}
	return int64(h.In.Sector())
}

// Mkdir implements the "mkdir" syscall: path -> ok.
func (d *Dispatcher) Mkdir(id task.ID, path string) bool {
	t := d.mustTask(id)
	return d.fs.Mkdir(path, t.Cwd) == nil
}

// Chdir implements the "chdir" syscall: path -> ok.
func (d *Dispatcher) Chdir(id task.ID, path string) bool {
	t := d.mustTask(id)
	sector, err := d.fs.Chdir(path, t.Cwd)
	if err != nil {
		return false
	}
	t.Cwd = sector
	return true
}

// Isdir implements the "isdir" syscall: fd -> bool.
func (d *Dispatcher) Isdir(id task.ID, fd int) bool {
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	return ok && h.In.IsDir()
}

// Readdir implements the "readdir" syscall: fd, name_buf -> ok. name_buf
// must be at least 15 bytes (spec.md §6's directory.NameMax+1).
func (d *Dispatcher) Readdir(id task.ID, fd int, nameBuf []byte) bool {
	t := d.mustTask(id)
	h, ok := t.Lookup(task.FD(fd))
	if !ok || h.Dir == nil {
		return false
	}

	name, found, err := d.fs.Readdir(h.Dir)
	if err != nil || !found {
		return false
	}
	if len(name) > len(nameBuf)-1 {
		return false
	}
	n := copy(nameBuf, name)
	nameBuf[n] = 0
	return true
}

// SpawnRootTask registers a new task whose working directory starts at
// the filesystem root, mirroring a freshly loaded user process that has
// not yet called chdir.
func SpawnRootTask(tasks *task.Table, id task.ID) *task.Task {
	return tasks.Spawn(id, blockdevice.RootDirSector)
}
