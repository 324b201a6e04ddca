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

// Package task is a minimal stand-in for the task/thread module that
// spec.md §1 lists as an external collaborator: "current task, current
// working directory field, task-local open-file table". The real module
// (scheduling, stacks, per-task memory) is out of scope; this package
// only carries the two pieces of per-task state the filesystem facade
// reads directly — the working-directory sector and the file-descriptor
// table — with the fd-table allocation pattern grounded on the
// teacher's fs/fs.go handles map (nextHandleID, map[HandleID]handle).
package task

import (
	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/directory"
	"github.com/kernellab/blockfs/internal/inode"
)

// FD identifies an open file or directory within one Task.
type FD int

// Handle is one entry in a task's file-descriptor table: an open inode
// with a byte cursor, plus the directory wrapper when the inode is a
// directory (so readdir can advance its own cursor independently of
// plain reads).
type Handle struct {
	In  *inode.Inode
	Dir *directory.Directory // non-nil iff In.IsDir()
	pos int64
}

// Pos returns the handle's current read/write or seek cursor.
func (h *Handle) Pos() int64 { return h.pos }

// Seek repositions the handle's cursor, per spec.md §6's seek syscall.
func (h *Handle) Seek(pos int64) { h.pos = pos }

// Advance moves the cursor forward by n bytes, as read/write do after a
// successful transfer.
func (h *Handle) Advance(n int) { h.pos += int64(n) }

// Task is one task's filesystem-visible state: its current working
// directory and its open-file table. The current-working-directory
// sector is read and written only while the facade lock is held, per
// spec.md §5's shared-resource policy, so it carries no lock of its own.
type Task struct {
	Cwd blockdevice.SectorID

	handles    map[FD]*Handle
	nextHandle FD
}

// New creates a Task whose working directory starts at cwd (typically
// the root sector for a freshly spawned task). Descriptors 0 and 1 are
// reserved (1 is the console fd special-cased by internal/syscalls), so
// nextHandle starts at 2.
func New(cwd blockdevice.SectorID) *Task {
	return &Task{Cwd: cwd, handles: make(map[FD]*Handle), nextHandle: 2}
}

// Install adds h to the task's fd table and returns its new descriptor.
// Descriptors are never reused while the task is alive, mirroring the
// teacher's monotonic nextHandleID.
func (t *Task) Install(h *Handle) FD {
	fd := t.nextHandle
	t.nextHandle++
	t.handles[fd] = h
	return fd
}

// Lookup returns the handle for fd, or (nil, false) if fd is not open.
func (t *Task) Lookup(fd FD) (*Handle, bool) {
	h, ok := t.handles[fd]
	return h, ok
}

// Release removes fd from the task's table, returning the handle that was
// there so the caller can close its underlying inode/directory.
func (t *Task) Release(fd FD) (*Handle, bool) {
	h, ok := t.handles[fd]
	if ok {
		delete(t.handles, fd)
	}
	return h, ok
}

// Table is the set of live tasks, keyed by an opaque ID assigned by the
// caller (the out-of-scope task/thread module in a real kernel).
type Table struct {
	tasks map[ID]*Task
}

// ID identifies a task across calls into the facade.
type ID uint64

// NewTable creates an empty task table.
func NewTable() *Table {
	return &Table{tasks: make(map[ID]*Task)}
}

// Spawn registers a new task starting with working directory cwd and
// returns its ID.
func (tb *Table) Spawn(id ID, cwd blockdevice.SectorID) *Task {
	t := New(cwd)
	tb.tasks[id] = t
	return t
}

// Get returns the task registered under id, or (nil, false).
func (tb *Table) Get(id ID) (*Task, bool) {
	t, ok := tb.tasks[id]
	return t, ok
}

// Remove deregisters a task, e.g. on process exit.
func (tb *Table) Remove(id ID) {
	delete(tb.tasks, id)
}
