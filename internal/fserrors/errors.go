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

// Package fserrors defines the error kinds surfaced across the filesystem
// core (spec.md §7), shared by the inode, directory and facade layers so
// that callers can test with errors.Is regardless of which layer raised
// the error.
package fserrors

import "errors"

var (
	// ErrNotFound is returned by a lookup that does not find the named entry.
	ErrNotFound = errors.New("fserrors: not found")
	// ErrNameTooLong is returned when a path component exceeds the 14-byte limit.
	ErrNameTooLong = errors.New("fserrors: name too long")
	// ErrAlreadyExists is returned by add when the name is already in use.
	ErrAlreadyExists = errors.New("fserrors: already exists")
	// ErrNotDirectory is returned when a non-final path component is not a directory.
	ErrNotDirectory = errors.New("fserrors: not a directory")
	// ErrNotEmpty is returned when removing a directory that still has entries.
	ErrNotEmpty = errors.New("fserrors: directory not empty")
	// ErrBusy is returned when removing a directory that is the calling task's cwd.
	ErrBusy = errors.New("fserrors: resource busy")
	// ErrNoSpace is returned when the free-map has no sectors left to allocate.
	ErrNoSpace = errors.New("fserrors: no space on device")
	// ErrIO is returned when the block device fails.
	ErrIO = errors.New("fserrors: i/o error")
	// ErrInvalidArgument is returned for empty names, bad file descriptors, etc.
	ErrInvalidArgument = errors.New("fserrors: invalid argument")
)
