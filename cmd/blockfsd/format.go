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

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kernellab/blockfs/internal/blockdevice"
	"github.com/kernellab/blockfs/internal/filesys"
)

// formatCmd creates a fresh disk image and formats it, standing in for
// the original filesys_init(format) boot-time parameter (SPEC_FULL.md
// SUPPLEMENTED FEATURES) as an explicit CLI verb since this daemon has
// no boot sequence of its own.
var formatCmd = &cobra.Command{
	Use:   "format PATH SIZE_MB",
	Short: "Create and format a new disk image",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sizeMB, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid size: %w", err)
		}
		return formatDiskImage(args[0], uint32(sizeMB))
	},
}

func formatDiskImage(path string, sizeMB uint32) error {
	sectorCount := sizeMB * (1 << 20) / blockdevice.SectorSize
	device, err := blockdevice.OpenFileDevice(path, sectorCount)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer device.Close()

	fs, err := filesys.Format(device)
	if err != nil {
		return fmt.Errorf("formatting %s: %w", path, err)
	}
	return fs.Shutdown()
}

func openExistingDevice(path string) (*blockdevice.FileDevice, error) {
	return blockdevice.OpenExisting(path)
}
