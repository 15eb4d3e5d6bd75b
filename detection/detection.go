// go-avrisp
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-avrisp.
//
// go-avrisp is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-avrisp is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-avrisp; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package detection finds SPI devices a programmer can be attached to.
package detection

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultDevDir is where the kernel creates spidev nodes
const DefaultDevDir = "/dev"

// ErrNoDevicesFound is returned when no spidev node is present
var ErrNoDevicesFound = errors.New("no SPI devices found")

// DeviceInfo describes one spidev node
type DeviceInfo struct {
	Path       string
	Name       string
	Bus        int
	ChipSelect int
}

// Options controls a device scan
type Options struct {
	// DevDir is searched for spidevB.C nodes.
	DevDir string
	// IgnorePaths lists device paths to leave out of the result.
	IgnorePaths []string
}

// DefaultOptions returns options that scan /dev
func DefaultOptions() Options {
	return Options{DevDir: DefaultDevDir}
}

// FindSPIDevices lists the spidev nodes under opts.DevDir, ordered by bus and
// chip select
func FindSPIDevices(opts Options) ([]DeviceInfo, error) {
	dir := opts.DevDir
	if dir == "" {
		dir = DefaultDevDir
	}

	matches, err := filepath.Glob(filepath.Join(dir, "spidev*"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan for SPI devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(matches))
	for _, path := range matches {
		var bus, cs int
		if _, err := fmt.Sscanf(filepath.Base(path), "spidev%d.%d", &bus, &cs); err != nil {
			continue
		}
		if IsPathIgnored(path, opts.IgnorePaths) {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		devices = append(devices, DeviceInfo{
			Path:       path,
			Name:       fmt.Sprintf("SPI bus %d, chip select %d", bus, cs),
			Bus:        bus,
			ChipSelect: cs,
		})
	}

	if len(devices) == 0 {
		return nil, ErrNoDevicesFound
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Bus != devices[j].Bus {
			return devices[i].Bus < devices[j].Bus
		}
		return devices[i].ChipSelect < devices[j].ChipSelect
	})
	return devices, nil
}

// IsPathIgnored checks if a device path should be ignored.
// Paths are compared after cleaning, so "/dev/../dev/spidev0.0" matches
// "/dev/spidev0.0".
func IsPathIgnored(devicePath string, ignorePaths []string) bool {
	if devicePath == "" || len(ignorePaths) == 0 {
		return false
	}

	cleaned := filepath.Clean(devicePath)
	for _, ignorePath := range ignorePaths {
		if ignorePath == "" {
			continue
		}
		if cleaned == filepath.Clean(ignorePath) {
			return true
		}
	}
	return false
}
