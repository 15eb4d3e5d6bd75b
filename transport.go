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

package avrisp

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// DefaultSpeed is the SPI clock used when none is configured.
const DefaultSpeed = 400 * physic.KiloHertz

// Transport defines the interface for full-duplex SPI exchanges with the
// target. Implementations do not retry; retry policy belongs to the
// programmer.
type Transport interface {
	// Transfer clocks out tx while clocking in a response of the same length
	Transfer(tx []byte) ([]byte, error)

	// Close releases the underlying device handle
	Close() error

	// Speed returns the clock rate used for transfers
	Speed() physic.Frequency

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportSpidev represents the Linux spidev character device.
	TransportSpidev TransportType = "spidev"
	// TransportPeriph represents an SPI port from the periph.io registry.
	TransportPeriph TransportType = "periph"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportFactory opens a transport for a device path at the given speed
type TransportFactory func(path string, speed physic.Frequency) (Transport, error)

// ResolveSpeed returns speed, or DefaultSpeed when speed is unset.
func ResolveSpeed(speed physic.Frequency) physic.Frequency {
	if speed <= 0 {
		return DefaultSpeed
	}
	return speed
}

// LineController drives a GPIO line by number. Line numbers never carry the
// inversion bit.
type LineController interface {
	// Export makes the line available to user space
	Export(line int) error

	// SetDirection configures the line; output directions also set the
	// initial level in the same write
	SetDirection(line int, dir Direction) error

	// SetValue writes a logic level to an output line
	SetValue(line int, level gpio.Level) error

	// Unexport releases the line
	Unexport(line int) error
}
