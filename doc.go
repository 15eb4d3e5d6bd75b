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

/*
Package avrisp provides a pure Go programmer for AVR microcontrollers using
the serial programming (ISP) interface on a Linux SPI device.

The host talks to the target over SPI in mode 0 with 8-bit words, while a
GPIO line holds the target's RESET pin asserted for the whole session. Every
instruction is a 4-byte frame built from the part's instruction template.

Features:
  - spidev ioctl transport and a periph.io transport
  - sysfs GPIO RESET control, including inverted lines
  - Program enable with retries, chip erase and raw instruction pass-through
  - Part descriptions loaded from YAML
  - Structured logging with zap

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-avrisp"
	    "github.com/ZaparooProject/go-avrisp/linuxspi"
	    "github.com/ZaparooProject/go-avrisp/partdb"
	)

	db, err := partdb.Default()
	if err != nil {
	    log.Fatal(err)
	}
	part, err := db.Lookup("m328p")
	if err != nil {
	    log.Fatal(err)
	}

	// Open the device and assert RESET on GPIO 25
	prog, err := linuxspi.Open(avrisp.Config{
	    DevicePath: "/dev/spidev0.0",
	    ResetPin:   25,
	    Part:       part,
	})
	if err != nil {
	    log.Fatal(err)
	}
	defer prog.Close()

	if err := prog.ProgramEnable(); err != nil {
	    log.Fatal(err)
	}
	if err := prog.ChipErase(); err != nil {
	    log.Fatal(err)
	}

RESET Pin Numbers:

A pin number is the sysfs GPIO line, with InvertedBit set when the board
drives RESET through an inverter. An inverted line is asserted high instead
of low. The inversion never changes which line is used.

Error Handling:

All operations return errors that can be inspected:

	if errors.Is(err, avrisp.ErrDeviceNotResponding) {
	    // Check wiring and that RESET reaches the target
	}
	if avrisp.IsFatal(err) {
	    // Configuration problem, retrying will not help
	}

Thread Safety:

Programmer operations are not thread-safe. The SPI device and the RESET line
are process-wide resources, so use one Programmer at a time.
*/
package avrisp
