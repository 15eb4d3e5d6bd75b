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

// Package linuxspi assembles the Linux programmer: a spidev or periph.io SPI
// transport plus a sysfs GPIO line for RESET.
package linuxspi

import "errors"

// Name is the programmer type as users select it
const Name = "linuxspi"

// Description is the one-line summary shown in programmer listings
const Description = "Use Linux SPI device in /dev/spidev*"

// ErrUnsupportedPlatform is returned on platforms without spidev and sysfs GPIO
var ErrUnsupportedPlatform = errors.New("linuxspi is only available on Linux")
