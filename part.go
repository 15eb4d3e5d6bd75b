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
	"time"

	"github.com/ZaparooProject/go-avrisp/isp"
)

// Part describes the per-device encodings and timing consumed by the
// programmer. It is supplied by a part database.
type Part struct {
	// ProgramEnable is the "program enable" instruction template. Required.
	ProgramEnable *isp.Operation
	// ChipErase is the "chip erase" instruction template. Optional.
	ChipErase *isp.Operation
	// Name identifies the part in logs and errors.
	Name string
	// ChipEraseDelay is how long the target needs to settle after a chip
	// erase before it accepts another instruction.
	ChipEraseDelay time.Duration
	// TPIOnly marks parts that only speak TPI and cannot be programmed over
	// the SPI serial programming interface.
	TPIOnly bool
}

// HasChipErase reports whether the part defines a chip erase instruction
func (p *Part) HasChipErase() bool {
	return p != nil && p.ChipErase != nil
}
