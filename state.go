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

// State is the lifecycle state of a Programmer
type State int

// Programmer states, in lifecycle order
const (
	StateClosed State = iota
	StateOpened
	StateResetAsserted
	StateProgramEnabled
	StateErasing
	StateIdle
	StateResetReleased
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateResetAsserted:
		return "reset asserted"
	case StateProgramEnabled:
		return "program enabled"
	case StateErasing:
		return "erasing"
	case StateIdle:
		return "idle"
	case StateResetReleased:
		return "reset released"
	default:
		return "unknown"
	}
}

// resetHeld reports whether RESET is asserted in this state, which is the
// precondition for every SPI transfer to the target
func (s State) resetHeld() bool {
	switch s {
	case StateResetAsserted, StateProgramEnabled, StateErasing, StateIdle:
		return true
	case StateClosed, StateOpened, StateResetReleased:
		return false
	default:
		return false
	}
}
