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
	"fmt"
	"strconv"
	"strings"

	"periph.io/x/conn/v3/gpio"
)

// InvertedBit is the reserved high bit of a packed pin number that marks the
// line as inverted.
const InvertedBit uint32 = 1 << 31

// Pin is a decoded GPIO line: the sysfs line number and whether the logical
// level is inverted.
type Pin struct {
	Line     int
	Inverted bool
}

// DecodePin splits a packed pin number into its line and inversion flag.
func DecodePin(raw uint32) Pin {
	return Pin{
		Line:     int(raw &^ InvertedBit),
		Inverted: raw&InvertedBit != 0,
	}
}

// Raw packs the pin back into its external representation.
func (p Pin) Raw() uint32 {
	raw := uint32(p.Line) //nolint:gosec // line numbers are validated non-negative
	if p.Inverted {
		raw |= InvertedBit
	}
	return raw
}

// AssertLevel returns the physical level that holds the target in reset.
// Reset is active low unless the pin is inverted.
func (p Pin) AssertLevel() gpio.Level {
	if p.Inverted {
		return gpio.High
	}
	return gpio.Low
}

// ReleaseLevel returns the physical level that lets the target run.
func (p Pin) ReleaseLevel() gpio.Level {
	return !p.AssertLevel()
}

func (p Pin) String() string {
	if p.Inverted {
		return fmt.Sprintf("~%d", p.Line)
	}
	return fmt.Sprintf("%d", p.Line)
}

// ParsePin parses the form printed by Pin.String: a line number, optionally
// prefixed with "~" for an inverted line.
func ParsePin(s string) (Pin, error) {
	s = strings.TrimSpace(s)
	inverted := strings.HasPrefix(s, "~")
	line, err := strconv.ParseUint(strings.TrimPrefix(s, "~"), 10, 31)
	if err != nil {
		return Pin{}, &ConfigError{Field: "reset pin", Reason: fmt.Sprintf("invalid pin %q", s)}
	}
	return Pin{Line: int(line), Inverted: inverted}, nil
}

// Direction is the content written to a sysfs direction file. The output
// directions carry the initial drive level so that direction and level are
// set in a single kernel write.
type Direction string

const (
	// DirectionIn tri-states the line.
	DirectionIn Direction = "in"
	// DirectionOutLow configures an output driven low.
	DirectionOutLow Direction = "low"
	// DirectionOutHigh configures an output driven high.
	DirectionOutHigh Direction = "high"
)

// OutputDirection returns the direction that configures an output already
// driven at level.
func OutputDirection(level gpio.Level) Direction {
	if level == gpio.High {
		return DirectionOutHigh
	}
	return DirectionOutLow
}

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	switch d {
	case DirectionIn, DirectionOutLow, DirectionOutHigh:
		return true
	default:
		return false
	}
}
