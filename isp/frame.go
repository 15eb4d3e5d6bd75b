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

// Package isp encodes AVR serial programming instructions.
//
// Every instruction is a 4-byte frame clocked out over SPI while the
// target's reply is clocked in. The per-part bit layout of each instruction
// comes from an Operation template supplied by a part database.
package isp

import "fmt"

// FrameSize is the length in bytes of every ISP instruction.
const FrameSize = 4

// Frame is one ISP instruction or its response.
type Frame [FrameSize]byte

// String formats the frame as space separated hex bytes.
func (f Frame) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X", f[0], f[1], f[2], f[3])
}

// BuildFrame applies the fixed-value bits of op onto a zeroed frame.
func BuildFrame(op *Operation) Frame {
	var frame Frame
	SetBits(op, &frame)
	return frame
}

// SetBits writes the fixed-value bits of op into frame, leaving all other
// bits untouched.
func SetBits(op *Operation, frame *Frame) {
	for i, bit := range op.Bits {
		if bit.Kind == BitValue {
			setBit(frame, i, bit.Value)
		}
	}
}

// SetAddress writes the address bits of op into frame.
func SetAddress(op *Operation, frame *Frame, addr uint32) {
	for i, bit := range op.Bits {
		if bit.Kind == BitAddress {
			setBit(frame, i, addr&(1<<uint(bit.Number)) != 0)
		}
	}
}

// SetInput writes the data byte into the input bits of op.
func SetInput(op *Operation, frame *Frame, data byte) {
	for i, bit := range op.Bits {
		if bit.Kind == BitInput {
			setBit(frame, i, data&(1<<bit.Number) != 0)
		}
	}
}

// Output collects the output bits of op from a response frame.
func Output(op *Operation, response Frame) byte {
	var data byte
	for i, bit := range op.Bits {
		if bit.Kind != BitOutput {
			continue
		}
		j, mask := position(i)
		if response[j]&mask != 0 {
			data |= 1 << bit.Number
		}
	}
	return data
}

// VerifyProgramEnable reports whether the target echoed the second command
// byte in the third response byte, which is how an AVR acknowledges that it
// entered serial programming mode.
func VerifyProgramEnable(frame, response Frame) bool {
	return response[2] == frame[1]
}
