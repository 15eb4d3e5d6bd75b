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

package isp

import (
	"fmt"
	"strconv"
	"strings"
)

// BitKind describes what a single bit of a command template carries.
type BitKind uint8

const (
	// BitIgnore bits are left as they are in the frame (zero for a fresh frame).
	BitIgnore BitKind = iota
	// BitValue bits carry a fixed 0 or 1.
	BitValue
	// BitAddress bits carry one bit of the memory address.
	BitAddress
	// BitInput bits carry one bit of the data byte written to the target.
	BitInput
	// BitOutput bits carry one bit of the data byte read back from the target.
	BitOutput
)

// String returns the template character used for the kind.
func (k BitKind) String() string {
	switch k {
	case BitIgnore:
		return "x"
	case BitValue:
		return "v"
	case BitAddress:
		return "a"
	case BitInput:
		return "i"
	case BitOutput:
		return "o"
	default:
		return "?"
	}
}

// Bit is one entry of an Operation template.
type Bit struct {
	Kind BitKind
	// Number is the address bit for BitAddress and the data bit (0-7) for
	// BitInput and BitOutput.
	Number uint8
	// Value is the fixed level of a BitValue bit.
	Value bool
}

// Operation is a 32-bit command template. Index 0 is the least significant
// bit of the last frame byte; index 31 is the most significant bit of the
// first frame byte.
type Operation struct {
	Bits [FrameSize * 8]Bit
}

// OperationFromWord returns a template whose every bit is a fixed value taken
// from word, e.g. 0xAC530000 for "program enable".
func OperationFromWord(word uint32) *Operation {
	op := &Operation{}
	for i := range op.Bits {
		op.Bits[i] = Bit{Kind: BitValue, Value: word&(1<<uint(i)) != 0}
	}
	return op
}

// ParseOperation parses the textual template form: 32 whitespace separated
// tokens, most significant bit first. Tokens are "0", "1", "x" (ignore),
// "aN" (address bit N), "i" (input) and "o" (output). Input and output bits
// take their data bit number from their position within the frame byte.
func ParseOperation(text string) (*Operation, error) {
	fields := strings.Fields(text)
	if len(fields) != FrameSize*8 {
		return nil, fmt.Errorf("operation template has %d bits, want %d", len(fields), FrameSize*8)
	}

	op := &Operation{}
	for pos, field := range fields {
		idx := FrameSize*8 - 1 - pos
		bit, err := parseBit(field, idx)
		if err != nil {
			return nil, fmt.Errorf("operation template bit %d: %w", idx, err)
		}
		op.Bits[idx] = bit
	}
	return op, nil
}

func parseBit(field string, idx int) (Bit, error) {
	switch strings.ToLower(field) {
	case "0":
		return Bit{Kind: BitValue}, nil
	case "1":
		return Bit{Kind: BitValue, Value: true}, nil
	case "x":
		return Bit{Kind: BitIgnore}, nil
	case "i":
		return Bit{Kind: BitInput, Number: uint8(idx % 8)}, nil
	case "o":
		return Bit{Kind: BitOutput, Number: uint8(idx % 8)}, nil
	}

	if field[0] == 'a' || field[0] == 'A' {
		n, err := strconv.ParseUint(field[1:], 10, 5)
		if err != nil {
			return Bit{}, fmt.Errorf("invalid address bit %q: %w", field, err)
		}
		return Bit{Kind: BitAddress, Number: uint8(n)}, nil
	}

	return Bit{}, fmt.Errorf("unknown token %q", field)
}

// String renders the template back into its textual form.
func (op *Operation) String() string {
	var sb strings.Builder
	for i := len(op.Bits) - 1; i >= 0; i-- {
		bit := op.Bits[i]
		switch bit.Kind {
		case BitValue:
			if bit.Value {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		case BitAddress:
			sb.WriteString("a" + strconv.Itoa(int(bit.Number)))
		case BitIgnore, BitInput, BitOutput:
			sb.WriteString(bit.Kind.String())
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// position returns the frame byte and mask addressed by template index i.
func position(i int) (index int, mask byte) {
	return FrameSize - 1 - i/8, 1 << uint(i%8)
}

func setBit(frame *Frame, i int, on bool) {
	j, mask := position(i)
	if on {
		frame[j] |= mask
	} else {
		frame[j] &^= mask
	}
}
