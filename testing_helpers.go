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
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// MockTransport is a recording transport for tests. Every transfer is
// recorded; replies come from ResponseFunc, or echo the frame shifted by one
// byte the way an AVR in programming mode does.
type MockTransport struct {
	ResponseFunc func(call int, tx []byte) ([]byte, error)
	CloseErr     error
	transfers    [][]byte
	speed        physic.Frequency
	mu           sync.Mutex
	closed       bool
	closeCalls   int
}

// NewMockTransport creates a mock transport running at speed
func NewMockTransport(speed physic.Frequency) *MockTransport {
	return &MockTransport{speed: speed}
}

// Transfer records tx and returns the configured reply
func (m *MockTransport) Transfer(tx []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, NewTransportError("transfer", "mock", ErrSessionClosed)
	}
	call := len(m.transfers)
	m.transfers = append(m.transfers, append([]byte(nil), tx...))

	if m.ResponseFunc != nil {
		return m.ResponseFunc(call, tx)
	}
	return EchoResponse(tx), nil
}

// EchoResponse returns what an AVR in programming mode clocks back: each byte
// one position later than it was sent
func EchoResponse(tx []byte) []byte {
	rx := make([]byte, len(tx))
	rx[0] = 0xFF
	copy(rx[1:], tx)
	return rx
}

// Close marks the transport closed
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCalls++
	return m.CloseErr
}

// Speed returns the configured speed
func (m *MockTransport) Speed() physic.Frequency {
	return m.speed
}

// Type returns TransportMock
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Transfers returns a copy of every frame sent so far
func (m *MockTransport) Transfers() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.transfers))
	copy(out, m.transfers)
	return out
}

// CloseCalls returns how many times Close was called
func (m *MockTransport) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// MockLineController records GPIO operations as strings such as
// "export 25" or "direction 25 low". Errors maps an operation name
// ("export", "direction", "value", "unexport") to the error it returns.
type MockLineController struct {
	Errors map[string]error
	ops    []string
	mu     sync.Mutex
}

// NewMockLineController creates an empty recording line controller
func NewMockLineController() *MockLineController {
	return &MockLineController{Errors: map[string]error{}}
}

func (m *MockLineController) record(op, entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, entry)
	return m.Errors[op]
}

// Export records an export
func (m *MockLineController) Export(line int) error {
	return m.record("export", fmt.Sprintf("export %d", line))
}

// SetDirection records a direction write
func (m *MockLineController) SetDirection(line int, dir Direction) error {
	return m.record("direction", fmt.Sprintf("direction %d %s", line, dir))
}

// SetValue records a value write
func (m *MockLineController) SetValue(line int, level gpio.Level) error {
	value := 0
	if level == gpio.High {
		value = 1
	}
	return m.record("value", fmt.Sprintf("value %d %d", line, value))
}

// Unexport records an unexport
func (m *MockLineController) Unexport(line int) error {
	return m.record("unexport", fmt.Sprintf("unexport %d", line))
}

// Ops returns a copy of the recorded operations
func (m *MockLineController) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

// Ensure the mocks implement their interfaces
var (
	_ Transport      = (*MockTransport)(nil)
	_ LineController = (*MockLineController)(nil)
)
