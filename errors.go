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
	"errors"
	"fmt"
)

// Sentinel errors for the error taxonomy. Use errors.Is to classify.
var (
	// ErrConfiguration marks misconfiguration: fatal, never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport marks a failed or short SPI transfer.
	ErrTransport = errors.New("spi transport error")
	// ErrShortTransfer marks a transfer that moved fewer bytes than requested.
	ErrShortTransfer = errors.New("short spi transfer")
	// ErrGPIO marks a failed GPIO sysfs operation.
	ErrGPIO = errors.New("gpio error")
	// ErrDeviceNotResponding means the target never entered programming mode.
	ErrDeviceNotResponding = errors.New("device not responding")
	// ErrUnsupportedOperation means the part has no encoding for the operation.
	ErrUnsupportedOperation = errors.New("unsupported operation")
	// ErrSessionClosed is returned when a closed programmer is used.
	ErrSessionClosed = errors.New("programmer session closed")
	// ErrInvalidState is returned when an operation is issued out of order.
	ErrInvalidState = errors.New("invalid programmer state")
)

// ConfigError reports a missing or invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrConfiguration so errors.Is can classify the error
func (*ConfigError) Unwrap() error {
	return ErrConfiguration
}

// TransportError wraps an SPI transfer failure with the device path and byte
// counts. Requested and Moved are only meaningful for short transfers.
type TransportError struct {
	Err       error
	Op        string
	Path      string
	Requested int
	Moved     int
}

func (e *TransportError) Error() string {
	if errors.Is(e.Err, ErrShortTransfer) {
		return fmt.Sprintf("%s on %s: %v (moved %d of %d bytes)", e.Op, e.Path, e.Err, e.Moved, e.Requested)
	}
	return fmt.Sprintf("%s on %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport for every transport error
func (*TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a TransportError for a failed kernel call
func NewTransportError(op, path string, err error) *TransportError {
	return &TransportError{Op: op, Path: path, Err: err}
}

// NewShortTransferError creates a TransportError for a transfer that moved
// fewer bytes than requested
func NewShortTransferError(op, path string, requested, moved int) *TransportError {
	return &TransportError{
		Op:        op,
		Path:      path,
		Err:       ErrShortTransfer,
		Requested: requested,
		Moved:     moved,
	}
}

// GPIOError wraps a sysfs GPIO failure with the line number and file path.
type GPIOError struct {
	Err  error
	Op   string
	Path string
	Line int
}

func (e *GPIOError) Error() string {
	return fmt.Sprintf("gpio %s line %d (%s): %v", e.Op, e.Line, e.Path, e.Err)
}

func (e *GPIOError) Unwrap() error {
	return e.Err
}

// Is reports ErrGPIO for every GPIO error
func (*GPIOError) Is(target error) bool {
	return target == ErrGPIO
}

// NewGPIOError creates a GPIOError
func NewGPIOError(op string, line int, path string, err error) *GPIOError {
	return &GPIOError{Op: op, Line: line, Path: path, Err: err}
}

// ProtocolError is the outcome of a program-enable or chip-erase sequence
// that did not succeed. Err is ErrDeviceNotResponding or
// ErrUnsupportedOperation; Cause holds the failure that ended the sequence
// early, if any.
type ProtocolError struct {
	Err      error
	Cause    error
	Op       string
	Attempts int
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ProtocolError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// IsFatal reports whether err is a configuration error that must abort the
// run rather than be retried
func IsFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
