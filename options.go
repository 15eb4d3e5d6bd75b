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

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/physic"
)

// ProgramEnableRetries is how many times program enable is resent after the
// first attempt when the target does not echo the command. An AVR needs a
// few milliseconds after RESET is asserted before it answers, and the echo
// can be lost while the SPI clock and the target are out of phase.
const ProgramEnableRetries = 65

// Config contains the per-run programmer configuration
type Config struct {
	// Part supplies the instruction encodings and timing. Required.
	Part *Part
	// DevicePath is the SPI device, e.g. /dev/spidev0.0. Required.
	DevicePath string
	// Speed is the SPI clock. Zero selects DefaultSpeed.
	Speed physic.Frequency
	// ResetPin is the packed RESET line number; InvertedBit marks an
	// inverted line. Line zero means no pin is assigned, inverted or not.
	ResetPin uint32
}

// Validate checks the configuration. Every failure is a *ConfigError.
func (c *Config) Validate() error {
	if c.DevicePath == "" {
		return &ConfigError{Field: "device path", Reason: "no SPI device specified"}
	}
	if DecodePin(c.ResetPin).Line == 0 {
		return &ConfigError{Field: "reset pin", Reason: "no RESET pin assigned"}
	}
	if c.Speed < 0 {
		return &ConfigError{Field: "speed", Reason: fmt.Sprintf("negative clock rate %s", c.Speed)}
	}
	if c.Part == nil {
		return &ConfigError{Field: "part", Reason: "no part description"}
	}
	if c.Part.TPIOnly {
		return &ConfigError{
			Field:  "part",
			Reason: fmt.Sprintf("%s only supports TPI, which this programmer does not", c.Part.Name),
		}
	}
	return nil
}

// Option is a functional option for configuring a Programmer
type Option func(*options) error

type options struct {
	transportFactory TransportFactory
	lines            LineController
	logger           *zap.Logger
	clock            clock.Clock
	retries          int
}

func defaultOptions() *options {
	return &options{
		logger:  Logger(),
		clock:   clock.New(),
		retries: ProgramEnableRetries,
	}
}

// WithTransportFactory sets the function used to open the SPI device
func WithTransportFactory(factory TransportFactory) Option {
	return func(o *options) error {
		if factory == nil {
			return errors.New("transport factory cannot be nil")
		}
		o.transportFactory = factory
		return nil
	}
}

// WithLineController sets the GPIO line controller driving RESET
func WithLineController(lines LineController) Option {
	return func(o *options) error {
		if lines == nil {
			return errors.New("line controller cannot be nil")
		}
		o.lines = lines
		return nil
	}
}

// WithLogger sets the logger for the programmer
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		o.logger = logger
		return nil
	}
}

// WithClock sets the clock used for settle delays
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		if clk == nil {
			return errors.New("clock cannot be nil")
		}
		o.clock = clk
		return nil
	}
}

// WithProgramEnableRetries overrides ProgramEnableRetries
func WithProgramEnableRetries(retries int) Option {
	return func(o *options) error {
		if retries < 0 {
			return fmt.Errorf("program enable retries must be non-negative, got %d", retries)
		}
		o.retries = retries
		return nil
	}
}
