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

// Package sysfs drives GPIO lines through the Linux /sys/class/gpio
// interface.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"github.com/ZaparooProject/go-avrisp/internal/retry"
	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
)

const (
	// DefaultRoot is where the kernel publishes the GPIO sysfs interface.
	DefaultRoot = "/sys/class/gpio"

	// OpenPollInterval and OpenAttempts bound how long a control file may
	// take to appear. Export returns before udev has created the gpioN
	// directory and fixed its permissions, which takes up to a few hundred
	// milliseconds on slow boards; two seconds covers it.
	OpenPollInterval = 20 * time.Millisecond
	OpenAttempts     = 100
)

// Controller implements avrisp.LineController on sysfs
type Controller struct {
	logger       *zap.Logger
	sleep        func(time.Duration)
	root         string
	pollInterval time.Duration
	attempts     int
}

// Option configures a Controller
type Option func(*Controller)

// WithRoot points the controller at a different sysfs directory
func WithRoot(root string) Option {
	return func(c *Controller) {
		c.root = root
	}
}

// WithLogger sets the logger for the controller
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPolling overrides the open retry interval and attempt budget
func WithPolling(interval time.Duration, attempts int) Option {
	return func(c *Controller) {
		c.pollInterval = interval
		if attempts > 0 {
			c.attempts = attempts
		}
	}
}

// WithSleep replaces time.Sleep between open attempts
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// New creates a sysfs line controller
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:       zap.NewNop(),
		sleep:        time.Sleep,
		root:         DefaultRoot,
		pollInterval: OpenPollInterval,
		attempts:     OpenAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LinePath returns the path of a per-line control file such as "direction"
func (c *Controller) LinePath(line int, file string) string {
	return filepath.Join(c.root, "gpio"+strconv.Itoa(line), file)
}

// PinPath returns the control file path for a packed pin number. The
// inversion bit is stripped, so a pin and its inverted form share a path.
func (c *Controller) PinPath(raw uint32, file string) string {
	return c.LinePath(avrisp.DecodePin(raw).Line, file)
}

// Export asks the kernel to publish the line
func (c *Controller) Export(line int) error {
	return c.write("export", line, filepath.Join(c.root, "export"), strconv.Itoa(line))
}

// Unexport releases the line
func (c *Controller) Unexport(line int) error {
	return c.write("unexport", line, filepath.Join(c.root, "unexport"), strconv.Itoa(line))
}

// SetDirection writes dir to the line's direction file. "low" and "high"
// configure an output and its level in one write.
func (c *Controller) SetDirection(line int, dir avrisp.Direction) error {
	path := c.LinePath(line, "direction")
	if !dir.Valid() {
		return avrisp.NewGPIOError("direction", line, path, fmt.Errorf("invalid direction %q", dir))
	}
	return c.write("direction", line, path, string(dir))
}

// SetValue writes "1" or "0" to the line's value file
func (c *Controller) SetValue(line int, level gpio.Level) error {
	value := "0"
	if level == gpio.High {
		value = "1"
	}
	return c.write("value", line, c.LinePath(line, "value"), value)
}

// write opens path, retrying while it does not exist yet, and writes
// content once
func (c *Controller) write(op string, line int, path, content string) error {
	f, err := c.open(path)
	if err != nil {
		return avrisp.NewGPIOError(op, line, path, err)
	}

	_, writeErr := f.WriteString(content)
	closeErr := f.Close()
	if writeErr != nil {
		return avrisp.NewGPIOError(op, line, path, writeErr)
	}
	if closeErr != nil {
		return avrisp.NewGPIOError(op, line, path, closeErr)
	}
	return nil
}

func (c *Controller) open(path string) (*os.File, error) {
	var lastErr error
	f, err := retry.Do(retry.Config{
		Description: "open " + path,
		MaxRetries:  c.attempts - 1,
		RetryDelay:  c.pollInterval,
		Sleep:       c.sleep,
	}, func(int) (*os.File, bool, error) {
		f, openErr := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0) //nolint:gosec // sysfs control file
		if openErr != nil {
			lastErr = openErr
			return nil, true, nil
		}
		return f, false, nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		c.logger.Debug("gpio control file never appeared",
			zap.String("path", path), zap.Int("attempts", c.attempts), zap.Error(lastErr))
		return nil, fmt.Errorf("open failed after %d attempts: %w", c.attempts, lastErr)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Ensure Controller implements avrisp.LineController
var _ avrisp.LineController = (*Controller)(nil)
