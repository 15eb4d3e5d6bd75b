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
	"sync/atomic"

	"go.uber.org/zap"
)

var (
	packageLogger atomic.Pointer[zap.Logger]
	debugEnabled  atomic.Bool
)

func init() {
	packageLogger.Store(zap.NewNop())
}

// SetLogger installs the logger used by programmers created without
// WithLogger. A nil logger disables logging.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	packageLogger.Store(logger)
}

// Logger returns the package logger
func Logger() *zap.Logger {
	return packageLogger.Load()
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// debugf logs a formatted debug message when debugging is enabled
func debugf(logger *zap.Logger, format string, args ...any) {
	if debugEnabled.Load() {
		logger.Debug(fmt.Sprintf(format, args...))
	}
}

// debugln logs a debug message when debugging is enabled
func debugln(logger *zap.Logger, args ...any) {
	if debugEnabled.Load() {
		logger.Debug(fmt.Sprint(args...))
	}
}
