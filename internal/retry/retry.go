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

// Package retry provides the bounded retry loops used where a hardware timing
// race is expected.
package retry

import (
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt asked to be retried.
var ErrExhausted = errors.New("retries exhausted")

// Operation represents a function that can be retried
// Returns: data, shouldRetry, error
// - data: the result if successful
// - shouldRetry: true if the operation should be retried
// - error: any permanent error that should stop retries
type Operation[T any] func(attempt int) (T, bool, error)

// Config configures retry behavior
type Config struct {
	Sleep         func(time.Duration)
	OnRetry       func(attempt int) error
	OnRetryFailed func(attempts int) error
	Description   string
	MaxRetries    int
	RetryDelay    time.Duration
}

// Do runs operation up to MaxRetries+1 times. It returns the last result
// alongside ErrExhausted (or the OnRetryFailed error) when every attempt asked
// to be retried, so callers can still inspect the final outcome.
func Do[T any](config Config, operation Operation[T]) (T, error) {
	var last T

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, shouldRetry, err := operation(attempt)
		if err != nil {
			return result, err
		}

		if !shouldRetry {
			return result, nil
		}
		last = result

		// If we should retry but we're at max attempts, break
		if attempt >= config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			if err := config.OnRetry(attempt + 1); err != nil {
				return last, err
			}
		}

		if config.RetryDelay > 0 {
			sleep(config)(config.RetryDelay)
		}
	}

	if config.OnRetryFailed != nil {
		if failErr := config.OnRetryFailed(config.MaxRetries + 1); failErr != nil {
			return last, failErr
		}
	}

	return last, ErrExhausted
}

func sleep(config Config) func(time.Duration) {
	if config.Sleep != nil {
		return config.Sleep
	}
	return time.Sleep
}
