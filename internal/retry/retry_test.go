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

package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := Do(Config{MaxRetries: 5}, func(attempt int) (int, bool, error) {
		assert.Equal(t, calls, attempt)
		calls++
		return attempt, attempt < 3, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result)
	assert.Equal(t, 4, calls)
}

func TestDo_Exhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	result, err := Do(Config{MaxRetries: 2}, func(int) (string, bool, error) {
		calls++
		return "mismatch", true, nil
	})

	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, "mismatch", result)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStops(t *testing.T) {
	t.Parallel()

	permanent := errors.New("boom")
	calls := 0
	_, err := Do(Config{MaxRetries: 10}, func(int) (int, bool, error) {
		calls++
		return 0, false, permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_CallbacksAndDelay(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	var retried []int
	failed := errors.New("gave up")

	_, err := Do(Config{
		MaxRetries: 2,
		RetryDelay: 20 * time.Millisecond,
		Sleep:      func(d time.Duration) { slept = append(slept, d) },
		OnRetry: func(attempt int) error {
			retried = append(retried, attempt)
			return nil
		},
		OnRetryFailed: func(attempts int) error {
			assert.Equal(t, 3, attempts)
			return failed
		},
	}, func(int) (struct{}, bool, error) {
		return struct{}{}, true, nil
	})

	require.ErrorIs(t, err, failed)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{20 * time.Millisecond, 20 * time.Millisecond}, slept)
}

func TestDo_OnRetryErrorStops(t *testing.T) {
	t.Parallel()

	stop := errors.New("stop")
	calls := 0
	_, err := Do(Config{
		MaxRetries: 5,
		OnRetry:    func(int) error { return stop },
	}, func(int) (int, bool, error) {
		calls++
		return 0, true, nil
	})

	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
