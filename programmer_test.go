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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaparooProject/go-avrisp/isp"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

type harness struct {
	transport *MockTransport
	lines     *MockLineController
	path      string
	speed     physic.Frequency
	opened    int
}

func newHarness() *harness {
	return &harness{lines: NewMockLineController()}
}

func (h *harness) factory(path string, speed physic.Frequency) (Transport, error) {
	h.opened++
	h.path = path
	h.speed = speed
	h.transport = NewMockTransport(speed)
	return h.transport, nil
}

func (h *harness) open(t *testing.T, cfg Config, opts ...Option) *Programmer {
	t.Helper()
	opts = append([]Option{
		WithTransportFactory(h.factory),
		WithLineController(h.lines),
	}, opts...)
	p, err := Open(cfg, opts...)
	require.NoError(t, err)
	return p
}

func testPart() *Part {
	return &Part{
		Name:           "ATmega328P",
		ProgramEnable:  isp.OperationFromWord(0xAC530000),
		ChipErase:      isp.OperationFromWord(0xAC800000),
		ChipEraseDelay: 9 * time.Millisecond,
	}
}

func testConfig() Config {
	return Config{
		DevicePath: "/dev/spidev0.0",
		ResetPin:   25,
		Part:       testPart(),
	}
}

func mismatchFor(k int) func(int, []byte) ([]byte, error) {
	return func(call int, tx []byte) ([]byte, error) {
		if call < k {
			return []byte{0xFF, 0xFF, 0xFF, 0xFF}, nil
		}
		return EchoResponse(tx), nil
	}
}

func TestOpen_AssertsResetAndEnables(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())

	assert.Equal(t, "/dev/spidev0.0", h.path)
	assert.Equal(t, DefaultSpeed, h.speed)
	assert.Equal(t, StateResetAsserted, p.State())
	assert.Equal(t, []string{"export 25", "direction 25 low"}, h.lines.Ops())
	assert.Empty(t, h.transport.Transfers(), "open must not clock any SPI traffic")

	require.NoError(t, p.ProgramEnable())
	assert.Equal(t, StateProgramEnabled, p.State())
	assert.Equal(t, [][]byte{{0xAC, 0x53, 0x00, 0x00}}, h.transport.Transfers())

	require.NoError(t, p.Close())
	assert.Equal(t, StateClosed, p.State())
	assert.Equal(t, []string{
		"export 25", "direction 25 low", "direction 25 in", "unexport 25",
	}, h.lines.Ops())
	assert.Equal(t, 1, h.transport.CloseCalls())
}

func TestOpen_InvertedResetPin(t *testing.T) {
	t.Parallel()

	h := newHarness()
	cfg := testConfig()
	cfg.ResetPin = 25 | InvertedBit
	p := h.open(t, cfg)

	assert.Equal(t, Pin{Line: 25, Inverted: true}, p.ResetPin())
	require.NoError(t, p.Close())
	assert.Equal(t, []string{
		"export 25", "direction 25 high", "direction 25 in", "unexport 25",
	}, h.lines.Ops())
}

func TestOpen_Speed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		speed physic.Frequency
		want  physic.Frequency
	}{
		{name: "unset uses default", speed: 0, want: 400 * physic.KiloHertz},
		{name: "configured", speed: 1 * physic.MegaHertz, want: 1 * physic.MegaHertz},
		{name: "slow", speed: 10 * physic.KiloHertz, want: 10 * physic.KiloHertz},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness()
			cfg := testConfig()
			cfg.Speed = tt.speed
			p := h.open(t, cfg)
			defer func() { _ = p.Close() }()
			assert.Equal(t, tt.want, h.speed)
		})
	}
}

func TestOpen_ConfigurationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mutate func(*Config)
		name   string
		field  string
	}{
		{name: "missing device path", field: "device path", mutate: func(c *Config) { c.DevicePath = "" }},
		{name: "unassigned reset pin", field: "reset pin", mutate: func(c *Config) { c.ResetPin = 0 }},
		{name: "inverted line zero", field: "reset pin", mutate: func(c *Config) { c.ResetPin = InvertedBit }},
		{name: "missing part", field: "part", mutate: func(c *Config) { c.Part = nil }},
		{name: "negative speed", field: "speed", mutate: func(c *Config) { c.Speed = -1 }},
		{name: "tpi only part", field: "part", mutate: func(c *Config) {
			c.Part = &Part{Name: "ATtiny10", TPIOnly: true}
		}},
	}

	for _, tt := range tests {

		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness()
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := Open(cfg, WithTransportFactory(h.factory), WithLineController(h.lines))
			require.Error(t, err)
			assert.True(t, IsFatal(err))

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Zero(t, h.opened, "no device may be opened on a configuration error")
			assert.Empty(t, h.lines.Ops())
		})
	}
}

func TestOpen_FactoryReturnsNoTransport(t *testing.T) {
	t.Parallel()

	lines := NewMockLineController()
	_, err := Open(testConfig(),
		WithTransportFactory(func(string, physic.Frequency) (Transport, error) {
			return nil, nil
		}),
		WithLineController(lines))
	require.ErrorIs(t, err, ErrConfiguration)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "transport", cfgErr.Field)
	assert.Empty(t, lines.Ops())
}

func TestOpen_MissingBackends(t *testing.T) {
	t.Parallel()

	_, err := Open(testConfig(), WithLineController(NewMockLineController()))
	require.ErrorIs(t, err, ErrConfiguration)

	h := newHarness()
	_, err = Open(testConfig(), WithTransportFactory(h.factory))
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, h.opened)
}

func TestOpen_TransportFailure(t *testing.T) {
	t.Parallel()

	lines := NewMockLineController()
	openErr := NewTransportError("open", "/dev/spidev0.0", errors.New("no such file or directory"))
	_, err := Open(testConfig(),
		WithTransportFactory(func(string, physic.Frequency) (Transport, error) { return nil, openErr }),
		WithLineController(lines))

	require.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, lines.Ops(), "RESET must not be touched when SPI cannot be opened")
}

func TestOpen_ExportFailureClosesTransport(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.lines.Errors["export"] = NewGPIOError("export", 25, "/sys/class/gpio/export", errors.New("device busy"))

	_, err := Open(testConfig(), WithTransportFactory(h.factory), WithLineController(h.lines))
	require.ErrorIs(t, err, ErrGPIO)
	assert.Equal(t, 1, h.transport.CloseCalls())
	assert.Equal(t, []string{"export 25"}, h.lines.Ops())
}

func TestOpen_DirectionFailureUnexports(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.lines.Errors["direction"] = NewGPIOError("direction", 25, "/sys/class/gpio/gpio25/direction",
		errors.New("timed out"))

	_, err := Open(testConfig(), WithTransportFactory(h.factory), WithLineController(h.lines))
	require.ErrorIs(t, err, ErrGPIO)
	assert.Equal(t, []string{"export 25", "direction 25 low", "unexport 25"}, h.lines.Ops())
	assert.Equal(t, 1, h.transport.CloseCalls())
}

func TestProgramEnable_RetriesUntilEcho(t *testing.T) {
	t.Parallel()

	for _, k := range []int{0, 1, 7, 64} {
		h := newHarness()
		p := h.open(t, testConfig())
		h.transport.ResponseFunc = mismatchFor(k)

		require.NoError(t, p.ProgramEnable(), "k=%d", k)
		assert.Len(t, h.transport.Transfers(), k+1, "k=%d", k)
		assert.Equal(t, StateProgramEnabled, p.State())
		for _, tx := range h.transport.Transfers() {
			assert.Equal(t, []byte{0xAC, 0x53, 0x00, 0x00}, tx)
		}
		require.NoError(t, p.Close())
	}
}

func TestProgramEnable_DeviceNotResponding(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())
	h.transport.ResponseFunc = mismatchFor(1 << 30)

	err := p.ProgramEnable()
	require.ErrorIs(t, err, ErrDeviceNotResponding)
	assert.False(t, IsFatal(err))

	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, ProgramEnableRetries+1, protoErr.Attempts)
	assert.Len(t, h.transport.Transfers(), 66)
	assert.Equal(t, StateResetAsserted, p.State())
}

func TestProgramEnable_CustomRetries(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig(), WithProgramEnableRetries(3))
	h.transport.ResponseFunc = mismatchFor(1 << 30)

	require.ErrorIs(t, p.ProgramEnable(), ErrDeviceNotResponding)
	assert.Len(t, h.transport.Transfers(), 4)
}

func TestProgramEnable_TransportErrorStopsRetrying(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())
	ioErr := NewTransportError("transfer", "/dev/spidev0.0", errors.New("input/output error"))
	h.transport.ResponseFunc = func(int, []byte) ([]byte, error) { return nil, ioErr }

	err := p.ProgramEnable()
	require.ErrorIs(t, err, ErrDeviceNotResponding)
	require.ErrorIs(t, err, ErrTransport)
	assert.Len(t, h.transport.Transfers(), 1)
}

func TestProgramEnable_ShortTransferIsHardFailure(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())
	h.transport.ResponseFunc = func(int, []byte) ([]byte, error) { return []byte{0xFF, 0xAC}, nil }

	err := p.ProgramEnable()
	require.ErrorIs(t, err, ErrShortTransfer)
	assert.Len(t, h.transport.Transfers(), 1)
}

func TestProgramEnable_MissingTemplate(t *testing.T) {
	t.Parallel()

	h := newHarness()
	cfg := testConfig()
	cfg.Part.ProgramEnable = nil
	p := h.open(t, cfg)

	require.ErrorIs(t, p.ProgramEnable(), ErrUnsupportedOperation)
	assert.Empty(t, h.transport.Transfers())
}

func TestChipErase_Unsupported(t *testing.T) {
	t.Parallel()

	h := newHarness()
	cfg := testConfig()
	cfg.Part.ChipErase = nil
	p := h.open(t, cfg)

	err := p.ChipErase()
	require.ErrorIs(t, err, ErrUnsupportedOperation)
	assert.Empty(t, h.transport.Transfers())
}

func TestChipErase_WaitsAndReenables(t *testing.T) {
	t.Parallel()

	h := newHarness()
	mock := clock.NewMock()
	p := h.open(t, testConfig(), WithClock(mock))
	require.NoError(t, p.ProgramEnable())

	start := mock.Now()
	done := make(chan error, 1)
	go func() { done <- p.ChipErase() }()

	var err error
	for waiting := true; waiting; {
		select {
		case err = <-done:
			waiting = false
		default:
			mock.Add(time.Millisecond)
		}
	}

	require.NoError(t, err)
	assert.True(t, mock.Now().Sub(start) >= 9*time.Millisecond, "settle delay not honored")
	assert.Equal(t, StateIdle, p.State())
	assert.Equal(t, [][]byte{
		{0xAC, 0x53, 0x00, 0x00},
		{0xAC, 0x80, 0x00, 0x00},
		{0xAC, 0x53, 0x00, 0x00},
	}, h.transport.Transfers())
}

func TestChipErase_ReenableFailure(t *testing.T) {
	t.Parallel()

	h := newHarness()
	cfg := testConfig()
	cfg.Part.ChipEraseDelay = 0
	p := h.open(t, cfg, WithProgramEnableRetries(2))
	h.transport.ResponseFunc = func(call int, tx []byte) ([]byte, error) {
		if call == 0 {
			return EchoResponse(tx), nil
		}
		return []byte{0x00, 0x00, 0x00, 0x00}, nil
	}

	require.ErrorIs(t, p.ChipErase(), ErrDeviceNotResponding)
	assert.Len(t, h.transport.Transfers(), 4)
	assert.Equal(t, StateResetAsserted, p.State())
}

func TestProgramEnableContext_CancelStopsRetrying(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.transport.ResponseFunc = func(call int, _ []byte) ([]byte, error) {
		if call == 1 {
			cancel()
		}
		return []byte{0x00, 0x00, 0x00, 0x00}, nil
	}

	err := p.ProgramEnableContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDeviceNotResponding)
	assert.Len(t, h.transport.Transfers(), 2)
	assert.Equal(t, StateResetAsserted, p.State())
}

func TestChipEraseContext_CancelDuringSettle(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig(), WithClock(clock.NewMock()))
	require.NoError(t, p.ProgramEnable())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.ChipEraseContext(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateResetAsserted, p.State())
	assert.Len(t, h.transport.Transfers(), 2)
}

func TestCommand(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())

	resp, err := p.Command(isp.Frame{0x30, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, isp.Frame{0xFF, 0x30, 0x00, 0x00}, resp)

	require.NoError(t, p.Close())
	_, err = p.Command(isp.Frame{0x30, 0x00, 0x00, 0x00})
	require.ErrorIs(t, err, ErrSessionClosed)
	assert.Len(t, h.transport.Transfers(), 1)
}

func TestClose_RunsEveryStep(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())
	h.lines.Errors["direction"] = errors.New("write failed")
	h.lines.Errors["unexport"] = errors.New("invalid argument")
	h.transport.CloseErr = errors.New("bad file descriptor")

	err := p.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release reset")
	assert.Contains(t, err.Error(), "unexport reset")
	assert.Contains(t, err.Error(), "close spi")

	assert.Equal(t, []string{
		"export 25", "direction 25 low", "direction 25 in", "unexport 25",
	}, h.lines.Ops())
	assert.Equal(t, 1, h.transport.CloseCalls())
	assert.Equal(t, StateClosed, p.State())
}

func TestClose_Twice(t *testing.T) {
	t.Parallel()

	h := newHarness()
	p := h.open(t, testConfig())

	require.NoError(t, p.Close())
	require.ErrorIs(t, p.Close(), ErrSessionClosed)
	require.ErrorIs(t, p.ProgramEnable(), ErrSessionClosed)
	require.ErrorIs(t, p.ChipErase(), ErrSessionClosed)

	assert.Equal(t, []string{
		"export 25", "direction 25 low", "direction 25 in", "unexport 25",
	}, h.lines.Ops())
	assert.Equal(t, 1, h.transport.CloseCalls())
}

func TestProgrammer_String(t *testing.T) {
	t.Parallel()

	h := newHarness()
	cfg := testConfig()
	cfg.ResetPin = 4 | InvertedBit
	p := h.open(t, cfg)
	assert.Equal(t, "avrisp(/dev/spidev0.0, reset=~4, reset asserted)", p.String())
	assert.Equal(t, "ATmega328P", p.Part().Name)
}
