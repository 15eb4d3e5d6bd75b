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
	"fmt"
	"time"

	"github.com/ZaparooProject/go-avrisp/internal/retry"
	"github.com/ZaparooProject/go-avrisp/isp"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Programmer is an open connection from the host to one target: the SPI
// transport plus the RESET line that holds the target in programming mode.
//
// Thread Safety: Programmer is NOT thread-safe. The SPI device and the RESET
// line are process-wide resources and only one Programmer should exist for
// them at a time.
type Programmer struct {
	transport Transport
	lines     LineController
	part      *Part
	logger    *zap.Logger
	clock     clock.Clock
	config    Config
	reset     Pin
	retries   int
	state     State
}

// enableResult is the outcome of a single program enable attempt
type enableResult int

const (
	enableOK       enableResult = 0
	enableFailed   enableResult = -1
	enableMismatch enableResult = -2
)

// Open validates cfg, opens the SPI device and asserts RESET. Configuration
// problems are returned as *ConfigError before any device is touched. If
// RESET cannot be claimed the SPI device is closed again.
func Open(cfg Config, opts ...Option) (*Programmer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if o.transportFactory == nil {
		return nil, &ConfigError{Field: "transport", Reason: "no transport factory"}
	}
	if o.lines == nil {
		return nil, &ConfigError{Field: "gpio", Reason: "no line controller"}
	}

	p := &Programmer{
		lines:   o.lines,
		part:    cfg.Part,
		logger:  o.logger.With(zap.String("device", cfg.DevicePath)),
		clock:   o.clock,
		config:  cfg,
		reset:   DecodePin(cfg.ResetPin),
		retries: o.retries,
		state:   StateClosed,
	}

	transport, err := o.transportFactory(cfg.DevicePath, ResolveSpeed(cfg.Speed))
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI device %s: %w", cfg.DevicePath, err)
	}
	if transport == nil {
		return nil, &ConfigError{Field: "transport", Reason: "transport factory returned no transport"}
	}
	p.transport = transport
	p.state = StateOpened
	debugf(p.logger, "opened %s at %s", cfg.DevicePath, transport.Speed())

	if err := p.assertReset(); err != nil {
		_ = transport.Close()
		p.transport = nil
		p.state = StateClosed
		return nil, err
	}

	return p, nil
}

// assertReset exports RESET and drives it to the asserted level. Direction
// and level go out in one write so the line never glitches through the
// released level.
func (p *Programmer) assertReset() error {
	if err := p.lines.Export(p.reset.Line); err != nil {
		return fmt.Errorf("failed to export RESET pin %s: %w", p.reset, err)
	}

	dir := OutputDirection(p.reset.AssertLevel())
	if err := p.lines.SetDirection(p.reset.Line, dir); err != nil {
		if unexportErr := p.lines.Unexport(p.reset.Line); unexportErr != nil {
			p.logger.Warn("failed to unexport RESET pin after configure failure",
				zap.Int("line", p.reset.Line), zap.Error(unexportErr))
		}
		return fmt.Errorf("failed to assert RESET pin %s: %w", p.reset, err)
	}

	p.state = StateResetAsserted
	debugf(p.logger, "RESET pin %s asserted (direction %s)", p.reset, dir)
	return nil
}

// ProgramEnable sends the part's program enable instruction until the target
// echoes it, up to ProgramEnableRetries extra attempts. A transport failure
// ends the loop at once; an echo mismatch is retried.
func (p *Programmer) ProgramEnable() error {
	return p.ProgramEnableContext(context.Background())
}

// ProgramEnableContext is ProgramEnable with cancellation between attempts
func (p *Programmer) ProgramEnableContext(ctx context.Context) error {
	if err := p.checkReset("program enable"); err != nil {
		return err
	}
	if p.part.ProgramEnable == nil {
		return &ProtocolError{Op: "program enable", Err: ErrUnsupportedOperation}
	}

	frame := isp.BuildFrame(p.part.ProgramEnable)
	attempts := 0
	var cause error

	result, err := retry.Do(retry.Config{
		Description: "program enable",
		MaxRetries:  p.retries,
		OnRetry: func(attempt int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			debugf(p.logger, "program enable: no echo, retry %d/%d", attempt, p.retries)
			return nil
		},
	}, func(int) (enableResult, bool, error) {
		attempts++
		res, sendErr := p.programEnableOnce(frame)
		if res == enableFailed {
			cause = sendErr
		}
		return res, res != enableOK && res != enableFailed, nil
	})

	if err == nil && result == enableOK {
		p.state = StateProgramEnabled
		debugf(p.logger, "program enable succeeded after %d attempts", attempts)
		return nil
	}

	p.state = StateResetAsserted
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return fmt.Errorf("program enable cancelled after %d attempts: %w", attempts, ctxErr)
	}
	p.logger.Warn("device not responding",
		zap.String("part", p.part.Name),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	return &ProtocolError{
		Op:       "program enable",
		Err:      ErrDeviceNotResponding,
		Cause:    cause,
		Attempts: attempts,
	}
}

// programEnableOnce sends one program enable frame and classifies the reply
func (p *Programmer) programEnableOnce(frame isp.Frame) (enableResult, error) {
	response, err := p.send(frame)
	if err != nil {
		return enableFailed, err
	}
	if !isp.VerifyProgramEnable(frame, response) {
		debugf(p.logger, "program enable: sent %s, got %s", frame, response)
		return enableMismatch, nil
	}
	return enableOK, nil
}

// ChipErase erases the target, waits for the part's settle delay and then
// re-enters programming mode, since erasing drops it on many parts.
func (p *Programmer) ChipErase() error {
	return p.ChipEraseContext(context.Background())
}

// ChipEraseContext is ChipErase with cancellation of the settle wait and the
// program enable retries that follow it
func (p *Programmer) ChipEraseContext(ctx context.Context) error {
	if err := p.checkReset("chip erase"); err != nil {
		return err
	}
	if !p.part.HasChipErase() {
		return &ProtocolError{Op: "chip erase", Err: ErrUnsupportedOperation}
	}

	frame := isp.BuildFrame(p.part.ChipErase)
	p.state = StateErasing
	if _, err := p.send(frame); err != nil {
		p.state = StateResetAsserted
		return fmt.Errorf("chip erase failed: %w", err)
	}

	debugf(p.logger, "chip erase sent, waiting %s", p.part.ChipEraseDelay)
	if err := p.wait(ctx, p.part.ChipEraseDelay); err != nil {
		p.state = StateResetAsserted
		return fmt.Errorf("chip erase settle wait: %w", err)
	}

	if err := p.ProgramEnableContext(ctx); err != nil {
		return err
	}
	p.state = StateIdle
	return nil
}

// wait blocks for d on the programmer's clock or until ctx is done
func (p *Programmer) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := p.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Command sends a raw ISP instruction and returns the target's reply. It is
// the hook generic memory operations are built on.
func (p *Programmer) Command(frame isp.Frame) (isp.Frame, error) {
	if err := p.checkReset("command"); err != nil {
		return isp.Frame{}, err
	}
	return p.send(frame)
}

func (p *Programmer) send(frame isp.Frame) (isp.Frame, error) {
	var response isp.Frame
	rx, err := p.transport.Transfer(frame[:])
	if err != nil {
		return response, err
	}
	if len(rx) != isp.FrameSize {
		return response, NewShortTransferError("transfer", p.config.DevicePath, isp.FrameSize, len(rx))
	}
	copy(response[:], rx)
	return response, nil
}

// checkReset rejects operations on a closed session or while RESET is not
// held, since the target must be in reset for every transfer
func (p *Programmer) checkReset(op string) error {
	if p.state == StateClosed {
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}
	if !p.state.resetHeld() {
		return fmt.Errorf("%s in state %s: %w", op, p.state, ErrInvalidState)
	}
	return nil
}

// Close releases RESET to an input, unexports it and closes the SPI device.
// Every step runs even when an earlier one fails; failures are logged and
// returned together.
func (p *Programmer) Close() error {
	if p.state == StateClosed {
		return ErrSessionClosed
	}

	var errs error
	step := func(name string, fn func() error) {
		if err := fn(); err != nil {
			p.logger.Warn("teardown step failed",
				zap.String("step", name),
				zap.Int("line", p.reset.Line),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	step("release reset", func() error {
		return p.lines.SetDirection(p.reset.Line, DirectionIn)
	})
	p.state = StateResetReleased

	step("unexport reset", func() error {
		return p.lines.Unexport(p.reset.Line)
	})

	step("close spi", func() error {
		if p.transport == nil {
			return errors.New("no transport")
		}
		return p.transport.Close()
	})

	p.transport = nil
	p.state = StateClosed
	debugln(p.logger, "session closed")
	return errs
}

// State returns the current lifecycle state
func (p *Programmer) State() State {
	return p.state
}

// ResetPin returns the decoded RESET pin
func (p *Programmer) ResetPin() Pin {
	return p.reset
}

// Part returns the part the programmer was opened for
func (p *Programmer) Part() *Part {
	return p.part
}

func (p *Programmer) String() string {
	return fmt.Sprintf("avrisp(%s, reset=%s, %s)", p.config.DevicePath, p.reset, p.state)
}
