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

// Package periph provides an SPI transport backed by the periph.io SPI port
// registry. Ports are named the way periph names them, e.g. "SPI0.0" or
// "/dev/spidev0.0".
package periph

import (
	"fmt"
	"sync"
	"sync/atomic"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var hostInitialized atomic.Bool

// Transport implements avrisp.Transport over a periph.io SPI connection.
// The kernel-side inter-word delay is left to the port driver.
type Transport struct {
	port  spi.PortCloser
	conn  spi.Conn
	name  string
	speed physic.Frequency
	mu    sync.Mutex
}

// Open initializes the periph host drivers, opens the named SPI port and
// connects to it in mode 0 with 8-bit words
func Open(name string, speed physic.Frequency) (*Transport, error) {
	if err := initHost(); err != nil {
		return nil, avrisp.NewTransportError("init", name, err)
	}

	port, err := spireg.Open(name)
	if err != nil {
		return nil, avrisp.NewTransportError("open", name, err)
	}

	t, err := New(name, port, speed)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// Ports lists the names of the SPI ports periph.io registered on this host
func Ports() ([]string, error) {
	if err := initHost(); err != nil {
		return nil, err
	}
	refs := spireg.All()
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return names, nil
}

func initHost() error {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			hostInitialized.Store(false)
			return fmt.Errorf("failed to initialize periph host: %w", err)
		}
	}
	return nil
}

// New connects to an already opened port. A zero speed selects
// avrisp.DefaultSpeed.
func New(name string, port spi.PortCloser, speed physic.Frequency) (*Transport, error) {
	speed = avrisp.ResolveSpeed(speed)
	c, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		return nil, avrisp.NewTransportError("connect", name, err)
	}
	return &Transport{
		port:  port,
		conn:  c,
		name:  name,
		speed: speed,
	}, nil
}

// Transfer clocks out tx and returns the bytes clocked in at the same time
func (t *Transport) Transfer(tx []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, avrisp.NewTransportError("transfer", t.name, avrisp.ErrSessionClosed)
	}

	rx := make([]byte, len(tx))
	if err := t.conn.Tx(tx, rx); err != nil {
		return nil, avrisp.NewTransportError("transfer", t.name, err)
	}
	return rx, nil
}

// Close closes the port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	t.conn = nil
	if err != nil {
		return avrisp.NewTransportError("close", t.name, err)
	}
	return nil
}

// Speed returns the clock rate used for transfers
func (t *Transport) Speed() physic.Frequency {
	return t.speed
}

// Type returns the transport type
func (*Transport) Type() avrisp.TransportType {
	return avrisp.TransportPeriph
}

func (t *Transport) String() string {
	return fmt.Sprintf("periph(%s@%s)", t.name, t.speed)
}

// Ensure Transport implements avrisp.Transport
var _ avrisp.Transport = (*Transport)(nil)
