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

package periph

import (
	"testing"

	avrisp "github.com/ZaparooProject/go-avrisp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spitest"
)

func newPlayback(ops ...conntest.IO) *spitest.Playback {
	return &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       ops,
			D:         conn.Full,
			DontPanic: true,
		},
	}
}

func TestTransport_ProgramEnableExchange(t *testing.T) {
	t.Parallel()

	playback := newPlayback(conntest.IO{
		W: []byte{0xAC, 0x53, 0x00, 0x00},
		R: []byte{0xFF, 0xAC, 0x53, 0x00},
	})

	tr, err := New("SPI0.0", playback, 0)
	require.NoError(t, err)
	assert.Equal(t, avrisp.DefaultSpeed, tr.Speed())
	assert.Equal(t, avrisp.TransportPeriph, tr.Type())
	assert.Equal(t, "periph(SPI0.0@400kHz)", tr.String())

	rx, err := tr.Transfer([]byte{0xAC, 0x53, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xAC, 0x53, 0x00}, rx)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}

func TestTransport_UnexpectedWriteFails(t *testing.T) {
	t.Parallel()

	playback := newPlayback(conntest.IO{
		W: []byte{0xAC, 0x53, 0x00, 0x00},
		R: []byte{0xFF, 0xAC, 0x53, 0x00},
	})

	tr, err := New("SPI0.0", playback, physic.MegaHertz)
	require.NoError(t, err)

	_, err = tr.Transfer([]byte{0xAC, 0x80, 0x00, 0x00})
	require.ErrorIs(t, err, avrisp.ErrTransport)
}

func TestTransport_UseAfterClose(t *testing.T) {
	t.Parallel()

	tr, err := New("SPI0.0", newPlayback(), 0)
	require.NoError(t, err)
	require.NoError(t, tr.Close())

	_, err = tr.Transfer([]byte{0x00})
	require.ErrorIs(t, err, avrisp.ErrSessionClosed)
}
