// SPDX-License-Identifier: GPL-3.0-or-later

package connection

import (
	"testing"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConnection(write WriteFunc, closeFn CloseFunc) *Connection {
	return New(vde3.NewConfig(), write, closeFn)
}

func TestWriteDelegatesToBackend(t *testing.T) {
	var got *packet.Packet
	conn := newTestConnection(func(pkt *packet.Packet) error {
		got = pkt
		return nil
	}, nil)

	pkt, err := packet.New(packet.TypeData, 0, 4, 0)
	require.NoError(t, err)
	require.NoError(t, conn.Write(pkt))
	assert.Same(t, pkt, got)
}

func TestWriteWithoutBackendReturnsClosed(t *testing.T) {
	conn := &Connection{}
	pkt, err := packet.New(packet.TypeData, 0, 4, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, conn.Write(pkt), vde3.ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	var calls int
	conn := newTestConnection(nil, func() error {
		calls++
		return nil
	})

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 1, calls)
}

func TestDispatchReadNormalizesUnknownResult(t *testing.T) {
	conn := newTestConnection(nil, nil)
	conn.SetCallbacks(func(*packet.Packet) Result {
		return Result(99)
	}, nil, func(vde3.ConnError) Result { return ResultClosed })

	pkt, err := packet.New(packet.TypeData, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ResultClosed, conn.DispatchRead(pkt))
}

func TestDispatchReadWithoutConsumerClosesConnection(t *testing.T) {
	conn := newTestConnection(nil, nil)
	pkt, err := packet.New(packet.TypeData, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ResultClosed, conn.DispatchRead(pkt))
}

func TestDispatchWriteCompleteDefaultsToOK(t *testing.T) {
	conn := newTestConnection(nil, nil)
	pkt, err := packet.New(packet.TypeData, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, ResultOK, conn.DispatchWriteComplete(pkt))
}

func TestHasConsumer(t *testing.T) {
	conn := newTestConnection(nil, nil)
	assert.False(t, conn.HasConsumer())

	conn.SetCallbacks(func(*packet.Packet) Result { return ResultOK },
		nil,
		func(vde3.ConnError) Result { return ResultClosed })
	assert.True(t, conn.HasConsumer())
}
