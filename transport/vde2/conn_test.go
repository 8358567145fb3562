// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix

package vde2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/internal/reactor"
	"github.com/shammash/vde3-go/packet"
)

// newTestVdeConn wires a [*vdeConn] around a real, connected pair of
// non-blocking Unix sockets (one stream pair standing in for the control
// socket, one datagram pair for the data socket), so this package's wire
// logic runs against genuine kernel-backed descriptors without needing the
// full rendezvous handshake in accept.go/connect.go.
func newTestVdeConn(t *testing.T) (vc *vdeConn, peerData int, r *reactor.ChannelReactor) {
	t.Helper()

	ctlPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	dataPair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = unix.Close(ctlPair[1])
		_ = unix.Close(dataPair[1])
	})

	r = reactor.NewChannelReactor()
	tr := &Transport{
		Reactor: r,
		Config:  vde3.NewConfig(),
		conns:   make(map[*connection.Connection]*vdeConn),
	}
	vc = tr.newVdeConn(ctlPair[0], dataPair[0], "/tmp/vde3-test-data", "/tmp/vde3-test-peer")
	tr.conns[vc.conn] = vc
	vc.arm()

	return vc, dataPair[1], r
}

func TestVdeConnWriteSendsRawPayloadOnly(t *testing.T) {
	vc, peerData, r := newTestVdeConn(t)

	pkt, err := packet.New(packet.TypeData, 4, 6, 0)
	require.NoError(t, err)
	require.NoError(t, pkt.SetPayload([]byte("abcdef")))

	require.NoError(t, vc.write(pkt))
	r.FireWrite(vc.writeToken)

	buf := make([]byte, 64)
	n, err := unix.Read(peerData, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(buf[:n]))
}

func TestVdeConnOnDataReadableDispatchesToConsumer(t *testing.T) {
	vc, peerData, r := newTestVdeConn(t)

	var got []byte
	vc.conn.SetCallbacks(
		func(pkt *packet.Packet) connection.Result {
			got = append([]byte{}, pkt.Payload()...)
			return connection.ResultOK
		},
		nil,
		func(vde3.ConnError) connection.Result { return connection.ResultOK },
	)

	frame := []byte("0123456789abcdef")
	_, err := unix.Write(peerData, frame)
	require.NoError(t, err)

	r.FireRead(vc.readToken)
	assert.Equal(t, frame, got)
}

func TestVdeConnOnDataReadableDropsUndersizedFrame(t *testing.T) {
	vc, peerData, r := newTestVdeConn(t)

	called := false
	vc.conn.SetCallbacks(
		func(pkt *packet.Packet) connection.Result {
			called = true
			return connection.ResultOK
		},
		nil,
		func(vde3.ConnError) connection.Result { return connection.ResultOK },
	)

	_, err := unix.Write(peerData, []byte{1, 2, 3})
	require.NoError(t, err)

	r.FireRead(vc.readToken)
	assert.False(t, called, "frame shorter than an Ethernet header must be dropped, not dispatched")
}

func TestVdeConnTeardownCancelsReactorTokens(t *testing.T) {
	vc, _, r := newTestVdeConn(t)

	assert.Equal(t, 2, r.PendingReads())

	vc.teardown()

	assert.Equal(t, 0, r.PendingReads())
	assert.Equal(t, 0, r.PendingWrites())
}

func TestVdeConnWriteQueuesThenArmsWriteOnce(t *testing.T) {
	vc, _, r := newTestVdeConn(t)

	pkt1, _ := packet.New(packet.TypeData, 0, 3, 0)
	_ = pkt1.SetPayload([]byte("one"))
	pkt2, _ := packet.New(packet.TypeData, 0, 3, 0)
	_ = pkt2.SetPayload([]byte("two"))

	require.NoError(t, vc.write(pkt1))
	require.NoError(t, vc.write(pkt2))

	assert.Equal(t, 1, r.PendingWrites(), "a second queued write must not re-arm a second write-readiness token")
	assert.Equal(t, 2, vc.queue.Len())
}
