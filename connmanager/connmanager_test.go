// SPDX-License-Identifier: GPL-3.0-or-later

package connmanager

import (
	"context"
	"testing"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeTransport() *component.Component {
	return component.New("link0", component.KindTransport, "fake", nil, &component.TransportOps{
		Connect: func(context.Context, component.Request) error { return nil },
	}, nil)
}

func newFakeEngine(accept bool) *component.Component {
	return component.New("sw0", component.KindEngine, "fake", &component.EngineOps{
		NewConnection: func(_ *component.Component, _ *connection.Connection, _ component.Request) error {
			if !accept {
				return vde3.ErrInvalidArgument
			}
			return nil
		},
	}, nil, nil)
}

func TestAcceptWithoutRemoteAuthGoesStraightToEngine(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	m := New(transport, engine, false, nil)

	var accepted bool
	conn := connection.New(nil, nil, nil)
	ops, _ := transport.TransportOps()

	m.AcceptSuccess = func(*connection.Connection, component.Request) { accepted = true }
	ops.OnAccept(conn)

	assert.True(t, accepted)
	_, pending := m.StateOf(conn)
	assert.False(t, pending)
	assert.Equal(t, 0, m.Pending())
}

func TestEngineRefusalDestroysConnectionAndSurfacesError(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(false)
	m := New(transport, engine, false, nil)

	var gotErr error
	var closed bool
	conn := connection.New(nil, nil, func() error { closed = true; return nil })
	ops, _ := transport.TransportOps()

	m.AcceptError = func(_ *connection.Connection, err error) { gotErr = err }
	ops.OnAccept(conn)

	require.Error(t, gotErr)
	assert.True(t, closed)
}

func TestOutboundConnectReachesConnectWaitThenAuthorized(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	m := New(transport, engine, false, nil)

	conn := connection.New(nil, nil, nil)
	require.NoError(t, m.Connect(context.Background(), component.Request{}, nil, nil))
	m.RegisterOutbound(conn)

	state, ok := m.StateOf(conn)
	require.True(t, ok)
	assert.Equal(t, ConnectWait, state)

	ops, _ := transport.TransportOps()
	ops.OnConnect(conn)

	_, ok = m.StateOf(conn)
	assert.False(t, ok, "authorized connections leave the pending map")
}

func TestTransportErrorDuringHandshakeDestroysPendingRecord(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	m := New(transport, engine, false, nil)

	var gotErr error
	var closed bool
	conn := connection.New(nil, nil, func() error { closed = true; return nil })

	m.lastOutboundError = func(_ *connection.Connection, err error) { gotErr = err }
	require.NoError(t, m.Connect(context.Background(), component.Request{}, nil, m.lastOutboundError))
	m.RegisterOutbound(conn)

	ops, _ := transport.TransportOps()
	ops.OnError(conn, vde3.ConnErrorReadClosed)

	require.Error(t, gotErr)
	assert.True(t, closed)
	_, ok := m.StateOf(conn)
	assert.False(t, ok)
}

func TestTransportErrorOnEstablishedConnectionIsNotClosedByManager(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	m := New(transport, engine, false, nil)

	var closed bool
	conn := connection.New(nil, nil, func() error { closed = true; return nil })

	// conn never goes through RegisterOutbound/onConnect/onAccept, so it
	// has no pending record: it is already authorized and owned by the
	// engine, exactly like a connection a non-fatal write-delay error
	// arrives on (spec §4.4 "on WriteDelay, log and continue").
	ops, _ := transport.TransportOps()
	ops.OnError(conn, vde3.ConnErrorWriteDelay)

	assert.False(t, closed, "a connection manager must not tear down a connection it isn't handshaking")
}

func TestHandlePeerMessageWithoutRemoteAuthRejected(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	m := New(transport, engine, false, nil)

	err := m.HandlePeerMessage(connection.New(nil, nil, nil), component.Request{})
	assert.ErrorIs(t, err, vde3.ErrInvalidArgument)
}

func TestHandlePeerMessageWithRemoteAuthNotImplemented(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	m := New(transport, engine, true, nil)

	err := m.HandlePeerMessage(connection.New(nil, nil, nil), component.Request{})
	assert.ErrorIs(t, err, vde3.ErrNotImplemented)
}
