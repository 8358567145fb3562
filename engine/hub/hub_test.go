// SPDX-License-Identifier: GPL-3.0-or-later

package hub

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/packet"
	"github.com/shammash/vde3-go/sobj"
)

// fakeConn builds a [*connection.Connection] whose write backend records
// every packet passed to it, for asserting on a hub's fan-out behavior.
func fakeConn(t *testing.T, maxPayload int) (*connection.Connection, *[]*packet.Packet) {
	t.Helper()
	var written []*packet.Packet
	conn := connection.New(vde3.NewConfig(), func(pkt *packet.Packet) error {
		written = append(written, pkt)
		return nil
	}, func() error { return nil })
	conn.MaxPayload = maxPayload
	return conn, &written
}

func attach(t *testing.T, c *component.Component, conn *connection.Connection) {
	t.Helper()
	ops, ok := c.EngineOps()
	require.True(t, ok)
	require.NoError(t, ops.NewConnection(c, conn, component.Request{}))
}

func TestNewConnectionRejectsUndersizedPayload(t *testing.T) {
	c := New("e1")
	ops, _ := c.EngineOps()

	conn, _ := fakeConn(t, packet.EthernetMaxFrameSize-1)
	err := ops.NewConnection(c, conn, component.Request{})
	assert.ErrorIs(t, err, vde3.ErrInvalidArgument)
}

func TestNewConnectionAcceptsZeroMaxPayload(t *testing.T) {
	c := New("e1")
	conn, _ := fakeConn(t, 0)
	attach(t, c, conn)
	assert.Equal(t, 1, c.Priv().(*Hub).PortCount())
}

func TestNewConnectionRaisesPortNewWithCount(t *testing.T) {
	c := New("e1")
	s, err := c.GetSignal("port_new")
	require.NoError(t, err)

	var counts []int
	require.NoError(t, s.Attach(func(args any) {
		counts = append(counts, args.([]int)[0])
	}, nil, nil))

	conn1, _ := fakeConn(t, 0)
	conn2, _ := fakeConn(t, 0)
	attach(t, c, conn1)
	attach(t, c, conn2)

	assert.Equal(t, []int{1, 2}, counts)
}

func TestFanoutExcludesSourcePort(t *testing.T) {
	c := New("e1")
	connA, writtenA := fakeConn(t, 0)
	connB, writtenB := fakeConn(t, 0)
	attach(t, c, connA)
	attach(t, c, connB)

	h := c.Priv().(*Hub)

	pkt, err := packet.New(packet.TypeData, 0, 64, 0)
	require.NoError(t, err)

	result := h.onRead(connA)(pkt)
	assert.Equal(t, connection.ResultOK, result)
	assert.Empty(t, *writtenA)
	require.Len(t, *writtenB, 1)
	assert.Same(t, pkt, (*writtenB)[0])
}

func TestFatalErrorDetachesPortAndRaisesPortDel(t *testing.T) {
	c := New("e1")
	s, err := c.GetSignal("port_del")
	require.NoError(t, err)

	var lastCount int
	require.NoError(t, s.Attach(func(args any) {
		lastCount = args.([]int)[0]
	}, nil, nil))

	conn1, _ := fakeConn(t, 0)
	conn2, _ := fakeConn(t, 0)
	attach(t, c, conn1)
	attach(t, c, conn2)

	h := c.Priv().(*Hub)
	result := h.onError(conn1)(vde3.ConnErrorReadClosed)

	assert.Equal(t, connection.ResultClosed, result)
	assert.Equal(t, 1, h.PortCount())
	assert.Equal(t, 1, lastCount)
	assert.NotContains(t, h.Ports(), conn1)
}

func TestWriteDelayKeepsPortAttached(t *testing.T) {
	c := New("e1")
	conn, _ := fakeConn(t, 0)
	attach(t, c, conn)

	h := c.Priv().(*Hub)
	result := h.onError(conn)(vde3.ConnErrorWriteDelay)

	assert.Equal(t, connection.ResultOK, result)
	assert.Equal(t, 1, h.PortCount())
}

func TestStatusCommandReportsPortCount(t *testing.T) {
	c := New("e1")
	conn1, _ := fakeConn(t, 0)
	conn2, _ := fakeConn(t, 0)
	attach(t, c, conn1)
	attach(t, c, conn2)

	cmd, err := c.GetCommand("status")
	require.NoError(t, err)
	out, err := cmd.Call(context.Background(), c, component.Request{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Int())
}

func TestPrintPortCommandDescribesIndex(t *testing.T) {
	c := New("e1")
	conn, _ := fakeConn(t, 0)
	attach(t, c, conn)

	cmd, err := c.GetCommand("printport")
	require.NoError(t, err)
	out, err := cmd.Call(context.Background(), c, sobj.Array(sobj.Int(0)))
	require.NoError(t, err)
	assert.True(t, strings.Contains(out.String(), "0"))
}

func TestPrintPortCommandRejectsOutOfRangeIndex(t *testing.T) {
	c := New("e1")
	cmd, err := c.GetCommand("printport")
	require.NoError(t, err)
	_, err = cmd.Call(context.Background(), c, sobj.Array(sobj.Int(3)))
	assert.ErrorIs(t, err, vde3.ErrNotFound)
}

func TestModuleNewConstructsAttachableEngine(t *testing.T) {
	mod := Module()
	assert.True(t, mod.Valid())
	assert.Equal(t, component.KindEngine, mod.Kind)
	assert.Equal(t, Family, mod.Family)

	c, err := mod.New("e1")
	require.NoError(t, err)

	conn, _ := fakeConn(t, 0)
	attach(t, c, conn)
	assert.Equal(t, 1, c.Priv().(*Hub).PortCount())

	mod.Fini(c)
	assert.Equal(t, 0, c.Priv().(*Hub).PortCount())
}

func TestFiniClosesEveryPort(t *testing.T) {
	c := New("e1")
	var closed int
	conn := connection.New(vde3.NewConfig(), func(pkt *packet.Packet) error { return nil },
		func() error { closed++; return nil })
	attach(t, c, conn)

	h := c.Priv().(*Hub)
	h.Fini()

	assert.Equal(t, 1, closed)
	assert.Equal(t, 0, h.PortCount())
}
