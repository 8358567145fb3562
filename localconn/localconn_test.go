// SPDX-License-Identifier: GPL-3.0-or-later

package localconn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/engine/hub"
	"github.com/shammash/vde3-go/localconn"
	"github.com/shammash/vde3-go/packet"
)

func TestConnectEnginesBridgesTwoHubs(t *testing.T) {
	left := hub.New("left")
	right := hub.New("right")

	require.NoError(t, localconn.ConnectEngines(nil, left, component.Request{}, right, component.Request{}))

	// Each hub now has a single bridging port; attach a "client" port on
	// each side. A frame read on the left client is forwarded by the left
	// hub across the bridge, and the right hub writes it to the right
	// client, whose write backend records it.
	var gotOnRight []byte
	rightClient := connection.New(nil, func(pkt *packet.Packet) error {
		gotOnRight = append([]byte{}, pkt.Payload()...)
		return nil
	}, func() error { return nil })

	rightOps, _ := right.EngineOps()
	require.NoError(t, rightOps.NewConnection(right, rightClient, component.Request{}))

	leftClient := connection.New(nil, func(pkt *packet.Packet) error { return nil }, func() error { return nil })
	leftOps, _ := left.EngineOps()
	require.NoError(t, leftOps.NewConnection(left, leftClient, component.Request{}))

	pkt, err := packet.New(packet.TypeData, 0, 64, 0)
	require.NoError(t, err)
	require.NoError(t, pkt.SetPayload(make([]byte, 64)))

	require.Equal(t, connection.ResultOK, leftClient.DispatchRead(pkt))
	assert.Equal(t, pkt.Payload(), gotOnRight)
}

func TestConnectEnginesClosePropagatesAsReadClosed(t *testing.T) {
	left := hub.New("left")
	right := hub.New("right")
	require.NoError(t, localconn.ConnectEngines(nil, left, component.Request{}, right, component.Request{}))

	h := left.Priv().(*hub.Hub)
	require.Equal(t, 1, h.PortCount())

	// Closing the bridging port on the right side must surface ReadClosed
	// on the left hub's bridging port, detaching it there too.
	rh := right.Priv().(*hub.Hub)
	require.Equal(t, 1, rh.PortCount())
	require.NoError(t, rh.Ports()[0].Close())

	assert.Equal(t, 0, h.PortCount())
}
