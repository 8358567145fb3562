// SPDX-License-Identifier: GPL-3.0-or-later

//go:build unix

package vde2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shammash/vde3-go/packet"
)

func newTestPacket(t *testing.T, payload string) *packet.Packet {
	t.Helper()
	pkt, err := packet.New(packet.TypeData, 0, len(payload), 0)
	require.NoError(t, err)
	require.NoError(t, pkt.SetPayload([]byte(payload)))
	return pkt
}

func TestSendQueueFIFOOrder(t *testing.T) {
	q := newSendQueue(0)
	q.PushBack(newTestPacket(t, "a"), 3)
	q.PushBack(newTestPacket(t, "b"), 3)

	front, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, "a", string(front.pkt.Payload()))

	q.PopFront()
	front, ok = q.Front()
	require.True(t, ok)
	assert.Equal(t, "b", string(front.pkt.Payload()))
}

func TestSendQueueDefaultCap(t *testing.T) {
	q := newSendQueue(0)
	assert.Equal(t, defaultMaxQueuedPackets, q.maxLen)
}

func TestSendQueueFullAtCustomCap(t *testing.T) {
	q := newSendQueue(2)
	q.PushBack(newTestPacket(t, "a"), 1)
	assert.False(t, q.Full())
	q.PushBack(newTestPacket(t, "b"), 1)
	assert.True(t, q.Full())
}

func TestSendQueueRequeueFrontDecrementsTries(t *testing.T) {
	q := newSendQueue(0)
	q.PushBack(newTestPacket(t, "a"), 2)

	qp, retrying := q.RequeueFront()
	require.True(t, retrying)
	assert.Equal(t, 1, qp.triesLeft)
	assert.Equal(t, 1, q.Len())

	qp, retrying = q.RequeueFront()
	assert.False(t, retrying)
	assert.Equal(t, 0, qp.triesLeft)
	assert.Equal(t, 0, q.Len())
}

func TestSendQueueRequeueFrontMovesToTail(t *testing.T) {
	q := newSendQueue(0)
	q.PushBack(newTestPacket(t, "a"), 2)
	q.PushBack(newTestPacket(t, "b"), 2)

	q.RequeueFront()

	front, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, "b", string(front.pkt.Payload()))
}

func TestSendQueueFrontOnEmptyQueue(t *testing.T) {
	q := newSendQueue(0)
	_, ok := q.Front()
	assert.False(t, ok)
	_, retrying := q.RequeueFront()
	assert.False(t, retrying)
}
