// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.3's per-connection send queue discipline: FIFO of
// (tries_left, packet-copy), hard cap 4192, write-readiness armed/disarmed
// on empty/non-empty transitions.

//go:build unix

package vde2

import (
	"container/list"

	"github.com/shammash/vde3-go/packet"
)

// defaultMaxQueuedPackets is the hard cap on a connection's outbound queue
// depth absent an explicit [github.com/shammash/vde3-go.Config] override
// (spec §4.3: "Maximum queued packets: 4192 (hard cap; further writes
// return again)").
const defaultMaxQueuedPackets = 4192

type queuedPacket struct {
	triesLeft int
	pkt       *packet.Packet
}

// sendQueue is a connection's outbound FIFO. It is not safe for concurrent
// use, matching the rest of this module's single-threaded reactor
// assumption (spec §5).
type sendQueue struct {
	items  *list.List
	maxLen int
}

func newSendQueue(maxLen int) *sendQueue {
	if maxLen <= 0 {
		maxLen = defaultMaxQueuedPackets
	}
	return &sendQueue{items: list.New(), maxLen: maxLen}
}

// Len returns the number of packets currently queued.
func (q *sendQueue) Len() int { return q.items.Len() }

// Full reports whether the queue is at its hard cap.
func (q *sendQueue) Full() bool { return q.items.Len() >= q.maxLen }

// PushBack enqueues pkt with the given starting try budget. It is the
// caller's responsibility to check [sendQueue.Full] first.
func (q *sendQueue) PushBack(pkt *packet.Packet, maxTries int) {
	q.items.PushBack(&queuedPacket{triesLeft: maxTries, pkt: pkt})
}

// Front returns the oldest queued packet without removing it, and whether
// the queue is non-empty.
func (q *sendQueue) Front() (*queuedPacket, bool) {
	e := q.items.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*queuedPacket), true
}

// PopFront removes the oldest queued packet.
func (q *sendQueue) PopFront() {
	if e := q.items.Front(); e != nil {
		q.items.Remove(e)
	}
}

// RequeueFront decrements the oldest packet's remaining tries and reports
// whether it has any tries left (spec §4.3: "on EAGAIN increment the try
// count, requeue at the tail, and stop"). If tries remain, the entry is
// moved to the tail of the queue; otherwise it is removed and the caller
// is expected to report WriteDelay and discard it.
func (q *sendQueue) RequeueFront() (*queuedPacket, bool) {
	e := q.items.Front()
	if e == nil {
		return nil, false
	}
	qp := e.Value.(*queuedPacket)
	q.items.Remove(e)
	qp.triesLeft--
	if qp.triesLeft <= 0 {
		return qp, false
	}
	q.items.PushBack(qp)
	return qp, true
}
