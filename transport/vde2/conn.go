// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.1 (connection's write/close contract) and §4.3
// "Per-connection send queue"/"Read side", and on bassosimone/nop's
// observeconn.go for wrapping a raw backend (there, a net.Conn; here, a
// pair of file descriptors) behind the shared [connection.Connection]
// lifecycle.

//go:build unix

package vde2

import (
	"errors"

	"github.com/bassosimone/safeconn"
	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/internal/reactor"
	"github.com/shammash/vde3-go/packet"
	"golang.org/x/sys/unix"
)

// vdeConn is one established vde2 connection's transport-side state: the
// control socket (kept open only to detect unexpected data or peer close),
// the connected datagram socket carrying frames, and the outbound send
// queue (spec §4.3).
type vdeConn struct {
	t *Transport

	controlFd int
	dataFd    int
	dataPath  string
	peerPath  string

	// spanID correlates every log line this connection emits, from accept
	// through teardown, with the accept attempt that produced it.
	spanID string

	controlToken reactor.Token
	readToken    reactor.Token
	writeToken   reactor.Token
	writeArmed   bool

	queue *sendQueue
	conn  *connection.Connection
}

func (t *Transport) newVdeConn(controlFd, dataFd int, path, peerPath string) *vdeConn {
	maxQueued := 0
	if t.Config != nil {
		maxQueued = t.Config.MaxQueuedPackets
	}
	vc := &vdeConn{
		t:         t,
		controlFd: controlFd,
		dataFd:    dataFd,
		dataPath:  path,
		peerPath:  peerPath,
		queue:     newSendQueue(maxQueued),
	}
	vc.conn = connection.New(t.Config, vc.write, vc.close)
	return vc
}

// logAddr returns a log-only [net.Conn] standing in for this connection's
// pair of Unix-domain socket paths, for reuse with safeconn's nil-safe
// address accessors (see logaddr.go).
func (vc *vdeConn) logAddr() addrConn {
	return addrConn{local: vc.dataPath, remote: vc.peerPath}
}

// arm registers this connection's file descriptors with the reactor: the
// datagram socket for reads, and the control socket purely to detect the
// peer closing or misbehaving on a channel this transport no longer reads
// from for protocol data (spec §4.3 step 4: "register the datagram socket
// for reads and the control socket for unexpected-data/close detection").
func (vc *vdeConn) arm() {
	readTok, err := vc.t.Reactor.AddRead(vc.dataFd, vc.onDataReadable)
	if err == nil {
		vc.readToken = readTok
	}
	ctlTok, err := vc.t.Reactor.AddRead(vc.controlFd, vc.onControlUnexpected)
	if err == nil {
		vc.controlToken = ctlTok
	}
}

// write implements [connection.WriteFunc]: it copies pkt into the send
// queue and arms write-readiness if this is the first queued packet (spec
// §4.3: "write copies the packet into a fresh queue entry ... ensures a
// write-readiness event is armed").
func (vc *vdeConn) write(pkt *packet.Packet) error {
	if vc.queue.Full() {
		return vde3.ErrAgain
	}
	vc.queue.PushBack(pkt.FaithfulCopy(), vc.conn.SendRetry.MaxTries)
	vc.armWrite()
	return nil
}

func (vc *vdeConn) armWrite() {
	if vc.writeArmed {
		return
	}
	tok, err := vc.t.Reactor.AddWrite(vc.dataFd, vc.onWriteReady)
	if err != nil {
		return
	}
	vc.writeToken = tok
	vc.writeArmed = true
}

func (vc *vdeConn) disarmWrite() {
	if !vc.writeArmed {
		return
	}
	_ = vc.t.Reactor.Cancel(vc.writeToken)
	vc.writeArmed = false
}

// onWriteReady drains as much of the send queue as the socket accepts
// (spec §4.3 "On write-readiness").
//
// The wire carries only the Ethernet frame itself, matching the
// "vde2-compatible" framing this reference transport targets: the
// [packet.Packet] header and head/tail padding are this process's own
// in-memory bookkeeping, never put on the wire.
func (vc *vdeConn) onWriteReady() {
	for {
		qp, ok := vc.queue.Front()
		if !ok {
			vc.disarmWrite()
			return
		}

		_, err := unix.Write(vc.dataFd, qp.pkt.Payload())

		switch {
		case err == nil:
			vc.queue.PopFront()
			vc.conn.DispatchWriteComplete(qp.pkt)
		case errors.Is(err, unix.EAGAIN):
			if _, retrying := vc.queue.RequeueFront(); !retrying {
				vc.reportError(vde3.ConnErrorWriteDelay)
			}
			return
		default:
			vc.queue.PopFront()
			vc.reportError(vde3.ConnErrorWriteClosed)
			return
		}
	}
}

// onDataReadable reads one or more frames off the datagram socket (spec
// §4.3 "Read side").
func (vc *vdeConn) onDataReadable() {
	headPad, tailPad := vc.conn.HeadPad, vc.conn.TailPad
	capacity := packet.StandardCapacity
	if headPad+packet.EthernetMaxFrameSize+tailPad > capacity {
		capacity = headPad + packet.EthernetMaxFrameSize + tailPad
	}

	for {
		buf := make([]byte, capacity)
		n, _, err := unix.Recvfrom(vc.dataFd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			vc.reportError(vde3.ConnErrorReadClosed)
			return
		}
		if n == 0 {
			vc.reportError(vde3.ConnErrorReadClosed)
			return
		}
		if n < packet.EthernetMinHeaderSize {
			continue
		}

		pkt, err := packet.NewWithCapacity(packet.TypeData, headPad, n, tailPad, capacity)
		if err != nil {
			continue
		}
		if err := pkt.SetPayload(buf[:n]); err != nil {
			continue
		}

		if vc.conn.DispatchRead(pkt) == connection.ResultClosed {
			vc.teardown()
			return
		}
	}
}

// onControlUnexpected handles any activity on the (otherwise idle)
// control socket after the handshake completed: either the peer closed
// it, or it sent more data than the protocol defines after rendezvous,
// both of which are treated as fatal per spec §4.3.
func (vc *vdeConn) onControlUnexpected() {
	vc.reportError(vde3.ConnErrorReadClosed)
}

func (vc *vdeConn) reportError(cerr vde3.ConnError) {
	addr := vc.logAddr()
	vc.t.logger().Info("vde2ConnectionError",
		"span", vc.spanID,
		"err", cerr.String(),
		"localAddr", safeconn.LocalAddr(addr),
		"remoteAddr", safeconn.RemoteAddr(addr),
		"network", safeconn.Network(addr),
	)

	result := vc.conn.DispatchError(cerr)
	vc.t.notifyError(vc.conn, cerr)
	if cerr.Fatal() || result == connection.ResultClosed {
		vc.teardown()
	}
}

// close implements [connection.CloseFunc] (spec §4.3 "on 'closed' response
// from consumer, destroy the connection").
func (vc *vdeConn) close() error {
	vc.teardown()
	return nil
}

// teardown releases every resource this connection holds: both sockets,
// the bound datagram path, and its armed reactor events (spec §4.3:
// "closes both sockets, unbinds the datagram path, cancels events, frees
// the queue").
func (vc *vdeConn) teardown() {
	_ = vc.t.Reactor.Cancel(vc.readToken)
	_ = vc.t.Reactor.Cancel(vc.controlToken)
	vc.disarmWrite()
	_ = unix.Close(vc.dataFd)
	_ = unix.Close(vc.controlFd)
	_ = unix.Unlink(vc.dataPath)
	delete(vc.t.conns, vc.conn)
}
