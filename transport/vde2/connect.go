// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.3/§4.2's outbound-connect mirror of the accept path,
// and on bassosimone/nop's ConnectFunc for the "dial, then hand the result
// to whoever is listening for it" split.

//go:build unix

package vde2

import (
	"context"
	"fmt"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"golang.org/x/sys/unix"
)

// Request is the outbound connect request shape this transport
// understands: the remote rendezvous directory to dial.
type Request = component.Request

// connect implements [component.TransportOps.Connect]: it dials a peer's
// rendezvous socket, performs the client side of the vde2 handshake
// synchronously, and hands the resulting connection to
// [component.TransportOps.OnConnect] before returning. It does not call
// [github.com/shammash/vde3-go/connmanager.Manager.RegisterOutbound]
// itself; a manager's OnConnect handler registers the connection with the
// request and callbacks of the Connect call in progress.
//
// This implementation completes synchronously rather than through the
// reactor: the rendezvous exchange is a short, bounded request/reply over
// a freshly connected stream socket, and spec §5's single-threaded
// cooperative model permits a component operation to run to completion as
// long as it does not block on external I/O it cannot control — here both
// sides of the exchange are local Unix-domain sockets under our own
// control.
func (t *Transport) connect(ctx context.Context, req Request) error {
	remoteDir, ok := req.Get("dir")
	if !ok || !remoteDir.IsString() || remoteDir.String() == "" {
		return fmt.Errorf("vde2: connect: request missing string field %q", "dir")
	}
	remoteCtl := controlPath(remoteDir.String())

	myPath := dataPath(t.Dir, t.counter)
	t.counter++

	dataFd, err := t.bindDatagram(myPath)
	if err != nil {
		return fmt.Errorf("vde2: connect: bind local datagram socket: %w", err)
	}

	ctlFd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("vde2: connect: socket: %w", err)
	}
	if err := unix.Connect(ctlFd, &unix.SockaddrUnix{Name: remoteCtl}); err != nil {
		_ = unix.Close(ctlFd)
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("vde2: connect: dial %s: %w", remoteCtl, err)
	}

	if _, err := unix.Write(ctlFd, encodeReply(myPath)); err != nil {
		_ = unix.Close(ctlFd)
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("vde2: connect: send rendezvous request: %w", err)
	}

	buf := make([]byte, requestHeaderSize+maxPathLen)
	n, err := unix.Read(ctlFd, buf)
	if err != nil || n == 0 {
		_ = unix.Close(ctlFd)
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("vde2: connect: read rendezvous reply: %w", err)
	}
	peerPath, err := decodeRequest(buf[:n])
	if err != nil {
		_ = unix.Close(ctlFd)
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("vde2: connect: decode rendezvous reply: %w", err)
	}

	if err := unix.Connect(dataFd, &unix.SockaddrUnix{Name: peerPath}); err != nil {
		_ = unix.Close(ctlFd)
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("vde2: connect: connect to peer %s: %w", peerPath, err)
	}

	vc := t.newVdeConn(ctlFd, dataFd, myPath, peerPath)
	vc.spanID = vde3.NewSpanID()
	t.conns[vc.conn] = vc
	vc.arm()

	if t.ops.OnConnect != nil {
		t.ops.OnConnect(vc.conn)
	}
	return nil
}
