// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.3 "Listen side" steps 1-4.

//go:build unix

package vde2

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shammash/vde3-go"
	"golang.org/x/sys/unix"
)

// listen implements [component.TransportOps.Listen].
func (t *Transport) listen(ctx context.Context) error {
	dirMode := os.FileMode(0777)
	if t.Config != nil && t.Config.DirMode != 0 {
		dirMode = os.FileMode(t.Config.DirMode)
	}
	if err := os.MkdirAll(t.Dir, dirMode); err != nil {
		return fmt.Errorf("vde2: create directory %s: %w", t.Dir, err)
	}

	path := controlPath(t.Dir)
	fd, err := t.bindRendezvous(path)
	if err != nil {
		return fmt.Errorf("vde2: listen %s: %w", path, err)
	}
	t.listenFd = fd

	tok, err := t.Reactor.AddRead(fd, t.onListenReadable)
	if err != nil {
		_ = unix.Close(fd)
		return fmt.Errorf("vde2: arm listen readiness: %w", err)
	}
	t.listenToken = tok
	t.listening = true
	return nil
}

// bindRendezvous creates, binds and starts listening on the rendezvous
// socket, unlinking and retrying once if the path is already bound but
// nothing is actually serving it (spec §4.3 step 1: "If the path is in use
// but not actually served, unlink and retry once").
func (t *Transport) bindRendezvous(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("socket: %w", err)
	}

	bindErr := unix.Bind(fd, &unix.SockaddrUnix{Name: path})
	if bindErr != nil && errors.Is(bindErr, unix.EADDRINUSE) && !t.pathIsServed(path) {
		_ = unix.Unlink(path)
		bindErr = unix.Bind(fd, &unix.SockaddrUnix{Name: path})
	}
	if bindErr != nil {
		_ = unix.Close(fd)
		return 0, fmt.Errorf("bind: %w", bindErr)
	}

	if err := unix.Listen(fd, listenBacklog); err != nil {
		_ = unix.Close(fd)
		return 0, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// pathIsServed probes whether some process is actually listening on path,
// by attempting a connect to it. A failing probe-socket allocation is
// treated conservatively as "served" so we never unlink a socket we
// couldn't actually verify.
func (t *Transport) pathIsServed(path string) bool {
	probeFd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return true
	}
	defer unix.Close(probeFd)
	return unix.Connect(probeFd, &unix.SockaddrUnix{Name: path}) == nil
}

// onListenReadable drains every pending connection on the rendezvous
// socket (spec §4.3 step 2).
func (t *Transport) onListenReadable() {
	for {
		connFd, _, err := unix.Accept4(t.listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return
			}
			t.logger().Info("vde2AcceptError", "err", t.classify(err))
			return
		}

		pc := &pendingAccept{controlFd: connFd, spanID: vde3.NewSpanID()}
		t.pendingAccepts[connFd] = pc

		fd := connFd
		tok, err := t.Reactor.AddRead(fd, func() { t.onControlReadable(fd) })
		if err != nil {
			_ = unix.Close(fd)
			delete(t.pendingAccepts, fd)
			continue
		}
		pc.readToken = tok
	}
}

// onControlReadable handles the client's first rendezvous message (spec
// §4.3 step 3) and, on success, completes the handshake (step 4).
func (t *Transport) onControlReadable(fd int) {
	pc, ok := t.pendingAccepts[fd]
	if !ok {
		return
	}

	buf := make([]byte, requestHeaderSize+maxPathLen)
	n, err := unix.Read(fd, buf)
	if err != nil || n == 0 {
		t.abortPendingAccept(pc)
		return
	}

	peerPath, err := decodeAcceptRequest(buf[:n])
	if err != nil {
		t.logger().Info("vde2RendezvousRejected", "span", pc.spanID, "err", err.Error())
		t.abortPendingAccept(pc)
		return
	}

	if err := t.completeAccept(pc, peerPath); err != nil {
		t.logger().Info("vde2AcceptHandshakeFailed", "span", pc.spanID, "err", err.Error())
		t.abortPendingAccept(pc)
	}
}

func (t *Transport) abortPendingAccept(pc *pendingAccept) {
	_ = t.Reactor.Cancel(pc.readToken)
	_ = unix.Close(pc.controlFd)
	delete(t.pendingAccepts, pc.controlFd)
}

// completeAccept allocates the per-connection datagram socket, connects it
// to the client's own datagram socket, replies over the control socket
// with the allocated path, then hands the new connection to
// [component.TransportOps.OnAccept].
func (t *Transport) completeAccept(pc *pendingAccept, peerPath string) error {
	myPath := dataPath(t.Dir, t.counter)
	t.counter++

	dataFd, err := t.bindDatagram(myPath)
	if err != nil {
		return fmt.Errorf("bind datagram socket: %w", err)
	}
	if err := unix.Connect(dataFd, &unix.SockaddrUnix{Name: peerPath}); err != nil {
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("connect to peer %s: %w", peerPath, err)
	}

	if _, err := unix.Write(pc.controlFd, encodeReply(myPath)); err != nil {
		_ = unix.Close(dataFd)
		_ = unix.Unlink(myPath)
		return fmt.Errorf("send reply: %w", err)
	}

	delete(t.pendingAccepts, pc.controlFd)
	_ = t.Reactor.Cancel(pc.readToken)

	vc := t.newVdeConn(pc.controlFd, dataFd, myPath, peerPath)
	vc.spanID = pc.spanID
	t.conns[vc.conn] = vc
	vc.arm()

	if t.ops.OnAccept != nil {
		t.ops.OnAccept(vc.conn)
	}
	return nil
}

// bindDatagram creates a non-blocking Unix datagram socket bound to path.
func (t *Transport) bindDatagram(path string) (int, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return 0, fmt.Errorf("bind: %w", err)
	}
	return fd, nil
}
