// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.3/§6 for wire format, directory layout and queue
// discipline, and on the teacher's nop.ConnectFunc/nop.ObserveConnFunc
// split between "dial the backend" and "wrap the result with
// observability" — here split instead into accept.go/connect.go (dial) and
// conn.go (the wrapped, observed per-connection state).

// Package vde2 implements the spec's reference datagram transport: a
// vde2-compatible Unix-domain rendezvous socket at "<dir>/ctl", with
// per-connection datagram sockets allocated at "<dir>/NNNN" once a client
// completes the initial handshake (spec §4.3).
//go:build unix

package vde2

import (
	"fmt"
	"path/filepath"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/internal/reactor"
	"golang.org/x/sys/unix"
)

// listenBacklog is the rendezvous socket's listen(2) backlog (spec §4.3
// step 1).
const listenBacklog = 15

// Transport is a vde2-compatible datagram transport (spec §4.3).
//
// Transport is not safe for concurrent use; like every component in this
// module it is driven entirely from the reactor's single goroutine (spec
// §5).
type Transport struct {
	// Dir is the directory holding the rendezvous socket ("ctl") and the
	// per-connection datagram sockets ("0000", "0001", ...).
	Dir string

	Reactor reactor.Reactor
	Config  *vde3.Config

	ops *component.TransportOps

	listening   bool
	listenFd    int
	listenToken reactor.Token

	pendingAccepts map[int]*pendingAccept
	conns          map[*connection.Connection]*vdeConn

	counter int
}

// pendingAccept tracks a control socket between accept(2) and the client's
// first rendezvous message (spec §3 "Pending Connection", specialized to
// the transport's own bookkeeping prior to handing anything to the
// connection manager).
type pendingAccept struct {
	controlFd int
	readToken reactor.Token

	// spanID correlates every log line for one accept attempt, from the
	// initial accept(2) through either completeAccept or abortPendingAccept.
	spanID string
}

// New constructs a [*Transport] rooted at dir, along with the
// [*component.TransportOps] a caller passes to [component.New]. The
// returned ops' Listen and Connect fields are already bound; its
// OnConnect/OnAccept/OnError fields are left for a
// [github.com/shammash/vde3-go/connmanager.Manager] to fill in.
func New(dir string, r reactor.Reactor, cfg *vde3.Config) (*Transport, *component.TransportOps) {
	if cfg == nil {
		cfg = vde3.NewConfig()
	}
	t := &Transport{
		Dir:            dir,
		Reactor:        r,
		Config:         cfg,
		pendingAccepts: make(map[int]*pendingAccept),
		conns:          make(map[*connection.Connection]*vdeConn),
	}
	t.ops = &component.TransportOps{
		Listen:  t.listen,
		Connect: t.connect,
	}
	return t, t.ops
}

func (t *Transport) logger() vde3.SLogger {
	if t.Config != nil && t.Config.Logger != nil {
		return t.Config.Logger
	}
	return vde3.DefaultSLogger()
}

func (t *Transport) classify(err error) string {
	if t.Config != nil && t.Config.ErrClassifier != nil {
		return t.Config.ErrClassifier.Classify(err)
	}
	return vde3.DefaultErrClassifier.Classify(err)
}

// controlPath returns the rendezvous socket path for dir.
func controlPath(dir string) string {
	return filepath.Join(dir, "ctl")
}

// dataPath returns the path of the counter-th per-connection datagram
// socket (spec §4.3 step 4: "monotonic zero-padded counter directory
// entries").
func dataPath(dir string, counter int) string {
	return filepath.Join(dir, fmt.Sprintf("%04d", counter))
}

// Close tears down the transport's listening socket and every established
// connection's sockets.
func (t *Transport) Close() error {
	if t.listening {
		_ = t.Reactor.Cancel(t.listenToken)
		_ = unix.Close(t.listenFd)
		_ = unix.Unlink(controlPath(t.Dir))
		t.listening = false
	}
	for _, vc := range t.conns {
		vc.teardown()
	}
	return nil
}

func (t *Transport) notifyError(conn *connection.Connection, cerr vde3.ConnError) {
	if t.ops != nil && t.ops.OnError != nil {
		t.ops.OnError(conn, cerr)
	}
}
