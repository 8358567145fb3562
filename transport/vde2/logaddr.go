// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on bassosimone/nop's structured-logging idiom around
// safeconn.LocalAddr/RemoteAddr/Network (connect.go, dnsoverudp.go,
// dnsovertcp.go: "slog.String("localAddr", safeconn.LocalAddr(conn))").
// Those call sites always have a real net.Conn on hand; this transport
// only has a pair of raw Unix-domain file descriptors, so addrConn exists
// solely to give safeconn's nil-safe address accessors something to
// introspect for log fields. It is never used for actual I/O.

//go:build unix

package vde2

import (
	"net"
	"time"
)

// unixPathAddr is a [net.Addr] over a bound or connected Unix-domain
// socket path.
type unixPathAddr string

func (a unixPathAddr) Network() string { return "unix" }
func (a unixPathAddr) String() string  { return string(a) }

// addrConn is a [net.Conn] whose only meaningful behavior is reporting its
// local and remote addresses; every I/O method is unreachable because
// this transport drives its sockets directly through golang.org/x/sys/unix
// and never through the net package. It exists only so
// [github.com/bassosimone/safeconn]'s LocalAddr/RemoteAddr/Network
// helpers can be reused for this transport's structured logging, the same
// way the teacher reuses them around a real net.Conn.
type addrConn struct {
	local  string
	remote string
}

var _ net.Conn = addrConn{}

func (addrConn) Read([]byte) (int, error)         { panic("vde2: addrConn is log-only") }
func (addrConn) Write([]byte) (int, error)        { panic("vde2: addrConn is log-only") }
func (addrConn) Close() error                     { return nil }
func (addrConn) SetDeadline(time.Time) error      { return nil }
func (addrConn) SetReadDeadline(time.Time) error  { return nil }
func (addrConn) SetWriteDeadline(time.Time) error { return nil }

func (c addrConn) LocalAddr() net.Addr {
	if c.local == "" {
		return nil
	}
	return unixPathAddr(c.local)
}

func (c addrConn) RemoteAddr() net.Addr {
	if c.remote == "" {
		return nil
	}
	return unixPathAddr(c.remote)
}
