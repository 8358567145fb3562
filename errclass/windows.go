//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the bassosimone/nop errclass fragment (same build-tag split
// between unix.go and windows.go, same errno-to-label mapping approach).
//

package errclass

import (
	"errors"

	"golang.org/x/sys/windows"
)

func classifyErrno(err error) (string, bool) {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return "", false
	}
	switch errno {
	case windows.WSAEWOULDBLOCK:
		return EAGAIN, true
	case windows.WSAEADDRNOTAVAIL:
		return EADDRNOTAVAIL, true
	case windows.WSAEADDRINUSE:
		return EADDRINUSE, true
	case windows.WSAECONNABORTED:
		return ECONNABORTED, true
	case windows.WSAECONNREFUSED:
		return ECONNREFUSED, true
	case windows.WSAECONNRESET:
		return ECONNRESET, true
	case windows.WSAEHOSTUNREACH:
		return EHOSTUNREACH, true
	case windows.WSAEINVAL:
		return EINVAL, true
	case windows.WSAEINTR:
		return EINTR, true
	case windows.WSAENETDOWN:
		return ENETDOWN, true
	case windows.WSAENETUNREACH:
		return ENETUNREACH, true
	case windows.WSAENOBUFS:
		return ENOBUFS, true
	case windows.WSAENOTCONN:
		return ENOTCONN, true
	case windows.WSAEPROTONOSUPPORT:
		return EPROTONOSUPPORT, true
	case windows.WSAETIMEDOUT:
		return ETIMEDOUT, true
	default:
		return "", false
	}
}
