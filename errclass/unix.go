//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: the bassosimone/nop errclass fragment (same build-tag split
// between unix.go and windows.go, same errno-to-label mapping approach).
//

package errclass

import (
	"errors"

	"golang.org/x/sys/unix"
)

func classifyErrno(err error) (string, bool) {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return "", false
	}
	switch errno {
	case unix.EAGAIN:
		return EAGAIN, true
	case unix.EADDRNOTAVAIL:
		return EADDRNOTAVAIL, true
	case unix.EADDRINUSE:
		return EADDRINUSE, true
	case unix.ECONNABORTED:
		return ECONNABORTED, true
	case unix.ECONNREFUSED:
		return ECONNREFUSED, true
	case unix.ECONNRESET:
		return ECONNRESET, true
	case unix.EHOSTUNREACH:
		return EHOSTUNREACH, true
	case unix.EINVAL:
		return EINVAL, true
	case unix.EINTR:
		return EINTR, true
	case unix.ENETDOWN:
		return ENETDOWN, true
	case unix.ENETUNREACH:
		return ENETUNREACH, true
	case unix.ENOBUFS:
		return ENOBUFS, true
	case unix.ENOTCONN:
		return ENOTCONN, true
	case unix.EPROTONOSUPPORT:
		return EPROTONOSUPPORT, true
	case unix.ETIMEDOUT:
		return ETIMEDOUT, true
	default:
		return "", false
	}
}
