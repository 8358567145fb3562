// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

import "errors"

// Sentinel errors for the status taxonomy in spec §7. Callers compare with
// [errors.Is]; component implementations wrap these with %w to add context
// (the missing name, the busy component, ...).
var (
	// ErrInvalidArgument signals a null required parameter, a malformed
	// path, or a component kind that does not support the requested
	// operation.
	ErrInvalidArgument = errors.New("vde3: invalid argument")

	// ErrNotFound signals an unknown module, component, command, or
	// signal.
	ErrNotFound = errors.New("vde3: not found")

	// ErrAlreadyExists signals a duplicate component name, duplicate
	// module (kind, family), or duplicate signal-callback triple.
	ErrAlreadyExists = errors.New("vde3: already exists")

	// ErrBusy signals an attempt to remove a component that is still
	// referenced by another component.
	ErrBusy = errors.New("vde3: busy")

	// ErrAgain signals a transient condition (send queue full, would
	// block). The caller may retry later; no state was changed.
	ErrAgain = errors.New("vde3: again")

	// ErrClosed signals that the connection, listener, or component the
	// caller addressed is no longer usable.
	ErrClosed = errors.New("vde3: closed")

	// ErrNotImplemented signals a code path the spec leaves as an open
	// question, most notably the do_remote_auth=true handshake branch
	// of the connection manager's state machine (see connmanager.Manager).
	ErrNotImplemented = errors.New("vde3: not implemented")

	// ErrProtocol signals a malformed control request or a datagram
	// transport handshake with a bad magic/version/path.
	ErrProtocol = errors.New("vde3: protocol error")
)
