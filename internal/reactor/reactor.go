// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: spec §1's "the event loop (an adapter over any reactor
// delivering readiness and timeout callbacks)" being out of scope as a
// concept but not as a concrete need — the datagram transport (spec §4.3)
// and connection manager (spec §5 "Cancellation and timeouts") both need
// something to arm events against. Shaped after the
// register/callback/cancel-by-token contract implied by spec §5's
// "Event adds return an opaque token; the component stores that token and
// cancels with event_del on teardown."

// Package reactor defines the minimal event-loop adapter the rest of this
// module is built against, plus two implementations: [*EpollReactor] for
// Linux, and [*ChannelReactor] for tests that want to drive callbacks by
// hand without a real file descriptor.
package reactor

import "time"

// Token identifies a previously armed event so it can later be canceled
// (spec §5: "Event adds return an opaque token").
type Token int

// Reactor is the adapter over "any reactor delivering readiness and
// timeout callbacks" (spec §1). Every component operation in this module
// that would otherwise block is instead expressed as a callback armed
// through one of these methods (spec §5 "Scheduling model").
type Reactor interface {
	// AddRead arms cb to run when fd becomes readable. cb is invoked
	// repeatedly, once per readiness notification, until canceled.
	AddRead(fd int, cb func()) (Token, error)

	// AddWrite arms cb to run when fd becomes writable.
	AddWrite(fd int, cb func()) (Token, error)

	// AddTimeout arms cb to run once, after d elapses.
	AddTimeout(d time.Duration, cb func()) (Token, error)

	// Cancel disarms a previously added event. Canceling an already-fired
	// one-shot timeout, or an unknown token, is a no-op.
	Cancel(tok Token) error

	// Close tears down the reactor's own resources (e.g. the epoll fd).
	Close() error
}
