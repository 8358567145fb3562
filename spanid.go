// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying a span of causally related
// activity: a connection's accept-to-close lifetime, a single handshake, or
// a single JSON-RPC request/reply round trip.
//
// Span IDs are attached to structured log events and to control-engine
// notifications so that a caller correlating logs can tell which
// connection or request an event belongs to.
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
