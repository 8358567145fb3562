// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone/nop's observeconn.go (idempotent Close via
// sync.Once, forwarding wrapper around a backend with before/after
// structured logging) generalized from wrapping a net.Conn to wrapping the
// spec's abstract packet conduit, and on
// original_source/src/connection.c / src/include/vde3/connection.h for the
// callback-forwarding contract.

// Package connection implements the spec's universal conduit between a
// transport implementation and its consumer (an engine or the control
// engine): [*Connection] owns no buffering itself, forwards reads/writes/
// errors between the two sides, and never blocks its caller (spec §3,
// §4.1).
package connection

import (
	"sync"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/packet"
)

// Result is the sum-type result a consumer callback returns, replacing the
// source's integer status plus shared errno (spec §9 design note).
type Result int

const (
	// ResultOK indicates the packet or event was handled successfully.
	ResultOK Result = iota

	// ResultAgain asks the transport to re-queue the packet, e.g. because
	// the consumer's buffer is momentarily full.
	ResultAgain

	// ResultClosed asks the transport to tear this connection down.
	ResultClosed
)

// WriteFunc copies pkt into the transport's send queue and returns
// immediately: a [Connection.Write] call never blocks (spec §4.1).
//
// Implementations return nil on success, [vde3.ErrAgain] if backpressure
// demands the caller retry, or any other error if the transport is fatally
// broken.
type WriteFunc func(pkt *packet.Packet) error

// CloseFunc tears down the connection's backend resources. It must be
// idempotent; [Connection.Close] already enforces at-most-once invocation,
// but a CloseFunc may also be called directly by transport-internal
// teardown paths.
type CloseFunc func() error

// ReadFunc is invoked by the transport when a frame arrives. The returned
// [Result] tells the transport whether to continue, re-queue (not
// meaningful for reads, treated as OK), or close the connection.
type ReadFunc func(pkt *packet.Packet) Result

// WriteCompleteFunc is invoked by the transport once a previously queued
// packet has actually been sent.
type WriteCompleteFunc func(pkt *packet.Packet) Result

// ErrorFunc is invoked by the transport when a fatal or transient I/O
// condition occurs. The returned [Result] is interpreted the same way as
// [ReadFunc]'s.
type ErrorFunc func(err vde3.ConnError) Result

// SendRetry is a connection's send-retry policy: drop a packet that could
// not be sent within MaxTries attempts, each allowed up to MaxTimeout
// (spec §3, §4.3).
type SendRetry struct {
	MaxTries   int
	MaxTimeout int64 // nanoseconds; stored as int64 to keep this struct comparable
}

// Connection is the universal conduit between a transport backend and a
// consumer (spec §3, §4.1).
//
// A Connection owns no buffering of its own: backing storage for pending
// writes belongs to the transport. Exactly one consumer may be attached at
// a time; its read and error callbacks must be set (via
// [Connection.SetCallbacks]) before any frame traverses the connection.
type Connection struct {
	// Ctx is the owning context, stored untyped to avoid an import cycle
	// between this package and the context package (the same "opaque
	// pointer" trade-off the spec's component.priv field makes).
	Ctx any

	// MaxPayload is the maximum payload size the consumer accepts; 0
	// means unlimited (spec §3).
	MaxPayload int

	// HeadPad and TailPad are the padding the consumer requires on
	// inbound packets (spec §3).
	HeadPad int
	TailPad int

	// SendRetry is this connection's send-retry policy.
	SendRetry SendRetry

	// Attrs is an optional, freeform per-connection attribute map.
	Attrs map[string]any

	// Logger and ErrClassifier are taken from the [vde3.Config] passed to
	// [New]. Logger records consumer callbacks that return an unknown
	// [Result] (see [Connection.DispatchRead]).
	Logger        vde3.SLogger
	ErrClassifier vde3.ErrClassifier

	write WriteFunc
	close CloseFunc

	onRead          ReadFunc
	onWriteComplete WriteCompleteFunc
	onError         ErrorFunc

	closeOnce sync.Once
	closeErr  error
}

// New creates a [*Connection] backed by write and closeFn. Callbacks must
// be attached separately via [Connection.SetCallbacks] before the
// connection is handed to a consumer (spec §3: "read and error are set
// before any frame traverses the connection").
func New(cfg *vde3.Config, write WriteFunc, closeFn CloseFunc) *Connection {
	if cfg == nil {
		cfg = vde3.NewConfig()
	}
	return &Connection{
		write:         write,
		close:         closeFn,
		Logger:        cfg.Logger,
		ErrClassifier: cfg.ErrClassifier,
		SendRetry: SendRetry{
			MaxTries:   cfg.SendMaxTries,
			MaxTimeout: int64(cfg.SendMaxTimeout),
		},
	}
}

// SetCallbacks attaches the consumer's callbacks. onRead and onError must
// be non-nil; onWriteComplete may be nil if the consumer does not care
// about write completion.
func (c *Connection) SetCallbacks(onRead ReadFunc, onWriteComplete WriteCompleteFunc, onError ErrorFunc) {
	c.onRead = onRead
	c.onWriteComplete = onWriteComplete
	c.onError = onError
}

// HasConsumer reports whether a consumer has attached read/error
// callbacks.
func (c *Connection) HasConsumer() bool {
	return c.onRead != nil && c.onError != nil
}

// Write enqueues pkt with the transport. It returns nil on success,
// [vde3.ErrAgain] under backpressure, or a fatal error; it never blocks
// (spec §4.1).
func (c *Connection) Write(pkt *packet.Packet) error {
	if c.write == nil {
		return vde3.ErrClosed
	}
	return c.write(pkt)
}

// Close tears down the connection's backend resources. It is idempotent:
// subsequent calls return the result of the first call without invoking
// the backend CloseFunc again (spec §3: "close is idempotent after the
// first invocation").
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		if c.close != nil {
			c.closeErr = c.close()
		}
	})
	return c.closeErr
}

// DispatchRead forwards an inbound packet to the consumer's [ReadFunc].
// [ResultOK], [ResultAgain] and [ResultClosed] are returned as is; any
// other value is normalized to [ResultClosed] and logged, matching spec
// §4.1: "any other failure is logged and treated as closed."
func (c *Connection) DispatchRead(pkt *packet.Packet) Result {
	if c.onRead == nil {
		return ResultClosed
	}
	return c.normalize(c.onRead(pkt), "read")
}

// DispatchWriteComplete forwards a write-completion notification to the
// consumer, if it registered one. Connections whose consumer did not
// register [WriteCompleteFunc] report [ResultOK].
func (c *Connection) DispatchWriteComplete(pkt *packet.Packet) Result {
	if c.onWriteComplete == nil {
		return ResultOK
	}
	return c.normalize(c.onWriteComplete(pkt), "writeComplete")
}

// DispatchError forwards a transport error to the consumer's [ErrorFunc].
func (c *Connection) DispatchError(err vde3.ConnError) Result {
	if c.onError == nil {
		return ResultClosed
	}
	return c.normalize(c.onError(err), "error")
}

func (c *Connection) normalize(r Result, callback string) Result {
	switch r {
	case ResultOK, ResultAgain, ResultClosed:
		return r
	default:
		if c.Logger != nil {
			c.Logger.Info("connectionCallbackAnomaly",
				"callback", callback,
				"result", int(r),
			)
		}
		return ResultClosed
	}
}
