// SPDX-License-Identifier: GPL-3.0-or-later

// Package vde3 provides the ambient configuration, logging and error
// taxonomies shared by every component of the VDE3 runtime: a typed
// component graph, a back-pressured connection abstraction, a
// connection-manager handshake state machine, a vde2-compatible datagram
// transport, a JSON-RPC control engine, and a reference hub forwarding
// engine.
//
// # Core Abstractions
//
// [Config] carries shared defaults (logger, error classifier, clock, send
// and directory policy) into constructors across the
// [github.com/shammash/vde3-go/component], [github.com/shammash/vde3-go/connection],
// [github.com/shammash/vde3-go/connmanager] and
// [github.com/shammash/vde3-go/transport/vde2] packages.
//
// [SLogger] abstracts [log/slog]'s [*slog.Logger] so packages can log
// structured events without depending on a concrete handler; the default
// is a no-op logger, matching the convention of not writing to stdout or
// stderr unless a caller opts in.
//
// [ErrClassifier] turns a raw error into a short label for structured
// logging. [ConnError] is the separate, closed taxonomy
// (ReadClosed/ReadDelay/WriteClosed/WriteDelay) the connection and
// transport contracts dispatch on.
//
// [Func] and [Compose2] through [Compose8] provide a small, generic
// pipeline-composition primitive used internally (e.g. the datagram
// transport's request-validation sequence: decode the header, validate
// magic/version, extract the peer path and, on the accept side, probe it
// for read+write access).
//
// # Package Layout
//
// The component graph is organized leaf-first:
//
//	packet              -> owned byte-region frames
//	connection          -> the universal transport<->consumer conduit
//	signal, command     -> per-component fan-out hooks and named callables
//	component           -> kind-tagged component + per-kind operations
//	transport/vde2       -> vde2-compatible datagram transport
//	engine/hub           -> reference forwarding engine
//	engine/ctrl          -> JSON-RPC control engine
//	connmanager          -> transport<->engine handshake coupling
//	context              -> component/module registry and lifecycle
//	localconn            -> synchronous local connection factory
//	internal/reactor     -> event-loop adapter + epoll reference implementation
//	sobj                 -> minimal JSON-style dynamic value type
//	cmd/vded             -> example CLI front-end (out of core scope)
package vde3
