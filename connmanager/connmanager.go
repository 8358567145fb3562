// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: original_source/src/connmanager.c and
// src/include/vde3/connmanager.h for the pending-connection handshake
// table, and on bassosimone/nop's Config pattern for the
// do_remote_auth constructor switch (a field fixed at construction that
// changes which code paths are reachable, mirrored here by the
// unimplemented AuthReqSent/... branch returning vde3.ErrNotImplemented
// rather than being a TODO left half-written).

// Package connmanager implements the spec's per-connection handshake state
// machine: it couples one transport component with one engine component,
// drives every accepted or initiated connection through authorization, and
// hands authorized connections to the engine (spec §4.2).
package connmanager

import (
	"context"
	"fmt"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/module"
)

// State is a pending connection's position in the handshake state machine
// (spec §4.2).
type State int

const (
	ConnectWait State = iota
	AuthReqSent
	AuthReqWait
	AuthReplySent
	AuthReplyWait
	NotAuthorized
	Authorized
)

// String returns a human-readable name for s.
func (s State) String() string {
	switch s {
	case ConnectWait:
		return "ConnectWait"
	case AuthReqSent:
		return "AuthReqSent"
	case AuthReqWait:
		return "AuthReqWait"
	case AuthReplySent:
		return "AuthReplySent"
	case AuthReplyWait:
		return "AuthReplyWait"
	case NotAuthorized:
		return "NotAuthorized"
	case Authorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// SuccessFunc is invoked once a pending connection reaches the engine.
type SuccessFunc func(conn *connection.Connection, req component.Request)

// ErrorFunc is invoked once a pending connection is destroyed without
// reaching the engine.
type ErrorFunc func(conn *connection.Connection, err error)

// pendingConn is the bookkeeping record a [*Manager] holds for one
// in-flight handshake (spec §3 "Pending Connection").
type pendingConn struct {
	conn          *connection.Connection
	localRequest  component.Request
	remoteRequest component.Request
	state         State
	onSuccess     SuccessFunc
	onError       ErrorFunc
}

// Manager couples one transport component with one engine component and
// drives each connection the transport produces through the handshake
// state machine (spec §4.2).
//
// Manager is not safe for concurrent use; per spec §5 it is driven
// entirely from the single-threaded reactor loop.
type Manager struct {
	// Transport and Engine are the two components this manager couples.
	Transport *component.Component
	Engine    *component.Component

	// DoRemoteAuth selects whether the AuthReqSent/AuthReqWait/
	// AuthReplySent/AuthReplyWait/NotAuthorized states are reachable.
	// When false the state machine collapses to ConnectWait → Authorized
	// (spec §4.2 "Contract"). The true path is deliberately
	// unimplemented: see [Manager.HandlePeerMessage].
	DoRemoteAuth bool

	// AcceptSuccess and AcceptError are invoked for connections arriving
	// through the transport's accept path (spec §4.2 "(accept path)"),
	// as opposed to [Manager.Connect]'s per-call callbacks for outbound
	// attempts.
	AcceptSuccess SuccessFunc
	AcceptError   ErrorFunc

	Logger vde3.SLogger

	// pending is keyed by connection identity, the idiomatic Go
	// substitute for the source's lookup-by-pointer (spec §4.2
	// "Lookups of pending records are by connection identity").
	pending map[*connection.Connection]*pendingConn

	// lastOutbound* stash the most recent Connect call's request and
	// callbacks for RegisterOutbound to pick up once the transport's
	// Connect implementation has constructed the Connection. This relies
	// on the single-threaded reactor assumption (spec §5): a transport's
	// Connect implementation is expected to construct the connection and
	// call RegisterOutbound synchronously, before Connect returns and
	// before another Connect call can overwrite these fields.
	lastOutboundReq       component.Request
	lastOutboundRemoteReq component.Request
	lastOutboundSuccess   SuccessFunc
	lastOutboundError     ErrorFunc
}

// New constructs a [*Manager] coupling transport and engine. Both
// components must already carry the ops matching their kind
// ([component.TransportOps] and [component.EngineOps] respectively).
func New(transport, engine *component.Component, doRemoteAuth bool, logger vde3.SLogger) *Manager {
	if logger == nil {
		logger = vde3.DefaultSLogger()
	}
	m := &Manager{
		Transport:    transport,
		Engine:       engine,
		DoRemoteAuth: doRemoteAuth,
		Logger:       logger,
		pending:      make(map[*connection.Connection]*pendingConn),
	}
	if ops, ok := transport.TransportOps(); ok {
		ops.OnConnect = m.onConnect
		ops.OnAccept = m.onAccept
		ops.OnError = m.onError
	}
	return m
}

// Connect initiates an outbound connection through the transport (spec
// §4.2 "(outbound connect issued)"). Once the handshake resolves, exactly
// one of onSuccess and onError is invoked, and only once.
func (m *Manager) Connect(ctx context.Context, req component.Request, onSuccess SuccessFunc, onError ErrorFunc) error {
	return m.ConnectWithRequests(ctx, req, component.Request{}, onSuccess, onError)
}

// ConnectWithRequests is [Manager.Connect]'s general form, matching
// [component.ConnectionManagerOps.Connect]'s two-request shape: localReq
// carries the arguments the transport's own Connect operation consumes
// (e.g. the peer's rendezvous directory), while remoteReq is reserved for
// the request exchanged with the remote authorization handshake once
// DoRemoteAuth is implemented (spec §4.2 "(outbound connect issued)").
func (m *Manager) ConnectWithRequests(ctx context.Context, localReq, remoteReq component.Request, onSuccess SuccessFunc, onError ErrorFunc) error {
	ops, ok := m.Transport.TransportOps()
	if !ok || ops.Connect == nil {
		return fmt.Errorf("%w: transport %q has no connect operation", vde3.ErrNotImplemented, m.Transport.Name)
	}
	m.lastOutboundReq = localReq
	m.lastOutboundRemoteReq = remoteReq
	m.lastOutboundSuccess = onSuccess
	m.lastOutboundError = onError
	return ops.Connect(ctx, localReq)
}

// RegisterOutbound is called by a transport's Connect implementation once
// it has constructed the [*connection.Connection] for an outbound attempt,
// carrying it into ConnectWait (spec §4.2 table, first row).
func (m *Manager) RegisterOutbound(conn *connection.Connection) {
	pc := &pendingConn{
		conn:          conn,
		localRequest:  m.lastOutboundReq,
		remoteRequest: m.lastOutboundRemoteReq,
		state:         ConnectWait,
		onSuccess:     m.lastOutboundSuccess,
		onError:       m.lastOutboundError,
	}
	m.pending[conn] = pc
}

func (m *Manager) onConnect(conn *connection.Connection) {
	pc, ok := m.pending[conn]
	if !ok {
		// A transport invoked OnConnect without a prior RegisterOutbound,
		// as a transport whose Connect completes synchronously does;
		// register it now with the request and callbacks stashed by the
		// Connect call in progress.
		m.RegisterOutbound(conn)
		pc = m.pending[conn]
	}
	if !m.DoRemoteAuth {
		pc.state = Authorized
		m.handAuthorized(pc)
		return
	}
	pc.state = AuthReqSent
}

func (m *Manager) onAccept(conn *connection.Connection) {
	pc := &pendingConn{conn: conn, onSuccess: m.AcceptSuccess, onError: m.AcceptError}
	m.pending[conn] = pc
	if !m.DoRemoteAuth {
		pc.state = Authorized
		m.handAuthorized(pc)
		return
	}
	pc.state = AuthReqWait
}

// onError fails a pending handshake when the transport reports an error on
// a connection this manager is still authorizing (spec §4.2 "Failure
// policy"). A connection with no pending record has already been handed to
// the engine, whose own [connection.Connection] error dispatch (spec §4.4)
// already decided whether the error is fatal; this manager has no further
// say over it and must not re-close it out from under the engine on a
// transient, non-fatal error such as [vde3.ConnErrorWriteDelay].
func (m *Manager) onError(conn *connection.Connection, cerr vde3.ConnError) {
	pc, ok := m.pending[conn]
	if !ok {
		return
	}
	delete(m.pending, conn)
	if pc.onError != nil {
		pc.onError(conn, fmt.Errorf("vde3: connection manager: transport error %s during handshake", cerr))
	}
	conn.Close()
}

// HandlePeerMessage advances a pending connection upon receipt of an
// authorization protocol message from the peer (spec §4.2's
// AuthReqSent→AuthReplyWait and AuthReplyWait→{Authorized,NotAuthorized}
// transitions).
//
// The remote authorization protocol and its cryptography are explicitly
// out of scope (spec §1 non-goals); this method exists to document the
// shape the state machine would take and to fail loudly rather than
// silently miswire a connection that DoRemoteAuth=true would otherwise
// leave half-authorized.
func (m *Manager) HandlePeerMessage(conn *connection.Connection, msg component.Request) error {
	if !m.DoRemoteAuth {
		return fmt.Errorf("%w: remote auth is disabled on this manager", vde3.ErrInvalidArgument)
	}
	return fmt.Errorf("%w: remote authorization handshake", vde3.ErrNotImplemented)
}

// handAuthorized performs the spec §4.2 "Authorized" row: remove from the
// pending list, call engine.new_connection, invoke the success callback.
// Engine refusal destroys the connection and surfaces an error upward
// (spec §4.2 "Failure policy").
func (m *Manager) handAuthorized(pc *pendingConn) {
	delete(m.pending, pc.conn)

	ops, ok := m.Engine.EngineOps()
	if !ok || ops.NewConnection == nil {
		m.failConnection(pc, fmt.Errorf("%w: engine %q has no new_connection operation", vde3.ErrNotImplemented, m.Engine.Name))
		return
	}

	if err := ops.NewConnection(m.Engine, pc.conn, pc.localRequest); err != nil {
		m.failConnection(pc, err)
		return
	}

	if pc.onSuccess != nil {
		pc.onSuccess(pc.conn, pc.localRequest)
	}
}

func (m *Manager) failConnection(pc *pendingConn, err error) {
	pc.conn.Close()
	if pc.onError != nil {
		pc.onError(pc.conn, err)
	}
}

// Pending returns the number of handshakes currently in flight, for tests
// and introspection.
func (m *Manager) Pending() int {
	return len(m.pending)
}

// StateOf reports the current state of conn's pending record, and whether
// conn has one at all (an authorized or destroyed connection has none).
func (m *Manager) StateOf(conn *connection.Connection) (State, bool) {
	pc, ok := m.pending[conn]
	if !ok {
		return 0, false
	}
	return pc.state, true
}

// Family is this module's registry family name (spec §4.6).
const Family = "connmanager"

// NewComponent wraps [New] as a [component.KindConnectionManager]
// component, the shape a [*module.Module]'s New operation and a
// [context.Context]'s registry expect (spec §4.6, §9). It increments
// transport's and engine's reference counts, since the resulting manager
// depends on both staying alive for as long as it does (spec §8 scenario
// 5: deleting a transport must fail with busy while a connection manager
// still references it).
func NewComponent(name string, transport, engine *component.Component, doRemoteAuth bool, logger vde3.SLogger) *component.Component {
	m := New(transport, engine, doRemoteAuth, logger)

	ops := &component.ConnectionManagerOps{
		Listen: m.listen,
		Connect: func(ctx context.Context, localReq, remoteReq component.Request) error {
			return m.ConnectWithRequests(ctx, localReq, remoteReq, nil, nil)
		},
	}
	c := component.New(name, component.KindConnectionManager, Family, nil, nil, ops)
	c.SetPriv(m)

	transport.IncRef()
	engine.IncRef()
	c.MarkInitialized()
	return c
}

// listen implements [component.ConnectionManagerOps.Listen] by delegating
// to the coupled transport's own Listen operation (spec §4.2 couples one
// transport's accept path to this manager's handshake state machine).
func (m *Manager) listen(ctx context.Context) error {
	ops, ok := m.Transport.TransportOps()
	if !ok || ops.Listen == nil {
		return fmt.Errorf("%w: transport %q has no listen operation", vde3.ErrNotImplemented, m.Transport.Name)
	}
	return ops.Listen(ctx)
}

// finiComponent releases the reference [NewComponent] took on the coupled
// transport and engine, and tears down the manager's own component state.
func finiComponent(c *component.Component) {
	m, ok := c.Priv().(*Manager)
	if !ok {
		return
	}
	m.Transport.DecRef()
	m.Engine.DecRef()
	c.Fini()
}

// Module returns this package's registry entry for a [context.Context]'s
// module registry (spec §4.6). Its New operation expects args[0] to be
// the coupled transport and args[1] to be the coupled engine, both
// already-constructed [*component.Component] values, plus args[2] as an
// optional doRemoteAuth bool (default false); this mirrors the layering
// spec §4.2 assumes, that a connection manager is always built atop an
// already-registered transport and engine rather than constructing them
// itself.
func Module(logger vde3.SLogger) *module.Module {
	return &module.Module{
		Kind:   component.KindConnectionManager,
		Family: Family,
		New: func(name string, args ...any) (*component.Component, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("%w: connmanager: New requires (transport, engine) arguments", vde3.ErrInvalidArgument)
			}
			transport, ok := args[0].(*component.Component)
			if !ok {
				return nil, fmt.Errorf("%w: connmanager: args[0] must be a transport *component.Component", vde3.ErrInvalidArgument)
			}
			engine, ok := args[1].(*component.Component)
			if !ok {
				return nil, fmt.Errorf("%w: connmanager: args[1] must be an engine *component.Component", vde3.ErrInvalidArgument)
			}
			doRemoteAuth := false
			if len(args) > 2 {
				doRemoteAuth, ok = args[2].(bool)
				if !ok {
					return nil, fmt.Errorf("%w: connmanager: args[2] must be a bool", vde3.ErrInvalidArgument)
				}
			}
			return NewComponent(name, transport, engine, doRemoteAuth, logger), nil
		},
		Fini: finiComponent,
	}
}
