// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone/nop's Config struct discipline ("safe to modify
// after construction but before first use; fields must not be mutated
// concurrently with calls") applied to a long-lived object instead of a
// per-call operation, and on original_source/src/component.c, reworked per
// spec §9's "polymorphism without inheritance" redesign flag: a tagged
// Kind plus one concrete per-kind ops struct, instead of a bag of function
// pointers checked at every call site.

// Package component implements the spec's addressable, kind-tagged unit of
// behavior (spec §3, §4). A [*Component] carries named [Command]s and
// [*signal.Signal]s, a private module-owned value, and exactly one
// per-kind operations record matching its [Kind].
package component

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/signal"
	"github.com/shammash/vde3-go/sobj"
)

// Request is an opaque descriptor of who wants what: the local/remote
// request objects exchanged during a connection manager handshake, and
// the request object engines receive in [EngineOps.NewConnection] (spec
// §3, §4.2). Since the spec keeps the real schema/serialization type out
// of scope (§1), Request is just the dynamic value type this module
// already has on hand.
type Request = sobj.Value

// Kind identifies what role a component plays in the graph (spec §2, §3).
type Kind int

const (
	KindTransport Kind = iota
	KindEngine
	KindConnectionManager
	KindControlEngine
)

// String returns a human-readable name for k.
func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindEngine:
		return "engine"
	case KindConnectionManager:
		return "connmanager"
	case KindControlEngine:
		return "controlengine"
	default:
		return "unknown"
	}
}

// EngineOps are the operations a [KindEngine] (or [KindControlEngine])
// component exposes to its connection manager.
type EngineOps struct {
	// NewConnection hands a freshly authorized connection to the engine.
	// The engine becomes the connection's sole consumer from this point
	// on (spec §2: "From that point the Connection belongs to the
	// Engine").
	NewConnection func(c *Component, conn *connection.Connection, req Request) error
}

// TransportOps are the operations a [KindTransport] component exposes.
type TransportOps struct {
	// Listen brings up the transport's rendezvous/accept path.
	Listen func(ctx context.Context) error

	// Connect initiates an outbound connection.
	Connect func(ctx context.Context, req Request) error

	// OnConnect, OnAccept and OnError are set by the owning connection
	// manager (spec §4.2) and invoked by the transport as the respective
	// events occur. A transport with no bound connection manager (not
	// yet wired) leaves frames undelivered rather than panicking.
	OnConnect func(conn *connection.Connection)
	OnAccept  func(conn *connection.Connection)
	OnError   func(conn *connection.Connection, err vde3.ConnError)
}

// ConnectionManagerOps are the operations a [KindConnectionManager]
// component exposes.
type ConnectionManagerOps struct {
	Listen  func(ctx context.Context) error
	Connect func(ctx context.Context, localReq, remoteReq Request) error
}

// Component is the spec's addressable, kind-tagged unit of behavior (spec
// §3, §4).
type Component struct {
	// Name is the component's interned name, unique within its owning
	// context.
	Name string

	// Kind is this component's role.
	Kind Kind

	// Family names the implementing module, e.g. "hub" or "ctrl".
	Family string

	// Commands holds this component's named callables.
	Commands map[string]*Command

	// Signals holds this component's named fan-out hooks.
	Signals map[string]*signal.Signal

	// Ctx is the owning context, stored untyped to avoid an import cycle
	// with the context package (same trade-off as
	// connection.Connection.Ctx).
	Ctx any

	// priv is the module's private state, opaque to this package.
	priv any

	initialized bool

	// Exactly one of these is non-nil, matching Kind. Set once at
	// construction and never mutated afterward; runtimex.Assert enforces
	// this at construction time rather than on every call, per spec §9.
	engineOps      *EngineOps
	transportOps   *TransportOps
	connManagerOps *ConnectionManagerOps

	refcount int32
}

// New constructs a [*Component] of the given kind and family. Exactly one
// of the *Ops arguments corresponding to kind must be non-nil; the others
// must be nil. This is asserted, not merely checked, because a component
// with the wrong ops wired for its kind is a construction-time programming
// error, not a runtime condition callers should need to handle (spec §9).
func New(name string, kind Kind, family string, engineOps *EngineOps,
	transportOps *TransportOps, connManagerOps *ConnectionManagerOps) *Component {

	switch kind {
	case KindEngine, KindControlEngine:
		runtimex.Assert(engineOps != nil && transportOps == nil && connManagerOps == nil)
	case KindTransport:
		runtimex.Assert(transportOps != nil && engineOps == nil && connManagerOps == nil)
	case KindConnectionManager:
		runtimex.Assert(connManagerOps != nil && engineOps == nil && transportOps == nil)
	default:
		runtimex.Assert(false)
	}

	return &Component{
		Name:           name,
		Kind:           kind,
		Family:         family,
		Commands:       make(map[string]*Command),
		Signals:        make(map[string]*signal.Signal),
		engineOps:      engineOps,
		transportOps:   transportOps,
		connManagerOps: connManagerOps,
		refcount:       1,
	}
}

// EngineOps returns the component's engine operations and true if kind is
// [KindEngine] or [KindControlEngine]; otherwise it returns the zero value
// and false.
func (c *Component) EngineOps() (*EngineOps, bool) {
	return c.engineOps, c.engineOps != nil
}

// TransportOps returns the component's transport operations and true if
// kind is [KindTransport]; otherwise it returns the zero value and false.
func (c *Component) TransportOps() (*TransportOps, bool) {
	return c.transportOps, c.transportOps != nil
}

// ConnectionManagerOps returns the component's connection-manager
// operations and true if kind is [KindConnectionManager]; otherwise it
// returns the zero value and false.
func (c *Component) ConnectionManagerOps() (*ConnectionManagerOps, bool) {
	return c.connManagerOps, c.connManagerOps != nil
}

// SetPriv stores the module's private state.
func (c *Component) SetPriv(priv any) { c.priv = priv }

// Priv returns the module's private state.
func (c *Component) Priv() any { return c.priv }

// MarkInitialized records that the module's init function has completed.
func (c *Component) MarkInitialized() { c.initialized = true }

// Initialized reports whether [MarkInitialized] has been called.
func (c *Component) Initialized() bool { return c.initialized }

// AddCommand registers a command under its name. It fails with
// [vde3.ErrAlreadyExists] if the name is already registered.
func (c *Component) AddCommand(cmd *Command) error {
	if _, exists := c.Commands[cmd.Name]; exists {
		return fmt.Errorf("%w: command %q on component %q", vde3.ErrAlreadyExists, cmd.Name, c.Name)
	}
	c.Commands[cmd.Name] = cmd
	return nil
}

// GetCommand looks up a command by name.
func (c *Component) GetCommand(name string) (*Command, error) {
	cmd, ok := c.Commands[name]
	if !ok {
		return nil, fmt.Errorf("%w: command %q on component %q", vde3.ErrNotFound, name, c.Name)
	}
	return cmd, nil
}

// AddSignal registers a signal under its name. It fails with
// [vde3.ErrAlreadyExists] if the name is already registered.
func (c *Component) AddSignal(s *signal.Signal) error {
	if _, exists := c.Signals[s.Name]; exists {
		return fmt.Errorf("%w: signal %q on component %q", vde3.ErrAlreadyExists, s.Name, c.Name)
	}
	c.Signals[s.Name] = s
	return nil
}

// GetSignal looks up a signal by name.
func (c *Component) GetSignal(name string) (*signal.Signal, error) {
	s, ok := c.Signals[name]
	if !ok {
		return nil, fmt.Errorf("%w: signal %q on component %q", vde3.ErrNotFound, name, c.Name)
	}
	return s, nil
}

// Raise invokes every callback attached to the named signal with args. It
// is a no-op (not an error) if the signal does not exist, mirroring how
// spec §4.4's hub engine raises port_new without the caller needing to
// handle a lookup failure on its own component's signal.
func (c *Component) Raise(name string, args any) {
	if s, ok := c.Signals[name]; ok {
		s.Raise(args)
	}
}

// IncRef increments the component's reference count. Used by a connection
// manager that tracks a transport and an engine as dependencies (spec §4,
// §5, §9).
func (c *Component) IncRef() {
	atomic.AddInt32(&c.refcount, 1)
}

// DecRef decrements the component's reference count.
func (c *Component) DecRef() {
	atomic.AddInt32(&c.refcount, -1)
}

// Refcount returns the current reference count.
func (c *Component) Refcount() int32 {
	return atomic.LoadInt32(&c.refcount)
}

// Busy reports whether the component is still referenced by another
// component and therefore cannot be deleted (spec §4.6, §8: "delete
// rejects with busy whenever refcount > 1").
func (c *Component) Busy() bool {
	return c.Refcount() > 1
}

// Fini tears down every signal's destroy callbacks (spec §3).
func (c *Component) Fini() {
	for _, s := range c.Signals {
		s.Fini()
	}
}
