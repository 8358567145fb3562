// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.4 (forwarding engine, hub family) and on
// original_source/src/engines/hub.c for the port-list fan-out shape;
// reworked per this module's [component.EngineOps]/[signal.Signal]
// redesign (spec §9) instead of the original's raw callback-pointer
// struct.

// Package hub implements the spec's reference forwarding engine: every
// connection attached to a hub is a "port"; a frame read on one port is
// written to every other port unmodified (spec §4.4).
package hub

import (
	gocontext "context"
	"fmt"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/module"
	"github.com/shammash/vde3-go/packet"
	"github.com/shammash/vde3-go/signal"
	"github.com/shammash/vde3-go/sobj"
)

// sendMaxTries and sendMaxTimeout are the send-retry properties a hub
// imposes on every port it attaches (spec §4.4: "configures send
// properties (max_tries=10, max_timeout=5s)").
const (
	sendMaxTries   = 10
	sendMaxTimeout = 5_000_000_000 // 5s, in nanoseconds
)

// Family is the module family name this package registers under.
const Family = "hub"

// Hub is a hub engine's private state: its attached port list (spec §4.4).
type Hub struct {
	component *component.Component
	ports     []*connection.Connection
}

// New constructs a [*component.Component] of [component.KindEngine] and
// family [Family], wired to a fresh [*Hub]'s operations.
func New(name string) *component.Component {
	h := &Hub{}
	ops := &component.EngineOps{NewConnection: h.newConnection}
	c := component.New(name, component.KindEngine, Family, ops, nil, nil)
	h.component = c
	c.SetPriv(h)

	// port_new carries the resulting port count as its sole argument
	// (spec §4.4: "raises signal port_new with a one-element array
	// containing the resulting port count").
	_ = c.AddSignal(signal.New("port_new", []string{"port_count"}))
	_ = c.AddSignal(signal.New("port_del", []string{"port_count"}))

	_ = c.AddCommand(component.NewCommand("status", "report the current port count", h.cmdStatus))
	_ = c.AddCommand(component.NewCommand("printport", "describe a port by index", h.cmdPrintPort))

	c.MarkInitialized()
	return c
}

// cmdStatus implements the "status" control command: it reports the
// hub's current port count (spec §8 scenario 3).
func (h *Hub) cmdStatus(_ gocontext.Context, _ *component.Component, _ component.Request) (component.Request, error) {
	return sobj.Int(len(h.ports)), nil
}

// cmdPrintPort implements the "printport" control command: given a port
// index in params[0], it returns a human-readable description containing
// that index (spec §8 scenario 3: "a string containing the literal token
// 3"). An out-of-range index is reported as an error rather than a
// description, since there is no port to describe.
func (h *Hub) cmdPrintPort(_ gocontext.Context, _ *component.Component, args component.Request) (component.Request, error) {
	idxVal, ok := args.Index(0)
	if !ok {
		return sobj.Null(), fmt.Errorf("%w: hub: printport requires a port index argument", vde3.ErrInvalidArgument)
	}
	idx := idxVal.Int()
	if idx < 0 || idx >= len(h.ports) {
		return sobj.Null(), fmt.Errorf("%w: hub: no port at index %d", vde3.ErrNotFound, idx)
	}
	return sobj.String(fmt.Sprintf("port %d: connected", idx)), nil
}

// PortCount returns the number of connections currently attached to h.
func (h *Hub) PortCount() int {
	return len(h.ports)
}

// Ports returns the hub's currently attached ports, in reverse attachment
// order (most recently attached first, since newConnection prepends; see spec
// §4.4: "prepends the connection to the port list").
func (h *Hub) Ports() []*connection.Connection {
	return h.ports
}

// newConnection implements [component.EngineOps.NewConnection] (spec
// §4.4): it rejects links whose consumer-side maximum payload is
// non-zero and smaller than a full Ethernet frame, then attaches the
// connection as a new port.
func (h *Hub) newConnection(c *component.Component, conn *connection.Connection, req component.Request) error {
	if conn.MaxPayload != 0 && conn.MaxPayload < packet.EthernetMaxFrameSize {
		return fmt.Errorf("%w: hub: connection max_payload %d below Ethernet frame size %d",
			vde3.ErrInvalidArgument, conn.MaxPayload, packet.EthernetMaxFrameSize)
	}

	conn.HeadPad = 0
	conn.TailPad = 0
	conn.SendRetry = connection.SendRetry{MaxTries: sendMaxTries, MaxTimeout: sendMaxTimeout}
	conn.SetCallbacks(h.onRead(conn), nil, h.onError(conn))

	h.ports = append([]*connection.Connection{conn}, h.ports...)
	c.Raise("port_new", []int{len(h.ports)})
	return nil
}

// onRead returns the [connection.ReadFunc] closure for a given port: it
// forwards pkt to every other currently attached port, ignoring each
// individual write's outcome (spec §4.4: "the connection's return value
// is ignored (drops are acceptable; the transport already logs)").
func (h *Hub) onRead(source *connection.Connection) connection.ReadFunc {
	return func(pkt *packet.Packet) connection.Result {
		for _, port := range h.ports {
			if port == source {
				continue
			}
			_ = port.Write(pkt)
		}
		return connection.ResultOK
	}
}

// onError returns the [connection.ErrorFunc] closure for a given port
// (spec §4.4 "Error behavior"): a transient [vde3.ConnErrorWriteDelay]
// (reported against this port directly, rather than through the fan-out
// write above, e.g. by a control path driving the connection) is logged
// and the port stays attached; any fatal error detaches the port, raises
// port_del, and asks the transport to tear the connection down.
func (h *Hub) onError(source *connection.Connection) connection.ErrorFunc {
	return func(err vde3.ConnError) connection.Result {
		if !err.Fatal() {
			if source.Logger != nil {
				source.Logger.Info("hubPortWriteDelay", "err", err.String())
			}
			return connection.ResultOK
		}

		h.detach(source)
		h.component.Raise("port_del", []int{len(h.ports)})
		return connection.ResultClosed
	}
}

// detach removes conn from the port list, if present.
func (h *Hub) detach(conn *connection.Connection) {
	for i, port := range h.ports {
		if port == conn {
			h.ports = append(h.ports[:i], h.ports[i+1:]...)
			return
		}
	}
}

// Fini tears down every remaining port and drops the port list (spec
// §4.4: "On finalization, tear down every remaining port and drop the
// ports list").
func (h *Hub) Fini() {
	for _, port := range h.ports {
		_ = port.Close()
	}
	h.ports = nil
	h.component.Fini()
}

// Module returns this package's registry entry for a [context.Context]'s
// module registry (spec §4.6). New takes no arguments beyond the
// component's name.
func Module() *module.Module {
	return &module.Module{
		Kind:   component.KindEngine,
		Family: Family,
		New: func(name string, _ ...any) (*component.Component, error) {
			return New(name), nil
		},
		Fini: func(c *component.Component) {
			if h, ok := c.Priv().(*Hub); ok {
				h.Fini()
				return
			}
			c.Fini()
		},
	}
}
