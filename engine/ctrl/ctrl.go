// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.5 (control engine framing, JSON-RPC 1.0 dialect,
// notify_add/notify_del, signal-to-notification bridging) and on
// original_source/src/engine_mgmt.c (the distillation's closest analogue:
// a JSON-over-socket management console dispatching to component
// commands) for the "per-connection inbound buffer plus NUL scan" shape;
// reworked around this module's [sobj.Value] dynamic type and
// [signal.Signal] observer/destroy pair instead of the original's
// hand-rolled string tokenizer and raw function pointers. The outbound
// tail queue follows transport/vde2's sendqueue.go discipline: packets
// are pushed, an immediate write is attempted, and a write-complete
// callback drains whatever backpressure left behind. Every client
// connection carries a [vde3.NewSpanID] correlating its framing, dispatch
// and teardown log lines, mirroring transport/vde2's per-connection span.

// Package ctrl implements the spec's JSON-RPC control engine: it accepts
// NUL-delimited JSON-RPC 1.0 requests over a connection, dispatches them
// to other components' commands, and bridges any component's signals to
// JSON-RPC notifications for subscribed clients (spec §4.5).
package ctrl

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/module"
	"github.com/shammash/vde3-go/packet"
	"github.com/shammash/vde3-go/signal"
	"github.com/shammash/vde3-go/sobj"
)

// Family is the module family name this package registers under.
const Family = "ctrl"

// inboundBufferSize is the per-connection inbound buffer cap (spec §4.5:
// "maintains a per-connection inbound buffer of 8192 bytes").
const inboundBufferSize = 8192

// defaultChunkSize is the outbound packetization size used when a
// connection declares no maximum payload (spec §4.5 splits replies
// against connection.max_payload; 0 means unlimited, so this engine
// falls back to the same size as the inbound buffer rather than emitting
// one unbounded packet).
const defaultChunkSize = 8192

// Resolver looks components up by name. A [*component.Component]'s own
// context satisfies this; the interface exists so this package does not
// need to import the context package (mirroring [connection.Connection]'s
// own Ctx any field for the same reason).
type Resolver interface {
	GetComponent(name string) (*component.Component, error)
}

// Ctrl is a control engine's private state (spec §4.5).
type Ctrl struct {
	component *component.Component
	resolver  Resolver
	logger    vde3.SLogger

	clients map[*connection.Connection]*clientState
}

// subscription is one notify_add'd (component, signal) pair on a client
// connection.
type subscription struct {
	path     string
	sig      *signal.Signal
	observer signal.ObserverFunc
	destroy  signal.DestroyFunc
}

// clientState is the per-connection record the spec's notify_add/
// notify_del and framing logic are scoped to (spec §4.5: "the dispatcher
// substitutes the per-connection record ... as the receiver, because the
// subscription is per-client, not per-component").
type clientState struct {
	conn *connection.Connection

	// spanID correlates every log line this client connection emits across
	// its framing, dispatch and teardown with a single accept-to-close span.
	spanID string

	inbuf []byte

	outbound *list.List

	subscriptions []*subscription
}

func (cs *clientState) removeSubscription(path string) {
	for i, sub := range cs.subscriptions {
		if sub.path == path {
			cs.subscriptions = append(cs.subscriptions[:i], cs.subscriptions[i+1:]...)
			return
		}
	}
}

// New constructs a [*component.Component] of [component.KindControlEngine]
// and family [Family]. resolver is consulted for every non-built-in
// dispatch target.
func New(name string, resolver Resolver, logger vde3.SLogger) *component.Component {
	if logger == nil {
		logger = vde3.DefaultSLogger()
	}
	ctl := &Ctrl{
		resolver: resolver,
		logger:   logger,
		clients:  make(map[*connection.Connection]*clientState),
	}
	ops := &component.EngineOps{NewConnection: ctl.newConnection}
	c := component.New(name, component.KindControlEngine, Family, ops, nil, nil)
	ctl.component = c
	c.SetPriv(ctl)
	c.MarkInitialized()
	return c
}

// newConnection implements [component.EngineOps.NewConnection]: it wires
// a fresh [*clientState] and attaches this engine's read/write-complete/
// error callbacks.
func (ctl *Ctrl) newConnection(_ *component.Component, conn *connection.Connection, _ component.Request) error {
	cs := &clientState{conn: conn, spanID: vde3.NewSpanID(), outbound: list.New()}
	ctl.clients[conn] = cs
	conn.SetCallbacks(ctl.onRead(cs), ctl.onWriteComplete(cs), ctl.onError(cs))
	return nil
}

// onRead returns the [connection.ReadFunc] closure for a client
// connection: it appends the inbound payload to the connection's buffer,
// dispatches every complete NUL-delimited message, and enforces the
// buffer-overflow policy on whatever is left (spec §4.5 "Framing").
func (ctl *Ctrl) onRead(cs *clientState) connection.ReadFunc {
	return func(pkt *packet.Packet) connection.Result {
		cs.inbuf = append(cs.inbuf, pkt.Payload()...)

		for {
			idx := indexNUL(cs.inbuf)
			if idx < 0 {
				break
			}
			msg := cs.inbuf[:idx]
			cs.inbuf = cs.inbuf[idx+1:]

			if len(msg) > inboundBufferSize {
				ctl.logger.Info("ctrlMessageExceedsBuffer", "span", cs.spanID, "size", len(msg))
				return connection.ResultClosed
			}
			ctl.dispatch(cs, msg)
		}

		if len(cs.inbuf) > inboundBufferSize {
			ctl.logger.Info("ctrlFragmentExceedsBuffer", "span", cs.spanID, "size", len(cs.inbuf))
			cs.inbuf = nil
			ctl.replyError(cs, sobj.Null(), fmt.Sprintf("fragment exceeded %d-byte inbound buffer and was dropped", inboundBufferSize))
		}
		return connection.ResultOK
	}
}

func indexNUL(buf []byte) int {
	for i, b := range buf {
		if b == 0 {
			return i
		}
	}
	return -1
}

// onWriteComplete returns the [connection.WriteCompleteFunc] closure that
// drains whatever this client's outbound tail queue left behind after a
// prior backpressured write (spec §4.5 "Outbound").
func (ctl *Ctrl) onWriteComplete(cs *clientState) connection.WriteCompleteFunc {
	return func(_ *packet.Packet) connection.Result {
		ctl.flush(cs)
		return connection.ResultOK
	}
}

// onError returns the [connection.ErrorFunc] closure for a client
// connection: a transient error is logged and the connection stays open;
// a fatal error tears the client record down (spec §4.5 "Teardown").
func (ctl *Ctrl) onError(cs *clientState) connection.ErrorFunc {
	return func(err vde3.ConnError) connection.Result {
		if !err.Fatal() {
			ctl.logger.Info("ctrlConnectionDelay", "span", cs.spanID, "err", err.String())
			return connection.ResultOK
		}
		ctl.teardown(cs)
		return connection.ResultClosed
	}
}

// teardown detaches every subscription, drops the outbound queue, and
// forgets the client record (spec §4.5 "Teardown": "iterate the
// subscription list and detach from every component/signal; drop queued
// outbound packets; free the client record").
func (ctl *Ctrl) teardown(cs *clientState) {
	for _, sub := range cs.subscriptions {
		_ = sub.sig.Detach(sub.observer, sub.destroy, sub.path)
	}
	cs.subscriptions = nil
	cs.outbound.Init()
	delete(ctl.clients, cs.conn)
}

// Fini tears down every remaining client connection (mirroring
// [engine/hub.Hub.Fini]'s "tear down every remaining port" contract,
// generalized to this engine's per-client state).
func (ctl *Ctrl) Fini() {
	for _, cs := range ctl.clients {
		ctl.teardown(cs)
	}
	ctl.component.Fini()
}

// dispatch parses and validates one complete message and routes it to
// either the built-in notify_add/notify_del handling or the named
// component's command (spec §4.5 "JSON-RPC 1.0 dialect", "Dispatch").
func (ctl *Ctrl) dispatch(cs *clientState, raw []byte) {
	req, err := sobj.Parse(raw)
	if err != nil {
		ctl.logger.Info("ctrlMalformedMessage", "span", cs.spanID, "err", err.Error())
		return
	}

	methodVal, hasMethod := req.Get("method")
	if !hasMethod || !methodVal.IsString() || methodVal.String() == "" {
		ctl.logger.Info("ctrlMalformedRequest", "reason", "missing or empty method")
		return
	}
	paramsVal, hasParams := req.Get("params")
	if !hasParams || !paramsVal.IsArray() {
		ctl.logger.Info("ctrlMalformedRequest", "reason", "params must be an array")
		return
	}
	idVal, hasID := req.Get("id")
	if !hasID || idVal.Kind() != sobj.KindNumber || idVal.Int() < 0 {
		ctl.logger.Info("ctrlMalformedRequest", "reason", "id must be a non-negative integer")
		return
	}

	compName, cmdName, ok := splitMethod(methodVal.String())
	if !ok {
		ctl.replyError(cs, idVal, fmt.Sprintf("malformed method path %q", methodVal.String()))
		return
	}

	if compName == ctl.component.Name {
		ctl.dispatchBuiltin(cs, idVal, cmdName, paramsVal)
		return
	}

	comp, err := ctl.resolver.GetComponent(compName)
	if err != nil {
		ctl.replyError(cs, idVal, err.Error())
		return
	}
	cmd, err := comp.GetCommand(cmdName)
	if err != nil {
		ctl.replyError(cs, idVal, err.Error())
		return
	}

	out, err := cmd.Call(context.Background(), comp, paramsVal)
	if err != nil {
		ctl.replyError(cs, idVal, err.Error())
		return
	}
	ctl.replyResult(cs, idVal, out)
}

// splitMethod splits a JSON-RPC method path on its first '.', requiring
// both the component and callable names to be non-empty (spec §4.5
// "Method path").
func splitMethod(path string) (comp, callable string, ok bool) {
	idx := strings.IndexByte(path, '.')
	if idx <= 0 || idx == len(path)-1 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

// dispatchBuiltin handles the two built-in commands the ctrl engine
// itself exposes (spec §4.5: "Two built-in commands on the ctrl engine
// itself require special handling").
func (ctl *Ctrl) dispatchBuiltin(cs *clientState, id sobj.Value, cmdName string, params sobj.Value) {
	pathVal, ok := params.Index(0)
	if !ok || !pathVal.IsString() || pathVal.String() == "" {
		ctl.replyError(cs, id, fmt.Sprintf("%s requires a string path argument", cmdName))
		return
	}

	switch cmdName {
	case "notify_add":
		if err := ctl.attachNotify(cs, pathVal.String()); err != nil {
			ctl.replyError(cs, id, err.Error())
			return
		}
		ctl.replyResult(cs, id, sobj.Bool(true))
	case "notify_del":
		if err := ctl.detachNotify(cs, pathVal.String()); err != nil {
			ctl.replyError(cs, id, err.Error())
			return
		}
		ctl.replyResult(cs, id, sobj.Bool(true))
	default:
		ctl.replyError(cs, id, fmt.Sprintf("unknown built-in command %q", cmdName))
	}
}

// attachNotify implements notify_add: split into (component, signal),
// look up both, attach an observer that wraps any future raise as a
// notification on cs, and record the subscription (spec §4.5
// "notify_add").
func (ctl *Ctrl) attachNotify(cs *clientState, fullPath string) error {
	compName, sigName, ok := splitMethod(fullPath)
	if !ok {
		return fmt.Errorf("%w: ctrl: malformed signal path %q", vde3.ErrInvalidArgument, fullPath)
	}
	comp, err := ctl.resolver.GetComponent(compName)
	if err != nil {
		return err
	}
	sig, err := comp.GetSignal(sigName)
	if err != nil {
		return err
	}

	observer := func(args any) {
		notif := sobj.Object().
			Set("id", sobj.Null()).
			Set("method", sobj.String(fullPath)).
			Set("params", toValue(args))
		ctl.send(cs, notif)
	}
	destroy := func(_ any) {
		cs.removeSubscription(fullPath)
	}

	if err := sig.Attach(observer, destroy, fullPath); err != nil {
		return err
	}
	cs.subscriptions = append(cs.subscriptions, &subscription{
		path: fullPath, sig: sig, observer: observer, destroy: destroy,
	})
	return nil
}

// detachNotify implements notify_del: reverses a prior notify_add,
// failing if the exact path was never subscribed (spec §4.5
// "notify_del").
func (ctl *Ctrl) detachNotify(cs *clientState, fullPath string) error {
	for i, sub := range cs.subscriptions {
		if sub.path != fullPath {
			continue
		}
		err := sub.sig.Detach(sub.observer, sub.destroy, fullPath)
		cs.subscriptions = append(cs.subscriptions[:i], cs.subscriptions[i+1:]...)
		return err
	}
	return fmt.Errorf("%w: ctrl: not subscribed to %q", vde3.ErrNotFound, fullPath)
}

// toValue converts a signal's raised argument into a [sobj.Value] for a
// notification's params field. It understands the shapes this module's
// own signals raise ([]int port counts); anything else round-trips
// through sobj.Value directly or, failing that, becomes null.
func toValue(args any) sobj.Value {
	switch x := args.(type) {
	case sobj.Value:
		return x
	case []int:
		items := make([]sobj.Value, len(x))
		for i, n := range x {
			items[i] = sobj.Int(n)
		}
		return sobj.Array(items...)
	case int:
		return sobj.Int(x)
	case string:
		return sobj.String(x)
	case bool:
		return sobj.Bool(x)
	default:
		return sobj.Null()
	}
}

// replyResult builds and sends a successful JSON-RPC reply (spec §4.5
// "Reply").
func (ctl *Ctrl) replyResult(cs *clientState, id, result sobj.Value) {
	reply := sobj.Object().Set("id", id).Set("result", result).Set("error", sobj.Null())
	ctl.send(cs, reply)
}

// replyError builds and sends a failed JSON-RPC reply.
func (ctl *Ctrl) replyError(cs *clientState, id sobj.Value, msg string) {
	reply := sobj.Object().Set("id", id).Set("result", sobj.Null()).Set("error", sobj.String(msg))
	ctl.send(cs, reply)
}

// send serializes msg, appends the NUL delimiter, splits the result into
// connection.max_payload-sized packets, and pushes them onto the
// client's outbound tail queue before attempting to flush (spec §4.5
// "Outbound").
func (ctl *Ctrl) send(cs *clientState, msg sobj.Value) {
	encoded, err := sobj.Marshal(msg)
	if err != nil {
		ctl.logger.Info("ctrlEncodeFailed", "err", err.Error())
		return
	}
	encoded = append(encoded, 0)

	chunkSize := cs.conn.MaxPayload
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	for off := 0; off < len(encoded); off += chunkSize {
		end := off + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}
		chunk := encoded[off:end]

		pkt, err := packet.New(packet.TypeCtrl, 0, len(chunk), 0)
		if err != nil {
			ctl.logger.Info("ctrlPacketAllocFailed", "err", err.Error())
			return
		}
		_ = pkt.SetPayload(chunk)
		cs.outbound.PushBack(pkt)
	}
	ctl.flush(cs)
}

// flush attempts to write as much of the client's outbound tail queue as
// the connection currently accepts, stopping at the first backpressured
// write; a packet whose write fails outright is logged and dropped, and
// the drain continues with the next one (spec §4.5 "attempt immediate
// write ... rely on the write-complete callback to drain").
func (ctl *Ctrl) flush(cs *clientState) {
	for cs.outbound.Len() > 0 {
		front := cs.outbound.Front()
		pkt := front.Value.(*packet.Packet)

		err := cs.conn.Write(pkt)
		switch {
		case err == nil:
			cs.outbound.Remove(front)
		case errors.Is(err, vde3.ErrAgain):
			return
		default:
			ctl.logger.Info("ctrlOutboundWriteFailed", "err", err.Error())
			cs.outbound.Remove(front)
		}
	}
}

// Module returns this package's registry entry for a [context.Context]'s
// module registry (spec §4.6). Its New operation takes no arguments
// beyond the component's name; resolver is bound once at Module
// construction time, the same way [engine/hub.Module] needs none and
// [transport/vde2.Module] binds its reactor and config once.
func Module(resolver Resolver, logger vde3.SLogger) *module.Module {
	return &module.Module{
		Kind:   component.KindControlEngine,
		Family: Family,
		New: func(name string, _ ...any) (*component.Component, error) {
			return New(name, resolver, logger), nil
		},
		Fini: func(c *component.Component) {
			if ctl, ok := c.Priv().(*Ctrl); ok {
				ctl.Fini()
				return
			}
			c.Fini()
		},
	}
}
