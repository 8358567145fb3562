// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.6 "Local connection factory" and on
// original_source/src/context.c's connect_engines for the "peer a pair of
// connections with no transport in between" shape; reworked as two
// [connection.Connection] values whose write/close backends forward
// directly into each other's dispatch methods, instead of the original's
// shared in-memory packet handoff.

// Package localconn implements the spec's zero-copy local connection
// factory: a synchronous pair of peered [connection.Connection] values
// that let two engines exchange frames without any transport between them
// (spec §4.6).
package localconn

import (
	"fmt"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/packet"
)

// ConnectEngines peers e1 and e2 through a pair of connections with no
// transport in between: a write on one side synchronously reaches the
// other's read callback, and closing either side synchronously surfaces
// [vde3.ConnErrorReadClosed] on the other (spec §4.6).
//
// req1 and req2 are passed to e1's and e2's respective
// [component.EngineOps.NewConnection] unchanged, exactly as a connection
// manager would pass a transport's own connection request through.
func ConnectEngines(ctx any, e1 *component.Component, req1 component.Request, e2 *component.Component, req2 component.Request) error {
	ops1, ok := e1.EngineOps()
	if !ok || ops1.NewConnection == nil {
		return fmt.Errorf("%w: localconn: component %q has no new_connection operation", vde3.ErrInvalidArgument, e1.Name)
	}
	ops2, ok := e2.EngineOps()
	if !ok || ops2.NewConnection == nil {
		return fmt.Errorf("%w: localconn: component %q has no new_connection operation", vde3.ErrInvalidArgument, e2.Name)
	}

	var conn1, conn2 *connection.Connection
	conn1 = connection.New(nil, func(pkt *packet.Packet) error {
		if conn2.DispatchRead(pkt) == connection.ResultClosed {
			conn2.Close()
		}
		return nil
	}, func() error {
		conn2.DispatchError(vde3.ConnErrorReadClosed)
		return nil
	})
	conn2 = connection.New(nil, func(pkt *packet.Packet) error {
		if conn1.DispatchRead(pkt) == connection.ResultClosed {
			conn1.Close()
		}
		return nil
	}, func() error {
		conn1.DispatchError(vde3.ConnErrorReadClosed)
		return nil
	})
	conn1.Ctx = ctx
	conn2.Ctx = ctx

	if err := ops1.NewConnection(e1, conn1, req1); err != nil {
		return fmt.Errorf("localconn: %q refused connection: %w", e1.Name, err)
	}
	if err := ops2.NewConnection(e2, conn2, req2); err != nil {
		conn1.Close()
		return fmt.Errorf("localconn: %q refused connection: %w", e2.Name, err)
	}
	return nil
}
