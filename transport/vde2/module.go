// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.6/§9's module registry and on
// engine/hub's Module adapter for the same (kind, family)-keyed New/Fini
// shape, specialized to a transport that needs a reactor and a shared
// [*vde3.Config] at construction time rather than purely per-call
// arguments.

//go:build unix

package vde2

import (
	"fmt"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/internal/reactor"
	"github.com/shammash/vde3-go/module"
)

// Family is this module's registry family name (spec §4.6).
const Family = "vde2"

// Module returns this package's registry entry for a [context.Context]'s
// module registry. Its New operation expects args[0] to be the rendezvous
// directory string this transport listens or connects under.
func Module(r reactor.Reactor, cfg *vde3.Config) *module.Module {
	return &module.Module{
		Kind:   component.KindTransport,
		Family: Family,
		New: func(name string, args ...any) (*component.Component, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("%w: vde2: New requires a rendezvous directory argument", vde3.ErrInvalidArgument)
			}
			dir, ok := args[0].(string)
			if !ok || dir == "" {
				return nil, fmt.Errorf("%w: vde2: args[0] must be a non-empty directory string", vde3.ErrInvalidArgument)
			}
			t, ops := New(dir, r, cfg)
			c := component.New(name, component.KindTransport, Family, nil, ops, nil)
			c.SetPriv(t)
			c.MarkInitialized()
			return c, nil
		},
		Fini: func(c *component.Component) {
			if t, ok := c.Priv().(*Transport); ok {
				_ = t.Close()
			}
			c.Fini()
		},
	}
}
