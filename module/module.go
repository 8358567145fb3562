// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.6/§9's module registry design and on
// original_source/src/module.c for the (kind, family) keyed registry
// shape, reworked per this package's component.New factory convention
// instead of the original's "allocate then init in place" two-step.

// Package module implements the spec's dynamically loadable component
// descriptor: a (kind, family)-keyed factory that a [context.Context]
// consults from [context.Context.NewComponent] (spec §4.6).
package module

import "github.com/shammash/vde3-go/component"

// NewFunc constructs a fresh [*component.Component] of the module's own
// kind and family, given the component's interned name and the variadic
// tail of arguments a caller passed to
// [github.com/shammash/vde3-go/context.Context.NewComponent].
type NewFunc func(name string, args ...any) (*component.Component, error)

// FiniFunc releases any module-private resources associated with c beyond
// what [component.Component.Fini] already tears down (closing listening
// sockets, for instance). It is required: [Module.Valid] rejects a module
// whose Fini is nil.
type FiniFunc func(c *component.Component)

// Module is the spec's module registry entry (spec §4.6): "register_module
// rejected if ... the module's component operations lack init/fini".
type Module struct {
	// Kind and Family together form this module's registry key.
	Kind   component.Kind
	Family string

	// New is this module's required init operation.
	New NewFunc

	// Fini is this module's required fini operation.
	Fini FiniFunc
}

// Valid reports whether m carries the operations [context.Context.RegisterModule]
// requires: a non-empty family name and both New and Fini set (spec §4.6:
// "rejected if ... the module's component operations lack init/fini").
func (m *Module) Valid() bool {
	return m != nil && m.Family != "" && m.New != nil && m.Fini != nil
}

// Loader discovers modules from the filesystem. The spec keeps module
// loading from shared libraries out of scope (§1: "module loading from
// shared libraries (only the module registry interface is specified)");
// this interface exists so a [context.Context] can depend on module
// discovery without depending on any particular loading mechanism.
type Loader interface {
	// ScanDirectory scans a single, non-recursive directory for loadable
	// modules, returning those it could open and resolve.
	ScanDirectory(path string) ([]*Module, error)
}
