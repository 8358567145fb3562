// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.6 and on original_source/src/context.c for the
// lifecycle ordering (new/init/fini strictly ordered, asserted via an
// initialized flag) and the (kind, family)-keyed module registry;
// reworked per this module's runtimex.Assert-on-misuse convention (spec
// §9) instead of the original's return-coded precondition checks, and per
// its insertion-ordered map (Go maps don't preserve order, so an explicit
// slice mirrors the original's linked list of registered components).

// Package context implements the spec's top-level runtime: the component
// registry, the module registry components are built from, and the local
// connection factory that peers two engines without a transport between
// them (spec §4.6).
package context

import (
	"fmt"

	"github.com/bassosimone/runtimex"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/component"
	"github.com/shammash/vde3-go/internal/reactor"
	"github.com/shammash/vde3-go/localconn"
	"github.com/shammash/vde3-go/module"
)

// reservedNames are component names [Context.NewComponent] refuses, since
// the runtime itself would occupy them in a fuller implementation (spec
// §4.6: "forbids the reserved names context and commands").
var reservedNames = map[string]bool{"context": true, "commands": true}

// moduleKey is a module registry entry's lookup key.
type moduleKey struct {
	kind   component.Kind
	family string
}

// Context is the spec's top-level runtime: it owns every component's
// lifecycle, the module registry components are constructed from, and the
// local connection factory (spec §4.6).
//
// Like every other piece of this runtime, a Context is not safe for
// concurrent use; it is driven entirely from the single-threaded reactor
// loop (spec §5).
type Context struct {
	// Reactor is the event-loop adapter components are constructed
	// against, recorded here for callers assembling module New
	// arguments; the Context itself never calls into it directly.
	Reactor reactor.Reactor

	// Config carries the shared defaults passed to component
	// constructors that accept one.
	Config *vde3.Config

	// Loader discovers modules from the filesystem. Left nil by
	// [New]: module loading from shared libraries is out of scope
	// (spec §1), so [Context.LoadModules] is a no-op until a caller
	// sets this to a real [module.Loader].
	Loader module.Loader

	initialized bool

	components     map[string]*component.Component
	insertionOrder []string

	modules map[moduleKey]*module.Module
}

// New constructs a [*Context]. [Context.Init] must be called before
// [Context.NewComponent] or [Context.RegisterModule] are usable.
func New(cfg *vde3.Config) *Context {
	if cfg == nil {
		cfg = vde3.NewConfig()
	}
	return &Context{
		Config:     cfg,
		components: make(map[string]*component.Component),
		modules:    make(map[moduleKey]*module.Module),
	}
}

// Init brings the context up: it records r as the reactor components are
// built against and loads modules from modulePaths, if any (spec §4.6
// "new, init(event-handler, module-paths), fini, delete — strictly
// ordered"). It must not be called again until [Context.Fini] has run.
func (ctx *Context) Init(r reactor.Reactor, modulePaths []string) error {
	runtimex.Assert(!ctx.initialized)
	ctx.Reactor = r
	ctx.initialized = true
	if len(modulePaths) == 0 {
		return nil
	}
	return ctx.LoadModules(modulePaths)
}

// Initialized reports whether [Context.Init] has been called.
func (ctx *Context) Initialized() bool {
	return ctx.initialized
}

// Fini tears down every registered component, most-recently-registered
// first, then marks the context uninitialized. Calling any other method
// after Fini (besides a fresh [Context.Init]) is a programming error.
func (ctx *Context) Fini() {
	runtimex.Assert(ctx.initialized)
	for i := len(ctx.insertionOrder) - 1; i >= 0; i-- {
		name := ctx.insertionOrder[i]
		c, ok := ctx.components[name]
		if !ok {
			continue
		}
		ctx.finiComponent(c)
	}
	ctx.components = make(map[string]*component.Component)
	ctx.insertionOrder = nil
	ctx.initialized = false
}

func (ctx *Context) finiComponent(c *component.Component) {
	if mod, ok := ctx.modules[moduleKey{c.Kind, c.Family}]; ok && mod.Fini != nil {
		mod.Fini(c)
		return
	}
	c.Fini()
}

// RegisterModule adds m to the module registry. It is rejected if m is
// missing required operations, or if a module of the same (kind, family)
// is already registered (spec §4.6 "register_module").
func (ctx *Context) RegisterModule(m *module.Module) error {
	if !m.Valid() {
		return fmt.Errorf("%w: module lacks required init/fini operations", vde3.ErrInvalidArgument)
	}
	key := moduleKey{m.Kind, m.Family}
	if _, exists := ctx.modules[key]; exists {
		return fmt.Errorf("%w: module (%v, %q)", vde3.ErrAlreadyExists, m.Kind, m.Family)
	}
	ctx.modules[key] = m
	return nil
}

// LoadModules scans every directory in paths for loadable modules via
// [Context.Loader] and registers each one found. A directory that fails
// to scan, or an individual module that fails to register, is logged and
// skipped rather than aborting the whole scan (spec §4.6 "failures are
// logged and skipped").
//
// With no [Context.Loader] set this is a no-op: module loading from
// shared libraries is explicitly out of scope (spec §1), and a caller
// that never set a loader has nothing to discover.
func (ctx *Context) LoadModules(paths []string) error {
	if ctx.Loader == nil {
		return nil
	}
	logger := vde3.DefaultSLogger()
	if ctx.Config != nil && ctx.Config.Logger != nil {
		logger = ctx.Config.Logger
	}
	for _, path := range paths {
		mods, err := ctx.Loader.ScanDirectory(path)
		if err != nil {
			logger.Info("moduleScanFailed", "path", path, "err", err.Error())
			continue
		}
		for _, m := range mods {
			if err := ctx.RegisterModule(m); err != nil {
				logger.Info("moduleRegisterFailed", "path", path, "family", m.Family, "err", err.Error())
			}
		}
	}
	return nil
}

// NewComponent constructs a component of the given kind and family,
// looked up in the module registry, under the interned name, with args
// passed through to the module's New operation (spec §4.6
// "new_component"). The reserved names "context" and "commands" are
// rejected, as is a name already in use.
func (ctx *Context) NewComponent(kind component.Kind, family, name string, args ...any) (*component.Component, error) {
	runtimex.Assert(ctx.initialized)

	if reservedNames[name] {
		return nil, fmt.Errorf("%w: component name %q is reserved", vde3.ErrInvalidArgument, name)
	}
	if _, exists := ctx.components[name]; exists {
		return nil, fmt.Errorf("%w: component %q", vde3.ErrAlreadyExists, name)
	}

	mod, ok := ctx.modules[moduleKey{kind, family}]
	if !ok {
		return nil, fmt.Errorf("%w: module (%v, %q)", vde3.ErrNotFound, kind, family)
	}

	c, err := mod.New(name, args...)
	if err != nil {
		return nil, err
	}
	c.Ctx = ctx
	ctx.components[name] = c
	ctx.insertionOrder = append(ctx.insertionOrder, name)
	return c, nil
}

// GetComponent looks up a registered component by its interned name (spec
// §4.6 "get_component").
func (ctx *Context) GetComponent(name string) (*component.Component, error) {
	c, ok := ctx.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: component %q", vde3.ErrNotFound, name)
	}
	return c, nil
}

// DeleteComponent removes and finalizes the named component. It fails
// with [vde3.ErrBusy] if the component's reference count shows another
// component still depends on it (spec §4.6 "delete_component", §8
// invariant "busy refcount").
func (ctx *Context) DeleteComponent(name string) error {
	c, ok := ctx.components[name]
	if !ok {
		return fmt.Errorf("%w: component %q", vde3.ErrNotFound, name)
	}
	if c.Busy() {
		return fmt.Errorf("%w: component %q is still referenced", vde3.ErrBusy, name)
	}

	ctx.finiComponent(c)
	delete(ctx.components, name)
	for i, n := range ctx.insertionOrder {
		if n == name {
			ctx.insertionOrder = append(ctx.insertionOrder[:i], ctx.insertionOrder[i+1:]...)
			break
		}
	}
	return nil
}

// ConnectEngines peers two engine components through a synchronous,
// zero-copy local connection, with no transport or connection manager
// between them (spec §4.6 "Local connection factory").
func (ctx *Context) ConnectEngines(e1 *component.Component, req1 component.Request, e2 *component.Component, req2 component.Request) error {
	return localconn.ConnectEngines(ctx, e1, req1, e2, req2)
}
