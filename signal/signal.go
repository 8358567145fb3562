// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone/nop's Func/FuncAdapter pattern for treating
// callbacks as first-class values, and original_source/src/include/vde3.h
// for the (name, argument-schema, callback-list) signal shape. The
// snapshot-before-iterate design follows spec §9's "Signal list during
// raise" design note.

// Package signal implements the spec's named multicast fan-out hook
// (spec §3): each component exposes zero or more signals, observers attach
// to receive every future raise, and a signal cloned from a shared module
// template starts with an empty callback list so that two components of
// the same family never share subscribers (spec §3, §5).
package signal

import (
	"reflect"

	"github.com/shammash/vde3-go"
)

// ObserverFunc is invoked once per [Signal.Raise] with the raised argument.
type ObserverFunc func(args any)

// DestroyFunc is invoked exactly once, when the owning component's signals
// are finalized, for every callback still attached at that time (spec §3).
type DestroyFunc func(opaque any)

// entry is one attached (observer, destroy, opaque) triple.
type entry struct {
	observer ObserverFunc
	destroy  DestroyFunc
	opaque   any
}

// equal reports whether e and other are the same (observer, destroy,
// opaque) triple for the purposes of the "already-exists" duplicate check
// (spec §3, §8). Function values in Go are not comparable with ==, so
// observer and destroy are compared by their underlying code pointer; this
// is the documented trade-off of representing callbacks as closures rather
// than as interface values with an Equal method.
func (e entry) equal(other entry) bool {
	if reflect.ValueOf(e.observer).Pointer() != reflect.ValueOf(other.observer).Pointer() {
		return false
	}
	if reflect.ValueOf(e.destroy).Pointer() != reflect.ValueOf(other.destroy).Pointer() {
		return false
	}
	return e.opaque == other.opaque
}

// Signal is a named fan-out hook: (name, argument-schema, callback-list)
// per spec §3.
type Signal struct {
	// Name is the signal's interned name, unique within its owning
	// component.
	Name string

	// Schema documents the shape callers should pass to Raise. It is
	// descriptive only; nothing in this package validates against it,
	// since the real schema/serialization type is out of scope (spec §1).
	Schema any

	callbacks []entry
}

// New creates an empty [*Signal] with the given name and schema.
func New(name string, schema any) *Signal {
	return &Signal{Name: name, Schema: schema}
}

// Attach registers observer to be invoked on every future [Raise], and
// destroy to be invoked once when [Fini] runs. It fails with
// [vde3.ErrAlreadyExists] if the exact (observer, destroy, opaque) triple
// is already attached (spec §3, §8 invariant).
func (s *Signal) Attach(observer ObserverFunc, destroy DestroyFunc, opaque any) error {
	e := entry{observer: observer, destroy: destroy, opaque: opaque}
	for _, existing := range s.callbacks {
		if existing.equal(e) {
			return vde3.ErrAlreadyExists
		}
	}
	s.callbacks = append(s.callbacks, e)
	return nil
}

// Detach reverses an [Attach] with the identical parameters. It returns
// [vde3.ErrNotFound] if no matching triple is attached.
func (s *Signal) Detach(observer ObserverFunc, destroy DestroyFunc, opaque any) error {
	target := entry{observer: observer, destroy: destroy, opaque: opaque}
	for i, existing := range s.callbacks {
		if existing.equal(target) {
			s.callbacks = append(s.callbacks[:i], s.callbacks[i+1:]...)
			return nil
		}
	}
	return vde3.ErrNotFound
}

// Raise invokes every attached observer, in attachment order, with args.
//
// The callback list is snapshotted before iteration so that an observer
// detaching itself (or another observer) during the raise does not
// invalidate the walk (spec §9, §5: "observer side-effects on the signal
// list take effect for subsequent raises").
func (s *Signal) Raise(args any) {
	snapshot := make([]entry, len(s.callbacks))
	copy(snapshot, s.callbacks)
	for _, e := range snapshot {
		e.observer(args)
	}
}

// Len returns the number of currently attached callbacks.
func (s *Signal) Len() int {
	return len(s.callbacks)
}

// Fini invokes every attached destroy callback exactly once, then clears
// the callback list (spec §3: "every signal's destroy callbacks must run
// exactly once before the callback list is freed").
func (s *Signal) Fini() {
	snapshot := make([]entry, len(s.callbacks))
	copy(snapshot, s.callbacks)
	s.callbacks = nil
	for _, e := range snapshot {
		if e.destroy != nil {
			e.destroy(e.opaque)
		}
	}
}

// Clone returns a new [*Signal] with the same name and schema but an empty
// callback list, for duplicating a shared module-table signal template
// onto each new component instance (spec §3: "Signals are duplicated per-
// component when registered from a shared module table").
func (s *Signal) Clone() *Signal {
	return New(s.Name, s.Schema)
}
