// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

import "github.com/shammash/vde3-go/errclass"

// ErrClassifier classifies errors into categorical strings for structured
// logging, e.g. turning a raw syscall error into "EAGAIN" or "ECONNRESET".
//
// This is distinct from [ConnError]: ErrClassifier produces a free-form
// label for log filtering, while ConnError is the small, closed taxonomy
// the connection and transport contracts dispatch on (spec §7).
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to the [ErrClassifier] interface.
//
// This allows using simple functions as classifiers:
//
//	cfg.ErrClassifier = ErrClassifierFunc(errclass.New)
type ErrClassifierFunc func(error) string

var _ ErrClassifier = ErrClassifierFunc(nil)

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string {
	return f(err)
}

// DefaultErrClassifier classifies errors using [errclass.New], mapping raw
// OS errnos and well-known sentinel errors to short labels.
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)
