// SPDX-License-Identifier: GPL-3.0-or-later

package vde3

// Unit is a type not containing any value (analogous to an explicit `void`
// type in C and C++).
//
// Use this type to construct a [Func] that takes no meaningful argument or
// returns no meaningful value, e.g. the input of the [Func] that [Apply]
// or [ConstFunc] returns.
type Unit struct{}
