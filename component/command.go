// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone/nop's func.go (Func[A,B] generic call contract)
// and original_source/src/command.c / src/include/vde3/command.h for the
// named-callable-on-a-component shape.

package component

import "context"

// CommandFunc is a command's implementation, parameterized the same way
// [github.com/shammash/vde3-go.Func] parameterizes a unary call: an input
// argument in, a reply or error out (spec §3).
type CommandFunc func(ctx context.Context, c *Component, args Request) (Request, error)

// Command is a named callable exposed by a [Component] (spec §3, §4.5: the
// control engine dispatches JSON-RPC requests to a component's commands by
// name).
type Command struct {
	// Name identifies this command within its owning component.
	Name string

	// Help is a short, human-readable description, surfaced by
	// introspection commands such as the control engine's built-in
	// listing of available methods.
	Help string

	Call CommandFunc
}

// NewCommand constructs a [*Command].
func NewCommand(name, help string, call CommandFunc) *Command {
	return &Command{Name: name, Help: help, Call: call}
}
