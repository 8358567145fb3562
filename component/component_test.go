// SPDX-License-Identifier: GPL-3.0-or-later

package component

import (
	"context"
	"testing"

	"github.com/shammash/vde3-go"
	"github.com/shammash/vde3-go/connection"
	"github.com/shammash/vde3-go/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(name string) *Component {
	return New(name, KindEngine, "hub", &EngineOps{
		NewConnection: func(*Component, *connection.Connection, Request) error { return nil },
	}, nil, nil)
}

func TestNewRejectsMismatchedOps(t *testing.T) {
	assert.Panics(t, func() {
		New("bad", KindEngine, "hub", nil, &TransportOps{}, nil)
	})
}

func TestNewEngineComponent(t *testing.T) {
	c := newTestEngine("sw0")
	assert.Equal(t, "sw0", c.Name)
	assert.Equal(t, KindEngine, c.Kind)
	assert.Equal(t, "hub", c.Family)

	ops, ok := c.EngineOps()
	require.True(t, ok)
	require.NotNil(t, ops.NewConnection)

	_, ok = c.TransportOps()
	assert.False(t, ok)
}

func TestAddCommandDuplicateRejected(t *testing.T) {
	c := newTestEngine("sw0")
	cmd := NewCommand("status", "report status", func(context.Context, *Component, Request) (Request, error) {
		return Request{}, nil
	})

	require.NoError(t, c.AddCommand(cmd))
	assert.ErrorIs(t, c.AddCommand(cmd), vde3.ErrAlreadyExists)

	got, err := c.GetCommand("status")
	require.NoError(t, err)
	assert.Same(t, cmd, got)

	_, err = c.GetCommand("missing")
	assert.ErrorIs(t, err, vde3.ErrNotFound)
}

func TestAddSignalDuplicateRejected(t *testing.T) {
	c := newTestEngine("sw0")
	s := signal.New("port_new", nil)

	require.NoError(t, c.AddSignal(s))
	assert.ErrorIs(t, c.AddSignal(s), vde3.ErrAlreadyExists)

	got, err := c.GetSignal("port_new")
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestRaiseOnMissingSignalIsNoop(t *testing.T) {
	c := newTestEngine("sw0")
	assert.NotPanics(t, func() {
		c.Raise("does_not_exist", nil)
	})
}

func TestRaiseInvokesAttachedSignal(t *testing.T) {
	c := newTestEngine("sw0")
	s := signal.New("port_new", nil)
	require.NoError(t, c.AddSignal(s))

	var got any
	require.NoError(t, s.Attach(func(args any) { got = args }, nil, nil))

	c.Raise("port_new", "eth0")
	assert.Equal(t, "eth0", got)
}

func TestRefcountAndBusy(t *testing.T) {
	c := newTestEngine("sw0")
	assert.Equal(t, int32(1), c.Refcount())
	assert.False(t, c.Busy())

	c.IncRef()
	assert.Equal(t, int32(2), c.Refcount())
	assert.True(t, c.Busy())

	c.DecRef()
	assert.False(t, c.Busy())
}

func TestPrivAndInitialized(t *testing.T) {
	c := newTestEngine("sw0")
	assert.False(t, c.Initialized())
	c.MarkInitialized()
	assert.True(t, c.Initialized())

	c.SetPriv(42)
	assert.Equal(t, 42, c.Priv())
}

func TestFiniRunsSignalDestroyCallbacks(t *testing.T) {
	c := newTestEngine("sw0")
	s := signal.New("port_new", nil)
	require.NoError(t, c.AddSignal(s))

	var destroyed bool
	require.NoError(t, s.Attach(func(any) {}, func(any) { destroyed = true }, nil))

	c.Fini()
	assert.True(t, destroyed)
	assert.Equal(t, 0, s.Len())
}
