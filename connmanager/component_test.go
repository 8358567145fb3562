// SPDX-License-Identifier: GPL-3.0-or-later

package connmanager

import (
	"context"
	"testing"

	"github.com/shammash/vde3-go/component"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewComponentIncrementsTransportAndEngineRefcount(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	assert.Equal(t, int32(1), transport.Refcount())
	assert.Equal(t, int32(1), engine.Refcount())

	cm := NewComponent("cm0", transport, engine, false, nil)

	assert.Equal(t, int32(2), transport.Refcount())
	assert.Equal(t, int32(2), engine.Refcount())
	assert.True(t, transport.Busy(), "a transport referenced by a connection manager must be busy")

	ops, ok := cm.ConnectionManagerOps()
	require.True(t, ok)
	require.NotNil(t, ops.Connect)
	require.NotNil(t, ops.Listen)
}

func TestFiniComponentReleasesTransportAndEngineRefcount(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	cm := NewComponent("cm0", transport, engine, false, nil)

	finiComponent(cm)

	assert.Equal(t, int32(1), transport.Refcount())
	assert.Equal(t, int32(1), engine.Refcount())
	assert.False(t, transport.Busy())
}

func TestModuleNewRejectsWrongArgumentTypes(t *testing.T) {
	mod := Module(nil)
	assert.True(t, mod.Valid())
	assert.Equal(t, component.KindConnectionManager, mod.Kind)
	assert.Equal(t, Family, mod.Family)

	_, err := mod.New("cm0")
	assert.Error(t, err)

	_, err = mod.New("cm0", "not-a-component", "also-not")
	assert.Error(t, err)
}

func TestModuleNewConstructsWorkingConnectionManager(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	mod := Module(nil)

	c, err := mod.New("cm0", transport, engine)
	require.NoError(t, err)
	require.True(t, c.Initialized())

	ops, ok := c.ConnectionManagerOps()
	require.True(t, ok)
	require.NoError(t, ops.Connect(context.Background(), component.Request{}, component.Request{}))
}

func TestModuleNewHonorsDoRemoteAuthArgument(t *testing.T) {
	transport := newFakeTransport()
	engine := newFakeEngine(true)
	mod := Module(nil)

	c, err := mod.New("cm0", transport, engine, true)
	require.NoError(t, err)

	m, ok := c.Priv().(*Manager)
	require.True(t, ok)
	assert.True(t, m.DoRemoteAuth)
}
