// SPDX-License-Identifier: GPL-3.0-or-later

package sobj

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectSetGet(t *testing.T) {
	v := Object().Set("id", Int(1)).Set("method", String("e1.status"))

	id, ok := v.Get("id")
	require.True(t, ok)
	assert.Equal(t, 1, id.Int())

	method, ok := v.Get("method")
	require.True(t, ok)
	assert.Equal(t, "e1.status", method.String())

	_, ok = v.Get("missing")
	assert.False(t, ok)
}

func TestArrayIndex(t *testing.T) {
	v := Array(Int(1), String("two"), Bool(true))
	require.Equal(t, 3, v.Len())

	item, ok := v.Index(1)
	require.True(t, ok)
	assert.Equal(t, "two", item.String())

	_, ok = v.Index(5)
	assert.False(t, ok)
}

// Serialization of a valid JSON-RPC reply followed by deserialization
// yields an equivalent object (spec §8).
func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	original := Object().
		Set("id", Int(1)).
		Set("result", Int(3)).
		Set("error", Null())

	encoded, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := Parse(encoded)
	require.NoError(t, err)

	id, _ := decoded.Get("id")
	assert.Equal(t, 1, id.Int())
	result, _ := decoded.Get("result")
	assert.Equal(t, 3, result.Int())
	errVal, _ := decoded.Get("error")
	assert.True(t, errVal.IsNull())
}

func TestParseNegativeID(t *testing.T) {
	v, err := Parse([]byte(`{"id": -1, "method": "e1.status", "params": []}`))
	require.NoError(t, err)
	id, ok := v.Get("id")
	require.True(t, ok)
	assert.Equal(t, -1, id.Int())
}
