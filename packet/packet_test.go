// SPDX-License-Identifier: GPL-3.0-or-later

package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsOversizedDimensions(t *testing.T) {
	_, err := New(TypeData, 4, 64, 4)
	require.NoError(t, err)

	_, err = NewWithCapacity(TypeData, 4, 64, 4, 10)
	require.Error(t, err)
}

func TestSetPayloadAndHeader(t *testing.T) {
	p, err := New(TypeData, 2, 8, 2)
	require.NoError(t, err)

	frame := []byte("abcdefgh")
	require.NoError(t, p.SetPayload(frame))

	assert.Equal(t, frame, p.Payload())
	assert.Equal(t, uint16(len(frame)), p.Header().PayloadLen)
	assert.Equal(t, 2, p.HeadPadLen())
	assert.Equal(t, 2, p.TailPadLen())
}

func TestSetPayloadRejectsOverflow(t *testing.T) {
	p, err := New(TypeData, 0, 4, 0)
	require.NoError(t, err)
	require.Error(t, p.SetPayload([]byte("too long for this packet")))
}

// A packet subjected to faithful copy yields a structurally equal packet,
// including head/tail padding preserved (spec §8).
func TestFaithfulCopyPreservesPadding(t *testing.T) {
	p, err := New(TypeData, 4, 16, 4)
	require.NoError(t, err)
	copy(p.HeadPad(), []byte{1, 2, 3, 4})
	copy(p.TailPad(), []byte{5, 6, 7, 8})
	require.NoError(t, p.SetPayload([]byte("0123456789012345")[:16]))

	cp := p.FaithfulCopy()
	assert.True(t, p.Equal(cp))
	assert.Equal(t, p.HeadPad(), cp.HeadPad())
	assert.Equal(t, p.TailPad(), cp.TailPad())
}

// Two consecutive faithful copies commute: copying a copy yields the same
// structural result as copying once.
func TestFaithfulCopyCommutes(t *testing.T) {
	p, err := New(TypeData, 4, 16, 4)
	require.NoError(t, err)
	require.NoError(t, p.SetPayload(make([]byte, 16)))

	once := p.FaithfulCopy()
	twice := once.FaithfulCopy()
	assert.True(t, once.Equal(twice))
}

func TestCompactCopyDropsPadding(t *testing.T) {
	p, err := New(TypeData, 4, 8, 4)
	require.NoError(t, err)
	require.NoError(t, p.SetPayload([]byte("12345678")))

	cp := p.CompactCopy()
	assert.Equal(t, 0, cp.HeadPadLen())
	assert.Equal(t, 0, cp.TailPadLen())
	assert.Equal(t, p.Payload(), cp.Payload())
}

func TestHeaderMarshalUnmarshalRoundTrip(t *testing.T) {
	h := Header{Version: 3, Type: TypeCtrl, PayloadLen: 42}
	buf, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, buf, HeaderSize)

	var got Header
	require.NoError(t, got.UnmarshalBinary(buf))
	assert.Equal(t, h, got)
}

func TestEthernetFrameFitsStandardCapacity(t *testing.T) {
	p, err := NewWithCapacity(TypeData, StandardHeadroom, EthernetMinHeaderSize, 0, StandardCapacity)
	require.NoError(t, err)
	assert.Equal(t, StandardHeadroom, p.HeadPadLen())
}
