// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone/nop's buffer-owning wrapper types (observedConn,
// DNSOverUDPConn) for the "owned region, never retained past the callback"
// discipline, and on original_source/src/connection.c and
// src/include/vde3/packet.h for the header layout and offset invariants.

// Package packet implements the spec's owned, offset-addressed frame type:
// a fixed 4-byte header, optional head/tail padding reserved for in-place
// encapsulation (e.g. VLAN tags), and a payload.
//
// A [*Packet] is an arena: one []byte allocation plus computed integer
// offsets, never a pointer-into-self. This makes it trivially movable and
// avoids unsafe tricks (spec §9, "Packet memory").
//
// Packets are per-call: a callback's argument must not be retained past the
// callback's return. Callers that need to keep data call [Packet.FaithfulCopy]
// or [Packet.CompactCopy] first.
package packet

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed wire size of [Header] (spec §3, §6).
const HeaderSize = 4

// Packet types multiplexed over the same connection abstraction (spec §6:
// "vde packet header (engine-to-engine)"; the type field lets a single
// connection carry either data-plane frames or control-engine JSON-RPC
// payloads).
const (
	TypeData uint8 = 0
	TypeCtrl uint8 = 1
)

// CurrentVersion is the packet header version this package writes on
// construction (spec §6 uses version 3 for the datagram transport
// handshake; the engine-to-engine packet header reuses the same value for
// consistency across the wire formats this module implements).
const CurrentVersion = 3

// EthernetMaxFrameSize is the largest Ethernet II frame this package sizes
// "standard capacity" packets for: 1500 bytes of payload, 14 bytes of
// header, plus 4 bytes of slack for an 802.1Q tag.
const EthernetMaxFrameSize = 1518

// EthernetMinHeaderSize is the minimum length of an Ethernet II header
// (destination + source + ethertype). Frames shorter than this are
// protocol violations and must be dropped (spec §4.3).
const EthernetMinHeaderSize = 14

// StandardHeadroom is the head-pad reserved by default in a
// "standard capacity" packet, matching spec §4.3's "plus 4 bytes of
// reserved head-pad".
const StandardHeadroom = 4

// StandardCapacity is the data size of a stack-allocatable packet sized
// for a full Ethernet frame plus the vde header and standard headroom
// (spec §4.3's fast read path).
const StandardCapacity = StandardHeadroom + EthernetMaxFrameSize

// Header is the fixed-layout packet header (spec §3, §6): version, type,
// and payload length, stored on the wire in network byte order.
type Header struct {
	Version    uint8
	Type       uint8
	PayloadLen uint16
}

// MarshalBinary encodes h into a 4-byte, network-byte-order buffer.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Version
	buf[1] = h.Type
	binary.BigEndian.PutUint16(buf[2:4], h.PayloadLen)
	return buf, nil
}

// UnmarshalBinary decodes h from a 4-byte, network-byte-order buffer.
func (h *Header) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("packet: header buffer too short: %d bytes", len(buf))
	}
	h.Version = buf[0]
	h.Type = buf[1]
	h.PayloadLen = binary.BigEndian.Uint16(buf[2:4])
	return nil
}

// Packet is an owned byte region carrying a [Header], optional head/tail
// padding, and a payload. Offsets into data are computed once at
// construction and remain stable for the packet's lifetime (spec §3).
type Packet struct {
	data       []byte
	headPad    int
	payloadLen int
	tailPad    int
}

// New allocates a [*Packet] with exactly headPad+payloadLen+tailPad bytes
// of capacity beyond the header, version set to [CurrentVersion] and typ
// set as given. It returns an error if any dimension is negative.
func New(typ uint8, headPad, payloadLen, tailPad int) (*Packet, error) {
	return NewWithCapacity(typ, headPad, payloadLen, tailPad, headPad+payloadLen+tailPad)
}

// NewWithCapacity is like [New] but allocates dataSize bytes beyond the
// header instead of the exact fit, matching the transport's cached-buffer
// reuse: a preallocated [StandardCapacity] buffer is reused across packets
// of different head/tail-pad shape without reallocating (spec §4.3).
func NewWithCapacity(typ uint8, headPad, payloadLen, tailPad, dataSize int) (*Packet, error) {
	if headPad < 0 || payloadLen < 0 || tailPad < 0 || dataSize < 0 {
		return nil, fmt.Errorf("packet: negative dimension")
	}
	if headPad+payloadLen+tailPad > dataSize {
		return nil, fmt.Errorf("packet: head_pad(%d)+payload_len(%d)+tail_pad(%d) exceeds data_size(%d)",
			headPad, payloadLen, tailPad, dataSize)
	}
	p := &Packet{
		data:       make([]byte, HeaderSize+dataSize),
		headPad:    headPad,
		payloadLen: payloadLen,
		tailPad:    tailPad,
	}
	p.putHeader(Header{Version: CurrentVersion, Type: typ, PayloadLen: uint16(payloadLen)})
	return p, nil
}

// DataSize returns the usable capacity beyond the header: head-pad plus
// payload plus tail-pad slack.
func (p *Packet) DataSize() int {
	return len(p.data) - HeaderSize
}

// HeadPadLen returns the number of head-pad bytes reserved before the
// payload.
func (p *Packet) HeadPadLen() int {
	return p.headPad
}

// TailPadLen returns the number of tail-pad bytes reserved after the
// payload.
func (p *Packet) TailPadLen() int {
	return p.tailPad
}

// Header decodes and returns the packet's header.
func (p *Packet) Header() Header {
	var h Header
	// HeaderSize bytes are always present by construction; the error
	// return only exists for the general UnmarshalBinary contract.
	_ = h.UnmarshalBinary(p.data[:HeaderSize])
	return h
}

func (p *Packet) putHeader(h Header) {
	buf, _ := h.MarshalBinary()
	copy(p.data[:HeaderSize], buf)
}

// HeaderBytes returns the raw 4-byte header region.
func (p *Packet) HeaderBytes() []byte {
	return p.data[:HeaderSize]
}

// HeadPad returns the head-pad region, reserved for in-place
// encapsulation (e.g. prepending a VLAN tag without copying the payload).
func (p *Packet) HeadPad() []byte {
	return p.data[HeaderSize : HeaderSize+p.headPad]
}

// Payload returns the payload region.
func (p *Packet) Payload() []byte {
	start := HeaderSize + p.headPad
	return p.data[start : start+p.payloadLen]
}

// TailPad returns the tail-pad region.
func (p *Packet) TailPad() []byte {
	start := HeaderSize + p.headPad + p.payloadLen
	return p.data[start : start+p.tailPad]
}

// SetPayload copies src into the payload region and updates the header's
// PayloadLen. It returns an error if src does not fit in the packet's
// reserved payload capacity.
func (p *Packet) SetPayload(src []byte) error {
	start := HeaderSize + p.headPad
	capacity := len(p.data) - start - p.tailPad
	if len(src) > capacity {
		return fmt.Errorf("packet: payload of %d bytes exceeds capacity %d", len(src), capacity)
	}
	p.payloadLen = len(src)
	copy(p.data[start:start+p.payloadLen], src)
	h := p.Header()
	h.PayloadLen = uint16(p.payloadLen)
	p.putHeader(h)
	return nil
}

// FaithfulCopy returns a new [*Packet] structurally equal to p, preserving
// head-pad and tail-pad contents and sizes (spec §3, §8: "yields a
// structurally equal packet including head/tail padding preserved").
func (p *Packet) FaithfulCopy() *Packet {
	cp := &Packet{
		data:       make([]byte, len(p.data)),
		headPad:    p.headPad,
		payloadLen: p.payloadLen,
		tailPad:    p.tailPad,
	}
	copy(cp.data, p.data)
	return cp
}

// CompactCopy returns a new [*Packet] containing only the header and
// payload, discarding any head/tail padding (spec §3).
func (p *Packet) CompactCopy() *Packet {
	cp, _ := New(p.Header().Type, 0, p.payloadLen, 0)
	_ = cp.SetPayload(p.Payload())
	return cp
}

// Equal reports whether p and other are structurally equal: same header,
// head-pad, payload and tail-pad contents.
func (p *Packet) Equal(other *Packet) bool {
	if other == nil {
		return false
	}
	if p.headPad != other.headPad || p.payloadLen != other.payloadLen || p.tailPad != other.tailPad {
		return false
	}
	return string(p.data) == string(other.data)
}
