// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec §4.3/§6's initial-request wire format and on the
// teacher's preference for explicit, inspectable decoding helpers
// (encoding/binary.Read) over unsafe-cast struct overlays (no file in
// bassosimone/nop overlays a struct onto a byte slice; DNS message parsing
// there goes through miekg/dns's own decoder, not raw pointer casts).
//
// The request-validation sequence itself is built from [vde3.Func] and
// [vde3.Compose2]/[vde3.Compose3], the same pipeline-composition primitive
// the teacher uses for its own DNS measurement pipelines: decode the
// header, validate magic/version, extract the peer path, and — on the
// accept side only — probe the peer path for read/write access (spec
// §4.3 step 3) before a connection is ever handed to
// [Transport.completeAccept].

//go:build unix

package vde2

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/shammash/vde3-go"
	"golang.org/x/sys/unix"
)

const (
	// requestMagic identifies a vde2-compatible rendezvous request (spec
	// §4.3: "validate: magic = 0xFEEDFACE").
	requestMagic uint32 = 0xFEEDFACE

	// protocolVersion is the only version this transport accepts (spec
	// §4.3: "version = 3").
	protocolVersion uint32 = 3

	// maxPathLen mirrors sizeof(sockaddr_un.sun_path) on Linux.
	maxPathLen = 108
)

// requestHeader is the fixed-size prefix of the initial control-socket
// message a client sends: magic, version, kind (reserved, always 0 in this
// reference transport), followed by a NUL-padded path.
type requestHeader struct {
	Magic   uint32
	Version uint32
	Kind    uint32
}

const requestHeaderSize = 4 + 4 + 4

// rawRequest is an undecoded initial rendezvous message, the pipeline's
// starting [vde3.Func] input type.
type rawRequest struct {
	header requestHeader
	rest   []byte
}

// decodeHeader is the pipeline's first step: split data into its fixed
// header and trailing path bytes (spec §4.3 step 2).
var decodeHeader = vde3.FuncAdapter[[]byte, rawRequest](func(_ context.Context, data []byte) (rawRequest, error) {
	if len(data) < requestHeaderSize {
		return rawRequest{}, fmt.Errorf("vde2: request too short: %d bytes", len(data))
	}
	var hdr requestHeader
	r := bytes.NewReader(data[:requestHeaderSize])
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return rawRequest{}, fmt.Errorf("vde2: decode request header: %w", err)
	}
	return rawRequest{header: hdr, rest: data[requestHeaderSize:]}, nil
})

// validateHeader is the pipeline's second step: check magic and version
// (spec §4.3 step 3: "validate: magic = 0xFEEDFACE, version = 3").
var validateHeader = vde3.FuncAdapter[rawRequest, rawRequest](func(_ context.Context, req rawRequest) (rawRequest, error) {
	if req.header.Magic != requestMagic {
		return rawRequest{}, fmt.Errorf("vde2: bad magic %#x", req.header.Magic)
	}
	if req.header.Version != protocolVersion {
		return rawRequest{}, fmt.Errorf("vde2: unsupported version %d", req.header.Version)
	}
	return req, nil
})

// extractPath is the pipeline's third step: trim the NUL-padded trailing
// path bytes down to the peer's datagram socket path.
var extractPath = vde3.FuncAdapter[rawRequest, string](func(_ context.Context, req rawRequest) (string, error) {
	rest := req.rest
	if len(rest) == 0 || len(rest) > maxPathLen {
		return "", fmt.Errorf("vde2: invalid peer path length %d", len(rest))
	}
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		rest = rest[:i]
	}
	if len(rest) == 0 {
		return "", fmt.Errorf("vde2: empty peer path")
	}
	return string(rest), nil
})

// validatePathAccess is the pipeline's last step: confirm the peer's
// datagram socket path is reachable with read and write access before this
// transport trusts it enough to connect its own datagram socket to it
// (spec §4.3 step 3: "socket path reachable with read+write access").
var validatePathAccess = vde3.FuncAdapter[string, string](func(_ context.Context, path string) (string, error) {
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return "", fmt.Errorf("vde2: peer path %s not reachable with read+write access: %w", path, err)
	}
	return path, nil
})

// requestPipeline decodes and validates a client's initial rendezvous
// message down to the peer's datagram socket path, without probing
// whether that path is actually reachable: both sides of the handshake
// (a server decoding a request, a client decoding a reply) share this much
// (spec §4.3 steps 2-3's magic/version/path checks).
var requestPipeline = vde3.Compose3(decodeHeader, validateHeader, extractPath)

// decodeRequest parses and validates a client's initial rendezvous message,
// returning the peer's datagram socket path.
func decodeRequest(data []byte) (path string, err error) {
	return requestPipeline.Call(context.Background(), data)
}

// acceptValidator extends [requestPipeline] with the accept side's extra
// obligation (spec §4.3 step 3: "socket path reachable with read+write
// access") before a server ever trusts a peer path enough to connect its
// own datagram socket to it.
var acceptValidator = vde3.Compose2(requestPipeline, validatePathAccess)

// decodeAcceptRequest is [decodeRequest]'s accept-side counterpart: it
// additionally probes the decoded peer path for read+write access (spec
// §4.3 step 3), the validation the plain handshake decode performs for
// neither a client reading a reply nor the package's own round-trip tests.
func decodeAcceptRequest(data []byte) (path string, err error) {
	return acceptValidator.Call(context.Background(), data)
}

// encodeReply builds the reply a server sends back over the control
// socket once it has allocated a per-connection datagram socket: the
// same header, followed by the NUL-padded path the client should connect
// its datagram socket to (spec §4.3 step 4: "send its address back over
// the control socket").
func encodeReply(path string) []byte {
	buf := new(bytes.Buffer)
	hdr := requestHeader{Magic: requestMagic, Version: protocolVersion, Kind: 0}
	// binary.Write on a fixed-size struct of only fixed-width fields never
	// fails.
	_ = binary.Write(buf, binary.BigEndian, hdr)
	buf.WriteString(path)
	buf.WriteByte(0)
	return buf.Bytes()
}
