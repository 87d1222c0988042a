// Package protocol implements the binary, variant-tagged request and
// response codec exchanged over the USB CDC endpoint. Variant tags are
// assigned by declaration order starting at 0 and field lengths are
// prefixed with a protobuf-style unsigned varint.
package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxRequestSize is the largest accepted inbound frame, in bytes.
const MaxRequestSize = 2048

// Version is the single trailing byte appended to every transmitted
// response.
const Version byte = 0x00

var (
	// ErrFrameTooLarge is returned when a single inbound frame exceeds
	// MaxRequestSize.
	ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum request size")

	// ErrDecode wraps any malformed-frame condition during decoding.
	ErrDecode = errors.New("protocol: decode failed")

	// ErrBadVersion is returned when a framed response's trailing byte
	// does not match Version.
	ErrBadVersion = errors.New("protocol: unexpected version trailer")
)

// RequestKind tags the variant carried by a Request.
type RequestKind byte

const (
	ReqPing RequestKind = iota
	ReqSig
	ReqInfo
	ReqSerial
	ReqPubKey
	ReqAddress
	ReqAddressList
)

// ResponseKind tags the variant carried by a Response.
type ResponseKind byte

const (
	RespPong ResponseKind = iota
	RespSig
	RespInfo
	RespSerial
	RespPubKey
	RespAddress
	RespAddressList
	RespErr
)

// Request is a tagged union over the seven request variants. Only the
// fields relevant to Kind are populated.
type Request struct {
	Kind  RequestKind
	Bytes []byte // Sig
	Index uint32 // Address, AddressList
}

// Response is a tagged union over the eight response variants. Only the
// fields relevant to Kind are populated.
type Response struct {
	Kind        ResponseKind
	Bytes       []byte // Sig, PubKey, Address, AddressList, Serial
	HasSeed     bool   // Info
	StorageBase uint32 // Info
	UID         []byte // Info
	ErrMessage  string // Err
}

// EncodeRequest serializes req per the wire schema.
func EncodeRequest(req Request) []byte {
	out := []byte{byte(req.Kind)}
	switch req.Kind {
	case ReqPing, ReqInfo, ReqSerial, ReqPubKey:
		// no payload
	case ReqSig:
		out = appendBytesField(out, req.Bytes)
	case ReqAddress, ReqAddressList:
		out = protowire.AppendVarint(out, uint64(req.Index))
	}
	return out
}

// DecodeRequest parses raw as a Request. Returns ErrFrameTooLarge if
// raw exceeds MaxRequestSize, ErrDecode on any malformed frame.
func DecodeRequest(raw []byte) (Request, error) {
	if len(raw) > MaxRequestSize {
		return Request{}, ErrFrameTooLarge
	}
	if len(raw) == 0 {
		return Request{}, fmt.Errorf("%w: empty frame", ErrDecode)
	}
	kind := RequestKind(raw[0])
	rest := raw[1:]

	switch kind {
	case ReqPing, ReqInfo, ReqSerial, ReqPubKey:
		return Request{Kind: kind}, nil
	case ReqSig:
		b, _, err := consumeBytesField(rest)
		if err != nil {
			return Request{}, err
		}
		return Request{Kind: kind, Bytes: b}, nil
	case ReqAddress, ReqAddressList:
		idx, _, err := consumeVarintField(rest)
		if err != nil {
			return Request{}, err
		}
		return Request{Kind: kind, Index: uint32(idx)}, nil
	default:
		return Request{}, fmt.Errorf("%w: unknown request tag %d", ErrDecode, kind)
	}
}

// EncodeResponse serializes resp per the wire schema, without the
// trailing version byte.
func EncodeResponse(resp Response) []byte {
	out := []byte{byte(resp.Kind)}
	switch resp.Kind {
	case RespPong:
		// no payload
	case RespSig, RespPubKey, RespAddress, RespAddressList, RespSerial:
		out = appendBytesField(out, resp.Bytes)
	case RespInfo:
		if resp.HasSeed {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		out = protowire.AppendVarint(out, uint64(resp.StorageBase))
		out = appendBytesField(out, resp.UID)
	case RespErr:
		out = appendBytesField(out, []byte(resp.ErrMessage))
	}
	return out
}

// EncodeResponseFramed encodes resp and appends the single trailing
// version byte, producing exactly what is written to the endpoint.
func EncodeResponseFramed(resp Response) []byte {
	return append(EncodeResponse(resp), Version)
}

// DecodeResponse parses raw (without a version trailer) as a Response.
func DecodeResponse(raw []byte) (Response, error) {
	if len(raw) == 0 {
		return Response{}, fmt.Errorf("%w: empty frame", ErrDecode)
	}
	kind := ResponseKind(raw[0])
	rest := raw[1:]

	switch kind {
	case RespPong:
		return Response{Kind: kind}, nil
	case RespSig, RespPubKey, RespAddress, RespAddressList, RespSerial:
		b, _, err := consumeBytesField(rest)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, Bytes: b}, nil
	case RespInfo:
		if len(rest) < 1 {
			return Response{}, fmt.Errorf("%w: truncated info response", ErrDecode)
		}
		hasSeed := rest[0] != 0
		rest = rest[1:]
		base, n, err := consumeVarintField(rest)
		if err != nil {
			return Response{}, err
		}
		rest = rest[n:]
		uid, _, err := consumeBytesField(rest)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, HasSeed: hasSeed, StorageBase: uint32(base), UID: uid}, nil
	case RespErr:
		msg, _, err := consumeBytesField(rest)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: kind, ErrMessage: string(msg)}, nil
	default:
		return Response{}, fmt.Errorf("%w: unknown response tag %d", ErrDecode, kind)
	}
}

// DecodeResponseFramed strips and verifies the trailing version byte,
// then decodes the remaining payload.
func DecodeResponseFramed(raw []byte) (Response, error) {
	if len(raw) == 0 {
		return Response{}, fmt.Errorf("%w: empty framed response", ErrDecode)
	}
	trailer := raw[len(raw)-1]
	if trailer != Version {
		return Response{}, fmt.Errorf("%w: got 0x%02x", ErrBadVersion, trailer)
	}
	return DecodeResponse(raw[:len(raw)-1])
}

func appendBytesField(dst []byte, data []byte) []byte {
	dst = protowire.AppendVarint(dst, uint64(len(data)))
	return append(dst, data...)
}

func consumeBytesField(rest []byte) (data []byte, consumed int, err error) {
	length, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return nil, 0, fmt.Errorf("%w: malformed length varint", ErrDecode)
	}
	rest = rest[n:]
	if uint64(len(rest)) < length {
		return nil, 0, fmt.Errorf("%w: truncated byte field", ErrDecode)
	}
	out := make([]byte, length)
	copy(out, rest[:length])
	return out, n + int(length), nil
}

func consumeVarintField(rest []byte) (value uint64, consumed int, err error) {
	value, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return 0, 0, fmt.Errorf("%w: malformed varint", ErrDecode)
	}
	return value, n, nil
}
