package protocol

import (
	"bytes"
	"testing"
)

func TestRequestRoundTrips(t *testing.T) {
	cases := []Request{
		{Kind: ReqPing},
		{Kind: ReqInfo},
		{Kind: ReqSerial},
		{Kind: ReqPubKey},
		{Kind: ReqSig, Bytes: []byte{0x41, 0x42, 0x43, 0x44}},
		{Kind: ReqAddress, Index: 0},
		{Kind: ReqAddressList, Index: 10},
	}
	for _, want := range cases {
		encoded := EncodeRequest(want)
		got, err := DecodeRequest(encoded)
		if err != nil {
			t.Fatalf("DecodeRequest(%v): %v", want.Kind, err)
		}
		if got.Kind != want.Kind || got.Index != want.Index || !bytes.Equal(got.Bytes, want.Bytes) {
			t.Fatalf("round trip mismatch for kind %v: got %+v, want %+v", want.Kind, got, want)
		}
	}
}

func TestResponseRoundTrips(t *testing.T) {
	cases := []Response{
		{Kind: RespPong},
		{Kind: RespSig, Bytes: bytes.Repeat([]byte{0xAB}, 65)},
		{Kind: RespPubKey, Bytes: bytes.Repeat([]byte{0xCD}, 65)},
		{Kind: RespSerial, Bytes: bytes.Repeat([]byte{0x42}, 10)},
		{Kind: RespAddress, Bytes: bytes.Repeat([]byte{0x11}, 20)},
		{Kind: RespAddressList, Bytes: bytes.Repeat([]byte{0x22}, 100)},
		{Kind: RespInfo, HasSeed: true, StorageBase: 0x0803FC00, UID: bytes.Repeat([]byte{0x99}, 12)},
		{Kind: RespErr, ErrMessage: "SecureStoreAuth: tag mismatch"},
	}
	for _, want := range cases {
		encoded := EncodeResponse(want)
		got, err := DecodeResponse(encoded)
		if err != nil {
			t.Fatalf("DecodeResponse(%v): %v", want.Kind, err)
		}
		if got.Kind != want.Kind ||
			!bytes.Equal(got.Bytes, want.Bytes) ||
			got.HasSeed != want.HasSeed ||
			got.StorageBase != want.StorageBase ||
			!bytes.Equal(got.UID, want.UID) ||
			got.ErrMessage != want.ErrMessage {
			t.Fatalf("round trip mismatch for kind %v: got %+v, want %+v", want.Kind, got, want)
		}
	}
}

func TestFramedResponseAppendsAndStripsVersion(t *testing.T) {
	resp := Response{Kind: RespPong}
	framed := EncodeResponseFramed(resp)
	if framed[len(framed)-1] != Version {
		t.Fatalf("expected trailing version byte 0x%02x, got 0x%02x", Version, framed[len(framed)-1])
	}

	got, err := DecodeResponseFramed(framed)
	if err != nil {
		t.Fatalf("DecodeResponseFramed: %v", err)
	}
	if got.Kind != RespPong {
		t.Fatalf("expected RespPong, got %v", got.Kind)
	}
}

func TestDecodeResponseFramedRejectsBadVersion(t *testing.T) {
	framed := EncodeResponseFramed(Response{Kind: RespPong})
	framed[len(framed)-1] = 0x01
	if _, err := DecodeResponseFramed(framed); err == nil {
		t.Fatalf("expected an error for a bad version trailer")
	}
}

func TestDecodeRequestRejectsOversizedFrame(t *testing.T) {
	oversized := make([]byte, MaxRequestSize+1)
	if _, err := DecodeRequest(oversized); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecodeRequestRejectsUnknownTag(t *testing.T) {
	if _, err := DecodeRequest([]byte{0xFF}); err == nil {
		t.Fatalf("expected an error for an unknown request tag")
	}
}
