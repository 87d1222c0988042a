package keyengine

import (
	"bytes"
	"testing"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/sha3"
)

const testMnemonic = "panda eyebrow bullet gorilla call smoke muffin taste mesh discover soft ostrich alcohol speed nation flash devote level hobby quick inner drive ghost inside"

func testContext(t *testing.T) *Context {
	t.Helper()
	if !bip39.IsMnemonicValid(testMnemonic) {
		t.Fatalf("test mnemonic is not a valid BIP-39 mnemonic")
	}
	seed := bip39.NewSeed(testMnemonic, "")
	var ctx Context
	copy(ctx.MasterSeed[:], seed)
	return &ctx
}

func TestAddressIsStableForSameIndex(t *testing.T) {
	ctx := testContext(t)
	ctx.SetIdx(0)
	a1, err := Address(ctx)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	a2, err := Address(ctx)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if a1 != a2 {
		t.Fatalf("Address is not deterministic for the same index: %x != %x", a1, a2)
	}
}

func TestAddressDiffersAcrossIndices(t *testing.T) {
	ctx := testContext(t)
	ctx.SetIdx(0)
	a0, err := Address(ctx)
	if err != nil {
		t.Fatalf("Address(0): %v", err)
	}
	ctx.SetIdx(1)
	a1, err := Address(ctx)
	if err != nil {
		t.Fatalf("Address(1): %v", err)
	}
	if a0 == a1 {
		t.Fatalf("expected distinct addresses at indices 0 and 1, got the same: %x", a0)
	}
}

func TestAddressWindowMatchesIndividualAddresses(t *testing.T) {
	ctx := testContext(t)
	window, err := AddressWindow(ctx, 10)
	if err != nil {
		t.Fatalf("AddressWindow: %v", err)
	}

	verify := testContext(t)
	var want [AddressSize * NumWindowAddresses]byte
	for i := uint32(0); i < NumWindowAddresses; i++ {
		verify.SetIdx(10 + i)
		addr, err := Address(verify)
		if err != nil {
			t.Fatalf("Address(%d): %v", 10+i, err)
		}
		copy(want[i*AddressSize:(i+1)*AddressSize], addr[:])
	}

	if !bytes.Equal(window[:], want[:]) {
		t.Fatalf("AddressWindow(10) did not match five independent Address calls")
	}
	if ctx.Idx != 10+NumWindowAddresses-1 {
		t.Fatalf("expected ctx.Idx left at %d, got %d", 10+NumWindowAddresses-1, ctx.Idx)
	}
}

func TestSignProducesRecoverableSignature(t *testing.T) {
	ctx := testContext(t)
	ctx.SetIdx(0)

	pub, err := PublicKey(ctx)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}

	msg := []byte{0x41, 0x42, 0x43, 0x44}
	sig, err := Sign(ctx, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("expected 65-byte signature, got %d", len(sig))
	}
	if sig[64] != 0 && sig[64] != 1 {
		t.Fatalf("expected recovery byte in {0,1}, got %d", sig[64])
	}

	recovered, err := Recover(sig, msg)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if !bytes.Equal(recovered.SerializeUncompressed(), pub.SerializeUncompressed()) {
		t.Fatalf("recovered public key does not match signer's public key")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	ctx := testContext(t)
	ctx.SetIdx(0)
	msg := []byte("deterministic nonce check")

	sig1, err := Sign(ctx, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	sig2, err := Sign(ctx, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig1 != sig2 {
		t.Fatalf("expected RFC 6979 deterministic signatures to match, got %x != %x", sig1, sig2)
	}
}

func TestAddressMatchesManualKeccak(t *testing.T) {
	ctx := testContext(t)
	ctx.SetIdx(0)

	pub, err := PublicKey(ctx)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	addr, err := Address(ctx)
	if err != nil {
		t.Fatalf("Address: %v", err)
	}

	uncompressed := pub.SerializeUncompressed()
	if uncompressed[0] != 0x04 {
		t.Fatalf("expected uncompressed point to start with 0x04, got 0x%02x", uncompressed[0])
	}
	if len(uncompressed) != 65 {
		t.Fatalf("expected 65-byte uncompressed point, got %d", len(uncompressed))
	}

	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	digest := h.Sum(nil)
	if !bytes.Equal(addr[:], digest[len(digest)-AddressSize:]) {
		t.Fatalf("Address did not match Keccak-256 of the uncompressed point")
	}
}
