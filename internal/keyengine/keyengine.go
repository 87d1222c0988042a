// Package keyengine derives BIP-32/44 child keys along the fixed
// Ethereum account path and produces secp256k1 public keys, Keccak-256
// addresses, and deterministic recoverable ECDSA signatures.
package keyengine

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/sha3"

	"github.com/noviinc/novisigner/internal/secutil"
)

// NumWindowAddresses is the number of addresses returned by AddressWindow.
const NumWindowAddresses = 5

// AddressSize is the length, in bytes, of an Ethereum-style address.
const AddressSize = 20

// ErrDerivationFailed wraps any BIP-32 step or scalar-validity error.
var ErrDerivationFailed = errors.New("keyengine: derivation failed")

// ErrCryptoFailed wraps any ECDSA signing failure.
var ErrCryptoFailed = errors.New("keyengine: crypto operation failed")

// path segments for m/44'/60'/0'/0 (the first three hardened, the last
// not); the account index appended
// by SecretKey is always the non-hardened ctx.Idx.
var pathSegments = [4]uint32{
	bip32.FirstHardenedChild + 44,
	bip32.FirstHardenedChild + 60,
	bip32.FirstHardenedChild + 0,
	0,
}

// SecretKey derives the BIP-32 extended private key along m/44'/60'/0'/0
// from ctx.MasterSeed, then applies the non-hardened child step for
// ctx.Idx. The returned scalar is exactly 32 bytes.
func SecretKey(ctx *Context) (*secp256k1.PrivateKey, error) {
	key, err := bip32.NewMasterKey(ctx.MasterSeed[:])
	if err != nil {
		return nil, fmt.Errorf("%w: master key: %v", ErrDerivationFailed, err)
	}
	for _, seg := range pathSegments {
		key, err = key.NewChildKey(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: path step %d: %v", ErrDerivationFailed, seg, err)
		}
	}
	account, err := key.NewChildKey(ctx.Idx)
	if err != nil {
		return nil, fmt.Errorf("%w: account index %d: %v", ErrDerivationFailed, ctx.Idx, err)
	}

	scalar := extractScalar(account.Key)
	defer secutil.Scrub(scalar)

	priv := secp256k1.PrivKeyFromBytes(scalar)
	return priv, nil
}

// extractScalar normalizes a go-bip32 Key.Key field (which carries a
// leading 0x00 for private keys to match the 33-byte width of compressed
// public keys) down to the bare 32-byte scalar.
func extractScalar(raw []byte) []byte {
	if len(raw) == 33 {
		out := make([]byte, 32)
		copy(out, raw[1:])
		return out
	}
	out := make([]byte, 32)
	copy(out, raw)
	return out
}

// PublicKey scalar-multiplies the base point by SecretKey(ctx).
func PublicKey(ctx *Context) (*secp256k1.PublicKey, error) {
	priv, err := SecretKey(ctx)
	if err != nil {
		return nil, err
	}
	defer priv.Zero()
	return priv.PubKey(), nil
}

// Address takes the uncompressed SEC1 encoding of PublicKey(ctx), strips
// the leading 0x04 tag, hashes the remaining 64 bytes with Keccak-256,
// and returns the last 20 bytes — the Ethereum address convention.
func Address(ctx *Context) ([AddressSize]byte, error) {
	var out [AddressSize]byte
	pub, err := PublicKey(ctx)
	if err != nil {
		return out, err
	}
	uncompressed := pub.SerializeUncompressed() // 0x04 || X(32) || Y(32)

	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	digest := h.Sum(nil)

	copy(out[:], digest[len(digest)-AddressSize:])
	return out, nil
}

// AddressWindow sets ctx.Idx = start, computes Address for start..start+5
// in ascending order, concatenates them, and leaves ctx.Idx = start+4.
func AddressWindow(ctx *Context, start uint32) ([AddressSize * NumWindowAddresses]byte, error) {
	var out [AddressSize * NumWindowAddresses]byte
	ctx.SetIdx(start)
	for i := uint32(0); i < NumWindowAddresses; i++ {
		ctx.SetIdx(start + i)
		addr, err := Address(ctx)
		if err != nil {
			return out, err
		}
		copy(out[i*AddressSize:(i+1)*AddressSize], addr[:])
	}
	ctx.SetIdx(start + NumWindowAddresses - 1)
	return out, nil
}

// Sign produces a 65-byte recoverable ECDSA signature r || s || v over
// msg, using SecretKey(ctx). The nonce is deterministic per RFC 6979.
// msg is hashed with SHA-256 before the ECDSA step, matching the
// original firmware's curve-library signer default (see DESIGN.md).
func Sign(ctx *Context, msg []byte) ([65]byte, error) {
	var out [65]byte
	priv, err := SecretKey(ctx)
	if err != nil {
		return out, err
	}
	defer priv.Zero()

	digest := sha256.Sum256(msg)
	compact := ecdsa.SignCompact(priv, digest[:], false)
	if len(compact) != 65 {
		return out, fmt.Errorf("%w: unexpected signature length %d", ErrCryptoFailed, len(compact))
	}

	// SignCompact's layout is recoveryByte || r || s, recoveryByte =
	// 27 + recoveryID (uncompressed key, no +4 bias). Rearrange to the
	// wire form r || s || v with v in {0, 1}.
	recID := compact[0] - 27
	copy(out[0:32], compact[1:33])
	copy(out[32:64], compact[33:65])
	out[64] = recID
	return out, nil
}

// Recover recovers the public key from a 65-byte r||s||v signature and
// the originally signed message, which it hashes with SHA-256 as Sign
// does. Used by tests to verify Sign's output round-trips.
func Recover(sig [65]byte, msg []byte) (*secp256k1.PublicKey, error) {
	var compact [65]byte
	compact[0] = sig[64] + 27
	copy(compact[1:33], sig[0:32])
	copy(compact[33:65], sig[32:64])

	digest := sha256.Sum256(msg)
	pub, _, err := ecdsa.RecoverCompact(compact[:], digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: recover: %v", ErrCryptoFailed, err)
	}
	return pub, nil
}
