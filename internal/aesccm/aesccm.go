// Package aesccm implements AES-CCM (NIST SP 800-38C / RFC 3610) for
// arbitrary AES key sizes (AES-128 or AES-256) with a configurable nonce
// and tag size. The standard library's crypto/cipher package does not
// provide a CCM mode, so this is built directly on crypto/aes's block
// cipher, following the CBC-MAC-then-CTR construction.
package aesccm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

const blockSize = 16

var (
	ErrInvalidKeySize   = errors.New("aesccm: key must be 16 or 32 bytes")
	ErrInvalidNonceSize = errors.New("aesccm: nonce size out of range")
	ErrInvalidTagSize   = errors.New("aesccm: tag size must be even and in [4, 16]")
	ErrPlaintextTooLong = errors.New("aesccm: plaintext too long for this length field size")
	ErrCiphertextShort  = errors.New("aesccm: ciphertext shorter than tag size")
	ErrAuthFailed       = errors.New("aesccm: authentication failed")
)

// CCM is an AES-CCM cipher instance bound to one key, nonce size, and tag
// size.
type CCM struct {
	block   cipher.Block
	tagSize int
	lenSize int // L: length field size, 15 - nonceSize
}

// New builds a CCM instance. key must be 16 (AES-128) or 32 (AES-256)
// bytes. nonceSize must satisfy 7 <= nonceSize <= 13 (giving 2 <= L <= 8).
// tagSize must be even and in [4, 16].
func New(key []byte, nonceSize, tagSize int) (*CCM, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, ErrInvalidKeySize
	}
	lenSize := 15 - nonceSize
	if lenSize < 2 || lenSize > 8 {
		return nil, ErrInvalidNonceSize
	}
	if tagSize < 4 || tagSize > 16 || tagSize%2 != 0 {
		return nil, ErrInvalidTagSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &CCM{block: block, tagSize: tagSize, lenSize: lenSize}, nil
}

// NonceSize returns the nonce length this instance was built with.
func (c *CCM) NonceSize() int { return 15 - c.lenSize }

// TagSize returns the authentication tag length this instance was built
// with.
func (c *CCM) TagSize() int { return c.tagSize }

// Seal encrypts and authenticates plaintext under aad, returning
// ciphertext || tag.
func (c *CCM) Seal(nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != c.NonceSize() {
		return nil, ErrInvalidNonceSize
	}
	maxLen := (uint64(1) << uint(8*c.lenSize)) - 1
	if uint64(len(plaintext)) > maxLen {
		return nil, ErrPlaintextTooLong
	}

	tag := c.computeTag(nonce, plaintext, aad)
	out := make([]byte, len(plaintext)+c.tagSize)

	s0 := c.blockAt(nonce, 0)
	for i := 0; i < c.tagSize; i++ {
		out[len(plaintext)+i] = tag[i] ^ s0[i]
	}
	c.ctr(nonce, out[:len(plaintext)], plaintext)
	return out, nil
}

// Open decrypts and verifies ciphertext (plaintext || tag) under aad.
func (c *CCM) Open(nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != c.NonceSize() {
		return nil, ErrInvalidNonceSize
	}
	if len(ciphertext) < c.tagSize {
		return nil, ErrCiphertextShort
	}

	encData := ciphertext[:len(ciphertext)-c.tagSize]
	encTag := ciphertext[len(ciphertext)-c.tagSize:]

	s0 := c.blockAt(nonce, 0)
	gotTag := make([]byte, c.tagSize)
	for i := 0; i < c.tagSize; i++ {
		gotTag[i] = encTag[i] ^ s0[i]
	}

	plaintext := make([]byte, len(encData))
	c.ctr(nonce, plaintext, encData)

	wantTag := c.computeTag(nonce, plaintext, aad)
	if subtle.ConstantTimeCompare(gotTag, wantTag[:c.tagSize]) != 1 {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// computeTag runs CBC-MAC over B_0, AAD, and plaintext per RFC 3610 §2.2.
func (c *CCM) computeTag(nonce, plaintext, aad []byte) []byte {
	var b0 [blockSize]byte
	flags := byte(0)
	if len(aad) > 0 {
		flags |= 1 << 6
	}
	flags |= byte((c.tagSize-2)/2) << 3
	flags |= byte(c.lenSize - 1)
	b0[0] = flags

	n := c.NonceSize()
	copy(b0[1:1+n], nonce)
	c.putLength(b0[1+n:], len(plaintext))

	mac := make([]byte, blockSize)
	c.block.Encrypt(mac, b0[:])

	if len(aad) > 0 {
		var hdr [blockSize]byte
		aadLen := len(aad)
		var headerLen int
		switch {
		case aadLen < (1<<16)-(1<<8):
			binary.BigEndian.PutUint16(hdr[0:2], uint16(aadLen))
			headerLen = 2
		case uint64(aadLen) < (uint64(1) << 32):
			hdr[0], hdr[1] = 0xFF, 0xFE
			binary.BigEndian.PutUint32(hdr[2:6], uint32(aadLen))
			headerLen = 6
		default:
			hdr[0], hdr[1] = 0xFF, 0xFF
			binary.BigEndian.PutUint64(hdr[2:10], uint64(aadLen))
			headerLen = 10
		}
		firstChunk := blockSize - headerLen
		if firstChunk > len(aad) {
			firstChunk = len(aad)
		}
		copy(hdr[headerLen:], aad[:firstChunk])
		xorBlockInto(mac, hdr[:])
		c.block.Encrypt(mac, mac)

		remaining := aad[firstChunk:]
		for len(remaining) > 0 {
			var blk [blockSize]byte
			n := copy(blk[:], remaining)
			remaining = remaining[n:]
			xorBlockInto(mac, blk[:])
			c.block.Encrypt(mac, mac)
		}
	}

	remaining := plaintext
	for len(remaining) > 0 {
		var blk [blockSize]byte
		n := copy(blk[:], remaining)
		remaining = remaining[n:]
		xorBlockInto(mac, blk[:])
		c.block.Encrypt(mac, mac)
	}

	return mac[:c.tagSize]
}

// blockAt encrypts the counter block for the given counter value.
func (c *CCM) blockAt(nonce []byte, counter uint64) []byte {
	var a [blockSize]byte
	a[0] = byte(c.lenSize - 1)
	n := c.NonceSize()
	copy(a[1:1+n], nonce)
	c.putLength(a[1+n:], int(counter))

	out := make([]byte, blockSize)
	c.block.Encrypt(out, a[:])
	return out
}

// ctr runs CTR mode starting at counter 1, per RFC 3610's keystream
// definition.
func (c *CCM) ctr(nonce []byte, dst, src []byte) {
	var ctr [blockSize]byte
	ctr[0] = byte(c.lenSize - 1)
	n := c.NonceSize()
	copy(ctr[1:1+n], nonce)
	ctr[blockSize-1] = 1

	var keystream [blockSize]byte
	for i := 0; i < len(src); i += blockSize {
		c.block.Encrypt(keystream[:], ctr[:])
		end := i + blockSize
		if end > len(src) {
			end = len(src)
		}
		for j := i; j < end; j++ {
			dst[j] = src[j] ^ keystream[j-i]
		}
		incrementCounter(ctr[blockSize-c.lenSize:])
	}
}

func (c *CCM) putLength(dst []byte, length int) {
	for i := c.lenSize - 1; i >= 0; i-- {
		dst[i] = byte(length)
		length >>= 8
	}
}

func incrementCounter(ctr []byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			break
		}
	}
}

func xorBlockInto(mac, block []byte) {
	for i := 0; i < blockSize; i++ {
		mac[i] ^= block[i]
	}
}
