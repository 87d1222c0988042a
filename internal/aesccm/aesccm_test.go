package aesccm

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0xAB}, 32)
	nonce := bytes.Repeat([]byte{0x01}, 13)
	aad := []byte("associated data")
	plaintext := []byte("panda eyebrow bullet gorilla call smoke")

	c, err := New(key, len(nonce), 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ciphertext, err := c.Seal(nonce, plaintext, aad)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(ciphertext) != len(plaintext)+8 {
		t.Fatalf("expected ciphertext length %d, got %d", len(plaintext)+8, len(ciphertext))
	}

	got, err := c.Open(nonce, ciphertext, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, plaintext)
	}
}

func TestOpenRejectsWrongAAD(t *testing.T) {
	key := bytes.Repeat([]byte{0xCD}, 32)
	nonce := bytes.Repeat([]byte{0x02}, 13)

	c, err := New(key, len(nonce), 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ciphertext, err := c.Seal(nonce, []byte("secret"), []byte("uid-a"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := c.Open(nonce, ciphertext, []byte("uid-b")); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0xEF}, 16)
	nonce := bytes.Repeat([]byte{0x03}, 13)

	c, err := New(key, len(nonce), 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ciphertext, err := c.Seal(nonce, []byte("another secret"), nil)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	ciphertext[0] ^= 0xFF

	if _, err := c.Open(nonce, ciphertext, nil); err != ErrAuthFailed {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestNewRejectsBadKeySize(t *testing.T) {
	if _, err := New(make([]byte, 10), 13, 8); err != ErrInvalidKeySize {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestNewRejectsBadTagSize(t *testing.T) {
	if _, err := New(make([]byte, 32), 13, 3); err != ErrInvalidTagSize {
		t.Fatalf("expected ErrInvalidTagSize, got %v", err)
	}
}
