// Package securestore owns the on-flash seed-at-rest lifecycle: the
// encrypted seed record, the device serial record, and the
// device-bound AEAD key derivation that wraps and unwraps the seed
// phrase.
package securestore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/sha3"

	"github.com/noviinc/novisigner/internal/aesccm"
	"github.com/noviinc/novisigner/internal/flash"
	"github.com/noviinc/novisigner/internal/secutil"
)

// BaseKey is the firmware-baked AEAD key-derivation constant. Part of
// the device's ABI: changing it invalidates every previously stored
// seed.
var BaseKey = [16]byte{0xC0, 0xC1, 0xC2, 0xC3, 0xC4, 0xC5, 0xC6, 0xC7, 0xC8, 0xC9, 0xCA, 0xCB, 0xCC, 0xCD, 0xCE, 0xCF}

// Nonce is the firmware-baked fixed CCM nonce. Safe only under the
// one-nonce-per-key discipline enforced by ErrSeedAlreadySet.
var Nonce = [13]byte{0x00, 0x00, 0x00, 0x03, 0x02, 0x01, 0x00, 0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}

const (
	maxPhraseLen = 512
	uidLen       = 12
)

var (
	// ErrSeedAlreadySet is returned by SaveEncrypted when a seed record
	// already exists, preventing nonce reuse under the fixed-nonce
	// scheme.
	ErrSeedAlreadySet = errors.New("securestore: seed already provisioned")

	// ErrAuth is returned when the AEAD tag fails to verify on load.
	ErrAuth = errors.New("securestore: authentication failed")

	// ErrEmpty is returned by LoadPhrase when no seed is stored.
	ErrEmpty = errors.New("securestore: no seed stored")

	// ErrDecode is returned when decrypted plaintext is not valid UTF-8.
	ErrDecode = errors.New("securestore: stored seed is not valid utf-8")

	// ErrAlreadyErased is returned by EraseFactoryPhrase on a second call.
	ErrAlreadyErased = errors.New("securestore: factory phrase already erased")

	// ErrPhraseTooLong is returned by SaveEncrypted for phrases longer
	// than maxPhraseLen bytes.
	ErrPhraseTooLong = errors.New("securestore: phrase exceeds maximum length")
)

// Store owns the storage region of a flash.Store: the serial record and
// the encrypted seed record, plus the device UID used as both AEAD
// associated data and the per-device key-derivation input.
type Store struct {
	flash flash.Store
	uid   [uidLen]byte
}

// New builds a Store bound to the given flash backend and device UID.
func New(fs flash.Store, uid [uidLen]byte) *Store {
	return &Store{flash: fs, uid: uid}
}

// UID returns the 12-byte chip identifier this store is bound to.
func (s *Store) UID() [uidLen]byte {
	return s.uid
}

// deriveKey computes Keccak-256(UID || BaseKey), the 32-byte AES-256 key.
// Callers must scrub the returned slice.
func (s *Store) deriveKey() []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(s.uid[:])
	h.Write(BaseKey[:])
	return h.Sum(nil)
}

// SizeOfStoredPlaintext reads the 2-byte length prefix at SeedAddr.
// ok is false when the sentinel value 0x0000 or 0xFFFF is present,
// meaning no seed is stored.
func (s *Store) SizeOfStoredPlaintext() (length uint16, ok bool, err error) {
	raw, err := s.flash.Read(flash.SeedAddr, 2)
	if err != nil {
		return 0, false, fmt.Errorf("securestore: read length prefix: %w", err)
	}
	l := binary.LittleEndian.Uint16(raw)
	if l == 0x0000 || l == 0xFFFF {
		return 0, false, nil
	}
	return l, true, nil
}

// SaveEncrypted encrypts phrase under the device-bound key and writes
// the length-prefixed ciphertext at SeedAddr. It refuses to overwrite
// an existing seed record, since the fixed nonce is only safe for a
// single encryption per device key.
func (s *Store) SaveEncrypted(phrase string) error {
	if _, ok, err := s.SizeOfStoredPlaintext(); err != nil {
		return err
	} else if ok {
		return ErrSeedAlreadySet
	}
	if len(phrase) > maxPhraseLen {
		return ErrPhraseTooLong
	}

	scratch := make([]byte, len(phrase))
	copy(scratch, phrase)
	defer secutil.Scrub(scratch)

	key := s.deriveKey()
	defer secutil.Scrub(key)

	cipher, err := aesccm.New(key, len(Nonce), int(flash.TagLen))
	if err != nil {
		return fmt.Errorf("securestore: build cipher: %w", err)
	}
	ciphertext, err := cipher.Seal(Nonce[:], scratch, s.uid[:])
	if err != nil {
		return fmt.Errorf("securestore: seal: %w", err)
	}
	defer secutil.Scrub(ciphertext)

	var lenPrefix [2]byte
	binary.LittleEndian.PutUint16(lenPrefix[:], uint16(len(phrase)))
	if err := s.flash.Program(flash.SeedAddr, lenPrefix[:]); err != nil {
		return fmt.Errorf("securestore: program length: %w", err)
	}
	if err := s.flash.Program(flash.SeedAddr+2, ciphertext); err != nil {
		return fmt.Errorf("securestore: program ciphertext: %w", err)
	}
	return nil
}

// LoadPhrase reads the seed record, decrypts it under the device-bound
// key, and returns the plaintext mnemonic bytes. Returns ErrEmpty when
// no seed is stored, ErrAuth on tag mismatch, ErrDecode on invalid
// UTF-8. The caller takes ownership of the returned slice and is
// responsible for calling secutil.Scrub on it once done; LoadPhrase
// never returns a string copy precisely so that scrub is effective.
func (s *Store) LoadPhrase() ([]byte, error) {
	length, ok, err := s.SizeOfStoredPlaintext()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEmpty
	}

	ciphertext, err := s.flash.Read(flash.SeedAddr+2, uint32(length)+flash.TagLen)
	if err != nil {
		return nil, fmt.Errorf("securestore: read ciphertext: %w", err)
	}
	defer secutil.Scrub(ciphertext)

	key := s.deriveKey()
	defer secutil.Scrub(key)

	cipher, err := aesccm.New(key, len(Nonce), int(flash.TagLen))
	if err != nil {
		return nil, fmt.Errorf("securestore: build cipher: %w", err)
	}
	plaintext, err := cipher.Open(Nonce[:], ciphertext, s.uid[:])
	if err != nil {
		secutil.Scrub(plaintext)
		return nil, ErrAuth
	}

	if !utf8.Valid(plaintext) {
		secutil.Scrub(plaintext)
		return nil, ErrDecode
	}
	return plaintext, nil
}

// EraseFactoryPhrase overprograms the in-image factory mnemonic region
// with zero bytes, once a seed ciphertext is present. Idempotent: a
// second call returns ErrAlreadyErased.
func (s *Store) EraseFactoryPhrase() error {
	if _, ok, err := s.SizeOfStoredPlaintext(); err != nil {
		return err
	} else if !ok {
		return ErrEmpty
	}

	start, end := flash.FactoryMnemonicRegion()
	current, err := s.flash.Read(start, end-start)
	if err != nil {
		return fmt.Errorf("securestore: read factory region: %w", err)
	}
	if allZero(current) {
		return ErrAlreadyErased
	}

	zeros := make([]byte, end-start)
	if err := s.flash.Program(start, zeros); err != nil {
		return fmt.Errorf("securestore: erase factory region: %w", err)
	}
	return nil
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Serial reads the 10-byte device serial record, programming it with
// the provisioning pattern (first byte 0x43, remainder 0x42) on first
// access if the record is currently unset.
func (s *Store) Serial() ([flash.SerialLen]byte, error) {
	var out [flash.SerialLen]byte
	raw, err := s.flash.Read(flash.SerialAddr, flash.SerialLen)
	if err != nil {
		return out, fmt.Errorf("securestore: read serial: %w", err)
	}
	if !serialSet(raw) {
		var fresh [flash.SerialLen]byte
		fresh[0] = 0x43
		for i := 1; i < len(fresh); i++ {
			fresh[i] = 0x42
		}
		if err := s.flash.Program(flash.SerialAddr, fresh[:]); err != nil {
			return out, fmt.Errorf("securestore: program serial: %w", err)
		}
		copy(out[:], fresh[:])
		return out, nil
	}
	copy(out[:], raw)
	return out, nil
}

// serialSet reports whether raw contains at least one byte that is
// neither 0x00 nor 0xFF.
func serialSet(raw []byte) bool {
	for _, b := range raw {
		if b != 0x00 && b != 0xFF {
			return true
		}
	}
	return false
}
