package flash

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreRejectsWriteIntoAppRegion(t *testing.T) {
	m := NewProvisionedMemoryStore()
	appStart, _ := AppRegion()
	if err := m.Program(appStart, []byte{0x01, 0x02}); err != ErrWriteProtection {
		t.Fatalf("expected ErrWriteProtection, got %v", err)
	}
}

func TestMemoryStoreAllowsWriteIntoFactoryMnemonicExemption(t *testing.T) {
	m := NewProvisionedMemoryStore()
	mStart, _ := FactoryMnemonicRegion()
	if err := m.Program(mStart, []byte("test mnemonic")); err != nil {
		t.Fatalf("Program into exemption failed: %v", err)
	}
	got, err := m.Read(mStart, 13)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("test mnemonic")) {
		t.Fatalf("got %q, want %q", got, "test mnemonic")
	}
}

func TestMemoryStoreAllowsWriteIntoStorageRegion(t *testing.T) {
	m := NewProvisionedMemoryStore()
	if err := m.Program(SeedAddr, []byte{0x00, 0x00}); err != nil {
		t.Fatalf("Program into storage region failed: %v", err)
	}
}

func TestMemoryStoreRejectsOutOfRange(t *testing.T) {
	m := NewProvisionedMemoryStore()
	if _, err := m.Read(FlashSize-1, 10); err != ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")

	fs1, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore (create): %v", err)
	}
	if err := fs1.Program(SerialAddr, []byte{0x43, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42}); err != nil {
		t.Fatalf("Program: %v", err)
	}

	fs2, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore (reopen): %v", err)
	}
	got, err := fs2.Read(SerialAddr, SerialLen)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0x43, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42, 0x42}
	if !bytes.Equal(got, want) {
		t.Fatalf("got %X, want %X", got, want)
	}
}

func TestOpenFileStoreRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flash.img")
	if err := os.WriteFile(path, []byte("too small"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := OpenFileStore(path); err == nil {
		t.Fatalf("expected error for wrong-size flash image")
	}
}
