package flash

import (
	"fmt"
	"os"
)

// FileStore persists the flash layout to a file on disk so that the
// firmware loop binary and the provisioning/inspection CLIs can share
// device state across process runs. It is the Go stand-in for the HAL's
// physical flash peripheral, which is out of scope for the core.
type FileStore struct {
	mem  *MemoryStore
	path string
}

// OpenFileStore opens (or creates) a flash image file at path. A newly
// created image is pre-erased, matching a factory-fresh chip.
func OpenFileStore(path string) (*FileStore, error) {
	appStart, appEnd := AppRegion()
	mStart, mEnd := FactoryMnemonicRegion()
	mem := NewMemoryStore(Range{appStart, appEnd}, Range{mStart, mEnd})

	fs := &FileStore{mem: mem, path: path}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		if err := fs.flushAll(); err != nil {
			return nil, fmt.Errorf("create flash image: %w", err)
		}
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat flash image: %w", err)
	}
	if uint64(info.Size()) != uint64(FlashSize) {
		return nil, fmt.Errorf("flash image %s has size %d, want %d", path, info.Size(), FlashSize)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flash image: %w", err)
	}
	copy(mem.data, raw)
	return fs, nil
}

func (fs *FileStore) flushAll() error {
	return os.WriteFile(fs.path, fs.mem.data, 0o600)
}

func (fs *FileStore) flushRange(offset, length uint32) error {
	f, err := os.OpenFile(fs.path, os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteAt(fs.mem.data[offset:offset+length], int64(offset)); err != nil {
		return err
	}
	return nil
}

func (fs *FileStore) Read(offset, length uint32) ([]byte, error) {
	return fs.mem.Read(offset, length)
}

func (fs *FileStore) Program(offset uint32, data []byte) error {
	if err := fs.mem.Program(offset, data); err != nil {
		return err
	}
	return fs.flushRange(offset, uint32(len(data)))
}

func (fs *FileStore) EraseRange(offset, length uint32) error {
	if err := fs.mem.EraseRange(offset, length); err != nil {
		return err
	}
	return fs.flushRange(offset, length)
}
