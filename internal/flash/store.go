package flash

import "errors"

// Errors returned by a Store. These map directly onto the FlashProgramming
// and WriteProtection error kinds surfaced by the request dispatcher.
var (
	// ErrWriteProtection is returned when Program targets any address
	// inside the executing firmware image outside of a declared
	// exemption (see FactoryMnemonicRegion).
	ErrWriteProtection = errors.New("flash: write protection: address inside executing image")

	// ErrProgramming is returned for alignment, parallelism, or
	// sequence failures reported by the underlying flash peripheral.
	ErrProgramming = errors.New("flash: programming error")

	// ErrOutOfRange is returned when an operation addresses bytes
	// beyond the flash capacity.
	ErrOutOfRange = errors.New("flash: address out of range")
)

// Store abstracts device flash. Offsets are relative to FlashStart.
type Store interface {
	// Read returns length bytes starting at offset. It never faults for
	// offsets within the storage region.
	Read(offset, length uint32) ([]byte, error)

	// Program writes data starting at offset. It fails with
	// ErrWriteProtection if any byte of the target range falls inside
	// the executing firmware image outside of a declared exemption, and
	// with ErrProgramming on alignment or sequence errors.
	Program(offset uint32, data []byte) error

	// EraseRange marks a byte range as erased (all 0xFF). The core
	// never calls this directly — the storage region is assumed
	// pre-erased during provisioning — but adapters must support it for
	// write-over-unprogrammed-cells semantics.
	EraseRange(offset, length uint32) error
}

// Range is a half-open byte range [Start, End) relative to FlashStart.
type Range struct {
	Start, End uint32
}

// contains reports whether r fully contains [start, start+length).
func (r Range) contains(start, length uint32) bool {
	end := start + length
	return start >= r.Start && end <= r.End
}

// overlaps reports whether [start, start+length) intersects r.
func (r Range) overlaps(start, length uint32) bool {
	end := start + length
	return start < r.End && end > r.Start
}
