// Package bootloader implements the second-stage handoff contract: a
// tiny routine that prepares the processor to execute the application
// image at a fixed flash offset and never returns.
package bootloader

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/noviinc/novisigner/internal/flash"
)

// ErrReadFailed wraps a flash read failure while fetching the initial
// stack pointer or reset handler words.
var ErrReadFailed = errors.New("bootloader: failed to read application image header")

// Machine abstracts the MCU control-register and core-register surface
// the bootloader touches: the out-of-scope HAL layer. A real
// implementation programs NVIC/SCB registers directly; tests and host
// tooling supply a recording or logging fake.
type Machine interface {
	// DisableSysTick disables the system timer interrupt before handoff.
	DisableSysTick()
	// SetVectorTableOffset programs the vector table offset register.
	SetVectorTableOffset(addr uint32)
	// SetStackPointers writes both the main and process stack pointers.
	SetStackPointers(sp uint32)
	// Jump transfers control to entry. Never returns on real hardware.
	Jump(entry uint32)
}

// Boot executes the five-step handoff contract: disable the system
// timer, read the initial stack pointer and reset handler from the
// application image at appAddr, relocate the vector table, reinitialise
// both stack pointers, and jump to the reset handler.
//
// appAddr is an absolute address (FLASH_START + APP_OFFSET); store
// offsets are relative to FLASH_START, so the caller's flash.Store is
// addressed via appAddr - flash.FlashStart.
func Boot(store flash.Store, appAddr uint32, m Machine) error {
	m.DisableSysTick()

	offset := appAddr - flash.FlashStart
	header, err := store.Read(offset, 8)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReadFailed, err)
	}

	initialSP := binary.LittleEndian.Uint32(header[0:4])
	resetHandler := binary.LittleEndian.Uint32(header[4:8])

	m.SetVectorTableOffset(appAddr)
	m.SetStackPointers(initialSP)
	m.Jump(resetHandler)
	return nil
}
