// Package flash abstracts device flash storage: word-aligned program,
// erase semantics, and raw read. It stands in for the HAL layer that
// exposes flash programming primitives on real hardware (out of scope
// for this core; see the project's firmware core specification).
package flash

// Layout constants mirror the firmware image's memory map exactly. They
// are part of the device's ABI: changing them invalidates every
// previously provisioned image.
const (
	// FlashStart is the base address of flash on the target MCU.
	FlashStart uint32 = 0x0800_0000

	// FlashSize is the total flash capacity.
	FlashSize uint32 = 256 * 1024

	// AppOffset is where the application image begins, relative to
	// FlashStart. The bootloader hands off execution here.
	AppOffset uint32 = 0x400

	// StorageStart is the offset, relative to FlashStart, where the
	// persistent storage region begins. Everything at or past this
	// offset is never executed.
	StorageStart uint32 = FlashSize - 1024

	// SerialAddr is the offset of the 10-byte device serial record.
	SerialAddr uint32 = StorageStart

	// SerialLen is the length of the device serial record.
	SerialLen uint32 = 10

	// SeedAddr is the offset of the encrypted seed record (2-byte
	// length prefix followed by ciphertext).
	SeedAddr uint32 = StorageStart + SerialLen

	// TagLen is the AEAD authentication tag length used by the secure
	// store, in bytes.
	TagLen uint32 = 8

	// FactoryMnemonicOffset is the offset of the compiled-in factory
	// mnemonic placeholder, relative to FlashStart. It sits inside the
	// app image but is deliberately carved out of the image's general
	// write-protection so that erase_factory_phrase can overprogram it
	// once the encrypted copy exists. A real linker script would place
	// this string in a distinct, programmable section of the image for
	// the same reason.
	FactoryMnemonicOffset uint32 = AppOffset + 0x100

	// FactoryMnemonicMaxLen bounds the factory mnemonic placeholder.
	FactoryMnemonicMaxLen uint32 = 256
)

// AppRegion returns the [start, end) offsets, relative to FlashStart, of
// the executing firmware image. FlashStore.Program must reject writes
// into this range outside of the factory-mnemonic exemption.
func AppRegion() (start, end uint32) {
	return AppOffset, StorageStart
}

// FactoryMnemonicRegion returns the [start, end) offsets, relative to
// FlashStart, of the factory-mnemonic exemption carved out of AppRegion.
func FactoryMnemonicRegion() (start, end uint32) {
	return FactoryMnemonicOffset, FactoryMnemonicOffset + FactoryMnemonicMaxLen
}

// StorageBaseAddr is the absolute address (FLASH_START + STORAGE_START)
// reported to hosts via the Info request.
func StorageBaseAddr() uint32 {
	return FlashStart + StorageStart
}
