package device

import (
	"fmt"
	"unsafe"

	"github.com/tyler-smith/go-bip39"

	"github.com/noviinc/novisigner/internal/flash"
	"github.com/noviinc/novisigner/internal/keyengine"
	"github.com/noviinc/novisigner/internal/secutil"
	"github.com/noviinc/novisigner/internal/securestore"
)

// USB device identity constants, documentary: no literal USB/CDC stack
// is implemented by this core, but cmd/novisigner logs the vendor and
// product IDs and a future real HAL adapter would use them verbatim.
const (
	USBVendorID     = 0xDEAD
	USBProductID    = 0xBEEF
	USBManufacturer = "noviinc"
	USBProduct      = "NoviSigner"
	USBSerialString = "123"
)

// DeviceState is the single process-wide value holding everything the
// dispatcher needs across turns: the resident master seed (loaded
// lazily on first successful unwrap and kept resident for device
// uptime), the persistent derivation Context, the flash and secure
// store backends, and the device UID. It is constructed once by the
// process entry point and threaded by reference into the Dispatcher.
type DeviceState struct {
	Flash  flash.Store
	Secure *securestore.Store
	UID    [12]byte

	ctx        keyengine.Context
	seedLoaded bool
}

// NewDeviceState builds a DeviceState over the given flash backend and
// UID. A securestore.Store is constructed internally, bound to the
// same flash backend and UID.
func NewDeviceState(fs flash.Store, uid [12]byte) *DeviceState {
	return &DeviceState{
		Flash:  fs,
		Secure: securestore.New(fs, uid),
		UID:    uid,
	}
}

// HasSeed reports whether a seed record is currently present on flash,
// without materialising the plaintext.
func (d *DeviceState) HasSeed() (bool, error) {
	_, ok, err := d.Secure.SizeOfStoredPlaintext()
	return ok, err
}

// Context returns the persistent derivation context, loading and
// caching the master seed from the secure store on first call. The
// returned pointer is shared: only the dispatcher is expected to call
// SetIdx on it.
func (d *DeviceState) Context() (*keyengine.Context, error) {
	if d.seedLoaded {
		return &d.ctx, nil
	}
	phrase, err := d.Secure.LoadPhrase()
	if err != nil {
		return nil, err
	}
	defer secutil.Scrub(phrase)

	// bip39.NewSeed takes a string, and converting a []byte to a string
	// copies it, which would leave an unscrubbable copy of the mnemonic
	// behind. Alias phrase's backing array as a string view instead: no
	// copy is made, so the deferred Scrub above erases the only copy.
	mnemonicView := unsafe.String(&phrase[0], len(phrase))
	seedBytes := bip39.NewSeed(mnemonicView, "")
	defer secutil.Scrub(seedBytes)

	if len(seedBytes) != len(d.ctx.MasterSeed) {
		return nil, fmt.Errorf("device: unexpected bip39 seed length %d", len(seedBytes))
	}
	copy(d.ctx.MasterSeed[:], seedBytes)
	d.seedLoaded = true
	return &d.ctx, nil
}
