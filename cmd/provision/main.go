// Command provision is the factory provisioning step: it creates (or
// opens) a flash image, bakes the factory mnemonic into its
// programmable placeholder region, encrypts and persists the seed
// record under the device-bound key, and optionally erases the
// factory-plaintext copy — exactly the operations the original
// firmware's first-request auto-provisioning performed, but run here
// as an explicit, operator-invoked step.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/noviinc/novisigner/internal/config"
	"github.com/noviinc/novisigner/internal/flash"
	"github.com/noviinc/novisigner/internal/securestore"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to provisioning config")
	mnemonic := flag.String("mnemonic", "", "BIP-39 mnemonic to provision (required)")
	eraseFactory := flag.Bool("erase-factory", true, "erase the in-image factory mnemonic after saving the encrypted copy")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if strings.TrimSpace(*mnemonic) == "" {
		log.Fatalf("-mnemonic is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	uid, err := cfg.UID()
	if err != nil {
		log.Fatalf("invalid device UID: %v", err)
	}

	fs, err := flash.OpenFileStore(cfg.Device.FlashImagePath)
	if err != nil {
		log.Fatalf("open flash image failed: %v", err)
	}

	factoryStart, factoryEnd := flash.FactoryMnemonicRegion()
	placeholder := make([]byte, factoryEnd-factoryStart)
	copy(placeholder, []byte(*mnemonic))
	if err := fs.Program(factoryStart, placeholder); err != nil {
		log.Fatalf("write factory mnemonic placeholder failed: %v", err)
	}
	fmt.Printf("Factory mnemonic baked into image at offset 0x%X (%d bytes reserved)\n", factoryStart, len(placeholder))

	store := securestore.New(fs, uid)
	if err := store.SaveEncrypted(*mnemonic); err != nil {
		log.Fatalf("save encrypted seed failed: %v", err)
	}
	fmt.Println("Encrypted seed record written.")

	if *eraseFactory {
		if err := store.EraseFactoryPhrase(); err != nil {
			log.Fatalf("erase factory phrase failed: %v", err)
		}
		fmt.Println("Factory mnemonic plaintext erased.")
	}

	fmt.Printf("Device %X provisioned at %s\n", uid, cfg.Device.FlashImagePath)
}
