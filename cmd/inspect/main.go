// Command inspect is a read-only diagnostic over a flash image file: it
// prints the Info, Serial, and Address (index -addr-index, default 0)
// fields without mutating
// anything but a still-unset serial record, the same way the device
// firmware would answer those three requests.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/noviinc/novisigner/internal/config"
	"github.com/noviinc/novisigner/internal/device"
	"github.com/noviinc/novisigner/internal/flash"
	"github.com/noviinc/novisigner/internal/keyengine"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to provisioning config")
	addrIndex := flag.Uint("addr-index", 0, "child index to derive and print an address for")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

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
	state := device.NewDeviceState(fs, uid)

	hasSeed, err := state.HasSeed()
	if err != nil {
		log.Fatalf("read seed presence failed: %v", err)
	}
	fmt.Printf("Info: has_seed=%v storage_base=0x%X uid=%X\n", hasSeed, flash.StorageBaseAddr(), uid)

	serial, err := state.Secure.Serial()
	if err != nil {
		log.Fatalf("read serial failed: %v", err)
	}
	fmt.Printf("Serial: %X\n", serial)

	if !hasSeed {
		fmt.Println("Address: (no seed provisioned)")
		return
	}
	ctx, err := state.Context()
	if err != nil {
		log.Fatalf("load derivation context failed: %v", err)
	}
	ctx.SetIdx(uint32(*addrIndex))
	addr, err := keyengine.Address(ctx)
	if err != nil {
		log.Fatalf("derive address failed: %v", err)
	}
	fmt.Printf("Address[%d]: %x\n", *addrIndex, addr)
}
