// Command bootloader drives the second-stage handoff contract against
// a flash image file, using a logging Machine implementation in place
// of real MCU control registers.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"

	"github.com/noviinc/novisigner/internal/bootloader"
	"github.com/noviinc/novisigner/internal/flash"
)

// loggingMachine implements bootloader.Machine by logging each step
// instead of touching real hardware registers.
type loggingMachine struct {
	log *slog.Logger
}

func (m loggingMachine) DisableSysTick() {
	m.log.Info("disable systick")
}

func (m loggingMachine) SetVectorTableOffset(addr uint32) {
	m.log.Info("set vector table offset", "addr", fmt.Sprintf("0x%08X", addr))
}

func (m loggingMachine) SetStackPointers(sp uint32) {
	m.log.Info("set stack pointers", "sp", fmt.Sprintf("0x%08X", sp))
}

func (m loggingMachine) Jump(entry uint32) {
	m.log.Info("jump to reset handler", "entry", fmt.Sprintf("0x%08X", entry))
}

func main() {
	imagePath := flag.String("flash-image", "flash.img", "path to a flash image file")
	flag.Parse()

	fs, err := flash.OpenFileStore(*imagePath)
	if err != nil {
		log.Fatalf("open flash image failed: %v", err)
	}

	appAddr := flash.FlashStart + flash.AppOffset
	m := loggingMachine{log: slog.Default()}
	if err := bootloader.Boot(fs, appAddr, m); err != nil {
		log.Fatalf("boot failed: %v", err)
	}
}
