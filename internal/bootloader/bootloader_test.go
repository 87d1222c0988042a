package bootloader

import (
	"encoding/binary"
	"testing"

	"github.com/noviinc/novisigner/internal/flash"
)

type recordingMachine struct {
	disabledSysTick bool
	vectorOffset    uint32
	stackPointer    uint32
	jumpedTo        uint32
	order           []string
}

func (m *recordingMachine) DisableSysTick() {
	m.disabledSysTick = true
	m.order = append(m.order, "disable_systick")
}

func (m *recordingMachine) SetVectorTableOffset(addr uint32) {
	m.vectorOffset = addr
	m.order = append(m.order, "set_vector_table")
}

func (m *recordingMachine) SetStackPointers(sp uint32) {
	m.stackPointer = sp
	m.order = append(m.order, "set_stack_pointers")
}

func (m *recordingMachine) Jump(entry uint32) {
	m.jumpedTo = entry
	m.order = append(m.order, "jump")
}

func TestBootFollowsHandoffContract(t *testing.T) {
	store := flash.NewProvisionedMemoryStore()
	// The factory-mnemonic exemption is the only writable sub-range of a
	// provisioned app image; park the fake header there so Program
	// actually succeeds and Boot's handoff contract gets exercised.
	appAddr := flash.FlashStart + flash.FactoryMnemonicOffset
	offset := appAddr - flash.FlashStart

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], 0x20001000)
	binary.LittleEndian.PutUint32(header[4:8], 0x08000401)
	if err := store.Program(offset, header[:]); err != nil {
		t.Fatalf("program app header: %v", err)
	}

	m := &recordingMachine{}
	if err := Boot(store, appAddr, m); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	if !m.disabledSysTick {
		t.Fatalf("expected systick to be disabled")
	}
	if m.vectorOffset != appAddr {
		t.Fatalf("expected vector table offset 0x%X, got 0x%X", appAddr, m.vectorOffset)
	}
	if m.stackPointer != 0x20001000 {
		t.Fatalf("expected stack pointer 0x20001000, got 0x%X", m.stackPointer)
	}
	if m.jumpedTo != 0x08000401 {
		t.Fatalf("expected jump target 0x08000401, got 0x%X", m.jumpedTo)
	}

	wantOrder := []string{"disable_systick", "set_vector_table", "set_stack_pointers", "jump"}
	if len(m.order) != len(wantOrder) {
		t.Fatalf("expected call order %v, got %v", wantOrder, m.order)
	}
	for i, step := range wantOrder {
		if m.order[i] != step {
			t.Fatalf("expected step %d to be %q, got %q", i, step, m.order[i])
		}
	}
}
