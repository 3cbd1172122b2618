// Package nes implements the orchestrator that wires the CPU, the Bus,
// and a cartridge's PPU/APU register stubs together and drives them at a
// fixed ratio of three PPU ticks and one APU tick per CPU cycle, ticked
// after each CPU instruction.
package nes

import (
	"errors"
	"fmt"

	"nesgo/internal/apu"
	"nesgo/internal/bus"
	"nesgo/internal/cartridge"
	"nesgo/internal/cpu"
	"nesgo/internal/ppu"
)

// ErrCPUHalted is returned by Run/RunCycles/Step when the CPU halts
// (KIL opcode or no dispatch entry for the fetched opcode).
var ErrCPUHalted = errors.New("cpu halted")

// CpuHalt carries the opcode and program counter at the moment the CPU
// halted, wrapping ErrCPUHalted so callers can still match it with
// errors.Is.
type CpuHalt struct {
	Opcode uint8
	PC     uint16
}

func (h *CpuHalt) Error() string {
	return fmt.Sprintf("cpu halted: opcode $%02X at $%04X", h.Opcode, h.PC)
}

func (h *CpuHalt) Unwrap() error {
	return ErrCPUHalted
}

// NES holds the three chips, the Bus, and the loaded cartridge, and
// drives the emulator's single-threaded, cooperative tick sequence.
type NES struct {
	CPU *cpu.CPU
	PPU *ppu.PPU
	APU *apu.APU
	Bus *bus.Bus

	cart *cartridge.Cartridge

	active      bool
	totalCycles uint64
}

// New creates an orchestrator with no cartridge loaded; LoadCartridge
// must be called (and PowerUp or Reset run) before Run/Step do anything
// useful, since the Bus has no PRG-ROM to fetch from otherwise.
func New() *NES {
	n := &NES{
		PPU: ppu.New(),
		APU: apu.New(),
	}
	n.Bus = bus.New(n.PPU, n.APU, nil)
	n.Bus.SetDMACallback(n.triggerOAMDMA)
	n.CPU = cpu.New(n.Bus)
	return n
}

// LoadCartridge installs a cartridge as the Bus's mapper source and
// powers up.
func (n *NES) LoadCartridge(cart *cartridge.Cartridge) {
	n.cart = cart
	n.Bus = bus.New(n.PPU, n.APU, cart)
	n.Bus.SetDMACallback(n.triggerOAMDMA)
	n.CPU = cpu.New(n.Bus)
	n.PowerUp()
}

// triggerOAMDMA is the Bus's DMA callback: it copies 256 bytes from the
// given CPU page into the PPU's OAM directly, bypassing the $2004
// register path (matching real DMA hardware, which writes OAM without
// advancing OAMADDR through the register interface).
func (n *NES) triggerOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		n.PPU.WriteOAM(uint8(i), n.Bus.Read(base+uint16(i)))
	}
}

// PowerUp seeds RAM with the power-up pattern (done by bus.New), resets
// the PPU/APU, and triggers a CPU reset so PC loads from the reset
// vector.
func (n *NES) PowerUp() {
	n.PPU.Reset()
	n.APU.Reset()
	n.Reset()
}

// Reset re-reads the reset vector from the Bus and clears the active
// flag's halt condition, restarting the run loop.
func (n *NES) Reset() {
	n.CPU.Reset()
	n.CPU.Halted = false
	n.active = true
	n.totalCycles = 0
}

// Step runs exactly one CPU instruction and then ticks the PPU three times
// and the APU once for each CPU cycle that instruction consumed, so an
// instruction's PPU/APU ticks follow it rather than precede it. It returns
// the number of CPU cycles the instruction took, and a *CpuHalt if the CPU
// halted during this step.
func (n *NES) Step() (uint64, error) {
	if !n.active || n.CPU.Halted {
		n.active = false
		return 0, &CpuHalt{Opcode: n.CPU.HaltOpcode, PC: n.CPU.HaltPC}
	}

	cycles := n.CPU.Step()

	for i := uint64(0); i < cycles*3; i++ {
		n.PPU.Step()
	}
	for i := uint64(0); i < cycles; i++ {
		n.APU.Step()
	}

	n.totalCycles += cycles

	if n.CPU.Halted {
		n.active = false
		return cycles, &CpuHalt{Opcode: n.CPU.HaltOpcode, PC: n.CPU.HaltPC}
	}
	return cycles, nil
}

// Run drives Step in a loop until the CPU halts or an externally supplied
// stop function returns true, checked between instructions. A nil stop
// function runs until halt.
func (n *NES) Run(stop func() bool) error {
	for n.active {
		if stop != nil && stop() {
			n.active = false
			return nil
		}
		if _, err := n.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunCycles runs until at least the given number of additional CPU
// cycles have elapsed, or the CPU halts.
func (n *NES) RunCycles(cycles uint64) error {
	target := n.totalCycles + cycles
	for n.active && n.totalCycles < target {
		if _, err := n.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Active reports whether the run loop would still advance: false once a
// KIL opcode, an unimplemented opcode, or an external stop has fired.
func (n *NES) Active() bool {
	return n.active
}

// Stop clears the active flag, the externally-injected stop signal named
// in the orchestrator's contract.
func (n *NES) Stop() {
	n.active = false
}

// TotalCycles returns the cumulative CPU cycle count since the last
// PowerUp/Reset.
func (n *NES) TotalCycles() uint64 {
	return n.totalCycles
}

// SetButtons forwards to the Bus's controller-port state, the only input
// surface this emulator core exposes.
func (n *NES) SetButtons(port int, state uint8) {
	n.Bus.SetButtons(port, state)
}
