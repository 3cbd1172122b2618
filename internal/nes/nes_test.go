package nes

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"nesgo/internal/cartridge"
)

type rawINESHeader struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// buildNROM assembles a one-bank NROM image whose reset vector points at
// program, written starting at 0x8000.
func buildNROM(t *testing.T, program []uint8) *cartridge.Cartridge {
	t.Helper()
	var buf bytes.Buffer
	header := rawINESHeader{
		Magic:      [4]uint8{'N', 'E', 'S', 0x1A},
		PRGROMSize: 1,
		CHRROMSize: 1,
	}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("write header: %v", err)
	}

	prg := make([]uint8, 16384)
	copy(prg, program)
	// Reset vector at the end of the 16KB window ($BFFC-$BFFD, mirrored
	// to $FFFC-$FFFD) points at the start of PRG-ROM.
	prg[0x3FFC] = 0x00
	prg[0x3FFD] = 0x80
	buf.Write(prg)
	buf.Write(make([]uint8, 8192)) // CHR-RAM-all-zero

	cart, err := cartridge.LoadFromReader(&buf)
	if err != nil {
		t.Fatalf("load cartridge: %v", err)
	}
	return cart
}

func TestPowerUpLoadsResetVector(t *testing.T) {
	cart := buildNROM(t, []uint8{0xEA}) // NOP
	n := New()
	n.LoadCartridge(cart)
	if n.CPU.PC != 0x8000 {
		t.Fatalf("expected PC=0x8000 after power-up, got 0x%04X", n.CPU.PC)
	}
	if !n.Active() {
		t.Fatalf("expected the orchestrator to be active after power-up")
	}
}

func TestStepTicksPPUAndAPUAtFixedRatio(t *testing.T) {
	cart := buildNROM(t, []uint8{0xEA}) // NOP: 2 cycles
	n := New()
	n.LoadCartridge(cart)

	cycles, err := n.Step()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cycles != 2 {
		t.Fatalf("expected NOP to take 2 cycles, got %d", cycles)
	}
	if n.PPU.CycleCount() != cycles*3 {
		t.Fatalf("expected PPU to tick 3x per CPU cycle, got %d for %d CPU cycles", n.PPU.CycleCount(), cycles)
	}
	if n.APU.CycleCount() != cycles {
		t.Fatalf("expected APU to tick 1x per CPU cycle, got %d for %d CPU cycles", n.APU.CycleCount(), cycles)
	}
}

func TestRunHaltsOnKIL(t *testing.T) {
	cart := buildNROM(t, []uint8{0xEA, 0x02}) // NOP, then KIL
	n := New()
	n.LoadCartridge(cart)

	err := n.Run(nil)
	if err == nil {
		t.Fatalf("expected Run to return an error on KIL")
	}
	var halt *CpuHalt
	if !errors.As(err, &halt) {
		t.Fatalf("expected a *CpuHalt, got %T: %v", err, err)
	}
	if halt.Opcode != 0x02 {
		t.Fatalf("expected halt opcode 0x02, got 0x%02X", halt.Opcode)
	}
	if !errors.Is(err, ErrCPUHalted) {
		t.Fatalf("expected errors.Is to match ErrCPUHalted")
	}
	if n.Active() {
		t.Fatalf("expected the orchestrator to stop being active after a halt")
	}
}

func TestRunHaltsOnUnimplementedOpcode(t *testing.T) {
	// 0x0B (ANC #imm, an illegal opcode this build doesn't dispatch) has
	// no dispatch-table entry, so it must halt like an unrecognized
	// instruction rather than silently acting as a no-op.
	cart := buildNROM(t, []uint8{0x0B})
	n := New()
	n.LoadCartridge(cart)

	err := n.Run(nil)
	var halt *CpuHalt
	if !errors.As(err, &halt) {
		t.Fatalf("expected a *CpuHalt for an unimplemented opcode, got %T: %v", err, err)
	}
	if halt.Opcode != 0x0B {
		t.Fatalf("expected halt opcode 0x0B, got 0x%02X", halt.Opcode)
	}
	if n.Active() {
		t.Fatalf("expected the orchestrator to stop being active after a halt")
	}
}

func TestStopEndsRunLoop(t *testing.T) {
	cart := buildNROM(t, []uint8{0xEA}) // NOP, then the zero-filled PRG decodes as BRK; no halt within 3 steps
	n := New()
	n.LoadCartridge(cart)

	calls := 0
	err := n.Run(func() bool {
		calls++
		return calls > 3
	})
	if err != nil {
		t.Fatalf("expected a clean stop, got %v", err)
	}
	if n.Active() {
		t.Fatalf("expected Stop-via-callback to clear Active()")
	}
}

func TestRunCyclesStopsAtTarget(t *testing.T) {
	cart := buildNROM(t, []uint8{0xEA}) // NOP (2 cycles), then BRK (7 cycles) from the zero-filled PRG, then code in RAM
	n := New()
	n.LoadCartridge(cart)

	if err := n.RunCycles(10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.TotalCycles() < 10 {
		t.Fatalf("expected at least 10 cycles to have run, got %d", n.TotalCycles())
	}
}

func TestOAMDMACopiesIntoPPU(t *testing.T) {
	// LDA #$AB; STA $00; LDA #$00; STA $4014 (DMA from page 0)
	cart := buildNROM(t, []uint8{0xA9, 0xAB, 0x85, 0x00, 0xA9, 0x00, 0x8D, 0x14, 0x40})
	n := New()
	n.LoadCartridge(cart)

	for i := 0; i < 4; i++ {
		if _, err := n.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if n.PPU.ReadOAM(0x00) != 0xAB {
		t.Fatalf("expected OAM DMA to copy zero-page byte 0 into OAM[0], got 0x%02X", n.PPU.ReadOAM(0x00))
	}
}
