// Package ppu provides the CPU-visible register contract of the NES
// Picture Processing Unit. Actual pixel generation is out of scope here;
// the PPU is a black box from the CPU's point of view, peered on the bus
// purely through its eight memory-mapped registers.
package ppu

// Register indices into the eight-byte PPU register window, $2000-$2007.
const (
	RegCtrl    = 0 // PPUCTRL, write
	RegMask    = 1 // PPUMASK, write
	RegStatus  = 2 // PPUSTATUS, read
	RegOAMAddr = 3 // OAMADDR, write
	RegOAMData = 4 // OAMDATA, read/write
	RegScroll  = 5 // PPUSCROLL, write x2
	RegAddr    = 6 // PPUADDR, write x2
	RegData    = 7 // PPUDATA, read/write
)

const statusVBlankMask = 0x80

// PPU holds the eight CPU-visible registers and enough bookkeeping (an OAM
// store, a cycle counter) to answer the Bus's register contract and to
// serve as a DMA target. It does not render.
type PPU struct {
	regs [8]uint8

	oam [256]uint8

	cycles uint64
}

// New creates a PPU with registers at their power-up values.
func New() *PPU {
	p := &PPU{}
	p.Reset()
	return p
}

// Reset restores power-up register state: PPUSTATUS has the VBlank flag
// set, matching real hardware's first read after power-up.
func (p *PPU) Reset() {
	p.regs = [8]uint8{}
	p.regs[RegStatus] = statusVBlankMask
	p.cycles = 0
}

// Step advances the PPU by one PPU cycle. No scanline/pixel state is
// modeled; this only keeps a cycle count available for diagnostics.
func (p *PPU) Step() {
	p.cycles++
}

// ReadRegister reads one of the eight PPU registers. address is masked to
// $2000+(addr&7) by the caller's contract, but masking here too keeps this
// type safe to call directly.
func (p *PPU) ReadRegister(address uint16) uint8 {
	index := address & 0x0007
	value := p.regs[index]
	if index == RegStatus {
		// Reading PPUSTATUS clears the VBlank flag. No $2005/$2006 write
		// latch is modeled, so there is none to reset.
		p.regs[RegStatus] &^= statusVBlankMask
	}
	return value
}

// WriteRegister writes one of the eight PPU registers.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	index := address & 0x0007
	p.regs[index] = value
	if index == RegOAMData {
		p.oam[p.regs[RegOAMAddr]] = value
		p.regs[RegOAMAddr]++
	}
}

// WriteOAM writes directly to object attribute memory, the path used by
// OAM DMA ($4014) rather than the $2004 register interface.
func (p *PPU) WriteOAM(index uint8, value uint8) {
	p.oam[index] = value
}

// ReadOAM reads directly from object attribute memory, bypassing the
// CPU-visible register path.
func (p *PPU) ReadOAM(index uint8) uint8 {
	return p.oam[index]
}

// CycleCount returns the number of PPU cycles stepped since the last
// Reset.
func (p *PPU) CycleCount() uint64 {
	return p.cycles
}
