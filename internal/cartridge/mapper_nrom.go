package cartridge

// nromMapper implements iNES mapper 0 (NROM): no bank switching. 16KB
// PRG-ROM images are mirrored across the full $8000-$FFFF window; CHR is
// a single fixed 8KB bank, ROM or RAM.
type nromMapper struct {
	cart *Cartridge
	prg  *bankTable
	chr  *bankTable
}

func newNROM(cart *Cartridge) *nromMapper {
	m := &nromMapper{
		cart: cart,
		prg:  newBankTable(cart.prgROM, 0x8000, 0x2000),
		chr:  newBankTable(cart.chrROM, 0x2000, 0x2000),
	}
	// A single 32KB (or mirrored 16KB) bank covers the whole PRG window;
	// the modulo in bankTable.setBank does the mirroring for free when
	// len(prgROM) == 0x4000.
	m.prg.setBank(0x0000, 0x8000, 0)
	m.chr.setBank(0x0000, 0x2000, 0)
	return m
}

func (m *nromMapper) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	return m.prg.read(address - 0x8000)
}

func (m *nromMapper) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		m.cart.sram[address-0x6000] = value
	}
	// Writes to $8000-$FFFF are ignored: NROM has no registers.
}

func (m *nromMapper) ReadCHR(address uint16) uint8 {
	return m.chr.read(address)
}

func (m *nromMapper) WriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM {
		m.chr.write(address, value)
	}
}
