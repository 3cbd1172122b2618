package cartridge

// axromMapper implements iNES mapper 7 (AxROM): a single switchable 32KB
// PRG-ROM bank selected by bits 0-2 of any write to $8000-$FFFF, 8KB
// CHR-RAM (never ROM), and single-screen mirroring selected by bit 4 of
// the same write.
type axromMapper struct {
	cart     *Cartridge
	prg      *bankTable
	chrRAM   [0x2000]uint8
	prgBanks int
}

func newAXROM(cart *Cartridge) *axromMapper {
	m := &axromMapper{
		cart:     cart,
		prg:      newBankTable(cart.prgROM, 0x8000, 0x2000),
		prgBanks: len(cart.prgROM) / 0x8000,
	}
	m.prg.setBank(0x0000, 0x8000, 0)
	return m
}

func (m *axromMapper) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	return m.prg.read(address - 0x8000)
}

func (m *axromMapper) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x6000 && address < 0x8000:
		m.cart.sram[address-0x6000] = value
	case address >= 0x8000:
		bank := int(value & 0x07)
		if m.prgBanks > 0 {
			bank %= m.prgBanks
		}
		m.prg.setBank(0x0000, 0x8000, bank)

		if value&0x10 != 0 {
			m.cart.mirror = MirrorSingleScreen1
		} else {
			m.cart.mirror = MirrorSingleScreen0
		}
	}
}

func (m *axromMapper) ReadCHR(address uint16) uint8 {
	return m.chrRAM[address&0x1FFF]
}

func (m *axromMapper) WriteCHR(address uint16, value uint8) {
	m.chrRAM[address&0x1FFF] = value
}
