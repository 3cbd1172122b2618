package cartridge

// cnromMapper implements iNES mapper 3 (CNROM): fixed PRG-ROM (mirrored
// if 16KB), with an 8KB CHR-ROM bank selected by any write to $8000-$FFFF.
type cnromMapper struct {
	cart     *Cartridge
	prg      *bankTable
	chr      *bankTable
	chrBanks int
}

func newCNROM(cart *Cartridge) *cnromMapper {
	m := &cnromMapper{
		cart:     cart,
		prg:      newBankTable(cart.prgROM, 0x8000, 0x2000),
		chr:      newBankTable(cart.chrROM, 0x2000, 0x2000),
		chrBanks: len(cart.chrROM) / 0x2000,
	}
	m.prg.setBank(0x0000, 0x8000, 0)
	m.chr.setBank(0x0000, 0x2000, 0)
	return m
}

func (m *cnromMapper) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return m.cart.sram[address-0x6000]
	}
	if address < 0x8000 {
		return 0
	}
	return m.prg.read(address - 0x8000)
}

func (m *cnromMapper) WritePRG(address uint16, value uint8) {
	switch {
	case address >= 0x6000 && address < 0x8000:
		m.cart.sram[address-0x6000] = value
	case address >= 0x8000:
		if m.chrBanks > 0 {
			bank := int(value) % m.chrBanks
			m.chr.setBank(0x0000, 0x2000, bank)
		}
	}
}

func (m *cnromMapper) ReadCHR(address uint16) uint8 {
	return m.chr.read(address)
}

// WriteCHR is a no-op: CNROM's CHR space is ROM, read-only, and never
// backed by RAM.
func (m *cnromMapper) WriteCHR(address uint16, value uint8) {}
