package cartridge

// mmc1Mapper implements iNES mapper 1 (MMC1): a 5-bit serial shift
// register feeds one of four internal registers (selected by which
// $8000-$FFFF address range received the 5th write), controlling PRG
// mode (32KB, or 16KB fixed-first/fixed-last), CHR mode (8KB or two 4KB
// banks), and mirroring.
//
// A write with bit 7 set resets the shift register and forces control
// register bits 3:2 to 0b11 (PRG mode "fix last bank at $C000"),
// regardless of shift progress — matching the documented reset behavior.
type mmc1Mapper struct {
	cart *Cartridge
	prg  *bankTable
	chr  *bankTable

	prgBanks int // number of 16KB PRG banks

	shift      uint8
	shiftCount uint8

	mirror  uint8 // 0=single-low, 1=single-high, 2=vertical, 3=horizontal
	prgMode uint8 // 0/1=32KB, 2=fix first @ $8000, 3=fix last @ $C000
	chrMode uint8 // 0=8KB, 1=4KB x2

	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgRAMEnabled bool
}

func newMMC1(cart *Cartridge) *mmc1Mapper {
	m := &mmc1Mapper{
		cart:          cart,
		prg:           newBankTable(cart.prgROM, 0x8000, 0x2000),
		chr:           newBankTable(cart.chrROM, 0x2000, 0x1000),
		prgBanks:      len(cart.prgROM) / 0x4000,
		shift:         0x10,
		prgMode:       3,
		prgRAMEnabled: true,
	}
	m.applyPRGBanks()
	m.applyCHRBanks()
	return m
}

func (m *mmc1Mapper) ReadPRG(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		if m.prgRAMEnabled {
			return m.cart.sram[address-0x6000]
		}
		return 0
	}
	if address < 0x8000 {
		return 0
	}
	return m.prg.read(address - 0x8000)
}

func (m *mmc1Mapper) WritePRG(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		if m.prgRAMEnabled {
			m.cart.sram[address-0x6000] = value
		}
		return
	}
	if address < 0x8000 {
		return
	}

	if value&0x80 != 0 {
		m.shift = 0x10
		m.shiftCount = 0
		m.prgMode = 3
		m.applyPRGBanks()
		return
	}

	m.shift = (m.shift >> 1) | ((value & 1) << 4)
	m.shiftCount++
	if m.shiftCount < 5 {
		return
	}

	m.writeRegister(address, m.shift)
	m.shift = 0x10
	m.shiftCount = 0
}

// writeRegister latches a completed 5-bit shift into the internal
// register selected by the write's address range.
func (m *mmc1Mapper) writeRegister(address uint16, value uint8) {
	switch {
	case address < 0xA000:
		m.mirror = value & 0x03
		m.prgMode = (value >> 2) & 0x03
		m.chrMode = (value >> 4) & 0x01
		switch m.mirror {
		case 0:
			m.cart.mirror = MirrorSingleScreen0
		case 1:
			m.cart.mirror = MirrorSingleScreen1
		case 2:
			m.cart.mirror = MirrorVertical
		case 3:
			m.cart.mirror = MirrorHorizontal
		}
		m.applyPRGBanks()
		m.applyCHRBanks()

	case address < 0xC000:
		m.chrBank0 = value & 0x1F
		m.applyCHRBanks()

	case address < 0xE000:
		m.chrBank1 = value & 0x1F
		m.applyCHRBanks()

	default:
		m.prgBank = value & 0x0F
		m.prgRAMEnabled = value&0x10 == 0
		m.applyPRGBanks()
	}
}

func (m *mmc1Mapper) applyPRGBanks() {
	switch m.prgMode {
	case 0, 1:
		m.prg.setBank(0x0000, 0x8000, int(m.prgBank>>1))
	case 2:
		m.prg.setBank(0x0000, 0x4000, 0)
		m.prg.setBank(0x4000, 0x4000, int(m.prgBank))
	case 3:
		m.prg.setBank(0x0000, 0x4000, int(m.prgBank))
		m.prg.setBank(0x4000, 0x4000, -1)
	}
}

func (m *mmc1Mapper) applyCHRBanks() {
	if m.chrMode == 0 {
		m.chr.setBank(0x0000, 0x2000, int(m.chrBank0>>1))
	} else {
		m.chr.setBank(0x0000, 0x1000, int(m.chrBank0))
		m.chr.setBank(0x1000, 0x1000, int(m.chrBank1))
	}
}

func (m *mmc1Mapper) ReadCHR(address uint16) uint8 {
	return m.chr.read(address)
}

func (m *mmc1Mapper) WriteCHR(address uint16, value uint8) {
	if m.cart.hasCHRRAM {
		m.chr.write(address, value)
	}
}
