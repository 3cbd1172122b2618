// Package bus implements the NES CPU-visible address space: internal RAM,
// the PPU/APU register windows, controller ports, and cartridge routing.
package bus

// PPUInterface defines the interface for PPU register access ($2000-$2007,
// mirrored every 8 bytes through $3FFF).
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// APUInterface defines the interface for APU register access
// ($4000-$4013, $4015, $4017).
type APUInterface interface {
	WriteRegister(address uint16, value uint8)
	ReadStatus() uint8
}

// CartridgeInterface defines the interface for cartridge access
// ($4020-$FFFF, forwarded to the active mapper).
type CartridgeInterface interface {
	ReadPRG(address uint16) uint8
	WritePRG(address uint16, value uint8)
	ReadCHR(address uint16) uint8
	WriteCHR(address uint16, value uint8)
}

// Bus is the NES system bus: 2KB internal RAM mirrored across $0000-$1FFF,
// PPU registers mirrored across $2000-$3FFF, the APU/IO register window at
// $4000-$4017, and the cartridge at $4020-$FFFF.
type Bus struct {
	ram [0x800]uint8

	ppu  PPUInterface
	apu  APUInterface
	cart CartridgeInterface

	dmaCallback func(uint8)

	// openBusValue is the last value that appeared on the bus, returned
	// for reads of write-only or unmapped locations.
	openBusValue uint8

	controllers [2]controllerPort
	strobe      bool
}

// controllerPort models one NES controller's serial shift register. No
// physical input device is wired to it; SetButtons is the only writer.
type controllerPort struct {
	buttons uint8 // live button state, bit per button (A,B,Select,Start,Up,Down,Left,Right)
	shift   uint8 // latched copy being shifted out
	reads   uint8 // reads since last strobe-driven latch, for the post-8th-read all-ones behavior
}

// New creates a Bus wired to the given PPU, APU, and cartridge.
func New(ppu PPUInterface, apu APUInterface, cart CartridgeInterface) *Bus {
	b := &Bus{
		ppu:  ppu,
		apu:  apu,
		cart: cart,
	}
	b.powerUpRAM()
	return b
}

// SetDMACallback sets the callback invoked on a write to $4014 (OAM DMA).
// If unset, Write performs the DMA transfer immediately.
func (b *Bus) SetDMACallback(callback func(uint8)) {
	b.dmaCallback = callback
}

// SetButtons sets the live button state for a controller port (0 or 1).
// Bit order, LSB first: A, B, Select, Start, Up, Down, Left, Right.
func (b *Bus) SetButtons(port int, state uint8) {
	if port < 0 || port > 1 {
		return
	}
	b.controllers[port].buttons = state
}

// powerUpRAM sets internal RAM to the NES's documented power-up pattern:
// every byte $FF except for four bytes that reliably settle low on real
// hardware.
func (b *Bus) powerUpRAM() {
	for i := range b.ram {
		b.ram[i] = 0xFF
	}
	b.ram[0x008] = 0xF7
	b.ram[0x009] = 0xEF
	b.ram[0x00A] = 0xDF
	b.ram[0x00F] = 0xBF
}

// Read reads a byte from the given CPU address.
func (b *Bus) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = b.ram[address&0x07FF]

	case address < 0x4000:
		value = b.ppu.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4015:
			value = b.apu.ReadStatus()
		case 0x4016:
			value = b.readController(0)
		case 0x4017:
			value = b.readController(1)
		default:
			// Write-only APU registers and the $4018-$401F test range:
			// open bus.
			value = b.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		if b.cart != nil {
			value = b.cart.ReadPRG(address)
		} else {
			value = b.openBusValue
		}

	case address < 0x8000:
		// $4020-$5FFF: cartridge expansion area, unmapped by any mapper
		// this emulator implements.
		value = b.openBusValue

	default:
		if b.cart != nil {
			value = b.cart.ReadPRG(address)
		} else {
			value = b.openBusValue
		}
	}

	b.openBusValue = value
	return value
}

// Write writes a byte to the given CPU address.
func (b *Bus) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		b.ram[address&0x07FF] = value

	case address < 0x4000:
		b.ppu.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch {
		case address == 0x4014:
			if b.dmaCallback != nil {
				b.dmaCallback(value)
			} else {
				b.performOAMDMA(value)
			}
		case address == 0x4016:
			b.writeController(value)
		case address >= 0x4000 && address <= 0x4013:
			b.apu.WriteRegister(address, value)
		case address == 0x4015:
			b.apu.WriteRegister(address, value)
		case address == 0x4017:
			b.apu.WriteRegister(address, value)
		}
		// $4018-$401F (APU/IO test mode) is ignored.

	case address >= 0x6000 && address < 0x8000:
		if b.cart != nil {
			b.cart.WritePRG(address, value)
		}

	case address < 0x8000:
		// $4020-$5FFF unmapped: writes are discarded.

	default:
		if b.cart != nil {
			b.cart.WritePRG(address, value)
		}
	}
}

// performOAMDMA copies 256 bytes starting at page<<8 into OAM through the
// PPU's $2004 register, the fallback path used when no DMA callback (which
// would otherwise account for CPU stall cycles) has been installed.
func (b *Bus) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		b.ppu.WriteRegister(0x2004, b.Read(base+i))
	}
}

// writeController handles the $4016 strobe register. While strobe is high,
// both ports continuously reload their shift register from live button
// state; the falling edge latches the state that will be shifted out.
func (b *Bus) writeController(value uint8) {
	strobe := value&1 != 0
	if strobe || b.strobe {
		b.controllers[0].shift = b.controllers[0].buttons
		b.controllers[1].shift = b.controllers[1].buttons
		b.controllers[0].reads = 0
		b.controllers[1].reads = 0
	}
	b.strobe = strobe
}

// readController pops one button bit from the given port's shift register.
// Past the 8th read since the last latch, hardware returns 1 forever until
// re-strobed.
func (b *Bus) readController(port int) uint8 {
	c := &b.controllers[port]
	if b.strobe {
		c.shift = c.buttons
		c.reads = 0
	}

	var bit uint8 = 1
	if c.reads < 8 {
		bit = c.shift & 1
		c.shift >>= 1
	}
	c.reads++

	// Bits 5-7 come from open bus and bits 1-4 read as zero, matching real
	// controller read-back.
	return (b.openBusValue & 0xE0) | bit
}
