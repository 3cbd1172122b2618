package bus

import "testing"

type fakePPU struct {
	regs [8]uint8
}

func (p *fakePPU) ReadRegister(address uint16) uint8 { return p.regs[address&7] }
func (p *fakePPU) WriteRegister(address uint16, value uint8) { p.regs[address&7] = value }

type fakeAPU struct {
	status uint8
	writes map[uint16]uint8
}

func newFakeAPU() *fakeAPU { return &fakeAPU{writes: make(map[uint16]uint8)} }

func (a *fakeAPU) WriteRegister(address uint16, value uint8) { a.writes[address] = value }
func (a *fakeAPU) ReadStatus() uint8                          { return a.status }

type fakeCart struct {
	prg map[uint16]uint8
	chr map[uint16]uint8
}

func newFakeCart() *fakeCart {
	return &fakeCart{prg: make(map[uint16]uint8), chr: make(map[uint16]uint8)}
}

func (c *fakeCart) ReadPRG(address uint16) uint8          { return c.prg[address] }
func (c *fakeCart) WritePRG(address uint16, value uint8)  { c.prg[address] = value }
func (c *fakeCart) ReadCHR(address uint16) uint8          { return c.chr[address] }
func (c *fakeCart) WriteCHR(address uint16, value uint8)  { c.chr[address] = value }

func newTestBus() (*Bus, *fakePPU, *fakeAPU, *fakeCart) {
	ppu := &fakePPU{}
	apu := newFakeAPU()
	cart := newFakeCart()
	return New(ppu, apu, cart), ppu, apu, cart
}

func TestRAMMirroring(t *testing.T) {
	b, _, _, _ := newTestBus()
	b.Write(0x0001, 0x42)
	for _, mirror := range []uint16{0x0001, 0x0801, 0x1001, 0x1801} {
		if got := b.Read(mirror); got != 0x42 {
			t.Errorf("expected RAM mirror at 0x%04X to read 0x42, got 0x%02X", mirror, got)
		}
	}
}

func TestPowerUpRAMPattern(t *testing.T) {
	b, _, _, _ := newTestBus()
	if b.Read(0x0000) != 0xFF {
		t.Errorf("expected RAM to power up to 0xFF")
	}
	if b.Read(0x0008) != 0xF7 || b.Read(0x0009) != 0xEF || b.Read(0x000A) != 0xDF || b.Read(0x000F) != 0xBF {
		t.Errorf("expected the four documented power-up exceptions to hold")
	}
}

func TestPPURegisterMirroring(t *testing.T) {
	b, ppu, _, _ := newTestBus()
	b.Write(0x2000, 0x11)
	if ppu.regs[0] != 0x11 {
		t.Fatalf("expected write to reach ppu register 0")
	}
	b.Write(0x2008, 0x22) // mirrors 0x2000
	if ppu.regs[0] != 0x22 {
		t.Fatalf("expected 0x2008 to mirror register 0, got 0x%02X", ppu.regs[0])
	}
	if got := b.Read(0x3FF8); got != 0x22 {
		t.Fatalf("expected 0x3FF8 to mirror register 0, got 0x%02X", got)
	}
}

func TestCartridgeRouting(t *testing.T) {
	b, _, _, cart := newTestBus()
	cart.prg[0x8000] = 0x99
	if got := b.Read(0x8000); got != 0x99 {
		t.Fatalf("expected cartridge PRG routing, got 0x%02X", got)
	}
	b.Write(0x6000, 0x55)
	if cart.prg[0x6000] != 0x55 {
		t.Fatalf("expected PRG-RAM write to reach the cartridge")
	}
}

func TestControllerShiftRegister(t *testing.T) {
	b, _, _, _ := newTestBus()
	// A, B, Select, Start, Up, Down, Left, Right, LSB first.
	b.SetButtons(0, 0b10100101)
	b.Write(0x4016, 1) // strobe high: continuously reload
	b.Write(0x4016, 0) // strobe low: latch and begin shifting

	var bits []uint8
	for i := 0; i < 8; i++ {
		bits = append(bits, b.Read(0x4016)&1)
	}
	want := []uint8{1, 0, 1, 0, 0, 1, 0, 1}
	for i, w := range want {
		if bits[i] != w {
			t.Fatalf("bit %d: expected %d, got %d", i, w, bits[i])
		}
	}

	// Reads past the 8th return 1 until re-strobed.
	for i := 0; i < 3; i++ {
		if got := b.Read(0x4016) & 1; got != 1 {
			t.Fatalf("expected 1 for reads past the 8th, got %d", got)
		}
	}
}

func TestControllerStrobeHeldReloadsEveryRead(t *testing.T) {
	b, _, _, _ := newTestBus()
	b.SetButtons(0, 0xFF)
	b.Write(0x4016, 1) // strobe held high
	for i := 0; i < 5; i++ {
		if got := b.Read(0x4016) & 1; got != 1 {
			t.Fatalf("expected bit 0 (A) to read back 1 repeatedly while strobed, got %d", got)
		}
	}
}

func TestOAMDMACallback(t *testing.T) {
	b, _, _, _ := newTestBus()
	var called bool
	var gotPage uint8
	b.SetDMACallback(func(page uint8) {
		called = true
		gotPage = page
	})
	b.Write(0x4014, 0x02)
	if !called {
		t.Fatalf("expected the DMA callback to fire on a 0x4014 write")
	}
	if gotPage != 0x02 {
		t.Fatalf("expected page 0x02, got 0x%02X", gotPage)
	}
}
