// Command chrview opens an Ebitengine window that renders a cartridge's
// CHR-ROM/RAM as a sheet of 8x8 tiles, reading pattern data through the
// same Mapper.ReadCHR path the PPU would use. It does not touch PPU
// rendering or timing; it is a static tile browser for inspecting a
// cartridge's graphics data outside of gameplay.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"nesgo/internal/cartridge"
	"nesgo/internal/config"
)

const (
	tilesPerRow  = 16
	tileSize     = 8
	bankSize     = 0x1000 // 4KB = 256 tiles, one CHR "bank" as shown on screen
	tilesPerBank = bankSize / 16
)

// nesPalette is a fixed 4-shade grayscale stand-in for the real PPU
// palette, which this viewer has no access to (the PPU never decodes
// palette RAM in this emulator).
var nesPalette = [4]color.RGBA{
	{0x00, 0x00, 0x00, 0xFF},
	{0x60, 0x60, 0x60, 0xFF},
	{0xB0, 0xB0, 0xB0, 0xFF},
	{0xFF, 0xFF, 0xFF, 0xFF},
}

type game struct {
	cart      *cartridge.Cartridge
	sheet     *ebiten.Image
	bank      int
	bankCount int
	scale     int
	dirty     bool
}

func newGame(cart *cartridge.Cartridge, scale int) *game {
	// ReadCHR only reaches the 8KB pattern window the mapper has mapped, so
	// paging covers that window's two 4KB halves and no other CHR-ROM bank.
	chrSize := cart.CHRSize()
	if chrSize > 0x2000 {
		chrSize = 0x2000
	}
	bankCount := chrSize / bankSize
	if bankCount < 1 {
		bankCount = 1
	}
	g := &game{
		cart:      cart,
		sheet:     ebiten.NewImage(tilesPerRow*tileSize, tilesPerBank/tilesPerRow*tileSize),
		bankCount: bankCount,
		scale:     scale,
		dirty:     true,
	}
	return g
}

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyRight) || inpututil.IsKeyJustPressed(ebiten.KeyD) {
		g.bank++
		g.dirty = true
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyLeft) || inpututil.IsKeyJustPressed(ebiten.KeyA) {
		g.bank--
		g.dirty = true
	}
	if g.bank < 0 {
		g.bank = 0
	}
	if g.bank >= g.bankCount {
		g.bank = g.bankCount - 1
	}
	if g.dirty {
		g.render()
		g.dirty = false
	}
	return nil
}

// render decodes the current 4KB CHR window into the tile sheet image.
// Each tile is two bit-planes of 8 bytes; pixel color index is
// (hi<<1)|lo, looked up in the grayscale stand-in palette.
func (g *game) render() {
	base := uint16(g.bank * bankSize)
	for tile := 0; tile < tilesPerBank; tile++ {
		tileAddr := base + uint16(tile*16)
		tx := (tile % tilesPerRow) * tileSize
		ty := (tile / tilesPerRow) * tileSize
		for row := 0; row < 8; row++ {
			lo := g.cart.ReadCHR(tileAddr + uint16(row))
			hi := g.cart.ReadCHR(tileAddr + uint16(row) + 8)
			for col := 0; col < 8; col++ {
				bit := uint(7 - col)
				pixel := ((hi>>bit)&1)<<1 | (lo>>bit)&1
				g.sheet.Set(tx+col, ty+row, nesPalette[pixel])
			}
		}
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{0x20, 0x20, 0x20, 0xFF})
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.sheet, op)
	ebitenutil.DebugPrint(screen, fmt.Sprintf("bank %d (mapper %d)  arrows: switch bank  esc: quit", g.bank, g.cart.MapperID()))
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return tilesPerRow * tileSize * g.scale, (tilesPerBank / tilesPerRow) * tileSize * g.scale
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("chrview", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "path to a JSON config file")
	scaleFlag := fs.Int("scale", 0, "pixel scale factor (0 = use config default)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: chrview [flags] <rom.nes>\n\nflags:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Printf("config: %v", err)
			return 1
		}
		cfg = loaded
	}
	scale := cfg.Chrview.Scale
	if *scaleFlag > 0 {
		scale = *scaleFlag
	}
	if scale <= 0 {
		scale = 3
	}

	cart, err := cartridge.LoadFromFile(fs.Arg(0))
	if err != nil {
		log.Printf("load rom: %v", err)
		return 2
	}

	g := newGame(cart, scale)
	ebiten.SetWindowTitle("chrview - " + fs.Arg(0))
	ebiten.SetWindowSize(tilesPerRow*tileSize*scale, (tilesPerBank/tilesPerRow)*tileSize*scale)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	if err := ebiten.RunGame(g); err != nil {
		log.Printf("run: %v", err)
		return 3
	}
	return 0
}
