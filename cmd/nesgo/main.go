// Command nesgo runs the core of an NES emulator against an iNES ROM:
// the 6502/2A03 CPU, the system bus, and the NROM/CNROM/AXROM/MMC1
// cartridge mappers. It has no video or audio output; the PPU and APU
// are exposed only as the register windows the CPU sees.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"nesgo/internal/cartridge"
	"nesgo/internal/config"
	"nesgo/internal/nes"
	"nesgo/internal/version"
)

const (
	exitOK          = 0
	exitUsageError  = 1
	exitLoadFailure = 2
	exitCPUHalt     = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("nesgo", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	trace := fs.Bool("trace", false, "log every CPU instruction to stdout")
	configPath := fs.String("config", "", "path to a JSON config file")
	showVersion := fs.Bool("version", false, "print version information and exit")
	cycles := fs.Uint64("cycles", 0, "stop after this many CPU cycles (0 = run until halt)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: nesgo [flags] <rom.nes>\n\nflags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsageError
	}

	if *showVersion {
		fmt.Println(version.GetDetailedVersion())
		return exitOK
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsageError
	}
	romPath := fs.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Printf("config: %v", err)
			return exitUsageError
		}
		cfg = loaded
	}
	if *trace {
		cfg.Trace = true
	}

	cart, err := cartridge.LoadFromFile(romPath)
	if err != nil {
		log.Printf("load rom: %v", err)
		return exitLoadFailure
	}
	log.Printf("loaded %s: mapper %d, %s", romPath, cart.MapperID(), mirrorName(cart.GetMirrorMode()))

	if cfg.SRAMPath != "" && cart.HasBattery() {
		if data, err := os.ReadFile(cfg.SRAMPath); err == nil && len(data) == 0x2000 {
			var sram [0x2000]uint8
			copy(sram[:], data)
			cart.SetPRGRAM(sram)
			log.Printf("restored battery save from %s", cfg.SRAMPath)
		}
	}

	emu := nes.New()
	emu.LoadCartridge(cart)
	emu.CPU.EnableDebugLogging(cfg.Trace)

	var runErr error
	if *cycles > 0 {
		runErr = emu.RunCycles(*cycles)
	} else {
		runErr = emu.Run(nil)
	}

	if cfg.SRAMPath != "" && cart.HasBattery() {
		sram := cart.PRGRAM()
		if err := os.WriteFile(cfg.SRAMPath, sram[:], 0o644); err != nil {
			log.Printf("save battery ram: %v", err)
		}
	}

	if runErr != nil {
		var halt *nes.CpuHalt
		if errors.As(runErr, &halt) {
			log.Printf("halted: %v (cycle %d)", halt, emu.TotalCycles())
			return exitCPUHalt
		}
		log.Printf("run: %v", runErr)
		return exitCPUHalt
	}

	log.Printf("ran %d cycles", emu.TotalCycles())
	return exitOK
}

func mirrorName(m cartridge.MirrorMode) string {
	switch m {
	case cartridge.MirrorHorizontal:
		return "horizontal mirroring"
	case cartridge.MirrorVertical:
		return "vertical mirroring"
	case cartridge.MirrorSingleScreen0:
		return "single-screen (low)"
	case cartridge.MirrorSingleScreen1:
		return "single-screen (high)"
	case cartridge.MirrorFourScreen:
		return "four-screen"
	default:
		return "unknown mirroring"
	}
}
