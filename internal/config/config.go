// Package config loads the small JSON settings file nesgo's command-line
// tools accept, in the style of the emulator this was adapted from:
// plain encoding/json over a tagged struct, no config library.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the settings shared by cmd/nesgo and cmd/chrview.
type Config struct {
	// Trace enables CPU instruction tracing to stdout.
	Trace bool `json:"trace"`

	// SRAMPath, if set, is where battery-backed cartridges persist their
	// PRG-RAM between runs. Empty disables persistence.
	SRAMPath string `json:"sram_path"`

	Chrview ChrviewConfig `json:"chrview"`
}

// ChrviewConfig holds cmd/chrview's settings.
type ChrviewConfig struct {
	// Scale is the integer pixel scale factor for the tile sheet window.
	Scale int `json:"scale"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Trace:    false,
		SRAMPath: "",
		Chrview: ChrviewConfig{
			Scale: 3,
		},
	}
}

// Load reads and parses a JSON config file, defaulting any field the file
// doesn't set.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
