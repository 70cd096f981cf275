// Package config loads the token shell's YAML configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives the virtual token shell.
type Config struct {
	// StoragePath roots the persistent object store.
	StoragePath string `yaml:"storage_path"`

	// Serial is the card serial number as eight hex digits.
	Serial string `yaml:"serial"`

	// Manufacturer is the two-byte manufacturer id as four hex digits.
	// FF00 to FFFE are reserved for testing per the OpenPGP card spec.
	Manufacturer string `yaml:"manufacturer"`

	// Debug enables the APDU trace log.
	Debug bool `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		StoragePath:  "pgp-token-store",
		Serial:       "00000001",
		Manufacturer: "FFFE",
	}
}

// Load reads a configuration file. A missing file yields the defaults; an
// unreadable or malformed one is an error.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// SerialBytes decodes the serial field.
func (c *Config) SerialBytes() ([4]byte, error) {
	var out [4]byte
	raw, err := hex.DecodeString(c.Serial)
	if err != nil || len(raw) != 4 {
		return out, fmt.Errorf("serial must be 8 hex digits, got %q", c.Serial)
	}
	copy(out[:], raw)
	return out, nil
}

// ManufacturerBytes decodes the manufacturer field.
func (c *Config) ManufacturerBytes() ([2]byte, error) {
	var out [2]byte
	raw, err := hex.DecodeString(c.Manufacturer)
	if err != nil || len(raw) != 2 {
		return out, fmt.Errorf("manufacturer must be 4 hex digits, got %q", c.Manufacturer)
	}
	copy(out[:], raw)
	return out, nil
}
