// Package config loads the YAML configuration shared by the
// provisioning, inspection, and firmware-loop CLIs: where the flash
// image lives, which serial port to open, and the device's UID.
package config

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk provisioning/runtime configuration.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Serial SerialConfig `yaml:"serial"`
}

// DeviceConfig names the flash image backing a NoviSigner instance and
// its 12-byte hex-encoded UID.
type DeviceConfig struct {
	FlashImagePath string `yaml:"flash_image_path"`
	UIDHex         string `yaml:"uid_hex"`
}

// SerialConfig configures the real serial transport used by
// cmd/novisigner.
type SerialConfig struct {
	Port        string `yaml:"port"`
	BaudRate    int    `yaml:"baud_rate"`
	ReadTimeout int    `yaml:"read_timeout_seconds"`
}

// Load reads, decodes, resolves relative paths in, and validates the
// configuration at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UID decodes Device.UIDHex into the fixed 12-byte chip identifier.
func (c *Config) UID() ([12]byte, error) {
	var uid [12]byte
	raw, err := hex.DecodeString(strings.TrimSpace(c.Device.UIDHex))
	if err != nil {
		return uid, fmt.Errorf("config.device.uid_hex: %w", err)
	}
	if len(raw) != len(uid) {
		return uid, fmt.Errorf("config.device.uid_hex: want %d bytes, got %d", len(uid), len(raw))
	}
	copy(uid[:], raw)
	return uid, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Device.FlashImagePath) == "" {
		return fmt.Errorf("config.device.flash_image_path is required")
	}
	if _, err := c.UID(); err != nil {
		return err
	}
	if c.Serial.Port != "" && c.Serial.BaudRate <= 0 {
		return fmt.Errorf("config.serial.baud_rate must be > 0 when a port is set")
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	configDir := filepath.Dir(configPath)
	c.Device.FlashImagePath = resolvePath(configDir, c.Device.FlashImagePath)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}
