package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
)

const (
	CurrentVersion = 1
	appDirName     = "chip8emu"
	settingsFile   = "settings.json"
)

// Settings are the front-end preferences kept between runs. Machine state
// is never persisted.
type Settings struct {
	Version         int         `json:"version"`
	ROMsDir         string      `json:"roms-dir,omitempty"`
	LastROM         string      `json:"last-rom,omitempty"`
	Scale           int         `json:"scale,omitempty"`
	Muted           bool        `json:"muted,omitempty"`
	Volume          float64     `json:"volume,omitempty"`
	OnColor         string      `json:"on-color,omitempty"`  // #RRGGBB
	OffColor        string      `json:"off-color,omitempty"` // #RRGGBB
	CyclesPerSecond int         `json:"cycles-per-second,omitempty"`
	Quirks          *cpu.Quirks `json:"quirks,omitempty"`
}

// Defaults fills missing fields with reasonable defaults.
func (s *Settings) Defaults() {
	if s.Version == 0 {
		s.Version = CurrentVersion
	}
	if s.ROMsDir == "" {
		s.ROMsDir = "roms"
	}
	if s.Scale <= 0 {
		s.Scale = 10
	}
	if s.Volume <= 0 {
		s.Volume = 0.25
	}
	if _, err := ParseColor(s.OnColor); err != nil {
		s.OnColor = "#E8E8E8"
	}
	if _, err := ParseColor(s.OffColor); err != nil {
		s.OffColor = "#101418"
	}
	if s.CyclesPerSecond <= 0 {
		s.CyclesPerSecond = 2000
	}
	if s.Quirks == nil {
		q := cpu.DefaultQuirks()
		s.Quirks = &q
	}
}

// StartupROM picks the ROM to open at launch: the explicit path when given,
// otherwise the last ROM loaded if it still exists.
func (s Settings) StartupROM(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if s.LastROM == "" {
		return ""
	}
	if fi, err := os.Stat(s.LastROM); err != nil || fi.IsDir() {
		return ""
	}
	return s.LastROM
}

// Colors returns the lit and unlit pixel colours.
func (s Settings) Colors() (on, off color.RGBA) {
	on, _ = ParseColor(s.OnColor)
	off, _ = ParseColor(s.OffColor)
	return on, off
}

// ParseColor accepts #RRGGBB (the # is optional).
func ParseColor(hex string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", hex, err)
	}
	return color.RGBA{R: byte(v >> 16), G: byte(v >> 8), B: byte(v), A: 0xFF}, nil
}

// Dir returns the settings directory, creating it if needed. On Linux this
// is ~/.config/chip8emu.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, appDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultPath is the settings file inside Dir.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFile), nil
}

// Load reads settings from path. A missing file or a file written by a
// different version yields defaults without error.
func Load(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.Defaults()
		return s, nil
	}
	if err != nil {
		s.Defaults()
		return s, fmt.Errorf("reading settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		s = Settings{}
		s.Defaults()
		return s, fmt.Errorf("decoding settings: %w", err)
	}
	if s.Version != CurrentVersion {
		s = Settings{}
	}
	s.Defaults()
	return s, nil
}

// Save writes s as indented JSON.
func Save(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
