package ui

import (
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
)

// Config contains window/input/audio related settings.
type Config struct {
	Title        string          // window title prefix
	Settings     config.Settings // persisted preferences
	SettingsPath string          // where Settings are saved; empty disables saving
	Keymap       Keymap
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "chip8"
	}
	c.Settings.Defaults()
	if c.Keymap == nil {
		c.Keymap = DefaultKeymap()
	}
}
