package emu

import (
	"errors"
	"fmt"
	"time"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
)

const (
	DefaultMemorySize      = 4096
	DefaultCyclesPerSecond = 2000
	DefaultChunkIntervalMs = 100
	DefaultTimerHz         = 60
)

// Config contains settings that affect emulation behavior.
type Config struct {
	MemorySize      int
	ProgramStart    uint16
	FontStart       uint16
	CyclesPerSecond int
	ChunkIntervalMs int // how often a batch of cycles runs
	StackSize       int
	TimerHz         int
	Quirks          cpu.Quirks
	Random          func() byte // CXNN source; nil uses math/rand/v2
}

func DefaultConfig() Config {
	return Config{
		MemorySize:      DefaultMemorySize,
		ProgramStart:    cpu.DefaultProgramStart,
		FontStart:       cpu.DefaultFontStart,
		CyclesPerSecond: DefaultCyclesPerSecond,
		ChunkIntervalMs: DefaultChunkIntervalMs,
		StackSize:       cpu.DefaultStackSize,
		TimerHz:         DefaultTimerHz,
		Quirks:          cpu.DefaultQuirks(),
	}
}

// Validate rejects settings the machine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MemorySize <= 0 || c.MemorySize > 0x10000:
		return fmt.Errorf("memory size %d out of range (1..65536)", c.MemorySize)
	case int(c.ProgramStart) >= c.MemorySize:
		return fmt.Errorf("program start %#04x outside memory", c.ProgramStart)
	case int(c.FontStart)+len(DefaultFont) > c.MemorySize:
		return fmt.Errorf("font at %#04x does not fit in memory", c.FontStart)
	case c.CyclesPerSecond <= 0:
		return errors.New("cycles per second must be positive")
	case c.ChunkIntervalMs <= 0:
		return errors.New("chunk interval must be positive")
	case c.CyclesPerInterval() < 1:
		return fmt.Errorf("%d cycles/s at %d ms per chunk runs no cycles", c.CyclesPerSecond, c.ChunkIntervalMs)
	case c.StackSize <= 0:
		return errors.New("stack size must be positive")
	case c.TimerHz <= 0:
		return errors.New("timer rate must be positive")
	}
	return nil
}

// CyclesPerInterval is the number of instructions per scheduler batch.
func (c Config) CyclesPerInterval() int {
	return c.CyclesPerSecond * c.ChunkIntervalMs / 1000
}

// ChunkInterval is the wall-clock period of one batch.
func (c Config) ChunkInterval() time.Duration {
	return time.Duration(c.ChunkIntervalMs) * time.Millisecond
}

// TimerInterval is the period of one delay/sound timer tick.
func (c Config) TimerInterval() time.Duration {
	return time.Second / time.Duration(c.TimerHz)
}

// ProgramCapacity is the number of bytes a program may occupy.
func (c Config) ProgramCapacity() int {
	return c.MemorySize - int(c.ProgramStart)
}

func (c Config) cpuConfig() cpu.Config {
	return cpu.Config{
		ProgramStart: c.ProgramStart,
		FontStart:    c.FontStart,
		StackSize:    c.StackSize,
		Quirks:       c.Quirks,
		Random:       c.Random,
	}
}
