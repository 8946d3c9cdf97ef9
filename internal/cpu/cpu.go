package cpu

import (
	"math/rand/v2"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/bus"
)

// Display is the framebuffer the CPU draws into.
type Display interface {
	Clear()
	// TogglePixel XORs the pixel and reports whether it went from set to unset.
	TogglePixel(x, y int) bool
	Width() int
	Height() int
}

// Input is the keypad the CPU queries.
type Input interface {
	IsKeyPressed(key byte) bool
	// ArmKeyRelease asks the keypad to report the next key release once.
	ArmKeyRelease()
}

// Quirks selects between historically divergent interpreter behaviors.
type Quirks struct {
	CollisionSetsVF bool // DXYN writes VF=1 on collision, VF=0 otherwise
	LogicResetsVF   bool // 8XY1/8XY2/8XY3 clear VF
	ShiftUsesVY     bool // 8XY6/8XYE shift VY into VX instead of VX in place
}

// DefaultQuirks returns the behavior of the original COSMAC VIP interpreter.
func DefaultQuirks() Quirks {
	return Quirks{CollisionSetsVF: true, LogicResetsVF: true, ShiftUsesVY: true}
}

// Config contains settings fixed at construction.
type Config struct {
	ProgramStart uint16
	FontStart    uint16
	StackSize    int
	Quirks       Quirks
	Random       func() byte // source for CXNN; nil uses math/rand/v2
}

const (
	DefaultProgramStart = 0x200
	DefaultFontStart    = 0x050
	DefaultStackSize    = 16
	FontGlyphSize       = 5
)

// RunState is the FX0A suspension state.
type RunState uint8

const (
	Running RunState = iota
	AwaitingKey
)

func (s RunState) String() string {
	if s == AwaitingKey {
		return "awaiting key"
	}
	return "running"
}

// CPU is the CHIP-8 register file, call stack, timers and executor.
type CPU struct {
	V      [16]byte
	I      uint16
	PC     uint16
	Timers Timers

	stack  []uint16
	state  RunState
	keyReg byte
	cycles uint64

	cfg     Config
	bus     *bus.Bus
	display Display
	input   Input
}

func New(cfg Config, b *bus.Bus, d Display, in Input) *CPU {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.Random == nil {
		cfg.Random = func() byte { return byte(rand.IntN(256)) }
	}
	c := &CPU{
		cfg:     cfg,
		bus:     b,
		display: d,
		input:   in,
		stack:   make([]uint16, 0, cfg.StackSize),
	}
	c.PC = cfg.ProgramStart
	return c
}

// Reset zeroes memory, registers, stack and timers in place and restores PC
// to the program start address.
func (c *CPU) Reset() {
	c.bus.Clear()
	c.V = [16]byte{}
	c.I = 0
	c.PC = c.cfg.ProgramStart
	c.stack = c.stack[:0]
	c.Timers.reset()
	c.state = Running
	c.keyReg = 0
	c.cycles = 0
}

// Bus exposes the underlying memory for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// Quirks returns the active quirk set.
func (c *CPU) Quirks() Quirks { return c.cfg.Quirks }

// SetQuirks replaces the quirk set; takes effect on the next instruction.
func (c *CPU) SetQuirks(q Quirks) { c.cfg.Quirks = q }

// State returns the FX0A suspension state.
func (c *CPU) State() RunState { return c.state }

// AwaitingKey reports whether execution is paused by FX0A.
func (c *CPU) AwaitingKey() bool { return c.state == AwaitingKey }

// Cycles returns the number of instructions executed since the last reset.
func (c *CPU) Cycles() uint64 { return c.cycles }

// StackDepth returns the number of pending return addresses.
func (c *CPU) StackDepth() int { return len(c.stack) }

// ResumeWithKey completes a pending FX0A: the key is written to the recorded
// register and execution resumes. It reports false when nothing was pending.
func (c *CPU) ResumeWithKey(key byte) bool {
	if c.state != AwaitingKey {
		return false
	}
	c.V[c.keyReg] = key
	c.state = Running
	return true
}

// Snapshot is a copy of the register file and stack for inspection.
type Snapshot struct {
	V           [16]byte
	I           uint16
	PC          uint16
	Stack       []uint16
	Delay       byte
	Sound       byte
	AwaitingKey bool
	KeyRegister byte
	Cycles      uint64
}

func (c *CPU) Snapshot() Snapshot {
	s := Snapshot{
		V:           c.V,
		I:           c.I,
		PC:          c.PC,
		Stack:       append([]uint16(nil), c.stack...),
		Delay:       c.Timers.Delay,
		Sound:       c.Timers.Sound,
		AwaitingKey: c.state == AwaitingKey,
		KeyRegister: c.keyReg,
		Cycles:      c.cycles,
	}
	return s
}

func (c *CPU) push(addr uint16) error {
	if len(c.stack) >= c.cfg.StackSize {
		return ErrStackOverflow
	}
	c.stack = append(c.stack, addr)
	return nil
}

func (c *CPU) pop() (uint16, error) {
	n := len(c.stack)
	if n == 0 {
		return 0, ErrStackUnderflow
	}
	addr := c.stack[n-1]
	c.stack = c.stack[:n-1]
	return addr, nil
}
