package emu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/retroenv/retrogolib/log"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
)

var (
	ErrRunning    = errors.New("machine is already running")
	ErrBreakpoint = errors.New("stopped at breakpoint")
	ErrNoROM      = errors.New("no rom loaded")
)

// Hook observes execution at instruction boundaries. BeforeStep returning
// true stops the machine before the instruction at c.PC runs; the next step
// after such a stop bypasses the hook once so execution can continue.
type Hook interface {
	BeforeStep(c *cpu.CPU) bool
	AfterStep(pc, opcode uint16, err error)
}

// Machine wires the CPU to memory, display and keypad and drives it either
// from the caller (Step, RunChunk, Advance) or from its own scheduler loop
// (Start/Stop). All methods are safe for concurrent use.
type Machine struct {
	mu  sync.Mutex
	cfg Config
	log *log.Logger

	bus  *bus.Bus
	cpu  *cpu.CPU
	fb   *display.Framebuffer
	keys *keypad.Keypad
	rom  *rom.Image

	hook     Hook
	skipHook bool
	err      error // fault that halted execution; cleared by Reset

	// accumulated time not yet turned into chunks/ticks by Advance
	chunkAcc time.Duration
	timerAcc time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, logger *log.Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid machine config: %w", err)
	}
	if logger == nil {
		logger = log.NewWithConfig(log.DefaultConfig())
	}
	m := &Machine{
		cfg:  cfg,
		log:  logger,
		bus:  bus.New(cfg.MemorySize),
		fb:   display.New(display.DefaultWidth, display.DefaultHeight),
		keys: keypad.New(),
	}
	m.cpu = cpu.New(cfg.cpuConfig(), m.bus, m.fb, m.keys)
	return m, nil
}

// Config returns the configuration the machine was built with, including
// quirk changes applied since.
func (m *Machine) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.cfg
	c.Quirks = m.cpu.Quirks()
	return c
}

// SetQuirks changes interpreter quirks; effective from the next instruction.
func (m *Machine) SetQuirks(q cpu.Quirks) {
	m.mu.Lock()
	m.cpu.SetQuirks(q)
	m.mu.Unlock()
}

// SetHook installs a debugger hook, or removes it when h is nil.
func (m *Machine) SetHook(h Hook) {
	m.mu.Lock()
	m.hook = h
	m.skipHook = false
	m.mu.Unlock()
}

// Load copies data into memory at addr. Nothing is written when the range
// does not fit.
func (m *Machine) Load(addr uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bus.Load(addr, data)
}

// LoadFont copies glyph data into memory at addr.
func (m *Machine) LoadFont(addr uint16, data []byte) error {
	return m.Load(addr, data)
}

// LoadROM resets the machine, installs the default font and copies the
// program to the program start address. The image is kept for Reload.
func (m *Machine) LoadROM(img *rom.Image) error {
	if err := img.Validate(m.cfg.ProgramCapacity()); err != nil {
		return fmt.Errorf("loading %s: %w", img.Name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	if err := m.installLocked(img); err != nil {
		return err
	}
	m.rom = img
	m.log.Info("ROM loaded",
		log.String("name", img.Name),
		log.Int("size", img.Size()),
		log.Hex("crc32", img.CRC32))
	return nil
}

// Reload resets and loads the current image again.
func (m *Machine) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rom == nil {
		return ErrNoROM
	}
	m.resetLocked()
	return m.installLocked(m.rom)
}

// ROM returns the loaded image, nil if none.
func (m *Machine) ROM() *rom.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rom
}

func (m *Machine) installLocked(img *rom.Image) error {
	if err := m.bus.Load(m.cfg.FontStart, DefaultFont[:]); err != nil {
		return fmt.Errorf("loading font: %w", err)
	}
	if err := m.bus.Load(m.cfg.ProgramStart, img.Data); err != nil {
		return fmt.Errorf("loading %s: %w", img.Name, err)
	}
	return nil
}

// Reset zeroes memory, registers, stack, timers and the display and puts PC
// back at the program start. A running scheduler keeps running.
func (m *Machine) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
}

func (m *Machine) resetLocked() {
	m.cpu.Reset()
	m.fb.Clear()
	m.keys.Reset()
	m.err = nil
	m.skipHook = false
}

// Step executes a single instruction regardless of breakpoints. A fault
// stops the machine.
func (m *Machine) Step() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.skipHook = true
	return m.stepLocked()
}

func (m *Machine) stepLocked() error {
	if m.cpu.AwaitingKey() {
		return nil
	}
	if m.hook != nil && !m.skipHook && m.hook.BeforeStep(m.cpu) {
		m.skipHook = true
		m.pauseLocked()
		m.log.Debug("Breakpoint", log.Hex("pc", m.cpu.PC))
		return ErrBreakpoint
	}
	m.skipHook = false

	pc := m.cpu.PC
	var opcode uint16
	if m.hook != nil {
		opcode, _ = m.bus.Read16(pc)
	}
	err := m.cpu.Step()
	if m.hook != nil {
		m.hook.AfterStep(pc, opcode, err)
	}
	if err != nil {
		m.haltLocked(err)
		return err
	}
	return nil
}

// haltLocked records a fault and stops the scheduler loop.
func (m *Machine) haltLocked(err error) {
	m.err = err
	var f *cpu.Fault
	if errors.As(err, &f) {
		m.log.Error("Execution halted",
			log.Hex("pc", f.PC),
			log.Hex("opcode", f.Opcode),
			log.Err(err))
	} else {
		m.log.Error("Execution halted", log.Err(err))
	}
	m.pauseLocked()
}

// pauseLocked ends the scheduler loop without waiting for it; the goroutine
// exits as soon as it reacquires control.
func (m *Machine) pauseLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.chunkAcc, m.timerAcc = 0, 0
}

// RunChunk executes one scheduler batch of CyclesPerInterval instructions.
// The batch ends early on a fault, a breakpoint or an FX0A wait.
func (m *Machine) RunChunk() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runChunkLocked()
}

func (m *Machine) runChunkLocked() error {
	if m.err != nil {
		return m.err
	}
	n := m.cfg.CyclesPerInterval()
	executed := 0
	for ; executed < n; executed++ {
		if m.cpu.AwaitingKey() {
			break
		}
		if err := m.stepLocked(); err != nil {
			return err
		}
	}
	m.log.Debug("Chunk", log.Int("cycles", executed), log.Hex("pc", m.cpu.PC))
	return nil
}

// TickTimers performs one delay/sound timer decrement.
func (m *Machine) TickTimers() {
	m.mu.Lock()
	m.cpu.Timers.Tick()
	m.mu.Unlock()
}

// Advance feeds d of elapsed host time into both cadences: one batch per
// elapsed chunk interval and one timer tick per elapsed 1/TimerHz. Due
// events fire in deadline order, so splitting the same time across several
// calls yields the same state. A tick due at the same instant as a batch
// fires first.
func (m *Machine) Advance(d time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.chunkAcc += d
	m.timerAcc += d
	chunk, tick := m.cfg.ChunkInterval(), m.cfg.TimerInterval()
	for {
		chunkDue, tickDue := m.chunkAcc >= chunk, m.timerAcc >= tick
		if !chunkDue && !tickDue {
			return nil
		}
		// the larger overshoot is the earlier deadline
		if tickDue && (!chunkDue || m.timerAcc-tick >= m.chunkAcc-chunk) {
			m.timerAcc -= tick
			m.cpu.Timers.Tick()
			continue
		}
		m.chunkAcc -= chunk
		if err := m.runChunkLocked(); err != nil {
			m.chunkAcc, m.timerAcc = 0, 0
			return err
		}
	}
}

// Start runs the real-time scheduler until Stop, a fault, a breakpoint or
// ctx cancellation.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loopAliveLocked() {
		return ErrRunning
	}
	if m.err != nil {
		return fmt.Errorf("machine halted: %w", m.err)
	}
	m.pauseLocked()
	ctx, cancel := context.WithCancel(ctx)
	prev, done := m.done, make(chan struct{})
	m.cancel, m.done = cancel, done
	go m.loop(ctx, prev, done)
	m.log.Debug("Scheduler started",
		log.Int("cycles_per_chunk", m.cfg.CyclesPerInterval()),
		log.Int("chunk_ms", m.cfg.ChunkIntervalMs))
	return nil
}

func (m *Machine) loop(ctx context.Context, prev, done chan struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}
	chunk := time.NewTicker(m.cfg.ChunkInterval())
	defer chunk.Stop()
	timer := time.NewTicker(m.cfg.TimerInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			m.mu.Lock()
			if ctx.Err() == nil {
				m.cpu.Timers.Tick()
			}
			m.mu.Unlock()
		case <-chunk.C:
			m.mu.Lock()
			var err error
			if ctx.Err() == nil {
				err = m.runChunkLocked()
			}
			m.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Stop ends the scheduler loop and waits for it to exit. Machine state is
// left as of the last completed instruction.
func (m *Machine) Stop() {
	m.mu.Lock()
	wasRunning := m.cancel != nil
	m.pauseLocked()
	done := m.done
	m.done = nil
	m.mu.Unlock()
	if done != nil {
		<-done
	}
	if wasRunning {
		m.log.Debug("Scheduler stopped")
	}
}

// Running reports whether the scheduler loop is active.
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loopAliveLocked()
}

func (m *Machine) loopAliveLocked() bool {
	if m.cancel == nil {
		return false
	}
	select {
	case <-m.done:
		return false // parent context cancelled
	default:
		return true
	}
}

// Err returns the fault that halted execution, nil if none.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// KeyDown marks a keypad key held.
func (m *Machine) KeyDown(key byte) {
	m.mu.Lock()
	m.keys.Press(key)
	m.mu.Unlock()
}

// KeyUp releases a key. When an FX0A instruction is waiting, the released
// key is delivered to it and execution resumes.
func (m *Machine) KeyUp(key byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys.Release(key) {
		m.cpu.ResumeWithKey(key)
	}
}

// Keys returns the held keypad keys as a bitmask, bit n for key n.
func (m *Machine) Keys() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys.State()
}

// Snapshot copies the CPU state.
func (m *Machine) Snapshot() cpu.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpu.Snapshot()
}

// Framebuffer copies the display into dst, allocating when dst is nil.
func (m *Machine) Framebuffer(dst *display.Framebuffer) *display.Framebuffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dst == nil {
		dst = display.New(m.fb.Width(), m.fb.Height())
	}
	dst.CopyFrom(m.fb)
	return dst
}

// SoundActive reports whether the sound timer is non-zero.
func (m *Machine) SoundActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cpu.Timers.SoundActive()
}

// ReadMemory copies n bytes starting at addr, clipped to the memory size.
func (m *Machine) ReadMemory(addr uint16, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(addr) >= m.bus.Size() {
		return nil
	}
	if end := int(addr) + n; end > m.bus.Size() {
		n = m.bus.Size() - int(addr)
	}
	src, err := m.bus.Slice(addr, n)
	if err != nil {
		return nil
	}
	return append([]byte(nil), src...)
}
