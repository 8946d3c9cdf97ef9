package emu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
)

func words(ws ...uint16) []byte {
	out := make([]byte, 0, len(ws)*2)
	for _, w := range ws {
		out = append(out, byte(w>>8), byte(w))
	}
	return out
}

func newMachine(t *testing.T, program ...uint16) *Machine {
	t.Helper()
	return newMachineWith(t, DefaultConfig(), program...)
}

func newMachineWith(t *testing.T, cfg Config, program ...uint16) *Machine {
	t.Helper()
	m, err := New(cfg, log.NewTestLogger(t))
	require.NoError(t, err)
	if len(program) > 0 {
		require.NoError(t, m.LoadROM(rom.New("test.ch8", words(program...))))
	}
	return m
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero memory", func(c *Config) { c.MemorySize = 0 }, true},
		{"memory beyond 16 bit", func(c *Config) { c.MemorySize = 0x10001 }, true},
		{"program outside memory", func(c *Config) { c.ProgramStart = 0x1000 }, true},
		{"font past end", func(c *Config) { c.FontStart = 0x0FF0 }, true},
		{"no cycles", func(c *Config) { c.CyclesPerSecond = 0 }, true},
		{"no interval", func(c *Config) { c.ChunkIntervalMs = 0 }, true},
		{"batch rounds to zero", func(c *Config) { c.CyclesPerSecond = 5; c.ChunkIntervalMs = 100 }, true},
		{"no stack", func(c *Config) { c.StackSize = 0 }, true},
		{"no timer", func(c *Config) { c.TimerHz = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_CyclesPerInterval(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 200, cfg.CyclesPerInterval())
	cfg.ChunkIntervalMs = 16
	assert.Equal(t, 32, cfg.CyclesPerInterval())
	cfg.CyclesPerSecond, cfg.ChunkIntervalMs = 700, 30
	assert.Equal(t, 21, cfg.CyclesPerInterval())
	assert.Equal(t, 3584, DefaultConfig().ProgramCapacity())
}

func TestMachine_LoadROMInstallsFontAndProgram(t *testing.T) {
	m := newMachine(t, 0x00E0, 0x1200)
	assert.Equal(t, DefaultFont[:], m.ReadMemory(cpu.DefaultFontStart, len(DefaultFont)))
	assert.Equal(t, []byte{0x00, 0xE0, 0x12, 0x00}, m.ReadMemory(0x200, 4))
	assert.Equal(t, uint16(0x200), m.Snapshot().PC)
	require.NotNil(t, m.ROM())
	assert.Equal(t, "test", m.ROM().Title())
}

func TestMachine_LoadROMRejectsOversize(t *testing.T) {
	m := newMachine(t)
	err := m.LoadROM(rom.New("big", make([]byte, 3585)))
	assert.True(t, errors.Is(err, rom.ErrTooLarge), "got %v", err)
	err = m.LoadROM(rom.New("empty", nil))
	assert.True(t, errors.Is(err, rom.ErrEmpty), "got %v", err)
}

func TestMachine_ClearThenJumpTrace(t *testing.T) {
	m := newMachine(t, 0x00E0, 0x1200)
	require.NoError(t, m.Step())
	assert.Equal(t, uint16(0x202), m.Snapshot().PC)
	require.NoError(t, m.Step())
	assert.Equal(t, uint16(0x200), m.Snapshot().PC)
	assert.Equal(t, 0, m.Framebuffer(nil).Lit())
}

func TestMachine_WaitForKeyResumesOnRelease(t *testing.T) {
	m := newMachine(t, 0xF30A, 0x1202)

	m.KeyDown(7)
	m.KeyUp(7) // nothing armed yet
	require.NoError(t, m.Step())
	s := m.Snapshot()
	require.True(t, s.AwaitingKey)
	assert.Equal(t, byte(3), s.KeyRegister)
	assert.Equal(t, uint16(0x202), s.PC)

	require.NoError(t, m.Step())
	require.NoError(t, m.RunChunk())
	assert.Equal(t, uint16(0x202), m.Snapshot().PC, "no instruction may run while waiting")

	m.KeyDown(0xB)
	assert.True(t, m.Snapshot().AwaitingKey, "press alone must not resume")
	m.KeyUp(0xB)
	s = m.Snapshot()
	assert.False(t, s.AwaitingKey)
	assert.Equal(t, byte(0xB), s.V[3])

	require.NoError(t, m.Step())
	assert.Equal(t, uint16(0x202), m.Snapshot().PC)
}

func TestMachine_KeysReportsHeld(t *testing.T) {
	m := newMachine(t, 0x1200)
	assert.Equal(t, uint16(0), m.Keys())
	m.KeyDown(0x1)
	m.KeyDown(0xF)
	assert.Equal(t, uint16(1<<0x1|1<<0xF), m.Keys())
	m.KeyUp(0x1)
	assert.Equal(t, uint16(1<<0xF), m.Keys())
	m.Reset()
	assert.Equal(t, uint16(0), m.Keys(), "reset releases every key")
}

func TestMachine_RunChunkExecutesBatch(t *testing.T) {
	m := newMachine(t, 0x7001, 0x1200)
	require.NoError(t, m.RunChunk())
	s := m.Snapshot()
	assert.Equal(t, byte(100), s.V[0])
	assert.Equal(t, uint64(200), s.Cycles)
}

func TestMachine_FaultAbortsBatch(t *testing.T) {
	m := newMachine(t, 0x6001, 0x00EE, 0x6002)

	err := m.RunChunk()
	require.Error(t, err)
	assert.True(t, errors.Is(err, cpu.ErrStackUnderflow))
	var f *cpu.Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, uint16(0x202), f.PC)
	assert.Equal(t, uint16(0x00EE), f.Opcode)

	s := m.Snapshot()
	assert.Equal(t, byte(1), s.V[0])
	assert.Equal(t, uint16(0x202), s.PC)
	assert.Equal(t, uint64(1), s.Cycles)
	assert.Equal(t, err, m.Err())

	assert.Equal(t, err, m.RunChunk(), "halted machine must not execute")
	assert.Equal(t, err, m.Advance(time.Second))

	m.Reset()
	assert.NoError(t, m.Err())
}

func TestMachine_AdvanceCadence(t *testing.T) {
	// VA=60, DT=VA, then spin incrementing V0
	m := newMachine(t, 0x6A3C, 0xFA15, 0x7001, 0x1204)
	require.NoError(t, m.Step())
	require.NoError(t, m.Step())

	require.NoError(t, m.Advance(50*time.Millisecond))
	s := m.Snapshot()
	assert.Equal(t, byte(0), s.V[0], "no chunk before a full interval")
	assert.Equal(t, byte(57), s.Delay)

	require.NoError(t, m.Advance(50*time.Millisecond))
	s = m.Snapshot()
	assert.Equal(t, byte(100), s.V[0])
	assert.Equal(t, byte(54), s.Delay)
}

func TestMachine_AdvanceSplitIndependent(t *testing.T) {
	// V0=60, DT=V0, spin
	program := []uint16{0x603C, 0xF015, 0x1204}
	splits := []struct {
		name  string
		step  time.Duration
		count int
	}{
		{"one second", time.Second, 1},
		{"ten chunks", 100 * time.Millisecond, 10},
		{"forty slices", 25 * time.Millisecond, 40},
	}
	var want *cpu.Snapshot
	for _, sp := range splits {
		t.Run(sp.name, func(t *testing.T) {
			m := newMachine(t, program...)
			for i := 0; i < sp.count; i++ {
				require.NoError(t, m.Advance(sp.step))
			}
			s := m.Snapshot()
			// DT is set by the first batch at 100ms; 54 ticks fall after it
			assert.Equal(t, byte(6), s.Delay)
			if want == nil {
				want = &s
				return
			}
			assert.Equal(t, *want, s)
		})
	}
}

func TestMachine_TimersRunWhileWaitingForKey(t *testing.T) {
	m := newMachine(t, 0x6A0A, 0xFA15, 0xFA18, 0xF00A)
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Step())
	}
	require.True(t, m.Snapshot().AwaitingKey)
	assert.True(t, m.SoundActive())

	require.NoError(t, m.Advance(time.Second))
	s := m.Snapshot()
	assert.Equal(t, byte(0), s.Delay)
	assert.Equal(t, byte(0), s.Sound)
	assert.False(t, m.SoundActive())
	assert.True(t, s.AwaitingKey)
}

func TestMachine_TickTimers(t *testing.T) {
	m := newMachine(t, 0x6002, 0xF015, 0xF018)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Step())
	}
	m.TickTimers()
	s := m.Snapshot()
	assert.Equal(t, byte(1), s.Delay)
	assert.Equal(t, byte(1), s.Sound)
	m.TickTimers()
	m.TickTimers()
	s = m.Snapshot()
	assert.Equal(t, byte(0), s.Delay)
	assert.Equal(t, byte(0), s.Sound)
}

func TestMachine_ResetAndReload(t *testing.T) {
	m := newMachine(t, 0xA050, 0xD005, 0x6542)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Step())
	}
	assert.NotZero(t, m.Framebuffer(nil).Lit())

	m.Reset()
	s := m.Snapshot()
	assert.Equal(t, uint16(0x200), s.PC)
	assert.Equal(t, [16]byte{}, s.V)
	assert.Equal(t, 0, m.Framebuffer(nil).Lit())
	assert.Equal(t, []byte{0, 0}, m.ReadMemory(0x200, 2))

	require.NoError(t, m.Reload())
	assert.Equal(t, []byte{0xA0, 0x50}, m.ReadMemory(0x200, 2))
	assert.Equal(t, DefaultFont[:5], m.ReadMemory(cpu.DefaultFontStart, 5))
}

func TestMachine_ReloadWithoutROM(t *testing.T) {
	m := newMachine(t)
	assert.ErrorIs(t, m.Reload(), ErrNoROM)
}

func TestMachine_QuirksApply(t *testing.T) {
	m := newMachine(t, 0x6F05, 0x6103, 0x8011)
	q := cpu.DefaultQuirks()
	q.LogicResetsVF = false
	m.SetQuirks(q)
	assert.False(t, m.Config().Quirks.LogicResetsVF)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Step())
	}
	assert.Equal(t, byte(5), m.Snapshot().V[0xF])
}

type breakAt struct {
	pc    uint16
	after []uint16
}

func (b *breakAt) BeforeStep(c *cpu.CPU) bool { return c.PC == b.pc }

func (b *breakAt) AfterStep(pc, _ uint16, _ error) { b.after = append(b.after, pc) }

func TestMachine_HookBreaksAndResumes(t *testing.T) {
	m := newMachine(t, 0x7001, 0x1200)
	h := &breakAt{pc: 0x202}
	m.SetHook(h)

	err := m.RunChunk()
	assert.ErrorIs(t, err, ErrBreakpoint)
	s := m.Snapshot()
	assert.Equal(t, uint16(0x202), s.PC)
	assert.Equal(t, byte(1), s.V[0])
	assert.NoError(t, m.Err(), "a breakpoint is not a fault")

	err = m.RunChunk()
	assert.ErrorIs(t, err, ErrBreakpoint)
	assert.Equal(t, byte(2), m.Snapshot().V[0])
	assert.Equal(t, []uint16{0x200, 0x202, 0x200}, h.after)

	require.NoError(t, m.Step(), "Step ignores breakpoints")
	assert.Equal(t, uint16(0x200), m.Snapshot().PC)
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkIntervalMs = 2
	cfg.TimerHz = 500
	return cfg
}

func TestMachine_StartStopKeepsState(t *testing.T) {
	m := newMachineWith(t, fastConfig(), 0x7001, 0x1200)

	require.NoError(t, m.Start(context.Background()))
	assert.ErrorIs(t, m.Start(context.Background()), ErrRunning)
	assert.True(t, m.Running())
	require.Eventually(t, func() bool { return m.Snapshot().Cycles > 0 },
		2*time.Second, time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())
	before := m.Snapshot()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, m.Snapshot())

	// a stopped machine can be single-stepped and restarted
	require.NoError(t, m.Step())
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
	m.Stop()
}

func TestMachine_StartStopsOnFault(t *testing.T) {
	m := newMachineWith(t, fastConfig(), 0x00EE)
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.Err() != nil },
		2*time.Second, time.Millisecond)
	assert.ErrorIs(t, m.Err(), cpu.ErrStackUnderflow)
	assert.False(t, m.Running())
	assert.Error(t, m.Start(context.Background()))
	m.Stop()
}

func TestMachine_StartEndsWithContext(t *testing.T) {
	m := newMachineWith(t, fastConfig(), 0x1200)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	cancel()
	require.Eventually(t, func() bool { return !m.Running() },
		2*time.Second, time.Millisecond)
	m.Stop()
}
