package cpu

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/bus"
)

type fakeDisplay struct {
	w, h    int
	pix     []bool
	cleared int
}

func newFakeDisplay(w, h int) *fakeDisplay {
	return &fakeDisplay{w: w, h: h, pix: make([]bool, w*h)}
}

func (d *fakeDisplay) Clear() {
	d.cleared++
	for i := range d.pix {
		d.pix[i] = false
	}
}

func (d *fakeDisplay) TogglePixel(x, y int) bool {
	i := y*d.w + x
	d.pix[i] = !d.pix[i]
	return !d.pix[i]
}

func (d *fakeDisplay) Width() int  { return d.w }
func (d *fakeDisplay) Height() int { return d.h }

func (d *fakeDisplay) at(x, y int) bool { return d.pix[y*d.w+x] }

type fakeInput struct {
	down  [16]bool
	armed int
}

func (in *fakeInput) IsKeyPressed(key byte) bool { return key < 16 && in.down[key] }
func (in *fakeInput) ArmKeyRelease()             { in.armed++ }

type rig struct {
	cpu *CPU
	bus *bus.Bus
	dsp *fakeDisplay
	in  *fakeInput
}

func newRig(t *testing.T, code ...uint16) *rig {
	t.Helper()
	return newRigWith(t, DefaultQuirks(), code...)
}

func newRigWith(t *testing.T, q Quirks, code ...uint16) *rig {
	t.Helper()
	b := bus.New(bus.DefaultSize)
	prog := make([]byte, 0, len(code)*2)
	for _, w := range code {
		prog = append(prog, byte(w>>8), byte(w))
	}
	require.NoError(t, b.Load(DefaultProgramStart, prog))
	r := &rig{bus: b, dsp: newFakeDisplay(64, 32), in: &fakeInput{}}
	r.cpu = New(Config{
		ProgramStart: DefaultProgramStart,
		FontStart:    DefaultFontStart,
		Quirks:       q,
		Random:       func() byte { return 0xA5 },
	}, b, r.dsp, r.in)
	return r
}

func (r *rig) step(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, r.cpu.Step())
	}
}

func TestCPU_FetchAdvancesPCBeforeDispatch(t *testing.T) {
	r := newRig(t, 0x6A12) // LD VA, 0x12
	r.step(t, 1)
	assert.Equal(t, uint16(0x202), r.cpu.PC)
	assert.Equal(t, byte(0x12), r.cpu.V[0xA])
	assert.Equal(t, uint64(1), r.cpu.Cycles())
}

func TestCPU_ClearAndJumpLoop(t *testing.T) {
	r := newRig(t, 0x00E0, 0x1200)
	for i := 0; i < 3; i++ {
		r.step(t, 1)
		if r.cpu.PC != 0x202 {
			t.Fatalf("iteration %d after CLS PC got %#04x want 0x202", i, r.cpu.PC)
		}
		if r.dsp.cleared != i+1 {
			t.Fatalf("iteration %d display cleared %d times", i, r.dsp.cleared)
		}
		r.step(t, 1)
		if r.cpu.PC != 0x200 {
			t.Fatalf("iteration %d after JP PC got %#04x want 0x200", i, r.cpu.PC)
		}
	}
}

func TestCPU_AddByteWraps(t *testing.T) {
	r := newRig(t, 0x63F0, 0x7320)
	r.cpu.V[0xF] = 0x55
	r.step(t, 2)
	assert.Equal(t, byte(0x10), r.cpu.V[3])
	assert.Equal(t, byte(0x55), r.cpu.V[0xF], "7XNN must not touch VF")
}

func TestCPU_AddRegisterCarryGrid(t *testing.T) {
	r := newRig(t, 0x8124)
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			r.cpu.PC = 0x200
			r.cpu.V[1], r.cpu.V[2] = byte(a), byte(b)
			require.NoError(t, r.cpu.Step())
			wantVF := byte(0)
			if a+b > 255 {
				wantVF = 1
			}
			if r.cpu.V[1] != byte((a+b)%256) || r.cpu.V[0xF] != wantVF {
				t.Fatalf("ADD %d+%d got V1=%d VF=%d want %d/%d", a, b, r.cpu.V[1], r.cpu.V[0xF], (a+b)%256, wantVF)
			}
		}
	}
}

func TestCPU_SubRegisterBorrowGrid(t *testing.T) {
	r := newRig(t, 0x8125)
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b++ {
			r.cpu.PC = 0x200
			r.cpu.V[1], r.cpu.V[2] = byte(a), byte(b)
			require.NoError(t, r.cpu.Step())
			wantVF := byte(1)
			if a < b {
				wantVF = 0
			}
			if r.cpu.V[1] != byte((a-b+256)%256) || r.cpu.V[0xF] != wantVF {
				t.Fatalf("SUB %d-%d got V1=%d VF=%d want %d/%d", a, b, r.cpu.V[1], r.cpu.V[0xF], (a-b+256)%256, wantVF)
			}
		}
	}
}

func TestCPU_SubN(t *testing.T) {
	r := newRig(t, 0x8127, 0x8127)
	r.cpu.V[1], r.cpu.V[2] = 0x10, 0x30
	r.step(t, 1)
	assert.Equal(t, byte(0x20), r.cpu.V[1])
	assert.Equal(t, byte(1), r.cpu.V[0xF])

	r.cpu.V[1], r.cpu.V[2] = 0x30, 0x10
	r.step(t, 1)
	assert.Equal(t, byte(0xE0), r.cpu.V[1])
	assert.Equal(t, byte(0), r.cpu.V[0xF])
}

func TestCPU_FlagWrittenAfterResult(t *testing.T) {
	// 8FY4 with X=F: the flag overwrites the sum
	r := newRig(t, 0x8F14)
	r.cpu.V[0xF], r.cpu.V[1] = 0xFF, 0x02
	r.step(t, 1)
	assert.Equal(t, byte(1), r.cpu.V[0xF])
}

func TestCPU_SkipAfterLoad(t *testing.T) {
	tests := []struct {
		name   string
		code   []uint16
		wantPC uint16
	}{
		{"3XNN equal skips", []uint16{0x6742, 0x3742}, 0x206},
		{"3XNN different does not skip", []uint16{0x6742, 0x3743}, 0x204},
		{"4XNN equal does not skip", []uint16{0x6742, 0x4742}, 0x204},
		{"4XNN different skips", []uint16{0x6742, 0x4700}, 0x206},
		{"5XY0 equal skips", []uint16{0x6105, 0x6205, 0x5120}, 0x208},
		{"9XY0 equal does not skip", []uint16{0x6105, 0x6205, 0x9120}, 0x206},
		{"9XY0 different skips", []uint16{0x6105, 0x6206, 0x9120}, 0x208},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.code...)
			r.step(t, len(tt.code))
			assert.Equal(t, tt.wantPC, r.cpu.PC)
		})
	}
}

func TestCPU_LoadThenSkipEveryValue(t *testing.T) {
	for nn := 0; nn < 256; nn++ {
		r := newRig(t, 0x6000|uint16(nn), 0x3000|uint16(nn), 0x6000|uint16(nn), 0x3000|uint16(nn+1)&0xFF)
		r.step(t, 2)
		if r.cpu.PC != 0x206 {
			t.Fatalf("NN=%02x same value did not skip, PC=%#04x", nn, r.cpu.PC)
		}
		r.cpu.PC = 0x204
		r.step(t, 2)
		if r.cpu.PC != 0x208 {
			t.Fatalf("NN=%02x different value skipped, PC=%#04x", nn, r.cpu.PC)
		}
	}
}

func TestCPU_CallReturnRoundTrip(t *testing.T) {
	// 0200: CALL 0208; 0202: LD V0,1 ... 0208: RET
	r := newRig(t, 0x2208, 0x6001, 0x0000, 0x0000, 0x00EE)
	r.step(t, 1)
	assert.Equal(t, uint16(0x208), r.cpu.PC)
	assert.Equal(t, 1, r.cpu.StackDepth())
	r.step(t, 1)
	assert.Equal(t, uint16(0x202), r.cpu.PC, "return lands right after the call")
	assert.Equal(t, 0, r.cpu.StackDepth())
}

func TestCPU_StackUnderflow(t *testing.T) {
	r := newRig(t, 0x6301, 0x00EE)
	r.step(t, 1)
	err := r.cpu.Step()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStackUnderflow))

	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, StackUnderflow, f.Kind)
	assert.Equal(t, uint16(0x202), f.PC)
	assert.Equal(t, uint16(0x00EE), f.Opcode)
	assert.Equal(t, uint16(0x202), r.cpu.PC, "PC stays on the failing instruction")
	assert.Equal(t, byte(1), r.cpu.V[3])
}

func TestCPU_StackOverflow(t *testing.T) {
	r := newRig(t, 0x2200) // calls itself forever
	for i := 0; i < DefaultStackSize; i++ {
		require.NoError(t, r.cpu.Step())
	}
	err := r.cpu.Step()
	assert.ErrorIs(t, err, ErrStackOverflow)
	assert.Equal(t, DefaultStackSize, r.cpu.StackDepth())
}

func TestCPU_InvalidInstruction(t *testing.T) {
	for _, raw := range []uint16{0x0123, 0x5121, 0x8128, 0x912F, 0xE0FF, 0xF0FF} {
		r := newRig(t, raw)
		err := r.cpu.Step()
		var f *Fault
		require.True(t, errors.As(err, &f), "opcode %04X", raw)
		assert.Equal(t, InvalidInstruction, f.Kind)
		assert.Equal(t, raw, f.Opcode)
		assert.ErrorIs(t, err, ErrInvalidInstruction)
		assert.Contains(t, err.Error(), "invalid instruction")
	}
}

func TestCPU_FetchPastEndOfMemory(t *testing.T) {
	r := newRig(t, 0x1FFF) // JP 0xFFF: the word at 0xFFF straddles the end
	r.step(t, 1)
	err := r.cpu.Step()
	assert.ErrorIs(t, err, ErrOutOfBounds)
	var ae *bus.AccessError
	assert.True(t, errors.As(err, &ae))
}

func TestCPU_LogicOpsQuirk(t *testing.T) {
	ops := map[uint16]byte{0x8121: 0x0C | 0x0A, 0x8122: 0x0C & 0x0A, 0x8123: 0x0C ^ 0x0A}
	for raw, want := range ops {
		for _, reset := range []bool{true, false} {
			q := DefaultQuirks()
			q.LogicResetsVF = reset
			r := newRigWith(t, q, raw)
			r.cpu.V[1], r.cpu.V[2], r.cpu.V[0xF] = 0x0C, 0x0A, 0x77
			r.step(t, 1)
			assert.Equal(t, want, r.cpu.V[1], "opcode %04X", raw)
			wantVF := byte(0x77)
			if reset {
				wantVF = 0
			}
			assert.Equal(t, wantVF, r.cpu.V[0xF], "opcode %04X reset=%v", raw, reset)
		}
	}
}

func TestCPU_ShiftQuirk(t *testing.T) {
	tests := []struct {
		name   string
		raw    uint16
		useVY  bool
		vx, vy byte
		wantVX byte
		wantVF byte
	}{
		{"SHR from VY", 0x8126, true, 0x00, 0x05, 0x02, 1},
		{"SHR in place", 0x8126, false, 0x04, 0x05, 0x02, 0},
		{"SHL from VY", 0x812E, true, 0x00, 0x81, 0x02, 1},
		{"SHL in place", 0x812E, false, 0x40, 0x81, 0x80, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := DefaultQuirks()
			q.ShiftUsesVY = tt.useVY
			r := newRigWith(t, q, tt.raw)
			r.cpu.V[1], r.cpu.V[2] = tt.vx, tt.vy
			r.step(t, 1)
			assert.Equal(t, tt.wantVX, r.cpu.V[1])
			assert.Equal(t, tt.wantVF, r.cpu.V[0xF])
		})
	}
}

func TestCPU_IndexOps(t *testing.T) {
	r := newRig(t, 0xAFFE, 0x6105, 0xF11E, 0x6207, 0xF229)
	r.step(t, 3)
	assert.Equal(t, uint16(0x003), r.cpu.I, "FX1E wraps at 12 bits")
	r.step(t, 2)
	assert.Equal(t, uint16(DefaultFontStart+7*5), r.cpu.I)
}

func TestCPU_JumpV0(t *testing.T) {
	r := newRig(t, 0x6010, 0xB300)
	r.step(t, 2)
	assert.Equal(t, uint16(0x310), r.cpu.PC)
}

func TestCPU_Random(t *testing.T) {
	r := newRig(t, 0xC40F)
	r.step(t, 1)
	assert.Equal(t, byte(0xA5&0x0F), r.cpu.V[4])
}

func TestCPU_BCD(t *testing.T) {
	r := newRig(t, 0xA300, 0x65FE, 0xF533)
	r.step(t, 3)
	got, err := r.bus.Slice(0x300, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 5, 4}, got)
	assert.Equal(t, uint16(0x300), r.cpu.I)
}

func TestCPU_StoreLoadRoundTrip(t *testing.T) {
	for x := 0; x < 16; x++ {
		r := newRig(t, 0xA400, 0xF055|uint16(x)<<8, 0xA400, 0xF065|uint16(x)<<8)
		var want [16]byte
		for i := range want {
			want[i] = byte(i*17 + 3)
		}
		r.cpu.V = want
		r.step(t, 2)
		assert.Equal(t, uint16(0x400+x+1), r.cpu.I, "FX55 advances I by X+1")
		r.cpu.V = [16]byte{}
		r.step(t, 2)
		for i := 0; i <= x; i++ {
			if r.cpu.V[i] != want[i] {
				t.Fatalf("X=%d: V%X got %02x want %02x", x, i, r.cpu.V[i], want[i])
			}
		}
		for i := x + 1; i < 16; i++ {
			if r.cpu.V[i] != 0 {
				t.Fatalf("X=%d: V%X loaded beyond X", x, i)
			}
		}
		assert.Equal(t, uint16(0x400), r.cpu.I, "FX65 leaves I")
	}
}

func TestCPU_StoreOutOfBoundsDoesNotMutate(t *testing.T) {
	r := newRig(t, 0xAFFE, 0xF555)
	r.step(t, 1)
	err := r.cpu.Step()
	assert.ErrorIs(t, err, ErrOutOfBounds)
	assert.Equal(t, uint16(0xFFE), r.cpu.I)
	v, _ := r.bus.Read(0xFFE)
	assert.Equal(t, byte(0), v)
}

func TestCPU_RangeFaultsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name string
		code []uint16
	}{
		{"DXYN past end", []uint16{0xAFFE, 0x6F07, 0xD005}},
		{"FX33 past end", []uint16{0xAFFF, 0x6F07, 0xF033}},
		{"FX65 past end", []uint16{0xAFFE, 0x6F07, 0xF265}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, tt.code...)
			require.NoError(t, r.bus.Load(0xFFE, []byte{0xFF, 0xFF}))
			r.cpu.V[0], r.cpu.V[1], r.cpu.V[2] = 0x11, 0x22, 0x33
			r.step(t, 2)
			before := r.cpu.Snapshot()

			err := r.cpu.Step()
			var f *Fault
			require.True(t, errors.As(err, &f))
			assert.Equal(t, OutOfBoundsAccess, f.Kind)
			assert.Equal(t, uint16(0x204), f.PC)

			assert.Equal(t, before, r.cpu.Snapshot())
			mem, err := r.bus.Slice(0xFFE, 2)
			require.NoError(t, err)
			assert.Equal(t, []byte{0xFF, 0xFF}, mem)
			for i, on := range r.dsp.pix {
				if on {
					t.Fatalf("pixel %d toggled by a faulting draw", i)
				}
			}
		})
	}
}

func TestCPU_Timers(t *testing.T) {
	r := newRig(t, 0x610A, 0xF115, 0xF118, 0xF207)
	r.step(t, 3)
	assert.Equal(t, byte(10), r.cpu.Timers.Delay)
	assert.True(t, r.cpu.Timers.SoundActive())
	for i := 0; i < 10; i++ {
		r.cpu.Timers.Tick()
	}
	assert.Equal(t, byte(0), r.cpu.Timers.Delay)
	r.cpu.Timers.Tick()
	assert.Equal(t, byte(0), r.cpu.Timers.Delay, "never below zero")
	assert.False(t, r.cpu.Timers.SoundActive())
	r.step(t, 1)
	assert.Equal(t, byte(0), r.cpu.V[2])
}

func TestCPU_KeySkips(t *testing.T) {
	r := newRig(t, 0x6507, 0xE59E, 0x0000, 0xE5A1)
	r.in.down[7] = true
	r.step(t, 2)
	assert.Equal(t, uint16(0x206), r.cpu.PC)
	r.step(t, 1)
	assert.Equal(t, uint16(0x208), r.cpu.PC, "EXA1 does not skip while pressed")
}

func TestCPU_WaitForKey(t *testing.T) {
	r := newRig(t, 0xF30A, 0x6101)
	r.step(t, 1)
	assert.True(t, r.cpu.AwaitingKey())
	assert.Equal(t, 1, r.in.armed)
	assert.Equal(t, uint16(0x202), r.cpu.PC)

	for i := 0; i < 5; i++ {
		r.step(t, 1)
	}
	assert.Equal(t, uint16(0x202), r.cpu.PC, "steps are no-ops while waiting")
	assert.Equal(t, uint64(1), r.cpu.Cycles())

	r.cpu.Timers.Delay = 3
	r.cpu.Timers.Tick()
	assert.Equal(t, byte(2), r.cpu.Timers.Delay, "timers run while waiting")

	assert.True(t, r.cpu.ResumeWithKey(0x7))
	assert.Equal(t, byte(7), r.cpu.V[3])
	assert.False(t, r.cpu.AwaitingKey())
	assert.False(t, r.cpu.ResumeWithKey(0x8), "resume only once")

	r.step(t, 1)
	assert.Equal(t, byte(1), r.cpu.V[1])
	assert.Equal(t, uint16(0x204), r.cpu.PC)
}

func TestCPU_DrawAndCollision(t *testing.T) {
	// I=0x300 holds 0xF0; draw twice at (2,1)
	r := newRig(t, 0xA300, 0x6002, 0x6101, 0xD011, 0xD011)
	require.NoError(t, r.bus.Write(0x300, 0xF0))
	r.step(t, 4)
	for x := 2; x < 6; x++ {
		assert.True(t, r.dsp.at(x, 1), "pixel %d,1", x)
	}
	assert.False(t, r.dsp.at(6, 1))
	assert.Equal(t, byte(0), r.cpu.V[0xF])

	r.step(t, 1)
	assert.False(t, r.dsp.at(2, 1))
	assert.Equal(t, byte(1), r.cpu.V[0xF])
}

func TestCPU_DrawCollisionQuirkOff(t *testing.T) {
	q := DefaultQuirks()
	q.CollisionSetsVF = false
	r := newRigWith(t, q, 0xA300, 0xD001, 0xD001)
	require.NoError(t, r.bus.Write(0x300, 0x80))
	r.cpu.V[0xF] = 0x42
	r.step(t, 3)
	assert.Equal(t, byte(0x42), r.cpu.V[0xF])
	assert.False(t, r.dsp.at(0, 0))
}

func TestCPU_DrawClipsAtRightEdge(t *testing.T) {
	r := newRig(t, 0xA300, 0x603C, 0x6100, 0xD011) // x=60
	require.NoError(t, r.bus.Write(0x300, 0xFF))
	r.step(t, 4)
	for x := 60; x < 64; x++ {
		assert.True(t, r.dsp.at(x, 0), "pixel %d", x)
	}
	for x := 0; x < 4; x++ {
		assert.False(t, r.dsp.at(x, 0), "wrapped pixel %d", x)
	}
}

func TestCPU_DrawClipsAtBottomAndWrapsStart(t *testing.T) {
	// x=66 wraps to 2, y=30 draws rows 30 and 31 only
	r := newRig(t, 0xA300, 0x6042, 0x611E, 0xD014)
	require.NoError(t, r.bus.Load(0x300, []byte{0x80, 0x80, 0x80, 0x80}))
	r.step(t, 4)
	assert.True(t, r.dsp.at(2, 30))
	assert.True(t, r.dsp.at(2, 31))
	assert.False(t, r.dsp.at(2, 0))
	assert.False(t, r.dsp.at(2, 1))
}

func TestCPU_Reset(t *testing.T) {
	r := newRig(t, 0x6AFF, 0x2300)
	r.step(t, 2)
	r.cpu.Timers.Delay = 9
	r.cpu.Reset()
	assert.Equal(t, [16]byte{}, r.cpu.V)
	assert.Equal(t, uint16(DefaultProgramStart), r.cpu.PC)
	assert.Equal(t, 0, r.cpu.StackDepth())
	assert.Equal(t, byte(0), r.cpu.Timers.Delay)
	w, _ := r.bus.Read16(0x200)
	assert.Equal(t, uint16(0), w, "memory zeroed")
}

func TestCPU_Snapshot(t *testing.T) {
	r := newRig(t, 0x2204, 0x0000, 0xF50A)
	r.step(t, 2)
	s := r.cpu.Snapshot()
	assert.Equal(t, []uint16{0x202}, s.Stack)
	assert.True(t, s.AwaitingKey)
	assert.Equal(t, byte(5), s.KeyRegister)
	s.Stack[0] = 0
	assert.Equal(t, []uint16{0x202}, r.cpu.Snapshot().Stack, "snapshot is a copy")
}
