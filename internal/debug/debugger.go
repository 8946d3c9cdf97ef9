package debug

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
)

var _ emu.Hook = (*Debugger)(nil)

// Breakpoint stops execution before the instruction at Addr. When Cond is
// set it is a Lua expression and the breakpoint only fires when it is truthy.
type Breakpoint struct {
	Addr uint16
	Cond string
	Hits int

	fn *lua.LFunction
}

// Debugger implements emu.Hook with PC breakpoints and an instruction trace.
type Debugger struct {
	mu    sync.Mutex
	L     *lua.LState
	bps   map[uint16]*Breakpoint
	trace *Trace

	hit     *Breakpoint
	condErr error
}

func New(traceSize int) *Debugger {
	return &Debugger{
		L:     lua.NewState(lua.Options{SkipOpenLibs: true}),
		bps:   make(map[uint16]*Breakpoint),
		trace: NewTrace(traceSize),
	}
}

// Close releases the Lua interpreter.
func (d *Debugger) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.L.Close()
}

// Add installs or replaces a breakpoint. cond may be empty.
func (d *Debugger) Add(addr uint16, cond string) error {
	bp := &Breakpoint{Addr: addr, Cond: strings.TrimSpace(cond)}
	d.mu.Lock()
	defer d.mu.Unlock()
	if bp.Cond != "" {
		fn, err := d.L.LoadString("return " + bp.Cond)
		if err != nil {
			return fmt.Errorf("breakpoint condition %q: %w", bp.Cond, err)
		}
		bp.fn = fn
	}
	d.bps[addr] = bp
	return nil
}

// Remove deletes the breakpoint at addr and reports whether one existed.
func (d *Debugger) Remove(addr uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.bps[addr]
	delete(d.bps, addr)
	return ok
}

// Toggle adds an unconditional breakpoint at addr or removes the existing
// one. It reports whether a breakpoint is set afterwards.
func (d *Debugger) Toggle(addr uint16) bool {
	if d.Remove(addr) {
		return false
	}
	_ = d.Add(addr, "")
	return true
}

// List returns copies of all breakpoints ordered by address.
func (d *Debugger) List() []Breakpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Breakpoint, 0, len(d.bps))
	for _, bp := range d.bps {
		out = append(out, Breakpoint{Addr: bp.Addr, Cond: bp.Cond, Hits: bp.Hits})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// Has reports whether a breakpoint exists at addr.
func (d *Debugger) Has(addr uint16) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.bps[addr]
	return ok
}

// BeforeStep reports whether execution should stop before c.PC.
func (d *Debugger) BeforeStep(c *cpu.CPU) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	bp, ok := d.bps[c.PC]
	if !ok {
		return false
	}
	if bp.fn != nil {
		fire, err := d.eval(bp.fn, c)
		if err != nil {
			// conditions that fail to evaluate stop execution
			d.condErr = fmt.Errorf("breakpoint %04X: %w", bp.Addr, err)
		} else if !fire {
			return false
		}
	}
	bp.Hits++
	d.hit = bp
	return true
}

func (d *Debugger) eval(fn *lua.LFunction, c *cpu.CPU) (bool, error) {
	L := d.L
	regs := L.NewTable()
	for i, v := range c.V {
		regs.RawSetInt(i, lua.LNumber(v))
		L.SetGlobal(fmt.Sprintf("V%X", i), lua.LNumber(v))
	}
	L.SetGlobal("V", regs)
	L.SetGlobal("I", lua.LNumber(c.I))
	L.SetGlobal("PC", lua.LNumber(c.PC))
	L.SetGlobal("DT", lua.LNumber(c.Timers.Delay))
	L.SetGlobal("ST", lua.LNumber(c.Timers.Sound))

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return false, err
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// AfterStep records the executed instruction in the trace.
func (d *Debugger) AfterStep(pc, opcode uint16, err error) {
	d.mu.Lock()
	d.trace.Add(Entry{PC: pc, Opcode: opcode, Err: err})
	d.mu.Unlock()
}

// Hit returns the breakpoint that stopped execution last.
func (d *Debugger) Hit() (Breakpoint, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hit == nil {
		return Breakpoint{}, false
	}
	return Breakpoint{Addr: d.hit.Addr, Cond: d.hit.Cond, Hits: d.hit.Hits}, true
}

// ConditionError returns and clears the last condition evaluation error.
func (d *Debugger) ConditionError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.condErr
	d.condErr = nil
	return err
}

// Trace returns a chronological copy of the recorded instructions.
func (d *Debugger) Trace() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.trace.Entries()
}

// ParseBreakpoint splits "addr[:cond]" where addr is hex with an optional
// 0x or $ prefix.
func ParseBreakpoint(s string) (uint16, string, error) {
	addrStr, cond, _ := strings.Cut(s, ":")
	addrStr = strings.TrimSpace(addrStr)
	addrStr = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(addrStr), "0x"), "$")
	v, err := strconv.ParseUint(addrStr, 16, 16)
	if err != nil {
		return 0, "", fmt.Errorf("invalid breakpoint address %q: %w", s, err)
	}
	return uint16(v), strings.TrimSpace(cond), nil
}
