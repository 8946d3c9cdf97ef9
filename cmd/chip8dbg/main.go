package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jroimartin/gocui"
	"github.com/retroenv/retrogolib/app"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/debug"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
)

// breakFlags collects repeated -break addr[:cond] flags.
type breakFlags []string

func (b *breakFlags) String() string     { return strings.Join(*b, ",") }
func (b *breakFlags) Set(s string) error { *b = append(*b, s); return nil }

const (
	disasmWords = 24
	logLines    = 200
	keyHold     = 120 * time.Millisecond
)

type session struct {
	ctx context.Context
	m   *emu.Machine
	dbg *debug.Debugger
	fb  *display.Framebuffer

	mu  sync.Mutex
	log []string
}

func (s *session) logf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, fmt.Sprintf(format, args...))
	if len(s.log) > logLines {
		s.log = s.log[len(s.log)-logLines:]
	}
}

func main() {
	romPath := flag.String("rom", "", "path to ROM (.ch8)")
	var breaks breakFlags
	flag.Var(&breaks, "break", "breakpoint addr[:lua-condition], repeatable")
	traceWindow := flag.Int("traceWindow", 256, "number of recent instructions to keep")
	flag.Parse()

	logger := config.CreateLogger(false, true)
	if *romPath == "" {
		logger.Fatal("-rom is required")
	}
	img, err := rom.Load(*romPath)
	if err != nil {
		logger.Fatal(err.Error())
	}
	m, err := emu.New(emu.DefaultConfig(), logger)
	if err != nil {
		logger.Fatal(err.Error())
	}
	if err := m.LoadROM(img); err != nil {
		logger.Fatal(err.Error())
	}

	s := &session{ctx: app.Context(), m: m, dbg: debug.New(*traceWindow)}
	defer s.dbg.Close()
	m.SetHook(s.dbg)
	for _, b := range breaks {
		addr, cond, err := debug.ParseBreakpoint(b)
		if err == nil {
			err = s.dbg.Add(addr, cond)
		}
		if err != nil {
			logger.Fatal(err.Error())
		}
	}
	s.logf("loaded %s (%d bytes, crc32 %08x)", img.Name, img.Size(), img.CRC32)

	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		logger.Fatal(err.Error())
	}
	defer g.Close()
	g.SetManagerFunc(s.layout)
	if err := s.bindKeys(g); err != nil {
		logger.Fatal(err.Error())
	}

	go s.refresh(g)
	if err := g.MainLoop(); err != nil && !errors.Is(err, gocui.ErrQuit) {
		logger.Fatal(err.Error())
	}
	m.Stop()
}

// refresh redraws periodically so a running machine stays visible.
func (s *session) refresh(g *gocui.Gui) {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	wasRunning := false
	for {
		select {
		case <-s.ctx.Done():
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
			return
		case <-t.C:
			running := s.m.Running()
			if wasRunning && !running {
				s.reportStop()
			}
			wasRunning = running
			g.Update(func(*gocui.Gui) error { return nil })
		}
	}
}

func (s *session) reportStop() {
	if err := s.m.Err(); err != nil {
		s.logf("halted: %v", err)
		return
	}
	if err := s.dbg.ConditionError(); err != nil {
		s.logf("%v", err)
	}
	if bp, ok := s.dbg.Hit(); ok {
		s.logf("break at %04X (hit %d)", bp.Addr, bp.Hits)
	}
}

// keypadRunes are the keys that tap the hex keypad. gocui runs every handler
// bound to a key, so command keys stay outside this set.
const keypadRunes = "0123456789abcdef"

const helpTitle = "Log  (s step, space/F5 run/pause, x/F9 break, r reset, 0-f key, q quit)"

type binding struct {
	key any
	fn  func(*gocui.Gui, *gocui.View) error
}

func (s *session) commands() []binding {
	quit := func(*gocui.Gui, *gocui.View) error { return gocui.ErrQuit }
	return []binding{
		{gocui.KeyCtrlC, quit},
		{'q', quit},
		{'s', s.step},
		{gocui.KeySpace, s.toggleRun},
		{gocui.KeyF5, s.toggleRun},
		{'x', s.toggleBreak},
		{gocui.KeyF9, s.toggleBreak},
		{'r', s.reset},
	}
}

func (s *session) bindKeys(g *gocui.Gui) error {
	for _, b := range s.commands() {
		if err := g.SetKeybinding("", b.key, gocui.ModNone, b.fn); err != nil {
			return err
		}
	}
	for _, r := range keypadRunes {
		key := hexValue(r)
		if err := g.SetKeybinding("", r, gocui.ModNone, func(*gocui.Gui, *gocui.View) error {
			s.tap(key)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func hexValue(r rune) byte {
	if r >= 'a' {
		return byte(r-'a') + 10
	}
	return byte(r - '0')
}

func (s *session) step(*gocui.Gui, *gocui.View) error {
	if s.m.Running() {
		return nil
	}
	if err := s.m.Step(); err != nil {
		s.logf("halted: %v", err)
	}
	return nil
}

func (s *session) toggleRun(*gocui.Gui, *gocui.View) error {
	if s.m.Running() {
		s.m.Stop()
		s.logf("paused at %04X", s.m.Snapshot().PC)
		return nil
	}
	if err := s.m.Start(s.ctx); err != nil {
		s.logf("start: %v", err)
		return nil
	}
	s.logf("running")
	return nil
}

func (s *session) toggleBreak(*gocui.Gui, *gocui.View) error {
	pc := s.m.Snapshot().PC
	if s.dbg.Toggle(pc) {
		s.logf("breakpoint set at %04X", pc)
	} else {
		s.logf("breakpoint cleared at %04X", pc)
	}
	return nil
}

func (s *session) reset(*gocui.Gui, *gocui.View) error {
	s.m.Stop()
	if err := s.m.Reload(); err != nil {
		s.logf("reset: %v", err)
		return nil
	}
	s.logf("reset")
	return nil
}

// tap presses a keypad key and releases it shortly after.
func (s *session) tap(key byte) {
	s.m.KeyDown(key)
	time.AfterFunc(keyHold, func() { s.m.KeyUp(key) })
	s.logf("key %X", key)
}

func (s *session) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	snap := s.m.Snapshot()
	s.fb = s.m.Framebuffer(s.fb)

	state := "stopped"
	if s.m.Running() {
		state = "running"
	} else if err := s.m.Err(); err != nil {
		state = "halted"
	}

	screenW := s.fb.Width() + 2
	screenH := s.fb.Height()/2 + 2
	midY := max(maxY-8, screenH+4)
	base := disasmWindow(snap.PC, disasmWords)
	mem := s.m.ReadMemory(base, disasmWords*2)

	var bps strings.Builder
	bps.WriteString(renderStack(snap))
	bps.WriteString("\n")
	for _, bp := range s.dbg.List() {
		fmt.Fprintf(&bps, "* %04X hits=%d", bp.Addr, bp.Hits)
		if bp.Cond != "" {
			bps.WriteString(" if " + bp.Cond)
		}
		bps.WriteString("\n")
	}

	views := []struct {
		name, title    string
		x0, y0, x1, y1 int
		body           string
	}{
		{"screen", "Screen", 0, 0, screenW - 1, screenH - 1, renderScreen(s.fb)},
		{"regs", "Registers", screenW, 0, maxX - 1, screenH - 1, renderRegs(snap, state)},
		{"disasm", "Disassembly", 0, screenH, screenW - 1, midY - 1, renderDisasm(mem, base, snap.PC, s.dbg.Has)},
		{"stack", "Stack / Breakpoints", screenW, screenH, maxX - 1, midY - 1, bps.String()},
		{"log", helpTitle, 0, midY, maxX - 1, maxY - 1, s.tail(maxY - midY - 2)},
	}
	for _, v := range views {
		if err := setView(g, v.name, v.title, v.x0, v.y0, v.x1, v.y1, v.body); err != nil {
			return err
		}
	}
	return nil
}

// tail returns the last n log lines.
func (s *session) tail(n int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.log
	if n >= 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// setView creates or fetches a view and replaces its content.
func setView(g *gocui.Gui, name, title string, x0, y0, x1, y1 int, body string) error {
	v, err := g.SetView(name, x0, y0, x1, y1)
	if err != nil && !errors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	v.Title = title
	v.Clear()
	_, err = fmt.Fprint(v, body)
	return err
}
