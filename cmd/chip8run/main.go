package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/retroenv/retrogolib/app"
	"golang.org/x/term"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/debug"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
)

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// tracer records every executed instruction and optionally prints it.
type tracer struct {
	ring  *debug.Trace
	print bool
}

func (t *tracer) BeforeStep(*cpu.CPU) bool { return false }

func (t *tracer) AfterStep(pc, opcode uint16, err error) {
	e := debug.Entry{PC: pc, Opcode: opcode, Err: err}
	t.ring.Add(e)
	if t.print {
		fmt.Printf("%s %s %s\n", cyan(fmt.Sprintf("PC=%04X", pc)), yellow(fmt.Sprintf("OP=%04X", opcode)), debug.Disassemble(opcode))
	}
}

func main() {
	romPath := flag.String("rom", "", "path to ROM (.ch8)")
	steps := flag.Int("steps", 1_000_000, "max instructions to run")
	trace := flag.Bool("trace", false, "print PC/opcodes")
	traceWindow := flag.Int("traceWindow", 64, "number of recent instructions to dump on a fault")
	screen := flag.Bool("screen", true, "print the display when done")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	colorMode := flag.String("color", "auto", "colour output: auto, always or never")
	debugLog := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	switch *colorMode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !term.IsTerminal(int(os.Stdout.Fd()))
	}

	logger := config.CreateLogger(*debugLog, !*debugLog)
	if *romPath == "" {
		logger.Fatal("-rom is required")
	}
	img, err := rom.Load(*romPath)
	if err != nil {
		logger.Fatal(err.Error())
	}
	cfg := emu.DefaultConfig()
	m, err := emu.New(cfg, logger)
	if err != nil {
		logger.Fatal(err.Error())
	}
	if err := m.LoadROM(img); err != nil {
		logger.Fatal(err.Error())
	}
	tr := &tracer{ring: debug.NewTrace(*traceWindow), print: *trace}
	m.SetHook(tr)

	ctx := app.Context()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	// timers tick at TimerHz of emulated time, i.e. every CPS/TimerHz instructions
	tickEvery := cfg.CyclesPerSecond / cfg.TimerHz
	start := time.Now()
	code := 0
	i := 0
	for ; i < *steps; i++ {
		if err := m.Step(); err != nil {
			fmt.Printf("\n%s %v\n", red("FAULT"), err)
			tr.ring.Dump(os.Stdout)
			code = 1
			break
		}
		if (i+1)%tickEvery == 0 {
			m.TickTimers()
		}
		if i&0x3FF == 0 && ctx.Err() != nil {
			fmt.Printf("\n%s after %s.\n", yellow("Stopped"), time.Since(start).Truncate(time.Millisecond))
			code = 2
			break
		}
	}

	if *screen {
		fb := m.Framebuffer(nil)
		width := fb.Width()
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w < width {
			width = w
		}
		fmt.Println()
		for y := 0; y < fb.Height(); y++ {
			line := make([]byte, width)
			for x := 0; x < width; x++ {
				line[x] = ' '
				if fb.Pixel(x, y) {
					line[x] = '#'
				}
			}
			fmt.Println(string(line))
		}
		fmt.Printf("fb_crc32=%08x\n", fb.CRC32())
	}

	s := m.Snapshot()
	status := green("OK")
	if code != 0 {
		status = red("FAILED")
	}
	fmt.Printf("\n%s: steps=%d cycles=%d pc=%04X elapsed=%s\n", status, i, s.Cycles, s.PC,
		time.Since(start).Truncate(time.Millisecond))
	os.Exit(code)
}
