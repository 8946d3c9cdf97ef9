package main

import (
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"strings"
	"time"

	"github.com/retroenv/retrogolib/log"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/ui"
)

type CLIFlags struct {
	ROMPath string
	Scale   int
	Title   string
	CPS     int
	ChunkMs int
	Debug   bool
	Quiet   bool

	QuirkCollision bool
	QuirkLogic     bool
	QuirkShift     bool

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")

	set map[string]bool // flags given on the command line
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.ch8)")
	flag.IntVar(&f.Scale, "scale", 10, "window scale")
	flag.StringVar(&f.Title, "title", "chip8", "window title")
	flag.IntVar(&f.CPS, "cps", emu.DefaultCyclesPerSecond, "instructions per second")
	flag.IntVar(&f.ChunkMs, "chunk", emu.DefaultChunkIntervalMs, "scheduler batch interval in ms")
	flag.BoolVar(&f.Debug, "debug", false, "debug logging")
	flag.BoolVar(&f.Quiet, "quiet", false, "only log errors")

	flag.BoolVar(&f.QuirkCollision, "quirk-collision", true, "DXYN sets VF on collision")
	flag.BoolVar(&f.QuirkLogic, "quirk-logic", true, "8XY1/8XY2/8XY3 reset VF")
	flag.BoolVar(&f.QuirkShift, "quirk-shift", true, "8XY6/8XYE shift VY into VX")

	// headless options
	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "60 Hz frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()

	f.set = make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f
}

// applyFlags overrides persisted settings with flags given explicitly.
func applyFlags(f CLIFlags, s *config.Settings) {
	if f.set["scale"] {
		s.Scale = f.Scale
	}
	if f.set["cps"] {
		s.CyclesPerSecond = f.CPS
	}
	if f.set["quirk-collision"] {
		s.Quirks.CollisionSetsVF = f.QuirkCollision
	}
	if f.set["quirk-logic"] {
		s.Quirks.LogicResetsVF = f.QuirkLogic
	}
	if f.set["quirk-shift"] {
		s.Quirks.ShiftUsesVY = f.QuirkShift
	}
}

func runHeadless(logger *log.Logger, m *emu.Machine, s config.Settings, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	frame := time.Second / 60
	var runErr error
	for i := 0; i < frames && runErr == nil; i++ {
		runErr = m.Advance(frame)
	}
	dur := time.Since(start)

	fb := m.Framebuffer(nil)
	crc := fb.CRC32()
	logger.Info("Headless run finished",
		log.Int("frames", frames),
		log.String("elapsed", dur.Truncate(time.Millisecond).String()),
		log.String("fb_crc32", fmt.Sprintf("%08x", crc)))
	if runErr != nil {
		return runErr
	}

	if pngPath != "" {
		on, off := s.Colors()
		if err := saveFramePNG(fb, on, off, s.Scale, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		logger.Info("Wrote screenshot", log.String("path", pngPath))
	}

	if expectCRC != "" {
		// normalize expected hex (allow with/without 0x, upper/lowercase)
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func saveFramePNG(fb *display.Framebuffer, on, off color.RGBA, scale int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, fb.Scaled(on, off, scale))
}

func loadROM(m *emu.Machine, path string) error {
	img, err := rom.Load(path)
	if err != nil {
		return err
	}
	return m.LoadROM(img)
}

func main() {
	f := parseFlags()
	logger := config.CreateLogger(f.Debug, f.Quiet)

	settingsPath, err := config.DefaultPath()
	if err != nil {
		logger.Warn("Settings directory unavailable", log.Err(err))
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		logger.Warn("Using default settings", log.Err(err))
	}
	applyFlags(f, &settings)

	cfg := emu.DefaultConfig()
	cfg.CyclesPerSecond = settings.CyclesPerSecond
	cfg.ChunkIntervalMs = f.ChunkMs
	cfg.Quirks = *settings.Quirks
	m, err := emu.New(cfg, logger)
	if err != nil {
		logger.Fatal(err.Error())
	}

	if f.Headless && f.ROMPath == "" {
		logger.Fatal("-rom is required in headless mode")
	}
	if path := settings.StartupROM(f.ROMPath); path != "" {
		err := loadROM(m, path)
		switch {
		case err == nil:
			settings.LastROM = path
		case f.ROMPath != "":
			logger.Fatal(err.Error())
		default:
			logger.Warn("Last ROM not loaded", log.String("path", path), log.Err(err))
		}
	}

	if f.Headless {
		if err := runHeadless(logger, m, settings, f.Frames, f.PNGOut, f.Expect); err != nil {
			logger.Fatal(err.Error())
		}
		return
	}

	uiCfg := ui.Config{Title: f.Title, Settings: settings}
	if settingsPath != "" {
		uiCfg.SettingsPath = settingsPath
	}
	app := ui.NewApp(uiCfg, m, logger)
	if err := app.Run(); err != nil {
		logger.Fatal(err.Error())
	}
}
