package ui

import (
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/image/font/basicfont"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/apu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/config"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/emu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/keypad"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
)

const statusH = 16 // status line height in screen pixels

type App struct {
	cfg Config
	m   *emu.Machine
	log *log.Logger

	fb  *display.Framebuffer
	pix []byte
	tex *ebiten.Image

	on, off color.RGBA
	paused  bool
	halted  error

	// overlay/menu
	showMenu bool
	menuMode string // "main", "rom", "quirks"
	menuIdx  int
	romList  []string
	romSel   int
	romOff   int
	curW     int
	curH     int

	toastMsg   string
	toastUntil time.Time

	// audio
	audioCtx    *audio.Context
	audioPlayer *audio.Player
	beeper      *apu.Beeper
}

func NewApp(cfg Config, m *emu.Machine, logger *log.Logger) *App {
	cfg.Defaults()
	a := &App{cfg: cfg, m: m, log: logger, menuMode: "main"}
	a.on, a.off = cfg.Settings.Colors()
	a.fb = a.m.Framebuffer(nil)
	a.pix = make([]byte, a.fb.Width()*a.fb.Height()*4)
	a.applyWindowSize()
	a.updateTitle()
	a.initAudio()
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

func (a *App) applyWindowSize() {
	s := a.cfg.Settings.Scale
	ebiten.SetWindowSize(a.fb.Width()*s, a.fb.Height()*s+statusH)
}

func (a *App) updateTitle() {
	title := a.cfg.Title
	if img := a.m.ROM(); img != nil {
		title = a.cfg.Title + " - [" + img.Title() + "]"
	}
	ebiten.SetWindowTitle(title)
}

func (a *App) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = !a.showMenu
		a.menuMode = "main"
		a.menuIdx = 0
	}
	if a.showMenu {
		a.releaseAllKeys()
		switch a.menuMode {
		case "rom":
			a.updateRomMenu()
		case "quirks":
			a.updateQuirksMenu()
		default:
			a.updateMainMenu()
		}
		a.beeper.SetGate(false)
		return nil
	}

	// Keyboard -> hex keypad
	for k, hex := range a.cfg.Keymap {
		if inpututil.IsKeyJustPressed(k) {
			a.m.KeyDown(hex)
		}
		if inpututil.IsKeyJustReleased(k) {
			a.m.KeyUp(hex)
		}
	}

	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	// Reset + reload (F5)
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.reload()
	}
	// Mute (M)
	if inpututil.IsKeyJustPressed(ebiten.KeyM) {
		a.setMuted(!a.cfg.Settings.Muted)
	}
	// Screenshot (F12)
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		if name, err := a.saveScreenshot(); err == nil {
			a.toast("Saved " + name)
		} else {
			a.toast("Screenshot failed: " + err.Error())
		}
	}
	// Instruction step when paused (N)
	if a.paused && a.halted == nil && inpututil.IsKeyJustPressed(ebiten.KeyN) {
		a.handle(a.m.Step())
	}

	if !a.paused && a.halted == nil {
		a.handle(a.m.Advance(time.Second / time.Duration(ebiten.TPS())))
	}
	a.beeper.SetGate(!a.paused && a.m.SoundActive())
	return nil
}

// handle reacts to an execution error by pausing.
func (a *App) handle(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, emu.ErrBreakpoint) {
		a.paused = true
		return
	}
	a.halted = err
	a.paused = true
	a.toast("Halted: " + err.Error())
}

func (a *App) releaseAllKeys() {
	for k, hex := range a.cfg.Keymap {
		if inpututil.IsKeyJustReleased(k) {
			a.m.KeyUp(hex)
		}
	}
}

func (a *App) reload() {
	a.halted = nil
	if err := a.m.Reload(); err != nil {
		a.m.Reset()
		if !errors.Is(err, emu.ErrNoROM) {
			a.toast("Reload failed: " + err.Error())
			return
		}
	}
	a.toast("Reset")
}

func (a *App) loadROM(path string) {
	img, err := rom.Load(path)
	if err == nil {
		err = a.m.LoadROM(img)
	}
	if err != nil {
		a.toast("ROM load failed: " + err.Error())
		return
	}
	a.halted = nil
	a.paused = false
	a.cfg.Settings.LastROM = path
	a.saveSettings()
	a.updateTitle()
	a.toast("Loaded ROM: " + filepath.Base(path))
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(a.fb.Width(), a.fb.Height())
	}
	a.m.Framebuffer(a.fb)
	a.fb.RGBAInto(a.pix, a.on, a.off)
	a.tex.WritePixels(a.pix)

	s := float64(a.cfg.Settings.Scale)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(s, s)
	screen.DrawImage(a.tex, op)

	a.drawStatus(screen)

	if a.showMenu {
		a.drawMenuOverlay(screen)
	}
}

func (a *App) drawStatus(screen *ebiten.Image) {
	snap := a.m.Snapshot()
	state := "running"
	switch {
	case a.halted != nil:
		state = "halted"
	case a.paused:
		state = "paused"
	case snap.AwaitingKey:
		state = "waiting for key"
	}
	line := fmt.Sprintf("PC=%04X I=%03X DT=%02X ST=%02X  %s", snap.PC, snap.I, snap.Delay, snap.Sound, state)
	if held := keypad.Held(a.m.Keys()); held != "" {
		line += "  keys=" + held
	}
	if a.cfg.Settings.Muted {
		line += "  muted"
	}
	if msg := a.currentToast(); msg != "" {
		line = msg
	}
	line = a.truncateText(line, a.curW/7)
	y := a.fb.Height()*a.cfg.Settings.Scale + statusH - 4
	text.Draw(screen, line, basicfont.Face7x13, 4, y, a.on)
}

func (a *App) Layout(outW, outH int) (int, int) {
	s := a.cfg.Settings.Scale
	a.curW, a.curH = a.fb.Width()*s, a.fb.Height()*s+statusH
	return a.curW, a.curH
}

func (a *App) saveScreenshot() (string, error) {
	a.m.Framebuffer(a.fb)
	img := a.fb.Scaled(a.on, a.off, a.cfg.Settings.Scale)
	ts := time.Now().Format("20060102_150405")
	title := "chip8"
	if r := a.m.ROM(); r != nil {
		title = r.Title()
	}
	name := fmt.Sprintf("%s_%s.png", title, ts)
	f, err := os.Create(name)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return name, png.Encode(f, img)
}

func (a *App) saveSettings() {
	if a.cfg.SettingsPath == "" {
		return
	}
	if err := config.Save(a.cfg.SettingsPath, a.cfg.Settings); err != nil {
		a.log.Warn("Saving settings failed", log.Err(err))
	}
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) currentToast() string {
	if a.toastMsg == "" || time.Now().After(a.toastUntil) {
		return ""
	}
	return a.toastMsg
}
