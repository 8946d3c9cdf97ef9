package ui

import (
	"fmt"
	"image/color"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

func (a *App) drawMenuOverlay(screen *ebiten.Image) {
	vector.DrawFilledRect(screen, 0, 0, float32(a.curW), float32(a.curH), color.RGBA{0, 0, 0, 192}, false)
	switch a.menuMode {
	case "rom":
		a.drawRomMenu(screen)
	case "quirks":
		a.drawQuirksMenu(screen)
	default:
		a.drawMainMenu(screen)
	}
}

func (a *App) drawMainMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, "Menu:", 10, 10)
	for i, s := range mainMenuItems {
		prefix := "  "
		if i == a.menuIdx {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 24+i*14)
	}
	hint := "P: Pause  N: Step  F5: Reset  M: Mute  F12: Screenshot"
	hint = a.truncateText(hint, a.maxCharsForText(10))
	ebitenutil.DebugPrintAt(screen, hint, 10, 24+len(mainMenuItems)*14+6)
}

func (a *App) drawRomMenu(screen *ebiten.Image) {
	ebitenutil.DebugPrintAt(screen, a.truncateText("Select ROM (Enter to load, Backspace to return)", a.maxCharsForText(10)), 10, 10)
	// show configured ROMs directory
	d := a.truncateText("Dir: "+a.cfg.Settings.ROMsDir, a.maxCharsForText(10))
	ebitenutil.DebugPrintAt(screen, d, 10, 24)
	if len(a.romList) == 0 {
		ebitenutil.DebugPrintAt(screen, "No ROMs found", 10, 40)
		return
	}
	baseY := 40
	maxRows := (a.curH - baseY) / 14
	if maxRows < 1 {
		maxRows = 1
	}
	end := a.romOff + maxRows
	if end > len(a.romList) {
		end = len(a.romList)
	}
	maxChars := a.maxCharsForText(10) - 2 // account for "> " prefix
	for i, p := range a.romList[a.romOff:end] {
		prefix := "  "
		if a.romOff+i == a.romSel {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+a.truncateText(filepath.Base(p), maxChars), 10, baseY+i*14)
	}
	// scroll indicators
	if a.romOff > 0 {
		ebitenutil.DebugPrintAt(screen, "^", 2, baseY)
	}
	if end < len(a.romList) {
		ebitenutil.DebugPrintAt(screen, "v", 2, baseY+(maxRows-1)*14)
	}
}

func (a *App) drawQuirksMenu(screen *ebiten.Image) {
	q := a.m.Config().Quirks
	ebitenutil.DebugPrintAt(screen, a.truncateText("Quirks (Enter toggles, Backspace returns)", a.maxCharsForText(10)), 10, 10)
	items := []string{
		fmt.Sprintf("Collision sets VF: %s", onOff(q.CollisionSetsVF)),
		fmt.Sprintf("Logic resets VF:   %s", onOff(q.LogicResetsVF)),
		fmt.Sprintf("Shift uses VY:     %s", onOff(q.ShiftUsesVY)),
	}
	for i, s := range items {
		prefix := "  "
		if i == a.menuIdx {
			prefix = "> "
		}
		ebitenutil.DebugPrintAt(screen, prefix+s, 10, 24+i*14)
	}
}
