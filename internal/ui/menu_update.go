package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/rom"
)

var mainMenuItems = []string{"Resume", "Reset", "Switch ROM", "Quirks", "Close"}

func (a *App) updateMainMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < len(mainMenuItems)-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		switch a.menuIdx {
		case 0:
			a.paused = false
			a.showMenu = false
		case 1:
			a.reload()
			a.showMenu = false
		case 2:
			a.romList = a.findROMs()
			a.romSel = 0
			a.romOff = 0
			a.menuMode = "rom"
		case 3:
			a.menuMode = "quirks"
			a.menuIdx = 0
		case 4:
			a.showMenu = false
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
	}
}

func (a *App) findROMs() []string {
	list, err := rom.Find(a.cfg.Settings.ROMsDir)
	if err != nil {
		a.toast("ROM scan failed: " + err.Error())
	}
	return list
}

func (a *App) updateRomMenu() {
	n := len(a.romList)
	if n == 0 {
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
			a.menuMode = "main"
		}
		return
	}
	// compute window to maintain selection visibility
	baseY := 40
	maxRows := (a.curH - baseY) / 14
	if maxRows < 1 {
		maxRows = 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
		a.romSel--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
		a.romSel++
	}
	if a.romSel < a.romOff {
		a.romOff = a.romSel
	}
	if a.romSel >= a.romOff+maxRows {
		a.romOff = a.romSel - maxRows + 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.loadROM(a.romList[a.romSel])
		a.menuMode = "main"
		a.showMenu = false
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
	}
}

func (a *App) updateQuirksMenu() {
	const items = 3
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < items-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) || inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) || inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		q := a.m.Config().Quirks
		var name string
		var on bool
		switch a.menuIdx {
		case 0:
			q.CollisionSetsVF = !q.CollisionSetsVF
			name, on = "Collision sets VF", q.CollisionSetsVF
		case 1:
			q.LogicResetsVF = !q.LogicResetsVF
			name, on = "Logic resets VF", q.LogicResetsVF
		case 2:
			q.ShiftUsesVY = !q.ShiftUsesVY
			name, on = "Shift uses VY", q.ShiftUsesVY
		}
		a.m.SetQuirks(q)
		a.cfg.Settings.Quirks = &q
		a.saveSettings()
		a.toast(fmt.Sprintf("%s: %s", name, onOff(on)))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		a.menuIdx = 3
	}
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}
