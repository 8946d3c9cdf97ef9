package ui

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/retroenv/retrogolib/log"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/apu"
)

// playerBuffer keeps the tone responsive to sound timer changes.
const playerBuffer = 40 * time.Millisecond

func (a *App) initAudio() {
	s := a.cfg.Settings
	a.beeper = apu.New(apu.DefaultSampleRate, apu.DefaultFrequency, s.Volume)
	a.beeper.SetMuted(s.Muted)
	a.audioCtx = audio.NewContext(a.beeper.SampleRate())
	p, err := a.audioCtx.NewPlayer(a.beeper)
	if err != nil {
		a.log.Warn("Audio disabled", log.Err(err))
		return
	}
	a.audioPlayer = p
	a.audioPlayer.SetBufferSize(playerBuffer)
	a.audioPlayer.Play()
}

func (a *App) setMuted(m bool) {
	a.cfg.Settings.Muted = m
	a.beeper.SetMuted(m)
	a.saveSettings()
	if m {
		a.toast("Muted")
	} else {
		a.toast("Sound on")
	}
}
