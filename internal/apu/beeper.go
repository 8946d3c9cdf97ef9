// Package apu generates the single square-wave tone CHIP-8 plays while its
// sound timer is non-zero.
package apu

import (
	"encoding/binary"
	"sync"
)

const (
	DefaultSampleRate = 48000
	DefaultFrequency  = 440
	DefaultVolume     = 0.25

	frameSize = 4   // stereo int16
	rampMs    = 2.0 // attack/release ramp at gate edges
)

// Beeper is an io.Reader producing 16-bit little-endian stereo PCM. While
// the gate is open it emits a square wave, otherwise silence.
type Beeper struct {
	mu         sync.Mutex
	sampleRate int
	freq       float64
	volume     float64 // 0..1
	gate       bool
	muted      bool

	phase float64 // 0..1 position within one period
	level float64 // current envelope 0..1
	step  float64 // envelope change per sample
}

func New(sampleRate int, freq, volume float64) *Beeper {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if freq <= 0 {
		freq = DefaultFrequency
	}
	b := &Beeper{
		sampleRate: sampleRate,
		freq:       freq,
		step:       1 / (float64(sampleRate) * rampMs / 1000),
	}
	b.SetVolume(volume)
	return b
}

func (b *Beeper) SampleRate() int { return b.sampleRate }

// SetGate opens or closes the tone.
func (b *Beeper) SetGate(on bool) {
	b.mu.Lock()
	b.gate = on
	b.mu.Unlock()
}

func (b *Beeper) Gate() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gate
}

func (b *Beeper) SetMuted(m bool) {
	b.mu.Lock()
	b.muted = m
	b.mu.Unlock()
}

func (b *Beeper) Muted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.muted
}

// SetVolume clamps v to 0..1.
func (b *Beeper) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	b.mu.Lock()
	b.volume = v
	b.mu.Unlock()
}

func (b *Beeper) Read(p []byte) (int, error) {
	if len(p) < frameSize {
		// never return 0 bytes, the player treats that as a stall
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := len(p) / frameSize
	target := 0.0
	if b.gate && !b.muted {
		target = 1
	}
	inc := b.freq / float64(b.sampleRate)
	for i := 0; i < frames; i++ {
		switch {
		case b.level < target:
			b.level = min(target, b.level+b.step)
		case b.level > target:
			b.level = max(target, b.level-b.step)
		}
		var s int16
		if b.level > 0 {
			amp := b.level * b.volume * 32767
			if b.phase < 0.5 {
				s = int16(amp)
			} else {
				s = -int16(amp)
			}
			b.phase += inc
			if b.phase >= 1 {
				b.phase -= 1
			}
		} else {
			b.phase = 0
		}
		o := i * frameSize
		binary.LittleEndian.PutUint16(p[o:], uint16(s))
		binary.LittleEndian.PutUint16(p[o+2:], uint16(s))
	}
	return frames * frameSize, nil
}
