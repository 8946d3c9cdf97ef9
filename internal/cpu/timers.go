package cpu

// Timers holds the delay and sound counters. Both count down once per Tick
// and stop at zero.
type Timers struct {
	Delay byte
	Sound byte
}

// Tick advances both counters by one step of the 60 Hz cadence.
func (t *Timers) Tick() {
	if t.Delay > 0 {
		t.Delay--
	}
	if t.Sound > 0 {
		t.Sound--
	}
}

// SoundActive reports whether the tone should be audible.
func (t *Timers) SoundActive() bool { return t.Sound > 0 }

func (t *Timers) reset() { t.Delay, t.Sound = 0, 0 }
