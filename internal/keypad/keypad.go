package keypad

import "sync"

// Keys is the number of keys on the hex keypad.
const Keys = 16

// Keypad tracks which of the 16 keys are held. A caller waiting for a key
// arms a one-shot; the next release consumes it.
type Keypad struct {
	mu    sync.Mutex
	down  [Keys]bool
	armed bool
}

func New() *Keypad { return &Keypad{} }

// IsKeyPressed reports whether key is held. Keys above 0xF are never pressed.
func (k *Keypad) IsKeyPressed(key byte) bool {
	if key >= Keys {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.down[key]
}

// ArmKeyRelease makes the next Release report true once.
func (k *Keypad) ArmKeyRelease() {
	k.mu.Lock()
	k.armed = true
	k.mu.Unlock()
}

// Armed reports whether a release is currently awaited.
func (k *Keypad) Armed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.armed
}

func (k *Keypad) Press(key byte) {
	if key >= Keys {
		return
	}
	k.mu.Lock()
	k.down[key] = true
	k.mu.Unlock()
}

// Release marks key as up. It returns true when the release satisfied an
// armed one-shot, which is then disarmed.
func (k *Keypad) Release(key byte) bool {
	if key >= Keys {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.down[key] = false
	if k.armed {
		k.armed = false
		return true
	}
	return false
}

// Reset releases every key and drops a pending arm.
func (k *Keypad) Reset() {
	k.mu.Lock()
	k.down = [Keys]bool{}
	k.armed = false
	k.mu.Unlock()
}

// State returns a bitmask of held keys, bit n for key n.
func (k *Keypad) State() uint16 {
	k.mu.Lock()
	defer k.mu.Unlock()
	var s uint16
	for i, d := range k.down {
		if d {
			s |= 1 << i
		}
	}
	return s
}

// Held formats a State mask as the hex digits of the held keys in key
// order, e.g. "15C". It returns "" when nothing is held.
func Held(mask uint16) string {
	const digits = "0123456789ABCDEF"
	var b []byte
	for i := 0; i < Keys; i++ {
		if mask&(1<<i) != 0 {
			b = append(b, digits[i])
		}
	}
	return string(b)
}
