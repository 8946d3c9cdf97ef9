package debug

import (
	"fmt"
	"io"
)

// Entry is one executed instruction.
type Entry struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (e Entry) String() string {
	s := fmt.Sprintf("PC=%04X OP=%04X %s", e.PC, e.Opcode, Disassemble(e.Opcode))
	if e.Err != nil {
		s += " ! " + e.Err.Error()
	}
	return s
}

// Trace keeps the most recent entries in a fixed ring.
type Trace struct {
	ring []Entry
	idx  int
	fill int
}

func NewTrace(size int) *Trace {
	if size < 1 {
		size = 1
	}
	return &Trace{ring: make([]Entry, size)}
}

func (t *Trace) Add(e Entry) {
	t.ring[t.idx] = e
	t.idx = (t.idx + 1) % len(t.ring)
	if t.fill < len(t.ring) {
		t.fill++
	}
}

func (t *Trace) Len() int { return t.fill }

// Entries returns the retained entries in chronological order.
func (t *Trace) Entries() []Entry {
	out := make([]Entry, 0, t.fill)
	start := (t.idx - t.fill + len(t.ring)) % len(t.ring)
	for j := 0; j < t.fill; j++ {
		out = append(out, t.ring[(start+j)%len(t.ring)])
	}
	return out
}

func (t *Trace) Reset() { t.idx, t.fill = 0, 0 }

// Dump writes the entries oldest first, framed like a log section.
func (t *Trace) Dump(w io.Writer) {
	fmt.Fprintf(w, "--- recent trace (last %d instructions) ---\n", t.fill)
	for _, e := range t.Entries() {
		fmt.Fprintln(w, e.String())
	}
	fmt.Fprintf(w, "--- end trace ---\n")
}
