package main

import (
	"fmt"
	"strings"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/debug"
	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/display"
)

func renderRegs(s cpu.Snapshot, state string) string {
	var sb strings.Builder
	for i := 0; i < 16; i++ {
		fmt.Fprintf(&sb, "V%X=%02X", i, s.V[i])
		if i%4 == 3 {
			sb.WriteByte('\n')
		} else {
			sb.WriteByte(' ')
		}
	}
	fmt.Fprintf(&sb, "PC=%04X I=%03X\n", s.PC, s.I)
	fmt.Fprintf(&sb, "DT=%02X ST=%02X\n", s.Delay, s.Sound)
	fmt.Fprintf(&sb, "cycles=%d\n", s.Cycles)
	if s.AwaitingKey {
		fmt.Fprintf(&sb, "waiting key -> V%X\n", s.KeyRegister)
	}
	sb.WriteString(state)
	return sb.String()
}

func renderStack(s cpu.Snapshot) string {
	if len(s.Stack) == 0 {
		return "(empty)"
	}
	var sb strings.Builder
	for i := len(s.Stack) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%2d %04X\n", i, s.Stack[i])
	}
	return sb.String()
}

// renderScreen packs two display rows into one text row with half blocks.
func renderScreen(fb *display.Framebuffer) string {
	var sb strings.Builder
	for y := 0; y < fb.Height(); y += 2 {
		for x := 0; x < fb.Width(); x++ {
			top, bottom := fb.Pixel(x, y), fb.Pixel(x, y+1)
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// renderDisasm lists mem (starting at base) marking the PC with '>' and
// breakpoints with '*'.
func renderDisasm(mem []byte, base, pc uint16, isBreak func(uint16) bool) string {
	var sb strings.Builder
	for _, l := range debug.Range(mem, base) {
		mark := ' '
		if l.Addr == pc {
			mark = '>'
		}
		bp := ' '
		if isBreak(l.Addr) {
			bp = '*'
		}
		fmt.Fprintf(&sb, "%c%c%s\n", bp, mark, l.String())
	}
	return sb.String()
}

// disasmWindow returns the start address of a window of n words around pc,
// kept word aligned with pc.
func disasmWindow(pc uint16, n int) uint16 {
	back := uint16(n/3) * 2
	if pc < back {
		return pc & 1
	}
	return pc - back
}
