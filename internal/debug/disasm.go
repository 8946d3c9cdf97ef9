// Package debug provides disassembly, instruction tracing and breakpoints
// for the interpreter.
package debug

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"

	"github.com/FabianRolfMatthiasNoll/Chip8Emulator/internal/cpu"
)

// Mnemonic returns the instruction name for raw, or "" for words that do
// not decode.
func Mnemonic(raw uint16) string {
	ins := cpu.Decode(raw)
	if ins.Op == cpu.OpInvalid {
		return ""
	}
	if op, ok := lookup(raw); ok {
		return strings.ToUpper(op.Instruction.Name)
	}
	return fallbackNames[ins.Op]
}

// lookup finds raw in the opcode table, keyed by the high nibble.
func lookup(raw uint16) (chip8.Opcode, bool) {
	for _, op := range chip8.Opcodes[int(raw>>12)] {
		if op.Info.Mask&raw == op.Info.Value && op.Instruction != nil {
			return op, true
		}
	}
	return chip8.Opcode{}, false
}

var fallbackNames = map[cpu.Op]string{
	cpu.OpCLS: "CLS", cpu.OpRET: "RET", cpu.OpJP: "JP", cpu.OpCALL: "CALL",
	cpu.OpSEByte: "SE", cpu.OpSNEByte: "SNE", cpu.OpSEReg: "SE", cpu.OpSNEReg: "SNE",
	cpu.OpLDByte: "LD", cpu.OpADDByte: "ADD", cpu.OpLDReg: "LD", cpu.OpOR: "OR",
	cpu.OpAND: "AND", cpu.OpXOR: "XOR", cpu.OpADDReg: "ADD", cpu.OpSUB: "SUB",
	cpu.OpSHR: "SHR", cpu.OpSUBN: "SUBN", cpu.OpSHL: "SHL", cpu.OpLDI: "LD",
	cpu.OpJPV0: "JP", cpu.OpRND: "RND", cpu.OpDRW: "DRW", cpu.OpSKP: "SKP",
	cpu.OpSKNP: "SKNP", cpu.OpLDVxDT: "LD", cpu.OpLDVxK: "LD", cpu.OpLDDTVx: "LD",
	cpu.OpLDSTVx: "LD", cpu.OpADDI: "ADD", cpu.OpLDF: "LD", cpu.OpLDB: "LD",
	cpu.OpLDIVx: "LD", cpu.OpLDVxI: "LD",
}

// Disassemble renders raw in assembler syntax, e.g. "LD V3, $2A". Words
// that are not instructions render as a data directive.
func Disassemble(raw uint16) string {
	name := Mnemonic(raw)
	if name == "" {
		return fmt.Sprintf("DW $%04X", raw)
	}
	if params := operands(cpu.Decode(raw)); params != "" {
		return name + " " + params
	}
	return name
}

func operands(ins cpu.Instruction) string {
	x, y := ins.X, ins.Y
	switch ins.Op {
	case cpu.OpJP, cpu.OpCALL:
		return fmt.Sprintf("$%03X", ins.NNN)
	case cpu.OpJPV0:
		return fmt.Sprintf("V0, $%03X", ins.NNN)
	case cpu.OpLDI:
		return fmt.Sprintf("I, $%03X", ins.NNN)
	case cpu.OpSEByte, cpu.OpSNEByte, cpu.OpLDByte, cpu.OpADDByte, cpu.OpRND:
		return fmt.Sprintf("V%X, $%02X", x, ins.NN)
	case cpu.OpSEReg, cpu.OpSNEReg, cpu.OpLDReg, cpu.OpOR, cpu.OpAND, cpu.OpXOR,
		cpu.OpADDReg, cpu.OpSUB, cpu.OpSUBN, cpu.OpSHR, cpu.OpSHL:
		return fmt.Sprintf("V%X, V%X", x, y)
	case cpu.OpDRW:
		return fmt.Sprintf("V%X, V%X, $%X", x, y, ins.N)
	case cpu.OpSKP, cpu.OpSKNP:
		return fmt.Sprintf("V%X", x)
	case cpu.OpLDVxDT:
		return fmt.Sprintf("V%X, DT", x)
	case cpu.OpLDVxK:
		return fmt.Sprintf("V%X, K", x)
	case cpu.OpLDDTVx:
		return fmt.Sprintf("DT, V%X", x)
	case cpu.OpLDSTVx:
		return fmt.Sprintf("ST, V%X", x)
	case cpu.OpADDI:
		return fmt.Sprintf("I, V%X", x)
	case cpu.OpLDF:
		return fmt.Sprintf("F, V%X", x)
	case cpu.OpLDB:
		return fmt.Sprintf("B, V%X", x)
	case cpu.OpLDIVx:
		return fmt.Sprintf("[I], V%X", x)
	case cpu.OpLDVxI:
		return fmt.Sprintf("V%X, [I]", x)
	}
	return ""
}

// Line is one disassembled word.
type Line struct {
	Addr uint16
	Raw  uint16
	Text string
}

// Range disassembles mem, which starts at base, two bytes per line. A
// trailing odd byte is ignored.
func Range(mem []byte, base uint16) []Line {
	lines := make([]Line, 0, len(mem)/2)
	for i := 0; i+1 < len(mem); i += 2 {
		raw := uint16(mem[i])<<8 | uint16(mem[i+1])
		lines = append(lines, Line{Addr: base + uint16(i), Raw: raw, Text: Disassemble(raw)})
	}
	return lines
}

func (l Line) String() string {
	return fmt.Sprintf("%04X  %04X  %s", l.Addr, l.Raw, l.Text)
}
