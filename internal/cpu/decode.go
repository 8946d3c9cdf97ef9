package cpu

import "fmt"

// Op identifies one entry of the CHIP-8 opcode table.
type Op uint8

const (
	OpInvalid Op = iota
	OpCLS        // 00E0
	OpRET        // 00EE
	OpJP         // 1NNN
	OpCALL       // 2NNN
	OpSEByte     // 3XNN
	OpSNEByte    // 4XNN
	OpSEReg      // 5XY0
	OpLDByte     // 6XNN
	OpADDByte    // 7XNN
	OpLDReg      // 8XY0
	OpOR         // 8XY1
	OpAND        // 8XY2
	OpXOR        // 8XY3
	OpADDReg     // 8XY4
	OpSUB        // 8XY5
	OpSHR        // 8XY6
	OpSUBN       // 8XY7
	OpSHL        // 8XYE
	OpSNEReg     // 9XY0
	OpLDI        // ANNN
	OpJPV0       // BNNN
	OpRND        // CXNN
	OpDRW        // DXYN
	OpSKP        // EX9E
	OpSKNP       // EXA1
	OpLDVxDT     // FX07
	OpLDVxK      // FX0A
	OpLDDTVx     // FX15
	OpLDSTVx     // FX18
	OpADDI       // FX1E
	OpLDF        // FX29
	OpLDB        // FX33
	OpLDIVx      // FX55
	OpLDVxI      // FX65
	opCount
)

var opPatterns = [opCount]string{
	OpInvalid: "????",
	OpCLS:     "00E0", OpRET: "00EE", OpJP: "1NNN", OpCALL: "2NNN",
	OpSEByte: "3XNN", OpSNEByte: "4XNN", OpSEReg: "5XY0", OpLDByte: "6XNN", OpADDByte: "7XNN",
	OpLDReg: "8XY0", OpOR: "8XY1", OpAND: "8XY2", OpXOR: "8XY3", OpADDReg: "8XY4",
	OpSUB: "8XY5", OpSHR: "8XY6", OpSUBN: "8XY7", OpSHL: "8XYE", OpSNEReg: "9XY0",
	OpLDI: "ANNN", OpJPV0: "BNNN", OpRND: "CXNN", OpDRW: "DXYN", OpSKP: "EX9E", OpSKNP: "EXA1",
	OpLDVxDT: "FX07", OpLDVxK: "FX0A", OpLDDTVx: "FX15", OpLDSTVx: "FX18", OpADDI: "FX1E",
	OpLDF: "FX29", OpLDB: "FX33", OpLDIVx: "FX55", OpLDVxI: "FX65",
}

// String returns the opcode pattern, e.g. "8XY4".
func (o Op) String() string {
	if o >= opCount {
		return fmt.Sprintf("Op(%d)", o)
	}
	return opPatterns[o]
}

// Instruction is a decoded 16-bit instruction word.
type Instruction struct {
	Op  Op
	Raw uint16
	X   byte   // second nibble
	Y   byte   // third nibble
	N   byte   // fourth nibble
	NN  byte   // low byte
	NNN uint16 // low 12 bits
}

func (i Instruction) String() string {
	return fmt.Sprintf("%04X (%s)", i.Raw, i.Op)
}

// Decode splits raw into its fields and selects the table entry. Words that
// match no entry decode to OpInvalid.
func Decode(raw uint16) Instruction {
	ins := Instruction{
		Raw: raw,
		X:   byte(raw>>8) & 0x0F,
		Y:   byte(raw>>4) & 0x0F,
		N:   byte(raw) & 0x0F,
		NN:  byte(raw),
		NNN: raw & 0x0FFF,
	}
	ins.Op = lookup(raw, ins.N, ins.NN)
	return ins
}

func lookup(raw uint16, n, nn byte) Op {
	switch raw >> 12 {
	case 0x0:
		switch raw {
		case 0x00E0:
			return OpCLS
		case 0x00EE:
			return OpRET
		}
	case 0x1:
		return OpJP
	case 0x2:
		return OpCALL
	case 0x3:
		return OpSEByte
	case 0x4:
		return OpSNEByte
	case 0x5:
		if n == 0 {
			return OpSEReg
		}
	case 0x6:
		return OpLDByte
	case 0x7:
		return OpADDByte
	case 0x8:
		switch n {
		case 0x0:
			return OpLDReg
		case 0x1:
			return OpOR
		case 0x2:
			return OpAND
		case 0x3:
			return OpXOR
		case 0x4:
			return OpADDReg
		case 0x5:
			return OpSUB
		case 0x6:
			return OpSHR
		case 0x7:
			return OpSUBN
		case 0xE:
			return OpSHL
		}
	case 0x9:
		if n == 0 {
			return OpSNEReg
		}
	case 0xA:
		return OpLDI
	case 0xB:
		return OpJPV0
	case 0xC:
		return OpRND
	case 0xD:
		return OpDRW
	case 0xE:
		switch nn {
		case 0x9E:
			return OpSKP
		case 0xA1:
			return OpSKNP
		}
	case 0xF:
		switch nn {
		case 0x07:
			return OpLDVxDT
		case 0x0A:
			return OpLDVxK
		case 0x15:
			return OpLDDTVx
		case 0x18:
			return OpLDSTVx
		case 0x1E:
			return OpADDI
		case 0x29:
			return OpLDF
		case 0x33:
			return OpLDB
		case 0x55:
			return OpLDIVx
		case 0x65:
			return OpLDVxI
		}
	}
	return OpInvalid
}
