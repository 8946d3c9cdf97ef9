package cpu

// Step executes one instruction. While an FX0A is pending it does nothing.
// On a fault PC is left at the failing instruction and no other state changes.
func (c *CPU) Step() error {
	if c.state == AwaitingKey {
		return nil
	}
	pc := c.PC
	raw, err := c.bus.Read16(pc)
	if err != nil {
		return newFault(pc, 0, err)
	}
	c.PC += 2

	ins := Decode(raw)
	if err := c.execute(ins); err != nil {
		c.PC = pc
		return newFault(pc, raw, err)
	}
	c.cycles++
	return nil
}

func (c *CPU) skipIf(cond bool) {
	if cond {
		c.PC += 2
	}
}

func (c *CPU) execute(ins Instruction) error {
	x, y := ins.X, ins.Y
	switch ins.Op {
	case OpCLS:
		c.display.Clear()

	case OpRET:
		addr, err := c.pop()
		if err != nil {
			return err
		}
		c.PC = addr

	case OpJP:
		c.PC = ins.NNN

	case OpCALL:
		if err := c.push(c.PC); err != nil {
			return err
		}
		c.PC = ins.NNN

	case OpSEByte:
		c.skipIf(c.V[x] == ins.NN)
	case OpSNEByte:
		c.skipIf(c.V[x] != ins.NN)
	case OpSEReg:
		c.skipIf(c.V[x] == c.V[y])
	case OpSNEReg:
		c.skipIf(c.V[x] != c.V[y])

	case OpLDByte:
		c.V[x] = ins.NN
	case OpADDByte:
		c.V[x] += ins.NN // no carry flag

	case OpLDReg:
		c.V[x] = c.V[y]
	case OpOR:
		c.V[x] |= c.V[y]
		c.logicFlag()
	case OpAND:
		c.V[x] &= c.V[y]
		c.logicFlag()
	case OpXOR:
		c.V[x] ^= c.V[y]
		c.logicFlag()

	// arithmetic writes VX first and VF last, so VF wins when X == F
	case OpADDReg:
		sum := uint16(c.V[x]) + uint16(c.V[y])
		c.V[x] = byte(sum)
		c.V[0xF] = flag(sum > 0xFF)
	case OpSUB:
		a, b := c.V[x], c.V[y]
		c.V[x] = a - b
		c.V[0xF] = flag(a >= b)
	case OpSUBN:
		a, b := c.V[x], c.V[y]
		c.V[x] = b - a
		c.V[0xF] = flag(b >= a)
	case OpSHR:
		src := c.shiftSource(x, y)
		c.V[x] = src >> 1
		c.V[0xF] = src & 0x01
	case OpSHL:
		src := c.shiftSource(x, y)
		c.V[x] = src << 1
		c.V[0xF] = src >> 7

	case OpLDI:
		c.I = ins.NNN
	case OpJPV0:
		c.PC = ins.NNN + uint16(c.V[0])
	case OpRND:
		c.V[x] = c.cfg.Random() & ins.NN
	case OpDRW:
		return c.draw(x, y, ins.N)

	case OpSKP:
		c.skipIf(c.input.IsKeyPressed(c.V[x]))
	case OpSKNP:
		c.skipIf(!c.input.IsKeyPressed(c.V[x]))

	case OpLDVxDT:
		c.V[x] = c.Timers.Delay
	case OpLDVxK:
		c.state = AwaitingKey
		c.keyReg = x
		c.input.ArmKeyRelease()
	case OpLDDTVx:
		c.Timers.Delay = c.V[x]
	case OpLDSTVx:
		c.Timers.Sound = c.V[x]

	case OpADDI:
		c.I = (c.I + uint16(c.V[x])) & 0x0FFF
	case OpLDF:
		c.I = c.cfg.FontStart + uint16(c.V[x])*FontGlyphSize
	case OpLDB:
		dst, err := c.bus.Slice(c.I, 3)
		if err != nil {
			return err
		}
		v := c.V[x]
		dst[0], dst[1], dst[2] = v/100, v/10%10, v%10
	case OpLDIVx:
		dst, err := c.bus.Slice(c.I, int(x)+1)
		if err != nil {
			return err
		}
		copy(dst, c.V[:x+1])
		c.I = (c.I + uint16(x) + 1) & 0x0FFF
	case OpLDVxI:
		src, err := c.bus.Slice(c.I, int(x)+1)
		if err != nil {
			return err
		}
		copy(c.V[:x+1], src)

	default:
		return ErrInvalidInstruction
	}
	return nil
}

func flag(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (c *CPU) logicFlag() {
	if c.cfg.Quirks.LogicResetsVF {
		c.V[0xF] = 0
	}
}

func (c *CPU) shiftSource(x, y byte) byte {
	if c.cfg.Quirks.ShiftUsesVY {
		return c.V[y]
	}
	return c.V[x]
}

// draw XORs an 8xN sprite from memory at I onto the display. The start
// position wraps once; pixels past the right or bottom edge are clipped.
func (c *CPU) draw(x, y, n byte) error {
	sprite, err := c.bus.Slice(c.I, int(n))
	if err != nil {
		return err
	}
	w, h := c.display.Width(), c.display.Height()
	x0 := int(c.V[x]) % w
	y0 := int(c.V[y]) % h

	collision := false
	for row, bits := range sprite {
		py := y0 + row
		if py >= h {
			break
		}
		for col := 0; col < 8; col++ {
			px := x0 + col
			if px >= w {
				break
			}
			if bits&(0x80>>col) == 0 {
				continue
			}
			if c.display.TogglePixel(px, py) {
				collision = true
			}
		}
	}
	if c.cfg.Quirks.CollisionSetsVF {
		c.V[0xF] = flag(collision)
	}
	return nil
}
