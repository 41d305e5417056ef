package cpu

import (
	"gochip8/pkg/font"
	"gochip8/pkg/memory"
)

func (c *CPU) skip() {
	c.PC += 2
}

func opClearScreen(c *CPU, _ Instruction, _ Keypad) error {
	c.ClearScreen()
	return nil
}

func opReturn(c *CPU, _ Instruction, _ Keypad) error {
	addr, err := c.stack.Pop()
	if err != nil {
		return err
	}
	c.PC = addr
	return nil
}

func opJump(c *CPU, in Instruction, _ Keypad) error {
	c.PC = in.NNN
	return nil
}

func opCall(c *CPU, in Instruction, _ Keypad) error {
	if err := c.stack.Push(c.PC); err != nil {
		return err
	}
	c.PC = in.NNN
	return nil
}

func opSkipEqImm(c *CPU, in Instruction, _ Keypad) error {
	if c.Regs[in.X] == in.NN {
		c.skip()
	}
	return nil
}

func opSkipNeImm(c *CPU, in Instruction, _ Keypad) error {
	if c.Regs[in.X] != in.NN {
		c.skip()
	}
	return nil
}

func opSkipEqReg(c *CPU, in Instruction, _ Keypad) error {
	if c.Regs[in.X] == c.Regs[in.Y] {
		c.skip()
	}
	return nil
}

func opSkipNeReg(c *CPU, in Instruction, _ Keypad) error {
	if c.Regs[in.X] != c.Regs[in.Y] {
		c.skip()
	}
	return nil
}

func opLoadImm(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] = in.NN
	return nil
}

// opAddImm wraps modulo 256 and never touches VF.
func opAddImm(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] += in.NN
	return nil
}

func opCopy(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] = c.Regs[in.Y]
	return nil
}

func opOr(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] |= c.Regs[in.Y]
	return nil
}

func opAnd(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] &= c.Regs[in.Y]
	return nil
}

func opXor(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] ^= c.Regs[in.Y]
	return nil
}

// The arithmetic and shift ops write Vx before VF, so VF holds the flag
// even when X is F.

func opAdd(c *CPU, in Instruction, _ Keypad) error {
	sum := uint16(c.Regs[in.X]) + uint16(c.Regs[in.Y])
	c.Regs[in.X] = byte(sum)
	c.setFlag(boolToFlag(sum > 0xFF))
	return nil
}

func opSub(c *CPU, in Instruction, _ Keypad) error {
	vx, vy := c.Regs[in.X], c.Regs[in.Y]
	c.Regs[in.X] = vx - vy
	c.setFlag(boolToFlag(vx >= vy))
	return nil
}

func opSubReverse(c *CPU, in Instruction, _ Keypad) error {
	vx, vy := c.Regs[in.X], c.Regs[in.Y]
	c.Regs[in.X] = vy - vx
	c.setFlag(boolToFlag(vy >= vx))
	return nil
}

func opShiftRight(c *CPU, in Instruction, _ Keypad) error {
	v := c.Regs[in.X]
	if c.Quirks.ShiftUsesVY {
		v = c.Regs[in.Y]
	}
	c.Regs[in.X] = v >> 1
	c.setFlag(v & 1)
	return nil
}

func opShiftLeft(c *CPU, in Instruction, _ Keypad) error {
	v := c.Regs[in.X]
	if c.Quirks.ShiftUsesVY {
		v = c.Regs[in.Y]
	}
	c.Regs[in.X] = v << 1
	c.setFlag(v >> 7)
	return nil
}

func opLoadIndex(c *CPU, in Instruction, _ Keypad) error {
	c.I = in.NNN
	return nil
}

func opJumpOffset(c *CPU, in Instruction, _ Keypad) error {
	reg := in.X
	if c.Quirks.JumpUsesV0 {
		reg = 0
	}
	c.PC = in.NNN + uint16(c.Regs[reg])
	return nil
}

func opRandom(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] = c.random() & in.NN
	return nil
}

// opDraw XORs an N-row sprite from memory at I onto the display at
// (Vx, Vy). The anchor wraps; the sprite body clips at the right and bottom
// edges. VF is cleared first and set if any lit pixel is turned off.
func opDraw(c *CPU, in Instruction, _ Keypad) error {
	x0 := int(c.Regs[in.X]) % Width
	y0 := int(c.Regs[in.Y]) % Height
	c.setFlag(0)

	collided := false
	for row := 0; row < int(in.N); row++ {
		y := y0 + row
		if y >= Height {
			break
		}
		bits, err := c.read(int(c.I) + row)
		if err != nil {
			return err
		}
		for b := 0; b < 8; b++ {
			x := x0 + b
			if x >= Width {
				break
			}
			if bits&(0x80>>b) == 0 {
				continue
			}
			if c.Display.flip(x, y) {
				collided = true
			}
		}
	}
	if collided {
		c.setFlag(1)
	}
	return nil
}

// Only the low nibble of Vx selects the key.
func opSkipKeyDown(c *CPU, in Instruction, keys Keypad) error {
	if keys[c.Regs[in.X]&0x0F] {
		c.skip()
	}
	return nil
}

func opSkipKeyUp(c *CPU, in Instruction, keys Keypad) error {
	if !keys[c.Regs[in.X]&0x0F] {
		c.skip()
	}
	return nil
}

func opReadDelay(c *CPU, in Instruction, _ Keypad) error {
	c.Regs[in.X] = c.DelayTimer
	return nil
}

func opWriteDelay(c *CPU, in Instruction, _ Keypad) error {
	c.DelayTimer = c.Regs[in.X]
	return nil
}

func opWriteSound(c *CPU, in Instruction, _ Keypad) error {
	c.SoundTimer = c.Regs[in.X]
	return nil
}

// opWaitKey blocks by rewinding PC so the same instruction runs again on the
// next step. With KeyWaitRelease the read completes only once the latched key
// is let go.
func opWaitKey(c *CPU, in Instruction, keys Keypad) error {
	if c.KeyWait == KeyWaitRelease {
		if keys[c.WaitKey] {
			c.PC -= 2
			return nil
		}
		c.KeyWait = KeyWaitIdle
		return nil
	}

	key, ok := firstDown(keys)
	if !ok {
		c.KeyWait = KeyWaitPress
		c.PC -= 2
		return nil
	}

	c.Regs[in.X] = key
	if !c.Quirks.KeyWaitRelease {
		c.KeyWait = KeyWaitIdle
		return nil
	}
	c.WaitKey = key
	c.KeyWait = KeyWaitRelease
	c.PC -= 2
	return nil
}

func firstDown(keys Keypad) (uint8, bool) {
	for k, down := range keys {
		if down {
			return uint8(k), true
		}
	}
	return 0, false
}

func opAddIndex(c *CPU, in Instruction, _ Keypad) error {
	sum := int(c.I) + int(c.Regs[in.X])
	c.I = uint16(sum)
	if c.Quirks.IndexOverflowFlag {
		c.setFlag(boolToFlag(sum >= memory.Size))
	}
	return nil
}

func opFontAddress(c *CPU, in Instruction, _ Keypad) error {
	digit := c.Regs[in.X]
	if digit > 0x0F {
		c.diagnose(InvalidDigit, in)
		return nil
	}
	c.I = memory.FontBase + uint16(digit)*font.GlyphSize
	return nil
}

func opBCD(c *CPU, in Instruction, _ Keypad) error {
	v := c.Regs[in.X]
	digits := [3]byte{v / 100, (v / 10) % 10, v % 10}
	for i, d := range digits {
		if err := c.write(int(c.I)+i, d); err != nil {
			return err
		}
	}
	return nil
}

func opStoreRegs(c *CPU, in Instruction, _ Keypad) error {
	for r := 0; r <= int(in.X); r++ {
		if err := c.write(int(c.I)+r, c.Regs[r]); err != nil {
			return err
		}
	}
	if c.Quirks.IndexIncrement {
		c.I += uint16(in.X) + 1
	}
	return nil
}

func opLoadRegs(c *CPU, in Instruction, _ Keypad) error {
	for r := 0; r <= int(in.X); r++ {
		v, err := c.read(int(c.I) + r)
		if err != nil {
			return err
		}
		c.Regs[r] = v
	}
	if c.Quirks.IndexIncrement {
		c.I += uint16(in.X) + 1
	}
	return nil
}

func boolToFlag(b bool) byte {
	if b {
		return 1
	}
	return 0
}
