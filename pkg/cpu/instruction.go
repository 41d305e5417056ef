package cpu

// Instruction is a decoded 16-bit instruction word.
type Instruction struct {
	Raw uint16
	Op  uint8 // top nibble
	X   uint8
	Y   uint8
	N   uint8  // bottom nibble
	NN  uint8  // Y:N
	NNN uint16 // X:Y:N
}

func Decode(raw uint16) Instruction {
	return Instruction{
		Raw: raw,
		Op:  uint8(raw >> 12),
		X:   uint8(raw>>8) & 0x0F,
		Y:   uint8(raw>>4) & 0x0F,
		N:   uint8(raw) & 0x0F,
		NN:  uint8(raw),
		NNN: raw & 0x0FFF,
	}
}

type handler func(c *CPU, in Instruction, keys Keypad) error

// opTable is indexed by the top nibble. Families 0, 8, E and F dispatch
// again on their low nibble or low byte.
var opTable = [16]handler{
	0x0: execSystem,
	0x1: opJump,
	0x2: opCall,
	0x3: opSkipEqImm,
	0x4: opSkipNeImm,
	0x5: execSkipEqReg,
	0x6: opLoadImm,
	0x7: opAddImm,
	0x8: execALU,
	0x9: execSkipNeReg,
	0xA: opLoadIndex,
	0xB: opJumpOffset,
	0xC: opRandom,
	0xD: opDraw,
	0xE: execKey,
	0xF: execMisc,
}

// systemTable is keyed by the full word; 0NNN machine-code calls are not
// supported.
var systemTable = map[uint16]handler{
	0x00E0: opClearScreen,
	0x00EE: opReturn,
}

var aluTable = [16]handler{
	0x0: opCopy,
	0x1: opOr,
	0x2: opAnd,
	0x3: opXor,
	0x4: opAdd,
	0x5: opSub,
	0x6: opShiftRight,
	0x7: opSubReverse,
	0xE: opShiftLeft,
}

var keyTable = [256]handler{
	0x9E: opSkipKeyDown,
	0xA1: opSkipKeyUp,
}

var miscTable = [256]handler{
	0x07: opReadDelay,
	0x0A: opWaitKey,
	0x15: opWriteDelay,
	0x18: opWriteSound,
	0x1E: opAddIndex,
	0x29: opFontAddress,
	0x33: opBCD,
	0x55: opStoreRegs,
	0x65: opLoadRegs,
}

func execSystem(c *CPU, in Instruction, keys Keypad) error {
	if h, ok := systemTable[in.Raw]; ok {
		return h(c, in, keys)
	}
	return opUnknown(c, in, keys)
}

func execSkipEqReg(c *CPU, in Instruction, keys Keypad) error {
	if in.N != 0 {
		return opUnknown(c, in, keys)
	}
	return opSkipEqReg(c, in, keys)
}

func execSkipNeReg(c *CPU, in Instruction, keys Keypad) error {
	if in.N != 0 {
		return opUnknown(c, in, keys)
	}
	return opSkipNeReg(c, in, keys)
}

func execALU(c *CPU, in Instruction, keys Keypad) error {
	return dispatch(aluTable[in.N], c, in, keys)
}

func execKey(c *CPU, in Instruction, keys Keypad) error {
	return dispatch(keyTable[in.NN], c, in, keys)
}

func execMisc(c *CPU, in Instruction, keys Keypad) error {
	return dispatch(miscTable[in.NN], c, in, keys)
}

func dispatch(h handler, c *CPU, in Instruction, keys Keypad) error {
	if h == nil {
		return opUnknown(c, in, keys)
	}
	return h(c, in, keys)
}

func opUnknown(c *CPU, in Instruction, _ Keypad) error {
	c.diagnose(UnknownOpcode, in)
	return nil
}
