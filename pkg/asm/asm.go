package asm

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gochip8/pkg/memory"
)

// Opcode templates; operands are OR-ed into the zero nibbles.
const (
	opCLS  uint16 = 0x00E0
	opRET  uint16 = 0x00EE
	opJP   uint16 = 0x1000
	opCALL uint16 = 0x2000
	opSEI  uint16 = 0x3000
	opSNEI uint16 = 0x4000
	opSER  uint16 = 0x5000
	opLDI  uint16 = 0x6000
	opADDI uint16 = 0x7000
	opALU  uint16 = 0x8000
	opSNER uint16 = 0x9000
	opLDIX uint16 = 0xA000
	opJPV0 uint16 = 0xB000
	opRND  uint16 = 0xC000
	opDRW  uint16 = 0xD000
	opKEY  uint16 = 0xE000
	opMISC uint16 = 0xF000
)

var zeroOperandOps = map[string]uint16{
	"CLS": opCLS,
	"RET": opRET,
}

// twoRegisterOps are the 8XYN family, keyed to their low nibble.
var twoRegisterOps = map[string]uint16{
	"OR":   0x1,
	"AND":  0x2,
	"XOR":  0x3,
	"SUB":  0x5,
	"SUBN": 0x7,
}

// shiftOps take Vx and an optional Vy.
var shiftOps = map[string]uint16{
	"SHR": 0x6,
	"SHL": 0xE,
}

var keyOps = map[string]uint16{
	"SKP":  0x9E,
	"SKNP": 0xA1,
}

// mnemonics lists everything pass 1 accepts as a 2-byte instruction.
var mnemonics = map[string]bool{
	"CLS": true, "RET": true, "JP": true, "CALL": true, "SE": true, "SNE": true,
	"LD": true, "ADD": true, "OR": true, "AND": true, "XOR": true, "SUB": true,
	"SHR": true, "SUBN": true, "SHL": true, "RND": true, "DRW": true,
	"SKP": true, "SKNP": true,
}

type Assembler struct {
	labels map[string]uint16
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels: make(map[string]uint16),
	}
}

// Assemble returns the ROM image (byte 0 loads at 0x200) and a map from
// absolute address to source line.
func Assemble(code string) ([]byte, map[uint16]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint16]int, error) {
	a.labels = make(map[string]uint16)
	lines := strings.Split(code, "\n")

	if err := a.pass1(lines); err != nil {
		return nil, nil, err
	}

	return a.pass2(lines)
}

func (a *Assembler) pass1(lines []string) error {
	address := uint32(memory.ProgramStart)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if address >= memory.Size {
				return fmt.Errorf("label '%s' on line %d points past addressable memory", lbl, lineNo)
			}
			key := normalizeLabel(lbl)
			if _, exists := a.labels[key]; exists {
				return fmt.Errorf("duplicate label '%s' on line %d", lbl, lineNo)
			}
			a.labels[key] = uint16(address)
		}

		if p.mnemonic == "" {
			continue
		}

		var length uint32
		switch p.mnemonic {
		case ".ORG":
			target, err := parseOrigin(p.operands, lineNo)
			if err != nil {
				return err
			}
			if target < address {
				return fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			address = target
			continue
		case ".BYTE":
			if len(p.operands) == 0 {
				return fmt.Errorf(".BYTE expects at least one operand on line %d", lineNo)
			}
			length = uint32(len(p.operands))
		case ".WORD":
			if len(p.operands) != 1 {
				return fmt.Errorf(".WORD expects exactly one operand on line %d", lineNo)
			}
			length = 2
		default:
			if !mnemonics[p.mnemonic] {
				return fmt.Errorf("unknown instruction on line %d: %s", lineNo, p.mnemonic)
			}
			length = 2
		}

		if address+length > memory.Size {
			return fmt.Errorf("program too large near line %d", lineNo)
		}
		address += length
	}

	return nil
}

func (a *Assembler) pass2(lines []string) ([]byte, map[uint16]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint16]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}

		if p.mnemonic == "" {
			continue
		}

		mnemonic := p.mnemonic
		ops := p.operands

		if mnemonic == ".ORG" {
			target, err := parseOrigin(ops, lineNo)
			if err != nil {
				return nil, nil, err
			}
			padding := int(target) - memory.ProgramStart - len(program)
			if padding < 0 {
				return nil, nil, fmt.Errorf("cannot move origin backward on line %d", lineNo)
			}
			if padding > 0 {
				program = append(program, make([]byte, padding)...)
			}
			continue
		}

		sourceMap[uint16(memory.ProgramStart+len(program))] = lineNo

		switch mnemonic {
		case ".BYTE":
			for _, op := range ops {
				val, err := a.parseValue(op, 0xFF, lineNo)
				if err != nil {
					return nil, nil, err
				}
				program = append(program, byte(val))
			}
			continue
		case ".WORD":
			val, err := a.parseValue(ops[0], 0xFFFF, lineNo)
			if err != nil {
				return nil, nil, err
			}
			program = append(program, byte(val>>8), byte(val))
			continue
		}

		instr, err := a.encode(mnemonic, ops, lineNo)
		if err != nil {
			return nil, nil, err
		}
		program = append(program, byte(instr>>8), byte(instr))
	}

	return program, sourceMap, nil
}

func (a *Assembler) encode(mnemonic string, ops []string, lineNo int) (uint16, error) {
	if opcode, ok := zeroOperandOps[mnemonic]; ok {
		if len(ops) != 0 {
			return 0, fmt.Errorf("%s expects 0 operands on line %d", mnemonic, lineNo)
		}
		return opcode, nil
	}

	if low, ok := twoRegisterOps[mnemonic]; ok {
		x, y, err := twoRegisters(mnemonic, ops, lineNo)
		if err != nil {
			return 0, err
		}
		return opALU | x<<8 | y<<4 | low, nil
	}

	if low, ok := shiftOps[mnemonic]; ok {
		if len(ops) != 1 && len(ops) != 2 {
			return 0, fmt.Errorf("%s expects 1 or 2 operands on line %d", mnemonic, lineNo)
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		y := x
		if len(ops) == 2 {
			if y, err = parseRegister(ops[1], lineNo); err != nil {
				return 0, err
			}
		}
		return opALU | x<<8 | y<<4 | low, nil
	}

	if low, ok := keyOps[mnemonic]; ok {
		if len(ops) != 1 {
			return 0, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		return opKEY | x<<8 | low, nil
	}

	switch mnemonic {
	case "JP":
		if len(ops) == 2 {
			if !strings.EqualFold(ops[0], "V0") {
				return 0, fmt.Errorf("JP with offset expects V0 on line %d", lineNo)
			}
			addr, err := a.parseValue(ops[1], 0xFFF, lineNo)
			if err != nil {
				return 0, err
			}
			return opJPV0 | addr, nil
		}
		return a.addressOp(opJP, mnemonic, ops, lineNo)

	case "CALL":
		return a.addressOp(opCALL, mnemonic, ops, lineNo)

	case "SE", "SNE":
		if len(ops) != 2 {
			return 0, fmt.Errorf("%s expects 2 operands on line %d", mnemonic, lineNo)
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		if y, ok := lookupRegister(ops[1]); ok {
			if mnemonic == "SE" {
				return opSER | x<<8 | y<<4, nil
			}
			return opSNER | x<<8 | y<<4, nil
		}
		kk, err := a.parseValue(ops[1], 0xFF, lineNo)
		if err != nil {
			return 0, err
		}
		if mnemonic == "SE" {
			return opSEI | x<<8 | kk, nil
		}
		return opSNEI | x<<8 | kk, nil

	case "LD":
		return a.encodeLoad(ops, lineNo)

	case "ADD":
		if len(ops) != 2 {
			return 0, fmt.Errorf("ADD expects 2 operands on line %d", lineNo)
		}
		if strings.EqualFold(ops[0], "I") {
			x, err := parseRegister(ops[1], lineNo)
			if err != nil {
				return 0, err
			}
			return opMISC | x<<8 | 0x1E, nil
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		if y, ok := lookupRegister(ops[1]); ok {
			return opALU | x<<8 | y<<4 | 0x4, nil
		}
		kk, err := a.parseValue(ops[1], 0xFF, lineNo)
		if err != nil {
			return 0, err
		}
		return opADDI | x<<8 | kk, nil

	case "RND":
		if len(ops) != 2 {
			return 0, fmt.Errorf("RND expects 2 operands on line %d", lineNo)
		}
		x, err := parseRegister(ops[0], lineNo)
		if err != nil {
			return 0, err
		}
		kk, err := a.parseValue(ops[1], 0xFF, lineNo)
		if err != nil {
			return 0, err
		}
		return opRND | x<<8 | kk, nil

	case "DRW":
		if len(ops) != 3 {
			return 0, fmt.Errorf("DRW expects 3 operands on line %d", lineNo)
		}
		x, y, err := twoRegisters(mnemonic, ops[:2], lineNo)
		if err != nil {
			return 0, err
		}
		n, err := a.parseValue(ops[2], 0xF, lineNo)
		if err != nil {
			return 0, err
		}
		return opDRW | x<<8 | y<<4 | n, nil
	}

	return 0, fmt.Errorf("unknown instruction on line %d: %s", lineNo, mnemonic)
}

// encodeLoad handles the many LD forms.
func (a *Assembler) encodeLoad(ops []string, lineNo int) (uint16, error) {
	if len(ops) != 2 {
		return 0, fmt.Errorf("LD expects 2 operands on line %d", lineNo)
	}
	dst, src := strings.ToUpper(ops[0]), strings.ToUpper(ops[1])

	switch dst {
	case "I":
		addr, err := a.parseValue(ops[1], 0xFFF, lineNo)
		if err != nil {
			return 0, err
		}
		return opLDIX | addr, nil
	case "DT", "ST", "F", "B", "[I]":
		x, err := parseRegister(ops[1], lineNo)
		if err != nil {
			return 0, err
		}
		low := map[string]uint16{"DT": 0x15, "ST": 0x18, "F": 0x29, "B": 0x33, "[I]": 0x55}[dst]
		return opMISC | x<<8 | low, nil
	}

	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, err
	}
	switch src {
	case "DT":
		return opMISC | x<<8 | 0x07, nil
	case "K":
		return opMISC | x<<8 | 0x0A, nil
	case "[I]":
		return opMISC | x<<8 | 0x65, nil
	}
	if y, ok := lookupRegister(src); ok {
		return opALU | x<<8 | y<<4, nil
	}
	kk, err := a.parseValue(ops[1], 0xFF, lineNo)
	if err != nil {
		return 0, err
	}
	return opLDI | x<<8 | kk, nil
}

func (a *Assembler) addressOp(opcode uint16, mnemonic string, ops []string, lineNo int) (uint16, error) {
	if len(ops) != 1 {
		return 0, fmt.Errorf("%s expects 1 operand on line %d", mnemonic, lineNo)
	}
	addr, err := a.parseValue(ops[0], 0xFFF, lineNo)
	if err != nil {
		return 0, err
	}
	return opcode | addr, nil
}

func twoRegisters(mnemonic string, ops []string, lineNo int) (uint16, uint16, error) {
	if len(ops) != 2 {
		return 0, 0, fmt.Errorf("%s expects 2 registers on line %d", mnemonic, lineNo)
	}
	x, err := parseRegister(ops[0], lineNo)
	if err != nil {
		return 0, 0, err
	}
	y, err := parseRegister(ops[1], lineNo)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

func parseOrigin(ops []string, lineNo int) (uint32, error) {
	if len(ops) != 1 {
		return 0, fmt.Errorf(".ORG expects exactly one operand on line %d", lineNo)
	}
	target, err := strconv.ParseUint(ops[0], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid .ORG value on line %d: %s", lineNo, ops[0])
	}
	if target < memory.ProgramStart || target >= memory.Size {
		return 0, fmt.Errorf(".ORG out of range on line %d: %s", lineNo, ops[0])
	}
	return uint32(target), nil
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}

		beforeColon := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(beforeColon, " \t") {
			break
		}

		if !isIdentifier(beforeColon) {
			return p, fmt.Errorf("invalid label '%s' on line %d", beforeColon, lineNo)
		}

		p.labels = append(p.labels, beforeColon)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return p, nil
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}

	return p, nil
}

func stripComments(line string) string {
	semicolon := strings.Index(line, ";")
	doubleSlash := strings.Index(line, "//")

	cut := -1
	if semicolon >= 0 {
		cut = semicolon
	}
	if doubleSlash >= 0 && (cut == -1 || doubleSlash < cut) {
		cut = doubleSlash
	}
	if cut >= 0 {
		return line[:cut]
	}
	return line
}

// lookupRegister recognises V0-VF.
func lookupRegister(token string) (uint16, bool) {
	if len(token) != 2 || (token[0] != 'V' && token[0] != 'v') {
		return 0, false
	}
	n, err := strconv.ParseUint(token[1:], 16, 8)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

func parseRegister(token string, lineNo int) (uint16, error) {
	if r, ok := lookupRegister(token); ok {
		return r, nil
	}
	return 0, fmt.Errorf("invalid register '%s' on line %d", token, lineNo)
}

// parseValue accepts decimal, 0x hex, 0b binary, #hex and labels, and checks
// the result against max.
func (a *Assembler) parseValue(token string, max uint16, lineNo int) (uint16, error) {
	text := token
	if strings.HasPrefix(text, "#") {
		text = "0x" + text[1:]
	}
	if value, err := strconv.ParseUint(text, 0, 32); err == nil {
		if value > uint64(max) {
			return 0, fmt.Errorf("immediate out of range on line %d: %s", lineNo, token)
		}
		return uint16(value), nil
	}

	label := normalizeLabel(token)
	if addr, ok := a.labels[label]; ok {
		if addr > max {
			return 0, fmt.Errorf("label '%s' out of range on line %d", token, lineNo)
		}
		return addr, nil
	}

	if isIdentifier(token) {
		return 0, fmt.Errorf("undefined label '%s' on line %d", token, lineNo)
	}

	return 0, fmt.Errorf("invalid immediate '%s' on line %d", token, lineNo)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}

func normalizeLabel(label string) string {
	return strings.ToUpper(label)
}
