package cpu

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"gochip8/pkg/font"
	"gochip8/pkg/memory"
	"gochip8/pkg/stack"
)

var noKeys Keypad

// encodeWords converts instruction words to big-endian bytes.
func encodeWords(words ...uint16) []byte {
	out := make([]byte, len(words)*2)
	for i, w := range words {
		out[i*2] = byte(w >> 8)
		out[i*2+1] = byte(w)
	}
	return out
}

// newTestCPU loads words at ProgramStart with the default font and a quiet
// logger. Diagnostics are collected into the returned slice pointer.
func newTestCPU(t testing.TB, q Quirks, words ...uint16) (*CPU, *[]Diagnostic) {
	t.Helper()
	mem, err := memory.Load(font.Default[:], encodeWords(words...))
	if err != nil {
		t.Fatalf("memory.Load: %v", err)
	}
	var diags []Diagnostic
	c := New(mem,
		WithQuirks(q),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithDiagnostics(func(d Diagnostic) { diags = append(diags, d) }),
		WithSeed(1),
	)
	return c, &diags
}

// steps executes n instructions with no keys held, failing the test on error.
func steps(t *testing.T, c *CPU, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.Step(noKeys); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

func TestDecode(t *testing.T) {
	in := Decode(0xD12F)
	if in.Op != 0xD || in.X != 1 || in.Y != 2 || in.N != 0xF {
		t.Errorf("Decode(0xD12F) nibbles: got op=%X x=%X y=%X n=%X", in.Op, in.X, in.Y, in.N)
	}
	if in.NN != 0x2F {
		t.Errorf("Decode(0xD12F).NN: expected 0x2F, got 0x%02X", in.NN)
	}
	if in.NNN != 0x12F {
		t.Errorf("Decode(0xD12F).NNN: expected 0x12F, got 0x%03X", in.NNN)
	}
}

func TestInitialState(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks())
	if c.PC != memory.ProgramStart {
		t.Errorf("PC: expected 0x200, got 0x%03X", c.PC)
	}
	if c.KeyWait != KeyWaitIdle {
		t.Errorf("KeyWait: expected idle, got %v", c.KeyWait)
	}
	if c.Display.Lit() != 0 {
		t.Errorf("display should start blank")
	}
}

func TestLoadAndAddImmediate(t *testing.T) {
	// 6XNN then 7XNN: Vx == (NN + NN2) mod 256 and VF untouched.
	for x := uint16(0); x < 15; x++ {
		for _, tc := range []struct{ a, b uint16 }{{0x00, 0x00}, {0x10, 0x20}, {0xFF, 0x01}, {0x80, 0x80}, {0xFE, 0xFF}} {
			c, _ := newTestCPU(t, DefaultQuirks(), 0x6000|x<<8|tc.a, 0x7000|x<<8|tc.b)
			c.Regs[RegFlag] = 0xAA
			steps(t, c, 2)
			want := byte((tc.a + tc.b) % 256)
			if c.Regs[x] != want {
				t.Errorf("V%X = %02X + %02X: expected %02X, got %02X", x, tc.a, tc.b, want, c.Regs[x])
			}
			if c.Flag() != 0xAA {
				t.Errorf("7XNN must not touch VF, got %02X", c.Flag())
			}
		}
	}
}

func TestCarryLaw(t *testing.T) {
	for a := 0; a < 256; a++ {
		for b := 0; b < 256; b += 7 {
			c, _ := newTestCPU(t, DefaultQuirks(), 0x8124)
			c.Regs[1], c.Regs[2] = byte(a), byte(b)
			steps(t, c, 1)
			if c.Regs[1] != byte(a+b) {
				t.Fatalf("8124 %d+%d: expected V1=%d, got %d", a, b, byte(a+b), c.Regs[1])
			}
			if want := boolToFlag(a+b > 255); c.Flag() != want {
				t.Fatalf("8124 %d+%d: expected VF=%d, got %d", a, b, want, c.Flag())
			}
		}
	}
}

func TestBorrowLaw(t *testing.T) {
	for a := 0; a < 256; a += 3 {
		for b := 0; b < 256; b += 5 {
			c, _ := newTestCPU(t, DefaultQuirks(), 0x8125)
			c.Regs[1], c.Regs[2] = byte(a), byte(b)
			steps(t, c, 1)
			if c.Regs[1] != byte(a-b) {
				t.Fatalf("8125 %d-%d: expected V1=%d, got %d", a, b, byte(a-b), c.Regs[1])
			}
			if want := boolToFlag(a >= b); c.Flag() != want {
				t.Fatalf("8125 %d-%d: expected VF=%d, got %d", a, b, want, c.Flag())
			}

			c, _ = newTestCPU(t, DefaultQuirks(), 0x8127)
			c.Regs[1], c.Regs[2] = byte(a), byte(b)
			steps(t, c, 1)
			if c.Regs[1] != byte(b-a) {
				t.Fatalf("8127 %d-%d: expected V1=%d, got %d", b, a, byte(b-a), c.Regs[1])
			}
			if want := boolToFlag(b >= a); c.Flag() != want {
				t.Fatalf("8127 %d-%d: expected VF=%d, got %d", b, a, want, c.Flag())
			}
		}
	}

	// Equal operands: no borrow, so VF=1.
	c, _ := newTestCPU(t, DefaultQuirks(), 0x8125)
	c.Regs[1], c.Regs[2] = 9, 9
	steps(t, c, 1)
	if c.Regs[1] != 0 || c.Flag() != 1 {
		t.Errorf("8125 9-9: expected V1=0 VF=1, got V1=%d VF=%d", c.Regs[1], c.Flag())
	}
}

func TestFlagRegisterAsOperand(t *testing.T) {
	// With X = F the flag overwrites the arithmetic result.
	c, _ := newTestCPU(t, DefaultQuirks(), 0x8F14)
	c.Regs[0xF], c.Regs[1] = 0xFF, 0x03
	steps(t, c, 1)
	if c.Flag() != 1 {
		t.Errorf("8F14 with carry: expected VF=1, got %d", c.Flag())
	}
}

func TestBitwise(t *testing.T) {
	tests := []struct {
		op   uint16
		want byte
	}{
		{0x8120, 0x0F},
		{0x8121, 0xFF},
		{0x8122, 0x00},
		{0x8123, 0xFF},
	}
	for _, tc := range tests {
		c, _ := newTestCPU(t, DefaultQuirks(), tc.op)
		c.Regs[1], c.Regs[2] = 0xF0, 0x0F
		steps(t, c, 1)
		if c.Regs[1] != tc.want {
			t.Errorf("%04X: expected 0x%02X, got 0x%02X", tc.op, tc.want, c.Regs[1])
		}
	}
}

func TestShiftQuirk(t *testing.T) {
	tests := []struct {
		name     string
		op       uint16
		vx, vy   byte
		useVY    bool
		wantVX   byte
		wantFlag byte
	}{
		{"8XY6 in place", 0x8126, 0x01, 0x04, false, 0x00, 1},
		{"8XY6 from Vy", 0x8126, 0x01, 0x04, true, 0x02, 0},
		{"8XY6 in place even", 0x8126, 0x0A, 0x05, false, 0x05, 0},
		{"8XYE in place", 0x812E, 0x81, 0x01, false, 0x02, 1},
		{"8XYE from Vy", 0x812E, 0x81, 0x01, true, 0x02, 0},
		{"8XYE from Vy carry", 0x812E, 0x01, 0xC0, true, 0x80, 1},
	}
	for _, tc := range tests {
		q := ModernQuirks()
		q.ShiftUsesVY = tc.useVY
		c, _ := newTestCPU(t, q, tc.op)
		c.Regs[1], c.Regs[2] = tc.vx, tc.vy
		steps(t, c, 1)
		if c.Regs[1] != tc.wantVX || c.Flag() != tc.wantFlag {
			t.Errorf("%s: expected Vx=%02X VF=%d, got Vx=%02X VF=%d", tc.name, tc.wantVX, tc.wantFlag, c.Regs[1], c.Flag())
		}
		if c.Regs[2] != tc.vy {
			t.Errorf("%s: Vy must be unchanged", tc.name)
		}
	}
}

func TestSkips(t *testing.T) {
	tests := []struct {
		name   string
		op     uint16
		v1, v2 byte
		skip   bool
	}{
		{"3XNN equal", 0x3142, 0x42, 0, true},
		{"3XNN differ", 0x3142, 0x41, 0, false},
		{"4XNN equal", 0x4142, 0x42, 0, false},
		{"4XNN differ", 0x4142, 0x41, 0, true},
		{"5XY0 equal", 0x5120, 7, 7, true},
		{"5XY0 differ", 0x5120, 7, 8, false},
		{"9XY0 equal", 0x9120, 7, 7, false},
		{"9XY0 differ", 0x9120, 7, 8, true},
	}
	for _, tc := range tests {
		c, _ := newTestCPU(t, DefaultQuirks(), tc.op)
		c.Regs[1], c.Regs[2] = tc.v1, tc.v2
		steps(t, c, 1)
		want := uint16(0x202)
		if tc.skip {
			want = 0x204
		}
		if c.PC != want {
			t.Errorf("%s: expected PC=0x%03X, got 0x%03X", tc.name, want, c.PC)
		}
	}
}

func TestJumpAndCallReturn(t *testing.T) {
	// 0x200: CALL 0x206; 0x202: JP 0x202; 0x204: (pad); 0x206: RET
	c, _ := newTestCPU(t, DefaultQuirks(), 0x2206, 0x1202, 0x0000, 0x00EE)
	steps(t, c, 1)
	if c.PC != 0x206 {
		t.Fatalf("CALL: expected PC=0x206, got 0x%03X", c.PC)
	}
	if c.StackDepth() != 1 {
		t.Fatalf("CALL: expected stack depth 1, got %d", c.StackDepth())
	}
	steps(t, c, 1)
	if c.PC != 0x202 {
		t.Errorf("RET: expected PC=0x202, got 0x%03X", c.PC)
	}
	if c.StackDepth() != 0 {
		t.Errorf("RET: expected empty stack, got %d", c.StackDepth())
	}
	steps(t, c, 1)
	if c.PC != 0x202 {
		t.Errorf("JP 0x202: expected PC=0x202, got 0x%03X", c.PC)
	}
}

func TestJumpOffsetQuirk(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks(), 0xB300)
	c.Regs[0], c.Regs[3] = 0x04, 0x10
	steps(t, c, 1)
	if c.PC != 0x304 {
		t.Errorf("BNNN with V0: expected PC=0x304, got 0x%03X", c.PC)
	}

	c, _ = newTestCPU(t, ModernQuirks(), 0xB300)
	c.Regs[0], c.Regs[3] = 0x04, 0x10
	steps(t, c, 1)
	if c.PC != 0x310 {
		t.Errorf("BXNN with Vx: expected PC=0x310, got 0x%03X", c.PC)
	}
}

func TestRandomUsesInjectedSource(t *testing.T) {
	mem, _ := memory.Load(nil, encodeWords(0xC10F, 0xC2FF))
	seq := []byte{0xAB, 0xCD}
	c := New(mem, WithRandom(func() byte {
		b := seq[0]
		seq = seq[1:]
		return b
	}))
	steps(t, c, 2)
	if c.Regs[1] != 0x0B {
		t.Errorf("C10F: expected 0xAB&0x0F=0x0B, got 0x%02X", c.Regs[1])
	}
	if c.Regs[2] != 0xCD {
		t.Errorf("C2FF: expected 0xCD, got 0x%02X", c.Regs[2])
	}
}

func TestIndexOps(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks(), 0xA123, 0xF11E)
	c.Regs[1] = 0x10
	steps(t, c, 2)
	if c.I != 0x133 {
		t.Errorf("ANNN+FX1E: expected I=0x133, got 0x%03X", c.I)
	}
}

func TestIndexOverflowQuirk(t *testing.T) {
	for _, on := range []bool{false, true} {
		q := DefaultQuirks()
		q.IndexOverflowFlag = on
		c, _ := newTestCPU(t, q, 0xAFFF, 0xF11E)
		c.Regs[1] = 0x02
		c.Regs[RegFlag] = 0x55
		steps(t, c, 2)
		if c.I != 0x1001 {
			t.Errorf("overflow=%v: expected I=0x1001, got 0x%04X", on, c.I)
		}
		want := byte(0x55)
		if on {
			want = 1
		}
		if c.Flag() != want {
			t.Errorf("overflow=%v: expected VF=0x%02X, got 0x%02X", on, want, c.Flag())
		}
	}

	q := DefaultQuirks()
	q.IndexOverflowFlag = true
	c, _ := newTestCPU(t, q, 0xA100, 0xF11E)
	c.Regs[1] = 0x02
	c.Regs[RegFlag] = 1
	steps(t, c, 2)
	if c.Flag() != 0 {
		t.Errorf("in-range FX1E with overflow flag: expected VF=0, got %d", c.Flag())
	}
}

func TestTimerOps(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks(), 0xF115, 0xF218, 0xF307)
	c.Regs[1], c.Regs[2] = 30, 2
	steps(t, c, 3)
	if c.DelayTimer != 30 || c.SoundTimer != 2 {
		t.Fatalf("FX15/FX18: expected DT=30 ST=2, got DT=%d ST=%d", c.DelayTimer, c.SoundTimer)
	}
	if c.Regs[3] != 30 {
		t.Errorf("FX07: expected V3=30, got %d", c.Regs[3])
	}

	for i := 0; i < 5; i++ {
		c.DecrementTimers()
	}
	if c.DelayTimer != 25 || c.SoundTimer != 0 {
		t.Errorf("DecrementTimers: expected DT=25 ST=0, got DT=%d ST=%d", c.DelayTimer, c.SoundTimer)
	}
}

func TestFontAddress(t *testing.T) {
	c, diags := newTestCPU(t, DefaultQuirks(), 0xF129, 0xF229)
	c.Regs[1] = 0x0A
	c.Regs[2] = 0x10
	steps(t, c, 1)
	if c.I != memory.FontBase+5*0x0A {
		t.Errorf("FX29 digit A: expected I=0x%03X, got 0x%03X", memory.FontBase+5*0x0A, c.I)
	}

	steps(t, c, 1)
	if c.I != memory.FontBase+5*0x0A {
		t.Errorf("FX29 invalid digit must leave I unchanged, got 0x%03X", c.I)
	}
	if len(*diags) != 1 || (*diags)[0].Kind != InvalidDigit {
		t.Fatalf("expected one InvalidDigit diagnostic, got %v", *diags)
	}
	if (*diags)[0].PC != 0x202 || (*diags)[0].Opcode != 0xF229 {
		t.Errorf("diagnostic location: got %v", (*diags)[0])
	}
	if c.DiagnosticCount(InvalidDigit) != 1 {
		t.Errorf("DiagnosticCount(InvalidDigit): expected 1, got %d", c.DiagnosticCount(InvalidDigit))
	}
}

func TestBCD(t *testing.T) {
	for _, v := range []byte{0, 7, 42, 100, 109, 255} {
		c, _ := newTestCPU(t, DefaultQuirks(), 0xA300, 0xF133)
		c.Regs[1] = v
		steps(t, c, 2)
		cells := c.Memory().Bytes()
		got := [3]byte{cells[0x300], cells[0x301], cells[0x302]}
		want := [3]byte{v / 100, (v / 10) % 10, v % 10}
		if got != want {
			t.Errorf("FX33 %d: expected %v, got %v", v, want, got)
		}
		if c.I != 0x300 {
			t.Errorf("FX33 must not move I")
		}
	}
}

func TestStoreLoadRegisters(t *testing.T) {
	for _, inc := range []bool{false, true} {
		q := DefaultQuirks()
		q.IndexIncrement = inc

		c, _ := newTestCPU(t, q, 0xA300, 0xF355, 0xA300, 0xF265)
		c.Regs[0], c.Regs[1], c.Regs[2], c.Regs[3] = 1, 2, 3, 4
		steps(t, c, 2)

		cells := c.Memory().Bytes()
		for i := 0; i < 4; i++ {
			if cells[0x300+i] != byte(i+1) {
				t.Errorf("FX55 inc=%v: mem[0x%03X] expected %d, got %d", inc, 0x300+i, i+1, cells[0x300+i])
			}
		}
		if cells[0x304] != 0 {
			t.Errorf("FX55 inc=%v: wrote past Vx", inc)
		}
		wantI := uint16(0x300)
		if inc {
			wantI = 0x304
		}
		if c.I != wantI {
			t.Errorf("FX55 inc=%v: expected I=0x%03X, got 0x%03X", inc, wantI, c.I)
		}

		c.Regs = [NumRegisters]byte{}
		steps(t, c, 2)
		if c.Regs[0] != 1 || c.Regs[1] != 2 || c.Regs[2] != 3 || c.Regs[3] != 0 {
			t.Errorf("FX65 inc=%v: got regs %v", inc, c.Regs[:4])
		}
		wantI = 0x300
		if inc {
			wantI = 0x303
		}
		if c.I != wantI {
			t.Errorf("FX65 inc=%v: expected I=0x%03X, got 0x%03X", inc, wantI, c.I)
		}
	}
}

func TestUnknownOpcodeIsNoOp(t *testing.T) {
	for _, op := range []uint16{0x0123, 0x5121, 0x8128, 0x9121, 0xE1FF, 0xF1FF} {
		c, diags := newTestCPU(t, DefaultQuirks(), op)
		c.Regs[1] = 0x33
		before := c.Regs
		if err := c.Step(noKeys); err != nil {
			t.Fatalf("%04X: unknown opcode must not be fatal, got %v", op, err)
		}
		if c.PC != 0x202 {
			t.Errorf("%04X: expected PC=0x202, got 0x%03X", op, c.PC)
		}
		if c.Regs != before {
			t.Errorf("%04X: registers changed", op)
		}
		if len(*diags) != 1 || (*diags)[0].Kind != UnknownOpcode || (*diags)[0].Opcode != op {
			t.Errorf("%04X: expected one UnknownOpcode diagnostic, got %v", op, *diags)
		}
	}
}

func TestFatalFaults(t *testing.T) {
	tests := []struct {
		name  string
		words []uint16
		setup func(c *CPU)
		want  error
	}{
		{"return on empty stack", []uint16{0x00EE}, nil, stack.ErrStackUnderflow},
		{"recursion overflows", []uint16{0x2200}, nil, stack.ErrStackOverflow},
		{"store past memory", []uint16{0xAFFE, 0xF255}, nil, memory.ErrOutOfBounds},
		{"load past memory", []uint16{0xAFFF, 0xF165}, nil, memory.ErrOutOfBounds},
		{"bcd past memory", []uint16{0xAFFE, 0xF033}, nil, memory.ErrOutOfBounds},
		{"draw past memory", []uint16{0xAFFF, 0xD012}, nil, memory.ErrOutOfBounds},
		{"fetch past memory", []uint16{0x1FFF}, nil, memory.ErrOutOfBounds},
		{"index beyond memory", []uint16{0xF01E, 0xF065}, func(c *CPU) { c.I = 0xFFFF; c.Regs[0] = 0 }, memory.ErrOutOfBounds},
	}
	for _, tc := range tests {
		c, _ := newTestCPU(t, DefaultQuirks(), tc.words...)
		if tc.setup != nil {
			tc.setup(c)
		}
		var err error
		for i := 0; i < 64 && err == nil; i++ {
			err = c.Step(noKeys)
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
			continue
		}
		var fault *Fault
		if !errors.As(err, &fault) {
			t.Errorf("%s: expected *Fault, got %T", tc.name, err)
		}
		if !c.Halted {
			t.Errorf("%s: CPU should be halted", tc.name)
		}
		if again := c.Step(noKeys); again != err {
			t.Errorf("%s: halted CPU must keep returning the same fault", tc.name)
		}
	}
}

func TestResetKeepsMemory(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks(), 0x6105, 0xA050, 0xD115)
	steps(t, c, 3)
	if c.Display.Lit() == 0 {
		t.Fatalf("expected sprite on screen")
	}

	c.Reset()
	if c.PC != 0x200 || c.I != 0 || c.Regs[1] != 0 {
		t.Errorf("Reset: state not reinitialised: PC=0x%03X I=0x%03X V1=%d", c.PC, c.I, c.Regs[1])
	}
	if c.Display.Lit() != 0 {
		t.Errorf("Reset: expected blank display")
	}
	if w, _ := c.Memory().ReadWord(0x200); w != 0x6105 {
		t.Errorf("Reset must not touch memory, got %04X at 0x200", w)
	}
	steps(t, c, 3)
	if c.Display.Lit() == 0 {
		t.Errorf("program should run again after Reset")
	}
}

func TestClearScreenOpcode(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks(), 0xA050, 0xD005, 0x00E0)
	steps(t, c, 2)
	if c.Display.Lit() == 0 {
		t.Fatalf("expected glyph drawn")
	}
	c.Regs[3] = 9
	steps(t, c, 1)
	if c.Display.Lit() != 0 {
		t.Errorf("00E0: expected blank display, %d pixels lit", c.Display.Lit())
	}
	if c.Regs[3] != 9 || c.I != 0x050 {
		t.Errorf("00E0 must only clear the screen")
	}
}

func TestRunStopsAtFault(t *testing.T) {
	c, _ := newTestCPU(t, DefaultQuirks(), 0x6001, 0x00EE, 0x6002)
	err := c.Run(10, noKeys)
	if !errors.Is(err, stack.ErrStackUnderflow) {
		t.Fatalf("Run: expected underflow, got %v", err)
	}
	if c.Cycles != 1 {
		t.Errorf("Cycles: expected 1 completed instruction, got %d", c.Cycles)
	}
	if c.Err() == nil {
		t.Errorf("Err: expected fault")
	}
}
