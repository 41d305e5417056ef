package cpu

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gochip8/pkg/memory"
	"gochip8/pkg/stack"
)

const (
	NumRegisters = 16
	// RegFlag is VF, the carry/borrow/collision register.
	RegFlag = 0xF
	NumKeys = 16
)

// Keypad is the down/up state of the 16 hex keys, indexed by key value.
type Keypad [NumKeys]bool

// KeyWaitState tracks progress of the blocking key read (FX0A).
type KeyWaitState uint8

const (
	KeyWaitIdle KeyWaitState = iota
	KeyWaitPress
	KeyWaitRelease
)

func (s KeyWaitState) String() string {
	switch s {
	case KeyWaitIdle:
		return "idle"
	case KeyWaitPress:
		return "waiting for press"
	case KeyWaitRelease:
		return "waiting for release"
	}
	return fmt.Sprintf("KeyWaitState(%d)", uint8(s))
}

type CPU struct {
	Regs [NumRegisters]byte

	I  uint16
	PC uint16

	DelayTimer byte
	SoundTimer byte

	KeyWait KeyWaitState
	// WaitKey is the key latched by FX0A while in KeyWaitRelease.
	WaitKey uint8

	Display *Display

	Quirks Quirks

	// Halted is set once a fatal fault has been returned from Step.
	Halted bool
	// Cycles counts completed instructions since the last Reset. Steps spent
	// blocked in FX0A are not counted.
	Cycles uint64

	mem        *memory.Memory
	stack      *stack.CallStack
	stackDepth int

	random func() byte
	logger *slog.Logger
	report func(Diagnostic)

	diagCounts [NumDiagnosticKinds]uint64
	fault      *Fault

	// opPC is the address of the instruction being executed.
	opPC uint16
}

// Option configures a CPU at construction.
type Option func(*CPU)

func WithQuirks(q Quirks) Option {
	return func(c *CPU) { c.Quirks = q }
}

// WithRandom injects the byte source used by CXNN.
func WithRandom(src func() byte) Option {
	return func(c *CPU) { c.random = src }
}

// WithSeed makes CXNN deterministic.
func WithSeed(seed uint64) Option {
	return func(c *CPU) {
		r := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
		c.random = func() byte { return byte(r.UintN(256)) }
	}
}

// WithStackDepth bounds the call stack. Zero or less leaves it unbounded.
func WithStackDepth(depth int) Option {
	return func(c *CPU) { c.stackDepth = depth }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *CPU) { c.logger = l }
}

// WithDiagnostics replaces the default sink for non-fatal diagnostics, which
// logs them at warn level.
func WithDiagnostics(fn func(Diagnostic)) Option {
	return func(c *CPU) { c.report = fn }
}

// New creates a CPU executing from mem. The memory is owned by the CPU from
// this point on.
func New(mem *memory.Memory, opts ...Option) *CPU {
	c := &CPU{
		Quirks:     DefaultQuirks(),
		Display:    NewDisplay(),
		mem:        mem,
		stackDepth: stack.DefaultDepth,
		random:     func() byte { return byte(rand.UintN(256)) },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.report == nil {
		c.report = c.logDiagnostic
	}
	c.stack = stack.New(c.stackDepth)
	c.Reset()
	return c
}

// Reset reinitialises registers, timers, the call stack and the framebuffer.
// Memory is left as loaded.
func (c *CPU) Reset() {
	c.Regs = [NumRegisters]byte{}
	c.I = 0
	c.PC = memory.ProgramStart
	c.DelayTimer = 0
	c.SoundTimer = 0
	c.KeyWait = KeyWaitIdle
	c.WaitKey = 0
	c.Halted = false
	c.Cycles = 0
	c.fault = nil
	c.stack.Reset()
	c.Display.Clear()
}

// ClearScreen blanks the framebuffer without touching any other state.
func (c *CPU) ClearScreen() {
	c.Display.Clear()
}

// Memory returns the memory the CPU executes from.
func (c *CPU) Memory() *memory.Memory {
	return c.mem
}

// StackDepth reports the number of pending return addresses.
func (c *CPU) StackDepth() int {
	return c.stack.Len()
}

// Flag returns VF.
func (c *CPU) Flag() byte {
	return c.Regs[RegFlag]
}

func (c *CPU) setFlag(v byte) {
	c.Regs[RegFlag] = v
}

// DecrementTimers counts both timers down by one, stopping at zero. The
// driver calls it once per 60 Hz tick, never per instruction.
func (c *CPU) DecrementTimers() {
	if c.DelayTimer > 0 {
		c.DelayTimer--
	}
	if c.SoundTimer > 0 {
		c.SoundTimer--
	}
}

// Step fetches, decodes and executes one instruction using keys as the keypad
// state. Fatal conditions halt the CPU and are returned as a *Fault; every
// later call returns the same fault until Reset.
func (c *CPU) Step(keys Keypad) error {
	if c.fault != nil {
		return c.fault
	}

	c.opPC = c.PC
	raw, err := c.mem.ReadWord(c.PC)
	if err != nil {
		return c.halt(raw, err)
	}
	c.PC += 2

	in := Decode(raw)
	if c.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.logger.Debug("exec",
			"pc", fmt.Sprintf("0x%03X", c.opPC),
			"opcode", fmt.Sprintf("%04X", raw),
			"i", fmt.Sprintf("0x%03X", c.I),
		)
	}

	if err := opTable[in.Op](c, in, keys); err != nil {
		return c.halt(raw, err)
	}
	// A blocked FX0A rewinds PC and completes on a later step.
	if c.KeyWait == KeyWaitIdle {
		c.Cycles++
	}
	return nil
}

// Run executes n instructions with the same keypad state, stopping at the
// first fault.
func (c *CPU) Run(n int, keys Keypad) error {
	for i := 0; i < n; i++ {
		if err := c.Step(keys); err != nil {
			return err
		}
	}
	return nil
}

// Err returns the fault that halted the CPU, or nil.
func (c *CPU) Err() error {
	if c.fault == nil {
		return nil
	}
	return c.fault
}

func (c *CPU) halt(raw uint16, err error) error {
	c.fault = &Fault{PC: c.opPC, Opcode: raw, Err: err}
	c.Halted = true
	c.logger.Error("cpu fault", "pc", fmt.Sprintf("0x%03X", c.opPC), "opcode", fmt.Sprintf("%04X", raw), "err", err)
	return c.fault
}

// read and write take int addresses so index arithmetic past 0xFFFF is
// reported instead of wrapping.
func (c *CPU) read(addr int) (byte, error) {
	if addr < 0 || addr >= memory.Size {
		return 0, &memory.AddressError{Op: "read", Addr: addr}
	}
	return c.mem.Read(uint16(addr))
}

func (c *CPU) write(addr int, val byte) error {
	if addr < 0 || addr >= memory.Size {
		return &memory.AddressError{Op: "write", Addr: addr}
	}
	return c.mem.Write(uint16(addr), val)
}
