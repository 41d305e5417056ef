package cpu

import (
	"fmt"
)

// DiagnosticKind classifies non-fatal conditions met while executing.
type DiagnosticKind uint8

const (
	// UnknownOpcode is an encoding with no handler; it executes as a no-op.
	UnknownOpcode DiagnosticKind = iota
	// InvalidDigit is FX29 with Vx outside 0-F; the index is left unchanged.
	InvalidDigit

	// NumDiagnosticKinds is the number of kinds above.
	NumDiagnosticKinds
)

func (k DiagnosticKind) String() string {
	switch k {
	case UnknownOpcode:
		return "unknown opcode"
	case InvalidDigit:
		return "invalid font digit"
	}
	return fmt.Sprintf("DiagnosticKind(%d)", uint8(k))
}

type Diagnostic struct {
	Kind   DiagnosticKind
	PC     uint16
	Opcode uint16
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%v %04X at 0x%03X", d.Kind, d.Opcode, d.PC)
}

// Fault is a fatal execution error. Err is one of memory.ErrOutOfBounds,
// stack.ErrStackUnderflow or stack.ErrStackOverflow, possibly wrapped.
type Fault struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at 0x%03X (opcode %04X): %v", f.PC, f.Opcode, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// DiagnosticCount returns how many diagnostics of kind were raised since the
// CPU was created.
func (c *CPU) DiagnosticCount(kind DiagnosticKind) uint64 {
	if kind >= NumDiagnosticKinds {
		return 0
	}
	return c.diagCounts[kind]
}

func (c *CPU) diagnose(kind DiagnosticKind, in Instruction) {
	c.diagCounts[kind]++
	c.report(Diagnostic{Kind: kind, PC: c.opPC, Opcode: in.Raw})
}

func (c *CPU) logDiagnostic(d Diagnostic) {
	c.logger.Warn(d.Kind.String(),
		"pc", fmt.Sprintf("0x%03X", d.PC),
		"opcode", fmt.Sprintf("%04X", d.Opcode),
	)
}
