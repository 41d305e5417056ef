package memory

import (
	"errors"
	"fmt"
)

const (
	// Size is the number of addressable bytes.
	Size = 4096
	// FontBase is where the 16 hex glyphs are laid out.
	FontBase = 0x050
	// ProgramStart is the load address of the ROM and the initial program counter.
	ProgramStart = 0x200
)

var (
	ErrOutOfBounds      = errors.New("memory access out of bounds")
	ErrCapacityExceeded = errors.New("image too large for memory")
)

// AddressError records the operation and address of a rejected access.
type AddressError struct {
	Op   string
	Addr int
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%s 0x%04X: %v", e.Op, e.Addr, ErrOutOfBounds)
}

func (e *AddressError) Unwrap() error {
	return ErrOutOfBounds
}

// Memory is a flat byte store. Accesses outside [0, Size) fail; they never wrap.
type Memory struct {
	cells [Size]byte
}

// New returns zero-filled memory.
func New() *Memory {
	return &Memory{}
}

// Load lays out font at FontBase and program at ProgramStart. Every other cell
// is zero.
func Load(font, program []byte) (*Memory, error) {
	if len(font) > ProgramStart-FontBase {
		return nil, fmt.Errorf("font: %d bytes > %d bytes: %w", len(font), ProgramStart-FontBase, ErrCapacityExceeded)
	}
	if len(program) > Size-ProgramStart {
		return nil, fmt.Errorf("program: %d bytes > %d bytes: %w", len(program), Size-ProgramStart, ErrCapacityExceeded)
	}

	m := New()
	copy(m.cells[FontBase:], font)
	copy(m.cells[ProgramStart:], program)
	return m, nil
}

func (m *Memory) Read(addr uint16) (byte, error) {
	if int(addr) >= Size {
		return 0, &AddressError{Op: "read", Addr: int(addr)}
	}
	return m.cells[addr], nil
}

// ReadWord reads a big-endian word from addr and addr+1.
func (m *Memory) ReadWord(addr uint16) (uint16, error) {
	if int(addr)+1 >= Size {
		return 0, &AddressError{Op: "read word", Addr: int(addr)}
	}
	return uint16(m.cells[addr])<<8 | uint16(m.cells[addr+1]), nil
}

func (m *Memory) Write(addr uint16, val byte) error {
	if int(addr) >= Size {
		return &AddressError{Op: "write", Addr: int(addr)}
	}
	m.cells[addr] = val
	return nil
}

// Bytes exposes the backing cells. Callers must not retain it across a Load.
func (m *Memory) Bytes() []byte {
	return m.cells[:]
}
