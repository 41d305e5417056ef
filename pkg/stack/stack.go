package stack

import "errors"

// DefaultDepth matches the 16-level stack of most interpreters.
const DefaultDepth = 16

var (
	ErrStackOverflow  = errors.New("call stack overflow")
	ErrStackUnderflow = errors.New("call stack underflow")
)

// CallStack is a LIFO of subroutine return addresses.
type CallStack struct {
	addrs    []uint16
	maxDepth int
}

// New creates a stack holding at most maxDepth addresses. A maxDepth of zero
// or less leaves the stack unbounded.
func New(maxDepth int) *CallStack {
	s := &CallStack{maxDepth: maxDepth}
	if maxDepth > 0 {
		s.addrs = make([]uint16, 0, maxDepth)
	}
	return s
}

func (s *CallStack) Push(addr uint16) error {
	if s.maxDepth > 0 && len(s.addrs) >= s.maxDepth {
		return ErrStackOverflow
	}
	s.addrs = append(s.addrs, addr)
	return nil
}

func (s *CallStack) Pop() (uint16, error) {
	if len(s.addrs) == 0 {
		return 0, ErrStackUnderflow
	}
	top := s.addrs[len(s.addrs)-1]
	s.addrs = s.addrs[:len(s.addrs)-1]
	return top, nil
}

// Peek returns the top address without removing it.
func (s *CallStack) Peek() (uint16, bool) {
	if len(s.addrs) == 0 {
		return 0, false
	}
	return s.addrs[len(s.addrs)-1], true
}

func (s *CallStack) Len() int {
	return len(s.addrs)
}

func (s *CallStack) Reset() {
	s.addrs = s.addrs[:0]
}
