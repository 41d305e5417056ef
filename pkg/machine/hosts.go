package machine

import (
	"sync"

	"gochip8/pkg/cpu"
)

// NopDisplay discards frames.
type NopDisplay struct{}

func (NopDisplay) Present(*cpu.Display) {}

// NopBuzzer ignores tone changes.
type NopBuzzer struct{}

func (NopBuzzer) Tone(bool) {}

// StaticKeypad always reports the same keys.
type StaticKeypad cpu.Keypad

func (k StaticKeypad) Poll() cpu.Keypad {
	return cpu.Keypad(k)
}

// SharedKeypad is a keypad written by an input goroutine and polled by the
// tick loop.
type SharedKeypad struct {
	mu   sync.Mutex
	keys cpu.Keypad
}

func (s *SharedKeypad) Set(key int, down bool) {
	if key < 0 || key >= cpu.NumKeys {
		return
	}
	s.mu.Lock()
	s.keys[key] = down
	s.mu.Unlock()
}

func (s *SharedKeypad) Store(keys cpu.Keypad) {
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
}

func (s *SharedKeypad) Poll() cpu.Keypad {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(fb *cpu.Display)

func (f DisplayFunc) Present(fb *cpu.Display) { f(fb) }

// BuzzerFunc adapts a function to Buzzer.
type BuzzerFunc func(on bool)

func (f BuzzerFunc) Tone(on bool) { f(on) }
