// Package keymap translates host keyboards to the 16-key hex keypad using the
// usual layout:
//
//	1 2 3 4      1 2 3 C
//	Q W E R  ->  4 5 6 D
//	A S D F      7 8 9 E
//	Z X C V      A 0 B F
package keymap

import (
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"

	"gochip8/pkg/cpu"
)

// Layout lists the host characters for keypad keys 0x0 through 0xF.
const Layout = "X123QWEASDZC4RFV"

// DefaultHoldTicks keeps a terminal key down long enough to register with
// programs polling at 60 Hz.
const DefaultHoldTicks = 6

var ebitenKeys = [cpu.NumKeys]ebiten.Key{
	ebiten.KeyX,
	ebiten.Key1, ebiten.Key2, ebiten.Key3,
	ebiten.KeyQ, ebiten.KeyW, ebiten.KeyE,
	ebiten.KeyA, ebiten.KeyS, ebiten.KeyD,
	ebiten.KeyZ, ebiten.KeyC,
	ebiten.Key4, ebiten.KeyR, ebiten.KeyF, ebiten.KeyV,
}

// KeyFor returns the keypad key bound to the host character c.
func KeyFor(c byte) (int, bool) {
	i := strings.IndexByte(Layout, upper(c))
	return i, i >= 0
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// EbitenKey returns the host key bound to keypad key k.
func EbitenKey(k int) ebiten.Key {
	return ebitenKeys[k]
}

// Ebiten reports which keypad keys are held, given a pressed-key predicate
// such as ebiten.IsKeyPressed.
func Ebiten(pressed func(ebiten.Key) bool) cpu.Keypad {
	var keys cpu.Keypad
	for k, hk := range ebitenKeys {
		keys[k] = pressed(hk)
	}
	return keys
}

// Terminal turns a stream of bytes from a raw-mode terminal into keypad state.
// Terminals report presses but not releases, so each press holds its key for
// a fixed number of polls. Press and Poll may run on different goroutines.
type Terminal struct {
	mu    sync.Mutex
	hold  int
	ticks [cpu.NumKeys]int
}

func NewTerminal(holdTicks int) *Terminal {
	if holdTicks <= 0 {
		holdTicks = DefaultHoldTicks
	}
	return &Terminal{hold: holdTicks}
}

// Press records a host byte; unmapped bytes are ignored. It reports whether
// the byte was a keypad key.
func (t *Terminal) Press(c byte) bool {
	k, ok := KeyFor(c)
	if !ok {
		return false
	}
	t.mu.Lock()
	t.ticks[k] = t.hold
	t.mu.Unlock()
	return true
}

// Poll returns the held keys and ages every hold by one tick.
func (t *Terminal) Poll() cpu.Keypad {
	t.mu.Lock()
	defer t.mu.Unlock()

	var keys cpu.Keypad
	for k := range t.ticks {
		if t.ticks[k] > 0 {
			keys[k] = true
			t.ticks[k]--
		}
	}
	return keys
}
