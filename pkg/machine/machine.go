// Package machine drives a CPU in real time: a fixed number of instructions
// per 60 Hz tick, one timer decrement per tick, and the host callbacks for
// video, sound and input.
package machine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gochip8/pkg/cpu"
	"gochip8/pkg/memory"
)

const (
	// DefaultTickRate is the timer and presentation rate.
	DefaultTickRate = 60
	// DefaultInstructionsPerTick gives roughly 700 instructions per second.
	DefaultInstructionsPerTick = 700 / DefaultTickRate
)

// Display receives the framebuffer once per tick.
type Display interface {
	Present(fb *cpu.Display)
}

// Buzzer is switched on while the sound timer is non-zero.
type Buzzer interface {
	Tone(on bool)
}

// Keypad is polled once per tick; the result is fed unchanged to every step
// of that tick.
type Keypad interface {
	Poll() cpu.Keypad
}

type Config struct {
	InstructionsPerTick int
	TickRate            int
	Quirks              cpu.Quirks
	StackDepth          int
	// Seed makes CXNN deterministic when non-zero.
	Seed   uint64
	Logger *slog.Logger
	// Diagnostics overrides the CPU's default diagnostic sink.
	Diagnostics func(cpu.Diagnostic)
}

// DefaultConfig uses the original interpreter quirks at ~700 instructions
// per second.
func DefaultConfig() Config {
	return Config{
		InstructionsPerTick: DefaultInstructionsPerTick,
		TickRate:            DefaultTickRate,
		Quirks:              cpu.DefaultQuirks(),
	}
}

type Machine struct {
	CPU *cpu.CPU

	cfg     Config
	rom     []byte
	font    []byte
	display Display
	buzzer  Buzzer
	keypad  Keypad
	logger  *slog.Logger

	toneOn bool
	frames uint64
}

// New loads font and rom into fresh memory and wires the hosts. Nil hosts are
// replaced by no-op ones.
func New(rom, font []byte, cfg Config, display Display, buzzer Buzzer, keypad Keypad) (*Machine, error) {
	if cfg.InstructionsPerTick <= 0 {
		cfg.InstructionsPerTick = DefaultInstructionsPerTick
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if display == nil {
		display = NopDisplay{}
	}
	if buzzer == nil {
		buzzer = NopBuzzer{}
	}
	if keypad == nil {
		keypad = StaticKeypad{}
	}

	m := &Machine{
		cfg:     cfg,
		rom:     rom,
		font:    font,
		display: display,
		buzzer:  buzzer,
		keypad:  keypad,
		logger:  cfg.Logger,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) load() error {
	mem, err := memory.Load(m.font, m.rom)
	if err != nil {
		return fmt.Errorf("load rom: %w", err)
	}

	opts := []cpu.Option{
		cpu.WithQuirks(m.cfg.Quirks),
		cpu.WithLogger(m.logger),
	}
	if m.cfg.StackDepth != 0 {
		opts = append(opts, cpu.WithStackDepth(m.cfg.StackDepth))
	}
	if m.cfg.Seed != 0 {
		opts = append(opts, cpu.WithSeed(m.cfg.Seed))
	}
	if m.cfg.Diagnostics != nil {
		opts = append(opts, cpu.WithDiagnostics(m.cfg.Diagnostics))
	}
	m.CPU = cpu.New(mem, opts...)
	return nil
}

// Reset restarts the program from a freshly loaded memory image.
func (m *Machine) Reset() error {
	if err := m.load(); err != nil {
		return err
	}
	m.frames = 0
	m.setTone(false)
	return nil
}

// Tick runs one frame: InstructionsPerTick steps with a single keypad poll,
// then presents the framebuffer, then decrements the timers once. The tone
// follows the sound timer as it stands before the decrement, so ST=1 sounds
// for one tick.
func (m *Machine) Tick() error {
	keys := m.keypad.Poll()
	if err := m.CPU.Run(m.cfg.InstructionsPerTick, keys); err != nil {
		m.setTone(false)
		return err
	}

	// Present sees Dirty as set by this tick's instructions.
	m.display.Present(m.CPU.Display)
	m.CPU.Display.Dirty = false

	m.setTone(m.CPU.SoundTimer > 0)
	m.CPU.DecrementTimers()
	m.frames++
	return nil
}

func (m *Machine) setTone(on bool) {
	if on == m.toneOn {
		return
	}
	m.toneOn = on
	m.buzzer.Tone(on)
}

// Run calls Tick at TickRate until ctx is done or the CPU faults. A cancelled
// context is not an error.
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(m.cfg.TickRate))
	defer ticker.Stop()
	defer m.setTone(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Tick(); err != nil {
				return err
			}
		}
	}
}

// RunFrames runs n ticks back to back without pacing.
func (m *Machine) RunFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := m.Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Frames counts completed ticks since the last Reset.
func (m *Machine) Frames() uint64 {
	return m.frames
}

// ToneOn reports whether the buzzer is currently on.
func (m *Machine) ToneOn() bool {
	return m.toneOn
}

func (m *Machine) Config() Config {
	return m.cfg
}
