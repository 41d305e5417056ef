package machine

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gochip8/pkg/asm"
	"gochip8/pkg/cpu"
	"gochip8/pkg/font"
	"gochip8/pkg/memory"
	"gochip8/pkg/utils"
)

// maxSourceSize bounds assembly sources read from disk.
const maxSourceSize = 1 << 20

// Options are the command-line settings shared by every front end.
type Options struct {
	ROM                 string
	Font                string
	Preset              string
	InstructionsPerTick int
	TickRate            int
	StackDepth          int
	Seed                uint64
	Verbose             bool

	quirks cpu.Quirks
}

// RegisterFlags binds the options and the individual quirk toggles to fs.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.ROM, "rom", o.ROM, "program to run (.ch8 binary, or .asm source)")
	fs.StringVar(&o.Font, "font", o.Font, "font file (80 bytes binary, or hex text); built-in when empty")
	fs.StringVar(&o.Preset, "quirks", o.Preset, "quirk preset: original or modern")
	fs.IntVar(&o.InstructionsPerTick, "ipt", DefaultInstructionsPerTick, "instructions per 60 Hz tick")
	fs.IntVar(&o.TickRate, "hz", DefaultTickRate, "tick rate")
	fs.IntVar(&o.StackDepth, "stack", 0, "call stack depth (0: 16, negative: unbounded)")
	fs.Uint64Var(&o.Seed, "seed", 0, "random seed (0: random)")
	fs.BoolVar(&o.Verbose, "v", false, "log every executed instruction")
	o.quirks.RegisterFlags(fs)
}

// Config resolves the preset and any quirk toggles set on fs, which must
// already be parsed.
func (o *Options) Config(fs *flag.FlagSet) (Config, error) {
	q, err := cpu.QuirksByName(o.Preset)
	if err != nil {
		return Config{}, err
	}
	q.Override(fs, o.quirks)

	cfg := DefaultConfig()
	cfg.Quirks = q
	cfg.InstructionsPerTick = o.InstructionsPerTick
	cfg.TickRate = o.TickRate
	cfg.StackDepth = o.StackDepth
	cfg.Seed = o.Seed
	cfg.Logger = NewLogger(o.Verbose)
	return cfg, nil
}

// Load reads the font and the program, assembling .asm sources.
func (o *Options) Load() (rom, fnt []byte, err error) {
	if o.ROM == "" {
		return nil, nil, fmt.Errorf("no program given")
	}
	rom, err = LoadProgram(o.ROM)
	if err != nil {
		return nil, nil, err
	}
	fnt, err = font.Load(o.Font)
	if err != nil {
		return nil, nil, err
	}
	return rom, fnt, nil
}

// LoadProgram reads a ROM image, or assembles it when path has an assembly
// extension.
func LoadProgram(path string) ([]byte, error) {
	if IsAssembly(path) {
		source, err := utils.ReadFileLimit(path, maxSourceSize)
		if err != nil {
			return nil, err
		}
		code, _, err := asm.Assemble(string(source))
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", path, err)
		}
		return code, nil
	}
	return utils.ReadFileLimit(path, memory.Size-memory.ProgramStart)
}

func IsAssembly(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asm", ".s", ".8s":
		return true
	}
	return false
}

// NewLogger writes text records to stderr, at debug level when verbose.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
