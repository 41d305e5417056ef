//go:build !js

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gochip8/pkg/cpu"
	"gochip8/pkg/machine"
)

func main() {
	var opts machine.Options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts.RegisterFlags(fs)
	frames := fs.Int("frames", 60, "number of 60 Hz ticks to run")
	keys := fs.String("keys", "", "keypad keys held for the whole run, as hex digits (e.g. 5a)")
	screenshot := fs.String("screenshot", "", "write the final display to this PNG file")
	scale := fs.Int("scale", 8, "screenshot pixels per display pixel")
	dump := fs.Bool("dump", false, "print the final display as text")
	_ = fs.Parse(os.Args[1:])
	if opts.ROM == "" && fs.NArg() > 0 {
		opts.ROM = fs.Arg(0)
	}

	if opts.ROM == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: provide -rom <file.ch8|file.asm>")
		fs.Usage()
		os.Exit(2)
	}

	held, err := parseKeys(*keys)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := opts.Config(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	vm, runErr := runHeadless(&opts, cfg, *frames, held)
	if vm == nil {
		fmt.Fprintf(os.Stderr, "run failed for %q: %v\n", opts.ROM, runErr)
		os.Exit(1)
	}

	printSummary(os.Stdout, opts.ROM, vm)
	if *dump {
		printDisplay(os.Stdout, vm.CPU.Display)
	}
	if *screenshot != "" {
		if err := vm.CPU.Display.SaveScreenshot(*screenshot, *scale); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write screenshot %q: %v\n", *screenshot, err)
			os.Exit(1)
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "halted: %v\n", runErr)
		os.Exit(1)
	}
}

// runHeadless loads the program and runs it without pacing. A non-nil
// machine is returned alongside a fault so its final state can be inspected.
func runHeadless(opts *machine.Options, cfg machine.Config, frames int, keys cpu.Keypad) (*machine.Machine, error) {
	rom, fnt, err := opts.Load()
	if err != nil {
		return nil, err
	}
	vm, err := machine.New(rom, fnt, cfg, nil, nil, machine.StaticKeypad(keys))
	if err != nil {
		return nil, err
	}
	return vm, vm.RunFrames(frames)
}

// parseKeys reads held keys from hex digits.
func parseKeys(s string) (cpu.Keypad, error) {
	var keys cpu.Keypad
	for _, r := range s {
		k, err := strconv.ParseUint(string(r), 16, 8)
		if err != nil {
			return keys, fmt.Errorf("invalid key %q: want hex digits 0-F", r)
		}
		keys[k] = true
	}
	return keys, nil
}

func printSummary(w io.Writer, path string, vm *machine.Machine) {
	c := vm.CPU
	fmt.Fprintf(w,
		"run complete (%s): frames=%d cycles=%d PC=0x%03X I=0x%03X SP=%d DT=%d ST=%d quirks=%s\n",
		path,
		vm.Frames(),
		c.Cycles,
		c.PC,
		c.I,
		c.StackDepth(),
		c.DelayTimer,
		c.SoundTimer,
		c.Quirks,
	)
	for row := 0; row < 2; row++ {
		var parts []string
		for i := row * 8; i < row*8+8; i++ {
			parts = append(parts, fmt.Sprintf("V%X=%02X", i, c.Regs[i]))
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
	}
	for kind := cpu.DiagnosticKind(0); kind < cpu.NumDiagnosticKinds; kind++ {
		if n := c.DiagnosticCount(kind); n > 0 {
			fmt.Fprintf(w, "%s: %d\n", kind, n)
		}
	}
}

func printDisplay(w io.Writer, fb *cpu.Display) {
	var b strings.Builder
	for y := 0; y < cpu.Height; y++ {
		for x := 0; x < cpu.Width; x++ {
			if fb.Pixel(x, y) {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	io.WriteString(w, b.String())
}
