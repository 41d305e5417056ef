package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"gochip8/pkg/cpu"
	"gochip8/pkg/keymap"
	"gochip8/pkg/machine"
)

const (
	keyCtrlC  = 0x03
	keyEscape = 0x1B
)

// screen draws the framebuffer into a raw-mode terminal, two display rows
// per text row.
type screen struct {
	out io.Writer
	buf strings.Builder
}

func (s *screen) Present(fb *cpu.Display) {
	if !fb.Dirty {
		return
	}
	s.buf.Reset()
	s.buf.WriteString("\x1b[H")
	render(&s.buf, fb)
	io.WriteString(s.out, s.buf.String())
}

// render writes fb as half-block characters with CRLF line ends.
func render(w *strings.Builder, fb *cpu.Display) {
	for y := 0; y < cpu.Height; y += 2 {
		for x := 0; x < cpu.Width; x++ {
			top, bottom := fb.Pixel(x, y), fb.Pixel(x, y+1)
			switch {
			case top && bottom:
				w.WriteString("█")
			case top:
				w.WriteString("▀")
			case bottom:
				w.WriteString("▄")
			default:
				w.WriteByte(' ')
			}
		}
		w.WriteString("\r\n")
	}
}

// bell rings the terminal bell when the tone starts.
type bell struct {
	out io.Writer
}

func (b bell) Tone(on bool) {
	if on {
		io.WriteString(b.out, "\a")
	}
}

// readKeys feeds stdin bytes to the keypad until Ctrl-C or Esc, then cancels.
func readKeys(r io.Reader, keys *keymap.Terminal, cancel context.CancelFunc) {
	defer cancel()
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == keyCtrlC || b == keyEscape {
				return
			}
			keys.Press(b)
		}
		if err != nil {
			return
		}
	}
}

func main() {
	var opts machine.Options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts.RegisterFlags(fs)
	hold := fs.Int("hold", keymap.DefaultHoldTicks, "ticks a key stays down after each keystroke")
	_ = fs.Parse(os.Args[1:])
	if opts.ROM == "" && fs.NArg() > 0 {
		opts.ROM = fs.Arg(0)
	}

	cfg, err := opts.Config(fs)
	if err != nil {
		log.Fatal(err)
	}
	rom, fnt, err := opts.Load()
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		log.Fatal("console: stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Fatalf("console: failed to set raw mode: %v", err)
	}

	keys := keymap.NewTerminal(*hold)
	vm, err := machine.New(rom, fnt, cfg, &screen{out: os.Stdout}, bell{out: os.Stdout}, keys)
	if err != nil {
		_ = term.Restore(fd, oldState)
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go readKeys(os.Stdin, keys, cancel)

	// Clear the screen and hide the cursor.
	fmt.Print("\x1b[2J\x1b[?25l")
	runErr := vm.Run(ctx)
	fmt.Print("\x1b[?25h\r\n")
	_ = term.Restore(fd, oldState)

	var fault *cpu.Fault
	if errors.As(runErr, &fault) {
		fmt.Fprintf(os.Stderr, "halted: %v\n", fault)
		os.Exit(1)
	}
	if runErr != nil {
		log.Fatal(runErr)
	}
}
