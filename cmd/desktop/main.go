package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"gochip8/pkg/beeper"
	"gochip8/pkg/cpu"
	"gochip8/pkg/keymap"
	"gochip8/pkg/machine"
)

var overlayColor = color.RGBA{0xFF, 0x60, 0x40, 0xFF}

// ebitenKeypad reads the keyboard through the standard layout.
type ebitenKeypad struct{}

func (ebitenKeypad) Poll() cpu.Keypad {
	return keymap.Ebiten(ebiten.IsKeyPressed)
}

type Game struct {
	vm          *machine.Machine
	pixels      []byte
	graphicsImg *ebiten.Image // reused 64×32 canvas
	scale       int
	on, off     color.RGBA

	paused bool
	fault  error
}

func newGame(vm *machine.Machine, scale int, on, off color.RGBA) *Game {
	return &Game{
		vm:     vm,
		pixels: make([]byte, cpu.Width*cpu.Height*4),
		scale:  scale,
		on:     on,
		off:    off,
	}
}

// Present copies the framebuffer; Draw uploads it later on the render thread.
func (g *Game) Present(fb *cpu.Display) {
	fb.WriteRGBA(g.pixels, g.on, g.off)
}

// advance runs one machine tick unless paused or halted.
func (g *Game) advance() {
	if g.paused || g.fault != nil {
		return
	}
	if err := g.vm.Tick(); err != nil {
		g.fault = err
	}
}

func (g *Game) reset() {
	if err := g.vm.Reset(); err != nil {
		g.fault = err
		return
	}
	g.fault = nil
	g.vm.CPU.Display.WriteRGBA(g.pixels, g.on, g.off)
}

func (g *Game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		g.paused = !g.paused
	}

	g.advance()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.graphicsImg == nil {
		g.graphicsImg = ebiten.NewImage(cpu.Width, cpu.Height)
	}
	g.graphicsImg.WritePixels(g.pixels)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(float64(g.scale), float64(g.scale))
	screen.DrawImage(g.graphicsImg, op)

	if msg := g.status(); msg != "" {
		text.Draw(screen, msg, basicfont.Face7x13, 4, 14, overlayColor)
	}
}

// status is the overlay text, empty while running normally.
func (g *Game) status() string {
	switch {
	case g.fault != nil:
		return fmt.Sprintf("HALTED: %v (F5 resets)", g.fault)
	case g.paused:
		return "PAUSED (P resumes)"
	}
	return ""
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return cpu.Width * g.scale, cpu.Height * g.scale
}

func main() {
	var opts machine.Options
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	opts.RegisterFlags(fs)
	scale := fs.Int("scale", 12, "window pixels per display pixel")
	mute := fs.Bool("mute", false, "disable sound")
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
	if *scale < 1 {
		*scale = 1
	}

	var buzzer machine.Buzzer
	if !*mute {
		b, err := beeper.New(beeper.DefaultSampleRate, beeper.DefaultFrequency)
		if err != nil {
			cfg.Logger.Warn("sound disabled", "err", err)
		} else {
			defer b.Close()
			buzzer = b
		}
	}

	game := newGame(nil, *scale, cpu.ColorOn, cpu.ColorOff)
	vm, err := machine.New(rom, fnt, cfg, game, buzzer, ebitenKeypad{})
	if err != nil {
		log.Fatal(err)
	}
	game.vm = vm

	ebiten.SetTPS(cfg.TickRate)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(cpu.Width*(*scale), cpu.Height*(*scale))
	ebiten.SetWindowTitle("gochip8 - " + opts.ROM)

	if err := ebiten.RunGame(game); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}
