package cpu

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"gochip8/pkg/grid"
)

const (
	Width  = 64
	Height = 32
)

var (
	// ColorOn and ColorOff are the default pixel colours for RGBA output.
	ColorOn  = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	ColorOff = color.RGBA{0x00, 0x00, 0x00, 0xFF}
)

// Display is the monochrome framebuffer, row-major.
type Display struct {
	Pixels [Width * Height]bool

	// Dirty is set whenever a pixel changes and cleared by the presenter.
	Dirty bool
}

func NewDisplay() *Display {
	return &Display{Dirty: true}
}

func (d *Display) Pixel(x, y int) bool {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return false
	}
	return d.Pixels[grid.GetGridIndex(x, y, Width)]
}

func (d *Display) Clear() {
	d.Pixels = [Width * Height]bool{}
	d.Dirty = true
}

// flip toggles the pixel at (x, y) and reports whether it was lit before.
func (d *Display) flip(x, y int) bool {
	i := grid.GetGridIndex(x, y, Width)
	was := d.Pixels[i]
	d.Pixels[i] = !was
	d.Dirty = true
	return was
}

// Lit counts lit pixels.
func (d *Display) Lit() int {
	n := 0
	for _, p := range d.Pixels {
		if p {
			n++
		}
	}
	return n
}

// Snapshot copies the framebuffer so the presenter can hold it past the next
// Step.
func (d *Display) Snapshot() [Width * Height]bool {
	return d.Pixels
}

// RGBA decodes the framebuffer into a Width×Height RGBA8888 byte slice
// (length Width*Height*4) using on and off as pixel colours.
func (d *Display) RGBA(on, off color.RGBA) []byte {
	pixels := make([]byte, Width*Height*4)
	d.WriteRGBA(pixels, on, off)
	return pixels
}

// WriteRGBA is RGBA into a caller-owned buffer, which must hold at least
// Width*Height*4 bytes.
func (d *Display) WriteRGBA(dst []byte, on, off color.RGBA) {
	for i, lit := range d.Pixels {
		c := off
		if lit {
			c = on
		}
		dst[i*4+0] = c.R
		dst[i*4+1] = c.G
		dst[i*4+2] = c.B
		dst[i*4+3] = c.A
	}
}

// Image returns the framebuffer as an *image.RGBA, each pixel scaled to a
// scale×scale block.
func (d *Display) Image(scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, Width*scale, Height*scale))
	for i, lit := range d.Pixels {
		c := ColorOff
		if lit {
			c = ColorOn
		}
		x, y := grid.GetGridCoords(i, Width)
		for dy := 0; dy < scale; dy++ {
			for dx := 0; dx < scale; dx++ {
				img.SetRGBA(x*scale+dx, y*scale+dy, c)
			}
		}
	}
	return img
}

// SaveScreenshot encodes the framebuffer as a PNG and writes it to filename.
func (d *Display) SaveScreenshot(filename string, scale int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, d.Image(scale))
}
