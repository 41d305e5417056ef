// Package font holds the hexadecimal glyph set laid out below the program
// region and parses replacement font files.
package font

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gochip8/pkg/utils"
)

const (
	// Glyphs is the number of hex digit glyphs (0-F).
	Glyphs = 16
	// GlyphSize is the number of rows per glyph.
	GlyphSize = 5
	// Size is the byte length of a complete font.
	Size = Glyphs * GlyphSize
)

var ErrBadFont = errors.New("malformed font")

// Default is the standard 4x5 hex font, one byte per row, MSB leftmost.
var Default = [Size]byte{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}

// Glyph returns the rows of the glyph for digit d (0-15).
func Glyph(d int) []byte {
	return Default[d*GlyphSize : (d+1)*GlyphSize]
}

// Parse reads a font either as 80 raw bytes or as text with one glyph per
// line, five hex values each. Blank lines and '#' comments are skipped.
func Parse(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if !isText(data) {
		if len(data) != Size {
			return nil, fmt.Errorf("binary font: %d bytes, want %d: %w", len(data), Size, ErrBadFont)
		}
		return data, nil
	}

	return parseText(data)
}

func isText(data []byte) bool {
	for _, b := range data {
		if b == '\n' || b == '\r' || b == '\t' {
			continue
		}
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

func parseText(data []byte) ([]byte, error) {
	out := make([]byte, 0, Size)
	glyphs := 0

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) == 0 {
			continue
		}
		if len(fields) != GlyphSize {
			return nil, fmt.Errorf("line %d: %d values, want %d: %w", lineNo, len(fields), GlyphSize, ErrBadFont)
		}
		if glyphs == Glyphs {
			return nil, fmt.Errorf("line %d: more than %d glyphs: %w", lineNo, Glyphs, ErrBadFont)
		}
		for _, f := range fields {
			f = strings.TrimPrefix(strings.TrimPrefix(f, "0x"), "0X")
			v, err := strconv.ParseUint(f, 16, 8)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q: %w", lineNo, f, ErrBadFont)
			}
			out = append(out, byte(v))
		}
		glyphs++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if glyphs != Glyphs {
		return nil, fmt.Errorf("%d glyphs, want %d: %w", glyphs, Glyphs, ErrBadFont)
	}
	return out, nil
}

// Load reads and parses a font file. An empty path yields the default font.
func Load(path string) ([]byte, error) {
	if path == "" {
		f := Default
		return f[:], nil
	}
	// Text fonts carry whitespace and comments, so allow some slack over Size.
	data, err := utils.ReadFileLimit(path, 64*1024)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}
