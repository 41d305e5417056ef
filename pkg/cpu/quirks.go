package cpu

import (
	"flag"
	"fmt"
	"strings"
)

// Quirks selects between historically divergent instruction semantics.
type Quirks struct {
	// ShiftUsesVY copies Vy into Vx before 8XY6/8XYE shift.
	ShiftUsesVY bool
	// JumpUsesV0 makes BNNN add V0; otherwise BXNN adds Vx.
	JumpUsesV0 bool
	// IndexOverflowFlag makes FX1E set VF when the index leaves memory.
	IndexOverflowFlag bool
	// IndexIncrement advances the index past the registers FX55/FX65 touched.
	IndexIncrement bool
	// KeyWaitRelease makes FX0A complete on key release instead of key press.
	KeyWaitRelease bool
}

// DefaultQuirks is the original COSMAC VIP interpreter behaviour.
func DefaultQuirks() Quirks {
	return Quirks{
		ShiftUsesVY:    true,
		JumpUsesV0:     true,
		IndexIncrement: true,
		KeyWaitRelease: true,
	}
}

// ModernQuirks is the CHIP-48/SUPER-CHIP behaviour most later ROMs expect.
func ModernQuirks() Quirks {
	return Quirks{}
}

// QuirksByName resolves a preset name.
func QuirksByName(name string) (Quirks, error) {
	switch strings.ToLower(name) {
	case "", "original", "vip", "cosmac":
		return DefaultQuirks(), nil
	case "modern", "schip", "chip48":
		return ModernQuirks(), nil
	}
	return Quirks{}, fmt.Errorf("unknown quirk preset %q (want original or modern)", name)
}

// RegisterFlags binds every toggle to fs, using the current values as
// defaults. Parse fs after choosing a preset so the flags override it.
func (q *Quirks) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&q.ShiftUsesVY, "shift-vy", q.ShiftUsesVY, "8XY6/8XYE shift Vy into Vx")
	fs.BoolVar(&q.JumpUsesV0, "jump-v0", q.JumpUsesV0, "BNNN jumps to NNN+V0 (off: XNN+Vx)")
	fs.BoolVar(&q.IndexOverflowFlag, "index-overflow", q.IndexOverflowFlag, "FX1E sets VF when I passes the end of memory")
	fs.BoolVar(&q.IndexIncrement, "index-increment", q.IndexIncrement, "FX55/FX65 advance I")
	fs.BoolVar(&q.KeyWaitRelease, "key-release", q.KeyWaitRelease, "FX0A completes on key release")
}

func (q Quirks) String() string {
	var on []string
	if q.ShiftUsesVY {
		on = append(on, "shift-vy")
	}
	if q.JumpUsesV0 {
		on = append(on, "jump-v0")
	}
	if q.IndexOverflowFlag {
		on = append(on, "index-overflow")
	}
	if q.IndexIncrement {
		on = append(on, "index-increment")
	}
	if q.KeyWaitRelease {
		on = append(on, "key-release")
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ",")
}

// Override copies into q the toggles explicitly set on fs, reading their
// values from parsed. It lets a preset chosen by flag be refined by the
// individual toggles registered with RegisterFlags on parsed.
func (q *Quirks) Override(fs *flag.FlagSet, parsed Quirks) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "shift-vy":
			q.ShiftUsesVY = parsed.ShiftUsesVY
		case "jump-v0":
			q.JumpUsesV0 = parsed.JumpUsesV0
		case "index-overflow":
			q.IndexOverflowFlag = parsed.IndexOverflowFlag
		case "index-increment":
			q.IndexIncrement = parsed.IndexIncrement
		case "key-release":
			q.KeyWaitRelease = parsed.KeyWaitRelease
		}
	})
}
