package cpu

import (
	"flag"
	"testing"
)

func TestQuirksByName(t *testing.T) {
	for _, name := range []string{"", "original", "VIP", "cosmac"} {
		q, err := QuirksByName(name)
		if err != nil || q != DefaultQuirks() {
			t.Errorf("QuirksByName(%q): expected defaults, got %+v (%v)", name, q, err)
		}
	}
	for _, name := range []string{"modern", "schip", "chip48"} {
		q, err := QuirksByName(name)
		if err != nil || q != ModernQuirks() {
			t.Errorf("QuirksByName(%q): expected modern, got %+v (%v)", name, q, err)
		}
	}
	if _, err := QuirksByName("xo-chip"); err == nil {
		t.Errorf("QuirksByName(xo-chip): expected error")
	}
}

func TestDefaultQuirks(t *testing.T) {
	q := DefaultQuirks()
	if q.IndexOverflowFlag {
		t.Errorf("index overflow flag is off by default")
	}
	if !q.ShiftUsesVY || !q.JumpUsesV0 || !q.IndexIncrement || !q.KeyWaitRelease {
		t.Errorf("defaults should follow the original interpreter, got %v", q)
	}
	if q.String() != "shift-vy,jump-v0,index-increment,key-release" {
		t.Errorf("String: got %q", q.String())
	}
	if ModernQuirks().String() != "none" {
		t.Errorf("ModernQuirks().String: got %q", ModernQuirks().String())
	}
}

func TestQuirksRegisterFlags(t *testing.T) {
	q := ModernQuirks()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	q.RegisterFlags(fs)
	if err := fs.Parse([]string{"-shift-vy", "-index-overflow", "-key-release=true"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := Quirks{ShiftUsesVY: true, IndexOverflowFlag: true, KeyWaitRelease: true}
	if q != want {
		t.Errorf("expected %+v, got %+v", want, q)
	}

	q = DefaultQuirks()
	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	q.RegisterFlags(fs)
	if err := fs.Parse([]string{"-jump-v0=false"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if q.JumpUsesV0 || !q.ShiftUsesVY {
		t.Errorf("override should only clear jump-v0, got %+v", q)
	}
}

func TestQuirksOverride(t *testing.T) {
	var parsed Quirks
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("quirks", "", "")
	parsed.RegisterFlags(fs)
	if err := fs.Parse([]string{"-quirks", "modern", "-key-release"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	q := ModernQuirks()
	q.Override(fs, parsed)
	if q != (Quirks{KeyWaitRelease: true}) {
		t.Errorf("expected only key-release on top of modern, got %+v", q)
	}

	q = DefaultQuirks()
	q.Override(fs, parsed)
	if q != DefaultQuirks() {
		t.Errorf("unset toggles must keep the preset, got %+v", q)
	}
}
