package attribution

import (
	"path/filepath"
	"os"
	"testing"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Hola, quiero participar. Codigo V042", "V042"},
		{"quiero participar codigo v7", "V7"},
		{"QUIERO PARTICIPAR", ""},
		{"código VABC", ""},
		{"V12345 is too long", ""},
		{"ven a vernos", ""},
		{"V042 y V100", "V042"},
	}

	for _, tt := range tests {
		if got := ParseCode(tt.text); got != tt.want {
			t.Errorf("ParseCode(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestLookup(t *testing.T) {
	reg := NewRegistry(map[string]string{"V042": "Juana", "V001": "Pedro"})

	if name, ok := reg.Lookup("V042"); !ok || name != "Juana" {
		t.Errorf("Lookup(V042) = %q, %v", name, ok)
	}
	if name, ok := reg.Lookup("v042"); !ok || name != "Juana" {
		t.Errorf("Lookup(v042) = %q, %v, want case-insensitive hit", name, ok)
	}
	if _, ok := reg.Lookup("V999"); ok {
		t.Error("Lookup(V999) = ok for unregistered code")
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sellers.json")
	if err := os.WriteFile(path, []byte(`{"V042": "Juana"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	if name, ok := reg.Lookup("V042"); !ok || name != "Juana" {
		t.Errorf("Lookup(V042) = %q, %v", name, ok)
	}

	// Empty path is a valid empty registry.
	reg, err = LoadRegistry("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reg.Lookup("V042"); ok {
		t.Error("empty registry resolved a code")
	}

	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("want error for missing file")
	}
}
