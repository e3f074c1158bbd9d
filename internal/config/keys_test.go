package config

import (
	"testing"

	"github.com/jesseduffield/gocui"
)

func TestParseKey_SingleChar(t *testing.T) {
	tests := []struct {
		input    string
		wantRune rune
	}{
		{"q", 'q'},
		{"x", 'x'},
		{"?", '?'},
		{"/", '/'},
		{"Q", 'Q'},
	}

	for _, tt := range tests {
		key, err := ParseKey(tt.input)
		if err != nil {
			t.Errorf("ParseKey(%q) error = %v", tt.input, err)
			continue
		}
		if !key.IsRune() {
			t.Errorf("ParseKey(%q) expected rune, got special key", tt.input)
			continue
		}
		if key.Rune() != tt.wantRune {
			t.Errorf("ParseKey(%q) = %q, want %q", tt.input, key.Rune(), tt.wantRune)
		}
	}
}

func TestParseKey_SpecialKeys(t *testing.T) {
	tests := []struct {
		input   string
		wantKey gocui.Key
	}{
		{"enter", gocui.KeyEnter},
		{"space", gocui.KeySpace},
		{"esc", gocui.KeyEsc},
		{"escape", gocui.KeyEsc},
		{"tab", gocui.KeyTab},
		{"backspace", gocui.KeyBackspace2},
		{"up", gocui.KeyArrowUp},
		{"down", gocui.KeyArrowDown},
	}

	for _, tt := range tests {
		key, err := ParseKey(tt.input)
		if err != nil {
			t.Errorf("ParseKey(%q) error = %v", tt.input, err)
			continue
		}
		if key.IsRune() {
			t.Errorf("ParseKey(%q) expected special key, got rune", tt.input)
			continue
		}
		if key.GocuiKey() != tt.wantKey {
			t.Errorf("ParseKey(%q) = %v, want %v", tt.input, key.GocuiKey(), tt.wantKey)
		}
	}
}

func TestParseKey_CtrlCombinations(t *testing.T) {
	tests := []struct {
		input   string
		wantKey gocui.Key
	}{
		{"ctrl+q", gocui.KeyCtrlQ},
		{"ctrl+d", gocui.KeyCtrlD},
		{"Ctrl+C", gocui.KeyCtrlC},
	}

	for _, tt := range tests {
		key, err := ParseKey(tt.input)
		if err != nil {
			t.Errorf("ParseKey(%q) error = %v", tt.input, err)
			continue
		}
		if key.GocuiKey() != tt.wantKey {
			t.Errorf("ParseKey(%q) = %v, want %v", tt.input, key.GocuiKey(), tt.wantKey)
		}
	}
}

func TestParseKey_Invalid(t *testing.T) {
	for _, input := range []string{"", "ctrl+", "ctrl+enter", "notakey"} {
		if _, err := ParseKey(input); err == nil {
			t.Errorf("ParseKey(%q) error = nil, want error", input)
		}
	}
}

func TestKeyToString_RoundTrip(t *testing.T) {
	for _, input := range []string{"q", "enter", "ctrl+q", "up"} {
		key, err := ParseKey(input)
		if err != nil {
			t.Fatalf("ParseKey(%q) error = %v", input, err)
		}
		got := KeyToString(key)
		roundTrip, err := ParseKey(got)
		if err != nil {
			t.Errorf("ParseKey(KeyToString(%q)) error = %v", input, err)
			continue
		}
		if roundTrip != key {
			t.Errorf("round trip of %q: got %v, want %v", input, roundTrip, key)
		}
	}
}

func TestValidateKeys_Defaults(t *testing.T) {
	keys := DefaultKeyBindings()
	if err := ValidateKeys(&keys); err != nil {
		t.Errorf("ValidateKeys(defaults) error = %v", err)
	}
}

func TestValidateKeys_Duplicates(t *testing.T) {
	keys := DefaultKeyBindings()
	keys.Refresh = keys.Quit
	if err := ValidateKeys(&keys); err == nil {
		t.Error("ValidateKeys() error = nil, want duplicate error")
	}
}

func TestValidateKeys_InvalidKey(t *testing.T) {
	keys := DefaultKeyBindings()
	keys.Attach = "bogus-key"
	if err := ValidateKeys(&keys); err == nil {
		t.Error("ValidateKeys() error = nil, want parse error")
	}
}
