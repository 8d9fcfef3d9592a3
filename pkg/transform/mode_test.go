package transform

import "testing"

func TestParseMode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Mode
		wantErr  bool
	}{
		{name: "summarize", input: "summarize", expected: ModeSummarize},
		{name: "correct", input: "correct", expected: ModeCorrect},
		{name: "proofread", input: "proofread", expected: ModeProofread},
		{name: "translate", input: "translate", expected: ModeTranslate},
		{name: "expand", input: "expand", expected: ModeExpand},
		{name: "empty defaults to proofread", input: "", expected: ModeProofread},
		{name: "unknown mode", input: "rewrite", wantErr: true},
		{name: "case sensitive", input: "Summarize", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got mode %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestModes_CanonicalOrder(t *testing.T) {
	modes := Modes()
	expected := []Mode{ModeSummarize, ModeCorrect, ModeProofread, ModeTranslate, ModeExpand}
	if len(modes) != len(expected) {
		t.Fatalf("expected %d modes, got %d", len(expected), len(modes))
	}
	for i, m := range expected {
		if modes[i] != m {
			t.Errorf("position %d: expected %q, got %q", i, m, modes[i])
		}
	}
}

func TestMode_Valid(t *testing.T) {
	for _, m := range Modes() {
		if !m.Valid() {
			t.Errorf("mode %q should be valid", m)
		}
	}
	if Mode("rewrite").Valid() {
		t.Error("unknown mode should not be valid")
	}
	if Mode("").Valid() {
		t.Error("empty mode should not be valid")
	}
}
