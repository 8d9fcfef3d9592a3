// Package transform defines the shared vocabulary of the transformation
// engine: the five modes, the immutable Settings value object, coded errors,
// and the tagged event variants exchanged with callers.
package transform

import "fmt"

// Mode identifies one of the five text transformations.
type Mode string

const (
	ModeSummarize Mode = "summarize"
	ModeCorrect   Mode = "correct"
	ModeProofread Mode = "proofread"
	ModeTranslate Mode = "translate"
	ModeExpand    Mode = "expand"
)

// Modes lists every mode in canonical order.
func Modes() []Mode {
	return []Mode{ModeSummarize, ModeCorrect, ModeProofread, ModeTranslate, ModeExpand}
}

// ParseMode validates a mode string. An empty string defaults to proofread,
// matching the engine's documented fallback.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeProofread, nil
	}
	m := Mode(s)
	switch m {
	case ModeSummarize, ModeCorrect, ModeProofread, ModeTranslate, ModeExpand:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode: %q (available: summarize, correct, proofread, translate, expand)", s)
}

// Valid reports whether m is one of the five known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeSummarize, ModeCorrect, ModeProofread, ModeTranslate, ModeExpand:
		return true
	}
	return false
}
