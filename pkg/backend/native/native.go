// Package native drives the host's built-in assistant capabilities: one
// capability object per mode (summarizer, proofreader, rewriter, translator
// with language detector, writer). The engine consumes the capability
// contracts defined here; the host supplies the implementations.
//
// Capability sessions follow a strict create → use → release lifecycle: a
// session is opened per request, used once, and always released. Sessions
// are never reused across requests.
package native

import "context"

// Availability is the raw grade a capability reports for itself.
type Availability string

const (
	// AvailabilityReadily means the capability can serve immediately.
	AvailabilityReadily Availability = "readily"
	// AvailabilityAfterDownload means usable once a model download finishes.
	AvailabilityAfterDownload Availability = "after-download"
	// AvailabilityNo means the capability cannot serve at all.
	AvailabilityNo Availability = "no"
)

// Formality is the tone knob understood by the rewriter capability.
type Formality string

const (
	FormalityAsIs       Formality = "as-is"
	FormalityMoreFormal Formality = "more-formal"
	FormalityMoreCasual Formality = "more-casual"
)

// Length is the output-size knob understood by the writer capability.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

// StreamerOptions configures a streaming capability session.
type StreamerOptions struct {
	Tone    Formality
	Length  Length
	Context string // shared context passed alongside the input
}

// Streamer is a capability whose sessions produce a text stream. The
// summarizer, rewriter and writer capabilities have this shape.
type Streamer interface {
	Availability(ctx context.Context) (Availability, error)
	Open(ctx context.Context, opts StreamerOptions) (StreamSession, error)
}

// StreamSession is one opened streaming session.
type StreamSession interface {
	// Stream starts processing the input and returns the result stream.
	Stream(ctx context.Context, input string) (TextStream, error)
	// Release frees the session's resources. Always called, exactly once.
	Release()
}

// TextStream yields successive text states. Native streams are cumulative:
// every value is the complete text so far, not a delta — consumers must
// replace, never append.
type TextStream interface {
	// Next returns the next state. ok is false once the stream is exhausted.
	Next(ctx context.Context) (text string, ok bool, err error)
}

// Correction is a single fix reported by the proofreader capability, indexed
// into the original text.
type Correction struct {
	Start       int
	End         int
	Suggestion  string
	Description string
}

// Proofreader grades and opens correction sessions.
type Proofreader interface {
	Availability(ctx context.Context) (Availability, error)
	Open(ctx context.Context, expectedLanguages []string) (ProofSession, error)
}

// ProofSession is one opened proofreading session.
type ProofSession interface {
	Proofread(ctx context.Context, text string) ([]Correction, error)
	Release()
}

// Translator grades and opens translation sessions for a language pair.
type Translator interface {
	Availability(ctx context.Context, source, target string) (Availability, error)
	Open(ctx context.Context, source, target string) (TranslateSession, error)
}

// TranslateSession is one opened translation session.
type TranslateSession interface {
	Translate(ctx context.Context, text string) (string, error)
	Release()
}

// LanguageGuess is one candidate source language with its confidence.
type LanguageGuess struct {
	Language   string
	Confidence float64
}

// LanguageDetector opens language-detection sessions.
type LanguageDetector interface {
	Open(ctx context.Context) (DetectSession, error)
}

// DetectSession is one opened detection session.
type DetectSession interface {
	Detect(ctx context.Context, text string) ([]LanguageGuess, error)
	Release()
}

// Runtime aggregates the host's capability objects. Any accessor may return
// nil when the host does not expose that capability.
type Runtime interface {
	Summarizer() Streamer
	Proofreader() Proofreader
	Rewriter() Streamer
	Translator() Translator
	LanguageDetector() LanguageDetector
	Writer() Streamer
}
