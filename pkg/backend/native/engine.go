package native

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/stream"
	"github.com/quillworks/quill/pkg/transform"
)

// Messages emitted by the correct mode. The UI localizes these.
const (
	noErrorsMessage        = "No errors found; the text needs no correction."
	correctionDetailHeader = "Correction details:"
)

// Engine executes one transformation per call against the native runtime.
// Each call opens a fresh capability session and releases it when done.
type Engine struct {
	rt Runtime
}

// NewEngine wraps a runtime.
func NewEngine(rt Runtime) *Engine {
	return &Engine{rt: rt}
}

// Process runs one mode over text, relaying partial results through sess.
// It returns the final text; the caller owns terminal event emission.
func (e *Engine) Process(ctx context.Context, text string, mode transform.Mode, settings transform.Settings, sess *stream.Session) (string, error) {
	if e.rt == nil {
		return "", transform.Ef(transform.CodeModeUnsupported, "native runtime not present")
	}

	switch mode {
	case transform.ModeSummarize:
		return e.streamWith(ctx, e.rt.Summarizer(), StreamerOptions{Length: LengthMedium}, text, sess)
	case transform.ModeCorrect:
		return e.correct(ctx, text, sess)
	case transform.ModeProofread:
		opts := StreamerOptions{
			Tone:    mapTone(settings.Tone),
			Context: "Polish this text to make it flow better and read more professionally. Target language: " + settings.TargetLanguageOrDefault(),
		}
		return e.streamWith(ctx, e.rt.Rewriter(), opts, text, sess)
	case transform.ModeTranslate:
		return e.translate(ctx, text, settings, sess)
	case transform.ModeExpand:
		opts := StreamerOptions{Length: mapDetailToLength(settings.DetailLevel)}
		input := "Expand on the following text, adding detail and depth. Target language " +
			settings.TargetLanguageOrDefault() + ":\n\n" + text
		return e.streamWith(ctx, e.rt.Writer(), opts, input, sess)
	}
	return "", transform.Ef(transform.CodeModeUnsupported, "mode %q not supported natively", mode)
}

// streamWith opens a streaming session and consumes its cumulative stream.
// Every received value is the new full state, never a delta to append.
func (e *Engine) streamWith(ctx context.Context, cap Streamer, opts StreamerOptions, input string, sess *stream.Session) (string, error) {
	if cap == nil {
		return "", transform.Ef(transform.CodeModeUnsupported, "capability not present")
	}

	s, err := cap.Open(ctx, opts)
	if err != nil {
		return "", fmt.Errorf("open session: %w", err)
	}
	defer s.Release()

	ts, err := s.Stream(ctx, input)
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}

	for {
		state, ok, err := ts.Next(ctx)
		if err != nil {
			return "", fmt.Errorf("read stream: %w", err)
		}
		if !ok {
			break
		}
		sess.Set(state)
	}
	return sess.Text(), nil
}

func (e *Engine) correct(ctx context.Context, text string, sess *stream.Session) (string, error) {
	pr := e.rt.Proofreader()
	if pr == nil {
		return "", transform.Ef(transform.CodeModeUnsupported, "proofreader capability not present")
	}

	s, err := pr.Open(ctx, []string{"en", "zh"})
	if err != nil {
		return "", fmt.Errorf("open proofreader: %w", err)
	}
	defer s.Release()

	corrections, err := s.Proofread(ctx, text)
	if err != nil {
		return "", fmt.Errorf("proofread: %w", err)
	}

	if len(corrections) == 0 {
		sess.Set(noErrorsMessage)
		return noErrorsMessage, nil
	}

	// Apply from end to start so earlier indices stay valid.
	sorted := make([]Correction, len(corrections))
	copy(sorted, corrections)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	corrected := text
	for _, c := range sorted {
		if c.Start < 0 || c.End > len(corrected) || c.Start > c.End {
			logger.Warn("dropping correction with out-of-range indices", "start", c.Start, "end", c.End)
			continue
		}
		corrected = corrected[:c.Start] + c.Suggestion + corrected[c.End:]
	}

	var out strings.Builder
	out.WriteString(corrected)
	out.WriteString("\n\n---\n")
	out.WriteString(correctionDetailHeader)
	out.WriteString("\n")
	for _, c := range corrections {
		if c.Start < 0 || c.End > len(text) || c.Start > c.End {
			continue
		}
		original := text[c.Start:c.End]
		fmt.Fprintf(&out, "- %q -> %q", original, c.Suggestion)
		if c.Description != "" {
			fmt.Fprintf(&out, " (%s)", c.Description)
		}
		out.WriteString("\n")
	}

	result := out.String()
	sess.Set(result)
	return result, nil
}

func (e *Engine) translate(ctx context.Context, text string, settings transform.Settings, sess *stream.Session) (string, error) {
	tr := e.rt.Translator()
	if tr == nil {
		return "", transform.Ef(transform.CodeModeUnsupported, "translator capability not present")
	}

	target := languageCode(settings.TargetLanguageOrDefault())
	source := e.detectSource(ctx, text)

	// Same-language pair: flip to the alternate target instead of failing.
	if source == target {
		if target == "zh" {
			target = "en"
		} else {
			target = "zh"
		}
	}

	s, err := tr.Open(ctx, source, target)
	if err != nil {
		return "", fmt.Errorf("open translator (%s->%s): %w", source, target, err)
	}
	defer s.Release()

	result, err := s.Translate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	sess.Set(result)
	return result, nil
}

// detectSource guesses the source language, defaulting to English when the
// detector is absent, errors out, or is not confident enough.
func (e *Engine) detectSource(ctx context.Context, text string) string {
	const confidenceFloor = 0.3

	det := e.rt.LanguageDetector()
	if det == nil {
		return "en"
	}
	s, err := det.Open(ctx)
	if err != nil {
		logger.Debug("language detector unavailable", "error", err)
		return "en"
	}
	defer s.Release()

	guesses, err := s.Detect(ctx, text)
	if err != nil || len(guesses) == 0 || guesses[0].Confidence <= confidenceFloor {
		return "en"
	}
	return guesses[0].Language
}

func mapTone(tone string) Formality {
	switch tone {
	case "professional", "academic":
		return FormalityMoreFormal
	case "casual":
		return FormalityMoreCasual
	default:
		return FormalityAsIs
	}
}

func mapDetailToLength(detail string) Length {
	switch detail {
	case "detailed", "creative":
		return LengthLong
	default:
		return LengthMedium
	}
}

var languageCodes = map[string]string{
	"English":  "en",
	"中文":       "zh",
	"Chinese":  "zh",
	"日本語":      "ja",
	"Japanese": "ja",
	"한국어":      "ko",
	"Korean":   "ko",
	"Français": "fr",
	"French":   "fr",
	"Deutsch":  "de",
	"German":   "de",
	"Español":  "es",
	"Spanish":  "es",
}

func languageCode(lang string) string {
	if code, ok := languageCodes[lang]; ok {
		return code
	}
	return "en"
}
