package native

import (
	"context"

	"github.com/quillworks/quill/pkg/backend"
	"github.com/quillworks/quill/pkg/transform"
)

// Prober grades the native runtime per mode for the capability detector.
//
// Modes backed by stable host capabilities (summarizer, translator) grade as
// available; modes backed by capabilities still behind origin trials
// (proofreader, rewriter, writer) grade as experimental — usable, but not
// production guaranteed. A hard "no" or a missing capability grades as
// unavailable.
type Prober struct {
	rt Runtime
}

// NewProber wraps a runtime. rt may be nil; every probe then reports
// unavailable.
func NewProber(rt Runtime) *Prober {
	return &Prober{rt: rt}
}

// Probe implements backend.NativeProber.
func (p *Prober) Probe(ctx context.Context, mode transform.Mode) (backend.Capability, error) {
	if p.rt == nil {
		return backend.CapUnavailable, nil
	}

	switch mode {
	case transform.ModeSummarize:
		return gradeStreamer(ctx, p.rt.Summarizer(), backend.CapAvailable)

	case transform.ModeCorrect:
		pr := p.rt.Proofreader()
		if pr == nil {
			return backend.CapUnavailable, nil
		}
		avail, err := pr.Availability(ctx)
		return grade(avail, err, backend.CapExperimental)

	case transform.ModeProofread:
		return gradeStreamer(ctx, p.rt.Rewriter(), backend.CapExperimental)

	case transform.ModeTranslate:
		tr := p.rt.Translator()
		if tr == nil {
			return backend.CapUnavailable, nil
		}
		// Representative pair; per-request pairs are checked at run time.
		avail, err := tr.Availability(ctx, "en", "zh")
		return grade(avail, err, backend.CapAvailable)

	case transform.ModeExpand:
		return gradeStreamer(ctx, p.rt.Writer(), backend.CapExperimental)
	}
	return backend.CapUnavailable, nil
}

func gradeStreamer(ctx context.Context, s Streamer, usable backend.Capability) (backend.Capability, error) {
	if s == nil {
		return backend.CapUnavailable, nil
	}
	avail, err := s.Availability(ctx)
	return grade(avail, err, usable)
}

func grade(avail Availability, err error, usable backend.Capability) (backend.Capability, error) {
	if err != nil || avail == AvailabilityNo {
		return backend.CapUnavailable, err
	}
	return usable, nil
}

var _ backend.NativeProber = (*Prober)(nil)
