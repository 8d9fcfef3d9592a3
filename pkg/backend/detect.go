package backend

import (
	"context"
	"sync"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/transform"
)

// NativeProber grades the native backend's support for one mode.
type NativeProber interface {
	// Probe returns the capability grade for the mode. Errors degrade to
	// unavailable; they never propagate past the detector.
	Probe(ctx context.Context, mode transform.Mode) (Capability, error)
}

// BoolProber answers a yes/no availability question for a local backend
// family (GPU compute adapter, WASM execution support).
type BoolProber interface {
	Probe(ctx context.Context) (bool, error)
}

// BoolProberFunc adapts a function to the BoolProber interface.
type BoolProberFunc func(ctx context.Context) (bool, error)

func (f BoolProberFunc) Probe(ctx context.Context) (bool, error) { return f(ctx) }

// Detector probes the backend families and caches the resulting snapshot for
// the lifetime of the process. Each probe is independent: one probe's failure
// degrades that entry to unavailable without affecting the others, and the
// detector itself never returns an error.
type Detector struct {
	native NativeProber // nil means the native runtime is absent
	gpu    BoolProber
	wasm   BoolProber

	mu   sync.Mutex
	snap *Snapshot
}

// NewDetector builds a detector from the per-family probers. Any prober may
// be nil, in which case that family reports unavailable.
func NewDetector(native NativeProber, gpu, wasm BoolProber) *Detector {
	return &Detector{native: native, gpu: gpu, wasm: wasm}
}

// Snapshot returns the cached capability snapshot, probing on first use.
func (d *Detector) Snapshot(ctx context.Context) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.snap == nil {
		snap := d.probe(ctx)
		d.snap = &snap
	}
	return *d.snap
}

// Invalidate discards the cached snapshot so the next Snapshot call reprobes.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	d.snap = nil
	d.mu.Unlock()
}

func (d *Detector) probe(ctx context.Context) Snapshot {
	snap := Snapshot{Native: make(map[transform.Mode]Capability, 5)}

	for _, mode := range transform.Modes() {
		snap.Native[mode] = d.probeNative(ctx, mode)
	}
	snap.GPUAvailable = d.probeBool(ctx, d.gpu, "gpu")
	snap.WASMAvailable = d.probeBool(ctx, d.wasm, "wasm")

	logger.Debug("capability snapshot",
		"native", snap.Native,
		"gpu", snap.GPUAvailable,
		"wasm", snap.WASMAvailable)
	return snap
}

func (d *Detector) probeNative(ctx context.Context, mode transform.Mode) (cap Capability) {
	if d.native == nil {
		return CapUnavailable
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("native probe panicked", "mode", mode, "panic", r)
			cap = CapUnavailable
		}
	}()
	c, err := d.native.Probe(ctx, mode)
	if err != nil {
		logger.Debug("native probe failed", "mode", mode, "error", err)
		return CapUnavailable
	}
	return c
}

func (d *Detector) probeBool(ctx context.Context, p BoolProber, name string) (ok bool) {
	if p == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("probe panicked", "probe", name, "panic", r)
			ok = false
		}
	}()
	ok, err := p.Probe(ctx)
	if err != nil {
		logger.Debug("probe failed", "probe", name, "error", err)
		return false
	}
	return ok
}
