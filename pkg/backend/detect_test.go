package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/quillworks/quill/pkg/transform"
)

type fakeNativeProber struct {
	caps   map[transform.Mode]Capability
	err    error
	panics bool
	calls  int
}

func (p *fakeNativeProber) Probe(ctx context.Context, mode transform.Mode) (Capability, error) {
	p.calls++
	if p.panics {
		panic("prober exploded")
	}
	if p.err != nil {
		return CapUnavailable, p.err
	}
	return p.caps[mode], nil
}

func TestDetector_Snapshot(t *testing.T) {
	native := &fakeNativeProber{caps: map[transform.Mode]Capability{
		transform.ModeSummarize: CapAvailable,
		transform.ModeCorrect:   CapExperimental,
		transform.ModeProofread: CapUnavailable,
		transform.ModeTranslate: CapAvailable,
		transform.ModeExpand:    CapExperimental,
	}}
	gpu := BoolProberFunc(func(ctx context.Context) (bool, error) { return true, nil })
	wasm := BoolProberFunc(func(ctx context.Context) (bool, error) { return false, nil })

	d := NewDetector(native, gpu, wasm)
	snap := d.Snapshot(context.Background())

	if snap.Native[transform.ModeSummarize] != CapAvailable {
		t.Errorf("summarize: expected available, got %q", snap.Native[transform.ModeSummarize])
	}
	if snap.Native[transform.ModeProofread] != CapUnavailable {
		t.Errorf("proofread: expected unavailable, got %q", snap.Native[transform.ModeProofread])
	}
	if !snap.GPUAvailable {
		t.Error("expected GPU available")
	}
	if snap.WASMAvailable {
		t.Error("expected WASM unavailable")
	}
}

func TestDetector_SnapshotIsCached(t *testing.T) {
	native := &fakeNativeProber{caps: map[transform.Mode]Capability{}}
	d := NewDetector(native, nil, nil)

	d.Snapshot(context.Background())
	first := native.calls
	d.Snapshot(context.Background())
	if native.calls != first {
		t.Errorf("second Snapshot reprobed: %d -> %d calls", first, native.calls)
	}

	d.Invalidate()
	d.Snapshot(context.Background())
	if native.calls == first {
		t.Error("Invalidate should force a reprobe")
	}
}

func TestDetector_ErrorsDegradeToUnavailable(t *testing.T) {
	native := &fakeNativeProber{err: errors.New("probe broke")}
	gpu := BoolProberFunc(func(ctx context.Context) (bool, error) { return false, errors.New("no adapter") })

	d := NewDetector(native, gpu, nil)
	snap := d.Snapshot(context.Background())

	for _, mode := range transform.Modes() {
		if snap.Native[mode] != CapUnavailable {
			t.Errorf("mode %q: expected unavailable on probe error, got %q", mode, snap.Native[mode])
		}
	}
	if snap.GPUAvailable {
		t.Error("GPU probe error should degrade to unavailable")
	}
}

func TestDetector_PanicsDegradeToUnavailable(t *testing.T) {
	native := &fakeNativeProber{panics: true}
	wasm := BoolProberFunc(func(ctx context.Context) (bool, error) { panic("wasm probe exploded") })

	d := NewDetector(native, nil, wasm)
	snap := d.Snapshot(context.Background())

	if snap.NativeUsable(transform.ModeSummarize) {
		t.Error("panicking native probe should report unusable")
	}
	if snap.WASMAvailable {
		t.Error("panicking wasm probe should report unavailable")
	}
}

func TestDetector_NilProbers(t *testing.T) {
	d := NewDetector(nil, nil, nil)
	snap := d.Snapshot(context.Background())

	for _, mode := range transform.Modes() {
		if snap.NativeUsable(mode) {
			t.Errorf("mode %q: nil prober should report unusable", mode)
		}
	}
	if snap.GPUAvailable || snap.WASMAvailable {
		t.Error("nil probers should report unavailable")
	}
}
