package backend

import "github.com/quillworks/quill/pkg/transform"

// Resolve picks a backend for every mode given the capability snapshot and
// the user's preference. It is pure: same inputs, same resolutions.
//
// An explicit preference for a concrete non-native backend wins
// unconditionally for all modes. A native or auto preference goes through
// auto-detection per mode: native first where its capability is usable, then
// GPU-local, then WASM-local, then the remote API as the final fallback —
// remote needs only network access and is assumed reachable.
func Resolve(snap Snapshot, pref Kind) []Resolution {
	modes := transform.Modes()
	out := make([]Resolution, 0, len(modes))
	for _, mode := range modes {
		out = append(out, Resolution{Mode: mode, Backend: ResolveMode(snap, pref, mode)})
	}
	return out
}

// ResolveMode resolves a single mode. See Resolve.
func ResolveMode(snap Snapshot, pref Kind, mode transform.Mode) Kind {
	switch pref {
	case KindLocalGPU, KindLocalWASM, KindRemote:
		return pref
	}

	if snap.NativeUsable(mode) {
		return KindNative
	}
	if snap.GPUAvailable {
		return KindLocalGPU
	}
	if snap.WASMAvailable {
		return KindLocalWASM
	}
	return KindRemote
}
