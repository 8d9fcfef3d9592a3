// Package backend models the four inference backend families, probes their
// availability, and resolves which backend serves each transformation mode.
package backend

import "github.com/quillworks/quill/pkg/transform"

// Kind identifies a backend family. The values match the Settings.Engine
// preference strings.
type Kind string

const (
	KindNative    Kind = "native-ai"
	KindLocalGPU  Kind = "local-gpu"
	KindLocalWASM Kind = "local-wasm"
	KindRemote    Kind = "remote-api"

	// PrefAuto is not a backend: it asks the selector to pick per mode.
	PrefAuto Kind = "auto"
)

// Capability grades the native backend's support for one mode.
type Capability string

const (
	// CapAvailable means the capability is production ready.
	CapAvailable Capability = "available"
	// CapExperimental means usable but behind a flag or pending a model
	// download; treated as usable by the selector.
	CapExperimental Capability = "experimental"
	// CapUnavailable means the capability cannot serve requests.
	CapUnavailable Capability = "unavailable"
)

// Snapshot is a point-in-time record of backend availability. Native support
// is graded per mode; the local families are single booleans. The remote
// backend needs only network access and is always considered available.
type Snapshot struct {
	Native        map[transform.Mode]Capability
	GPUAvailable  bool
	WASMAvailable bool
}

// NativeUsable reports whether the native backend can serve the given mode.
func (s Snapshot) NativeUsable(mode transform.Mode) bool {
	return s.Native[mode] != "" && s.Native[mode] != CapUnavailable
}

// Resolution pairs a mode with the backend chosen to serve it.
type Resolution struct {
	Mode    transform.Mode
	Backend Kind
}
