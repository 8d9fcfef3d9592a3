// Package local owns the in-process inference engine: exactly one loaded
// model at a time, fronted by a single-flight FIFO generation queue so
// overlapping requests never contend for the same model session.
package local

import (
	"context"

	"github.com/quillworks/quill/pkg/backend"
	"github.com/quillworks/quill/pkg/transform"
)

// ProgressFunc receives load progress as a 0-100 percentage and a status line.
type ProgressFunc func(progress float64, status string)

// Runtime is one loaded local model. Implementations need not be safe for
// concurrent use; the engine serializes every Load, Complete and Close
// under its load lock.
type Runtime interface {
	// Load loads (or reloads) the named model. Progress may be nil.
	Load(ctx context.Context, modelID string, progress ProgressFunc) error

	// Complete runs one streaming completion, relaying each incremental
	// delta to onDelta and returning the full text.
	Complete(ctx context.Context, system, user string, onDelta func(delta string)) (string, error)

	// Close releases the model and any resources behind it.
	Close() error
}

// RuntimeFactory creates a runtime for a backend kind (local-gpu or
// local-wasm). The kind is configuration for the same model family, not a
// separate model.
type RuntimeFactory func(kind backend.Kind) (Runtime, error)

// Item is one queued generation request.
type Item struct {
	Text      string
	Mode      transform.Mode
	Settings  transform.Settings
	Kind      backend.Kind // resolved backend kind, local-gpu or local-wasm
	RequestID string
}
