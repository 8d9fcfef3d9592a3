package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	wazeroapi "github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/quillworks/quill/internal/logger"
)

// WASMRuntime runs a model compiled to WebAssembly. The module exports
// `alloc` and `generate`; generated tokens come back through an imported
// `emit_token` host function, so streaming works without the guest touching
// any I/O.
type WASMRuntime struct {
	modelDir string

	rt      wazero.Runtime
	mod     wazeroapi.Module
	modelID string

	mu      sync.Mutex
	onDelta func(delta string)
	out     strings.Builder
}

// NewWASMRuntime creates a runtime that loads model bundles from modelDir.
func NewWASMRuntime(modelDir string) *WASMRuntime {
	return &WASMRuntime{modelDir: modelDir}
}

// Load reads, compiles and instantiates the model's wasm bundle. Loading a
// different model tears down the previous instance first.
func (w *WASMRuntime) Load(ctx context.Context, modelID string, progress ProgressFunc) error {
	if w.mod != nil && w.modelID == modelID {
		return nil
	}
	if err := w.Close(); err != nil {
		logger.Warn("closing previous wasm instance failed", "error", err)
	}

	report := func(pct float64, status string) {
		if progress != nil {
			progress(pct, status)
		}
	}

	path := filepath.Join(w.modelDir, modelID+".wasm")
	report(5, "reading model bundle")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read model bundle %s: %w", path, err)
	}

	report(20, "compiling module")
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	_, err = rt.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(_ context.Context, m wazeroapi.Module, ptr, size uint32) {
			buf, ok := m.Memory().Read(ptr, size)
			if !ok {
				logger.Warn("wasm emit_token read out of range", "ptr", ptr, "size", size)
				return
			}
			w.mu.Lock()
			w.out.Write(buf)
			cb := w.onDelta
			w.mu.Unlock()
			if cb != nil {
				cb(string(buf))
			}
		}).
		Export("emit_token").
		Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("instantiate host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("compile model bundle: %w", err)
	}

	report(70, "instantiating module")
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(modelID))
	if err != nil {
		_ = rt.Close(ctx)
		return fmt.Errorf("instantiate model bundle: %w", err)
	}
	for _, name := range []string{"alloc", "generate"} {
		if mod.ExportedFunction(name) == nil {
			_ = rt.Close(ctx)
			return fmt.Errorf("model bundle does not export %q", name)
		}
	}

	w.rt = rt
	w.mod = mod
	w.modelID = modelID
	report(100, "model ready")
	return nil
}

// Complete writes the prompt into guest memory and calls generate; tokens
// stream back through the emit_token import while the call runs.
func (w *WASMRuntime) Complete(ctx context.Context, system, user string, onDelta func(delta string)) (string, error) {
	if w.mod == nil {
		return "", fmt.Errorf("no model loaded")
	}

	w.mu.Lock()
	w.onDelta = onDelta
	w.out.Reset()
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.onDelta = nil
		w.mu.Unlock()
	}()

	input := system + "\n\n" + user
	alloc := w.mod.ExportedFunction("alloc")
	res, err := alloc.Call(ctx, uint64(len(input)))
	if err != nil {
		return "", fmt.Errorf("alloc prompt buffer: %w", err)
	}
	ptr := uint32(res[0])
	if !w.mod.Memory().Write(ptr, []byte(input)) {
		return "", fmt.Errorf("write prompt at %d: out of range", ptr)
	}

	if _, err := w.mod.ExportedFunction("generate").Call(ctx, uint64(ptr), uint64(len(input))); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.String(), nil
}

// Close tears down the wasm runtime and everything instantiated in it.
func (w *WASMRuntime) Close() error {
	if w.rt == nil {
		return nil
	}
	err := w.rt.Close(context.Background())
	w.rt = nil
	w.mod = nil
	w.modelID = ""
	return err
}

var _ Runtime = (*WASMRuntime)(nil)
