package local

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/tetratelabs/wazero"

	"github.com/quillworks/quill/pkg/backend"
)

// DefaultFactory returns a RuntimeFactory producing a ServerRuntime for the
// GPU kind and a WASMRuntime for the wasm kind, both rooted at modelDir.
func DefaultFactory(serverCfg ServerConfig, modelDir string) RuntimeFactory {
	return func(kind backend.Kind) (Runtime, error) {
		switch kind {
		case backend.KindLocalGPU:
			cfg := serverCfg
			if cfg.ModelDir == "" {
				cfg.ModelDir = modelDir
			}
			return NewServerRuntime(cfg), nil
		case backend.KindLocalWASM:
			return NewWASMRuntime(modelDir), nil
		}
		return nil, fmt.Errorf("no local runtime for backend %q", kind)
	}
}

// GPUProber reports whether GPU inference is plausible: the server binary
// must be on PATH and a GPU device must be visible. On macOS the Metal
// backend needs no device node.
func GPUProber(binPath string) backend.BoolProberFunc {
	if binPath == "" {
		binPath = DefaultServerBinary
	}
	return func(ctx context.Context) (bool, error) {
		if _, err := exec.LookPath(binPath); err != nil {
			return false, nil
		}
		if runtime.GOOS == "darwin" {
			return true, nil
		}
		for _, dev := range []string{"/dev/nvidia0", "/dev/kfd", "/dev/dri"} {
			if _, err := os.Stat(dev); err == nil {
				return true, nil
			}
		}
		return false, nil
	}
}

// WASMProber reports whether the embedded wasm runtime can start at all by
// spinning one up and tearing it down.
func WASMProber() backend.BoolProberFunc {
	return func(ctx context.Context) (bool, error) {
		rt := wazero.NewRuntime(ctx)
		if err := rt.Close(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
}
