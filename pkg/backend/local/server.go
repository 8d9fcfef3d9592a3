package local

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quillworks/quill/internal/logger"
	"github.com/quillworks/quill/pkg/backend/remote"
)

// DefaultServerBinary is the inference server executable looked up on PATH
// when no explicit path is configured.
const DefaultServerBinary = "llama-server"

// ServerRuntime runs a GPU-accelerated model behind a llama-server child
// process and streams completions from it over loopback HTTP. Switching
// models restarts the process; llama-server holds one model for its
// lifetime.
type ServerRuntime struct {
	binPath  string
	modelDir string
	port     int

	cmd     *exec.Cmd
	client  *remote.Client
	modelID string
}

// ServerConfig configures a ServerRuntime. Zero values get defaults.
type ServerConfig struct {
	BinPath  string // server executable, default llama-server from PATH
	ModelDir string // directory holding <model-id>.gguf files
	Port     int    // loopback port, default 8731
}

// NewServerRuntime builds a runtime from cfg.
func NewServerRuntime(cfg ServerConfig) *ServerRuntime {
	bin := cfg.BinPath
	if bin == "" {
		bin = DefaultServerBinary
	}
	port := cfg.Port
	if port == 0 {
		port = 8731
	}
	return &ServerRuntime{binPath: bin, modelDir: cfg.ModelDir, port: port}
}

// Load starts the server process for modelID and waits until its health
// endpoint answers. A different model id restarts the process.
func (s *ServerRuntime) Load(ctx context.Context, modelID string, progress ProgressFunc) error {
	if s.cmd != nil && s.modelID == modelID {
		return nil
	}
	if err := s.Close(); err != nil {
		logger.Warn("stopping previous inference server failed", "error", err)
	}

	report := func(pct float64, status string) {
		if progress != nil {
			progress(pct, status)
		}
	}

	modelPath := filepath.Join(s.modelDir, modelID+".gguf")
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("model weights not found at %s: %w", modelPath, err)
	}

	report(10, "starting inference server")
	cmd := exec.Command(s.binPath,
		"--model", modelPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(s.port),
		"--n-gpu-layers", "99",
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.binPath, err)
	}
	logger.Info("inference server started", "pid", cmd.Process.Pid, "model", modelID)

	root := "http://127.0.0.1:" + strconv.Itoa(s.port)
	baseURL := root + "/v1"
	if err := s.waitHealthy(ctx, root+"/health", report); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}

	client, err := remote.NewClient(remote.Config{
		BaseURL: baseURL,
		APIKey:  "local",
		Model:   modelID,
	})
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("create loopback client: %w", err)
	}

	s.cmd = cmd
	s.client = client
	s.modelID = modelID
	report(100, "model ready")
	return nil
}

// waitHealthy polls the server's health endpoint until it answers 200,
// reporting coarse progress while the model loads into the GPU.
func (s *ServerRuntime) waitHealthy(ctx context.Context, healthURL string, report func(float64, string)) error {
	const (
		pollInterval = 250 * time.Millisecond
		maxWait      = 2 * time.Minute
	)
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(maxWait)
	for attempt := 0; time.Now().Before(deadline); attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		// Scale 10..90 over the wait window so the caller sees movement.
		pct := 10 + 80*float64(attempt)*pollInterval.Seconds()/maxWait.Seconds()
		if pct > 90 {
			pct = 90
		}
		report(pct, "loading model into GPU")
	}
	return fmt.Errorf("inference server did not become healthy within %s", maxWait)
}

// Complete streams one completion from the child server.
func (s *ServerRuntime) Complete(ctx context.Context, system, user string, onDelta func(delta string)) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no model loaded")
	}
	return s.client.Stream(ctx, system, user, onDelta)
}

// Close stops the child process, if running.
func (s *ServerRuntime) Close() error {
	if s.cmd == nil {
		return nil
	}
	err := s.cmd.Process.Kill()
	_ = s.cmd.Wait()
	s.cmd = nil
	s.client = nil
	s.modelID = ""
	return err
}

var _ Runtime = (*ServerRuntime)(nil)
