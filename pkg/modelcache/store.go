package modelcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/internal/logger"
)

// ProgressFunc receives export/import progress as a 0-100 percentage and a
// status line.
type ProgressFunc func(progress float64, status string)

const (
	manifestFile = "manifest.yaml"
	blobDir      = "blobs"
)

// manifest records what a model's cache directory holds. It is the source of
// truth for URLs; blob files are content-addressed and meaningless alone.
type manifest struct {
	ModelID   string          `yaml:"model_id"`
	UpdatedAt time.Time       `yaml:"updated_at"`
	Entries   []manifestEntry `yaml:"entries"`
}

type manifestEntry struct {
	URL  string `yaml:"url"`
	File string `yaml:"file"`
	Size int64  `yaml:"size"`
}

// Store keeps per-model artifact caches under a root directory: one
// subdirectory per model id, each with a YAML manifest and a blob directory.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore opens (creating if needed) a store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	return &Store{root: dir}, nil
}

// Put stores one artifact for a model, overwriting any previous artifact for
// the same URL.
func (s *Store) Put(modelID, url string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(modelID)
	if err != nil {
		return err
	}

	file := blobName(url)
	dir := filepath.Join(s.root, modelID, blobDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), data, 0o644); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}

	replaced := false
	for i := range m.Entries {
		if m.Entries[i].URL == url {
			m.Entries[i] = manifestEntry{URL: url, File: file, Size: int64(len(data))}
			replaced = true
			break
		}
	}
	if !replaced {
		m.Entries = append(m.Entries, manifestEntry{URL: url, File: file, Size: int64(len(data))})
	}
	return s.saveManifest(modelID, m)
}

// Get returns one artifact's bytes by URL.
func (s *Store) Get(modelID, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.loadManifest(modelID)
	if err != nil {
		return nil, err
	}
	for _, e := range m.Entries {
		if e.URL == url {
			return os.ReadFile(filepath.Join(s.root, modelID, blobDir, e.File))
		}
	}
	return nil, fmt.Errorf("no cached artifact for %s", url)
}

// Models lists the model ids present in the store, sorted.
func (s *Store) Models() ([]string, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read cache root: %w", err)
	}
	var out []string
	for _, d := range dirs {
		if d.IsDir() {
			out = append(out, d.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes a model's cache directory entirely.
func (s *Store) Delete(modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.RemoveAll(filepath.Join(s.root, modelID))
}

// Export collects a model's cached artifacts and writes them to w as one
// package file. The first half of the progress range covers collecting
// blobs, the second half covers packing.
func (s *Store) Export(modelID string, w io.Writer, progress ProgressFunc) error {
	report := func(pct float64, status string) {
		if progress != nil {
			progress(pct, status)
		}
	}

	s.mu.Lock()
	m, err := s.loadManifest(modelID)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if len(m.Entries) == 0 {
		return fmt.Errorf("model %s has no cached artifacts", modelID)
	}

	entries := make([]Entry, 0, len(m.Entries))
	for i, e := range m.Entries {
		data, err := os.ReadFile(filepath.Join(s.root, modelID, blobDir, e.File))
		if err != nil {
			return fmt.Errorf("read blob for %s: %w", e.URL, err)
		}
		entries = append(entries, Entry{URL: e.URL, Data: data})
		report(50*float64(i+1)/float64(len(m.Entries)), "collecting cached artifacts")
	}

	report(50, "packing")
	if err := Pack(w, entries); err != nil {
		return err
	}
	report(100, "export complete")
	logger.Info("exported model cache", "model", modelID, "entries", len(entries))
	return nil
}

// Import reads a package file and installs its artifacts into the model's
// cache, replacing artifacts with matching URLs.
func (s *Store) Import(modelID string, r io.Reader, progress ProgressFunc) error {
	report := func(pct float64, status string) {
		if progress != nil {
			progress(pct, status)
		}
	}

	report(0, "reading package")
	entries, err := Unpack(r)
	if err != nil {
		return err
	}
	report(50, "installing artifacts")

	for i, e := range entries {
		if err := s.Put(modelID, e.URL, e.Data); err != nil {
			return fmt.Errorf("install %s: %w", e.URL, err)
		}
		report(50+50*float64(i+1)/float64(len(entries)), "installing artifacts")
	}
	logger.Info("imported model cache", "model", modelID, "entries", len(entries))
	return nil
}

func (s *Store) loadManifest(modelID string) (*manifest, error) {
	path := filepath.Join(s.root, modelID, manifestFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &manifest{ModelID: modelID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

func (s *Store) saveManifest(modelID string, m *manifest) error {
	m.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	dir := filepath.Join(s.root, modelID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

// blobName derives a stable content-addressed filename from an artifact URL.
func blobName(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:]) + ".bin"
}
