package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/udpbd-vexfat/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ResultStore = (*ResultStore)(nil)

// ResultStore implements ports.ResultStore using a flat JSON file.
type ResultStore struct {
	path  string
	mu    sync.RWMutex
	cache map[string]domain.StageResult
}

// NewResultStore creates a ResultStore backed by the file at the given path.
func NewResultStore(path string) (*ResultStore, error) {
	s := &ResultStore{
		path:  filepath.Clean(path),
		cache: make(map[string]domain.StageResult),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ResultStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	//nolint:gosec // Path is cleaned and provided by trusted caller
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read stage result store")
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &s.cache); err != nil {
		return zerr.Wrap(err, "failed to unmarshal stage result store")
	}

	return nil
}

func (s *ResultStore) save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.cache, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal stage result store")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create directory for stage result store")
	}

	//nolint:gosec // Path is cleaned and provided by trusted caller
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return zerr.Wrap(err, "failed to write stage result store")
	}

	return nil
}

// Get retrieves the recorded result for a stage.
func (s *ResultStore) Get(stage string) (*domain.StageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.cache[stage]
	if !ok {
		return nil, nil
	}
	return &result, nil
}

// Put stores the stage result.
func (s *ResultStore) Put(result domain.StageResult) error {
	// Update cache first
	s.mu.Lock()
	s.cache[result.Stage] = result
	s.mu.Unlock()

	// Then save to disk
	return s.save()
}
