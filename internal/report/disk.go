package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DiskStore writes reports as JSON files to a directory. Without an
// explicit directory, a temp directory is created lazily on first use.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir, or at a lazily
// created temp directory when dir is empty.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes a report as a JSON file.
func (s *DiskStore) Save(r *Report) error {
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshalling report %s: %w", r.ID, err)
	}
	if err := os.WriteFile(s.path(dir, r.ID), data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", r.ID, err)
	}
	return nil
}

// Load reads a report from disk.
func (s *DiskStore) Load(id string) (*Report, error) {
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(dir, id))
	if err != nil {
		return nil, fmt.Errorf("reading report %s: %w", id, err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshalling report %s: %w", id, err)
	}
	return &r, nil
}

// path keeps ids from escaping the store directory.
func (s *DiskStore) path(dir, id string) string {
	return filepath.Join(dir, filepath.Base(id)+".json")
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return "", fmt.Errorf("creating report directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "triage-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
