package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRepository stores the allowlist as one pretty-printed JSON array,
// rewritten whole on every change. The list is small enough that a full
// rewrite is simpler than tracking deltas.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileRepository{path: path}, nil
}

// Load reads the allowlist. A missing or empty file is an empty list,
// not an error, so first boot needs no provisioning.
func (r *FileRepository) Load() ([]Learner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Learner{}, nil
		}
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	if len(data) == 0 {
		return []Learner{}, nil
	}
	var learners []Learner
	if err := json.Unmarshal(data, &learners); err != nil {
		return nil, fmt.Errorf("parse allowlist: %w", err)
	}
	return learners, nil
}

func (r *FileRepository) Save(learners []Learner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.MarshalIndent(learners, "", "  ")
	if err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("write allowlist: %w", err)
	}
	return nil
}
