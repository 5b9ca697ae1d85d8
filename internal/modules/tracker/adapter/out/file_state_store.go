package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"prostop/internal/modules/tracker/domain"
	trackerout "prostop/internal/modules/tracker/port/out"
)

// FileStateStore persists the restart state as one small JSON file, written
// atomically via a temp file rename.
type FileStateStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStateStore(path string) trackerout.StateStore {
	return &FileStateStore{path: path}
}

func (s *FileStateStore) Load(_ context.Context) (domain.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.PersistedState{}, nil
		}
		return domain.PersistedState{}, fmt.Errorf("read state: %w", err)
	}
	var state domain.PersistedState
	if err := json.Unmarshal(payload, &state); err != nil {
		return domain.PersistedState{}, fmt.Errorf("decode state: %w", err)
	}
	return state, nil
}

func (s *FileStateStore) Save(_ context.Context, state domain.PersistedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}
