package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"prostop/internal/modules/ledger/domain"
	ledgerout "prostop/internal/modules/ledger/port/out"
)

// FileWebsiteStore persists the whole domain collection as one JSON file.
// The mutex makes every Update a full read-modify-write critical section, so
// overlapping commits from the tick loop and inbound signals cannot clobber
// each other; concurrent writers see last-write-wins at collection
// granularity, never a torn record.
type FileWebsiteStore struct {
	path string
	mu   sync.Mutex
}

func NewFileWebsiteStore(path string) ledgerout.WebsiteStore {
	return &FileWebsiteStore{path: path}
}

func (s *FileWebsiteStore) Load(_ context.Context) (map[string]*domain.WebsiteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *FileWebsiteStore) Update(_ context.Context, fn func(records map[string]*domain.WebsiteRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return err
	}
	if err := fn(records); err != nil {
		return err
	}
	return s.writeLocked(records)
}

func (s *FileWebsiteStore) readLocked() (map[string]*domain.WebsiteRecord, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*domain.WebsiteRecord{}, nil
		}
		return nil, fmt.Errorf("read websites: %w", err)
	}
	records := map[string]*domain.WebsiteRecord{}
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode websites: %w", err)
	}
	for key, record := range records {
		if record.Domain == "" {
			record.Domain = key
		}
	}
	return records, nil
}

func (s *FileWebsiteStore) writeLocked(records map[string]*domain.WebsiteRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal websites: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write websites: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace websites: %w", err)
	}
	return nil
}
