// Package memory provides in-memory storage implementations for tests
// and single-process runs.
package memory

import (
	"context"
	"sync"

	"solana-nft-tracker/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]int64
}

// NewCheckpointStore creates an empty in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[string]int64),
	}
}

// Load returns the watermark for a key, or storage.ErrNotFound on first run.
func (s *CheckpointStore) Load(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	watermark, ok := s.checkpoints[key]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return watermark, nil
}

// Save persists a watermark. Values older than the stored one are ignored.
func (s *CheckpointStore) Save(ctx context.Context, key string, watermark int64) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.checkpoints[key]; ok && watermark <= existing {
		return nil
	}
	s.checkpoints[key] = watermark
	return nil
}
