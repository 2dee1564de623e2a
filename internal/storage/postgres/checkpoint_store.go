package postgres

import (
	"context"

	"solana-nft-tracker/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
// One row per checkpoint key; the upsert only ever advances the watermark.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Load returns the watermark for a key, or storage.ErrNotFound on first run.
func (s *CheckpointStore) Load(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT watermark
		FROM checkpoints
		WHERE key = $1
	`, key)

	var watermark int64
	if err := row.Scan(&watermark); err != nil {
		if isNotFoundError(err) {
			return 0, storage.ErrNotFound
		}
		return 0, err
	}

	return watermark, nil
}

// Save persists a watermark for a key. The ON CONFLICT clause keeps the
// stored value monotone: older watermarks never overwrite newer ones.
func (s *CheckpointStore) Save(ctx context.Context, key string, watermark int64) error {
	if key == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO checkpoints (key, watermark, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET watermark = EXCLUDED.watermark,
		    updated_at = NOW()
		WHERE checkpoints.watermark < EXCLUDED.watermark
	`, key, watermark)

	return err
}
