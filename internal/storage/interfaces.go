package storage

import (
	"context"
	"fmt"

	"solana-nft-tracker/internal/domain"
)

// CheckpointStore persists "last seen" watermarks per (collection, source,
// kind). Watermarks are Unix milliseconds. The sync engine owns checkpoint
// state exclusively; implementations must never move a watermark backward.
type CheckpointStore interface {
	// Load returns the watermark for a key. Returns ErrNotFound when no
	// watermark has been saved yet (the valid first-run state).
	Load(ctx context.Context, key string) (int64, error)

	// Save persists a watermark for a key. Saving a value older than the
	// stored one is a no-op.
	Save(ctx context.Context, key string, watermark int64) error
}

// CheckpointKey builds the namespaced checkpoint key for a (source,
// kind, collection) triple, e.g. "magiceden/last_sales_degods".
func CheckpointKey(source, kind string, collection domain.Collection) string {
	return fmt.Sprintf("%s/last_%s_%s", source, kind, collection)
}

// Checkpoint kinds.
const (
	KindSales    = "sales"
	KindListings = "listings"
)

// SaleArchive stores emitted sale events for offline analysis. Append-only;
// re-inserting an already archived event is harmless (at-least-once
// delivery upstream means duplicates are expected).
type SaleArchive interface {
	// Insert archives a batch of sale events.
	Insert(ctx context.Context, events []domain.SaleEvent) error

	// GetByCollection retrieves archived events for a collection within
	// [from, to] milliseconds (inclusive), ordered by occurrence time ASC.
	GetByCollection(ctx context.Context, collection domain.Collection, from, to int64) ([]domain.SaleEvent, error)
}
