// Package syncer turns repeated marketplace polls into incremental event
// streams. Each (source, kind, collection) stream carries a persistent
// watermark so that restarting the process never re-emits events already
// seen, and polling twice in a row emits nothing new.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/market"
	"solana-nft-tracker/internal/storage"
)

// Engine synchronizes marketplace events against persisted watermarks.
// Safe for concurrent use; streams with the same checkpoint key are
// serialized, distinct keys proceed in parallel.
type Engine struct {
	checkpoints storage.CheckpointStore
	logger      *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Options configures an Engine.
type Options struct {
	// Logger receives sync diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

// New creates a sync engine backed by the given checkpoint store.
func New(checkpoints storage.CheckpointStore, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		checkpoints: checkpoints,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// SyncSales polls a source's sale history for a collection and returns the
// events newer than the stored watermark, oldest first.
//
// On the first sync of a stream only the single newest event is returned,
// which seeds the watermark without replaying the source's whole history.
func (e *Engine) SyncSales(ctx context.Context, src market.Source, collection domain.Collection) ([]domain.SaleEvent, error) {
	key := storage.CheckpointKey(src.Name(), storage.KindSales, collection)

	lock := e.streamLock(key)
	lock.Lock()
	defer lock.Unlock()

	watermark, first, err := e.loadWatermark(ctx, key)
	if err != nil {
		return nil, err
	}

	fetched := src.SaleHistory(ctx, collection)
	if len(fetched) == 0 {
		return nil, nil
	}

	// Sources report newest first but that ordering is not guaranteed
	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].OccurredAt > fetched[j].OccurredAt
	})

	var emitted []domain.SaleEvent
	if first {
		emitted = []domain.SaleEvent{fetched[0]}
	} else {
		for i := len(fetched) - 1; i >= 0; i-- {
			if fetched[i].OccurredAt > watermark {
				emitted = append(emitted, fetched[i])
			}
		}
	}

	if len(emitted) == 0 {
		return nil, nil
	}

	newest := emitted[len(emitted)-1].OccurredAt
	if err := e.saveWatermark(ctx, key, newest); err != nil {
		return nil, err
	}

	e.logger.Printf("[syncer] %s: emitted %d sale events, watermark=%d", key, len(emitted), newest)
	return emitted, nil
}

// SyncListings polls a source's listings for a collection and returns the
// ones newer than the stored watermark, oldest first. Cold-start behavior
// matches SyncSales: the first sync returns only the newest listing.
func (e *Engine) SyncListings(ctx context.Context, src market.Source, collection domain.Collection) ([]domain.ListingEvent, error) {
	key := storage.CheckpointKey(src.Name(), storage.KindListings, collection)

	lock := e.streamLock(key)
	lock.Lock()
	defer lock.Unlock()

	watermark, first, err := e.loadWatermark(ctx, key)
	if err != nil {
		return nil, err
	}

	fetched := src.Listings(ctx, collection)
	if len(fetched) == 0 {
		return nil, nil
	}

	sort.Slice(fetched, func(i, j int) bool {
		return fetched[i].OccurredAt > fetched[j].OccurredAt
	})

	var emitted []domain.ListingEvent
	if first {
		emitted = []domain.ListingEvent{fetched[0]}
	} else {
		for i := len(fetched) - 1; i >= 0; i-- {
			if fetched[i].OccurredAt > watermark {
				emitted = append(emitted, fetched[i])
			}
		}
	}

	if len(emitted) == 0 {
		return nil, nil
	}

	newest := emitted[len(emitted)-1].OccurredAt
	if err := e.saveWatermark(ctx, key, newest); err != nil {
		return nil, err
	}

	e.logger.Printf("[syncer] %s: emitted %d listing events, watermark=%d", key, len(emitted), newest)
	return emitted, nil
}

// loadWatermark reads the stream watermark. first reports whether this is
// the stream's cold start.
func (e *Engine) loadWatermark(ctx context.Context, key string) (watermark int64, first bool, err error) {
	watermark, err = e.checkpoints.Load(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("load checkpoint %s: %w", key, err)
	}
	return watermark, false, nil
}

// saveWatermark advances the stream watermark. A cancelled context means the
// caller may not have processed the emitted events, so the watermark is left
// untouched for the next sync to retry.
func (e *Engine) saveWatermark(ctx context.Context, key string, watermark int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.checkpoints.Save(ctx, key, watermark); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", key, err)
	}
	return nil
}

// streamLock returns the mutex serializing syncs of one checkpoint key.
func (e *Engine) streamLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}
