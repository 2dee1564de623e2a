package memory

import (
	"context"
	"sort"
	"sync"

	"solana-nft-tracker/internal/domain"
)

// SaleArchive is an in-memory implementation of storage.SaleArchive.
type SaleArchive struct {
	mu     sync.RWMutex
	events map[domain.Collection][]domain.SaleEvent
}

// NewSaleArchive creates an empty in-memory sale archive.
func NewSaleArchive() *SaleArchive {
	return &SaleArchive{
		events: make(map[domain.Collection][]domain.SaleEvent),
	}
}

// Insert archives a batch of sale events.
func (a *SaleArchive) Insert(ctx context.Context, events []domain.SaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range events {
		a.events[e.Collection] = append(a.events[e.Collection], e)
	}
	return nil
}

// GetByCollection returns archived events within [from, to] milliseconds,
// ordered by occurrence time ascending. Returns copies of stored events.
func (a *SaleArchive) GetByCollection(ctx context.Context, collection domain.Collection, from, to int64) ([]domain.SaleEvent, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []domain.SaleEvent
	for _, e := range a.events[collection] {
		if e.OccurredAt >= from && e.OccurredAt <= to {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt < result[j].OccurredAt
	})
	return result, nil
}
