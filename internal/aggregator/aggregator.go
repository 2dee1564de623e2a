// Package aggregator fans out marketplace work across sources and
// collections and joins it into per-collection snapshots. Each (collection,
// source) pair contributes three concurrent tasks: a floor price fetch, a
// listings sync and a sales sync, all bounded by the fetch timeout.
package aggregator

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/market"
)

// DefaultFetchTimeout bounds each per-source task.
const DefaultFetchTimeout = 10 * time.Second

// EventSyncer turns repeated marketplace polls into incremental event
// streams. Implemented by syncer.Engine.
type EventSyncer interface {
	SyncSales(ctx context.Context, src market.Source, collection domain.Collection) ([]domain.SaleEvent, error)
	SyncListings(ctx context.Context, src market.Source, collection domain.Collection) ([]domain.ListingEvent, error)
}

// CollectionSnapshot is the joined view of one collection across all sources.
type CollectionSnapshot struct {
	Collection domain.Collection

	// Floors maps source name to that source's floor observation. Sources
	// with no data this cycle are absent.
	Floors map[string]domain.FloorPriceSnapshot

	// Listings and Sales hold the events newly emitted by the sync engine
	// this cycle, ordered by OccurredAt ascending across sources.
	Listings []domain.ListingEvent
	Sales    []domain.SaleEvent

	FetchedAt time.Time
}

// BestFloor returns the lowest floor price across sources.
// ok is false when no source reported a floor.
func (s *CollectionSnapshot) BestFloor() (price float64, source string, ok bool) {
	for name, floor := range s.Floors {
		if !ok || floor.PriceSOL < price {
			price, source, ok = floor.PriceSOL, name, true
		}
	}
	return price, source, ok
}

// Aggregator concurrently collects marketplace state for watched collections
// and drives the incremental sync streams. A slow or failing source costs at
// most the fetch timeout and never blocks the other tasks; the only hard
// failure surfaced is a checkpoint store error from the sync engine.
type Aggregator struct {
	sources      []market.Source
	events       EventSyncer
	fetchTimeout time.Duration
	logger       *log.Logger
}

// Options configures an Aggregator.
type Options struct {
	// FetchTimeout bounds each per-source task. Defaults to DefaultFetchTimeout.
	FetchTimeout time.Duration

	// Logger receives fetch diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

// New creates an Aggregator over the given sources and sync engine.
func New(sources []market.Source, events EventSyncer, opts Options) *Aggregator {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		sources:      sources,
		events:       events,
		fetchTimeout: timeout,
		logger:       logger,
	}
}

// taskResult is one (collection, source, kind) task outcome. Exactly one of
// the payload fields is set per task.
type taskResult struct {
	collection domain.Collection
	floor      *domain.FloorPriceSnapshot
	listings   []domain.ListingEvent
	sales      []domain.SaleEvent
	err        error
}

// Aggregate runs all tasks for all collections concurrently and joins the
// results. Every requested collection gets a snapshot even when every source
// degraded; an empty input returns an empty map without any work. Marketplace
// failures degrade to absent data, so a non-nil error means the checkpoint
// store failed; the snapshots are still returned alongside it.
func (a *Aggregator) Aggregate(ctx context.Context, collections []domain.Collection) (map[domain.Collection]*CollectionSnapshot, error) {
	snapshots := make(map[domain.Collection]*CollectionSnapshot, len(collections))
	if len(collections) == 0 {
		return snapshots, nil
	}

	now := time.Now()
	for _, c := range collections {
		snapshots[c] = &CollectionSnapshot{
			Collection: c,
			Floors:     make(map[string]domain.FloorPriceSnapshot, len(a.sources)),
			FetchedAt:  now,
		}
	}

	results := make(chan taskResult, len(collections)*len(a.sources)*3)

	var wg sync.WaitGroup
	for _, collection := range collections {
		for _, src := range a.sources {
			wg.Add(3)
			go func(collection domain.Collection, src market.Source) {
				defer wg.Done()
				results <- a.fetchFloor(ctx, collection, src)
			}(collection, src)
			go func(collection domain.Collection, src market.Source) {
				defer wg.Done()
				results <- a.syncSales(ctx, collection, src)
			}(collection, src)
			go func(collection domain.Collection, src market.Source) {
				defer wg.Done()
				results <- a.syncListings(ctx, collection, src)
			}(collection, src)
		}
	}
	wg.Wait()
	close(results)

	var errs []error
	for r := range results {
		snap := snapshots[r.collection]
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if r.floor != nil {
			snap.Floors[r.floor.Source] = *r.floor
		}
		snap.Listings = append(snap.Listings, r.listings...)
		snap.Sales = append(snap.Sales, r.sales...)
	}

	for _, snap := range snapshots {
		sort.Slice(snap.Sales, func(i, j int) bool {
			return snap.Sales[i].OccurredAt < snap.Sales[j].OccurredAt
		})
		sort.Slice(snap.Listings, func(i, j int) bool {
			return snap.Listings[i].OccurredAt < snap.Listings[j].OccurredAt
		})
	}

	return snapshots, errors.Join(errs...)
}

// fetchFloor collects one source's floor price under the fetch timeout.
func (a *Aggregator) fetchFloor(ctx context.Context, collection domain.Collection, src market.Source) taskResult {
	taskCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	r := taskResult{collection: collection}
	price, ok := src.FloorPrice(taskCtx, collection)
	if !ok {
		a.logger.Printf("[aggregator] %s/%s: no floor this cycle", src.Name(), collection)
		return r
	}

	r.floor = &domain.FloorPriceSnapshot{
		Collection: collection,
		Source:     src.Name(),
		PriceSOL:   price,
		ObservedAt: time.Now().UnixMilli(),
	}
	return r
}

// syncSales advances one sale stream under the fetch timeout.
func (a *Aggregator) syncSales(ctx context.Context, collection domain.Collection, src market.Source) taskResult {
	taskCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	r := taskResult{collection: collection}
	r.sales, r.err = a.events.SyncSales(taskCtx, src, collection)
	return r
}

// syncListings advances one listing stream under the fetch timeout.
func (a *Aggregator) syncListings(ctx context.Context, collection domain.Collection, src market.Source) taskResult {
	taskCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	r := taskResult{collection: collection}
	r.listings, r.err = a.events.SyncListings(taskCtx, src, collection)
	return r
}
