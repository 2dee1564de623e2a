// Package main provides the marketplace tracker service:
// - Polling (continuous): floor prices, listings and sales across marketplaces
// - Sync (per cycle): watermark-based incremental event streams
// - Archive (per cycle): emitted sale events stored for offline analysis
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"solana-nft-tracker/internal/aggregator"
	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/market"
	"solana-nft-tracker/internal/observability"
	"solana-nft-tracker/internal/solana"
	"solana-nft-tracker/internal/storage"
	chstore "solana-nft-tracker/internal/storage/clickhouse"
	"solana-nft-tracker/internal/storage/memory"
	"solana-nft-tracker/internal/storage/migrations"
	pgstore "solana-nft-tracker/internal/storage/postgres"
	"solana-nft-tracker/internal/syncer"
)

// Tracker holds all components of the polling service.
type Tracker struct {
	collections  []domain.Collection
	pollInterval time.Duration

	agg     *aggregator.Aggregator
	archive storage.SaleArchive
	logger  *log.Logger

	// State
	mu         sync.Mutex
	started    time.Time
	lastCycle  time.Time
	cycleRuns  int
	cycleError string
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	collections := flag.String("collections", os.Getenv("TRACKER_COLLECTIONS"), "Comma-separated collection symbols to watch")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	pollInterval := flag.Duration("poll-interval", 1*time.Minute, "Marketplace poll interval")
	fetchTimeout := flag.Duration("fetch-timeout", aggregator.DefaultFetchTimeout, "Per-source fetch timeout")
	magicEdenURL := flag.String("magiceden-url", "", "Magic Eden API root override")
	solanartURL := flag.String("solanart-url", "", "Solanart API root override")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional)")
	watchAccounts := flag.String("watch-accounts", "", "Comma-separated accounts to watch for changes (requires --ws-endpoint)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[tracker] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	watched := splitList(*collections)
	if len(watched) == 0 {
		logger.Fatal("--collections is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}

	collectionList := make([]domain.Collection, len(watched))
	for i, c := range watched {
		collectionList[i] = domain.Collection(c)
	}
	logger.Printf("Watching collections: %v", watched)

	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	checkpoints, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Create marketplace sources
	sources := createSources(*magicEdenURL, *solanartURL, logger)

	engine := syncer.New(checkpoints, syncer.Options{
		Logger: log.New(os.Stdout, "[syncer] ", log.LstdFlags),
	})

	tracker := &Tracker{
		collections:  collectionList,
		pollInterval: *pollInterval,
		agg: aggregator.New(sources, engine, aggregator.Options{
			FetchTimeout: *fetchTimeout,
			Logger:       logger,
		}),
		archive: archive,
		logger:  logger,
		started: time.Now(),
	}

	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start account watcher if configured
	if *wsEndpoint != "" && *watchAccounts != "" {
		go watchAccountChanges(ctx, *wsEndpoint, splitList(*watchAccounts), logger)
	}

	// Start HTTP server
	go tracker.startHTTPServer(*metricsAddr)

	err = tracker.Run(ctx)
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Tracker error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createSources builds the marketplace adapters.
func createSources(magicEdenURL, solanartURL string, logger *log.Logger) []market.Source {
	var meOpts []market.MagicEdenOption
	if magicEdenURL != "" {
		meOpts = append(meOpts, market.WithMagicEdenBaseURL(magicEdenURL))
	}
	meOpts = append(meOpts, market.WithMagicEdenLogger(logger))

	var saOpts []market.SolanartOption
	if solanartURL != "" {
		saOpts = append(saOpts, market.WithSolanartBaseURL(solanartURL))
	}
	saOpts = append(saOpts, market.WithSolanartLogger(logger))

	return []market.Source{
		market.NewMagicEden(meOpts...),
		market.NewSolanart(saOpts...),
	}
}

// createStores creates the checkpoint store and sale archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (storage.CheckpointStore, storage.SaleArchive, func(), error) {
	if useMemory {
		return memory.NewCheckpointStore(), memory.NewSaleArchive(), func() {}, nil
	}

	// PostgreSQL (checkpoints)
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse (sale archive)
	chConn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return pgstore.NewCheckpointStore(pool), chstore.NewSaleArchive(chConn), cleanup, nil
}

// Run polls marketplaces until the context is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Printf("Starting tracker (interval: %v)...", t.pollInterval)

	// Run immediately on start
	t.runCycle(ctx)

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.runCycle(ctx)
		}
	}
}

// runCycle executes one poll: one aggregate pass fans out floor fetches and
// the incremental sync streams, then the emitted sales are archived.
func (t *Tracker) runCycle(ctx context.Context) {
	start := time.Now()
	var cycleErr string

	snapshots, err := t.agg.Aggregate(ctx, t.collections)
	if err != nil {
		t.logger.Printf("Aggregate: %v", err)
		observability.RecordSyncError("checkpoints")
		cycleErr = err.Error()
	}

	for collection, snap := range snapshots {
		for source, floor := range snap.Floors {
			observability.RecordFloorPrice(collection.String(), source, floor.PriceSOL)
		}
		if price, source, ok := snap.BestFloor(); ok {
			t.logger.Printf("%s: floor %.3f SOL (%s), %d new listings, %d new sales",
				collection, price, source, len(snap.Listings), len(snap.Sales))
		}

		for source, batch := range groupSalesBySource(snap.Sales) {
			observability.RecordSalesEmitted(source, collection.String(), len(batch), batch[len(batch)-1].OccurredAt)
		}
		for _, sale := range snap.Sales {
			t.logger.Printf("SALE %s: %s for %.3f SOL (%s -> %s) via %s",
				collection, sale.Mint, sale.PriceSOL, sale.Seller, sale.Buyer, sale.Source)
		}
		if len(snap.Sales) > 0 {
			if err := t.archive.Insert(ctx, snap.Sales); err != nil {
				t.logger.Printf("Archive sales %s: %v", collection, err)
				cycleErr = err.Error()
			}
		}

		for source, batch := range groupListingsBySource(snap.Listings) {
			observability.RecordListingsEmitted(source, collection.String(), len(batch), batch[len(batch)-1].OccurredAt)
		}
		for _, l := range snap.Listings {
			t.logger.Printf("LISTING %s: %s at %.3f SOL via %s", collection, l.Mint, l.PriceSOL, l.Source)
		}
	}

	observability.DefaultMetrics.UptimeSeconds.Set(time.Since(t.started).Seconds())
	if cycleErr == "" {
		observability.DefaultMetrics.LastSuccessfulPoll.Set(float64(time.Now().Unix()))
	}

	t.mu.Lock()
	t.lastCycle = time.Now()
	t.cycleRuns++
	t.cycleError = cycleErr
	t.mu.Unlock()

	t.logger.Printf("Cycle completed in %v", time.Since(start))
}

// watchAccountChanges subscribes to account notifications and logs them.
// A change of a watched holding account means cached purchase views for the
// owning wallet are stale.
func watchAccountChanges(ctx context.Context, endpoint string, accounts []string, logger *log.Logger) {
	watcher, err := solana.NewWSAccountWatcher(ctx, endpoint, nil)
	if err != nil {
		logger.Printf("Account watcher unavailable: %v", err)
		return
	}
	defer watcher.Close()

	var wg sync.WaitGroup
	for _, account := range accounts {
		ch, err := watcher.SubscribeAccount(ctx, account)
		if err != nil {
			logger.Printf("Subscribe %s: %v", account, err)
			continue
		}
		wg.Add(1)
		go func(account string, ch <-chan solana.AccountNotification) {
			defer wg.Done()
			for n := range ch {
				observability.DefaultMetrics.WSNotifications.Inc()
				logger.Printf("ACCOUNT %s changed at slot %d (%d lamports)", n.Pubkey, n.Slot, n.Lamports)
			}
		}(account, ch)
	}

	<-ctx.Done()
	watcher.Close()
	wg.Wait()
}

// startHTTPServer starts the HTTP server for health/metrics/status.
func (t *Tracker) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", t.handleStatus)

	t.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		t.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	Collections []string  `json:"collections"`
	LastCycle   time.Time `json:"last_cycle,omitempty"`
	CycleRuns   int       `json:"cycle_runs"`
	CycleError  string    `json:"cycle_error,omitempty"`
}

// handleStatus returns tracker status as JSON.
func (t *Tracker) handleStatus(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, len(t.collections))
	for i, c := range t.collections {
		names[i] = c.String()
	}

	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(t.started).String(),
		Collections: names,
		LastCycle:   t.lastCycle,
		CycleRuns:   t.cycleRuns,
		CycleError:  t.cycleError,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// groupSalesBySource buckets emitted sales by their source for metrics.
// Streams emit oldest first, so the last event of a bucket is the newest.
func groupSalesBySource(sales []domain.SaleEvent) map[string][]domain.SaleEvent {
	if len(sales) == 0 {
		return nil
	}
	out := make(map[string][]domain.SaleEvent)
	for _, s := range sales {
		out[s.Source] = append(out[s.Source], s)
	}
	return out
}

func groupListingsBySource(listings []domain.ListingEvent) map[string][]domain.ListingEvent {
	if len(listings) == 0 {
		return nil
	}
	out := make(map[string][]domain.ListingEvent)
	for _, l := range listings {
		out[l.Source] = append(out[l.Source], l)
	}
	return out
}

// splitList splits a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
