// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Marketplace fetch metrics
	FetchesTotal      *prometheus.CounterVec
	FetchEmptyResults *prometheus.CounterVec
	FetchLatency      *prometheus.HistogramVec
	FloorPrice        *prometheus.GaugeVec

	// Sync metrics
	SaleEventsEmitted    *prometheus.CounterVec
	ListingEventsEmitted *prometheus.CounterVec
	SyncWatermark        *prometheus.GaugeVec
	SyncErrors           *prometheus.CounterVec

	// Wallet reconstruction metrics
	PurchasesReconstructed *prometheus.CounterVec
	ClassificationOutcomes *prometheus.CounterVec

	// Solana RPC metrics
	RPCCallLatency  *prometheus.HistogramVec
	RPCBatchRetries prometheus.Counter
	WSNotifications prometheus.Counter
	WSReconnects    prometheus.Counter

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
	UptimeSeconds      prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_nft_tracker"
	}

	return &Metrics{
		// Marketplace fetch metrics
		FetchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fetches_total",
			Help:      "Total number of marketplace fetches by source and kind",
		}, []string{"source", "kind"}),
		FetchEmptyResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fetch_empty_results_total",
			Help:      "Total number of fetches that degraded to an empty result",
		}, []string{"source", "kind"}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fetch_latency_seconds",
			Help:      "Marketplace fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FloorPrice: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "floor_price_sol",
			Help:      "Last observed floor price in SOL by collection and source",
		}, []string{"collection", "source"}),

		// Sync metrics
		SaleEventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "sale_events_emitted_total",
			Help:      "Total number of sale events emitted by source and collection",
		}, []string{"source", "collection"}),
		ListingEventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "listing_events_emitted_total",
			Help:      "Total number of listing events emitted by source and collection",
		}, []string{"source", "collection"}),
		SyncWatermark: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "watermark_timestamp_ms",
			Help:      "Current stream watermark in Unix milliseconds",
		}, []string{"key"}),
		SyncErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "errors_total",
			Help:      "Total number of sync failures by source",
		}, []string{"source"}),

		// Wallet reconstruction metrics
		PurchasesReconstructed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "purchases_reconstructed_total",
			Help:      "Total number of purchase reconstructions by outcome",
		}, []string{"outcome"}),
		ClassificationOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "classification_outcomes_total",
			Help:      "Total number of transaction classifications by marketplace",
		}, []string{"market"}),

		// Solana RPC metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCBatchRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_batch_retries_total",
			Help:      "Total number of batch transaction fetches retried on null results",
		}),
		WSNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_notifications_total",
			Help:      "Total number of account notifications received over WebSocket",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),

		// Health metrics
		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful poll cycle",
		}),
		UptimeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records one marketplace fetch, its latency and whether it came
// back empty.
func RecordFetch(source, kind string, empty bool, elapsed time.Duration) {
	DefaultMetrics.FetchesTotal.WithLabelValues(source, kind).Inc()
	if empty {
		DefaultMetrics.FetchEmptyResults.WithLabelValues(source, kind).Inc()
	}
	DefaultMetrics.FetchLatency.WithLabelValues(source).Observe(elapsed.Seconds())
}

// RecordFloorPrice updates the floor price gauge.
func RecordFloorPrice(collection, source string, priceSOL float64) {
	DefaultMetrics.FloorPrice.WithLabelValues(collection, source).Set(priceSOL)
}

// RecordSalesEmitted records emitted sale events and the advanced watermark.
func RecordSalesEmitted(source, collection string, count int, watermark int64) {
	DefaultMetrics.SaleEventsEmitted.WithLabelValues(source, collection).Add(float64(count))
	DefaultMetrics.SyncWatermark.WithLabelValues(source + "/last_sales_" + collection).Set(float64(watermark))
}

// RecordListingsEmitted records emitted listing events and the advanced watermark.
func RecordListingsEmitted(source, collection string, count int, watermark int64) {
	DefaultMetrics.ListingEventsEmitted.WithLabelValues(source, collection).Add(float64(count))
	DefaultMetrics.SyncWatermark.WithLabelValues(source + "/last_listings_" + collection).Set(float64(watermark))
}

// RecordSyncError records one sync failure.
func RecordSyncError(source string) {
	DefaultMetrics.SyncErrors.WithLabelValues(source).Inc()
}

// RecordPurchase records one purchase reconstruction outcome.
func RecordPurchase(resolved bool, market string) {
	outcome := "resolved"
	if !resolved {
		outcome = "unknown"
	}
	DefaultMetrics.PurchasesReconstructed.WithLabelValues(outcome).Inc()
	DefaultMetrics.ClassificationOutcomes.WithLabelValues(market).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
