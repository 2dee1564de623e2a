package market

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/observability"
)

// DefaultSolanartBaseURL is the Solanart API root.
const DefaultSolanartBaseURL = "https://qzlsklfacc.medianetwork.cloud"

// Solanart adapts the Solanart API. Prices arrive already denominated in SOL.
type Solanart struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// SolanartOption configures the adapter.
type SolanartOption func(*Solanart)

// WithSolanartBaseURL overrides the API root (used by tests).
func WithSolanartBaseURL(base string) SolanartOption {
	return func(s *Solanart) {
		s.baseURL = base
	}
}

// WithSolanartHTTPClient sets a custom http.Client.
func WithSolanartHTTPClient(client *http.Client) SolanartOption {
	return func(s *Solanart) {
		s.client = client
	}
}

// WithSolanartLogger sets the logger for degraded fetches.
func WithSolanartLogger(logger *log.Logger) SolanartOption {
	return func(s *Solanart) {
		s.logger = logger
	}
}

// NewSolanart creates a Solanart source adapter.
func NewSolanart(opts ...SolanartOption) *Solanart {
	s := &Solanart{
		baseURL: DefaultSolanartBaseURL,
		client:  &http.Client{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the source identifier.
func (s *Solanart) Name() string {
	return SourceSolanart
}

// FloorPrice returns the collection floor price in SOL.
func (s *Solanart) FloorPrice(ctx context.Context, collection domain.Collection) (price float64, ok bool) {
	start := time.Now()
	defer func() { observability.RecordFetch(SourceSolanart, "floor", !ok, time.Since(start)) }()

	var result struct {
		FloorPrice float64 `json:"floorPrice"`
	}

	endpoint := fmt.Sprintf("%s/get_floor_price?collection=%s", s.baseURL, url.QueryEscape(collection.String()))
	if err := getJSON(ctx, s.client, endpoint, &result); err != nil {
		s.logger.Printf("[solanart] floor price %s: %v", collection, err)
		return 0, false
	}
	if result.FloorPrice <= 0 {
		return 0, false
	}

	return result.FloorPrice, true
}

// saListing is one entry of nft_for_sale.
type saListing struct {
	TokenAdd      string   `json:"token_add"`
	Name          string   `json:"name"`
	SellerAddress string   `json:"seller_address"`
	Price         float64  `json:"price"`
	Date          flexTime `json:"date"`
}

// Listings returns NFTs currently for sale, as reported.
func (s *Solanart) Listings(ctx context.Context, collection domain.Collection) (events []domain.ListingEvent) {
	start := time.Now()
	defer func() { observability.RecordFetch(SourceSolanart, "listings", len(events) == 0, time.Since(start)) }()

	var result []saListing

	endpoint := fmt.Sprintf("%s/nft_for_sale?collection=%s", s.baseURL, url.QueryEscape(collection.String()))
	if err := getJSON(ctx, s.client, endpoint, &result); err != nil {
		s.logger.Printf("[solanart] listings %s: %v", collection, err)
		return nil
	}

	if len(result) > PageLimit {
		result = result[:PageLimit]
	}

	events = make([]domain.ListingEvent, 0, len(result))
	for _, l := range result {
		events = append(events, domain.ListingEvent{
			Collection: collection,
			Mint:       l.TokenAdd,
			Name:       l.Name,
			Seller:     l.SellerAddress,
			PriceSOL:   l.Price,
			OccurredAt: l.Date.Millis(),
			Source:     SourceSolanart,
		})
	}
	return events
}

// saSale is one entry of all_sold_per_collection_day.
type saSale struct {
	TokenAdd      string   `json:"token_add"`
	BuyerAdd      string   `json:"buyerAdd"`
	SellerAddress string   `json:"seller_address"`
	Price         float64  `json:"price"`
	Date          flexTime `json:"date"`
}

// SaleHistory returns recent sales, newest first as reported.
func (s *Solanart) SaleHistory(ctx context.Context, collection domain.Collection) (events []domain.SaleEvent) {
	start := time.Now()
	defer func() { observability.RecordFetch(SourceSolanart, "sales", len(events) == 0, time.Since(start)) }()

	var result []saSale

	endpoint := fmt.Sprintf("%s/all_sold_per_collection_day?collection=%s", s.baseURL, url.QueryEscape(collection.String()))
	if err := getJSON(ctx, s.client, endpoint, &result); err != nil {
		s.logger.Printf("[solanart] sale history %s: %v", collection, err)
		return nil
	}

	if len(result) > PageLimit {
		result = result[:PageLimit]
	}

	events = make([]domain.SaleEvent, 0, len(result))
	for _, sale := range result {
		events = append(events, domain.SaleEvent{
			Collection: collection,
			Mint:       sale.TokenAdd,
			Buyer:      sale.BuyerAdd,
			Seller:     sale.SellerAddress,
			PriceSOL:   sale.Price,
			OccurredAt: sale.Date.Millis(),
			Source:     SourceSolanart,
		})
	}
	return events
}
