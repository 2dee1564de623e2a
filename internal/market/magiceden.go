package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/observability"
	"solana-nft-tracker/internal/solana"
)

// DefaultMagicEdenBaseURL is the Magic Eden RPC API root.
const DefaultMagicEdenBaseURL = "https://api-mainnet.magiceden.io/rpc"

// MagicEden adapts the Magic Eden RPC API. Floor prices and sale amounts
// arrive in lamports and are normalized to SOL.
type MagicEden struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// MagicEdenOption configures the adapter.
type MagicEdenOption func(*MagicEden)

// WithMagicEdenBaseURL overrides the API root (used by tests).
func WithMagicEdenBaseURL(base string) MagicEdenOption {
	return func(m *MagicEden) {
		m.baseURL = base
	}
}

// WithMagicEdenHTTPClient sets a custom http.Client.
func WithMagicEdenHTTPClient(client *http.Client) MagicEdenOption {
	return func(m *MagicEden) {
		m.client = client
	}
}

// WithMagicEdenLogger sets the logger for degraded fetches.
func WithMagicEdenLogger(logger *log.Logger) MagicEdenOption {
	return func(m *MagicEden) {
		m.logger = logger
	}
}

// NewMagicEden creates a Magic Eden source adapter.
func NewMagicEden(opts ...MagicEdenOption) *MagicEden {
	m := &MagicEden{
		baseURL: DefaultMagicEdenBaseURL,
		client:  &http.Client{},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns the source identifier.
func (m *MagicEden) Name() string {
	return SourceMagicEden
}

// FloorPrice returns the collection floor price in SOL.
func (m *MagicEden) FloorPrice(ctx context.Context, collection domain.Collection) (price float64, ok bool) {
	start := time.Now()
	defer func() { observability.RecordFetch(SourceMagicEden, "floor", !ok, time.Since(start)) }()

	var result struct {
		Results struct {
			FloorPrice float64 `json:"floorPrice"`
		} `json:"results"`
	}

	endpoint := fmt.Sprintf("%s/getCollectionEscrowStats/%s", m.baseURL, url.PathEscape(collection.String()))
	if err := getJSON(ctx, m.client, endpoint, &result); err != nil {
		m.logger.Printf("[magiceden] floor price %s: %v", collection, err)
		return 0, false
	}
	if result.Results.FloorPrice <= 0 {
		return 0, false
	}

	return result.Results.FloorPrice / solana.LamportsPerSOL, true
}

// meListing is one entry of getListedNFTsByQuery.
type meListing struct {
	Title       string   `json:"title"`
	MintAddress string   `json:"mintAddress"`
	Owner       string   `json:"owner"`
	Price       float64  `json:"price"` // already SOL
	CreatedAt   flexTime `json:"createdAt"`
}

// Listings returns recent listings, newest first.
func (m *MagicEden) Listings(ctx context.Context, collection domain.Collection) (events []domain.ListingEvent) {
	start := time.Now()
	defer func() { observability.RecordFetch(SourceMagicEden, "listings", len(events) == 0, time.Since(start)) }()

	query, err := json.Marshal(map[string]interface{}{
		"$match": map[string]interface{}{"collectionSymbol": collection.String()},
		"$sort":  map[string]interface{}{"createdAt": -1},
		"$skip":  0,
		"$limit": PageLimit,
	})
	if err != nil {
		return nil
	}

	var result struct {
		Results []meListing `json:"results"`
	}

	endpoint := fmt.Sprintf("%s/getListedNFTsByQuery?q=%s", m.baseURL, url.QueryEscape(string(query)))
	if err := getJSON(ctx, m.client, endpoint, &result); err != nil {
		m.logger.Printf("[magiceden] listings %s: %v", collection, err)
		return nil
	}

	events = make([]domain.ListingEvent, 0, len(result.Results))
	for _, l := range result.Results {
		events = append(events, domain.ListingEvent{
			Collection: collection,
			Mint:       l.MintAddress,
			Name:       l.Title,
			Seller:     l.Owner,
			PriceSOL:   l.Price,
			OccurredAt: l.CreatedAt.Millis(),
			Source:     SourceMagicEden,
		})
	}
	return events
}

// meActivity is one entry of getGlobalActivitiesByQuery.
type meActivity struct {
	CreatedAt         flexTime `json:"createdAt"`
	Source            string   `json:"source"`
	ParsedTransaction *struct {
		Mint          string  `json:"mint"`
		BuyerAddress  string  `json:"buyer_address"`
		SellerAddress string  `json:"seller_address"`
		TotalAmount   float64 `json:"total_amount"` // lamports
	} `json:"parsedTransaction"`
}

// SaleHistory returns recent exchange activity, newest first.
func (m *MagicEden) SaleHistory(ctx context.Context, collection domain.Collection) (events []domain.SaleEvent) {
	start := time.Now()
	defer func() { observability.RecordFetch(SourceMagicEden, "sales", len(events) == 0, time.Since(start)) }()

	query, err := json.Marshal(map[string]interface{}{
		"$match": map[string]interface{}{
			"collection_symbol": collection.String(),
			"txType":            "exchange",
		},
		"$sort":  map[string]interface{}{"blockTime": -1},
		"$skip":  0,
		"$limit": PageLimit,
	})
	if err != nil {
		return nil
	}

	var result struct {
		Results []meActivity `json:"results"`
	}

	endpoint := fmt.Sprintf("%s/getGlobalActivitiesByQuery?q=%s", m.baseURL, url.QueryEscape(string(query)))
	if err := getJSON(ctx, m.client, endpoint, &result); err != nil {
		m.logger.Printf("[magiceden] sale history %s: %v", collection, err)
		return nil
	}

	events = make([]domain.SaleEvent, 0, len(result.Results))
	for _, a := range result.Results {
		// Activities without a decoded transaction carry no sale facts
		if a.ParsedTransaction == nil {
			continue
		}
		source := a.Source
		if source == "" {
			source = SourceMagicEden
		}
		events = append(events, domain.SaleEvent{
			Collection: collection,
			Mint:       a.ParsedTransaction.Mint,
			Buyer:      a.ParsedTransaction.BuyerAddress,
			Seller:     a.ParsedTransaction.SellerAddress,
			PriceSOL:   a.ParsedTransaction.TotalAmount / solana.LamportsPerSOL,
			OccurredAt: a.CreatedAt.Millis(),
			Source:     source,
		})
	}
	return events
}

// NFTDetail is the Magic Eden view of a single NFT.
type NFTDetail struct {
	Title       string   `json:"title"`
	MintAddress string   `json:"mintAddress"`
	Image       string   `json:"img"`
	Price       float64  `json:"price"`
	CreatedAt   flexTime `json:"createdAt"`
}

// NFTByMint fetches details of one NFT for enriching listing events.
// Returns nil when the lookup fails or the mint is unknown.
func (m *MagicEden) NFTByMint(ctx context.Context, mint string) *NFTDetail {
	var result struct {
		Results *NFTDetail `json:"results"`
	}

	endpoint := fmt.Sprintf("%s/getNFTByMintAddress/%s", m.baseURL, url.PathEscape(mint))
	if err := getJSON(ctx, m.client, endpoint, &result); err != nil {
		m.logger.Printf("[magiceden] nft %s: %v", mint, err)
		return nil
	}
	return result.Results
}
