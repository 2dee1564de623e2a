package market

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"solana-nft-tracker/internal/observability"
)

func newMagicEdenServer(t *testing.T, handler http.HandlerFunc) (*MagicEden, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m := NewMagicEden(
		WithMagicEdenBaseURL(server.URL),
		WithMagicEdenLogger(log.New(io.Discard, "", 0)),
	)
	return m, server
}

func TestMagicEden_FloorPrice(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getCollectionEscrowStats/degods" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":{"floorPrice":12500000000}}`))
	})

	price, ok := m.FloorPrice(context.Background(), "degods")
	if !ok {
		t.Fatal("Expected floor price")
	}
	// 12.5 billion lamports is 12.5 SOL
	if price != 12.5 {
		t.Errorf("Price mismatch: got %f, want 12.5", price)
	}
}

func TestMagicEden_FloorPriceZeroDegrades(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"floorPrice":0}}`))
	})

	if _, ok := m.FloorPrice(context.Background(), "degods"); ok {
		t.Error("Zero floor should not count as data")
	}
}

func TestMagicEden_FloorPriceServerErrorDegrades(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, ok := m.FloorPrice(context.Background(), "degods"); ok {
		t.Error("Server error should degrade to no data")
	}
}

func TestMagicEden_Listings(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getListedNFTsByQuery" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("q") == "" {
			t.Error("Missing query parameter")
		}
		w.Write([]byte(`{"results":[
			{"title":"DeGod #1","mintAddress":"Mint1","owner":"Seller1","price":15.5,"createdAt":1700000000000},
			{"title":"DeGod #2","mintAddress":"Mint2","owner":"Seller2","price":16.0,"createdAt":"2023-11-14T22:13:20Z"}
		]}`))
	})

	listings := m.Listings(context.Background(), "degods")
	if len(listings) != 2 {
		t.Fatalf("Expected 2 listings, got %d", len(listings))
	}

	first := listings[0]
	if first.Mint != "Mint1" || first.Name != "DeGod #1" || first.Seller != "Seller1" {
		t.Errorf("Listing mismatch: %+v", first)
	}
	if first.PriceSOL != 15.5 {
		t.Errorf("Price mismatch: got %f", first.PriceSOL)
	}
	if first.OccurredAt != 1700000000000 {
		t.Errorf("OccurredAt mismatch: got %d", first.OccurredAt)
	}
	// Date-string timestamps normalize to the same clock
	if listings[1].OccurredAt != 1700000000000 {
		t.Errorf("String timestamp mismatch: got %d", listings[1].OccurredAt)
	}
	if first.Source != SourceMagicEden {
		t.Errorf("Source mismatch: got %s", first.Source)
	}
}

func TestMagicEden_SaleHistory(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"createdAt":1700000000000,"source":"magiceden_v2","parsedTransaction":{
				"mint":"Mint1","buyer_address":"Buyer1","seller_address":"Seller1","total_amount":2000000000}},
			{"createdAt":1699999000000,"parsedTransaction":null}
		]}`))
	})

	sales := m.SaleHistory(context.Background(), "degods")
	// The activity without a decoded transaction is skipped
	if len(sales) != 1 {
		t.Fatalf("Expected 1 sale, got %d", len(sales))
	}

	sale := sales[0]
	if sale.Mint != "Mint1" || sale.Buyer != "Buyer1" || sale.Seller != "Seller1" {
		t.Errorf("Sale mismatch: %+v", sale)
	}
	if sale.PriceSOL != 2.0 {
		t.Errorf("Price mismatch: got %f, want 2.0 (lamports normalized)", sale.PriceSOL)
	}
	if sale.Source != "magiceden_v2" {
		t.Errorf("Reported source should pass through, got %s", sale.Source)
	}
}

func TestMagicEden_SaleHistoryNetworkErrorDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	m := NewMagicEden(
		WithMagicEdenBaseURL(server.URL),
		WithMagicEdenLogger(log.New(io.Discard, "", 0)),
	)

	if sales := m.SaleHistory(context.Background(), "degods"); sales != nil {
		t.Errorf("Network failure should degrade to nil, got %v", sales)
	}
}

func TestMagicEden_NFTByMint(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getNFTByMintAddress/Mint1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"results":{"title":"DeGod #1","mintAddress":"Mint1","price":15.5}}`))
	})

	detail := m.NFTByMint(context.Background(), "Mint1")
	if detail == nil {
		t.Fatal("Expected NFT detail")
	}
	if detail.Title != "DeGod #1" {
		t.Errorf("Title mismatch: %+v", detail)
	}
}

func TestMagicEden_NFTByMintUnknown(t *testing.T) {
	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":null}`))
	})

	if detail := m.NFTByMint(context.Background(), "Nope"); detail != nil {
		t.Errorf("Unknown mint should return nil, got %+v", detail)
	}
}

func TestMagicEden_FetchOutcomesRecorded(t *testing.T) {
	total := observability.DefaultMetrics.FetchesTotal.WithLabelValues(SourceMagicEden, "floor")
	empty := observability.DefaultMetrics.FetchEmptyResults.WithLabelValues(SourceMagicEden, "floor")
	totalBefore := testutil.ToFloat64(total)
	emptyBefore := testutil.ToFloat64(empty)

	m, _ := newMagicEdenServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	m.FloorPrice(context.Background(), "degods")

	if got := testutil.ToFloat64(total) - totalBefore; got != 1 {
		t.Errorf("Expected the fetch to be counted, got %v", got)
	}
	if got := testutil.ToFloat64(empty) - emptyBefore; got != 1 {
		t.Errorf("Expected the degraded fetch to be counted as empty, got %v", got)
	}
}
