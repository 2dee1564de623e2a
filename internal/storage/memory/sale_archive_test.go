package memory

import (
	"context"
	"testing"

	"solana-nft-tracker/internal/domain"
)

func saleAt(collection domain.Collection, mint string, occurredAt int64) domain.SaleEvent {
	return domain.SaleEvent{
		Collection: collection,
		Mint:       mint,
		Buyer:      "BuyerAddr",
		Seller:     "SellerAddr",
		PriceSOL:   1.5,
		OccurredAt: occurredAt,
		Source:     "magiceden",
	}
}

func TestSaleArchive_InsertAndGet(t *testing.T) {
	archive := NewSaleArchive()
	ctx := context.Background()

	events := []domain.SaleEvent{
		saleAt("degods", "Mint1", 1000),
		saleAt("degods", "Mint2", 2000),
	}

	if err := archive.Insert(ctx, events); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := archive.GetByCollection(ctx, "degods", 0, 3000)
	if err != nil {
		t.Fatalf("GetByCollection failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Mint != "Mint1" || got[1].Mint != "Mint2" {
		t.Errorf("Events out of order: got %s, %s", got[0].Mint, got[1].Mint)
	}
}

func TestSaleArchive_GetByTimeRange(t *testing.T) {
	archive := NewSaleArchive()
	ctx := context.Background()

	events := []domain.SaleEvent{
		saleAt("degods", "Mint1", 1000),
		saleAt("degods", "Mint2", 2000),
		saleAt("degods", "Mint3", 3000),
	}
	if err := archive.Insert(ctx, events); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Range bounds are inclusive
	got, err := archive.GetByCollection(ctx, "degods", 1000, 2000)
	if err != nil {
		t.Fatalf("GetByCollection failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events in range, got %d", len(got))
	}
}

func TestSaleArchive_GetSortsAscending(t *testing.T) {
	archive := NewSaleArchive()
	ctx := context.Background()

	// Insert out of order
	events := []domain.SaleEvent{
		saleAt("degods", "Mint3", 3000),
		saleAt("degods", "Mint1", 1000),
		saleAt("degods", "Mint2", 2000),
	}
	if err := archive.Insert(ctx, events); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := archive.GetByCollection(ctx, "degods", 0, 5000)
	if err != nil {
		t.Fatalf("GetByCollection failed: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].OccurredAt < got[i-1].OccurredAt {
			t.Errorf("Events not ascending at index %d: %d < %d", i, got[i].OccurredAt, got[i-1].OccurredAt)
		}
	}
}

func TestSaleArchive_CollectionsIndependent(t *testing.T) {
	archive := NewSaleArchive()
	ctx := context.Background()

	if err := archive.Insert(ctx, []domain.SaleEvent{saleAt("degods", "Mint1", 1000)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := archive.Insert(ctx, []domain.SaleEvent{saleAt("okay_bears", "Mint2", 1000)}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := archive.GetByCollection(ctx, "degods", 0, 5000)
	if err != nil {
		t.Fatalf("GetByCollection failed: %v", err)
	}
	if len(got) != 1 || got[0].Mint != "Mint1" {
		t.Errorf("Expected only degods events, got %v", got)
	}
}

func TestSaleArchive_InsertEmpty(t *testing.T) {
	archive := NewSaleArchive()
	ctx := context.Background()

	if err := archive.Insert(ctx, nil); err != nil {
		t.Fatalf("Insert of empty batch failed: %v", err)
	}
}
