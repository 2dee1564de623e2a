package clickhouse

import (
	"context"
	"fmt"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/storage"
)

// SaleArchive implements storage.SaleArchive using ClickHouse. Duplicate
// rows collapse via ReplacingMergeTree ordered by
// (collection, occurred_at_ms, mint, source), so re-archiving already seen
// events stays cheap.
type SaleArchive struct {
	conn *Conn
}

// NewSaleArchive creates a new ClickHouse sale archive.
func NewSaleArchive(conn *Conn) *SaleArchive {
	return &SaleArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.SaleArchive = (*SaleArchive)(nil)

// Insert archives a batch of sale events.
func (a *SaleArchive) Insert(ctx context.Context, events []domain.SaleEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO sale_events (
			collection, mint, buyer, seller, price_sol, occurred_at_ms, source
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.Collection.String(), e.Mint, e.Buyer, e.Seller,
			e.PriceSOL, uint64(e.OccurredAt), e.Source,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByCollection retrieves archived events within [from, to] milliseconds
// (inclusive), ordered by occurrence time ASC.
func (a *SaleArchive) GetByCollection(ctx context.Context, collection domain.Collection, from, to int64) ([]domain.SaleEvent, error) {
	query := `
		SELECT collection, mint, buyer, seller, price_sol, occurred_at_ms, source
		FROM sale_events FINAL
		WHERE collection = ? AND occurred_at_ms >= ? AND occurred_at_ms <= ?
		ORDER BY occurred_at_ms ASC
	`

	rows, err := a.conn.Query(ctx, query, collection.String(), uint64(from), uint64(to))
	if err != nil {
		return nil, fmt.Errorf("query by collection: %w", err)
	}
	defer rows.Close()

	return scanSaleEvents(rows)
}

// chRows abstracts driver.Rows for scanning helpers.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSaleEvents scans multiple rows.
func scanSaleEvents(rows chRows) ([]domain.SaleEvent, error) {
	var events []domain.SaleEvent

	for rows.Next() {
		var e domain.SaleEvent
		var collection string
		var occurredAt uint64

		err := rows.Scan(
			&collection, &e.Mint, &e.Buyer, &e.Seller,
			&e.PriceSOL, &occurredAt, &e.Source,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sale event row: %w", err)
		}

		e.Collection = domain.Collection(collection)
		e.OccurredAt = int64(occurredAt)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sale event rows: %w", err)
	}

	return events, nil
}
