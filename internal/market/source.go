// Package market normalizes marketplace REST APIs into a common source
// shape. Adapters isolate per-marketplace failure: any transport or parse
// error degrades to an empty result, never an error to the caller, so an
// empty result means "no data this cycle", not "confirmed zero".
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"solana-nft-tracker/internal/domain"
)

// Source names.
const (
	SourceMagicEden = "magiceden"
	SourceSolanart  = "solanart"
)

// PageLimit caps listing and sale-history queries.
const PageLimit = 10

// Source is one marketplace's API surface normalized to a common shape.
// Prices are always in SOL, regardless of the source's native unit.
type Source interface {
	// Name returns the source identifier used in checkpoint keys and events.
	Name() string

	// FloorPrice returns the collection floor price in SOL.
	// ok is false when the source has no data this cycle.
	FloorPrice(ctx context.Context, collection domain.Collection) (price float64, ok bool)

	// Listings returns recent listings, newest first as reported.
	Listings(ctx context.Context, collection domain.Collection) []domain.ListingEvent

	// SaleHistory returns recent sales, newest first as reported.
	SaleHistory(ctx context.Context, collection domain.Collection) []domain.SaleEvent
}

// getJSON fetches a URL and decodes the response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}

// flexTime decodes marketplace timestamps, which arrive either as Unix
// milliseconds or as date strings, into Unix milliseconds.
type flexTime int64

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*t = 0
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				*t = flexTime(parsed.UnixMilli())
				return nil
			}
		}
		// Unparseable dates degrade to zero rather than failing the payload
		*t = 0
		return nil
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*t = 0
		return nil
	}
	*t = flexTime(n)
	return nil
}

// Millis returns the timestamp as Unix milliseconds.
func (t flexTime) Millis() int64 {
	return int64(t)
}
