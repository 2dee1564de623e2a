package domain

// Collection is a marketplace-namespaced collection identifier.
// Supplied by configuration; immutable.
type Collection string

// String returns the string representation of Collection.
func (c Collection) String() string {
	return string(c)
}

// FloorPriceSnapshot is the floor price of a collection as observed from one
// source during a poll cycle. Superseded by the next poll; never persisted.
type FloorPriceSnapshot struct {
	Collection Collection
	Source     string
	PriceSOL   float64
	ObservedAt int64 // Unix timestamp in milliseconds
}

// ListingEvent represents an NFT listed for sale on a marketplace.
// Immutable once constructed. OccurredAt is the ordering key.
type ListingEvent struct {
	Collection Collection
	Mint       string
	Name       string
	Seller     string
	PriceSOL   float64
	OccurredAt int64 // Unix timestamp in milliseconds
	Source     string
}

// SaleEvent represents a completed NFT sale on a marketplace.
// Immutable once constructed. OccurredAt is the ordering key.
type SaleEvent struct {
	Collection Collection
	Mint       string
	Buyer      string
	Seller     string
	PriceSOL   float64
	OccurredAt int64 // Unix timestamp in milliseconds
	Source     string
}
