package domain

// WalletNFT is an NFT held by a wallet, as reported by an external
// NFT-enumeration collaborator. The core only consumes Mint and
// HoldingAccount; metadata fields pass through to callers untouched.
type WalletNFT struct {
	Mint           string
	Name           string
	Symbol         string
	URI            string
	HoldingAccount string
}

// PurchaseRecord is the reconstructed purchase of a wallet-held NFT.
// Derived per request, never persisted. A record with MarketUnknown and a
// zero price is the valid "no purchase history visible" terminal state,
// e.g. for newly received NFTs.
type PurchaseRecord struct {
	Mint           string
	HoldingAccount string
	PriceSOL       float64
	OccurredAt     int64 // Unix timestamp in milliseconds, 0 when unknown
	Market         MarketLabel
}

// UnknownPurchase returns the sentinel record for an account whose purchase
// could not be reconstructed.
func UnknownPurchase(mint, holdingAccount string) PurchaseRecord {
	return PurchaseRecord{
		Mint:           mint,
		HoldingAccount: holdingAccount,
		Market:         MarketUnknown,
	}
}

// Resolved reports whether a purchase was actually reconstructed.
func (p PurchaseRecord) Resolved() bool {
	return p.Market != MarketUnknown || p.PriceSOL > 0
}
