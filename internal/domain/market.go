package domain

// MarketLabel identifies the marketplace a sale or purchase was matched to.
type MarketLabel string

const (
	MarketMagicEden   MarketLabel = "magiceden"
	MarketSolanart    MarketLabel = "solanart"
	MarketDigitalEyes MarketLabel = "digitaleyes"
	MarketExchangeArt MarketLabel = "exchange"
	MarketSolsea      MarketLabel = "solsea"

	// MarketUnknown is a legitimate terminal classification, not an error.
	MarketUnknown MarketLabel = "unknown"
)

// String returns the string representation of MarketLabel.
func (m MarketLabel) String() string {
	return string(m)
}

// IsValid checks if the label is a known value.
func (m MarketLabel) IsValid() bool {
	switch m {
	case MarketMagicEden, MarketSolanart, MarketDigitalEyes, MarketExchangeArt, MarketSolsea, MarketUnknown:
		return true
	default:
		return false
	}
}
