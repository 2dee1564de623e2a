package classify

import (
	"math"
	"strconv"
	"strings"

	"solana-nft-tracker/internal/domain"
)

// Known marketplace program IDs (mainnet).
const (
	SolanartProgramID              = "CJsLwbP1iu5DuUikHEJnLfANgKy6stB2uFgvBBHoyxwz"
	MagicEdenProgramID             = "MEisE1HzehtrDpAAT8PnLHjpSSkRYakotTuJRPjTpo8"
	DigitalEyesProgramID           = "A7p8451ktDCHq5yYaHczeLMYsjRsAkzc3hCXcSrwYtU1"
	DigitalEyesDirectSellProgramID = "7t8zVJtPCFAqog1DcnB6Ku1AVKtWfHkCiPi1cAvcJyVF"
	ExchangeArtProgramID           = "AmK5g2XcyptVLCFESBCJqoSfwV3znGoVYQnqEnaAZKWn"
	SolseaProgramID                = "617jbWo616ggkDxvW1Le8pV38XLbVSyWY8ae6QUmGBAU"
)

// Matcher tests an instruction's base-58 payload against a rule pattern.
type Matcher interface {
	Matches(data string) bool
}

// PrefixMatcher matches payloads starting with a literal base-58 prefix.
type PrefixMatcher string

// Matches reports whether data starts with the prefix.
func (p PrefixMatcher) Matches(data string) bool {
	return strings.HasPrefix(data, string(p))
}

// HexThresholdMatcher matches payloads whose leading hex digits parse to a
// value strictly greater than the threshold. Payloads with no leading hex
// digits never match; prefixes too long for uint64 count as greater.
type HexThresholdMatcher uint64

// Matches reports whether the payload's leading hex value exceeds the threshold.
func (t HexThresholdMatcher) Matches(data string) bool {
	v, ok := leadingHexValue(data)
	return ok && v > uint64(t)
}

func leadingHexValue(s string) (uint64, bool) {
	n := 0
	for n < len(s) && isHexDigit(s[n]) {
		n++
	}
	if n == 0 {
		return 0, false
	}
	if n > 16 {
		return math.MaxUint64, true
	}
	v, err := strconv.ParseUint(s[:n], 16, 64)
	if err != nil {
		return math.MaxUint64, true
	}
	return v, true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// Rule maps a (program, payload pattern) pair to a marketplace label.
// Rules are evaluated in order. A terminal rule stops evaluation on match;
// a non-terminal rule records its label and keeps scanning, so a later
// match may overwrite it.
type Rule struct {
	ProgramID string
	Match     Matcher
	Market    domain.MarketLabel
	Terminal  bool
}

// DefaultRules returns the marketplace signature table. The terminal flags
// reproduce the observed settlement behavior of each program: direct-sell,
// ExchangeArt and Solsea instructions can be followed by instructions that
// refine the attribution, so they do not stop the scan.
func DefaultRules() []Rule {
	return []Rule{
		{ProgramID: SolanartProgramID, Match: PrefixMatcher("54"), Market: domain.MarketSolanart, Terminal: true},
		{ProgramID: MagicEdenProgramID, Match: PrefixMatcher("3UjL"), Market: domain.MarketMagicEden, Terminal: true},
		{ProgramID: DigitalEyesProgramID, Match: PrefixMatcher("jz"), Market: domain.MarketDigitalEyes, Terminal: true},
		{ProgramID: DigitalEyesDirectSellProgramID, Match: PrefixMatcher("xc"), Market: domain.MarketDigitalEyes, Terminal: false},
		{ProgramID: ExchangeArtProgramID, Match: PrefixMatcher("jzD"), Market: domain.MarketExchangeArt, Terminal: false},
		{ProgramID: SolseaProgramID, Match: HexThresholdMatcher(234), Market: domain.MarketSolsea, Terminal: false},
	}
}
