// Package classify infers which marketplace produced an on-chain instruction
// by matching (program identifier, raw payload) pairs against an ordered
// rule table.
package classify

import (
	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/solana"
)

// Classifier evaluates an ordered rule table. It is stateless and safe for
// concurrent use.
type Classifier struct {
	rules []Rule
}

// New creates a Classifier with a custom rule table.
func New(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// NewDefault creates a Classifier with the default marketplace table.
func NewDefault() *Classifier {
	return New(DefaultRules())
}

// Classify maps one (program identifier, payload) pair to a marketplace
// label. Rules are evaluated top to bottom: a terminal match returns
// immediately, a non-terminal match is remembered and may be overwritten by
// a later match. No match is a normal outcome, not an error.
func (c *Classifier) Classify(programID, data string) domain.MarketLabel {
	market := domain.MarketUnknown
	for _, rule := range c.rules {
		if rule.ProgramID != programID || !rule.Match.Matches(data) {
			continue
		}
		if rule.Terminal {
			return rule.Market
		}
		market = rule.Market
	}
	return market
}

// ClassifyMessage scans a transaction message's instructions in order and
// returns the marketplace attribution for the whole transaction. The first
// terminal rule match wins; otherwise the last non-terminal match across
// all instructions is returned. Fully decoded instructions carry no payload
// and are skipped.
func (c *Classifier) ClassifyMessage(msg *solana.TransactionMessage) domain.MarketLabel {
	if msg == nil {
		return domain.MarketUnknown
	}

	market := domain.MarketUnknown
	for i := range msg.Instructions {
		programID, data, ok := msg.Instructions[i].RawPayload(msg.AccountKeys)
		if !ok {
			continue
		}
		for _, rule := range c.rules {
			if rule.ProgramID != programID || !rule.Match.Matches(data) {
				continue
			}
			if rule.Terminal {
				return rule.Market
			}
			market = rule.Market
		}
	}
	return market
}
