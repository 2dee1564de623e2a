// Package wallet reconstructs how a wallet acquired the NFTs it holds.
// Purchase facts are not stored anywhere on chain; they are inferred from
// the holding account's transaction history, so every answer is best-effort
// and degrades to an explicit unknown rather than an error.
package wallet

import (
	"context"
	"fmt"
	"log"

	"solana-nft-tracker/internal/classify"
	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/observability"
	"solana-nft-tracker/internal/solana"
)

// Reconstruction limits.
const (
	// DefaultSignatureLimit caps how far back in a holding account's history
	// the reconstructor looks.
	DefaultSignatureLimit = 10

	// DefaultDustThresholdSOL separates purchases from transfers and
	// rent-only transactions. Spends below it are not purchases.
	DefaultDustThresholdSOL = 0.005
)

// Reconstructor derives purchase records for wallet-held NFTs.
type Reconstructor struct {
	rpc        solana.RPCClient
	classifier *classify.Classifier
	logger     *log.Logger
	sigLimit   int
	dustSOL    float64
}

// Options configures a Reconstructor.
type Options struct {
	// Classifier attributes transactions to marketplaces.
	// Defaults to the default rule table.
	Classifier *classify.Classifier

	// SignatureLimit caps per-account history depth. Defaults to
	// DefaultSignatureLimit.
	SignatureLimit int

	// DustThresholdSOL is the minimum spend counted as a purchase.
	// Defaults to DefaultDustThresholdSOL.
	DustThresholdSOL float64

	// Logger receives reconstruction diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

// New creates a Reconstructor over the given RPC client.
func New(rpc solana.RPCClient, opts Options) *Reconstructor {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = classify.NewDefault()
	}
	sigLimit := opts.SignatureLimit
	if sigLimit <= 0 {
		sigLimit = DefaultSignatureLimit
	}
	dust := opts.DustThresholdSOL
	if dust <= 0 {
		dust = DefaultDustThresholdSOL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Reconstructor{
		rpc:        rpc,
		classifier: classifier,
		logger:     logger,
		sigLimit:   sigLimit,
		dustSOL:    dust,
	}
}

// Reconstruct derives one purchase record per input NFT, in input order.
// NFTs whose history is unavailable or inconclusive yield the unknown
// sentinel record; per-NFT RPC failures are logged, not returned.
func (r *Reconstructor) Reconstruct(ctx context.Context, walletAddress string, nfts []domain.WalletNFT) ([]domain.PurchaseRecord, error) {
	if err := solana.ValidateWalletAddress(walletAddress); err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}

	records := make([]domain.PurchaseRecord, 0, len(nfts))
	for _, nft := range nfts {
		record := r.reconstructOne(ctx, walletAddress, nft)
		observability.RecordPurchase(record.Resolved(), record.Market.String())
		records = append(records, record)
	}
	return records, nil
}

// reconstructOne scans a holding account's recent history for the wallet's
// purchase transaction.
func (r *Reconstructor) reconstructOne(ctx context.Context, walletAddress string, nft domain.WalletNFT) domain.PurchaseRecord {
	if nft.HoldingAccount == "" {
		return domain.UnknownPurchase(nft.Mint, nft.HoldingAccount)
	}

	infos, err := r.rpc.GetSignaturesForAddress(ctx, nft.HoldingAccount, &solana.SignaturesOpts{
		Limit: r.sigLimit,
	})
	if err != nil {
		r.logger.Printf("[wallet] signatures for %s: %v", nft.HoldingAccount, err)
		return domain.UnknownPurchase(nft.Mint, nft.HoldingAccount)
	}

	// Failed transactions cannot be purchases
	var signatures []string
	for _, info := range infos {
		if info.Err == nil {
			signatures = append(signatures, info.Signature)
		}
	}
	if len(signatures) == 0 {
		return domain.UnknownPurchase(nft.Mint, nft.HoldingAccount)
	}

	txs, err := r.rpc.GetParsedTransactions(ctx, signatures)
	if err != nil {
		r.logger.Printf("[wallet] transactions for %s: %v", nft.HoldingAccount, err)
		return domain.UnknownPurchase(nft.Mint, nft.HoldingAccount)
	}

	// Newest first: the wallet's most recent qualifying spend is the
	// purchase that produced the current holding.
	for _, tx := range txs {
		if tx == nil || tx.Meta == nil || tx.Message == nil {
			continue
		}
		if tx.Message.Signer() != walletAddress {
			continue
		}
		if len(tx.Meta.PreBalances) == 0 || len(tx.Meta.PostBalances) == 0 {
			continue
		}

		// Fee payer balance delta minus the base fee is the price paid
		spentLamports := int64(tx.Meta.PreBalances[0]) - int64(tx.Meta.PostBalances[0]) - solana.TransactionFeeLamports
		if spentLamports <= 0 {
			continue
		}
		spentSOL := float64(spentLamports) / solana.LamportsPerSOL
		if spentSOL < r.dustSOL {
			continue
		}

		return domain.PurchaseRecord{
			Mint:           nft.Mint,
			HoldingAccount: nft.HoldingAccount,
			PriceSOL:       spentSOL,
			OccurredAt:     tx.BlockTime * 1000,
			Market:         r.classifier.ClassifyMessage(tx.Message),
		}
	}

	return domain.UnknownPurchase(nft.Mint, nft.HoldingAccount)
}
