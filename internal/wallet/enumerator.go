package wallet

import (
	"context"
	"fmt"
	"log"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/solana"
)

// MetadataFunc looks up display metadata for a mint. ok is false when the
// mint is unknown to the metadata provider.
type MetadataFunc func(ctx context.Context, mint string) (name string, ok bool)

// Enumerator lists the NFTs a wallet currently holds by reading its SPL
// token accounts.
type Enumerator struct {
	rpc      solana.RPCClient
	metadata MetadataFunc
	logger   *log.Logger
}

// EnumeratorOptions configures an Enumerator.
type EnumeratorOptions struct {
	// Metadata enriches NFT names when set; enumeration works without it.
	Metadata MetadataFunc

	// Logger receives enumeration diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

// NewEnumerator creates an Enumerator over the given RPC client.
func NewEnumerator(rpc solana.RPCClient, opts EnumeratorOptions) *Enumerator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Enumerator{
		rpc:      rpc,
		metadata: opts.Metadata,
		logger:   logger,
	}
}

// WalletNFTs returns the NFTs held by a wallet. Token accounts holding
// exactly one unit are treated as NFTs; fungible balances are skipped.
func (e *Enumerator) WalletNFTs(ctx context.Context, owner string) ([]domain.WalletNFT, error) {
	if err := solana.ValidateWalletAddress(owner); err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}

	accounts, err := e.rpc.GetParsedTokenAccountsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("token accounts for %s: %w", owner, err)
	}

	var nfts []domain.WalletNFT
	for _, acc := range accounts {
		if acc.Amount != "1" {
			continue
		}
		nft := domain.WalletNFT{
			Mint:           acc.Mint,
			HoldingAccount: acc.Pubkey,
		}
		if e.metadata != nil {
			if name, ok := e.metadata(ctx, acc.Mint); ok {
				nft.Name = name
			}
		}
		nfts = append(nfts, nft)
	}
	return nfts, nil
}

// Correlate fills in the holding account of externally sourced NFTs by
// matching mints against the wallet's token accounts. NFTs whose mint is not
// held by the wallet keep an empty HoldingAccount. Input order is preserved.
func (e *Enumerator) Correlate(ctx context.Context, owner string, nfts []domain.WalletNFT) ([]domain.WalletNFT, error) {
	if err := solana.ValidateWalletAddress(owner); err != nil {
		return nil, fmt.Errorf("wallet address: %w", err)
	}

	accounts, err := e.rpc.GetParsedTokenAccountsByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("token accounts for %s: %w", owner, err)
	}

	byMint := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		if acc.Amount == "1" {
			byMint[acc.Mint] = acc.Pubkey
		}
	}

	out := make([]domain.WalletNFT, len(nfts))
	for i, nft := range nfts {
		out[i] = nft
		if account, found := byMint[nft.Mint]; found {
			out[i].HoldingAccount = account
		} else {
			e.logger.Printf("[wallet] mint %s not held by %s", nft.Mint, owner)
		}
	}
	return out, nil
}
