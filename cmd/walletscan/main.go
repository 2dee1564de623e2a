// Package main provides a one-shot wallet scanner: it enumerates the NFTs a
// wallet holds and reconstructs where and for how much each one was bought,
// printing the result as JSON.
//
// Usage:
//
//	walletscan --wallet <address> [--rpc-endpoint <url>]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/market"
	"solana-nft-tracker/internal/solana"
	"solana-nft-tracker/internal/wallet"
)

// ScanResult is the JSON document written to stdout.
type ScanResult struct {
	Wallet    string            `json:"wallet"`
	ScannedAt time.Time         `json:"scanned_at"`
	Holdings  int               `json:"holdings"`
	Resolved  int               `json:"resolved"`
	Purchases []PurchaseSummary `json:"purchases"`
}

// PurchaseSummary flattens a purchase record for output.
type PurchaseSummary struct {
	Mint       string  `json:"mint"`
	Name       string  `json:"name,omitempty"`
	PriceSOL   float64 `json:"price_sol,omitempty"`
	Market     string  `json:"market"`
	OccurredAt string  `json:"occurred_at,omitempty"`
}

func main() {
	loadEnvFile()

	rpcEndpoint := flag.String("rpc-endpoint", envOr("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"), "Solana JSON-RPC endpoint")
	walletAddr := flag.String("wallet", "", "Wallet address to scan")
	sigLimit := flag.Int("signature-limit", wallet.DefaultSignatureLimit, "Per-account signature history depth")
	withNames := flag.Bool("names", true, "Enrich NFTs with marketplace metadata")
	verbose := flag.Bool("verbose", false, "Log progress to stderr")

	flag.Parse()

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "[walletscan] ", log.LstdFlags)
	}

	if *walletAddr == "" {
		log.Fatal("--wallet is required")
	}

	ctx := context.Background()

	rpc := solana.NewHTTPClient(*rpcEndpoint)

	var metadata wallet.MetadataFunc
	if *withNames {
		me := market.NewMagicEden(market.WithMagicEdenLogger(logger))
		metadata = func(ctx context.Context, mint string) (string, bool) {
			detail := me.NFTByMint(ctx, mint)
			if detail == nil || detail.Title == "" {
				return "", false
			}
			return detail.Title, true
		}
	}

	enumerator := wallet.NewEnumerator(rpc, wallet.EnumeratorOptions{
		Metadata: metadata,
		Logger:   logger,
	})
	reconstructor := wallet.New(rpc, wallet.Options{
		SignatureLimit: *sigLimit,
		Logger:         logger,
	})

	nfts, err := enumerator.WalletNFTs(ctx, *walletAddr)
	if err != nil {
		log.Fatalf("Enumerate wallet: %v", err)
	}
	logger.Printf("Wallet holds %d NFTs", len(nfts))

	records, err := reconstructor.Reconstruct(ctx, *walletAddr, nfts)
	if err != nil {
		log.Fatalf("Reconstruct purchases: %v", err)
	}

	result := ScanResult{
		Wallet:    *walletAddr,
		ScannedAt: time.Now().UTC(),
		Holdings:  len(nfts),
		Purchases: make([]PurchaseSummary, 0, len(records)),
	}

	names := make(map[string]string, len(nfts))
	for _, nft := range nfts {
		names[nft.Mint] = nft.Name
	}

	for _, record := range records {
		if record.Resolved() {
			result.Resolved++
		}
		result.Purchases = append(result.Purchases, summarize(record, names[record.Mint]))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Fatalf("Encode result: %v", err)
	}
}

func summarize(record domain.PurchaseRecord, name string) PurchaseSummary {
	s := PurchaseSummary{
		Mint:     record.Mint,
		Name:     name,
		PriceSOL: record.PriceSOL,
		Market:   record.Market.String(),
	}
	if record.OccurredAt > 0 {
		s.OccurredAt = time.UnixMilli(record.OccurredAt).UTC().Format(time.RFC3339)
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
