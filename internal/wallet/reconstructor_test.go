package wallet

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"solana-nft-tracker/internal/classify"
	"solana-nft-tracker/internal/domain"
	"solana-nft-tracker/internal/observability"
	"solana-nft-tracker/internal/solana"
)

// testWallet is the system program address: base58 for 32 zero bytes, which
// decodes to a valid curve point, so it passes wallet validation.
const testWallet = "11111111111111111111111111111111"

// fakeRPC serves canned RPC responses keyed by address and signature.
type fakeRPC struct {
	signatures map[string][]solana.SignatureInfo
	txs        map[string]*solana.ParsedTransaction
	accounts   []solana.TokenAccount

	sigErr error
	txErr  error
	accErr error
}

func (f *fakeRPC) GetSignaturesForAddress(ctx context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if f.sigErr != nil {
		return nil, f.sigErr
	}
	sigs := f.signatures[address]
	if opts != nil && opts.Limit > 0 && len(sigs) > opts.Limit {
		sigs = sigs[:opts.Limit]
	}
	return sigs, nil
}

func (f *fakeRPC) GetParsedTransactions(ctx context.Context, signatures []string) ([]*solana.ParsedTransaction, error) {
	if f.txErr != nil {
		return nil, f.txErr
	}
	out := make([]*solana.ParsedTransaction, len(signatures))
	for i, sig := range signatures {
		out[i] = f.txs[sig]
	}
	return out, nil
}

func (f *fakeRPC) GetParsedTokenAccountsByOwner(ctx context.Context, owner string) ([]solana.TokenAccount, error) {
	if f.accErr != nil {
		return nil, f.accErr
	}
	return f.accounts, nil
}

// purchaseTx builds a successful transaction where the wallet paid
// spentLamports plus the base fee.
func purchaseTx(signer string, spentLamports int64, blockTime int64, instructions []solana.Instruction) *solana.ParsedTransaction {
	pre := uint64(spentLamports + solana.TransactionFeeLamports + 1_000_000_000)
	post := uint64(1_000_000_000)
	return &solana.ParsedTransaction{
		BlockTime: blockTime,
		Meta: &solana.TransactionMeta{
			PreBalances:  []uint64{pre},
			PostBalances: []uint64{post},
		},
		Message: &solana.TransactionMessage{
			AccountKeys:  []solana.AccountKey{{Pubkey: signer, Signer: true}},
			Instructions: instructions,
		},
	}
}

func newTestReconstructor(rpc solana.RPCClient) *Reconstructor {
	return New(rpc, Options{
		Logger: log.New(io.Discard, "", 0),
	})
}

func TestReconstruct_InvalidWalletAddress(t *testing.T) {
	r := newTestReconstructor(&fakeRPC{})

	_, err := r.Reconstruct(context.Background(), "not-a-wallet", nil)
	if err == nil {
		t.Fatal("Expected error for invalid wallet address")
	}
}

func TestReconstruct_FindsPurchase(t *testing.T) {
	meInstruction := solana.Instruction{
		ProgramID: classify.MagicEdenProgramID,
		Data:      "3UjLyJVuk8XvC2g7", // Magic Eden payload prefix
	}

	rpc := &fakeRPC{
		signatures: map[string][]solana.SignatureInfo{
			"HoldAcc1": {{Signature: "sig1"}},
		},
		txs: map[string]*solana.ParsedTransaction{
			"sig1": purchaseTx(testWallet, 1_000_000_000, 1700000000, []solana.Instruction{meInstruction}),
		},
	}

	r := newTestReconstructor(rpc)
	records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if rec.PriceSOL != 1.0 {
		t.Errorf("Price mismatch: got %f, want 1.0", rec.PriceSOL)
	}
	if rec.Market != domain.MarketMagicEden {
		t.Errorf("Market mismatch: got %s, want %s", rec.Market, domain.MarketMagicEden)
	}
	if rec.OccurredAt != 1700000000000 {
		t.Errorf("OccurredAt mismatch: got %d", rec.OccurredAt)
	}
}

func TestReconstruct_OneRecordPerNFT(t *testing.T) {
	rpc := &fakeRPC{
		signatures: map[string][]solana.SignatureInfo{
			"HoldAcc1": {{Signature: "sig1"}},
			// HoldAcc2 has no history at all
		},
		txs: map[string]*solana.ParsedTransaction{
			"sig1": purchaseTx(testWallet, 500_000_000, 1700000000, nil),
		},
	}

	r := newTestReconstructor(rpc)
	records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
		{Mint: "Mint2", HoldingAccount: "HoldAcc2"},
		{Mint: "Mint3", HoldingAccount: ""},
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if !records[0].Resolved() {
		t.Error("Mint1 should be resolved")
	}
	if records[1].Resolved() || records[1].Market != domain.MarketUnknown {
		t.Error("Mint2 without history should be the unknown sentinel")
	}
	if records[2].Resolved() {
		t.Error("Mint3 without holding account should be the unknown sentinel")
	}
	if records[0].Mint != "Mint1" || records[1].Mint != "Mint2" || records[2].Mint != "Mint3" {
		t.Error("Input order not preserved")
	}
}

func TestReconstruct_SkipsErroredSignatures(t *testing.T) {
	rpc := &fakeRPC{
		signatures: map[string][]solana.SignatureInfo{
			"HoldAcc1": {
				{Signature: "failedSig", Err: map[string]interface{}{"InstructionError": []interface{}{}}},
				{Signature: "goodSig"},
			},
		},
		txs: map[string]*solana.ParsedTransaction{
			// Only the good signature maps to a transaction
			"goodSig": purchaseTx(testWallet, 2_000_000_000, 1700000000, nil),
		},
	}

	r := newTestReconstructor(rpc)
	records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if records[0].PriceSOL != 2.0 {
		t.Errorf("Price mismatch: got %f, want 2.0", records[0].PriceSOL)
	}
}

func TestReconstruct_SkipsOtherSigners(t *testing.T) {
	rpc := &fakeRPC{
		signatures: map[string][]solana.SignatureInfo{
			"HoldAcc1": {{Signature: "sig1"}},
		},
		txs: map[string]*solana.ParsedTransaction{
			// A seller-signed transaction touched the account, not a purchase
			"sig1": purchaseTx("SomeOtherSigner", 3_000_000_000, 1700000000, nil),
		},
	}

	r := newTestReconstructor(rpc)
	records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if records[0].Resolved() {
		t.Error("Transaction signed by another wallet should not resolve")
	}
}

func TestReconstruct_DustThreshold(t *testing.T) {
	cases := []struct {
		name     string
		lamports int64
		resolved bool
	}{
		{"just below threshold", 4_999_999, false},
		{"at threshold", 5_000_000, true},
		{"above threshold", 5_000_001, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rpc := &fakeRPC{
				signatures: map[string][]solana.SignatureInfo{
					"HoldAcc1": {{Signature: "sig1"}},
				},
				txs: map[string]*solana.ParsedTransaction{
					"sig1": purchaseTx(testWallet, tc.lamports, 1700000000, nil),
				},
			}

			r := newTestReconstructor(rpc)
			records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
				{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
			})
			if err != nil {
				t.Fatalf("Reconstruct failed: %v", err)
			}
			if records[0].Resolved() != tc.resolved {
				t.Errorf("Resolved=%v, want %v for %d lamports", records[0].Resolved(), tc.resolved, tc.lamports)
			}
		})
	}
}

func TestReconstruct_NewestQualifyingSpendWins(t *testing.T) {
	rpc := &fakeRPC{
		signatures: map[string][]solana.SignatureInfo{
			// Newest first, as the RPC returns them
			"HoldAcc1": {{Signature: "dustSig"}, {Signature: "purchaseSig"}},
		},
		txs: map[string]*solana.ParsedTransaction{
			"dustSig":     purchaseTx(testWallet, 1_000, 1700000100, nil),
			"purchaseSig": purchaseTx(testWallet, 750_000_000, 1700000000, nil),
		},
	}

	r := newTestReconstructor(rpc)
	records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if records[0].PriceSOL != 0.75 {
		t.Errorf("Expected the dust transfer to be skipped, got price %f", records[0].PriceSOL)
	}
	if records[0].OccurredAt != 1700000000000 {
		t.Errorf("OccurredAt mismatch: got %d", records[0].OccurredAt)
	}
}

func TestReconstruct_RecordsOutcomes(t *testing.T) {
	resolvedCounter := observability.DefaultMetrics.PurchasesReconstructed.WithLabelValues("resolved")
	unknownCounter := observability.DefaultMetrics.PurchasesReconstructed.WithLabelValues("unknown")
	resolvedBefore := testutil.ToFloat64(resolvedCounter)
	unknownBefore := testutil.ToFloat64(unknownCounter)

	rpc := &fakeRPC{
		signatures: map[string][]solana.SignatureInfo{
			"HoldAcc1": {{Signature: "sig1"}},
		},
		txs: map[string]*solana.ParsedTransaction{
			"sig1": purchaseTx(testWallet, 1_000_000_000, 1700000000, nil),
		},
	}

	r := newTestReconstructor(rpc)
	_, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
		{Mint: "Mint2", HoldingAccount: ""},
	})
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	if got := testutil.ToFloat64(resolvedCounter) - resolvedBefore; got != 1 {
		t.Errorf("Expected 1 resolved outcome recorded, got %v", got)
	}
	if got := testutil.ToFloat64(unknownCounter) - unknownBefore; got != 1 {
		t.Errorf("Expected 1 unknown outcome recorded, got %v", got)
	}
}

func TestReconstruct_RPCErrorDegradesToUnknown(t *testing.T) {
	rpc := &fakeRPC{sigErr: fmt.Errorf("rpc unavailable")}

	r := newTestReconstructor(rpc)
	records, err := r.Reconstruct(context.Background(), testWallet, []domain.WalletNFT{
		{Mint: "Mint1", HoldingAccount: "HoldAcc1"},
	})
	if err != nil {
		t.Fatalf("Reconstruct should not fail on per-NFT RPC errors: %v", err)
	}
	if records[0].Resolved() {
		t.Error("Expected unknown sentinel when RPC is unavailable")
	}
}
