package solana

import "context"

// Chain constants.
const (
	// LamportsPerSOL is the number of lamports in one SOL.
	LamportsPerSOL = 1_000_000_000

	// TransactionFeeLamports is the base fee of a single-signature transaction.
	TransactionFeeLamports = 5_000

	// TokenProgramID is the SPL token program.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

// RPCClient defines the Solana RPC HTTP interface consumed by the tracker.
type RPCClient interface {
	// GetSignaturesForAddress retrieves recent signatures for an address.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetParsedTransactions retrieves transactions for a batch of signatures.
	// The result has the same length and order as signatures; entries the node
	// could not return are nil.
	GetParsedTransactions(ctx context.Context, signatures []string) ([]*ParsedTransaction, error)

	// GetParsedTokenAccountsByOwner retrieves SPL token accounts owned by a wallet.
	GetParsedTokenAccountsByOwner(ctx context.Context, owner string) ([]TokenAccount, error)
}

// ParsedTransaction represents a confirmed transaction with balance metadata.
type ParsedTransaction struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains pre/post execution metadata.
type TransactionMeta struct {
	Err          interface{}
	Fee          uint64
	PreBalances  []uint64
	PostBalances []uint64
}

// TransactionMessage contains the account list and instructions.
type TransactionMessage struct {
	AccountKeys  []AccountKey
	Instructions []Instruction
}

// Signer returns the pubkey of the first signing account (the fee payer),
// or "" if the message carries no accounts.
func (m *TransactionMessage) Signer() string {
	if m == nil || len(m.AccountKeys) == 0 {
		return ""
	}
	return m.AccountKeys[0].Pubkey
}

// TokenAccount is one SPL token account of a wallet, reduced to the fields
// the tracker consumes.
type TokenAccount struct {
	Pubkey string // token account address
	Mint   string // mint held by the account
	Amount string // raw token amount
}
