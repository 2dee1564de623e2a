package solana

import (
	"encoding/json"

	"github.com/mr-tron/base58"
)

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// AccountKey is one entry of a transaction message's account list.
// jsonParsed encoding returns objects, legacy json encoding returns bare
// pubkey strings; both decode into this type.
type AccountKey struct {
	Pubkey   string `json:"pubkey"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
}

// UnmarshalJSON accepts both the object and the bare-string account key shape.
func (k *AccountKey) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &k.Pubkey)
	}

	type accountKey AccountKey
	var obj accountKey
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*k = AccountKey(obj)
	return nil
}

// Instruction is one instruction of a transaction message. The RPC returns
// heterogeneous shapes: fully decoded instructions carry Parsed, partially
// decoded ones carry base-58 Data with an explicit ProgramID, and legacy raw
// messages reference the program through ProgramIDIndex.
type Instruction struct {
	Program        string          `json:"program,omitempty"`
	ProgramID      string          `json:"programId,omitempty"`
	ProgramIDIndex *int            `json:"programIdIndex,omitempty"`
	Data           string          `json:"data,omitempty"`
	Parsed         json.RawMessage `json:"parsed,omitempty"`
}

// IsParsed reports whether the instruction was fully decoded by the node.
// Fully decoded instructions carry no raw payload to classify.
func (in *Instruction) IsParsed() bool {
	return len(in.Parsed) > 0
}

// RawPayload resolves the (program identifier, base-58 payload) pair of a
// raw or partially decoded instruction. Legacy raw instructions resolve the
// program through accountKeys. ok is false for fully decoded instructions
// and for instructions whose program cannot be resolved.
func (in *Instruction) RawPayload(accountKeys []AccountKey) (programID, data string, ok bool) {
	if in.IsParsed() || in.Data == "" {
		return "", "", false
	}

	if in.ProgramID != "" {
		return in.ProgramID, in.Data, true
	}

	if in.ProgramIDIndex != nil {
		idx := *in.ProgramIDIndex
		if idx >= 0 && idx < len(accountKeys) {
			return accountKeys[idx].Pubkey, in.Data, true
		}
	}

	return "", "", false
}

// PayloadBytes decodes the instruction's base-58 payload.
// Returns nil for parsed instructions or undecodable payloads.
func (in *Instruction) PayloadBytes() []byte {
	if in.IsParsed() || in.Data == "" {
		return nil
	}
	raw, err := base58.Decode(in.Data)
	if err != nil {
		return nil
	}
	return raw
}
