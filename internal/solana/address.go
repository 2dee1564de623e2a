package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateWalletAddress checks that an address is a well-formed base-58
// ed25519 public key. Wallet addresses must be on the curve; program derived
// addresses are deliberately off-curve and are rejected here.
func ValidateWalletAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address must decode to 32 bytes, got %d", len(raw))
	}
	if !isOnCurve(raw) {
		return fmt.Errorf("address is not an ed25519 public key")
	}
	return nil
}

// ValidateAccountAddress checks that an address is well-formed base-58 of
// pubkey length. Token and program accounts may be off-curve.
func ValidateAccountAddress(address string) error {
	raw, err := base58.Decode(address)
	if err != nil {
		return fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("address must decode to 32 bytes, got %d", len(raw))
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
