package solana

import "context"

// AccountNotification is emitted when a subscribed account changes.
type AccountNotification struct {
	// Pubkey of the account the subscription was created for.
	Pubkey string
	// Slot at which the change was observed.
	Slot int64
	// Lamports balance after the change.
	Lamports uint64
}

// AccountWatcher subscribes to on-chain account changes. The tracker uses it
// to notice that a watched wallet's token accounts moved, which invalidates
// previously reconstructed purchase records.
type AccountWatcher interface {
	// SubscribeAccount subscribes to changes of one account.
	// The returned channel is closed when the watcher shuts down.
	SubscribeAccount(ctx context.Context, pubkey string) (<-chan AccountNotification, error)

	// Close terminates all subscriptions.
	Close() error
}
