package ports

import (
	"context"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

// RelayClient is the abstraction over one or more nostr relays: publishing
// signed events and subscribing to filtered event streams. No reconnect,
// retry, backoff or call timeout is applied at this boundary; calls are
// bounded only by the ctx the caller passes.
type RelayClient interface {
	// Connect dials every configured relay URL; a failure to reach one
	// relay is not fatal as long as at least one succeeds.
	Connect(ctx context.Context, relayURLs []string) error
	// Publish broadcasts ev to every connected relay.
	Publish(ctx context.Context, ev *envelope.Event) error
	// Subscribe opens a live subscription matching filter and streams
	// events as received, neither verified nor decrypted, until ctx is
	// cancelled.
	Subscribe(ctx context.Context, filter envelope.Filter) (<-chan *envelope.Event, error)
	// Close tears down every relay connection.
	Close() error
}
