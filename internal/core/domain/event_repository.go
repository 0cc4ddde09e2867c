package domain

import (
	"context"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

// EventRepository caches every verified event this identity has ingested
// (dedup-by-id) and tracks each relay's sync cursor across process
// restarts.
type EventRepository interface {
	// HasEvent reports whether idHex has already been ingested, the
	// dedup-by-id step of the sync pipeline.
	HasEvent(ctx context.Context, idHex string) (bool, error)
	StoreEvent(ctx context.Context, ev *envelope.Event) error
	GetEvent(ctx context.Context, idHex string) (*envelope.Event, error)
	ListEventsByTag(ctx context.Context, tagName, tagValue string) ([]*envelope.Event, error)

	GetRelayCursor(ctx context.Context, relayURL string) (int64, error)
	SetRelayCursor(ctx context.Context, relayURL string, lastSync int64) error
}
