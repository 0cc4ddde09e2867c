// Package nostr implements ports.RelayClient against real nostr relays via
// github.com/nbd-wtf/go-nostr. Every wire event this protocol produces is
// already NIP-01-shaped (event.go's id/sig scheme matches the standard
// exactly), so this adapter is a pure translation layer between
// pkg/envelope.Event and nostr.Event plus connection/subscription fan-out
// across however many relays the caller configures.
package nostr

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	nostrgo "github.com/nbd-wtf/go-nostr"
	log "github.com/sirupsen/logrus"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

// Client fans a single Publish/Subscribe call out across every relay it's
// connected to. Connect, publish and subscribe failures on one relay are
// logged and that relay is skipped; a relay whose subscription stream closes
// mid-session simply stops contributing events, without a log entry.
type Client struct {
	mu     sync.Mutex
	relays map[string]*nostrgo.Relay
}

func NewClient() *Client {
	return &Client{relays: make(map[string]*nostrgo.Relay)}
}

// Connect dials every url in relayURLs. It only fails if none succeed.
func (c *Client) Connect(ctx context.Context, relayURLs []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	connected := 0
	for _, url := range relayURLs {
		relay, err := nostrgo.RelayConnect(ctx, url)
		if err != nil {
			lastErr = err
			log.WithError(err).Warnf("relay client: failed to connect to %s", url)
			continue
		}
		c.relays[url] = relay
		connected++
	}
	if connected == 0 && len(relayURLs) > 0 {
		return fmt.Errorf("relay client: failed to connect to any relay: %w", lastErr)
	}
	return nil
}

// Publish broadcasts ev to every connected relay, returning the last error
// only if every relay rejected the event.
func (c *Client) Publish(ctx context.Context, ev *envelope.Event) error {
	c.mu.Lock()
	relays := make([]*nostrgo.Relay, 0, len(c.relays))
	for _, r := range c.relays {
		relays = append(relays, r)
	}
	c.mu.Unlock()

	wire := toWireEvent(ev)

	var lastErr error
	successes := 0
	for _, r := range relays {
		if err := r.Publish(ctx, wire); err != nil {
			lastErr = err
			log.WithError(err).Warnf("relay client: publish to %s failed", r.URL)
			continue
		}
		successes++
	}
	if successes == 0 && len(relays) > 0 {
		return fmt.Errorf("relay client: publish failed on every relay: %w", lastErr)
	}
	return nil
}

// Subscribe opens filter as a live subscription on every connected relay and
// fans their events into a single channel that closes when ctx is
// cancelled. Events are not deduplicated: one event received from two relays
// is delivered twice.
func (c *Client) Subscribe(ctx context.Context, filter envelope.Filter) (<-chan *envelope.Event, error) {
	c.mu.Lock()
	relays := make([]*nostrgo.Relay, 0, len(c.relays))
	for _, r := range c.relays {
		relays = append(relays, r)
	}
	c.mu.Unlock()

	if len(relays) == 0 {
		return nil, fmt.Errorf("relay client: not connected to any relay")
	}

	out := make(chan *envelope.Event, 64)
	filters := nostrgo.Filters{toWireFilter(filter)}

	var wg sync.WaitGroup
	for _, r := range relays {
		sub, err := r.Subscribe(ctx, filters)
		if err != nil {
			log.WithError(err).Warnf("relay client: subscribe to %s failed", r.URL)
			continue
		}
		wg.Add(1)
		go func(sub *nostrgo.Subscription) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-sub.Events:
					if !ok {
						return
					}
					converted, err := fromWireEvent(ev)
					if err != nil {
						log.WithError(err).Warn("relay client: dropping malformed wire event")
						continue
					}
					select {
					case out <- converted:
					case <-ctx.Done():
						return
					}
				}
			}
		}(sub)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for url, r := range c.relays {
		r.Close()
		delete(c.relays, url)
	}
	return nil
}

func toWireEvent(ev *envelope.Event) nostrgo.Event {
	tags := make(nostrgo.Tags, len(ev.Tags))
	for i, t := range ev.Tags {
		tags[i] = nostrgo.Tag(t)
	}
	return nostrgo.Event{
		ID:        ev.IDHex(),
		PubKey:    ev.AuthorHex(),
		CreatedAt: nostrgo.Timestamp(ev.CreatedAt),
		Kind:      int(ev.Kind),
		Tags:      tags,
		Content:   ev.Content,
		Sig:       hex.EncodeToString(ev.Sig[:]),
	}
}

func fromWireEvent(ev *nostrgo.Event) (*envelope.Event, error) {
	idBytes, err := hex.DecodeString(ev.ID)
	if err != nil || len(idBytes) != 32 {
		return nil, fmt.Errorf("nostr client: malformed event id")
	}
	authorBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil || len(authorBytes) != 32 {
		return nil, fmt.Errorf("nostr client: malformed event pubkey")
	}
	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil || len(sigBytes) != 64 {
		return nil, fmt.Errorf("nostr client: malformed event signature")
	}

	tags := make([]envelope.Tag, len(ev.Tags))
	for i, t := range ev.Tags {
		tags[i] = envelope.Tag(t)
	}

	out := &envelope.Event{
		CreatedAt: int64(ev.CreatedAt),
		Kind:      envelope.Kind(ev.Kind),
		Tags:      tags,
		Content:   ev.Content,
	}
	copy(out.ID[:], idBytes)
	copy(out.Author[:], authorBytes)
	copy(out.Sig[:], sigBytes)
	return out, nil
}

func toWireFilter(f envelope.Filter) nostrgo.Filter {
	wf := nostrgo.Filter{
		Since: timestampPtr(f.Since),
		Until: timestampPtr(f.Until),
		Limit: f.Limit,
	}
	for _, k := range f.Kinds {
		wf.Kinds = append(wf.Kinds, int(k))
	}
	for _, id := range f.IDs {
		wf.IDs = append(wf.IDs, hex.EncodeToString(id[:]))
	}
	for _, a := range f.Authors {
		wf.Authors = append(wf.Authors, hex.EncodeToString(a[:]))
	}
	if len(f.PolicyIDs) > 0 || len(f.Proposals) > 0 {
		wf.Tags = nostrgo.TagMap{}
		if len(f.PolicyIDs) > 0 {
			wf.Tags["policy"] = f.PolicyIDs
		}
		if len(f.Proposals) > 0 {
			wf.Tags["proposal"] = f.Proposals
		}
	}
	return wf
}

func timestampPtr(unix int64) *nostrgo.Timestamp {
	if unix == 0 {
		return nil
	}
	t := nostrgo.Timestamp(unix)
	return &t
}
