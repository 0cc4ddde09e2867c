package dbbadger

import (
	"context"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

// ErrEventNotFound mirrors the inmemory adapter's sentinel so callers can
// compare against one error regardless of storage backend.
var ErrEventNotFound = fmt.Errorf("event not found")

// eventTagIndex is a secondary index record letting ListEventsByTag find an
// event's id from a (tag name, tag value) pair without badgerhold needing to
// query into envelope.Event's nested Tags slice.
type eventTagIndex struct {
	TagKey  string
	EventID string
}

type relayCursor struct {
	URL      string
	LastSync int64
}

type eventRepository struct {
	store *badgerhold.Store
	log   func(format string, a ...interface{})
}

func newEventRepository(store *badgerhold.Store) *eventRepository {
	return &eventRepository{store: store, log: logFn("event repository")}
}

func (r *eventRepository) HasEvent(_ context.Context, idHex string) (bool, error) {
	var ev envelope.Event
	if err := r.store.Get(idHex, &ev); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *eventRepository) StoreEvent(_ context.Context, ev *envelope.Event) error {
	id := ev.IDHex()
	if err := r.store.Upsert(id, *ev); err != nil {
		return err
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		key := tagKey(tag[0], tag[1])
		indexKey := key + ":" + id
		if err := r.store.Upsert(indexKey, eventTagIndex{TagKey: key, EventID: id}); err != nil {
			return err
		}
	}
	return nil
}

func (r *eventRepository) GetEvent(_ context.Context, idHex string) (*envelope.Event, error) {
	var ev envelope.Event
	if err := r.store.Get(idHex, &ev); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &ev, nil
}

func (r *eventRepository) ListEventsByTag(_ context.Context, tagName, tagValue string) ([]*envelope.Event, error) {
	var indexes []eventTagIndex
	if err := r.store.Find(&indexes, badgerhold.Where("TagKey").Eq(tagKey(tagName, tagValue))); err != nil {
		return nil, err
	}
	out := make([]*envelope.Event, 0, len(indexes))
	for _, idx := range indexes {
		var ev envelope.Event
		if err := r.store.Get(idx.EventID, &ev); err != nil {
			if err == badgerhold.ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, &ev)
	}
	return out, nil
}

func (r *eventRepository) GetRelayCursor(_ context.Context, relayURL string) (int64, error) {
	var c relayCursor
	if err := r.store.Get(relayURL, &c); err != nil {
		if err == badgerhold.ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return c.LastSync, nil
}

func (r *eventRepository) SetRelayCursor(_ context.Context, relayURL string, lastSync int64) error {
	return r.store.Upsert(relayURL, relayCursor{URL: relayURL, LastSync: lastSync})
}

func (r *eventRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *eventRepository) close() {
	r.store.Close()
}

func tagKey(name, value string) string {
	return name + ":" + value
}
