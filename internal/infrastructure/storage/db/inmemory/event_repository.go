package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

var ErrEventNotFound = fmt.Errorf("event not found")

type eventRepository struct {
	lock         sync.RWMutex
	events       map[string]*envelope.Event
	eventsByTag  map[string][]string
	cursors      map[string]int64
}

func newEventRepository() *eventRepository {
	return &eventRepository{
		events:      make(map[string]*envelope.Event),
		eventsByTag: make(map[string][]string),
		cursors:     make(map[string]int64),
	}
}

func (r *eventRepository) HasEvent(_ context.Context, idHex string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.events[idHex]
	return ok, nil
}

func (r *eventRepository) StoreEvent(_ context.Context, ev *envelope.Event) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	id := ev.IDHex()
	r.events[id] = ev
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		key := tagKey(tag[0], tag[1])
		r.eventsByTag[key] = append(r.eventsByTag[key], id)
	}
	return nil
}

func (r *eventRepository) GetEvent(_ context.Context, idHex string) (*envelope.Event, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ev, ok := r.events[idHex]
	if !ok {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func (r *eventRepository) ListEventsByTag(_ context.Context, tagName, tagValue string) ([]*envelope.Event, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	ids := r.eventsByTag[tagKey(tagName, tagValue)]
	out := make([]*envelope.Event, 0, len(ids))
	for _, id := range ids {
		if ev, ok := r.events[id]; ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *eventRepository) GetRelayCursor(_ context.Context, relayURL string) (int64, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.cursors[relayURL], nil
}

func (r *eventRepository) SetRelayCursor(_ context.Context, relayURL string, lastSync int64) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.cursors[relayURL] = lastSync
	return nil
}

func (r *eventRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = make(map[string]*envelope.Event)
	r.eventsByTag = make(map[string][]string)
	r.cursors = make(map[string]int64)
}

func tagKey(name, value string) string {
	return name + ":" + value
}
