package postgresdb

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

// ErrEventNotFound mirrors the badger and inmemory adapters' sentinel so
// callers can compare against one error regardless of storage backend.
var ErrEventNotFound = fmt.Errorf("event not found")

type eventRepository struct {
	pool *pgxpool.Pool
	log  func(format string, a ...interface{})
}

func newEventRepository(pool *pgxpool.Pool) *eventRepository {
	return &eventRepository{pool: pool, log: logFn("event repository")}
}

func (r *eventRepository) HasEvent(ctx context.Context, idHex string) (bool, error) {
	var id string
	err := r.pool.QueryRow(ctx, `SELECT id FROM events WHERE id = $1`, idHex).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *eventRepository) StoreEvent(ctx context.Context, ev *envelope.Event) error {
	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return err
	}
	id := ev.IDHex()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO events (id, author, created_at, kind, tags_json, content, sig)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO NOTHING`,
		id, ev.AuthorHex(), ev.CreatedAt, int(ev.Kind), string(tagsJSON), ev.Content, hex.EncodeToString(ev.Sig[:]),
	); err != nil {
		return err
	}
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO event_tags (tag_name, tag_value, event_id) VALUES ($1,$2,$3)
			ON CONFLICT DO NOTHING`, tag[0], tag[1], id,
		); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *eventRepository) GetEvent(ctx context.Context, idHex string) (*envelope.Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, author, created_at, kind, tags_json, content, sig FROM events WHERE id = $1`, idHex)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (r *eventRepository) ListEventsByTag(ctx context.Context, tagName, tagValue string) ([]*envelope.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.author, e.created_at, e.kind, e.tags_json, e.content, e.sig
		FROM events e
		JOIN event_tags t ON t.event_id = e.id
		WHERE t.tag_name = $1 AND t.tag_value = $2`, tagName, tagValue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*envelope.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *eventRepository) GetRelayCursor(ctx context.Context, relayURL string) (int64, error) {
	var lastSync int64
	err := r.pool.QueryRow(ctx, `SELECT last_sync FROM relay_cursors WHERE relay_url = $1`, relayURL).Scan(&lastSync)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return lastSync, nil
}

func (r *eventRepository) SetRelayCursor(ctx context.Context, relayURL string, lastSync int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO relay_cursors (relay_url, last_sync) VALUES ($1,$2)
		ON CONFLICT (relay_url) DO UPDATE SET last_sync = EXCLUDED.last_sync`,
		relayURL, lastSync,
	)
	return err
}

func scanEvent(r row) (*envelope.Event, error) {
	var (
		idHex, authorHex, sigHex string
		createdAt                int64
		kind                     int
		tagsJSON, content        string
	)
	if err := r.Scan(&idHex, &authorHex, &createdAt, &kind, &tagsJSON, &content, &sigHex); err != nil {
		return nil, err
	}
	ev := &envelope.Event{
		CreatedAt: createdAt,
		Kind:      envelope.Kind(kind),
		Content:   content,
	}
	idBytes, err := hex.DecodeString(idHex)
	if err != nil {
		return nil, err
	}
	copy(ev.ID[:], idBytes)
	authorBytes, err := hex.DecodeString(authorHex)
	if err != nil {
		return nil, err
	}
	copy(ev.Author[:], authorBytes)
	sigBytes, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil, err
	}
	copy(ev.Sig[:], sigBytes)
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return nil, err
	}
	return ev, nil
}
