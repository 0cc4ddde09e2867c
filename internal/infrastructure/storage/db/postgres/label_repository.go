package postgresdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type labelRepository struct {
	pool *pgxpool.Pool
	log  func(format string, a ...interface{})
}

func newLabelRepository(pool *pgxpool.Pool) *labelRepository {
	return &labelRepository{pool: pool, log: logFn("label repository")}
}

func (r *labelRepository) UpsertLabel(ctx context.Context, l *domain.Label) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO labels (id, policy_id, kind, data, text)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET
			policy_id = EXCLUDED.policy_id, kind = EXCLUDED.kind, data = EXCLUDED.data, text = EXCLUDED.text`,
		l.ID, l.PolicyID, string(l.Kind), l.Data, l.Text,
	)
	return err
}

func (r *labelRepository) GetLabel(ctx context.Context, labelID string) (*domain.Label, error) {
	var l domain.Label
	var kind string
	err := r.pool.QueryRow(ctx, `SELECT id, policy_id, kind, data, text FROM labels WHERE id = $1`, labelID).
		Scan(&l.ID, &l.PolicyID, &kind, &l.Data, &l.Text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLabelNotFound
		}
		return nil, err
	}
	l.Kind = domain.LabelKind(kind)
	return &l, nil
}

func (r *labelRepository) ListLabelsByPolicy(ctx context.Context, policyID string) ([]*domain.Label, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, policy_id, kind, data, text FROM labels WHERE policy_id = $1`, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Label
	for rows.Next() {
		var l domain.Label
		var kind string
		if err := rows.Scan(&l.ID, &l.PolicyID, &kind, &l.Data, &l.Text); err != nil {
			return nil, err
		}
		l.Kind = domain.LabelKind(kind)
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (r *labelRepository) DeleteLabel(ctx context.Context, labelID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM labels WHERE id = $1`, labelID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLabelNotFound
	}
	return nil
}
