package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type labelRepository struct {
	store *badgerhold.Store
	log   func(format string, a ...interface{})
}

func newLabelRepository(store *badgerhold.Store) *labelRepository {
	return &labelRepository{store: store, log: logFn("label repository")}
}

func (r *labelRepository) UpsertLabel(_ context.Context, l *domain.Label) error {
	return r.store.Upsert(l.ID, *l)
}

func (r *labelRepository) GetLabel(_ context.Context, labelID string) (*domain.Label, error) {
	var l domain.Label
	if err := r.store.Get(labelID, &l); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrLabelNotFound
		}
		return nil, err
	}
	return &l, nil
}

func (r *labelRepository) ListLabelsByPolicy(_ context.Context, policyID string) ([]*domain.Label, error) {
	var list []domain.Label
	if err := r.store.Find(&list, badgerhold.Where("PolicyID").Eq(policyID)); err != nil {
		return nil, err
	}
	out := make([]*domain.Label, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *labelRepository) DeleteLabel(_ context.Context, labelID string) error {
	if err := r.store.Delete(labelID, domain.Label{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrLabelNotFound
		}
		return err
	}
	return nil
}

func (r *labelRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *labelRepository) close() {
	r.store.Close()
}
