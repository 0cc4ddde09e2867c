package inmemory

import (
	"context"
	"sync"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type labelRepository struct {
	lock         sync.RWMutex
	labels       map[string]*domain.Label
	labelsByPol  map[string][]string
}

func newLabelRepository() *labelRepository {
	return &labelRepository{
		labels:      make(map[string]*domain.Label),
		labelsByPol: make(map[string][]string),
	}
}

func (r *labelRepository) UpsertLabel(_ context.Context, l *domain.Label) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.labels[l.ID]; !exists {
		r.labelsByPol[l.PolicyID] = append(r.labelsByPol[l.PolicyID], l.ID)
	}
	r.labels[l.ID] = l
	return nil
}

func (r *labelRepository) GetLabel(_ context.Context, labelID string) (*domain.Label, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	l, ok := r.labels[labelID]
	if !ok {
		return nil, domain.ErrLabelNotFound
	}
	return l, nil
}

func (r *labelRepository) ListLabelsByPolicy(_ context.Context, policyID string) ([]*domain.Label, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.Label, 0)
	for _, id := range r.labelsByPol[policyID] {
		if l, ok := r.labels[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *labelRepository) DeleteLabel(_ context.Context, labelID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	l, ok := r.labels[labelID]
	if !ok {
		return domain.ErrLabelNotFound
	}
	delete(r.labels, labelID)
	ids := r.labelsByPol[l.PolicyID]
	for i, id := range ids {
		if id == labelID {
			r.labelsByPol[l.PolicyID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *labelRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.labels = make(map[string]*domain.Label)
	r.labelsByPol = make(map[string][]string)
}
