package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type policyRepository struct {
	store         *badgerhold.Store
	notifications chan domain.Notification

	log func(format string, a ...interface{})
}

func newPolicyRepository(store *badgerhold.Store) *policyRepository {
	return &policyRepository{
		store:         store,
		notifications: make(chan domain.Notification, 256),
		log:           logFn("policy repository"),
	}
}

func (r *policyRepository) AddPolicy(_ context.Context, p *domain.Policy) error {
	if err := r.store.Insert(p.ID, *p); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrPolicyAlreadyExists
		}
		return err
	}
	r.publish(domain.Notification{Type: domain.PolicyAdded, PolicyID: p.ID})
	return nil
}

func (r *policyRepository) GetPolicy(_ context.Context, policyID string) (*domain.Policy, error) {
	var p domain.Policy
	if err := r.store.Get(policyID, &p); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *policyRepository) ListPolicies(_ context.Context) ([]*domain.Policy, error) {
	var list []domain.Policy
	if err := r.store.Find(&list, nil); err != nil {
		return nil, err
	}
	out := make([]*domain.Policy, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *policyRepository) DeletePolicy(_ context.Context, policyID string) error {
	if err := r.store.Delete(policyID, domain.Policy{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrPolicyNotFound
		}
		return err
	}
	_ = r.store.Delete(policyID, domain.SharedKey{})
	return nil
}

func (r *policyRepository) AddSharedKey(_ context.Context, key *domain.SharedKey) error {
	if err := r.store.Insert(key.PolicyID, *key); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrSharedKeyAlreadyExists
		}
		return err
	}
	return nil
}

func (r *policyRepository) GetSharedKey(_ context.Context, policyID string) (*domain.SharedKey, error) {
	var k domain.SharedKey
	if err := r.store.Get(policyID, &k); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSharedKeyNotFound
		}
		return nil, err
	}
	return &k, nil
}

func (r *policyRepository) GetNotificationChannel() chan domain.Notification {
	return r.notifications
}

func (r *policyRepository) publish(n domain.Notification) {
	select {
	case r.notifications <- n:
	default:
		r.log("dropped %s notification, channel full", n.Type)
	}
}

func (r *policyRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *policyRepository) close() {
	r.store.Close()
	close(r.notifications)
}
