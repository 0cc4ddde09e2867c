package inmemory

import (
	"context"
	"sync"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type policyRepository struct {
	lock          sync.RWMutex
	policies      map[string]*domain.Policy
	sharedKeys    map[string]*domain.SharedKey
	notifications chan domain.Notification
}

func newPolicyRepository() *policyRepository {
	return &policyRepository{
		policies:      make(map[string]*domain.Policy),
		sharedKeys:    make(map[string]*domain.SharedKey),
		notifications: make(chan domain.Notification, 256),
	}
}

func (r *policyRepository) AddPolicy(_ context.Context, p *domain.Policy) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.policies[p.ID]; ok {
		return domain.ErrPolicyAlreadyExists
	}
	r.policies[p.ID] = p
	r.publish(domain.Notification{Type: domain.PolicyAdded, PolicyID: p.ID})
	return nil
}

func (r *policyRepository) GetPolicy(_ context.Context, policyID string) (*domain.Policy, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.policies[policyID]
	if !ok {
		return nil, domain.ErrPolicyNotFound
	}
	return p, nil
}

func (r *policyRepository) ListPolicies(_ context.Context) ([]*domain.Policy, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	return out, nil
}

func (r *policyRepository) DeletePolicy(_ context.Context, policyID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.policies[policyID]; !ok {
		return domain.ErrPolicyNotFound
	}
	delete(r.policies, policyID)
	delete(r.sharedKeys, policyID)
	return nil
}

func (r *policyRepository) AddSharedKey(_ context.Context, key *domain.SharedKey) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.sharedKeys[key.PolicyID]; ok {
		return domain.ErrSharedKeyAlreadyExists
	}
	r.sharedKeys[key.PolicyID] = key
	return nil
}

func (r *policyRepository) GetSharedKey(_ context.Context, policyID string) (*domain.SharedKey, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	k, ok := r.sharedKeys[policyID]
	if !ok {
		return nil, domain.ErrSharedKeyNotFound
	}
	return k, nil
}

func (r *policyRepository) GetNotificationChannel() chan domain.Notification {
	return r.notifications
}

func (r *policyRepository) publish(n domain.Notification) {
	select {
	case r.notifications <- n:
	default:
	}
}

func (r *policyRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.policies = make(map[string]*domain.Policy)
	r.sharedKeys = make(map[string]*domain.SharedKey)
}

func (r *policyRepository) close() {
	close(r.notifications)
}
