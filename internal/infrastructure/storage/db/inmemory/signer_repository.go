package inmemory

import (
	"context"
	"sync"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type signerRepository struct {
	lock              sync.RWMutex
	signers           map[string]*domain.Signer
	sharedOffers      map[string]*domain.SharedSigner
	keyAgentProfiles  []*domain.KeyAgentProfile
}

func newSignerRepository() *signerRepository {
	return &signerRepository{
		signers:      make(map[string]*domain.Signer),
		sharedOffers: make(map[string]*domain.SharedSigner),
	}
}

func (r *signerRepository) AddSigner(_ context.Context, s *domain.Signer) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.signers[s.ID] = s
	return nil
}

func (r *signerRepository) GetSigner(_ context.Context, signerID string) (*domain.Signer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	s, ok := r.signers[signerID]
	if !ok {
		return nil, domain.ErrSignerNotFound
	}
	return s, nil
}

func (r *signerRepository) ListSigners(_ context.Context) ([]*domain.Signer, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.Signer, 0, len(r.signers))
	for _, s := range r.signers {
		out = append(out, s)
	}
	return out, nil
}

func (r *signerRepository) DeleteSigner(_ context.Context, signerID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.signers[signerID]; !ok {
		return domain.ErrSignerNotFound
	}
	delete(r.signers, signerID)
	return nil
}

func (r *signerRepository) AddSharedSignerOffer(_ context.Context, offer *domain.SharedSigner) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sharedOffers[offer.OfferID] = offer
	return nil
}

func (r *signerRepository) GetSharedSignerOffer(_ context.Context, offerID string) (*domain.SharedSigner, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	o, ok := r.sharedOffers[offerID]
	if !ok {
		return nil, domain.ErrSharedSignerNotFound
	}
	return o, nil
}

func (r *signerRepository) ListSharedSignerOffers(_ context.Context) ([]*domain.SharedSigner, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.SharedSigner, 0, len(r.sharedOffers))
	for _, o := range r.sharedOffers {
		out = append(out, o)
	}
	return out, nil
}

func (r *signerRepository) UpdateSharedSignerOffer(
	_ context.Context, offerID string, updateFn func(s *domain.SharedSigner) (*domain.SharedSigner, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	o, ok := r.sharedOffers[offerID]
	if !ok {
		return domain.ErrSharedSignerNotFound
	}
	updated, err := updateFn(o)
	if err != nil {
		return err
	}
	r.sharedOffers[offerID] = updated
	return nil
}

func (r *signerRepository) AddKeyAgentProfile(_ context.Context, p *domain.KeyAgentProfile) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.keyAgentProfiles = append(r.keyAgentProfiles, p)
	return nil
}

func (r *signerRepository) ListKeyAgentProfiles(_ context.Context) ([]*domain.KeyAgentProfile, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.KeyAgentProfile, len(r.keyAgentProfiles))
	copy(out, r.keyAgentProfiles)
	return out, nil
}

func (r *signerRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.signers = make(map[string]*domain.Signer)
	r.sharedOffers = make(map[string]*domain.SharedSigner)
	r.keyAgentProfiles = nil
}
