package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type signerRepository struct {
	store *badgerhold.Store
	log   func(format string, a ...interface{})
}

func newSignerRepository(store *badgerhold.Store) *signerRepository {
	return &signerRepository{store: store, log: logFn("signer repository")}
}

func (r *signerRepository) AddSigner(_ context.Context, s *domain.Signer) error {
	return r.store.Upsert(s.ID, *s)
}

func (r *signerRepository) GetSigner(_ context.Context, signerID string) (*domain.Signer, error) {
	var s domain.Signer
	if err := r.store.Get(signerID, &s); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSignerNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *signerRepository) ListSigners(_ context.Context) ([]*domain.Signer, error) {
	var list []domain.Signer
	if err := r.store.Find(&list, nil); err != nil {
		return nil, err
	}
	out := make([]*domain.Signer, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *signerRepository) DeleteSigner(_ context.Context, signerID string) error {
	if err := r.store.Delete(signerID, domain.Signer{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrSignerNotFound
		}
		return err
	}
	return nil
}

func (r *signerRepository) AddSharedSignerOffer(_ context.Context, offer *domain.SharedSigner) error {
	return r.store.Upsert(offer.OfferID, *offer)
}

func (r *signerRepository) GetSharedSignerOffer(_ context.Context, offerID string) (*domain.SharedSigner, error) {
	var o domain.SharedSigner
	if err := r.store.Get(offerID, &o); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrSharedSignerNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *signerRepository) ListSharedSignerOffers(_ context.Context) ([]*domain.SharedSigner, error) {
	var list []domain.SharedSigner
	if err := r.store.Find(&list, nil); err != nil {
		return nil, err
	}
	out := make([]*domain.SharedSigner, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *signerRepository) UpdateSharedSignerOffer(
	_ context.Context, offerID string, updateFn func(s *domain.SharedSigner) (*domain.SharedSigner, error),
) error {
	var o domain.SharedSigner
	if err := r.store.Get(offerID, &o); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrSharedSignerNotFound
		}
		return err
	}
	updated, err := updateFn(&o)
	if err != nil {
		return err
	}
	return r.store.Update(offerID, *updated)
}

func (r *signerRepository) AddKeyAgentProfile(_ context.Context, p *domain.KeyAgentProfile) error {
	key := append([]byte{}, p.PubKey[:]...)
	return r.store.Upsert(string(key), *p)
}

func (r *signerRepository) ListKeyAgentProfiles(_ context.Context) ([]*domain.KeyAgentProfile, error) {
	var list []domain.KeyAgentProfile
	if err := r.store.Find(&list, nil); err != nil {
		return nil, err
	}
	out := make([]*domain.KeyAgentProfile, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *signerRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *signerRepository) close() {
	r.store.Close()
}
