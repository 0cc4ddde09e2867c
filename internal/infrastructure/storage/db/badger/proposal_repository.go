package dbbadger

import (
	"context"

	"github.com/timshannon/badgerhold/v4"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type proposalRepository struct {
	store *badgerhold.Store
	log   func(format string, a ...interface{})
}

func newProposalRepository(store *badgerhold.Store) *proposalRepository {
	return &proposalRepository{store: store, log: logFn("proposal repository")}
}

func (r *proposalRepository) AddProposal(_ context.Context, p *domain.Proposal) error {
	if err := r.store.Insert(p.ID, *p); err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrProposalAlreadyExists
		}
		return err
	}
	return nil
}

func (r *proposalRepository) GetProposal(_ context.Context, proposalID string) (*domain.Proposal, error) {
	var p domain.Proposal
	if err := r.store.Get(proposalID, &p); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrProposalNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *proposalRepository) ListProposalsByPolicy(_ context.Context, policyID string) ([]*domain.Proposal, error) {
	var list []domain.Proposal
	if err := r.store.Find(&list, badgerhold.Where("PolicyID").Eq(policyID)); err != nil {
		return nil, err
	}
	out := make([]*domain.Proposal, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *proposalRepository) UpdateProposal(
	_ context.Context, proposalID string, updateFn func(p *domain.Proposal) (*domain.Proposal, error),
) error {
	var p domain.Proposal
	if err := r.store.Get(proposalID, &p); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrProposalNotFound
		}
		return err
	}
	updated, err := updateFn(&p)
	if err != nil {
		return err
	}
	return r.store.Update(proposalID, *updated)
}

func (r *proposalRepository) DeleteProposal(_ context.Context, proposalID string) error {
	if err := r.store.Delete(proposalID, domain.Proposal{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrProposalNotFound
		}
		return err
	}
	return r.store.DeleteMatching(domain.Approval{}, badgerhold.Where("ProposalID").Eq(proposalID))
}

func (r *proposalRepository) AddApproval(_ context.Context, a *domain.Approval) error {
	return r.store.Insert(a.ID, *a)
}

func (r *proposalRepository) ListApprovals(_ context.Context, proposalID string) ([]*domain.Approval, error) {
	var list []domain.Approval
	if err := r.store.Find(&list, badgerhold.Where("ProposalID").Eq(proposalID)); err != nil {
		return nil, err
	}
	out := make([]*domain.Approval, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *proposalRepository) FreezeUTXO(_ context.Context, u *domain.FrozenUTXO) error {
	var existing domain.FrozenUTXO
	err := r.store.Get(u.UtxoHash, &existing)
	if err == nil && existing.ProposalID != u.ProposalID {
		return domain.ErrUtxoAlreadyFrozen
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return err
	}
	if err == badgerhold.ErrNotFound {
		return r.store.Insert(u.UtxoHash, *u)
	}
	return r.store.Update(u.UtxoHash, *u)
}

func (r *proposalRepository) ReleaseUTXOs(_ context.Context, proposalID string) error {
	return r.store.DeleteMatching(domain.FrozenUTXO{}, badgerhold.Where("ProposalID").Eq(proposalID))
}

func (r *proposalRepository) IsFrozen(_ context.Context, utxoHash string) (bool, error) {
	var u domain.FrozenUTXO
	if err := r.store.Get(utxoHash, &u); err != nil {
		if err == badgerhold.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *proposalRepository) ListFrozenUTXOs(_ context.Context, policyID string) ([]*domain.FrozenUTXO, error) {
	var list []domain.FrozenUTXO
	if err := r.store.Find(&list, badgerhold.Where("PolicyID").Eq(policyID)); err != nil {
		return nil, err
	}
	out := make([]*domain.FrozenUTXO, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out, nil
}

func (r *proposalRepository) reset() {
	r.store.Badger().DropAll()
}

func (r *proposalRepository) close() {
	r.store.Close()
}
