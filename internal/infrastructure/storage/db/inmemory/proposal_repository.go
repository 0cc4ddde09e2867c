package inmemory

import (
	"context"
	"sync"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

type proposalRepository struct {
	lock            sync.RWMutex
	proposals       map[string]*domain.Proposal
	approvalsByProp map[string][]*domain.Approval
	frozenByHash    map[string]*domain.FrozenUTXO
	frozenByPolicy  map[string][]string
}

func newProposalRepository() *proposalRepository {
	return &proposalRepository{
		proposals:       make(map[string]*domain.Proposal),
		approvalsByProp: make(map[string][]*domain.Approval),
		frozenByHash:    make(map[string]*domain.FrozenUTXO),
		frozenByPolicy:  make(map[string][]string),
	}
}

func (r *proposalRepository) AddProposal(_ context.Context, p *domain.Proposal) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.proposals[p.ID]; ok {
		return domain.ErrProposalAlreadyExists
	}
	r.proposals[p.ID] = p
	return nil
}

func (r *proposalRepository) GetProposal(_ context.Context, proposalID string) (*domain.Proposal, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	p, ok := r.proposals[proposalID]
	if !ok {
		return nil, domain.ErrProposalNotFound
	}
	return p, nil
}

func (r *proposalRepository) ListProposalsByPolicy(_ context.Context, policyID string) ([]*domain.Proposal, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.Proposal, 0)
	for _, p := range r.proposals {
		if p.PolicyID == policyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *proposalRepository) UpdateProposal(
	_ context.Context, proposalID string, updateFn func(p *domain.Proposal) (*domain.Proposal, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	p, ok := r.proposals[proposalID]
	if !ok {
		return domain.ErrProposalNotFound
	}
	updated, err := updateFn(p)
	if err != nil {
		return err
	}
	r.proposals[proposalID] = updated
	return nil
}

func (r *proposalRepository) DeleteProposal(_ context.Context, proposalID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.proposals[proposalID]; !ok {
		return domain.ErrProposalNotFound
	}
	delete(r.proposals, proposalID)
	delete(r.approvalsByProp, proposalID)
	return nil
}

func (r *proposalRepository) AddApproval(_ context.Context, a *domain.Approval) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.approvalsByProp[a.ProposalID] = append(r.approvalsByProp[a.ProposalID], a)
	return nil
}

func (r *proposalRepository) ListApprovals(_ context.Context, proposalID string) ([]*domain.Approval, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.Approval, len(r.approvalsByProp[proposalID]))
	copy(out, r.approvalsByProp[proposalID])
	return out, nil
}

func (r *proposalRepository) FreezeUTXO(_ context.Context, u *domain.FrozenUTXO) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if existing, ok := r.frozenByHash[u.UtxoHash]; ok && existing.ProposalID != u.ProposalID {
		return domain.ErrUtxoAlreadyFrozen
	}
	r.frozenByHash[u.UtxoHash] = u
	r.frozenByPolicy[u.PolicyID] = append(r.frozenByPolicy[u.PolicyID], u.UtxoHash)
	return nil
}

func (r *proposalRepository) ReleaseUTXOs(_ context.Context, proposalID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for hash, u := range r.frozenByHash {
		if u.ReleasedBy(proposalID) {
			delete(r.frozenByHash, hash)
		}
	}
	return nil
}

func (r *proposalRepository) IsFrozen(_ context.Context, utxoHash string) (bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	_, ok := r.frozenByHash[utxoHash]
	return ok, nil
}

func (r *proposalRepository) ListFrozenUTXOs(_ context.Context, policyID string) ([]*domain.FrozenUTXO, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	out := make([]*domain.FrozenUTXO, 0)
	for _, hash := range r.frozenByPolicy[policyID] {
		if u, ok := r.frozenByHash[hash]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *proposalRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.proposals = make(map[string]*domain.Proposal)
	r.approvalsByProp = make(map[string][]*domain.Approval)
	r.frozenByHash = make(map[string]*domain.FrozenUTXO)
	r.frozenByPolicy = make(map[string][]string)
}
