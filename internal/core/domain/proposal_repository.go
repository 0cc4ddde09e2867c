package domain

import "context"

// ProposalRepository persists Proposals, their accumulated Approvals, and
// the CompletedProposal terminal records, and tracks FrozenUTXOs on their
// behalf.
type ProposalRepository interface {
	AddProposal(ctx context.Context, proposal *Proposal) error
	GetProposal(ctx context.Context, proposalID string) (*Proposal, error)
	ListProposalsByPolicy(ctx context.Context, policyID string) ([]*Proposal, error)
	// UpdateProposal applies updateFn transactionally, so a concurrent
	// approval and a concurrent broadcast can never race on the same
	// proposal's status transition.
	UpdateProposal(
		ctx context.Context, proposalID string, updateFn func(p *Proposal) (*Proposal, error),
	) error
	DeleteProposal(ctx context.Context, proposalID string) error

	AddApproval(ctx context.Context, approval *Approval) error
	ListApprovals(ctx context.Context, proposalID string) ([]*Approval, error)

	FreezeUTXO(ctx context.Context, utxo *FrozenUTXO) error
	ReleaseUTXOs(ctx context.Context, proposalID string) error
	IsFrozen(ctx context.Context, utxoHash string) (bool, error)
	ListFrozenUTXOs(ctx context.Context, policyID string) ([]*FrozenUTXO, error)
}
