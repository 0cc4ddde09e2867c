package domain

import (
	"bytes"
	"fmt"
	"time"
)

var (
	ErrProposalMissingPolicy   = fmt.Errorf("missing policy id")
	ErrProposalMissingPSBT     = fmt.Errorf("missing unsigned psbt")
	ErrProposalNotFound        = fmt.Errorf("proposal not found")
	ErrProposalNotPending      = fmt.Errorf("proposal is not pending")
	ErrProposalAlreadyExists   = fmt.Errorf("proposal already exists")
	ErrStaleApproval           = fmt.Errorf("approval signs an obsolete psbt version")
	ErrApprovalUnknownSigner   = fmt.Errorf("approval signer is not named in the policy")
	ErrApprovalMissingProposal = fmt.Errorf("missing proposal id")
)

// ProposalKind distinguishes the three spend-like flows a policy's
// participants can propose.
type ProposalKind string

const (
	ProposalSpend          ProposalKind = "spend"
	ProposalProofOfReserve ProposalKind = "proof_of_reserve"
	ProposalKeyAgentPayout ProposalKind = "key_agent_payment"
)

// ProposalStatus is the state-machine position of a Proposal: Pending is the
// only non-terminal state; Completed and Expired are both terminal and
// release any FrozenUTXO the proposal held.
type ProposalStatus string

const (
	ProposalPending   ProposalStatus = "pending"
	ProposalCompleted ProposalStatus = "completed"
	ProposalExpired   ProposalStatus = "expired"
)

// Proposal is a draft spend awaiting enough Approvals to finalize. Its id is
// derived from the policy and the unsigned PSBT so that independently
// drafted proposals for the same spend collapse to one record.
type Proposal struct {
	ID            string
	PolicyID      string
	Kind          ProposalKind
	Description   string
	UnsignedPSBT  []byte
	Destinations  []ProposalDestination
	UTXOs         []string
	FeeRateSatVb  float64
	Status        ProposalStatus
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	CompletedInfo *CompletedProposal
}

// ProposalDestination mirrors pkg/psbtutil.Destination for persistence
// without importing the psbtutil package into the domain layer.
type ProposalDestination struct {
	Address string
	Amount  int64
}

// NewProposal creates a Pending proposal. expiry, if non-nil, is computed by
// the caller from the policy's ProposalExpiry at draft time.
func NewProposal(
	id, policyID string, kind ProposalKind, description string,
	unsignedPSBT []byte, destinations []ProposalDestination, utxos []string,
	feeRateSatVb float64, createdAt time.Time, expiresAt *time.Time,
) (*Proposal, error) {
	if policyID == "" {
		return nil, ErrProposalMissingPolicy
	}
	if len(unsignedPSBT) == 0 {
		return nil, ErrProposalMissingPSBT
	}
	return &Proposal{
		ID:           id,
		PolicyID:     policyID,
		Kind:         kind,
		Description:  description,
		UnsignedPSBT: unsignedPSBT,
		Destinations: destinations,
		UTXOs:        utxos,
		FeeRateSatVb: feeRateSatVb,
		Status:       ProposalPending,
		CreatedAt:    createdAt,
		ExpiresAt:    expiresAt,
	}, nil
}

// IsExpired reports whether the proposal's expiry deadline (if any) has
// passed as of now, regardless of its currently stored Status.
func (p *Proposal) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && now.After(*p.ExpiresAt)
}

// Complete transitions a Pending proposal to Completed once its PSBT has
// been finalized and broadcast. Calling Complete twice is a no-op — the
// spec requires broadcast to be idempotent.
func (p *Proposal) Complete(txid string, rawTx []byte, at time.Time) error {
	if p.Status == ProposalCompleted {
		return nil
	}
	if p.Status != ProposalPending {
		return ErrProposalNotPending
	}
	p.Status = ProposalCompleted
	p.CompletedInfo = &CompletedProposal{
		ID:                 p.ID,
		PolicyID:           p.PolicyID,
		OriginalProposalID: p.ID,
		Txid:               txid,
		RawTx:              rawTx,
		BroadcastAt:        at,
	}
	return nil
}

// Expire transitions a Pending proposal to Expired, either because its
// deadline passed or because a participant deleted it explicitly.
func (p *Proposal) Expire() error {
	if p.Status == ProposalExpired {
		return nil
	}
	if p.Status != ProposalPending {
		return ErrProposalNotPending
	}
	p.Status = ProposalExpired
	return nil
}

// CompletedProposal is the terminal record left behind once a proposal's
// transaction has been broadcast.
type CompletedProposal struct {
	ID                 string
	PolicyID           string
	OriginalProposalID string
	Txid               string
	RawTx              []byte
	BroadcastAt        time.Time
}

// Approval is one signer's partial-signature contribution to a Proposal. It
// is immutable once created; superseding an approval from the same signer
// means storing a new Approval and letting ApprovalSet's tie-break rule
// select the winner, never mutating the old one.
type Approval struct {
	ID           string
	ProposalID   string
	SignerPubKey [32]byte
	SignedPSBT   []byte
	CreatedAt    time.Time
}

// NewApproval validates that signedPSBT still targets the same unsigned
// transaction as the proposal (by comparing to unsignedPSBTHash, computed by
// the caller) and that the signer is named in the policy.
func NewApproval(
	id, proposalID string, signer [32]byte, signedPSBT []byte,
	createdAt time.Time, unsignedPSBTHash, thisPSBTHash []byte, policy *Policy,
) (*Approval, error) {
	if proposalID == "" {
		return nil, ErrApprovalMissingProposal
	}
	if !policy.HasSigner(signer) {
		return nil, ErrApprovalUnknownSigner
	}
	if !bytes.Equal(unsignedPSBTHash, thisPSBTHash) {
		return nil, ErrStaleApproval
	}
	return &Approval{
		ID:           id,
		ProposalID:   proposalID,
		SignerPubKey: signer,
		SignedPSBT:   signedPSBT,
		CreatedAt:    createdAt,
	}, nil
}

// ApprovalSet applies a tie-break rule while accumulating a proposal's
// approvals: per signer, keep only the latest by CreatedAt; on an exact
// tie, the lexicographically greater event id wins.
type ApprovalSet struct {
	bySigner map[[32]byte]*Approval
}

func NewApprovalSet() *ApprovalSet {
	return &ApprovalSet{bySigner: make(map[[32]byte]*Approval)}
}

// Add inserts a into the set, replacing any prior approval from the same
// signer only if a wins the tie-break.
func (s *ApprovalSet) Add(a *Approval) {
	existing, ok := s.bySigner[a.SignerPubKey]
	if !ok {
		s.bySigner[a.SignerPubKey] = a
		return
	}
	if a.CreatedAt.After(existing.CreatedAt) {
		s.bySigner[a.SignerPubKey] = a
		return
	}
	if a.CreatedAt.Equal(existing.CreatedAt) && a.ID > existing.ID {
		s.bySigner[a.SignerPubKey] = a
	}
}

// Latest returns one approval per contributing signer, in no particular
// order.
func (s *ApprovalSet) Latest() []*Approval {
	out := make([]*Approval, 0, len(s.bySigner))
	for _, a := range s.bySigner {
		out = append(out, a)
	}
	return out
}

// Count returns the number of distinct signers that have approved.
func (s *ApprovalSet) Count() int {
	return len(s.bySigner)
}
