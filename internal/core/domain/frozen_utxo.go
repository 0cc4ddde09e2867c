package domain

import "fmt"

var ErrUtxoAlreadyFrozen = fmt.Errorf("utxo already frozen by another proposal")

// FrozenUTXO marks a UTXO as tentatively consumed by a pending proposal.
// Freeing it requires the owning proposal's terminal transition (Complete or
// Expire); a UTXO frozen with no ProposalID (a manual freeze, e.g. dust the
// operator wants excluded from coin selection) is only freed explicitly.
type FrozenUTXO struct {
	UtxoHash   string
	PolicyID   string
	ProposalID string
}

func NewFrozenUTXO(utxoHash, policyID, proposalID string) *FrozenUTXO {
	return &FrozenUTXO{UtxoHash: utxoHash, PolicyID: policyID, ProposalID: proposalID}
}

// ReleasedBy reports whether the terminal transition of proposalID should
// free this UTXO.
func (f *FrozenUTXO) ReleasedBy(proposalID string) bool {
	return f.ProposalID == proposalID
}
