package application

import (
	"fmt"
	"time"
)

// PolicyArgs is the input to PolicyService.CreatePolicy: either a compiled
// descriptor or a miniscript policy expression the policy engine compiles
// first.
type PolicyArgs struct {
	Name           string
	Description    string
	Descriptor     string
	Network        string
	ProposalExpiry *time.Duration
}

func (a PolicyArgs) validate() error {
	if a.Name == "" {
		return fmt.Errorf("missing policy name")
	}
	if a.Descriptor == "" {
		return fmt.Errorf("missing policy descriptor")
	}
	if a.Network == "" {
		return fmt.Errorf("missing network")
	}
	return nil
}

// DraftSpendArgs is the input to ProposalService.DraftSpend.
type DraftSpendArgs struct {
	PolicyID     string
	Destinations []SpendDestination
	FeeRateSatVb float64
	UTXOs        []string
	PolicyPath   string
	AllowFrozen  bool
	Description  string
}

func (a DraftSpendArgs) validate() error {
	if a.PolicyID == "" {
		return fmt.Errorf("missing policy id")
	}
	if len(a.Destinations) == 0 {
		return fmt.Errorf("missing destinations")
	}
	if a.FeeRateSatVb <= 0 {
		return fmt.Errorf("invalid fee rate")
	}
	return nil
}

// SpendDestination is one output of a drafted spend.
type SpendDestination struct {
	Address string
	Amount  int64
}

// ApproveArgs is the input to ProposalService.Approve.
type ApproveArgs struct {
	ProposalID string
	SignerID   string
}

func (a ApproveArgs) validate() error {
	if a.ProposalID == "" {
		return fmt.Errorf("missing proposal id")
	}
	if a.SignerID == "" {
		return fmt.Errorf("missing signer id")
	}
	return nil
}

// InviteArgs is the input to SharingService.Invite.
type InviteArgs struct {
	PolicyID  string
	Recipient [32]byte
	Watcher   bool
}

func (a InviteArgs) validate() error {
	if a.PolicyID == "" {
		return fmt.Errorf("missing policy id")
	}
	if a.Recipient == ([32]byte{}) {
		return fmt.Errorf("missing recipient")
	}
	return nil
}
