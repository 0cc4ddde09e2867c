package domain

import (
	"fmt"
	"time"
)

var (
	ErrPolicyMissingName       = fmt.Errorf("missing policy name")
	ErrPolicyMissingDescriptor = fmt.Errorf("missing policy descriptor")
	ErrPolicyAlreadyExists     = fmt.Errorf("policy already exists")
	ErrPolicyNotFound          = fmt.Errorf("policy not found")
	ErrSharedKeyAlreadyExists  = fmt.Errorf("shared key already exists for this policy")
	ErrSharedKeyNotFound       = fmt.Errorf("shared key not found")
)

// TemplateClass mirrors pkg/policy.TemplateClass without importing it: the
// domain layer stores the classification as data, it does not recompute it.
type TemplateClass string

const (
	TemplateSinglesig            TemplateClass = "singlesig"
	TemplateMultisigKofN         TemplateClass = "multisig_k_of_n"
	TemplateSocialRecovery       TemplateClass = "social_recovery"
	TemplateHoldLock             TemplateClass = "hold_lock"
	TemplateDecayingMultisig     TemplateClass = "decaying_multisig"
	TemplateCollaborativeCustody TemplateClass = "collaborative_custody"
	TemplateCustom               TemplateClass = "custom"
)

// Policy is the immutable custody arrangement every proposal, approval and
// shared key is scoped to. Its id is a function of its descriptor and
// network alone, so two participants compiling the same logical policy
// arrive at the same Policy without coordination.
type Policy struct {
	ID             string
	Name           string
	Description    string
	Descriptor     string
	Network        string
	PublicKeys     [][32]byte
	TemplateClass  TemplateClass
	UsesKeyAgent   bool
	AbsoluteLock   uint32
	ProposalExpiry *time.Duration
	CreatedAt      time.Time
}

// NewPolicy builds a Policy from already-compiled descriptor material. The
// caller (application.PolicyService) is responsible for running the
// descriptor through pkg/policy.Compile first; the domain layer only
// enforces the invariants that must hold regardless of how the descriptor
// was produced.
func NewPolicy(
	id, name, description, descriptor, network string,
	publicKeys [][32]byte, class TemplateClass, usesKeyAgent bool,
	absoluteLock uint32, expiry *time.Duration, createdAt time.Time,
) (*Policy, error) {
	if name == "" {
		return nil, ErrPolicyMissingName
	}
	if descriptor == "" {
		return nil, ErrPolicyMissingDescriptor
	}
	return &Policy{
		ID:             id,
		Name:           name,
		Description:    description,
		Descriptor:     descriptor,
		Network:        network,
		PublicKeys:     publicKeys,
		TemplateClass:  class,
		UsesKeyAgent:   usesKeyAgent,
		AbsoluteLock:   absoluteLock,
		ProposalExpiry: expiry,
		CreatedAt:      createdAt,
	}, nil
}

// HasSigner reports whether pubkey is one of the policy's named signers.
func (p *Policy) HasSigner(pubkey [32]byte) bool {
	for _, k := range p.PublicKeys {
		if k == pubkey {
			return true
		}
	}
	return false
}

// SharedKey is the per-policy symmetric key every event scoped to that
// policy is encrypted under. Write-once: a repository must reject a second
// SharedKey for a policy_id already holding one.
type SharedKey struct {
	PolicyID string
	Key      [32]byte
}
