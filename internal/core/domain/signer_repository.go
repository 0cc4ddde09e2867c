package domain

import "context"

// SignerRepository persists Signers owned by the local identity and the
// SharedSigner offers exchanged with others.
type SignerRepository interface {
	AddSigner(ctx context.Context, signer *Signer) error
	GetSigner(ctx context.Context, signerID string) (*Signer, error)
	ListSigners(ctx context.Context) ([]*Signer, error)
	DeleteSigner(ctx context.Context, signerID string) error

	AddSharedSignerOffer(ctx context.Context, offer *SharedSigner) error
	GetSharedSignerOffer(ctx context.Context, offerID string) (*SharedSigner, error)
	ListSharedSignerOffers(ctx context.Context) ([]*SharedSigner, error)
	UpdateSharedSignerOffer(
		ctx context.Context, offerID string, updateFn func(s *SharedSigner) (*SharedSigner, error),
	) error

	AddKeyAgentProfile(ctx context.Context, profile *KeyAgentProfile) error
	ListKeyAgentProfiles(ctx context.Context) ([]*KeyAgentProfile, error)
}
