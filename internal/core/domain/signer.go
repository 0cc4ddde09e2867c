package domain

import (
	"fmt"
	"time"
)

var (
	ErrSignerMissingFingerprint = fmt.Errorf("missing signer fingerprint")
	ErrSignerNotFound           = fmt.Errorf("signer not found")
	ErrSharedSignerNotFound     = fmt.Errorf("shared signer offer not found")
	ErrSharedSignerRevoked      = fmt.Errorf("shared signer offer already revoked")
)

// SignerType tags the signer variant. Every variant satisfies the Capability
// interface below through a shared struct field set rather than through
// separate concrete types, mirroring how the descriptor engine treats every
// leaf key uniformly regardless of where its private half lives.
type SignerType string

const (
	SignerSeed     SignerType = "seed"
	SignerAirGap   SignerType = "airgap"
	SignerHardware SignerType = "hardware"
	SignerMnemonic SignerType = "mnemonic"
)

// Capability is the single interface every signer variant exposes,
// regardless of where its private key material actually lives. A Hardware
// signer's Sign delegates to a pluggable transport; a Seed or Mnemonic
// signer's Sign wraps pkg/keys.Identity directly.
type Capability interface {
	Fingerprint() [4]byte
	Descriptors() map[Purpose]string
	Sign(psbt []byte) ([]byte, error)
}

// Purpose mirrors pkg/keys.Purpose without importing it, so the domain
// package has no dependency on the key-derivation package.
type Purpose uint32

// Signer is a named piece of signing capability owned by one identity. Name
// and DeviceType are UI-facing metadata; everything else is behavioral.
type Signer struct {
	ID                string
	Fingerprint       [4]byte
	Type              SignerType
	Name              string
	DeviceType        string
	DescriptorsByPurp map[Purpose]string
	Network           string
	CreatedAt         time.Time
}

func NewSigner(
	id string, fingerprint [4]byte, typ SignerType, name, deviceType, network string,
	descriptors map[Purpose]string, createdAt time.Time,
) (*Signer, error) {
	if fingerprint == ([4]byte{}) {
		return nil, ErrSignerMissingFingerprint
	}
	return &Signer{
		ID:                id,
		Fingerprint:       fingerprint,
		Type:              typ,
		Name:              name,
		DeviceType:        deviceType,
		DescriptorsByPurp: descriptors,
		Network:           network,
		CreatedAt:         createdAt,
	}, nil
}

// SharedSigner is an offer of a Signer's public descriptor material to
// another identity, so a recipient can include the sharer's key in a
// multisig policy without the sharer handing over private material.
type SharedSigner struct {
	OfferID   string
	SignerID  string
	Owner     [32]byte
	Recipient [32]byte
	Accepted  bool
	Revoked   bool
	CreatedAt time.Time
}

func NewSharedSignerOffer(offerID, signerID string, owner, recipient [32]byte, createdAt time.Time) *SharedSigner {
	return &SharedSigner{
		OfferID:   offerID,
		SignerID:  signerID,
		Owner:     owner,
		Recipient: recipient,
		CreatedAt: createdAt,
	}
}

func (s *SharedSigner) Accept() error {
	if s.Revoked {
		return ErrSharedSignerRevoked
	}
	s.Accepted = true
	return nil
}

func (s *SharedSigner) Revoke() error {
	if s.Revoked {
		return nil
	}
	s.Revoked = true
	return nil
}

// KeyAgentProfile announces a key agent's fee schedule and supported policy
// templates.
type KeyAgentProfile struct {
	PubKey          [32]byte
	Name            string
	FeePerSigSats   int64
	FeeAnnualSats   int64
	FeeBasisPoints  int32
	SupportedClass  []TemplateClass
	CreatedAt       time.Time
}

// KeyAgentSignerAd advertises a shareable xpub and its device/cost profile.
type KeyAgentSignerAd struct {
	PubKey     [32]byte
	Xpub       string
	DeviceType string
	FeeSats    int64
	CreatedAt  time.Time
}
