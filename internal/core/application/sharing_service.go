package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
	"github.com/btc-vaults/vaultcore/pkg/envelope"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/policy"
)

// inviteContent is KindVaultInvite's decrypted payload.
// Role is "participant" (receives SharedKey) or "watcher" (descriptor only).
type inviteContent struct {
	PolicyID    string `json:"policy_id"`
	Invitee     string `json:"invitee"`
	Descriptor  string `json:"descriptor"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Network     string `json:"network"`
	Role        string `json:"role"`
	SharedKey   string `json:"shared_key,omitempty"`
}

// joinContent is KindVaultJoin's decrypted payload: a joiner's acknowledgement
// so existing members learn the joiner's pubkey.
type joinContent struct {
	PolicyID string `json:"policy_id"`
	Joiner   string `json:"joiner"`
}

// sharedSignerOfferContent is KindSharedSignerOffer's decrypted payload.
type sharedSignerOfferContent struct {
	PolicyID    string          `json:"policy_id"`
	KeyAgent    bool            `json:"key_agent"`
	SignerID    string          `json:"signer_id"`
	Descriptors map[uint32]string `json:"descriptors"`
}

// sharedSignerAcceptContent is KindSharedSignerAccept's decrypted payload.
type sharedSignerAcceptContent struct {
	PolicyID string `json:"policy_id"`
	Signer   string `json:"signer"`
}

// keyAgentProfileContent is KindKeyAgentProfile's decrypted (unencrypted)
// payload, published so prospective clients can discover key agents.
type keyAgentProfileContent struct {
	Name             string   `json:"name"`
	FeePerSigSats    int64    `json:"fee_per_sig_sats"`
	FeeAnnualSats    int64    `json:"fee_annual_sats"`
	FeeBasisPoints   int32    `json:"fee_basis_points"`
	SupportedClasses []string `json:"supported_classes"`
}

// keyAgentSignerContent is KindKeyAgentSigner's decrypted (unencrypted)
// payload advertising a shareable xpub.
type keyAgentSignerContent struct {
	DeviceType string `json:"device_type"`
	FeeSats    int64  `json:"fee_sats"`
	Xpub       string `json:"xpub"`
}

// SharingService implements the access-control flows: policy invites and
// joins, signer sharing (offer/accept/revoke), and key-agent discovery.
// Every outbound event is signed with the caller-supplied identity and
// handed to a RelayClient; every inbound one is expected to have already
// passed SyncService's verify/decrypt/schema pipeline before reaching here.
type SharingService struct {
	repoManager ports.RepoManager
	relay       ports.RelayClient

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewSharingService(repoManager ports.RepoManager, relay ports.RelayClient) *SharingService {
	logFn := func(format string, a ...interface{}) {
		log.Debugf(fmt.Sprintf("sharing service: %s", format), a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		log.WithError(err).Warnf(fmt.Sprintf("sharing service: %s", format), a...)
	}
	return &SharingService{repoManager, relay, logFn, warnFn}
}

// Invite publishes a direct-encrypted VaultInvite to args.Recipient, carrying
// the policy's descriptor and, for a participant (not a watcher), its
// SharedKey.
func (s *SharingService) Invite(ctx context.Context, args InviteArgs, id *keys.Identity) (*envelope.Event, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	p, err := s.repoManager.PolicyRepository().GetPolicy(ctx, args.PolicyID)
	if err != nil {
		return nil, err
	}

	role := "participant"
	var sharedKeyHex string
	if args.Watcher {
		role = "watcher"
	} else {
		sk, err := s.repoManager.PolicyRepository().GetSharedKey(ctx, args.PolicyID)
		if err != nil {
			return nil, err
		}
		sharedKeyHex = hex.EncodeToString(sk.Key[:])
	}

	payload := inviteContent{
		PolicyID:    p.ID,
		Invitee:     hex.EncodeToString(args.Recipient[:]),
		Descriptor:  p.Descriptor,
		Name:        p.Name,
		Description: p.Description,
		Network:     p.Network,
		Role:        role,
		SharedKey:   sharedKeyHex,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	recipientPub, err := schnorr.ParsePubKey(args.Recipient[:])
	if err != nil {
		return nil, err
	}
	cipherContent, err := envelope.EncryptDirect(id, recipientPub, string(content))
	if err != nil {
		return nil, err
	}

	ev, err := envelope.New(id, envelope.KindVaultInvite, []envelope.Tag{
		envelope.PTag(args.Recipient),
		envelope.PolicyTag(p.ID),
	}, cipherContent, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if err := s.relay.Publish(ctx, ev); err != nil {
		return nil, err
	}
	s.log("invited %s to policy %s as %s", payload.Invitee, p.ID, role)
	return ev, nil
}

// Join decrypts an inbound VaultInvite event, compiles and stores its
// policy, stores the SharedKey when the invite granted a participant role,
// and publishes an acknowledging VaultJoin back to the inviter.
func (s *SharingService) Join(ctx context.Context, inviteEv *envelope.Event, id *keys.Identity) (*domain.Policy, error) {
	senderPub, err := schnorr.ParsePubKey(inviteEv.Author[:])
	if err != nil {
		return nil, err
	}
	plaintext, err := envelope.DecryptDirect(id, senderPub, inviteEv.Content)
	if err != nil {
		return nil, err
	}
	var payload inviteContent
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		return nil, err
	}

	network := keys.Network(payload.Network)
	desc, class, err := policy.Compile(policy.CompileArgs{Expression: payload.Descriptor, Network: network})
	if err != nil {
		return nil, err
	}
	idBytes, err := policy.PolicyID(desc.Raw, network)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(idBytes[:]) != payload.PolicyID {
		return nil, envelope.ErrSchemaInvalid
	}

	publicKeys, err := namedKeysToXOnly(desc.NamedKeys())
	if err != nil {
		return nil, err
	}
	p, err := domain.NewPolicy(
		payload.PolicyID, payload.Name, payload.Description, desc.Raw, payload.Network,
		publicKeys, classToDomain[class], false, desc.Script.AbsoluteTimelock(), nil, time.Now(),
	)
	if err != nil {
		return nil, err
	}
	if err := s.repoManager.PolicyRepository().AddPolicy(ctx, p); err != nil && err != domain.ErrPolicyAlreadyExists {
		return nil, err
	}

	if payload.Role == "participant" && payload.SharedKey != "" {
		keyBytes, err := hex.DecodeString(payload.SharedKey)
		if err != nil {
			return nil, err
		}
		var key [32]byte
		copy(key[:], keyBytes)
		if err := s.repoManager.PolicyRepository().AddSharedKey(ctx, &domain.SharedKey{PolicyID: p.ID, Key: key}); err != nil {
			s.warn(err, "shared key for policy %s already cached", p.ID)
		}
	}

	joinPayload := joinContent{PolicyID: p.ID, Joiner: id.XOnlyPubKeyHex()}
	content, err := json.Marshal(joinPayload)
	if err != nil {
		return nil, err
	}
	cipherContent, err := envelope.EncryptDirect(id, senderPub, string(content))
	if err != nil {
		return nil, err
	}
	joinEv, err := envelope.New(id, envelope.KindVaultJoin, []envelope.Tag{
		envelope.PTag(inviteEv.Author),
		envelope.ETag(inviteEv.ID),
		envelope.PolicyTag(p.ID),
	}, cipherContent, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if err := s.relay.Publish(ctx, joinEv); err != nil {
		return nil, err
	}
	s.log("joined policy %s (%s)", p.ID, p.TemplateClass)
	return p, nil
}

// ShareSigner offers signerID's public descriptor material to recipient,
// without transferring any private key material.
func (s *SharingService) ShareSigner(ctx context.Context, id *keys.Identity, signerID string, recipient [32]byte, policyID string, asKeyAgent bool) (*domain.SharedSigner, error) {
	signer, err := s.repoManager.SignerRepository().GetSigner(ctx, signerID)
	if err != nil {
		return nil, err
	}

	descriptors := make(map[uint32]string, len(signer.DescriptorsByPurp))
	for purpose, desc := range signer.DescriptorsByPurp {
		descriptors[uint32(purpose)] = desc
	}
	payload := sharedSignerOfferContent{
		PolicyID:    policyID,
		KeyAgent:    asKeyAgent,
		SignerID:    signer.ID,
		Descriptors: descriptors,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	recipientPub, err := schnorr.ParsePubKey(recipient[:])
	if err != nil {
		return nil, err
	}
	cipherContent, err := envelope.EncryptDirect(id, recipientPub, string(content))
	if err != nil {
		return nil, err
	}

	offerID := hex.EncodeToString(policyTaggedHash("smartvaults/signer-offer", signer.ID, []byte(hex.EncodeToString(recipient[:]))))
	ev, err := envelope.New(id, envelope.KindSharedSignerOffer, []envelope.Tag{
		envelope.PTag(recipient),
	}, cipherContent, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if err := s.relay.Publish(ctx, ev); err != nil {
		return nil, err
	}

	offer := domain.NewSharedSignerOffer(offerID, signer.ID, id.XOnlyPubKey(), recipient, time.Now())
	if err := s.repoManager.SignerRepository().AddSharedSignerOffer(ctx, offer); err != nil {
		return nil, err
	}
	s.log("shared signer %s with %x", signer.ID, recipient)
	return offer, nil
}

// AcceptSharedSignerOffer marks offerID accepted and publishes the
// corresponding SharedSignerAccept so the offering identity learns of the
// acceptance.
func (s *SharingService) AcceptSharedSignerOffer(ctx context.Context, offerID string, id *keys.Identity) error {
	offer, err := s.repoManager.SignerRepository().GetSharedSignerOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if err := s.repoManager.SignerRepository().UpdateSharedSignerOffer(ctx, offerID, func(o *domain.SharedSigner) (*domain.SharedSigner, error) {
		if err := o.Accept(); err != nil {
			return nil, err
		}
		return o, nil
	}); err != nil {
		return err
	}

	payload := sharedSignerAcceptContent{PolicyID: "", Signer: offer.SignerID}
	content, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ownerPub, err := schnorr.ParsePubKey(offer.Owner[:])
	if err != nil {
		return err
	}
	cipherContent, err := envelope.EncryptDirect(id, ownerPub, string(content))
	if err != nil {
		return err
	}
	ev, err := envelope.New(id, envelope.KindSharedSignerAccept, []envelope.Tag{
		envelope.PTag(offer.Owner),
	}, cipherContent, time.Now().Unix())
	if err != nil {
		return err
	}
	return s.relay.Publish(ctx, ev)
}

// RevokeSharedSignerOffer marks offerID revoked. A revoked offer can no
// longer be accepted; it is not un-published, since a relay is not required
// to honor deletes.
func (s *SharingService) RevokeSharedSignerOffer(ctx context.Context, offerID string) error {
	return s.repoManager.SignerRepository().UpdateSharedSignerOffer(ctx, offerID, func(o *domain.SharedSigner) (*domain.SharedSigner, error) {
		if err := o.Revoke(); err != nil {
			return nil, err
		}
		return o, nil
	})
}

// PublishKeyAgentProfile announces id's fee schedule and supported templates
// in the clear, using the dedicated category tag key agents advertise under.
func (s *SharingService) PublishKeyAgentProfile(ctx context.Context, id *keys.Identity, profile *domain.KeyAgentProfile) error {
	classes := make([]string, len(profile.SupportedClass))
	for i, c := range profile.SupportedClass {
		classes[i] = string(c)
	}
	payload := keyAgentProfileContent{
		Name:             profile.Name,
		FeePerSigSats:    profile.FeePerSigSats,
		FeeAnnualSats:    profile.FeeAnnualSats,
		FeeBasisPoints:   profile.FeeBasisPoints,
		SupportedClasses: classes,
	}
	content, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev, err := envelope.New(id, envelope.KindKeyAgentProfile, []envelope.Tag{
		envelope.CategoryTag("key-agent"),
	}, string(content), time.Now().Unix())
	if err != nil {
		return err
	}
	if err := s.relay.Publish(ctx, ev); err != nil {
		return err
	}
	return s.repoManager.SignerRepository().AddKeyAgentProfile(ctx, profile)
}

// ListKeyAgentProfiles returns every stored key-agent profile. Profiles are
// stored only by PublishKeyAgentProfile; profiles published by other agents
// are not ingested by sync and so are not listed.
func (s *SharingService) ListKeyAgentProfiles(ctx context.Context) ([]*domain.KeyAgentProfile, error) {
	return s.repoManager.SignerRepository().ListKeyAgentProfiles(ctx)
}

// PublishKeyAgentSignerAd advertises a shareable xpub for hire, in the
// clear, tagged for key-agent discovery.
func (s *SharingService) PublishKeyAgentSignerAd(ctx context.Context, id *keys.Identity, ad *domain.KeyAgentSignerAd) (*envelope.Event, error) {
	payload := keyAgentSignerContent{DeviceType: ad.DeviceType, FeeSats: ad.FeeSats, Xpub: ad.Xpub}
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	ev, err := envelope.New(id, envelope.KindKeyAgentSigner, []envelope.Tag{
		envelope.CategoryTag("key-agent"),
	}, string(content), time.Now().Unix())
	if err != nil {
		return nil, err
	}
	if err := s.relay.Publish(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
