package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/policy"
)

// classToDomain maps pkg/policy's structural classification to the domain
// layer's stored TemplateClass, so the descriptor engine's vocabulary never
// leaks into persistence directly.
var classToDomain = map[policy.TemplateClass]domain.TemplateClass{
	policy.Singlesig:            domain.TemplateSinglesig,
	policy.MultisigKofN:         domain.TemplateMultisigKofN,
	policy.SocialRecovery:       domain.TemplateSocialRecovery,
	policy.HoldLock:             domain.TemplateHoldLock,
	policy.DecayingMultisig:     domain.TemplateDecayingMultisig,
	policy.CollaborativeCustody: domain.TemplateCollaborativeCustody,
	policy.Custom:               domain.TemplateCustom,
}

// PolicyService compiles, stores, and lists custody Policies, and manages
// the one-time distribution of each policy's SharedKey.
//
//   - CreatePolicy compiles a descriptor or miniscript expression, computes
//     its content-addressed id, and persists it.
//   - GenerateSharedKey creates and stores a policy's SharedKey exactly once.
//   - ListPolicies / GetPolicy / DeletePolicy expose the repository.
type PolicyService struct {
	repoManager ports.RepoManager

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewPolicyService(repoManager ports.RepoManager) *PolicyService {
	logFn := func(format string, a ...interface{}) {
		log.Debugf(fmt.Sprintf("policy service: %s", format), a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		log.WithError(err).Warnf(fmt.Sprintf("policy service: %s", format), a...)
	}
	return &PolicyService{repoManager, logFn, warnFn}
}

// CreatePolicy compiles args.Descriptor (a raw descriptor or miniscript
// expression) against args.Network and persists the resulting Policy.
func (ps *PolicyService) CreatePolicy(ctx context.Context, args PolicyArgs) (*domain.Policy, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	network := keys.Network(args.Network)

	desc, class, err := policy.Compile(policy.CompileArgs{
		Expression: args.Descriptor,
		Network:    network,
	})
	if err != nil {
		return nil, err
	}

	idBytes, err := policy.PolicyID(desc.Raw, network)
	if err != nil {
		return nil, err
	}
	id := hex.EncodeToString(idBytes[:])

	publicKeys, err := namedKeysToXOnly(desc.NamedKeys())
	if err != nil {
		return nil, err
	}

	p, err := domain.NewPolicy(
		id, args.Name, args.Description, desc.Raw, args.Network,
		publicKeys, classToDomain[class], false, desc.Script.AbsoluteTimelock(),
		args.ProposalExpiry, time.Now(),
	)
	if err != nil {
		return nil, err
	}

	if err := ps.repoManager.PolicyRepository().AddPolicy(ctx, p); err != nil {
		return nil, err
	}
	ps.log("created policy %s (%s)", p.ID, p.TemplateClass)
	return p, nil
}

// GenerateSharedKey creates policy_id's SharedKey and stores it. It is an
// error to call this a second time for the same policy — the cache is
// write-once.
func (ps *PolicyService) GenerateSharedKey(ctx context.Context, policyID string) (*domain.SharedKey, error) {
	if _, err := ps.repoManager.PolicyRepository().GetPolicy(ctx, policyID); err != nil {
		return nil, err
	}
	var key [32]byte
	if err := randRead(key[:]); err != nil {
		return nil, err
	}
	sk := &domain.SharedKey{PolicyID: policyID, Key: key}
	if err := ps.repoManager.PolicyRepository().AddSharedKey(ctx, sk); err != nil {
		return nil, err
	}
	return sk, nil
}

func (ps *PolicyService) GetPolicy(ctx context.Context, policyID string) (*domain.Policy, error) {
	return ps.repoManager.PolicyRepository().GetPolicy(ctx, policyID)
}

func (ps *PolicyService) ListPolicies(ctx context.Context) ([]*domain.Policy, error) {
	return ps.repoManager.PolicyRepository().ListPolicies(ctx)
}

func (ps *PolicyService) DeletePolicy(ctx context.Context, policyID string) error {
	return ps.repoManager.PolicyRepository().DeletePolicy(ctx, policyID)
}

func namedKeysToXOnly(keys []string) ([][32]byte, error) {
	out := make([][32]byte, 0, len(keys))
	for _, k := range keys {
		k = policy.StripKeyOrigin(k)
		if len(k) != 64 {
			// xpub-based keys aren't a fixed-size xonly point; public_keys
			// only tracks bare signer keys.
			continue
		}
		b, err := hex.DecodeString(k)
		if err != nil {
			return nil, err
		}
		var x [32]byte
		copy(x[:], b)
		out = append(out, x)
	}
	return out, nil
}
