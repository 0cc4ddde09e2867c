package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/policy"
	"github.com/btc-vaults/vaultcore/pkg/psbtutil"
)

const (
	tagProposal = "smartvaults/proposal"
	tagApproval = "smartvaults/approval"
)

// ProposalService drives the draft → approve → finalize → broadcast
// pipeline. Calls are not serialized per policy: nothing here or in its
// callers takes a per-policy lock, so two concurrent DraftSpend calls on the
// same policy can select the same UTXOs.
type ProposalService struct {
	repoManager ports.RepoManager
	oracle      ports.ChainOracle

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewProposalService(repoManager ports.RepoManager, oracle ports.ChainOracle) *ProposalService {
	logFn := func(format string, a ...interface{}) {
		log.Debugf(fmt.Sprintf("proposal service: %s", format), a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		log.WithError(err).Warnf(fmt.Sprintf("proposal service: %s", format), a...)
	}
	return &ProposalService{repoManager, oracle, logFn, warnFn}
}

// DraftSpend compiles args.PolicyID's descriptor, selects UTXOs, drafts an
// unsigned PSBT, and persists a new Pending Proposal for it, freezing every
// input it selected.
func (s *ProposalService) DraftSpend(ctx context.Context, args DraftSpendArgs) (*domain.Proposal, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	p, err := s.repoManager.PolicyRepository().GetPolicy(ctx, args.PolicyID)
	if err != nil {
		return nil, err
	}
	network := keys.Network(p.Network)
	params, err := network.Params()
	if err != nil {
		return nil, err
	}
	desc, _, err := policy.Compile(policy.CompileArgs{Expression: p.Descriptor, Network: network})
	if err != nil {
		return nil, err
	}

	utxoSet, err := s.oracle.ListUTXOs(ctx, p.Descriptor)
	if err != nil {
		return nil, err
	}
	candidates := make([]psbtutil.UTXO, 0, len(utxoSet))
	for _, u := range utxoSet {
		hash, err := chainhash.NewHashFromStr(u.Txid)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, psbtutil.UTXO{
			OutPoint: wire.OutPoint{Hash: *hash, Index: u.Vout},
			Value:    u.Amount,
			PkScript: u.PkScript,
		})
	}

	dests := make([]psbtutil.Destination, 0, len(args.Destinations))
	for _, d := range args.Destinations {
		addr, err := btcutil.DecodeAddress(d.Address, params)
		if err != nil {
			return nil, err
		}
		script, err := txscript.PayToAddrScript(addr)
		if err != nil {
			return nil, err
		}
		dests = append(dests, psbtutil.Destination{PkScript: script, Amount: d.Amount})
	}

	draft, err := psbtutil.Draft(psbtutil.DraftArgs{
		Descriptor:     desc,
		Destinations:   dests,
		FeeRateSatVB:   args.FeeRateSatVb,
		AvailableUTXOs: candidates,
		PolicyPath:     args.PolicyPath,
		AllowFrozen:    args.AllowFrozen,
		IsFrozen: func(op wire.OutPoint) bool {
			frozen, _ := s.repoManager.ProposalRepository().IsFrozen(ctx, op.String())
			return frozen
		},
	})
	if err != nil {
		return nil, err
	}

	var unsigned bytes.Buffer
	if err := draft.Packet.Serialize(&unsigned); err != nil {
		return nil, err
	}
	id := hex.EncodeToString(policyTaggedHash(tagProposal, p.ID, unsigned.Bytes()))

	var expiresAt *time.Time
	now := time.Now()
	if p.ProposalExpiry != nil {
		t := now.Add(*p.ProposalExpiry)
		expiresAt = &t
	}

	proposal, err := domain.NewProposal(
		id, p.ID, domain.ProposalSpend, args.Description, unsigned.Bytes(),
		toDomainDestinations(args.Destinations), utxoStrings(draft.SpentInputs),
		args.FeeRateSatVb, now, expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if err := s.repoManager.ProposalRepository().AddProposal(ctx, proposal); err != nil {
		return nil, err
	}
	for _, op := range draft.SpentInputs {
		if err := s.repoManager.ProposalRepository().FreezeUTXO(ctx, domain.NewFrozenUTXO(op.String(), p.ID, proposal.ID)); err != nil {
			return nil, err
		}
	}
	s.log("drafted proposal %s for policy %s (%d sat fee)", proposal.ID, p.ID, draft.FeeSat)
	return proposal, nil
}

// Approve has cap add its signature to proposalID's unsigned PSBT and stores
// the resulting Approval. The service looks args.SignerID up in the signer
// repository to obtain the approving pubkey; the caller supplies the
// domain.Capability that actually produces the signature.
func (s *ProposalService) Approve(ctx context.Context, args ApproveArgs, cap domain.Capability) (*domain.Approval, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	proposal, err := s.repoManager.ProposalRepository().GetProposal(ctx, args.ProposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != domain.ProposalPending {
		return nil, domain.ErrProposalNotPending
	}
	p, err := s.repoManager.PolicyRepository().GetPolicy(ctx, proposal.PolicyID)
	if err != nil {
		return nil, err
	}
	signer, err := s.repoManager.SignerRepository().GetSigner(ctx, args.SignerID)
	if err != nil {
		return nil, err
	}
	signerPubKey, err := signerXOnlyPubKey(signer)
	if err != nil {
		return nil, err
	}

	signedPSBT, err := cap.Sign(proposal.UnsignedPSBT)
	if err != nil {
		return nil, err
	}

	unsignedHash, err := unsignedTxHash(proposal.UnsignedPSBT)
	if err != nil {
		return nil, err
	}
	signedHash, err := unsignedTxHash(signedPSBT)
	if err != nil {
		return nil, err
	}

	approval, err := domain.NewApproval(
		hex.EncodeToString(policyTaggedHash(tagApproval, proposal.ID, signedPSBT)),
		proposal.ID, signerPubKey, signedPSBT, time.Now(),
		unsignedHash, signedHash, p,
	)
	if err != nil {
		return nil, err
	}
	if err := s.repoManager.ProposalRepository().AddApproval(ctx, approval); err != nil {
		return nil, err
	}
	s.log("signer %s approved proposal %s", args.SignerID, proposal.ID)
	return approval, nil
}

// TryFinalizeAndBroadcast combines every accumulated approval, attempts to
// finalize the PSBT, and broadcasts it if finalization succeeds. It returns
// (nil, nil) when there are not yet enough approvals to finalize. Once a
// proposal is Completed, calling this again is a no-op that returns the
// original result, keeping broadcast idempotent.
func (s *ProposalService) TryFinalizeAndBroadcast(ctx context.Context, proposalID string) (*domain.CompletedProposal, error) {
	proposal, err := s.repoManager.ProposalRepository().GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status == domain.ProposalCompleted {
		return proposal.CompletedInfo, nil
	}
	if proposal.Status != domain.ProposalPending {
		return nil, domain.ErrProposalNotPending
	}

	approvals, err := s.repoManager.ProposalRepository().ListApprovals(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if len(approvals) == 0 {
		return nil, nil
	}

	approvalSet := domain.NewApprovalSet()
	for _, a := range approvals {
		approvalSet.Add(a)
	}

	packets := make([]*psbt.Packet, 0, approvalSet.Count())
	for _, a := range approvalSet.Latest() {
		pkt, err := psbt.NewFromRawBytes(bytes.NewReader(a.SignedPSBT), false)
		if err != nil {
			return nil, err
		}
		packets = append(packets, pkt)
	}
	combined, err := psbtutil.Combine(packets)
	if err != nil {
		return nil, err
	}
	tx, err := psbtutil.Finalize(combined)
	if err != nil {
		return nil, nil
	}

	var raw bytes.Buffer
	if err := tx.Serialize(&raw); err != nil {
		return nil, err
	}
	txid, err := s.oracle.Broadcast(ctx, raw.Bytes())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.repoManager.ProposalRepository().UpdateProposal(ctx, proposalID, func(p *domain.Proposal) (*domain.Proposal, error) {
		if err := p.Complete(txid, raw.Bytes(), now); err != nil {
			return nil, err
		}
		return p, nil
	}); err != nil {
		return nil, err
	}
	if err := s.repoManager.ProposalRepository().ReleaseUTXOs(ctx, proposalID); err != nil {
		return nil, err
	}
	s.log("proposal %s completed, txid %s", proposalID, txid)
	return &domain.CompletedProposal{ID: proposalID, PolicyID: proposal.PolicyID, OriginalProposalID: proposalID, Txid: txid, RawTx: raw.Bytes(), BroadcastAt: now}, nil
}

// Expire transitions a Pending proposal to Expired and releases its
// FrozenUTXOs, either due to the policy's timeout or an explicit delete.
func (s *ProposalService) Expire(ctx context.Context, proposalID string) error {
	if err := s.repoManager.ProposalRepository().UpdateProposal(ctx, proposalID, func(p *domain.Proposal) (*domain.Proposal, error) {
		if err := p.Expire(); err != nil {
			return nil, err
		}
		return p, nil
	}); err != nil {
		return err
	}
	return s.repoManager.ProposalRepository().ReleaseUTXOs(ctx, proposalID)
}

// SweepExpired expires every Pending proposal of policyID whose deadline has
// passed as of now, called periodically by SyncService.
func (s *ProposalService) SweepExpired(ctx context.Context, policyID string, now time.Time) error {
	proposals, err := s.repoManager.ProposalRepository().ListProposalsByPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	for _, p := range proposals {
		if p.Status == domain.ProposalPending && p.IsExpired(now) {
			if err := s.Expire(ctx, p.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func toDomainDestinations(dests []SpendDestination) []domain.ProposalDestination {
	out := make([]domain.ProposalDestination, len(dests))
	for i, d := range dests {
		out[i] = domain.ProposalDestination{Address: d.Address, Amount: d.Amount}
	}
	return out
}

func utxoStrings(ops []wire.OutPoint) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.String()
	}
	return out
}

func policyTaggedHash(tag, policyID string, psbtBytes []byte) []byte {
	h := policy.TaggedHash(tag, append([]byte(policyID), psbtBytes...))
	return h[:]
}

// unsignedTxHash hashes just the unsigned transaction portion of a
// (possibly partially signed) PSBT, so two versions of the same draft that
// differ only in attached signatures compare equal.
func unsignedTxHash(psbtBytes []byte) ([]byte, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(psbtBytes), false)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pkt.UnsignedTx.Serialize(&buf); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(buf.Bytes())
	return sum[:], nil
}

// signerXOnlyPubKey extracts the bare x-only public key from a Signer's
// first descriptor entry, the same key material namedKeysToXOnly resolves
// for a policy's public_keys field.
func signerXOnlyPubKey(s *domain.Signer) ([32]byte, error) {
	for _, expr := range s.DescriptorsByPurp {
		k := policy.StripKeyOrigin(expr)
		if len(k) != 64 {
			continue
		}
		b, err := hex.DecodeString(k)
		if err != nil {
			return [32]byte{}, err
		}
		var out [32]byte
		copy(out[:], b)
		return out, nil
	}
	return [32]byte{}, domain.ErrSignerMissingFingerprint
}
