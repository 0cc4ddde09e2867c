package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
	"github.com/btc-vaults/vaultcore/pkg/envelope"
	"github.com/btc-vaults/vaultcore/pkg/keys"
)

// SyncService runs the event pipeline: relay → dedup-by-id → signature
// verify → decrypt → schema validate → store → notify, plus a
// periodic chain-oracle poll per known policy. Everything it learns is
// projected as a domain.Notification delivered at-least-once on
// NotificationService's channel.
type SyncService struct {
	repoManager ports.RepoManager
	relay       ports.RelayClient
	oracle      ports.ChainOracle
	identity    *keys.Identity
	proposals   *ProposalService

	mu       sync.Mutex
	balances map[string]ports.Balance

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewSyncService(repoManager ports.RepoManager, relay ports.RelayClient, oracle ports.ChainOracle, identity *keys.Identity, proposals *ProposalService) *SyncService {
	logFn := func(format string, a ...interface{}) {
		log.Debugf(fmt.Sprintf("sync service: %s", format), a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		log.WithError(err).Warnf(fmt.Sprintf("sync service: %s", format), a...)
	}
	return &SyncService{
		repoManager: repoManager,
		relay:       relay,
		oracle:      oracle,
		identity:    identity,
		proposals:   proposals,
		balances:    make(map[string]ports.Balance),
		log:         logFn,
		warn:        warnFn,
	}
}

// Run connects to relayURLs, subscribes with subscriptionFilter, and
// processes events until ctx is cancelled, in which case it returns
// ctx.Err(), or until the relay's event stream closes, in which case it
// returns nil.
func (s *SyncService) Run(ctx context.Context, relayURLs []string) error {
	if err := s.relay.Connect(ctx, relayURLs); err != nil {
		return err
	}
	filter, err := s.subscriptionFilter(ctx)
	if err != nil {
		return err
	}
	events, err := s.relay.Subscribe(ctx, filter)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.processEvent(ctx, ev); err != nil {
				s.warn(err, "dropping event %s (kind %s)", ev.IDHex(), ev.Kind)
			}
		}
	}
}

// subscriptionFilter builds the outbound filter from every policy_id this
// identity already knows, and from nothing else: events addressed to this
// identity's pubkey that carry no known policy tag are not matched. With no
// known policies the filter carries no policy constraint.
func (s *SyncService) subscriptionFilter(ctx context.Context) (envelope.Filter, error) {
	policies, err := s.repoManager.PolicyRepository().ListPolicies(ctx)
	if err != nil {
		return envelope.Filter{}, err
	}
	policyIDs := make([]string, len(policies))
	for i, p := range policies {
		policyIDs[i] = p.ID
	}
	return envelope.Filter{
		PolicyIDs: policyIDs,
		Authors:   nil,
	}, nil
}

// processEvent runs one event through the full pipeline: dedup, verify,
// decrypt, schema validate, store, then dispatch by kind.
func (s *SyncService) processEvent(ctx context.Context, ev *envelope.Event) error {
	already, err := s.repoManager.EventRepository().HasEvent(ctx, ev.IDHex())
	if err != nil {
		return err
	}
	if already {
		return nil
	}
	if err := ev.Verify(); err != nil {
		return err
	}

	plaintext, err := s.decrypt(ctx, ev)
	if err != nil {
		return err
	}
	if err := envelope.ValidateSchema(ev.Kind, plaintext); err != nil {
		return err
	}

	stored := *ev
	stored.Content = plaintext
	if err := s.repoManager.EventRepository().StoreEvent(ctx, &stored); err != nil {
		return err
	}

	return s.dispatch(ctx, &stored)
}

// decrypt returns ev's plaintext content according to its kind's fixed
// encryption mode.
func (s *SyncService) decrypt(ctx context.Context, ev *envelope.Event) (string, error) {
	switch ev.Kind.EncryptionMode() {
	case envelope.EncryptionNone:
		return ev.Content, nil

	case envelope.EncryptionDirect:
		authorPub, err := schnorr.ParsePubKey(ev.Author[:])
		if err != nil {
			return "", err
		}
		return envelope.DecryptDirect(s.identity, authorPub, ev.Content)

	case envelope.EncryptionShared:
		policyID := ev.FirstTagValue("policy")
		if policyID == "" {
			return "", envelope.ErrMissingTag
		}
		sk, err := s.repoManager.PolicyRepository().GetSharedKey(ctx, policyID)
		if err != nil {
			return "", err
		}
		return envelope.DecryptShared(sk.Key, ev.Content)

	default:
		return "", envelope.ErrUnknownKind
	}
}

// dispatch acts on a validated, decrypted event by kind. Only
// CompletedProposal changes domain state (the proposal is marked completed
// and its UTXOs released); Proposal, Approval and the other handled kinds
// only raise a notification.
func (s *SyncService) dispatch(ctx context.Context, ev *envelope.Event) error {
	switch ev.Kind {
	case envelope.KindCompletedProposal:
		return s.onCompletedProposal(ctx, ev)
	case envelope.KindApproval:
		return s.notify(domain.ProposalUpdated, ev.FirstTagValue("policy"), ev.FirstTagValue("proposal"), "approval received")
	case envelope.KindProposal:
		return s.notify(domain.ProposalCreated, ev.FirstTagValue("policy"), ev.FirstTagValue("proposal"), "proposal received")
	case envelope.KindPolicyAnnounce:
		return s.notify(domain.PolicyAdded, ev.FirstTagValue("policy"), "", "policy announced")
	case envelope.KindSharedSignerOffer, envelope.KindSharedSignerAccept:
		return s.notify(domain.SignerShared, ev.FirstTagValue("policy"), "", "signer offer event")
	case envelope.KindLabel:
		return s.notify(domain.LabelUpdated, ev.FirstTagValue("policy"), "", "label updated")
	default:
		return nil
	}
}

func (s *SyncService) onCompletedProposal(ctx context.Context, ev *envelope.Event) error {
	var payload struct {
		ProposalID string `json:"proposal_id"`
		Txid       string `json:"txid"`
		RawTx      string `json:"raw_tx"`
	}
	if err := json.Unmarshal([]byte(ev.Content), &payload); err != nil {
		return err
	}
	rawTx, err := hex.DecodeString(payload.RawTx)
	if err != nil {
		return err
	}
	err = s.repoManager.ProposalRepository().UpdateProposal(ctx, payload.ProposalID, func(p *domain.Proposal) (*domain.Proposal, error) {
		if cerr := p.Complete(payload.Txid, rawTx, time.Now()); cerr != nil && cerr != domain.ErrProposalNotPending {
			return nil, cerr
		}
		return p, nil
	})
	if err != nil {
		return err
	}
	if err := s.repoManager.ProposalRepository().ReleaseUTXOs(ctx, payload.ProposalID); err != nil {
		return err
	}
	return s.notify(domain.TxBroadcast, ev.FirstTagValue("policy"), payload.ProposalID, payload.Txid)
}

func (s *SyncService) notify(t domain.NotificationType, policyID, proposalID, detail string) error {
	ch := s.repoManager.PolicyRepository().GetNotificationChannel()
	select {
	case ch <- domain.Notification{Type: t, PolicyID: policyID, ProposalID: proposalID, Detail: detail}:
	default:
		s.warn(fmt.Errorf("notification channel full"), "dropped %s notification for policy %s", t, policyID)
	}
	return nil
}

// PollChain refreshes policyID's balance and UTXO set from the chain oracle
// and emits BalanceChanged when it differs from the last observed value.
func (s *SyncService) PollChain(ctx context.Context, policyID string) error {
	p, err := s.repoManager.PolicyRepository().GetPolicy(ctx, policyID)
	if err != nil {
		return err
	}
	balance, err := s.oracle.GetBalance(ctx, p.Descriptor)
	if err != nil {
		return err
	}

	s.mu.Lock()
	prev, seen := s.balances[policyID]
	s.balances[policyID] = *balance
	s.mu.Unlock()

	if !seen || prev != *balance {
		return s.notify(domain.BalanceChanged, policyID, "", fmt.Sprintf("confirmed=%d", balance.Confirmed))
	}
	return nil
}

// RunPeriodicMaintenance polls every known policy's chain state and sweeps
// expired proposals every interval, until ctx is cancelled.
func (s *SyncService) RunPeriodicMaintenance(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			policies, err := s.repoManager.PolicyRepository().ListPolicies(ctx)
			if err != nil {
				s.warn(err, "listing policies for maintenance")
				continue
			}
			now := time.Now()
			for _, p := range policies {
				if err := s.PollChain(ctx, p.ID); err != nil {
					s.warn(err, "polling chain for policy %s", p.ID)
				}
				if s.proposals != nil {
					if err := s.proposals.SweepExpired(ctx, p.ID, now); err != nil {
						s.warn(err, "sweeping expired proposals for policy %s", p.ID)
					}
				}
			}
		}
	}
}
