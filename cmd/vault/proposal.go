package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/config"
	"github.com/btc-vaults/vaultcore/internal/core/application"
	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/core/ports"
	"github.com/btc-vaults/vaultcore/internal/infrastructure/chainoracle/electrum"
	"github.com/btc-vaults/vaultcore/internal/infrastructure/signing/seed"
	"github.com/btc-vaults/vaultcore/pkg/keys"
)

var (
	draftPolicyID    string
	draftTo          []string
	draftFeeRate     float64
	draftPolicyPath  string
	draftAllowFrozen bool
	draftDescription string

	approveProposalID string
	approveSignerID   string
	approvePassword   string

	finalizeProposalID string

	listProposalPolicyID string

	expireProposalID string

	proposalDraftCmd = &cobra.Command{
		Use:   "draft",
		Short: "draft an unsigned spend from a policy's UTXOs",
		RunE:  proposalDraft,
	}
	proposalApproveCmd = &cobra.Command{
		Use:   "approve",
		Short: "sign a pending proposal with one of the local identity's signers",
		RunE:  proposalApprove,
	}
	proposalFinalizeCmd = &cobra.Command{
		Use:   "finalize",
		Short: "combine accumulated approvals and broadcast if the proposal is finalizable",
		RunE:  proposalFinalize,
	}
	proposalListCmd = &cobra.Command{
		Use:   "list",
		Short: "list a policy's proposals",
		RunE:  proposalList,
	}
	proposalGetCmd = &cobra.Command{
		Use:   "get <proposal-id>",
		Short: "print one proposal",
		Args:  cobra.ExactArgs(1),
		RunE:  proposalGet,
	}
	proposalExpireCmd = &cobra.Command{
		Use:   "expire",
		Short: "manually expire a pending proposal and release its frozen UTXOs",
		RunE:  proposalExpire,
	}
	proposalCmd = &cobra.Command{
		Use:   "proposal",
		Short: "draft, approve, finalize, and inspect spends",
	}
)

func init() {
	proposalDraftCmd.Flags().StringVar(&draftPolicyID, "policy", "", "policy id")
	proposalDraftCmd.Flags().StringArrayVar(&draftTo, "to", nil, "destination as address:amount_sat, repeatable")
	proposalDraftCmd.Flags().Float64Var(&draftFeeRate, "fee-rate", 1, "fee rate in sat/vB")
	proposalDraftCmd.Flags().StringVar(&draftPolicyPath, "policy-path", "", "script-path leaf to spend from, required for a script-path policy; any non-empty value selects the single leaf")
	proposalDraftCmd.Flags().BoolVar(&draftAllowFrozen, "allow-frozen", false, "allow spending UTXOs frozen by another pending proposal")
	proposalDraftCmd.Flags().StringVar(&draftDescription, "description", "", "human-readable note for this spend")
	proposalDraftCmd.MarkFlagRequired("policy")
	proposalDraftCmd.MarkFlagRequired("to")

	proposalApproveCmd.Flags().StringVar(&approveProposalID, "proposal", "", "proposal id")
	proposalApproveCmd.Flags().StringVar(&approveSignerID, "signer", "", "signer id")
	proposalApproveCmd.Flags().StringVar(&approvePassword, "password", "", "keychain password")
	proposalApproveCmd.MarkFlagRequired("proposal")
	proposalApproveCmd.MarkFlagRequired("signer")
	proposalApproveCmd.MarkFlagRequired("password")

	proposalFinalizeCmd.Flags().StringVar(&finalizeProposalID, "proposal", "", "proposal id")
	proposalFinalizeCmd.MarkFlagRequired("proposal")

	proposalListCmd.Flags().StringVar(&listProposalPolicyID, "policy", "", "policy id")
	proposalListCmd.MarkFlagRequired("policy")

	proposalExpireCmd.Flags().StringVar(&expireProposalID, "proposal", "", "proposal id")
	proposalExpireCmd.MarkFlagRequired("proposal")

	proposalCmd.AddCommand(
		proposalDraftCmd, proposalApproveCmd, proposalFinalizeCmd,
		proposalListCmd, proposalGetCmd, proposalExpireCmd,
	)
}

func newChainOracle() (ports.ChainOracle, func() error, error) {
	o, err := electrum.NewOracle(config.GetString(config.ElectrumAddrKey), config.GetBool(config.ElectrumTLSKey))
	if err != nil {
		return nil, nil, err
	}
	return o, o.Close, nil
}

func parseDestination(s string) (application.SpendDestination, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return application.SpendDestination{}, fmt.Errorf("vault: destination %q must be address:amount_sat", s)
	}
	amount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return application.SpendDestination{}, fmt.Errorf("vault: invalid amount in %q: %w", s, err)
	}
	return application.SpendDestination{Address: parts[0], Amount: amount}, nil
}

func proposalDraft(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()
	oracle, closeOracle, err := newChainOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	dests := make([]application.SpendDestination, 0, len(draftTo))
	for _, s := range draftTo {
		d, err := parseDestination(s)
		if err != nil {
			return err
		}
		dests = append(dests, d)
	}

	svc := application.NewProposalService(rm, oracle)
	p, err := svc.DraftSpend(context.Background(), application.DraftSpendArgs{
		PolicyID:     draftPolicyID,
		Destinations: dests,
		FeeRateSatVb: draftFeeRate,
		PolicyPath:   draftPolicyPath,
		AllowFrozen:  draftAllowFrozen,
		Description:  draftDescription,
	})
	if err != nil {
		return err
	}
	return printJSON(p)
}

func proposalApprove(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	signer, err := rm.SignerRepository().GetSigner(context.Background(), approveSignerID)
	if err != nil {
		return err
	}
	id, err := unlockIdentity(approvePassword)
	if err != nil {
		return err
	}
	cap := seed.New(id, signerPurposes(signer)...)

	oracle, closeOracle, err := newChainOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	svc := application.NewProposalService(rm, oracle)
	approval, err := svc.Approve(context.Background(), application.ApproveArgs{
		ProposalID: approveProposalID,
		SignerID:   approveSignerID,
	}, cap)
	if err != nil {
		return err
	}
	return printJSON(approval)
}

func signerPurposes(s *domain.Signer) []domain.Purpose {
	purposes := make([]domain.Purpose, 0, len(s.DescriptorsByPurp))
	for p := range s.DescriptorsByPurp {
		purposes = append(purposes, p)
	}
	if len(purposes) == 0 {
		purposes = append(purposes, domain.Purpose(keys.PurposeBIP86))
	}
	return purposes
}

func proposalFinalize(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()
	oracle, closeOracle, err := newChainOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	svc := application.NewProposalService(rm, oracle)
	completed, err := svc.TryFinalizeAndBroadcast(context.Background(), finalizeProposalID)
	if err != nil {
		return err
	}
	if completed == nil {
		fmt.Println("not enough approvals yet")
		return nil
	}
	return printJSON(completed)
}

func proposalList(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	proposals, err := rm.ProposalRepository().ListProposalsByPolicy(context.Background(), listProposalPolicyID)
	if err != nil {
		return err
	}
	return printJSON(proposals)
}

func proposalGet(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	p, err := rm.ProposalRepository().GetProposal(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(p)
}

func proposalExpire(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()
	oracle, closeOracle, err := newChainOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	svc := application.NewProposalService(rm, oracle)
	if err := svc.Expire(context.Background(), expireProposalID); err != nil {
		return err
	}
	fmt.Println("proposal expired")
	return nil
}
