package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/config"
	"github.com/btc-vaults/vaultcore/internal/core/application"
)

var (
	policyName       string
	policyDesc       string
	policyDescriptor string
	policyExpiry     string

	policyCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "compile a descriptor or miniscript expression and store it as a policy",
		RunE:  policyCreate,
	}
	policyListCmd = &cobra.Command{
		Use:   "list",
		Short: "list every stored policy",
		RunE:  policyList,
	}
	policyGetCmd = &cobra.Command{
		Use:   "get <policy-id>",
		Short: "print one policy",
		Args:  cobra.ExactArgs(1),
		RunE:  policyGet,
	}
	policyDeleteCmd = &cobra.Command{
		Use:   "delete <policy-id>",
		Short: "delete a policy",
		Args:  cobra.ExactArgs(1),
		RunE:  policyDelete,
	}
	policyShareKeyCmd = &cobra.Command{
		Use:   "share-key <policy-id>",
		Short: "generate the policy's SharedKey (once per policy)",
		Args:  cobra.ExactArgs(1),
		RunE:  policyShareKey,
	}
	policyCmd = &cobra.Command{
		Use:   "policy",
		Short: "compile, store, list, and inspect custody policies",
	}
)

func init() {
	policyCreateCmd.Flags().StringVar(&policyName, "name", "", "policy name")
	policyCreateCmd.Flags().StringVar(&policyDesc, "description", "", "policy description")
	policyCreateCmd.Flags().StringVar(&policyDescriptor, "descriptor", "", "output descriptor or miniscript policy expression")
	policyCreateCmd.Flags().StringVar(&policyExpiry, "proposal-expiry", "", "default proposal lifetime, e.g. 24h (optional)")
	policyCreateCmd.MarkFlagRequired("name")
	policyCreateCmd.MarkFlagRequired("descriptor")

	policyCmd.AddCommand(policyCreateCmd, policyListCmd, policyGetCmd, policyDeleteCmd, policyShareKeyCmd)
}

func policyCreate(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	var expiry *time.Duration
	if policyExpiry != "" {
		d, err := time.ParseDuration(policyExpiry)
		if err != nil {
			return err
		}
		expiry = &d
	}

	svc := application.NewPolicyService(rm)
	p, err := svc.CreatePolicy(context.Background(), application.PolicyArgs{
		Name:           policyName,
		Description:    policyDesc,
		Descriptor:     policyDescriptor,
		Network:        string(config.GetNetwork()),
		ProposalExpiry: expiry,
	})
	if err != nil {
		return err
	}
	return printJSON(p)
}

func policyList(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	svc := application.NewPolicyService(rm)
	policies, err := svc.ListPolicies(context.Background())
	if err != nil {
		return err
	}
	return printJSON(policies)
}

func policyGet(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	svc := application.NewPolicyService(rm)
	p, err := svc.GetPolicy(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(p)
}

func policyDelete(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	svc := application.NewPolicyService(rm)
	if err := svc.DeletePolicy(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("policy deleted")
	return nil
}

func policyShareKey(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	svc := application.NewPolicyService(rm)
	sk, err := svc.GenerateSharedKey(context.Background(), args[0])
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"policy_id":  sk.PolicyID,
		"shared_key": fmt.Sprintf("%x", sk.Key[:]),
	})
}
