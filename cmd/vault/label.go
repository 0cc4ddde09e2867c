package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
)

var (
	labelPolicyID string
	labelKind     string
	labelData     string
	labelText     string

	labelListPolicyID string

	labelSetCmd = &cobra.Command{
		Use:   "set",
		Short: "attach or update a label on an address or UTXO",
		RunE:  labelSet,
	}
	labelListCmd = &cobra.Command{
		Use:   "list",
		Short: "list a policy's labels",
		RunE:  labelList,
	}
	labelDeleteCmd = &cobra.Command{
		Use:   "delete <label-id>",
		Short: "delete a label",
		Args:  cobra.ExactArgs(1),
		RunE:  labelDelete,
	}
	labelCmd = &cobra.Command{
		Use:   "label",
		Short: "annotate policy addresses and UTXOs",
	}
)

func init() {
	labelSetCmd.Flags().StringVar(&labelPolicyID, "policy", "", "policy id")
	labelSetCmd.Flags().StringVar(&labelKind, "kind", "address", "label target kind: address or utxo")
	labelSetCmd.Flags().StringVar(&labelData, "data", "", "the address or utxo (txid:vout) being labeled")
	labelSetCmd.Flags().StringVar(&labelText, "text", "", "label text")
	labelSetCmd.MarkFlagRequired("policy")
	labelSetCmd.MarkFlagRequired("data")
	labelSetCmd.MarkFlagRequired("text")

	labelListCmd.Flags().StringVar(&labelListPolicyID, "policy", "", "policy id")
	labelListCmd.MarkFlagRequired("policy")

	labelCmd.AddCommand(labelSetCmd, labelListCmd, labelDeleteCmd)
}

func labelSet(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	kind := domain.LabelAddress
	if labelKind == "utxo" {
		kind = domain.LabelUTXO
	}
	label, err := domain.NewLabel(labelPolicyID, kind, labelData, labelText)
	if err != nil {
		return err
	}
	if err := rm.LabelRepository().UpsertLabel(context.Background(), label); err != nil {
		return err
	}
	return printJSON(label)
}

func labelList(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	labels, err := rm.LabelRepository().ListLabelsByPolicy(context.Background(), labelListPolicyID)
	if err != nil {
		return err
	}
	return printJSON(labels)
}

func labelDelete(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	if err := rm.LabelRepository().DeleteLabel(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("label deleted")
	return nil
}
