package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	rootCmd = &cobra.Command{
		Use:   "vault",
		Short: "CLI for a bitcoin multisig custody vault",
		Long: "This CLI drives a local custody vault directly: generating and " +
			"unlocking key material, compiling and storing policies, drafting " +
			"and approving spends, and running the nostr sync loop that shares " +
			"state with a policy's other participants.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))
		},
		Version: formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(keychainCmd, policyCmd, proposalCmd, labelCmd, signerCmd, syncCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func formatVersion() string {
	return fmt.Sprintf("\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date)
}
