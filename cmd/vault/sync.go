package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/config"
	"github.com/btc-vaults/vaultcore/internal/core/application"
	"github.com/btc-vaults/vaultcore/pkg/envelope"
)

var (
	syncRunPassword string

	invitePolicyID  string
	inviteRecipient string
	inviteWatcher   bool
	invitePassword  string

	joinEventPath string
	joinPassword  string

	syncRunCmd = &cobra.Command{
		Use:   "run",
		Short: "connect to the configured relays and process events until interrupted",
		RunE:  syncRun,
	}
	syncInviteCmd = &cobra.Command{
		Use:   "invite",
		Short: "invite a recipient to a policy, optionally as a watcher",
		RunE:  syncInvite,
	}
	syncJoinCmd = &cobra.Command{
		Use:   "join <event-file>",
		Short: "join a policy from a received invite event",
		Args:  cobra.ExactArgs(1),
		RunE:  syncJoin,
	}
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "run the relay sync loop, invite participants, and join shared policies",
	}
)

func init() {
	syncRunCmd.Flags().StringVar(&syncRunPassword, "password", "", "keychain password")
	syncRunCmd.MarkFlagRequired("password")

	syncInviteCmd.Flags().StringVar(&invitePolicyID, "policy", "", "policy id")
	syncInviteCmd.Flags().StringVar(&inviteRecipient, "recipient", "", "recipient's 32-byte x-only pubkey, hex")
	syncInviteCmd.Flags().BoolVar(&inviteWatcher, "watcher", false, "invite as a watcher (descriptor only, no shared key)")
	syncInviteCmd.Flags().StringVar(&invitePassword, "password", "", "keychain password")
	syncInviteCmd.MarkFlagRequired("policy")
	syncInviteCmd.MarkFlagRequired("recipient")
	syncInviteCmd.MarkFlagRequired("password")

	syncJoinCmd.Flags().StringVar(&joinPassword, "password", "", "keychain password")
	syncJoinCmd.MarkFlagRequired("password")

	syncCmd.AddCommand(syncRunCmd, syncInviteCmd, syncJoinCmd)
}

// syncRun wires every application service around one unlocked identity and
// blocks until SIGINT/SIGTERM, mirroring the daemon's own connect-then-wait
// shutdown pattern rather than exiting as soon as Run's initial subscribe
// completes.
func syncRun(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	prof, err := newProfiler()
	if err != nil {
		return err
	}
	if prof != nil {
		if err := prof.Start(); err != nil {
			return err
		}
		defer prof.Stop()
	}

	id, err := unlockIdentity(syncRunPassword)
	if err != nil {
		return err
	}

	oracle, closeOracle, err := newChainOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	relay := newRelayClient()
	defer relay.Close()

	proposals := application.NewProposalService(rm, oracle)
	syncSvc := application.NewSyncService(rm, relay, oracle, id, proposals)
	notifications := application.NewNotificationService(rm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayURLs := config.GetStringSlice(config.RelayURLsKey)
	errCh := make(chan error, 2)
	go func() {
		errCh <- syncSvc.Run(ctx, relayURLs)
	}()
	interval := time.Duration(config.GetInt(config.MaintenanceIntervalKey)) * time.Second
	go func() {
		errCh <- syncSvc.RunPeriodicMaintenance(ctx, interval)
	}()
	go func() {
		for n := range notifications.Listen() {
			log.Infof("notification: %s policy=%s proposal=%s detail=%s", n.Type, n.PolicyID, n.ProposalID, n.Detail)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-sigChan:
		cancel()
		return nil
	case err := <-errCh:
		cancel()
		return err
	}
}

func syncInvite(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(invitePassword)
	if err != nil {
		return err
	}
	recipient, err := hexToXOnly(inviteRecipient)
	if err != nil {
		return err
	}

	relay := newRelayClient()
	if err := relay.Connect(context.Background(), config.GetStringSlice(config.RelayURLsKey)); err != nil {
		return err
	}
	defer relay.Close()

	svc := application.NewSharingService(rm, relay)
	ev, err := svc.Invite(context.Background(), application.InviteArgs{
		PolicyID:  invitePolicyID,
		Recipient: recipient,
		Watcher:   inviteWatcher,
	}, id)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"event_id": ev.IDHex()})
}

func syncJoin(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(joinPassword)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var ev envelope.Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("vault: invalid invite event file: %w", err)
	}
	if err := ev.Verify(); err != nil {
		return fmt.Errorf("vault: invite event failed verification: %w", err)
	}

	relay := newRelayClient()
	if err := relay.Connect(context.Background(), config.GetStringSlice(config.RelayURLsKey)); err != nil {
		return err
	}
	defer relay.Close()

	svc := application.NewSharingService(rm, relay)
	p, err := svc.Join(context.Background(), &ev, id)
	if err != nil {
		return err
	}
	return printJSON(p)
}
