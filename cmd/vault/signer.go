package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/config"
	"github.com/btc-vaults/vaultcore/internal/core/application"
	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/internal/infrastructure/signing/seed"
)

var (
	signerAddName       string
	signerAddDeviceType string
	signerAddPurposes   []string
	signerAddPassword   string

	shareSignerID   string
	shareRecipient  string
	sharePolicyID   string
	shareAsKeyAgent bool
	sharePassword   string

	acceptOfferID  string
	acceptPassword string

	revokeOfferID string

	profileName        string
	profileFeePerSig   int64
	profileFeeAnnual   int64
	profileFeeBasisPts int32
	profileClasses     []string
	profilePassword    string

	adDeviceType string
	adFeeSats    int64
	adXpub       string
	adPassword   string

	signerAddCmd = &cobra.Command{
		Use:   "add",
		Short: "register the local identity's leaf keys as a named signer",
		RunE:  signerAdd,
	}
	signerListCmd = &cobra.Command{
		Use:   "list",
		Short: "list every locally registered signer",
		RunE:  signerList,
	}
	signerShareCmd = &cobra.Command{
		Use:   "share",
		Short: "offer a signer's public descriptor material to another identity",
		RunE:  signerShare,
	}
	signerAcceptCmd = &cobra.Command{
		Use:   "accept",
		Short: "accept a shared signer offer",
		RunE:  signerAccept,
	}
	signerRevokeCmd = &cobra.Command{
		Use:   "revoke",
		Short: "revoke a previously made signer offer",
		RunE:  signerRevoke,
	}
	signerPublishProfileCmd = &cobra.Command{
		Use:   "publish-profile",
		Short: "announce this identity's key-agent fee schedule",
		RunE:  signerPublishProfile,
	}
	signerListProfilesCmd = &cobra.Command{
		Use:   "list-profiles",
		Short: "list every known key-agent profile",
		RunE:  signerListProfiles,
	}
	signerPublishAdCmd = &cobra.Command{
		Use:   "publish-ad",
		Short: "advertise a shareable xpub for hire",
		RunE:  signerPublishAd,
	}
	signerCmd = &cobra.Command{
		Use:   "signer",
		Short: "register, share, and discover signing capabilities",
	}
)

func init() {
	signerAddCmd.Flags().StringVar(&signerAddName, "name", "", "signer name")
	signerAddCmd.Flags().StringVar(&signerAddDeviceType, "device-type", "seed", "device type label")
	signerAddCmd.Flags().StringSliceVar(&signerAddPurposes, "purposes", []string{"86"}, "bitcoin derivation purposes this signer exposes (44,49,84,86)")
	signerAddCmd.Flags().StringVar(&signerAddPassword, "password", "", "keychain password")
	signerAddCmd.MarkFlagRequired("name")
	signerAddCmd.MarkFlagRequired("password")

	signerShareCmd.Flags().StringVar(&shareSignerID, "signer", "", "signer id")
	signerShareCmd.Flags().StringVar(&shareRecipient, "recipient", "", "recipient's 32-byte x-only pubkey, hex")
	signerShareCmd.Flags().StringVar(&sharePolicyID, "policy", "", "policy id this offer relates to")
	signerShareCmd.Flags().BoolVar(&shareAsKeyAgent, "key-agent", false, "offer as a key agent rather than a co-owner")
	signerShareCmd.Flags().StringVar(&sharePassword, "password", "", "keychain password")
	signerShareCmd.MarkFlagRequired("signer")
	signerShareCmd.MarkFlagRequired("recipient")
	signerShareCmd.MarkFlagRequired("password")

	signerAcceptCmd.Flags().StringVar(&acceptOfferID, "offer", "", "offer id")
	signerAcceptCmd.Flags().StringVar(&acceptPassword, "password", "", "keychain password")
	signerAcceptCmd.MarkFlagRequired("offer")
	signerAcceptCmd.MarkFlagRequired("password")

	signerRevokeCmd.Flags().StringVar(&revokeOfferID, "offer", "", "offer id")
	signerRevokeCmd.MarkFlagRequired("offer")

	signerPublishProfileCmd.Flags().StringVar(&profileName, "name", "", "key agent display name")
	signerPublishProfileCmd.Flags().Int64Var(&profileFeePerSig, "fee-per-sig-sats", 0, "flat fee per signature, in sats")
	signerPublishProfileCmd.Flags().Int64Var(&profileFeeAnnual, "fee-annual-sats", 0, "flat annual fee, in sats")
	signerPublishProfileCmd.Flags().Int32Var(&profileFeeBasisPts, "fee-basis-points", 0, "fee as basis points of spend value")
	signerPublishProfileCmd.Flags().StringSliceVar(&profileClasses, "classes", nil, "supported policy template classes")
	signerPublishProfileCmd.Flags().StringVar(&profilePassword, "password", "", "keychain password")
	signerPublishProfileCmd.MarkFlagRequired("name")
	signerPublishProfileCmd.MarkFlagRequired("password")

	signerPublishAdCmd.Flags().StringVar(&adDeviceType, "device-type", "", "device type label")
	signerPublishAdCmd.Flags().Int64Var(&adFeeSats, "fee-sats", 0, "fee, in sats, to hire this key")
	signerPublishAdCmd.Flags().StringVar(&adXpub, "xpub", "", "shareable extended public key")
	signerPublishAdCmd.Flags().StringVar(&adPassword, "password", "", "keychain password")
	signerPublishAdCmd.MarkFlagRequired("xpub")
	signerPublishAdCmd.MarkFlagRequired("password")

	signerCmd.AddCommand(
		signerAddCmd, signerListCmd, signerShareCmd, signerAcceptCmd, signerRevokeCmd,
		signerPublishProfileCmd, signerListProfilesCmd, signerPublishAdCmd,
	)
}

func parsePurposes(raw []string) ([]domain.Purpose, error) {
	out := make([]domain.Purpose, 0, len(raw))
	for _, r := range raw {
		n, err := strconv.ParseUint(r, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("vault: invalid purpose %q: %w", r, err)
		}
		out = append(out, domain.Purpose(n))
	}
	return out, nil
}

func signerAdd(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(signerAddPassword)
	if err != nil {
		return err
	}
	purposes, err := parsePurposes(signerAddPurposes)
	if err != nil {
		return err
	}
	cap := seed.New(id, purposes...)
	fingerprint := cap.Fingerprint()

	descriptors := cap.Descriptors()
	signerID := hex.EncodeToString(fingerprint[:])
	signer, err := domain.NewSigner(
		signerID, fingerprint, domain.SignerSeed, signerAddName, signerAddDeviceType,
		string(config.GetNetwork()), descriptors, time.Now(),
	)
	if err != nil {
		return err
	}
	if err := rm.SignerRepository().AddSigner(context.Background(), signer); err != nil {
		return err
	}
	return printJSON(signer)
}

func signerList(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	signers, err := rm.SignerRepository().ListSigners(context.Background())
	if err != nil {
		return err
	}
	return printJSON(signers)
}

func hexToXOnly(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("vault: expected a 32-byte hex key, got %d bytes", len(b))
	}
	copy(out[:], b)
	return out, nil
}

func signerShare(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(sharePassword)
	if err != nil {
		return err
	}
	recipient, err := hexToXOnly(shareRecipient)
	if err != nil {
		return err
	}

	relay := newRelayClient()
	if err := relay.Connect(context.Background(), config.GetStringSlice(config.RelayURLsKey)); err != nil {
		return err
	}
	defer relay.Close()

	svc := application.NewSharingService(rm, relay)
	offer, err := svc.ShareSigner(context.Background(), id, shareSignerID, recipient, sharePolicyID, shareAsKeyAgent)
	if err != nil {
		return err
	}
	return printJSON(offer)
}

func signerAccept(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(acceptPassword)
	if err != nil {
		return err
	}
	relay := newRelayClient()
	if err := relay.Connect(context.Background(), config.GetStringSlice(config.RelayURLsKey)); err != nil {
		return err
	}
	defer relay.Close()

	svc := application.NewSharingService(rm, relay)
	if err := svc.AcceptSharedSignerOffer(context.Background(), acceptOfferID, id); err != nil {
		return err
	}
	fmt.Println("offer accepted")
	return nil
}

func signerRevoke(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	svc := application.NewSharingService(rm, nil)
	if err := svc.RevokeSharedSignerOffer(context.Background(), revokeOfferID); err != nil {
		return err
	}
	fmt.Println("offer revoked")
	return nil
}

func signerPublishProfile(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(profilePassword)
	if err != nil {
		return err
	}
	classes := make([]domain.TemplateClass, len(profileClasses))
	for i, c := range profileClasses {
		classes[i] = domain.TemplateClass(strings.ToLower(c))
	}
	profile := &domain.KeyAgentProfile{
		PubKey:         id.XOnlyPubKey(),
		Name:           profileName,
		FeePerSigSats:  profileFeePerSig,
		FeeAnnualSats:  profileFeeAnnual,
		FeeBasisPoints: profileFeeBasisPts,
		SupportedClass: classes,
		CreatedAt:      time.Now(),
	}

	relay := newRelayClient()
	if err := relay.Connect(context.Background(), config.GetStringSlice(config.RelayURLsKey)); err != nil {
		return err
	}
	defer relay.Close()

	svc := application.NewSharingService(rm, relay)
	if err := svc.PublishKeyAgentProfile(context.Background(), id, profile); err != nil {
		return err
	}
	return printJSON(profile)
}

func signerListProfiles(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	svc := application.NewSharingService(rm, nil)
	profiles, err := svc.ListKeyAgentProfiles(context.Background())
	if err != nil {
		return err
	}
	return printJSON(profiles)
}

func signerPublishAd(cmd *cobra.Command, args []string) error {
	rm, err := newRepoManager()
	if err != nil {
		return err
	}
	defer rm.Close()

	id, err := unlockIdentity(adPassword)
	if err != nil {
		return err
	}
	ad := &domain.KeyAgentSignerAd{
		PubKey:     id.XOnlyPubKey(),
		Xpub:       adXpub,
		DeviceType: adDeviceType,
		FeeSats:    adFeeSats,
		CreatedAt:  time.Now(),
	}

	relay := newRelayClient()
	if err := relay.Connect(context.Background(), config.GetStringSlice(config.RelayURLsKey)); err != nil {
		return err
	}
	defer relay.Close()

	svc := application.NewSharingService(rm, relay)
	ev, err := svc.PublishKeyAgentSignerAd(context.Background(), id, ad)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"event_id": ev.IDHex()})
}
