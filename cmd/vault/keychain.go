package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/btc-vaults/vaultcore/internal/config"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/wallet/mnemonic"
)

var (
	genWords    uint32
	genPassword string

	restoreMnemonic string
	restorePassword string

	inspectPassword string

	oldPassword string
	newPassword string

	keychainGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "generate a new mnemonic and encrypt it into a keychain file",
		RunE:  keychainGenerate,
	}
	keychainRestoreCmd = &cobra.Command{
		Use:   "restore",
		Short: "restore a keychain from an existing mnemonic",
		RunE:  keychainRestore,
	}
	keychainInspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "unlock the keychain and print identity info",
		RunE:  keychainInspect,
	}
	keychainChangePwdCmd = &cobra.Command{
		Use:   "change-password",
		Short: "re-encrypt the keychain under a new password",
		RunE:  keychainChangePwd,
	}
	keychainCmd = &cobra.Command{
		Use:   "keychain",
		Short: "generate, restore, or inspect the local signing identity",
	}
)

func init() {
	keychainGenerateCmd.Flags().Uint32Var(&genWords, "entropy", 256, "mnemonic entropy in bits (128 or 256)")
	keychainGenerateCmd.Flags().StringVar(&genPassword, "password", "", "password to encrypt the keychain with")
	keychainGenerateCmd.MarkFlagRequired("password")

	keychainRestoreCmd.Flags().StringVar(&restoreMnemonic, "mnemonic", "", "space separated mnemonic words")
	keychainRestoreCmd.Flags().StringVar(&restorePassword, "password", "", "password to encrypt the keychain with")
	keychainRestoreCmd.MarkFlagRequired("mnemonic")
	keychainRestoreCmd.MarkFlagRequired("password")

	keychainInspectCmd.Flags().StringVar(&inspectPassword, "password", "", "keychain password")
	keychainInspectCmd.MarkFlagRequired("password")

	keychainChangePwdCmd.Flags().StringVar(&oldPassword, "old-password", "", "current keychain password")
	keychainChangePwdCmd.Flags().StringVar(&newPassword, "new-password", "", "new keychain password")
	keychainChangePwdCmd.MarkFlagRequired("old-password")
	keychainChangePwdCmd.MarkFlagRequired("new-password")

	keychainCmd.AddCommand(keychainGenerateCmd, keychainRestoreCmd, keychainInspectCmd, keychainChangePwdCmd)
}

func keychainGenerate(cmd *cobra.Command, args []string) error {
	words, err := mnemonic.NewMnemonic(mnemonic.NewMnemonicArgs{EntropySize: genWords})
	if err != nil {
		return err
	}
	kc, err := keys.NewKeychain(words, genPassword, config.GetNetwork())
	if err != nil {
		return err
	}
	if err := kc.SaveToFile(keychainPath()); err != nil {
		return err
	}
	fmt.Println("keychain written to", keychainPath())
	fmt.Println("mnemonic (write this down, it is never stored in the clear):")
	fmt.Println(strings.Join(words, " "))
	return nil
}

func keychainRestore(cmd *cobra.Command, args []string) error {
	words := strings.Fields(restoreMnemonic)
	kc, err := keys.NewKeychain(words, restorePassword, config.GetNetwork())
	if err != nil {
		return err
	}
	if err := kc.SaveToFile(keychainPath()); err != nil {
		return err
	}
	fmt.Println("keychain written to", keychainPath())
	return nil
}

func keychainInspect(cmd *cobra.Command, args []string) error {
	id, err := unlockIdentity(inspectPassword)
	if err != nil {
		return err
	}
	fingerprint := id.MasterFingerprint()
	return printJSON(map[string]interface{}{
		"network":            string(id.Network),
		"nostr_pubkey":       id.XOnlyPubKeyHex(),
		"master_fingerprint": fmt.Sprintf("%x", fingerprint[:]),
	})
}

func keychainChangePwd(cmd *cobra.Command, args []string) error {
	kc, err := loadKeychain()
	if err != nil {
		return err
	}
	if _, err := kc.Unlock(oldPassword); err != nil {
		return err
	}
	if err := kc.ChangePassword(newPassword); err != nil {
		return err
	}
	if err := kc.SaveToFile(keychainPath()); err != nil {
		return err
	}
	fmt.Println("keychain password updated")
	return nil
}
