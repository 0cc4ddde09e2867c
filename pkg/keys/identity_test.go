package keys_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"

	"github.com/btc-vaults/vaultcore/pkg/keys"
)

func validMnemonic(t *testing.T) []string {
	t.Helper()
	entropy, err := bip39.NewEntropy(256)
	require.NoError(t, err)
	words, err := bip39.NewMnemonic(entropy)
	require.NoError(t, err)
	return splitWords(words)
}

func splitWords(s string) []string {
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			out = append(out, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func TestNewIdentityDeterministic(t *testing.T) {
	words := validMnemonic(t)

	id1, err := keys.NewIdentity(words, "", keys.Testnet)
	require.NoError(t, err)
	id2, err := keys.NewIdentity(words, "", keys.Testnet)
	require.NoError(t, err)

	require.Equal(t, id1.XOnlyPubKeyHex(), id2.XOnlyPubKeyHex())
	require.Equal(t, id1.MasterFingerprint(), id2.MasterFingerprint())
}

func TestNewIdentityRejectsBadChecksum(t *testing.T) {
	words := validMnemonic(t)
	words[0] = "zzzzzzzzzzzz"

	_, err := keys.NewIdentity(words, "", keys.Testnet)
	require.ErrorIs(t, err, keys.ErrMnemonicInvalid)
}

func TestNewIdentityRejectsUnknownNetwork(t *testing.T) {
	words := validMnemonic(t)
	_, err := keys.NewIdentity(words, "", keys.Network("mainnet"))
	require.ErrorIs(t, err, keys.ErrMissingNetwork)
}

func TestECDHIsSymmetric(t *testing.T) {
	wordsA := validMnemonic(t)
	wordsB := validMnemonic(t)

	a, err := keys.NewIdentity(wordsA, "", keys.Regtest)
	require.NoError(t, err)
	b, err := keys.NewIdentity(wordsB, "", keys.Regtest)
	require.NoError(t, err)

	secretAB := a.ECDH(b.PubKey())
	secretBA := b.ECDH(a.PubKey())
	require.Equal(t, secretAB, secretBA)
}

func TestKeychainLockUnlock(t *testing.T) {
	words := validMnemonic(t)
	kc, err := keys.NewKeychain(words, "hunter2", keys.Testnet)
	require.NoError(t, err)
	require.True(t, kc.IsLocked())

	id, err := kc.Unlock("hunter2")
	require.NoError(t, err)
	require.False(t, kc.IsLocked())
	require.NotEmpty(t, id.XOnlyPubKeyHex())

	kc.Lock()
	require.True(t, kc.IsLocked())

	_, err = kc.Unlock("wrong-password")
	require.ErrorIs(t, err, keys.ErrKeychainWrongPassword)
}
