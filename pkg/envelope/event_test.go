package envelope_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-vaults/vaultcore/pkg/envelope"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/wallet/mnemonic"
)

func testIdentity(t *testing.T) *keys.Identity {
	t.Helper()
	words, err := mnemonic.NewMnemonic(mnemonic.NewMnemonicArgs{EntropySize: 256})
	require.NoError(t, err)
	id, err := keys.NewIdentity(words, "", keys.Regtest)
	require.NoError(t, err)
	return id
}

func TestNewEventVerifiesAndRejectsTamper(t *testing.T) {
	id := testIdentity(t)
	tags := []envelope.Tag{envelope.DTag("policy-abc"), envelope.CategoryTag("policy")}
	ev, err := envelope.New(id, envelope.KindPolicyAnnounce, tags, `{"descriptor":"tr(...)"}`, 1_700_000_000)
	require.NoError(t, err)
	require.NoError(t, ev.Verify())

	ev.Content = `{"descriptor":"tr(evil)"}`
	require.ErrorIs(t, ev.Verify(), envelope.ErrIDMismatch)
}

func TestFilterMatchesOnKindAndTag(t *testing.T) {
	id := testIdentity(t)
	ev, err := envelope.New(id, envelope.KindProposal, []envelope.Tag{envelope.PolicyTag("policy-1")}, "{}", 1_700_000_000)
	require.NoError(t, err)

	f := envelope.Filter{Kinds: []envelope.Kind{envelope.KindProposal}, PolicyIDs: []string{"policy-1"}}
	require.True(t, f.Match(ev))

	f.PolicyIDs = []string{"policy-2"}
	require.False(t, f.Match(ev))
}

func TestDirectEncryptionRoundTrips(t *testing.T) {
	alice := testIdentity(t)
	bob := testIdentity(t)

	ciphertext, err := envelope.EncryptDirect(alice, bob.PubKey(), "meet at block 800000")
	require.NoError(t, err)

	plaintext, err := envelope.DecryptDirect(bob, alice.PubKey(), ciphertext)
	require.NoError(t, err)
	require.Equal(t, "meet at block 800000", plaintext)
}

func TestSharedEncryptionRoundTrips(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	ciphertext, err := envelope.EncryptShared(key, `{"proposal_id":"p1"}`)
	require.NoError(t, err)

	plaintext, err := envelope.DecryptShared(key, ciphertext)
	require.NoError(t, err)
	require.JSONEq(t, `{"proposal_id":"p1"}`, plaintext)
}

func TestValidateSchemaRejectsMissingFields(t *testing.T) {
	require.NoError(t, envelope.ValidateSchema(envelope.KindProposal, `{"policy_id":"p","psbt":"cHNidP","destinations":[]}`))
	require.ErrorIs(t, envelope.ValidateSchema(envelope.KindProposal, `{"policy_id":"p"}`), envelope.ErrSchemaInvalid)
	require.ErrorIs(t, envelope.ValidateSchema(envelope.KindProposal, `not json`), envelope.ErrSchemaInvalid)
}
