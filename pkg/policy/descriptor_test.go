package policy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/policy"
)

const (
	keyA = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	keyB = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

func TestPolicyIDStableAcrossEqualDescriptors(t *testing.T) {
	desc := "tr(" + keyA + ")"

	id1, err := policy.PolicyID(desc, keys.Testnet)
	require.NoError(t, err)
	id2, err := policy.PolicyID(desc, keys.Testnet)
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := policy.PolicyID(desc, keys.Bitcoin)
	require.NoError(t, err)
	require.NotEqual(t, id1, id3, "network byte must be mixed into policy_id")
}

func TestCompileMultisigKofN(t *testing.T) {
	expr := "multi_a(2," + keyA + "," + keyB + ")"
	desc, class, err := policy.Compile(policy.CompileArgs{Expression: expr, Network: keys.Testnet})
	require.NoError(t, err)
	require.Equal(t, policy.MultisigKofN, class)
	require.ElementsMatch(t, []string{keyA, keyB}, desc.NamedKeys())
}

func TestCompileHoldLock(t *testing.T) {
	expr := "and_v(v:pk(" + keyA + "),older(52560))"
	desc, class, err := policy.Compile(policy.CompileArgs{Expression: expr, Network: keys.Testnet})
	require.NoError(t, err)
	require.Equal(t, policy.HoldLock, class)
	require.EqualValues(t, 52560, desc.Script.RelativeTimelock())
}

func TestCompileRejectsUnnamedSigners(t *testing.T) {
	_, _, err := policy.Compile(policy.CompileArgs{
		Expression: "older(100)",
		Network:    keys.Testnet,
	})
	require.ErrorIs(t, err, policy.ErrNoNamedSigners)
}

func TestCompileRejectsBadNetwork(t *testing.T) {
	_, _, err := policy.Compile(policy.CompileArgs{
		Expression: "pk(" + keyA + ")",
		Network:    keys.Network("mainnet"),
	})
	require.ErrorIs(t, err, policy.ErrNetworkMismatch)
}
