package psbtutil_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/btc-vaults/vaultcore/pkg/psbtutil"
)

func TestEstimatedVBytesGrowsWithInputsAndOutputs(t *testing.T) {
	base := psbtutil.EstimatedVBytes(1, 1, false)
	moreInputs := psbtutil.EstimatedVBytes(2, 1, false)
	moreOutputs := psbtutil.EstimatedVBytes(1, 2, false)
	scriptPath := psbtutil.EstimatedVBytes(1, 1, true)

	require.Greater(t, moreInputs, base)
	require.Greater(t, moreOutputs, base)
	require.Greater(t, scriptPath, base)
}

func samplePacket(t *testing.T) *psbt.Packet {
	t.Helper()
	tx := wire.NewMsgTx(2)
	hash, err := chainhash.NewHashFromStr("00000000000000000000000000000000000000000000000000000000000001")
	require.NoError(t, err)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(1000, []byte{0x51}))
	pkt, err := psbt.NewFromUnsignedTx(tx)
	require.NoError(t, err)
	return pkt
}

func TestCombineDeduplicatesIdenticalSignatures(t *testing.T) {
	a := samplePacket(t)
	b := samplePacket(t)
	sig := make([]byte, 64)
	a.Inputs[0].TaprootKeySpendSig = sig
	b.Inputs[0].TaprootKeySpendSig = sig

	combined, err := psbtutil.Combine([]*psbt.Packet{a, b})
	require.NoError(t, err)
	require.Equal(t, sig, combined.Inputs[0].TaprootKeySpendSig)
}

func TestCombineRejectsConflictingSignatures(t *testing.T) {
	a := samplePacket(t)
	b := samplePacket(t)
	a.Inputs[0].TaprootKeySpendSig = make([]byte, 64)
	other := make([]byte, 64)
	other[0] = 0xff
	b.Inputs[0].TaprootKeySpendSig = other

	_, err := psbtutil.Combine([]*psbt.Packet{a, b})
	require.ErrorIs(t, err, psbtutil.ErrConflictingSignature)
}

func TestFinalizeRequiresSignature(t *testing.T) {
	pkt := samplePacket(t)
	_, err := psbtutil.Finalize(pkt)
	require.ErrorIs(t, err, psbtutil.ErrNotFinalizable)
}

func TestProofOfReservesSumsWitnessedValue(t *testing.T) {
	hash, err := chainhash.NewHashFromStr("00000000000000000000000000000000000000000000000000000000000002")
	require.NoError(t, err)
	utxos := []psbtutil.UTXO{
		{OutPoint: *wire.NewOutPoint(hash, 0), Value: 5000, PkScript: []byte{0x51}},
	}
	pkt, err := psbtutil.ProofOfReserves(fakeTapScriptSource{}, utxos, "reserves as of block 800000")
	require.NoError(t, err)
	require.Len(t, pkt.Inputs, 1)
	require.Equal(t, int64(5000), pkt.Inputs[0].WitnessUtxo.Value)

	ok, err := psbtutil.VerifyProofOfReserves(pkt, 5000)
	require.NoError(t, err)
	require.False(t, ok, "unsigned PSBT must not verify as proof of reserves")
}

type fakeTapScriptSource struct{}

func (fakeTapScriptSource) PkScript() ([]byte, error) { return []byte{0x51, 0x20}, nil }
