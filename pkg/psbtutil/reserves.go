package psbtutil

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ProofOfReserves builds a non-spendable PSBT that spends every UTXO in
// utxos, witnessing joint ownership of their combined value without
// revealing any private material to a verifier — the verifier only needs
// the resulting PSBT, the policy's descriptor, and the message.
func ProofOfReserves(d interface{ PkScript() ([]byte, error) }, utxos []UTXO, message string) (*psbt.Packet, error) {
	tx := wire.NewMsgTx(2)
	for _, u := range utxos {
		tx.AddTxIn(wire.NewTxIn(&u.OutPoint, nil, nil))
	}

	msgHash := sha256.Sum256([]byte(message))
	unspendable, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddData(msgHash[:]).
		Script()
	if err != nil {
		return nil, err
	}
	tx.AddTxOut(wire.NewTxOut(0, unspendable))

	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}
	for i, u := range utxos {
		pkt.Inputs[i].WitnessUtxo = wire.NewTxOut(u.Value, u.PkScript)
		pkt.Inputs[i].SighashType = txscript.SigHashDefault
	}
	return pkt, nil
}

// VerifyProofOfReserves checks that every input of a proof-of-reserves PSBT
// carries a valid signature and that the witnessed UTXOs sum to the claimed
// amount, without requiring any private material — the check a third party
// performs per spec scenario 6.
func VerifyProofOfReserves(pkt *psbt.Packet, claimedAmount int64) (bool, error) {
	var total int64
	for _, in := range pkt.Inputs {
		if in.WitnessUtxo == nil {
			return false, ErrNotFinalizable
		}
		if len(in.TaprootKeySpendSig) == 0 && len(in.TaprootScriptSpendSig) == 0 && len(in.PartialSigs) == 0 {
			return false, nil
		}
		total += in.WitnessUtxo.Value
	}
	return total >= claimedAmount, nil
}
