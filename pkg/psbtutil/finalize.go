package psbtutil

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// Finalize produces the extracted transaction from a PSBT once enough
// signatures are present to satisfy every input's spending condition, or
// ErrNotFinalizable otherwise.
func Finalize(pkt *psbt.Packet) (*wire.MsgTx, error) {
	for i, in := range pkt.Inputs {
		if err := finalizeInput(pkt, i, in); err != nil {
			return nil, ErrNotFinalizable
		}
	}
	return psbt.Extract(pkt)
}

func finalizeInput(pkt *psbt.Packet, index int, in psbt.PInput) error {
	switch {
	case len(in.TaprootKeySpendSig) > 0:
		pkt.Inputs[index].FinalScriptWitness = serializeWitness([][]byte{in.TaprootKeySpendSig})
		return nil

	case len(in.TaprootScriptSpendSig) > 0 && len(in.TaprootLeafScript) > 0:
		leaf := in.TaprootLeafScript[0]
		items, err := scriptSpendWitness(leaf.Script, in.TaprootScriptSpendSig)
		if err != nil {
			return err
		}
		witness := append(items, leaf.Script, leaf.ControlBlock)
		pkt.Inputs[index].FinalScriptWitness = serializeWitness(witness)
		return nil

	case len(in.PartialSigs) > 0:
		return psbt.Finalize(pkt, index)

	default:
		return ErrNotFinalizable
	}
}

// scriptSpendWitness builds the CHECKSIGADD witness stack for a compiled
// leaf script: one item per key the script authenticates against, its
// collected signature or an empty push if none was collected, ordered so
// each OP_CHECKSIG/OP_CHECKSIGADD consumes the item belonging to its own
// key. Witness items are stack-pushed in array order, so the item for the
// script's first key must end up last in the slice.
func scriptSpendWitness(script []byte, sigs []*psbt.TaprootScriptSpendSig) ([][]byte, error) {
	keys, err := leafScriptKeys(script)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNotFinalizable
	}
	sigByKey := make(map[string][]byte, len(sigs))
	for _, s := range sigs {
		sigByKey[string(s.XOnlyPubKey)] = s.Signature
	}
	items := make([][]byte, len(keys))
	for i, key := range keys {
		items[len(keys)-1-i] = sigByKey[string(key)]
	}
	return items, nil
}

// serializeWitness encodes a witness stack in BIP-144 form: a var-int item
// count followed by each item as a var-int-prefixed byte string, which is
// the format the PSBT PSBT_IN_FINAL_SCRIPTWITNESS field carries.
func serializeWitness(items [][]byte) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(items)))
	for _, item := range items {
		_ = wire.WriteVarBytes(&buf, 0, item)
	}
	return buf.Bytes()
}
