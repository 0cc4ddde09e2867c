package psbtutil

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// prevOutFetcher builds a MultiPrevOutputFetcher from a packet's
// WitnessUtxo entries, grounded on the CannedPrevOutputFetcher pattern
// used by lightninglabs-taproot-assets/vm.InputKeySpendSigHash.
func prevOutFetcher(pkt *psbt.Packet) *txscript.MultiPrevOutFetcher {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range pkt.Inputs {
		if in.WitnessUtxo != nil {
			fetcher.AddPrevOut(pkt.UnsignedTx.TxIn[i].PreviousOutPoint, in.WitnessUtxo)
		}
	}
	return fetcher
}

// Sign adds priv's partial signature to inputIndex of pkt, no-op if a
// signature from this key is already present. Both taproot key-path and
// single-leaf script-path inputs are supported;
// which applies is inferred from whether the input carries TaprootLeafScript
// data (populated by Draft when PolicyPath was set).
func Sign(pkt *psbt.Packet, priv *btcec.PrivateKey, inputIndex int) error {
	in := &pkt.Inputs[inputIndex]
	pub := priv.PubKey()
	xonlyPub := schnorr.SerializePubKey(pub)

	for _, existing := range in.TaprootScriptSpendSig {
		if len(existing.XOnlyPubKey) == 32 && string(existing.XOnlyPubKey) == string(xonlyPub) {
			return nil
		}
	}
	if in.TaprootKeySpendSig != nil {
		return nil
	}

	fetcher := prevOutFetcher(pkt)
	sigHashes := txscript.NewTxSigHashes(pkt.UnsignedTx, fetcher)

	if len(in.TaprootLeafScript) > 0 {
		leafScript := in.TaprootLeafScript[0]
		leaf := txscript.TapLeaf{LeafVersion: leafScript.LeafVersion, Script: leafScript.Script}
		hash, err := txscript.CalcTapscriptSignaturehash(
			sigHashes, txscript.SigHashDefault, pkt.UnsignedTx, inputIndex, fetcher, leaf,
		)
		if err != nil {
			return err
		}
		sig, err := schnorr.Sign(priv, hash)
		if err != nil {
			return err
		}
		leafHash := leaf.TapHash()
		in.TaprootScriptSpendSig = append(in.TaprootScriptSpendSig, &psbt.TaprootScriptSpendSig{
			XOnlyPubKey: xonlyPub,
			LeafHash:    leafHash[:],
			Signature:   sig.Serialize(),
			SigHash:     txscript.SigHashDefault,
		})
		return nil
	}

	hash, err := txscript.CalcTaprootSignatureHash(
		sigHashes, txscript.SigHashDefault, pkt.UnsignedTx, inputIndex, fetcher,
	)
	if err != nil {
		return err
	}
	// Key-path spends sign with the BIP-341-tweaked key, not the raw
	// internal key; in.TaprootMerkleRoot is nil for a script-less output
	// and the leaf merkle root otherwise, covering both cases.
	tweaked := txscript.TweakTaprootPrivKey(*priv, in.TaprootMerkleRoot)
	sig, err := schnorr.Sign(tweaked, hash)
	if err != nil {
		return err
	}
	in.TaprootKeySpendSig = sig.Serialize()
	return nil
}

// legacySign covers the wsh() non-taproot path, always with sighash ALL.
func legacySign(pkt *psbt.Packet, priv *btcec.PrivateKey, inputIndex int, redeemScript []byte) error {
	fetcher := prevOutFetcher(pkt)
	hash, err := txscript.CalcWitnessSigHash(
		redeemScript, txscript.NewTxSigHashes(pkt.UnsignedTx, fetcher),
		txscript.SigHashAll, pkt.UnsignedTx, inputIndex,
		pkt.Inputs[inputIndex].WitnessUtxo.Value,
	)
	if err != nil {
		return err
	}
	sig := ecdsa.Sign(priv, hash)
	der := append(sig.Serialize(), byte(txscript.SigHashAll))
	pkt.Inputs[inputIndex].PartialSigs = append(pkt.Inputs[inputIndex].PartialSigs, &psbt.PartialSig{
		PubKey:    priv.PubKey().SerializeCompressed(),
		Signature: der,
	})
	return nil
}
