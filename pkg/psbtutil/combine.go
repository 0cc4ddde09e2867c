package psbtutil

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/psbt"
)

// Combine merges partial signatures from one or more PSBTs of the same
// unsigned transaction into a single packet. Duplicate signatures are
// deduplicated; two different signatures from the same key on the same
// input is ErrConflictingSignature.
func Combine(psbts []*psbt.Packet) (*psbt.Packet, error) {
	if len(psbts) == 0 {
		return nil, ErrNotFinalizable
	}
	base := psbts[0]
	for _, other := range psbts[1:] {
		if err := mergeInto(base, other); err != nil {
			return nil, err
		}
	}
	return base, nil
}

func mergeInto(base, other *psbt.Packet) error {
	if len(base.Inputs) != len(other.Inputs) {
		return ErrConflictingSignature
	}
	for i := range base.Inputs {
		if err := mergeTaprootKeySpend(&base.Inputs[i], &other.Inputs[i]); err != nil {
			return err
		}
		if err := mergeTaprootScriptSpend(&base.Inputs[i], &other.Inputs[i]); err != nil {
			return err
		}
		if err := mergePartialSigs(&base.Inputs[i], &other.Inputs[i]); err != nil {
			return err
		}
	}
	return nil
}

func mergeTaprootKeySpend(dst, src *psbt.PInput) error {
	if len(src.TaprootKeySpendSig) == 0 {
		return nil
	}
	if len(dst.TaprootKeySpendSig) == 0 {
		dst.TaprootKeySpendSig = src.TaprootKeySpendSig
		return nil
	}
	if !bytes.Equal(dst.TaprootKeySpendSig, src.TaprootKeySpendSig) {
		return ErrConflictingSignature
	}
	return nil
}

func mergeTaprootScriptSpend(dst, src *psbt.PInput) error {
	for _, s := range src.TaprootScriptSpendSig {
		found := false
		for _, d := range dst.TaprootScriptSpendSig {
			if bytes.Equal(d.XOnlyPubKey, s.XOnlyPubKey) && bytes.Equal(d.LeafHash, s.LeafHash) {
				found = true
				if !bytes.Equal(d.Signature, s.Signature) {
					return ErrConflictingSignature
				}
			}
		}
		if !found {
			dst.TaprootScriptSpendSig = append(dst.TaprootScriptSpendSig, s)
			if len(dst.TaprootLeafScript) == 0 && len(src.TaprootLeafScript) > 0 {
				dst.TaprootLeafScript = src.TaprootLeafScript
				dst.TaprootMerkleRoot = src.TaprootMerkleRoot
			}
		}
	}
	return nil
}

func mergePartialSigs(dst, src *psbt.PInput) error {
	for _, s := range src.PartialSigs {
		found := false
		for _, d := range dst.PartialSigs {
			if bytes.Equal(d.PubKey, s.PubKey) {
				found = true
				if !bytes.Equal(d.Signature, s.Signature) {
					return ErrConflictingSignature
				}
			}
		}
		if !found {
			dst.PartialSigs = append(dst.PartialSigs, s)
		}
	}
	return nil
}
