package psbtutil

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"

	"github.com/btc-vaults/vaultcore/pkg/policy"
)

// TapOutput is the resolved taproot output for a Descriptor: its internal
// key, its script tree (if any) and the resulting tweaked output key.
type TapOutput struct {
	InternalKey *btcec.PublicKey
	OutputKey   *btcec.PublicKey
	Tree        *txscript.IndexedTapScriptTree // nil for a key-path-only descriptor
	LeafScript  []byte                         // nil for a key-path-only descriptor
	MerkleRoot  []byte                         // nil for a key-path-only descriptor
}

// PkScript returns the P2TR scriptPubKey for this output.
func (t *TapOutput) PkScript() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_1).
		AddData(schnorr.SerializePubKey(t.OutputKey)).
		Script()
}

// ControlBlock returns the taproot control block bytes needed to spend the
// single tapscript leaf via the script path.
func (t *TapOutput) ControlBlock() ([]byte, error) {
	if t.Tree == nil {
		return nil, fmt.Errorf("descriptor has no script path")
	}
	block := t.Tree.LeafMerkleProofs[0].ToControlBlock(t.InternalKey)
	return block.ToBytes()
}

// ResolveTaproot computes the tweaked output key (and, if the descriptor
// carries a script, the single-leaf tapscript tree) for a compiled
// Descriptor, grounded on the ComputeTaprootOutputKey/AssembleTaprootScriptTree
// pattern used by lightninglabs-taproot-assets' tapscript.NewChannelFundingScriptTree.
func ResolveTaproot(d *policy.Descriptor) (*TapOutput, error) {
	if !d.IsTaproot {
		return nil, fmt.Errorf("descriptor is not a tr() output")
	}
	internalRaw, err := parseKeyHex(d.InternalKey)
	if err != nil {
		return nil, err
	}
	internalKey, err := schnorr.ParsePubKey(internalRaw[len(internalRaw)-32:])
	if err != nil {
		return nil, err
	}

	out := &TapOutput{InternalKey: internalKey}
	if d.Script == nil {
		out.OutputKey = txscript.ComputeTaprootKeyNoScript(internalKey)
		return out, nil
	}

	leafScript, err := compileLeafScript(d.Script)
	if err != nil {
		return nil, err
	}
	leaf := txscript.NewBaseTapLeaf(leafScript)
	tree := txscript.AssembleTaprootScriptTree(leaf)
	root := tree.RootNode.TapHash()

	out.LeafScript = leafScript
	out.Tree = tree
	out.MerkleRoot = root[:]
	out.OutputKey = txscript.ComputeTaprootOutputKey(internalKey, root[:])
	return out, nil
}
