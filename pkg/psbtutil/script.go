package psbtutil

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"

	"github.com/btc-vaults/vaultcore/pkg/policy"
)

// compileLeafScript lowers a parsed miniscript fragment (policy.Node) into a
// raw bitcoin script for use as a single taproot leaf, covering the
// fragment set: pk, multi_a, and_v, or_d, or_c, thresh, older, after.
//
// This engine supports a single-leaf tapscript tree (policy.Descriptor.Script),
// matching the descriptor grammar this module parses; multi-leaf trees are
// already rejected by policy.Parse with ErrDescriptorInvalid.
func compileLeafScript(n *policy.Node) ([]byte, error) {
	b := txscript.NewScriptBuilder()
	if err := appendVerifying(b, n); err != nil {
		return nil, err
	}
	return b.Script()
}

// appendVerifying compiles n so that it leaves nothing but either aborts or
// falls through (a "verify" style fragment, as required at the top of a
// tapscript leaf and by and_v's left operand).
func appendVerifying(b *txscript.ScriptBuilder, n *policy.Node) error {
	switch n.Kind {
	case policy.NodeVWrap:
		return appendVerifying(b, n.Children[0])

	case policy.NodePk:
		key, err := xonly(n.Key)
		if err != nil {
			return err
		}
		b.AddData(key).AddOp(txscript.OP_CHECKSIGVERIFY)
		return nil

	case policy.NodeOlder:
		b.AddInt64(int64(n.Locktime)).AddOp(txscript.OP_CHECKSEQUENCEVERIFY).AddOp(txscript.OP_DROP)
		return nil

	case policy.NodeAfter:
		b.AddInt64(int64(n.Locktime)).AddOp(txscript.OP_CHECKLOCKTIMEVERIFY).AddOp(txscript.OP_DROP)
		return nil

	case policy.NodeAndV:
		if err := appendVerifying(b, n.Children[0]); err != nil {
			return err
		}
		return appendVerifying(b, n.Children[1])

	case policy.NodeMulti, policy.NodeMultiA, policy.NodeOrD, policy.NodeOrC, policy.NodeThresh:
		if err := appendBoolean(b, n); err != nil {
			return err
		}
		b.AddOp(txscript.OP_VERIFY)
		return nil

	default:
		return fmt.Errorf("policy: fragment kind %d cannot appear in verify position", n.Kind)
	}
}

// appendBoolean compiles n so it leaves a single 0/1 on the stack.
func appendBoolean(b *txscript.ScriptBuilder, n *policy.Node) error {
	switch n.Kind {
	case policy.NodePk:
		key, err := xonly(n.Key)
		if err != nil {
			return err
		}
		b.AddData(key).AddOp(txscript.OP_CHECKSIG)
		return nil

	case policy.NodeMultiA:
		for i, k := range n.Keys {
			key, err := xonly(k)
			if err != nil {
				return err
			}
			b.AddData(key)
			if i == 0 {
				b.AddOp(txscript.OP_CHECKSIG)
			} else {
				b.AddOp(txscript.OP_CHECKSIGADD)
			}
		}
		b.AddInt64(int64(n.Thresh)).AddOp(txscript.OP_NUMEQUAL)
		return nil

	case policy.NodeMulti:
		// Legacy multi() has no tapscript-native opcode; approximate its
		// k-of-n semantics with the same CHECKSIGADD accumulator multi_a
		// uses, since this engine only targets taproot leaves.
		return appendBoolean(b, &policy.Node{Kind: policy.NodeMultiA, Thresh: n.Thresh, Keys: n.Keys})

	case policy.NodeThresh:
		// A thresh() over bare pk() leaves is a k-of-n multisig in
		// disguise: reuse multi_a's CHECKSIGADD accumulator instead of
		// summing independent CHECKSIG booleans with OP_ADD, since a
		// second plain OP_CHECKSIG can't reach past the first child's
		// leftover boolean to find its own signature on the stack.
		if keys, ok := barePkKeys(n.Children); ok {
			return appendBoolean(b, &policy.Node{Kind: policy.NodeMultiA, Thresh: n.Thresh, Keys: keys})
		}
		for i, c := range n.Children {
			if err := appendBoolean(b, c); err != nil {
				return err
			}
			if i > 0 {
				b.AddOp(txscript.OP_ADD)
			}
		}
		b.AddInt64(int64(n.Thresh)).AddOp(txscript.OP_NUMEQUAL)
		return nil

	case policy.NodeOrD:
		if err := appendBoolean(b, n.Children[0]); err != nil {
			return err
		}
		b.AddOp(txscript.OP_IFDUP)
		b.AddOp(txscript.OP_NOTIF)
		if err := appendBoolean(b, n.Children[1]); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
		return nil

	case policy.NodeOrC:
		if err := appendBoolean(b, n.Children[0]); err != nil {
			return err
		}
		b.AddOp(txscript.OP_NOTIF)
		if err := appendVerifying(b, n.Children[1]); err != nil {
			return err
		}
		b.AddOp(txscript.OP_ENDIF)
		b.AddOp(txscript.OP_1)
		return nil

	case policy.NodeAndV:
		if err := appendVerifying(b, n.Children[0]); err != nil {
			return err
		}
		return appendBoolean(b, n.Children[1])

	default:
		return fmt.Errorf("policy: fragment kind %d cannot appear in boolean position", n.Kind)
	}
}

// barePkKeys returns the key expressions of children if every one is a bare
// pk() leaf.
func barePkKeys(children []*policy.Node) ([]string, bool) {
	keys := make([]string, 0, len(children))
	for _, c := range children {
		if c.Kind != policy.NodePk {
			return nil, false
		}
		keys = append(keys, c.Key)
	}
	return keys, true
}

// leafScriptKeys walks a compiled leaf script and returns, in order, the
// 32-byte x-only keys that feed an OP_CHECKSIG/OP_CHECKSIGADD/
// OP_CHECKSIGVERIFY — the CHECKSIGADD accumulator's key order, which
// Finalize needs to place each collected signature into its matching
// witness stack slot.
func leafScriptKeys(script []byte) ([][]byte, error) {
	var keys [][]byte
	var pending []byte
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		switch data := tokenizer.Data(); {
		case len(data) == 32:
			pending = data
		case tokenizer.Opcode() == txscript.OP_CHECKSIG,
			tokenizer.Opcode() == txscript.OP_CHECKSIGADD,
			tokenizer.Opcode() == txscript.OP_CHECKSIGVERIFY:
			if pending == nil {
				return nil, fmt.Errorf("policy: CHECKSIG-family opcode with no preceding key push")
			}
			keys = append(keys, pending)
			pending = nil
		default:
			pending = nil
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// xonly parses a hex-encoded key expression (stripping any [fingerprint/path]
// origin and /0/*-style ranged-derivation suffix) into its 32-byte x-only
// serialization for use in a tapscript leaf.
func xonly(keyExpr string) ([]byte, error) {
	raw, err := parseKeyHex(keyExpr)
	if err != nil {
		return nil, err
	}
	switch len(raw) {
	case 32:
		return raw, nil
	case 33:
		pub, err := schnorr.ParsePubKey(raw[1:])
		if err != nil {
			return nil, err
		}
		return pub.SerializeCompressed()[1:], nil
	default:
		return nil, fmt.Errorf("policy: key %q is not a 32- or 33-byte key", keyExpr)
	}
}
