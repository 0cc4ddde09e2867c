package psbtutil

import (
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/btc-vaults/vaultcore/pkg/policy"
)

// UTXO is a candidate input available to a draft: an outpoint, value, and
// scriptPubKey.
type UTXO struct {
	OutPoint wire.OutPoint
	Value    int64
	PkScript []byte
}

// Destination is one output of a drafted spend.
type Destination struct {
	PkScript []byte
	Amount   int64
}

// DraftArgs bundles Draft's inputs for building an unsigned spend PSBT.
type DraftArgs struct {
	Descriptor   *policy.Descriptor
	Destinations []Destination
	FeeRateSatVB float64

	// AvailableUTXOs is the full known UTXO set for the policy's descriptor.
	AvailableUTXOs []UTXO
	// Explicit, when non-empty, pins the exact inputs to spend.
	Explicit []wire.OutPoint
	// PolicyPath selects a taproot script-path spend; it is required when the
	// descriptor's internal key is the unspendable NUMS key or its script has
	// a timelock. This engine supports only a single-leaf script tree, so any
	// non-empty value selects that leaf.
	PolicyPath string
	// AllowFrozen, when false (the default), excludes any UTXO for which
	// IsFrozen returns true.
	AllowFrozen bool
	IsFrozen    func(wire.OutPoint) bool
}

// DraftResult is Draft's output: the unsigned PSBT and the inputs it spent.
type DraftResult struct {
	Packet      *psbt.Packet
	SpentInputs []wire.OutPoint
	FeeSat      int64
}

// EstimatedVBytes approximates the virtual size of a 1-input-per-taproot-key-path,
// N-output transaction. Real fee estimation would walk the actual witness
// stack sizes; this is a closed-form estimate, not a dry-run.
func EstimatedVBytes(numInputs, numOutputs int, hasScriptPath bool) int64 {
	const (
		baseOverhead    = 10  // version, locktime, segwit marker/flag
		perInputKeyPath = 58  // outpoint + sequence + 1 witness item (schnorr sig, weighted)
		perInputScript  = 108 // outpoint + sequence + witness (sig + script + control block, weighted)
		perOutput       = 43  // amount + p2tr scriptPubKey
	)
	perInput := int64(perInputKeyPath)
	if hasScriptPath {
		perInput = perInputScript
	}
	return baseOverhead + perInput*int64(numInputs) + perOutput*int64(numOutputs)
}

// Draft builds an unsigned PSBT spending inputs from AvailableUTXOs (or the
// explicit set) to Destinations.
func Draft(args DraftArgs) (*DraftResult, error) {
	if len(args.Destinations) == 0 {
		return nil, ErrNoDestinations
	}

	// A script is spendable via the key path only when the internal key is
	// a real signer; Compile wraps any bare policy in tr(NUMS, ...), which
	// leaves the key path permanently unspendable regardless of timelocks.
	hasScriptPath := args.Descriptor.Script != nil && (
		args.Descriptor.HasUnspendableInternalKey() ||
			args.Descriptor.Script.AbsoluteTimelock() > 0 ||
			args.Descriptor.Script.RelativeTimelock() > 0)
	if hasScriptPath && args.PolicyPath == "" {
		return nil, ErrPolicyPathRequired
	}

	candidates := args.AvailableUTXOs
	if len(args.Explicit) > 0 {
		byOutpoint := make(map[wire.OutPoint]UTXO, len(args.AvailableUTXOs))
		for _, u := range args.AvailableUTXOs {
			byOutpoint[u.OutPoint] = u
		}
		candidates = candidates[:0]
		for _, op := range args.Explicit {
			u, ok := byOutpoint[op]
			if !ok {
				return nil, ErrInsufficientFunds
			}
			if !args.AllowFrozen && args.IsFrozen != nil && args.IsFrozen(op) {
				return nil, ErrInsufficientFunds
			}
			candidates = append(candidates, u)
		}
	} else if !args.AllowFrozen && args.IsFrozen != nil {
		filtered := make([]UTXO, 0, len(candidates))
		for _, u := range candidates {
			if !args.IsFrozen(u.OutPoint) {
				filtered = append(filtered, u)
			}
		}
		candidates = filtered
	}

	var target int64
	for _, d := range args.Destinations {
		target += d.Amount
	}

	var selected []UTXO
	var total int64
	if len(args.Explicit) > 0 {
		selected = candidates
		for _, u := range selected {
			total += u.Value
		}
	} else {
		var err error
		selected, total, err = selectUTXOs(candidates, target, args.FeeRateSatVB, len(args.Destinations), hasScriptPath)
		if err != nil {
			return nil, err
		}
	}

	fee := int64(float64(EstimatedVBytes(len(selected), len(args.Destinations)+1, hasScriptPath)) * args.FeeRateSatVB)
	change := total - target - fee
	if change < 0 {
		return nil, ErrInsufficientFunds
	}

	tx := wire.NewMsgTx(2)
	outpoints := make([]wire.OutPoint, 0, len(selected))
	for _, u := range selected {
		txIn := wire.NewTxIn(&u.OutPoint, nil, nil)
		// RBF opt-in: sequence below 0xfffffffe.
		txIn.Sequence = wire.MaxTxInSequenceNum - 2
		tx.AddTxIn(txIn)
		outpoints = append(outpoints, u.OutPoint)
	}
	for _, d := range args.Destinations {
		tx.AddTxOut(wire.NewTxOut(d.Amount, d.PkScript))
	}
	if change > 0 {
		changeScript, err := changeOutputScript(args.Descriptor)
		if err != nil {
			return nil, err
		}
		tx.AddTxOut(wire.NewTxOut(change, changeScript))
	}

	pkt, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, err
	}
	for i, u := range selected {
		pkt.Inputs[i].WitnessUtxo = wire.NewTxOut(u.Value, u.PkScript)
		if args.Descriptor.IsTaproot {
			pkt.Inputs[i].SighashType = txscript.SigHashDefault
		} else {
			pkt.Inputs[i].SighashType = txscript.SigHashAll
		}
	}
	if hasScriptPath {
		tap, err := ResolveTaproot(args.Descriptor)
		if err != nil {
			return nil, err
		}
		leafHash := tap.Tree.RootNode.TapHash()
		ctrlBlock, err := tap.ControlBlock()
		if err != nil {
			return nil, err
		}
		for i := range selected {
			pkt.Inputs[i].TaprootLeafScript = []*psbt.TaprootTapLeafScript{{
				ControlBlock: ctrlBlock,
				Script:       tap.LeafScript,
				LeafVersion:  txscript.BaseLeafVersion,
			}}
			pkt.Inputs[i].TaprootMerkleRoot = leafHash[:]
		}
	}

	return &DraftResult{Packet: pkt, SpentInputs: outpoints, FeeSat: fee}, nil
}

// selectUTXOs implements a simple largest-first coin selector: deterministic
// given a fixed ordering, minimizing the number of inputs spent since a
// taproot custody wallet carries no confidential-amount unlinkability
// concern that would favor a smallest-subset heuristic instead.
func selectUTXOs(candidates []UTXO, target int64, feeRate float64, numOutputs int, hasScriptPath bool) ([]UTXO, int64, error) {
	sorted := make([]UTXO, len(candidates))
	copy(sorted, candidates)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Value > sorted[j-1].Value; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var selected []UTXO
	var total int64
	for _, u := range sorted {
		selected = append(selected, u)
		total += u.Value
		fee := int64(float64(EstimatedVBytes(len(selected), numOutputs+1, hasScriptPath)) * feeRate)
		if total >= target+fee {
			return selected, total, nil
		}
	}
	return nil, 0, ErrInsufficientFunds
}

func changeOutputScript(d *policy.Descriptor) ([]byte, error) {
	if !d.IsTaproot {
		return nil, ErrNotFinalizable
	}
	tap, err := ResolveTaproot(d)
	if err != nil {
		return nil, err
	}
	return tap.PkScript()
}

// TxidFromOutpoint is a small readability helper returning an outpoint's
// transaction id.
func TxidFromOutpoint(op wire.OutPoint) chainhash.Hash {
	return op.Hash
}
