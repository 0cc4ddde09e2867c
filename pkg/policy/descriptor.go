package policy

import (
	"crypto/sha256"
	"strings"

	"github.com/btc-vaults/vaultcore/pkg/keys"
)

// TemplateClass is the coarse-grained shape of a policy's spending
// conditions, computed structurally from its parsed descriptor tree.
type TemplateClass string

const (
	Singlesig            TemplateClass = "Singlesig"
	MultisigKofN         TemplateClass = "MultisigKofN"
	SocialRecovery        TemplateClass = "SocialRecovery"
	HoldLock             TemplateClass = "HoldLock"
	DecayingMultisig     TemplateClass = "DecayingMultisig"
	CollaborativeCustody TemplateClass = "CollaborativeCustody"
	Custom               TemplateClass = "Custom"
)

// tagPolicy is BIP-340's domain-separation tag for policy_id:
// policy_id = tagged_hash("smartvaults/policy", descriptor_bytes||network_byte).
const tagPolicy = "smartvaults/policy"

// TaggedHash implements BIP-340's tagged hash: sha256(sha256(tag) ||
// sha256(tag) || msg). No example repo exports this as a standalone helper
// (btcec/v2/schnorr only uses it internally for signature challenges), so it
// is reimplemented here (DESIGN.md).
func TaggedHash(tag string, msg []byte) [32]byte {
	tagHash := sha256.Sum256([]byte(tag))
	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	h.Write(msg)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Parse parses a raw output descriptor string (tr(...) or wsh(...)) into a
// Descriptor. It does not yet validate the descriptor's keys against a
// network; call Compile for the full compile + validate + classify
// pipeline.
func Parse(raw string) (*Descriptor, error) {
	raw = strings.TrimSpace(raw)
	// Strip a trailing checksum ("#abcdefgh") if present, as real descriptors carry one.
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	switch {
	case strings.HasPrefix(raw, "tr("):
		inner := raw[len("tr(") : len(raw)-1]
		if !strings.HasSuffix(raw, ")") {
			return nil, ErrDescriptorInvalid
		}
		internalKey, scriptStr, hasScript := splitTaprootArgs(inner)
		d := &Descriptor{Raw: raw, IsTaproot: true, InternalKey: internalKey}
		if hasScript {
			node, err := parseSubFragment(scriptStr)
			if err != nil {
				return nil, err
			}
			d.Script = node
		}
		return d, nil

	case strings.HasPrefix(raw, "wsh("):
		inner := raw[len("wsh(") : len(raw)-1]
		if !strings.HasSuffix(raw, ")") {
			return nil, ErrDescriptorInvalid
		}
		node, err := parseSubFragment(inner)
		if err != nil {
			return nil, err
		}
		return &Descriptor{Raw: raw, IsTaproot: false, Script: node}, nil

	default:
		return nil, ErrDescriptorInvalid
	}
}

// splitTaprootArgs splits tr()'s inner "internal_key" or
// "internal_key,script_expr" (single-leaf tree; a braced multi-leaf tree is
// not supported and makes Parse return ErrDescriptorInvalid).
func splitTaprootArgs(inner string) (internalKey, script string, hasScript bool) {
	depth := 0
	for i, r := range inner {
		switch r {
		case '(', '{':
			depth++
		case ')', '}':
			depth--
		case ',':
			if depth == 0 {
				return strings.TrimSpace(inner[:i]), strings.TrimSpace(inner[i+1:]), true
			}
		}
	}
	return strings.TrimSpace(inner), "", false
}

// CompileArgs bundles Compile's inputs.
type CompileArgs struct {
	// Expression is either an already-formed output descriptor
	// (tr(...)/wsh(...)) or a bare miniscript policy fragment
	// (pk(...)/multi(...)/and_v(...)/etc.), in which case it is wrapped in
	// tr() with a NUMS internal key.
	Expression string
	Network    keys.Network
}

// numsInternalKey is BIP-341's standard unspendable "nothing up my sleeve"
// x-only point, used as tr()'s internal key when a policy has no natural
// single signer to elect for the key-path.
const numsInternalKey = "50929b74c1a04954b78b4b6035e97a5e078a5a0f28ec96d547bfee9ace803ac0"

// Compile turns a miniscript policy expression or output descriptor string
// into a validated, classified Policy-ready Descriptor.
func Compile(args CompileArgs) (*Descriptor, TemplateClass, error) {
	expr := strings.TrimSpace(args.Expression)
	if expr == "" {
		return nil, "", ErrDescriptorInvalid
	}
	if !args.Network.Valid() {
		return nil, "", ErrNetworkMismatch
	}

	if !strings.HasPrefix(expr, "tr(") && !strings.HasPrefix(expr, "wsh(") {
		expr = "tr(" + numsInternalKey + "," + expr + ")"
	}

	desc, err := Parse(expr)
	if err != nil {
		return nil, "", err
	}

	if len(desc.NamedKeys()) == 0 {
		return nil, "", ErrNoNamedSigners
	}

	if err := validateNetwork(desc, args.Network); err != nil {
		return nil, "", err
	}

	class := Classify(desc)
	return desc, class, nil
}

// NamedKeys returns every named signer public key referenced by the
// descriptor: tr()'s internal key (unless it's the NUMS point) plus every
// pk()/multi_a() key in the script tree.
func (d *Descriptor) NamedKeys() []string {
	var out []string
	seen := map[string]bool{}
	add := func(k string) {
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}
	if d.IsTaproot && !strings.EqualFold(stripOrigin(d.InternalKey), numsInternalKey) {
		add(d.InternalKey)
	}
	for _, k := range d.Script.NamedKeys() {
		add(k)
	}
	return out
}

// HasUnspendableInternalKey reports whether d is a taproot descriptor whose
// internal key is the NUMS point, meaning it has no key-path spend at all
// and every spend must go through its script tree.
func (d *Descriptor) HasUnspendableInternalKey() bool {
	return d.IsTaproot && strings.EqualFold(stripOrigin(d.InternalKey), numsInternalKey)
}

// StripKeyOrigin removes an optional "[fingerprint/path]" key-origin prefix
// and a trailing ranged-derivation suffix from a descriptor key expression,
// leaving the bare key material (hex xonly/compressed key or base58 xpub).
func StripKeyOrigin(k string) string { return stripOrigin(k) }

// stripOrigin removes an optional "[fingerprint/path]" key-origin prefix
// before comparing a key expression to the NUMS constant.
func stripOrigin(k string) string {
	if strings.HasPrefix(k, "[") {
		if i := strings.IndexByte(k, ']'); i >= 0 {
			k = k[i+1:]
		}
	}
	k = strings.TrimSuffix(k, "/0/*")
	k = strings.TrimSuffix(k, "/1/*")
	k = strings.TrimSuffix(k, "/<0;1>/*")
	return k
}

func validateNetwork(d *Descriptor, network keys.Network) error {
	// Extended (xpub/tpub) key material carries its own network marker;
	// bare x-only/compressed hex keys are network-agnostic. Reject an
	// obvious mainnet/testnet xpub mismatch.
	isTestParams := network != keys.Bitcoin
	for _, k := range d.NamedKeys() {
		k = stripOrigin(k)
		switch {
		case strings.HasPrefix(k, "xpub") || strings.HasPrefix(k, "xprv"):
			if isTestParams {
				return ErrNetworkMismatch
			}
		case strings.HasPrefix(k, "tpub") || strings.HasPrefix(k, "tprv"):
			if !isTestParams {
				return ErrNetworkMismatch
			}
		}
	}
	return nil
}

// PolicyID computes the content-addressed policy identifier:
// tagged_hash("smartvaults/policy", descriptor_bytes || network_byte).
func PolicyID(descriptor string, network keys.Network) ([32]byte, error) {
	nb, err := network.Byte()
	if err != nil {
		return [32]byte{}, err
	}
	msg := append([]byte(descriptor), nb)
	return TaggedHash(tagPolicy, msg), nil
}

// Classify computes the descriptor's TemplateClass from its parsed shape.
func Classify(d *Descriptor) TemplateClass {
	keyCount := len(d.NamedKeys())

	if d.Script == nil {
		if keyCount == 1 {
			return Singlesig
		}
		return Custom
	}

	hasAbs := d.Script.AbsoluteTimelock() > 0
	hasRel := d.Script.RelativeTimelock() > 0

	switch d.Script.Kind {
	case NodeMulti, NodeMultiA:
		if !hasAbs && !hasRel {
			if d.Script.Thresh == len(d.Script.Keys) {
				return MultisigKofN
			}
			return CollaborativeCustody
		}
	case NodeThresh:
		// Mirror the NodeMulti/NodeMultiA classification above: an
		// n-of-n thresh() is functionally the same k-of-n multisig, not
		// a collaborative m-of-n where m < n.
		if !hasAbs && !hasRel {
			if d.Script.Thresh == len(d.Script.Children) {
				return MultisigKofN
			}
			return CollaborativeCustody
		}
	case NodeAndV:
		// and_v(v:pk(A), older(n)) / and_v(v:pk(A), after(n)): a single
		// signer gated by a timelock.
		if hasAbs || hasRel {
			if countLeafKeys(d.Script) == 1 {
				return HoldLock
			}
			return DecayingMultisig
		}
	case NodeOrD, NodeOrC:
		// or_d(pk(A), and_v(v:thresh(...), older(n))): primary signer, with
		// a fallback recovery path.
		if countLeafKeys(d.Script) >= 2 {
			return SocialRecovery
		}
	}

	if hasRel && keyCount >= 2 {
		return DecayingMultisig
	}
	return Custom
}

func countLeafKeys(n *Node) int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case NodePk:
		return 1
	case NodeMulti, NodeMultiA:
		return len(n.Keys)
	}
	total := 0
	for _, c := range n.Children {
		total += countLeafKeys(c)
	}
	return total
}
