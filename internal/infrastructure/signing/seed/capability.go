// Package seed implements domain.Capability directly against an unlocked
// pkg/keys.Identity, for the mnemonic-backed Seed and Mnemonic signer
// variants.
package seed

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"github.com/btc-vaults/vaultcore/internal/core/domain"
	"github.com/btc-vaults/vaultcore/pkg/keys"
	"github.com/btc-vaults/vaultcore/pkg/psbtutil"
)

// leaf is one (purpose, account) key this Capability can produce a
// descriptor for and sign with. This protocol pins a single leaf per
// purpose rather than a ranged keychain, so a signer's public footprint is
// exactly the set of leaves it was configured with.
type leaf struct {
	purpose domain.Purpose
	account uint32
}

// Capability wraps an unlocked Identity and a fixed set of derivation
// leaves, one per purpose the signer participates under.
type Capability struct {
	identity *keys.Identity
	leaves   []leaf
}

// New builds a Capability for identity, exposing one descriptor per
// (purpose, account) pair in leaves. account/change/index default to 0;
// WithAccount overrides the account only.
func New(identity *keys.Identity, purposes ...domain.Purpose) *Capability {
	leaves := make([]leaf, len(purposes))
	for i, p := range purposes {
		leaves[i] = leaf{purpose: p, account: 0}
	}
	return &Capability{identity: identity, leaves: leaves}
}

// WithAccount overrides the account index used to derive purpose's leaf.
func (c *Capability) WithAccount(purpose domain.Purpose, account uint32) *Capability {
	for i, l := range c.leaves {
		if l.purpose == purpose {
			c.leaves[i].account = account
			return c
		}
	}
	c.leaves = append(c.leaves, leaf{purpose: purpose, account: account})
	return c
}

func (c *Capability) Fingerprint() [4]byte {
	return c.identity.MasterFingerprint()
}

// Descriptors returns this signer's bare x-only public key per purpose, per
// the shape internal/core/application resolves signer key material from
// (Signer.DescriptorsByPurp entries are 64-hex-char x-only keys, not xpubs).
func (c *Capability) Descriptors() map[domain.Purpose]string {
	out := make(map[domain.Purpose]string, len(c.leaves))
	for _, l := range c.leaves {
		xonly, err := c.identity.LeafXOnlyPubKey(keys.Purpose(l.purpose), l.account, 0, 0)
		if err != nil {
			continue
		}
		out[l.purpose] = fmt.Sprintf("%x", xonly[:])
	}
	return out
}

// Sign parses psbtBytes, adds this Capability's partial signature from every
// configured leaf to every input, and returns the re-serialized packet.
// psbtutil.Sign is a no-op for a leaf that already has a signature attached,
// so calling Sign twice on the same packet with the same Capability is safe.
func (c *Capability) Sign(psbtBytes []byte) ([]byte, error) {
	pkt, err := psbt.NewFromRawBytes(bytes.NewReader(psbtBytes), false)
	if err != nil {
		return nil, err
	}
	if len(c.leaves) == 0 {
		return nil, fmt.Errorf("seed capability: no leaves configured")
	}

	for i := range pkt.Inputs {
		for _, l := range c.leaves {
			priv, err := c.identity.LeafPrivKey(keys.Purpose(l.purpose), l.account, 0, 0)
			if err != nil {
				return nil, err
			}
			if err := psbtutil.Sign(pkt, priv, i); err != nil {
				return nil, err
			}
		}
	}

	var out bytes.Buffer
	if err := pkt.Serialize(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
