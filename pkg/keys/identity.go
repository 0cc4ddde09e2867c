package keys

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	path "github.com/btc-vaults/vaultcore/pkg/wallet/derivation-path"
	"github.com/btc-vaults/vaultcore/pkg/wallet/mnemonic"
)

// NostrIdentityPath is the fixed derivation path assigned to the relay
// signing identity, mirroring NIP-06's account-0 convention.
const NostrIdentityPath = "m/44'/1237'/0'/0/0"

// Purpose selects the bitcoin HD scheme used to derive per-purpose account
// xpubs; BIP-86 (taproot) is the default.
type Purpose uint32

const (
	PurposeBIP44 Purpose = 44
	PurposeBIP49 Purpose = 49
	PurposeBIP84 Purpose = 84
	PurposeBIP86 Purpose = 86
)

// Identity is the deterministic key material derived from a single mnemonic:
// a secp256k1 schnorr keypair for the relay identity and a BIP-32 root for
// bitcoin purposes. It carries no persistent state of its own.
type Identity struct {
	Network Network

	seed       []byte
	nostrPriv  *btcec.PrivateKey
	rootMaster *hdkeychain.ExtendedKey
}

// NewIdentity derives an Identity from a BIP-39 mnemonic, optional
// passphrase, and network tag. Fails with ErrMnemonicInvalid on checksum
// error, mirroring pkg/wallet/mnemonic's Validate.
func NewIdentity(words []string, passphrase string, network Network) (*Identity, error) {
	if !network.Valid() {
		return nil, ErrMissingNetwork
	}
	seed, err := mnemonic.ToSeed(words, passphrase)
	if err != nil {
		return nil, ErrMnemonicInvalid
	}

	params, err := network.Params()
	if err != nil {
		return nil, err
	}
	master, err := hdkeychain.NewMaster(seed, params)
	if err != nil {
		return nil, err
	}

	nostrPriv, err := deriveHardenedThenSoft(master, NostrIdentityPath)
	if err != nil {
		return nil, err
	}
	nostrPrivKey, err := nostrPriv.ECPrivKey()
	if err != nil {
		return nil, err
	}

	return &Identity{
		Network:    network,
		seed:       seed,
		nostrPriv:  nostrPrivKey,
		rootMaster: master,
	}, nil
}

func deriveHardenedThenSoft(master *hdkeychain.ExtendedKey, strPath string) (*hdkeychain.ExtendedKey, error) {
	p, err := path.ParseDerivationPath(strPath)
	if err != nil {
		return nil, err
	}
	node := master
	for _, step := range p {
		node, err = node.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	return node, nil
}

// PubKey returns the normalized 33-byte compressed public key of the nostr
// identity.
func (id *Identity) PubKey() *btcec.PublicKey {
	return id.nostrPriv.PubKey()
}

// XOnlyPubKey returns the 32-byte x-only public key used as this identity's
// participant identifier P.
func (id *Identity) XOnlyPubKey() [32]byte {
	var out [32]byte
	xonly, _ := schnorr.ParsePubKey(schnorr.SerializePubKey(id.PubKey()))
	copy(out[:], xonly.SerializeCompressed()[1:])
	return out
}

// XOnlyPubKeyHex is the participant identifier P encoded as lowercase hex.
func (id *Identity) XOnlyPubKeyHex() string {
	x := id.XOnlyPubKey()
	return hex.EncodeToString(x[:])
}

// Sign produces a BIP-340 schnorr signature over msg using the nostr
// identity key. msg must already be a 32-byte digest, per BIP-340.
func (id *Identity) Sign(msg [32]byte) (*schnorr.Signature, error) {
	return schnorr.Sign(id.nostrPriv, msg[:])
}

// SignECDSA is exposed for interop paths (e.g. legacy multisig cosigning)
// that expect a standard ECDSA signature rather than schnorr.
func (id *Identity) SignECDSA(msg [32]byte) *ecdsa.Signature {
	return ecdsa.Sign(id.nostrPriv, msg[:])
}

// ECDH derives the NIP-04 shared secret with recipient's public key: the
// x-coordinate of privkey*recipientPubkey, taken raw (not hashed) per the
// NIP-04 convention this module's direct-message envelope must interop with.
func (id *Identity) ECDH(recipient *btcec.PublicKey) [32]byte {
	var pubJacobian, shared btcec.JacobianPoint
	recipient.AsJacobian(&pubJacobian)
	btcec.ScalarMultNonConst(&id.nostrPriv.Key, &pubJacobian, &shared)
	shared.ToAffine()
	return *shared.X.Bytes()
}

// MasterFingerprint returns the 4-byte BIP-32 master fingerprint of the
// bitcoin root, used to match signers to descriptor key origins.
func (id *Identity) MasterFingerprint() [4]byte {
	var fp [4]byte
	pub, err := id.rootMaster.ECPubKey()
	if err != nil {
		return fp
	}
	copy(fp[:], btcutil.Hash160(pub.SerializeCompressed())[:4])
	return fp
}

// AccountXpub derives and returns the base58 extended public key for
// m/purpose'/coin_type'/account' on this identity's network, per BIP-44/49/
// 84/86.
func (id *Identity) AccountXpub(purpose Purpose, account uint32) (string, error) {
	coinType := uint32(0)
	if id.Network != Bitcoin {
		coinType = 1
	}
	node := id.rootMaster
	for _, step := range []uint32{
		uint32(purpose) + hdkeychain.HardenedKeyStart,
		coinType + hdkeychain.HardenedKeyStart,
		account + hdkeychain.HardenedKeyStart,
	} {
		var err error
		node, err = node.Derive(step)
		if err != nil {
			return "", err
		}
	}
	xpub, err := node.Neuter()
	if err != nil {
		return "", err
	}
	return xpub.String(), nil
}

// Base58Seed exposes the raw BIP-32 seed encoded as base58.
func (id *Identity) Base58Seed() string {
	return base58.Encode(id.seed)
}

// LeafPrivKey derives the private key at m/purpose'/coin_type'/account'/change/index
// on this identity's bitcoin root, per BIP-44/49/84/86. This protocol pins a
// single leaf per (purpose, account) rather than scanning a ranged keychain,
// since a policy's descriptor keys are bare x-only pubkeys, not xpubs.
func (id *Identity) LeafPrivKey(purpose Purpose, account, change, index uint32) (*btcec.PrivateKey, error) {
	coinType := uint32(0)
	if id.Network != Bitcoin {
		coinType = 1
	}
	node := id.rootMaster
	steps := []uint32{
		uint32(purpose) + hdkeychain.HardenedKeyStart,
		coinType + hdkeychain.HardenedKeyStart,
		account + hdkeychain.HardenedKeyStart,
		change,
		index,
	}
	for _, step := range steps {
		var err error
		node, err = node.Derive(step)
		if err != nil {
			return nil, err
		}
	}
	return node.ECPrivKey()
}

// LeafXOnlyPubKey is LeafPrivKey's public half, encoded as the 32-byte x-only
// key a taproot descriptor expects.
func (id *Identity) LeafXOnlyPubKey(purpose Purpose, account, change, index uint32) ([32]byte, error) {
	var out [32]byte
	priv, err := id.LeafPrivKey(purpose, account, change, index)
	if err != nil {
		return out, err
	}
	copy(out[:], schnorr.SerializePubKey(priv.PubKey()))
	return out, nil
}
