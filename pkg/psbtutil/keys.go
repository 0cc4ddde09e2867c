package psbtutil

import (
	"encoding/hex"
	"fmt"

	"github.com/btc-vaults/vaultcore/pkg/policy"
)

// parseKeyHex normalizes a descriptor key expression (stripping any
// [fingerprint/path] origin and /0/*-style derivation suffix) and decodes
// its hex key material. Extended (xpub/tpub) keys are not resolvable
// without a derivation index and are rejected here; callers must resolve
// ranged descriptor keys to a concrete leaf key before compiling a script.
func parseKeyHex(keyExpr string) ([]byte, error) {
	bare := policy.StripKeyOrigin(keyExpr)
	raw, err := hex.DecodeString(bare)
	if err != nil {
		return nil, fmt.Errorf("policy: key %q is not resolvable to raw hex key material (extended keys must be derived first): %w", keyExpr, err)
	}
	return raw, nil
}
