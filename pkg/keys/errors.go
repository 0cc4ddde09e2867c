package keys

import "fmt"

var (
	// ErrMnemonicInvalid is returned when a mnemonic fails validation.
	ErrMnemonicInvalid = fmt.Errorf("mnemonic is invalid or has a bad checksum")
	ErrMissingNetwork  = fmt.Errorf("missing network")
	ErrUnknownPurpose  = fmt.Errorf("unsupported bitcoin derivation purpose")
	ErrMissingSeed     = fmt.Errorf("identity has no seed material loaded")
)
