package policy

import "fmt"

var (
	// ErrDescriptorInvalid is returned when the descriptor/miniscript
	// string could not be parsed.
	ErrDescriptorInvalid = fmt.Errorf("descriptor is invalid or malformed")
	// ErrNetworkMismatch is returned when descriptor keys don't match the
	// target network.
	ErrNetworkMismatch = fmt.Errorf("descriptor keys do not match the target network")
	// ErrNoNamedSigners is returned when the descriptor contains no
	// pk()/multi_a() leaves at all.
	ErrNoNamedSigners = fmt.Errorf("descriptor names no signers")
)
