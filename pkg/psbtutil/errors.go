package psbtutil

import "fmt"

var (
	// ErrInsufficientFunds is raised when the available (unfrozen) UTXO set
	// cannot cover a draft's target amount plus fee.
	ErrInsufficientFunds = fmt.Errorf("insufficient funds to cover outputs and fee")
	// ErrNoDestinations is returned when Draft is called with an empty
	// destination list.
	ErrNoDestinations = fmt.Errorf("at least one destination is required")
	// ErrPolicyPathRequired is returned when a taproot descriptor that spends
	// via its script path (NUMS internal key or a timelock) is drafted without
	// an explicit policy path.
	ErrPolicyPathRequired = fmt.Errorf("descriptor spends via its script path: policy path is required")
	// ErrConflictingSignature is returned when combine() sees two different
	// signatures from the same pubkey.
	ErrConflictingSignature = fmt.Errorf("conflicting signature from the same key")
	// ErrNotFinalizable is returned when a psbt lacks enough signatures or
	// script data to finalize.
	ErrNotFinalizable = fmt.Errorf("psbt is not finalizable: insufficient signatures or missing script data")
)
