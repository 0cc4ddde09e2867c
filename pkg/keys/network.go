package keys

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
)

// Network is one of the four bitcoin network tags accepted by the CLI
// surface's --network flag.
type Network string

const (
	Bitcoin Network = "bitcoin"
	Testnet Network = "testnet"
	Signet  Network = "signet"
	Regtest Network = "regtest"
)

var chainParams = map[Network]*chaincfg.Params{
	Bitcoin: &chaincfg.MainNetParams,
	Testnet: &chaincfg.TestNet3Params,
	Signet:  &chaincfg.SigNetParams,
	Regtest: &chaincfg.RegressionNetParams,
}

// networkByte holds the single byte mixed into policy_id's tagged hash so that
// the same descriptor on two networks never collides.
var networkByte = map[Network]byte{
	Bitcoin: 0x00,
	Testnet: 0x01,
	Signet:  0x02,
	Regtest: 0x03,
}

func (n Network) Params() (*chaincfg.Params, error) {
	p, ok := chainParams[n]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, n)
	}
	return p, nil
}

// Byte returns the network's single-byte tag used in tagged_hash inputs.
func (n Network) Byte() (byte, error) {
	b, ok := networkByte[n]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownNetwork, n)
	}
	return b, nil
}

func (n Network) Valid() bool {
	_, ok := chainParams[n]
	return ok
}

var ErrUnknownNetwork = fmt.Errorf("unknown network")
