package ports

import "context"

// Balance mirrors the chain oracle contract's get_balance response:
// confirmed funds, immature coinbase output, and the two classes of pending
// change the wallet must distinguish for coin selection.
type Balance struct {
	Immature         int64
	TrustedPending   int64
	UntrustedPending int64
	Confirmed        int64
}

// UtxoInfo is one entry of a descriptor's list_utxos response.
type UtxoInfo struct {
	Txid      string
	Vout      uint32
	Amount    int64
	Keychain  string
	Index     uint32
	Confirmed bool
	PkScript  []byte
}

// ChainOracle is the abstraction over whatever source of chain truth backs
// balance, UTXO set, fee estimation and broadcast — an Electrum server, a
// local node, or a block explorer's API — for one or more descriptors.
type ChainOracle interface {
	GetBalance(ctx context.Context, descriptor string) (*Balance, error)
	ListUTXOs(ctx context.Context, descriptor string) ([]UtxoInfo, error)
	Broadcast(ctx context.Context, txBytes []byte) (string, error)
	EstimateFee(ctx context.Context, targetBlocks uint32) (float64, error)
	TipHeight(ctx context.Context) (uint32, error)
}
