package electrum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btc-vaults/vaultcore/internal/core/ports"
	"github.com/btc-vaults/vaultcore/pkg/policy"
	"github.com/btc-vaults/vaultcore/pkg/psbtutil"
)

// descriptorPkScript resolves d's scriptPubKey. Every descriptor this
// protocol compiles is a tr() output (policy.Compile wraps bare miniscript
// policies in one); a wsh() descriptor has no chain-oracle-observable single
// address and is rejected here rather than silently watching nothing.
func descriptorPkScript(d *policy.Descriptor) ([]byte, error) {
	if !d.IsTaproot {
		return nil, fmt.Errorf("electrum: only tr() descriptors can be resolved to a single scriptPubKey")
	}
	tap, err := psbtutil.ResolveTaproot(d)
	if err != nil {
		return nil, err
	}
	return tap.PkScript()
}

// Oracle implements ports.ChainOracle against one electrum server. It
// resolves a descriptor's scriptPubKey once per call via
// pkg/psbtutil.ResolveTaproot and derives the electrum scripthash from it,
// since this protocol's descriptors are always single-address taproot
// outputs rather than a ranged keychain.
type Oracle struct {
	client *wsClient
}

// NewOracle dials addr (an electrum server's TCP/TLS websocket-style JSON-RPC
// endpoint) and returns a ready-to-use Oracle.
func NewOracle(addr string, useTLS bool) (*Oracle, error) {
	c, err := newWSClient(addr, useTLS)
	if err != nil {
		return nil, err
	}
	return &Oracle{client: c}, nil
}

func (o *Oracle) Close() error {
	return o.client.close()
}

// scripthash derives an electrum-protocol scripthash (sha256 of the output
// script, byte-reversed, lowercase hex) from a compiled descriptor.
func scripthash(descriptor string) (string, error) {
	d, err := policy.Parse(descriptor)
	if err != nil {
		return "", err
	}
	pkScript, err := descriptorPkScript(d)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(pkScript)
	reversed := make([]byte, len(h))
	for i, b := range h {
		reversed[len(h)-1-i] = b
	}
	return hex.EncodeToString(reversed), nil
}

func (o *Oracle) GetBalance(ctx context.Context, descriptor string) (*ports.Balance, error) {
	sh, err := scripthash(descriptor)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.request("blockchain.scripthash.get_balance", sh)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Confirmed   int64 `json:"confirmed"`
		Unconfirmed int64 `json:"unconfirmed"`
	}
	if err := remarshal(resp.Result, &payload); err != nil {
		return nil, err
	}
	balance := &ports.Balance{Confirmed: payload.Confirmed}
	if payload.Unconfirmed >= 0 {
		balance.TrustedPending = payload.Unconfirmed
	} else {
		balance.UntrustedPending = -payload.Unconfirmed
	}
	return balance, nil
}

func (o *Oracle) ListUTXOs(ctx context.Context, descriptor string) ([]ports.UtxoInfo, error) {
	sh, err := scripthash(descriptor)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.request("blockchain.scripthash.listunspent", sh)
	if err != nil {
		return nil, err
	}
	var entries []struct {
		TxHash string `json:"tx_hash"`
		TxPos  uint32 `json:"tx_pos"`
		Height int64  `json:"height"`
		Value  int64  `json:"value"`
	}
	if err := remarshal(resp.Result, &entries); err != nil {
		return nil, err
	}

	d, err := policy.Parse(descriptor)
	if err != nil {
		return nil, err
	}
	pkScript, err := descriptorPkScript(d)
	if err != nil {
		return nil, err
	}

	out := make([]ports.UtxoInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, ports.UtxoInfo{
			Txid:      e.TxHash,
			Vout:      e.TxPos,
			Amount:    e.Value,
			Confirmed: e.Height > 0,
			PkScript:  pkScript,
		})
	}
	return out, nil
}

func (o *Oracle) Broadcast(ctx context.Context, txBytes []byte) (string, error) {
	resp, err := o.client.request("blockchain.transaction.broadcast", hex.EncodeToString(txBytes))
	if err != nil {
		return "", err
	}
	txid, ok := resp.Result.(string)
	if !ok {
		return "", fmt.Errorf("electrum: unexpected broadcast response")
	}
	return txid, nil
}

func (o *Oracle) EstimateFee(ctx context.Context, targetBlocks uint32) (float64, error) {
	resp, err := o.client.request("blockchain.estimatefee", int(targetBlocks))
	if err != nil {
		return 0, err
	}
	rate, ok := resp.Result.(float64)
	if !ok {
		return 0, fmt.Errorf("electrum: unexpected estimatefee response")
	}
	if rate <= 0 {
		return 1, nil
	}
	// electrum quotes BTC/kvB; the protocol core works in sat/vB.
	return rate * 100000, nil
}

func (o *Oracle) TipHeight(ctx context.Context) (uint32, error) {
	resp, err := o.client.request("blockchain.headers.subscribe")
	if err != nil {
		return 0, err
	}
	var payload struct {
		Height uint32 `json:"height"`
	}
	if err := remarshal(resp.Result, &payload); err != nil {
		return 0, err
	}
	return payload.Height, nil
}

func remarshal(v interface{}, out interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}
