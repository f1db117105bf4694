package client

import (
	"sort"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

// RemoteUTXOSource selects spendable outputs through a node's API, so
// a wallet can assemble transactions without local chain state.
type RemoteUTXOSource struct {
	client *Client
}

// UTXOSource returns a remote selector backed by this client.
func (c *Client) UTXOSource() *RemoteUTXOSource {
	return &RemoteUTXOSource{client: c}
}

// FindSpendableUTXOs fetches the address's outputs and picks mature
// ones, largest first, until amount is covered.
func (r *RemoteUTXOSource) FindSpendableUTXOs(address model.Address, amount model.Amount) ([]model.UTXO, error) {
	status, err := r.client.Info()
	if err != nil {
		return nil, err
	}
	utxos, err := r.client.GetUTXOs(address)
	if err != nil {
		return nil, err
	}

	candidates := make([]model.UTXO, 0, len(utxos))
	for _, u := range utxos {
		if u.IsCoinbase && status.Height-u.Height < model.CoinbaseMaturity {
			continue
		}
		candidates = append(candidates, u)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Output.Value > candidates[j].Output.Value
	})

	selected := make([]model.UTXO, 0, len(candidates))
	var total model.Amount
	for _, u := range candidates {
		selected = append(selected, u)
		total, err = model.SafeAdd(total, u.Output.Value)
		if err != nil {
			return nil, err
		}
		if total >= amount {
			return selected, nil
		}
	}
	return nil, errors.NewInsufficientFunds("address %s has mature balance %d, need %d", address, total, amount)
}
