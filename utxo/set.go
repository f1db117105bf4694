// Package utxo maintains the authoritative mapping of spendable
// outputs and the address index used for balance queries.
package utxo

import (
	"sort"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

// Set is the disjoint union of all live UTXOs. No outpoint ever
// appears twice. The set itself is not goroutine safe; the chain
// coordinator serializes all mutation.
type Set struct {
	utxos        map[model.OutPoint]model.UTXO
	addressIndex map[model.Address]map[model.OutPoint]struct{}
}

// NewSet returns an empty UTXO set.
func NewSet() *Set {
	return &Set{
		utxos:        make(map[model.OutPoint]model.UTXO),
		addressIndex: make(map[model.Address]map[model.OutPoint]struct{}),
	}
}

// Add inserts a UTXO and indexes it by destination address.
func (s *Set) Add(utxo model.UTXO) {
	s.utxos[utxo.OutPoint] = utxo
	index, ok := s.addressIndex[utxo.Output.Address]
	if !ok {
		index = make(map[model.OutPoint]struct{})
		s.addressIndex[utxo.Output.Address] = index
	}
	index[utxo.OutPoint] = struct{}{}
}

// Remove destroys a UTXO, returning it and whether it existed.
func (s *Set) Remove(outpoint model.OutPoint) (model.UTXO, bool) {
	utxo, ok := s.utxos[outpoint]
	if !ok {
		return model.UTXO{}, false
	}
	delete(s.utxos, outpoint)
	if index, ok := s.addressIndex[utxo.Output.Address]; ok {
		delete(index, outpoint)
		if len(index) == 0 {
			delete(s.addressIndex, utxo.Output.Address)
		}
	}
	return utxo, true
}

// GetUTXO implements model.UTXOView.
func (s *Set) GetUTXO(outpoint model.OutPoint) (*model.UTXO, bool) {
	utxo, ok := s.utxos[outpoint]
	if !ok {
		return nil, false
	}
	return &utxo, true
}

// Contains reports whether the outpoint is live.
func (s *Set) Contains(outpoint model.OutPoint) bool {
	_, ok := s.utxos[outpoint]
	return ok
}

// Size is the number of live UTXOs.
func (s *Set) Size() int { return len(s.utxos) }

// ApplyTransaction removes every referenced UTXO and inserts one new
// UTXO per output. If any referenced UTXO is missing, the set is left
// untouched.
func (s *Set) ApplyTransaction(tx *model.Transaction, height uint64) error {
	if !tx.IsCoinbase() {
		// Resolve everything before mutating so a bad spend cannot
		// leave a partial application behind.
		for i := range tx.Inputs {
			outpoint := tx.Inputs[i].PreviousOutput
			if outpoint == nil {
				return errors.NewInvalidTransaction("non-coinbase input %d has no previous output", i)
			}
			if !s.Contains(*outpoint) {
				return errors.NewInvalidTransaction("spending non-existent output: %s:%d", outpoint.TxID, outpoint.Vout)
			}
		}
		for i := range tx.Inputs {
			s.Remove(*tx.Inputs[i].PreviousOutput)
		}
	}

	isCoinbase := tx.IsCoinbase()
	for vout := range tx.Outputs {
		s.Add(model.UTXO{
			OutPoint:   model.OutPoint{TxID: tx.ID, Vout: uint32(vout)},
			Output:     tx.Outputs[vout],
			Height:     height,
			IsCoinbase: isCoinbase,
		})
	}
	return nil
}

// UTXOsForAddress returns every live UTXO destined to the address.
func (s *Set) UTXOsForAddress(address model.Address) []model.UTXO {
	index, ok := s.addressIndex[address]
	if !ok {
		return nil
	}
	utxos := make([]model.UTXO, 0, len(index))
	for outpoint := range index {
		utxos = append(utxos, s.utxos[outpoint])
	}
	return utxos
}

// Balance sums the address's live UTXO values, mature or not.
func (s *Set) Balance(address model.Address) (model.Amount, error) {
	var total model.Amount
	for _, utxo := range s.UTXOsForAddress(address) {
		var err error
		total, err = model.SafeAdd(total, utxo.Output.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// FindSpendableUTXOs selects mature UTXOs for the address, largest
// first, until the running total covers amount. Fails with
// insufficient funds when the mature balance cannot cover it.
func (s *Set) FindSpendableUTXOs(address model.Address, amount model.Amount, currentHeight uint64) ([]model.UTXO, error) {
	candidates := make([]model.UTXO, 0)
	for _, utxo := range s.UTXOsForAddress(address) {
		if utxo.IsCoinbase && currentHeight-utxo.Height < model.CoinbaseMaturity {
			continue
		}
		candidates = append(candidates, utxo)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Output.Value > candidates[j].Output.Value
	})

	selected := make([]model.UTXO, 0, len(candidates))
	var total model.Amount
	if total >= amount {
		return selected, nil
	}
	for _, utxo := range candidates {
		selected = append(selected, utxo)
		var err error
		total, err = model.SafeAdd(total, utxo.Output.Value)
		if err != nil {
			return nil, err
		}
		if total >= amount {
			return selected, nil
		}
	}
	return nil, errors.NewInsufficientFunds("address %s has mature balance %d, need %d", address, total, amount)
}

// TotalSupply is the sum of every live UTXO value.
func (s *Set) TotalSupply() (model.Amount, error) {
	var total model.Amount
	for _, utxo := range s.utxos {
		var err error
		total, err = model.SafeAdd(total, utxo.Output.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Clone returns a deep copy. Block application works on a clone and
// swaps it in only after every transaction applied cleanly.
func (s *Set) Clone() *Set {
	clone := NewSet()
	for _, utxo := range s.utxos {
		clone.Add(utxo)
	}
	return clone
}

// List returns every live UTXO, the serializable snapshot form.
func (s *Set) List() []model.UTXO {
	utxos := make([]model.UTXO, 0, len(s.utxos))
	for _, utxo := range s.utxos {
		utxos = append(utxos, utxo)
	}
	return utxos
}

// FromList rebuilds a set from a snapshot produced by List.
func FromList(utxos []model.UTXO) *Set {
	s := NewSet()
	for _, utxo := range utxos {
		s.Add(utxo)
	}
	return s
}
