package model

import (
	"math"

	"github.com/powlabs/gochain/errors"
)

// Amount is a value in the smallest currency unit.
type Amount = uint64

// Hash is a hex encoded 32-byte digest.
type Hash = string

// Address is a base58check encoded public key hash.
type Address = string

// SafeAdd adds two amounts and fails closed on overflow instead of
// wrapping.
func SafeAdd(a, b Amount) (Amount, error) {
	if a > math.MaxUint64-b {
		return 0, errors.NewOverflow("amount addition overflows: %d + %d", a, b)
	}
	return a + b, nil
}

// SumOutputValues accumulates output values with overflow checking.
func SumOutputValues(outputs []TxOutput) (Amount, error) {
	var total Amount
	for _, out := range outputs {
		var err error
		total, err = SafeAdd(total, out.Value)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
