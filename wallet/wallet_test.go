package wallet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlabs/gochain/crypto"
	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/utxo"
)

// fixedSource serves spendable outputs from a plain UTXO set at a
// fixed height.
type fixedSource struct {
	set    *utxo.Set
	height uint64
}

func (f fixedSource) FindSpendableUTXOs(address model.Address, amount model.Amount) ([]model.UTXO, error) {
	return f.set.FindSpendableUTXOs(address, amount, f.height)
}

func fundedSource(address model.Address, values ...model.Amount) fixedSource {
	set := utxo.NewSet()
	for i, value := range values {
		set.Add(model.UTXO{
			OutPoint: model.OutPoint{TxID: "funding", Vout: uint32(i)},
			Output:   model.TxOutput{Value: value, Address: address},
			Height:   1,
		})
	}
	return fixedSource{set: set, height: 500}
}

func TestAddressRoundTrip(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	assert.True(t, crypto.ValidateAddress(string(w.Address())))

	dir := t.TempDir()
	path := filepath.Join(dir, "wallet.key")
	require.NoError(t, w.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), loaded.Address())
	assert.Equal(t, w.PublicKey(), loaded.PublicKey())
}

func TestCreateTransaction(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	source := fundedSource(w.Address(), 30_000, 80_000)

	tx, err := w.CreateTransaction(source, "recipient", 90_000, 1_000)
	require.NoError(t, err)

	// Both outputs were needed: 90000+1000 > 80000.
	require.Len(t, tx.Inputs, 2)
	require.Len(t, tx.Outputs, 2)
	assert.Equal(t, model.Amount(90_000), tx.Outputs[0].Value)
	assert.Equal(t, model.Address("recipient"), tx.Outputs[0].Address)

	// Change goes back to the wallet: 110000 - 90000 - 1000.
	assert.Equal(t, model.Amount(19_000), tx.Outputs[1].Value)
	assert.Equal(t, w.Address(), tx.Outputs[1].Address)

	assert.Equal(t, tx.CalculateID(), tx.ID)
	assert.True(t, VerifyOwnership(tx, w.PublicKey()))
}

func TestCreateTransactionNoChange(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	source := fundedSource(w.Address(), 50_000)

	tx, err := w.CreateTransaction(source, "recipient", 49_000, 1_000)
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 1)
	assert.Equal(t, model.Amount(49_000), tx.Outputs[0].Value)
}

func TestCreateTransactionInsufficientFunds(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	source := fundedSource(w.Address(), 10_000)

	_, err = w.CreateTransaction(source, "recipient", 50_000, 1_000)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInsufficientFunds))
}

func TestCreateTransactionRejectsZeroAmount(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	source := fundedSource(w.Address(), 10_000)

	_, err = w.CreateTransaction(source, "recipient", 0, 0)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidTransaction))
}

func TestSignatureDoesNotChangeID(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	source := fundedSource(w.Address(), 50_000)

	tx, err := w.CreateTransaction(source, "recipient", 40_000, 1_000)
	require.NoError(t, err)

	id := tx.ID
	w.Sign(tx)
	assert.Equal(t, id, tx.ID)
	assert.Equal(t, id, tx.CalculateID())

	// A different key does not verify.
	other, err := New()
	require.NoError(t, err)
	assert.False(t, VerifyOwnership(tx, other.PublicKey()))
}
