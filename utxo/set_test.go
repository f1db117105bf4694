package utxo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

func testUTXO(txid string, vout uint32, value model.Amount, address string) model.UTXO {
	return model.UTXO{
		OutPoint: model.OutPoint{TxID: txid, Vout: vout},
		Output:   model.TxOutput{Value: value, Address: address},
		Height:   1,
	}
}

func TestAddRemoveContains(t *testing.T) {
	set := NewSet()
	utxo := testUTXO("tx1", 0, 1000, "addr1")

	set.Add(utxo)
	assert.Equal(t, 1, set.Size())
	assert.True(t, set.Contains(utxo.OutPoint))

	balance, err := set.Balance("addr1")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(1000), balance)

	removed, ok := set.Remove(utxo.OutPoint)
	require.True(t, ok)
	assert.Equal(t, utxo.OutPoint, removed.OutPoint)
	assert.Equal(t, 0, set.Size())
	assert.False(t, set.Contains(utxo.OutPoint))

	_, ok = set.Remove(utxo.OutPoint)
	assert.False(t, ok)
}

func TestBalancePerAddress(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("tx1", 0, 1000, "addr1"))
	set.Add(testUTXO("tx2", 0, 2000, "addr1"))
	set.Add(testUTXO("tx3", 0, 500, "addr2"))

	b1, err := set.Balance("addr1")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(3000), b1)

	b2, err := set.Balance("addr2")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(500), b2)

	b3, err := set.Balance("nobody")
	require.NoError(t, err)
	assert.Zero(t, b3)
}

func TestApplyTransactionSpendsAndCreates(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("prev", 0, 1000, "addr1"))

	tx := &model.Transaction{
		ID: "spend",
		Inputs: []model.TxInput{{
			PreviousOutput: &model.OutPoint{TxID: "prev", Vout: 0},
		}},
		Outputs: []model.TxOutput{
			{Value: 600, Address: "addr2"},
			{Value: 300, Address: "addr1"},
		},
	}

	require.NoError(t, set.ApplyTransaction(tx, 2))

	assert.False(t, set.Contains(model.OutPoint{TxID: "prev", Vout: 0}))
	assert.True(t, set.Contains(model.OutPoint{TxID: "spend", Vout: 0}))
	assert.True(t, set.Contains(model.OutPoint{TxID: "spend", Vout: 1}))

	b1, _ := set.Balance("addr1")
	b2, _ := set.Balance("addr2")
	assert.Equal(t, model.Amount(300), b1)
	assert.Equal(t, model.Amount(600), b2)
}

func TestApplyTransactionMissingInputLeavesSetUntouched(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("prev", 0, 1000, "addr1"))

	tx := &model.Transaction{
		ID: "bad",
		Inputs: []model.TxInput{
			{PreviousOutput: &model.OutPoint{TxID: "prev", Vout: 0}},
			{PreviousOutput: &model.OutPoint{TxID: "ghost", Vout: 0}},
		},
		Outputs: []model.TxOutput{{Value: 100, Address: "addr2"}},
	}

	err := set.ApplyTransaction(tx, 2)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidTransaction))

	// The resolvable input must not have been consumed.
	assert.True(t, set.Contains(model.OutPoint{TxID: "prev", Vout: 0}))
	assert.Equal(t, 1, set.Size())
}

func TestApplyCoinbaseCreatesFlaggedUTXO(t *testing.T) {
	set := NewSet()
	coinbase := model.NewCoinbase(5000, "miner", 3)

	require.NoError(t, set.ApplyTransaction(coinbase, 3))

	utxo, ok := set.GetUTXO(model.OutPoint{TxID: coinbase.ID, Vout: 0})
	require.True(t, ok)
	assert.True(t, utxo.IsCoinbase)
	assert.Equal(t, uint64(3), utxo.Height)
}

func TestFindSpendableUTXOsGreedyDescending(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("tx1", 0, 1000, "addr1"))
	set.Add(testUTXO("tx2", 0, 2000, "addr1"))
	set.Add(testUTXO("tx3", 0, 500, "addr1"))

	selected, err := set.FindSpendableUTXOs("addr1", 2500, 100)
	require.NoError(t, err)

	var total model.Amount
	for _, utxo := range selected {
		total += utxo.Output.Value
	}
	assert.GreaterOrEqual(t, total, model.Amount(2500))
	// Largest first: 2000 then 1000 already covers the request.
	require.Len(t, selected, 2)
	assert.Equal(t, model.Amount(2000), selected[0].Output.Value)
}

func TestFindSpendableUTXOsInsufficientFunds(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("tx1", 0, 1000, "addr1"))

	_, err := set.FindSpendableUTXOs("addr1", 2000, 100)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInsufficientFunds))
}

func TestFindSpendableUTXOsZeroAmount(t *testing.T) {
	set := NewSet()

	// Zero is trivially covered, even for an address with nothing.
	selected, err := set.FindSpendableUTXOs("nobody", 0, 100)
	require.NoError(t, err)
	assert.Empty(t, selected)

	coinbase := testUTXO("cb", 0, 5000, "miner")
	coinbase.IsCoinbase = true
	set.Add(coinbase)

	selected, err = set.FindSpendableUTXOs("miner", 0, 50)
	require.NoError(t, err)
	assert.Empty(t, selected)
}

func TestFindSpendableUTXOsSkipsImmatureCoinbase(t *testing.T) {
	set := NewSet()
	coinbase := testUTXO("cb", 0, 5000, "miner")
	coinbase.IsCoinbase = true
	coinbase.Height = 1
	set.Add(coinbase)

	_, err := set.FindSpendableUTXOs("miner", 1000, 50)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInsufficientFunds))

	selected, err := set.FindSpendableUTXOs("miner", 1000, 1+model.CoinbaseMaturity)
	require.NoError(t, err)
	assert.Len(t, selected, 1)
}

func TestTotalSupply(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("tx1", 0, 1000, "addr1"))
	set.Add(testUTXO("tx2", 1, 2000, "addr2"))

	supply, err := set.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, model.Amount(3000), supply)
}

func TestCloneIsIndependent(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("tx1", 0, 1000, "addr1"))

	clone := set.Clone()
	clone.Remove(model.OutPoint{TxID: "tx1", Vout: 0})
	clone.Add(testUTXO("tx2", 0, 2000, "addr2"))

	assert.True(t, set.Contains(model.OutPoint{TxID: "tx1", Vout: 0}))
	assert.False(t, set.Contains(model.OutPoint{TxID: "tx2", Vout: 0}))
	assert.Equal(t, 1, set.Size())
	assert.Equal(t, 2, clone.Size())
}

func TestListFromListRoundTrip(t *testing.T) {
	set := NewSet()
	set.Add(testUTXO("tx1", 0, 1000, "addr1"))
	set.Add(testUTXO("tx2", 1, 2000, "addr2"))

	rebuilt := FromList(set.List())
	assert.Equal(t, set.Size(), rebuilt.Size())

	supplyA, _ := set.TotalSupply()
	supplyB, _ := rebuilt.TotalSupply()
	assert.Equal(t, supplyA, supplyB)
}
