package client

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlabs/gochain/api"
	"github.com/powlabs/gochain/chain"
	"github.com/powlabs/gochain/mempool"
	"github.com/powlabs/gochain/mining"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/node"
	"github.com/powlabs/gochain/persistence"
	"github.com/powlabs/gochain/wallet"
)

// startTestNode serves a real node over httptest and returns a client
// plus the wallet funded by the genesis coinbase.
func startTestNode(t *testing.T) (*Client, *node.FullNode, *wallet.Wallet) {
	t.Helper()

	w, err := wallet.New()
	require.NoError(t, err)

	store, err := persistence.Open(t.TempDir())
	require.NoError(t, err)

	chainConfig := chain.DefaultConfig()
	chainConfig.GenesisAddress = w.Address()
	chainConfig.GenesisDifficulty = 1

	c, err := chain.NewBlockchain(chainConfig, store, mempool.NewPool(mempool.DefaultConfig()))
	require.NoError(t, err)

	n := node.NewFullNode(node.DefaultConfig(), c)
	t.Cleanup(func() { n.Close() })

	server := httptest.NewServer(api.NewServer(n).Handler())
	t.Cleanup(server.Close)

	return New(server.URL, time.Second), n, w
}

func mineOn(t *testing.T, c *chain.Blockchain, txs []*model.Transaction) {
	t.Helper()
	miner := mining.NewMiner(mining.Config{Workers: 2, MinerAddress: "bob"})
	height, prev, difficulty := c.NextBlockTemplate()
	block, err := miner.MineBlock(txs, prev, height, difficulty,
		c.Config().BaseReward, c.Config().HalvingInterval)
	require.NoError(t, err)
	require.NoError(t, c.AddBlock(block))
}

func TestInfoAndBlocks(t *testing.T) {
	cli, n, _ := startTestNode(t)

	status, err := cli.Info()
	require.NoError(t, err)
	assert.Equal(t, n.ID(), status.ID)
	assert.Equal(t, uint64(0), status.Height)

	mineOn(t, n.Chain(), nil)

	latest, err := cli.GetLatestBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.Header.Height)

	genesis, err := cli.GetBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, model.GenesisPreviousHash, genesis.Header.PreviousHash)

	_, err = cli.GetBlockByHeight(99)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no block at height 99")
}

func TestWalletSpendThroughClient(t *testing.T) {
	cli, n, w := startTestNode(t)

	for i := uint64(0); i < model.CoinbaseMaturity; i++ {
		mineOn(t, n.Chain(), nil)
	}

	balance, err := cli.GetBalance(w.Address())
	require.NoError(t, err)
	require.Equal(t, model.BaseBlockReward, balance)

	// Build the spend against the remote UTXO view and submit it.
	tx, err := w.CreateTransaction(cli.UTXOSource(), "carol", 10_00000000, 10_000)
	require.NoError(t, err)
	require.NoError(t, cli.SubmitTransaction(tx))
	assert.True(t, n.Chain().Mempool().Contains(tx.ID))

	selected := n.Chain().Mempool().GetTransactionsForMining(100_000, 10)
	mineOn(t, n.Chain(), selected)

	carol, err := cli.GetBalance("carol")
	require.NoError(t, err)
	assert.Equal(t, model.Amount(10_00000000), carol)

	stats, err := cli.Stats()
	require.NoError(t, err)
	assert.Equal(t, n.Chain().Height(), stats.Height)
}

func TestRemoteSourceInsufficientFunds(t *testing.T) {
	cli, _, _ := startTestNode(t)

	other, err := wallet.New()
	require.NoError(t, err)
	_, err = other.CreateTransaction(cli.UTXOSource(), "carol", 1_000, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
}

func TestFeeEstimateAndMiningControl(t *testing.T) {
	cli, n, _ := startTestNode(t)

	rate, err := cli.EstimateFee(6)
	require.NoError(t, err)
	assert.Positive(t, rate)

	// Node has no miner address, so start is rejected remotely.
	err = cli.StartMining()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "miner address")

	require.NoError(t, cli.StopMining())
	assert.False(t, n.IsMining())
}
