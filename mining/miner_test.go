package mining

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/merkle"
	"github.com/powlabs/gochain/model"
)

func TestBlockRewardHalvingSchedule(t *testing.T) {
	base := model.BaseBlockReward
	interval := model.HalvingInterval

	assert.Equal(t, base, BlockReward(base, interval, 0))
	assert.Equal(t, base, BlockReward(base, interval, interval-1))
	assert.Equal(t, base/2, BlockReward(base, interval, interval))
	assert.Equal(t, base/4, BlockReward(base, interval, 2*interval))
	assert.Equal(t, model.Amount(0), BlockReward(base, interval, 64*interval))
	assert.Equal(t, model.Amount(0), BlockReward(base, interval, 100*interval))
}

func TestCheckProofOfWork(t *testing.T) {
	hash := []byte{0x02, 0x2d, 0x28}
	assert.True(t, CheckProofOfWork(hash, 6))
	assert.False(t, CheckProofOfWork(hash, 9))
	assert.False(t, CheckProofOfWork(hash, 25))

	zero := make([]byte, 32)
	assert.True(t, CheckProofOfWork(zero, 255))
	assert.True(t, CheckProofOfWork([]byte{0x00, 0xff}, 8))
	assert.False(t, CheckProofOfWork([]byte{0x80}, 1))
	assert.True(t, CheckProofOfWork([]byte{0x7f}, 1))
}

func TestNextDifficultyRetarget(t *testing.T) {
	expected := 10 * time.Minute

	// On-target interval keeps the difficulty.
	assert.Equal(t, uint32(8), NextDifficulty(8, expected, expected))

	// A fast interval raises difficulty, bounded by the clamp factor.
	faster := NextDifficulty(8, expected/4, expected)
	assert.Greater(t, faster, uint32(8))
	assert.LessOrEqual(t, faster, uint32(32))

	// Even an instant interval cannot exceed the clamp.
	assert.Equal(t, uint32(32), NextDifficulty(8, expected/100, expected))

	// A slow interval lowers difficulty, bounded the same way.
	slower := NextDifficulty(8, expected*100, expected)
	assert.Equal(t, uint32(2), slower)

	// Difficulty never drops below 1.
	assert.Equal(t, uint32(1), NextDifficulty(1, expected*100, expected))
}

func TestBuildCandidate(t *testing.T) {
	miner := NewMiner(Config{Workers: 1, MinerAddress: "miner_addr"})
	txs := []*model.Transaction{
		model.NewTransaction(
			[]model.TxInput{{PreviousOutput: &model.OutPoint{TxID: "prev", Vout: 0}, Sequence: 1}},
			[]model.TxOutput{{Value: 900, Address: "addr2"}},
			0,
		),
	}

	block, err := miner.BuildCandidate(txs, "prevhash", 5, 1, model.BaseBlockReward, model.HalvingInterval)
	require.NoError(t, err)

	require.Len(t, block.Transactions, 2)
	coinbase := block.Transactions[0]
	assert.True(t, coinbase.IsCoinbase())
	assert.Equal(t, model.BaseBlockReward, coinbase.Outputs[0].Value)
	assert.Equal(t, "miner_addr", coinbase.Outputs[0].Address)

	root, ok := merkle.NewTree(block.TransactionIDs()).RootHash()
	require.True(t, ok)
	assert.Equal(t, root, block.Header.MerkleRoot)
	assert.Equal(t, uint64(5), block.Header.Height)
	assert.Equal(t, "prevhash", block.Header.PreviousHash)
}

func TestBuildCandidateRequiresMinerAddress(t *testing.T) {
	miner := NewMiner(Config{Workers: 1})
	_, err := miner.BuildCandidate(nil, "prev", 0, 1, model.BaseBlockReward, model.HalvingInterval)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindMining))
}

func TestSolveFindsValidNonce(t *testing.T) {
	miner := NewMiner(Config{Workers: 4, MinerAddress: "miner_addr"})

	block, err := miner.BuildCandidate(nil, model.GenesisPreviousHash, 0, 8, model.BaseBlockReward, model.HalvingInterval)
	require.NoError(t, err)

	nonce, err := miner.Solve(block)
	require.NoError(t, err)
	assert.Equal(t, nonce, block.Header.Nonce)
	assert.True(t, VerifyBlockPow(block))
	assert.False(t, miner.IsSearching())

	stats := miner.GetStats()
	assert.Equal(t, uint64(1), stats.BlocksMined)
	assert.Positive(t, stats.TotalHashes)
}

func TestSolveCancellation(t *testing.T) {
	miner := NewMiner(Config{Workers: 2, MinerAddress: "miner_addr"})

	// A target no hash can satisfy keeps the workers searching until
	// they observe the stop flag.
	block, err := miner.BuildCandidate(nil, model.GenesisPreviousHash, 0, 255, model.BaseBlockReward, model.HalvingInterval)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		miner.Stop()
	}()

	_, err = miner.Solve(block)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindMining))
	assert.Contains(t, err.Error(), "stopped before finding a solution")
}

func TestSolveRejectsEmptyTemplate(t *testing.T) {
	miner := NewMiner(Config{Workers: 1, MinerAddress: "miner_addr"})
	_, err := miner.Solve(&model.Block{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindMining))
}
