// Package mining assembles candidate blocks and searches for
// proof-of-work solutions across a pool of nonce workers.
package mining

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/merkle"
	"github.com/powlabs/gochain/model"
)

// maxRetargetFactor bounds how far a single retarget may move the
// difficulty in either direction.
const maxRetargetFactor = 4.0

// maxDifficulty is the hard ceiling: a 32-byte hash cannot have more
// than 256 leading zero bits.
const maxDifficulty = 255

// Config controls the miner.
type Config struct {
	// Workers is the number of concurrent nonce workers. Zero means
	// one worker per CPU.
	Workers int `yaml:"workers"`
	// MinerAddress receives the coinbase reward.
	MinerAddress model.Address `yaml:"miner_address"`
}

// Stats aggregates search results across the miner's lifetime.
type Stats struct {
	BlocksMined uint64  `json:"blocks_mined"`
	TotalHashes uint64  `json:"total_hashes"`
	HashRate    float64 `json:"hash_rate"`
	LastBlock   int64   `json:"last_block"`
}

// Miner owns the proof-of-work search. A search transitions from idle
// to searching, then to found or cancelled; cancellation is
// cooperative through a flag every worker polls each iteration.
type Miner struct {
	config Config

	searching atomic.Bool
	stop      atomic.Bool

	mu    sync.Mutex
	stats Stats
}

// NewMiner returns an idle miner.
func NewMiner(config Config) *Miner {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return &Miner{config: config}
}

// BlockReward is the coinbase subsidy at the given height: the base
// reward halved once per interval, clamped to zero once the shift
// exceeds the value's bit width.
func BlockReward(baseReward model.Amount, halvingInterval, height uint64) model.Amount {
	if halvingInterval == 0 {
		return baseReward
	}
	halvings := height / halvingInterval
	if halvings >= 64 {
		return 0
	}
	return baseReward >> halvings
}

// CheckProofOfWork reports whether the hash has at least difficulty
// leading zero bits.
func CheckProofOfWork(hash []byte, difficulty uint32) bool {
	zeroBytes := int(difficulty / 8)
	zeroBits := int(difficulty % 8)

	needed := zeroBytes
	if zeroBits > 0 {
		needed++
	}
	if needed > len(hash) {
		return false
	}
	for i := 0; i < zeroBytes; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	if zeroBits == 0 {
		return true
	}
	return hash[zeroBytes]>>(8-zeroBits) == 0
}

// VerifyBlockPow recomputes the header hash and checks it against the
// block's own difficulty.
func VerifyBlockPow(block *model.Block) bool {
	return CheckProofOfWork(block.Header.HashWithNonce(block.Header.Nonce), block.Header.Difficulty)
}

// NextDifficulty retargets proportionally: the elapsed interval time
// is compared against the expected time and the difficulty scaled by
// the ratio, clamped to a bounded factor to prevent oscillation.
// Difficulty never drops below 1.
func NextDifficulty(current uint32, actualTime, expectedTime time.Duration) uint32 {
	if current == 0 {
		current = 1
	}
	if actualTime <= 0 {
		actualTime = time.Second
	}

	ratio := float64(expectedTime) / float64(actualTime)
	if ratio > maxRetargetFactor {
		ratio = maxRetargetFactor
	}
	if ratio < 1/maxRetargetFactor {
		ratio = 1 / maxRetargetFactor
	}

	next := uint32(math.Round(float64(current) * ratio))
	if next < 1 {
		next = 1
	}
	if next > maxDifficulty {
		next = maxDifficulty
	}
	return next
}

// BuildCandidate assembles an unsolved block: a coinbase paying
// exactly the reward for the height, the selected transactions, and a
// header committing to their merkle root.
func (m *Miner) BuildCandidate(
	txs []*model.Transaction,
	previousHash model.Hash,
	height uint64,
	difficulty uint32,
	baseReward model.Amount,
	halvingInterval uint64,
) (*model.Block, error) {
	if m.config.MinerAddress == "" {
		return nil, errors.NewMiningError("miner address not configured")
	}

	coinbase := model.NewCoinbase(BlockReward(baseReward, halvingInterval, height), m.config.MinerAddress, height)
	transactions := make([]*model.Transaction, 0, len(txs)+1)
	transactions = append(transactions, coinbase)
	transactions = append(transactions, txs...)

	ids := make([]model.Hash, len(transactions))
	for i, tx := range transactions {
		ids[i] = tx.ID
	}
	root, ok := merkle.NewTree(ids).RootHash()
	if !ok {
		return nil, errors.NewMiningError("empty candidate template")
	}

	return &model.Block{
		Header: model.BlockHeader{
			Version:      model.BlockVersion,
			PreviousHash: previousHash,
			MerkleRoot:   root,
			Timestamp:    time.Now().Unix(),
			Difficulty:   difficulty,
			Height:       height,
		},
		Transactions: transactions,
	}, nil
}

// Solve searches the nonce space for a hash under the candidate's
// difficulty target. Worker i starts at nonce i and steps by the
// worker count, so the workers scan disjoint strides. The first
// worker to find a solution publishes it and signals the others;
// Stop cancels the search externally.
func (m *Miner) Solve(block *model.Block) (uint64, error) {
	if len(block.Transactions) == 0 {
		return 0, errors.NewMiningError("empty candidate template")
	}

	m.stop.Store(false)
	m.searching.Store(true)
	defer m.searching.Store(false)

	var (
		found  atomic.Bool
		result atomic.Uint64
		hashes atomic.Uint64
		wg     sync.WaitGroup
	)

	header := block.Header
	workers := m.config.Workers
	start := time.Now()

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(offset uint64) {
			defer wg.Done()
			var local uint64
			for nonce := offset; ; nonce += uint64(workers) {
				if m.stop.Load() || found.Load() {
					hashes.Add(local)
					return
				}
				local++
				if CheckProofOfWork(header.HashWithNonce(nonce), header.Difficulty) {
					if found.CompareAndSwap(false, true) {
						result.Store(nonce)
					}
					hashes.Add(local)
					return
				}
			}
		}(uint64(i))
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := hashes.Load()

	if !found.Load() {
		return 0, errors.NewMiningError("search stopped before finding a solution")
	}

	nonce := result.Load()
	block.Header.Nonce = nonce

	m.mu.Lock()
	m.stats.BlocksMined++
	m.stats.TotalHashes += total
	if elapsed > 0 {
		m.stats.HashRate = float64(total) / elapsed.Seconds()
	}
	m.stats.LastBlock = time.Now().Unix()
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"height": header.Height,
		"nonce":  nonce,
		"hashes": total,
		"took":   elapsed,
	}).Info("proof-of-work solution found")
	return nonce, nil
}

// MineBlock assembles a candidate and solves it in one call.
func (m *Miner) MineBlock(
	txs []*model.Transaction,
	previousHash model.Hash,
	height uint64,
	difficulty uint32,
	baseReward model.Amount,
	halvingInterval uint64,
) (*model.Block, error) {
	block, err := m.BuildCandidate(txs, previousHash, height, difficulty, baseReward, halvingInterval)
	if err != nil {
		return nil, err
	}
	if _, err := m.Solve(block); err != nil {
		return nil, err
	}
	return block, nil
}

// Stop signals every worker to abandon the current search.
func (m *Miner) Stop() {
	m.stop.Store(true)
}

// IsSearching reports whether a search is in flight.
func (m *Miner) IsSearching() bool {
	return m.searching.Load()
}

// GetStats returns a copy of the lifetime stats.
func (m *Miner) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
