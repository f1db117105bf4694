// Package chain owns the authoritative ledger: the accepted block
// sequence, the UTXO set derived from it, and the tip state. All
// mutation funnels through a single write lock.
package chain

import (
	"sync"
	"time"

	"github.com/jinzhu/copier"
	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/mempool"
	"github.com/powlabs/gochain/merkle"
	"github.com/powlabs/gochain/mining"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/utxo"
)

// Config carries the consensus parameters of a network. The defaults
// mirror the mainnet constants; private networks and tests shrink them.
type Config struct {
	GenesisAddress    model.Address `yaml:"genesis_address"`
	GenesisDifficulty uint32        `yaml:"genesis_difficulty"`
	BaseReward        model.Amount  `yaml:"base_reward"`
	HalvingInterval   uint64        `yaml:"halving_interval"`
	TargetBlockTime   time.Duration `yaml:"target_block_time"`
	RetargetInterval  uint64        `yaml:"retarget_interval"`
	MaxBlockSize      int           `yaml:"max_block_size"`
	MaxFutureDrift    time.Duration `yaml:"max_future_drift"`
}

// DefaultConfig returns the mainnet consensus parameters.
func DefaultConfig() Config {
	return Config{
		GenesisDifficulty: 8,
		BaseReward:        model.BaseBlockReward,
		HalvingInterval:   model.HalvingInterval,
		TargetBlockTime:   model.TargetBlockTime,
		RetargetInterval:  model.DifficultyAdjustmentInterval,
		MaxBlockSize:      model.MaxBlockSize,
		MaxFutureDrift:    model.MaxFutureDrift,
	}
}

// Stats is the aggregate snapshot served by the stats query.
type Stats struct {
	Height            uint64       `json:"height"`
	Difficulty        uint32       `json:"difficulty"`
	BestBlockHash     model.Hash   `json:"best_block_hash"`
	TotalTransactions uint64       `json:"total_transactions"`
	TotalSupply       model.Amount `json:"total_supply"`
	UTXOCount         int          `json:"utxo_count"`
	MempoolSize       int          `json:"mempool_size"`
}

// Blockchain is the chain coordinator. Reads take the read lock;
// AddBlock is the only writer and commits a block end to end before
// releasing it, so concurrent submitters observe a consistent tip.
type Blockchain struct {
	mu       sync.RWMutex
	config   Config
	storage  Storage
	pool     *mempool.Pool
	executor ContractExecutor

	state    model.ChainState
	utxoSet  *utxo.Set
	byHash   map[model.Hash]*model.Block
	byHeight map[uint64]*model.Block
	totalTxs uint64
}

// NewBlockchain restores the chain from storage, or bootstraps a fresh
// network by mining the genesis block when storage holds nothing.
func NewBlockchain(config Config, storage Storage, pool *mempool.Pool) (*Blockchain, error) {
	c := &Blockchain{
		config:   config,
		storage:  storage,
		pool:     pool,
		utxoSet:  utxo.NewSet(),
		byHash:   make(map[model.Hash]*model.Block),
		byHeight: make(map[uint64]*model.Block),
	}

	state, err := storage.LoadChainState()
	switch {
	case err == nil:
		if err := c.restore(state); err != nil {
			return nil, err
		}
	case errors.IsKind(err, errors.KindNotFound):
		if err := c.bootstrap(); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return c, nil
}

// SetContractExecutor installs the contract-execution collaborator.
// Without one, contract calls are carried but not executed.
func (c *Blockchain) SetContractExecutor(executor ContractExecutor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executor = executor
}

// restore reloads the block index from storage and rebuilds the UTXO
// set, preferring the stored snapshot and falling back to replaying
// every block when the snapshot is missing or stale.
func (c *Blockchain) restore(state *model.ChainState) error {
	blocks, err := c.storage.LoadAllBlocks()
	if err != nil {
		return err
	}
	for _, block := range blocks {
		c.indexBlock(block)
		c.totalTxs += uint64(len(block.Transactions))
	}
	if _, ok := c.byHeight[state.Height]; !ok {
		return errors.NewStorageError(nil, "chain state at height %d but block missing from store", state.Height)
	}
	c.state = *state

	snapshot, err := c.storage.LoadUTXOSnapshot()
	if err == nil {
		c.utxoSet = utxo.FromList(snapshot)
	} else if errors.IsKind(err, errors.KindNotFound) {
		if err := c.replayUTXOSet(); err != nil {
			return err
		}
	} else {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"height":     c.state.Height,
		"difficulty": c.state.Difficulty,
		"utxos":      c.utxoSet.Size(),
	}).Info("chain restored from storage")
	return nil
}

// replayUTXOSet rebuilds the set from the block sequence. Blocks were
// validated on first acceptance, so application cannot fail on honest
// storage contents.
func (c *Blockchain) replayUTXOSet() error {
	c.utxoSet = utxo.NewSet()
	for height := uint64(0); height <= c.state.Height; height++ {
		block, ok := c.byHeight[height]
		if !ok {
			return errors.NewStorageError(nil, "block %d missing during replay", height)
		}
		for _, tx := range block.Transactions {
			if err := c.utxoSet.ApplyTransaction(tx, height); err != nil {
				return errors.Wrap(errors.KindStorage, err, "replay block %d", height)
			}
		}
	}
	return nil
}

// bootstrap mines and commits the genesis block.
func (c *Blockchain) bootstrap() error {
	if c.config.GenesisAddress == "" {
		return errors.NewInvalidBlock("genesis address not configured")
	}

	miner := mining.NewMiner(mining.Config{MinerAddress: c.config.GenesisAddress})
	genesis, err := miner.MineBlock(nil, model.GenesisPreviousHash, 0,
		c.config.GenesisDifficulty, c.config.BaseReward, c.config.HalvingInterval)
	if err != nil {
		return err
	}

	logrus.WithField("hash", genesis.Hash()).Info("mined genesis block")
	return c.addBlockLocked(genesis)
}

// AddBlock validates the block against the current tip, applies it
// atomically, persists it, and only then advances the in-memory state.
func (c *Blockchain) AddBlock(block *model.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addBlockLocked(block)
}

func (c *Blockchain) addBlockLocked(block *model.Block) error {
	if err := c.validateHeaderLocked(block); err != nil {
		return err
	}

	workingSet, err := c.validateBodyLocked(block)
	if err != nil {
		return err
	}

	newState := model.ChainState{
		Height:        block.Header.Height,
		Difficulty:    block.Header.Difficulty,
		BestBlockHash: block.Hash(),
	}

	// Durability before acknowledgement: a block is committed only
	// once the store has it. On storage failure the in-memory state is
	// untouched and the caller may retry.
	if err := c.storage.StoreBlock(block); err != nil {
		return err
	}
	if err := c.storage.StoreChainState(&newState); err != nil {
		return err
	}
	if err := c.storage.StoreUTXOSnapshot(workingSet.List()); err != nil {
		return err
	}

	c.utxoSet = workingSet
	c.state = newState
	c.indexBlock(block)
	c.totalTxs += uint64(len(block.Transactions))

	if c.pool != nil {
		for _, tx := range block.Transactions {
			c.pool.RemoveTransaction(tx.ID)
		}
	}

	logrus.WithFields(logrus.Fields{
		"height":     newState.Height,
		"hash":       newState.BestBlockHash,
		"txs":        len(block.Transactions),
		"difficulty": newState.Difficulty,
	}).Info("block accepted")
	return nil
}

// validateHeaderLocked checks sequencing, linkage, timestamp and the
// difficulty schedule.
func (c *Blockchain) validateHeaderLocked(block *model.Block) error {
	height := block.Header.Height
	hasTip := len(c.byHeight) > 0

	if !hasTip {
		if height != 0 {
			return errors.NewInvalidBlock("first block must have height 0, got %d", height)
		}
		if block.Header.PreviousHash != model.GenesisPreviousHash {
			return errors.NewInvalidBlock("genesis previous hash must be all zeros")
		}
	} else {
		if height != c.state.Height+1 {
			return errors.NewInvalidBlock("expected height %d, got %d", c.state.Height+1, height)
		}
		if block.Header.PreviousHash != c.state.BestBlockHash {
			return errors.NewInvalidBlock("previous hash %s does not match best block %s",
				block.Header.PreviousHash, c.state.BestBlockHash)
		}
	}

	if time.Until(time.Unix(block.Header.Timestamp, 0)) > c.config.MaxFutureDrift {
		return errors.NewInvalidBlock("timestamp %d too far in the future", block.Header.Timestamp)
	}

	expected := c.expectedDifficultyLocked(height)
	if block.Header.Difficulty != expected {
		return errors.NewInvalidBlock("difficulty %d does not match schedule, expected %d",
			block.Header.Difficulty, expected)
	}
	return nil
}

// validateBodyLocked checks the transaction list, merkle commitment,
// proof of work and size, and returns the UTXO set as it stands after
// the block. The live set is never touched.
func (c *Blockchain) validateBodyLocked(block *model.Block) (*utxo.Set, error) {
	if len(block.Transactions) == 0 {
		return nil, errors.NewInvalidBlock("block has no transactions")
	}

	coinbase := block.Transactions[0]
	if !coinbase.IsCoinbase() {
		return nil, errors.NewInvalidBlock("first transaction is not a coinbase")
	}
	for i, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return nil, errors.NewInvalidBlock("unexpected coinbase at index %d", i+1)
		}
	}

	reward := mining.BlockReward(c.config.BaseReward, c.config.HalvingInterval, block.Header.Height)
	paid, err := coinbase.TotalOutputValue()
	if err != nil {
		return nil, err
	}
	if paid != reward {
		return nil, errors.NewInvalidBlock("coinbase pays %d, reward at height %d is %d",
			paid, block.Header.Height, reward)
	}

	root, ok := merkle.NewTree(block.TransactionIDs()).RootHash()
	if !ok || root != block.Header.MerkleRoot {
		return nil, errors.NewInvalidBlock("merkle root does not match transaction list")
	}

	if !mining.VerifyBlockPow(block) {
		return nil, errors.NewInvalidBlock("proof of work does not meet difficulty %d", block.Header.Difficulty)
	}

	if size := block.Size(); size > c.config.MaxBlockSize {
		return nil, errors.NewInvalidBlock("block size %d exceeds limit %d", size, c.config.MaxBlockSize)
	}

	// Apply against a clone so a failure mid-block leaves the live set
	// untouched. Applying in order lets later transactions spend
	// outputs created earlier in the same block, and catches in-block
	// double spends.
	workingSet := c.utxoSet.Clone()
	for _, tx := range block.Transactions {
		if err := tx.Validate(workingSet, block.Header.Height); err != nil {
			return nil, err
		}
		if c.executor != nil && tx.IsContractCall() {
			result, err := c.executor.Execute(tx, block.Header.Height)
			if err != nil {
				return nil, errors.Wrap(errors.KindInvalidTransaction, err, "contract execution for %s", tx.ID)
			}
			if !result.Success {
				return nil, errors.NewInvalidTransaction("contract execution failed for %s", tx.ID)
			}
		}
		if err := workingSet.ApplyTransaction(tx, block.Header.Height); err != nil {
			return nil, err
		}
	}
	return workingSet, nil
}

// expectedDifficultyLocked is the difficulty the schedule demands for a
// block at the given height: the genesis difficulty at height 0, the
// tip difficulty off-boundary, and a retarget over the preceding
// interval on the boundary.
func (c *Blockchain) expectedDifficultyLocked(height uint64) uint32 {
	if height == 0 {
		return c.config.GenesisDifficulty
	}
	if c.config.RetargetInterval == 0 || height%c.config.RetargetInterval != 0 {
		return c.state.Difficulty
	}

	first, okFirst := c.byHeight[height-c.config.RetargetInterval]
	last, okLast := c.byHeight[height-1]
	if !okFirst || !okLast {
		return c.state.Difficulty
	}

	actual := time.Duration(last.Header.Timestamp-first.Header.Timestamp) * time.Second
	expected := time.Duration(c.config.RetargetInterval) * c.config.TargetBlockTime
	return mining.NextDifficulty(c.state.Difficulty, actual, expected)
}

func (c *Blockchain) indexBlock(block *model.Block) {
	c.byHash[block.Hash()] = block
	c.byHeight[block.Header.Height] = block
}

// AddTransaction admits a transaction into the mempool, validating it
// against the live UTXO set at the current height.
func (c *Blockchain) AddTransaction(tx *model.Transaction) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pool == nil {
		return errors.NewInvalidTransaction("node has no mempool")
	}
	return c.pool.AddTransaction(tx, c.utxoSet, c.state.Height)
}

// GetBlockByHeight returns a deep copy of the block at the height, so
// callers cannot mutate the index.
func (c *Blockchain) GetBlockByHeight(height uint64) (*model.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	block, ok := c.byHeight[height]
	if !ok {
		return nil, errors.NewNotFound("no block at height %d", height)
	}
	return copyBlock(block)
}

// GetBlockByHash returns a deep copy of the block with the given hash.
func (c *Blockchain) GetBlockByHash(hash model.Hash) (*model.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	block, ok := c.byHash[hash]
	if !ok {
		return nil, errors.NewNotFound("no block with hash %s", hash)
	}
	return copyBlock(block)
}

// GetLatestBlock returns a deep copy of the tip block.
func (c *Blockchain) GetLatestBlock() (*model.Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	block, ok := c.byHeight[c.state.Height]
	if !ok {
		return nil, errors.NewNotFound("chain has no blocks")
	}
	return copyBlock(block)
}

func copyBlock(block *model.Block) (*model.Block, error) {
	out := &model.Block{}
	if err := copier.CopyWithOption(out, block, copier.Option{DeepCopy: true}); err != nil {
		return nil, errors.Wrap(errors.KindUnknown, err, "copy block")
	}
	return out, nil
}

// GetChainState returns the current tip state.
func (c *Blockchain) GetChainState() model.ChainState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Height is the tip height.
func (c *Blockchain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Height
}

// BestBlockHash is the tip hash.
func (c *Blockchain) BestBlockHash() model.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.BestBlockHash
}

// NextBlockTemplate describes what the next block must look like:
// height, previous hash and scheduled difficulty.
func (c *Blockchain) NextBlockTemplate() (height uint64, previousHash model.Hash, difficulty uint32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	next := c.state.Height + 1
	if len(c.byHeight) == 0 {
		return 0, model.GenesisPreviousHash, c.config.GenesisDifficulty
	}
	return next, c.state.BestBlockHash, c.expectedDifficultyLocked(next)
}

// GetBalance sums the live UTXO values destined to the address.
func (c *Blockchain) GetBalance(address model.Address) (model.Amount, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utxoSet.Balance(address)
}

// GetUTXOsForAddress lists the live UTXOs destined to the address.
func (c *Blockchain) GetUTXOsForAddress(address model.Address) []model.UTXO {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utxoSet.UTXOsForAddress(address)
}

// FindSpendableUTXOs selects mature UTXOs covering amount, for wallets
// assembling a spend.
func (c *Blockchain) FindSpendableUTXOs(address model.Address, amount model.Amount) ([]model.UTXO, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.utxoSet.FindSpendableUTXOs(address, amount, c.state.Height)
}

// Config returns the consensus parameters.
func (c *Blockchain) Config() Config {
	return c.config
}

// Mempool exposes the pool for template assembly and stats.
func (c *Blockchain) Mempool() *mempool.Pool {
	return c.pool
}

// GetStats aggregates chain, supply and mempool counters.
func (c *Blockchain) GetStats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	supply, err := c.utxoSet.TotalSupply()
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{
		Height:            c.state.Height,
		Difficulty:        c.state.Difficulty,
		BestBlockHash:     c.state.BestBlockHash,
		TotalTransactions: c.totalTxs,
		TotalSupply:       supply,
		UTXOCount:         c.utxoSet.Size(),
	}
	if c.pool != nil {
		stats.MempoolSize = c.pool.Size()
	}
	return stats, nil
}

// Close flushes nothing (commits are synchronous) and closes storage.
func (c *Blockchain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storage.Close()
}
