// Package node wires the chain coordinator, mempool and miner into a
// running full node: it admits blocks and transactions from outside,
// runs the mining loop, and relays what it accepts to its peers.
package node

import (
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/chain"
	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/mempool"
	"github.com/powlabs/gochain/mining"
	"github.com/powlabs/gochain/model"
)

// Broadcaster relays accepted blocks and transactions to peers. The
// node works without one; relaying is best effort.
type Broadcaster interface {
	BroadcastBlock(block *model.Block)
	BroadcastTransaction(tx *model.Transaction)
}

// Config controls the node's mining and housekeeping behavior.
type Config struct {
	Mining mining.Config `yaml:"mining"`
	// MaxBlockTxs caps how many pooled transactions go into one
	// candidate block.
	MaxBlockTxs int `yaml:"max_block_txs"`
	// RemineOnTipChange interrupts an in-flight search when a
	// competing block advances the tip first.
	RemineOnTipChange bool `yaml:"remine_on_tip_change"`
	// MempoolSweepInterval is how often expired transactions are
	// dropped from the pool.
	MempoolSweepInterval time.Duration `yaml:"mempool_sweep_interval"`
}

// DefaultConfig returns sensible node defaults; the miner address
// still has to be set before mining can start.
func DefaultConfig() Config {
	return Config{
		MaxBlockTxs:          1000,
		RemineOnTipChange:    true,
		MempoolSweepInterval: time.Hour,
	}
}

// Status is the node snapshot served by the info endpoint.
type Status struct {
	ID            string        `json:"id"`
	Height        uint64        `json:"height"`
	BestBlockHash model.Hash    `json:"best_block_hash"`
	Difficulty    uint32        `json:"difficulty"`
	Mining        bool          `json:"mining"`
	MinerStats    mining.Stats  `json:"miner_stats"`
	MempoolStats  mempool.Stats `json:"mempool_stats"`
}

// FullNode maintains the chain and participates in consensus. The id
// does not affect consensus, it only tells nodes apart in logs.
type FullNode struct {
	id     string
	config Config
	chain  *chain.Blockchain
	miner  *mining.Miner

	mu          sync.Mutex
	broadcaster Broadcaster
	miningOn    bool
	quit        chan struct{}
	wg          sync.WaitGroup
}

// NewFullNode assembles a node around an initialized chain.
func NewFullNode(config Config, c *chain.Blockchain) *FullNode {
	n := &FullNode{
		id:     uuid.NewV4().String(),
		config: config,
		chain:  c,
		miner:  mining.NewMiner(config.Mining),
		quit:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.sweepLoop()
	return n
}

// ID is the node's log identifier.
func (n *FullNode) ID() string { return n.id }

// Chain exposes the coordinator for the API layer.
func (n *FullNode) Chain() *chain.Blockchain { return n.chain }

// SetBroadcaster installs the peer relay.
func (n *FullNode) SetBroadcaster(b Broadcaster) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcaster = b
}

func (n *FullNode) getBroadcaster() Broadcaster {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.broadcaster
}

// HandleNewTransaction admits a transaction into the mempool and
// relays it on success.
func (n *FullNode) HandleNewTransaction(tx *model.Transaction) error {
	if err := n.chain.AddTransaction(tx); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"node": n.id, "tx": tx.ID}).Debug("transaction admitted")
	if b := n.getBroadcaster(); b != nil {
		b.BroadcastTransaction(tx)
	}
	return nil
}

// HandleNewBlock commits an externally received block and relays it.
// When the tip advances under an in-flight search, the stale search is
// interrupted so the loop retargets the new tip.
func (n *FullNode) HandleNewBlock(block *model.Block) error {
	if err := n.chain.AddBlock(block); err != nil {
		return err
	}
	if b := n.getBroadcaster(); b != nil {
		b.BroadcastBlock(block)
	}
	if n.config.RemineOnTipChange && n.IsMining() {
		n.miner.Stop()
	}
	return nil
}

// StartMining launches the mining loop. Returns an error when the
// miner address is missing or the loop already runs.
func (n *FullNode) StartMining() error {
	if n.config.Mining.MinerAddress == "" {
		return errors.NewMiningError("miner address not configured")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.miningOn {
		return errors.NewMiningError("mining already running")
	}
	n.miningOn = true
	n.wg.Add(1)
	go n.mineLoop()
	logrus.WithField("node", n.id).Info("mining started")
	return nil
}

// StopMining interrupts the current search and ends the loop.
func (n *FullNode) StopMining() {
	n.mu.Lock()
	if !n.miningOn {
		n.mu.Unlock()
		return
	}
	n.miningOn = false
	n.mu.Unlock()
	n.miner.Stop()
	logrus.WithField("node", n.id).Info("mining stopped")
}

// IsMining reports whether the mining loop is active.
func (n *FullNode) IsMining() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.miningOn
}

// mineLoop repeatedly templates against the current tip, solves, and
// commits. A cancelled search simply re-templates, which is how both
// tip changes and StopMining take effect.
func (n *FullNode) mineLoop() {
	defer n.wg.Done()
	for n.IsMining() {
		height, prev, difficulty := n.chain.NextBlockTemplate()
		txs := n.chain.Mempool().GetTransactionsForMining(n.chain.Config().MaxBlockSize/2, n.config.MaxBlockTxs)

		if !n.IsMining() {
			return
		}
		block, err := n.miner.MineBlock(txs, prev, height, difficulty,
			n.chain.Config().BaseReward, n.chain.Config().HalvingInterval)
		if err != nil {
			continue
		}

		if err := n.chain.AddBlock(block); err != nil {
			// Usually a race with an externally received block at the
			// same height; the next iteration retargets the new tip.
			logrus.WithFields(logrus.Fields{"node": n.id, "height": height}).
				WithError(err).Warn("mined block rejected")
			continue
		}
		if b := n.getBroadcaster(); b != nil {
			b.BroadcastBlock(block)
		}
	}
}

// sweepLoop periodically drops expired transactions from the pool.
func (n *FullNode) sweepLoop() {
	defer n.wg.Done()
	interval := n.config.MempoolSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.chain.Mempool().CleanupExpired()
		case <-n.quit:
			return
		}
	}
}

// Status snapshots the node for the info endpoint.
func (n *FullNode) Status() Status {
	state := n.chain.GetChainState()
	return Status{
		ID:            n.id,
		Height:        state.Height,
		BestBlockHash: state.BestBlockHash,
		Difficulty:    state.Difficulty,
		Mining:        n.IsMining(),
		MinerStats:    n.miner.GetStats(),
		MempoolStats:  n.chain.Mempool().GetStats(),
	}
}

// Close stops mining and housekeeping and closes the chain's storage.
func (n *FullNode) Close() error {
	n.StopMining()
	close(n.quit)
	n.wg.Wait()
	return n.chain.Close()
}
