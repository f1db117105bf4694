// Package mempool holds validated, not-yet-mined transactions ordered
// by fee rate for block template assembly.
package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

// Config bounds mempool admission.
type Config struct {
	// MaxPoolBytes is the total byte-size budget of the pool.
	MaxPoolBytes int `yaml:"max_pool_bytes"`
	// MaxTxBytes caps a single transaction's serialized size.
	MaxTxBytes int `yaml:"max_tx_bytes"`
	// MinFeeRate is the admission floor in smallest units per byte.
	MinFeeRate uint64 `yaml:"min_fee_rate"`
	// MaxTxAge is how long an entry may wait before expiry.
	MaxTxAge time.Duration `yaml:"max_tx_age"`
}

// DefaultConfig mirrors the mainnet defaults.
func DefaultConfig() Config {
	return Config{
		MaxPoolBytes: 300_000_000,
		MaxTxBytes:   100_000,
		MinFeeRate:   1,
		MaxTxAge:     24 * time.Hour,
	}
}

// Entry is a pooled transaction with its admission metadata.
type Entry struct {
	Tx      *model.Transaction
	Fee     model.Amount
	FeeRate uint64
	Size    int
	AddedAt time.Time
	Height  uint64
}

// Pool is the fee-prioritized admission queue. Mutations take the
// write lock; read-only queries are safe concurrently.
type Pool struct {
	mu        sync.RWMutex
	config    Config
	entries   map[model.Hash]*Entry
	spentBy   map[model.OutPoint]model.Hash
	sizeBytes int
}

// NewPool returns an empty pool with the given limits.
func NewPool(config Config) *Pool {
	return &Pool{
		config:  config,
		entries: make(map[model.Hash]*Entry),
		spentBy: make(map[model.OutPoint]model.Hash),
	}
}

// AddTransaction validates and admits a transaction. It rejects
// coinbases (only block application introduces those), duplicates,
// in-pool double spends, oversized or underpaying transactions, and
// fails with "mempool full" when eviction cannot free enough budget.
func (p *Pool) AddTransaction(tx *model.Transaction, view model.UTXOView, currentHeight uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tx.IsCoinbase() {
		return errors.NewInvalidTransaction("coinbase transaction %s cannot be pooled", tx.ID)
	}
	if _, exists := p.entries[tx.ID]; exists {
		return errors.NewInvalidTransaction("transaction %s already in mempool", tx.ID)
	}

	for i := range tx.Inputs {
		outpoint := tx.Inputs[i].PreviousOutput
		if outpoint == nil {
			continue
		}
		if conflicting, spent := p.spentBy[*outpoint]; spent {
			return errors.NewInvalidTransaction("input %s:%d already spent by pooled transaction %s",
				outpoint.TxID, outpoint.Vout, conflicting)
		}
	}

	if err := tx.Validate(view, currentHeight); err != nil {
		return err
	}

	size := tx.Size()
	if size > p.config.MaxTxBytes {
		return errors.NewInvalidTransaction("transaction size %d exceeds limit %d", size, p.config.MaxTxBytes)
	}

	totalIn, err := tx.TotalInputValue(view)
	if err != nil {
		return err
	}
	totalOut, err := tx.TotalOutputValue()
	if err != nil {
		return err
	}
	fee := totalIn - totalOut

	var feeRate uint64
	if size > 0 {
		feeRate = fee / uint64(size)
	}
	if feeRate < p.config.MinFeeRate {
		return errors.NewInvalidTransaction("fee rate %d below floor %d", feeRate, p.config.MinFeeRate)
	}

	if p.sizeBytes+size > p.config.MaxPoolBytes {
		p.evictLocked()
		if p.sizeBytes+size > p.config.MaxPoolBytes {
			return errors.NewInvalidTransaction("mempool full, cannot admit %s", tx.ID)
		}
	}

	entry := &Entry{
		Tx:      tx,
		Fee:     fee,
		FeeRate: feeRate,
		Size:    size,
		AddedAt: time.Now(),
		Height:  currentHeight,
	}
	p.entries[tx.ID] = entry
	for i := range tx.Inputs {
		if outpoint := tx.Inputs[i].PreviousOutput; outpoint != nil {
			p.spentBy[*outpoint] = tx.ID
		}
	}
	p.sizeBytes += size
	return nil
}

// RemoveTransaction drops a mined or invalidated transaction. No-op
// when absent.
func (p *Pool) RemoveTransaction(id model.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(id)
}

func (p *Pool) removeLocked(id model.Hash) {
	entry, ok := p.entries[id]
	if !ok {
		return
	}
	delete(p.entries, id)
	for i := range entry.Tx.Inputs {
		if outpoint := entry.Tx.Inputs[i].PreviousOutput; outpoint != nil {
			delete(p.spentBy, *outpoint)
		}
	}
	p.sizeBytes -= entry.Size
}

// evictLocked drops lowest-fee-rate entries until the pool is at or
// below 75% of its byte budget.
func (p *Pool) evictLocked() {
	target := p.config.MaxPoolBytes * 3 / 4
	if p.sizeBytes <= target {
		return
	}

	entries := p.sortedEntriesLocked(false)
	evicted := 0
	for _, entry := range entries {
		if p.sizeBytes <= target {
			break
		}
		p.removeLocked(entry.Tx.ID)
		evicted++
	}
	logrus.WithFields(logrus.Fields{
		"evicted":    evicted,
		"size_bytes": p.sizeBytes,
	}).Info("mempool evicted low fee-rate transactions")
}

// sortedEntriesLocked snapshots the entries ordered by fee rate,
// descending when desc is true. Ties go to the older entry.
func (p *Pool) sortedEntriesLocked(desc bool) []*Entry {
	entries := make([]*Entry, 0, len(p.entries))
	for _, entry := range p.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FeeRate != entries[j].FeeRate {
			if desc {
				return entries[i].FeeRate > entries[j].FeeRate
			}
			return entries[i].FeeRate < entries[j].FeeRate
		}
		return entries[i].AddedAt.Before(entries[j].AddedAt)
	})
	return entries
}

// GetTransactionsForMining selects entries by descending fee rate
// while respecting both the byte and count caps.
func (p *Pool) GetTransactionsForMining(maxBytes, maxCount int) []*model.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	selected := make([]*model.Transaction, 0)
	totalSize := 0
	for _, entry := range p.sortedEntriesLocked(true) {
		if len(selected) >= maxCount {
			break
		}
		if totalSize+entry.Size > maxBytes {
			continue
		}
		selected = append(selected, entry.Tx)
		totalSize += entry.Size
	}
	return selected
}

// CleanupExpired drops entries older than the configured maximum age
// and returns how many were removed.
func (p *Pool) CleanupExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	expired := make([]model.Hash, 0)
	for id, entry := range p.entries {
		if time.Since(entry.AddedAt) > p.config.MaxTxAge {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		p.removeLocked(id)
	}
	if len(expired) > 0 {
		logrus.WithField("count", len(expired)).Info("mempool dropped expired transactions")
	}
	return len(expired)
}

// EstimateFee suggests a fee rate for confirmation within
// targetBlocks: the pooled fee rate at rank pool-size/targetBlocks.
// Returns the configured floor when the pool is empty.
func (p *Pool) EstimateFee(targetBlocks int) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.entries) == 0 || targetBlocks <= 0 {
		return p.config.MinFeeRate
	}

	rates := make([]uint64, 0, len(p.entries))
	for _, entry := range p.entries {
		rates = append(rates, entry.FeeRate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i] > rates[j] })

	rank := len(rates) / targetBlocks
	if rank < 1 {
		rank = 1
	}
	if rank > len(rates)-1 {
		rank = len(rates) - 1
	}
	return rates[rank]
}

// GetTransaction returns the pooled transaction with the given id.
func (p *Pool) GetTransaction(id model.Hash) (*model.Transaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entry, ok := p.entries[id]
	if !ok {
		return nil, false
	}
	return entry.Tx, true
}

// Contains reports whether the id is pooled.
func (p *Pool) Contains(id model.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[id]
	return ok
}

// Size is the number of pooled transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// SizeBytes is the pooled serialized byte total.
func (p *Pool) SizeBytes() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sizeBytes
}

// All returns the pooled transactions in descending fee-rate order.
func (p *Pool) All() []*model.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	entries := p.sortedEntriesLocked(true)
	txs := make([]*model.Transaction, len(entries))
	for i, entry := range entries {
		txs[i] = entry.Tx
	}
	return txs
}

// Stats summarizes the pool for the stats query.
type Stats struct {
	Count      int          `json:"count"`
	SizeBytes  int          `json:"size_bytes"`
	TotalFees  model.Amount `json:"total_fees"`
	MinFeeRate uint64       `json:"min_fee_rate"`
	MaxFeeRate uint64       `json:"max_fee_rate"`
}

// GetStats computes pool aggregates.
func (p *Pool) GetStats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{Count: len(p.entries), SizeBytes: p.sizeBytes}
	first := true
	for _, entry := range p.entries {
		stats.TotalFees += entry.Fee
		if first || entry.FeeRate < stats.MinFeeRate {
			stats.MinFeeRate = entry.FeeRate
		}
		if first || entry.FeeRate > stats.MaxFeeRate {
			stats.MaxFeeRate = entry.FeeRate
		}
		first = false
	}
	return stats
}
