package chain

import "github.com/powlabs/gochain/model"

// Storage is the durable persistence collaborator. The coordinator
// treats it as a synchronous key-value store: a block is acknowledged
// as committed only after the store calls return.
type Storage interface {
	StoreBlock(block *model.Block) error
	LoadBlockByHeight(height uint64) (*model.Block, error)
	LoadBlockByHash(hash model.Hash) (*model.Block, error)
	LoadAllBlocks() ([]*model.Block, error)

	StoreChainState(state *model.ChainState) error
	LoadChainState() (*model.ChainState, error)

	StoreUTXOSnapshot(utxos []model.UTXO) error
	LoadUTXOSnapshot() ([]model.UTXO, error)

	Close() error
}

// ContractResult is what the contract-execution collaborator reports
// back for a contract call.
type ContractResult struct {
	Success      bool
	ReturnData   []byte
	StateChanges []StateChange
}

// StateChange is one key-value mutation produced by contract execution.
type StateChange struct {
	Key   string
	Value []byte
}

// ContractExecutor runs transactions flagged as contract calls. The
// coordinator treats it as a black box; a failed execution rejects the
// containing block.
type ContractExecutor interface {
	Execute(tx *model.Transaction, height uint64) (*ContractResult, error)
}
