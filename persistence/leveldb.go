// Package persistence stores blocks, chain state and UTXO snapshots in
// a leveldb database. Blocks are keyed by big-endian height so the
// natural key order is the chain order.
package persistence

import (
	"encoding/binary"
	"encoding/json"

	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/util"
	"github.com/sirupsen/logrus"

	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/model"
)

var (
	blockPrefix = []byte("b")
	hashPrefix  = []byte("h")
	stateKey    = []byte("chainstate")
	utxoSetKey  = []byte("utxoset")
)

// Store is a leveldb-backed implementation of the chain's storage
// interface. Writes are synchronous; a returned nil means the data is
// on disk.
type Store struct {
	db   *leveldb.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.NewStorageError(err, "open leveldb at %s", path)
	}
	logrus.WithField("path", path).Info("block store opened")
	return &Store{db: db, path: path}, nil
}

func blockKey(height uint64) []byte {
	key := make([]byte, 1, 9)
	copy(key, blockPrefix)
	return binary.BigEndian.AppendUint64(key, height)
}

func hashKey(hash model.Hash) []byte {
	return append(append([]byte{}, hashPrefix...), hash...)
}

// StoreBlock writes the block under its height and indexes its hash.
func (s *Store) StoreBlock(block *model.Block) error {
	data, err := block.Serialize()
	if err != nil {
		return err
	}
	if err := s.db.Put(blockKey(block.Header.Height), data, nil); err != nil {
		return errors.NewStorageError(err, "store block %d", block.Header.Height)
	}

	height := make([]byte, 8)
	binary.BigEndian.PutUint64(height, block.Header.Height)
	if err := s.db.Put(hashKey(block.Hash()), height, nil); err != nil {
		return errors.NewStorageError(err, "index block hash %s", block.Hash())
	}
	return nil
}

// LoadBlockByHeight reads the block stored at the height.
func (s *Store) LoadBlockByHeight(height uint64) (*model.Block, error) {
	data, err := s.db.Get(blockKey(height), nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.NewNotFound("no block at height %d", height)
	}
	if err != nil {
		return nil, errors.NewStorageError(err, "load block %d", height)
	}
	return model.DeserializeBlock(data)
}

// LoadBlockByHash resolves the hash index and reads the block.
func (s *Store) LoadBlockByHash(hash model.Hash) (*model.Block, error) {
	data, err := s.db.Get(hashKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.NewNotFound("no block with hash %s", hash)
	}
	if err != nil {
		return nil, errors.NewStorageError(err, "load block hash index %s", hash)
	}
	return s.LoadBlockByHeight(binary.BigEndian.Uint64(data))
}

// LoadAllBlocks iterates the block keyspace in height order.
func (s *Store) LoadAllBlocks() ([]*model.Block, error) {
	iter := s.db.NewIterator(util.BytesPrefix(blockPrefix), nil)
	defer iter.Release()

	blocks := make([]*model.Block, 0)
	for iter.Next() {
		block, err := model.DeserializeBlock(iter.Value())
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.NewStorageError(err, "iterate blocks")
	}
	return blocks, nil
}

// StoreChainState writes the tip state.
func (s *Store) StoreChainState(state *model.ChainState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return errors.NewStorageError(err, "serialize chain state")
	}
	if err := s.db.Put(stateKey, data, nil); err != nil {
		return errors.NewStorageError(err, "store chain state")
	}
	return nil
}

// LoadChainState reads the tip state. A fresh database reports
// not found, which the coordinator takes as the bootstrap signal.
func (s *Store) LoadChainState() (*model.ChainState, error) {
	data, err := s.db.Get(stateKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.NewNotFound("no chain state stored")
	}
	if err != nil {
		return nil, errors.NewStorageError(err, "load chain state")
	}
	var state model.ChainState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewStorageError(err, "deserialize chain state")
	}
	return &state, nil
}

// StoreUTXOSnapshot overwrites the UTXO set snapshot.
func (s *Store) StoreUTXOSnapshot(utxos []model.UTXO) error {
	data, err := json.Marshal(utxos)
	if err != nil {
		return errors.NewStorageError(err, "serialize utxo snapshot")
	}
	if err := s.db.Put(utxoSetKey, data, nil); err != nil {
		return errors.NewStorageError(err, "store utxo snapshot")
	}
	return nil
}

// LoadUTXOSnapshot reads the snapshot written by StoreUTXOSnapshot.
func (s *Store) LoadUTXOSnapshot() ([]model.UTXO, error) {
	data, err := s.db.Get(utxoSetKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.NewNotFound("no utxo snapshot stored")
	}
	if err != nil {
		return nil, errors.NewStorageError(err, "load utxo snapshot")
	}
	var utxos []model.UTXO
	if err := json.Unmarshal(data, &utxos); err != nil {
		return nil, errors.NewStorageError(err, "deserialize utxo snapshot")
	}
	return utxos, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.NewStorageError(err, "close leveldb at %s", s.path)
	}
	return nil
}
