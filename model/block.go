package model

import (
	"encoding/binary"
	"encoding/json"

	"github.com/powlabs/gochain/crypto"
	"github.com/powlabs/gochain/errors"
)

// BlockHeader commits to the block contents. Immutable once the block
// is accepted.
type BlockHeader struct {
	Version      uint32 `json:"version"`
	PreviousHash Hash   `json:"previous_hash"`
	MerkleRoot   Hash   `json:"merkle_root"`
	Timestamp    int64  `json:"timestamp"`
	Difficulty   uint32 `json:"difficulty"`
	Nonce        uint64 `json:"nonce"`
	Height       uint64 `json:"height"`
}

// Block is a header plus its ordered transaction list. Index 0 is
// always the coinbase transaction.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// PowPayload serializes the header with the given nonce in the fixed
// field order: version, previous-hash, merkle-root, timestamp,
// difficulty, nonce, height.
func (h *BlockHeader) PowPayload(nonce uint64) []byte {
	data := make([]byte, 0, 4+len(h.PreviousHash)+len(h.MerkleRoot)+8+4+8+8)
	data = binary.BigEndian.AppendUint32(data, h.Version)
	data = append(data, []byte(h.PreviousHash)...)
	data = append(data, []byte(h.MerkleRoot)...)
	data = binary.BigEndian.AppendUint64(data, uint64(h.Timestamp))
	data = binary.BigEndian.AppendUint32(data, h.Difficulty)
	data = binary.BigEndian.AppendUint64(data, nonce)
	data = binary.BigEndian.AppendUint64(data, h.Height)
	return data
}

// HashWithNonce is the double-SHA256 of the header with a candidate
// nonce. The proof-of-work loop calls this once per iteration.
func (h *BlockHeader) HashWithNonce(nonce uint64) []byte {
	return crypto.DoubleSha256(h.PowPayload(nonce))
}

// Hash is the block hash: the header hash with the committed nonce.
// The same value is the proof-of-work subject and the previous-hash
// link of the next block.
func (b *Block) Hash() Hash {
	return crypto.HashToString(b.Header.HashWithNonce(b.Header.Nonce))
}

// TransactionIDs returns the ids in block order, the merkle leaf list.
func (b *Block) TransactionIDs() []Hash {
	ids := make([]Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.ID
	}
	return ids
}

// Serialize encodes the block for persistence and transport.
func (b *Block) Serialize() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, errors.Wrap(errors.KindInvalidBlock, err, "serialize block")
	}
	return data, nil
}

// DeserializeBlock decodes a block produced by Serialize.
func DeserializeBlock(data []byte) (*Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, errors.Wrap(errors.KindInvalidBlock, err, "deserialize block")
	}
	return &b, nil
}

// Size is the serialized byte length, checked against the block size
// limit.
func (b *Block) Size() int {
	data, err := b.Serialize()
	if err != nil {
		return 0
	}
	return len(data)
}

// ChainState is the mutable tip of the ledger. Only the chain
// coordinator mutates it, once per accepted block.
type ChainState struct {
	Height        uint64 `json:"height"`
	Difficulty    uint32 `json:"difficulty"`
	BestBlockHash Hash   `json:"best_block_hash"`
}
