package model

import "time"

// Protocol parameters. Values mirror the mainnet defaults; tests and
// private networks override them through config.
const (
	// BaseBlockReward is the coinbase subsidy at height 0, in the
	// smallest unit (8 decimal precision).
	BaseBlockReward Amount = 50_00000000

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint64 = 210_000

	// TargetBlockTime is the desired spacing between blocks.
	TargetBlockTime = 600 * time.Second

	// DifficultyAdjustmentInterval is the number of blocks per
	// retarget window.
	DifficultyAdjustmentInterval uint64 = 2016

	// MaxBlockSize caps the serialized size of a block in bytes.
	MaxBlockSize = 1_000_000

	// CoinbaseMaturity is the number of blocks that must elapse before
	// a coinbase output may be spent.
	CoinbaseMaturity uint64 = 100

	// MaxFutureDrift is how far ahead of local time a block timestamp
	// may be before the block is rejected.
	MaxFutureDrift = 2 * time.Hour

	// CoinbaseSequence is the sequence number carried by coinbase inputs.
	CoinbaseSequence uint32 = 0xFFFFFFFF

	// BlockVersion is the current block header version.
	BlockVersion uint32 = 1
)

// GenesisPreviousHash is the previous-hash carried by the genesis header.
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"
