// Package config loads the node's yaml configuration and maps it onto
// the component configs.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/powlabs/gochain/chain"
	"github.com/powlabs/gochain/errors"
	"github.com/powlabs/gochain/mempool"
	"github.com/powlabs/gochain/mining"
	"github.com/powlabs/gochain/model"
	"github.com/powlabs/gochain/node"
)

// AppConfig is the yaml shape of a node configuration. Durations are
// plain seconds so the file stays readable.
type AppConfig struct {
	DataDir       string   `yaml:"data_dir"`
	APIListenAddr string   `yaml:"api_listen_addr"`
	Peers         []string `yaml:"peers"`

	GenesisAddress      string `yaml:"genesis_address"`
	GenesisDifficulty   uint32 `yaml:"genesis_difficulty"`
	BaseReward          uint64 `yaml:"base_reward"`
	HalvingInterval     uint64 `yaml:"halving_interval"`
	TargetBlockTimeSecs int    `yaml:"target_block_time_secs"`
	RetargetInterval    uint64 `yaml:"retarget_interval"`
	MaxBlockSize        int    `yaml:"max_block_size"`
	MaxFutureDriftSecs  int    `yaml:"max_future_drift_secs"`

	MinerAddress string `yaml:"miner_address"`
	MinerWorkers int    `yaml:"miner_workers"`
	MaxBlockTxs  int    `yaml:"max_block_txs"`

	MempoolMaxBytes     int    `yaml:"mempool_max_bytes"`
	MempoolMaxTxBytes   int    `yaml:"mempool_max_tx_bytes"`
	MempoolMinFeeRate   uint64 `yaml:"mempool_min_fee_rate"`
	MempoolMaxTxAgeSecs int    `yaml:"mempool_max_tx_age_secs"`
}

// Default mirrors the mainnet parameters with a local listen address.
func Default() AppConfig {
	chainDefaults := chain.DefaultConfig()
	poolDefaults := mempool.DefaultConfig()
	nodeDefaults := node.DefaultConfig()
	return AppConfig{
		DataDir:             "data",
		APIListenAddr:       "127.0.0.1:8545",
		GenesisDifficulty:   chainDefaults.GenesisDifficulty,
		BaseReward:          uint64(chainDefaults.BaseReward),
		HalvingInterval:     chainDefaults.HalvingInterval,
		TargetBlockTimeSecs: int(chainDefaults.TargetBlockTime / time.Second),
		RetargetInterval:    chainDefaults.RetargetInterval,
		MaxBlockSize:        chainDefaults.MaxBlockSize,
		MaxFutureDriftSecs:  int(chainDefaults.MaxFutureDrift / time.Second),
		MaxBlockTxs:         nodeDefaults.MaxBlockTxs,
		MempoolMaxBytes:     poolDefaults.MaxPoolBytes,
		MempoolMaxTxBytes:   poolDefaults.MaxTxBytes,
		MempoolMinFeeRate:   poolDefaults.MinFeeRate,
		MempoolMaxTxAgeSecs: int(poolDefaults.MaxTxAge / time.Second),
	}
}

// Load reads a yaml file over the defaults, so a partial file only
// overrides what it names.
func Load(path string) (AppConfig, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(errors.KindStorage, err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, errors.Wrap(errors.KindStorage, err, "parse config %s", path)
	}
	return c, nil
}

// ChainConfig maps onto the consensus parameters.
func (c AppConfig) ChainConfig() chain.Config {
	return chain.Config{
		GenesisAddress:    model.Address(c.GenesisAddress),
		GenesisDifficulty: c.GenesisDifficulty,
		BaseReward:        model.Amount(c.BaseReward),
		HalvingInterval:   c.HalvingInterval,
		TargetBlockTime:   time.Duration(c.TargetBlockTimeSecs) * time.Second,
		RetargetInterval:  c.RetargetInterval,
		MaxBlockSize:      c.MaxBlockSize,
		MaxFutureDrift:    time.Duration(c.MaxFutureDriftSecs) * time.Second,
	}
}

// MempoolConfig maps onto the pool limits.
func (c AppConfig) MempoolConfig() mempool.Config {
	return mempool.Config{
		MaxPoolBytes: c.MempoolMaxBytes,
		MaxTxBytes:   c.MempoolMaxTxBytes,
		MinFeeRate:   c.MempoolMinFeeRate,
		MaxTxAge:     time.Duration(c.MempoolMaxTxAgeSecs) * time.Second,
	}
}

// NodeConfig maps onto the node's mining behavior.
func (c AppConfig) NodeConfig() node.Config {
	nodeConfig := node.DefaultConfig()
	nodeConfig.Mining = mining.Config{
		Workers:      c.MinerWorkers,
		MinerAddress: model.Address(c.MinerAddress),
	}
	if c.MaxBlockTxs > 0 {
		nodeConfig.MaxBlockTxs = c.MaxBlockTxs
	}
	return nodeConfig
}
