package config

// Package config provides a reusable loader for the node's configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/synnergy-network/dpos-node/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a node process. It mirrors the
// structure of the YAML files under config/.
type Config struct {
	Network struct {
		ID             string   `mapstructure:"id" json:"id"`
		ChainID        int      `mapstructure:"chain_id" json:"chain_id"`
		MaxPeers       int      `mapstructure:"max_peers" json:"max_peers"`
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	Consensus struct {
		EpochStartMillis int64  `mapstructure:"epoch_start_millis" json:"epoch_start_millis"`
		ActiveDelegates  int    `mapstructure:"active_delegates" json:"active_delegates"`
		GenesisBlockID   string `mapstructure:"genesis_block_id" json:"genesis_block_id"`
		MaxTxPerBlock    int    `mapstructure:"max_tx_per_block" json:"max_tx_per_block"`
		MaxBlockBytes    int    `mapstructure:"max_block_bytes" json:"max_block_bytes"`
		SaltLength       int    `mapstructure:"salt_length" json:"salt_length"`
		BlockVersion     uint32 `mapstructure:"block_version" json:"block_version"`
	} `mapstructure:"consensus" json:"consensus"`

	Storage struct {
		ChainStoreDepth int    `mapstructure:"chain_store_depth" json:"chain_store_depth"`
		DSN             string `mapstructure:"dsn" json:"dsn"`
	} `mapstructure:"storage" json:"storage"`

	PeerAPI struct {
		ListenAddr       string `mapstructure:"listen_addr" json:"listen_addr"`
		RequestTimeoutMS int    `mapstructure:"request_timeout_ms" json:"request_timeout_ms"`
	} `mapstructure:"peer_api" json:"peer_api"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // .env is optional; ignore a missing file

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("NODE")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the NODE_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("NODE_ENV", ""))
}
