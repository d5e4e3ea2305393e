// Package config loads the lobby client settings from POKER_LOBBY_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCURL     string `env:"POKER_LOBBY_RPC_URL"`
	WalletURL  string `env:"POKER_LOBBY_WALLET_URL"`
	PrivateKey string `env:"POKER_LOBBY_PRIVATE_KEY"`
	ChainID    int64  `env:"POKER_LOBBY_CHAIN_ID"          envDefault:"0"`

	ContractAddress string `env:"POKER_LOBBY_CONTRACT_ADDRESS"`
	ContractABI     string `env:"POKER_LOBBY_CONTRACT_ABI"`

	PollInterval   time.Duration `env:"POKER_LOBBY_POLL_INTERVAL"   envDefault:"1s"`
	ConnectTimeout time.Duration `env:"POKER_LOBBY_CONNECT_TIMEOUT" envDefault:"2m"`
	ConfirmTimeout time.Duration `env:"POKER_LOBBY_CONFIRM_TIMEOUT" envDefault:"5m"`

	SimSeats         int           `env:"POKER_LOBBY_SIM_SEATS"          envDefault:"4"`
	SimBlockInterval time.Duration `env:"POKER_LOBBY_SIM_BLOCK_INTERVAL" envDefault:"2s"`

	LogLevel string `env:"POKER_LOBBY_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.WalletURL == "" {
		cfg.WalletURL = cfg.RPCURL
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Simulated reports whether the client runs against the in-process ledger.
func (c Config) Simulated() bool {
	return c.RPCURL == ""
}

func (c Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POKER_LOBBY_POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("POKER_LOBBY_CONNECT_TIMEOUT must not be negative, got %s", c.ConnectTimeout))
	}
	if c.ConfirmTimeout < 0 {
		errs = append(errs, fmt.Errorf("POKER_LOBBY_CONFIRM_TIMEOUT must not be negative, got %s", c.ConfirmTimeout))
	}
	if c.ChainID < 0 {
		errs = append(errs, fmt.Errorf("POKER_LOBBY_CHAIN_ID must not be negative, got %d", c.ChainID))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.Simulated() {
		if c.SimSeats <= 0 {
			errs = append(errs, fmt.Errorf("POKER_LOBBY_SIM_SEATS must be positive, got %d", c.SimSeats))
		}
		if c.SimBlockInterval <= 0 {
			errs = append(errs, fmt.Errorf("POKER_LOBBY_SIM_BLOCK_INTERVAL must be positive, got %s", c.SimBlockInterval))
		}
	} else if !common.IsHexAddress(c.ContractAddress) {
		errs = append(errs, fmt.Errorf("POKER_LOBBY_CONTRACT_ADDRESS must be a hex address, got %q", c.ContractAddress))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel as a slog level name such as "debug" or "warn".
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("POKER_LOBBY_LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Contract returns the configured contract address. It is the zero address
// in simulated mode.
func (c Config) Contract() common.Address {
	return common.HexToAddress(c.ContractAddress)
}
