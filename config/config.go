package config

import (
	"bytes"
	"os"
	"path/filepath"

	"code.equilab.io/gateway/gateway"
	"code.equilab.io/gateway/ledger"
	"code.equilab.io/gateway/markets"
	"code.equilab.io/gateway/orders"
	"code.equilab.io/gateway/pending"
	"code.equilab.io/gateway/trades"
	"code.equilab.io/gateway/wallet"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const configFile = "gateway.toml"

// Config ties together the configuration of every package in the service.
type Config struct {
	Gateway gateway.Config
	Ledger  ledger.Config
	Markets markets.Config
	Orders  orders.Config
	Pending pending.Config
	Trades  trades.Config
	Wallet  wallet.Config
}

// NewDefaultConfig returns the default configuration of every package.
func NewDefaultConfig(rootPath string) Config {
	w := wallet.NewDefaultConfig()
	w.SeedsPath = filepath.Join(rootPath, w.SeedsPath)

	return Config{
		Gateway: gateway.NewDefaultConfig(),
		Ledger:  ledger.NewDefaultConfig(),
		Markets: markets.NewDefaultConfig(),
		Orders:  orders.NewDefaultConfig(),
		Pending: pending.NewDefaultConfig(),
		Trades:  trades.NewDefaultConfig(),
		Wallet:  w,
	}
}

// Load reads the configuration file from the root path.
func Load(rootPath string) (*Config, error) {
	buf, err := os.ReadFile(filepath.Join(rootPath, configFile))
	if err != nil {
		return nil, err
	}
	cfg := Config{}
	if err := toml.Unmarshal(buf, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Gen writes the default configuration file into the root path. An existing
// file is only replaced when rewrite is set.
func Gen(rootPath string, rewrite bool) (string, error) {
	confPath := filepath.Join(rootPath, configFile)
	if _, err := os.Stat(confPath); err == nil && !rewrite {
		return "", errors.Errorf("configuration already exists at path: %v", confPath)
	}

	if err := os.MkdirAll(rootPath, 0o700); err != nil {
		return "", err
	}

	cfg := NewDefaultConfig(rootPath)
	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return "", err
	}
	if err := os.WriteFile(confPath, buf.Bytes(), 0o600); err != nil {
		return "", err
	}
	return confPath, nil
}
