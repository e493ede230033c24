package config_test

import (
	"testing"

	"code.equilab.io/gateway/config"
	"code.equilab.io/gateway/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenAndLoad(t *testing.T) {
	root := t.TempDir()

	path, err := config.Gen(root, false)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = config.Gen(root, false)
	require.Error(t, err, "no silent overwrite")
	_, err = config.Gen(root, true)
	require.NoError(t, err)

	cfg, err := config.Load(root)
	require.NoError(t, err)

	defaults := config.NewDefaultConfig(root)
	assert.Equal(t, defaults.Gateway.Port, cfg.Gateway.Port)
	assert.Equal(t, defaults.Ledger.ChainNode, cfg.Ledger.ChainNode)
	assert.Equal(t, defaults.Wallet.SeedsPath, cfg.Wallet.SeedsPath)
	assert.Equal(t, logging.InfoLevel, cfg.Gateway.Level.Get())
	assert.Equal(t, defaults.Orders.SubmitTimeout.Get(), cfg.Orders.SubmitTimeout.Get())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(t.TempDir())
	assert.Error(t, err)
}
