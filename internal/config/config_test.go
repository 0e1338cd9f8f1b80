package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
host: 0.0.0.0
port: "9090"
data_dir: /tmp/ssiagent
wallet_path: /tmp/ssiagent/wallet.db
genesis_path: /tmp/ssiagent/genesis.txn
taa:
  required: true
  mechanism: on_file
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.TAA.Required)
	assert.Equal(t, "on_file", cfg.TAA.Mechanism)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsTAARequiredWithoutMechanism(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
port: "8080"
data_dir: /tmp/ssiagent
wallet_path: /tmp/ssiagent/wallet.db
taa:
  required: true
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyFlagsOverridesOnlyNonEmpty(t *testing.T) {
	cfg := Default()
	cfg.ApplyFlags(Flags{Port: "9999"})
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "9999", cfg.Port)
}

func TestDefaultPassesValidation(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}
