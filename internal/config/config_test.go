package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rlchess.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "rl_chess_contracts", cfg.Namespace)
	assert.Equal(t, time.Duration(0), cfg.WaitTimeout)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
rpc_url: http://node:5050
torii_url: ws://indexer:8080/ws
retry_interval: 250ms
wait_timeout: 30s
`)
	cfg, err := LoadWithEnv(path, map[string]string{
		"RLCHESS_RPC_URL":            "http://override:5050",
		"RLCHESS_MASTER_PRIVATE_KEY": "0x1",
	})
	require.NoError(t, err)

	assert.Equal(t, "http://override:5050", cfg.RPCURL)
	assert.Equal(t, "ws://indexer:8080/ws", cfg.ToriiURL)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInterval)
	assert.Equal(t, 30*time.Second, cfg.WaitTimeout)
	assert.Equal(t, "0x1", cfg.MasterPrivateKey)
	assert.Equal(t, "***", cfg.Redacted().MasterPrivateKey)
}

func TestLoad_SecretsIgnoredInFile(t *testing.T) {
	path := writeConfig(t, "master_private_key: 0xdead\n")
	_, err := LoadWithEnv(path, map[string]string{})
	assert.Error(t, err, "unknown field rejected")
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "rpc_ulr: http://typo\n")
	_, err := LoadWithEnv(path, map[string]string{})
	assert.Error(t, err)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := LoadWithEnv(writeConfig(t, ""), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := LoadWithEnv("", map[string]string{"RLCHESS_WAIT_TIMEOUT": "-1s"})
	assert.Error(t, err)

	_, err = LoadWithEnv("", map[string]string{"RLCHESS_RETRY_INTERVAL": "soon"})
	assert.Error(t, err)

	_, err = LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestRequireChain(t *testing.T) {
	c := Default()
	assert.NoError(t, c.RequireChain())
	c.RPCURL = ""
	assert.Error(t, c.RequireChain())
}
