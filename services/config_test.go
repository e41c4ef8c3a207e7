package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/smart-account-sdk-go/client"
	"github.com/weisyn/smart-account-sdk-go/program"
)

func TestParseConfig_OverlaysDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
node:
  endpoint: https://rpc.example.org
  protocol: websocket
nonce_retries: 5
lookup_table:
  activation_timeout: 3s
`))
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.org", cfg.Node.Endpoint)
	assert.Equal(t, 5, cfg.NonceRetries)
	assert.Equal(t, 3*time.Second, cfg.LookupTable.ActivationTimeout)
	assert.Equal(t, 400*time.Millisecond, cfg.LookupTable.PollInterval)
	assert.Equal(t, 1024, cfg.MaxPayloadSize)
	assert.Equal(t, "confirmed", cfg.Confirmation.Level)

	id, err := cfg.ProgramID()
	require.NoError(t, err)
	assert.Equal(t, program.DefaultEngineProgramID, id)

	cc := cfg.ClientConfig(nil)
	assert.Equal(t, client.ProtocolWebSocket, cc.Protocol)
	assert.Equal(t, client.CommitmentConfirmed, cc.Commitment)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad program id", yaml: "engine_program_id: not-an-address"},
		{name: "negative retries", yaml: "nonce_retries: -1"},
		{name: "chunk too large", yaml: "lookup_table:\n  extend_chunk_size: 64"},
		{name: "unknown confirmation level", yaml: "confirmation:\n  level: rooted"},
		{name: "malformed yaml", yaml: "node: [unterminated"},
		{name: "unknown field", yaml: "nonce_retry: 3"},
		{name: "envelope is fixed", yaml: "envelope:\n  rp_id: staging.vaultengine.app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Node, cfg.Node)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vault_read_only: true\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.VaultReadOnly)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
