package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, LedgerSimulated, cfg.Ledger.Mode)
	assert.Equal(t, LookupStrict, cfg.Ledger.LookupPolicy)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
ledger:
  mode: rpc
  rpc_url: http://ledger:8545
  timeout: 3s
kafka:
  brokers: ["kafka:9092"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LEDGER_TIMEOUT", "7s")
	t.Setenv("AUTHORITY_MODEL", AuthorityInstitution)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, LedgerRPC, cfg.Ledger.Mode)
	assert.Equal(t, "http://ledger:8545", cfg.Ledger.RPCURL)
	assert.Equal(t, 7*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, AuthorityInstitution, cfg.Ledger.AuthorityModel)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KAFKA_BROKERS":      "a:9092, b:9092,",
		"RATE_LIMIT_ENABLED": "false",
		"LEDGER_MODE":        LedgerDisabled,
	}
	cfg := Default()
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Ledger.Enabled())
}

func TestApplyEnv_BadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(k string) string {
		if k == "LEDGER_TIMEOUT" {
			return "soon"
		}
		return ""
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown ledger mode", func(c *Config) { c.Ledger.Mode = "mainnet" }, "ledger.mode"},
		{"rpc without url", func(c *Config) { c.Ledger.Mode = LedgerRPC }, "ledger.rpc_url"},
		{"unknown authority model", func(c *Config) { c.Ledger.AuthorityModel = "dean" }, "authority_model"},
		{"unknown lookup policy", func(c *Config) { c.Ledger.LookupPolicy = "maybe" }, "lookup_policy"},
		{"unsupported database", func(c *Config) { c.Database.URL = "mysql://x" }, "database.url"},
		{"missing storage", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DisabledLedgerIgnoresTimeout(t *testing.T) {
	cfg := Default()
	cfg.Ledger.Mode = LedgerDisabled
	cfg.Ledger.Timeout = 0
	require.NoError(t, cfg.Validate())
}
