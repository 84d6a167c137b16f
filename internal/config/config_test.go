package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load("", filepath.Join(t.TempDir(), "missing.env"), envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, BackendLocal, cfg.Escrow.Backend)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoad_LayersFileDotenvAndEnv(t *testing.T) {
	yamlPath := writeFile(t, "mintaro.yaml", `
server:
  port: "9000"
escrow:
  backend: delegated
chain:
  rpc_url: http://localhost:8545
  contract: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
  poll_interval: 500ms
database:
  host: yaml-host
  name: escrow
auth:
  jwt_secret: from-yaml
  admins:
    - "0x1111111111111111111111111111111111111111"
`)
	envFile := writeFile(t, ".env", "DB_HOST=dotenv-host\nJWT_SECRET=from-dotenv\nESCROW_PRIVATE_KEY=abc\n")

	cfg, err := load(yamlPath, envFile, envMap(map[string]string{
		"JWT_SECRET":      "from-env",
		"ESCROW_CHAIN_ID": "31337",
		"JWT_TTL":         "1h",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, BackendDelegated, cfg.Escrow.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.PollInterval)
	assert.Equal(t, int64(31337), cfg.Chain.ChainID)
	assert.Equal(t, "abc", cfg.Chain.PrivateKey)
	assert.Equal(t, "dotenv-host", cfg.Database.Host, ".env overrides the file")
	assert.Equal(t, "escrow", cfg.Database.Name)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret, "environment overrides .env")
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"0x1111111111111111111111111111111111111111"}, cfg.Auth.Admins)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	noEnv := filepath.Join(t.TempDir(), "none.env")

	_, err := load(filepath.Join(t.TempDir(), "absent.yaml"), noEnv, envMap(nil))
	assert.Error(t, err)

	_, err = load(writeFile(t, "bad.yaml", "server: [1, 2"), noEnv, envMap(nil))
	assert.Error(t, err)

	_, err = load("", noEnv, envMap(map[string]string{"ESCROW_CHAIN_ID": "mainnet"}))
	assert.ErrorContains(t, err, "ESCROW_CHAIN_ID")
}

func TestLoad_AdminsFromEnv(t *testing.T) {
	cfg, err := load("", filepath.Join(t.TempDir(), "none.env"), envMap(map[string]string{
		"ESCROW_ADMINS": " 0x1111111111111111111111111111111111111111, ,0x2222222222222222222222222222222222222222",
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	}, cfg.Auth.Admins)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Auth.JWTSecret = "s3cret"
		return c
	}
	delegated := func() Config {
		c := valid()
		c.Escrow.Backend = BackendDelegated
		c.Chain.RPCURL = "http://localhost:8545"
		c.Chain.Contract = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
		c.Chain.PrivateKey = "abc"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		base    func() Config
		wantErr string
	}{
		{"local ok", func(*Config) {}, valid, ""},
		{"delegated ok", func(*Config) {}, delegated, ""},
		{"no secret", func(c *Config) { c.Auth.JWTSecret = "" }, valid, "JWT_SECRET"},
		{"unknown backend", func(c *Config) { c.Escrow.Backend = "ledger" }, valid, "unknown escrow backend"},
		{"no rpc", func(c *Config) { c.Chain.RPCURL = "" }, delegated, "ESCROW_RPC_URL"},
		{"bad contract", func(c *Config) { c.Chain.Contract = "0x12" }, delegated, "ESCROW_CONTRACT_ADDRESS"},
		{"no key", func(c *Config) { c.Chain.PrivateKey = "" }, delegated, "ESCROW_PRIVATE_KEY"},
		{"bad admin", func(c *Config) { c.Auth.Admins = []string{"admin"} }, valid, "admin"},
		{"no port", func(c *Config) { c.Server.Port = "" }, valid, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{User: "app", Password: "p@ss word", Host: "db", Port: "5432", Name: "escrow", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/escrow?sslmode=disable", d.DSN())
	assert.True(t, d.Enabled())
}
