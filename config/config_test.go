package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	t.Setenv("DEXSIM_STATE_DIR", "")

	cfg := Default()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "./state", cfg.StateDir)
	assert.Equal(t, "file", cfg.StateBackend)
	assert.Empty(t, cfg.LogFile)
	assert.False(t, cfg.TLS.Enabled())
	assert.Equal(t, "cert-cache", cfg.TLS.CacheDir)
	assert.Equal(t, 3*time.Second, cfg.Oracle.Interval)
	assert.True(t, cfg.Oracle.VolatilityBps.Equal(decimal.NewFromInt(20)))
	assert.True(t, cfg.Oracle.Drift.Equal(decimal.RequireFromString("0.0002")))
	assert.True(t, cfg.AMM.FeeRate.Equal(decimal.RequireFromString("0.003")))
	assert.Equal(t, 10*time.Second, cfg.History.Frame)
	assert.True(t, cfg.History.Backfill)
	assert.False(t, cfg.Oracle.Paused)
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
listen_addr: ":9090"
state_dir: "/tmp/dexsim"
state_backend: leveldb
log_level: debug
log_file: "/tmp/dexsim/dexsim.log"
tls:
  domains: ["dex.example.com", "www.dex.example.com"]
  cache_dir: "/var/lib/dexsim/certs"
oracle:
  interval: 1s
  volatility_bps: "50"
  drift: "0"
  paused: true
amm:
  fee_rate: "0.01"
history:
  frame: 30s
  backfill: false
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "/tmp/dexsim", cfg.StateDir)
	assert.Equal(t, "leveldb", cfg.StateBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/dexsim/dexsim.log", cfg.LogFile)
	assert.True(t, cfg.TLS.Enabled())
	assert.Equal(t, []string{"dex.example.com", "www.dex.example.com"}, cfg.TLS.Domains)
	assert.Equal(t, "/var/lib/dexsim/certs", cfg.TLS.CacheDir)
	assert.Equal(t, time.Second, cfg.Oracle.Interval)
	assert.True(t, cfg.Oracle.VolatilityBps.Equal(decimal.NewFromInt(50)))
	assert.True(t, cfg.Oracle.Drift.IsZero())
	assert.True(t, cfg.Oracle.Paused)
	assert.True(t, cfg.AMM.FeeRate.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, 30*time.Second, cfg.History.Frame)
	assert.False(t, cfg.History.Backfill)
}

func TestFromYAML_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "bad decimal", doc: "amm:\n  fee_rate: abc\n"},
		{name: "fee too high", doc: "amm:\n  fee_rate: \"1\"\n"},
		{name: "negative volatility", doc: "oracle:\n  volatility_bps: \"-1\"\n"},
		{name: "interval too short", doc: "oracle:\n  interval: 1ms\n"},
		{name: "frame too short", doc: "history:\n  frame: 10ms\n"},
		{name: "log level", doc: "log_level: loud\n"},
		{name: "state backend", doc: "state_backend: redis\n"},
		{name: "blank tls domain", doc: "tls:\n  domains: [\"\"]\n"},
		{name: "not yaml", doc: "listen_addr: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_FlagsOverrideYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9000\"\noracle:\n  interval: 5s\n"), 0o644))

	cfg, setup, err := Load([]string{"--config", path, "--interval", "2s", "--state-dir", "/data", "--state-backend", "leveldb"})
	require.NoError(t, err)

	assert.False(t, setup)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.Oracle.Interval)
	assert.Equal(t, "/data", cfg.StateDir)
	assert.Equal(t, "leveldb", cfg.StateBackend)
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dexsim.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr = ":9100"
state_backend = "leveldb"

[tls]
domains = ["dex.example.com"]

[oracle]
interval = "2s"
volatility_bps = "35"
paused = true

[amm]
fee_rate = "0.005"

[history]
frame = "1m"
backfill = false
`), 0o644))

	cfg, _, err := Load([]string{"--config", path})
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, "leveldb", cfg.StateBackend)
	assert.Equal(t, []string{"dex.example.com"}, cfg.TLS.Domains)
	assert.Equal(t, "cert-cache", cfg.TLS.CacheDir)
	assert.Equal(t, 2*time.Second, cfg.Oracle.Interval)
	assert.True(t, cfg.Oracle.VolatilityBps.Equal(decimal.NewFromInt(35)))
	assert.True(t, cfg.Oracle.Paused)
	assert.True(t, cfg.AMM.FeeRate.Equal(decimal.RequireFromString("0.005")))
	assert.Equal(t, time.Minute, cfg.History.Frame)
	assert.False(t, cfg.History.Backfill)
}

func TestLoad_TOMLUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dexsim.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_adr = \":9100\"\n"), 0o644))

	_, _, err := Load([]string{"--config", path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen_adr")
}

func TestLoad_EnvStateDir(t *testing.T) {
	t.Setenv("DEXSIM_STATE_DIR", "/var/lib/dexsim")

	cfg, setup, err := Load([]string{"--setup", "--addr", ":7000"})
	require.NoError(t, err)

	assert.True(t, setup)
	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "/var/lib/dexsim", cfg.StateDir)
}

func TestLoad_Errors(t *testing.T) {
	_, _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, _, err = Load([]string{"--unknown"})
	assert.Error(t, err)
}

func TestTmpRoundTrip(t *testing.T) {
	t.Setenv("DEXSIM_STATE_DIR", "")
	cfg := Default()
	cfg.History.Backfill = false
	cfg.Oracle.Paused = true

	data, err := yaml.Marshal(cfg.Tmp())
	require.NoError(t, err)

	back, err := FromYAML(data)
	require.NoError(t, err)
	assert.False(t, back.History.Backfill)
	assert.True(t, back.Oracle.Paused)
	assert.Equal(t, cfg.ListenAddr, back.ListenAddr)
	assert.True(t, cfg.AMM.FeeRate.Equal(back.AMM.FeeRate))
}
