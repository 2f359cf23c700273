// Package config loads simulator settings from YAML and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/dexsim/internal/storage/blobstore"
	"gopkg.in/yaml.v3"
)

const (
	defaultListenAddr = ":8080"
	defaultJournalDir = "./wal/trades"
	defaultLogLevel   = "info"
	defaultInterval   = 3 * time.Second
	defaultFrame      = 10 * time.Second
	defaultVolatility = "20"
	defaultDrift      = "0.0002"
	defaultFeeRate    = "0.003"
	defaultCertCache  = "cert-cache"
	minOracleInterval = 100 * time.Millisecond
	maxVolatilityBps  = 10000
)

// Config is the parsed, validated session configuration.
// An empty LogFile logs to stderr.
type Config struct {
	ListenAddr   string
	StateDir     string
	StateBackend string
	JournalDir   string
	LogLevel     string
	LogFile      string
	TLS          TLSConfig
	Oracle       OracleConfig
	AMM          AMMConfig
	History      HistoryConfig
}

// TLSConfig turns on HTTPS with ACME certificates when Domains is not empty.
type TLSConfig struct {
	Domains  []string
	CacheDir string
}

// Enabled reports whether the dashboard should be served over automatic TLS.
func (t TLSConfig) Enabled() bool { return len(t.Domains) > 0 }

type OracleConfig struct {
	Interval      time.Duration
	VolatilityBps decimal.Decimal
	Drift         decimal.Decimal
	Paused        bool
}

type AMMConfig struct {
	FeeRate decimal.Decimal
}

type HistoryConfig struct {
	Frame    time.Duration
	Backfill bool
}

// ConfigTmp mirrors the YAML file; decimals stay strings until parsed.
type ConfigTmp struct {
	ListenAddr   string           `yaml:"listen_addr,omitempty" toml:"listen_addr"`
	StateDir     string           `yaml:"state_dir,omitempty" toml:"state_dir"`
	StateBackend string           `yaml:"state_backend,omitempty" toml:"state_backend"`
	JournalDir   string           `yaml:"journal_dir,omitempty" toml:"journal_dir"`
	LogLevel     string           `yaml:"log_level,omitempty" toml:"log_level"`
	LogFile      string           `yaml:"log_file,omitempty" toml:"log_file"`
	TLS          TLSConfigTmp     `yaml:"tls,omitempty" toml:"tls"`
	Oracle       OracleConfigTmp  `yaml:"oracle" toml:"oracle"`
	AMM          AMMConfigTmp     `yaml:"amm" toml:"amm"`
	History      HistoryConfigTmp `yaml:"history" toml:"history"`
}

type TLSConfigTmp struct {
	Domains  []string `yaml:"domains,omitempty" toml:"domains"`
	CacheDir string   `yaml:"cache_dir,omitempty" toml:"cache_dir"`
}

type OracleConfigTmp struct {
	Interval         time.Duration `yaml:"interval,omitempty" toml:"interval"`
	VolatilityBpsStr string        `yaml:"volatility_bps,omitempty" toml:"volatility_bps"`
	DriftStr         string        `yaml:"drift,omitempty" toml:"drift"`
	Paused           bool          `yaml:"paused" toml:"paused"`
}

type AMMConfigTmp struct {
	FeeRateStr string `yaml:"fee_rate,omitempty" toml:"fee_rate"`
}

type HistoryConfigTmp struct {
	Frame    time.Duration `yaml:"frame,omitempty" toml:"frame"`
	Backfill *bool         `yaml:"backfill,omitempty" toml:"backfill"`
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	cfg, err := ConfigTmp{}.Parse()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Get parses the process flags and loads the resulting configuration.
func Get() (Config, bool, error) {
	return Load(os.Args[1:])
}

// Load resolves configuration from args: config file (YAML or TOML) first, then flag overrides.
// The returned bool reports whether the setup wizard was requested.
func Load(args []string) (Config, bool, error) {
	f, err := parseFlags(args)
	if err != nil {
		return Config{}, false, err
	}

	tmp := ConfigTmp{}
	if f.ConfigPath != "" {
		tmp, err = readConfigFile(f.ConfigPath)
		if err != nil {
			return Config{}, false, err
		}
	}
	f.apply(&tmp)

	cfg, err := tmp.Parse()
	if err != nil {
		return Config{}, false, err
	}
	return cfg, f.Setup, nil
}

// FromYAML parses a YAML document into a Config.
func FromYAML(data []byte) (Config, error) {
	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml config")
	}
	return tmp.Parse()
}

// readConfigFile decodes path as TOML when it ends in .toml and as YAML otherwise.
func readConfigFile(path string) (ConfigTmp, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return readToml(path)
	}
	return readYaml(path)
}

func readToml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp
	meta, err := toml.DecodeFile(path, &tmp)
	if err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "decode config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ConfigTmp{}, errors.Errorf("unknown keys in config %s: %v", path, undecoded)
	}
	return tmp, nil
}

func readYaml(path string) (ConfigTmp, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "read config %s", path)
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return ConfigTmp{}, errors.Wrapf(err, "decode config %s", path)
	}
	return tmp, nil
}

// Parse fills defaults, converts raw values and validates the result.
func (c ConfigTmp) Parse() (Config, error) {
	cfg := Config{
		ListenAddr:   orDefault(c.ListenAddr, defaultListenAddr),
		StateDir:     c.StateDir,
		StateBackend: orDefault(c.StateBackend, blobstore.BackendFile),
		JournalDir:   orDefault(c.JournalDir, defaultJournalDir),
		LogLevel:     orDefault(c.LogLevel, defaultLogLevel),
		LogFile:      c.LogFile,
		TLS: TLSConfig{
			Domains:  c.TLS.Domains,
			CacheDir: orDefault(c.TLS.CacheDir, defaultCertCache),
		},
		Oracle: OracleConfig{
			Interval: c.Oracle.Interval,
			Paused:   c.Oracle.Paused,
		},
		History: HistoryConfig{
			Frame:    c.History.Frame,
			Backfill: true,
		},
	}
	if cfg.StateDir == "" {
		cfg.StateDir = blobstore.StateDir()
	}
	if cfg.Oracle.Interval == 0 {
		cfg.Oracle.Interval = defaultInterval
	}
	if cfg.History.Frame == 0 {
		cfg.History.Frame = defaultFrame
	}
	if c.History.Backfill != nil {
		cfg.History.Backfill = *c.History.Backfill
	}

	var err error
	if cfg.Oracle.VolatilityBps, err = parseDecimal("oracle.volatility_bps", c.Oracle.VolatilityBpsStr, defaultVolatility); err != nil {
		return Config{}, err
	}
	if cfg.Oracle.Drift, err = parseDecimal("oracle.drift", c.Oracle.DriftStr, defaultDrift); err != nil {
		return Config{}, err
	}
	if cfg.AMM.FeeRate, err = parseDecimal("amm.fee_rate", c.AMM.FeeRateStr, defaultFeeRate); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Oracle.Interval < minOracleInterval {
		return fmt.Errorf("incorrect 'oracle.interval' param: %s is below %s", c.Oracle.Interval, minOracleInterval)
	}
	if c.Oracle.VolatilityBps.IsNegative() || c.Oracle.VolatilityBps.GreaterThan(decimal.NewFromInt(maxVolatilityBps)) {
		return fmt.Errorf("incorrect 'oracle.volatility_bps' param: must be within [0, %d], got %s", maxVolatilityBps, c.Oracle.VolatilityBps)
	}
	if c.AMM.FeeRate.IsNegative() || !c.AMM.FeeRate.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("incorrect 'amm.fee_rate' param: must be within [0, 1), got %s", c.AMM.FeeRate)
	}
	if c.History.Frame < time.Second {
		return fmt.Errorf("incorrect 'history.frame' param: %s is below 1s", c.History.Frame)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("incorrect 'log_level' param: %q", c.LogLevel)
	}
	switch c.StateBackend {
	case blobstore.BackendFile, blobstore.BackendLevelDB:
	default:
		return fmt.Errorf("incorrect 'state_backend' param: %q (must be %s or %s)",
			c.StateBackend, blobstore.BackendFile, blobstore.BackendLevelDB)
	}
	for _, d := range c.TLS.Domains {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("incorrect 'tls.domains' param: empty domain")
		}
	}
	return nil
}

// Tmp converts c back into its YAML form.
func (c Config) Tmp() ConfigTmp {
	backfill := c.History.Backfill
	return ConfigTmp{
		ListenAddr:   c.ListenAddr,
		StateDir:     c.StateDir,
		StateBackend: c.StateBackend,
		JournalDir:   c.JournalDir,
		LogLevel:     c.LogLevel,
		LogFile:      c.LogFile,
		TLS:          TLSConfigTmp{Domains: c.TLS.Domains, CacheDir: c.TLS.CacheDir},
		Oracle: OracleConfigTmp{
			Interval:         c.Oracle.Interval,
			VolatilityBpsStr: c.Oracle.VolatilityBps.String(),
			DriftStr:         c.Oracle.Drift.String(),
			Paused:           c.Oracle.Paused,
		},
		AMM:     AMMConfigTmp{FeeRateStr: c.AMM.FeeRate.String()},
		History: HistoryConfigTmp{Frame: c.History.Frame, Backfill: &backfill},
	}
}

func parseDecimal(name, raw, def string) (decimal.Decimal, error) {
	if raw == "" {
		raw = def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", name, err)
	}
	return d, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
