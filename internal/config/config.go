package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/starmatch/internal/ledger"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "STARMATCH_"

// Log formats.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{FormatText, FormatJSON, FormatPretty}
)

// ErrInvalid marks a configuration that failed validation.
var ErrInvalid = errors.New("invalid config")

// Config holds runtime settings.
type Config struct {
	// DBPath is the SQLite database holding local progress, the write
	// log and the development ledger.
	DBPath string `yaml:"db_path" env:"DB_PATH"`

	// PlayerID identifies the authenticated player. Empty plays as guest.
	PlayerID string `yaml:"player_id" env:"PLAYER"`

	// BatchCap bounds entries per ledger write.
	BatchCap int `yaml:"batch_cap" env:"BATCH_CAP"`

	// PaymasterURL enables sponsored writes. Empty means unsupported.
	PaymasterURL string `yaml:"paymaster_url" env:"PAYMASTER_URL"`

	// SignerKey is a hex secp256k1 private key. Empty submits unsigned.
	SignerKey string `yaml:"signer_key" env:"SIGNER_KEY"`

	// RequireSignature makes the development ledger verify signatures.
	RequireSignature bool `yaml:"require_signature" env:"REQUIRE_SIGNATURE"`

	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// ReadConcurrency bounds parallel per-level ledger reads.
	ReadConcurrency int `yaml:"read_concurrency" env:"READ_CONCURRENCY"`

	// CatalogPath optionally replaces the embedded level catalog.
	CatalogPath string `yaml:"catalog_path" env:"CATALOG"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:          "starmatch.db",
		BatchCap:        ledger.DefaultBatchCap,
		LogLevel:        "info",
		LogFormat:       FormatText,
		ReadConcurrency: ledger.DefaultReadConcurrency,
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// process environment.
func Load(path string) (Config, error) {
	return LoadWith(path, nil)
}

// LoadWith is Load with an explicit environment. A nil environ uses the
// process environment.
func LoadWith(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Validate reports the first out-of-range setting.
func (c Config) Validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path is required", ErrInvalid)
	case c.BatchCap < 1 || c.BatchCap > ledger.DefaultBatchCap:
		return fmt.Errorf("%w: batch_cap %d (want 1..%d)", ErrInvalid, c.BatchCap, ledger.DefaultBatchCap)
	case c.ReadConcurrency < 1:
		return fmt.Errorf("%w: read_concurrency %d (want >= 1)", ErrInvalid, c.ReadConcurrency)
	case !slices.Contains(logLevels, c.LogLevel):
		return fmt.Errorf("%w: log_level %q (want one of %v)", ErrInvalid, c.LogLevel, logLevels)
	case !slices.Contains(logFormats, c.LogFormat):
		return fmt.Errorf("%w: log_format %q (want one of %v)", ErrInvalid, c.LogFormat, logFormats)
	}
	return nil
}
