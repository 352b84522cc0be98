// Package config loads the runtime configuration from the environment, with
// an optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/fireflysync/fireflysync/internal/services/exchange"
	"github.com/fireflysync/fireflysync/internal/services/explorer"
	"github.com/fireflysync/fireflysync/internal/services/syncer"
)

// Config is the full runtime configuration of the sync daemon.
type Config struct {
	// Exchanges holds credentials per platform, keyed the same way as the
	// exchange registry. A platform without credentials is disabled.
	Exchanges map[string]exchange.Credentials

	FireflyHost      string
	FireflyToken     string
	FireflyVerifyTLS bool

	// SyncStart is where the historical backfill begins.
	SyncStart time.Time
	Interval  syncer.Interval
	// Debug tags every posted transaction with "dev" and enables verbose
	// logging.
	Debug bool

	Explorer   explorer.Config
	JournalDir string
}

// configTmp is the YAML file shape. Every field is optional; environment
// variables override file values.
type configTmp struct {
	BinanceAPIKey      string `yaml:"binance_api_key"`
	BinanceAPISecret   string `yaml:"binance_api_secret"`
	FireflyHost        string `yaml:"firefly_host"`
	FireflyAccessToken string `yaml:"firefly_access_token"`
	FireflyValidateSSL string `yaml:"firefly_validate_ssl"`
	SyncBeginTimestamp string `yaml:"sync_begin_timestamp"`
	SyncTradesInterval string `yaml:"sync_trades_interval"`
	Debug              string `yaml:"debug"`
	BTCBlockbookURL    string `yaml:"btc_blockbook_url"`
	ETHRPCURL          string `yaml:"eth_rpc_url"`
	SyncJournalDir     string `yaml:"sync_journal_dir"`
}

// Get reads configuration from the environment. A .env file in the working
// directory is loaded first when present, and a YAML file named by
// CONFIG_FILE supplies defaults for anything the environment leaves unset.
func Get() (Config, error) {
	_ = godotenv.Load()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyYaml(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Exchanges: map[string]exchange.Credentials{
			"binance": {
				Key:    os.Getenv("BINANCE_API_KEY"),
				Secret: os.Getenv("BINANCE_API_SECRET"),
			},
		},
		FireflyHost:      strings.TrimRight(os.Getenv("FIREFLY_HOST"), "/"),
		FireflyToken:     os.Getenv("FIREFLY_ACCESS_TOKEN"),
		FireflyVerifyTLS: true,
		Explorer: explorer.Config{
			BitcoinBlockbookURL: os.Getenv("BTC_BLOCKBOOK_URL"),
			EthereumRPCURL:      os.Getenv("ETH_RPC_URL"),
		},
		JournalDir: os.Getenv("SYNC_JOURNAL_DIR"),
	}

	if cfg.FireflyHost == "" {
		return Config{}, fmt.Errorf("FIREFLY_HOST is required")
	}
	if cfg.FireflyToken == "" {
		return Config{}, fmt.Errorf("FIREFLY_ACCESS_TOKEN is required")
	}

	if raw := os.Getenv("FIREFLY_VALIDATE_SSL"); raw != "" {
		verify, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid FIREFLY_VALIDATE_SSL value %q", raw)
		}
		cfg.FireflyVerifyTLS = verify
	}

	start := os.Getenv("SYNC_BEGIN_TIMESTAMP")
	if start == "" {
		return Config{}, fmt.Errorf("SYNC_BEGIN_TIMESTAMP is required")
	}
	syncStart, err := parseTimestamp(start)
	if err != nil {
		return Config{}, err
	}
	cfg.SyncStart = syncStart

	intervalRaw := os.Getenv("SYNC_TRADES_INTERVAL")
	if intervalRaw == "" {
		intervalRaw = string(syncer.IntervalHourly)
	}
	interval, err := syncer.ParseInterval(intervalRaw)
	if err != nil {
		return Config{}, err
	}
	cfg.Interval = interval

	if raw := os.Getenv("DEBUG"); raw != "" {
		debug, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEBUG value %q", raw)
		}
		cfg.Debug = debug
	}

	return cfg, nil
}

// applyYaml loads file values into the environment without clobbering
// variables the operator set explicitly.
func applyYaml(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(raw, &tmp); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	defaults := map[string]string{
		"BINANCE_API_KEY":      tmp.BinanceAPIKey,
		"BINANCE_API_SECRET":   tmp.BinanceAPISecret,
		"FIREFLY_HOST":         tmp.FireflyHost,
		"FIREFLY_ACCESS_TOKEN": tmp.FireflyAccessToken,
		"FIREFLY_VALIDATE_SSL": tmp.FireflyValidateSSL,
		"SYNC_BEGIN_TIMESTAMP": tmp.SyncBeginTimestamp,
		"SYNC_TRADES_INTERVAL": tmp.SyncTradesInterval,
		"DEBUG":                tmp.Debug,
		"BTC_BLOCKBOOK_URL":    tmp.BTCBlockbookURL,
		"ETH_RPC_URL":          tmp.ETHRPCURL,
		"SYNC_JOURNAL_DIR":     tmp.SyncJournalDir,
	}
	for key, value := range defaults {
		if value != "" && os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseTimestamp accepts an ISO-8601 timestamp, with or without a time
// component.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid SYNC_BEGIN_TIMESTAMP value %q, expected ISO-8601", value)
}
