package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "CARRY_"

type Config struct {
	App struct {
		Symbols          []string `toml:"symbols" env:"SYMBOLS" envSeparator:","`
		WatchIntervalSec int      `toml:"watch_interval_sec" env:"WATCH_INTERVAL_SEC"`
	} `toml:"app"`

	Trading struct {
		FundingThreshold    float64 `toml:"funding_threshold" env:"FUNDING_THRESHOLD"`
		FundingBasisRatio   float64 `toml:"funding_basis_ratio" env:"FUNDING_BASIS_RATIO"`
		DefaultVolume       float64 `toml:"default_volume" env:"DEFAULT_VOLUME"`
		TradingFee          float64 `toml:"trading_fee" env:"TRADING_FEE"`
		FundingLookback     int     `toml:"funding_lookback" env:"FUNDING_LOOKBACK"`
		FallbackMinNotional float64 `toml:"fallback_min_notional" env:"FALLBACK_MIN_NOTIONAL"`
		DefaultDaysToExpiry int     `toml:"default_days_to_expiry" env:"DEFAULT_DAYS_TO_EXPIRY"`
	} `toml:"trading"`

	Exchange struct {
		Binance struct {
			RestURL           string  `toml:"rest_url" env:"BINANCE_REST_URL"`
			WsURL             string  `toml:"ws_url" env:"BINANCE_WS_URL"`
			RequestsPerSecond float64 `toml:"requests_per_second"`
			Burst             int     `toml:"burst"`
			TimeoutSec        int     `toml:"timeout_sec"`
		} `toml:"binance"`
	} `toml:"exchange"`

	Storage struct {
		Backend string `toml:"backend" env:"STORAGE_BACKEND"` // sqlite | postgres
		SQLite  struct {
			Path string `toml:"path" env:"SQLITE_PATH"`
		} `toml:"sqlite"`
		Postgres struct {
			DSN string `toml:"dsn" env:"POSTGRES_DSN"`
		} `toml:"postgres"`
	} `toml:"storage"`

	Redis struct {
		Enabled       bool   `toml:"enabled" env:"REDIS_ENABLED"`
		Addr          string `toml:"addr" env:"REDIS_ADDR"`
		Password      string `toml:"password" env:"REDIS_PASSWORD"`
		DB            int    `toml:"db" env:"REDIS_DB"`
		Prefix        string `toml:"prefix"`
		SignalStream  string `toml:"signal_stream"`
		SignalChannel string `toml:"signal_channel"`
		AlertStream   string `toml:"alert_stream"`
	} `toml:"redis"`

	Cache struct {
		Backend       string `toml:"backend" env:"CACHE_BACKEND"` // memory | redis
		PriceTTLSec   int    `toml:"price_ttl_sec" env:"CACHE_PRICE_TTL_SEC"`
		FundingTTLSec int    `toml:"funding_ttl_sec"`
		HistoryTTLSec int    `toml:"history_ttl_sec"`
		LotTTLSec     int    `toml:"lot_ttl_sec"`
		QuarterTTLSec int    `toml:"quarter_ttl_sec"`
	} `toml:"cache"`

	Vault struct {
		KeyEnv        string `toml:"key_env"`
		GCPProjectID  string `toml:"gcp_project_id" env:"GCP_PROJECT_ID"`
		GCPSecretName string `toml:"gcp_secret_name" env:"GCP_SECRET_NAME"`
	} `toml:"vault"`

	Log struct {
		Level      string `toml:"level" env:"LOG_LEVEL"`
		File       string `toml:"file" env:"LOG_FILE"`
		MaxSizeMB  int    `toml:"max_size_mb"`
		MaxBackups int    `toml:"max_backups"`
		MaxAgeDays int    `toml:"max_age_days"`
	} `toml:"log"`

	Metrics struct {
		Enabled bool   `toml:"enabled" env:"METRICS_ENABLED"`
		Addr    string `toml:"addr" env:"METRICS_ADDR"`
	} `toml:"metrics"`
}

// Load starts from the built-in defaults, decodes the TOML file over them (skipped when
// path is empty), loads a .env file if present, then applies CARRY_* environment overrides.
// Keys absent from the file keep their defaults; keys set to zero stay zero.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	// .env is optional
	_ = godotenv.Load()

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	cfg.App.WatchIntervalSec = 60

	t := &cfg.Trading
	t.FundingThreshold = 0.0003
	t.FundingBasisRatio = 1.5
	t.DefaultVolume = 100
	t.TradingFee = 0.0004
	t.FundingLookback = 3
	t.FallbackMinNotional = 100
	t.DefaultDaysToExpiry = 90

	b := &cfg.Exchange.Binance
	b.RestURL = "https://fapi.binance.com"
	b.WsURL = "wss://fstream.binance.com/stream"
	b.RequestsPerSecond = 10
	b.Burst = 20
	b.TimeoutSec = 10

	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLite.Path = "data/carry.db"

	cfg.Redis.Addr = "127.0.0.1:6379"
	cfg.Redis.Prefix = "carry"

	c := &cfg.Cache
	c.Backend = "memory"
	c.PriceTTLSec = 30
	c.FundingTTLSec = 60
	c.HistoryTTLSec = 300
	c.LotTTLSec = 300
	c.QuarterTTLSec = 60

	cfg.Vault.KeyEnv = envPrefix + "CRYPTO_KEY"

	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 50
	cfg.Log.MaxBackups = 5
	cfg.Log.MaxAgeDays = 30

	cfg.Metrics.Addr = ":9102"
	return cfg
}

func validate(cfg *Config) error {
	cfg.App.Symbols = normalizeSymbols(cfg.App.Symbols)
	if len(cfg.App.Symbols) == 0 {
		return errors.New("app.symbols is empty")
	}

	if cfg.App.WatchIntervalSec <= 0 {
		return errors.New("app.watch_interval_sec must be positive")
	}

	t := cfg.Trading
	if t.FundingThreshold < 0 || t.FundingBasisRatio < 0 {
		return errors.New("trading.funding_threshold and trading.funding_basis_ratio must not be negative")
	}
	if t.TradingFee < 0 {
		return errors.New("trading.trading_fee must not be negative")
	}
	if t.TradingFee >= 0.01 {
		return fmt.Errorf("trading.trading_fee %.4f looks like a percentage, expected a fraction", t.TradingFee)
	}
	if t.DefaultVolume <= 0 || t.FallbackMinNotional <= 0 {
		return errors.New("trading.default_volume and trading.fallback_min_notional must be positive")
	}
	if t.FundingLookback < 1 || t.FundingLookback > 1000 {
		return fmt.Errorf("trading.funding_lookback %d out of range [1, 1000]", t.FundingLookback)
	}
	if t.DefaultDaysToExpiry <= 0 {
		return errors.New("trading.default_days_to_expiry must be positive")
	}

	b := cfg.Exchange.Binance
	if b.RequestsPerSecond <= 0 || b.Burst <= 0 || b.TimeoutSec <= 0 {
		return errors.New("exchange.binance rate limit and timeout must be positive")
	}

	// zero TTL disables caching of that kind
	c := cfg.Cache
	for _, ttl := range []int{c.PriceTTLSec, c.FundingTTLSec, c.HistoryTTLSec, c.LotTTLSec, c.QuarterTTLSec} {
		if ttl < 0 {
			return errors.New("cache ttl must not be negative")
		}
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
			return errors.New("storage.sqlite.path empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return errors.New("storage.postgres.dsn empty but backend is postgres")
		}
	default:
		return fmt.Errorf("storage.backend %q unknown", cfg.Storage.Backend)
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if !cfg.Redis.Enabled {
			return errors.New("cache.backend is redis but redis.enabled is false")
		}
	default:
		return fmt.Errorf("cache.backend %q unknown", cfg.Cache.Backend)
	}

	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return errors.New("redis.addr empty but enabled")
	}
	if (cfg.Vault.GCPProjectID == "") != (cfg.Vault.GCPSecretName == "") {
		return errors.New("vault.gcp_project_id and vault.gcp_secret_name must be set together")
	}
	return nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
