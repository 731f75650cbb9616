package container

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"cashcarry/internal/application/port"
	"cashcarry/internal/application/service"
	"cashcarry/internal/domain/model"
	"cashcarry/internal/infrastructure/cache"
	"cashcarry/internal/infrastructure/config"
	"cashcarry/internal/infrastructure/exchange/binance"
	"cashcarry/internal/infrastructure/metrics"
	"cashcarry/internal/infrastructure/storage/composite"
	pgrepo "cashcarry/internal/infrastructure/storage/postgres"
	redisrepo "cashcarry/internal/infrastructure/storage/redis"
	sqliterepo "cashcarry/internal/infrastructure/storage/sqlite"
	"cashcarry/internal/infrastructure/vault"
	"cashcarry/internal/interfaces/console"
)

// Options process-level knobs that are not part of the config file
type Options struct {
	Out   io.Writer // console signal sink
	Color bool
}

// Container owns every long-lived dependency of the process
type Container struct {
	cfg *config.Config

	storage     port.Storage
	sqliteRepo  *sqliterepo.Repo
	redisClient *redis.Client
	redisRepo   *redisrepo.Repo

	gateway *binance.Gateway
	market  *service.CachedMarketData
	vault   *vault.Vault
	metrics *metrics.Metrics

	signals       *service.SignalService
	positions     *service.PositionService
	opportunities *service.OpportunityService

	closeOnce   sync.Once
	closerChain []func() error
}

// New wires storage, cache, exchange, vault and services in dependency order.
// Anything already opened is closed again when a later step fails.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}
	if err := c.init(ctx, opts); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init(ctx context.Context, opts Options) error {
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("storage init failed: %w", err)
	}
	if c.cfg.Redis.Enabled {
		if err := c.initRedis(ctx); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}

	c.metrics = metrics.New()
	c.initMarket()

	key, err := vault.LoadKey(ctx, vault.KeySource{
		EnvVar:        c.cfg.Vault.KeyEnv,
		GCPProjectID:  c.cfg.Vault.GCPProjectID,
		GCPSecretName: c.cfg.Vault.GCPSecretName,
	})
	if err != nil {
		return fmt.Errorf("vault key: %w", err)
	}
	if c.vault, err = vault.New(c.storage, key); err != nil {
		return fmt.Errorf("vault init failed: %w", err)
	}

	c.initServices(opts)
	return nil
}

// ========== storage ==========

func (c *Container) initStorage() error {
	switch c.cfg.Storage.Backend {
	case "postgres":
		return c.initPostgres()
	default:
		return c.initSQLite()
	}
}

func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo
	c.storage = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")
	return nil
}

func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.storage = repo

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rc := c.cfg.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRepo = redisrepo.New(rdb, rc.Prefix, rc.SignalStream, rc.SignalChannel, rc.AlertStream)

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("redis initialized")
	return nil
}

// ========== market data ==========

func (c *Container) initMarket() {
	b := c.cfg.Exchange.Binance
	c.gateway = binance.NewGateway(binance.Options{
		RestURL:           b.RestURL,
		RequestsPerSecond: b.RequestsPerSecond,
		Burst:             b.Burst,
		Timeout:           time.Duration(b.TimeoutSec) * time.Second,
	})

	var store port.Cache
	if c.cfg.Cache.Backend == "redis" && c.redisClient != nil {
		store = cache.NewRedis(c.redisClient, c.cfg.Redis.Prefix+":cache")
	} else {
		store = cache.NewMemory()
	}
	c.market = service.NewCachedMarketData(c.gateway, store, c.CacheTTL())
}

// CacheTTL per-kind cache lifetimes from the [cache] section
func (c *Container) CacheTTL() service.CacheTTL {
	cc := c.cfg.Cache
	return service.CacheTTL{
		Price:          seconds(cc.PriceTTLSec),
		Funding:        seconds(cc.FundingTTLSec),
		FundingHistory: seconds(cc.HistoryTTLSec),
		LotMetadata:    seconds(cc.LotTTLSec),
		QuarterSymbols: seconds(cc.QuarterTTLSec),
	}
}

// ========== services ==========

func (c *Container) initServices(opts Options) {
	t := c.cfg.Trading

	var signalSinks []port.SignalSink
	if opts.Out != nil {
		signalSinks = append(signalSinks, console.NewSink(opts.Out, opts.Color))
	}
	alertSinks := []port.AlertSink{}
	if a, ok := c.storage.(port.AlertSink); ok {
		alertSinks = append(alertSinks, a)
	}
	if c.sqliteRepo != nil {
		signalSinks = append(signalSinks, c.sqliteRepo)
	}
	if c.redisRepo != nil {
		signalSinks = append(signalSinks, c.redisRepo)
		alertSinks = append(alertSinks, c.redisRepo)
	}

	c.signals = service.NewSignalService(composite.NewSignals(signalSinks...))
	c.opportunities = service.NewOpportunityService(c.market, c.signals, c.metrics, service.OpportunityOptions{
		Thresholds: model.Thresholds{
			FundingThreshold:  t.FundingThreshold,
			FundingBasisRatio: t.FundingBasisRatio,
		},
		FundingLookback:   t.FundingLookback,
		DefaultDaysExpiry: t.DefaultDaysToExpiry,
	})
	c.positions = service.NewPositionService(service.NewLiveGateway(c.gateway, c.market), c.storage, composite.NewAlerts(alertSinks...), c.metrics, service.PositionOptions{
		TradingFee:          t.TradingFee,
		FundingLookback:     t.FundingLookback,
		FallbackMinNotional: decimal.NewFromFloat(t.FallbackMinNotional),
	})
}

// ========== accessors ==========

func (c *Container) Config() *config.Config { return c.cfg }

func (c *Container) Storage() port.Storage { return c.storage }

func (c *Container) SQLiteRepo() *sqliterepo.Repo { return c.sqliteRepo }

func (c *Container) RedisRepo() *redisrepo.Repo { return c.redisRepo }

func (c *Container) MarketData() *service.CachedMarketData { return c.market }

func (c *Container) Vault() *vault.Vault { return c.vault }

func (c *Container) Metrics() *metrics.Metrics { return c.metrics }

func (c *Container) Positions() *service.PositionService { return c.positions }

func (c *Container) Opportunities() *service.OpportunityService { return c.opportunities }

// Alerts persisted alert log of the storage backend
func (c *Container) Alerts() (port.AlertLog, error) {
	l, ok := c.storage.(port.AlertLog)
	if !ok {
		return nil, fmt.Errorf("storage backend %q keeps no alert log", c.cfg.Storage.Backend)
	}
	return l, nil
}

// PriceFeed mark-price stream for the configured exchange
func (c *Container) PriceFeed() port.PriceFeed {
	return binance.NewMarkPriceFeed(c.cfg.Exchange.Binance.WsURL)
}

// Session decrypts the user's credentials; a user without stored keys gets a
// session whose credentials fail Valid().
func (c *Container) Session(ctx context.Context, user string) model.Session {
	return c.vault.Session(ctx, user)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Debug().Msg("container closed")
	})
	return err
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
