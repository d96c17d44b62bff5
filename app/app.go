package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lmittmann/tint"

	"github.com/shopkitapp/shopkit/internal/cache"
	"github.com/shopkitapp/shopkit/internal/catalog"
	"github.com/shopkitapp/shopkit/internal/config"
	"github.com/shopkitapp/shopkit/internal/db"
	"github.com/shopkitapp/shopkit/internal/handlers"
	"github.com/shopkitapp/shopkit/internal/logging"
	"github.com/shopkitapp/shopkit/internal/pricing"
	"github.com/shopkitapp/shopkit/internal/services"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Handlers      *handlers.Handlers
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if err := initSentry(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}

	logger := newLogger(cfg)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache provider: %w", err)
	}

	stores, err := newStores(startupCtx, cfg)
	if err != nil {
		closeCacheProvider(logger, cacheProvider)
		return nil, err
	}

	contextService, err := services.NewContextService(
		stores.groups,
		stores.currencies,
		stores.taxes,
		cacheProvider,
		cfg.ContextCacheTTL,
		stores.fallbackGroup,
		stores.baseCurrency,
		logger.With("component", "context_service"),
	)
	if err != nil {
		stores.close()
		closeCacheProvider(logger, cacheProvider)
		return nil, fmt.Errorf("failed to initialize context service: %w", err)
	}

	engine, err := pricing.NewEngine(stores.tiers, stores.discounts, logger.With("component", "pricing_engine"))
	if err != nil {
		stores.close()
		closeCacheProvider(logger, cacheProvider)
		return nil, fmt.Errorf("failed to initialize pricing engine: %w", err)
	}

	quoteService, err := services.NewQuoteService(stores.products, contextService, engine, logger.With("component", "quote_service"))
	if err != nil {
		stores.close()
		closeCacheProvider(logger, cacheProvider)
		return nil, fmt.Errorf("failed to initialize quote service: %w", err)
	}

	h, err := handlers.New(handlers.Dependencies{
		Config:       cfg,
		Store:        stores.pinger,
		QuoteService: quoteService,
		Logger:       logger,
	})
	if err != nil {
		stores.close()
		closeCacheProvider(logger, cacheProvider)
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		DB:            stores.pool,
		CacheProvider: cacheProvider,
		Handlers:      h,
	}, nil
}

// stores bundles the backend-specific data sources behind the interfaces the
// services consume, so postgres and fixture mode wire up identically.
type stores struct {
	pool *pgxpool.Pool

	products   productSource
	groups     customerGroupSource
	currencies currencySource
	taxes      taxRateSource
	tiers      pricing.TierResolver
	discounts  pricing.DiscountResolver
	pinger     handlers.Pinger

	fallbackGroup string
	baseCurrency  string
}

type productSource interface {
	ByNumber(ctx context.Context, number string) (*pricing.Product, error)
}

type customerGroupSource interface {
	ByKey(ctx context.Context, key string) (*pricing.CustomerGroup, error)
}

type currencySource interface {
	ByCode(ctx context.Context, code string) (*pricing.Currency, error)
}

type taxRateSource interface {
	RegionTaxRates(ctx context.Context, groupKey, countryISO, stateCode string) (map[int64]*pricing.Tax, error)
}

func newStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreProvider {
	case "fixture":
		return newFixtureStores(cfg)
	default:
		return newPostgresStores(ctx, cfg)
	}
}

func newPostgresStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	priceStore := db.NewPriceStore(pool)
	countryStore := db.NewCountryStore(pool)

	return &stores{
		pool:          pool,
		products:      db.NewProductStore(pool),
		groups:        db.NewCustomerGroupStore(pool),
		currencies:    db.NewCurrencyStore(pool),
		taxes:         countryStore,
		tiers:         priceStore,
		discounts:     priceStore,
		pinger:        pool,
		fallbackGroup: cfg.FallbackCustomerGroup,
		baseCurrency:  cfg.BaseCurrency,
	}, nil
}

func newFixtureStores(cfg *config.Config) (*stores, error) {
	content, err := os.ReadFile(cfg.FixturePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file %q: %w", cfg.FixturePath, err)
	}

	pricingConfig, err := catalog.NewParser().Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture file %q: %w", cfg.FixturePath, err)
	}
	if err := catalog.NewValidator().Validate(pricingConfig); err != nil {
		return nil, fmt.Errorf("fixture file %q is invalid: %w", cfg.FixturePath, err)
	}

	fixtureStore, err := catalog.NewFixtureStore(pricingConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build fixture store: %w", err)
	}

	return &stores{
		products:      fixtureStore,
		groups:        fixtureStore,
		currencies:    fixtureStore,
		taxes:         fixtureStore,
		tiers:         fixtureStore,
		discounts:     fixtureStore,
		fallbackGroup: fixtureStore.FallbackCustomerGroup(),
		baseCurrency:  fixtureStore.BaseCurrency(),
	}, nil
}

func (s *stores) close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	sentry.Flush(2 * time.Second)
}

func initSentry(cfg *config.Config) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		EnableLogs:       true,
	})
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var base slog.Handler
	format := strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	switch format {
	case "json":
		base = slog.NewJSONHandler(os.Stdout, opts)
	default:
		base = tint.NewHandler(os.Stdout, &tint.Options{
			Level: cfg.LogLevel,
		})
	}

	if cfg.SentryDSN == "" {
		return slog.New(base)
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	return slog.New(logging.MultiHandler(base, sentryHandler))
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
