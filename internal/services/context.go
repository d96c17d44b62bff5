package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopkitapp/shopkit/internal/cache"
	"github.com/shopkitapp/shopkit/internal/logging"
	"github.com/shopkitapp/shopkit/internal/pricing"
)

type customerGroupSource interface {
	ByKey(ctx context.Context, key string) (*pricing.CustomerGroup, error)
}

type currencySource interface {
	ByCode(ctx context.Context, code string) (*pricing.Currency, error)
}

type taxRateSource interface {
	RegionTaxRates(ctx context.Context, groupKey, countryISO, stateCode string) (map[int64]*pricing.Tax, error)
}

// ContextService assembles the pricing context a request is priced under.
// Customer groups, currencies, and region tax rates change rarely, so the
// resolved records are cached as JSON with a configurable TTL.
type ContextService struct {
	groups        customerGroupSource
	currencies    currencySource
	taxes         taxRateSource
	cache         cache.Provider
	ttl           time.Duration
	fallbackGroup string
	baseCurrency  string
	logger        *slog.Logger
}

func NewContextService(groups customerGroupSource, currencies currencySource, taxes taxRateSource, cacheProvider cache.Provider, ttl time.Duration, fallbackGroup, baseCurrency string, logger *slog.Logger) (*ContextService, error) {
	if groups == nil || currencies == nil || taxes == nil {
		return nil, errors.New("context service requires group, currency, and tax sources")
	}
	if cacheProvider == nil {
		return nil, errors.New("context service requires a cache provider")
	}
	if fallbackGroup == "" {
		return nil, errors.New("context service requires a fallback customer group")
	}
	if baseCurrency == "" {
		return nil, errors.New("context service requires a base currency")
	}

	return &ContextService{
		groups:        groups,
		currencies:    currencies,
		taxes:         taxes,
		cache:         cacheProvider,
		ttl:           ttl,
		fallbackGroup: fallbackGroup,
		baseCurrency:  baseCurrency,
		logger:        logger,
	}, nil
}

func (s *ContextService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// ContextInput selects the shopper state to price under. Empty fields fall
// back to the shop defaults.
type ContextInput struct {
	CustomerGroupKey string
	CurrencyCode     string
	CountryISO       string
	StateCode        string
}

// Build resolves the customer groups, currency, and tax rates for the input
// and returns a ready pricing context. Unknown group keys or currency codes
// surface as pricing.ErrNotFound.
func (s *ContextService) Build(ctx context.Context, input ContextInput) (*pricing.Context, error) {
	groupKey := input.CustomerGroupKey
	if groupKey == "" {
		groupKey = s.fallbackGroup
	}
	currencyCode := input.CurrencyCode
	if currencyCode == "" {
		currencyCode = s.baseCurrency
	}

	current, err := s.customerGroup(ctx, groupKey)
	if err != nil {
		return nil, err
	}

	fallback := current
	if groupKey != s.fallbackGroup {
		fallback, err = s.customerGroup(ctx, s.fallbackGroup)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve fallback customer group %q: %w", s.fallbackGroup, err)
		}
	}

	currency, err := s.currency(ctx, currencyCode)
	if err != nil {
		return nil, err
	}

	taxRules, err := s.taxRules(ctx, groupKey, input.CountryISO, input.StateCode)
	if err != nil {
		return nil, err
	}

	return pricing.NewContext(current, fallback, currency, taxRules), nil
}

func (s *ContextService) customerGroup(ctx context.Context, key string) (*pricing.CustomerGroup, error) {
	var group pricing.CustomerGroup
	err := s.cached(ctx, cache.CustomerGroupKey(key), &group, func() (any, error) {
		return s.groups.ByKey(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *ContextService) currency(ctx context.Context, code string) (*pricing.Currency, error) {
	var currency pricing.Currency
	err := s.cached(ctx, cache.CurrencyKey(code), &currency, func() (any, error) {
		return s.currencies.ByCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	return &currency, nil
}

func (s *ContextService) taxRules(ctx context.Context, groupKey, countryISO, stateCode string) (map[int64]*pricing.Tax, error) {
	var rules map[int64]*pricing.Tax
	err := s.cached(ctx, cache.TaxRatesKey(groupKey, countryISO, stateCode), &rules, func() (any, error) {
		return s.taxes.RegionTaxRates(ctx, groupKey, countryISO, stateCode)
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// cached reads target from the cache, falling back to fetch and writing the
// result back. Cache failures only log; the source of truth still answers.
func (s *ContextService) cached(ctx context.Context, key string, target any, fetch func() (any, error)) error {
	logger := s.loggerFromContext(ctx)

	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		if err := json.Unmarshal([]byte(raw), target); err == nil {
			return nil
		}
		logger.Warn("discarding undecodable cache entry", "key", key)
		_ = s.cache.Delete(ctx, key)
	} else if !errors.Is(err, cache.ErrNotFound) {
		logger.Warn("cache read failed", "key", key, "error", err)
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %q: %w", key, err)
	}
	if err := s.cache.Set(ctx, key, string(encoded), s.ttl); err != nil {
		logger.Warn("cache write failed", "key", key, "error", err)
	}

	return json.Unmarshal(encoded, target)
}
