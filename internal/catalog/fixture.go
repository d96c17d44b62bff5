package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// FixtureStore serves a validated pricing dataset entirely from memory. It
// implements the same lookup and resolver contracts as the Postgres stores,
// so the rest of the service is indifferent to the backing provider.
type FixtureStore struct {
	fallbackGroup string
	baseCurrency  string

	groups     map[string]*pricing.CustomerGroup
	currencies map[string]*pricing.Currency
	units      map[int64]*pricing.Unit
	taxes      []taxFixture
	countries  map[string]countryFixture
	discounts  map[int64][]discountFixture

	variantsByNumber map[string]*variantFixture
	variantsByID     map[int64]*variantFixture
	productsByID     map[int64]*productFixture
}

type taxFixture struct {
	id    int64
	name  string
	rate  decimal.Decimal
	rules []taxRuleFixture
}

type taxRuleFixture struct {
	groupKey string
	country  string
	state    string
	rate     decimal.Decimal
}

type countryFixture struct {
	taxFree bool
	states  map[string]bool
}

type discountFixture struct {
	groupKey    string
	minQuantity int64
	discount    decimal.Decimal
}

type productFixture struct {
	id           int64
	number       string
	taxID        int64
	priceGroupID int64
	variants     []*variantFixture
}

type variantFixture struct {
	id      int64
	number  string
	product *productFixture
	unit    *pricing.Unit
	tiers   map[string][]tierFixture
}

type tierFixture struct {
	from   int64
	to     int64
	amount decimal.Decimal
	pseudo decimal.NullDecimal
}

// NewFixtureStore builds the in-memory dataset from a parsed config. The
// config must have passed Validator.Validate; numeric parse failures here
// indicate an unvalidated config and are reported as errors.
func NewFixtureStore(config *PricingConfig) (*FixtureStore, error) {
	store := &FixtureStore{
		fallbackGroup:    config.Shop.FallbackCustomerGroup,
		baseCurrency:     config.Shop.BaseCurrency,
		groups:           make(map[string]*pricing.CustomerGroup),
		currencies:       make(map[string]*pricing.Currency),
		units:            make(map[int64]*pricing.Unit),
		countries:        make(map[string]countryFixture),
		discounts:        make(map[int64][]discountFixture),
		variantsByNumber: make(map[string]*variantFixture),
		variantsByID:     make(map[int64]*variantFixture),
		productsByID:     make(map[int64]*productFixture),
	}

	for i, group := range config.CustomerGroups {
		discount, err := optionalDecimal(group.Discount)
		if err != nil {
			return nil, fmt.Errorf("customer group %s: %w", group.Key, err)
		}
		minimumOrder, err := optionalDecimal(group.MinimumOrderValue)
		if err != nil {
			return nil, fmt.Errorf("customer group %s: %w", group.Key, err)
		}
		store.groups[group.Key] = &pricing.CustomerGroup{
			ID:                 int64(i + 1),
			Key:                group.Key,
			Name:               group.Name,
			UseDiscount:        group.UseDiscount,
			PercentageDiscount: discount,
			DisplayGross:       group.DisplayGross,
			MinimumOrderValue:  minimumOrder,
		}
	}

	for i, currency := range config.Currencies {
		factor, err := decimal.NewFromString(currency.Factor)
		if err != nil {
			return nil, fmt.Errorf("currency %s: %w", currency.Code, err)
		}
		store.currencies[currency.Code] = &pricing.Currency{
			ID:     int64(i + 1),
			Code:   currency.Code,
			Symbol: currency.Symbol,
			Factor: factor,
		}
	}

	for _, unit := range config.Units {
		purchase, err := optionalDecimal(unit.PurchaseUnit)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", unit.ID, err)
		}
		reference, err := optionalDecimal(unit.ReferenceUnit)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", unit.ID, err)
		}
		store.units[unit.ID] = &pricing.Unit{
			ID:            unit.ID,
			Name:          unit.Name,
			PackUnit:      unit.PackUnit,
			PurchaseUnit:  purchase,
			ReferenceUnit: reference,
			MinPurchase:   unit.MinPurchase,
		}
	}

	if err := store.buildTaxes(config.Taxes); err != nil {
		return nil, err
	}

	for _, country := range config.Countries {
		states := make(map[string]bool)
		for _, state := range country.States {
			states[state.Code] = true
		}
		store.countries[country.ISO] = countryFixture{taxFree: country.TaxFree, states: states}
	}

	for _, priceGroup := range config.PriceGroups {
		for _, entry := range priceGroup.Discounts {
			discount, err := decimal.NewFromString(entry.Discount)
			if err != nil {
				return nil, fmt.Errorf("price group %d: %w", priceGroup.ID, err)
			}
			store.discounts[priceGroup.ID] = append(store.discounts[priceGroup.ID], discountFixture{
				groupKey:    entry.CustomerGroup,
				minQuantity: entry.MinQuantity,
				discount:    discount,
			})
		}
	}

	if err := store.buildProducts(config.Products); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *FixtureStore) buildTaxes(configs []TaxConfig) error {
	for _, tax := range configs {
		rate, err := decimal.NewFromString(tax.Rate)
		if err != nil {
			return fmt.Errorf("tax %d: %w", tax.ID, err)
		}
		fixture := taxFixture{id: tax.ID, name: tax.Name, rate: rate}
		for i, rule := range tax.Rules {
			ruleRate, err := decimal.NewFromString(rule.Rate)
			if err != nil {
				return fmt.Errorf("tax %d rule %d: %w", tax.ID, i, err)
			}
			fixture.rules = append(fixture.rules, taxRuleFixture{
				groupKey: rule.CustomerGroup,
				country:  rule.Country,
				state:    rule.State,
				rate:     ruleRate,
			})
		}
		s.taxes = append(s.taxes, fixture)
	}
	return nil
}

func (s *FixtureStore) buildProducts(configs []ProductConfig) error {
	var variantID int64
	for i, config := range configs {
		product := &productFixture{
			id:           int64(i + 1),
			number:       config.Number,
			taxID:        config.Tax,
			priceGroupID: config.PriceGroup,
		}
		s.productsByID[product.id] = product

		for _, variantConfig := range config.Variants {
			variantID++
			variant := &variantFixture{
				id:      variantID,
				number:  variantConfig.Number,
				product: product,
				unit:    s.units[variantConfig.Unit],
				tiers:   make(map[string][]tierFixture),
			}

			for _, price := range variantConfig.Prices {
				amount, err := decimal.NewFromString(price.Amount)
				if err != nil {
					return fmt.Errorf("variant %s: %w", variant.number, err)
				}
				tier := tierFixture{from: price.From, to: price.To, amount: amount}
				if price.Pseudo != "" {
					pseudo, err := decimal.NewFromString(price.Pseudo)
					if err != nil {
						return fmt.Errorf("variant %s: %w", variant.number, err)
					}
					tier.pseudo = decimal.NewNullDecimal(pseudo)
				}
				variant.tiers[price.CustomerGroup] = append(variant.tiers[price.CustomerGroup], tier)
			}

			product.variants = append(product.variants, variant)
			s.variantsByNumber[variant.number] = variant
			s.variantsByID[variant.id] = variant
		}
	}
	return nil
}

// FallbackCustomerGroup returns the shop-wide fallback group key.
func (s *FixtureStore) FallbackCustomerGroup() string {
	return s.fallbackGroup
}

// BaseCurrency returns the shop's base currency code.
func (s *FixtureStore) BaseCurrency() string {
	return s.baseCurrency
}

// ByNumber returns the product projection for a variant order number.
func (s *FixtureStore) ByNumber(ctx context.Context, number string) (*pricing.Product, error) {
	variant, ok := s.variantsByNumber[number]
	if !ok {
		return nil, pricing.ErrNotFound
	}

	return &pricing.Product{
		ID:           variant.product.id,
		VariantID:    variant.id,
		Number:       variant.number,
		TaxID:        variant.product.taxID,
		PriceGroupID: variant.product.priceGroupID,
		Unit:         variant.unit,
	}, nil
}

// ByKey returns the customer group for a group key.
func (s *FixtureStore) ByKey(ctx context.Context, key string) (*pricing.CustomerGroup, error) {
	group, ok := s.groups[key]
	if !ok {
		return nil, pricing.ErrNotFound
	}
	return group, nil
}

// ByCode returns the currency for an ISO code.
func (s *FixtureStore) ByCode(ctx context.Context, code string) (*pricing.Currency, error) {
	currency, ok := s.currencies[code]
	if !ok {
		return nil, pricing.ErrNotFound
	}
	return currency, nil
}

// TierPrices implements the engine's tier resolution over the fixture data.
// Returned prices are fresh copies; the engine mutates them in place.
func (s *FixtureStore) TierPrices(ctx context.Context, product *pricing.Product, group *pricing.CustomerGroup) ([]*pricing.Price, error) {
	variant, ok := s.variantsByID[product.VariantID]
	if !ok {
		return nil, nil
	}

	var prices []*pricing.Price
	for _, tier := range variant.tiers[group.Key] {
		prices = append(prices, &pricing.Price{
			VariantID:    variant.id,
			FromQuantity: tier.from,
			ToQuantity:   tier.to,
			Amount:       tier.amount,
			PseudoAmount: tier.pseudo,
		})
	}

	return prices, nil
}

// CheapestPrice returns a copy of the lowest tier price across all variants
// of the base product, carrying the owning variant's unit.
func (s *FixtureStore) CheapestPrice(ctx context.Context, product *pricing.Product, group *pricing.CustomerGroup) (*pricing.Price, error) {
	fixture, ok := s.productsByID[product.ID]
	if !ok {
		return nil, nil
	}

	var cheapest *pricing.Price
	for _, variant := range fixture.variants {
		for _, tier := range variant.tiers[group.Key] {
			if cheapest != nil && !tier.amount.LessThan(cheapest.Amount) {
				continue
			}
			cheapest = &pricing.Price{
				VariantID:    variant.id,
				FromQuantity: tier.from,
				ToQuantity:   tier.to,
				Amount:       tier.amount,
				PseudoAmount: tier.pseudo,
				Unit:         variant.unit,
			}
		}
	}

	return cheapest, nil
}

// PriceGroupDiscount returns the best configured discount at or below the
// given purchase quantity, or zero when none applies.
func (s *FixtureStore) PriceGroupDiscount(ctx context.Context, priceGroupID int64, group *pricing.CustomerGroup, minPurchase int64) (decimal.Decimal, error) {
	best := decimal.Zero
	for _, entry := range s.discounts[priceGroupID] {
		if entry.groupKey != group.Key || entry.minQuantity > minPurchase {
			continue
		}
		if entry.discount.GreaterThan(best) {
			best = entry.discount
		}
	}
	return best, nil
}

// RegionTaxRates resolves the effective tax rates for a customer group and
// region, preferring the most specific matching rule (state over country
// over group-wide). Tax-free countries get a zero rate for every tax.
func (s *FixtureStore) RegionTaxRates(ctx context.Context, groupKey, countryISO, stateCode string) (map[int64]*pricing.Tax, error) {
	country, countryKnown := s.countries[countryISO]
	taxFree := countryKnown && country.taxFree

	rates := make(map[int64]*pricing.Tax, len(s.taxes))
	for _, tax := range s.taxes {
		rate := tax.rate
		specificity := -1

		for _, rule := range tax.rules {
			if rule.groupKey != groupKey {
				continue
			}
			score, ok := ruleSpecificity(rule, countryISO, stateCode, countryKnown, country)
			if !ok || score <= specificity {
				continue
			}
			specificity = score
			rate = rule.rate
		}

		if taxFree {
			rate = decimal.Zero
		}
		rates[tax.id] = &pricing.Tax{ID: tax.id, Name: tax.name, Rate: rate}
	}

	return rates, nil
}

func ruleSpecificity(rule taxRuleFixture, countryISO, stateCode string, countryKnown bool, country countryFixture) (int, bool) {
	if rule.country == "" {
		return 0, true
	}
	if rule.country != countryISO || !countryKnown {
		return 0, false
	}
	if rule.state == "" {
		return 1, true
	}
	if rule.state != stateCode || !country.states[rule.state] {
		return 0, false
	}
	return 2, true
}

func optionalDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}
