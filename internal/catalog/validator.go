package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Validate(config *PricingConfig) error {
	groups, err := v.validateCustomerGroups(config.CustomerGroups)
	if err != nil {
		return err
	}

	if err := v.validateShop(&config.Shop, config, groups); err != nil {
		return fmt.Errorf("shop validation failed: %w", err)
	}

	if err := v.validateCurrencies(config.Currencies); err != nil {
		return err
	}

	taxes, err := v.validateTaxes(config.Taxes, groups)
	if err != nil {
		return err
	}

	units, err := v.validateUnits(config.Units)
	if err != nil {
		return err
	}

	if err := v.validateCountries(config.Countries); err != nil {
		return err
	}

	priceGroups, err := v.validatePriceGroups(config.PriceGroups, groups)
	if err != nil {
		return err
	}

	return v.validateProducts(config.Products, groups, taxes, units, priceGroups)
}

func (v *Validator) validateShop(shop *ShopConfig, config *PricingConfig, groups map[string]bool) error {
	fallback := strings.TrimSpace(shop.FallbackCustomerGroup)
	if fallback == "" {
		return fmt.Errorf("fallback customer group is required")
	}
	if !groups[fallback] {
		return fmt.Errorf("fallback customer group %q is not defined", fallback)
	}

	base := strings.TrimSpace(shop.BaseCurrency)
	if base == "" {
		return fmt.Errorf("base currency is required")
	}
	for _, currency := range config.Currencies {
		if currency.Code == base {
			return nil
		}
	}
	return fmt.Errorf("base currency %q is not defined", base)
}

func (v *Validator) validateCustomerGroups(configs []CustomerGroupConfig) (map[string]bool, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one customer group is required")
	}

	keys := make(map[string]bool)
	for i, group := range configs {
		if strings.TrimSpace(group.Key) == "" {
			return nil, fmt.Errorf("customer group %d: key is required", i)
		}
		if keys[group.Key] {
			return nil, fmt.Errorf("duplicate customer group key: %s", group.Key)
		}
		keys[group.Key] = true

		if err := validatePercentage(group.Discount, true); err != nil {
			return nil, fmt.Errorf("customer group %s: discount: %w", group.Key, err)
		}
		if err := validateAmount(group.MinimumOrderValue, true); err != nil {
			return nil, fmt.Errorf("customer group %s: minimum order value: %w", group.Key, err)
		}
	}

	return keys, nil
}

func (v *Validator) validateCurrencies(configs []CurrencyConfig) error {
	if len(configs) == 0 {
		return fmt.Errorf("at least one currency is required")
	}

	codes := make(map[string]bool)
	for i, currency := range configs {
		if strings.TrimSpace(currency.Code) == "" {
			return fmt.Errorf("currency %d: code is required", i)
		}
		if codes[currency.Code] {
			return fmt.Errorf("duplicate currency code: %s", currency.Code)
		}
		codes[currency.Code] = true

		factor, err := decimal.NewFromString(currency.Factor)
		if err != nil {
			return fmt.Errorf("currency %s: factor must be numeric", currency.Code)
		}
		if !factor.IsPositive() {
			return fmt.Errorf("currency %s: factor must be positive", currency.Code)
		}
	}

	return nil
}

func (v *Validator) validateTaxes(configs []TaxConfig, groups map[string]bool) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, tax := range configs {
		if tax.ID <= 0 {
			return nil, fmt.Errorf("tax %q: id must be positive", tax.Name)
		}
		if ids[tax.ID] {
			return nil, fmt.Errorf("duplicate tax id: %d", tax.ID)
		}
		ids[tax.ID] = true

		if err := validatePercentage(tax.Rate, false); err != nil {
			return nil, fmt.Errorf("tax %d: rate: %w", tax.ID, err)
		}

		for i, rule := range tax.Rules {
			if !groups[rule.CustomerGroup] {
				return nil, fmt.Errorf("tax %d rule %d: unknown customer group %q", tax.ID, i, rule.CustomerGroup)
			}
			if rule.State != "" && rule.Country == "" {
				return nil, fmt.Errorf("tax %d rule %d: state requires a country", tax.ID, i)
			}
			if err := validatePercentage(rule.Rate, false); err != nil {
				return nil, fmt.Errorf("tax %d rule %d: rate: %w", tax.ID, i, err)
			}
		}
	}

	return ids, nil
}

func (v *Validator) validateUnits(configs []UnitConfig) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, unit := range configs {
		if unit.ID <= 0 {
			return nil, fmt.Errorf("unit %q: id must be positive", unit.Name)
		}
		if ids[unit.ID] {
			return nil, fmt.Errorf("duplicate unit id: %d", unit.ID)
		}
		ids[unit.ID] = true

		if err := validateAmount(unit.PurchaseUnit, true); err != nil {
			return nil, fmt.Errorf("unit %d: purchase unit: %w", unit.ID, err)
		}
		if err := validateAmount(unit.ReferenceUnit, true); err != nil {
			return nil, fmt.Errorf("unit %d: reference unit: %w", unit.ID, err)
		}
		if unit.MinPurchase < 0 {
			return nil, fmt.Errorf("unit %d: min purchase must be zero or positive", unit.ID)
		}
	}

	return ids, nil
}

func (v *Validator) validateCountries(configs []CountryConfig) error {
	isos := make(map[string]bool)
	for i, country := range configs {
		if strings.TrimSpace(country.ISO) == "" {
			return fmt.Errorf("country %d: iso is required", i)
		}
		if isos[country.ISO] {
			return fmt.Errorf("duplicate country iso: %s", country.ISO)
		}
		isos[country.ISO] = true

		codes := make(map[string]bool)
		for j, state := range country.States {
			if strings.TrimSpace(state.Code) == "" {
				return fmt.Errorf("country %s state %d: code is required", country.ISO, j)
			}
			if codes[state.Code] {
				return fmt.Errorf("country %s: duplicate state code: %s", country.ISO, state.Code)
			}
			codes[state.Code] = true
		}
	}

	return nil
}

func (v *Validator) validatePriceGroups(configs []PriceGroupConfig, groups map[string]bool) (map[int64]bool, error) {
	ids := make(map[int64]bool)
	for _, priceGroup := range configs {
		if priceGroup.ID <= 0 {
			return nil, fmt.Errorf("price group %q: id must be positive", priceGroup.Name)
		}
		if ids[priceGroup.ID] {
			return nil, fmt.Errorf("duplicate price group id: %d", priceGroup.ID)
		}
		ids[priceGroup.ID] = true

		for i, discount := range priceGroup.Discounts {
			if !groups[discount.CustomerGroup] {
				return nil, fmt.Errorf("price group %d discount %d: unknown customer group %q", priceGroup.ID, i, discount.CustomerGroup)
			}
			if discount.MinQuantity < 1 {
				return nil, fmt.Errorf("price group %d discount %d: min quantity must be at least 1", priceGroup.ID, i)
			}
			if err := validatePercentage(discount.Discount, false); err != nil {
				return nil, fmt.Errorf("price group %d discount %d: %w", priceGroup.ID, i, err)
			}
		}
	}

	return ids, nil
}

func (v *Validator) validateProducts(configs []ProductConfig, groups map[string]bool, taxes, units, priceGroups map[int64]bool) error {
	if len(configs) == 0 {
		return fmt.Errorf("at least one product is required")
	}

	numbers := make(map[string]bool)
	for _, product := range configs {
		if strings.TrimSpace(product.Number) == "" {
			return fmt.Errorf("product number is required")
		}
		if numbers[product.Number] {
			return fmt.Errorf("duplicate product number: %s", product.Number)
		}
		numbers[product.Number] = true

		if !taxes[product.Tax] {
			return fmt.Errorf("product %s: unknown tax id %d", product.Number, product.Tax)
		}
		if product.PriceGroup != 0 && !priceGroups[product.PriceGroup] {
			return fmt.Errorf("product %s: unknown price group id %d", product.Number, product.PriceGroup)
		}
		if len(product.Variants) == 0 {
			return fmt.Errorf("product %s: at least one variant is required", product.Number)
		}

		for _, variant := range product.Variants {
			if strings.TrimSpace(variant.Number) == "" {
				return fmt.Errorf("product %s: variant number is required", product.Number)
			}
			if numbers[variant.Number] {
				return fmt.Errorf("duplicate variant number: %s", variant.Number)
			}
			numbers[variant.Number] = true

			if variant.Unit != 0 && !units[variant.Unit] {
				return fmt.Errorf("variant %s: unknown unit id %d", variant.Number, variant.Unit)
			}

			if err := v.validateTierPrices(variant, groups); err != nil {
				return err
			}
		}
	}

	return nil
}

func (v *Validator) validateTierPrices(variant VariantConfig, groups map[string]bool) error {
	lastFrom := make(map[string]int64)
	for i, price := range variant.Prices {
		if !groups[price.CustomerGroup] {
			return fmt.Errorf("variant %s price %d: unknown customer group %q", variant.Number, i, price.CustomerGroup)
		}
		if price.From < 1 {
			return fmt.Errorf("variant %s price %d: from quantity must be at least 1", variant.Number, i)
		}
		if price.To != 0 && price.To < price.From {
			return fmt.Errorf("variant %s price %d: to quantity must not be below from quantity", variant.Number, i)
		}
		if last, ok := lastFrom[price.CustomerGroup]; ok && price.From <= last {
			return fmt.Errorf("variant %s price %d: tiers must ascend by from quantity", variant.Number, i)
		}
		lastFrom[price.CustomerGroup] = price.From

		amount, err := decimal.NewFromString(price.Amount)
		if err != nil {
			return fmt.Errorf("variant %s price %d: amount must be numeric", variant.Number, i)
		}
		if amount.IsNegative() {
			return fmt.Errorf("variant %s price %d: amount must not be negative", variant.Number, i)
		}
		if price.Pseudo != "" {
			if err := validateAmount(price.Pseudo, false); err != nil {
				return fmt.Errorf("variant %s price %d: pseudo: %w", variant.Number, i, err)
			}
		}
	}

	return nil
}

func validatePercentage(value string, optional bool) error {
	if value == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("value is required")
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("value must be numeric")
	}
	if parsed.IsNegative() || parsed.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("value must be between 0 and 100")
	}
	return nil
}

func validateAmount(value string, optional bool) error {
	if value == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("value is required")
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("value must be numeric")
	}
	if parsed.IsNegative() {
		return fmt.Errorf("value must not be negative")
	}
	return nil
}
