package catalog

// Package catalog provides a YAML-defined pricing dataset used in place of
// the Postgres stores for development and tests. Monetary values are kept
// as strings in the YAML and parsed into decimals when the fixture store is
// built.

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

type PricingConfig struct {
	Shop           ShopConfig            `yaml:"shop"`
	CustomerGroups []CustomerGroupConfig `yaml:"customer_groups"`
	Currencies     []CurrencyConfig      `yaml:"currencies"`
	Taxes          []TaxConfig           `yaml:"taxes"`
	Units          []UnitConfig          `yaml:"units"`
	Countries      []CountryConfig       `yaml:"countries"`
	PriceGroups    []PriceGroupConfig    `yaml:"price_groups"`
	Products       []ProductConfig       `yaml:"products"`
}

type ShopConfig struct {
	Name                  string `yaml:"name"`
	FallbackCustomerGroup string `yaml:"fallback_customer_group"`
	BaseCurrency          string `yaml:"base_currency"`
}

type CustomerGroupConfig struct {
	Key               string `yaml:"key"`
	Name              string `yaml:"name"`
	UseDiscount       bool   `yaml:"use_discount"`
	Discount          string `yaml:"discount"`
	DisplayGross      bool   `yaml:"display_gross"`
	MinimumOrderValue string `yaml:"minimum_order_value"`
}

type CurrencyConfig struct {
	Code   string `yaml:"code"`
	Symbol string `yaml:"symbol"`
	Factor string `yaml:"factor"`
}

type TaxConfig struct {
	ID    int64           `yaml:"id"`
	Name  string          `yaml:"name"`
	Rate  string          `yaml:"rate"`
	Rules []TaxRuleConfig `yaml:"rules"`
}

// TaxRuleConfig overrides a tax rate for a customer group and region. An
// empty country applies to every region; a state narrows a country rule.
type TaxRuleConfig struct {
	CustomerGroup string `yaml:"customer_group"`
	Country       string `yaml:"country"`
	State         string `yaml:"state"`
	Rate          string `yaml:"rate"`
}

type UnitConfig struct {
	ID            int64  `yaml:"id"`
	Name          string `yaml:"name"`
	PackUnit      string `yaml:"pack_unit"`
	PurchaseUnit  string `yaml:"purchase_unit"`
	ReferenceUnit string `yaml:"reference_unit"`
	MinPurchase   int64  `yaml:"min_purchase"`
}

type CountryConfig struct {
	ISO     string        `yaml:"iso"`
	Name    string        `yaml:"name"`
	TaxFree bool          `yaml:"tax_free"`
	States  []StateConfig `yaml:"states"`
}

type StateConfig struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type PriceGroupConfig struct {
	ID        int64                      `yaml:"id"`
	Name      string                     `yaml:"name"`
	Discounts []PriceGroupDiscountConfig `yaml:"discounts"`
}

type PriceGroupDiscountConfig struct {
	CustomerGroup string `yaml:"customer_group"`
	MinQuantity   int64  `yaml:"min_quantity"`
	Discount      string `yaml:"discount"`
}

type ProductConfig struct {
	Number     string          `yaml:"number"`
	Tax        int64           `yaml:"tax"`
	PriceGroup int64           `yaml:"price_group"`
	Variants   []VariantConfig `yaml:"variants"`
}

type VariantConfig struct {
	Number string            `yaml:"number"`
	Unit   int64             `yaml:"unit"`
	Prices []TierPriceConfig `yaml:"prices"`
}

type TierPriceConfig struct {
	CustomerGroup string `yaml:"customer_group"`
	From          int64  `yaml:"from"`
	To            int64  `yaml:"to"`
	Amount        string `yaml:"amount"`
	Pseudo        string `yaml:"pseudo"`
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) Parse(content []byte) (*PricingConfig, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)

	var config PricingConfig
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

func (p *Parser) ParseFromString(content string) (*PricingConfig, error) {
	return p.Parse([]byte(content))
}
