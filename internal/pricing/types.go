package pricing

// Package pricing turns a product's stored price records into the final
// prices a shopper sees for a given customer group, currency, and tax region.

import (
	"github.com/shopspring/decimal"
)

// ProductState marks a completed computation step on a product projection.
type ProductState string

// StatePriceCalculated is set once CalculateProduct has run, so callers can
// check whether the calculated price fields are populated.
const StatePriceCalculated ProductState = "price_calculated"

// CustomerGroup carries the discount and display policy of a shopper group.
type CustomerGroup struct {
	ID                 int64           `json:"id"`
	Key                string          `json:"key"`
	Name               string          `json:"name"`
	UseDiscount        bool            `json:"use_discount"`
	PercentageDiscount decimal.Decimal `json:"percentage_discount"`
	DisplayGross       bool            `json:"display_gross"`
	MinimumOrderValue  decimal.Decimal `json:"minimum_order_value"`
}

// Tax is a resolved tax rate for one tax definition, already narrowed to the
// shopper's customer group and region.
type Tax struct {
	ID   int64           `json:"id"`
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

// Currency holds the multiplicative conversion factor relative to the shop's
// base currency. The base currency has a factor of 1.
type Currency struct {
	ID     int64           `json:"id"`
	Code   string          `json:"code"`
	Symbol string          `json:"symbol"`
	Factor decimal.Decimal `json:"factor"`
}

// Unit describes the purchase unit of a variant, used for the
// price-per-reference-unit computation (e.g. 0.5 kg bag, reference 1 kg).
type Unit struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	PackUnit      string          `json:"pack_unit"`
	PurchaseUnit  decimal.Decimal `json:"purchase_unit"`
	ReferenceUnit decimal.Decimal `json:"reference_unit"`
	MinPurchase   int64           `json:"min_purchase"`
}

// Price is one stored price record: either a quantity tier of a variant or
// the standalone cheapest price of a product. The Calculated* fields stay
// zero-valued until the engine has processed the owning product, and are only
// meaningful for the Context they were computed under.
type Price struct {
	VariantID    int64
	FromQuantity int64
	// ToQuantity is the upper tier bound; 0 means open-ended.
	ToQuantity    int64
	Amount        decimal.Decimal
	PseudoAmount  decimal.NullDecimal
	Unit          *Unit
	CustomerGroup *CustomerGroup

	CalculatedAmount          decimal.Decimal
	CalculatedPseudoAmount    decimal.NullDecimal
	CalculatedReferenceAmount decimal.NullDecimal
}

// Product is the minimal projection the engine operates on. It is owned by a
// single request and mutated in place; it is never shared across requests.
type Product struct {
	ID        int64
	VariantID int64
	Number    string
	TaxID     int64
	// PriceGroupID selects the price-group discount configuration; 0 means
	// the product belongs to no price group.
	PriceGroupID int64
	Unit         *Unit

	Prices        []*Price
	CheapestPrice *Price

	states map[ProductState]struct{}
}

// AddState marks a computation step as done.
func (p *Product) AddState(state ProductState) {
	if p.states == nil {
		p.states = make(map[ProductState]struct{})
	}
	p.states[state] = struct{}{}
}

// HasState reports whether a computation step has run.
func (p *Product) HasState(state ProductState) bool {
	_, ok := p.states[state]
	return ok
}
