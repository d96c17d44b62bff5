package pricing

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// TierResolver supplies the stored price records for a product. Tier prices
// are scoped to the product's variant; the cheapest price is selected across
// all variants of the base product and carries the unit of whichever variant
// it came from.
type TierResolver interface {
	TierPrices(ctx context.Context, product *Product, group *CustomerGroup) ([]*Price, error)
	CheapestPrice(ctx context.Context, product *Product, group *CustomerGroup) (*Price, error)
}

// DiscountResolver returns the best percentage discount configured for a
// price group at or below the given purchase quantity. Absent or invalid
// configuration is reported as zero, never as an error.
type DiscountResolver interface {
	PriceGroupDiscount(ctx context.Context, priceGroupID int64, group *CustomerGroup, minPurchase int64) (decimal.Decimal, error)
}

// Engine orchestrates tier resolution, customer group fallback, price-group
// discounts, and the per-price currency/tax arithmetic. It is stateless; all
// mutable state lives on the Product owned by the calling request.
type Engine struct {
	tiers     TierResolver
	discounts DiscountResolver
	logger    *slog.Logger
}

func NewEngine(tiers TierResolver, discounts DiscountResolver, logger *slog.Logger) (*Engine, error) {
	if tiers == nil {
		return nil, fmt.Errorf("pricing engine: tier resolver is required")
	}
	if discounts == nil {
		return nil, fmt.Errorf("pricing engine: discount resolver is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Engine{
		tiers:     tiers,
		discounts: discounts,
		logger:    logger,
	}, nil
}

// ResolveProductPrices loads the quantity-scaled tier prices for the
// shopper's customer group, retrying with the fallback group when the
// shopper's group has no price data. Every returned price is stamped with
// the product's unit and the group the prices were actually selected for.
// An empty result after both attempts means the product has no price; that
// is a valid terminal state, not an error.
//
// Calculated fields are not populated here; that is CalculateProduct's job.
func (e *Engine) ResolveProductPrices(ctx context.Context, product *Product, pctx *Context) ([]*Price, error) {
	group := pctx.CurrentCustomerGroup
	prices, err := e.tiers.TierPrices(ctx, product, group)
	if err != nil {
		return nil, fmt.Errorf("failed to load tier prices for group %q: %w", group.Key, err)
	}

	if len(prices) == 0 {
		group = pctx.FallbackCustomerGroup
		prices, err = e.tiers.TierPrices(ctx, product, group)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback tier prices for group %q: %w", group.Key, err)
		}
		if len(prices) > 0 {
			e.logger.Debug("tier prices resolved from fallback customer group",
				"product", product.Number,
				"group", pctx.CurrentCustomerGroup.Key,
				"fallback", group.Key,
			)
		}
	}

	for _, price := range prices {
		price.Unit = product.Unit
		price.CustomerGroup = group
	}

	return prices, nil
}

// ResolveCheapestPrice loads the cheapest price across all variants of the
// base product, with the same customer group fallback as tier resolution,
// and applies the product's price-group discount in place. Returns nil when
// neither group has a price.
//
// The returned price keeps the unit of the variant it was selected from,
// which may differ from the current variant's unit.
func (e *Engine) ResolveCheapestPrice(ctx context.Context, product *Product, pctx *Context) (*Price, error) {
	group := pctx.CurrentCustomerGroup
	cheapest, err := e.tiers.CheapestPrice(ctx, product, group)
	if err != nil {
		return nil, fmt.Errorf("failed to load cheapest price for group %q: %w", group.Key, err)
	}

	if cheapest == nil {
		group = pctx.FallbackCustomerGroup
		cheapest, err = e.tiers.CheapestPrice(ctx, product, group)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback cheapest price for group %q: %w", group.Key, err)
		}
	}
	if cheapest == nil {
		return nil, nil
	}

	if err := e.applyPriceGroupDiscount(ctx, product, cheapest, pctx); err != nil {
		return nil, err
	}

	cheapest.CustomerGroup = group

	return cheapest, nil
}

// applyPriceGroupDiscount reduces the cheapest price by the configured
// price-group discount for the minimum purchase quantity of the price's
// unit. Products without a price group, and prices without a unit, are left
// untouched.
func (e *Engine) applyPriceGroupDiscount(ctx context.Context, product *Product, cheapest *Price, pctx *Context) error {
	if product.PriceGroupID == 0 {
		return nil
	}
	if cheapest.Unit == nil {
		return nil
	}

	minPurchase := cheapest.Unit.MinPurchase
	if minPurchase <= 0 {
		minPurchase = 1
	}

	discount, err := e.discounts.PriceGroupDiscount(ctx, product.PriceGroupID, pctx.CurrentCustomerGroup, minPurchase)
	if err != nil {
		return fmt.Errorf("failed to load price group discount for group %d: %w", product.PriceGroupID, err)
	}

	cheapest.Amount = cheapest.Amount.Div(oneHundred).Mul(oneHundred.Sub(discount))

	return nil
}

// CalculateProduct runs the per-price calculation over every resolved tier
// price and the cheapest price, writing the calculated fields in place and
// marking the product as price-calculated. It requires ResolveProductPrices
// and ResolveCheapestPrice to have populated the product first.
//
// The calculation is pure arithmetic over already-resolved data; calling it
// again with the same Context recomputes identical values.
func (e *Engine) CalculateProduct(product *Product, pctx *Context) {
	tax := pctx.TaxRule(product.TaxID)

	for _, price := range product.Prices {
		e.calculatePrice(price, tax, pctx)
	}

	if product.CheapestPrice != nil {
		e.calculatePrice(product.CheapestPrice, tax, pctx)
	}

	product.AddState(StatePriceCalculated)
}

// calculatePrice populates the calculated fields of a single price record.
// The pseudo amount runs through the same arithmetic independently, and the
// reference price is derived from the final calculated amount afterwards.
func (e *Engine) calculatePrice(price *Price, tax *Tax, pctx *Context) {
	price.CalculatedAmount = e.calculateAmount(price.Amount, tax, pctx)

	if price.PseudoAmount.Valid {
		price.CalculatedPseudoAmount = decimal.NewNullDecimal(
			e.calculateAmount(price.PseudoAmount.Decimal, tax, pctx),
		)
	}

	if price.Unit != nil && price.Unit.PurchaseUnit.IsPositive() {
		price.CalculatedReferenceAmount = decimal.NewNullDecimal(
			price.CalculatedAmount.Div(price.Unit.PurchaseUnit).Mul(price.Unit.ReferenceUnit),
		)
	}
}

// calculateAmount applies, in this exact order: the basket discount of the
// shopper's customer group, the currency conversion factor, and the gross
// tax surcharge. The order changes the numeric result and must not be
// rearranged.
//
// The discount and gross/net policy always come from the current context
// group, never from the group stored on the price: a price sourced from the
// fallback group still gets the shopper's own discount and tax treatment.
func (e *Engine) calculateAmount(amount decimal.Decimal, tax *Tax, pctx *Context) decimal.Decimal {
	group := pctx.CurrentCustomerGroup

	if group.UseDiscount && !group.PercentageDiscount.IsZero() {
		amount = amount.Sub(amount.Div(oneHundred).Mul(group.PercentageDiscount))
	}

	amount = amount.Mul(pctx.Currency.Factor)

	if !group.DisplayGross {
		return amount
	}
	if tax == nil {
		return amount
	}

	return amount.Mul(oneHundred.Add(tax.Rate)).Div(oneHundred)
}
