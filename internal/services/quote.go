package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"

	"github.com/shopkitapp/shopkit/internal/observability"
	"github.com/shopkitapp/shopkit/internal/pricing"
)

// ErrNoPrices means the product exists but has no price record for either
// the shopper's customer group or the fallback group.
var ErrNoPrices = errors.New("product has no prices")

type productSource interface {
	ByNumber(ctx context.Context, number string) (*pricing.Product, error)
}

type contextBuilder interface {
	Build(ctx context.Context, input ContextInput) (*pricing.Context, error)
}

// QuoteService prices a single product for a shopper: it loads the product
// projection, builds the pricing context, and runs the engine over it.
type QuoteService struct {
	products productSource
	contexts contextBuilder
	engine   *pricing.Engine
	logger   *slog.Logger
}

func NewQuoteService(products productSource, contexts contextBuilder, engine *pricing.Engine, logger *slog.Logger) (*QuoteService, error) {
	if products == nil {
		return nil, errors.New("quote service requires a product source")
	}
	if contexts == nil {
		return nil, errors.New("quote service requires a context builder")
	}
	if engine == nil {
		return nil, errors.New("quote service requires a pricing engine")
	}

	return &QuoteService{
		products: products,
		contexts: contexts,
		engine:   engine,
		logger:   logger,
	}, nil
}

// QuoteInput identifies the variant to price and the shopper state to price
// it under.
type QuoteInput struct {
	Number  string
	Context ContextInput
}

// Quote is the priced result for one variant. All amounts are decimal
// strings in the requested currency, gross or net per the customer group's
// display policy.
type Quote struct {
	ProductNumber string       `json:"product_number"`
	CustomerGroup string       `json:"customer_group"`
	Currency      string       `json:"currency"`
	DisplayGross  bool         `json:"display_gross"`
	TaxRate       string       `json:"tax_rate,omitempty"`
	Prices        []QuotePrice `json:"prices"`
	CheapestPrice *QuotePrice  `json:"cheapest_price,omitempty"`
}

// QuotePrice is one calculated quantity tier.
type QuotePrice struct {
	FromQuantity    int64      `json:"from_quantity"`
	ToQuantity      int64      `json:"to_quantity,omitempty"`
	Amount          string     `json:"amount"`
	PseudoAmount    string     `json:"pseudo_amount,omitempty"`
	ReferenceAmount string     `json:"reference_amount,omitempty"`
	Unit            *QuoteUnit `json:"unit,omitempty"`
}

// QuoteUnit describes the purchase unit a reference amount relates to.
type QuoteUnit struct {
	Name          string `json:"name"`
	PackUnit      string `json:"pack_unit,omitempty"`
	PurchaseUnit  string `json:"purchase_unit,omitempty"`
	ReferenceUnit string `json:"reference_unit,omitempty"`
}

// GetQuote prices one variant. Unknown products, groups, and currencies
// surface as pricing.ErrNotFound; products without any price record for the
// shopper's group or the fallback group surface as ErrNoPrices.
func (s *QuoteService) GetQuote(ctx context.Context, input QuoteInput) (*Quote, error) {
	span := sentry.StartSpan(
		ctx,
		"service.quote.get",
		sentry.WithOpName("service.quote"),
		sentry.WithDescription("GetQuote"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.Count("quote.requested", 1, sentry.WithAttributes(
		attribute.String("customer_group", input.Context.CustomerGroupKey),
		attribute.String("currency", input.Context.CurrencyCode),
	))

	product, err := s.products.ByNumber(ctx, input.Number)
	if err != nil {
		if errors.Is(err, pricing.ErrNotFound) {
			meter.Count("quote.failed", 1, sentry.WithAttributes(
				attribute.String("reason", "unknown_product"),
			))
			return nil, err
		}
		return nil, fmt.Errorf("failed to load product %q: %w", input.Number, err)
	}

	pctx, err := s.contexts.Build(ctx, input.Context)
	if err != nil {
		if errors.Is(err, pricing.ErrNotFound) {
			meter.Count("quote.failed", 1, sentry.WithAttributes(
				attribute.String("reason", "unknown_context"),
			))
		}
		return nil, err
	}

	product.Prices, err = s.engine.ResolveProductPrices(ctx, product, pctx)
	if err != nil {
		return nil, err
	}
	product.CheapestPrice, err = s.engine.ResolveCheapestPrice(ctx, product, pctx)
	if err != nil {
		return nil, err
	}

	if len(product.Prices) == 0 && product.CheapestPrice == nil {
		meter.Count("quote.failed", 1, sentry.WithAttributes(
			attribute.String("reason", "no_prices"),
		))
		return nil, fmt.Errorf("product %q: %w", input.Number, ErrNoPrices)
	}

	s.engine.CalculateProduct(product, pctx)

	meter.Count("quote.calculated", 1)

	return buildQuote(product, pctx), nil
}

func buildQuote(product *pricing.Product, pctx *pricing.Context) *Quote {
	quote := &Quote{
		ProductNumber: product.Number,
		CustomerGroup: pctx.CurrentCustomerGroup.Key,
		Currency:      pctx.Currency.Code,
		DisplayGross:  pctx.CurrentCustomerGroup.DisplayGross,
	}
	if tax := pctx.TaxRule(product.TaxID); tax != nil {
		quote.TaxRate = tax.Rate.String()
	}

	for _, price := range product.Prices {
		quote.Prices = append(quote.Prices, buildQuotePrice(price))
	}
	if product.CheapestPrice != nil {
		cheapest := buildQuotePrice(product.CheapestPrice)
		quote.CheapestPrice = &cheapest
	}

	return quote
}

func buildQuotePrice(price *pricing.Price) QuotePrice {
	quotePrice := QuotePrice{
		FromQuantity: price.FromQuantity,
		ToQuantity:   price.ToQuantity,
		Amount:       price.CalculatedAmount.String(),
	}
	if price.CalculatedPseudoAmount.Valid {
		quotePrice.PseudoAmount = price.CalculatedPseudoAmount.Decimal.String()
	}
	if price.CalculatedReferenceAmount.Valid {
		quotePrice.ReferenceAmount = price.CalculatedReferenceAmount.Decimal.String()
	}
	if price.Unit != nil {
		quotePrice.Unit = &QuoteUnit{
			Name:          price.Unit.Name,
			PackUnit:      price.Unit.PackUnit,
			PurchaseUnit:  price.Unit.PurchaseUnit.String(),
			ReferenceUnit: price.Unit.ReferenceUnit.String(),
		}
	}
	return quotePrice
}
