package pricing

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

type stubTierResolver struct {
	tiers    map[string][]*Price
	cheapest map[string]*Price
	calls    []string
}

func (s *stubTierResolver) TierPrices(ctx context.Context, product *Product, group *CustomerGroup) ([]*Price, error) {
	s.calls = append(s.calls, "tiers:"+group.Key)
	return s.tiers[group.Key], nil
}

func (s *stubTierResolver) CheapestPrice(ctx context.Context, product *Product, group *CustomerGroup) (*Price, error) {
	s.calls = append(s.calls, "cheapest:"+group.Key)
	return s.cheapest[group.Key], nil
}

type stubDiscountResolver struct {
	discount    decimal.Decimal
	minPurchase int64
	called      bool
}

func (s *stubDiscountResolver) PriceGroupDiscount(ctx context.Context, priceGroupID int64, group *CustomerGroup, minPurchase int64) (decimal.Decimal, error) {
	s.called = true
	s.minPurchase = minPurchase
	return s.discount, nil
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func shopperGroup() *CustomerGroup {
	return &CustomerGroup{
		ID:                 1,
		Key:                "EK",
		UseDiscount:        true,
		PercentageDiscount: dec("10"),
		DisplayGross:       true,
	}
}

func fallbackGroup() *CustomerGroup {
	return &CustomerGroup{ID: 2, Key: "H", DisplayGross: true}
}

func testContext(current *CustomerGroup, factor string, taxRate string) *Context {
	return NewContext(
		current,
		fallbackGroup(),
		&Currency{ID: 1, Code: "EUR", Factor: dec(factor)},
		map[int64]*Tax{1: {ID: 1, Name: "19%", Rate: dec(taxRate)}},
	)
}

func newTestEngine(t *testing.T, tiers TierResolver, discounts DiscountResolver) *Engine {
	t.Helper()
	engine, err := NewEngine(tiers, discounts, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return engine
}

func TestResolveProductPrices_FallbackGroup(t *testing.T) {
	fallbackTiers := []*Price{
		{VariantID: 10, FromQuantity: 1, Amount: dec("100")},
		{VariantID: 10, FromQuantity: 5, Amount: dec("90")},
	}
	resolver := &stubTierResolver{
		tiers: map[string][]*Price{"H": fallbackTiers},
	}
	engine := newTestEngine(t, resolver, &stubDiscountResolver{})

	unit := &Unit{ID: 3, PurchaseUnit: dec("1"), ReferenceUnit: dec("1")}
	product := &Product{ID: 1, VariantID: 10, Number: "SW2000", TaxID: 1, Unit: unit}
	pctx := testContext(shopperGroup(), "1", "19")

	prices, err := engine.ResolveProductPrices(context.Background(), product, pctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("expected 2 fallback tiers, got %d", len(prices))
	}
	for i, price := range prices {
		if price.CustomerGroup == nil || price.CustomerGroup.Key != "H" {
			t.Errorf("tier %d: expected fallback customer group, got %+v", i, price.CustomerGroup)
		}
		if price.Unit != unit {
			t.Errorf("tier %d: expected product unit to be attached", i)
		}
		if !price.CalculatedAmount.IsZero() {
			t.Errorf("tier %d: calculated amount must stay unset during resolution", i)
		}
	}

	want := []string{"tiers:EK", "tiers:H"}
	if len(resolver.calls) != len(want) || resolver.calls[0] != want[0] || resolver.calls[1] != want[1] {
		t.Errorf("expected resolution order %v, got %v", want, resolver.calls)
	}
}

func TestResolveProductPrices_NoPricesIsNotAnError(t *testing.T) {
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})
	product := &Product{ID: 1, VariantID: 10, TaxID: 1}

	prices, err := engine.ResolveProductPrices(context.Background(), product, testContext(shopperGroup(), "1", "19"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected no prices, got %d", len(prices))
	}
}

func TestCalculateProduct_DiscountCurrencyTaxOrder(t *testing.T) {
	// ((100 - 10%) * 2) * 1.19 = 214.2
	product := &Product{
		ID: 1, VariantID: 10, TaxID: 1,
		Prices: []*Price{{Amount: dec("100")}},
	}
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})
	pctx := testContext(shopperGroup(), "2", "19")

	engine.CalculateProduct(product, pctx)

	got := product.Prices[0].CalculatedAmount
	if !got.Equal(dec("214.2")) {
		t.Errorf("expected calculated amount 214.2, got %s", got)
	}
	if !product.HasState(StatePriceCalculated) {
		t.Error("expected price_calculated state after calculation")
	}
}

func TestCalculateProduct_NetDisplaySkipsTax(t *testing.T) {
	group := shopperGroup()
	group.DisplayGross = false
	product := &Product{
		ID: 1, VariantID: 10, TaxID: 1,
		Prices: []*Price{{Amount: dec("100")}},
	}
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})

	engine.CalculateProduct(product, testContext(group, "2", "19"))

	got := product.Prices[0].CalculatedAmount
	if !got.Equal(dec("180")) {
		t.Errorf("expected net amount 180, got %s", got)
	}
}

func TestCalculateProduct_UsesContextGroupNotPriceGroup(t *testing.T) {
	// The price carries the fallback group, but the shopper's own group
	// policy drives discount and gross calculation.
	price := &Price{Amount: dec("100"), CustomerGroup: fallbackGroup()}
	product := &Product{ID: 1, VariantID: 10, TaxID: 1, Prices: []*Price{price}}
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})

	engine.CalculateProduct(product, testContext(shopperGroup(), "1", "19"))

	if !price.CalculatedAmount.Equal(dec("107.1")) {
		t.Errorf("expected 107.1 (shopper discount and tax), got %s", price.CalculatedAmount)
	}
}

func TestCalculateProduct_PseudoAmountIndependent(t *testing.T) {
	price := &Price{
		Amount:       decimal.Zero,
		PseudoAmount: decimal.NewNullDecimal(dec("100")),
	}
	product := &Product{ID: 1, VariantID: 10, TaxID: 1, Prices: []*Price{price}}
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})

	engine.CalculateProduct(product, testContext(shopperGroup(), "2", "19"))

	if !price.CalculatedPseudoAmount.Valid {
		t.Fatal("expected calculated pseudo amount to be set")
	}
	if !price.CalculatedPseudoAmount.Decimal.Equal(dec("214.2")) {
		t.Errorf("expected pseudo amount 214.2, got %s", price.CalculatedPseudoAmount.Decimal)
	}
	if !price.CalculatedAmount.IsZero() {
		t.Errorf("expected zero calculated amount, got %s", price.CalculatedAmount)
	}
}

func TestCalculateProduct_ReferencePrice(t *testing.T) {
	tests := []struct {
		name      string
		unit      *Unit
		wantSet   bool
		wantValue string
	}{
		{
			name:      "half reference unit",
			unit:      &Unit{PurchaseUnit: dec("2"), ReferenceUnit: dec("1")},
			wantSet:   true,
			wantValue: "4.995",
		},
		{
			name:    "zero purchase unit skips reference price",
			unit:    &Unit{PurchaseUnit: decimal.Zero, ReferenceUnit: dec("1")},
			wantSet: false,
		},
		{
			name:    "no unit skips reference price",
			unit:    nil,
			wantSet: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := &CustomerGroup{ID: 1, Key: "EK", DisplayGross: false}
			price := &Price{Amount: dec("9.99"), Unit: tt.unit}
			product := &Product{ID: 1, VariantID: 10, TaxID: 1, Prices: []*Price{price}}
			engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})

			engine.CalculateProduct(product, testContext(group, "1", "19"))

			if price.CalculatedReferenceAmount.Valid != tt.wantSet {
				t.Fatalf("expected reference amount set=%v, got %v", tt.wantSet, price.CalculatedReferenceAmount.Valid)
			}
			if tt.wantSet && !price.CalculatedReferenceAmount.Decimal.Equal(dec(tt.wantValue)) {
				t.Errorf("expected reference amount %s, got %s", tt.wantValue, price.CalculatedReferenceAmount.Decimal)
			}
		})
	}
}

func TestCalculateProduct_Idempotent(t *testing.T) {
	price := &Price{
		Amount:       dec("100"),
		PseudoAmount: decimal.NewNullDecimal(dec("120")),
		Unit:         &Unit{PurchaseUnit: dec("2"), ReferenceUnit: dec("1")},
	}
	product := &Product{ID: 1, VariantID: 10, TaxID: 1, Prices: []*Price{price}}
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})
	pctx := testContext(shopperGroup(), "2", "19")

	engine.CalculateProduct(product, pctx)
	first := price.CalculatedAmount
	firstPseudo := price.CalculatedPseudoAmount.Decimal
	firstReference := price.CalculatedReferenceAmount.Decimal

	engine.CalculateProduct(product, pctx)

	if !price.CalculatedAmount.Equal(first) {
		t.Errorf("calculated amount changed on recalculation: %s != %s", price.CalculatedAmount, first)
	}
	if !price.CalculatedPseudoAmount.Decimal.Equal(firstPseudo) {
		t.Errorf("pseudo amount changed on recalculation: %s != %s", price.CalculatedPseudoAmount.Decimal, firstPseudo)
	}
	if !price.CalculatedReferenceAmount.Decimal.Equal(firstReference) {
		t.Errorf("reference amount changed on recalculation: %s != %s", price.CalculatedReferenceAmount.Decimal, firstReference)
	}
}

func TestResolveCheapestPrice_FallbackAndGroupStamp(t *testing.T) {
	resolver := &stubTierResolver{
		cheapest: map[string]*Price{"H": {VariantID: 11, Amount: dec("50")}},
	}
	engine := newTestEngine(t, resolver, &stubDiscountResolver{})
	product := &Product{ID: 1, VariantID: 10, TaxID: 1}

	cheapest, err := engine.ResolveCheapestPrice(context.Background(), product, testContext(shopperGroup(), "1", "19"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cheapest == nil {
		t.Fatal("expected a cheapest price from the fallback group")
	}
	if cheapest.CustomerGroup.Key != "H" {
		t.Errorf("expected fallback group on cheapest price, got %q", cheapest.CustomerGroup.Key)
	}
}

func TestResolveCheapestPrice_AbsentIsNotAnError(t *testing.T) {
	engine := newTestEngine(t, &stubTierResolver{}, &stubDiscountResolver{})
	product := &Product{ID: 1, VariantID: 10, TaxID: 1}

	cheapest, err := engine.ResolveCheapestPrice(context.Background(), product, testContext(shopperGroup(), "1", "19"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cheapest != nil {
		t.Fatalf("expected no cheapest price, got %+v", cheapest)
	}
}

func TestResolveCheapestPrice_PriceGroupDiscount(t *testing.T) {
	tests := []struct {
		name       string
		product    *Product
		unit       *Unit
		discount   string
		wantAmount string
		wantCalled bool
		wantMin    int64
	}{
		{
			name:       "discount reduces amount",
			product:    &Product{ID: 1, VariantID: 10, TaxID: 1, PriceGroupID: 7},
			unit:       &Unit{MinPurchase: 5},
			discount:   "25",
			wantAmount: "75",
			wantCalled: true,
			wantMin:    5,
		},
		{
			name:       "zero discount is a no-op",
			product:    &Product{ID: 1, VariantID: 10, TaxID: 1, PriceGroupID: 7},
			unit:       &Unit{MinPurchase: 1},
			discount:   "0",
			wantAmount: "100",
			wantCalled: true,
			wantMin:    1,
		},
		{
			name:       "missing min purchase defaults to one",
			product:    &Product{ID: 1, VariantID: 10, TaxID: 1, PriceGroupID: 7},
			unit:       &Unit{},
			discount:   "0",
			wantAmount: "100",
			wantCalled: true,
			wantMin:    1,
		},
		{
			name:       "no price group skips discounting",
			product:    &Product{ID: 1, VariantID: 10, TaxID: 1},
			unit:       &Unit{MinPurchase: 5},
			discount:   "25",
			wantAmount: "100",
			wantCalled: false,
		},
		{
			name:       "no unit skips discounting",
			product:    &Product{ID: 1, VariantID: 10, TaxID: 1, PriceGroupID: 7},
			unit:       nil,
			discount:   "25",
			wantAmount: "100",
			wantCalled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := &stubTierResolver{
				cheapest: map[string]*Price{"EK": {VariantID: 10, Amount: dec("100"), Unit: tt.unit}},
			}
			discounts := &stubDiscountResolver{discount: dec(tt.discount)}
			engine := newTestEngine(t, resolver, discounts)

			cheapest, err := engine.ResolveCheapestPrice(context.Background(), tt.product, testContext(shopperGroup(), "1", "19"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !cheapest.Amount.Equal(dec(tt.wantAmount)) {
				t.Errorf("expected amount %s, got %s", tt.wantAmount, cheapest.Amount)
			}
			if discounts.called != tt.wantCalled {
				t.Errorf("expected discount resolver called=%v, got %v", tt.wantCalled, discounts.called)
			}
			if tt.wantCalled && discounts.minPurchase != tt.wantMin {
				t.Errorf("expected min purchase %d, got %d", tt.wantMin, discounts.minPurchase)
			}
		})
	}
}
