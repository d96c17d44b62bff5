package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopkitapp/shopkit/internal/cache"
	"github.com/shopkitapp/shopkit/internal/pricing"
)

type stubGroupSource struct {
	groups map[string]*pricing.CustomerGroup
	calls  int
}

func (s *stubGroupSource) ByKey(ctx context.Context, key string) (*pricing.CustomerGroup, error) {
	s.calls++
	group, ok := s.groups[key]
	if !ok {
		return nil, pricing.ErrNotFound
	}
	return group, nil
}

type stubCurrencySource struct {
	currencies map[string]*pricing.Currency
	calls      int
}

func (s *stubCurrencySource) ByCode(ctx context.Context, code string) (*pricing.Currency, error) {
	s.calls++
	currency, ok := s.currencies[code]
	if !ok {
		return nil, pricing.ErrNotFound
	}
	return currency, nil
}

type stubTaxSource struct {
	rates map[int64]*pricing.Tax
	calls int
}

func (s *stubTaxSource) RegionTaxRates(ctx context.Context, groupKey, countryISO, stateCode string) (map[int64]*pricing.Tax, error) {
	s.calls++
	return s.rates, nil
}

func newTestSources() (*stubGroupSource, *stubCurrencySource, *stubTaxSource) {
	groups := &stubGroupSource{groups: map[string]*pricing.CustomerGroup{
		"EK": {ID: 1, Key: "EK", Name: "Shopper", DisplayGross: true},
		"H":  {ID: 2, Key: "H", Name: "Merchant"},
	}}
	currencies := &stubCurrencySource{currencies: map[string]*pricing.Currency{
		"EUR": {ID: 1, Code: "EUR", Factor: decimal.NewFromInt(1)},
		"USD": {ID: 2, Code: "USD", Factor: decimal.RequireFromString("1.36")},
	}}
	taxes := &stubTaxSource{rates: map[int64]*pricing.Tax{
		1: {ID: 1, Name: "Standard rate", Rate: decimal.NewFromInt(19)},
	}}
	return groups, currencies, taxes
}

func newTestContextService(t *testing.T, groups *stubGroupSource, currencies *stubCurrencySource, taxes *stubTaxSource) *ContextService {
	t.Helper()
	memory, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to build memory cache: %v", err)
	}
	service, err := NewContextService(groups, currencies, taxes, memory, time.Minute, "EK", "EUR", nil)
	if err != nil {
		t.Fatalf("failed to build context service: %v", err)
	}
	return service
}

func TestContextServiceBuild(t *testing.T) {
	groups, currencies, taxes := newTestSources()
	service := newTestContextService(t, groups, currencies, taxes)

	pctx, err := service.Build(context.Background(), ContextInput{
		CustomerGroupKey: "H",
		CurrencyCode:     "USD",
		CountryISO:       "DE",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pctx.CurrentCustomerGroup.Key != "H" {
		t.Errorf("current group = %q, want H", pctx.CurrentCustomerGroup.Key)
	}
	if pctx.FallbackCustomerGroup.Key != "EK" {
		t.Errorf("fallback group = %q, want EK", pctx.FallbackCustomerGroup.Key)
	}
	if !pctx.Currency.Factor.Equal(decimal.RequireFromString("1.36")) {
		t.Errorf("currency factor = %s, want 1.36", pctx.Currency.Factor)
	}
	tax := pctx.TaxRule(1)
	if tax == nil || !tax.Rate.Equal(decimal.NewFromInt(19)) {
		t.Errorf("tax rule = %+v, want 19%%", tax)
	}
	if pctx.TaxRule(99) != nil {
		t.Error("expected nil for unknown tax id")
	}
}

func TestContextServiceDefaults(t *testing.T) {
	groups, currencies, taxes := newTestSources()
	service := newTestContextService(t, groups, currencies, taxes)

	pctx, err := service.Build(context.Background(), ContextInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pctx.CurrentCustomerGroup.Key != "EK" {
		t.Errorf("current group = %q, want fallback EK", pctx.CurrentCustomerGroup.Key)
	}
	if pctx.CurrentCustomerGroup != pctx.FallbackCustomerGroup {
		t.Error("fallback request should reuse the resolved group")
	}
	if pctx.Currency.Code != "EUR" {
		t.Errorf("currency = %q, want base EUR", pctx.Currency.Code)
	}
	if groups.calls != 1 {
		t.Errorf("group source calls = %d, want 1", groups.calls)
	}
}

func TestContextServiceCachesLookups(t *testing.T) {
	groups, currencies, taxes := newTestSources()
	service := newTestContextService(t, groups, currencies, taxes)

	input := ContextInput{CustomerGroupKey: "H", CurrencyCode: "USD", CountryISO: "DE"}
	for range 3 {
		if _, err := service.Build(context.Background(), input); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Two groups (current + fallback), one currency, one tax region.
	if groups.calls != 2 {
		t.Errorf("group source calls = %d, want 2", groups.calls)
	}
	if currencies.calls != 1 {
		t.Errorf("currency source calls = %d, want 1", currencies.calls)
	}
	if taxes.calls != 1 {
		t.Errorf("tax source calls = %d, want 1", taxes.calls)
	}

	// A different region misses the tax cache but still hits the group cache.
	other := ContextInput{CustomerGroupKey: "H", CurrencyCode: "USD", CountryISO: "US"}
	if _, err := service.Build(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if taxes.calls != 2 {
		t.Errorf("tax source calls = %d, want 2", taxes.calls)
	}
	if groups.calls != 2 {
		t.Errorf("group source calls = %d, want 2", groups.calls)
	}
}

func TestContextServiceUnknownGroup(t *testing.T) {
	groups, currencies, taxes := newTestSources()
	service := newTestContextService(t, groups, currencies, taxes)

	_, err := service.Build(context.Background(), ContextInput{CustomerGroupKey: "B2B"})
	if !errors.Is(err, pricing.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestContextServiceUnknownCurrency(t *testing.T) {
	groups, currencies, taxes := newTestSources()
	service := newTestContextService(t, groups, currencies, taxes)

	_, err := service.Build(context.Background(), ContextInput{CurrencyCode: "GBP"})
	if !errors.Is(err, pricing.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
