package pricing

// Context is the shopper state one request is priced under: the shopper's
// own customer group, the shop's fallback group, the active currency, and
// the tax rates already resolved for the shopper's region.
//
// A Context is read-only to the engine and must be passed explicitly into
// every call; prices calculated under one Context must be recomputed, never
// reused, when the Context changes.
type Context struct {
	CurrentCustomerGroup  *CustomerGroup
	FallbackCustomerGroup *CustomerGroup
	Currency              *Currency

	taxRules map[int64]*Tax
}

// NewContext builds a Context from fully resolved collaborator data.
func NewContext(current, fallback *CustomerGroup, currency *Currency, taxRules map[int64]*Tax) *Context {
	if taxRules == nil {
		taxRules = make(map[int64]*Tax)
	}
	return &Context{
		CurrentCustomerGroup:  current,
		FallbackCustomerGroup: fallback,
		Currency:              currency,
		taxRules:              taxRules,
	}
}

// TaxRule returns the resolved tax for a tax definition id, or nil when no
// rate is known for it.
func (c *Context) TaxRule(taxID int64) *Tax {
	return c.taxRules[taxID]
}
