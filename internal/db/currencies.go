package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// CurrencyStore loads shop currencies and their conversion factors.
type CurrencyStore struct {
	pool *pgxpool.Pool
}

func NewCurrencyStore(pool *pgxpool.Pool) *CurrencyStore {
	return &CurrencyStore{pool: pool}
}

const currencyByCodeQuery = `
SELECT c.id,
       c.code,
       c.symbol,
       c.factor::text
FROM currencies c
WHERE c.code = $1`

// ByCode returns the currency for an ISO code (e.g. "EUR").
func (s *CurrencyStore) ByCode(ctx context.Context, code string) (*pricing.Currency, error) {
	var (
		currency pricing.Currency
		factor   string
	)
	err := s.pool.QueryRow(ctx, currencyByCodeQuery, code).Scan(
		&currency.ID, &currency.Code, &currency.Symbol, &factor,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to query currency %q", code)
	}

	if currency.Factor, err = decimalFromText(factor); err != nil {
		return nil, err
	}

	return &currency, nil
}
