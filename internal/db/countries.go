package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// Country is the tax-relevant projection of a delivery country.
type Country struct {
	ID      int64
	AreaID  int64
	Name    string
	ISO     string
	TaxFree bool
}

// State is a country subdivision with its own tax rules.
type State struct {
	ID        int64
	CountryID int64
	Name      string
	Code      string
}

// CountryStore resolves the shopper's tax jurisdiction: country and state
// lookups plus the per-region tax rates. Tax rules can be configured per
// customer group, area, country, and state; the most specific active rule
// wins, falling back to the tax definition's default rate.
type CountryStore struct {
	pool *pgxpool.Pool
}

func NewCountryStore(pool *pgxpool.Pool) *CountryStore {
	return &CountryStore{pool: pool}
}

const countryByISOQuery = `
SELECT c.id,
       COALESCE(c.area_id, 0),
       c.name,
       c.iso,
       c.tax_free
FROM countries c
WHERE c.iso = $1
  AND c.active`

func (s *CountryStore) ByISO(ctx context.Context, iso string) (*Country, error) {
	var country Country
	err := s.pool.QueryRow(ctx, countryByISOQuery, iso).Scan(
		&country.ID, &country.AreaID, &country.Name, &country.ISO, &country.TaxFree,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to query country %q", iso)
	}
	return &country, nil
}

const stateByCodeQuery = `
SELECT s.id,
       s.country_id,
       s.name,
       s.short_code
FROM country_states s
WHERE s.country_id = $1
  AND s.short_code = $2
  AND s.active`

func (s *CountryStore) StateByCode(ctx context.Context, countryID int64, code string) (*State, error) {
	var state State
	err := s.pool.QueryRow(ctx, stateByCodeQuery, countryID, code).Scan(
		&state.ID, &state.CountryID, &state.Name, &state.Code,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to query state %q for country %d", code, countryID)
	}
	return &state, nil
}

const taxRatesQuery = `
SELECT DISTINCT ON (t.id)
       t.id,
       t.name,
       COALESCE(r.rate, t.rate)::text
FROM taxes t
LEFT JOIN tax_rules r
  ON r.tax_id = t.id
 AND r.customer_group_key = $1
 AND (r.area_id IS NULL OR r.area_id = $2)
 AND (r.country_id IS NULL OR r.country_id = $3)
 AND (r.state_id IS NULL OR r.state_id = $4)
 AND r.active
ORDER BY t.id,
         (r.state_id IS NOT NULL) DESC,
         (r.country_id IS NOT NULL) DESC,
         (r.area_id IS NOT NULL) DESC`

// TaxRates returns the effective rate of every tax definition for one
// customer group and region. Pass zero ids for unknown area/country/state;
// only the matching specificity levels are considered.
func (s *CountryStore) TaxRates(ctx context.Context, groupKey string, areaID, countryID, stateID int64) (map[int64]*pricing.Tax, error) {
	rows, err := s.pool.Query(ctx, taxRatesQuery, groupKey, areaID, countryID, stateID)
	if err != nil {
		return nil, notFoundOr(err, "failed to query tax rates for group %q", groupKey)
	}
	defer rows.Close()

	rates := make(map[int64]*pricing.Tax)
	for rows.Next() {
		var (
			tax  pricing.Tax
			rate pgtype.Text
		)
		if err := rows.Scan(&tax.ID, &tax.Name, &rate); err != nil {
			return nil, notFoundOr(err, "failed to scan tax rate row")
		}
		if rate.Valid {
			if tax.Rate, err = decimalFromText(rate.String); err != nil {
				return nil, err
			}
		}
		rates[tax.ID] = &tax
	}
	if err := rows.Err(); err != nil {
		return nil, notFoundOr(err, "failed to read tax rates for group %q", groupKey)
	}

	return rates, nil
}

// RegionTaxRates resolves the country and state ISO codes and returns the
// effective tax rates for the region. Unknown countries fall back to the
// default rates; tax-free countries get a zero rate for every tax.
func (s *CountryStore) RegionTaxRates(ctx context.Context, groupKey, countryISO, stateCode string) (map[int64]*pricing.Tax, error) {
	var (
		areaID, countryID, stateID int64
		taxFree                    bool
	)

	if countryISO != "" {
		country, err := s.ByISO(ctx, countryISO)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if err == nil {
			areaID = country.AreaID
			countryID = country.ID
			taxFree = country.TaxFree

			if stateCode != "" {
				state, err := s.StateByCode(ctx, country.ID, stateCode)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return nil, err
				}
				if err == nil {
					stateID = state.ID
				}
			}
		}
	}

	rates, err := s.TaxRates(ctx, groupKey, areaID, countryID, stateID)
	if err != nil {
		return nil, err
	}

	if taxFree {
		for _, tax := range rates {
			tax.Rate = decimal.Zero
		}
	}

	return rates, nil
}
