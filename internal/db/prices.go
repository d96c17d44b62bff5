package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// PriceStore reads stored price records. It implements the pricing engine's
// TierResolver and DiscountResolver contracts.
type PriceStore struct {
	pool *pgxpool.Pool
}

func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

const tierPricesQuery = `
SELECT p.variant_id,
       p.from_quantity,
       COALESCE(p.to_quantity, 0),
       p.amount::text,
       p.pseudo_amount::text
FROM product_prices p
WHERE p.variant_id = $1
  AND p.customer_group_key = $2
ORDER BY p.from_quantity`

// TierPrices returns the quantity-scaled prices of the product's variant for
// one customer group, ascending by tier threshold. An empty result is valid.
func (s *PriceStore) TierPrices(ctx context.Context, product *pricing.Product, group *pricing.CustomerGroup) ([]*pricing.Price, error) {
	rows, err := s.pool.Query(ctx, tierPricesQuery, product.VariantID, group.Key)
	if err != nil {
		return nil, notFoundOr(err, "failed to query tier prices for variant %d", product.VariantID)
	}
	defer rows.Close()

	var prices []*pricing.Price
	for rows.Next() {
		price, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	if err := rows.Err(); err != nil {
		return nil, notFoundOr(err, "failed to read tier prices for variant %d", product.VariantID)
	}

	return prices, nil
}

const cheapestPriceQuery = `
SELECT p.variant_id,
       p.from_quantity,
       COALESCE(p.to_quantity, 0),
       p.amount::text,
       p.pseudo_amount::text,
       u.id,
       u.name,
       u.pack_unit,
       u.purchase_unit::text,
       u.reference_unit::text,
       u.min_purchase
FROM product_prices p
JOIN product_variants v ON v.id = p.variant_id
LEFT JOIN units u ON u.id = v.unit_id
WHERE v.product_id = $1
  AND p.customer_group_key = $2
ORDER BY p.amount
LIMIT 1`

// CheapestPrice returns the lowest price across every variant of the base
// product for one customer group, carrying the unit of the variant it was
// selected from. Returns nil when the group has no prices.
func (s *PriceStore) CheapestPrice(ctx context.Context, product *pricing.Product, group *pricing.CustomerGroup) (*pricing.Price, error) {
	row := s.pool.QueryRow(ctx, cheapestPriceQuery, product.ID, group.Key)

	var (
		price       pricing.Price
		amount      string
		pseudo      pgtype.Text
		unitID      pgtype.Int8
		unitName    pgtype.Text
		packUnit    pgtype.Text
		purchase    pgtype.Text
		reference   pgtype.Text
		minPurchase pgtype.Int8
	)
	err := row.Scan(
		&price.VariantID, &price.FromQuantity, &price.ToQuantity, &amount, &pseudo,
		&unitID, &unitName, &packUnit, &purchase, &reference, &minPurchase,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, notFoundOr(err, "failed to query cheapest price for product %d", product.ID)
	}

	if price.Amount, err = decimalFromText(amount); err != nil {
		return nil, err
	}
	if price.PseudoAmount, err = nullDecimalFromText(pseudo); err != nil {
		return nil, err
	}

	if unitID.Valid {
		unit := &pricing.Unit{
			ID:          unitID.Int64,
			Name:        unitName.String,
			PackUnit:    packUnit.String,
			MinPurchase: minPurchase.Int64,
		}
		if purchase.Valid {
			if unit.PurchaseUnit, err = decimalFromText(purchase.String); err != nil {
				return nil, err
			}
		}
		if reference.Valid {
			if unit.ReferenceUnit, err = decimalFromText(reference.String); err != nil {
				return nil, err
			}
		}
		price.Unit = unit
	}

	return &price, nil
}

const priceGroupDiscountQuery = `
SELECT MAX(d.discount)::text
FROM price_group_discounts d
WHERE d.price_group_id = $1
  AND d.customer_group_key = $2
  AND d.min_quantity <= $3`

// PriceGroupDiscount returns the highest discount percentage configured for
// the price group at or below the given purchase quantity. A missing or
// unparseable configuration yields zero, never an error.
func (s *PriceStore) PriceGroupDiscount(ctx context.Context, priceGroupID int64, group *pricing.CustomerGroup, minPurchase int64) (decimal.Decimal, error) {
	var discount pgtype.Text
	err := s.pool.QueryRow(ctx, priceGroupDiscountQuery, priceGroupID, group.Key, minPurchase).Scan(&discount)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, notFoundOr(err, "failed to query discount for price group %d", priceGroupID)
	}

	if !discount.Valid {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(discount.String)
	if err != nil {
		// Invalid configuration counts as no discount.
		return decimal.Zero, nil
	}

	return parsed, nil
}

func scanPrice(rows pgx.Rows) (*pricing.Price, error) {
	var (
		price  pricing.Price
		amount string
		pseudo pgtype.Text
	)
	if err := rows.Scan(&price.VariantID, &price.FromQuantity, &price.ToQuantity, &amount, &pseudo); err != nil {
		return nil, notFoundOr(err, "failed to scan price row")
	}

	var err error
	if price.Amount, err = decimalFromText(amount); err != nil {
		return nil, err
	}
	if price.PseudoAmount, err = nullDecimalFromText(pseudo); err != nil {
		return nil, err
	}

	return &price, nil
}
