package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// ProductStore loads the minimal product projection the engine needs.
type ProductStore struct {
	pool *pgxpool.Pool
}

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productByNumberQuery = `
SELECT v.product_id,
       v.id,
       v.number,
       pr.tax_id,
       COALESCE(pr.price_group_id, 0),
       u.id,
       u.name,
       u.pack_unit,
       u.purchase_unit::text,
       u.reference_unit::text,
       u.min_purchase
FROM product_variants v
JOIN products pr ON pr.id = v.product_id
LEFT JOIN units u ON u.id = v.unit_id
WHERE v.number = $1`

// ByNumber returns the projection for one variant order number.
func (s *ProductStore) ByNumber(ctx context.Context, number string) (*pricing.Product, error) {
	row := s.pool.QueryRow(ctx, productByNumberQuery, number)

	var (
		product     pricing.Product
		unitID      pgtype.Int8
		unitName    pgtype.Text
		packUnit    pgtype.Text
		purchase    pgtype.Text
		reference   pgtype.Text
		minPurchase pgtype.Int8
	)
	err := row.Scan(
		&product.ID, &product.VariantID, &product.Number, &product.TaxID, &product.PriceGroupID,
		&unitID, &unitName, &packUnit, &purchase, &reference, &minPurchase,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to query product %q", number)
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
		product.Unit = unit
	}

	return &product, nil
}
