package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// CustomerGroupStore loads customer group discount policies.
type CustomerGroupStore struct {
	pool *pgxpool.Pool
}

func NewCustomerGroupStore(pool *pgxpool.Pool) *CustomerGroupStore {
	return &CustomerGroupStore{pool: pool}
}

const customerGroupByKeyQuery = `
SELECT g.id,
       g.group_key,
       g.name,
       g.use_discount,
       COALESCE(g.discount, 0)::text,
       g.display_gross,
       COALESCE(g.minimum_order_value, 0)::text
FROM customer_groups g
WHERE g.group_key = $1`

// ByKey returns the customer group for a group key (e.g. "EK").
func (s *CustomerGroupStore) ByKey(ctx context.Context, key string) (*pricing.CustomerGroup, error) {
	var (
		group        pricing.CustomerGroup
		discount     string
		minimumOrder string
	)
	err := s.pool.QueryRow(ctx, customerGroupByKeyQuery, key).Scan(
		&group.ID, &group.Key, &group.Name, &group.UseDiscount, &discount, &group.DisplayGross, &minimumOrder,
	)
	if err != nil {
		return nil, notFoundOr(err, "failed to query customer group %q", key)
	}

	if group.PercentageDiscount, err = decimalFromText(discount); err != nil {
		return nil, err
	}
	if group.MinimumOrderValue, err = decimalFromText(minimumOrder); err != nil {
		return nil, err
	}

	return &group, nil
}
