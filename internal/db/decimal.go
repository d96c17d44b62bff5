package db

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Numeric columns are selected with ::text casts and parsed here, keeping
// the stores independent of driver-side numeric codecs.

func decimalFromText(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to parse numeric column %q: %w", value, err)
	}
	return d, nil
}

func nullDecimalFromText(value pgtype.Text) (decimal.NullDecimal, error) {
	if !value.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimalFromText(value.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
