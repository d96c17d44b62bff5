package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shopkitapp/shopkit/internal/pricing"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = pricing.ErrNotFound

func notFoundOr(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
