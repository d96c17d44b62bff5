package pricing

import "errors"

// ErrNotFound is returned by store backends when a single-record lookup
// (product, customer group, currency) matches nothing.
var ErrNotFound = errors.New("record not found")
