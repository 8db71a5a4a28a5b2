package settlement

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNonPositiveAmount rejects zero or negative payment amounts before any
// write happens.
var ErrNonPositiveAmount = errors.New("settlement: enter a payment amount > 0")

// ErrNothingOutstanding indicates the invoice is already fully settled.
var ErrNothingOutstanding = errors.New("settlement: invoice has no outstanding balance")

// Split is the outcome of the allocation decision: how much of a requested
// payment lands on the invoice and how much is left over as credit/advance.
type Split struct {
	Apply     decimal.Decimal
	Remainder decimal.Decimal
}

// Allocate decides the allocation split for a requested payment against an
// invoice balance. Apply = min(requested, balanceDue), never negative;
// Remainder = requested − Apply. The caller persists Apply as the
// allocation amount and Remainder, if positive, as a credit entry.
func Allocate(balanceDue, requested decimal.Decimal) (Split, error) {
	if requested.Sign() <= 0 {
		return Split{}, ErrNonPositiveAmount
	}
	apply := decimal.Min(requested, balanceDue)
	if apply.Sign() < 0 {
		apply = decimal.Zero
	}
	return Split{Apply: apply, Remainder: requested.Sub(apply)}, nil
}
