package fees

import (
	"time"

	"github.com/shopspring/decimal"
)

// LateFeeType identifies how a late fee is computed once an assignment is
// past its due date and grace period.
type LateFeeType string

const (
	LateFeeNone            LateFeeType = "NONE"
	LateFeeFlat            LateFeeType = "FLAT"             // one-time fixed charge
	LateFeePercentage      LateFeeType = "PERCENTAGE"       // one-time percentage of unpaid principal
	LateFeeDailyPercentage LateFeeType = "DAILY_PERCENTAGE" // recurring percentage per day late
)

// IsValid checks if the late fee type is a valid LateFeeType
func (t LateFeeType) IsValid() bool {
	switch t {
	case LateFeeNone, LateFeeFlat, LateFeePercentage, LateFeeDailyPercentage:
		return true
	}
	return false
}

// IsRecurring returns true for policies that keep accruing over time.
// Non-recurring policies charge at most once, guarded by the assignment's
// lateFeeApplied flag.
func (t LateFeeType) IsRecurring() bool {
	return t == LateFeeDailyPercentage
}

// LateFeeCapType identifies how the accrued late fee is bounded.
type LateFeeCapType string

const (
	LateFeeCapNone       LateFeeCapType = "NONE"
	LateFeeCapFixed      LateFeeCapType = "FIXED"      // absolute ceiling
	LateFeeCapPercentage LateFeeCapType = "PERCENTAGE" // ceiling as % of unpaid principal
)

// IsValid checks if the cap type is a valid LateFeeCapType
func (t LateFeeCapType) IsValid() bool {
	switch t {
	case LateFeeCapNone, LateFeeCapFixed, LateFeeCapPercentage:
		return true
	}
	return false
}

// LateFeePolicy holds the late-fee parameters of a fee assignment. The
// values are copied from the fee structure when the assignment is created,
// so later edits to the structure template never change the behavior of
// assignments already issued.
type LateFeePolicy struct {
	Type      LateFeeType     `json:"type"`
	Value     decimal.Decimal `json:"value"`
	GraceDays int             `json:"grace_days"`
	CapType   LateFeeCapType  `json:"cap_type"`
	CapValue  decimal.Decimal `json:"cap_value"`
}

// NoLateFee returns a policy that never accrues anything.
func NoLateFee() LateFeePolicy {
	return LateFeePolicy{Type: LateFeeNone, CapType: LateFeeCapNone}
}

// Accrual computes the late-fee increment to accrue as of a reference date.
// It is a pure calculation: the caller persists the increment and, for
// non-recurring policies, sets the applied flag atomically with the write.
//
// For FLAT and PERCENTAGE the increment is the one-time charge (zero if it
// was already applied). For DAILY_PERCENTAGE the total accrued-as-of-date is
// computed and what is already recorded is subtracted, so repeated calls on
// the same date are no-ops and calls on later dates top up correctly.
func (p LateFeePolicy) Accrual(unpaidPrincipal, currentAccrued decimal.Decimal, alreadyApplied bool, dueDate *time.Time, asOf time.Time) decimal.Decimal {
	if p.Type == LateFeeNone || p.Type == "" || dueDate == nil {
		return decimal.Zero
	}
	if !asOf.After(dueDate.AddDate(0, 0, p.GraceDays)) {
		return decimal.Zero
	}
	if !unpaidPrincipal.IsPositive() {
		return decimal.Zero
	}

	var increment decimal.Decimal
	switch p.Type {
	case LateFeeFlat:
		if alreadyApplied {
			return decimal.Zero
		}
		increment = p.capped(p.Value, unpaidPrincipal)
	case LateFeePercentage:
		if alreadyApplied {
			return decimal.Zero
		}
		charge := unpaidPrincipal.Mul(p.Value).Div(decimal.NewFromInt(100))
		increment = p.capped(charge, unpaidPrincipal)
	case LateFeeDailyPercentage:
		daysLate := daysBetween(*dueDate, asOf)
		total := unpaidPrincipal.Mul(p.Value).Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(int64(daysLate)))
		// the cap bounds the running total, not the per-call increment
		total = p.capped(total, unpaidPrincipal).Round(2)
		increment = total.Sub(currentAccrued)
	default:
		return decimal.Zero
	}

	increment = increment.Round(2)
	if increment.IsNegative() {
		return decimal.Zero
	}
	return increment
}

// capped applies the configured cap to a computed charge.
func (p LateFeePolicy) capped(charge, unpaidPrincipal decimal.Decimal) decimal.Decimal {
	switch p.CapType {
	case LateFeeCapFixed:
		if charge.GreaterThan(p.CapValue) {
			return p.CapValue
		}
	case LateFeeCapPercentage:
		ceiling := unpaidPrincipal.Mul(p.CapValue).Div(decimal.NewFromInt(100))
		if charge.GreaterThan(ceiling) {
			return ceiling
		}
	}
	return charge
}

// daysBetween returns the number of whole days from a to b.
func daysBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}
