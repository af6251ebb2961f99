package fees

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/shared"
)

// FeeAssignment is the ledger row for one fee owed by one student in one
// enrollment session. It is the aggregate root all money mutations go
// through: payments, discounts, late-fee accrual, waivers and sponsor
// coverage all land here, each as a version-incrementing operation that the
// repository persists with a compare-and-swap on the version column.
//
// An assignment is created once per (student, structure, session) and never
// physically deleted; withdrawal marks it inactive.
type FeeAssignment struct {
	shared.TenantAggregateRoot
	StudentID      uuid.UUID `json:"student_id"`
	FeeStructureID uuid.UUID `json:"fee_structure_id"`
	SessionID      uuid.UUID `json:"session_id"`
	StructureName  string    `json:"structure_name"`

	Amount               decimal.Decimal `json:"amount"`                 // gross fee before any reduction
	TotalDiscountAmount  decimal.Decimal `json:"total_discount_amount"`  // cumulative discounts applied
	SponsorCoveredAmount decimal.Decimal `json:"sponsor_covered_amount"` // derived from the active funding arrangement
	PrincipalPaid        decimal.Decimal `json:"principal_paid"`
	LateFeePaid          decimal.Decimal `json:"late_fee_paid"`
	LateFeeAccrued       decimal.Decimal `json:"late_fee_accrued"`
	LateFeeWaived        decimal.Decimal `json:"late_fee_waived"`

	// Policy fields are value-copied from the fee structure at creation.
	LateFeePolicy  LateFeePolicy `json:"late_fee_policy"`
	LateFeeApplied bool          `json:"late_fee_applied"` // one-shot guard for non-recurring policies
	DueDate        *time.Time    `json:"due_date"`         // nil disables late-fee accrual entirely

	Active bool `json:"active"`
}

// PaymentSplit is the realized outcome of allocating one payment amount to
// one assignment: what was newly accrued as late fee, and how the amount
// divided between outstanding late fee and principal.
type PaymentSplit struct {
	LateFeeAccrued  decimal.Decimal `json:"late_fee_accrued"`
	LateFeeAmount   decimal.Decimal `json:"late_fee_amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
}

// NewFeeAssignment creates an assignment from a fee structure, value-copying
// the amount, due date and late-fee policy so the assignment is immune to
// later template edits. Duplicate (student, structure, session) creation is
// rejected by the service/repository layer.
func NewFeeAssignment(tenantID, studentID, sessionID uuid.UUID, structure *FeeStructure) (*FeeAssignment, error) {
	if studentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}
	if sessionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SESSION", "Session ID cannot be empty")
	}
	if structure == nil {
		return nil, shared.NewDomainError("INVALID_STRUCTURE", "Fee structure is required")
	}
	if !structure.Active {
		return nil, shared.NewDomainError("INACTIVE_STRUCTURE", "Fee structure is no longer active")
	}

	var dueDate *time.Time
	if structure.DueDate != nil {
		d := *structure.DueDate
		dueDate = &d
	}

	return &FeeAssignment{
		TenantAggregateRoot:  shared.NewTenantAggregateRoot(tenantID),
		StudentID:            studentID,
		FeeStructureID:       structure.ID,
		SessionID:            sessionID,
		StructureName:        structure.Name,
		Amount:               structure.Amount,
		TotalDiscountAmount:  decimal.Zero,
		SponsorCoveredAmount: decimal.Zero,
		PrincipalPaid:        decimal.Zero,
		LateFeePaid:          decimal.Zero,
		LateFeeAccrued:       decimal.Zero,
		LateFeeWaived:        decimal.Zero,
		LateFeePolicy:        structure.LateFeePolicy,
		LateFeeApplied:       false,
		DueDate:              dueDate,
		Active:               true,
	}, nil
}

// NetPrincipal returns max(0, amount - discount - funding) rounded to
// currency precision.
func NetPrincipal(amount, discount, funding decimal.Decimal) decimal.Decimal {
	net := amount.Sub(discount).Sub(funding).Round(2)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// Pending is the single source of truth for how much is owed on this
// assignment right now. Total over any snapshot, never negative.
func (a *FeeAssignment) Pending() decimal.Decimal {
	return a.pendingWithAccrued(a.LateFeeAccrued)
}

// PendingAsOf previews the pending balance as of a reference date, including
// late fee that would accrue by then. It never mutates the assignment:
// accrual is persisted only as part of a payment.
func (a *FeeAssignment) PendingAsOf(asOf time.Time) decimal.Decimal {
	return a.pendingWithAccrued(a.LateFeeAccrued.Add(a.LateFeeAccrualAsOf(asOf)))
}

func (a *FeeAssignment) pendingWithAccrued(accrued decimal.Decimal) decimal.Decimal {
	pending := a.Amount.Add(accrued).
		Sub(a.TotalDiscountAmount).
		Sub(a.LateFeeWaived).
		Sub(a.PrincipalPaid).
		Sub(a.LateFeePaid).
		Round(2)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// PendingPrincipal is the principal still reducible by discounts or payable
// by the family: amount minus payments, discounts and sponsor coverage.
// Unlike Pending it may be negative, which callers treat as an invariant
// violation.
func (a *FeeAssignment) PendingPrincipal() decimal.Decimal {
	return a.Amount.Sub(a.PrincipalPaid).Sub(a.TotalDiscountAmount).Sub(a.SponsorCoveredAmount).Round(2)
}

// UnpaidPrincipal is the net principal not yet paid, floored at zero. This
// is the base late-fee percentages are computed against.
func (a *FeeAssignment) UnpaidPrincipal() decimal.Decimal {
	unpaid := NetPrincipal(a.Amount, a.TotalDiscountAmount, a.SponsorCoveredAmount).Sub(a.PrincipalPaid)
	if unpaid.IsNegative() {
		return decimal.Zero
	}
	return unpaid
}

// OutstandingLateFee is accrued late fee not yet paid or waived
func (a *FeeAssignment) OutstandingLateFee() decimal.Decimal {
	outstanding := a.LateFeeAccrued.Sub(a.LateFeePaid).Sub(a.LateFeeWaived)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// LateFeeAccrualAsOf computes, without mutating anything, the late-fee
// increment that would accrue as of the reference date.
func (a *FeeAssignment) LateFeeAccrualAsOf(asOf time.Time) decimal.Decimal {
	return a.LateFeePolicy.Accrual(a.UnpaidPrincipal(), a.LateFeeAccrued, a.LateFeeApplied, a.DueDate, asOf)
}

// accrueLateFee records the accrual as of the reference date and, for
// non-recurring policies, arms the one-shot guard. Part of an enclosing
// operation; the caller bumps the version.
func (a *FeeAssignment) accrueLateFee(asOf time.Time) decimal.Decimal {
	increment := a.LateFeeAccrualAsOf(asOf)
	if increment.IsPositive() {
		a.LateFeeAccrued = a.LateFeeAccrued.Add(increment)
		if !a.LateFeePolicy.Type.IsRecurring() {
			a.LateFeeApplied = true
		}
	}
	return increment
}

// RecordPayment allocates a payment amount to this assignment as of the
// payment date: any due late fee is accrued first, the amount then satisfies
// outstanding late fee before principal, and the principal portion is
// rejected outright if it would drive the pending principal below zero.
func (a *FeeAssignment) RecordPayment(amount decimal.Decimal, paymentDate time.Time) (PaymentSplit, error) {
	if !a.Active {
		return PaymentSplit{}, shared.NewDomainError("ASSIGNMENT_INACTIVE", "Cannot record a payment against an inactive fee assignment")
	}
	if !amount.IsPositive() {
		return PaymentSplit{}, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}

	increment := a.LateFeeAccrualAsOf(paymentDate)
	accrued := a.LateFeeAccrued.Add(increment)

	outstanding := accrued.Sub(a.LateFeePaid).Sub(a.LateFeeWaived)
	if outstanding.IsNegative() {
		outstanding = decimal.Zero
	}

	pending := a.pendingWithAccrued(accrued)
	if !pending.IsPositive() {
		return PaymentSplit{}, shared.NewDomainError("NO_PENDING_BALANCE", "Fee assignment has no pending balance")
	}

	lateFeePart := amount
	if lateFeePart.GreaterThan(outstanding) {
		lateFeePart = outstanding
	}
	principalPart := amount.Sub(lateFeePart)

	if principalPart.GreaterThan(a.UnpaidPrincipal()) {
		return PaymentSplit{}, shared.NewDomainError("OVERPAYMENT",
			fmt.Sprintf("Payment amount %.2f exceeds pending balance %.2f", amount.InexactFloat64(), pending.InexactFloat64()))
	}

	a.accrueLateFee(paymentDate)
	a.LateFeePaid = a.LateFeePaid.Add(lateFeePart)
	a.PrincipalPaid = a.PrincipalPaid.Add(principalPart)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return PaymentSplit{
		LateFeeAccrued:  increment,
		LateFeeAmount:   lateFeePart,
		PrincipalAmount: principalPart,
	}, nil
}

// ApplyDiscount computes and applies a discount to the outstanding
// principal, returning the applied amount. Percentage discounts are clamped
// to the pending principal; flat discounts that exceed it are rejected.
// (The asymmetry is deliberate: it mirrors long-standing bursar practice of
// capping relative awards while treating an oversized absolute award as a
// data-entry mistake.)
func (a *FeeAssignment) ApplyDiscount(def *DiscountDefinition) (decimal.Decimal, error) {
	if !a.Active {
		return decimal.Zero, shared.NewDomainError("ASSIGNMENT_INACTIVE", "Cannot discount an inactive fee assignment")
	}
	if def == nil {
		return decimal.Zero, shared.NewDomainError("INVALID_DISCOUNT", "Discount definition is required")
	}
	if !def.Active {
		return decimal.Zero, shared.NewDomainError("INACTIVE_DISCOUNT", "Discount definition is no longer active")
	}

	pendingPrincipal := a.PendingPrincipal()
	if !pendingPrincipal.IsPositive() {
		return decimal.Zero, shared.NewDomainError("NO_PENDING_PRINCIPAL", "Fee assignment has no principal left to discount")
	}

	var discount decimal.Decimal
	switch def.Type {
	case DiscountPercentage:
		// 6-decimal intermediate, then currency precision
		discount = a.Amount.Mul(def.Value).Div(decimal.NewFromInt(100)).Round(6).Round(2)
		if discount.GreaterThan(pendingPrincipal) {
			discount = pendingPrincipal
		}
	case DiscountFlat:
		discount = def.Value
		if discount.GreaterThan(pendingPrincipal) {
			return decimal.Zero, shared.NewDomainError("DISCOUNT_EXCEEDS_PRINCIPAL",
				fmt.Sprintf("Discount %.2f exceeds remaining principal %.2f", discount.InexactFloat64(), pendingPrincipal.InexactFloat64()))
		}
	default:
		return decimal.Zero, shared.NewDomainError("INVALID_DISCOUNT_TYPE", "Discount type is not valid")
	}

	if !discount.IsPositive() {
		return decimal.Zero, shared.NewDomainError("INVALID_DISCOUNT", "Computed discount is not positive")
	}

	a.TotalDiscountAmount = a.TotalDiscountAmount.Add(discount)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	return discount, nil
}

// RecalculateFunding recomputes the sponsor-covered amount after the taxable
// base (amount minus discount) changed. A nil arrangement leaves the current
// coverage untouched: coverage set directly at assignment creation is not
// erased by the absence of an arrangement record.
func (a *FeeAssignment) RecalculateFunding(arrangement *FundingArrangement) {
	if arrangement == nil {
		return
	}
	base := a.Amount.Sub(a.TotalDiscountAmount)
	if base.IsNegative() {
		base = decimal.Zero
	}
	a.SponsorCoveredAmount = arrangement.CoveredAmount(base)
}

// WaiveLateFee forgives part or all of the outstanding late fee
func (a *FeeAssignment) WaiveLateFee(amount decimal.Decimal) error {
	if !a.Active {
		return shared.NewDomainError("ASSIGNMENT_INACTIVE", "Cannot waive late fee on an inactive fee assignment")
	}

	outstanding := a.LateFeeAccrued.Sub(a.LateFeePaid).Sub(a.LateFeeWaived)
	if !outstanding.IsPositive() {
		return shared.NewDomainError("NOTHING_TO_WAIVE", "Fee assignment has no outstanding late fee")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Waiver amount must be positive")
	}
	if amount.GreaterThan(outstanding) {
		return shared.NewDomainError("WAIVER_EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Waiver %.2f exceeds waivable late fee %.2f", amount.InexactFloat64(), outstanding.InexactFloat64()))
	}

	a.LateFeeWaived = a.LateFeeWaived.Add(amount)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	return nil
}

// Deactivate excludes the assignment from billing (student withdrawal).
// The row and its history remain.
func (a *FeeAssignment) Deactivate() {
	a.Active = false
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// IsSettled returns true when nothing is owed anymore
func (a *FeeAssignment) IsSettled() bool {
	return a.Pending().IsZero()
}
