package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/shared"
)

// FeeStructure is the fee template an administrator maintains (tuition for a
// grade, transport, lab fees). Assignments value-copy its amount, due date
// and late-fee policy at creation time; the structure can be edited or
// retired afterwards without touching fees already assigned.
type FeeStructure struct {
	shared.TenantAggregateRoot
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       *time.Time      `json:"due_date"`
	LateFeePolicy LateFeePolicy   `json:"late_fee_policy"`
	Active        bool            `json:"active"`
}

// NewFeeStructure creates a new fee structure template
func NewFeeStructure(tenantID uuid.UUID, name string, amount decimal.Decimal, dueDate *time.Time, policy LateFeePolicy) (*FeeStructure, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Fee structure name cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Fee structure amount must be positive")
	}
	if !policy.Type.IsValid() {
		return nil, shared.NewDomainError("INVALID_LATE_FEE_TYPE", "Late fee type is not valid")
	}
	if !policy.CapType.IsValid() {
		return nil, shared.NewDomainError("INVALID_LATE_FEE_CAP", "Late fee cap type is not valid")
	}
	if policy.GraceDays < 0 {
		return nil, shared.NewDomainError("INVALID_GRACE_DAYS", "Grace days cannot be negative")
	}
	if policy.Type != LateFeeNone && policy.Value.IsNegative() {
		return nil, shared.NewDomainError("INVALID_LATE_FEE_VALUE", "Late fee value cannot be negative")
	}

	return &FeeStructure{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Amount:              amount,
		DueDate:             dueDate,
		LateFeePolicy:       policy,
		Active:              true,
	}, nil
}

// Update changes the template. Existing assignments are unaffected: they
// carry their own copy of these fields.
func (s *FeeStructure) Update(name string, amount decimal.Decimal, dueDate *time.Time, policy LateFeePolicy) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Fee structure name cannot be empty")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Fee structure amount must be positive")
	}
	if !policy.Type.IsValid() || !policy.CapType.IsValid() {
		return shared.NewDomainError("INVALID_LATE_FEE_TYPE", "Late fee policy is not valid")
	}

	s.Name = name
	s.Amount = amount
	s.DueDate = dueDate
	s.LateFeePolicy = policy
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
	return nil
}

// Deactivate retires the template so no new assignments can be created from it
func (s *FeeStructure) Deactivate() {
	s.Active = false
	s.UpdatedAt = time.Now()
	s.IncrementVersion()
}
