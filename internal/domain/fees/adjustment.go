package fees

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/shared"
)

// AdjustmentKind identifies what reduced the balance
type AdjustmentKind string

const (
	AdjustmentDiscount      AdjustmentKind = "DISCOUNT"
	AdjustmentLateFeeWaiver AdjustmentKind = "LATE_FEE_WAIVER"
)

// FeeAdjustment is the append-only audit row written alongside every
// discount application and late-fee waiver. Discount rows carry a snapshot
// of the definition (name, type, value) taken at application time, so the
// history stays intact when definitions are later edited or retired.
type FeeAdjustment struct {
	shared.TenantEntity
	FeeAssignmentID uuid.UUID       `json:"fee_assignment_id"`
	Kind            AdjustmentKind  `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	Actor           string          `json:"actor"`

	// discount snapshot, zero-valued for waivers
	DiscountID    *uuid.UUID      `json:"discount_id,omitempty"`
	DiscountName  string          `json:"discount_name,omitempty"`
	DiscountType  DiscountType    `json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal `json:"discount_value,omitempty"`
}

// NewDiscountAdjustment records a discount applied to an assignment,
// attributed to the staff member who granted it
func NewDiscountAdjustment(tenantID, assignmentID uuid.UUID, applied decimal.Decimal, def *DiscountDefinition, reason, actor string) *FeeAdjustment {
	defID := def.ID
	return &FeeAdjustment{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		FeeAssignmentID: assignmentID,
		Kind:            AdjustmentDiscount,
		Amount:          applied,
		Reason:          reason,
		Actor:           actor,
		DiscountID:      &defID,
		DiscountName:    def.Name,
		DiscountType:    def.Type,
		DiscountValue:   def.Value,
	}
}

// NewWaiverAdjustment records a late-fee waiver granted on an assignment
func NewWaiverAdjustment(tenantID, assignmentID uuid.UUID, amount decimal.Decimal, reason, actor string) *FeeAdjustment {
	return &FeeAdjustment{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		FeeAssignmentID: assignmentID,
		Kind:            AdjustmentLateFeeWaiver,
		Amount:          amount,
		Reason:          reason,
		Actor:           actor,
	}
}
