package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/sims/backend/internal/domain/fees"
)

// LateFeePolicyPayload carries a late fee policy in requests and responses
type LateFeePolicyPayload struct {
	Type      string  `json:"type" binding:"omitempty,oneof=NONE FLAT PERCENTAGE DAILY_PERCENTAGE"`
	Value     float64 `json:"value" binding:"omitempty,gte=0"`
	GraceDays int     `json:"grace_days" binding:"omitempty,gte=0"`
	CapType   string  `json:"cap_type" binding:"omitempty,oneof=NONE FIXED PERCENTAGE"`
	CapValue  float64 `json:"cap_value" binding:"omitempty,gte=0"`
}

func (p LateFeePolicyPayload) toDomain() fees.LateFeePolicy {
	policy := fees.NoLateFee()
	if p.Type != "" {
		policy.Type = fees.LateFeeType(p.Type)
	}
	policy.Value = toDecimal(p.Value)
	policy.GraceDays = p.GraceDays
	if p.CapType != "" {
		policy.CapType = fees.LateFeeCapType(p.CapType)
	}
	policy.CapValue = toDecimal(p.CapValue)
	return policy
}

func lateFeePolicyPayload(policy fees.LateFeePolicy) LateFeePolicyPayload {
	return LateFeePolicyPayload{
		Type:      string(policy.Type),
		Value:     policy.Value.InexactFloat64(),
		GraceDays: policy.GraceDays,
		CapType:   string(policy.CapType),
		CapValue:  policy.CapValue.InexactFloat64(),
	}
}

// FeeStructureResponse is the API shape of a fee structure
type FeeStructureResponse struct {
	ID            uuid.UUID            `json:"id"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	Amount        string               `json:"amount"`
	DueDate       *time.Time           `json:"due_date,omitempty"`
	LateFeePolicy LateFeePolicyPayload `json:"late_fee_policy"`
	Active        bool                 `json:"active"`
	Version       int                  `json:"version"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func toFeeStructureResponse(s *fees.FeeStructure) FeeStructureResponse {
	return FeeStructureResponse{
		ID:            s.ID,
		Name:          s.Name,
		Description:   s.Description,
		Amount:        s.Amount.StringFixed(2),
		DueDate:       s.DueDate,
		LateFeePolicy: lateFeePolicyPayload(s.LateFeePolicy),
		Active:        s.Active,
		Version:       s.Version,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// DiscountResponse is the API shape of a discount definition
type DiscountResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Value     string    `json:"value"`
	Active    bool      `json:"active"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toDiscountResponse(d *fees.DiscountDefinition) DiscountResponse {
	return DiscountResponse{
		ID:        d.ID,
		Name:      d.Name,
		Type:      string(d.Type),
		Value:     d.Value.StringFixed(2),
		Active:    d.Active,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// FundingResponse is the API shape of a funding arrangement
type FundingResponse struct {
	ID            uuid.UUID  `json:"id"`
	StudentID     uuid.UUID  `json:"student_id"`
	SessionID     uuid.UUID  `json:"session_id"`
	SponsorName   string     `json:"sponsor_name"`
	CoverageType  string     `json:"coverage_type"`
	CoverageMode  string     `json:"coverage_mode,omitempty"`
	CoverageValue string     `json:"coverage_value"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidTo       *time.Time `json:"valid_to,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toFundingResponse(f *fees.FundingArrangement) FundingResponse {
	return FundingResponse{
		ID:            f.ID,
		StudentID:     f.StudentID,
		SessionID:     f.SessionID,
		SponsorName:   f.SponsorName,
		CoverageType:  string(f.CoverageType),
		CoverageMode:  string(f.CoverageMode),
		CoverageValue: f.CoverageValue.StringFixed(2),
		ValidFrom:     f.ValidFrom,
		ValidTo:       f.ValidTo,
		Active:        f.Active,
		CreatedAt:     f.CreatedAt,
	}
}

// AssignmentResponse is the API shape of a fee assignment, including the
// derived ledger figures
type AssignmentResponse struct {
	ID                   uuid.UUID            `json:"id"`
	StudentID            uuid.UUID            `json:"student_id"`
	SessionID            uuid.UUID            `json:"session_id"`
	FeeStructureID       uuid.UUID            `json:"fee_structure_id"`
	StructureName        string               `json:"structure_name"`
	Amount               string               `json:"amount"`
	TotalDiscountAmount  string               `json:"total_discount_amount"`
	SponsorCoveredAmount string               `json:"sponsor_covered_amount"`
	PrincipalPaid        string               `json:"principal_paid"`
	LateFeePaid          string               `json:"late_fee_paid"`
	LateFeeAccrued       string               `json:"late_fee_accrued"`
	LateFeeWaived        string               `json:"late_fee_waived"`
	Pending              string               `json:"pending"`
	PendingPrincipal     string               `json:"pending_principal"`
	OutstandingLateFee   string               `json:"outstanding_late_fee"`
	LateFeePolicy        LateFeePolicyPayload `json:"late_fee_policy"`
	DueDate              *time.Time           `json:"due_date,omitempty"`
	Active               bool                 `json:"active"`
	Settled              bool                 `json:"settled"`
	Version              int                  `json:"version"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func toAssignmentResponse(a *fees.FeeAssignment) AssignmentResponse {
	return AssignmentResponse{
		ID:                   a.ID,
		StudentID:            a.StudentID,
		SessionID:            a.SessionID,
		FeeStructureID:       a.FeeStructureID,
		StructureName:        a.StructureName,
		Amount:               a.Amount.StringFixed(2),
		TotalDiscountAmount:  a.TotalDiscountAmount.StringFixed(2),
		SponsorCoveredAmount: a.SponsorCoveredAmount.StringFixed(2),
		PrincipalPaid:        a.PrincipalPaid.StringFixed(2),
		LateFeePaid:          a.LateFeePaid.StringFixed(2),
		LateFeeAccrued:       a.LateFeeAccrued.StringFixed(2),
		LateFeeWaived:        a.LateFeeWaived.StringFixed(2),
		Pending:              a.Pending().StringFixed(2),
		PendingPrincipal:     a.PendingPrincipal().StringFixed(2),
		OutstandingLateFee:   a.OutstandingLateFee().StringFixed(2),
		LateFeePolicy:        lateFeePolicyPayload(a.LateFeePolicy),
		DueDate:              a.DueDate,
		Active:               a.Active,
		Settled:              a.IsSettled(),
		Version:              a.Version,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func toAssignmentResponses(assignments []fees.FeeAssignment) []AssignmentResponse {
	out := make([]AssignmentResponse, len(assignments))
	for i := range assignments {
		out[i] = toAssignmentResponse(&assignments[i])
	}
	return out
}

// AdjustmentResponse is the API shape of an adjustment log row
type AdjustmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	FeeAssignmentID uuid.UUID  `json:"fee_assignment_id"`
	Kind            string     `json:"kind"`
	Amount          string     `json:"amount"`
	Reason          string     `json:"reason,omitempty"`
	Actor           string     `json:"actor,omitempty"`
	DiscountID      *uuid.UUID `json:"discount_id,omitempty"`
	DiscountName    string     `json:"discount_name,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toAdjustmentResponse(a *fees.FeeAdjustment) AdjustmentResponse {
	return AdjustmentResponse{
		ID:              a.ID,
		FeeAssignmentID: a.FeeAssignmentID,
		Kind:            string(a.Kind),
		Amount:          a.Amount.StringFixed(2),
		Reason:          a.Reason,
		Actor:           a.Actor,
		DiscountID:      a.DiscountID,
		DiscountName:    a.DiscountName,
		CreatedAt:       a.CreatedAt,
	}
}

// PaymentResponse is the API shape of a payment log row
type PaymentResponse struct {
	ID              uuid.UUID `json:"id"`
	FeeAssignmentID uuid.UUID `json:"fee_assignment_id"`
	StudentID       uuid.UUID `json:"student_id"`
	ReceiptNo       string    `json:"receipt_no"`
	Amount          string    `json:"amount"`
	LateFeeAmount   string    `json:"late_fee_amount"`
	PrincipalAmount string    `json:"principal_amount"`
	Method          string    `json:"method"`
	Reference       string    `json:"reference,omitempty"`
	Actor           string    `json:"actor,omitempty"`
	PaidAt          time.Time `json:"paid_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func toPaymentResponse(p *fees.FeePayment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		FeeAssignmentID: p.FeeAssignmentID,
		StudentID:       p.StudentID,
		ReceiptNo:       p.ReceiptNo,
		Amount:          p.Amount.StringFixed(2),
		LateFeeAmount:   p.LateFeeAmount.StringFixed(2),
		PrincipalAmount: p.PrincipalAmount.StringFixed(2),
		Method:          string(p.Method),
		Reference:       p.Reference,
		Actor:           p.Actor,
		PaidAt:          p.PaidAt,
		CreatedAt:       p.CreatedAt,
	}
}

func toPaymentResponses(payments []fees.FeePayment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = toPaymentResponse(&payments[i])
	}
	return out
}
