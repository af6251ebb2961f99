package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/shared"
)

// PaymentMethod identifies how a payment was received
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentCheque   PaymentMethod = "CHEQUE"
	PaymentTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
	PaymentOnline   PaymentMethod = "ONLINE"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCheque, PaymentTransfer, PaymentCard, PaymentOnline:
		return true
	}
	return false
}

// FeePayment is the append-only record of one payment amount allocated to
// one fee assignment, with the realized late-fee/principal split. A receipt
// covering several assignments produces several rows sharing a ReceiptNo.
type FeePayment struct {
	shared.TenantEntity
	FeeAssignmentID uuid.UUID       `json:"fee_assignment_id"`
	StudentID       uuid.UUID       `json:"student_id"`
	ReceiptNo       string          `json:"receipt_no"`
	Amount          decimal.Decimal `json:"amount"`
	LateFeeAmount   decimal.Decimal `json:"late_fee_amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	Method          PaymentMethod   `json:"method"`
	Reference       string          `json:"reference"` // cheque no, transaction id
	Actor           string          `json:"actor"`
	PaidAt          time.Time       `json:"paid_at"`
}

// NewFeePayment records an allocated payment against an assignment
func NewFeePayment(tenantID uuid.UUID, assignment *FeeAssignment, receiptNo string,
	amount decimal.Decimal, split PaymentSplit, method PaymentMethod, reference, actor string, paidAt time.Time) *FeePayment {

	return &FeePayment{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		FeeAssignmentID: assignment.ID,
		StudentID:       assignment.StudentID,
		ReceiptNo:       receiptNo,
		Amount:          amount,
		LateFeeAmount:   split.LateFeeAmount,
		PrincipalAmount: split.PrincipalAmount,
		Method:          method,
		Reference:       reference,
		Actor:           actor,
		PaidAt:          paidAt,
	}
}
