package fees

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

// PaymentService allocates incoming payments across fee assignments.
type PaymentService struct {
	assignmentRepo fees.FeeAssignmentRepository
	paymentRepo    fees.FeePaymentRepository
	txManager      shared.TxManager
	idempotency    shared.IdempotencyStore
	logger         *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	assignmentRepo fees.FeeAssignmentRepository,
	paymentRepo fees.FeePaymentRepository,
	txManager shared.TxManager,
	idempotency shared.IdempotencyStore,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		assignmentRepo: assignmentRepo,
		paymentRepo:    paymentRepo,
		txManager:      txManager,
		idempotency:    idempotency,
		logger:         logger,
	}
}

// PaymentAllocation is one payer-chosen slice of a receipt
type PaymentAllocation struct {
	AssignmentID uuid.UUID
	Amount       decimal.Decimal
}

// PaymentMode selects how the receipt amount is spread over assignments
type PaymentMode string

const (
	// PayItemized carries explicit (assignment, amount) pairs
	PayItemized PaymentMode = "ITEMIZED"
	// PayLump is the legacy single-assignment form: one amount, one target
	PayLump PaymentMode = "LUMP"
)

// PayRequest represents one receipt covering one or more assignments.
// Itemized requests carry Allocations; lump requests carry AssignmentID and
// Amount and are normalized into a single allocation before processing.
type PayRequest struct {
	TenantID       uuid.UUID
	StudentID      uuid.UUID
	Mode           PaymentMode
	AssignmentID   uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string
	Method         fees.PaymentMethod
	Reference      string
	Actor          string
	PaidAt         time.Time
	Allocations    []PaymentAllocation
}

// AllocationResult is the realized outcome for one assignment
type AllocationResult struct {
	AssignmentID    uuid.UUID       `json:"assignment_id"`
	Amount          decimal.Decimal `json:"amount"`
	LateFeeAccrued  decimal.Decimal `json:"late_fee_accrued"`
	LateFeeAmount   decimal.Decimal `json:"late_fee_amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	Pending         decimal.Decimal `json:"pending"`
}

// PayResult is the outcome of a receipt
type PayResult struct {
	ReceiptNo   string             `json:"receipt_no"`
	Total       decimal.Decimal    `json:"total"`
	PaidAt      time.Time          `json:"paid_at"`
	Allocations []AllocationResult `json:"allocations"`
}

// Pay records a payment receipt. Every allocation runs its own
// accrue/allocate/version-checked-save cycle, but all of them commit in one
// database transaction: one bad allocation rolls back the whole receipt.
// A version conflict is returned as CONCURRENCY_CONFLICT for the caller to
// retry; the service never retries on its own.
func (s *PaymentService) Pay(ctx context.Context, req PayRequest) (*PayResult, error) {
	if req.Mode == "" {
		req.Mode = PayItemized
	}
	if req.Mode == PayLump {
		req.Allocations = []PaymentAllocation{{AssignmentID: req.AssignmentID, Amount: req.Amount}}
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		claimed, err := s.idempotency.Claim(ctx, paymentIdempotencyKey(req.TenantID, req.IdempotencyKey), shared.DefaultIdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if !claimed {
			return nil, shared.NewDomainError("DUPLICATE_PAYMENT", "A payment with this idempotency key was already submitted")
		}
	}

	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	receiptNo := newReceiptNo(paidAt)

	result := &PayResult{
		ReceiptNo:   receiptNo,
		Total:       decimal.Zero,
		PaidAt:      paidAt,
		Allocations: make([]AllocationResult, 0, len(req.Allocations)),
	}

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		for _, alloc := range req.Allocations {
			assignment, err := s.assignmentRepo.FindByID(ctx, req.TenantID, alloc.AssignmentID)
			if err != nil {
				return fmt.Errorf("failed to get assignment: %w", err)
			}
			if assignment == nil {
				return shared.NewDomainError("ASSIGNMENT_NOT_FOUND", "Fee assignment not found")
			}
			if assignment.StudentID != req.StudentID {
				return shared.NewDomainError("ASSIGNMENT_MISMATCH", "Fee assignment does not belong to this student")
			}

			split, err := assignment.RecordPayment(alloc.Amount, paidAt)
			if err != nil {
				return err
			}
			if err := s.assignmentRepo.SaveWithLock(ctx, assignment); err != nil {
				return err
			}

			payment := fees.NewFeePayment(req.TenantID, assignment, receiptNo, alloc.Amount, split, req.Method, req.Reference, req.Actor, paidAt)
			if err := s.paymentRepo.Save(ctx, payment); err != nil {
				return fmt.Errorf("failed to save payment: %w", err)
			}

			result.Total = result.Total.Add(alloc.Amount)
			result.Allocations = append(result.Allocations, AllocationResult{
				AssignmentID:    assignment.ID,
				Amount:          alloc.Amount,
				LateFeeAccrued:  split.LateFeeAccrued,
				LateFeeAmount:   split.LateFeeAmount,
				PrincipalAmount: split.PrincipalAmount,
				Pending:         assignment.Pending(),
			})
		}
		return nil
	})
	if err != nil {
		// a failed receipt may legitimately be retried with the same key
		if req.IdempotencyKey != "" {
			if releaseErr := s.idempotency.Release(ctx, paymentIdempotencyKey(req.TenantID, req.IdempotencyKey)); releaseErr != nil {
				s.logger.Warn("failed to release idempotency key",
					zap.String("key", req.IdempotencyKey), zap.Error(releaseErr))
			}
		}
		return nil, err
	}

	s.logger.Info("payment recorded",
		zap.String("receipt_no", receiptNo),
		zap.String("student_id", req.StudentID.String()),
		zap.String("total", result.Total.String()),
		zap.Int("allocations", len(result.Allocations)))
	return result, nil
}

// ListPaymentsByStudent returns a student's payment history
func (s *PaymentService) ListPaymentsByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]fees.FeePayment, error) {
	return s.paymentRepo.FindByStudent(ctx, tenantID, studentID, filter)
}

// GetReceipt returns all payment rows sharing a receipt number
func (s *PaymentService) GetReceipt(ctx context.Context, tenantID uuid.UUID, receiptNo string) ([]fees.FeePayment, error) {
	payments, err := s.paymentRepo.FindByReceipt(ctx, tenantID, receiptNo)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	if len(payments) == 0 {
		return nil, shared.NewDomainError("RECEIPT_NOT_FOUND", "Receipt not found")
	}
	return payments, nil
}

func (s *PaymentService) validate(req PayRequest) error {
	switch req.Mode {
	case PayItemized, PayLump:
	default:
		return shared.NewDomainError("INVALID_PAYMENT_MODE", "Payment mode must be ITEMIZED or LUMP")
	}
	if req.Mode == PayLump && req.AssignmentID == uuid.Nil {
		return shared.NewDomainError("MISSING_ASSIGNMENT", "Lump payments must name the target assignment")
	}
	if len(req.Allocations) == 0 {
		return shared.NewDomainError("EMPTY_PAYMENT", "Payment must allocate to at least one assignment")
	}
	if !req.Method.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	seen := make(map[uuid.UUID]struct{}, len(req.Allocations))
	for _, alloc := range req.Allocations {
		if !alloc.Amount.IsPositive() {
			return shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
		}
		if _, ok := seen[alloc.AssignmentID]; ok {
			return shared.NewDomainError("DUPLICATE_ALLOCATION", "Each assignment may appear at most once per payment")
		}
		seen[alloc.AssignmentID] = struct{}{}
	}
	return nil
}

func paymentIdempotencyKey(tenantID uuid.UUID, key string) string {
	return fmt.Sprintf("payment:%s:%s", tenantID, key)
}

// newReceiptNo builds a receipt number like RCP-20260115-5D41402A
func newReceiptNo(paidAt time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("RCP-%s-%s", paidAt.Format("20060102"), suffix)
}
