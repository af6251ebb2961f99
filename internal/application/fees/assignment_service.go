package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

// AssignmentService handles the fee ledger use cases: assigning fees,
// applying discounts, waiving late fees and reading pending balances.
type AssignmentService struct {
	assignmentRepo fees.FeeAssignmentRepository
	structureRepo  fees.FeeStructureRepository
	discountRepo   fees.DiscountDefinitionRepository
	fundingRepo    fees.FundingArrangementRepository
	adjustmentRepo fees.FeeAdjustmentRepository
	txManager      shared.TxManager
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	assignmentRepo fees.FeeAssignmentRepository,
	structureRepo fees.FeeStructureRepository,
	discountRepo fees.DiscountDefinitionRepository,
	fundingRepo fees.FundingArrangementRepository,
	adjustmentRepo fees.FeeAdjustmentRepository,
	txManager shared.TxManager,
) *AssignmentService {
	return &AssignmentService{
		assignmentRepo: assignmentRepo,
		structureRepo:  structureRepo,
		discountRepo:   discountRepo,
		fundingRepo:    fundingRepo,
		adjustmentRepo: adjustmentRepo,
		txManager:      txManager,
	}
}

// AssignFeeRequest represents a request to assign a fee to a student
type AssignFeeRequest struct {
	TenantID       uuid.UUID
	StudentID      uuid.UUID
	SessionID      uuid.UUID
	FeeStructureID uuid.UUID
}

// AssignFee creates a fee assignment for a student from a structure template.
// The amount, due date and late-fee policy are value-copied, and any active
// funding arrangement for the student is snapshotted immediately.
func (s *AssignmentService) AssignFee(ctx context.Context, req AssignFeeRequest) (*fees.FeeAssignment, error) {
	structure, err := s.structureRepo.FindByID(ctx, req.TenantID, req.FeeStructureID)
	if err != nil {
		return nil, fmt.Errorf("failed to get fee structure: %w", err)
	}
	if structure == nil {
		return nil, shared.NewDomainError("STRUCTURE_NOT_FOUND", "Fee structure not found")
	}

	exists, err := s.assignmentRepo.ExistsForStructure(ctx, req.TenantID, req.StudentID, req.SessionID, req.FeeStructureID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing assignments: %w", err)
	}
	if exists {
		return nil, shared.NewDomainError("DUPLICATE_ASSIGNMENT", "Student already has this fee assigned for the session")
	}

	assignment, err := fees.NewFeeAssignment(req.TenantID, req.StudentID, req.SessionID, structure)
	if err != nil {
		return nil, err
	}

	arrangement, err := s.fundingRepo.FindActiveForStudent(ctx, req.TenantID, req.StudentID, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get funding arrangement: %w", err)
	}
	assignment.RecalculateFunding(arrangement)

	if err := s.assignmentRepo.Save(ctx, assignment); err != nil {
		// two racing requests can both pass the existence check; the unique
		// index catches the loser
		if errors.Is(err, shared.ErrDuplicateKey) {
			return nil, shared.NewDomainError("DUPLICATE_ASSIGNMENT", "Student already has this fee assigned for the session")
		}
		return nil, fmt.Errorf("failed to save fee assignment: %w", err)
	}
	return assignment, nil
}

// ApplyDiscountRequest represents a request to apply a discount to an assignment
type ApplyDiscountRequest struct {
	TenantID     uuid.UUID
	AssignmentID uuid.UUID
	DiscountID   uuid.UUID
	Reason       string
	Actor        string
}

// ApplyDiscountResult reports the realized discount
type ApplyDiscountResult struct {
	Assignment    *fees.FeeAssignment `json:"assignment"`
	AppliedAmount decimal.Decimal     `json:"applied_amount"`
}

// ApplyDiscount applies a named discount to an assignment, recomputes the
// sponsor coverage against the shrunken base and writes the audit row. All
// of it happens in one transaction guarded by the assignment version.
func (s *AssignmentService) ApplyDiscount(ctx context.Context, req ApplyDiscountRequest) (*ApplyDiscountResult, error) {
	var result *ApplyDiscountResult

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		assignment, err := s.findAssignment(ctx, req.TenantID, req.AssignmentID)
		if err != nil {
			return err
		}

		definition, err := s.discountRepo.FindByID(ctx, req.TenantID, req.DiscountID)
		if err != nil {
			return fmt.Errorf("failed to get discount definition: %w", err)
		}
		if definition == nil {
			return shared.NewDomainError("DISCOUNT_NOT_FOUND", "Discount definition not found")
		}

		applied, err := assignment.ApplyDiscount(definition)
		if err != nil {
			return err
		}

		arrangement, err := s.fundingRepo.FindActiveForStudent(ctx, req.TenantID, assignment.StudentID, assignment.SessionID)
		if err != nil {
			return fmt.Errorf("failed to get funding arrangement: %w", err)
		}
		assignment.RecalculateFunding(arrangement)

		// the recomputed coverage must still leave non-negative principal
		if assignment.PendingPrincipal().IsNegative() {
			return shared.NewDomainError("DISCOUNT_EXCEEDS_PRINCIPAL",
				"Discount would drive the pending principal negative after funding recalculation")
		}

		if err := s.assignmentRepo.SaveWithLock(ctx, assignment); err != nil {
			return err
		}

		adjustment := fees.NewDiscountAdjustment(req.TenantID, assignment.ID, applied, definition, req.Reason, req.Actor)
		if err := s.adjustmentRepo.Save(ctx, adjustment); err != nil {
			return fmt.Errorf("failed to save adjustment: %w", err)
		}

		result = &ApplyDiscountResult{Assignment: assignment, AppliedAmount: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WaiveLateFeeRequest represents a request to waive outstanding late fee
type WaiveLateFeeRequest struct {
	TenantID     uuid.UUID
	AssignmentID uuid.UUID
	Amount       decimal.Decimal
	Reason       string
	Actor        string
}

// WaiveLateFee forgives part or all of an assignment's outstanding late fee
// and records the waiver in the adjustment log.
func (s *AssignmentService) WaiveLateFee(ctx context.Context, req WaiveLateFeeRequest) (*fees.FeeAssignment, error) {
	var assignment *fees.FeeAssignment

	err := s.txManager.Do(ctx, func(ctx context.Context) error {
		var err error
		assignment, err = s.findAssignment(ctx, req.TenantID, req.AssignmentID)
		if err != nil {
			return err
		}

		if err := assignment.WaiveLateFee(req.Amount); err != nil {
			return err
		}
		if err := s.assignmentRepo.SaveWithLock(ctx, assignment); err != nil {
			return err
		}

		adjustment := fees.NewWaiverAdjustment(req.TenantID, assignment.ID, req.Amount, req.Reason, req.Actor)
		if err := s.adjustmentRepo.Save(ctx, adjustment); err != nil {
			return fmt.Errorf("failed to save adjustment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// PendingBalanceItem is the pending figure of one assignment as of a date
type PendingBalanceItem struct {
	AssignmentID  uuid.UUID       `json:"assignment_id"`
	StructureName string          `json:"structure_name"`
	Pending       decimal.Decimal `json:"pending"`
}

// PendingBalanceResult is a student's pending balance across a session
type PendingBalanceResult struct {
	StudentID uuid.UUID            `json:"student_id"`
	SessionID uuid.UUID            `json:"session_id"`
	AsOf      time.Time            `json:"as_of"`
	Total     decimal.Decimal      `json:"total"`
	Items     []PendingBalanceItem `json:"items"`
}

// GetPendingBalance reports what a student owes across all active assignments
// in a session as of a reference date. Late fee that would accrue by that
// date is included in the preview but nothing is written: accrual is
// persisted only when a payment comes in.
func (s *AssignmentService) GetPendingBalance(ctx context.Context, tenantID, studentID, sessionID uuid.UUID, asOf time.Time) (*PendingBalanceResult, error) {
	assignments, err := s.assignmentRepo.FindByStudentAndSession(ctx, tenantID, studentID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	result := &PendingBalanceResult{
		StudentID: studentID,
		SessionID: sessionID,
		AsOf:      asOf,
		Total:     decimal.Zero,
		Items:     make([]PendingBalanceItem, 0, len(assignments)),
	}
	for i := range assignments {
		a := &assignments[i]
		if !a.Active {
			continue
		}
		pending := a.PendingAsOf(asOf)
		result.Items = append(result.Items, PendingBalanceItem{
			AssignmentID:  a.ID,
			StructureName: a.StructureName,
			Pending:       pending,
		})
		result.Total = result.Total.Add(pending)
	}
	return result, nil
}

// GetAssignment fetches one assignment
func (s *AssignmentService) GetAssignment(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeAssignment, error) {
	return s.findAssignment(ctx, tenantID, id)
}

// ListAssignments lists assignments for a tenant with filtering
func (s *AssignmentService) ListAssignments(ctx context.Context, tenantID uuid.UUID, filter fees.FeeAssignmentFilter) (*shared.Paginated[fees.FeeAssignment], error) {
	assignments, err := s.assignmentRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	total, err := s.assignmentRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	result := shared.NewPaginated(assignments, total, filter.Page, filter.PageSize)
	return &result, nil
}

// ListAdjustments returns the audit trail of an assignment
func (s *AssignmentService) ListAdjustments(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fees.FeeAdjustment, error) {
	if _, err := s.findAssignment(ctx, tenantID, assignmentID); err != nil {
		return nil, err
	}
	return s.adjustmentRepo.FindByAssignment(ctx, tenantID, assignmentID)
}

// DeactivateAssignment excludes an assignment from billing (withdrawal)
func (s *AssignmentService) DeactivateAssignment(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeAssignment, error) {
	assignment, err := s.findAssignment(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	assignment.Deactivate()
	if err := s.assignmentRepo.SaveWithLock(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) findAssignment(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeAssignment, error) {
	assignment, err := s.assignmentRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if assignment == nil {
		return nil, shared.NewDomainError("ASSIGNMENT_NOT_FOUND", "Fee assignment not found")
	}
	return assignment, nil
}
