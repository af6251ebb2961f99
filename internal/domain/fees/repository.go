package fees

import (
	"context"

	"github.com/google/uuid"

	"github.com/sims/backend/internal/domain/shared"
)

// FeeAssignmentFilter defines filtering options for assignment queries
type FeeAssignmentFilter struct {
	shared.Filter
	StudentID      *uuid.UUID
	SessionID      *uuid.UUID
	FeeStructureID *uuid.UUID
	Active         *bool
	Unsettled      *bool // only assignments with a pending balance
}

// FeeAssignmentRepository defines the interface for fee assignment persistence
type FeeAssignmentRepository interface {
	// FindByID finds an assignment by ID for a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FeeAssignment, error)

	// FindByStudentAndSession finds all assignments for a student in a session
	FindByStudentAndSession(ctx context.Context, tenantID, studentID, sessionID uuid.UUID) ([]FeeAssignment, error)

	// FindAllForTenant finds assignments for a tenant with filtering
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter FeeAssignmentFilter) ([]FeeAssignment, error)

	// ExistsForStructure reports whether the student already has an assignment
	// from this structure in this session
	ExistsForStructure(ctx context.Context, tenantID, studentID, sessionID, structureID uuid.UUID) (bool, error)

	// Save creates or updates an assignment without a version check
	Save(ctx context.Context, assignment *FeeAssignment) error

	// SaveWithLock saves with optimistic locking (version check); returns
	// shared.ErrConcurrencyConflict when the stored version has moved on
	SaveWithLock(ctx context.Context, assignment *FeeAssignment) error

	// CountForTenant counts assignments for a tenant with optional filters
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter FeeAssignmentFilter) (int64, error)
}

// FeeStructureRepository defines the interface for fee structure persistence
type FeeStructureRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FeeStructure, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]FeeStructure, error)
	Save(ctx context.Context, structure *FeeStructure) error
	SaveWithLock(ctx context.Context, structure *FeeStructure) error
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// DiscountDefinitionRepository defines the interface for discount definition persistence
type DiscountDefinitionRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*DiscountDefinition, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]DiscountDefinition, error)
	Save(ctx context.Context, definition *DiscountDefinition) error
	SaveWithLock(ctx context.Context, definition *DiscountDefinition) error
}

// FundingArrangementRepository defines the interface for funding arrangement persistence
type FundingArrangementRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*FundingArrangement, error)

	// FindActiveForStudent finds the single active arrangement for a student
	// in a session, or nil when none exists
	FindActiveForStudent(ctx context.Context, tenantID, studentID, sessionID uuid.UUID) (*FundingArrangement, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]FundingArrangement, error)
	Save(ctx context.Context, arrangement *FundingArrangement) error
	SaveWithLock(ctx context.Context, arrangement *FundingArrangement) error
}

// FeeAdjustmentRepository defines the interface for the append-only adjustment log
type FeeAdjustmentRepository interface {
	Save(ctx context.Context, adjustment *FeeAdjustment) error
	FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]FeeAdjustment, error)
}

// FeePaymentRepository defines the interface for the append-only payment log
type FeePaymentRepository interface {
	Save(ctx context.Context, payment *FeePayment) error
	FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]FeePayment, error)
	FindByReceipt(ctx context.Context, tenantID uuid.UUID, receiptNo string) ([]FeePayment, error)
	FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]FeePayment, error)
}
