package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
	"github.com/sims/backend/internal/infrastructure/persistence/models"
)

// GormFeeAssignmentRepository implements fees.FeeAssignmentRepository using GORM
type GormFeeAssignmentRepository struct {
	db *gorm.DB
}

// NewGormFeeAssignmentRepository creates a new GormFeeAssignmentRepository
func NewGormFeeAssignmentRepository(db *gorm.DB) *GormFeeAssignmentRepository {
	return &GormFeeAssignmentRepository{db: db}
}

// FindByID finds an assignment by ID for a tenant. Returns (nil, nil) when
// no row exists; callers translate that into their own not-found error.
func (r *GormFeeAssignmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeAssignment, error) {
	var model models.FeeAssignmentModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByStudentAndSession finds all assignments for a student in a session
func (r *GormFeeAssignmentRepository) FindByStudentAndSession(ctx context.Context, tenantID, studentID, sessionID uuid.UUID) ([]fees.FeeAssignment, error) {
	var assignmentModels []models.FeeAssignmentModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND student_id = ? AND session_id = ?", tenantID, studentID, sessionID).
		Order("created_at ASC").
		Find(&assignmentModels).Error; err != nil {
		return nil, err
	}
	assignments := make([]fees.FeeAssignment, len(assignmentModels))
	for i, model := range assignmentModels {
		assignments[i] = *model.ToDomain()
	}
	return assignments, nil
}

// FindAllForTenant finds assignments for a tenant with filtering
func (r *GormFeeAssignmentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fees.FeeAssignmentFilter) ([]fees.FeeAssignment, error) {
	var assignmentModels []models.FeeAssignmentModel
	query := dbFromContext(ctx, r.db).Model(&models.FeeAssignmentModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyFilter(query, filter)

	if err := query.Find(&assignmentModels).Error; err != nil {
		return nil, err
	}
	assignments := make([]fees.FeeAssignment, len(assignmentModels))
	for i, model := range assignmentModels {
		assignments[i] = *model.ToDomain()
	}
	return assignments, nil
}

// ExistsForStructure checks whether the student already has an assignment
// from this structure in this session
func (r *GormFeeAssignmentRepository) ExistsForStructure(ctx context.Context, tenantID, studentID, sessionID, structureID uuid.UUID) (bool, error) {
	var count int64
	if err := dbFromContext(ctx, r.db).
		Model(&models.FeeAssignmentModel{}).
		Where("tenant_id = ? AND student_id = ? AND session_id = ? AND fee_structure_id = ?",
			tenantID, studentID, sessionID, structureID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save creates or updates an assignment without a version check. A unique
// index rejects a second assignment of the same structure to the same
// student and session; that comes back as shared.ErrDuplicateKey.
func (r *GormFeeAssignmentRepository) Save(ctx context.Context, assignment *fees.FeeAssignment) error {
	model := models.FeeAssignmentModelFromDomain(assignment)
	if err := dbFromContext(ctx, r.db).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking. The WHERE clause matches the
// version the aggregate was loaded at (current version minus one, because
// the domain increments before saving); zero rows affected means another
// transaction got there first.
func (r *GormFeeAssignmentRepository) SaveWithLock(ctx context.Context, assignment *fees.FeeAssignment) error {
	model := models.FeeAssignmentModelFromDomain(assignment)
	result := dbFromContext(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", assignment.ID, assignment.Version-1).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// CountForTenant counts assignments for a tenant with optional filters
func (r *GormFeeAssignmentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter fees.FeeAssignmentFilter) (int64, error) {
	var count int64
	query := dbFromContext(ctx, r.db).Model(&models.FeeAssignmentModel{}).
		Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applyFilter applies filter options to the query
func (r *GormFeeAssignmentRepository) applyFilter(query *gorm.DB, filter fees.FeeAssignmentFilter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, FeeAssignmentSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormFeeAssignmentRepository) applyFilterWithoutPagination(query *gorm.DB, filter fees.FeeAssignmentFilter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("structure_name ILIKE ?", searchPattern)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.SessionID != nil {
		query = query.Where("session_id = ?", *filter.SessionID)
	}
	if filter.FeeStructureID != nil {
		query = query.Where("fee_structure_id = ?", *filter.FeeStructureID)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if filter.Unsettled != nil && *filter.Unsettled {
		// Pending balance computed from the ledger columns, floored at zero
		// by the comparison itself.
		query = query.Where(
			"(amount + late_fee_accrued - total_discount_amount - late_fee_waived - principal_paid - late_fee_paid) > 0")
	}

	return query
}

// Ensure GormFeeAssignmentRepository implements FeeAssignmentRepository
var _ fees.FeeAssignmentRepository = (*GormFeeAssignmentRepository)(nil)
