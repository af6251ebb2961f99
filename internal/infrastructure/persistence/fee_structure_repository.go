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

// GormFeeStructureRepository implements fees.FeeStructureRepository using GORM
type GormFeeStructureRepository struct {
	db *gorm.DB
}

// NewGormFeeStructureRepository creates a new GormFeeStructureRepository
func NewGormFeeStructureRepository(db *gorm.DB) *GormFeeStructureRepository {
	return &GormFeeStructureRepository{db: db}
}

// FindByID finds a fee structure by ID for a tenant. Returns (nil, nil)
// when no row exists.
func (r *GormFeeStructureRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeStructure, error) {
	var model models.FeeStructureModel
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

// FindAllForTenant finds all fee structures for a tenant with filtering
func (r *GormFeeStructureRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.FeeStructure, error) {
	var structureModels []models.FeeStructureModel
	query := dbFromContext(ctx, r.db).Model(&models.FeeStructureModel{}).
		Where("tenant_id = ?", tenantID)
	query = applySharedFilter(query, filter, "name ILIKE ?", FeeStructureSortFields)

	if err := query.Find(&structureModels).Error; err != nil {
		return nil, err
	}
	structures := make([]fees.FeeStructure, len(structureModels))
	for i, model := range structureModels {
		structures[i] = *model.ToDomain()
	}
	return structures, nil
}

// Save creates or updates a fee structure without a version check
func (r *GormFeeStructureRepository) Save(ctx context.Context, structure *fees.FeeStructure) error {
	model := models.FeeStructureModelFromDomain(structure)
	return dbFromContext(ctx, r.db).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormFeeStructureRepository) SaveWithLock(ctx context.Context, structure *fees.FeeStructure) error {
	model := models.FeeStructureModelFromDomain(structure)
	result := dbFromContext(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", structure.ID, structure.Version-1).
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

// CountForTenant counts fee structures for a tenant
func (r *GormFeeStructureRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := dbFromContext(ctx, r.db).
		Model(&models.FeeStructureModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// applySharedFilter applies the common search, pagination and ordering
// options. searchClause is the ILIKE clause the search term binds to, and
// sortFields is the whitelist the order-by column is checked against.
func applySharedFilter(query *gorm.DB, filter shared.Filter, searchClause string, sortFields map[string]bool) *gorm.DB {
	if filter.Search != "" {
		query = query.Where(searchClause, "%"+filter.Search+"%")
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, sortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)
	return query.Order(orderBy + " " + orderDir)
}

// Ensure GormFeeStructureRepository implements FeeStructureRepository
var _ fees.FeeStructureRepository = (*GormFeeStructureRepository)(nil)
