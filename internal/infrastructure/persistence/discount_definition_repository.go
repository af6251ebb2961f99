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

// GormDiscountDefinitionRepository implements fees.DiscountDefinitionRepository using GORM
type GormDiscountDefinitionRepository struct {
	db *gorm.DB
}

// NewGormDiscountDefinitionRepository creates a new GormDiscountDefinitionRepository
func NewGormDiscountDefinitionRepository(db *gorm.DB) *GormDiscountDefinitionRepository {
	return &GormDiscountDefinitionRepository{db: db}
}

// FindByID finds a discount definition by ID for a tenant. Returns (nil, nil)
// when no row exists.
func (r *GormDiscountDefinitionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.DiscountDefinition, error) {
	var model models.DiscountDefinitionModel
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

// FindAllForTenant finds all discount definitions for a tenant with filtering
func (r *GormDiscountDefinitionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.DiscountDefinition, error) {
	var definitionModels []models.DiscountDefinitionModel
	query := dbFromContext(ctx, r.db).Model(&models.DiscountDefinitionModel{}).
		Where("tenant_id = ?", tenantID)
	query = applySharedFilter(query, filter, "name ILIKE ?", DiscountSortFields)

	if err := query.Find(&definitionModels).Error; err != nil {
		return nil, err
	}
	definitions := make([]fees.DiscountDefinition, len(definitionModels))
	for i, model := range definitionModels {
		definitions[i] = *model.ToDomain()
	}
	return definitions, nil
}

// Save creates or updates a discount definition without a version check
func (r *GormDiscountDefinitionRepository) Save(ctx context.Context, definition *fees.DiscountDefinition) error {
	model := models.DiscountDefinitionModelFromDomain(definition)
	return dbFromContext(ctx, r.db).Save(model).Error
}

// SaveWithLock saves with optimistic locking
func (r *GormDiscountDefinitionRepository) SaveWithLock(ctx context.Context, definition *fees.DiscountDefinition) error {
	model := models.DiscountDefinitionModelFromDomain(definition)
	result := dbFromContext(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", definition.ID, definition.Version-1).
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

// Ensure GormDiscountDefinitionRepository implements DiscountDefinitionRepository
var _ fees.DiscountDefinitionRepository = (*GormDiscountDefinitionRepository)(nil)
