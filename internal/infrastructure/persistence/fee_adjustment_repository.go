package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/infrastructure/persistence/models"
)

// GormFeeAdjustmentRepository implements fees.FeeAdjustmentRepository using GORM.
// Adjustment rows are append-only; there is no update path.
type GormFeeAdjustmentRepository struct {
	db *gorm.DB
}

// NewGormFeeAdjustmentRepository creates a new GormFeeAdjustmentRepository
func NewGormFeeAdjustmentRepository(db *gorm.DB) *GormFeeAdjustmentRepository {
	return &GormFeeAdjustmentRepository{db: db}
}

// Save appends an adjustment row
func (r *GormFeeAdjustmentRepository) Save(ctx context.Context, adjustment *fees.FeeAdjustment) error {
	model := models.FeeAdjustmentModelFromDomain(adjustment)
	return dbFromContext(ctx, r.db).Create(model).Error
}

// FindByAssignment finds all adjustments recorded against an assignment,
// oldest first
func (r *GormFeeAdjustmentRepository) FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fees.FeeAdjustment, error) {
	var adjustmentModels []models.FeeAdjustmentModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND fee_assignment_id = ?", tenantID, assignmentID).
		Order("created_at ASC").
		Find(&adjustmentModels).Error; err != nil {
		return nil, err
	}
	adjustments := make([]fees.FeeAdjustment, len(adjustmentModels))
	for i, model := range adjustmentModels {
		adjustments[i] = *model.ToDomain()
	}
	return adjustments, nil
}

// Ensure GormFeeAdjustmentRepository implements FeeAdjustmentRepository
var _ fees.FeeAdjustmentRepository = (*GormFeeAdjustmentRepository)(nil)
