package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
	"github.com/sims/backend/internal/infrastructure/persistence/models"
)

// GormFundingArrangementRepository implements fees.FundingArrangementRepository using GORM
type GormFundingArrangementRepository struct {
	db *gorm.DB
}

// NewGormFundingArrangementRepository creates a new GormFundingArrangementRepository
func NewGormFundingArrangementRepository(db *gorm.DB) *GormFundingArrangementRepository {
	return &GormFundingArrangementRepository{db: db}
}

// FindByID finds a funding arrangement by ID for a tenant. Returns (nil, nil)
// when no row exists.
func (r *GormFundingArrangementRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.FundingArrangement, error) {
	var model models.FundingArrangementModel
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

// FindActiveForStudent finds the single active arrangement for a student in
// a session, or nil when none exists. At most one arrangement per student
// and session may be active at a time. An arrangement whose validity window
// has not started or has lapsed is treated as absent.
func (r *GormFundingArrangementRepository) FindActiveForStudent(ctx context.Context, tenantID, studentID, sessionID uuid.UUID) (*fees.FundingArrangement, error) {
	now := time.Now()
	var model models.FundingArrangementModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND student_id = ? AND session_id = ? AND active = ?",
			tenantID, studentID, sessionID, true).
		Where("valid_from IS NULL OR valid_from <= ?", now).
		Where("valid_to IS NULL OR valid_to >= ?", now).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant finds all funding arrangements for a tenant with filtering
func (r *GormFundingArrangementRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.FundingArrangement, error) {
	var arrangementModels []models.FundingArrangementModel
	query := dbFromContext(ctx, r.db).Model(&models.FundingArrangementModel{}).
		Where("tenant_id = ?", tenantID)
	query = applySharedFilter(query, filter, "sponsor_name ILIKE ?", FundingSortFields)

	if err := query.Find(&arrangementModels).Error; err != nil {
		return nil, err
	}
	arrangements := make([]fees.FundingArrangement, len(arrangementModels))
	for i, model := range arrangementModels {
		arrangements[i] = *model.ToDomain()
	}
	return arrangements, nil
}

// Save creates or updates a funding arrangement without a version check.
// The one-active-per-student-and-session partial index surfaces as
// shared.ErrDuplicateKey.
func (r *GormFundingArrangementRepository) Save(ctx context.Context, arrangement *fees.FundingArrangement) error {
	model := models.FundingArrangementModelFromDomain(arrangement)
	if err := dbFromContext(ctx, r.db).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrDuplicateKey
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking
func (r *GormFundingArrangementRepository) SaveWithLock(ctx context.Context, arrangement *fees.FundingArrangement) error {
	model := models.FundingArrangementModelFromDomain(arrangement)
	result := dbFromContext(ctx, r.db).
		Model(model).
		Where("id = ? AND version = ?", arrangement.ID, arrangement.Version-1).
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

// Ensure GormFundingArrangementRepository implements FundingArrangementRepository
var _ fees.FundingArrangementRepository = (*GormFundingArrangementRepository)(nil)
