package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
	"github.com/sims/backend/internal/infrastructure/persistence/models"
)

// GormFeePaymentRepository implements fees.FeePaymentRepository using GORM.
// Payment rows are append-only; there is no update path.
type GormFeePaymentRepository struct {
	db *gorm.DB
}

// NewGormFeePaymentRepository creates a new GormFeePaymentRepository
func NewGormFeePaymentRepository(db *gorm.DB) *GormFeePaymentRepository {
	return &GormFeePaymentRepository{db: db}
}

// Save appends a payment row
func (r *GormFeePaymentRepository) Save(ctx context.Context, payment *fees.FeePayment) error {
	model := models.FeePaymentModelFromDomain(payment)
	return dbFromContext(ctx, r.db).Create(model).Error
}

// FindByAssignment finds all payments recorded against an assignment,
// oldest first
func (r *GormFeePaymentRepository) FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fees.FeePayment, error) {
	var paymentModels []models.FeePaymentModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND fee_assignment_id = ?", tenantID, assignmentID).
		Order("paid_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

// FindByReceipt finds all payment rows that share a receipt number. A
// multi-assignment payment produces one row per assignment under the same
// receipt.
func (r *GormFeePaymentRepository) FindByReceipt(ctx context.Context, tenantID uuid.UUID, receiptNo string) ([]fees.FeePayment, error) {
	var paymentModels []models.FeePaymentModel
	if err := dbFromContext(ctx, r.db).
		Where("tenant_id = ? AND receipt_no = ?", tenantID, receiptNo).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

// FindByStudent finds payments for a student, newest first
func (r *GormFeePaymentRepository) FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]fees.FeePayment, error) {
	var paymentModels []models.FeePaymentModel
	query := dbFromContext(ctx, r.db).Model(&models.FeePaymentModel{}).
		Where("tenant_id = ? AND student_id = ?", tenantID, studentID)
	query = applySharedFilter(query, filter, "receipt_no ILIKE ?", FeePaymentSortFields)

	if err := query.Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	return toDomainPayments(paymentModels), nil
}

func toDomainPayments(paymentModels []models.FeePaymentModel) []fees.FeePayment {
	payments := make([]fees.FeePayment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = *model.ToDomain()
	}
	return payments
}

// Ensure GormFeePaymentRepository implements FeePaymentRepository
var _ fees.FeePaymentRepository = (*GormFeePaymentRepository)(nil)
