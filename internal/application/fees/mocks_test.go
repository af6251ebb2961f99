package fees

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockFeeAssignmentRepository struct {
	mock.Mock
}

func (m *MockFeeAssignmentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeAssignment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.FeeAssignment), args.Error(1)
}

func (m *MockFeeAssignmentRepository) FindByStudentAndSession(ctx context.Context, tenantID, studentID, sessionID uuid.UUID) ([]fees.FeeAssignment, error) {
	args := m.Called(ctx, tenantID, studentID, sessionID)
	return args.Get(0).([]fees.FeeAssignment), args.Error(1)
}

func (m *MockFeeAssignmentRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter fees.FeeAssignmentFilter) ([]fees.FeeAssignment, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fees.FeeAssignment), args.Error(1)
}

func (m *MockFeeAssignmentRepository) ExistsForStructure(ctx context.Context, tenantID, studentID, sessionID, structureID uuid.UUID) (bool, error) {
	args := m.Called(ctx, tenantID, studentID, sessionID, structureID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFeeAssignmentRepository) Save(ctx context.Context, assignment *fees.FeeAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockFeeAssignmentRepository) SaveWithLock(ctx context.Context, assignment *fees.FeeAssignment) error {
	args := m.Called(ctx, assignment)
	return args.Error(0)
}

func (m *MockFeeAssignmentRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter fees.FeeAssignmentFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockFeeStructureRepository struct {
	mock.Mock
}

func (m *MockFeeStructureRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeStructure, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.FeeStructure, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fees.FeeStructure), args.Error(1)
}

func (m *MockFeeStructureRepository) Save(ctx context.Context, structure *fees.FeeStructure) error {
	args := m.Called(ctx, structure)
	return args.Error(0)
}

func (m *MockFeeStructureRepository) SaveWithLock(ctx context.Context, structure *fees.FeeStructure) error {
	args := m.Called(ctx, structure)
	return args.Error(0)
}

func (m *MockFeeStructureRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

type MockDiscountDefinitionRepository struct {
	mock.Mock
}

func (m *MockDiscountDefinitionRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.DiscountDefinition, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.DiscountDefinition), args.Error(1)
}

func (m *MockDiscountDefinitionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.DiscountDefinition, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fees.DiscountDefinition), args.Error(1)
}

func (m *MockDiscountDefinitionRepository) Save(ctx context.Context, definition *fees.DiscountDefinition) error {
	args := m.Called(ctx, definition)
	return args.Error(0)
}

func (m *MockDiscountDefinitionRepository) SaveWithLock(ctx context.Context, definition *fees.DiscountDefinition) error {
	args := m.Called(ctx, definition)
	return args.Error(0)
}

type MockFundingArrangementRepository struct {
	mock.Mock
}

func (m *MockFundingArrangementRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fees.FundingArrangement, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.FundingArrangement), args.Error(1)
}

func (m *MockFundingArrangementRepository) FindActiveForStudent(ctx context.Context, tenantID, studentID, sessionID uuid.UUID) (*fees.FundingArrangement, error) {
	args := m.Called(ctx, tenantID, studentID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fees.FundingArrangement), args.Error(1)
}

func (m *MockFundingArrangementRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.FundingArrangement, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]fees.FundingArrangement), args.Error(1)
}

func (m *MockFundingArrangementRepository) Save(ctx context.Context, arrangement *fees.FundingArrangement) error {
	args := m.Called(ctx, arrangement)
	return args.Error(0)
}

func (m *MockFundingArrangementRepository) SaveWithLock(ctx context.Context, arrangement *fees.FundingArrangement) error {
	args := m.Called(ctx, arrangement)
	return args.Error(0)
}

type MockFeeAdjustmentRepository struct {
	mock.Mock
}

func (m *MockFeeAdjustmentRepository) Save(ctx context.Context, adjustment *fees.FeeAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

func (m *MockFeeAdjustmentRepository) FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fees.FeeAdjustment, error) {
	args := m.Called(ctx, tenantID, assignmentID)
	return args.Get(0).([]fees.FeeAdjustment), args.Error(1)
}

type MockFeePaymentRepository struct {
	mock.Mock
}

func (m *MockFeePaymentRepository) Save(ctx context.Context, payment *fees.FeePayment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockFeePaymentRepository) FindByAssignment(ctx context.Context, tenantID, assignmentID uuid.UUID) ([]fees.FeePayment, error) {
	args := m.Called(ctx, tenantID, assignmentID)
	return args.Get(0).([]fees.FeePayment), args.Error(1)
}

func (m *MockFeePaymentRepository) FindByReceipt(ctx context.Context, tenantID uuid.UUID, receiptNo string) ([]fees.FeePayment, error) {
	args := m.Called(ctx, tenantID, receiptNo)
	return args.Get(0).([]fees.FeePayment), args.Error(1)
}

func (m *MockFeePaymentRepository) FindByStudent(ctx context.Context, tenantID, studentID uuid.UUID, filter shared.Filter) ([]fees.FeePayment, error) {
	args := m.Called(ctx, tenantID, studentID, filter)
	return args.Get(0).([]fees.FeePayment), args.Error(1)
}

// =============================================================================
// Test Doubles
// =============================================================================

// passthroughTxManager runs the function directly, no transaction
type passthroughTxManager struct{}

func (passthroughTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeIdempotencyStore is an in-memory claim set
type fakeIdempotencyStore struct {
	claimed map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{claimed: make(map[string]bool)}
}

func (f *fakeIdempotencyStore) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	delete(f.claimed, key)
	return nil
}

func (f *fakeIdempotencyStore) Close() error { return nil }
