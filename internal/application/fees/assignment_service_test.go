package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func assertDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

type assignmentServiceMocks struct {
	assignmentRepo *MockFeeAssignmentRepository
	structureRepo  *MockFeeStructureRepository
	discountRepo   *MockDiscountDefinitionRepository
	fundingRepo    *MockFundingArrangementRepository
	adjustmentRepo *MockFeeAdjustmentRepository
}

func newAssignmentService() (*AssignmentService, *assignmentServiceMocks) {
	m := &assignmentServiceMocks{
		assignmentRepo: new(MockFeeAssignmentRepository),
		structureRepo:  new(MockFeeStructureRepository),
		discountRepo:   new(MockDiscountDefinitionRepository),
		fundingRepo:    new(MockFundingArrangementRepository),
		adjustmentRepo: new(MockFeeAdjustmentRepository),
	}
	svc := NewAssignmentService(m.assignmentRepo, m.structureRepo, m.discountRepo,
		m.fundingRepo, m.adjustmentRepo, passthroughTxManager{})
	return svc, m
}

func newTestStructure(t *testing.T, tenantID uuid.UUID, amount string) *fees.FeeStructure {
	t.Helper()
	s, err := fees.NewFeeStructure(tenantID, "Tuition Term 1", dec(amount), nil, fees.NoLateFee())
	require.NoError(t, err)
	return s
}

func newTestAssignment(t *testing.T, tenantID uuid.UUID, amount string) *fees.FeeAssignment {
	t.Helper()
	a, err := fees.NewFeeAssignment(tenantID, uuid.New(), uuid.New(), newTestStructure(t, tenantID, amount))
	require.NoError(t, err)
	return a
}

// ============================================
// AssignFee Tests
// ============================================

func TestAssignmentService_AssignFee(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID, studentID, sessionID := uuid.New(), uuid.New(), uuid.New()
	structure := newTestStructure(t, tenantID, "1000")

	m.structureRepo.On("FindByID", mock.Anything, tenantID, structure.ID).Return(structure, nil)
	m.assignmentRepo.On("ExistsForStructure", mock.Anything, tenantID, studentID, sessionID, structure.ID).Return(false, nil)
	m.fundingRepo.On("FindActiveForStudent", mock.Anything, tenantID, studentID, sessionID).Return(nil, nil)
	m.assignmentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeeAssignment")).Return(nil)

	assignment, err := svc.AssignFee(context.Background(), AssignFeeRequest{
		TenantID: tenantID, StudentID: studentID, SessionID: sessionID, FeeStructureID: structure.ID,
	})
	require.NoError(t, err)

	assert.True(t, dec("1000").Equal(assignment.Amount))
	assert.Equal(t, studentID, assignment.StudentID)
	m.assignmentRepo.AssertExpectations(t)
}

func TestAssignmentService_AssignFee_SnapshotsFunding(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID, studentID, sessionID := uuid.New(), uuid.New(), uuid.New()
	structure := newTestStructure(t, tenantID, "1000")

	arrangement, err := fees.NewFundingArrangement(tenantID, studentID, sessionID, "Education Trust",
		fees.CoveragePartial, fees.CoveragePercent, dec("40"), nil, nil)
	require.NoError(t, err)

	m.structureRepo.On("FindByID", mock.Anything, tenantID, structure.ID).Return(structure, nil)
	m.assignmentRepo.On("ExistsForStructure", mock.Anything, tenantID, studentID, sessionID, structure.ID).Return(false, nil)
	m.fundingRepo.On("FindActiveForStudent", mock.Anything, tenantID, studentID, sessionID).Return(arrangement, nil)
	m.assignmentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeeAssignment")).Return(nil)

	assignment, err := svc.AssignFee(context.Background(), AssignFeeRequest{
		TenantID: tenantID, StudentID: studentID, SessionID: sessionID, FeeStructureID: structure.ID,
	})
	require.NoError(t, err)
	assert.True(t, dec("400").Equal(assignment.SponsorCoveredAmount))
}

func TestAssignmentService_AssignFee_Duplicate(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID, studentID, sessionID := uuid.New(), uuid.New(), uuid.New()
	structure := newTestStructure(t, tenantID, "1000")

	m.structureRepo.On("FindByID", mock.Anything, tenantID, structure.ID).Return(structure, nil)
	m.assignmentRepo.On("ExistsForStructure", mock.Anything, tenantID, studentID, sessionID, structure.ID).Return(true, nil)

	_, err := svc.AssignFee(context.Background(), AssignFeeRequest{
		TenantID: tenantID, StudentID: studentID, SessionID: sessionID, FeeStructureID: structure.ID,
	})
	assertDomainErrorCode(t, err, "DUPLICATE_ASSIGNMENT")
	m.assignmentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAssignmentService_AssignFee_RaceLoserGetsDuplicateCode(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID, studentID, sessionID := uuid.New(), uuid.New(), uuid.New()
	structure := newTestStructure(t, tenantID, "1000")

	// the existence check passes, but the unique index rejects the insert
	m.structureRepo.On("FindByID", mock.Anything, tenantID, structure.ID).Return(structure, nil)
	m.assignmentRepo.On("ExistsForStructure", mock.Anything, tenantID, studentID, sessionID, structure.ID).Return(false, nil)
	m.fundingRepo.On("FindActiveForStudent", mock.Anything, tenantID, studentID, sessionID).Return(nil, nil)
	m.assignmentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeeAssignment")).Return(shared.ErrDuplicateKey)

	_, err := svc.AssignFee(context.Background(), AssignFeeRequest{
		TenantID: tenantID, StudentID: studentID, SessionID: sessionID, FeeStructureID: structure.ID,
	})
	assertDomainErrorCode(t, err, "DUPLICATE_ASSIGNMENT")
}

func TestAssignmentService_AssignFee_StructureNotFound(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	structureID := uuid.New()

	m.structureRepo.On("FindByID", mock.Anything, tenantID, structureID).Return(nil, nil)

	_, err := svc.AssignFee(context.Background(), AssignFeeRequest{
		TenantID: tenantID, StudentID: uuid.New(), SessionID: uuid.New(), FeeStructureID: structureID,
	})
	assertDomainErrorCode(t, err, "STRUCTURE_NOT_FOUND")
}

// ============================================
// ApplyDiscount Tests
// ============================================

func TestAssignmentService_ApplyDiscount(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	definition, err := fees.NewDiscountDefinition(tenantID, "Sibling discount", fees.DiscountFlat, dec("150"))
	require.NoError(t, err)

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.discountRepo.On("FindByID", mock.Anything, tenantID, definition.ID).Return(definition, nil)
	m.fundingRepo.On("FindActiveForStudent", mock.Anything, tenantID, assignment.StudentID, assignment.SessionID).Return(nil, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.adjustmentRepo.On("Save", mock.Anything, mock.MatchedBy(func(adj *fees.FeeAdjustment) bool {
		return adj.Kind == fees.AdjustmentDiscount && adj.Amount.Equal(dec("150")) &&
			adj.DiscountName == "Sibling discount" &&
			adj.Reason == "second child enrolled" && adj.Actor == "bursar-01"
	})).Return(nil)

	result, err := svc.ApplyDiscount(context.Background(), ApplyDiscountRequest{
		TenantID: tenantID, AssignmentID: assignment.ID, DiscountID: definition.ID,
		Reason: "second child enrolled", Actor: "bursar-01",
	})
	require.NoError(t, err)

	assert.True(t, dec("150").Equal(result.AppliedAmount))
	assert.True(t, dec("850").Equal(result.Assignment.Pending()))
	m.adjustmentRepo.AssertExpectations(t)
}

func TestAssignmentService_ApplyDiscount_RecomputesFunding(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	definition, err := fees.NewDiscountDefinition(tenantID, "Merit scholarship", fees.DiscountPercentage, dec("20"))
	require.NoError(t, err)
	arrangement, err := fees.NewFundingArrangement(tenantID, assignment.StudentID, assignment.SessionID, "Education Trust",
		fees.CoveragePartial, fees.CoveragePercent, dec("50"), nil, nil)
	require.NoError(t, err)

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.discountRepo.On("FindByID", mock.Anything, tenantID, definition.ID).Return(definition, nil)
	m.fundingRepo.On("FindActiveForStudent", mock.Anything, tenantID, assignment.StudentID, assignment.SessionID).Return(arrangement, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.adjustmentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeeAdjustment")).Return(nil)

	result, err := svc.ApplyDiscount(context.Background(), ApplyDiscountRequest{
		TenantID: tenantID, AssignmentID: assignment.ID, DiscountID: definition.ID,
	})
	require.NoError(t, err)

	// 20% discount on 1000, sponsor covers 50% of the remaining 800
	assert.True(t, dec("200").Equal(result.AppliedAmount))
	assert.True(t, dec("400").Equal(result.Assignment.SponsorCoveredAmount))
	assert.True(t, dec("400").Equal(result.Assignment.PendingPrincipal()))
}

func TestAssignmentService_ApplyDiscount_FlatExceedsPrincipal(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")
	assignment.PrincipalPaid = dec("800")

	definition, err := fees.NewDiscountDefinition(tenantID, "Hardship grant", fees.DiscountFlat, dec("300"))
	require.NoError(t, err)

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.discountRepo.On("FindByID", mock.Anything, tenantID, definition.ID).Return(definition, nil)

	_, err = svc.ApplyDiscount(context.Background(), ApplyDiscountRequest{
		TenantID: tenantID, AssignmentID: assignment.ID, DiscountID: definition.ID,
	})
	assertDomainErrorCode(t, err, "DISCOUNT_EXCEEDS_PRINCIPAL")
	m.assignmentRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	m.adjustmentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAssignmentService_ApplyDiscount_ConcurrencyConflictPropagates(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	definition, err := fees.NewDiscountDefinition(tenantID, "Sibling discount", fees.DiscountFlat, dec("100"))
	require.NoError(t, err)

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.discountRepo.On("FindByID", mock.Anything, tenantID, definition.ID).Return(definition, nil)
	m.fundingRepo.On("FindActiveForStudent", mock.Anything, tenantID, assignment.StudentID, assignment.SessionID).Return(nil, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(shared.ErrConcurrencyConflict)

	_, err = svc.ApplyDiscount(context.Background(), ApplyDiscountRequest{
		TenantID: tenantID, AssignmentID: assignment.ID, DiscountID: definition.ID,
	})
	assertDomainErrorCode(t, err, "CONCURRENCY_CONFLICT")
	m.adjustmentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// ============================================
// WaiveLateFee Tests
// ============================================

func TestAssignmentService_WaiveLateFee(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")
	assignment.LateFeeAccrued = dec("80")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.adjustmentRepo.On("Save", mock.Anything, mock.MatchedBy(func(adj *fees.FeeAdjustment) bool {
		return adj.Kind == fees.AdjustmentLateFeeWaiver && adj.Amount.Equal(dec("50")) &&
			adj.Reason == "sibling hardship" && adj.Actor == "head-teacher"
	})).Return(nil)

	updated, err := svc.WaiveLateFee(context.Background(), WaiveLateFeeRequest{
		TenantID: tenantID, AssignmentID: assignment.ID, Amount: dec("50"), Reason: "sibling hardship", Actor: "head-teacher",
	})
	require.NoError(t, err)
	assert.True(t, dec("50").Equal(updated.LateFeeWaived))
	m.adjustmentRepo.AssertExpectations(t)
}

func TestAssignmentService_WaiveLateFee_ExceedsOutstanding(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")
	assignment.LateFeeAccrued = dec("30")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)

	_, err := svc.WaiveLateFee(context.Background(), WaiveLateFeeRequest{
		TenantID: tenantID, AssignmentID: assignment.ID, Amount: dec("31"),
	})
	assertDomainErrorCode(t, err, "WAIVER_EXCEEDS_OUTSTANDING")
	m.assignmentRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

// ============================================
// GetPendingBalance Tests
// ============================================

func TestAssignmentService_GetPendingBalance(t *testing.T) {
	svc, m := newAssignmentService()
	tenantID, studentID, sessionID := uuid.New(), uuid.New(), uuid.New()

	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	structure, err := fees.NewFeeStructure(tenantID, "Tuition Term 1", dec("1000"), &due,
		fees.LateFeePolicy{Type: fees.LateFeeDailyPercentage, Value: dec("0.5")})
	require.NoError(t, err)

	overdue, err := fees.NewFeeAssignment(tenantID, studentID, sessionID, structure)
	require.NoError(t, err)
	current := newTestAssignment(t, tenantID, "250")
	inactive := newTestAssignment(t, tenantID, "999")
	inactive.Deactivate()

	m.assignmentRepo.On("FindByStudentAndSession", mock.Anything, tenantID, studentID, sessionID).
		Return([]fees.FeeAssignment{*overdue, *current, *inactive}, nil)

	result, err := svc.GetPendingBalance(context.Background(), tenantID, studentID, sessionID, due.AddDate(0, 0, 10))
	require.NoError(t, err)

	// 1000 + 50 accrual preview + 250; the inactive assignment is excluded
	assert.True(t, dec("1300").Equal(result.Total), "got %s", result.Total)
	assert.Len(t, result.Items, 2)

	// preview only: nothing was written back
	m.assignmentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	m.assignmentRepo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}
