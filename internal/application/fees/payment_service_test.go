package fees

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

type paymentServiceMocks struct {
	assignmentRepo *MockFeeAssignmentRepository
	paymentRepo    *MockFeePaymentRepository
	idempotency    *fakeIdempotencyStore
}

func newPaymentService() (*PaymentService, *paymentServiceMocks) {
	m := &paymentServiceMocks{
		assignmentRepo: new(MockFeeAssignmentRepository),
		paymentRepo:    new(MockFeePaymentRepository),
		idempotency:    newFakeIdempotencyStore(),
	}
	svc := NewPaymentService(m.assignmentRepo, m.paymentRepo, passthroughTxManager{}, m.idempotency, zap.NewNop())
	return svc, m
}

func TestPaymentService_Pay_SingleAssignment(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.paymentRepo.On("Save", mock.Anything, mock.MatchedBy(func(p *fees.FeePayment) bool {
		return p.Amount.Equal(dec("400")) && p.PrincipalAmount.Equal(dec("400")) && p.FeeAssignmentID == assignment.ID
	})).Return(nil)

	result, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  tenantID,
		StudentID: assignment.StudentID,
		Method:    fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: assignment.ID, Amount: dec("400")},
		},
	})
	require.NoError(t, err)

	assert.True(t, dec("400").Equal(result.Total))
	assert.Len(t, result.Allocations, 1)
	assert.True(t, dec("600").Equal(result.Allocations[0].Pending))
	assert.NotEmpty(t, result.ReceiptNo)
	m.paymentRepo.AssertExpectations(t)
}

func TestPaymentService_Pay_LumpMode(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.paymentRepo.On("Save", mock.Anything, mock.MatchedBy(func(p *fees.FeePayment) bool {
		return p.Amount.Equal(dec("300")) && p.FeeAssignmentID == assignment.ID && p.Actor == "cashier-02"
	})).Return(nil)

	// legacy form: one amount, one target, no allocations list
	result, err := svc.Pay(context.Background(), PayRequest{
		TenantID:     tenantID,
		StudentID:    assignment.StudentID,
		Mode:         PayLump,
		AssignmentID: assignment.ID,
		Amount:       dec("300"),
		Method:       fees.PaymentCash,
		Actor:        "cashier-02",
	})
	require.NoError(t, err)

	assert.True(t, dec("300").Equal(result.Total))
	require.Len(t, result.Allocations, 1)
	assert.True(t, dec("700").Equal(result.Allocations[0].Pending))
	m.paymentRepo.AssertExpectations(t)
}

func TestPaymentService_Pay_LumpModeRequiresTarget(t *testing.T) {
	svc, _ := newPaymentService()

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  uuid.New(),
		StudentID: uuid.New(),
		Mode:      PayLump,
		Amount:    dec("300"),
		Method:    fees.PaymentCash,
	})
	assertDomainErrorCode(t, err, "MISSING_ASSIGNMENT")
}

func TestPaymentService_Pay_MultipleAssignments(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	first := newTestAssignment(t, tenantID, "1000")
	second := newTestAssignment(t, tenantID, "250")
	second.StudentID = first.StudentID

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, first.ID).Return(first, nil)
	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, second.ID).Return(second, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, mock.AnythingOfType("*fees.FeeAssignment")).Return(nil)
	m.paymentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeePayment")).Return(nil)

	result, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  tenantID,
		StudentID: first.StudentID,
		Method:    fees.PaymentTransfer,
		Reference: "TXN-123",
		Allocations: []PaymentAllocation{
			{AssignmentID: first.ID, Amount: dec("1000")},
			{AssignmentID: second.ID, Amount: dec("250")},
		},
	})
	require.NoError(t, err)

	assert.True(t, dec("1250").Equal(result.Total))
	assert.Len(t, result.Allocations, 2)
	// both rows share the receipt number
	m.paymentRepo.AssertNumberOfCalls(t, "Save", 2)
	assert.True(t, first.IsSettled())
	assert.True(t, second.IsSettled())
}

func TestPaymentService_Pay_OverpaymentRollsBackReceipt(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	first := newTestAssignment(t, tenantID, "1000")
	second := newTestAssignment(t, tenantID, "100")
	second.StudentID = first.StudentID

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, first.ID).Return(first, nil)
	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, second.ID).Return(second, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, first).Return(nil)
	m.paymentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeePayment")).Return(nil)

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  tenantID,
		StudentID: first.StudentID,
		Method:    fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: first.ID, Amount: dec("200")},
			{AssignmentID: second.ID, Amount: dec("150")}, // exceeds what is owed
		},
	})
	assertDomainErrorCode(t, err, "OVERPAYMENT")
}

func TestPaymentService_Pay_ConcurrencyConflictNotRetried(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(shared.ErrConcurrencyConflict)

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  tenantID,
		StudentID: assignment.StudentID,
		Method:    fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: assignment.ID, Amount: dec("100")},
		},
	})
	assertDomainErrorCode(t, err, "CONCURRENCY_CONFLICT")

	m.assignmentRepo.AssertNumberOfCalls(t, "SaveWithLock", 1)
	m.paymentRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestPaymentService_Pay_IdempotencyKeyRejectsResubmission(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.paymentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeePayment")).Return(nil)

	req := PayRequest{
		TenantID:       tenantID,
		StudentID:      assignment.StudentID,
		IdempotencyKey: "receipt-submission-1",
		Method:         fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: assignment.ID, Amount: dec("100")},
		},
	}

	_, err := svc.Pay(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), req)
	assertDomainErrorCode(t, err, "DUPLICATE_PAYMENT")
	m.paymentRepo.AssertNumberOfCalls(t, "Save", 1)
}

func TestPaymentService_Pay_IdempotencyKeyReleasedOnFailure(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")
	assignment.PrincipalPaid = dec("1000")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)

	req := PayRequest{
		TenantID:       tenantID,
		StudentID:      assignment.StudentID,
		IdempotencyKey: "receipt-submission-2",
		Method:         fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: assignment.ID, Amount: dec("100")},
		},
	}

	_, err := svc.Pay(context.Background(), req)
	assertDomainErrorCode(t, err, "NO_PENDING_BALANCE")

	// the key is free again for a corrected retry
	assert.Empty(t, m.idempotency.claimed)
}

func TestPaymentService_Pay_Validation(t *testing.T) {
	svc, _ := newPaymentService()
	tenantID, studentID := uuid.New(), uuid.New()
	assignmentID := uuid.New()

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, StudentID: studentID, Method: fees.PaymentCash,
	})
	assertDomainErrorCode(t, err, "EMPTY_PAYMENT")

	_, err = svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, StudentID: studentID, Method: "IOU",
		Allocations: []PaymentAllocation{{AssignmentID: assignmentID, Amount: dec("10")}},
	})
	assertDomainErrorCode(t, err, "INVALID_PAYMENT_METHOD")

	_, err = svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, StudentID: studentID, Method: fees.PaymentCash,
		Allocations: []PaymentAllocation{{AssignmentID: assignmentID, Amount: dec("-10")}},
	})
	assertDomainErrorCode(t, err, "INVALID_AMOUNT")

	_, err = svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, StudentID: studentID, Method: fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: assignmentID, Amount: dec("10")},
			{AssignmentID: assignmentID, Amount: dec("20")},
		},
	})
	assertDomainErrorCode(t, err, "DUPLICATE_ALLOCATION")

	_, err = svc.Pay(context.Background(), PayRequest{
		TenantID: tenantID, StudentID: studentID, Mode: "BULK", Method: fees.PaymentCash,
		Allocations: []PaymentAllocation{{AssignmentID: assignmentID, Amount: dec("10")}},
	})
	assertDomainErrorCode(t, err, "INVALID_PAYMENT_MODE")
}

func TestPaymentService_Pay_WrongStudent(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()
	assignment := newTestAssignment(t, tenantID, "1000")

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)

	_, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  tenantID,
		StudentID: uuid.New(), // not the assignment's student
		Method:    fees.PaymentCash,
		Allocations: []PaymentAllocation{
			{AssignmentID: assignment.ID, Amount: dec("100")},
		},
	})
	assertDomainErrorCode(t, err, "ASSIGNMENT_MISMATCH")
}

func TestPaymentService_Pay_LateFeeFirstAcrossReceipt(t *testing.T) {
	svc, m := newPaymentService()
	tenantID := uuid.New()

	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	structure, err := fees.NewFeeStructure(tenantID, "Tuition Term 1", dec("1000"), &due,
		fees.LateFeePolicy{Type: fees.LateFeeFlat, Value: dec("50")})
	require.NoError(t, err)
	assignment, err := fees.NewFeeAssignment(tenantID, uuid.New(), uuid.New(), structure)
	require.NoError(t, err)

	m.assignmentRepo.On("FindByID", mock.Anything, tenantID, assignment.ID).Return(assignment, nil)
	m.assignmentRepo.On("SaveWithLock", mock.Anything, assignment).Return(nil)
	m.paymentRepo.On("Save", mock.Anything, mock.AnythingOfType("*fees.FeePayment")).Return(nil)

	result, err := svc.Pay(context.Background(), PayRequest{
		TenantID:  tenantID,
		StudentID: assignment.StudentID,
		Method:    fees.PaymentCash,
		PaidAt:    due.AddDate(0, 0, 10),
		Allocations: []PaymentAllocation{
			{AssignmentID: assignment.ID, Amount: dec("100")},
		},
	})
	require.NoError(t, err)

	alloc := result.Allocations[0]
	assert.True(t, dec("50").Equal(alloc.LateFeeAccrued))
	assert.True(t, dec("50").Equal(alloc.LateFeeAmount))
	assert.True(t, dec("50").Equal(alloc.PrincipalAmount))
	assert.True(t, dec("900").Equal(alloc.Pending))
}
