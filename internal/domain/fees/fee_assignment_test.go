package fees

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sims/backend/internal/domain/shared"
)

// Test helpers
func createTestStructure(t *testing.T, amount string, dueDate *time.Time, policy LateFeePolicy) *FeeStructure {
	t.Helper()
	s, err := NewFeeStructure(uuid.New(), "Tuition Term 1", dec(amount), dueDate, policy)
	require.NoError(t, err)
	return s
}

func createTestAssignment(t *testing.T, amount string, dueDate *time.Time, policy LateFeePolicy) *FeeAssignment {
	t.Helper()
	structure := createTestStructure(t, amount, dueDate, policy)
	a, err := NewFeeAssignment(uuid.New(), uuid.New(), uuid.New(), structure)
	require.NoError(t, err)
	return a
}

func assertDomainErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

// ============================================
// Creation Tests
// ============================================

func TestNewFeeAssignment_CopiesStructureValues(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeFlat, Value: dec("50"), CapType: LateFeeCapNone}
	structure := createTestStructure(t, "1000", &due, policy)

	a, err := NewFeeAssignment(structure.TenantID, uuid.New(), uuid.New(), structure)
	require.NoError(t, err)

	assertDecimal(t, "1000", a.Amount)
	assert.Equal(t, structure.ID, a.FeeStructureID)
	assert.Equal(t, structure.Name, a.StructureName)
	assert.Equal(t, policy, a.LateFeePolicy)
	require.NotNil(t, a.DueDate)
	assert.True(t, a.DueDate.Equal(due))
	assert.True(t, a.Active)
	assert.Equal(t, 1, a.GetVersion())

	// later template edits must not leak into the assignment
	require.NoError(t, structure.Update("Tuition Term 1", dec("2000"), nil, NoLateFee()))
	assertDecimal(t, "1000", a.Amount)
	require.NotNil(t, a.DueDate)
	assert.Equal(t, LateFeeFlat, a.LateFeePolicy.Type)
}

func TestNewFeeAssignment_RejectsInactiveStructure(t *testing.T) {
	structure := createTestStructure(t, "1000", nil, NoLateFee())
	structure.Deactivate()

	_, err := NewFeeAssignment(structure.TenantID, uuid.New(), uuid.New(), structure)
	assertDomainErrorCode(t, err, "INACTIVE_STRUCTURE")
}

// ============================================
// Pending Arithmetic Tests
// ============================================

func TestFeeAssignment_Pending(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	assertDecimal(t, "1000", a.Pending())

	a.TotalDiscountAmount = dec("100")
	a.PrincipalPaid = dec("300")
	a.LateFeeAccrued = dec("50")
	a.LateFeePaid = dec("20")
	a.LateFeeWaived = dec("10")
	// 1000 + 50 - 100 - 10 - 300 - 20
	assertDecimal(t, "620", a.Pending())
}

func TestFeeAssignment_Pending_NeverNegative(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("900")
	a.TotalDiscountAmount = dec("200")
	assertDecimal(t, "0", a.Pending())
}

func TestFeeAssignment_Pending_IgnoresSponsorCoverage(t *testing.T) {
	// sponsor coverage reduces what the family owes in principal terms but
	// the total pending figure keeps showing it until the sponsor pays
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.SponsorCoveredAmount = dec("400")

	assertDecimal(t, "1000", a.Pending())
	assertDecimal(t, "600", a.PendingPrincipal())
	assertDecimal(t, "600", a.UnpaidPrincipal())
}

func TestFeeAssignment_PendingPrincipal_CanGoNegative(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("800")
	a.TotalDiscountAmount = dec("150")
	a.SponsorCoveredAmount = dec("100")
	assertDecimal(t, "-50", a.PendingPrincipal())
	assertDecimal(t, "0", a.UnpaidPrincipal())
}

func TestFeeAssignment_PendingAsOf_DoesNotMutate(t *testing.T) {
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeDailyPercentage, Value: dec("0.5")}
	a := createTestAssignment(t, "1000", &due, policy)

	got := a.PendingAsOf(due.AddDate(0, 0, 10))
	assertDecimal(t, "1050", got)

	// preview must not be persisted state
	assertDecimal(t, "0", a.LateFeeAccrued)
	assertDecimal(t, "1000", a.Pending())
	assert.Equal(t, 1, a.GetVersion())
}

// ============================================
// RecordPayment Tests
// ============================================

func TestFeeAssignment_RecordPayment_LateFeeFirst(t *testing.T) {
	// 1000 due with a flat 50 late fee; paying 100 past due settles the
	// late fee first and only 50 reaches principal
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeFlat, Value: dec("50")}
	a := createTestAssignment(t, "1000", &due, policy)

	split, err := a.RecordPayment(dec("100"), due.AddDate(0, 0, 10))
	require.NoError(t, err)

	assertDecimal(t, "50", split.LateFeeAccrued)
	assertDecimal(t, "50", split.LateFeeAmount)
	assertDecimal(t, "50", split.PrincipalAmount)
	assertDecimal(t, "50", a.LateFeeAccrued)
	assertDecimal(t, "50", a.LateFeePaid)
	assertDecimal(t, "50", a.PrincipalPaid)
	assertDecimal(t, "900", a.Pending())
	assert.True(t, a.LateFeeApplied)
	assert.Equal(t, 2, a.GetVersion())
}

func TestFeeAssignment_RecordPayment_FlatLateFeeNotRepeated(t *testing.T) {
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeFlat, Value: dec("50")}
	a := createTestAssignment(t, "1000", &due, policy)

	_, err := a.RecordPayment(dec("100"), due.AddDate(0, 0, 10))
	require.NoError(t, err)

	split, err := a.RecordPayment(dec("100"), due.AddDate(0, 0, 40))
	require.NoError(t, err)

	assertDecimal(t, "0", split.LateFeeAccrued)
	assertDecimal(t, "0", split.LateFeeAmount)
	assertDecimal(t, "100", split.PrincipalAmount)
	assertDecimal(t, "50", a.LateFeeAccrued)
	assertDecimal(t, "800", a.Pending())
}

func TestFeeAssignment_RecordPayment_BeforeDueDate(t *testing.T) {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeFlat, Value: dec("50")}
	a := createTestAssignment(t, "1000", &due, policy)

	split, err := a.RecordPayment(dec("400"), due.AddDate(0, 0, -10))
	require.NoError(t, err)

	assertDecimal(t, "0", split.LateFeeAmount)
	assertDecimal(t, "400", split.PrincipalAmount)
	assertDecimal(t, "0", a.LateFeeAccrued)
	assert.False(t, a.LateFeeApplied)
}

func TestFeeAssignment_RecordPayment_DailyAccruesOnPayment(t *testing.T) {
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeDailyPercentage, Value: dec("0.1")}
	a := createTestAssignment(t, "1000", &due, policy)

	// 0.1%/day * 1000 * 20 days = 20
	split, err := a.RecordPayment(dec("520"), due.AddDate(0, 0, 20))
	require.NoError(t, err)

	assertDecimal(t, "20", split.LateFeeAccrued)
	assertDecimal(t, "20", split.LateFeeAmount)
	assertDecimal(t, "500", split.PrincipalAmount)
	assertDecimal(t, "500", a.Pending())
	assert.False(t, a.LateFeeApplied) // recurring policy never arms the one-shot guard
}

func TestFeeAssignment_RecordPayment_Overpayment(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("900")

	_, err := a.RecordPayment(dec("200"), time.Now())
	assertDomainErrorCode(t, err, "OVERPAYMENT")

	// state untouched on rejection
	assertDecimal(t, "900", a.PrincipalPaid)
	assert.Equal(t, 1, a.GetVersion())
}

func TestFeeAssignment_RecordPayment_NothingDue(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("1000")

	_, err := a.RecordPayment(dec("10"), time.Now())
	assertDomainErrorCode(t, err, "NO_PENDING_BALANCE")
}

func TestFeeAssignment_RecordPayment_InvalidAmount(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())

	_, err := a.RecordPayment(decimal.Zero, time.Now())
	assertDomainErrorCode(t, err, "INVALID_AMOUNT")

	_, err = a.RecordPayment(dec("-5"), time.Now())
	assertDomainErrorCode(t, err, "INVALID_AMOUNT")
}

func TestFeeAssignment_RecordPayment_Inactive(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.Deactivate()

	_, err := a.RecordPayment(dec("10"), time.Now())
	assertDomainErrorCode(t, err, "ASSIGNMENT_INACTIVE")
}

func TestFeeAssignment_RecordPayment_ExactSettlement(t *testing.T) {
	due := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	policy := LateFeePolicy{Type: LateFeeFlat, Value: dec("50")}
	a := createTestAssignment(t, "1000", &due, policy)

	split, err := a.RecordPayment(dec("1050"), due.AddDate(0, 0, 10))
	require.NoError(t, err)

	assertDecimal(t, "50", split.LateFeeAmount)
	assertDecimal(t, "1000", split.PrincipalAmount)
	assertDecimal(t, "0", a.Pending())
	assert.True(t, a.IsSettled())
}

// ============================================
// ApplyDiscount Tests
// ============================================

func TestFeeAssignment_ApplyDiscount_Flat(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	def, err := NewDiscountDefinition(a.TenantID, "Sibling discount", DiscountFlat, dec("150"))
	require.NoError(t, err)

	applied, err := a.ApplyDiscount(def)
	require.NoError(t, err)

	assertDecimal(t, "150", applied)
	assertDecimal(t, "150", a.TotalDiscountAmount)
	assertDecimal(t, "850", a.Pending())
	assert.Equal(t, 2, a.GetVersion())
}

func TestFeeAssignment_ApplyDiscount_FlatExceedingPrincipalRejected(t *testing.T) {
	// a flat award larger than what is left is treated as a data-entry
	// mistake, not silently clamped
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("800")

	def, err := NewDiscountDefinition(a.TenantID, "Hardship grant", DiscountFlat, dec("300"))
	require.NoError(t, err)

	_, err = a.ApplyDiscount(def)
	assertDomainErrorCode(t, err, "DISCOUNT_EXCEEDS_PRINCIPAL")
	assertDecimal(t, "0", a.TotalDiscountAmount)
}

func TestFeeAssignment_ApplyDiscount_PercentageClampedToPrincipal(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("950")

	def, err := NewDiscountDefinition(a.TenantID, "Merit scholarship", DiscountPercentage, dec("10"))
	require.NoError(t, err)

	// 10% of 1000 = 100, but only 50 of principal remains
	applied, err := a.ApplyDiscount(def)
	require.NoError(t, err)
	assertDecimal(t, "50", applied)
}

func TestFeeAssignment_ApplyDiscount_PercentageOfGrossAmount(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.TotalDiscountAmount = dec("100")

	def, err := NewDiscountDefinition(a.TenantID, "Staff child", DiscountPercentage, dec("10"))
	require.NoError(t, err)

	// percentage is computed against the gross amount, not the discounted one
	applied, err := a.ApplyDiscount(def)
	require.NoError(t, err)
	assertDecimal(t, "100", applied)
	assertDecimal(t, "200", a.TotalDiscountAmount)
}

func TestFeeAssignment_ApplyDiscount_PercentageRounding(t *testing.T) {
	a := createTestAssignment(t, "333.33", nil, NoLateFee())

	def, err := NewDiscountDefinition(a.TenantID, "Early bird", DiscountPercentage, dec("7.5"))
	require.NoError(t, err)

	// 7.5% of 333.33 = 24.999750 -> 25.00
	applied, err := a.ApplyDiscount(def)
	require.NoError(t, err)
	assertDecimal(t, "25", applied)
}

func TestFeeAssignment_ApplyDiscount_NoPendingPrincipal(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.PrincipalPaid = dec("1000")

	def, err := NewDiscountDefinition(a.TenantID, "Sibling discount", DiscountFlat, dec("50"))
	require.NoError(t, err)

	_, err = a.ApplyDiscount(def)
	assertDomainErrorCode(t, err, "NO_PENDING_PRINCIPAL")
}

func TestFeeAssignment_ApplyDiscount_InactiveDefinition(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	def, err := NewDiscountDefinition(a.TenantID, "Retired discount", DiscountFlat, dec("50"))
	require.NoError(t, err)
	def.Deactivate()

	_, err = a.ApplyDiscount(def)
	assertDomainErrorCode(t, err, "INACTIVE_DISCOUNT")
}

// ============================================
// WaiveLateFee Tests
// ============================================

func TestFeeAssignment_WaiveLateFee(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.LateFeeAccrued = dec("80")
	a.LateFeePaid = dec("20")

	require.NoError(t, a.WaiveLateFee(dec("60")))
	assertDecimal(t, "60", a.LateFeeWaived)
	assertDecimal(t, "0", a.OutstandingLateFee())
	assert.Equal(t, 2, a.GetVersion())
}

func TestFeeAssignment_WaiveLateFee_ExceedsOutstanding(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.LateFeeAccrued = dec("80")
	a.LateFeePaid = dec("30")
	a.LateFeeWaived = dec("10")

	// only 40 remains waivable
	err := a.WaiveLateFee(dec("41"))
	assertDomainErrorCode(t, err, "WAIVER_EXCEEDS_OUTSTANDING")
	assertDecimal(t, "10", a.LateFeeWaived)
}

func TestFeeAssignment_WaiveLateFee_NothingToWaive(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())

	err := a.WaiveLateFee(dec("10"))
	assertDomainErrorCode(t, err, "NOTHING_TO_WAIVE")
}

func TestFeeAssignment_WaiveLateFee_InvalidAmount(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.LateFeeAccrued = dec("50")

	err := a.WaiveLateFee(decimal.Zero)
	assertDomainErrorCode(t, err, "INVALID_AMOUNT")
}

// ============================================
// RecalculateFunding Tests
// ============================================

func TestFeeAssignment_RecalculateFunding_AfterDiscount(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())

	arr, err := NewFundingArrangement(a.TenantID, a.StudentID, a.SessionID, "Education Trust",
		CoveragePartial, CoveragePercent, dec("50"), nil, nil)
	require.NoError(t, err)

	a.RecalculateFunding(arr)
	assertDecimal(t, "500", a.SponsorCoveredAmount)

	// discounting shrinks the taxable base the sponsor covers
	a.TotalDiscountAmount = dec("200")
	a.RecalculateFunding(arr)
	assertDecimal(t, "400", a.SponsorCoveredAmount)
}

func TestFeeAssignment_RecalculateFunding_FullCoverage(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.TotalDiscountAmount = dec("100")

	arr, err := NewFundingArrangement(a.TenantID, a.StudentID, a.SessionID, "Govt bursary",
		CoverageFull, "", decimal.Zero, nil, nil)
	require.NoError(t, err)

	a.RecalculateFunding(arr)
	assertDecimal(t, "900", a.SponsorCoveredAmount)
}

func TestFeeAssignment_RecalculateFunding_NilArrangementKeepsCoverage(t *testing.T) {
	a := createTestAssignment(t, "1000", nil, NoLateFee())
	a.SponsorCoveredAmount = dec("300")

	a.RecalculateFunding(nil)
	assertDecimal(t, "300", a.SponsorCoveredAmount)
}

// ============================================
// Interplay Tests
// ============================================

func TestFeeAssignment_DiscountThenFundingThenPayment(t *testing.T) {
	// 1000 fee, 200 discount, sponsor covers 50% of the remaining 800;
	// the family owes 400 of principal
	a := createTestAssignment(t, "1000", nil, NoLateFee())

	def, err := NewDiscountDefinition(a.TenantID, "Sibling discount", DiscountFlat, dec("200"))
	require.NoError(t, err)
	_, err = a.ApplyDiscount(def)
	require.NoError(t, err)

	arr, err := NewFundingArrangement(a.TenantID, a.StudentID, a.SessionID, "Education Trust",
		CoveragePartial, CoveragePercent, dec("50"), nil, nil)
	require.NoError(t, err)
	a.RecalculateFunding(arr)

	assertDecimal(t, "400", a.PendingPrincipal())
	assertDecimal(t, "400", a.UnpaidPrincipal())

	// the family cannot pay more principal than its share
	_, err = a.RecordPayment(dec("500"), time.Now())
	assertDomainErrorCode(t, err, "OVERPAYMENT")

	split, err := a.RecordPayment(dec("400"), time.Now())
	require.NoError(t, err)
	assertDecimal(t, "400", split.PrincipalAmount)
	assertDecimal(t, "0", a.PendingPrincipal())
}
