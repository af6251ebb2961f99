package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/shared"
)

// CoverageType identifies how much of a student's fees a sponsor covers
type CoverageType string

const (
	CoverageFull    CoverageType = "FULL"
	CoveragePartial CoverageType = "PARTIAL"
)

// IsValid checks if the coverage type is valid
func (t CoverageType) IsValid() bool {
	return t == CoverageFull || t == CoveragePartial
}

// CoverageMode identifies how a partial coverage value is interpreted
type CoverageMode string

const (
	CoverageFixedAmount CoverageMode = "FIXED_AMOUNT"
	CoveragePercent     CoverageMode = "PERCENTAGE"
)

// IsValid checks if the coverage mode is valid
func (m CoverageMode) IsValid() bool {
	return m == CoverageFixedAmount || m == CoveragePercent
}

// FundingArrangement records a sponsorship for one student in one enrollment
// session. At most one arrangement per (student, session) may be active at a
// time; the service layer enforces this on create and activate.
type FundingArrangement struct {
	shared.TenantAggregateRoot
	StudentID     uuid.UUID       `json:"student_id"`
	SessionID     uuid.UUID       `json:"session_id"`
	SponsorName   string          `json:"sponsor_name"`
	CoverageType  CoverageType    `json:"coverage_type"`
	CoverageMode  CoverageMode    `json:"coverage_mode"`
	CoverageValue decimal.Decimal `json:"coverage_value"`
	ValidFrom     *time.Time      `json:"valid_from"`
	ValidTo       *time.Time      `json:"valid_to"`
	Active        bool            `json:"active"`
}

// NewFundingArrangement creates a new funding arrangement
func NewFundingArrangement(tenantID, studentID, sessionID uuid.UUID, sponsorName string,
	coverageType CoverageType, coverageMode CoverageMode, coverageValue decimal.Decimal,
	validFrom, validTo *time.Time) (*FundingArrangement, error) {

	if studentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_STUDENT", "Student ID cannot be empty")
	}
	if sessionID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SESSION", "Session ID cannot be empty")
	}
	if sponsorName == "" {
		return nil, shared.NewDomainError("INVALID_SPONSOR", "Sponsor name cannot be empty")
	}
	if !coverageType.IsValid() {
		return nil, shared.NewDomainError("INVALID_COVERAGE_TYPE", "Coverage type is not valid")
	}
	if coverageType == CoveragePartial {
		if !coverageMode.IsValid() {
			return nil, shared.NewDomainError("INVALID_COVERAGE_MODE", "Coverage mode is not valid")
		}
		if !coverageValue.IsPositive() {
			return nil, shared.NewDomainError("INVALID_COVERAGE_VALUE", "Coverage value must be positive")
		}
		if coverageMode == CoveragePercent && coverageValue.GreaterThan(decimal.NewFromInt(100)) {
			return nil, shared.NewDomainError("INVALID_COVERAGE_VALUE", "Coverage percentage cannot exceed 100")
		}
	}
	if validFrom != nil && validTo != nil && validTo.Before(*validFrom) {
		return nil, shared.NewDomainError("INVALID_VALIDITY", "Validity window end precedes start")
	}

	return &FundingArrangement{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		StudentID:           studentID,
		SessionID:           sessionID,
		SponsorName:         sponsorName,
		CoverageType:        coverageType,
		CoverageMode:        coverageMode,
		CoverageValue:       coverageValue,
		ValidFrom:           validFrom,
		ValidTo:             validTo,
		Active:              true,
	}, nil
}

// CoveredAmount computes how much of the taxable base (assignment amount
// minus discount) this arrangement covers. The result never exceeds the base.
func (f *FundingArrangement) CoveredAmount(taxableBase decimal.Decimal) decimal.Decimal {
	if taxableBase.IsNegative() {
		return decimal.Zero
	}

	var covered decimal.Decimal
	switch f.CoverageType {
	case CoverageFull:
		covered = taxableBase
	case CoveragePartial:
		switch f.CoverageMode {
		case CoverageFixedAmount:
			covered = f.CoverageValue
		case CoveragePercent:
			covered = taxableBase.Mul(f.CoverageValue).Div(decimal.NewFromInt(100))
		default:
			return decimal.Zero
		}
	default:
		return decimal.Zero
	}

	covered = covered.Round(2)
	if covered.GreaterThan(taxableBase) {
		return taxableBase
	}
	return covered
}

// Deactivate ends the arrangement. Coverage already snapshotted onto
// assignments is not retroactively erased.
func (f *FundingArrangement) Deactivate() {
	f.Active = false
	f.UpdatedAt = time.Now()
	f.IncrementVersion()
}
