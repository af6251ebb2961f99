package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/fees"
)

// FeeAssignmentModel is the persistence model for the FeeAssignment aggregate root.
type FeeAssignmentModel struct {
	TenantAggregateModel
	StudentID      uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_assignment_student_structure_session,priority:1"`
	FeeStructureID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_assignment_student_structure_session,priority:2"`
	SessionID      uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_assignment_student_structure_session,priority:3"`
	StructureName  string    `gorm:"type:varchar(200);not null"`

	Amount               decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	TotalDiscountAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SponsorCoveredAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PrincipalPaid        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LateFeePaid          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LateFeeAccrued       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	LateFeeWaived        decimal.Decimal `gorm:"type:decimal(18,4);not null"`

	LateFeeType      fees.LateFeeType    `gorm:"type:varchar(20);not null;default:'NONE'"`
	LateFeeValue     decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	LateFeeGraceDays int                 `gorm:"not null;default:0"`
	LateFeeCapType   fees.LateFeeCapType `gorm:"type:varchar(20);not null;default:'NONE'"`
	LateFeeCapValue  decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	LateFeeApplied   bool                `gorm:"not null;default:false"`
	DueDate          *time.Time          `gorm:"index"`

	Active bool `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (FeeAssignmentModel) TableName() string {
	return "fee_assignments"
}

// ToDomain converts the persistence model to a domain FeeAssignment.
func (m *FeeAssignmentModel) ToDomain() *fees.FeeAssignment {
	a := &fees.FeeAssignment{
		StudentID:            m.StudentID,
		FeeStructureID:       m.FeeStructureID,
		SessionID:            m.SessionID,
		StructureName:        m.StructureName,
		Amount:               m.Amount,
		TotalDiscountAmount:  m.TotalDiscountAmount,
		SponsorCoveredAmount: m.SponsorCoveredAmount,
		PrincipalPaid:        m.PrincipalPaid,
		LateFeePaid:          m.LateFeePaid,
		LateFeeAccrued:       m.LateFeeAccrued,
		LateFeeWaived:        m.LateFeeWaived,
		LateFeePolicy: fees.LateFeePolicy{
			Type:      m.LateFeeType,
			Value:     m.LateFeeValue,
			GraceDays: m.LateFeeGraceDays,
			CapType:   m.LateFeeCapType,
			CapValue:  m.LateFeeCapValue,
		},
		LateFeeApplied: m.LateFeeApplied,
		DueDate:        m.DueDate,
		Active:         m.Active,
	}
	m.PopulateTenantAggregateRoot(&a.TenantAggregateRoot)
	return a
}

// FromDomain populates the persistence model from a domain FeeAssignment.
func (m *FeeAssignmentModel) FromDomain(a *fees.FeeAssignment) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.StudentID = a.StudentID
	m.FeeStructureID = a.FeeStructureID
	m.SessionID = a.SessionID
	m.StructureName = a.StructureName
	m.Amount = a.Amount
	m.TotalDiscountAmount = a.TotalDiscountAmount
	m.SponsorCoveredAmount = a.SponsorCoveredAmount
	m.PrincipalPaid = a.PrincipalPaid
	m.LateFeePaid = a.LateFeePaid
	m.LateFeeAccrued = a.LateFeeAccrued
	m.LateFeeWaived = a.LateFeeWaived
	m.LateFeeType = a.LateFeePolicy.Type
	m.LateFeeValue = a.LateFeePolicy.Value
	m.LateFeeGraceDays = a.LateFeePolicy.GraceDays
	m.LateFeeCapType = a.LateFeePolicy.CapType
	m.LateFeeCapValue = a.LateFeePolicy.CapValue
	m.LateFeeApplied = a.LateFeeApplied
	m.DueDate = a.DueDate
	m.Active = a.Active
}

// FeeAssignmentModelFromDomain creates a persistence model from a domain FeeAssignment
func FeeAssignmentModelFromDomain(a *fees.FeeAssignment) *FeeAssignmentModel {
	m := &FeeAssignmentModel{}
	m.FromDomain(a)
	return m
}

// FeeStructureModel is the persistence model for the FeeStructure aggregate root.
type FeeStructureModel struct {
	TenantAggregateModel
	Name        string          `gorm:"type:varchar(200);not null"`
	Description string          `gorm:"type:text"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DueDate     *time.Time

	LateFeeType      fees.LateFeeType    `gorm:"type:varchar(20);not null;default:'NONE'"`
	LateFeeValue     decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	LateFeeGraceDays int                 `gorm:"not null;default:0"`
	LateFeeCapType   fees.LateFeeCapType `gorm:"type:varchar(20);not null;default:'NONE'"`
	LateFeeCapValue  decimal.Decimal     `gorm:"type:decimal(18,4);not null"`

	Active bool `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (FeeStructureModel) TableName() string {
	return "fee_structures"
}

// ToDomain converts the persistence model to a domain FeeStructure.
func (m *FeeStructureModel) ToDomain() *fees.FeeStructure {
	s := &fees.FeeStructure{
		Name:        m.Name,
		Description: m.Description,
		Amount:      m.Amount,
		DueDate:     m.DueDate,
		LateFeePolicy: fees.LateFeePolicy{
			Type:      m.LateFeeType,
			Value:     m.LateFeeValue,
			GraceDays: m.LateFeeGraceDays,
			CapType:   m.LateFeeCapType,
			CapValue:  m.LateFeeCapValue,
		},
		Active: m.Active,
	}
	m.PopulateTenantAggregateRoot(&s.TenantAggregateRoot)
	return s
}

// FromDomain populates the persistence model from a domain FeeStructure.
func (m *FeeStructureModel) FromDomain(s *fees.FeeStructure) {
	m.FromDomainTenantAggregateRoot(s.TenantAggregateRoot)
	m.Name = s.Name
	m.Description = s.Description
	m.Amount = s.Amount
	m.DueDate = s.DueDate
	m.LateFeeType = s.LateFeePolicy.Type
	m.LateFeeValue = s.LateFeePolicy.Value
	m.LateFeeGraceDays = s.LateFeePolicy.GraceDays
	m.LateFeeCapType = s.LateFeePolicy.CapType
	m.LateFeeCapValue = s.LateFeePolicy.CapValue
	m.Active = s.Active
}

// FeeStructureModelFromDomain creates a persistence model from a domain FeeStructure
func FeeStructureModelFromDomain(s *fees.FeeStructure) *FeeStructureModel {
	m := &FeeStructureModel{}
	m.FromDomain(s)
	return m
}

// DiscountDefinitionModel is the persistence model for the DiscountDefinition aggregate root.
type DiscountDefinitionModel struct {
	TenantAggregateModel
	Name   string            `gorm:"type:varchar(200);not null"`
	Type   fees.DiscountType `gorm:"type:varchar(20);not null"`
	Value  decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	Active bool              `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (DiscountDefinitionModel) TableName() string {
	return "discount_definitions"
}

// ToDomain converts the persistence model to a domain DiscountDefinition.
func (m *DiscountDefinitionModel) ToDomain() *fees.DiscountDefinition {
	d := &fees.DiscountDefinition{
		Name:   m.Name,
		Type:   m.Type,
		Value:  m.Value,
		Active: m.Active,
	}
	m.PopulateTenantAggregateRoot(&d.TenantAggregateRoot)
	return d
}

// FromDomain populates the persistence model from a domain DiscountDefinition.
func (m *DiscountDefinitionModel) FromDomain(d *fees.DiscountDefinition) {
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	m.Name = d.Name
	m.Type = d.Type
	m.Value = d.Value
	m.Active = d.Active
}

// DiscountDefinitionModelFromDomain creates a persistence model from a domain DiscountDefinition
func DiscountDefinitionModelFromDomain(d *fees.DiscountDefinition) *DiscountDefinitionModel {
	m := &DiscountDefinitionModel{}
	m.FromDomain(d)
	return m
}

// FundingArrangementModel is the persistence model for the FundingArrangement aggregate root.
type FundingArrangementModel struct {
	TenantAggregateModel
	StudentID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	SessionID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	SponsorName   string            `gorm:"type:varchar(200);not null"`
	CoverageType  fees.CoverageType `gorm:"type:varchar(20);not null"`
	CoverageMode  fees.CoverageMode `gorm:"type:varchar(20)"`
	CoverageValue decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	ValidFrom     *time.Time
	ValidTo       *time.Time
	Active        bool `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (FundingArrangementModel) TableName() string {
	return "funding_arrangements"
}

// ToDomain converts the persistence model to a domain FundingArrangement.
func (m *FundingArrangementModel) ToDomain() *fees.FundingArrangement {
	f := &fees.FundingArrangement{
		StudentID:     m.StudentID,
		SessionID:     m.SessionID,
		SponsorName:   m.SponsorName,
		CoverageType:  m.CoverageType,
		CoverageMode:  m.CoverageMode,
		CoverageValue: m.CoverageValue,
		ValidFrom:     m.ValidFrom,
		ValidTo:       m.ValidTo,
		Active:        m.Active,
	}
	m.PopulateTenantAggregateRoot(&f.TenantAggregateRoot)
	return f
}

// FromDomain populates the persistence model from a domain FundingArrangement.
func (m *FundingArrangementModel) FromDomain(f *fees.FundingArrangement) {
	m.FromDomainTenantAggregateRoot(f.TenantAggregateRoot)
	m.StudentID = f.StudentID
	m.SessionID = f.SessionID
	m.SponsorName = f.SponsorName
	m.CoverageType = f.CoverageType
	m.CoverageMode = f.CoverageMode
	m.CoverageValue = f.CoverageValue
	m.ValidFrom = f.ValidFrom
	m.ValidTo = f.ValidTo
	m.Active = f.Active
}

// FundingArrangementModelFromDomain creates a persistence model from a domain FundingArrangement
func FundingArrangementModelFromDomain(f *fees.FundingArrangement) *FundingArrangementModel {
	m := &FundingArrangementModel{}
	m.FromDomain(f)
	return m
}

// FeeAdjustmentModel is the persistence model for the append-only FeeAdjustment log.
type FeeAdjustmentModel struct {
	TenantModel
	FeeAssignmentID uuid.UUID           `gorm:"type:uuid;not null;index"`
	Kind            fees.AdjustmentKind `gorm:"type:varchar(20);not null;index"`
	Amount          decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	Reason          string              `gorm:"type:varchar(500)"`
	Actor           string              `gorm:"type:varchar(100)"`
	DiscountID      *uuid.UUID          `gorm:"type:uuid;index"`
	DiscountName    string              `gorm:"type:varchar(200)"`
	DiscountType    fees.DiscountType   `gorm:"type:varchar(20)"`
	DiscountValue   decimal.Decimal     `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (FeeAdjustmentModel) TableName() string {
	return "fee_adjustments"
}

// ToDomain converts the persistence model to a domain FeeAdjustment.
func (m *FeeAdjustmentModel) ToDomain() *fees.FeeAdjustment {
	a := &fees.FeeAdjustment{
		FeeAssignmentID: m.FeeAssignmentID,
		Kind:            m.Kind,
		Amount:          m.Amount,
		Reason:          m.Reason,
		Actor:           m.Actor,
		DiscountID:      m.DiscountID,
		DiscountName:    m.DiscountName,
		DiscountType:    m.DiscountType,
		DiscountValue:   m.DiscountValue,
	}
	m.PopulateTenantEntity(&a.TenantEntity)
	return a
}

// FromDomain populates the persistence model from a domain FeeAdjustment.
func (m *FeeAdjustmentModel) FromDomain(a *fees.FeeAdjustment) {
	m.FromDomainTenantEntity(a.TenantEntity)
	m.FeeAssignmentID = a.FeeAssignmentID
	m.Kind = a.Kind
	m.Amount = a.Amount
	m.Reason = a.Reason
	m.Actor = a.Actor
	m.DiscountID = a.DiscountID
	m.DiscountName = a.DiscountName
	m.DiscountType = a.DiscountType
	m.DiscountValue = a.DiscountValue
}

// FeeAdjustmentModelFromDomain creates a persistence model from a domain FeeAdjustment
func FeeAdjustmentModelFromDomain(a *fees.FeeAdjustment) *FeeAdjustmentModel {
	m := &FeeAdjustmentModel{}
	m.FromDomain(a)
	return m
}

// FeePaymentModel is the persistence model for the append-only FeePayment log.
type FeePaymentModel struct {
	TenantModel
	FeeAssignmentID uuid.UUID          `gorm:"type:uuid;not null;index"`
	StudentID       uuid.UUID          `gorm:"type:uuid;not null;index"`
	ReceiptNo       string             `gorm:"type:varchar(50);not null;index"`
	Amount          decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	LateFeeAmount   decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	PrincipalAmount decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	Method          fees.PaymentMethod `gorm:"type:varchar(20);not null"`
	Reference       string             `gorm:"type:varchar(200)"`
	Actor           string             `gorm:"type:varchar(100)"`
	PaidAt          time.Time          `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (FeePaymentModel) TableName() string {
	return "fee_payments"
}

// ToDomain converts the persistence model to a domain FeePayment.
func (m *FeePaymentModel) ToDomain() *fees.FeePayment {
	p := &fees.FeePayment{
		FeeAssignmentID: m.FeeAssignmentID,
		StudentID:       m.StudentID,
		ReceiptNo:       m.ReceiptNo,
		Amount:          m.Amount,
		LateFeeAmount:   m.LateFeeAmount,
		PrincipalAmount: m.PrincipalAmount,
		Method:          m.Method,
		Reference:       m.Reference,
		Actor:           m.Actor,
		PaidAt:          m.PaidAt,
	}
	m.PopulateTenantEntity(&p.TenantEntity)
	return p
}

// FromDomain populates the persistence model from a domain FeePayment.
func (m *FeePaymentModel) FromDomain(p *fees.FeePayment) {
	m.FromDomainTenantEntity(p.TenantEntity)
	m.FeeAssignmentID = p.FeeAssignmentID
	m.StudentID = p.StudentID
	m.ReceiptNo = p.ReceiptNo
	m.Amount = p.Amount
	m.LateFeeAmount = p.LateFeeAmount
	m.PrincipalAmount = p.PrincipalAmount
	m.Method = p.Method
	m.Reference = p.Reference
	m.Actor = p.Actor
	m.PaidAt = p.PaidAt
}

// FeePaymentModelFromDomain creates a persistence model from a domain FeePayment
func FeePaymentModelFromDomain(p *fees.FeePayment) *FeePaymentModel {
	m := &FeePaymentModel{}
	m.FromDomain(p)
	return m
}
