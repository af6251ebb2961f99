package fees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

// CatalogService manages the administrator-maintained catalog: fee structure
// templates, discount definitions and funding arrangements.
type CatalogService struct {
	structureRepo fees.FeeStructureRepository
	discountRepo  fees.DiscountDefinitionRepository
	fundingRepo   fees.FundingArrangementRepository
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(
	structureRepo fees.FeeStructureRepository,
	discountRepo fees.DiscountDefinitionRepository,
	fundingRepo fees.FundingArrangementRepository,
) *CatalogService {
	return &CatalogService{
		structureRepo: structureRepo,
		discountRepo:  discountRepo,
		fundingRepo:   fundingRepo,
	}
}

// CreateFeeStructureRequest represents a request to create a fee structure
type CreateFeeStructureRequest struct {
	TenantID      uuid.UUID
	Name          string
	Description   string
	Amount        decimal.Decimal
	DueDate       *time.Time
	LateFeePolicy fees.LateFeePolicy
}

// CreateFeeStructure creates a new fee structure template
func (s *CatalogService) CreateFeeStructure(ctx context.Context, req CreateFeeStructureRequest) (*fees.FeeStructure, error) {
	structure, err := fees.NewFeeStructure(req.TenantID, req.Name, req.Amount, req.DueDate, req.LateFeePolicy)
	if err != nil {
		return nil, err
	}
	structure.Description = req.Description

	if err := s.structureRepo.Save(ctx, structure); err != nil {
		return nil, fmt.Errorf("failed to save fee structure: %w", err)
	}
	return structure, nil
}

// UpdateFeeStructureRequest represents a request to update a fee structure
type UpdateFeeStructureRequest struct {
	TenantID      uuid.UUID
	StructureID   uuid.UUID
	Name          string
	Description   string
	Amount        decimal.Decimal
	DueDate       *time.Time
	LateFeePolicy fees.LateFeePolicy
}

// UpdateFeeStructure edits a template. Assignments already issued keep
// their copied values.
func (s *CatalogService) UpdateFeeStructure(ctx context.Context, req UpdateFeeStructureRequest) (*fees.FeeStructure, error) {
	structure, err := s.findStructure(ctx, req.TenantID, req.StructureID)
	if err != nil {
		return nil, err
	}
	if err := structure.Update(req.Name, req.Amount, req.DueDate, req.LateFeePolicy); err != nil {
		return nil, err
	}
	structure.Description = req.Description

	if err := s.structureRepo.SaveWithLock(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

// DeactivateFeeStructure retires a template
func (s *CatalogService) DeactivateFeeStructure(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeStructure, error) {
	structure, err := s.findStructure(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	structure.Deactivate()
	if err := s.structureRepo.SaveWithLock(ctx, structure); err != nil {
		return nil, err
	}
	return structure, nil
}

// GetFeeStructure fetches one template
func (s *CatalogService) GetFeeStructure(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeStructure, error) {
	return s.findStructure(ctx, tenantID, id)
}

// ListFeeStructures lists templates for a tenant
func (s *CatalogService) ListFeeStructures(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[fees.FeeStructure], error) {
	structures, err := s.structureRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list fee structures: %w", err)
	}
	total, err := s.structureRepo.CountForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count fee structures: %w", err)
	}
	result := shared.NewPaginated(structures, total, filter.Page, filter.PageSize)
	return &result, nil
}

// CreateDiscountRequest represents a request to create a discount definition
type CreateDiscountRequest struct {
	TenantID uuid.UUID
	Name     string
	Type     fees.DiscountType
	Value    decimal.Decimal
}

// CreateDiscount creates a new discount definition
func (s *CatalogService) CreateDiscount(ctx context.Context, req CreateDiscountRequest) (*fees.DiscountDefinition, error) {
	definition, err := fees.NewDiscountDefinition(req.TenantID, req.Name, req.Type, req.Value)
	if err != nil {
		return nil, err
	}
	if err := s.discountRepo.Save(ctx, definition); err != nil {
		return nil, fmt.Errorf("failed to save discount definition: %w", err)
	}
	return definition, nil
}

// UpdateDiscountRequest represents a request to update a discount definition
type UpdateDiscountRequest struct {
	TenantID   uuid.UUID
	DiscountID uuid.UUID
	Name       string
	Type       fees.DiscountType
	Value      decimal.Decimal
}

// UpdateDiscount edits a definition. Adjustments already recorded keep the
// snapshot taken when they were applied.
func (s *CatalogService) UpdateDiscount(ctx context.Context, req UpdateDiscountRequest) (*fees.DiscountDefinition, error) {
	definition, err := s.findDiscount(ctx, req.TenantID, req.DiscountID)
	if err != nil {
		return nil, err
	}
	if err := definition.Update(req.Name, req.Type, req.Value); err != nil {
		return nil, err
	}
	if err := s.discountRepo.SaveWithLock(ctx, definition); err != nil {
		return nil, err
	}
	return definition, nil
}

// DeactivateDiscount retires a definition
func (s *CatalogService) DeactivateDiscount(ctx context.Context, tenantID, id uuid.UUID) (*fees.DiscountDefinition, error) {
	definition, err := s.findDiscount(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	definition.Deactivate()
	if err := s.discountRepo.SaveWithLock(ctx, definition); err != nil {
		return nil, err
	}
	return definition, nil
}

// ListDiscounts lists discount definitions for a tenant
func (s *CatalogService) ListDiscounts(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.DiscountDefinition, error) {
	return s.discountRepo.FindAllForTenant(ctx, tenantID, filter)
}

// CreateFundingRequest represents a request to create a funding arrangement
type CreateFundingRequest struct {
	TenantID      uuid.UUID
	StudentID     uuid.UUID
	SessionID     uuid.UUID
	SponsorName   string
	CoverageType  fees.CoverageType
	CoverageMode  fees.CoverageMode
	CoverageValue decimal.Decimal
	ValidFrom     *time.Time
	ValidTo       *time.Time
}

// CreateFunding creates a funding arrangement. At most one active
// arrangement per (student, session) is allowed.
func (s *CatalogService) CreateFunding(ctx context.Context, req CreateFundingRequest) (*fees.FundingArrangement, error) {
	existing, err := s.fundingRepo.FindActiveForStudent(ctx, req.TenantID, req.StudentID, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing arrangements: %w", err)
	}
	if existing != nil {
		return nil, shared.NewDomainError("ARRANGEMENT_EXISTS", "Student already has an active funding arrangement for this session")
	}

	arrangement, err := fees.NewFundingArrangement(req.TenantID, req.StudentID, req.SessionID, req.SponsorName,
		req.CoverageType, req.CoverageMode, req.CoverageValue, req.ValidFrom, req.ValidTo)
	if err != nil {
		return nil, err
	}
	if err := s.fundingRepo.Save(ctx, arrangement); err != nil {
		// the partial unique index backs up the check above under concurrency
		if errors.Is(err, shared.ErrDuplicateKey) {
			return nil, shared.NewDomainError("ARRANGEMENT_EXISTS", "Student already has an active funding arrangement for this session")
		}
		return nil, fmt.Errorf("failed to save funding arrangement: %w", err)
	}
	return arrangement, nil
}

// DeactivateFunding ends an arrangement. Coverage already snapshotted onto
// assignments stays until a discount application recomputes it.
func (s *CatalogService) DeactivateFunding(ctx context.Context, tenantID, id uuid.UUID) (*fees.FundingArrangement, error) {
	arrangement, err := s.fundingRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get funding arrangement: %w", err)
	}
	if arrangement == nil {
		return nil, shared.NewDomainError("ARRANGEMENT_NOT_FOUND", "Funding arrangement not found")
	}
	arrangement.Deactivate()
	if err := s.fundingRepo.SaveWithLock(ctx, arrangement); err != nil {
		return nil, err
	}
	return arrangement, nil
}

// ListFunding lists funding arrangements for a tenant
func (s *CatalogService) ListFunding(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]fees.FundingArrangement, error) {
	return s.fundingRepo.FindAllForTenant(ctx, tenantID, filter)
}

func (s *CatalogService) findStructure(ctx context.Context, tenantID, id uuid.UUID) (*fees.FeeStructure, error) {
	structure, err := s.structureRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get fee structure: %w", err)
	}
	if structure == nil {
		return nil, shared.NewDomainError("STRUCTURE_NOT_FOUND", "Fee structure not found")
	}
	return structure, nil
}

func (s *CatalogService) findDiscount(ctx context.Context, tenantID, id uuid.UUID) (*fees.DiscountDefinition, error) {
	definition, err := s.discountRepo.FindByID(ctx, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get discount definition: %w", err)
	}
	if definition == nil {
		return nil, shared.NewDomainError("DISCOUNT_NOT_FOUND", "Discount definition not found")
	}
	return definition, nil
}
