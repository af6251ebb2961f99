package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	feesapp "github.com/sims/backend/internal/application/fees"
	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
	"github.com/sims/backend/internal/interfaces/http/dto"
)

// CatalogHandler handles fee structure, discount and funding catalog endpoints
type CatalogHandler struct {
	BaseHandler
	catalogService *feesapp.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService *feesapp.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

// CreateFeeStructureRequest represents a request to create a fee structure
type CreateFeeStructureRequest struct {
	Name          string               `json:"name" binding:"required,min=1,max=200"`
	Description   string               `json:"description" binding:"max=2000"`
	Amount        float64              `json:"amount" binding:"required,gt=0"`
	DueDate       *time.Time           `json:"due_date"`
	LateFeePolicy LateFeePolicyPayload `json:"late_fee_policy"`
}

// CreateFeeStructure creates a new fee structure template
func (h *CatalogHandler) CreateFeeStructure(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	structure, err := h.catalogService.CreateFeeStructure(c.Request.Context(), feesapp.CreateFeeStructureRequest{
		TenantID:      tenantID,
		Name:          req.Name,
		Description:   req.Description,
		Amount:        toDecimal(req.Amount),
		DueDate:       req.DueDate,
		LateFeePolicy: req.LateFeePolicy.toDomain(),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toFeeStructureResponse(structure))
}

// UpdateFeeStructureRequest represents a request to update a fee structure
type UpdateFeeStructureRequest struct {
	Name          string               `json:"name" binding:"required,min=1,max=200"`
	Description   string               `json:"description" binding:"max=2000"`
	Amount        float64              `json:"amount" binding:"required,gt=0"`
	DueDate       *time.Time           `json:"due_date"`
	LateFeePolicy LateFeePolicyPayload `json:"late_fee_policy"`
}

// UpdateFeeStructure edits a template. Assignments already issued keep
// their copied values.
func (h *CatalogHandler) UpdateFeeStructure(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	structureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fee structure ID format")
		return
	}

	var req UpdateFeeStructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	structure, err := h.catalogService.UpdateFeeStructure(c.Request.Context(), feesapp.UpdateFeeStructureRequest{
		TenantID:      tenantID,
		StructureID:   structureID,
		Name:          req.Name,
		Description:   req.Description,
		Amount:        toDecimal(req.Amount),
		DueDate:       req.DueDate,
		LateFeePolicy: req.LateFeePolicy.toDomain(),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toFeeStructureResponse(structure))
}

// GetFeeStructure retrieves a fee structure by ID
func (h *CatalogHandler) GetFeeStructure(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	structureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fee structure ID format")
		return
	}

	structure, err := h.catalogService.GetFeeStructure(c.Request.Context(), tenantID, structureID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toFeeStructureResponse(structure))
}

// ListFeeStructures lists fee structures for the tenant
func (h *CatalogHandler) ListFeeStructures(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	filter := bindListFilter(c)

	page, err := h.catalogService.ListFeeStructures(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]FeeStructureResponse, len(page.Items))
	for i := range page.Items {
		responses[i] = toFeeStructureResponse(&page.Items[i])
	}
	h.SuccessWithMeta(c, responses, page.Total, filter.Page, filter.PageSize)
}

// DeactivateFeeStructure retires a template from further assignment
func (h *CatalogHandler) DeactivateFeeStructure(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	structureID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid fee structure ID format")
		return
	}

	structure, err := h.catalogService.DeactivateFeeStructure(c.Request.Context(), tenantID, structureID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toFeeStructureResponse(structure))
}

// CreateDiscountRequest represents a request to create a discount definition
type CreateDiscountRequest struct {
	Name  string  `json:"name" binding:"required,min=1,max=200"`
	Type  string  `json:"type" binding:"required,oneof=FLAT PERCENTAGE"`
	Value float64 `json:"value" binding:"required,gt=0"`
}

// CreateDiscount creates a new discount definition
func (h *CatalogHandler) CreateDiscount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	definition, err := h.catalogService.CreateDiscount(c.Request.Context(), feesapp.CreateDiscountRequest{
		TenantID: tenantID,
		Name:     req.Name,
		Type:     fees.DiscountType(req.Type),
		Value:    toDecimal(req.Value),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toDiscountResponse(definition))
}

// UpdateDiscountRequest represents a request to update a discount definition
type UpdateDiscountRequest struct {
	Name  string  `json:"name" binding:"required,min=1,max=200"`
	Type  string  `json:"type" binding:"required,oneof=FLAT PERCENTAGE"`
	Value float64 `json:"value" binding:"required,gt=0"`
}

// UpdateDiscount edits a discount definition
func (h *CatalogHandler) UpdateDiscount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	discountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid discount ID format")
		return
	}

	var req UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	definition, err := h.catalogService.UpdateDiscount(c.Request.Context(), feesapp.UpdateDiscountRequest{
		TenantID:   tenantID,
		DiscountID: discountID,
		Name:       req.Name,
		Type:       fees.DiscountType(req.Type),
		Value:      toDecimal(req.Value),
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDiscountResponse(definition))
}

// ListDiscounts lists discount definitions for the tenant
func (h *CatalogHandler) ListDiscounts(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	definitions, err := h.catalogService.ListDiscounts(c.Request.Context(), tenantID, bindListFilter(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]DiscountResponse, len(definitions))
	for i := range definitions {
		responses[i] = toDiscountResponse(&definitions[i])
	}
	h.Success(c, responses)
}

// DeactivateDiscount retires a discount definition from further use
func (h *CatalogHandler) DeactivateDiscount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	discountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid discount ID format")
		return
	}

	definition, err := h.catalogService.DeactivateDiscount(c.Request.Context(), tenantID, discountID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toDiscountResponse(definition))
}

// CreateFundingRequest represents a request to create a funding arrangement
type CreateFundingRequest struct {
	StudentID     uuid.UUID  `json:"student_id" binding:"required"`
	SessionID     uuid.UUID  `json:"session_id" binding:"required"`
	SponsorName   string     `json:"sponsor_name" binding:"required,min=1,max=200"`
	CoverageType  string     `json:"coverage_type" binding:"required,oneof=FULL PARTIAL"`
	CoverageMode  string     `json:"coverage_mode" binding:"omitempty,oneof=FIXED_AMOUNT PERCENTAGE"`
	CoverageValue float64    `json:"coverage_value" binding:"omitempty,gte=0"`
	ValidFrom     *time.Time `json:"valid_from"`
	ValidTo       *time.Time `json:"valid_to"`
}

// CreateFunding creates a funding arrangement for a student
func (h *CatalogHandler) CreateFunding(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req CreateFundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	arrangement, err := h.catalogService.CreateFunding(c.Request.Context(), feesapp.CreateFundingRequest{
		TenantID:      tenantID,
		StudentID:     req.StudentID,
		SessionID:     req.SessionID,
		SponsorName:   req.SponsorName,
		CoverageType:  fees.CoverageType(req.CoverageType),
		CoverageMode:  fees.CoverageMode(req.CoverageMode),
		CoverageValue: toDecimal(req.CoverageValue),
		ValidFrom:     req.ValidFrom,
		ValidTo:       req.ValidTo,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toFundingResponse(arrangement))
}

// ListFunding lists funding arrangements for the tenant
func (h *CatalogHandler) ListFunding(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	arrangements, err := h.catalogService.ListFunding(c.Request.Context(), tenantID, bindListFilter(c))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]FundingResponse, len(arrangements))
	for i := range arrangements {
		responses[i] = toFundingResponse(&arrangements[i])
	}
	h.Success(c, responses)
}

// DeactivateFunding ends a funding arrangement
func (h *CatalogHandler) DeactivateFunding(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	arrangementID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid funding arrangement ID format")
		return
	}

	arrangement, err := h.catalogService.DeactivateFunding(c.Request.Context(), tenantID, arrangementID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toFundingResponse(arrangement))
}

// bindListFilter binds the common list query parameters into a shared filter
func bindListFilter(c *gin.Context) shared.Filter {
	req := dto.DefaultListRequest()
	_ = c.ShouldBindQuery(&req)
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	return shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	}
}
