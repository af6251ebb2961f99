package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	feesapp "github.com/sims/backend/internal/application/fees"
	"github.com/sims/backend/internal/domain/fees"
	"github.com/shopspring/decimal"
)

// AssignmentHandler handles fee assignment and ledger endpoints
type AssignmentHandler struct {
	BaseHandler
	assignmentService *feesapp.AssignmentService
}

// NewAssignmentHandler creates a new AssignmentHandler
func NewAssignmentHandler(assignmentService *feesapp.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// AssignFeeRequest represents a request to assign a fee to a student
type AssignFeeRequest struct {
	StudentID      uuid.UUID `json:"student_id" binding:"required"`
	SessionID      uuid.UUID `json:"session_id" binding:"required"`
	FeeStructureID uuid.UUID `json:"fee_structure_id" binding:"required"`
}

// AssignFee assigns a fee structure to a student for a session. The
// structure's amount, due date and late-fee policy are copied onto the
// assignment at this moment; later edits to the structure do not reach it.
func (h *AssignmentHandler) AssignFee(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req AssignFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	assignment, err := h.assignmentService.AssignFee(c.Request.Context(), feesapp.AssignFeeRequest{
		TenantID:       tenantID,
		StudentID:      req.StudentID,
		SessionID:      req.SessionID,
		FeeStructureID: req.FeeStructureID,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, toAssignmentResponse(assignment))
}

// GetAssignment retrieves a fee assignment by ID
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	assignment, err := h.assignmentService.GetAssignment(c.Request.Context(), tenantID, assignmentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toAssignmentResponse(assignment))
}

// ListAssignmentsRequest represents the assignment list query parameters
type ListAssignmentsRequest struct {
	Page           int     `form:"page" binding:"omitempty,min=1"`
	PageSize       int     `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy        string  `form:"order_by"`
	OrderDir       string  `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search         string  `form:"search"`
	StudentID      *string `form:"student_id" binding:"omitempty,uuid"`
	SessionID      *string `form:"session_id" binding:"omitempty,uuid"`
	FeeStructureID *string `form:"fee_structure_id" binding:"omitempty,uuid"`
	Active         *bool   `form:"active"`
	Unsettled      *bool   `form:"unsettled"`
}

// ListAssignments lists fee assignments with filtering and pagination
func (h *AssignmentHandler) ListAssignments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListAssignmentsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	filter := fees.FeeAssignmentFilter{
		Active:    req.Active,
		Unsettled: req.Unsettled,
	}
	filter.Page = req.Page
	filter.PageSize = req.PageSize
	filter.OrderBy = req.OrderBy
	filter.OrderDir = req.OrderDir
	filter.Search = req.Search
	if req.StudentID != nil {
		id := uuid.MustParse(*req.StudentID)
		filter.StudentID = &id
	}
	if req.SessionID != nil {
		id := uuid.MustParse(*req.SessionID)
		filter.SessionID = &id
	}
	if req.FeeStructureID != nil {
		id := uuid.MustParse(*req.FeeStructureID)
		filter.FeeStructureID = &id
	}

	page, err := h.assignmentService.ListAssignments(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, toAssignmentResponses(page.Items), page.Total, req.Page, req.PageSize)
}

// ApplyDiscountRequest represents a request to apply a discount to an assignment
type ApplyDiscountRequest struct {
	DiscountID uuid.UUID `json:"discount_id" binding:"required"`
	Reason     string    `json:"reason" binding:"omitempty,max=500"`
	Actor      string    `json:"actor" binding:"required,max=100"`
}

// ApplyDiscount applies a discount definition to an assignment. The realized
// amount is computed against the assignment's principal and recorded in the
// adjustment log with a snapshot of the definition.
func (h *AssignmentHandler) ApplyDiscount(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	var req ApplyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.assignmentService.ApplyDiscount(c.Request.Context(), feesapp.ApplyDiscountRequest{
		TenantID:     tenantID,
		AssignmentID: assignmentID,
		DiscountID:   req.DiscountID,
		Reason:       req.Reason,
		Actor:        req.Actor,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, gin.H{
		"assignment":     toAssignmentResponse(result.Assignment),
		"applied_amount": result.AppliedAmount.StringFixed(2),
	})
}

// WaiveLateFeeRequest represents a request to waive accrued late fees
type WaiveLateFeeRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required,min=1,max=500"`
	Actor  string  `json:"actor" binding:"required,max=100"`
}

// WaiveLateFee forgives part or all of the outstanding late fee on an
// assignment
func (h *AssignmentHandler) WaiveLateFee(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	var req WaiveLateFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	assignment, err := h.assignmentService.WaiveLateFee(c.Request.Context(), feesapp.WaiveLateFeeRequest{
		TenantID:     tenantID,
		AssignmentID: assignmentID,
		Amount:       decimal.NewFromFloat(req.Amount),
		Reason:       req.Reason,
		Actor:        req.Actor,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toAssignmentResponse(assignment))
}

// DeactivateAssignment cancels an assignment so it stops accruing and
// accepting payments
func (h *AssignmentHandler) DeactivateAssignment(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	assignment, err := h.assignmentService.DeactivateAssignment(c.Request.Context(), tenantID, assignmentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toAssignmentResponse(assignment))
}

// ListAdjustments lists the adjustment log for an assignment, oldest first
func (h *AssignmentHandler) ListAdjustments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	assignmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid assignment ID format")
		return
	}

	adjustments, err := h.assignmentService.ListAdjustments(c.Request.Context(), tenantID, assignmentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	responses := make([]AdjustmentResponse, len(adjustments))
	for i := range adjustments {
		responses[i] = toAdjustmentResponse(&adjustments[i])
	}
	h.Success(c, responses)
}

// PendingBalanceRequest represents the pending balance query parameters
type PendingBalanceRequest struct {
	StudentID uuid.UUID  `form:"student_id" binding:"required"`
	SessionID uuid.UUID  `form:"session_id" binding:"required"`
	AsOf      *time.Time `form:"as_of" time_format:"2006-01-02T15:04:05Z07:00"`
}

// GetPendingBalance computes the student's pending balance for a session as
// of a point in time. Late fees are accrued transiently for the computation;
// nothing is persisted.
func (h *AssignmentHandler) GetPendingBalance(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req PendingBalanceRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	result, err := h.assignmentService.GetPendingBalance(c.Request.Context(), tenantID, req.StudentID, req.SessionID, asOf)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	items := make([]gin.H, len(result.Items))
	for i, item := range result.Items {
		items[i] = gin.H{
			"assignment_id":  item.AssignmentID,
			"structure_name": item.StructureName,
			"pending":        item.Pending.StringFixed(2),
		}
	}
	h.Success(c, gin.H{
		"student_id": result.StudentID,
		"session_id": result.SessionID,
		"as_of":      result.AsOf,
		"total":      result.Total.StringFixed(2),
		"items":      items,
	})
}
