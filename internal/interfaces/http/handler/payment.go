package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	feesapp "github.com/sims/backend/internal/application/fees"
	"github.com/sims/backend/internal/domain/fees"
	"github.com/sims/backend/internal/domain/shared"
)

// PaymentHandler handles fee payment endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *feesapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *feesapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PayAllocationRequest is one (assignment, amount) pair within a receipt
type PayAllocationRequest struct {
	AssignmentID uuid.UUID `json:"assignment_id" binding:"required"`
	Amount       float64   `json:"amount" binding:"required,gt=0"`
}

// PayRequest represents a payment covering one or more assignments.
// Mode ITEMIZED (the default) spreads the receipt per the allocations list;
// mode LUMP is the legacy single-assignment form carrying assignment_id and
// amount instead.
type PayRequest struct {
	StudentID      uuid.UUID              `json:"student_id" binding:"required"`
	Mode           string                 `json:"mode" binding:"omitempty,oneof=ITEMIZED LUMP"`
	AssignmentID   *uuid.UUID             `json:"assignment_id"`
	Amount         float64                `json:"amount" binding:"omitempty,gt=0"`
	IdempotencyKey string                 `json:"idempotency_key" binding:"omitempty,max=100"`
	Method         string                 `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CARD CHEQUE ONLINE"`
	Reference      string                 `json:"reference" binding:"max=200"`
	Actor          string                 `json:"actor" binding:"omitempty,max=100"`
	PaidAt         *time.Time             `json:"paid_at"`
	Allocations    []PayAllocationRequest `json:"allocations" binding:"omitempty,dive"`
}

// Pay records a payment receipt against one or more of a student's
// assignments. The idempotency key may come from the X-Idempotency-Key
// header or the request body; replays with the same key return the original
// receipt without touching the ledger.
func (h *PaymentHandler) Pay(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	idempotencyKey := c.GetHeader("X-Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = req.IdempotencyKey
	}

	paidAt := time.Now()
	if req.PaidAt != nil {
		paidAt = *req.PaidAt
	}

	allocations := make([]feesapp.PaymentAllocation, len(req.Allocations))
	for i, alloc := range req.Allocations {
		allocations[i] = feesapp.PaymentAllocation{
			AssignmentID: alloc.AssignmentID,
			Amount:       toDecimal(alloc.Amount),
		}
	}

	serviceReq := feesapp.PayRequest{
		TenantID:       tenantID,
		StudentID:      req.StudentID,
		Mode:           feesapp.PaymentMode(req.Mode),
		Amount:         toDecimal(req.Amount),
		IdempotencyKey: idempotencyKey,
		Method:         fees.PaymentMethod(req.Method),
		Reference:      req.Reference,
		Actor:          req.Actor,
		PaidAt:         paidAt,
		Allocations:    allocations,
	}
	if req.AssignmentID != nil {
		serviceReq.AssignmentID = *req.AssignmentID
	}

	result, err := h.paymentService.Pay(c.Request.Context(), serviceReq)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// ListPaymentsRequest represents the payment list query parameters
type ListPaymentsRequest struct {
	StudentID uuid.UUID `form:"student_id" binding:"required"`
	Page      int       `form:"page" binding:"omitempty,min=1"`
	PageSize  int       `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string    `form:"order_by"`
	OrderDir  string    `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search    string    `form:"search"`
}

// ListPayments lists a student's payment rows, newest first
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	var req ListPaymentsRequest
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

	payments, err := h.paymentService.ListPaymentsByStudent(c.Request.Context(), tenantID, req.StudentID, shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Search:   req.Search,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toPaymentResponses(payments))
}

// GetReceipt retrieves all payment rows recorded under a receipt number
func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid tenant ID")
		return
	}

	receiptNo := c.Param("receipt_no")
	if receiptNo == "" {
		h.BadRequest(c, "Receipt number is required")
		return
	}

	payments, err := h.paymentService.GetReceipt(c.Request.Context(), tenantID, receiptNo)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, toPaymentResponses(payments))
}
