package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CommonSortFields contains fields common to most entities
var CommonSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// FeeStructureSortFields contains allowed sort fields for fee structures
var FeeStructureSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"amount":     true,
	"due_date":   true,
	"active":     true,
}

// FeeAssignmentSortFields contains allowed sort fields for fee assignments
var FeeAssignmentSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"structure_name": true,
	"amount":         true,
	"principal_paid": true,
	"due_date":       true,
	"active":         true,
}

// DiscountSortFields contains allowed sort fields for discount definitions
var DiscountSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"name":       true,
	"type":       true,
	"value":      true,
	"active":     true,
}

// FundingSortFields contains allowed sort fields for funding arrangements
var FundingSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"sponsor_name": true,
	"valid_from":   true,
	"valid_to":     true,
	"active":       true,
}

// FeePaymentSortFields contains allowed sort fields for fee payments
var FeePaymentSortFields = map[string]bool{
	"id":         true,
	"created_at": true,
	"receipt_no": true,
	"amount":     true,
	"paid_at":    true,
}
