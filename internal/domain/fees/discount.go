package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sims/backend/internal/domain/shared"
)

// DiscountType identifies how a discount amount is computed
type DiscountType string

const (
	DiscountFlat       DiscountType = "FLAT"
	DiscountPercentage DiscountType = "PERCENTAGE"
)

// IsValid checks if the discount type is valid
func (t DiscountType) IsValid() bool {
	return t == DiscountFlat || t == DiscountPercentage
}

// DiscountDefinition is a named discount an administrator maintains
// (sibling discount, staff child, scholarship top-up). Applying one to an
// assignment denormalizes its name/type/value into the adjustment record,
// so editing or deleting the definition later does not corrupt history.
type DiscountDefinition struct {
	shared.TenantAggregateRoot
	Name   string          `json:"name"`
	Type   DiscountType    `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Active bool            `json:"active"`
}

// NewDiscountDefinition creates a new discount definition
func NewDiscountDefinition(tenantID uuid.UUID, name string, discountType DiscountType, value decimal.Decimal) (*DiscountDefinition, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Discount name cannot be empty")
	}
	if !discountType.IsValid() {
		return nil, shared.NewDomainError("INVALID_DISCOUNT_TYPE", "Discount type is not valid")
	}
	if !value.IsPositive() {
		return nil, shared.NewDomainError("INVALID_DISCOUNT_VALUE", "Discount value must be positive")
	}
	if discountType == DiscountPercentage && value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_DISCOUNT_VALUE", "Percentage discount cannot exceed 100")
	}

	return &DiscountDefinition{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		Type:                discountType,
		Value:               value,
		Active:              true,
	}, nil
}

// Update changes the definition. Adjustments already recorded keep the
// snapshot taken at application time.
func (d *DiscountDefinition) Update(name string, discountType DiscountType, value decimal.Decimal) error {
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Discount name cannot be empty")
	}
	if !discountType.IsValid() {
		return shared.NewDomainError("INVALID_DISCOUNT_TYPE", "Discount type is not valid")
	}
	if !value.IsPositive() {
		return shared.NewDomainError("INVALID_DISCOUNT_VALUE", "Discount value must be positive")
	}

	d.Name = name
	d.Type = discountType
	d.Value = value
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
	return nil
}

// Deactivate retires the definition so it can no longer be applied
func (d *DiscountDefinition) Deactivate() {
	d.Active = false
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
}
