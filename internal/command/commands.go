package command

import (
	"github.com/shopspring/decimal"

	"github.com/example/trailer-shop/internal/domain/inventory"
)

// PartUsageInput requests a quantity of a part. UnitPriceCharged defaults to
// the part's sale price.
type PartUsageInput struct {
	PartID           string           `json:"partId"`
	QuantityUsed     int              `json:"quantityUsed"`
	UnitPriceCharged *decimal.Decimal `json:"unitPriceCharged,omitempty"`
}

func (in PartUsageInput) request() inventory.Request {
	return inventory.Request{
		PartID:    in.PartID,
		Quantity:  in.QuantityUsed,
		UnitPrice: in.UnitPriceCharged,
	}
}

// Service order Commands
type CreateServiceOrder struct {
	TrailerSerial         string           `json:"trailerSerial"`
	ServiceType           string           `json:"serviceType"`
	Description           string           `json:"description"`
	EstimatedDeliveryDate string           `json:"estimatedDeliveryDate,omitempty"`
	Status                string           `json:"status,omitempty"`
	Employees             []string         `json:"employees,omitempty"`
	PartUsages            []PartUsageInput `json:"partUsages,omitempty"`
	Tools                 []int64          `json:"tools,omitempty"`
}

// UpdateServiceOrder merges the supplied fields over the stored order. A nil
// field or list is left untouched; an empty list clears the relation and an
// empty estimated delivery date clears the date.
type UpdateServiceOrder struct {
	ServiceID             string           `json:"-"`
	EstimatedDeliveryDate *string          `json:"estimatedDeliveryDate,omitempty"`
	ServiceType           *string          `json:"serviceType,omitempty"`
	Description           *string          `json:"description,omitempty"`
	Status                *string          `json:"status,omitempty"`
	Employees             []string         `json:"employees,omitempty"`
	PartUsages            []PartUsageInput `json:"partUsages,omitempty"`
	Tools                 []int64          `json:"tools,omitempty"`
}

type DeleteServiceOrder struct {
	ServiceID string `json:"service_id"`
}

// Tool Commands
type ReleaseTool struct {
	ServiceID string `json:"service_id"`
	ToolID    int64  `json:"tool_id"`
}
