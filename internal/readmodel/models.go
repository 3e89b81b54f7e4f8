package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// ServiceOrderView is a service order joined with its trailer and client
type ServiceOrderView struct {
	ID                    string    `json:"id"`
	TrailerSerial         string    `json:"trailerSerial"`
	EstimatedDeliveryDate *string   `json:"estimatedDeliveryDate"`
	ServiceType           string    `json:"serviceType"`
	Description           string    `json:"description"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"createdAt"`
	Plate                 string    `json:"plate"`
	TrailerBrand          string    `json:"trailerBrand"`
	TrailerModel          string    `json:"trailerModel"`
	ClientID              int64     `json:"clientId"`
	ClientFirstName       string    `json:"clientFirstName"`
	ClientLastName        string    `json:"clientLastName"`
	ClientFullName        string    `json:"clientFullName"`
}

// AssignedEmployeeReadModel is an employee on the crew of a service order
type AssignedEmployeeReadModel struct {
	RFC            string `json:"rfc"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	SecondLastName string `json:"secondLastName"`
	Position       string `json:"position"`
	FullName       string `json:"fullName"`
}

// PartUsageReadModel is a part consumed by a service order
type PartUsageReadModel struct {
	PartID           string          `json:"partId"`
	PartName         string          `json:"partName"`
	QuantityUsed     int             `json:"quantityUsed"`
	UnitPriceCharged decimal.Decimal `json:"unitPriceCharged"`
}

// ToolAllocationReadModel is a tool unit held by a service order
type ToolAllocationReadModel struct {
	ToolID   int64  `json:"toolId"`
	ToolName string `json:"toolName"`
	Brand    string `json:"brand"`
	State    string `json:"state"`
}

// ServiceOrderDetail is the view plus everything attached to the order
type ServiceOrderDetail struct {
	ServiceOrderView
	Employees  []AssignedEmployeeReadModel `json:"employees"`
	PartUsages []PartUsageReadModel        `json:"partUsages"`
	Tools      []ToolAllocationReadModel   `json:"tools"`
}

// UserReadModel is the read model for users
type UserReadModel struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	CreatedAt    time.Time `json:"created_at"`
}

// FormatDate renders a calendar date the way views expose it.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
