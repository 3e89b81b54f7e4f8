package serviceorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/domain/tool"
)

type Status string

const (
	StatusPending       Status = "Pending"
	StatusInProgress    Status = "InProgress"
	StatusAwaitingParts Status = "AwaitingParts"
	StatusCompleted     Status = "Completed"
	StatusDelivered     Status = "Delivered"
)

// Statuses lists the closed set of order statuses. Any member is accepted on
// update regardless of the current status.
var Statuses = []Status{
	StatusPending,
	StatusInProgress,
	StatusAwaitingParts,
	StatusCompleted,
	StatusDelivered,
}

var (
	ErrServiceOrderNotFound = apperr.NotFound("service order not found")
	ErrTrailerNotFound      = apperr.NotFound("trailer not found")
	ErrEmployeeNotFound     = apperr.NotFound("employee not found")
	ErrInvalidStatus        = apperr.Validation("invalid service status")
	ErrMissingFields        = apperr.Validation("trailer serial, service type and description are required")
)

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether work on the order is finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDelivered
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		names := make([]string, len(Statuses))
		for i, st := range Statuses {
			names[i] = string(st)
		}
		return "", fmt.Errorf("%w: %q, must be one of %s", ErrInvalidStatus, raw, strings.Join(names, ", "))
	}
	return s, nil
}

// DeriveToolState maps an order status onto the occupancy its tools should have.
func DeriveToolState(s Status) tool.State {
	if s.Terminal() {
		return tool.StateFree
	}
	return tool.StateOccupied
}

// ServiceOrder is a unit of work performed on a trailer.
type ServiceOrder struct {
	ID                string     `json:"id"`
	TrailerSerial     string     `json:"trailer_serial"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ServiceType       string     `json:"service_type"`
	Description       string     `json:"description"`
	Status            Status     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Trailer is the vehicle master data a service order refers to.
type Trailer struct {
	Serial   string
	Plate    string
	Brand    string
	Model    string
	ClientID int64
}

// Repository is the transaction-scoped persistence for orders and crews.
type Repository interface {
	GetTrailer(ctx context.Context, serial string) (*Trailer, bool, error)
	EmployeeExists(ctx context.Context, rfc string) (bool, error)

	ServiceOrderExists(ctx context.Context, id string) (bool, error)
	// InsertServiceOrder writes the order unless its ID is already taken;
	// inserted is false in that case.
	InsertServiceOrder(ctx context.Context, order *ServiceOrder) (inserted bool, err error)
	GetServiceOrderForUpdate(ctx context.Context, id string) (*ServiceOrder, bool, error)
	UpdateServiceOrder(ctx context.Context, order *ServiceOrder) error
	DeleteServiceOrder(ctx context.Context, id string) error

	InsertEmployeeAssignment(ctx context.Context, serviceID, rfc string) error
	DeleteEmployeeAssignments(ctx context.Context, serviceID string) error
}
