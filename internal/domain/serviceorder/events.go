package serviceorder

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/tool"
)

const (
	EventServiceOrderCreated = "ServiceOrderCreated"
	EventServiceOrderUpdated = "ServiceOrderUpdated"
	EventServiceOrderDeleted = "ServiceOrderDeleted"
	EventToolReleased        = "ToolReleased"
)

// Event is the envelope published after a workflow transaction commits.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	ServiceID string          `json:"service_id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(eventType, serviceID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		ServiceID: serviceID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// PartStock is the stock left for a part after it was reserved for an order.
type PartStock struct {
	PartID         string               `json:"part_id"`
	Quantity       int                  `json:"quantity"`
	RemainingStock int                  `json:"remaining_stock"`
	MinimumStock   int                  `json:"minimum_stock"`
	Level          inventory.StockLevel `json:"level"`
}

type ServiceOrderCreated struct {
	ServiceID     string      `json:"service_id"`
	TrailerSerial string      `json:"trailer_serial"`
	Status        Status      `json:"status"`
	Employees     []string    `json:"employees"`
	Tools         []int64     `json:"tools"`
	Parts         []PartStock `json:"parts"`
	CreatedAt     time.Time   `json:"created_at"`
}

type ServiceOrderUpdated struct {
	ServiceID string      `json:"service_id"`
	Status    Status      `json:"status"`
	ToolState tool.State  `json:"tool_state"`
	Parts     []PartStock `json:"parts,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RestoredPart is stock credited back when an order is deleted.
type RestoredPart struct {
	PartID   string `json:"part_id"`
	Quantity int    `json:"quantity"`
}

type ServiceOrderDeleted struct {
	ServiceID string         `json:"service_id"`
	Restored  []RestoredPart `json:"restored"`
	DeletedAt time.Time      `json:"deleted_at"`
}

type ToolReleased struct {
	ServiceID  string    `json:"service_id"`
	ToolID     int64     `json:"tool_id"`
	ReleasedAt time.Time `json:"released_at"`
}

// PartStockFromReservations converts ledger reservations into event payload entries.
func PartStockFromReservations(reservations []inventory.Reservation) []PartStock {
	parts := make([]PartStock, 0, len(reservations))
	for _, r := range reservations {
		parts = append(parts, PartStock{
			PartID:         r.PartID,
			Quantity:       r.Quantity,
			RemainingStock: r.RemainingStock,
			MinimumStock:   r.MinimumStock,
			Level:          r.Level,
		})
	}
	return parts
}
