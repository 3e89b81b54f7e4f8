package notification

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/email"
)

// AlertSender delivers a low-stock alert
type AlertSender interface {
	SendLowStockAlert(to string, alert email.LowStockAlert) error
}

// Handler turns service order events into low-stock alerts
type Handler struct {
	sender    AlertSender
	recipient string
}

// NewHandler creates a new notification handler
func NewHandler(sender AlertSender, recipient string) *Handler {
	return &Handler{
		sender:    sender,
		recipient: recipient,
	}
}

// HandleEvent processes an event from Kafka. Malformed messages are returned
// as errors so the consumer logs them; other event types are ignored.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event serviceorder.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	var parts []serviceorder.PartStock
	switch event.Type {
	case serviceorder.EventServiceOrderCreated:
		var e serviceorder.ServiceOrderCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		parts = e.Parts
	case serviceorder.EventServiceOrderUpdated:
		var e serviceorder.ServiceOrderUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		parts = e.Parts
	default:
		return nil
	}

	alert := email.LowStockAlert{ServiceID: event.ServiceID, OccurredAt: event.Timestamp}
	for _, p := range parts {
		if p.Level != inventory.StockLow {
			continue
		}
		alert.Parts = append(alert.Parts, email.LowStockPart{
			PartID:         p.PartID,
			RemainingStock: p.RemainingStock,
			MinimumStock:   p.MinimumStock,
		})
	}
	if len(alert.Parts) == 0 {
		return nil
	}

	if h.recipient == "" {
		zap.S().Warnw("low stock detected but no alert recipient configured",
			"service_id", event.ServiceID, "parts", len(alert.Parts))
		return nil
	}
	if err := h.sender.SendLowStockAlert(h.recipient, alert); err != nil {
		return err
	}

	zap.S().Infow("low stock alert sent", "service_id", event.ServiceID, "parts", len(alert.Parts), "to", h.recipient)
	return nil
}
