package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/domain/tool"
	"github.com/example/trailer-shop/internal/infrastructure/store"
	"github.com/example/trailer-shop/internal/metrics"
	"github.com/example/trailer-shop/internal/readmodel"
)

// EventPublisher delivers domain events once their transaction has committed
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store         store.Store
	publisher     EventPublisher
	maxIDAttempts int
	now           func() time.Time
}

// NewHandler builds the workflow handler. publisher may be nil, in which case
// no events are emitted.
func NewHandler(st store.Store, publisher EventPublisher, maxIDAttempts int) *Handler {
	if maxIDAttempts <= 0 {
		maxIDAttempts = serviceorder.DefaultMaxAttempts
	}
	return &Handler{
		store:         st,
		publisher:     publisher,
		maxIDAttempts: maxIDAttempts,
		now:           time.Now,
	}
}

// inTx runs fn inside one transaction. Any error from fn rolls it back.
func (h *Handler) inTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := h.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.S().Errorw("rollback failed", "error", rbErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateServiceOrder creates an order with its crew, part usages and tools
func (h *Handler) CreateServiceOrder(ctx context.Context, cmd CreateServiceOrder) (view *readmodel.ServiceOrderView, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OperationCreate, start, err) }()

	if err := cmd.validate(); err != nil {
		return nil, err
	}
	status := serviceorder.StatusPending
	if cmd.Status != "" {
		status = serviceorder.Status(cmd.Status)
	}
	estimated, _ := parseDate(cmd.EstimatedDeliveryDate)

	order := &serviceorder.ServiceOrder{
		TrailerSerial:     strings.TrimSpace(cmd.TrailerSerial),
		EstimatedDelivery: estimated,
		ServiceType:       cmd.ServiceType,
		Description:       cmd.Description,
		Status:            status,
		CreatedAt:         h.now().UTC(),
	}

	var reservations []inventory.Reservation
	err = h.inTx(ctx, func(tx store.Tx) error {
		// 1. Trailer must exist
		if _, ok, err := tx.GetTrailer(ctx, order.TrailerSerial); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("trailer %s: %w", order.TrailerSerial, serviceorder.ErrTrailerNotFound)
		}

		// 2. Insert under a fresh identifier
		if err := h.insertWithFreshID(ctx, tx, order); err != nil {
			return err
		}

		// 3. Crew
		if err := assignEmployees(ctx, tx, order.ID, cmd.Employees); err != nil {
			return err
		}

		// 4. Parts
		ledger := inventory.NewLedger(tx)
		for _, pu := range cmd.PartUsages {
			r, err := ledger.Reserve(ctx, order.ID, pu.request())
			if err != nil {
				return err
			}
			reservations = append(reservations, *r)
		}

		// 5. Tools
		tracker := tool.NewTracker(tx)
		for _, toolID := range cmd.Tools {
			if err := tracker.Allocate(ctx, order.ID, toolID, tool.StateOccupied); err != nil {
				return err
			}
		}

		v, err := loadView(ctx, tx, order.ID)
		view = v
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("service order created", "service_id", order.ID, "trailer", order.TrailerSerial, "status", order.Status)
	h.publish(ctx, serviceorder.EventServiceOrderCreated, order.ID, serviceorder.ServiceOrderCreated{
		ServiceID:     order.ID,
		TrailerSerial: order.TrailerSerial,
		Status:        order.Status,
		Employees:     cmd.Employees,
		Tools:         cmd.Tools,
		Parts:         serviceorder.PartStockFromReservations(reservations),
		CreatedAt:     order.CreatedAt,
	})
	return view, nil
}

// UpdateServiceOrder merges the supplied fields and replaces the supplied relations
func (h *Handler) UpdateServiceOrder(ctx context.Context, cmd UpdateServiceOrder) (view *readmodel.ServiceOrderView, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OperationUpdate, start, err) }()

	if err := cmd.validate(); err != nil {
		return nil, err
	}
	statusSupplied := cmd.Status != nil && *cmd.Status != ""

	var (
		reservations []inventory.Reservation
		order        *serviceorder.ServiceOrder
		toolState    tool.State
	)
	err = h.inTx(ctx, func(tx store.Tx) error {
		var ok bool
		var err error
		order, ok, err = tx.GetServiceOrderForUpdate(ctx, cmd.ServiceID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("service order %s: %w", cmd.ServiceID, serviceorder.ErrServiceOrderNotFound)
		}
		if statusSupplied {
			if _, err := serviceorder.ParseStatus(*cmd.Status); err != nil {
				return err
			}
		}
		previousState := serviceorder.DeriveToolState(order.Status)

		applyUpdate(order, cmd)
		if err := tx.UpdateServiceOrder(ctx, order); err != nil {
			return err
		}

		if cmd.Employees != nil {
			if err := tx.DeleteEmployeeAssignments(ctx, order.ID); err != nil {
				return err
			}
			if err := assignEmployees(ctx, tx, order.ID, cmd.Employees); err != nil {
				return err
			}
		}

		if cmd.PartUsages != nil {
			reqs := make([]inventory.Request, len(cmd.PartUsages))
			for i, pu := range cmd.PartUsages {
				reqs[i] = pu.request()
			}
			if reservations, err = inventory.NewLedger(tx).ReplaceUsages(ctx, order.ID, reqs); err != nil {
				return err
			}
		}

		// A replaced tool list already carries the derived state. A status
		// change that flips the derived state pushes it onto the existing
		// allocations; one that keeps it leaves early returns untouched.
		toolState = serviceorder.DeriveToolState(order.Status)
		tracker := tool.NewTracker(tx)
		if cmd.Tools != nil {
			if err := tracker.ReplaceAllocations(ctx, order.ID, cmd.Tools, toolState); err != nil {
				return err
			}
		} else if toolState != previousState {
			if err := tracker.PropagateState(ctx, order.ID, toolState); err != nil {
				return err
			}
		}

		view, err = loadView(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.S().Infow("service order updated", "service_id", order.ID, "status", order.Status, "tool_state", toolState)
	h.publish(ctx, serviceorder.EventServiceOrderUpdated, order.ID, serviceorder.ServiceOrderUpdated{
		ServiceID: order.ID,
		Status:    order.Status,
		ToolState: toolState,
		Parts:     serviceorder.PartStockFromReservations(reservations),
		UpdatedAt: h.now().UTC(),
	})
	return view, nil
}

// DeleteServiceOrder restores the stock debited by the order and removes it
// with all its relations. It returns the order as it was before deletion.
func (h *Handler) DeleteServiceOrder(ctx context.Context, cmd DeleteServiceOrder) (view *readmodel.ServiceOrderView, err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OperationDelete, start, err) }()

	if cmd.ServiceID == "" {
		return nil, ErrMissingID
	}

	var released []inventory.Usage
	err = h.inTx(ctx, func(tx store.Tx) error {
		if _, ok, err := tx.GetServiceOrderForUpdate(ctx, cmd.ServiceID); err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("service order %s: %w", cmd.ServiceID, serviceorder.ErrServiceOrderNotFound)
		}

		var err error
		if view, err = loadView(ctx, tx, cmd.ServiceID); err != nil {
			return err
		}
		if released, err = inventory.NewLedger(tx).ReleaseAll(ctx, cmd.ServiceID); err != nil {
			return err
		}
		if err := tx.DeleteEmployeeAssignments(ctx, cmd.ServiceID); err != nil {
			return err
		}
		if err := tool.NewTracker(tx).DeleteAll(ctx, cmd.ServiceID); err != nil {
			return err
		}
		return tx.DeleteServiceOrder(ctx, cmd.ServiceID)
	})
	if err != nil {
		return nil, err
	}

	restored := make([]serviceorder.RestoredPart, 0, len(released))
	for _, u := range released {
		restored = append(restored, serviceorder.RestoredPart{PartID: u.PartID, Quantity: u.QuantityUsed})
	}
	zap.S().Infow("service order deleted", "service_id", cmd.ServiceID, "restored_parts", len(restored))
	h.publish(ctx, serviceorder.EventServiceOrderDeleted, cmd.ServiceID, serviceorder.ServiceOrderDeleted{
		ServiceID: cmd.ServiceID,
		Restored:  restored,
		DeletedAt: h.now().UTC(),
	})
	return view, nil
}

// ReleaseTool frees one occupied tool unit of an order ahead of its status change
func (h *Handler) ReleaseTool(ctx context.Context, cmd ReleaseTool) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveOperation(metrics.OperationReleaseTool, start, err) }()

	err = h.inTx(ctx, func(tx store.Tx) error {
		return tool.NewTracker(tx).Release(ctx, cmd.ServiceID, cmd.ToolID)
	})
	if err != nil {
		return err
	}

	zap.S().Infow("tool released", "service_id", cmd.ServiceID, "tool_id", cmd.ToolID)
	h.publish(ctx, serviceorder.EventToolReleased, cmd.ServiceID, serviceorder.ToolReleased{
		ServiceID:  cmd.ServiceID,
		ToolID:     cmd.ToolID,
		ReleasedAt: h.now().UTC(),
	})
	return nil
}

// insertWithFreshID generates identifiers until an insert succeeds. A failed
// insert means a concurrent transaction claimed the identifier after the
// existence check.
func (h *Handler) insertWithFreshID(ctx context.Context, tx store.Tx, order *serviceorder.ServiceOrder) error {
	gen := serviceorder.NewIDGenerator(tx, h.maxIDAttempts)
	for attempt := 0; attempt < gen.MaxAttempts(); attempt++ {
		id, err := gen.Generate(ctx, order.TrailerSerial)
		if err != nil {
			return err
		}
		order.ID = id
		inserted, err := tx.InsertServiceOrder(ctx, order)
		if err != nil {
			return err
		}
		if inserted {
			return nil
		}
		zap.S().Debugw("service order identifier claimed concurrently, regenerating", "id", id)
	}
	return fmt.Errorf("%w after %d inserts", serviceorder.ErrIdentifierExhausted, gen.MaxAttempts())
}

func assignEmployees(ctx context.Context, tx store.Tx, serviceID string, rfcs []string) error {
	for _, rfc := range rfcs {
		exists, err := tx.EmployeeExists(ctx, rfc)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("employee %s: %w", rfc, serviceorder.ErrEmployeeNotFound)
		}
		if err := tx.InsertEmployeeAssignment(ctx, serviceID, rfc); err != nil {
			return err
		}
	}
	return nil
}

func applyUpdate(order *serviceorder.ServiceOrder, cmd UpdateServiceOrder) {
	if cmd.EstimatedDeliveryDate != nil {
		order.EstimatedDelivery, _ = parseDate(*cmd.EstimatedDeliveryDate)
	}
	if cmd.ServiceType != nil && strings.TrimSpace(*cmd.ServiceType) != "" {
		order.ServiceType = *cmd.ServiceType
	}
	if cmd.Description != nil && strings.TrimSpace(*cmd.Description) != "" {
		order.Description = *cmd.Description
	}
	if cmd.Status != nil && *cmd.Status != "" {
		order.Status = serviceorder.Status(*cmd.Status)
	}
}

var errViewMissing = errors.New("service order view missing inside its own transaction")

func loadView(ctx context.Context, tx store.Tx, id string) (*readmodel.ServiceOrderView, error) {
	view, ok, err := tx.GetServiceOrderView(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, errViewMissing)
	}
	return view, nil
}

// publish emits an event after commit. Failures are logged, never returned:
// the transaction is already durable.
func (h *Handler) publish(ctx context.Context, eventType, serviceID string, payload any) {
	if h.publisher == nil {
		return
	}
	event, err := serviceorder.NewEvent(eventType, serviceID, payload)
	if err != nil {
		zap.S().Errorw("failed to encode event", "type", eventType, "service_id", serviceID, "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, serviceID, event); err != nil {
		metrics.IncPublishFailures()
		zap.S().Warnw("failed to publish event", "type", eventType, "service_id", serviceID, "error", err)
	}
}
