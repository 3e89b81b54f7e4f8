package command

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/domain/tool"
	"github.com/example/trailer-shop/internal/infrastructure/store/mocks"
)

const (
	trailerSerial = "1hgcm82633a"
	mechanicRFC   = "PEGL800101"
	helperRFC     = "MARA900202"
	brakePadID    = "RFBRAK0001"
	filterID      = "RFFILT0002"
	jackID        = int64(1)
	welderID      = int64(2)
)

var fixedNow = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []serviceorder.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event.(serviceorder.Event))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func (p *recordingPublisher) last() serviceorder.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func newTestHandler() (*Handler, *mocks.MemoryStore, *recordingPublisher) {
	st := mocks.NewMemoryStore()
	st.AddClient(mocks.Client{ID: 1, FirstName: "Ana", LastName: "Lopez", SecondLastName: "Ruiz"})
	st.AddTrailer(serviceorder.Trailer{Serial: trailerSerial, Plate: "ABC-123", Brand: "Utility", Model: "3000R", ClientID: 1})
	st.AddEmployee(mocks.Employee{RFC: mechanicRFC, FirstName: "Luis", LastName: "Perez", Position: "Mechanic"})
	st.AddEmployee(mocks.Employee{RFC: helperRFC, FirstName: "Rosa", LastName: "Mata", Position: "Helper"})
	st.AddPart(inventory.Part{ID: brakePadID, Name: "Brake pad", Stock: 10, MinimumStock: 2, SalePrice: decimal.RequireFromString("350.00")})
	st.AddPart(inventory.Part{ID: filterID, Name: "Oil filter", Stock: 3, MinimumStock: 1, SalePrice: decimal.RequireFromString("120.50")})
	st.AddTool(tool.Tool{ID: jackID, Name: "Hydraulic jack", TotalQuantity: 1})
	st.AddTool(tool.Tool{ID: welderID, Name: "Welder", Brand: "Lincoln", TotalQuantity: 2})

	pub := &recordingPublisher{}
	handler := NewHandler(st, pub, 0)
	handler.now = func() time.Time { return fixedNow }
	return handler, st, pub
}

func baseCreate() CreateServiceOrder {
	return CreateServiceOrder{
		TrailerSerial: trailerSerial,
		ServiceType:   "Brakes",
		Description:   "Replace front pads",
	}
}

func stockOf(t *testing.T, st *mocks.MemoryStore, partID string) int {
	t.Helper()
	p, ok := st.Part(partID)
	require.True(t, ok)
	return p.Stock
}

func strPtr(s string) *string { return &s }

// ============================================
// Create Service Order Tests
// ============================================

func TestHandler_CreateServiceOrder_Success(t *testing.T) {
	handler, st, pub := newTestHandler()
	ctx := context.Background()

	cmd := baseCreate()
	cmd.EstimatedDeliveryDate = "2025-05-10"
	cmd.Employees = []string{mechanicRFC, helperRFC}
	cmd.PartUsages = []PartUsageInput{{PartID: brakePadID, QuantityUsed: 4}}
	cmd.Tools = []int64{jackID, welderID}

	view, err := handler.CreateServiceOrder(ctx, cmd)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(view.ID, "SRV1HGC"), view.ID)
	assert.Len(t, view.ID, 10)
	assert.Equal(t, "Pending", view.Status)
	assert.Equal(t, "ABC-123", view.Plate)
	assert.Equal(t, int64(1), view.ClientID)
	assert.Equal(t, "Ana Lopez Ruiz", view.ClientFullName)
	require.NotNil(t, view.EstimatedDeliveryDate)
	assert.Equal(t, "2025-05-10", *view.EstimatedDeliveryDate)
	assert.Equal(t, fixedNow, view.CreatedAt)

	assert.Equal(t, 6, stockOf(t, st, brakePadID))
	assert.ElementsMatch(t, []string{mechanicRFC, helperRFC}, st.Assignments(view.ID))
	usages := st.Usages(view.ID)
	require.Len(t, usages, 1)
	assert.True(t, decimal.RequireFromString("350").Equal(usages[0].UnitPriceCharged))
	for _, a := range st.Allocations(view.ID) {
		assert.Equal(t, tool.StateOccupied, a.State)
	}
	assert.Len(t, st.Allocations(view.ID), 2)
	assert.Equal(t, 1, st.Commits)

	require.Equal(t, []string{serviceorder.EventServiceOrderCreated}, pub.types())
	var payload serviceorder.ServiceOrderCreated
	require.NoError(t, json.Unmarshal(pub.last().Data, &payload))
	require.Len(t, payload.Parts, 1)
	assert.Equal(t, 6, payload.Parts[0].RemainingStock)
	assert.Equal(t, inventory.StockSufficient, payload.Parts[0].Level)
}

func TestHandler_CreateServiceOrder_CallerPrice(t *testing.T) {
	handler, st, _ := newTestHandler()
	price := decimal.RequireFromString("300.00")

	cmd := baseCreate()
	cmd.PartUsages = []PartUsageInput{{PartID: brakePadID, QuantityUsed: 1, UnitPriceCharged: &price}}

	view, err := handler.CreateServiceOrder(context.Background(), cmd)

	require.NoError(t, err)
	assert.True(t, price.Equal(st.Usages(view.ID)[0].UnitPriceCharged))
}

func TestHandler_CreateServiceOrder_ExplicitStatus(t *testing.T) {
	handler, _, _ := newTestHandler()

	cmd := baseCreate()
	cmd.Status = "InProgress"

	view, err := handler.CreateServiceOrder(context.Background(), cmd)

	require.NoError(t, err)
	assert.Equal(t, "InProgress", view.Status)
}

func TestHandler_CreateServiceOrder_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *CreateServiceOrder)
		wantErr error
	}{
		{"missing trailer", func(c *CreateServiceOrder) { c.TrailerSerial = "" }, serviceorder.ErrMissingFields},
		{"blank service type", func(c *CreateServiceOrder) { c.ServiceType = "   " }, serviceorder.ErrMissingFields},
		{"missing description", func(c *CreateServiceOrder) { c.Description = "" }, serviceorder.ErrMissingFields},
		{"unknown status", func(c *CreateServiceOrder) { c.Status = "Cancelled" }, serviceorder.ErrInvalidStatus},
		{"bad date", func(c *CreateServiceOrder) { c.EstimatedDeliveryDate = "10/05/2025" }, ErrInvalidDate},
		{"duplicate employee", func(c *CreateServiceOrder) { c.Employees = []string{mechanicRFC, mechanicRFC} }, ErrDuplicateEntry},
		{"duplicate part", func(c *CreateServiceOrder) {
			c.PartUsages = []PartUsageInput{{PartID: brakePadID, QuantityUsed: 1}, {PartID: brakePadID, QuantityUsed: 2}}
		}, ErrDuplicateEntry},
		{"duplicate tool", func(c *CreateServiceOrder) { c.Tools = []int64{welderID, welderID} }, ErrDuplicateEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, st, pub := newTestHandler()
			cmd := baseCreate()
			tt.mutate(&cmd)

			view, err := handler.CreateServiceOrder(context.Background(), cmd)

			assert.Nil(t, view)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Equal(t, 0, st.BeginCalls)
			assert.Empty(t, pub.types())
		})
	}
}

func TestHandler_CreateServiceOrder_TrailerNotFound(t *testing.T) {
	handler, st, _ := newTestHandler()

	cmd := baseCreate()
	cmd.TrailerSerial = "UNKNOWN"

	_, err := handler.CreateServiceOrder(context.Background(), cmd)

	assert.ErrorIs(t, err, serviceorder.ErrTrailerNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 0, st.OrderCount())
	assert.Equal(t, 1, st.Rollbacks)
}

func TestHandler_CreateServiceOrder_EmployeeNotFound(t *testing.T) {
	handler, st, _ := newTestHandler()

	cmd := baseCreate()
	cmd.Employees = []string{mechanicRFC, "GHOST000000"}

	_, err := handler.CreateServiceOrder(context.Background(), cmd)

	assert.ErrorIs(t, err, serviceorder.ErrEmployeeNotFound)
	assert.Equal(t, 0, st.OrderCount())
}

// Scenario A: more parts than in stock.
func TestHandler_CreateServiceOrder_InsufficientStock(t *testing.T) {
	handler, st, pub := newTestHandler()

	cmd := baseCreate()
	cmd.PartUsages = []PartUsageInput{{PartID: filterID, QuantityUsed: 5}}

	view, err := handler.CreateServiceOrder(context.Background(), cmd)

	assert.Nil(t, view)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 3, stockOf(t, st, filterID))
	assert.Equal(t, 0, st.OrderCount())
	assert.Empty(t, pub.types())
}

// Scenario B: the last unit of a tool goes to the first order only.
func TestHandler_CreateServiceOrder_LastToolUnit(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()

	cmd := baseCreate()
	cmd.Tools = []int64{jackID}

	first, err := handler.CreateServiceOrder(ctx, cmd)
	require.NoError(t, err)
	allocs := st.Allocations(first.ID)
	require.Len(t, allocs, 1)
	assert.Equal(t, tool.StateOccupied, allocs[0].State)

	second, err := handler.CreateServiceOrder(ctx, cmd)

	assert.Nil(t, second)
	assert.ErrorIs(t, err, tool.ErrNoUnitsAvailable)
	assert.Equal(t, 1, st.OccupiedCount(jackID))
	assert.Equal(t, 1, st.OrderCount())
}

func TestHandler_CreateServiceOrder_RollsBackEarlierSteps(t *testing.T) {
	handler, st, _ := newTestHandler()

	cmd := baseCreate()
	cmd.Employees = []string{mechanicRFC}
	cmd.PartUsages = []PartUsageInput{{PartID: brakePadID, QuantityUsed: 2}, {PartID: filterID, QuantityUsed: 1}}
	cmd.Tools = []int64{welderID, 99}

	_, err := handler.CreateServiceOrder(context.Background(), cmd)

	assert.ErrorIs(t, err, tool.ErrToolNotFound)
	assert.Equal(t, 10, stockOf(t, st, brakePadID))
	assert.Equal(t, 3, stockOf(t, st, filterID))
	assert.Equal(t, 0, st.OccupiedCount(welderID))
	assert.Equal(t, 0, st.OrderCount())
	assert.Equal(t, 0, st.Commits)
	assert.Equal(t, 1, st.Rollbacks)
}

func TestHandler_CreateServiceOrder_RegeneratesClaimedIdentifier(t *testing.T) {
	handler, st, _ := newTestHandler()
	st.ClaimedOnInsert = 2

	view, err := handler.CreateServiceOrder(context.Background(), baseCreate())

	require.NoError(t, err)
	_, ok := st.Order(view.ID)
	assert.True(t, ok)
	assert.Equal(t, 0, st.ClaimedOnInsert)
}

func TestHandler_CreateServiceOrder_IdentifierExhausted(t *testing.T) {
	handler, st, _ := newTestHandler()
	handler.maxIDAttempts = 3
	st.ClaimedOnInsert = 10

	_, err := handler.CreateServiceOrder(context.Background(), baseCreate())

	assert.ErrorIs(t, err, serviceorder.ErrIdentifierExhausted)
	assert.False(t, apperr.IsClassified(err))
	assert.Equal(t, 0, st.OrderCount())
}

func TestHandler_CreateServiceOrder_BeginFails(t *testing.T) {
	handler, st, _ := newTestHandler()
	st.BeginErr = errors.New("pool exhausted")

	_, err := handler.CreateServiceOrder(context.Background(), baseCreate())

	assert.EqualError(t, err, "pool exhausted")
}

func TestHandler_CreateServiceOrder_PublishFailureIsNotReturned(t *testing.T) {
	handler, st, pub := newTestHandler()
	pub.err = errors.New("broker down")

	view, err := handler.CreateServiceOrder(context.Background(), baseCreate())

	require.NoError(t, err)
	_, ok := st.Order(view.ID)
	assert.True(t, ok)
}

func TestHandler_CreateServiceOrder_WithoutPublisher(t *testing.T) {
	_, st, _ := newTestHandler()
	handler := NewHandler(st, nil, 0)

	_, err := handler.CreateServiceOrder(context.Background(), baseCreate())

	require.NoError(t, err)
}

func TestHandler_CreateServiceOrder_ConcurrentToolAllocation(t *testing.T) {
	handler, st, _ := newTestHandler()
	cmd := baseCreate()
	cmd.Tools = []int64{welderID}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := handler.CreateServiceOrder(context.Background(), cmd)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, tool.ErrNoUnitsAvailable) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, workers-2, rejected)
	assert.Equal(t, 2, st.OccupiedCount(welderID))
}

func TestHandler_CreateServiceOrder_ConcurrentStockReservation(t *testing.T) {
	handler, st, _ := newTestHandler()
	cmd := baseCreate()
	cmd.PartUsages = []PartUsageInput{{PartID: brakePadID, QuantityUsed: 3}}

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, rejected := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := handler.CreateServiceOrder(context.Background(), cmd)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, inventory.ErrInsufficientStock) {
				rejected++
			}
		}()
	}
	wg.Wait()

	// Stock 10 covers three reservations of 3.
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, rejected)
	assert.Equal(t, 1, stockOf(t, st, brakePadID))
}

// ============================================
// Update Service Order Tests
// ============================================

func createFull(t *testing.T, handler *Handler) string {
	t.Helper()
	cmd := baseCreate()
	cmd.Employees = []string{mechanicRFC}
	cmd.PartUsages = []PartUsageInput{{PartID: brakePadID, QuantityUsed: 4}}
	cmd.Tools = []int64{jackID, welderID}
	view, err := handler.CreateServiceOrder(context.Background(), cmd)
	require.NoError(t, err)
	return view.ID
}

// Scenario C: a status change alone frees the order's tools.
func TestHandler_UpdateServiceOrder_StatusPropagatesToTools(t *testing.T) {
	handler, st, pub := newTestHandler()
	id := createFull(t, handler)

	view, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{
		ServiceID: id,
		Status:    strPtr("Delivered"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Delivered", view.Status)
	allocs := st.Allocations(id)
	require.Len(t, allocs, 2)
	for _, a := range allocs {
		assert.Equal(t, tool.StateFree, a.State)
	}
	assert.Len(t, st.Usages(id), 1)
	assert.Equal(t, 6, stockOf(t, st, brakePadID))
	assert.Equal(t, []string{mechanicRFC}, st.Assignments(id))

	assert.Equal(t, serviceorder.EventServiceOrderUpdated, pub.last().Type)
	var payload serviceorder.ServiceOrderUpdated
	require.NoError(t, json.Unmarshal(pub.last().Data, &payload))
	assert.Equal(t, tool.StateFree, payload.ToolState)
}

func TestHandler_UpdateServiceOrder_BackToOpenStatusReoccupies(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)
	ctx := context.Background()

	_, err := handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: id, Status: strPtr("Completed")})
	require.NoError(t, err)
	_, err = handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: id, Status: strPtr("Pending")})
	require.NoError(t, err)

	for _, a := range st.Allocations(id) {
		assert.Equal(t, tool.StateOccupied, a.State)
	}
	assert.Equal(t, 1, st.OccupiedCount(jackID))
}

func TestHandler_UpdateServiceOrder_BackToOpenStatusWithoutUnits(t *testing.T) {
	handler, st, pub := newTestHandler()
	ctx := context.Background()
	first := createFull(t, handler)
	_, err := handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: first, Status: strPtr("Completed")})
	require.NoError(t, err)

	// The freed jack goes to another order.
	cmd := baseCreate()
	cmd.Tools = []int64{jackID}
	_, err = handler.CreateServiceOrder(ctx, cmd)
	require.NoError(t, err)
	published := len(pub.types())
	rollbacks := st.Rollbacks

	_, err = handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: first, Status: strPtr("Pending")})

	assert.ErrorIs(t, err, tool.ErrNoUnitsAvailable)
	assert.Equal(t, 1, st.OccupiedCount(jackID))
	order, _ := st.Order(first)
	assert.Equal(t, serviceorder.StatusCompleted, order.Status)
	for _, a := range st.Allocations(first) {
		assert.Equal(t, tool.StateFree, a.State)
	}
	assert.Equal(t, rollbacks+1, st.Rollbacks)
	assert.Len(t, pub.types(), published)
}

func TestHandler_UpdateServiceOrder_OpenToOpenKeepsEarlyReturn(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()
	id := createFull(t, handler)
	require.NoError(t, handler.ReleaseTool(ctx, ReleaseTool{ServiceID: id, ToolID: jackID}))

	for _, status := range []string{"Pending", "InProgress"} {
		_, err := handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: id, Status: strPtr(status)})
		require.NoError(t, err)
	}

	assert.Equal(t, 0, st.OccupiedCount(jackID))
	assert.Equal(t, 1, st.OccupiedCount(welderID))
}

func TestHandler_UpdateServiceOrder_MergesFields(t *testing.T) {
	handler, st, _ := newTestHandler()
	cmd := baseCreate()
	cmd.EstimatedDeliveryDate = "2025-06-01"
	created, err := handler.CreateServiceOrder(context.Background(), cmd)
	require.NoError(t, err)

	view, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{
		ServiceID:             created.ID,
		Description:           strPtr("Replace front and rear pads"),
		ServiceType:           strPtr(""),
		EstimatedDeliveryDate: strPtr(""),
	})

	require.NoError(t, err)
	assert.Equal(t, "Brakes", view.ServiceType)
	assert.Equal(t, "Replace front and rear pads", view.Description)
	assert.Equal(t, "Pending", view.Status)
	assert.Nil(t, view.EstimatedDeliveryDate)
	order, _ := st.Order(created.ID)
	assert.Equal(t, fixedNow, order.CreatedAt)
}

func TestHandler_UpdateServiceOrder_ReplacesParts(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)

	_, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{
		ServiceID:  id,
		PartUsages: []PartUsageInput{{PartID: brakePadID, QuantityUsed: 9}, {PartID: filterID, QuantityUsed: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, stockOf(t, st, brakePadID))
	assert.Equal(t, 2, stockOf(t, st, filterID))
	assert.Len(t, st.Usages(id), 2)
}

func TestHandler_UpdateServiceOrder_FailedReplacementKeepsOldUsages(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)

	_, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{
		ServiceID:  id,
		Status:     strPtr("Completed"),
		PartUsages: []PartUsageInput{{PartID: brakePadID, QuantityUsed: 11}},
	})

	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 6, stockOf(t, st, brakePadID))
	usages := st.Usages(id)
	require.Len(t, usages, 1)
	assert.Equal(t, 4, usages[0].QuantityUsed)
	order, _ := st.Order(id)
	assert.Equal(t, serviceorder.StatusPending, order.Status)
	for _, a := range st.Allocations(id) {
		assert.Equal(t, tool.StateOccupied, a.State)
	}
}

func TestHandler_UpdateServiceOrder_ReplacesToolsWithDerivedState(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)

	_, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{
		ServiceID: id,
		Status:    strPtr("Completed"),
		Tools:     []int64{welderID},
	})

	require.NoError(t, err)
	allocs := st.Allocations(id)
	require.Len(t, allocs, 1)
	assert.Equal(t, welderID, allocs[0].ToolID)
	assert.Equal(t, tool.StateFree, allocs[0].State)
	assert.Equal(t, 0, st.OccupiedCount(jackID))
}

func TestHandler_UpdateServiceOrder_ToolTakenByAnotherOrder(t *testing.T) {
	handler, st, _ := newTestHandler()
	ctx := context.Background()
	cmd := baseCreate()
	cmd.Tools = []int64{jackID}
	_, err := handler.CreateServiceOrder(ctx, cmd)
	require.NoError(t, err)
	other, err := handler.CreateServiceOrder(ctx, baseCreate())
	require.NoError(t, err)

	_, err = handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: other.ID, Tools: []int64{jackID}})

	assert.ErrorIs(t, err, tool.ErrNoUnitsAvailable)
	assert.Empty(t, st.Allocations(other.ID))
}

func TestHandler_UpdateServiceOrder_Employees(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)
	ctx := context.Background()

	_, err := handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: id, Employees: []string{helperRFC}})
	require.NoError(t, err)
	assert.Equal(t, []string{helperRFC}, st.Assignments(id))

	_, err = handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: id, Employees: []string{"GHOST000000"}})
	assert.ErrorIs(t, err, serviceorder.ErrEmployeeNotFound)
	assert.Equal(t, []string{helperRFC}, st.Assignments(id))

	_, err = handler.UpdateServiceOrder(ctx, UpdateServiceOrder{ServiceID: id, Employees: []string{}})
	require.NoError(t, err)
	assert.Empty(t, st.Assignments(id))
}

func TestHandler_UpdateServiceOrder_NotFound(t *testing.T) {
	handler, st, _ := newTestHandler()

	_, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{ServiceID: "SRVNOPEAAA", Status: strPtr("Completed")})

	assert.ErrorIs(t, err, serviceorder.ErrServiceOrderNotFound)
	assert.Equal(t, 1, st.Rollbacks)
}

func TestHandler_UpdateServiceOrder_InvalidStatus(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)
	rollbacks := st.Rollbacks

	_, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{ServiceID: id, Status: strPtr("Archived")})

	assert.ErrorIs(t, err, serviceorder.ErrInvalidStatus)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, rollbacks+1, st.Rollbacks)
	order, _ := st.Order(id)
	assert.Equal(t, serviceorder.StatusPending, order.Status)
}

func TestHandler_UpdateServiceOrder_MissingOrderBeforeInvalidStatus(t *testing.T) {
	handler, _, _ := newTestHandler()

	_, err := handler.UpdateServiceOrder(context.Background(), UpdateServiceOrder{ServiceID: "SRVNOPEAAA", Status: strPtr("Archived")})

	assert.ErrorIs(t, err, serviceorder.ErrServiceOrderNotFound)
	assert.NotErrorIs(t, err, serviceorder.ErrInvalidStatus)
}

// ============================================
// Delete Service Order Tests
// ============================================

// Scenario D: deleting restores the debited stock.
func TestHandler_DeleteServiceOrder_RestoresStock(t *testing.T) {
	handler, st, pub := newTestHandler()
	id := createFull(t, handler)
	require.Equal(t, 6, stockOf(t, st, brakePadID))

	view, err := handler.DeleteServiceOrder(context.Background(), DeleteServiceOrder{ServiceID: id})

	require.NoError(t, err)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "ABC-123", view.Plate)
	assert.Equal(t, 10, stockOf(t, st, brakePadID))
	_, ok := st.Order(id)
	assert.False(t, ok)
	assert.Empty(t, st.Usages(id))
	assert.Empty(t, st.Assignments(id))
	assert.Empty(t, st.Allocations(id))
	assert.Equal(t, 0, st.OccupiedCount(jackID))

	assert.Equal(t, serviceorder.EventServiceOrderDeleted, pub.last().Type)
	var payload serviceorder.ServiceOrderDeleted
	require.NoError(t, json.Unmarshal(pub.last().Data, &payload))
	assert.Equal(t, []serviceorder.RestoredPart{{PartID: brakePadID, Quantity: 4}}, payload.Restored)
}

func TestHandler_DeleteServiceOrder_NotFound(t *testing.T) {
	handler, _, _ := newTestHandler()

	view, err := handler.DeleteServiceOrder(context.Background(), DeleteServiceOrder{ServiceID: "SRVNOPEAAA"})

	assert.Nil(t, view)
	assert.ErrorIs(t, err, serviceorder.ErrServiceOrderNotFound)
}

func TestHandler_DeleteServiceOrder_FailureLeavesEverything(t *testing.T) {
	handler, st, _ := newTestHandler()
	id := createFull(t, handler)
	st.FailOn["DeleteServiceOrder"] = errors.New("deadlock detected")

	_, err := handler.DeleteServiceOrder(context.Background(), DeleteServiceOrder{ServiceID: id})

	assert.EqualError(t, err, "deadlock detected")
	assert.Equal(t, 6, stockOf(t, st, brakePadID))
	_, ok := st.Order(id)
	assert.True(t, ok)
	assert.Len(t, st.Usages(id), 1)
	assert.Len(t, st.Allocations(id), 2)
	assert.Equal(t, []string{mechanicRFC}, st.Assignments(id))
}

func TestHandler_DeleteServiceOrder_MissingID(t *testing.T) {
	handler, _, _ := newTestHandler()

	_, err := handler.DeleteServiceOrder(context.Background(), DeleteServiceOrder{})

	assert.ErrorIs(t, err, ErrMissingID)
}

// ============================================
// Release Tool Tests
// ============================================

func TestHandler_ReleaseTool(t *testing.T) {
	handler, st, pub := newTestHandler()
	id := createFull(t, handler)

	err := handler.ReleaseTool(context.Background(), ReleaseTool{ServiceID: id, ToolID: jackID})

	require.NoError(t, err)
	assert.Equal(t, 0, st.OccupiedCount(jackID))
	assert.Equal(t, 1, st.OccupiedCount(welderID))
	assert.Equal(t, serviceorder.EventToolReleased, pub.last().Type)

	// The freed unit can now go to another order.
	cmd := baseCreate()
	cmd.Tools = []int64{jackID}
	_, err = handler.CreateServiceOrder(context.Background(), cmd)
	require.NoError(t, err)
}

// Scenario E: nothing occupied to release.
func TestHandler_ReleaseTool_NotFound(t *testing.T) {
	handler, st, pub := newTestHandler()
	id := createFull(t, handler)
	require.NoError(t, handler.ReleaseTool(context.Background(), ReleaseTool{ServiceID: id, ToolID: jackID}))
	published := len(pub.types())

	err := handler.ReleaseTool(context.Background(), ReleaseTool{ServiceID: id, ToolID: jackID})

	assert.ErrorIs(t, err, tool.ErrAllocationNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Len(t, pub.types(), published)

	err = handler.ReleaseTool(context.Background(), ReleaseTool{ServiceID: "SRVNOPEAAA", ToolID: welderID})
	assert.ErrorIs(t, err, tool.ErrAllocationNotFound)
	assert.Equal(t, 1, st.OccupiedCount(welderID))
}
