package mocks

import (
	"context"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/domain/tool"
	"github.com/example/trailer-shop/internal/readmodel"
)

// memoryTx works on a private copy of the store's data
type memoryTx struct {
	store *MemoryStore
	data  *dataset
	done  bool
}

func (t *memoryTx) fail(method string) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.FailOn[method]
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	if err := t.fail("Commit"); err != nil {
		return err
	}
	t.done = true

	t.store.mu.Lock()
	t.store.data = t.data
	t.store.Commits++
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true

	t.store.mu.Lock()
	t.store.Rollbacks++
	t.store.mu.Unlock()
	t.store.txMu.Unlock()
	return nil
}

func (t *memoryTx) GetServiceOrderView(_ context.Context, id string) (*readmodel.ServiceOrderView, bool, error) {
	if err := t.fail("GetServiceOrderView"); err != nil {
		return nil, false, err
	}
	v, ok := t.data.view(id)
	return v, ok, nil
}

func (t *memoryTx) GetTrailer(_ context.Context, serial string) (*serviceorder.Trailer, bool, error) {
	if err := t.fail("GetTrailer"); err != nil {
		return nil, false, err
	}
	tr, ok := t.data.trailers[serial]
	if !ok {
		return nil, false, nil
	}
	return &tr, true, nil
}

func (t *memoryTx) EmployeeExists(_ context.Context, rfc string) (bool, error) {
	if err := t.fail("EmployeeExists"); err != nil {
		return false, err
	}
	_, ok := t.data.employees[rfc]
	return ok, nil
}

func (t *memoryTx) ServiceOrderExists(_ context.Context, id string) (bool, error) {
	if err := t.fail("ServiceOrderExists"); err != nil {
		return false, err
	}
	_, ok := t.data.orders[id]
	return ok, nil
}

func (t *memoryTx) InsertServiceOrder(_ context.Context, o *serviceorder.ServiceOrder) (bool, error) {
	if err := t.fail("InsertServiceOrder"); err != nil {
		return false, err
	}
	t.store.mu.Lock()
	claimed := t.store.ClaimedOnInsert > 0
	if claimed {
		t.store.ClaimedOnInsert--
	}
	t.store.mu.Unlock()
	if claimed {
		return false, nil
	}

	if _, ok := t.data.orders[o.ID]; ok {
		return false, nil
	}
	t.data.orders[o.ID] = *o
	return true, nil
}

func (t *memoryTx) GetServiceOrderForUpdate(_ context.Context, id string) (*serviceorder.ServiceOrder, bool, error) {
	if err := t.fail("GetServiceOrderForUpdate"); err != nil {
		return nil, false, err
	}
	o, ok := t.data.orders[id]
	if !ok {
		return nil, false, nil
	}
	return &o, true, nil
}

func (t *memoryTx) UpdateServiceOrder(_ context.Context, o *serviceorder.ServiceOrder) error {
	if err := t.fail("UpdateServiceOrder"); err != nil {
		return err
	}
	if _, ok := t.data.orders[o.ID]; !ok {
		return apperr.NotFound("service order %s not found", o.ID)
	}
	t.data.orders[o.ID] = *o
	return nil
}

func (t *memoryTx) DeleteServiceOrder(_ context.Context, id string) error {
	if err := t.fail("DeleteServiceOrder"); err != nil {
		return err
	}
	delete(t.data.orders, id)
	return nil
}

func (t *memoryTx) InsertEmployeeAssignment(_ context.Context, serviceID, rfc string) error {
	if err := t.fail("InsertEmployeeAssignment"); err != nil {
		return err
	}
	for _, a := range t.data.assignments {
		if a.ServiceID == serviceID && a.RFC == rfc {
			return apperr.Conflict("employee %s already assigned to %s", rfc, serviceID)
		}
	}
	t.data.assignments = append(t.data.assignments, assignment{ServiceID: serviceID, RFC: rfc})
	return nil
}

func (t *memoryTx) DeleteEmployeeAssignments(_ context.Context, serviceID string) error {
	if err := t.fail("DeleteEmployeeAssignments"); err != nil {
		return err
	}
	kept := t.data.assignments[:0]
	for _, a := range t.data.assignments {
		if a.ServiceID != serviceID {
			kept = append(kept, a)
		}
	}
	t.data.assignments = kept
	return nil
}

func (t *memoryTx) GetPart(_ context.Context, partID string) (*inventory.Part, bool, error) {
	if err := t.fail("GetPart"); err != nil {
		return nil, false, err
	}
	p, ok := t.data.parts[partID]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (t *memoryTx) DebitStock(_ context.Context, partID string, quantity int) (int, bool, error) {
	if err := t.fail("DebitStock"); err != nil {
		return 0, false, err
	}
	p, ok := t.data.parts[partID]
	if !ok || p.Stock < quantity {
		return 0, false, nil
	}
	p.Stock -= quantity
	t.data.parts[partID] = p
	return p.Stock, true, nil
}

func (t *memoryTx) CreditStock(_ context.Context, partID string, quantity int) error {
	if err := t.fail("CreditStock"); err != nil {
		return err
	}
	p, ok := t.data.parts[partID]
	if !ok {
		return nil
	}
	p.Stock += quantity
	t.data.parts[partID] = p
	return nil
}

func (t *memoryTx) InsertPartUsage(_ context.Context, u inventory.Usage) error {
	if err := t.fail("InsertPartUsage"); err != nil {
		return err
	}
	t.data.usages = append(t.data.usages, u)
	return nil
}

func (t *memoryTx) ListPartUsages(_ context.Context, serviceID string) ([]inventory.Usage, error) {
	if err := t.fail("ListPartUsages"); err != nil {
		return nil, err
	}
	var out []inventory.Usage
	for _, u := range t.data.usages {
		if u.ServiceID == serviceID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (t *memoryTx) DeletePartUsages(_ context.Context, serviceID string) error {
	if err := t.fail("DeletePartUsages"); err != nil {
		return err
	}
	kept := t.data.usages[:0]
	for _, u := range t.data.usages {
		if u.ServiceID != serviceID {
			kept = append(kept, u)
		}
	}
	t.data.usages = kept
	return nil
}

func (t *memoryTx) GetToolForUpdate(_ context.Context, toolID int64) (*tool.Tool, bool, error) {
	if err := t.fail("GetToolForUpdate"); err != nil {
		return nil, false, err
	}
	tl, ok := t.data.tools[toolID]
	if !ok {
		return nil, false, nil
	}
	return &tl, true, nil
}

func (t *memoryTx) CountOccupied(_ context.Context, toolID int64) (int, error) {
	if err := t.fail("CountOccupied"); err != nil {
		return 0, err
	}
	return t.data.occupied(toolID), nil
}

func (t *memoryTx) InsertAllocation(_ context.Context, a tool.Allocation) error {
	if err := t.fail("InsertAllocation"); err != nil {
		return err
	}
	t.data.allocations = append(t.data.allocations, a)
	return nil
}

func (t *memoryTx) ListAllocations(_ context.Context, serviceID string) ([]tool.Allocation, error) {
	if err := t.fail("ListAllocations"); err != nil {
		return nil, err
	}
	var out []tool.Allocation
	for _, a := range t.data.allocations {
		if a.ServiceID == serviceID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memoryTx) DeleteAllocations(_ context.Context, serviceID string) error {
	if err := t.fail("DeleteAllocations"); err != nil {
		return err
	}
	kept := t.data.allocations[:0]
	for _, a := range t.data.allocations {
		if a.ServiceID != serviceID {
			kept = append(kept, a)
		}
	}
	t.data.allocations = kept
	return nil
}

func (t *memoryTx) UpdateAllocationStates(_ context.Context, serviceID string, state tool.State) error {
	if err := t.fail("UpdateAllocationStates"); err != nil {
		return err
	}
	for i := range t.data.allocations {
		if t.data.allocations[i].ServiceID == serviceID {
			t.data.allocations[i].State = state
		}
	}
	return nil
}

func (t *memoryTx) ReleaseAllocation(_ context.Context, serviceID string, toolID int64) (bool, error) {
	if err := t.fail("ReleaseAllocation"); err != nil {
		return false, err
	}
	released := false
	for i := range t.data.allocations {
		a := &t.data.allocations[i]
		if a.ServiceID == serviceID && a.ToolID == toolID && a.State == tool.StateOccupied {
			a.State = tool.StateFree
			released = true
		}
	}
	return released, nil
}
