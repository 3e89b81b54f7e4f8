package tool

import (
	"context"
	"fmt"

	"github.com/example/trailer-shop/internal/apperr"
)

// State is the occupancy of a tool unit allocated to a service order.
type State string

const (
	StateOccupied State = "Occupied"
	StateFree     State = "Free"
)

func (s State) Valid() bool {
	return s == StateOccupied || s == StateFree
}

var (
	ErrToolNotFound       = apperr.NotFound("tool not found")
	ErrNoUnitsAvailable   = apperr.Conflict("no units available")
	ErrAllocationNotFound = apperr.NotFound("no occupied allocation found for this tool")
	ErrInvalidState       = apperr.Validation("invalid occupancy state")
)

// Tool is the master data the tracker needs: how many units the shop owns.
type Tool struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Brand         string `json:"brand"`
	TotalQuantity int    `json:"total_quantity"`
}

// Allocation binds one tool unit to a service order.
type Allocation struct {
	ServiceID string `json:"service_id"`
	ToolID    int64  `json:"tool_id"`
	State     State  `json:"state"`
}

// Repository is the transaction-scoped persistence the tracker works against.
type Repository interface {
	// GetToolForUpdate loads the tool and holds a row lock on it until the
	// transaction ends, so the occupied count cannot change underneath Allocate.
	GetToolForUpdate(ctx context.Context, toolID int64) (*Tool, bool, error)
	CountOccupied(ctx context.Context, toolID int64) (int, error)
	InsertAllocation(ctx context.Context, allocation Allocation) error
	ListAllocations(ctx context.Context, serviceID string) ([]Allocation, error)
	DeleteAllocations(ctx context.Context, serviceID string) error
	UpdateAllocationStates(ctx context.Context, serviceID string, state State) error
	// ReleaseAllocation flips a single Occupied allocation to Free and reports
	// whether a row matched.
	ReleaseAllocation(ctx context.Context, serviceID string, toolID int64) (bool, error)
}

// Tracker enforces per-tool capacity. It knows nothing about service order
// statuses; callers pass the desired occupancy state.
type Tracker struct {
	repo Repository
}

func NewTracker(repo Repository) *Tracker {
	return &Tracker{repo: repo}
}

// Allocate assigns a unit of the tool to the service order.
func (t *Tracker) Allocate(ctx context.Context, serviceID string, toolID int64, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%q: %w", state, ErrInvalidState)
	}

	if state == StateOccupied {
		if err := t.checkCapacity(ctx, toolID); err != nil {
			return err
		}
	} else if _, err := t.lockTool(ctx, toolID); err != nil {
		return err
	}

	return t.repo.InsertAllocation(ctx, Allocation{
		ServiceID: serviceID,
		ToolID:    toolID,
		State:     state,
	})
}

// lockTool loads the tool under a row lock held until the transaction ends.
func (t *Tracker) lockTool(ctx context.Context, toolID int64) (*Tool, error) {
	tl, ok, err := t.repo.GetToolForUpdate(ctx, toolID)
	if err != nil {
		return nil, fmt.Errorf("load tool %d: %w", toolID, err)
	}
	if !ok {
		return nil, fmt.Errorf("tool %d: %w", toolID, ErrToolNotFound)
	}
	return tl, nil
}

// checkCapacity locks the tool and fails when every unit is already occupied.
func (t *Tracker) checkCapacity(ctx context.Context, toolID int64) error {
	tl, err := t.lockTool(ctx, toolID)
	if err != nil {
		return err
	}
	occupied, err := t.repo.CountOccupied(ctx, toolID)
	if err != nil {
		return fmt.Errorf("count occupied units of tool %d: %w", toolID, err)
	}
	if occupied >= tl.TotalQuantity {
		return fmt.Errorf("tool %q: %w (%d of %d in use)", tl.Name, ErrNoUnitsAvailable, occupied, tl.TotalQuantity)
	}
	return nil
}

// ReplaceAllocations drops every allocation of the order and allocates the new
// list. The first failure is returned and the caller must abort the transaction.
func (t *Tracker) ReplaceAllocations(ctx context.Context, serviceID string, toolIDs []int64, state State) error {
	if err := t.repo.DeleteAllocations(ctx, serviceID); err != nil {
		return fmt.Errorf("delete allocations of %s: %w", serviceID, err)
	}
	for _, toolID := range toolIDs {
		if err := t.Allocate(ctx, serviceID, toolID, state); err != nil {
			return err
		}
	}
	return nil
}

// PropagateState sets the state of every existing allocation of the order
// without touching membership. Turning a free allocation back to Occupied
// takes a unit like Allocate does and fails when none is left.
func (t *Tracker) PropagateState(ctx context.Context, serviceID string, state State) error {
	if !state.Valid() {
		return fmt.Errorf("%q: %w", state, ErrInvalidState)
	}

	if state == StateOccupied {
		allocations, err := t.repo.ListAllocations(ctx, serviceID)
		if err != nil {
			return fmt.Errorf("list allocations of %s: %w", serviceID, err)
		}
		for _, a := range allocations {
			if a.State != StateFree {
				continue
			}
			if err := t.checkCapacity(ctx, a.ToolID); err != nil {
				return err
			}
		}
	}

	return t.repo.UpdateAllocationStates(ctx, serviceID, state)
}

// Release frees a single occupied allocation. An allocation that is already
// free and one that does not exist are reported the same way.
func (t *Tracker) Release(ctx context.Context, serviceID string, toolID int64) error {
	released, err := t.repo.ReleaseAllocation(ctx, serviceID, toolID)
	if err != nil {
		return fmt.Errorf("release tool %d of %s: %w", toolID, serviceID, err)
	}
	if !released {
		return fmt.Errorf("service %s, tool %d: %w", serviceID, toolID, ErrAllocationNotFound)
	}
	return nil
}

// DeleteAll removes every allocation of the order.
func (t *Tracker) DeleteAll(ctx context.Context, serviceID string) error {
	return t.repo.DeleteAllocations(ctx, serviceID)
}
