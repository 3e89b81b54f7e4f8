package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/trailer-shop/internal/apperr"
)

var (
	ErrPartNotFound      = apperr.NotFound("part not found")
	ErrInsufficientStock = apperr.Conflict("insufficient stock")
	ErrInvalidQuantity   = apperr.Validation("quantity must be positive")
	ErrInvalidPrice      = apperr.Validation("unit price must not be negative")
)

// Part is the master data the ledger reads and debits.
type Part struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Stock        int             `json:"stock"`
	MinimumStock int             `json:"minimum_stock"`
	SalePrice    decimal.Decimal `json:"sale_price"`
}

// Request asks for a quantity of a part. A nil UnitPrice charges the part's
// sale price.
type Request struct {
	PartID    string
	Quantity  int
	UnitPrice *decimal.Decimal
}

// Usage is a recorded debit of a part against a service order.
type Usage struct {
	ServiceID        string          `json:"service_id"`
	PartID           string          `json:"part_id"`
	QuantityUsed     int             `json:"quantity_used"`
	UnitPriceCharged decimal.Decimal `json:"unit_price_charged"`
}

// Reservation is the outcome of a successful Reserve.
type Reservation struct {
	PartID         string          `json:"part_id"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	RemainingStock int             `json:"remaining_stock"`
	MinimumStock   int             `json:"minimum_stock"`
	Level          StockLevel      `json:"level"`
}

// Repository is the transaction-scoped persistence the ledger works against.
type Repository interface {
	GetPart(ctx context.Context, partID string) (*Part, bool, error)
	// DebitStock subtracts quantity only when enough stock is left, in a single
	// conditional write. ok is false when nothing was debited.
	DebitStock(ctx context.Context, partID string, quantity int) (remaining int, ok bool, err error)
	CreditStock(ctx context.Context, partID string, quantity int) error
	InsertPartUsage(ctx context.Context, usage Usage) error
	ListPartUsages(ctx context.Context, serviceID string) ([]Usage, error)
	DeletePartUsages(ctx context.Context, serviceID string) error
}

// Ledger keeps part stock non-negative and every usage backed by a debit.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Reserve debits the requested quantity and records the usage for the order.
func (l *Ledger) Reserve(ctx context.Context, serviceID string, req Request) (*Reservation, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("part %s: %w", req.PartID, ErrInvalidQuantity)
	}
	if req.UnitPrice != nil && req.UnitPrice.IsNegative() {
		return nil, fmt.Errorf("part %s: %w", req.PartID, ErrInvalidPrice)
	}

	part, ok, err := l.repo.GetPart(ctx, req.PartID)
	if err != nil {
		return nil, fmt.Errorf("load part %s: %w", req.PartID, err)
	}
	if !ok {
		return nil, fmt.Errorf("part %s: %w", req.PartID, ErrPartNotFound)
	}

	remaining, debited, err := l.repo.DebitStock(ctx, part.ID, req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("debit part %s: %w", part.ID, err)
	}
	if !debited {
		return nil, fmt.Errorf("part %s: %w: available %d, requested %d", part.ID, ErrInsufficientStock, part.Stock, req.Quantity)
	}

	price := part.SalePrice
	if req.UnitPrice != nil {
		price = *req.UnitPrice
	}

	if err := l.repo.InsertPartUsage(ctx, Usage{
		ServiceID:        serviceID,
		PartID:           part.ID,
		QuantityUsed:     req.Quantity,
		UnitPriceCharged: price,
	}); err != nil {
		return nil, fmt.Errorf("record usage of part %s: %w", part.ID, err)
	}

	return &Reservation{
		PartID:         part.ID,
		Quantity:       req.Quantity,
		UnitPrice:      price,
		RemainingStock: remaining,
		MinimumStock:   part.MinimumStock,
		Level:          ClassifyStock(remaining, part.MinimumStock),
	}, nil
}

// Release credits stock back. It reverses an earlier reservation.
func (l *Ledger) Release(ctx context.Context, partID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("part %s: %w", partID, ErrInvalidQuantity)
	}
	if err := l.repo.CreditStock(ctx, partID, quantity); err != nil {
		return fmt.Errorf("credit part %s: %w", partID, err)
	}
	return nil
}

// ReleaseAll credits every usage of the order and removes the usage records.
// It returns the usages that were reversed.
func (l *Ledger) ReleaseAll(ctx context.Context, serviceID string) ([]Usage, error) {
	usages, err := l.repo.ListPartUsages(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list usages of %s: %w", serviceID, err)
	}
	for _, u := range usages {
		if err := l.Release(ctx, u.PartID, u.QuantityUsed); err != nil {
			return nil, err
		}
	}
	if err := l.repo.DeletePartUsages(ctx, serviceID); err != nil {
		return nil, fmt.Errorf("delete usages of %s: %w", serviceID, err)
	}
	return usages, nil
}

// ReplaceUsages reverses the current usages of the order and reserves the new
// list. Any failed reservation fails the whole replacement; the caller rolls
// back the transaction so no partial state survives.
func (l *Ledger) ReplaceUsages(ctx context.Context, serviceID string, reqs []Request) ([]Reservation, error) {
	if _, err := l.ReleaseAll(ctx, serviceID); err != nil {
		return nil, err
	}
	reservations := make([]Reservation, 0, len(reqs))
	for _, req := range reqs {
		r, err := l.Reserve(ctx, serviceID, req)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *r)
	}
	return reservations, nil
}
