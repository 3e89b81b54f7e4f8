package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/domain/tool"
	"github.com/example/trailer-shop/internal/readmodel"
)

// pgTx implements Tx on top of a database transaction
type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Commit() error {
	return t.tx.Commit()
}

func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (t *pgTx) GetServiceOrderView(ctx context.Context, id string) (*readmodel.ServiceOrderView, bool, error) {
	return getServiceOrderView(ctx, t.tx, id)
}

// Trailers and employees

func (t *pgTx) GetTrailer(ctx context.Context, serial string) (*serviceorder.Trailer, bool, error) {
	var tr serviceorder.Trailer
	err := t.tx.QueryRowContext(ctx,
		`SELECT serial, plate, brand, model, client_id FROM trailers WHERE serial = $1`,
		serial,
	).Scan(&tr.Serial, &tr.Plate, &tr.Brand, &tr.Model, &tr.ClientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get trailer %s: %w", serial, err)
	}
	return &tr, true, nil
}

func (t *pgTx) EmployeeExists(ctx context.Context, rfc string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM employees WHERE rfc = $1)`,
		rfc,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check employee %s: %w", rfc, err)
	}
	return exists, nil
}

func (t *pgTx) InsertEmployeeAssignment(ctx context.Context, serviceID, rfc string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO service_employees (service_id, employee_rfc) VALUES ($1, $2)`,
		serviceID, rfc,
	)
	if err != nil {
		return fmt.Errorf("assign employee %s: %w", rfc, classify(err))
	}
	return nil
}

func (t *pgTx) DeleteEmployeeAssignments(ctx context.Context, serviceID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM service_employees WHERE service_id = $1`, serviceID)
	if err != nil {
		return fmt.Errorf("delete employees of %s: %w", serviceID, err)
	}
	return nil
}

// Service orders

func (t *pgTx) ServiceOrderExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM service_orders WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (t *pgTx) InsertServiceOrder(ctx context.Context, o *serviceorder.ServiceOrder) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO service_orders (id, trailer_serial, estimated_delivery, service_type, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, o.ID, o.TrailerSerial, nullTime(o.EstimatedDelivery), o.ServiceType, o.Description, string(o.Status), o.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert service order %s: %w", o.ID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *pgTx) GetServiceOrderForUpdate(ctx context.Context, id string) (*serviceorder.ServiceOrder, bool, error) {
	var o serviceorder.ServiceOrder
	var estimated sql.NullTime
	var status string
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, trailer_serial, estimated_delivery, service_type, description, status, created_at
		FROM service_orders WHERE id = $1
		FOR UPDATE
	`, id).Scan(&o.ID, &o.TrailerSerial, &estimated, &o.ServiceType, &o.Description, &status, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get service order %s: %w", id, err)
	}
	o.Status = serviceorder.Status(status)
	if estimated.Valid {
		o.EstimatedDelivery = &estimated.Time
	}
	return &o, true, nil
}

func (t *pgTx) UpdateServiceOrder(ctx context.Context, o *serviceorder.ServiceOrder) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE service_orders
		SET estimated_delivery = $2, service_type = $3, description = $4, status = $5
		WHERE id = $1
	`, o.ID, nullTime(o.EstimatedDelivery), o.ServiceType, o.Description, string(o.Status))
	if err != nil {
		return fmt.Errorf("update service order %s: %w", o.ID, classify(err))
	}
	return nil
}

func (t *pgTx) DeleteServiceOrder(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM service_orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete service order %s: %w", id, err)
	}
	return nil
}

// Parts

func (t *pgTx) GetPart(ctx context.Context, partID string) (*inventory.Part, bool, error) {
	var p inventory.Part
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, stock, minimum_stock, sale_price FROM parts WHERE id = $1`,
		partID,
	).Scan(&p.ID, &p.Name, &p.Stock, &p.MinimumStock, &p.SalePrice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &p, true, nil
}

func (t *pgTx) DebitStock(ctx context.Context, partID string, quantity int) (int, bool, error) {
	var remaining int
	err := t.tx.QueryRowContext(ctx, `
		UPDATE parts SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING stock
	`, partID, quantity).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

func (t *pgTx) CreditStock(ctx context.Context, partID string, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE parts SET stock = stock + $2 WHERE id = $1`, partID, quantity)
	return err
}

func (t *pgTx) InsertPartUsage(ctx context.Context, u inventory.Usage) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO service_parts (service_id, part_id, quantity_used, unit_price_charged)
		VALUES ($1, $2, $3, $4)
	`, u.ServiceID, u.PartID, u.QuantityUsed, u.UnitPriceCharged)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (t *pgTx) ListPartUsages(ctx context.Context, serviceID string) ([]inventory.Usage, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT service_id, part_id, quantity_used, unit_price_charged
		FROM service_parts WHERE service_id = $1
	`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usages []inventory.Usage
	for rows.Next() {
		var u inventory.Usage
		if err := rows.Scan(&u.ServiceID, &u.PartID, &u.QuantityUsed, &u.UnitPriceCharged); err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func (t *pgTx) DeletePartUsages(ctx context.Context, serviceID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM service_parts WHERE service_id = $1`, serviceID)
	return err
}

// Tools

func (t *pgTx) GetToolForUpdate(ctx context.Context, toolID int64) (*tool.Tool, bool, error) {
	var tl tool.Tool
	var brand sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, brand, total_quantity FROM tools WHERE id = $1
		FOR UPDATE
	`, toolID).Scan(&tl.ID, &tl.Name, &brand, &tl.TotalQuantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	tl.Brand = brand.String
	return &tl, true, nil
}

func (t *pgTx) CountOccupied(ctx context.Context, toolID int64) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM service_tools WHERE tool_id = $1 AND state = $2`,
		toolID, string(tool.StateOccupied),
	).Scan(&n)
	return n, err
}

func (t *pgTx) InsertAllocation(ctx context.Context, a tool.Allocation) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO service_tools (service_id, tool_id, state) VALUES ($1, $2, $3)`,
		a.ServiceID, a.ToolID, string(a.State),
	)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (t *pgTx) ListAllocations(ctx context.Context, serviceID string) ([]tool.Allocation, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT service_id, tool_id, state FROM service_tools WHERE service_id = $1 ORDER BY tool_id`,
		serviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []tool.Allocation
	for rows.Next() {
		var a tool.Allocation
		var state string
		if err := rows.Scan(&a.ServiceID, &a.ToolID, &state); err != nil {
			return nil, err
		}
		a.State = tool.State(state)
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func (t *pgTx) DeleteAllocations(ctx context.Context, serviceID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM service_tools WHERE service_id = $1`, serviceID)
	return err
}

func (t *pgTx) UpdateAllocationStates(ctx context.Context, serviceID string, state tool.State) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE service_tools SET state = $2 WHERE service_id = $1`,
		serviceID, string(state),
	)
	return err
}

func (t *pgTx) ReleaseAllocation(ctx context.Context, serviceID string, toolID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE service_tools SET state = $3
		WHERE service_id = $1 AND tool_id = $2 AND state = $4
	`, serviceID, toolID, string(tool.StateFree), string(tool.StateOccupied))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
