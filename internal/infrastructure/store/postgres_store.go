package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/omeid/pgerror"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/readmodel"
)

// PostgresStore implements Store and UserStore using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// BeginTx opens a transaction that backs one workflow invocation
func (s *PostgresStore) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const serviceOrderViewSelect = `
	SELECT s.id, s.trailer_serial, s.estimated_delivery, s.service_type, s.description, s.status, s.created_at,
		t.plate, t.brand, t.model, t.client_id,
		c.first_name, c.last_name,
		CONCAT_WS(' ', c.first_name, c.last_name, c.second_last_name)
	FROM service_orders s
	INNER JOIN trailers t ON s.trailer_serial = t.serial
	INNER JOIN clients c ON t.client_id = c.id`

func scanServiceOrderView(row rowScanner) (*readmodel.ServiceOrderView, error) {
	var v readmodel.ServiceOrderView
	var estimated sql.NullTime
	err := row.Scan(
		&v.ID, &v.TrailerSerial, &estimated, &v.ServiceType, &v.Description, &v.Status, &v.CreatedAt,
		&v.Plate, &v.TrailerBrand, &v.TrailerModel, &v.ClientID,
		&v.ClientFirstName, &v.ClientLastName, &v.ClientFullName,
	)
	if err != nil {
		return nil, err
	}
	if estimated.Valid {
		v.EstimatedDeliveryDate = readmodel.FormatDate(&estimated.Time)
	}
	return &v, nil
}

func getServiceOrderView(ctx context.Context, q queryer, id string) (*readmodel.ServiceOrderView, bool, error) {
	v, err := scanServiceOrderView(q.QueryRowContext(ctx, serviceOrderViewSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get service order view %s: %w", id, err)
	}
	return v, true, nil
}

// ListServiceOrders returns joined views, newest first
func (s *PostgresStore) ListServiceOrders(ctx context.Context, search string) ([]*readmodel.ServiceOrderView, error) {
	query := serviceOrderViewSelect
	var args []any
	if search != "" {
		query += `
	WHERE s.id ILIKE $1 OR s.service_type ILIKE $1 OR s.description ILIKE $1 OR t.plate ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += `
	ORDER BY s.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list service orders: %w", err)
	}
	defer rows.Close()

	views := make([]*readmodel.ServiceOrderView, 0)
	for rows.Next() {
		v, err := scanServiceOrderView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service order: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// GetServiceOrderDetail returns the view with its crew, part usages and tools
func (s *PostgresStore) GetServiceOrderDetail(ctx context.Context, id string) (*readmodel.ServiceOrderDetail, bool, error) {
	view, ok, err := getServiceOrderView(ctx, s.db, id)
	if err != nil || !ok {
		return nil, ok, err
	}

	detail := &readmodel.ServiceOrderDetail{ServiceOrderView: *view}
	if detail.Employees, err = s.assignedEmployees(ctx, id); err != nil {
		return nil, false, err
	}
	if detail.PartUsages, err = s.partUsages(ctx, id); err != nil {
		return nil, false, err
	}
	if detail.Tools, err = s.toolAllocations(ctx, id); err != nil {
		return nil, false, err
	}
	return detail, true, nil
}

func (s *PostgresStore) assignedEmployees(ctx context.Context, serviceID string) ([]readmodel.AssignedEmployeeReadModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.rfc, e.first_name, e.last_name, COALESCE(e.second_last_name, ''), COALESCE(e.position, ''),
			CONCAT_WS(' ', e.first_name, e.last_name, e.second_last_name)
		FROM service_employees se
		INNER JOIN employees e ON se.employee_rfc = e.rfc
		WHERE se.service_id = $1
		ORDER BY e.rfc
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list employees of %s: %w", serviceID, err)
	}
	defer rows.Close()

	employees := make([]readmodel.AssignedEmployeeReadModel, 0)
	for rows.Next() {
		var e readmodel.AssignedEmployeeReadModel
		if err := rows.Scan(&e.RFC, &e.FirstName, &e.LastName, &e.SecondLastName, &e.Position, &e.FullName); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (s *PostgresStore) partUsages(ctx context.Context, serviceID string) ([]readmodel.PartUsageReadModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sp.part_id, p.name, sp.quantity_used, sp.unit_price_charged
		FROM service_parts sp
		INNER JOIN parts p ON sp.part_id = p.id
		WHERE sp.service_id = $1
		ORDER BY sp.part_id
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list part usages of %s: %w", serviceID, err)
	}
	defer rows.Close()

	usages := make([]readmodel.PartUsageReadModel, 0)
	for rows.Next() {
		var u readmodel.PartUsageReadModel
		if err := rows.Scan(&u.PartID, &u.PartName, &u.QuantityUsed, &u.UnitPriceCharged); err != nil {
			return nil, fmt.Errorf("scan part usage: %w", err)
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

func (s *PostgresStore) toolAllocations(ctx context.Context, serviceID string) ([]readmodel.ToolAllocationReadModel, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.tool_id, t.name, COALESCE(t.brand, ''), st.state
		FROM service_tools st
		INNER JOIN tools t ON st.tool_id = t.id
		WHERE st.service_id = $1
		ORDER BY st.tool_id
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list tools of %s: %w", serviceID, err)
	}
	defer rows.Close()

	tools := make([]readmodel.ToolAllocationReadModel, 0)
	for rows.Next() {
		var tl readmodel.ToolAllocationReadModel
		if err := rows.Scan(&tl.ToolID, &tl.ToolName, &tl.Brand, &tl.State); err != nil {
			return nil, fmt.Errorf("scan tool allocation: %w", err)
		}
		tools = append(tools, tl)
	}
	return tools, rows.Err()
}

// GetUserByName retrieves an account by its unique name
func (s *PostgresStore) GetUserByName(ctx context.Context, name string) (*readmodel.UserReadModel, bool, error) {
	var u readmodel.UserReadModel
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM users WHERE name = $1`,
		name,
	).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get user %s: %w", name, err)
	}
	return &u, true, nil
}

// InsertUser stores a new account
func (s *PostgresStore) InsertUser(ctx context.Context, u *readmodel.UserReadModel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Name, classify(err))
	}
	return nil
}

// classify maps constraint violations onto the error classes. It must see the
// driver error before it is wrapped.
func classify(err error) error {
	if e := pgerror.UniqueViolation(err); e != nil {
		return apperr.Conflict("duplicate value violates %s", e.Constraint)
	}
	if e := pgerror.ForeignKeyViolation(err); e != nil {
		return apperr.NotFound("referenced row does not exist (%s)", e.Constraint)
	}
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ConnectPostgres establishes a connection to PostgreSQL
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, err
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}
