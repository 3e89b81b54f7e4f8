package mocks

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/example/trailer-shop/internal/apperr"
	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/domain/tool"
	"github.com/example/trailer-shop/internal/infrastructure/store"
	"github.com/example/trailer-shop/internal/readmodel"
)

var ErrTxDone = errors.New("transaction already committed or rolled back")

// Client is the owner of a trailer
type Client struct {
	ID             int64
	FirstName      string
	LastName       string
	SecondLastName string
}

// Employee is a member of the shop crew
type Employee struct {
	RFC            string
	FirstName      string
	LastName       string
	SecondLastName string
	Position       string
}

type assignment struct {
	ServiceID string
	RFC       string
}

type dataset struct {
	clients     map[int64]Client
	trailers    map[string]serviceorder.Trailer
	employees   map[string]Employee
	parts       map[string]inventory.Part
	tools       map[int64]tool.Tool
	orders      map[string]serviceorder.ServiceOrder
	assignments []assignment
	usages      []inventory.Usage
	allocations []tool.Allocation
}

func newDataset() *dataset {
	return &dataset{
		clients:   make(map[int64]Client),
		trailers:  make(map[string]serviceorder.Trailer),
		employees: make(map[string]Employee),
		parts:     make(map[string]inventory.Part),
		tools:     make(map[int64]tool.Tool),
		orders:    make(map[string]serviceorder.ServiceOrder),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.trailers {
		c.trailers[k] = v
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.parts {
		c.parts[k] = v
	}
	for k, v := range d.tools {
		c.tools[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	c.assignments = append([]assignment(nil), d.assignments...)
	c.usages = append([]inventory.Usage(nil), d.usages...)
	c.allocations = append([]tool.Allocation(nil), d.allocations...)
	return c
}

// MemoryStore is an in-memory implementation of store.Store and
// store.UserStore for testing. Transactions are serialized and work on a copy
// of the data that replaces the committed data only on Commit.
type MemoryStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *dataset

	users map[string]readmodel.UserReadModel

	// For tracking calls in tests
	BeginCalls int
	Commits    int
	Rollbacks  int

	// BeginErr fails BeginTx; FailOn fails the named method.
	BeginErr error
	FailOn   map[string]error
	// ClaimedOnInsert makes the next n InsertServiceOrder calls behave as if a
	// concurrent transaction took the identifier first.
	ClaimedOnInsert int
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   newDataset(),
		users:  make(map[string]readmodel.UserReadModel),
		FailOn: make(map[string]error),
	}
}

var (
	_ store.Store     = (*MemoryStore)(nil)
	_ store.UserStore = (*MemoryStore)(nil)
	_ store.Tx        = (*memoryTx)(nil)
)

// BeginTx blocks until no other transaction is open
func (m *MemoryStore) BeginTx(ctx context.Context) (store.Tx, error) {
	m.mu.Lock()
	m.BeginCalls++
	beginErr := m.BeginErr
	m.mu.Unlock()
	if beginErr != nil {
		return nil, beginErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.txMu.Lock()
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memoryTx{store: m, data: m.data.clone()}, nil
}

func (m *MemoryStore) ListServiceOrders(_ context.Context, search string) ([]*readmodel.ServiceOrderView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailOn["ListServiceOrders"]; err != nil {
		return nil, err
	}

	needle := strings.ToLower(search)
	views := make([]*readmodel.ServiceOrderView, 0)
	for id := range m.data.orders {
		v, ok := m.data.view(id)
		if !ok {
			continue
		}
		if needle != "" && !matches(needle, v.ID, v.ServiceType, v.Description, v.Plate) {
			continue
		}
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt.Equal(views[j].CreatedAt) {
			return views[i].ID < views[j].ID
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

func matches(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) GetServiceOrderDetail(_ context.Context, id string) (*readmodel.ServiceOrderDetail, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailOn["GetServiceOrderDetail"]; err != nil {
		return nil, false, err
	}

	v, ok := m.data.view(id)
	if !ok {
		return nil, false, nil
	}
	d := &readmodel.ServiceOrderDetail{
		ServiceOrderView: *v,
		Employees:        make([]readmodel.AssignedEmployeeReadModel, 0),
		PartUsages:       make([]readmodel.PartUsageReadModel, 0),
		Tools:            make([]readmodel.ToolAllocationReadModel, 0),
	}
	for _, a := range m.data.assignments {
		if a.ServiceID != id {
			continue
		}
		e := m.data.employees[a.RFC]
		d.Employees = append(d.Employees, readmodel.AssignedEmployeeReadModel{
			RFC:            e.RFC,
			FirstName:      e.FirstName,
			LastName:       e.LastName,
			SecondLastName: e.SecondLastName,
			Position:       e.Position,
			FullName:       joinNames(e.FirstName, e.LastName, e.SecondLastName),
		})
	}
	for _, u := range m.data.usages {
		if u.ServiceID != id {
			continue
		}
		d.PartUsages = append(d.PartUsages, readmodel.PartUsageReadModel{
			PartID:           u.PartID,
			PartName:         m.data.parts[u.PartID].Name,
			QuantityUsed:     u.QuantityUsed,
			UnitPriceCharged: u.UnitPriceCharged,
		})
	}
	for _, a := range m.data.allocations {
		if a.ServiceID != id {
			continue
		}
		tl := m.data.tools[a.ToolID]
		d.Tools = append(d.Tools, readmodel.ToolAllocationReadModel{
			ToolID:   a.ToolID,
			ToolName: tl.Name,
			Brand:    tl.Brand,
			State:    string(a.State),
		})
	}
	return d, true, nil
}

func (m *MemoryStore) GetUserByName(_ context.Context, name string) (*readmodel.UserReadModel, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[name]
	if !ok {
		return nil, false, nil
	}
	return &u, true, nil
}

func (m *MemoryStore) InsertUser(_ context.Context, u *readmodel.UserReadModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Name]; ok {
		return apperr.Conflict("user %s already exists", u.Name)
	}
	m.users[u.Name] = *u
	return nil
}

func (d *dataset) view(id string) (*readmodel.ServiceOrderView, bool) {
	o, ok := d.orders[id]
	if !ok {
		return nil, false
	}
	tr := d.trailers[o.TrailerSerial]
	c := d.clients[tr.ClientID]
	return &readmodel.ServiceOrderView{
		ID:                    o.ID,
		TrailerSerial:         o.TrailerSerial,
		EstimatedDeliveryDate: readmodel.FormatDate(o.EstimatedDelivery),
		ServiceType:           o.ServiceType,
		Description:           o.Description,
		Status:                string(o.Status),
		CreatedAt:             o.CreatedAt,
		Plate:                 tr.Plate,
		TrailerBrand:          tr.Brand,
		TrailerModel:          tr.Model,
		ClientID:              tr.ClientID,
		ClientFirstName:       c.FirstName,
		ClientLastName:        c.LastName,
		ClientFullName:        joinNames(c.FirstName, c.LastName, c.SecondLastName),
	}, true
}

func joinNames(names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}

// Seed helpers

func (m *MemoryStore) AddClient(c Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.clients[c.ID] = c
}

func (m *MemoryStore) AddTrailer(t serviceorder.Trailer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.trailers[t.Serial] = t
}

func (m *MemoryStore) AddEmployee(e Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.employees[e.RFC] = e
}

func (m *MemoryStore) AddPart(p inventory.Part) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.parts[p.ID] = p
}

func (m *MemoryStore) AddTool(t tool.Tool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.tools[t.ID] = t
}

// AddAllocation records an allocation held by an order outside the workflow.
func (m *MemoryStore) AddAllocation(a tool.Allocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.allocations = append(m.data.allocations, a)
}

func (m *MemoryStore) AddUsage(u inventory.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.usages = append(m.data.usages, u)
}

func (m *MemoryStore) AddAssignment(serviceID, rfc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.assignments = append(m.data.assignments, assignment{ServiceID: serviceID, RFC: rfc})
}

// AddOrder stores an order directly, bypassing the workflow
func (m *MemoryStore) AddOrder(o serviceorder.ServiceOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.orders[o.ID] = o
}

// Inspectors read committed data without recording anything

func (m *MemoryStore) Part(id string) (inventory.Part, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data.parts[id]
	return p, ok
}

func (m *MemoryStore) Order(id string) (serviceorder.ServiceOrder, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data.orders[id]
	return o, ok
}

func (m *MemoryStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data.orders)
}

func (m *MemoryStore) Assignments(serviceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.data.assignments {
		if a.ServiceID == serviceID {
			out = append(out, a.RFC)
		}
	}
	return out
}

func (m *MemoryStore) Usages(serviceID string) []inventory.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []inventory.Usage
	for _, u := range m.data.usages {
		if u.ServiceID == serviceID {
			out = append(out, u)
		}
	}
	return out
}

func (m *MemoryStore) Allocations(serviceID string) []tool.Allocation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tool.Allocation
	for _, a := range m.data.allocations {
		if a.ServiceID == serviceID {
			out = append(out, a)
		}
	}
	return out
}

// OccupiedCount is the number of Occupied allocations of a tool across all orders
func (m *MemoryStore) OccupiedCount(toolID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.occupied(toolID)
}

func (d *dataset) occupied(toolID int64) int {
	n := 0
	for _, a := range d.allocations {
		if a.ToolID == toolID && a.State == tool.StateOccupied {
			n++
		}
	}
	return n
}
