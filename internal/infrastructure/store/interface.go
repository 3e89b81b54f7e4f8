package store

import (
	"context"

	"github.com/example/trailer-shop/internal/domain/inventory"
	"github.com/example/trailer-shop/internal/domain/serviceorder"
	"github.com/example/trailer-shop/internal/domain/tool"
	"github.com/example/trailer-shop/internal/readmodel"
)

// Tx is a unit of work. Every repository call made through it is committed or
// rolled back together.
type Tx interface {
	serviceorder.Repository
	inventory.Repository
	tool.Repository

	// GetServiceOrderView loads the joined view as seen inside the transaction.
	GetServiceOrderView(ctx context.Context, id string) (*readmodel.ServiceOrderView, bool, error)

	Commit() error
	// Rollback after a successful Commit is a no-op.
	Rollback() error
}

// Store is the persistence the service order workflow runs against
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)

	// ListServiceOrders returns views newest first. A non-empty search matches
	// the identifier, service type, description or trailer plate.
	ListServiceOrders(ctx context.Context, search string) ([]*readmodel.ServiceOrderView, error)
	GetServiceOrderDetail(ctx context.Context, id string) (*readmodel.ServiceOrderDetail, bool, error)
}

// UserStore keeps the accounts used to sign in
type UserStore interface {
	GetUserByName(ctx context.Context, name string) (*readmodel.UserReadModel, bool, error)
	// InsertUser fails with a conflict error when the name is taken.
	InsertUser(ctx context.Context, user *readmodel.UserReadModel) error
}
