// Package store defines the storage contract the order engine is written against.
// Implementations must provide a linearizable TryDecrement and multi-record
// transactions covering products and orders together. Users live outside
// those transactions.
package store

import (
	"context"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

type ProductStore interface {
	// Find returns nil, nil when the product does not exist. Inactive products are returned.
	Find(ctx context.Context, id string) (*domain.Product, error)
	// TryDecrement subtracts quantity only if the stored inventory_count is still
	// >= quantity at write time. It reports whether the decrement was applied.
	TryDecrement(ctx context.Context, id string, quantity int) (bool, error)
	Increment(ctx context.Context, id string, quantity int) error
	ListActive(ctx context.Context) ([]domain.Product, error)
	Insert(ctx context.Context, product *domain.Product) error
}

type OrderStore interface {
	Insert(ctx context.Context, order *domain.Order) error
	// Get returns nil, nil when the order does not exist.
	Get(ctx context.Context, id string) (*domain.Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// TransitionStatus sets the status only if the current one is in from.
	// It reports whether the row was updated.
	TransitionStatus(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus) (bool, error)
}

type UserStore interface {
	// Create fails with a domain conflict when the email is already registered.
	Create(ctx context.Context, user *domain.User) error
	// FindByEmail returns nil, nil when no user has the email.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Tx scopes reads and writes to a single transaction. Rollback after Commit is a no-op.
type Tx interface {
	Products() ProductStore
	Orders() OrderStore
	Commit() error
	Rollback() error
}

type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Products() ProductStore
	Orders() OrderStore
	Users() UserStore
	Close() error
}
