package memstore

import (
	"context"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

// autoProducts, autoOrders and autoUsers run each call as a single statement
// outside BEGIN. A statement holds the writer lock and works on the committed
// data in place: every write below checks before it mutates, so there is
// nothing to roll back and no snapshot to take.

func (s *Store) exec(ctx context.Context, fn func(*txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &txn{store: s, data: s.data}
	err := fn(t)
	t.done = true
	return err
}

type autoProducts struct {
	store *Store
}

func (a *autoProducts) Find(ctx context.Context, id string) (p *domain.Product, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		p, err = t.Products().Find(ctx, id)
		return err
	})
	return p, err
}

func (a *autoProducts) TryDecrement(ctx context.Context, id string, quantity int) (ok bool, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		ok, err = t.Products().TryDecrement(ctx, id, quantity)
		return err
	})
	return ok, err
}

func (a *autoProducts) Increment(ctx context.Context, id string, quantity int) error {
	return a.store.exec(ctx, func(t *txn) error {
		return t.Products().Increment(ctx, id, quantity)
	})
}

func (a *autoProducts) ListActive(ctx context.Context) (list []domain.Product, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		list, err = t.Products().ListActive(ctx)
		return err
	})
	return list, err
}

func (a *autoProducts) Insert(ctx context.Context, product *domain.Product) error {
	return a.store.exec(ctx, func(t *txn) error {
		return t.Products().Insert(ctx, product)
	})
}

type autoOrders struct {
	store *Store
}

func (a *autoOrders) Insert(ctx context.Context, order *domain.Order) error {
	return a.store.exec(ctx, func(t *txn) error {
		return t.Orders().Insert(ctx, order)
	})
}

func (a *autoOrders) Get(ctx context.Context, id string) (o *domain.Order, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		o, err = t.Orders().Get(ctx, id)
		return err
	})
	return o, err
}

func (a *autoOrders) ListByUser(ctx context.Context, userID string) (list []domain.Order, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		list, err = t.Orders().ListByUser(ctx, userID)
		return err
	})
	return list, err
}

func (a *autoOrders) TransitionStatus(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus) (ok bool, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		ok, err = t.Orders().TransitionStatus(ctx, id, from, to)
		return err
	})
	return ok, err
}

type autoUsers struct {
	store *Store
}

func (a *autoUsers) Create(ctx context.Context, user *domain.User) error {
	return a.store.exec(ctx, func(t *txn) error {
		return (&users{tx: t}).Create(ctx, user)
	})
}

func (a *autoUsers) FindByEmail(ctx context.Context, email string) (u *domain.User, err error) {
	err = a.store.exec(ctx, func(t *txn) error {
		u, err = (&users{tx: t}).FindByEmail(ctx, email)
		return err
	})
	return u, err
}
