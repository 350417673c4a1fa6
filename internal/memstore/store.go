// Package memstore is an in-process store with serializable transactions.
// It backs local development (STORE_DRIVER=memory) and the engine's unit tests.
package memstore

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/store"
)

var ErrTxDone = errors.New("memstore: transaction already finished")

type state struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	users    map[string]domain.User
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]domain.Product, len(s.products)),
		orders:   make(map[string]domain.Order, len(s.orders)),
	}
	for id, p := range s.products {
		c.products[id] = copyProduct(p)
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	// users are only reached outside transactions, so they are shared
	c.users = s.users
	return c
}

// Store holds one writer lock for the whole dataset. A transaction owns the
// lock from Begin until Commit or Rollback, so transactions never interleave.
type Store struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

func New() *Store {
	return &Store{
		data: &state{
			products: make(map[string]domain.Product),
			orders:   make(map[string]domain.Order),
			users:    make(map[string]domain.User),
		},
		now: time.Now,
	}
}

// PutProduct inserts or replaces a catalog entry.
func (s *Store) PutProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = copyProduct(p)
}

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &txn{store: s, data: s.data.clone()}, nil
}

func (s *Store) Products() store.ProductStore {
	return &autoProducts{store: s}
}

func (s *Store) Orders() store.OrderStore {
	return &autoOrders{store: s}
}

func (s *Store) Users() store.UserStore {
	return &autoUsers{store: s}
}

func (s *Store) Close() error {
	return nil
}

type txn struct {
	store *Store
	data  *state
	done  bool
}

func (t *txn) Products() store.ProductStore {
	return &products{tx: t}
}

func (t *txn) Orders() store.OrderStore {
	return &orders{tx: t}
}

func (t *txn) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.store.data = t.data
	t.store.mu.Unlock()
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *txn) check() error {
	if t.done {
		return ErrTxDone
	}
	return nil
}

type products struct {
	tx *txn
}

func (p *products) Find(_ context.Context, id string) (*domain.Product, error) {
	if err := p.tx.check(); err != nil {
		return nil, err
	}
	product, ok := p.tx.data.products[id]
	if !ok {
		return nil, nil
	}
	c := copyProduct(product)
	return &c, nil
}

func (p *products) TryDecrement(_ context.Context, id string, quantity int) (bool, error) {
	if err := p.tx.check(); err != nil {
		return false, err
	}
	product, ok := p.tx.data.products[id]
	if !ok || product.InventoryCount < quantity {
		return false, nil
	}
	product.InventoryCount -= quantity
	product.UpdatedAt = p.tx.store.now().UTC()
	p.tx.data.products[id] = product
	return true, nil
}

func (p *products) Increment(_ context.Context, id string, quantity int) error {
	if err := p.tx.check(); err != nil {
		return err
	}
	product, ok := p.tx.data.products[id]
	if !ok {
		return nil
	}
	product.InventoryCount += quantity
	product.UpdatedAt = p.tx.store.now().UTC()
	p.tx.data.products[id] = product
	return nil
}

func (p *products) ListActive(_ context.Context) ([]domain.Product, error) {
	if err := p.tx.check(); err != nil {
		return nil, err
	}
	list := []domain.Product{}
	for _, product := range p.tx.data.products {
		if product.IsActive {
			list = append(list, copyProduct(product))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (p *products) Insert(_ context.Context, product *domain.Product) error {
	if err := p.tx.check(); err != nil {
		return err
	}
	if _, exists := p.tx.data.products[product.ID]; exists {
		return errors.New("memstore: duplicate product id " + product.ID)
	}
	p.tx.data.products[product.ID] = copyProduct(*product)
	return nil
}

type orders struct {
	tx *txn
}

func (o *orders) Insert(_ context.Context, order *domain.Order) error {
	if err := o.tx.check(); err != nil {
		return err
	}
	if _, exists := o.tx.data.orders[order.ID]; exists {
		return errors.New("memstore: duplicate order id " + order.ID)
	}
	o.tx.data.orders[order.ID] = copyOrder(*order)
	return nil
}

func (o *orders) Get(_ context.Context, id string) (*domain.Order, error) {
	if err := o.tx.check(); err != nil {
		return nil, err
	}
	order, ok := o.tx.data.orders[id]
	if !ok {
		return nil, nil
	}
	c := copyOrder(order)
	return &c, nil
}

func (o *orders) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	if err := o.tx.check(); err != nil {
		return nil, err
	}
	list := []domain.Order{}
	for _, order := range o.tx.data.orders {
		if order.UserID == userID {
			list = append(list, copyOrder(order))
		}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (o *orders) TransitionStatus(_ context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus) (bool, error) {
	if err := o.tx.check(); err != nil {
		return false, err
	}
	order, ok := o.tx.data.orders[id]
	if !ok || !slices.Contains(from, order.Status) {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = o.tx.store.now().UTC()
	o.tx.data.orders[id] = order
	return true, nil
}

// users is keyed by normalized email.
type users struct {
	tx *txn
}

func (u *users) Create(_ context.Context, user *domain.User) error {
	if err := u.tx.check(); err != nil {
		return err
	}
	if _, exists := u.tx.data.users[user.Email]; exists {
		return domain.Conflict("User already exists with this email")
	}
	u.tx.data.users[user.Email] = *user
	return nil
}

func (u *users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if err := u.tx.check(); err != nil {
		return nil, err
	}
	user, ok := u.tx.data.users[email]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func copyProduct(p domain.Product) domain.Product {
	p.TastingNotes = slices.Clone(p.TastingNotes)
	return p
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = slices.Clone(o.Items)
	if o.BillingAddress != nil {
		b := *o.BillingAddress
		o.BillingAddress = &b
	}
	if o.PaymentInfo != nil {
		p := *o.PaymentInfo
		o.PaymentInfo = &p
	}
	return o
}
