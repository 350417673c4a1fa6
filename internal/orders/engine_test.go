package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/memstore"
	"github.com/joao-fontenele/roastdirect/internal/store"
)

const (
	cerradoID = "8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1001"
	yirgaID   = "8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1002"
	retiredID = "8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1003"
	missingID = "8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1999"

	alice = "user-alice"
	bob   = "user-bob"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore(t *testing.T) *memstore.Store {
	t.Helper()
	s := memstore.New()
	s.PutProduct(domain.Product{
		ID: cerradoID, Name: "Cerrado Sunrise", Price: decimal.RequireFromString("12.50"),
		InventoryCount: 10, IsActive: true, ImageURL: "/img/cerrado.png",
	})
	s.PutProduct(domain.Product{
		ID: yirgaID, Name: "Yirgacheffe Bloom", Price: decimal.RequireFromString("17.48"),
		InventoryCount: 2, IsActive: true, ImageURL: "/img/yirga.png",
	})
	s.PutProduct(domain.Product{
		ID: retiredID, Name: "Old Blend", Price: decimal.RequireFromString("9.00"),
		InventoryCount: 50, IsActive: false,
	})
	return s
}

func newTestEngine(t *testing.T, s store.Store, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(s, discardLogger(), opts...)
	require.NoError(t, err)
	return e
}

func address() *domain.Address {
	return &domain.Address{Street: "1 Bean St", City: "Portland", State: "OR", Zip: "97201"}
}

func orderInput(lines ...PlaceOrderItem) PlaceOrderInput {
	return PlaceOrderInput{
		Items:           lines,
		ShippingAddress: address(),
		FinalTotal:      decimal.RequireFromString("50.00"),
	}
}

func line(productID string, qty int) PlaceOrderItem {
	return PlaceOrderItem{ProductID: productID, Quantity: qty, GrindOption: domain.GrindWholeBean}
}

func stock(t *testing.T, s store.Store, id string) int {
	t.Helper()
	p, err := s.Products().Find(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.InventoryCount
}

func TestEngine_PlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves stock and records the order", func(t *testing.T) {
		s := seededStore(t)
		at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		e := newTestEngine(t, s, WithClock(func() time.Time { return at }))

		order, err := e.PlaceOrder(ctx, alice, orderInput(line(cerradoID, 3), line(yirgaID, 1)))
		require.NoError(t, err)

		assert.Equal(t, domain.OrderStatusInProgress, order.Status)
		assert.Equal(t, alice, order.UserID)
		assert.Regexp(t, `^RD-20260314-[0-9A-F]{4}$`, order.OrderNumber)
		assert.Nil(t, order.PaymentInfo)
		require.Len(t, order.Items, 2)
		assert.True(t, order.Items[0].PriceAtTime.Equal(decimal.RequireFromString("12.50")))

		assert.Equal(t, 7, stock(t, s, cerradoID))
		assert.Equal(t, 1, stock(t, s, yirgaID))

		stored, err := s.Orders().Get(ctx, order.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, order.OrderNumber, stored.OrderNumber)
	})

	t.Run("stores the catalog price, not the client's", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)

		cheap := decimal.RequireFromString("0.01")
		item := line(cerradoID, 1)
		item.PriceAtTime = &cheap

		order, err := e.PlaceOrder(ctx, alice, orderInput(item))
		require.NoError(t, err)
		assert.True(t, order.Items[0].PriceAtTime.Equal(decimal.RequireFromString("12.50")))
	})

	t.Run("is all or nothing", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)

		_, err := e.PlaceOrder(ctx, alice, orderInput(line(cerradoID, 4), line(yirgaID, 3)))
		require.ErrorIs(t, err, domain.ErrConflict)

		assert.Equal(t, 10, stock(t, s, cerradoID))
		assert.Equal(t, 2, stock(t, s, yirgaID))

		orders, err := s.Orders().ListByUser(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("rejects invalid input before touching stock", func(t *testing.T) {
		negative := decimal.RequireFromString("-1")
		badPrice := line(cerradoID, 1)
		badPrice.PriceAtTime = &negative

		tests := []struct {
			name  string
			input PlaceOrderInput
			kind  error
		}{
			{"no items", orderInput(), domain.ErrValidation},
			{"zero quantity", orderInput(line(cerradoID, 0)), domain.ErrValidation},
			{"bad grind", orderInput(PlaceOrderItem{ProductID: cerradoID, Quantity: 1, GrindOption: "Turkish"}), domain.ErrValidation},
			{"bad product id", orderInput(line("nope", 1)), domain.ErrValidation},
			{"negative price", orderInput(badPrice), domain.ErrValidation},
			{"missing product", orderInput(line(missingID, 1)), domain.ErrNotFound},
			{"inactive product", orderInput(line(retiredID, 1)), domain.ErrNotFound},
			{"insufficient stock", orderInput(line(yirgaID, 5)), domain.ErrConflict},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := seededStore(t)
				e := newTestEngine(t, s)

				_, err := e.PlaceOrder(ctx, alice, tt.input)
				require.ErrorIs(t, err, tt.kind)
				assert.Equal(t, 10, stock(t, s, cerradoID))
			})
		}
	})

	t.Run("rejects incomplete addresses and totals", func(t *testing.T) {
		e := newTestEngine(t, seededStore(t))

		noShipping := orderInput(line(cerradoID, 1))
		noShipping.ShippingAddress = nil
		_, err := e.PlaceOrder(ctx, alice, noShipping)
		require.ErrorIs(t, err, domain.ErrValidation)

		blankZip := orderInput(line(cerradoID, 1))
		blankZip.ShippingAddress.Zip = " "
		_, err = e.PlaceOrder(ctx, alice, blankZip)
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, err.Error(), "zip")

		badBilling := orderInput(line(cerradoID, 1))
		badBilling.BillingAddress = &domain.Address{Street: "x"}
		_, err = e.PlaceOrder(ctx, alice, badBilling)
		require.ErrorIs(t, err, domain.ErrValidation)

		zeroTotal := orderInput(line(cerradoID, 1))
		zeroTotal.FinalTotal = decimal.Zero
		_, err = e.PlaceOrder(ctx, alice, zeroTotal)
		require.ErrorIs(t, err, domain.ErrValidation)

		hugeTotal := orderInput(line(cerradoID, 1))
		hugeTotal.FinalTotal = decimal.RequireFromString("1e9")
		_, err = e.PlaceOrder(ctx, alice, hugeTotal)
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Contains(t, err.Error(), "exceeds maximum")

		hugePrice := orderInput(line(cerradoID, 1))
		price := decimal.RequireFromString("100000000")
		hugePrice.Items[0].PriceAtTime = &price
		_, err = e.PlaceOrder(ctx, alice, hugePrice)
		require.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("never oversells under concurrent placement", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)

		const buyers = 25
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			placed    int
			conflicts int
		)
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.PlaceOrder(ctx, alice, orderInput(line(cerradoID, 1)))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					placed++
				case errors.Is(err, domain.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 10, placed)
		assert.Equal(t, buyers-10, conflicts)
		assert.Equal(t, 0, stock(t, s, cerradoID))
	})

	t.Run("a failed guarded decrement aborts the order", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, &faultyStore{Store: s, refuseDecrement: yirgaID})

		_, err := e.PlaceOrder(ctx, alice, orderInput(line(cerradoID, 2), line(yirgaID, 1)))
		require.ErrorIs(t, err, domain.ErrConflict)
		assert.Contains(t, err.Error(), "purchased by another customer")

		assert.Equal(t, 10, stock(t, s, cerradoID))
		orders, err := s.Orders().ListByUser(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, orders)
	})

	t.Run("a store failure is internal and rolls back", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, &faultyStore{Store: s, insertErr: errors.New("disk full")})

		_, err := e.PlaceOrder(ctx, alice, orderInput(line(cerradoID, 2)))
		require.Error(t, err)

		var derr *domain.Error
		assert.False(t, errors.As(err, &derr))
		assert.Equal(t, 10, stock(t, s, cerradoID))
	})
}

func placeOne(t *testing.T, e *Engine, user string, lines ...PlaceOrderItem) *domain.Order {
	t.Helper()
	order, err := e.PlaceOrder(context.Background(), user, orderInput(lines...))
	require.NoError(t, err)
	return order
}

func TestEngine_CancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("restores exactly the reserved quantities", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)
		order := placeOne(t, e, alice, line(cerradoID, 3), line(yirgaID, 2))
		require.Equal(t, 0, stock(t, s, yirgaID))

		result, err := e.CancelOrder(ctx, alice, order.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.OrderStatusCanceled, result.Order.Status)
		assert.Equal(t, []RestoredItem{
			{ProductID: cerradoID, ProductName: "Cerrado Sunrise", QuantityRestored: 3},
			{ProductID: yirgaID, ProductName: "Yirgacheffe Bloom", QuantityRestored: 2},
		}, result.RestoredItems)
		assert.Equal(t, 10, stock(t, s, cerradoID))
		assert.Equal(t, 2, stock(t, s, yirgaID))
	})

	t.Run("second cancellation conflicts and restores nothing", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)
		order := placeOne(t, e, alice, line(cerradoID, 3))

		_, err := e.CancelOrder(ctx, alice, order.ID)
		require.NoError(t, err)
		_, err = e.CancelOrder(ctx, alice, order.ID)
		require.ErrorIs(t, err, domain.ErrConflict)

		assert.Equal(t, 10, stock(t, s, cerradoID))
	})

	t.Run("concurrent cancellations restore once", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)
		order := placeOne(t, e, alice, line(cerradoID, 4))

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = e.CancelOrder(ctx, alice, order.ID)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 10, stock(t, s, cerradoID))
	})

	t.Run("rejects other users", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)
		order := placeOne(t, e, alice, line(cerradoID, 1))

		_, err := e.CancelOrder(ctx, bob, order.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)
		assert.Equal(t, 9, stock(t, s, cerradoID))
	})

	t.Run("rejects delivered orders", func(t *testing.T) {
		e := newTestEngine(t, seededStore(t))
		order := placeOne(t, e, alice, line(cerradoID, 1))
		_, err := e.MarkDelivered(ctx, order.ID)
		require.NoError(t, err)

		_, err = e.CancelOrder(ctx, alice, order.ID)
		require.ErrorIs(t, err, domain.ErrConflict)
		assert.Contains(t, err.Error(), `"delivered"`)
	})

	t.Run("unknown and malformed ids", func(t *testing.T) {
		e := newTestEngine(t, seededStore(t))

		_, err := e.CancelOrder(ctx, alice, missingID)
		require.ErrorIs(t, err, domain.ErrNotFound)

		_, err = e.CancelOrder(ctx, alice, "not-a-uuid")
		require.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestEngine_MarkDelivered(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)
		order := placeOne(t, e, alice, line(cerradoID, 2))

		first, err := e.MarkDelivered(ctx, order.ID)
		require.NoError(t, err)
		assert.False(t, first.AlreadyDelivered)
		assert.Equal(t, domain.OrderStatusDelivered, first.Order.Status)

		second, err := e.MarkDelivered(ctx, order.ID)
		require.NoError(t, err)
		assert.True(t, second.AlreadyDelivered)

		stored, err := s.Orders().Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusDelivered, stored.Status)
		assert.Equal(t, 8, stock(t, s, cerradoID))
	})

	t.Run("refuses canceled orders", func(t *testing.T) {
		e := newTestEngine(t, seededStore(t))
		order := placeOne(t, e, alice, line(cerradoID, 2))
		_, err := e.CancelOrder(ctx, alice, order.ID)
		require.NoError(t, err)

		_, err = e.MarkDelivered(ctx, order.ID)
		require.ErrorIs(t, err, domain.ErrConflict)
	})

	t.Run("unknown order", func(t *testing.T) {
		e := newTestEngine(t, seededStore(t))
		_, err := e.MarkDelivered(ctx, missingID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestEngine_Views(t *testing.T) {
	ctx := context.Background()

	t.Run("price snapshot survives catalog changes", func(t *testing.T) {
		s := seededStore(t)
		e := newTestEngine(t, s)
		order := placeOne(t, e, alice, line(cerradoID, 3))

		s.PutProduct(domain.Product{
			ID: cerradoID, Name: "Cerrado Sunrise", Price: decimal.RequireFromString("20.00"),
			InventoryCount: 7, IsActive: true,
		})

		view, err := e.GetOrder(ctx, alice, order.ID)
		require.NoError(t, err)
		require.Len(t, view.Items, 1)
		assert.True(t, view.Items[0].PriceAtTime.Equal(decimal.RequireFromString("12.50")))
		assert.True(t, view.Items[0].ItemTotal.Equal(decimal.RequireFromString("37.50")))
		assert.Equal(t, 1, view.ItemCount)
	})

	t.Run("enforces ownership", func(t *testing.T) {
		e := newTestEngine(t, seededStore(t))
		order := placeOne(t, e, alice, line(cerradoID, 1))

		_, err := e.GetOrder(ctx, bob, order.ID)
		require.ErrorIs(t, err, domain.ErrForbidden)

		_, err = e.GetOrder(ctx, alice, missingID)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("lists newest first", func(t *testing.T) {
		s := seededStore(t)
		at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		e := newTestEngine(t, s, WithClock(func() time.Time {
			at = at.Add(time.Minute)
			return at
		}))

		first := placeOne(t, e, alice, line(cerradoID, 1))
		second := placeOne(t, e, alice, line(yirgaID, 1))
		placeOne(t, e, bob, line(cerradoID, 1))

		views, err := e.ListOrders(ctx, alice)
		require.NoError(t, err)
		require.Len(t, views, 2)
		assert.Equal(t, second.ID, views[0].OrderID)
		assert.Equal(t, first.ID, views[1].OrderID)
		assert.Equal(t, "Yirgacheffe Bloom", views[0].Items[0].ProductName)
		assert.Equal(t, "/img/yirga.png", views[0].Items[0].ImageURL)
	})

	t.Run("falls back to a placeholder name", func(t *testing.T) {
		s := seededStore(t)
		placer := newTestEngine(t, s)
		order := placeOne(t, placer, alice, line(cerradoID, 1))

		e := newTestEngine(t, s, WithDisplayLookup(failingFinder{}))
		view, err := e.GetOrder(ctx, alice, order.ID)
		require.NoError(t, err)
		assert.Equal(t, unknownProductName, view.Items[0].ProductName)
		assert.Empty(t, view.Items[0].ImageURL)
	})
}

type failingFinder struct{}

func (failingFinder) Find(context.Context, string) (*domain.Product, error) {
	return nil, errors.New("cache unavailable")
}

// faultyStore injects failures into transactions of an otherwise working store.
type faultyStore struct {
	*memstore.Store
	refuseDecrement string
	insertErr       error
}

func (s *faultyStore) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyTx{Tx: tx, store: s}, nil
}

type faultyTx struct {
	store.Tx
	store *faultyStore
}

func (t *faultyTx) Products() store.ProductStore {
	return &faultyProducts{ProductStore: t.Tx.Products(), refuse: t.store.refuseDecrement}
}

func (t *faultyTx) Orders() store.OrderStore {
	return &faultyOrders{OrderStore: t.Tx.Orders(), insertErr: t.store.insertErr}
}

type faultyProducts struct {
	store.ProductStore
	refuse string
}

// TryDecrement simulates another buyer taking the stock between the read and the write.
func (p *faultyProducts) TryDecrement(ctx context.Context, id string, quantity int) (bool, error) {
	if id == p.refuse {
		return false, nil
	}
	return p.ProductStore.TryDecrement(ctx, id, quantity)
}

type faultyOrders struct {
	store.OrderStore
	insertErr error
}

func (o *faultyOrders) Insert(ctx context.Context, order *domain.Order) error {
	if o.insertErr != nil {
		return o.insertErr
	}
	return o.OrderStore.Insert(ctx, order)
}
