package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/pricing"
	"github.com/joao-fontenele/roastdirect/internal/store"
)

var (
	tracer = otel.Tracer("orders/engine")
	meter  = otel.Meter("orders/engine")
)

// Engine owns order placement, cancellation and delivery. It holds no locks:
// mutual exclusion comes from store transactions and the guarded decrement.
type Engine struct {
	store   store.Store
	display pricing.ProductFinder
	calc    *pricing.Calculator
	logger  *slog.Logger
	now     func() time.Time

	placed    metric.Int64Counter
	canceled  metric.Int64Counter
	conflicts metric.Int64Counter
}

type Option func(*Engine)

// WithDisplayLookup sets where order projections read product names and images.
// It is never consulted when reserving stock.
func WithDisplayLookup(f pricing.ProductFinder) Option {
	return func(e *Engine) {
		e.display = f
	}
}

func WithCalculator(c *pricing.Calculator) Option {
	return func(e *Engine) {
		e.calc = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(s store.Store, logger *slog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   s,
		display: s.Products(),
		calc:    pricing.NewCalculator(pricing.DefaultPolicy),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	if e.placed, err = meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders committed")); err != nil {
		return nil, err
	}
	if e.canceled, err = meter.Int64Counter("orders.canceled",
		metric.WithDescription("Orders canceled with stock restored")); err != nil {
		return nil, err
	}
	if e.conflicts, err = meter.Int64Counter("orders.reservation_conflicts",
		metric.WithDescription("Placements rejected because stock was taken first")); err != nil {
		return nil, err
	}

	return e, nil
}

type PlaceOrderItem struct {
	ProductID   string             `json:"product_id"`
	Quantity    int                `json:"quantity"`
	PriceAtTime *decimal.Decimal   `json:"price_at_time,omitempty"`
	GrindOption domain.GrindOption `json:"grind_option"`
}

type PlaceOrderInput struct {
	Items           []PlaceOrderItem `json:"items"`
	ShippingAddress *domain.Address  `json:"shipping_address"`
	BillingAddress  *domain.Address  `json:"billing_address,omitempty"`
	FinalTotal      decimal.Decimal  `json:"final_total"`
}

func (in *PlaceOrderInput) validate() error {
	if len(in.Items) == 0 {
		return domain.Validation("order must contain at least one item")
	}
	if !in.FinalTotal.IsPositive() {
		return domain.Validation("final total must be positive")
	}
	if !domain.AmountInRange(in.FinalTotal) {
		return domain.Validation("final total exceeds maximum of %s", domain.MaxAmount)
	}
	if in.ShippingAddress == nil {
		return domain.Validation("shipping address is required")
	}
	if missing := in.ShippingAddress.MissingFields(); len(missing) > 0 {
		return domain.Validation("shipping address missing: %s", strings.Join(missing, ", "))
	}
	if in.BillingAddress != nil {
		if missing := in.BillingAddress.MissingFields(); len(missing) > 0 {
			return domain.Validation("billing address missing: %s", strings.Join(missing, ", "))
		}
	}
	for _, item := range in.Items {
		if err := pricing.ValidateItemShape(item.ProductID, item.Quantity, item.GrindOption); err != nil {
			return err
		}
		if item.PriceAtTime != nil && !domain.AmountInRange(*item.PriceAtTime) {
			return domain.Validation("price must be positive and at most %s", domain.MaxAmount)
		}
	}
	return nil
}

// PlaceOrder reserves stock for every line and records the order in one
// transaction. Either every decrement and the order insert commit, or nothing does.
func (e *Engine) PlaceOrder(ctx context.Context, userID string, in PlaceOrderInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "orders.place", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.Int("order.item_count", len(in.Items)),
	))
	defer span.End()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	items := make([]domain.LineItem, 0, len(in.Items))
	for _, item := range in.Items {
		product, err := tx.Products().Find(ctx, item.ProductID)
		if err != nil {
			return nil, e.fail(span, fmt.Errorf("find product %s: %w", item.ProductID, err))
		}
		if err := pricing.CheckAvailable(product, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				e.conflicts.Add(ctx, 1)
			}
			return nil, e.fail(span, err)
		}

		reserved, err := tx.Products().TryDecrement(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if errors.Is(err, domain.ErrConflict) {
				e.conflicts.Add(ctx, 1)
			}
			return nil, e.fail(span, fmt.Errorf("reserve product %s: %w", item.ProductID, err))
		}
		if !reserved {
			e.conflicts.Add(ctx, 1)
			return nil, e.fail(span, domain.Conflict(
				"failed to reserve inventory for %s, it may have been purchased by another customer", product.Name))
		}

		items = append(items, domain.LineItem{
			ProductID:   item.ProductID,
			Quantity:    item.Quantity,
			PriceAtTime: product.Price,
			GrindOption: item.GrindOption,
		})
	}

	now := e.now().UTC()
	order := &domain.Order{
		ID:              uuid.New().String(),
		OrderNumber:     NewOrderNumber(now),
		UserID:          userID,
		Items:           items,
		ShippingAddress: *in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		FinalTotal:      in.FinalTotal.Round(2),
		Status:          domain.OrderStatusInProgress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := tx.Orders().Insert(ctx, order); err != nil {
		return nil, e.fail(span, fmt.Errorf("insert order: %w", err))
	}

	if err := tx.Commit(); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			e.conflicts.Add(ctx, 1)
		}
		return nil, e.fail(span, fmt.Errorf("commit order: %w", err))
	}

	e.placed.Add(ctx, 1)
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	return order, nil
}

type RestoredItem struct {
	ProductID        string `json:"product_id"`
	ProductName      string `json:"product_name"`
	QuantityRestored int    `json:"quantity_restored"`
}

type CancelResult struct {
	Order         *domain.Order  `json:"-"`
	RestoredItems []RestoredItem `json:"restored_items"`
}

// CancelOrder moves a pending order to canceled and puts its stock back, in one transaction.
func (e *Engine) CancelOrder(ctx context.Context, userID, orderID string) (*CancelResult, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "orders.cancel", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("order.id", orderID),
	))
	defer span.End()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	order, err := tx.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, domain.NotFound("order not found")
	}
	if order.UserID != userID {
		return nil, domain.Forbidden("unauthorized access to this order")
	}
	if !order.Status.Cancelable() {
		return nil, domain.Conflict("order cannot be canceled in %q status", order.Status)
	}

	moved, err := tx.Orders().TransitionStatus(ctx, orderID, domain.CancelableStatuses, domain.OrderStatusCanceled)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("update order status: %w", err))
	}
	if !moved {
		return nil, domain.Conflict("order status changed concurrently, please reload")
	}

	restored := make([]RestoredItem, 0, len(order.Items))
	for _, item := range order.Items {
		if err := tx.Products().Increment(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, e.fail(span, fmt.Errorf("restore product %s: %w", item.ProductID, err))
		}

		name := unknownProductName
		product, err := tx.Products().Find(ctx, item.ProductID)
		if err != nil {
			return nil, e.fail(span, fmt.Errorf("find product %s: %w", item.ProductID, err))
		}
		if product != nil {
			name = product.Name
		}

		restored = append(restored, RestoredItem{
			ProductID:        item.ProductID,
			ProductName:      name,
			QuantityRestored: item.Quantity,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, e.fail(span, fmt.Errorf("commit cancellation: %w", err))
	}

	e.canceled.Add(ctx, 1)
	order.Status = domain.OrderStatusCanceled

	return &CancelResult{Order: order, RestoredItems: restored}, nil
}

type DeliveryResult struct {
	Order            *domain.Order
	AlreadyDelivered bool
}

// MarkDelivered is idempotent for delivered orders and refuses canceled ones.
// It touches a single order, so it runs without an explicit transaction.
func (e *Engine) MarkDelivered(ctx context.Context, orderID string) (*DeliveryResult, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "orders.deliver", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	orders := e.store.Orders()

	order, err := orders.Get(ctx, orderID)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, domain.NotFound("order not found")
	}

	switch order.Status {
	case domain.OrderStatusCanceled:
		return nil, domain.Conflict("cannot mark canceled order as delivered")
	case domain.OrderStatusDelivered:
		return &DeliveryResult{Order: order, AlreadyDelivered: true}, nil
	}

	moved, err := orders.TransitionStatus(ctx, orderID, domain.CancelableStatuses, domain.OrderStatusDelivered)
	if err != nil {
		return nil, e.fail(span, fmt.Errorf("update order status: %w", err))
	}
	if !moved {
		// Lost a race with another transition; report based on where it ended up.
		current, err := orders.Get(ctx, orderID)
		if err != nil {
			return nil, e.fail(span, fmt.Errorf("get order: %w", err))
		}
		if current != nil && current.Status == domain.OrderStatusDelivered {
			return &DeliveryResult{Order: current, AlreadyDelivered: true}, nil
		}
		return nil, domain.Conflict("cannot mark canceled order as delivered")
	}

	order.Status = domain.OrderStatusDelivered
	order.UpdatedAt = e.now().UTC()

	return &DeliveryResult{Order: order}, nil
}

func (e *Engine) ComputeSubtotal(ctx context.Context, items []pricing.CartItem) (*pricing.Subtotal, error) {
	return pricing.ComputeSubtotal(ctx, e.store.Products(), items)
}

func (e *Engine) ComputeFinalTotal(subtotal decimal.Decimal, payment pricing.PaymentPayload) (*pricing.Totals, error) {
	return e.calc.ComputeFinalTotal(subtotal, payment)
}

// fail records err on the span. Classified errors are expected outcomes and
// do not mark the span as failed.
func (e *Engine) fail(span trace.Span, err error) error {
	var classified *domain.Error
	if !errors.As(err, &classified) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("order.rejection", classified.Message))
	}
	return err
}

func validateOrderID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Validation("invalid order id format")
	}
	return nil
}

// NewOrderNumber builds the customer-facing label RD-YYYYMMDD-XXXX. The suffix is
// random and not checked for collisions; the order id is the real key.
func NewOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("RD-%s-%s", at.UTC().Format("20060102"), suffix)
}
