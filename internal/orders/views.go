package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

const unknownProductName = "Product no longer available"

type ItemView struct {
	ProductID   string             `json:"product_id"`
	ProductName string             `json:"product_name"`
	ImageURL    string             `json:"image_url"`
	Quantity    int                `json:"quantity"`
	PriceAtTime decimal.Decimal    `json:"price_at_time"`
	ItemTotal   decimal.Decimal    `json:"item_total"`
	GrindOption domain.GrindOption `json:"grind_option"`
}

// OrderView is an order joined with current catalog display data. Prices and
// totals always come from the stored order, never from the catalog.
type OrderView struct {
	OrderID         string              `json:"order_id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id"`
	Status          domain.OrderStatus  `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	FinalTotal      decimal.Decimal     `json:"final_total"`
	ItemCount       int                 `json:"item_count"` // number of lines
	Items           []ItemView          `json:"items"`
	ShippingAddress domain.Address      `json:"shipping_address"`
	BillingAddress  *domain.Address     `json:"billing_address"`
	PaymentInfo     *domain.PaymentInfo `json:"payment_info"`
}

func (e *Engine) ListOrders(ctx context.Context, userID string) ([]OrderView, error) {
	ctx, span := tracer.Start(ctx, "orders.list")
	defer span.End()

	orders, err := e.store.Orders().ListByUser(ctx, userID)
	if err != nil {
		return nil, e.fail(span, err)
	}

	lookup := e.newDisplayLookup()
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, lookup.view(ctx, &orders[i]))
	}

	return views, nil
}

func (e *Engine) GetOrder(ctx context.Context, userID, orderID string) (*OrderView, error) {
	if err := validateOrderID(orderID); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "orders.get")
	defer span.End()

	order, err := e.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, e.fail(span, err)
	}
	if order == nil {
		return nil, domain.NotFound("order not found")
	}
	if order.UserID != userID {
		return nil, domain.Forbidden("unauthorized access to this order")
	}

	view := e.newDisplayLookup().view(ctx, order)
	return &view, nil
}

type displayInfo struct {
	name  string
	image string
}

// displayLookup memoizes product display data for the duration of one request.
type displayLookup struct {
	e    *Engine
	seen map[string]displayInfo
}

func (e *Engine) newDisplayLookup() *displayLookup {
	return &displayLookup{e: e, seen: make(map[string]displayInfo)}
}

func (d *displayLookup) get(ctx context.Context, productID string) displayInfo {
	if info, ok := d.seen[productID]; ok {
		return info
	}

	info := displayInfo{name: unknownProductName}
	product, err := d.e.display.Find(ctx, productID)
	if err != nil {
		d.e.logger.Warn("product display lookup failed", "error", err, "product_id", productID)
	} else if product != nil {
		info = displayInfo{name: product.Name, image: product.ImageURL}
	}

	d.seen[productID] = info
	return info
}

func (d *displayLookup) view(ctx context.Context, order *domain.Order) OrderView {
	items := make([]ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		info := d.get(ctx, item.ProductID)
		items = append(items, ItemView{
			ProductID:   item.ProductID,
			ProductName: info.name,
			ImageURL:    info.image,
			Quantity:    item.Quantity,
			PriceAtTime: item.PriceAtTime,
			ItemTotal:   item.Total(),
			GrindOption: item.GrindOption,
		})
	}

	return OrderView{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		CreatedAt:       order.CreatedAt,
		FinalTotal:      order.FinalTotal,
		ItemCount:       len(items),
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		PaymentInfo:     order.PaymentInfo,
	}
}
