package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	OrderEventPlaced    OrderEventType = "order.placed"
	OrderEventCanceled  OrderEventType = "order.canceled"
	OrderEventDelivered OrderEventType = "order.delivered"
)

// OrderEvent is published after an order change commits. CustomerEmail is only
// set when the customer performed the change.
type OrderEvent struct {
	Type          OrderEventType  `json:"type"`
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	UserID        string          `json:"user_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Items         []LineItem      `json:"items"`
	FinalTotal    decimal.Decimal `json:"final_total"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewOrderEvent(t OrderEventType, order *Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        t,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       order.Items,
		FinalTotal:  order.FinalTotal,
		Timestamp:   at,
	}
}
