package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusInProgress OrderStatus = "in-progress"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// CancelableStatuses are the pending states an order may be canceled from.
var CancelableStatuses = []OrderStatus{OrderStatusInProgress, OrderStatusProcessing}

func (s OrderStatus) Cancelable() bool {
	for _, c := range CancelableStatuses {
		if s == c {
			return true
		}
	}
	return false
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country,omitempty"`
}

// MissingFields returns the required address fields that are blank.
func (a *Address) MissingFields() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// PaymentInfo is a display placeholder. Card data is never stored.
type PaymentInfo struct {
	PaymentMethod string `json:"payment_method"`
	LastFour      string `json:"last_four"`
}

type LineItem struct {
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
	GrindOption GrindOption     `json:"grind_option"`
}

func (i LineItem) Total() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}

type Order struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"order_number"`
	UserID          string          `json:"user_id"`
	Items           []LineItem      `json:"items"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  *Address        `json:"billing_address"`
	PaymentInfo     *PaymentInfo    `json:"payment_info"`
	FinalTotal      decimal.Decimal `json:"final_total"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
