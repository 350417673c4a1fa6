// Package pricing computes cart subtotals and checkout totals.
package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

// ProductFinder is the catalog lookup pricing needs.
type ProductFinder interface {
	Find(ctx context.Context, id string) (*domain.Product, error)
}

type CartItem struct {
	ProductID   string             `json:"product_id"`
	Quantity    int                `json:"quantity"`
	GrindOption domain.GrindOption `json:"grind_option"`
}

type PricedItem struct {
	ProductID   string             `json:"product_id"`
	ProductName string             `json:"product_name"`
	PriceAtTime decimal.Decimal    `json:"price_at_time"`
	Quantity    int                `json:"quantity"`
	ItemTotal   decimal.Decimal    `json:"item_total"`
	GrindOption domain.GrindOption `json:"grind_option"`
}

type Subtotal struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Items     []PricedItem    `json:"items"`
	ItemCount int             `json:"item_count"`
}

// ValidateItemShape checks the parts of a line item that need no catalog lookup.
func ValidateItemShape(productID string, quantity int, grind domain.GrindOption) error {
	if _, err := uuid.Parse(productID); err != nil {
		return domain.Validation("invalid product id %q", productID)
	}
	if quantity <= 0 {
		return domain.Validation("quantity must be positive")
	}
	if !grind.Valid() {
		return domain.Validation("invalid grind option, must be one of: %s", grindList())
	}
	return nil
}

// CheckAvailable rejects absent, inactive or understocked products.
func CheckAvailable(p *domain.Product, productID string, quantity int) error {
	if p == nil || !p.IsActive {
		return domain.NotFound("product %s not found or inactive", productID)
	}
	if p.InventoryCount < quantity {
		return domain.Conflict("insufficient stock for %s: available %d, requested %d",
			p.Name, p.InventoryCount, quantity)
	}
	return nil
}

// ComputeSubtotal prices a cart at current catalog prices. It stops at the
// first invalid item and never returns a partial result.
func ComputeSubtotal(ctx context.Context, products ProductFinder, items []CartItem) (*Subtotal, error) {
	if len(items) == 0 {
		return nil, domain.Validation("cart cannot be empty")
	}

	subtotal := decimal.Zero
	priced := make([]PricedItem, 0, len(items))

	for _, item := range items {
		if err := ValidateItemShape(item.ProductID, item.Quantity, item.GrindOption); err != nil {
			return nil, err
		}

		product, err := products.Find(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("find product %s: %w", item.ProductID, err)
		}
		if err := CheckAvailable(product, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}

		itemTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(itemTotal)

		priced = append(priced, PricedItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			PriceAtTime: product.Price,
			Quantity:    item.Quantity,
			ItemTotal:   itemTotal.Round(2),
			GrindOption: item.GrindOption,
		})
	}

	return &Subtotal{
		Subtotal:  subtotal.Round(2),
		Items:     priced,
		ItemCount: len(priced),
	}, nil
}

func grindList() string {
	names := make([]string, len(domain.GrindOptions))
	for i, g := range domain.GrindOptions {
		names[i] = string(g)
	}
	return strings.Join(names, ", ")
}
