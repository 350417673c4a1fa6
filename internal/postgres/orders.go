package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

type OrderRepository struct {
	q querier
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	billing, err := nullableJSON(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}
	payment, err := nullableJSON(order.PaymentInfo)
	if err != nil {
		return fmt.Errorf("marshal payment info: %w", err)
	}

	_, err = r.q.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, user_id, status, shipping_address, billing_address,
			payment_info, final_total, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, order.ID, order.OrderNumber, order.UserID, order.Status, shipping, billing,
		payment, order.FinalTotal, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return translate(err)
	}

	for i, item := range order.Items {
		_, err = r.q.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, position, product_id, quantity, price_at_time, grind_option)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.New().String(), order.ID, i, item.ProductID, item.Quantity, item.PriceAtTime, item.GrindOption)
		if err != nil {
			return translate(err)
		}
	}

	return nil
}

const orderColumns = `
	id, order_number, user_id, status, shipping_address, billing_address,
	payment_info, final_total, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{Items: []domain.LineItem{}}
	var shipping []byte
	var billing, payment []byte
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &shipping, &billing,
		&payment, &o.FinalTotal, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	if billing != nil {
		o.BillingAddress = &domain.Address{}
		if err := json.Unmarshal(billing, o.BillingAddress); err != nil {
			return nil, fmt.Errorf("decode billing address: %w", err)
		}
	}
	if payment != nil {
		o.PaymentInfo = &domain.PaymentInfo{}
		if err := json.Unmarshal(payment, o.PaymentInfo); err != nil {
			return nil, fmt.Errorf("decode payment info: %w", err)
		}
	}

	return o, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadItems(ctx, map[string]*domain.Order{order.ID: order}, []string{order.ID}); err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orderMap[order.ID] = order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	if err := r.loadItems(ctx, orderMap, orderIDs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		orders = append(orders, *orderMap[id])
	}

	return orders, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderMap map[string]*domain.Order, orderIDs []string) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, product_id, quantity, price_at_time, grind_option
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, pq.Array(orderIDs))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID string
		var item domain.LineItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Quantity, &item.PriceAtTime, &item.GrindOption); err != nil {
			return err
		}
		order := orderMap[orderID]
		order.Items = append(order.Items, item)
	}

	return rows.Err()
}

func (r *OrderRepository) TransitionStatus(ctx context.Context, id string, from []domain.OrderStatus, to domain.OrderStatus) (bool, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`, to, id, pq.Array(allowed))
	if err != nil {
		return false, translate(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

// nullableJSON yields a nil driver value for nil pointers so the column stores NULL.
func nullableJSON(v any) (any, error) {
	switch t := v.(type) {
	case *domain.Address:
		if t == nil {
			return nil, nil
		}
	case *domain.PaymentInfo:
		if t == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}
