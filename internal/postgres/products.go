package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

type ProductRepository struct {
	q querier
}

const productColumns = `
	id, name, description, price, roast_level, origin_country, elevation,
	inventory_count, image_url, roast_date, farm_info, processing_method,
	tasting_notes, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var notes pq.StringArray
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.RoastLevel, &p.OriginCountry, &p.Elevation,
		&p.InventoryCount, &p.ImageURL, &p.RoastDate, &p.FarmInfo, &p.ProcessingMethod,
		&notes, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.TastingNotes = []string(notes)
	return p, nil
}

func (r *ProductRepository) Find(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) TryDecrement(ctx context.Context, id string, quantity int) (bool, error) {
	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET inventory_count = inventory_count - $2, updated_at = NOW()
		WHERE id = $1 AND inventory_count >= $2
	`, id, quantity)
	if err != nil {
		return false, translate(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected == 1, nil
}

func (r *ProductRepository) Increment(ctx context.Context, id string, quantity int) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET inventory_count = inventory_count + $2, updated_at = NOW()
		WHERE id = $1
	`, id, quantity)
	return translate(err)
}

func (r *ProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, roast_level, origin_country, elevation,
			inventory_count, image_url, roast_date, farm_info, processing_method,
			tasting_notes, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, p.ID, p.Name, p.Description, p.Price, p.RoastLevel, p.OriginCountry, p.Elevation,
		p.InventoryCount, p.ImageURL, p.RoastDate, p.FarmInfo, p.ProcessingMethod,
		pq.StringArray(p.TastingNotes), p.IsActive, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}
