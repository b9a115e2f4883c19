package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/shared"
)

// Repository reads products from PostgreSQL.
type Repository interface {
	Get(ctx context.Context, businessID, productID int64) (Product, error)
	List(ctx context.Context, businessID int64, limit int) ([]Product, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, business_id, name, sku, fallback_purchase_cost, sale_cost, created_at, updated_at`

func (r *repository) Get(ctx context.Context, businessID, productID int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE business_id=$1 AND id=$2`, businessID, productID).
		Scan(&p.ID, &p.BusinessID, &p.Name, &p.SKU, &p.FallbackPurchaseCost, &p.SaleCost, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context, businessID int64, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE business_id=$1 ORDER BY name ASC LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.BusinessID, &p.Name, &p.SKU, &p.FallbackPurchaseCost, &p.SaleCost, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
