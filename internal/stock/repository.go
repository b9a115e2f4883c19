package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the movement log in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertMovement(ctx context.Context, input MovementInput, occurredAt time.Time) (Movement, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock: repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// ListMovements returns the full movement history for a product in
// insertion order. The history is append-only, so the result is stable for
// a given max id.
func (r *Repository) ListMovements(ctx context.Context, businessID, productID int64) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("stock: repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, business_id, product_id, kind, source, quantity, unit_cost, occurred_at, created_by, created_at
FROM stock_movements
WHERE business_id=$1 AND product_id=$2
ORDER BY id ASC`, businessID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

// ListMovementsInRange returns movements filtered by occurrence date.
func (r *Repository) ListMovementsInRange(ctx context.Context, filter CardFilter) ([]Movement, error) {
	if r == nil {
		return nil, errors.New("stock: repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `SELECT id, business_id, product_id, kind, source, quantity, unit_cost, occurred_at, created_by, created_at
FROM stock_movements
WHERE business_id=$1 AND product_id=$2
  AND occurred_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY occurred_at ASC, id ASC
LIMIT $5`, filter.BusinessID, filter.ProductID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]Movement, error) {
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.BusinessID, &m.ProductID, &m.Kind, &m.Source, &m.Quantity, &m.UnitCost, &m.OccurredAt, &m.CreatedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *txRepository) InsertMovement(ctx context.Context, input MovementInput, occurredAt time.Time) (Movement, error) {
	m := Movement{
		BusinessID: input.BusinessID,
		ProductID:  input.ProductID,
		Kind:       input.Kind,
		Source:     input.Source,
		Quantity:   input.Quantity,
		UnitCost:   input.UnitCost,
		OccurredAt: occurredAt,
		CreatedBy:  input.ActorID,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (business_id, product_id, kind, source, quantity, unit_cost, occurred_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id, created_at`,
		m.BusinessID, m.ProductID, string(m.Kind), string(m.Source), m.Quantity, m.UnitCost, m.OccurredAt, nullInt(m.CreatedBy)).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	return m, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
