package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian/internal/stock"
)

// Repository persists reservations in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. The
// consume path writes stock movements through the same transaction so the
// status flip and the issued movements commit or roll back together.
type TxRepository interface {
	GetByDocumentForUpdate(ctx context.Context, documentID uuid.UUID) (Reservation, error)
	Insert(ctx context.Context, businessID int64, documentID uuid.UUID, status Status) (Reservation, error)
	SetStatus(ctx context.Context, reservationID int64, status Status) error
	ReplaceItems(ctx context.Context, reservationID int64, items []Item) error
	InsertIssueMovement(ctx context.Context, input stock.MovementInput, occurredAt time.Time) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
// Combined with the FOR UPDATE lock on the reservation row, this guarantees
// a concurrent consume observes the first caller's CONSUMED status.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("reservation: repository not initialised")
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

// GetByDocument loads a reservation with its items outside a transaction.
func (r *Repository) GetByDocument(ctx context.Context, documentID uuid.UUID) (Reservation, error) {
	if r == nil {
		return Reservation{}, errors.New("reservation: repository not initialised")
	}
	var res Reservation
	err := r.pool.QueryRow(ctx, `SELECT id, business_id, document_id, status, created_at, updated_at
FROM stock_reservations WHERE document_id=$1`, documentID).
		Scan(&res.ID, &res.BusinessID, &res.DocumentID, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrReservationNotFound
		}
		return Reservation{}, err
	}
	items, err := loadItems(ctx, r.pool, res.ID)
	if err != nil {
		return Reservation{}, err
	}
	res.Items = items
	return res, nil
}

func (r *txRepository) GetByDocumentForUpdate(ctx context.Context, documentID uuid.UUID) (Reservation, error) {
	var res Reservation
	err := r.tx.QueryRow(ctx, `SELECT id, business_id, document_id, status, created_at, updated_at
FROM stock_reservations WHERE document_id=$1 FOR UPDATE`, documentID).
		Scan(&res.ID, &res.BusinessID, &res.DocumentID, &res.Status, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reservation{}, ErrReservationNotFound
		}
		return Reservation{}, err
	}
	items, err := loadItems(ctx, r.tx, res.ID)
	if err != nil {
		return Reservation{}, err
	}
	res.Items = items
	return res, nil
}

func (r *txRepository) Insert(ctx context.Context, businessID int64, documentID uuid.UUID, status Status) (Reservation, error) {
	res := Reservation{BusinessID: businessID, DocumentID: documentID, Status: status}
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_reservations (business_id, document_id, status, created_at, updated_at)
VALUES ($1,$2,$3,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		businessID, documentID, string(status)).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return Reservation{}, err
	}
	return res, nil
}

func (r *txRepository) SetStatus(ctx context.Context, reservationID int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_reservations SET status=$2, updated_at=NOW() WHERE id=$1`, reservationID, string(status))
	return err
}

// ReplaceItems swaps the item set as a unit. Delete-then-insert inside the
// surrounding transaction keeps partial item sets unobservable.
func (r *txRepository) ReplaceItems(ctx context.Context, reservationID int64, items []Item) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM stock_reservation_items WHERE reservation_id=$1`, reservationID); err != nil {
		return err
	}
	for pos, item := range items {
		_, err := r.tx.Exec(ctx, `INSERT INTO stock_reservation_items (reservation_id, position, product_id, quantity, unit_price)
VALUES ($1,$2,$3,$4,$5)`, reservationID, pos, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) InsertIssueMovement(ctx context.Context, input stock.MovementInput, occurredAt time.Time) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (business_id, product_id, kind, source, quantity, unit_cost, occurred_at, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		input.BusinessID, input.ProductID, string(input.Kind), string(input.Source), input.Quantity, input.UnitCost, occurredAt, input.ActorID).Scan(&id)
	return id, err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q queryer, reservationID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT product_id, quantity, unit_price
FROM stock_reservation_items WHERE reservation_id=$1 ORDER BY position ASC`, reservationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
