package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists ledger entries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetBySourceForUpdate(ctx context.Context, source SourceRef) (Entry, error)
	InsertEntry(ctx context.Context, businessID int64, occurredAt time.Time, memo string, source SourceRef) (Entry, error)
	UpdateEntryHeader(ctx context.Context, entryID int64, occurredAt time.Time, memo string) error
	ReplaceLines(ctx context.Context, entryID int64, lines []Line) error
	DeleteBySource(ctx context.Context, source SourceRef) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger: repository not initialised")
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

// GetBySource loads one entry with lines outside a transaction.
func (r *Repository) GetBySource(ctx context.Context, source SourceRef) (Entry, error) {
	if r == nil {
		return Entry{}, errors.New("ledger: repository not initialised")
	}
	var entry Entry
	err := r.pool.QueryRow(ctx, `SELECT id, business_id, occurred_at, memo, source_kind, source_id, created_at, updated_at
FROM ledger_entries WHERE source_kind=$1 AND source_id=$2`, string(source.Kind), source.ID).
		Scan(&entry.ID, &entry.BusinessID, &entry.OccurredAt, &entry.Memo, &entry.Source.Kind, &entry.Source.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	lines, err := loadLines(ctx, r.pool, entry.ID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// ListByBusiness returns entries for a business, newest first.
func (r *Repository) ListByBusiness(ctx context.Context, businessID int64, limit int) ([]Entry, error) {
	if r == nil {
		return nil, errors.New("ledger: repository not initialised")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, business_id, occurred_at, memo, source_kind, source_id, created_at, updated_at
FROM ledger_entries WHERE business_id=$1 ORDER BY occurred_at DESC, id DESC LIMIT $2`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []Entry{}
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.ID, &entry.BusinessID, &entry.OccurredAt, &entry.Memo, &entry.Source.Kind, &entry.Source.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		lines, err := loadLines(ctx, r.pool, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

func (r *txRepository) GetBySourceForUpdate(ctx context.Context, source SourceRef) (Entry, error) {
	var entry Entry
	err := r.tx.QueryRow(ctx, `SELECT id, business_id, occurred_at, memo, source_kind, source_id, created_at, updated_at
FROM ledger_entries WHERE source_kind=$1 AND source_id=$2 FOR UPDATE`, string(source.Kind), source.ID).
		Scan(&entry.ID, &entry.BusinessID, &entry.OccurredAt, &entry.Memo, &entry.Source.Kind, &entry.Source.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	lines, err := loadLines(ctx, r.tx, entry.ID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, businessID int64, occurredAt time.Time, memo string, source SourceRef) (Entry, error) {
	entry := Entry{BusinessID: businessID, OccurredAt: occurredAt, Memo: memo, Source: source}
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_entries (business_id, occurred_at, memo, source_kind, source_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW()) RETURNING id, created_at, updated_at`,
		businessID, occurredAt, memo, string(source.Kind), source.ID).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateEntryHeader(ctx context.Context, entryID int64, occurredAt time.Time, memo string) error {
	_, err := r.tx.Exec(ctx, `UPDATE ledger_entries SET occurred_at=$2, memo=$3, updated_at=NOW() WHERE id=$1`, entryID, occurredAt, memo)
	return err
}

// ReplaceLines is the only write path for lines: full delete-then-insert in
// the surrounding transaction, so an entry is never observed half-written.
func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM ledger_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	for pos, line := range lines {
		metaJSON, err := json.Marshal(line.Metadata)
		if err != nil {
			return err
		}
		_, err = r.tx.Exec(ctx, `INSERT INTO ledger_lines (entry_id, position, account_code, debit, credit, metadata)
VALUES ($1,$2,$3,$4,$5,$6)`, entryID, pos, line.AccountCode, line.Debit, line.Credit, metaJSON)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteBySource(ctx context.Context, source SourceRef) error {
	var entryID int64
	err := r.tx.QueryRow(ctx, `SELECT id FROM ledger_entries WHERE source_kind=$1 AND source_id=$2 FOR UPDATE`, string(source.Kind), source.ID).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM ledger_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `DELETE FROM ledger_entries WHERE id=$1`, entryID)
	return err
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q queryer, entryID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT account_code, debit, credit, metadata
FROM ledger_lines WHERE entry_id=$1 ORDER BY position ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []Line{}
	for rows.Next() {
		var line Line
		var metaJSON []byte
		if err := rows.Scan(&line.AccountCode, &line.Debit, &line.Credit, &metaJSON); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &line.Metadata); err != nil {
				return nil, err
			}
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
