package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridian-erp/meridian/internal/catalog"
	"github.com/meridian-erp/meridian/internal/stock"
)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBySource(ctx context.Context, source SourceRef) (Entry, error)
	ListByBusiness(ctx context.Context, businessID int64, limit int) ([]Entry, error)
}

// AccountsPort resolves the chart of accounts for a business.
type AccountsPort interface {
	GetOrCreate(ctx context.Context, businessID int64) (ChartOfAccounts, error)
}

// ValuationPort supplies the weighted-average cost basis for consumption.
type ValuationPort interface {
	AverageCost(ctx context.Context, businessID, productID int64) (int64, error)
}

// ConsumedItem is one consumed reservation item handed to the poster.
type ConsumedItem struct {
	ProductID int64
	Quantity  int64
}

// Service posts balanced double-entry records keyed by originating event.
type Service struct {
	repo      RepositoryPort
	accounts  AccountsPort
	valuation ValuationPort
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, accounts AccountsPort, valuation ValuationPort) *Service {
	return &Service{repo: repo, accounts: accounts, valuation: valuation, now: time.Now}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetBySource returns the entry posted for an event, if any.
func (s *Service) GetBySource(ctx context.Context, source SourceRef) (Entry, error) {
	return s.repo.GetBySource(ctx, source)
}

// ListByBusiness returns recent entries for a business.
func (s *Service) ListByBusiness(ctx context.Context, businessID int64, limit int) ([]Entry, error) {
	if businessID == 0 {
		return nil, errors.New("ledger: business required")
	}
	return s.repo.ListByBusiness(ctx, businessID, limit)
}

// PostForMovement posts the bookkeeping for a direct stock movement. Only a
// RECEIVE with a known, non-zero cost produces an entry (debit inventory,
// credit cash). For any other shape an entry previously keyed to the
// movement is deleted, keeping the ledger consistent should a movement's
// nature change before posting. The operation is an upsert on the source
// key: re-running the same event recomputes lines instead of duplicating.
func (s *Service) PostForMovement(ctx context.Context, movement stock.Movement, product catalog.Product) (*Entry, error) {
	if movement.ID == 0 || movement.BusinessID == 0 {
		return nil, errors.New("ledger: movement identity required")
	}
	source := MovementRef(movement.ID)
	amount := int64(0)
	if movement.Kind == stock.MovementKindReceive && movement.UnitCost != nil {
		amount = movement.Quantity * *movement.UnitCost
	}
	if amount <= 0 {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.DeleteBySource(ctx, source)
		})
		return nil, err
	}
	chart, err := s.accounts.GetOrCreate(ctx, movement.BusinessID)
	if err != nil {
		return nil, err
	}
	meta := map[string]any{
		"product_id": movement.ProductID,
		"quantity":   movement.Quantity,
		"unit_cost":  *movement.UnitCost,
	}
	if product.SKU != "" {
		meta["sku"] = product.SKU
	}
	lines := []Line{
		{AccountCode: chart.InventoryCode, Debit: amount, Metadata: meta},
		{AccountCode: chart.CashCode, Credit: amount, Metadata: meta},
	}
	memo := fmt.Sprintf("Stock receipt #%d", movement.ID)
	if product.Name != "" {
		memo = fmt.Sprintf("Stock receipt #%d: %s", movement.ID, product.Name)
	}
	return s.upsert(ctx, movement.BusinessID, movement.OccurredAt, memo, source, lines)
}

// PostForDocumentConsumption posts the COGS entry for a document's stock
// consumption at most once. An existing entry is returned unchanged no
// matter how many times posting is retried; a zero total is a no-op and
// never creates an empty entry.
func (s *Service) PostForDocumentConsumption(ctx context.Context, businessID int64, documentID uuid.UUID, items []ConsumedItem) (*Entry, error) {
	if businessID == 0 || documentID == uuid.Nil {
		return nil, errors.New("ledger: business and document required")
	}
	source := DocumentConsumptionRef(documentID)
	if existing, err := s.repo.GetBySource(ctx, source); err == nil {
		return &existing, nil
	} else if !errors.Is(err, ErrEntryNotFound) {
		return nil, err
	}
	var total int64
	meta := map[string]any{"document_id": documentID.String()}
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		cost, err := s.valuation.AverageCost(ctx, businessID, item.ProductID)
		if err != nil {
			return nil, err
		}
		total += cost * item.Quantity
	}
	if total == 0 {
		return nil, nil
	}
	chart, err := s.accounts.GetOrCreate(ctx, businessID)
	if err != nil {
		return nil, err
	}
	lines := []Line{
		{AccountCode: chart.COGSCode, Debit: total, Metadata: meta},
		{AccountCode: chart.InventoryCode, Credit: total, Metadata: meta},
	}
	memo := fmt.Sprintf("Cost of goods sold, document %s", documentID)
	var out Entry
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := EnsureBalanced(lines); err != nil {
			return err
		}
		// Re-check inside the transaction: a concurrent post may have won
		// between the read above and here.
		if existing, err := tx.GetBySourceForUpdate(ctx, source); err == nil {
			out = existing
			return nil
		} else if !errors.Is(err, ErrEntryNotFound) {
			return err
		}
		entry, err := tx.InsertEntry(ctx, businessID, s.now().UTC(), memo, source)
		if err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, entry.ID, lines); err != nil {
			return err
		}
		entry.Lines = lines
		out = entry
		return nil
	})
	if err != nil {
		// The unique (source_kind, source_id) constraint is the last line of
		// defence when two transactions insert concurrently: surface the
		// winner's entry instead of the conflict.
		if isUniqueViolation(err) {
			if existing, lookupErr := s.repo.GetBySource(ctx, source); lookupErr == nil {
				return &existing, nil
			}
		}
		return nil, err
	}
	return &out, nil
}

// upsert writes the entry and its lines as a unit. The balance check runs
// inside the same transaction as the line replacement; a violation aborts
// everything and surfaces as ErrUnbalancedEntry.
func (s *Service) upsert(ctx context.Context, businessID int64, occurredAt time.Time, memo string, source SourceRef, lines []Line) (*Entry, error) {
	var out Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := EnsureBalanced(lines); err != nil {
			return err
		}
		entry, err := tx.GetBySourceForUpdate(ctx, source)
		if err != nil {
			if !errors.Is(err, ErrEntryNotFound) {
				return err
			}
			entry, err = tx.InsertEntry(ctx, businessID, occurredAt, memo, source)
			if err != nil {
				return err
			}
		} else if err := tx.UpdateEntryHeader(ctx, entry.ID, occurredAt, memo); err != nil {
			return err
		}
		if err := tx.ReplaceLines(ctx, entry.ID, lines); err != nil {
			return err
		}
		entry.OccurredAt = occurredAt
		entry.Memo = memo
		entry.Lines = lines
		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
