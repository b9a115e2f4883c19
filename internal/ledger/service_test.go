package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/catalog"
	"github.com/meridian-erp/meridian/internal/stock"
)

type memoryRepo struct {
	entries map[SourceRef]*Entry
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[SourceRef]*Entry)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetBySource(ctx context.Context, source SourceRef) (Entry, error) {
	if entry, ok := r.entries[source]; ok {
		return *entry, nil
	}
	return Entry{}, ErrEntryNotFound
}

func (r *memoryRepo) ListByBusiness(ctx context.Context, businessID int64, limit int) ([]Entry, error) {
	var out []Entry
	for _, entry := range r.entries {
		if entry.BusinessID == businessID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetBySourceForUpdate(ctx context.Context, source SourceRef) (Entry, error) {
	return tx.repo.GetBySource(ctx, source)
}

func (tx *memoryTx) InsertEntry(ctx context.Context, businessID int64, occurredAt time.Time, memo string, source SourceRef) (Entry, error) {
	tx.repo.nextID++
	entry := &Entry{
		ID:         tx.repo.nextID,
		BusinessID: businessID,
		OccurredAt: occurredAt,
		Memo:       memo,
		Source:     source,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	tx.repo.entries[source] = entry
	return *entry, nil
}

func (tx *memoryTx) UpdateEntryHeader(ctx context.Context, entryID int64, occurredAt time.Time, memo string) error {
	for _, entry := range tx.repo.entries {
		if entry.ID == entryID {
			entry.OccurredAt = occurredAt
			entry.Memo = memo
			return nil
		}
	}
	return ErrEntryNotFound
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, entryID int64, lines []Line) error {
	for _, entry := range tx.repo.entries {
		if entry.ID == entryID {
			entry.Lines = append([]Line(nil), lines...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (tx *memoryTx) DeleteBySource(ctx context.Context, source SourceRef) error {
	delete(tx.repo.entries, source)
	return nil
}

type staticAccounts struct{}

func (staticAccounts) GetOrCreate(ctx context.Context, businessID int64) (ChartOfAccounts, error) {
	return ChartOfAccounts{
		BusinessID:    businessID,
		InventoryCode: DefaultInventoryCode,
		CashCode:      DefaultCashCode,
		COGSCode:      DefaultCOGSCode,
	}, nil
}

type staticValuation struct {
	costs map[int64]int64
}

func (v staticValuation) AverageCost(ctx context.Context, businessID, productID int64) (int64, error) {
	return v.costs[productID], nil
}

func cost(v int64) *int64 { return &v }

func TestEnsureBalanced(t *testing.T) {
	require.NoError(t, EnsureBalanced([]Line{
		{AccountCode: "1400", Debit: 100},
		{AccountCode: "1000", Credit: 100},
	}))
	require.ErrorIs(t, EnsureBalanced([]Line{
		{AccountCode: "1400", Debit: 100},
		{AccountCode: "1000", Credit: 90},
	}), ErrUnbalancedEntry)
	require.ErrorIs(t, EnsureBalanced([]Line{
		{AccountCode: "1400", Debit: -100},
		{AccountCode: "1000", Credit: -100},
	}), ErrUnbalancedEntry)
}

func TestPostForMovementCostedReceive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticAccounts{}, staticValuation{})

	movement := stock.Movement{
		ID: 11, BusinessID: 1, ProductID: 7,
		Kind: stock.MovementKindReceive, Quantity: 10, UnitCost: cost(100),
		OccurredAt: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	entry, err := svc.PostForMovement(context.Background(), movement, catalog.Product{Name: "Widget", SKU: "W-1"})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, MovementRef(11), entry.Source)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, DefaultInventoryCode, entry.Lines[0].AccountCode)
	require.Equal(t, int64(1000), entry.Lines[0].Debit)
	require.Equal(t, DefaultCashCode, entry.Lines[1].AccountCode)
	require.Equal(t, int64(1000), entry.Lines[1].Credit)
	require.Contains(t, entry.Memo, "Widget")
}

func TestPostForMovementUpsertsOnRepost(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticAccounts{}, staticValuation{})
	ctx := context.Background()

	movement := stock.Movement{
		ID: 11, BusinessID: 1, ProductID: 7,
		Kind: stock.MovementKindReceive, Quantity: 10, UnitCost: cost(100),
	}
	first, err := svc.PostForMovement(ctx, movement, catalog.Product{})
	require.NoError(t, err)

	movement.UnitCost = cost(120)
	second, err := svc.PostForMovement(ctx, movement, catalog.Product{})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(1200), second.Lines[0].Debit)
	require.Len(t, repo.entries, 1)
}

func TestPostForMovementNonQualifyingDeletes(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticAccounts{}, staticValuation{})
	ctx := context.Background()

	movement := stock.Movement{
		ID: 11, BusinessID: 1, ProductID: 7,
		Kind: stock.MovementKindReceive, Quantity: 10, UnitCost: cost(100),
	}
	_, err := svc.PostForMovement(ctx, movement, catalog.Product{})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)

	// The movement is now uncosted: its entry must go away.
	movement.UnitCost = nil
	entry, err := svc.PostForMovement(ctx, movement, catalog.Product{})
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Empty(t, repo.entries)

	// Issues never post.
	issue := stock.Movement{ID: 12, BusinessID: 1, ProductID: 7, Kind: stock.MovementKindIssue, Quantity: 3, UnitCost: cost(100)}
	entry, err = svc.PostForMovement(ctx, issue, catalog.Product{})
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestPostForDocumentConsumption(t *testing.T) {
	repo := newMemoryRepo()
	// 10 @ 100 then 5 @ 160 averages to 120.
	svc := NewService(repo, staticAccounts{}, staticValuation{costs: map[int64]int64{7: 120}})
	ctx := context.Background()
	docID := uuid.New()

	entry, err := svc.PostForDocumentConsumption(ctx, 1, docID, []ConsumedItem{{ProductID: 7, Quantity: 3}})
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, DocumentConsumptionRef(docID), entry.Source)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, DefaultCOGSCode, entry.Lines[0].AccountCode)
	require.Equal(t, int64(360), entry.Lines[0].Debit)
	require.Equal(t, DefaultInventoryCode, entry.Lines[1].AccountCode)
	require.Equal(t, int64(360), entry.Lines[1].Credit)
}

func TestPostForDocumentConsumptionAtMostOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticAccounts{}, staticValuation{costs: map[int64]int64{7: 120}})
	ctx := context.Background()
	docID := uuid.New()

	first, err := svc.PostForDocumentConsumption(ctx, 1, docID, []ConsumedItem{{ProductID: 7, Quantity: 3}})
	require.NoError(t, err)

	// A retry with different quantities still returns the original entry.
	second, err := svc.PostForDocumentConsumption(ctx, 1, docID, []ConsumedItem{{ProductID: 7, Quantity: 99}})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(360), second.Lines[0].Debit)
	require.Len(t, repo.entries, 1)
}

func TestPostForDocumentConsumptionZeroTotalIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticAccounts{}, staticValuation{})
	ctx := context.Background()

	entry, err := svc.PostForDocumentConsumption(ctx, 1, uuid.New(), []ConsumedItem{{ProductID: 7, Quantity: 3}})
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Empty(t, repo.entries)

	entry, err = svc.PostForDocumentConsumption(ctx, 1, uuid.New(), nil)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestStockIntegrationPostsOnReceive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticAccounts{}, staticValuation{})
	integration := NewStockIntegration(svc, nil)

	movement := stock.Movement{
		ID: 21, BusinessID: 1, ProductID: 7,
		Kind: stock.MovementKindReceive, Quantity: 2, UnitCost: cost(500),
	}
	err := integration.HandleMovementRecorded(context.Background(), stock.MovementRecordedEvent{Movement: movement})
	require.NoError(t, err)

	entry, err := svc.GetBySource(context.Background(), MovementRef(21))
	require.NoError(t, err)
	require.Equal(t, int64(1000), entry.Lines[0].Debit)
}
