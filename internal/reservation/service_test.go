package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/document"
	"github.com/meridian-erp/meridian/internal/stock"
)

type memoryRepo struct {
	byDocument map[uuid.UUID]*Reservation
	movements  []stock.MovementInput
	nextID     int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byDocument: make(map[uuid.UUID]*Reservation)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (Reservation, error) {
	if res, ok := r.byDocument[documentID]; ok {
		return *res, nil
	}
	return Reservation{}, ErrReservationNotFound
}

func (tx *memoryTx) GetByDocumentForUpdate(ctx context.Context, documentID uuid.UUID) (Reservation, error) {
	return tx.repo.GetByDocument(ctx, documentID)
}

func (tx *memoryTx) Insert(ctx context.Context, businessID int64, documentID uuid.UUID, status Status) (Reservation, error) {
	tx.repo.nextID++
	res := &Reservation{
		ID:         tx.repo.nextID,
		BusinessID: businessID,
		DocumentID: documentID,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	tx.repo.byDocument[documentID] = res
	return *res, nil
}

func (tx *memoryTx) SetStatus(ctx context.Context, reservationID int64, status Status) error {
	for _, res := range tx.repo.byDocument {
		if res.ID == reservationID {
			res.Status = status
			res.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrReservationNotFound
}

func (tx *memoryTx) ReplaceItems(ctx context.Context, reservationID int64, items []Item) error {
	for _, res := range tx.repo.byDocument {
		if res.ID == reservationID {
			res.Items = append([]Item(nil), items...)
			return nil
		}
	}
	return ErrReservationNotFound
}

func (tx *memoryTx) InsertIssueMovement(ctx context.Context, input stock.MovementInput, occurredAt time.Time) (int64, error) {
	tx.repo.movements = append(tx.repo.movements, input)
	return int64(len(tx.repo.movements)), nil
}

func testDocument(id uuid.UUID, lines ...document.Line) document.Document {
	return document.Document{
		ID:         id,
		BusinessID: 1,
		Number:     "INV-1001",
		Status:     document.StatusDraft,
		IssuedAt:   time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		Lines:      lines,
	}
}

func TestAggregateLines(t *testing.T) {
	doc := testDocument(uuid.New(),
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
		document.Line{ProductID: 9, Quantity: 1, UnitPrice: 50, Stocked: true},
		document.Line{ProductID: 7, Quantity: 3, UnitPrice: 110, Stocked: true},
		document.Line{ProductID: 4, Quantity: 5, UnitPrice: 10, Stocked: false},
		document.Line{ProductID: 3, Quantity: 0, UnitPrice: 10, Stocked: true},
	)
	items := AggregateLines(doc)
	require.Equal(t, []Item{
		{ProductID: 7, Quantity: 5, UnitPrice: 110},
		{ProductID: 9, Quantity: 1, UnitPrice: 50},
	}, items)
}

func TestUpsertCreatesAndReplaces(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()

	res, err := svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, StatusActive, res.Status)
	require.Len(t, res.Items, 1)

	// Editing the document replaces the whole item set.
	res, err = svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 9, Quantity: 4, UnitPrice: 60, Stocked: true},
	))
	require.NoError(t, err)
	require.Equal(t, []Item{{ProductID: 9, Quantity: 4, UnitPrice: 60}}, res.Items)
}

func TestUpsertEmptyAggregationReleases(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()

	_, err := svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	))
	require.NoError(t, err)

	res, err := svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: false},
	))
	require.NoError(t, err)
	require.Nil(t, res)

	stored, err := svc.GetByDocument(ctx, docID)
	require.NoError(t, err)
	require.Equal(t, StatusReleased, stored.Status)
}

func TestUpsertNoExistingAndEmptyIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	res, err := svc.UpsertFromDocument(context.Background(), testDocument(uuid.New()))
	require.NoError(t, err)
	require.Nil(t, res)
	require.Empty(t, repo.byDocument)
}

func TestReleaseIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()

	// Missing reservation is a no-op.
	require.NoError(t, svc.Release(ctx, docID))

	_, err := svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	))
	require.NoError(t, err)

	require.NoError(t, svc.Release(ctx, docID))
	require.NoError(t, svc.Release(ctx, docID))

	stored, err := svc.GetByDocument(ctx, docID)
	require.NoError(t, err)
	require.Equal(t, StatusReleased, stored.Status)
}

func TestUpsertReactivatesReleased(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()
	doc := testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	)

	_, err := svc.UpsertFromDocument(ctx, doc)
	require.NoError(t, err)
	require.NoError(t, svc.Release(ctx, docID))

	res, err := svc.UpsertFromDocument(ctx, doc)
	require.NoError(t, err)
	require.Equal(t, StatusActive, res.Status)
}

func TestConsumeIssuesMovementsOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()
	doc := testDocument(docID,
		document.Line{ProductID: 7, Quantity: 3, UnitPrice: 120, Stocked: true},
		document.Line{ProductID: 9, Quantity: 1, UnitPrice: 80, Stocked: true},
	)

	_, err := svc.UpsertFromDocument(ctx, doc)
	require.NoError(t, err)

	res, err := svc.Consume(ctx, doc, 42)
	require.NoError(t, err)
	require.Equal(t, StatusConsumed, res.Status)
	require.Len(t, repo.movements, 2)
	require.Equal(t, stock.MovementKindIssue, repo.movements[0].Kind)
	require.Equal(t, stock.SourceSale, repo.movements[0].Source)
	require.Equal(t, int64(3), repo.movements[0].Quantity)

	// A retried payment must not issue stock twice.
	res, err = svc.Consume(ctx, doc, 42)
	require.NoError(t, err)
	require.Equal(t, StatusConsumed, res.Status)
	require.Len(t, repo.movements, 2)
}

func TestConsumeWithoutPriorReservation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	doc := testDocument(uuid.New(),
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	)

	res, err := svc.Consume(context.Background(), doc, 42)
	require.NoError(t, err)
	require.Equal(t, StatusConsumed, res.Status)
	require.Len(t, repo.movements, 1)
}

func TestConsumeRefreshesStaleItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()

	_, err := svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	))
	require.NoError(t, err)

	// The document changed after the reservation was taken.
	doc := testDocument(docID,
		document.Line{ProductID: 7, Quantity: 5, UnitPrice: 100, Stocked: true},
	)
	res, err := svc.Consume(ctx, doc, 42)
	require.NoError(t, err)
	require.Equal(t, []Item{{ProductID: 7, Quantity: 5, UnitPrice: 100}}, res.Items)
	require.Len(t, repo.movements, 1)
	require.Equal(t, int64(5), repo.movements[0].Quantity)
}

func TestConsumeEmptyDocumentReleases(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	docID := uuid.New()

	_, err := svc.UpsertFromDocument(ctx, testDocument(docID,
		document.Line{ProductID: 7, Quantity: 2, UnitPrice: 100, Stocked: true},
	))
	require.NoError(t, err)

	res, err := svc.Consume(ctx, testDocument(docID), 42)
	require.NoError(t, err)
	require.Nil(t, res)
	require.Empty(t, repo.movements)

	stored, err := svc.GetByDocument(ctx, docID)
	require.NoError(t, err)
	require.Equal(t, StatusReleased, stored.Status)
}

func TestConsumeUsesSettledAt(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	docID := uuid.New()
	settled := time.Date(2025, 5, 2, 9, 30, 0, 0, time.UTC)
	doc := testDocument(docID,
		document.Line{ProductID: 7, Quantity: 1, UnitPrice: 100, Stocked: true},
	)
	doc.SettledAt = &settled

	captured := time.Time{}
	repoWrap := &occurredAtRecorder{memoryRepo: repo, captured: &captured}
	svc = NewService(repoWrap, nil)

	_, err := svc.Consume(context.Background(), doc, 42)
	require.NoError(t, err)
	require.Equal(t, settled, captured)
}

type occurredAtRecorder struct {
	*memoryRepo
	captured *time.Time
}

func (r *occurredAtRecorder) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &recordingTx{memoryTx: &memoryTx{repo: r.memoryRepo}, captured: r.captured})
}

type recordingTx struct {
	*memoryTx
	captured *time.Time
}

func (tx *recordingTx) InsertIssueMovement(ctx context.Context, input stock.MovementInput, occurredAt time.Time) (int64, error) {
	*tx.captured = occurredAt
	return tx.memoryTx.InsertIssueMovement(ctx, input, occurredAt)
}
